package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/levelup/internal/app"
	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/internal/domain/types"
	"github.com/okian/levelup/pkg/metrics"
)

// EventDependencies defines the interface for asynchronous ingestion.
type EventDependencies interface {
	Enqueue(ctx context.Context, r model.Report) (eventID string, duplicate bool, err error)
}

// EventsHandler handles event requests
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// eventRequest is the body of POST /events: an activity result plus the
// delivery identity. The event id is optional.
type eventRequest struct {
	EventID    string `json:"event_id"`
	ActivityID string `json:"activity_id"`
	model.RawResult
}

func (r eventRequest) validate() error {
	if strings.TrimSpace(r.ActivityID) == "" {
		return errors.New("activity_id is required")
	}
	return nil
}

// HandlePostEvent handles POST /events requests
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, malformed := service.SanitizeRaw(req.RawResult)
	for _, f := range malformed {
		metrics.RecordMalformedField(f)
	}

	id, dup, err := h.deps.Enqueue(r.Context(), model.Report{
		EventID:    req.EventID,
		ActivityID: req.ActivityID,
		Result:     res,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, types.EventAck{Status: "duplicate", EventID: id, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, types.EventAck{Status: "accepted", EventID: id})
}
