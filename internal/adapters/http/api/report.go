package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/internal/domain/types"
)

// ReportHandler handles /activities/{id}/report and /activities/{id}/rewards.
type ReportHandler struct {
	deps ReportDependencies
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies) *ReportHandler {
	return &ReportHandler{deps: deps}
}

// HandleActivity dispatches on the path suffix after /activities/{id}.
func (h *ReportHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitActivityPath(strings.TrimPrefix(r.URL.Path, "/activities/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch {
	case action == "report" && r.Method == http.MethodPost:
		h.handleReport(w, r, id)
	case action == "rewards" && r.Method == http.MethodGet:
		h.handleRewards(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// handleReport handles POST /activities/{id}/report.
func (h *ReportHandler) handleReport(w http.ResponseWriter, r *http.Request, activityID string) {
	const op = "api.post_report"
	if strings.TrimSpace(activityID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing activity id")))
		return
	}
	var raw model.RawResult
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	out, err := h.deps.ReportRaw(r.Context(), activityID, raw)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ReportResponse{
		Record:           out.Record,
		LevelsGained:     out.LevelsGained,
		ExperienceGained: out.ExperienceGained,
	})
}

// handleRewards handles GET /activities/{id}/rewards?score=N.
func (h *ReportHandler) handleRewards(w http.ResponseWriter, r *http.Request, activityID string) {
	const op = "api.get_rewards"
	score, err := strconv.Atoi(r.URL.Query().Get("score"))
	if err != nil || score < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	reward, err := h.deps.Rewards(r.Context(), activityID, score)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

// splitActivityPath splits "{id}/{action}". The id may be blank so the
// handler can reject it with a proper error.
func splitActivityPath(rest string) (id, action string, ok bool) {
	i := strings.LastIndex(rest, "/")
	if i < 0 {
		return "", "", false
	}
	id, action = rest[:i], rest[i+1:]
	if strings.Contains(id, "/") {
		return "", "", false
	}
	return id, action, true
}
