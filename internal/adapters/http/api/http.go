// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/levelup/internal/adapters/mq/queue"
	"github.com/okian/levelup/internal/adapters/repository"
	service "github.com/okian/levelup/internal/app"
	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/internal/domain/progress"
	"github.com/okian/levelup/internal/domain/rewards"
	"github.com/okian/levelup/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ReportDependencies
	EventDependencies
	ProgressDependencies
	StreamDependencies
}

// ReportDependencies applies synchronous reports and previews rewards.
type ReportDependencies interface {
	ReportRaw(ctx context.Context, activityID string, raw model.RawResult) (progress.Outcome, error)
	Rewards(ctx context.Context, activityID string, score int) (rewards.Reward, error)
}

// ProgressDependencies exposes the read side of the record.
type ProgressDependencies interface {
	Progress(ctx context.Context) (model.Record, error)
	Activity(ctx context.Context, activityID string) (model.ActivityEntry, error)
	Summary(ctx context.Context) (rewards.Summary, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	reportHandler   *ReportHandler
	progressHandler *ProgressHandler
	streamHandler   *StreamHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		eventsHandler:   NewEventsHandler(deps),
		reportHandler:   NewReportHandler(deps),
		progressHandler: NewProgressHandler(deps),
		streamHandler:   NewStreamHandler(deps, deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/progress", MetricsMiddleware(s.progressHandler.HandleGetProgress, "progress"))
	mux.HandleFunc("/progress/stream", MetricsMiddleware(s.streamHandler.HandleStream, "progress_stream"))
	mux.HandleFunc("/progress/activities/", MetricsMiddleware(s.progressHandler.HandleGetActivity, "progress_activity"))
	mux.HandleFunc("/summary", MetricsMiddleware(s.progressHandler.HandleGetSummary, "summary"))
	mux.HandleFunc("/activities/", MetricsMiddleware(s.reportHandler.HandleActivity, "activities"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// writeServiceError translates errors coming out of the service layer.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidActivity):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, service.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, repository.ErrPersist):
		writeError(w, http.StatusInsufficientStorage, "persistence_failure", NewKind(op, ErrPersistence))
	case queue.IsBackpressure(err):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
	}
}
