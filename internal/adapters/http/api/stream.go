package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/levelup/pkg/metrics"
)

const keepAliveInterval = 15 * time.Second

// StreamDependencies delivers change signals.
type StreamDependencies interface {
	SubscribeChan(ctx context.Context, buffer int) <-chan struct{}
}

// StreamHandler pushes the record to clients as server-sent events.
type StreamHandler struct {
	deps      StreamDependencies
	progress  ProgressDependencies
	keepAlive time.Duration
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies, progress ProgressDependencies) *StreamHandler {
	return &StreamHandler{deps: deps, progress: progress, keepAlive: keepAliveInterval}
}

// HandleStream handles GET /progress/stream. The current record is sent on
// connect and again after every change signal. Bursts of changes coalesce
// into a single event carrying the latest record.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.progress_stream"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", NewKind(op, ErrInternal))
		return
	}

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	// Subscribe before the first read so no change slips between them.
	signals := h.deps.SubscribeChan(ctx, 0)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	metrics.AddStreamClients(1)
	defer metrics.AddStreamClients(-1)

	if err := h.send(ctx, w); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			if err := h.send(ctx, w); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *StreamHandler) send(ctx context.Context, w http.ResponseWriter) error {
	rec, err := h.progress.Progress(ctx)
	if err != nil {
		_, werr := fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		if werr != nil {
			return werr
		}
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
	return err
}
