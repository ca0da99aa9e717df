// Package worker drains the report queue into the reporting facade.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/pkg/logger"
	"github.com/okian/levelup/pkg/metrics"
)

const (
	defaultWorkerCount  = 1
	poolShutdownTimeout = 30 * time.Second
)

// Reporter applies one activity result to the progress record.
type Reporter interface {
	Report(ctx context.Context, activityID string, res model.ActivityResult) (model.Record, error)
}

// FailureHandler is called with every report the facade rejected.
type FailureHandler func(ctx context.Context, r model.Report, err error)

// Queue defines how workers receive reports.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Report
}

// Worker processes queued reports.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// Stats counts what the workers did. All fields are safe for concurrent use.
type Stats struct {
	processed atomic.Int64
	failed    atomic.Int64
}

// Processed returns the number of reports applied successfully.
func (s *Stats) Processed() int64 { return s.processed.Load() }

// Failed returns the number of reports the facade rejected.
func (s *Stats) Failed() int64 { return s.failed.Load() }

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	reporter  Reporter
	name      string
	stats     *Stats
	onFailure FailureHandler

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, reporter Reporter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		reporter: reporter,
		name:     "worker",
		stats:    &Stats{},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Stats returns the worker counters.
func (w *InMemoryWorker) Stats() *Stats { return w.stats }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	reports := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case r, ok := <-reports:
			if !ok {
				return
			}
			if err := w.process(ctx, r); err != nil {
				w.logger.Error(ctx, "error processing report", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, r model.Report) error { //nolint:gocritic // hugeParam: Report is passed by value through channels
	rec, err := w.reporter.Report(ctx, r.ActivityID, r.Result)
	if err != nil {
		w.stats.failed.Add(1)
		metrics.RecordWorkerError()
		if w.onFailure != nil {
			w.onFailure(ctx, r, err)
		}
		return fmt.Errorf("report %s for activity %s: %w", r.EventID, r.ActivityID, err)
	}
	w.stats.processed.Add(1)
	w.logger.Debug(ctx, "report applied",
		logger.String("eventID", r.EventID),
		logger.String("activity", r.ActivityID),
		logger.Int("level", rec.Level),
		logger.Int("experience", rec.Experience),
	)
	return nil
}

// Pool manages multiple workers sharing one queue and one set of counters.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *Stats
	logger  logger.Logger
}

// NewPool creates a new worker pool. A single worker keeps reports in
// queue order; more workers only add overlap of queue handling since the
// facade applies reports one at a time anyway. opts apply to every worker.
func NewPool(workerCount int, queue Queue, reporter Reporter, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		stats:   &Stats{},
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		workerOpts := append([]Option{
			WithName("worker-" + strconv.Itoa(i)),
			withStats(p.stats),
		}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, reporter, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Stats returns the counters shared by every worker of the pool.
func (p *Pool) Stats() *Stats { return p.stats }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and lets the workers drain it. Workers still
// busy when ctx (capped at 30s) ends are stopped without draining.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			close(w.shutdown)
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
