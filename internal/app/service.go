// Package service wires the progress store, the reporting facade, the
// change notifier and the asynchronous ingestion path into one service
// used by the HTTP API.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/levelup/internal/adapters/mq/notify"
	eventqueue "github.com/okian/levelup/internal/adapters/mq/queue"
	workerpool "github.com/okian/levelup/internal/adapters/mq/worker"
	"github.com/okian/levelup/internal/adapters/repository"
	"github.com/okian/levelup/internal/domain/dedupe"
	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/internal/domain/progress"
	"github.com/okian/levelup/internal/domain/rewards"
	"github.com/okian/levelup/pkg/logger"
	"github.com/okian/levelup/pkg/metrics"
)

// Default service configuration.
const (
	defaultWorkerCount  = 1
	defaultQueueSize    = 1024
	defaultDedupeSize   = 10000
	defaultStreamBuffer = 1
	stopTimeout         = 10 * time.Second
)

// Service implements the API dependencies for the progress system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	hub        *notify.Hub
	reporter   *Reporter
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	totalActivities int
	streamBuffer    int

	// State
	started     bool
	stopped     bool
	stopWorkers context.CancelFunc
	stopWatch   context.CancelFunc
	watchDone   chan struct{}
	accepted    atomic.Int64
	duplicates  atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the record store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending asynchronous reports.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many delivery IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithTotalActivities sets the number of activities the summary counts
// completion against.
func WithTotalActivities(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.totalActivities = n
		}
	}
}

// WithStreamBuffer sets the default buffer of change signal channels.
func WithStreamBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.streamBuffer = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service. The notifier exists from construction on,
// so subscriptions may be taken before Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     defaultWorkerCount,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		totalActivities: rewards.DefaultTotalActivities,
		streamBuffer:    defaultStreamBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.hub = notify.NewHub(
		notify.WithChannelBuffer(s.streamBuffer),
		notify.WithLogger(s.logger.Named("notify")),
	)
	return s
}

// Start initializes and starts the service components. A Service is
// single-use: Stop closes its store, and Start after Stop fails with
// ErrStopped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return ErrStopped
	}

	s.logger.Info(ctx, "starting progress service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.reporter = NewReporter(s.store, s.hub)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	// Background work outlives the start request.
	base := context.WithoutCancel(ctx)

	var workerCtx context.Context
	workerCtx, s.stopWorkers = context.WithCancel(base)
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.reporter,
		workerpool.WithFailureHandler(s.releaseFailed))
	s.workerPool.Start(workerCtx)

	if w, ok := s.store.(repository.Watcher); ok {
		var watchCtx context.Context
		watchCtx, s.stopWatch = context.WithCancel(base)
		s.watchDone = make(chan struct{})
		go s.watch(watchCtx, w)
	}

	s.started = true
	s.logger.Info(ctx, "progress service started",
		logger.String("backend", s.store.Backend()),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// releaseFailed frees the event ID of a queued report that changed nothing,
// so the producer can retry it.
func (s *Service) releaseFailed(ctx context.Context, r model.Report, err error) {
	s.deduper.Unrecord(ctx, r.EventID)
	s.logger.Warn(ctx, "queued report failed; event id released",
		logger.String("eventID", r.EventID),
		logger.String("activity", r.ActivityID),
		logger.Error(err),
	)
}

// watch relays writes made by other processes sharing the store.
func (s *Service) watch(ctx context.Context, w repository.Watcher) {
	defer close(s.watchDone)
	if err := w.Watch(ctx, s.hub.Relay); err != nil && !errors.Is(err, repository.ErrClosed) {
		s.logger.Warn(ctx, "store watcher stopped", logger.Error(err))
	}
}

// Stop drains the queue and shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping progress service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.workerPool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.stopWorkers()

	if s.stopWatch != nil {
		s.stopWatch()
		<-s.watchDone
		s.stopWatch = nil
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "error closing store", logger.Error(err))
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "progress service stopped")
}

func (s *Service) running() (*Reporter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.reporter, nil
}

// Report applies a typed result synchronously.
func (s *Service) Report(ctx context.Context, activityID string, res model.ActivityResult) (progress.Outcome, error) {
	r, err := s.running()
	if err != nil {
		return progress.Outcome{}, err
	}
	return r.Apply(ctx, activityID, res)
}

// ReportRaw applies an untyped result synchronously.
func (s *Service) ReportRaw(ctx context.Context, activityID string, raw model.RawResult) (progress.Outcome, error) {
	r, err := s.running()
	if err != nil {
		return progress.Outcome{}, err
	}
	return r.ApplyRaw(ctx, activityID, raw)
}

// Enqueue submits a report for asynchronous processing. A report without an
// event ID gets a fresh one. A report whose event ID was already accepted is
// dropped and reported as duplicate. Backpressure errors come from the
// queue package and leave the event ID free for a retry.
func (s *Service) Enqueue(ctx context.Context, r model.Report) (eventID string, duplicate bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", false, ErrNotStarted
	}
	if strings.TrimSpace(r.ActivityID) == "" {
		return "", false, ErrInvalidActivity
	}
	if r.EventID == "" {
		r.EventID = uuid.NewString()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = time.Now()
	}

	if s.deduper.SeenAndRecord(ctx, r.EventID) {
		s.duplicates.Add(1)
		metrics.RecordDuplicateDelivery()
		s.logger.Debug(ctx, "duplicate delivery dropped", logger.String("eventID", r.EventID))
		return r.EventID, true, nil
	}

	if err := s.eventQueue.TryEnqueue(ctx, r); err != nil {
		s.deduper.Unrecord(ctx, r.EventID)
		return r.EventID, false, err
	}
	s.accepted.Add(1)
	return r.EventID, false, nil
}

// Progress returns the current record.
func (s *Service) Progress(ctx context.Context) (model.Record, error) {
	r, err := s.running()
	if err != nil {
		return model.Record{}, err
	}
	return r.Read(ctx)
}

// Activity returns the stored entry of one activity.
func (s *Service) Activity(ctx context.Context, activityID string) (model.ActivityEntry, error) {
	rec, err := s.Progress(ctx)
	if err != nil {
		return model.ActivityEntry{}, err
	}
	e, ok := rec.PerActivity[activityID]
	if !ok {
		return model.ActivityEntry{}, ErrActivityNotFound
	}
	return e, nil
}

// Summary returns the dashboard summary of the current record.
func (s *Service) Summary(ctx context.Context) (rewards.Summary, error) {
	rec, err := s.Progress(ctx)
	if err != nil {
		return rewards.Summary{}, err
	}
	return rewards.Summarize(rec, s.totalActivities), nil
}

// Rewards previews what a run of activityID with score would award.
func (s *Service) Rewards(ctx context.Context, activityID string, score int) (rewards.Reward, error) {
	if strings.TrimSpace(activityID) == "" {
		return rewards.Reward{}, ErrInvalidActivity
	}
	rec, err := s.Progress(ctx)
	if err != nil {
		return rewards.Reward{}, err
	}
	return rewards.ForActivity(rec, activityID, max(score, 0)), nil
}

// Subscribe registers cb for change notifications.
func (s *Service) Subscribe(cb func()) func() {
	return s.hub.Subscribe(cb)
}

// SubscribeChan returns a change signal channel released when ctx ends. A
// buffer of zero takes the configured stream buffer.
func (s *Service) SubscribeChan(ctx context.Context, buffer int) <-chan struct{} {
	return s.hub.SubscribeChan(ctx, buffer)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"totalActivities": s.totalActivities,
		"streamBuffer":    s.streamBuffer,
		"subscribers":     s.hub.Len(),
		"accepted":        s.accepted.Load(),
		"duplicates":      s.duplicates.Load(),
	}

	if s.started {
		ctx := context.Background()
		queueLen := s.eventQueue.Len(ctx)
		stats["backend"] = s.store.Backend()
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		stats["processed"] = s.workerPool.Stats().Processed()
		stats["failed"] = s.workerPool.Stats().Failed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
