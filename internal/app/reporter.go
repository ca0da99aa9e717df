package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/levelup/internal/adapters/mq/notify"
	"github.com/okian/levelup/internal/adapters/repository"
	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/internal/domain/progress"
	"github.com/okian/levelup/pkg/logger"
	"github.com/okian/levelup/pkg/metrics"
)

// Report outcomes, used as metric labels.
const (
	outcomeApplied = "applied"
	outcomeInvalid = "invalid"
	outcomeFailed  = "persist_failure"
	outcomeUnread  = "read_failure"
)

// Reporter is the one entry point activities use to hand over a result.
// It reads the record, folds the result in, writes it back and notifies
// subscribers. Concurrent reports against the same Reporter are applied
// one at a time.
type Reporter struct {
	mu     sync.Mutex
	store  repository.Store
	hub    *notify.Hub
	logger logger.Logger
}

// ReporterOption applies a configuration option to the Reporter.
type ReporterOption func(*Reporter)

// WithReporterLogger sets a custom logger for the reporter.
func WithReporterLogger(l logger.Logger) ReporterOption {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReporter wires a reporter over store and hub.
func NewReporter(store repository.Store, hub *notify.Hub, opts ...ReporterOption) *Reporter {
	r := &Reporter{store: store, hub: hub}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("reporter")
	}
	return r
}

// Report folds a typed result into the record and returns the new record.
func (r *Reporter) Report(ctx context.Context, activityID string, res model.ActivityResult) (model.Record, error) {
	out, err := r.Apply(ctx, activityID, res)
	return out.Record, err
}

// ReportRaw is Report for untyped producer payloads.
func (r *Reporter) ReportRaw(ctx context.Context, activityID string, raw model.RawResult) (model.Record, error) {
	out, err := r.ApplyRaw(ctx, activityID, raw)
	return out.Record, err
}

// Apply is Report returning the full fold outcome.
func (r *Reporter) Apply(ctx context.Context, activityID string, res model.ActivityResult) (progress.Outcome, error) {
	clean, malformed := Sanitize(res)
	return r.apply(ctx, activityID, clean, malformed)
}

// ApplyRaw is ReportRaw returning the full fold outcome.
func (r *Reporter) ApplyRaw(ctx context.Context, activityID string, raw model.RawResult) (progress.Outcome, error) {
	clean, malformed := SanitizeRaw(raw)
	return r.apply(ctx, activityID, clean, malformed)
}

// Read returns the current record.
func (r *Reporter) Read(ctx context.Context) (model.Record, error) {
	return r.store.Read(ctx)
}

// Subscribe registers cb for change notifications.
func (r *Reporter) Subscribe(cb func()) func() {
	return r.hub.Subscribe(cb)
}

func (r *Reporter) apply(ctx context.Context, activityID string, res model.ActivityResult, malformed []string) (progress.Outcome, error) {
	if strings.TrimSpace(activityID) == "" {
		metrics.RecordReport(outcomeInvalid)
		return progress.Outcome{}, ErrInvalidActivity
	}
	if err := ctx.Err(); err != nil {
		return progress.Outcome{}, err
	}
	// Past this point a report either completes or fails on its own terms.
	ctx = context.WithoutCancel(ctx)

	for _, f := range malformed {
		metrics.RecordMalformedField(f)
	}
	if len(malformed) > 0 {
		r.logger.Debug(ctx, "coerced malformed result fields",
			logger.String("activity", activityID),
			logger.Any("fields", malformed),
		)
	}

	start := time.Now()
	out, err := r.commit(ctx, activityID, res)
	if err != nil {
		return progress.Outcome{}, err
	}
	r.hub.Publish()

	metrics.RecordReport(outcomeApplied)
	metrics.RecordReportLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordProgress(out.ExperienceGained, out.LevelsGained, out.Record.Level, out.Record.TotalStars)
	if out.LeveledUp() {
		r.logger.Info(ctx, "level up",
			logger.String("activity", activityID),
			logger.Int("level", out.Record.Level),
			logger.Int("levelsGained", out.LevelsGained),
		)
	}
	return out, nil
}

// commit runs read, fold and write under the reporter lock.
func (r *Reporter) commit(ctx context.Context, activityID string, res model.ActivityResult) (progress.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.store.Read(ctx)
	if err != nil {
		metrics.RecordReport(outcomeUnread)
		r.logger.Error(ctx, "failed to read progress record", logger.Error(err))
		return progress.Outcome{}, fmt.Errorf("read progress record: %w", err)
	}

	out := progress.Fold(current, activityID, res)
	if err := r.store.Write(ctx, out.Record); err != nil {
		metrics.RecordReport(outcomeFailed)
		r.logger.Error(ctx, "failed to persist report",
			logger.String("activity", activityID),
			logger.String("backend", r.store.Backend()),
			logger.Error(err),
		)
		if !errors.Is(err, repository.ErrPersist) {
			err = fmt.Errorf("%w: %w", repository.ErrPersist, err)
		}
		return progress.Outcome{}, fmt.Errorf("report %s: %w", activityID, err)
	}
	return out, nil
}
