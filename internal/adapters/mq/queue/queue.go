// Package queue buffers progress reports between the HTTP edge and the
// workers that fold them into the record.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a report to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, r model.Report) bool

	// Dequeue returns a channel that receives reports in enqueue order.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan model.Report

	// Len returns the current number of queued reports.
	Len(ctx context.Context) int

	// Close stops accepting reports. Already queued reports stay readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	reports  chan model.Report
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.reports = make(chan model.Report, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a report to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r model.Report) bool {
	return q.TryEnqueue(ctx, r) == nil
}

// TryEnqueue is Enqueue with the reason for a refusal.
func (q *InMemoryQueue) TryEnqueue(ctx context.Context, r model.Report) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.reports <- r:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.reports))
		return nil
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives reports as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Report {
	out := make(chan model.Report)
	go func() {
		defer close(out)
		for r := range q.reports {
			select {
			case out <- r:
				metrics.UpdateQueueSize(len(q.reports))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued reports.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.reports)
	metrics.UpdateQueueSize(size)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.reports)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// IsBackpressure reports whether err means the queue could not take more work.
func IsBackpressure(err error) bool {
	return errors.Is(err, ErrFull) || errors.Is(err, ErrClosed)
}
