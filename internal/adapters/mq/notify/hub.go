// Package notify fans out "the progress record changed" signals to
// in-process subscribers.
//
// Signals carry no payload; subscribers re-read the record through the
// reporting facade.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/levelup/pkg/logger"
	"github.com/okian/levelup/pkg/metrics"
)

// Notification origins, used as metric labels.
const (
	OriginLocal    = "local"
	OriginExternal = "external"
)

const defaultChanBuffer = 1

// Hub is a multi-subscriber change notifier. The zero value is not usable;
// use NewHub.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]func()

	chanBuffer int
	logger     logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:       make(map[uint64]func()),
		chanBuffer: defaultChanBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("notify")
	}
	return h
}

// Subscribe registers cb and returns a function that removes it. The
// returned function may be called any number of times.
func (h *Hub) Subscribe(cb func()) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = cb
	n := len(h.subs)
	h.mu.Unlock()
	metrics.UpdateSubscribers(n)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			n := len(h.subs)
			h.mu.Unlock()
			metrics.UpdateSubscribers(n)
		})
	}
}

// SubscribeChan returns a channel that receives a signal after every
// publish. Signals coalesce when the reader falls behind: a pending signal
// already means "re-read". The subscription ends and the channel is closed
// when ctx is done.
func (h *Hub) SubscribeChan(ctx context.Context, buffer int) <-chan struct{} {
	if buffer <= 0 {
		buffer = h.chanBuffer
	}
	ch := make(chan struct{}, buffer)

	var mu sync.Mutex
	closed := false
	unsubscribe := h.Subscribe(func() {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}

// Publish notifies every current subscriber of a change made in this
// process.
func (h *Hub) Publish() { h.publish(OriginLocal) }

// Relay notifies every current subscriber of a change observed in the
// durable store but made elsewhere.
func (h *Hub) Relay() { h.publish(OriginExternal) }

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// publish dispatches on a snapshot so callbacks may subscribe or
// unsubscribe without deadlocking.
func (h *Hub) publish(origin string) {
	h.mu.RLock()
	snapshot := make([]func(), 0, len(h.subs))
	for _, cb := range h.subs {
		snapshot = append(snapshot, cb)
	}
	h.mu.RUnlock()

	metrics.RecordNotification(origin)
	for _, cb := range snapshot {
		h.dispatch(cb)
	}
}

func (h *Hub) dispatch(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSubscriberPanic()
			h.logger.Error(context.Background(), "subscriber panicked",
				logger.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	cb()
}
