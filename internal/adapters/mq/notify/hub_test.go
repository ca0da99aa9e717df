package notify

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/levelup/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestHub(t *testing.T) {
	convey.Convey("Given a hub", t, func() {
		h := NewHub()

		convey.Convey("every subscriber observes one publish exactly once", func() {
			var a, b atomic.Int32
			h.Subscribe(func() { a.Add(1) })
			h.Subscribe(func() { b.Add(1) })
			convey.So(h.Len(), convey.ShouldEqual, 2)

			h.Publish()
			convey.So(a.Load(), convey.ShouldEqual, 1)
			convey.So(b.Load(), convey.ShouldEqual, 1)

			h.Relay()
			convey.So(a.Load(), convey.ShouldEqual, 2)
		})

		convey.Convey("unsubscribed callbacks are not invoked again", func() {
			var calls atomic.Int32
			unsubscribe := h.Subscribe(func() { calls.Add(1) })
			h.Publish()
			unsubscribe()
			unsubscribe()
			h.Publish()

			convey.So(calls.Load(), convey.ShouldEqual, 1)
			convey.So(h.Len(), convey.ShouldEqual, 0)
		})

		convey.Convey("a panicking subscriber does not stop the others", func() {
			var calls atomic.Int32
			h.Subscribe(func() { panic("boom") })
			h.Subscribe(func() { calls.Add(1) })

			convey.So(func() { h.Publish() }, convey.ShouldNotPanic)
			convey.So(calls.Load(), convey.ShouldEqual, 1)
		})

		convey.Convey("callbacks may unsubscribe themselves during dispatch", func() {
			var calls atomic.Int32
			var unsubscribe func()
			unsubscribe = h.Subscribe(func() {
				calls.Add(1)
				unsubscribe()
			})
			h.Publish()
			h.Publish()
			convey.So(calls.Load(), convey.ShouldEqual, 1)
		})

		convey.Convey("concurrent publishes reach every subscriber", func() {
			const publishers, rounds = 8, 50
			var calls atomic.Int64
			h.Subscribe(func() { calls.Add(1) })

			var wg sync.WaitGroup
			for i := 0; i < publishers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < rounds; j++ {
						h.Publish()
					}
				}()
			}
			wg.Wait()
			convey.So(calls.Load(), convey.ShouldEqual, publishers*rounds)
		})
	})
}

func TestHubSubscribeChan(t *testing.T) {
	convey.Convey("Given a channel subscription", t, func() {
		h := NewHub()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ch := h.SubscribeChan(ctx, 1)

		convey.Convey("a publish delivers a signal", func() {
			h.Publish()
			select {
			case _, ok := <-ch:
				convey.So(ok, convey.ShouldBeTrue)
			case <-time.After(time.Second):
				convey.So("no signal", convey.ShouldBeEmpty)
			}
		})

		convey.Convey("signals coalesce for slow readers", func() {
			for i := 0; i < 10; i++ {
				h.Publish()
			}
			convey.So(len(ch), convey.ShouldEqual, 1)
		})

		convey.Convey("a hub configured with a buffer hands it out by default", func() {
			buffered := NewHub(WithChannelBuffer(4))
			signals := buffered.SubscribeChan(ctx, 0)
			convey.So(cap(signals), convey.ShouldEqual, 4)
			for i := 0; i < 10; i++ {
				buffered.Publish()
			}
			convey.So(len(signals), convey.ShouldEqual, 4)
			convey.So(cap(buffered.SubscribeChan(ctx, 2)), convey.ShouldEqual, 2)
		})

		convey.Convey("cancelling the context releases the subscription", func() {
			convey.So(h.Len(), convey.ShouldEqual, 1)
			cancel()

			deadline := time.After(time.Second)
			for open := true; open; {
				select {
				case _, open = <-ch:
				case <-deadline:
					convey.So("channel not closed", convey.ShouldBeEmpty)
					return
				}
			}
			convey.So(h.Len(), convey.ShouldEqual, 0)
			convey.So(func() { h.Publish() }, convey.ShouldNotPanic)
		})
	})
}
