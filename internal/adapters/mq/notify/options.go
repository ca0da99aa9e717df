package notify

import "github.com/okian/levelup/pkg/logger"

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets the logger used to report panicking subscribers.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithChannelBuffer sets the default buffer of channels handed out by
// SubscribeChan when the caller does not ask for one.
func WithChannelBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.chanBuffer = n
		}
	}
}
