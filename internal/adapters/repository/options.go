package repository

import (
	"time"

	"github.com/okian/levelup/pkg/logger"
)

// DefaultKey is the well-known name of the durable record slot.
const DefaultKey = "gameProgress"

const defaultPollInterval = 500 * time.Millisecond

type options struct {
	key          string
	logger       logger.Logger
	pollInterval time.Duration
}

func newOptions(component string, opts []Option) options {
	o := options{key: DefaultKey, pollInterval: defaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named(component)
	}
	return o
}

// Option configures a record store.
type Option func(*options)

// WithKey overrides the name of the durable slot.
func WithKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.key = key
		}
	}
}

// WithLogger sets the logger used for corruption and persistence diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPollInterval sets how often polling watchers check for external writes.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}
