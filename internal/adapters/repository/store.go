// Package repository persists the account progress record.
//
// Every backend stores one serialized record under a well-known key. Reads
// never fail on missing or corrupt data: they fall back to the default
// record. Writes either replace the stored record or leave it untouched.
package repository

import (
	"context"
	"time"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/pkg/logger"
	"github.com/okian/levelup/pkg/metrics"
)

// Store provides read/write access to the durable progress record.
type Store interface {
	// Read returns the stored record, or the default record when nothing is
	// stored or the payload is corrupt. It only fails on I/O errors.
	Read(ctx context.Context) (model.Record, error)

	// Write persists rec. Errors wrap ErrPersist.
	Write(ctx context.Context, rec model.Record) error

	// Backend names the implementation for logs and metrics.
	Backend() string

	Close() error
}

// Watcher is implemented by stores that can observe writes made by other
// processes sharing the same durable storage.
type Watcher interface {
	// Watch blocks until ctx is done, calling onChange after every external
	// write. Writes made through the same store value are not reported.
	Watch(ctx context.Context, onChange func()) error
}

// decodeOrDefault turns a stored payload into a record, healing corruption.
func decodeOrDefault(ctx context.Context, log logger.Logger, backend string, payload []byte) model.Record {
	rec, defaulted, err := Decode(payload)
	if err != nil {
		metrics.RecordCorruptRecord(backend)
		log.Warn(ctx, "stored progress record is corrupt; using defaults",
			logger.String("backend", backend),
			logger.Int("bytes", len(payload)),
			logger.Error(err),
		)
		return model.Default()
	}
	if len(defaulted) > 0 {
		log.Warn(ctx, "stored progress record has malformed fields; defaulted",
			logger.String("backend", backend),
			logger.Any("fields", defaulted),
		)
	}
	return rec
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
