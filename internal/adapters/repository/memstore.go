package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/pkg/logger"
)

const memoryBackend = "memory"

// MemoryStore keeps the serialized record in process memory. It goes
// through the same codec as the durable backends so snapshots never alias.
type MemoryStore struct {
	mu      sync.Mutex
	payload []byte
	failErr error
	logger  logger.Logger
	closed  bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions("memory-store", opts)
	return &MemoryStore{logger: o.logger}
}

// Backend implements Store.
func (s *MemoryStore) Backend() string { return memoryBackend }

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context) (model.Record, error) {
	s.mu.Lock()
	payload, closed := s.payload, s.closed
	s.mu.Unlock()

	if closed {
		return model.Default(), ErrClosed
	}
	if payload == nil {
		return model.Default(), nil
	}
	return decodeOrDefault(ctx, s.logger, memoryBackend, payload), nil
}

// Write implements Store.
func (s *MemoryStore) Write(_ context.Context, rec model.Record) error {
	data, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersist, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return fmt.Errorf("%w: %w", ErrPersist, ErrClosed)
	case s.failErr != nil:
		return fmt.Errorf("%w: %w", ErrPersist, s.failErr)
	}
	s.payload = data
	return nil
}

// FailWrites makes every following Write fail with err until called with nil.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

// SetRaw replaces the stored payload verbatim.
func (s *MemoryStore) SetRaw(payload []byte) {
	s.mu.Lock()
	s.payload = append([]byte(nil), payload...)
	s.mu.Unlock()
}

// Raw returns a copy of the stored payload.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.payload...)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
