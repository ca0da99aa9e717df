package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/pkg/logger"
	"github.com/okian/levelup/pkg/metrics"
)

const sqliteBackend = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS records (
  key        TEXT PRIMARY KEY,
  payload    BLOB NOT NULL,
  revision   INTEGER NOT NULL DEFAULT 1,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLiteStore keeps the record in a single row of a SQLite database. Each
// write bumps the row revision, which lets other processes sharing the
// database notice the change.
type SQLiteStore struct {
	db           *sql.DB
	key          string
	logger       logger.Logger
	pollInterval time.Duration

	mu       sync.Mutex
	revision int64 // last revision written or observed by this store

	closed atomic.Bool
}

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions("sqlite-store", opts)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return nil, fmt.Errorf("create store dir %s: %w", dir, err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection is enough for a single-row store and keeps writes serial.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		key:          o.key,
		logger:       o.logger,
		pollInterval: o.pollInterval,
	}
	rev, err := s.currentRevision(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.revision = rev
	return s, nil
}

// Backend implements Store.
func (s *SQLiteStore) Backend() string { return sqliteBackend }

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context) (model.Record, error) {
	if s.closed.Load() {
		return model.Default(), ErrClosed
	}
	start := time.Now()
	defer func() { metrics.RecordStoreRead(sqliteBackend, sinceMs(start)) }()

	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE key = ?`, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Default(), nil
	}
	if err != nil {
		return model.Default(), fmt.Errorf("select record: %w", err)
	}
	return decodeOrDefault(ctx, s.logger, sqliteBackend, payload), nil
}

// Write implements Store. The upsert runs in one transaction; on failure
// the previous row is untouched.
func (s *SQLiteStore) Write(ctx context.Context, rec model.Record) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: %w", ErrPersist, ErrClosed)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWrite(sqliteBackend, sinceMs(start)) }()

	data, err := Encode(rec)
	if err != nil {
		metrics.RecordStoreWriteError(sqliteBackend)
		return fmt.Errorf("%w: encode: %w", ErrPersist, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rev, err := s.upsert(ctx, data)
	if err != nil {
		metrics.RecordStoreWriteError(sqliteBackend)
		s.logger.Error(ctx, "failed to persist progress record", logger.String("key", s.key), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.revision = rev
	return nil
}

func (s *SQLiteStore) upsert(ctx context.Context, data []byte) (rev int64, err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
INSERT INTO records(key, payload, revision, updated_at) VALUES(?, ?, 1, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET
  payload    = excluded.payload,
  revision   = records.revision + 1,
  updated_at = CURRENT_TIMESTAMP
RETURNING revision`, s.key, data).Scan(&rev)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *SQLiteStore) currentRevision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM records WHERE key = ?`, s.key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select revision: %w", err)
	}
	return rev, nil
}

// Watch implements Watcher by polling the row revision.
func (s *SQLiteStore) Watch(ctx context.Context, onChange func()) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.closed.Load() {
				return ErrClosed
			}
			rev, err := s.currentRevision(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn(ctx, "revision poll failed", logger.Error(err))
				continue
			}
			if s.observe(rev) {
				onChange()
			}
		}
	}
}

func (s *SQLiteStore) observe(rev int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev == s.revision {
		return false
	}
	s.revision = rev
	return true
}

// SetRaw stores payload verbatim, bypassing the codec. It exists for
// repair tooling and tests that need to plant arbitrary payloads.
func (s *SQLiteStore) SetRaw(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, err := s.upsert(ctx, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.revision = rev
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
