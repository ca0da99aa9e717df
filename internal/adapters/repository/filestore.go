package repository

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/levelup/internal/domain/model"
	"github.com/okian/levelup/pkg/logger"
	"github.com/okian/levelup/pkg/metrics"
)

const (
	fileBackend   = "file"
	dirPermission = 0o755
	tmpPattern    = ".progress-*.tmp"
)

// FileStore keeps the record as <dir>/<key>.json. Writes go to a temporary
// file that is renamed over the record, so a failed write never leaves a
// partially written record behind.
type FileStore struct {
	dir    string
	path   string
	logger logger.Logger

	mu     sync.Mutex
	digest [sha256.Size]byte // last content written or observed by this store

	closed atomic.Bool
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	o := newOptions("file-store", opts)
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	s := &FileStore{
		dir:    dir,
		path:   filepath.Join(dir, o.key+".json"),
		logger: o.logger,
	}
	if data, err := os.ReadFile(s.path); err == nil {
		s.digest = sha256.Sum256(data)
	}
	return s, nil
}

// Path returns the record file location.
func (s *FileStore) Path() string { return s.path }

// Backend implements Store.
func (s *FileStore) Backend() string { return fileBackend }

// Read implements Store.
func (s *FileStore) Read(ctx context.Context) (model.Record, error) {
	if s.closed.Load() {
		return model.Default(), ErrClosed
	}
	start := time.Now()
	defer func() { metrics.RecordStoreRead(fileBackend, sinceMs(start)) }()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Default(), nil
	}
	if err != nil {
		return model.Default(), fmt.Errorf("read %s: %w", s.path, err)
	}
	return decodeOrDefault(ctx, s.logger, fileBackend, data), nil
}

// Write implements Store.
func (s *FileStore) Write(ctx context.Context, rec model.Record) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: %w", ErrPersist, ErrClosed)
	}
	start := time.Now()
	defer func() { metrics.RecordStoreWrite(fileBackend, sinceMs(start)) }()

	data, err := Encode(rec)
	if err != nil {
		metrics.RecordStoreWriteError(fileBackend)
		return fmt.Errorf("%w: encode: %w", ErrPersist, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.replace(data); err != nil {
		metrics.RecordStoreWriteError(fileBackend)
		s.logger.Error(ctx, "failed to persist progress record", logger.String("path", s.path), logger.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	s.digest = sha256.Sum256(data)
	return nil
}

// replace atomically swaps the record file for data.
func (s *FileStore) replace(data []byte) (err error) {
	tmp, err := os.CreateTemp(s.dir, tmpPattern)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Watch implements Watcher using filesystem notifications on the store
// directory. Renames land as create events on the record path.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.logger.Debug(ctx, "watching record file", logger.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if s.observe() {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn(ctx, "record watcher error", logger.Error(err))
		}
	}
}

// observe reports whether the record file holds content this store has not
// written or observed yet, and remembers it.
func (s *FileStore) observe() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	d := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if d == s.digest {
		return false
	}
	s.digest = d
	return true
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	return nil
}
