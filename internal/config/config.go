// Package config defines service configuration and its loading.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - External errors are wrapped with this package's sentinel errors.
package config

import "path/filepath"

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the durable record store: file, sqlite or memory.
	StoreBackend string `koanf:"store_backend"`

	// StoreDir is the directory holding the record file for the file backend.
	StoreDir string `koanf:"store_dir"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `koanf:"sqlite_path"`

	// WatchPollMS is the revision polling interval of the sqlite watcher.
	WatchPollMS int `koanf:"watch_poll_ms"`

	// EventQueueSize bounds the asynchronous report queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of report workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many delivery ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// TotalActivities is the number of activities offered, used by summaries.
	TotalActivities int `koanf:"total_activities"`

	// StreamBuffer is the change signal buffer of each progress stream.
	StreamBuffer int `koanf:"stream_buffer"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		StoreBackend:    BackendFile,
		StoreDir:        "data",
		SQLitePath:      filepath.Join("data", "progress.db"),
		WatchPollMS:     500,
		EventQueueSize:  1_024,
		WorkerCount:     1,
		DedupeSize:      10_000,
		TotalActivities: 8,
		StreamBuffer:    1,
	}
}
