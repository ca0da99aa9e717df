package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/levelup/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"LEVELUP_CONFIG",
	"LEVELUP_ADDR",
	"LEVELUP_LOG_LEVEL",
	"LEVELUP_STORE_BACKEND",
	"LEVELUP_STORE_DIR",
	"LEVELUP_SQLITE_PATH",
	"LEVELUP_WATCH_POLL_MS",
	"LEVELUP_QUEUE_SIZE",
	"LEVELUP_WORKER_COUNT",
	"LEVELUP_DEDUPE_SIZE",
	"LEVELUP_TOTAL_ACTIVITIES",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "levelup.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "file")
				convey.So(cfg.TotalActivities, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("LEVELUP_ADDR", ":8080")
			_ = os.Setenv("LEVELUP_STORE_BACKEND", "sqlite")
			_ = os.Setenv("LEVELUP_SQLITE_PATH", "/tmp/progress.db")
			_ = os.Setenv("LEVELUP_QUEUE_SIZE", "64")
			_ = os.Setenv("LEVELUP_WORKER_COUNT", "2")
			_ = os.Setenv("LEVELUP_TOTAL_ACTIVITIES", "12")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/tmp/progress.db")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.TotalActivities, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
# progress service
addr: ":9090"
store_backend: memory
queue_size: 300
worker_count: 4
dedupe_size: 50
`)
			_ = os.Setenv("LEVELUP_CONFIG", path)
			_ = os.Setenv("LEVELUP_WORKER_COUNT", "8")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")          // From file
				convey.So(cfg.StoreBackend, convey.ShouldEqual, "memory") // From file
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 300)    // From file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)         // Overridden by env
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50)         // From file
				convey.So(cfg.TotalActivities, convey.ShouldEqual, 8)     // From defaults
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("LEVELUP_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("LEVELUP_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("LEVELUP_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("LEVELUP_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown backend", func() {
			_ = os.Setenv("LEVELUP_STORE_BACKEND", "redis")

			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "redis")
			})
		})

		convey.Convey("When the sqlite backend has no path", func() {
			_ = os.Setenv("LEVELUP_STORE_BACKEND", "sqlite")
			_ = os.Setenv("LEVELUP_SQLITE_PATH", " ")

			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When total activities is zero", func() {
			_ = os.Setenv("LEVELUP_TOTAL_ACTIVITIES", "0")

			_, err := config.Load(ctx)

			convey.Convey("Then it should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "total_activities")
			})
		})
	})
}
