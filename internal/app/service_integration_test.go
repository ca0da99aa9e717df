package service_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/levelup/internal/adapters/repository"
	service "github.com/okian/levelup/internal/app"
	"github.com/okian/levelup/internal/domain/model"
)

func TestServiceIntegration_SharedFileStore(t *testing.T) {
	Convey("Given two services sharing one record directory", t, func() {
		ctx := context.Background()
		dir := t.TempDir()

		storeA, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)
		storeB, err := repository.NewFileStore(dir)
		So(err, ShouldBeNil)

		a := startService(service.WithStore(storeA))
		defer a.Stop()
		b := startService(service.WithStore(storeB))
		defer b.Stop()

		signalsA := a.SubscribeChan(ctx, 1)
		signalsB := b.SubscribeChan(ctx, 1)
		// Let both watchers register the directory.
		time.Sleep(100 * time.Millisecond)

		Convey("When the first service applies a report", func() {
			out, err := a.Report(ctx, "safety-quest", model.ActivityResult{
				Completed: true, Score: 50, Stars: 2, Badges: []string{"Safety Expert"},
			})
			So(err, ShouldBeNil)

			Convey("Then both services are notified", func() {
				for _, signals := range []<-chan struct{}{signalsA, signalsB} {
					select {
					case <-signals:
					case <-time.After(3 * time.Second):
						So("missing change signal", ShouldBeEmpty)
					}
				}
			})

			Convey("Then the second service reads the same record", func() {
				rec, err := b.Progress(ctx)
				So(err, ShouldBeNil)
				So(rec, ShouldResemble, out.Record)
			})
		})
	})
}

func TestServiceIntegration_SQLiteRestart(t *testing.T) {
	Convey("Given a service over a sqlite database", t, func() {
		ctx := context.Background()
		path := t.TempDir() + "/progress.db"

		store, err := repository.OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		svc := startService(service.WithStore(store))

		_, err = svc.Report(ctx, "quiz", model.ActivityResult{Completed: true, Score: 990, Stars: 3})
		So(err, ShouldBeNil)
		svc.Stop()

		Convey("When a new service opens the same database", func() {
			reopened, err := repository.OpenSQLite(ctx, path)
			So(err, ShouldBeNil)
			next := startService(service.WithStore(reopened))
			defer next.Stop()

			Convey("Then the record survived the restart", func() {
				rec, err := next.Progress(ctx)
				So(err, ShouldBeNil)
				So(rec.Level, ShouldEqual, 1)
				So(rec.Experience, ShouldEqual, 99)
				So(rec.TotalStars, ShouldEqual, 3)
			})
		})
	})
}
