package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/levelup/internal/domain/model"
)

func TestSQLiteStore(t *testing.T) {
	Convey("Given a sqlite store on a fresh database", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "progress.db")
		store, err := OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		defer store.Close()
		So(store.Backend(), ShouldEqual, "sqlite")

		Convey("Read returns the default record", func() {
			rec, err := store.Read(ctx)
			So(err, ShouldBeNil)
			So(rec, ShouldResemble, model.Default())
		})

		Convey("Write then Read returns an equal record", func() {
			So(store.Write(ctx, sampleRecord()), ShouldBeNil)
			rec, err := store.Read(ctx)
			So(err, ShouldBeNil)
			So(rec, ShouldResemble, sampleRecord())
		})

		Convey("every write bumps the revision", func() {
			So(store.Write(ctx, sampleRecord()), ShouldBeNil)
			So(store.Write(ctx, sampleRecord()), ShouldBeNil)
			rev, err := store.currentRevision(ctx)
			So(err, ShouldBeNil)
			So(rev, ShouldEqual, 2)
		})

		Convey("a corrupt payload reads as the default record", func() {
			So(store.SetRaw(ctx, []byte("garbage")), ShouldBeNil)
			rec, err := store.Read(ctx)
			So(err, ShouldBeNil)
			So(rec, ShouldResemble, model.Default())
		})

		Convey("custom keys get their own row", func() {
			other, err := OpenSQLite(ctx, path, WithKey("guest"))
			So(err, ShouldBeNil)
			defer other.Close()

			So(store.Write(ctx, sampleRecord()), ShouldBeNil)
			rec, err := other.Read(ctx)
			So(err, ShouldBeNil)
			So(rec, ShouldResemble, model.Default())
		})

		Convey("a closed store refuses writes", func() {
			So(store.Close(), ShouldBeNil)
			err := store.Write(ctx, sampleRecord())
			So(errors.Is(err, ErrPersist), ShouldBeTrue)
			So(store.Close(), ShouldBeNil)
		})
	})
}

func TestSQLiteStoreWatch(t *testing.T) {
	Convey("Given two sqlite stores on the same database", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		path := filepath.Join(t.TempDir(), "progress.db")
		local, err := OpenSQLite(ctx, path, WithPollInterval(20*time.Millisecond))
		So(err, ShouldBeNil)
		defer local.Close()
		remote, err := OpenSQLite(ctx, path)
		So(err, ShouldBeNil)
		defer remote.Close()

		changes := make(chan struct{}, 16)
		go func() { _ = local.Watch(ctx, func() { changes <- struct{}{} }) }()

		Convey("own writes are not reported", func() {
			So(local.Write(ctx, sampleRecord()), ShouldBeNil)
			select {
			case <-changes:
				So("unexpected change notification", ShouldBeEmpty)
			case <-time.After(200 * time.Millisecond):
			}
		})

		Convey("writes from the other store are reported once", func() {
			So(remote.Write(ctx, sampleRecord()), ShouldBeNil)
			select {
			case <-changes:
			case <-time.After(2 * time.Second):
				So("no change notification", ShouldBeEmpty)
			}
			select {
			case <-changes:
				So("duplicate change notification", ShouldBeEmpty)
			case <-time.After(200 * time.Millisecond):
			}
		})
	})
}
