package repository

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/levelup/internal/domain/model"
)

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		So(store.Backend(), ShouldEqual, "memory")

		Convey("Read returns the default record when empty", func() {
			rec, err := store.Read(ctx)
			So(err, ShouldBeNil)
			So(rec, ShouldResemble, model.Default())
		})

		Convey("reads never alias the stored state", func() {
			So(store.Write(ctx, sampleRecord()), ShouldBeNil)
			rec, err := store.Read(ctx)
			So(err, ShouldBeNil)
			rec.PerActivity["safety-quest"].Badges[0] = "Tampered"
			rec.TotalBadges[0] = "Tampered"

			again, err := store.Read(ctx)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, sampleRecord())
		})

		Convey("a failing write keeps the previous payload", func() {
			So(store.Write(ctx, sampleRecord()), ShouldBeNil)
			before := store.Raw()

			store.FailWrites(errors.New("disk full"))
			err := store.Write(ctx, model.Default())
			So(errors.Is(err, ErrPersist), ShouldBeTrue)
			So(store.Raw(), ShouldResemble, before)

			store.FailWrites(nil)
			So(store.Write(ctx, model.Default()), ShouldBeNil)
		})

		Convey("a raw corrupt payload reads as the default record", func() {
			store.SetRaw([]byte("{"))
			rec, err := store.Read(ctx)
			So(err, ShouldBeNil)
			So(rec, ShouldResemble, model.Default())
		})

		Convey("Close stops reads", func() {
			So(store.Close(), ShouldBeNil)
			_, err := store.Read(ctx)
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
		})
	})
}
