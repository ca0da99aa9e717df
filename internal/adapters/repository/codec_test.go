package repository

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/levelup/internal/domain/model"
)

func TestEncode(t *testing.T) {
	Convey("Given a record with nil collections", t, func() {
		rec := model.Record{Level: 2, Experience: 40}

		Convey("Encode writes empty collections instead of null", func() {
			data, err := Encode(rec)
			So(err, ShouldBeNil)

			var got map[string]any
			So(json.Unmarshal(data, &got), ShouldBeNil)
			So(got["totalBadges"], ShouldResemble, []any{})
			So(got["perActivity"], ShouldResemble, map[string]any{})
			So(got["level"], ShouldEqual, 2.0)
			So(got["experience"], ShouldEqual, 40.0)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Decode", t, func() {
		Convey("round trips an encoded record", func() {
			rec := model.Default()
			rec.Level = 4
			rec.Experience = 55
			rec.PerActivity["safety-quest"] = model.ActivityEntry{Completed: true, Score: 85, Stars: 3, Badges: []string{"Safety Expert"}}
			rec.PerActivity["traffic"] = model.ActivityEntry{Completed: false, Score: 20, Stars: 0, Badges: []string{}}
			rec.TotalStars = 3
			rec.TotalBadges = []string{"Safety Expert"}

			data, err := Encode(rec)
			So(err, ShouldBeNil)

			got, defaulted, err := Decode(data)
			So(err, ShouldBeNil)
			So(defaulted, ShouldBeEmpty)
			So(got, ShouldResemble, rec)
		})

		Convey("rejects payloads that are not JSON objects", func() {
			for _, payload := range []string{"{not json", "null", "[]", "42", `"text"`, ""} {
				rec, _, err := Decode([]byte(payload))
				So(errors.Is(err, ErrCorruptRecord), ShouldBeTrue)
				So(rec, ShouldResemble, model.Default())
			}
		})

		Convey("defaults missing fields", func() {
			rec, defaulted, err := Decode([]byte(`{}`))
			So(err, ShouldBeNil)
			So(defaulted, ShouldBeEmpty)
			So(rec, ShouldResemble, model.Default())
		})

		Convey("defaults fields with the wrong type and reports them", func() {
			rec, defaulted, err := Decode([]byte(`{"level":"three","experience":true,"perActivity":7}`))
			So(err, ShouldBeNil)
			So(defaulted, ShouldResemble, []string{"level", "experience", "perActivity"})
			So(rec, ShouldResemble, model.Default())
		})

		Convey("ignores unknown fields", func() {
			rec, defaulted, err := Decode([]byte(`{"level":2,"theme":"dark","perActivity":{}}`))
			So(err, ShouldBeNil)
			So(defaulted, ShouldBeEmpty)
			So(rec.Level, ShouldEqual, 2)
		})

		Convey("recomputes totals from the entries", func() {
			payload := `{"level":1,"experience":0,"totalStars":99,"totalBadges":["Ghost"],
				"perActivity":{"b":{"completed":true,"score":70,"stars":2,"badges":["Shared","B"]},
				"a":{"completed":true,"score":90,"stars":3,"badges":["A","Shared"]}}}`
			rec, _, err := Decode([]byte(payload))
			So(err, ShouldBeNil)
			So(rec.TotalStars, ShouldEqual, 5)
			So(rec.TotalBadges, ShouldResemble, []string{"A", "Shared", "B"})
		})

		Convey("accepts the legacy per-activity field name", func() {
			rec, defaulted, err := Decode([]byte(`{"level":2,"gameProgress":{"quiz":{"completed":true,"score":60,"stars":2,"badges":["Quiz Whiz"]}}}`))
			So(err, ShouldBeNil)
			So(defaulted, ShouldBeEmpty)
			So(rec.PerActivity, ShouldContainKey, "quiz")
			So(rec.TotalStars, ShouldEqual, 2)
		})

		Convey("prefers perActivity over the legacy name", func() {
			rec, _, err := Decode([]byte(`{"perActivity":{"a":{"stars":1}},"gameProgress":{"b":{"stars":3}}}`))
			So(err, ShouldBeNil)
			So(rec.ActivityIDs(), ShouldResemble, []string{"a"})
		})

		Convey("drops malformed entries and zeroes malformed entry fields", func() {
			payload := `{"perActivity":{"ok":{"completed":"yes","score":"high","stars":2.9,"badges":["X",3,"","X"]},"broken":5}}`
			rec, defaulted, err := Decode([]byte(payload))
			So(err, ShouldBeNil)
			So(defaulted, ShouldResemble, []string{"perActivity.broken"})
			So(rec.PerActivity, ShouldNotContainKey, "broken")

			e := rec.PerActivity["ok"]
			So(e.Completed, ShouldBeFalse)
			So(e.Score, ShouldEqual, 0)
			So(e.Stars, ShouldEqual, 2)
			So(e.Badges, ShouldResemble, []string{"X"})
		})

		Convey("folds stored experience overflow into levels", func() {
			rec, _, err := Decode([]byte(`{"level":2,"experience":250}`))
			So(err, ShouldBeNil)
			So(rec.Level, ShouldEqual, 4)
			So(rec.Experience, ShouldEqual, 50)
		})

		Convey("lifts out of range values to their floor", func() {
			rec, _, err := Decode([]byte(`{"level":0,"experience":-30}`))
			So(err, ShouldBeNil)
			So(rec.Level, ShouldEqual, model.DefaultLevel)
			So(rec.Experience, ShouldEqual, 0)
		})

		Convey("round trips values beyond the int32 range", func() {
			rec := model.Default()
			rec.Level = math.MaxInt32 + 10
			rec.Experience = 99
			rec.PerActivity["marathon"] = model.ActivityEntry{Completed: true, Score: math.MaxInt32, Stars: 3, Badges: []string{}}
			rec.TotalStars = 3

			data, err := Encode(rec)
			So(err, ShouldBeNil)

			got, defaulted, err := Decode(data)
			So(err, ShouldBeNil)
			So(defaulted, ShouldBeEmpty)
			So(got, ShouldResemble, rec)
		})

		Convey("accepts the largest integer it can write", func() {
			rec, defaulted, err := Decode([]byte(`{"level":9223372036854775807}`))
			So(err, ShouldBeNil)
			So(defaulted, ShouldBeEmpty)
			So(rec.Level, ShouldEqual, math.MaxInt64)
		})

		Convey("rejects numbers outside the int64 range", func() {
			rec, defaulted, err := Decode([]byte(`{"level":1e40}`))
			So(err, ShouldBeNil)
			So(defaulted, ShouldResemble, []string{"level"})
			So(rec.Level, ShouldEqual, model.DefaultLevel)
		})
	})
}
