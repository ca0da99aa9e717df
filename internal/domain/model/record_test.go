package model_test

import (
	"testing"

	model "github.com/okian/levelup/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestRecord(t *testing.T) {
	convey.Convey("Given the default record", t, func() {
		rec := model.Default()

		convey.Convey("Then it starts at level one with nothing collected", func() {
			convey.So(rec.Level, convey.ShouldEqual, 1)
			convey.So(rec.Experience, convey.ShouldEqual, 0)
			convey.So(rec.TotalStars, convey.ShouldEqual, 0)
			convey.So(rec.TotalBadges, convey.ShouldNotBeNil)
			convey.So(rec.TotalBadges, convey.ShouldBeEmpty)
			convey.So(rec.PerActivity, convey.ShouldNotBeNil)
			convey.So(rec.PerActivity, convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given a populated record", t, func() {
		rec := model.Default()
		rec.TotalBadges = []string{"Expert"}
		rec.PerActivity["quiz"] = model.ActivityEntry{Completed: true, Stars: 3, Badges: []string{"Expert"}}
		rec.PerActivity["maze"] = model.ActivityEntry{Completed: false, Stars: 1}

		convey.Convey("When it is cloned and the clone is mutated", func() {
			clone := rec.Clone()
			clone.TotalBadges[0] = "changed"
			entry := clone.PerActivity["quiz"]
			entry.Badges[0] = "changed"
			clone.PerActivity["new"] = model.ActivityEntry{}

			convey.Convey("Then the original is unaffected", func() {
				convey.So(rec.TotalBadges[0], convey.ShouldEqual, "Expert")
				convey.So(rec.PerActivity["quiz"].Badges[0], convey.ShouldEqual, "Expert")
				convey.So(rec.PerActivity, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("Then ids are sorted and completions counted", func() {
			convey.So(rec.ActivityIDs(), convey.ShouldResemble, []string{"maze", "quiz"})
			convey.So(rec.CompletedCount(), convey.ShouldEqual, 1)
		})
	})

	convey.Convey("Given an activity result", t, func() {
		res := model.ActivityResult{Completed: true, Score: 40, Stars: 1, Badges: []string{"Beginner"}}

		convey.Convey("When converted to an entry", func() {
			entry := res.Entry()
			res.Badges[0] = "mutated"

			convey.Convey("Then the entry owns its badges", func() {
				convey.So(entry.Badges, convey.ShouldResemble, []string{"Beginner"})
				convey.So(entry.Score, convey.ShouldEqual, 40)
			})
		})
	})
}
