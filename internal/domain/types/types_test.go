package types_test

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/levelup/internal/domain/model"
	types "github.com/okian/levelup/internal/domain/types"
)

func TestReportResponse(t *testing.T) {
	Convey("Given a report response", t, func() {
		rec := model.Default()
		rec.PerActivity["quiz"] = model.ActivityEntry{Completed: true, Score: 80, Stars: 3, Badges: []string{}}
		resp := types.ReportResponse{Record: rec, LevelsGained: 1, ExperienceGained: 8}

		Convey("When encoding it", func() {
			data, err := json.Marshal(resp)
			So(err, ShouldBeNil)

			var got map[string]any
			So(json.Unmarshal(data, &got), ShouldBeNil)

			Convey("Then the record keeps its stored field names", func() {
				record, ok := got["record"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(record, ShouldContainKey, "perActivity")
				So(record, ShouldContainKey, "totalStars")
				So(got["levels_gained"], ShouldEqual, 1.0)
				So(got["experience_gained"], ShouldEqual, 8.0)
			})
		})
	})
}

func TestEventAck(t *testing.T) {
	Convey("Given an ack without an event id", t, func() {
		data, err := json.Marshal(types.EventAck{Status: "accepted"})
		So(err, ShouldBeNil)

		Convey("Then the id is omitted", func() {
			So(string(data), ShouldEqual, `{"status":"accepted","duplicate":false}`)
		})
	})
}
