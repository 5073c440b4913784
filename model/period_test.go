package model

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWeekKeys(t *testing.T) {
	Convey("WeekKeyOf should produce ISO week keys", t, func() {
		So(WeekKeyOf(time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2025-W10")
		// Jan 1st 2027 belongs to ISO week 53 of 2026
		So(WeekKeyOf(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2026-W53")
	})

	Convey("ParseWeekKey should round trip and reject malformed keys", t, func() {
		year, week, err := ParseWeekKey("2025-W10")
		So(err, ShouldBeNil)
		So(year, ShouldEqual, 2025)
		So(week, ShouldEqual, 10)

		for _, bad := range []string{"", "2025-10", "2025-W00", "2025-W54", "25-W10", "2025-Q1", "2025-W1"} {
			_, _, err := ParseWeekKey(bad)
			So(err, ShouldNotBeNil)
		}
	})

	Convey("ParseWeekKey should accept week 53 only in 53 week years", t, func() {
		// 2026 has 53 ISO weeks, 2025 has 52
		_, week, err := ParseWeekKey("2026-W53")
		So(err, ShouldBeNil)
		So(week, ShouldEqual, 53)

		_, _, err = ParseWeekKey("2025-W53")
		So(err, ShouldNotBeNil)

		from, _, err := WeekKeyRange("2026-W53")
		So(err, ShouldBeNil)
		So(WeekKeyOf(from), ShouldEqual, "2026-W53")
	})

	Convey("PrevWeekKey should step across year boundaries", t, func() {
		So(PrevWeekKey(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2024-W52")
	})
}

func TestWeekKeyRange(t *testing.T) {
	Convey("WeekKeyRange should span Monday to Monday", t, func() {
		from, to, err := WeekKeyRange("2025-W10")
		So(err, ShouldBeNil)
		So(from.Weekday(), ShouldEqual, time.Monday)
		So(from.Format("2006-01-02"), ShouldEqual, "2025-03-03")
		So(to.Sub(from), ShouldEqual, 7*24*time.Hour)
		So(WeekKeyOf(from), ShouldEqual, "2025-W10")
		So(WeekKeyOf(to.Add(-time.Second)), ShouldEqual, "2025-W10")
	})

	Convey("WeekKeyRange should reject malformed keys", t, func() {
		_, _, err := WeekKeyRange("bogus")
		So(err, ShouldNotBeNil)
	})
}

func TestQuarterKeyRange(t *testing.T) {
	Convey("QuarterKeyRange should span three calendar months", t, func() {
		from, to, err := QuarterKeyRange("2025-Q2")
		So(err, ShouldBeNil)
		So(from.Format("2006-01-02"), ShouldEqual, "2025-04-01")
		So(to.Format("2006-01-02"), ShouldEqual, "2025-07-01")
	})
}

func TestQuarterKeys(t *testing.T) {
	Convey("QuarterKeyOf should map months to quarters", t, func() {
		So(QuarterKeyOf(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2025-Q1")
		So(QuarterKeyOf(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2025-Q4")
	})

	Convey("PrevQuarterKey should wrap into the previous year", t, func() {
		So(PrevQuarterKey(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2024-Q4")
		So(PrevQuarterKey(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2025-Q3")
	})

	Convey("ParseQuarterKey should validate bounds", t, func() {
		year, quarter, err := ParseQuarterKey("2025-Q3")
		So(err, ShouldBeNil)
		So(year, ShouldEqual, 2025)
		So(quarter, ShouldEqual, 3)

		for _, bad := range []string{"", "2025-Q0", "2025-Q5", "2025-W10", "2025Q1"} {
			_, _, err := ParseQuarterKey(bad)
			So(err, ShouldNotBeNil)
		}
	})
}
