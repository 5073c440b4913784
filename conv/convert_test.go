package conv

import (
	"testing"

	"github.com/ericlagergren/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func dec(s string) *decimal.Big {
	d, _ := NewDecimalWithPrecision().SetString(s)
	return d
}

func TestRoundToPayout(t *testing.T) {
	Convey("It should round half up to two decimal places", t, func() {
		So(RoundToPayout(dec("1.005")).String(), ShouldEqual, "1.01")
		So(RoundToPayout(dec("449.994")).String(), ShouldEqual, "449.99")
		So(RoundToPayout(dec("449.995")).String(), ShouldEqual, "450.00")
		So(RoundToPayout(dec("450")).String(), ShouldEqual, "450.00")
	})
}

func TestFloorQuo(t *testing.T) {
	Convey("It should return the whole number of units in an amount", t, func() {
		unit := dec("3000")
		So(FloorQuo(dec("9000"), unit).String(), ShouldEqual, "3")
		So(FloorQuo(dec("8999"), unit).String(), ShouldEqual, "2")
		So(FloorQuo(dec("2999"), unit).String(), ShouldEqual, "0")
	})
}

func TestMinMax(t *testing.T) {
	Convey("Min and Max should not mutate their arguments", t, func() {
		a := dec("10")
		b := dec("20")

		So(Min(a, b).Cmp(a), ShouldEqual, 0)
		So(Max(a, b).Cmp(b), ShouldEqual, 0)
		So(a.String(), ShouldEqual, "10")
		So(b.String(), ShouldEqual, "20")
	})
}
