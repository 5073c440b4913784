package propagation

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
)

type fakeTree map[uint64]*model.User

func (t fakeTree) GetUser(userID uint64) (*model.User, error) {
	user, ok := t[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

// root(1) ── left ── 2 ── left ── 4
//        └─ right ── 3          └─ right ── 5
func testTree() fakeTree {
	return fakeTree{
		1: {ID: 1, PosID: 0},
		2: {ID: 2, PosID: 1, Position: model.TreeSideLeft},
		3: {ID: 3, PosID: 1, Position: model.TreeSideRight},
		4: {ID: 4, PosID: 2, Position: model.TreeSideLeft},
		5: {ID: 5, PosID: 2, Position: model.TreeSideRight},
	}
}

func TestBuildCredits(t *testing.T) {
	amount := conv.NewFromFloat(1500)

	Convey("It should credit every ancestor on the leg the walk came from", t, func() {
		entries, err := BuildCredits(testTree(), ActivatedOrder{UserID: 5, Amount: amount, OrderRef: "ord-1"}, 64)
		So(err, ShouldBeNil)
		So(len(entries), ShouldEqual, 2)

		So(entries[0].UserID, ShouldEqual, 2)
		So(entries[0].Side, ShouldEqual, model.TreeSideRight)
		So(entries[0].Level, ShouldEqual, 1)

		So(entries[1].UserID, ShouldEqual, 1)
		So(entries[1].Side, ShouldEqual, model.TreeSideLeft)
		So(entries[1].Level, ShouldEqual, 2)

		for _, e := range entries {
			So(e.FromUserID, ShouldEqual, 5)
			So(e.SourceID, ShouldEqual, "ord-1")
			So(e.SourceType, ShouldEqual, model.PvSourceType_Order)
			So(e.Direction, ShouldEqual, model.PvDirection_Credit)
			So(e.Amount.V.Cmp(amount), ShouldEqual, 0)
		}
	})

	Convey("It should produce no credits for an order by the root", t, func() {
		entries, err := BuildCredits(testTree(), ActivatedOrder{UserID: 1, Amount: amount, OrderRef: "ord-2"}, 64)
		So(err, ShouldBeNil)
		So(entries, ShouldBeEmpty)
	})

	Convey("It should stop at the configured maximum depth", t, func() {
		entries, err := BuildCredits(testTree(), ActivatedOrder{UserID: 5, Amount: amount, OrderRef: "ord-3"}, 1)
		So(err, ShouldBeNil)
		So(len(entries), ShouldEqual, 1)
		So(entries[0].UserID, ShouldEqual, 2)
	})

	Convey("It should detect a cycle instead of walking forever", t, func() {
		tree := testTree()
		tree[1] = &model.User{ID: 1, PosID: 4, Position: model.TreeSideLeft}

		_, err := BuildCredits(tree, ActivatedOrder{UserID: 5, Amount: amount, OrderRef: "ord-4"}, 64)
		So(err, ShouldEqual, ErrTreeCycle)
	})

	Convey("It should reject non positive amounts", t, func() {
		_, err := BuildCredits(testTree(), ActivatedOrder{UserID: 5, Amount: conv.NewFromFloat(0), OrderRef: "ord-5"}, 64)
		So(err, ShouldEqual, ErrInvalidAmount)

		_, err = BuildCredits(testTree(), ActivatedOrder{UserID: 5, Amount: conv.NewFromFloat(-10), OrderRef: "ord-6"}, 64)
		So(err, ShouldEqual, ErrInvalidAmount)
	})

	Convey("Re-building the same order yields identical credits (idempotent input)", t, func() {
		first, err := BuildCredits(testTree(), ActivatedOrder{UserID: 4, Amount: amount, OrderRef: "ord-7"}, 64)
		So(err, ShouldBeNil)
		second, err := BuildCredits(testTree(), ActivatedOrder{UserID: 4, Amount: amount, OrderRef: "ord-7"}, 64)
		So(err, ShouldBeNil)

		So(len(first), ShouldEqual, len(second))
		for i := range first {
			So(first[i].UserID, ShouldEqual, second[i].UserID)
			So(first[i].Side, ShouldEqual, second[i].Side)
			So(first[i].SourceID, ShouldEqual, second[i].SourceID)
		}
	})
}
