package settlement

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/conv"
)

func testBonusConfig() *config.BonusConfig {
	return &config.BonusConfig{
		Version:       "2025-test",
		DirectRate:    0.05,
		LevelPairRate: 0.02,
		PairRate:      0.10,
		PvUnit:        3000,
		ManagementRates: config.ManagementRates{
			Gen1to3:       0.03,
			Gen4to5:       0.01,
			MaxGeneration: 5,
		},
		PairCap:           map[int]float64{1: 10000, 2: 30000, 3: 100000},
		GlobalReserveRate: 0.04,
		TotalCapRate:      0.70,
		CarryFlashMode:    "deduct_paid",
	}
}

func snap(userID, refBy uint64, rank int, left, right float64) *UserSnapshot {
	return &UserSnapshot{
		UserID:    userID,
		RefBy:     refBy,
		Rank:      rank,
		Activated: true,
		LeftPv:    conv.NewFromFloat(left),
		RightPv:   conv.NewFromFloat(right),
	}
}

func TestComputePairBonuses(t *testing.T) {
	cfg := testBonusConfig()
	one := conv.NewFromFloat(1)

	Convey("Three whole pairs on the weak leg pay pairs*unit*rate", t, func() {
		lines := ComputePairBonuses([]*UserSnapshot{snap(7, 0, 1, 12000, 9000)}, cfg)
		So(len(lines), ShouldEqual, 1)
		So(lines[0].UserID, ShouldEqual, 7)
		So(lines[0].Pairs, ShouldEqual, 3)

		ApplyKFactor(lines, nil, one)
		So(lines[0].Paid.String(), ShouldEqual, "900.00")
	})

	Convey("The rank cap bounds the payable", t, func() {
		lines := ComputePairBonuses([]*UserSnapshot{snap(7, 0, 1, 900000, 600000)}, cfg)
		So(len(lines), ShouldEqual, 1)
		So(lines[0].Pairs, ShouldEqual, 200)
		So(lines[0].Payable.Cmp(lines[0].CapAmount), ShouldEqual, 0)

		ApplyKFactor(lines, nil, one)
		So(lines[0].Paid.String(), ShouldEqual, "10000.00")
	})

	Convey("A rank without a configured cap pays zero without error", t, func() {
		lines := ComputePairBonuses([]*UserSnapshot{snap(7, 0, 99, 12000, 9000)}, cfg)
		So(len(lines), ShouldEqual, 1)
		So(lines[0].Payable.Sign(), ShouldEqual, 0)
	})

	Convey("A weak leg below one unit earns nothing", t, func() {
		lines := ComputePairBonuses([]*UserSnapshot{snap(7, 0, 1, 12000, 2999)}, cfg)
		So(lines, ShouldBeEmpty)
	})

	Convey("Output is ordered by user id", t, func() {
		lines := ComputePairBonuses([]*UserSnapshot{
			snap(9, 0, 1, 6000, 6000),
			snap(4, 0, 1, 6000, 6000),
		}, cfg)
		So(len(lines), ShouldEqual, 2)
		So(lines[0].UserID, ShouldEqual, 4)
		So(lines[1].UserID, ShouldEqual, 9)
	})
}

func TestComputeManagementBonuses(t *testing.T) {
	cfg := testBonusConfig()
	one := conv.NewFromFloat(1)

	Convey("Every referral generation earns its override on the capped pair payable", t, func() {
		// referral chain 1 <- 2 <- 3, only 3 earns a pair bonus
		snapshot := []*UserSnapshot{
			snap(1, 0, 1, 0, 0),
			snap(2, 1, 1, 0, 0),
			snap(3, 2, 1, 12000, 9000),
		}
		pairLines := ComputePairBonuses(snapshot, cfg)
		So(len(pairLines), ShouldEqual, 1)

		managementLines := ComputeManagementBonuses(snapshot, pairLines, cfg)
		So(len(managementLines), ShouldEqual, 2)

		ApplyKFactor(nil, managementLines, one)
		// gen1 (user 2) and gen2 (user 1) both at 3% of 900
		So(managementLines[0].UserID, ShouldEqual, 1)
		So(managementLines[0].Paid.String(), ShouldEqual, "27.00")
		So(managementLines[1].UserID, ShouldEqual, 2)
		So(managementLines[1].Paid.String(), ShouldEqual, "27.00")
	})

	Convey("Generations four and five fall to the lower rate, beyond five earn nothing", t, func() {
		// chain 1 <- 2 <- 3 <- 4 <- 5 <- 6 <- 7, only 7 earns
		snapshot := []*UserSnapshot{
			snap(1, 0, 1, 0, 0),
			snap(2, 1, 1, 0, 0),
			snap(3, 2, 1, 0, 0),
			snap(4, 3, 1, 0, 0),
			snap(5, 4, 1, 0, 0),
			snap(6, 5, 1, 0, 0),
			snap(7, 6, 1, 12000, 9000),
		}
		pairLines := ComputePairBonuses(snapshot, cfg)
		managementLines := ComputeManagementBonuses(snapshot, pairLines, cfg)

		// gen1..5 are users 6,5,4,3,2; user 1 is gen6 and earns nothing
		So(len(managementLines), ShouldEqual, 5)
		ApplyKFactor(nil, managementLines, one)

		byUser := make(map[uint64]string)
		for _, line := range managementLines {
			byUser[line.UserID] = line.Paid.String()
		}
		So(byUser[6], ShouldEqual, "27.00")
		So(byUser[5], ShouldEqual, "27.00")
		So(byUser[4], ShouldEqual, "27.00")
		So(byUser[3], ShouldEqual, "9.00")
		So(byUser[2], ShouldEqual, "9.00")
		So(byUser, ShouldNotContainKey, uint64(1))
	})

	Convey("Overrides from several earners accumulate per upline", t, func() {
		snapshot := []*UserSnapshot{
			snap(1, 0, 1, 0, 0),
			snap(2, 1, 1, 12000, 9000),
			snap(3, 1, 1, 12000, 9000),
		}
		pairLines := ComputePairBonuses(snapshot, cfg)
		managementLines := ComputeManagementBonuses(snapshot, pairLines, cfg)

		So(len(managementLines), ShouldEqual, 1)
		So(managementLines[0].UserID, ShouldEqual, 1)
		So(managementLines[0].Sources, ShouldEqual, 2)
		ApplyKFactor(nil, managementLines, conv.NewFromFloat(1))
		So(managementLines[0].Paid.String(), ShouldEqual, "54.00")
	})
}

func TestComputeKFactor(t *testing.T) {
	cfg := testBonusConfig()

	Convey("A pool larger than the potential leaves the factor at one", t, func() {
		details, err := ComputeKFactor(
			conv.NewFromFloat(1000000),
			conv.NewFromFloat(5000),
			conv.NewFromFloat(20000),
			cfg,
		)
		So(err, ShouldBeNil)
		So(details.KFactor.Cmp(conv.NewFromFloat(1)), ShouldEqual, 0)
		So(details.CapacityExceeded, ShouldBeFalse)
	})

	Convey("A pool smaller than the potential damps every line proportionally", t, func() {
		// cap 70000, reserve 4000, fixed 6000 -> pool 60000 against 120000
		details, err := ComputeKFactor(
			conv.NewFromFloat(100000),
			conv.NewFromFloat(6000),
			conv.NewFromFloat(120000),
			cfg,
		)
		So(err, ShouldBeNil)
		So(details.KFactor.Cmp(conv.NewFromFloat(1)), ShouldBeLessThan, 0)
		So(damp(conv.NewFromFloat(1000), details.KFactor).String(), ShouldEqual, "500.00")
	})

	Convey("Fixed costs above the cap collapse the factor to zero", t, func() {
		details, err := ComputeKFactor(
			conv.NewFromFloat(100000),
			conv.NewFromFloat(80000),
			conv.NewFromFloat(120000),
			cfg,
		)
		So(err, ShouldBeNil)
		So(details.KFactor.Sign(), ShouldEqual, 0)
		So(details.RemainingPool.Sign(), ShouldEqual, 0)
		So(details.CapacityExceeded, ShouldBeTrue)
	})

	Convey("Zero variable potential keeps the factor at one without dividing", t, func() {
		details, err := ComputeKFactor(
			conv.NewFromFloat(100000),
			conv.NewFromFloat(80000),
			conv.NewDecimalWithPrecision(),
			cfg,
		)
		So(err, ShouldBeNil)
		So(details.KFactor.Cmp(conv.NewFromFloat(1)), ShouldEqual, 0)
		So(details.CapacityExceeded, ShouldBeFalse)
	})

	Convey("A negative total PV is a data integrity failure", t, func() {
		_, err := ComputeKFactor(
			conv.NewFromFloat(-1),
			conv.NewDecimalWithPrecision(),
			conv.NewDecimalWithPrecision(),
			cfg,
		)
		So(err, ShouldNotBeNil)
		serr, ok := err.(*Error)
		So(ok, ShouldBeTrue)
		So(serr.Kind, ShouldEqual, ErrorKind_DataIntegrity)
	})

	Convey("Paid variable bonuses never exceed the remaining pool by more than rounding", t, func() {
		snapshot := []*UserSnapshot{
			snap(1, 0, 1, 500000, 400000),
			snap(2, 1, 2, 300000, 350000),
			snap(3, 1, 3, 90000, 120000),
		}
		pairLines := ComputePairBonuses(snapshot, cfg)
		managementLines := ComputeManagementBonuses(snapshot, pairLines, cfg)
		potential := SumVariablePotential(pairLines, managementLines)

		// cap 56000, reserve 3200, fixed 9000 -> pool 43800 against ~50170
		details, err := ComputeKFactor(conv.NewFromFloat(80000), conv.NewFromFloat(9000), potential, cfg)
		So(err, ShouldBeNil)
		So(details.KFactor.Cmp(conv.NewFromFloat(1)), ShouldBeLessThan, 0)
		ApplyKFactor(pairLines, managementLines, details.KFactor)

		paidTotal := conv.NewDecimalWithPrecision()
		for _, line := range pairLines {
			paidTotal.Add(paidTotal, line.Paid)
		}
		for _, line := range managementLines {
			paidTotal.Add(paidTotal, line.Paid)
		}

		// one cent of slack per line item
		epsilon := conv.NewFromFloat(0.01 * float64(len(pairLines)+len(managementLines)))
		bound := conv.NewDecimalWithPrecision().Add(details.RemainingPool, epsilon)
		So(paidTotal.Cmp(bound), ShouldBeLessThanOrEqualTo, 0)
	})
}
