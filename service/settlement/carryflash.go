package settlement

import (
	"fmt"

	"github.com/ericlagergren/decimal"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
)

// CarryFlashMode selects the post settlement PV carry over policy. A closed
// set; anything else is a configuration error caught at startup.
type CarryFlashMode string

const (
	CarryFlashMode_DeductPaid CarryFlashMode = "deduct_paid"
	CarryFlashMode_DeductWeak CarryFlashMode = "deduct_weak"
	CarryFlashMode_FlushAll   CarryFlashMode = "flush_all"
	CarryFlashMode_Disabled   CarryFlashMode = "disabled"
)

// CarryFlash applies one of the carry over policies to a settled weekly
// summary. The pair unit and rate are taken from the same BonusConfig the
// calculators ran with, so the deduction arithmetic can never drift from
// the payout arithmetic.
type CarryFlash struct {
	mode     CarryFlashMode
	pvUnit   *decimal.Big
	pairRate *decimal.Big
}

// NewCarryFlash resolves the configured mode into a strategy. Pure, no IO.
func NewCarryFlash(cfg *config.BonusConfig) (*CarryFlash, error) {
	mode := CarryFlashMode(cfg.CarryFlashMode)
	switch mode {
	case CarryFlashMode_DeductPaid, CarryFlashMode_DeductWeak, CarryFlashMode_FlushAll, CarryFlashMode_Disabled:
	default:
		return nil, fmt.Errorf("unknown carry flash mode %q", cfg.CarryFlashMode)
	}
	return &CarryFlash{
		mode:     mode,
		pvUnit:   cfg.GetPvUnit(),
		pairRate: cfg.GetPairRate(),
	}, nil
}

func (c *CarryFlash) Mode() CarryFlashMode {
	return c.mode
}

// CarryFlashResult holds the end of week legs and the deductions that
// produced them. Deductions become carry_flash ledger entries; ends are
// written once into the summary row.
type CarryFlashResult struct {
	LeftEnd        *decimal.Big
	RightEnd       *decimal.Big
	LeftDeduction  *decimal.Big
	RightDeduction *decimal.Big
}

// Process computes one user's residual PV for the settled week. Never
// mutates the summary and never returns a negative leg.
func (c *CarryFlash) Process(summary *model.UserWeeklySummary) *CarryFlashResult {
	left := conv.ClonePayout(summary.LeftPv.V)
	right := conv.ClonePayout(summary.RightPv.V)

	switch c.mode {
	case CarryFlashMode_Disabled:
		return newCarryFlashResult(left, right, left, right)

	case CarryFlashMode_FlushAll:
		return newCarryFlashResult(left, right, conv.NewDecimalWithPrecision(), conv.NewDecimalWithPrecision())

	case CarryFlashMode_DeductWeak:
		weak := conv.Min(left, right)
		leftEnd := conv.NewDecimalWithPrecision().Sub(left, weak)
		rightEnd := conv.NewDecimalWithPrecision().Sub(right, weak)
		return newCarryFlashResult(left, right, leftEnd, rightEnd)

	default: // deduct_paid
		return c.deductPaid(summary, left, right)
	}
}

// deductPaid removes, from both legs, the PV that the actually paid pair
// bonus consumed, capped at the weak leg. Weak side PV above the rank's cap
// equivalent could never be monetized this week and is flushed as well.
func (c *CarryFlash) deductPaid(summary *model.UserWeeklySummary, left, right *decimal.Big) *CarryFlashResult {
	weak := conv.Min(left, right)

	paidPv := conv.NewDecimalWithPrecision()
	if summary.PairPaidActual != nil && summary.PairPaidActual.V.Sign() > 0 && c.pairRate.Sign() > 0 {
		// paid / (pv_unit * pair_rate) * pv_unit collapses to paid / pair_rate
		paidPv.Quo(summary.PairPaidActual.V, c.pairRate)
	}
	deduction := conv.Min(paidPv, weak)

	leftEnd := conv.NewDecimalWithPrecision().Sub(left, deduction)
	rightEnd := conv.NewDecimalWithPrecision().Sub(right, deduction)

	// flush the cap excess from the weak leg
	if summary.CapPv != nil && summary.CapPv.V.Sign() > 0 {
		excess := conv.NewDecimalWithPrecision().Sub(weak, summary.CapPv.V)
		if excess.Sign() > 0 {
			if left.Cmp(right) <= 0 {
				leftEnd.Sub(leftEnd, excess)
			} else {
				rightEnd.Sub(rightEnd, excess)
			}
		}
	}

	return newCarryFlashResult(left, right, leftEnd, rightEnd)
}

func newCarryFlashResult(leftStart, rightStart, leftEnd, rightEnd *decimal.Big) *CarryFlashResult {
	zero := conv.NewDecimalWithPrecision()
	leftEnd = conv.Max(leftEnd, zero)
	rightEnd = conv.Max(rightEnd, zero)
	return &CarryFlashResult{
		LeftEnd:        leftEnd,
		RightEnd:       rightEnd,
		LeftDeduction:  conv.NewDecimalWithPrecision().Sub(leftStart, leftEnd),
		RightDeduction: conv.NewDecimalWithPrecision().Sub(rightStart, rightEnd),
	}
}

// LedgerEntries renders the deductions as carry flash ledger debits for the
// settled week. PV history stays append only; nothing is mutated in place.
func (r *CarryFlashResult) LedgerEntries(userID uint64, weekKey string) []*model.PvLedgerEntry {
	entries := make([]*model.PvLedgerEntry, 0, 2)
	if r.LeftDeduction.Sign() > 0 {
		entries = append(entries, model.NewPvLedgerEntry(
			userID, userID, model.TreeSideLeft, 0,
			r.LeftDeduction, model.PvDirection_Debit, model.PvSourceType_CarryFlash, weekKey,
		))
	}
	if r.RightDeduction.Sign() > 0 {
		entries = append(entries, model.NewPvLedgerEntry(
			userID, userID, model.TreeSideRight, 0,
			r.RightDeduction, model.PvDirection_Debit, model.PvSourceType_CarryFlash, weekKey,
		))
	}
	return entries
}
