package settlement

import (
	"sort"

	"github.com/ericlagergren/decimal"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/conv"
)

// PairLine is one user's pair bonus for the period. Theoretical is the
// uncapped payable, Payable the rank capped amount, Paid the K damped final
// amount set by ApplyKFactor.
type PairLine struct {
	UserID      uint64
	Rank        int
	Pairs       uint64
	Theoretical *decimal.Big
	Payable     *decimal.Big
	CapAmount   *decimal.Big
	Paid        *decimal.Big
}

// ManagementLine aggregates one upline's override on the pair volume of
// their referral downlines.
type ManagementLine struct {
	UserID      uint64
	Sources     int
	Theoretical *decimal.Big
	Paid        *decimal.Big
}

// ComputePairBonuses derives the pair bonus for every user in the snapshot.
// pairs = floor(weak_pv / pv_unit); payable = pairs * pv_unit * pair_rate,
// capped at the rank's weekly cap. A rank without a configured cap pays
// zero, silently. Output is ordered by user id so runs are deterministic.
func ComputePairBonuses(snapshot []*UserSnapshot, cfg *config.BonusConfig) []*PairLine {
	unit := cfg.GetPvUnit()
	rate := cfg.GetPairRate()

	lines := make([]*PairLine, 0, len(snapshot))
	for _, user := range snapshot {
		weak := user.WeakPv()
		if weak.Sign() <= 0 || unit.Sign() <= 0 {
			continue
		}
		pairs, ok := conv.FloorQuo(weak, unit).Uint64()
		if !ok || pairs == 0 {
			continue
		}

		theoretical := conv.NewDecimalWithPrecision().SetUint64(pairs)
		theoretical.Mul(theoretical, unit)
		theoretical.Mul(theoretical, rate)

		capAmount := cfg.GetPairCap(user.Rank)
		payable := conv.Min(theoretical, capAmount)

		lines = append(lines, &PairLine{
			UserID:      user.UserID,
			Rank:        user.Rank,
			Pairs:       pairs,
			Theoretical: theoretical,
			Payable:     payable,
			CapAmount:   capAmount,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].UserID < lines[j].UserID })
	return lines
}

// ComputeManagementBonuses walks each pair earner's referral chain upward
// and credits every generation its override rate on the earner's capped
// pair payable. Generations beyond the configured maximum earn nothing.
func ComputeManagementBonuses(snapshot []*UserSnapshot, pairLines []*PairLine, cfg *config.BonusConfig) []*ManagementLine {
	byID := make(map[uint64]*UserSnapshot, len(snapshot))
	for _, user := range snapshot {
		byID[user.UserID] = user
	}

	maxGen := cfg.ManagementRates.MaxGeneration
	if maxGen == 0 {
		maxGen = 5
	}

	accrued := make(map[uint64]*ManagementLine)
	for _, line := range pairLines {
		if line.Payable.Sign() <= 0 {
			continue
		}
		current, ok := byID[line.UserID]
		if !ok {
			continue
		}
		for generation := 1; generation <= maxGen; generation++ {
			if current.RefBy == 0 {
				break
			}
			parent, ok := byID[current.RefBy]
			if !ok {
				break
			}
			rate := cfg.GenerationRate(generation)
			if rate.Sign() > 0 {
				share := conv.NewDecimalWithPrecision()
				share.Mul(line.Payable, rate)

				entry, ok := accrued[parent.UserID]
				if !ok {
					entry = &ManagementLine{
						UserID:      parent.UserID,
						Theoretical: conv.NewDecimalWithPrecision(),
					}
					accrued[parent.UserID] = entry
				}
				entry.Theoretical.Add(entry.Theoretical, share)
				entry.Sources++
			}
			current = parent
		}
	}

	lines := make([]*ManagementLine, 0, len(accrued))
	for _, line := range accrued {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].UserID < lines[j].UserID })
	return lines
}

// KFactorDetails is the full damping computation, persisted with the
// settlement for audit and replay.
type KFactorDetails struct {
	TotalPv           *decimal.Big
	TotalCap          *decimal.Big
	GlobalReserve     *decimal.Big
	FixedSales        *decimal.Big
	RemainingPool     *decimal.Big
	VariablePotential *decimal.Big
	KFactor           *decimal.Big
	CapacityExceeded  bool
}

// ComputeKFactor derives the damping factor that scales every variable
// bonus so the period's total payout never exceeds the remaining pool.
// A negative or NaN total PV aborts the run as a data integrity failure.
func ComputeKFactor(totalPv, fixedSales, variablePotential *decimal.Big, cfg *config.BonusConfig) (*KFactorDetails, error) {
	if totalPv == nil || totalPv.IsNaN(0) || totalPv.Sign() < 0 {
		return nil, newError(ErrorKind_DataIntegrity, "total PV for period is negative or not a number")
	}

	totalCap := conv.NewDecimalWithPrecision()
	totalCap.Mul(totalPv, conv.NewFromFloat(cfg.TotalCapRate))

	globalReserve := conv.NewDecimalWithPrecision()
	globalReserve.Mul(totalPv, conv.NewFromFloat(cfg.GlobalReserveRate))

	remainingPool := conv.NewDecimalWithPrecision()
	remainingPool.Sub(totalCap, globalReserve)
	remainingPool.Sub(remainingPool, fixedSales)
	remainingPool = conv.Max(remainingPool, conv.NewDecimalWithPrecision())

	one := conv.NewFromFloat(1)
	kFactor := conv.NewFromFloat(1)
	capacityExceeded := false
	if variablePotential.Sign() > 0 {
		kFactor.Quo(remainingPool, variablePotential)
		kFactor = conv.Min(kFactor, one)
		capacityExceeded = remainingPool.Sign() == 0
	}

	return &KFactorDetails{
		TotalPv:           conv.ClonePayout(totalPv),
		TotalCap:          totalCap,
		GlobalReserve:     globalReserve,
		FixedSales:        conv.ClonePayout(fixedSales),
		RemainingPool:     remainingPool,
		VariablePotential: conv.ClonePayout(variablePotential),
		KFactor:           kFactor,
		CapacityExceeded:  capacityExceeded,
	}, nil
}

// ApplyKFactor scales every variable line by the damping factor and rounds
// per line item, half up to currency precision. Rounding is never applied
// to the aggregate, so no cross user drift can accumulate.
func ApplyKFactor(pairLines []*PairLine, managementLines []*ManagementLine, kFactor *decimal.Big) {
	for _, line := range pairLines {
		line.Paid = damp(line.Payable, kFactor)
	}
	for _, line := range managementLines {
		line.Paid = damp(line.Theoretical, kFactor)
	}
}

func damp(amount, kFactor *decimal.Big) *decimal.Big {
	paid := conv.NewDecimalWithPrecision()
	paid.Mul(amount, kFactor)
	return conv.RoundToPayout(paid)
}

// SumVariablePotential totals the uncapped side of the damping equation.
func SumVariablePotential(pairLines []*PairLine, managementLines []*ManagementLine) *decimal.Big {
	total := conv.NewDecimalWithPrecision()
	for _, line := range pairLines {
		total.Add(total, line.Payable)
	}
	for _, line := range managementLines {
		total.Add(total, line.Theoretical)
	}
	return total
}
