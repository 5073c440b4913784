package queries

import (
	"database/sql"
	"time"

	"github.com/ericlagergren/decimal"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gorm.io/gorm"
)

func scanDecimal(row *sql.Row) (*decimal.Big, error) {
	var raw sql.NullString
	if err := row.Scan(&raw); err != nil {
		return nil, err
	}
	total := conv.NewDecimalWithPrecision()
	if raw.Valid {
		total.SetString(raw.String)
	}
	return total, nil
}

// SumDistinctOrderPv totals the PV of every distinct order in the window.
// Each order credits the same amount to many ancestors under one source_id,
// so the order's PV is counted once, not once per ancestor.
func (repo *Repo) SumDistinctOrderPv(from, to time.Time) (*decimal.Big, error) {
	sub := repo.ConnReader.
		Table("pv_ledger_entries").
		Select("source_id, max(amount) as order_pv").
		Where("source_type = ?", model.PvSourceType_Order).
		Where("direction = ?", model.PvDirection_Credit).
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("source_id")

	row := repo.ConnReader.
		Table("(?) as orders", sub).
		Select("sum(order_pv) as total").
		Row()
	return scanDecimal(row)
}

// SumFixedSalesForPeriod totals the direct and level pair bonuses already
// booked against the period, both the paid transactions and the amounts
// parked as pending for unactivated recipients.
func (repo *Repo) SumFixedSalesForPeriod(periodKey string, from, to time.Time) (*decimal.Big, error) {
	paidRow := repo.ConnReader.
		Table("transactions").
		Select("sum(amount) as total").
		Where("period_key = ?", periodKey).
		Where("bonus_type IN ?", []model.BonusType{model.BonusType_Direct, model.BonusType_LevelPair}).
		Row()
	paid, err := scanDecimal(paidRow)
	if err != nil {
		return nil, err
	}

	pendingRow := repo.ConnReader.
		Table("pending_bonuses").
		Select("sum(amount) as total").
		Where("bonus_type IN ?", []model.BonusType{model.BonusType_Direct, model.BonusType_LevelPair}).
		Where("status <> ?", model.PendingBonusStatus_Failed).
		Where("created_at >= ? AND created_at < ?", from, to).
		Row()
	pending, err := scanDecimal(pendingRow)
	if err != nil {
		return nil, err
	}

	paid.Add(paid, pending)
	return paid, nil
}

// WeakPvByUser returns each user's weak leg as of now. Used by the
// quarterly leader pool eligibility scan.
func (repo *Repo) WeakPvByUser() (map[uint64]*decimal.Big, error) {
	states, err := repo.GetAllPvStates()
	if err != nil {
		return nil, err
	}
	weak := make(map[uint64]*decimal.Big, len(states))
	for _, state := range states {
		weak[state.UserID] = state.WeakPv()
	}
	return weak, nil
}

// UpdateSummaryEndsTx writes the carry flash outcome into the summary row.
// The *_end columns are written exactly once per week.
func (repo *Repo) UpdateSummaryEndsTx(tx *gorm.DB, summary *model.UserWeeklySummary) error {
	return tx.Model(&model.UserWeeklySummary{}).
		Where("id = ?", summary.ID).
		Updates(map[string]interface{}{
			"left_pv_end":  summary.LeftPvEnd,
			"right_pv_end": summary.RightPvEnd,
			"updated_at":   time.Now(),
		}).Error
}
