package queries

import (
	"gitlab.com/vitanet-network/settlement_api/model"
	"gorm.io/gorm"
)

// GetWeeklySettlementByKey returns the finalized weekly record for a week
// key, or nil when the period has not been settled.
func (repo *Repo) GetWeeklySettlementByKey(weekKey string) (*model.WeeklySettlement, error) {
	settlement := &model.WeeklySettlement{}
	err := repo.Conn.First(settlement, "week_key = ?", weekKey).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// GetQuarterlySettlementByKey returns the finalized quarterly record for a
// quarter key, or nil when the period has not been settled.
func (repo *Repo) GetQuarterlySettlementByKey(quarterKey string) (*model.QuarterlySettlement, error) {
	settlement := &model.QuarterlySettlement{}
	err := repo.Conn.First(settlement, "quarter_key = ?", quarterKey).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// GetWeeklySettlements returns the settlement history, newest first.
func (repo *Repo) GetWeeklySettlements(limit, page int) (*model.WeeklySettlementList, error) {
	settlements := make([]model.WeeklySettlement, 0)
	var rowCount int64 = 0

	dbc := repo.ConnReader.Table("weekly_settlements").Select("count(*) as total").Row()
	_ = dbc.Scan(&rowCount)

	q := repo.ConnReader.Order("id DESC")
	if limit != 0 {
		q = q.Limit(limit).Offset((page - 1) * limit)
	}
	db := q.Find(&settlements)

	list := model.WeeklySettlementList{
		Settlements: settlements,
		Meta: model.PagingMeta{
			Page:  page,
			Count: rowCount,
			Limit: limit,
		},
	}
	return &list, db.Error
}

// GetWeeklySummaries loads the per-user summaries of one settled week.
func (repo *Repo) GetWeeklySummaries(weekKey string) ([]*model.UserWeeklySummary, error) {
	summaries := make([]*model.UserWeeklySummary, 0)
	if err := repo.Conn.Find(&summaries, "week_key = ?", weekKey).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetTransactionsForPeriod returns the bonus credits of one settled period.
func (repo *Repo) GetTransactionsForPeriod(periodKey string, limit, page int) (*model.TransactionList, error) {
	transactions := make([]model.Transaction, 0)
	var rowCount int64 = 0

	q := repo.ConnReader.Where("period_key = ?", periodKey)
	dbc := q.Table("transactions").Select("count(*) as total").Row()
	_ = dbc.Scan(&rowCount)

	q = q.Order("id DESC")
	if limit != 0 {
		q = q.Limit(limit).Offset((page - 1) * limit)
	}
	db := q.Find(&transactions)

	list := model.TransactionList{
		Transactions: transactions,
		Meta: model.PagingMeta{
			Page:  page,
			Count: rowCount,
			Limit: limit,
		},
	}
	return &list, db.Error
}
