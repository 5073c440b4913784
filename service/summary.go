package service

import (
	"errors"

	"gitlab.com/vitanet-network/settlement_api/model"
)

// UserPVSummary is the read model behind the member PV endpoint.
type UserPVSummary struct {
	UserID   uint64 `json:"user_id"`
	LeftPv   string `json:"left_pv"`
	RightPv  string `json:"right_pv"`
	WeakPv   string `json:"weak_pv"`
	StrongPv string `json:"strong_pv"`
}

// GetUserPVSummary returns a user's current PV position, zero valued for a
// user with no ledger history.
func (service *Service) GetUserPVSummary(userID uint64) (*UserPVSummary, error) {
	state, err := service.repo.GetUserPvState(userID)
	if err != nil {
		return nil, err
	}
	return &UserPVSummary{
		UserID:   userID,
		LeftPv:   state.LeftPv.V.String(),
		RightPv:  state.RightPv.V.String(),
		WeakPv:   state.WeakPv().String(),
		StrongPv: state.StrongPv().String(),
	}, nil
}

// KFactorDetails is the audit view of one finalized week's damping math.
type KFactorDetails struct {
	WeekKey            string               `json:"week_key"`
	ConfigVersion      string               `json:"config_version"`
	TotalPv            string               `json:"total_pv"`
	GlobalReserve      string               `json:"global_reserve"`
	FixedSales         string               `json:"fixed_sales"`
	KFactor            string               `json:"k_factor"`
	VariableBonusTotal string               `json:"variable_bonus_total"`
	BonusBreakdown     model.BonusBreakdown `json:"bonus_breakdown"`
	FinalizedAt        string               `json:"finalized_at"`
}

var ErrWeekNotSettled = errors.New("week has not been settled")

// GetKFactorDetails returns the persisted damping inputs of a finalized week.
func (service *Service) GetKFactorDetails(weekKey string) (*KFactorDetails, error) {
	settlement, err := service.repo.GetWeeklySettlementByKey(weekKey)
	if err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, ErrWeekNotSettled
	}
	return &KFactorDetails{
		WeekKey:            settlement.WeekKey,
		ConfigVersion:      settlement.ConfigVersion,
		TotalPv:            settlement.TotalPv.V.String(),
		GlobalReserve:      settlement.GlobalReserve.V.String(),
		FixedSales:         settlement.FixedSales.V.String(),
		KFactor:            settlement.KFactor.V.String(),
		VariableBonusTotal: settlement.VariableBonusTotal.V.String(),
		BonusBreakdown:     settlement.BonusBreakdown,
		FinalizedAt:        settlement.FinalizedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}

// GetWeeklySettlements lists the settlement history.
func (service *Service) GetWeeklySettlements(limit, page int) (*model.WeeklySettlementList, error) {
	return service.repo.GetWeeklySettlements(limit, page)
}

// GetUserLedger lists one user's PV ledger entries.
func (service *Service) GetUserLedger(userID uint64, limit, page int) (*model.PvLedgerEntryList, error) {
	return service.repo.GetLedgerEntriesForUser(userID, limit, page)
}

// GetPendingBonuses lists one recipient's parked bonuses.
func (service *Service) GetPendingBonuses(recipientID uint64, limit, page int) (*model.PendingBonusList, error) {
	return service.repo.GetPendingBonusesForRecipient(recipientID, limit, page)
}

// GetPeriodTransactions lists the bonus credits of one settled period.
func (service *Service) GetPeriodTransactions(periodKey string, limit, page int) (*model.TransactionList, error) {
	return service.repo.GetTransactionsForPeriod(periodKey, limit, page)
}
