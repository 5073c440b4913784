package model

import (
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	"gitlab.com/vitanet-network/settlement_api/conv"
)

// UserWeeklySummary is the per-user snapshot of one settled week. The *_end
// columns start equal to the snapshot and are written exactly once by the
// carry-flash strategy after the settlement is finalized.
type UserWeeklySummary struct {
	ID             uint64            `gorm:"PRIMARY_KEY" json:"id"`
	WeekKey        string            `gorm:"column:week_key" json:"week_key"`
	UserID         uint64            `gorm:"column:user_id" json:"user_id"`
	LeftPv         *postgres.Decimal `gorm:"column:left_pv" sql:"type:decimal(36,18)" json:"left_pv"`
	RightPv        *postgres.Decimal `gorm:"column:right_pv" sql:"type:decimal(36,18)" json:"right_pv"`
	LeftPvEnd      *postgres.Decimal `gorm:"column:left_pv_end" sql:"type:decimal(36,18)" json:"left_pv_end"`
	RightPvEnd     *postgres.Decimal `gorm:"column:right_pv_end" sql:"type:decimal(36,18)" json:"right_pv_end"`
	PairPaidActual *postgres.Decimal `gorm:"column:pair_paid_actual" sql:"type:decimal(36,18)" json:"pair_paid_actual"`
	CapAmount      *postgres.Decimal `gorm:"column:cap_amount" sql:"type:decimal(36,18)" json:"cap_amount"`
	CapPv          *postgres.Decimal `gorm:"column:cap_pv" sql:"type:decimal(36,18)" json:"cap_pv"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func (UserWeeklySummary) TableName() string {
	return "user_weekly_summaries"
}

// WeakPv is the smaller snapshot leg.
func (s *UserWeeklySummary) WeakPv() *decimal.Big {
	return conv.Min(s.LeftPv.V, s.RightPv.V)
}
