package model

import (
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	"gitlab.com/vitanet-network/settlement_api/conv"
)

// UserPvState is the materialized running sum of the PV ledger per user.
// The ledger is the source of truth; this row must always equal the signed
// sum of ledger entries and is recomputable from them at any time.
type UserPvState struct {
	UserID    uint64            `gorm:"column:user_id;PRIMARY_KEY" json:"user_id"`
	LeftPv    *postgres.Decimal `gorm:"column:left_pv" sql:"type:decimal(36,18)" json:"left_pv"`
	RightPv   *postgres.Decimal `gorm:"column:right_pv" sql:"type:decimal(36,18)" json:"right_pv"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (UserPvState) TableName() string {
	return "user_pv_states"
}

// WeakPv is the smaller of the two legs.
func (s *UserPvState) WeakPv() *decimal.Big {
	return conv.Min(s.LeftPv.V, s.RightPv.V)
}

// StrongPv is the larger of the two legs.
func (s *UserPvState) StrongPv() *decimal.Big {
	return conv.Max(s.LeftPv.V, s.RightPv.V)
}

// SideAmount returns the requested leg.
func (s *UserPvState) SideAmount(side TreeSide) *decimal.Big {
	if side == TreeSideLeft {
		return s.LeftPv.V
	}
	return s.RightPv.V
}
