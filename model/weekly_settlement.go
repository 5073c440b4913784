package model

import (
	"time"

	"github.com/ericlagergren/decimal/sql/postgres"
)

// WeeklySettlement is the finalized record of one weekly run. One row per
// week key, created exactly once; terminal once FinalizedAt is set. Dry runs
// are never persisted here. CarryFlashAt stays NULL until the carry flash
// pass commits, so a crash between the two transactions is detectable and
// the next invocation can resume instead of returning the prior result.
type WeeklySettlement struct {
	ID                 uint64            `gorm:"PRIMARY_KEY" json:"id"`
	WeekKey            string            `gorm:"column:week_key" json:"week_key"`
	RefID              string            `gorm:"column:ref_id" json:"ref_id"`
	ConfigVersion      string            `gorm:"column:config_version" json:"config_version"`
	TotalPv            *postgres.Decimal `gorm:"column:total_pv" sql:"type:decimal(36,18)" json:"total_pv"`
	KFactor            *postgres.Decimal `gorm:"column:k_factor" sql:"type:decimal(36,18)" json:"k_factor"`
	GlobalReserve      *postgres.Decimal `gorm:"column:global_reserve" sql:"type:decimal(36,18)" json:"global_reserve"`
	FixedSales         *postgres.Decimal `gorm:"column:fixed_sales" sql:"type:decimal(36,18)" json:"fixed_sales"`
	VariableBonusTotal *postgres.Decimal `gorm:"column:variable_bonus_total" sql:"type:decimal(36,18)" json:"variable_bonus_total"`
	BonusBreakdown     BonusBreakdown    `gorm:"column:bonus_breakdown;type:jsonb" json:"bonus_breakdown"`
	FinalizedAt        time.Time         `gorm:"column:finalized_at" json:"finalized_at"`
	CarryFlashAt       *time.Time        `gorm:"column:carry_flash_at" json:"carry_flash_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

func (WeeklySettlement) TableName() string {
	return "weekly_settlements"
}

type WeeklySettlementList struct {
	Settlements []WeeklySettlement
	Meta        PagingMeta
}
