package model

import (
	"time"

	"github.com/ericlagergren/decimal/sql/postgres"
)

// QuarterlySettlement is the finalized record of one quarterly pool run,
// one row per quarter key, created exactly once.
type QuarterlySettlement struct {
	ID            uint64            `gorm:"PRIMARY_KEY" json:"id"`
	QuarterKey    string            `gorm:"column:quarter_key" json:"quarter_key"`
	RefID         string            `gorm:"column:ref_id" json:"ref_id"`
	ConfigVersion string            `gorm:"column:config_version" json:"config_version"`
	TotalPv       *postgres.Decimal `gorm:"column:total_pv" sql:"type:decimal(36,18)" json:"total_pv"`
	PoolStockist  *postgres.Decimal `gorm:"column:pool_stockist" sql:"type:decimal(36,18)" json:"pool_stockist"`
	PoolLeader    *postgres.Decimal `gorm:"column:pool_leader" sql:"type:decimal(36,18)" json:"pool_leader"`
	StockistCount int               `gorm:"column:stockist_count" json:"stockist_count"`
	LeaderCount   int               `gorm:"column:leader_count" json:"leader_count"`
	FinalizedAt   time.Time         `gorm:"column:finalized_at" json:"finalized_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (QuarterlySettlement) TableName() string {
	return "quarterly_settlements"
}
