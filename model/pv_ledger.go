package model

import (
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
)

type PvSourceType string

const (
	PvSourceType_Order      PvSourceType = "order"
	PvSourceType_Adjustment PvSourceType = "adjustment"
	PvSourceType_CarryFlash PvSourceType = "carry_flash"
	// PvSourceType_Settlement marks pending bonus provenance for settlement
	// paid lines. Never written to the PV ledger itself.
	PvSourceType_Settlement PvSourceType = "settlement"
)

type PvDirection string

const (
	PvDirection_Credit PvDirection = "credit"
	PvDirection_Debit  PvDirection = "debit"
)

// PvLedgerEntry is one immutable PV fact. Entries are never updated or
// deleted; corrections are new offsetting entries. The unique index on
// (source_type, source_id, user_id, side, direction) is the idempotency
// authority for re-processed orders.
type PvLedgerEntry struct {
	ID         uint64            `gorm:"PRIMARY_KEY" wire:"id"`
	UserID     uint64            `gorm:"column:user_id" json:"user_id" wire:"user_id"`
	FromUserID uint64            `gorm:"column:from_user_id" json:"from_user_id" wire:"from_user_id"`
	Side       TreeSide          `gorm:"column:side" json:"side" wire:"side"`
	Level      int               `gorm:"column:level" json:"level" wire:"level"`
	Amount     *postgres.Decimal `gorm:"column:amount" sql:"type:decimal(36,18)" wire:"amount"`
	Direction  PvDirection       `gorm:"column:direction" json:"direction" wire:"direction"`
	SourceType PvSourceType      `gorm:"column:source_type" json:"source_type" wire:"source_type"`
	SourceID   string            `gorm:"column:source_id" json:"source_id" wire:"source_id"`
	CreatedAt  time.Time         `json:"created_at" wire:"created_at"`
}

func (PvLedgerEntry) TableName() string {
	return "pv_ledger_entries"
}

// NewPvLedgerEntry builds a ledger fact with every required field explicit.
func NewPvLedgerEntry(userID, fromUserID uint64, side TreeSide, level int, amount *decimal.Big, direction PvDirection, sourceType PvSourceType, sourceID string) *PvLedgerEntry {
	return &PvLedgerEntry{
		UserID:     userID,
		FromUserID: fromUserID,
		Side:       side,
		Level:      level,
		Amount:     &postgres.Decimal{V: amount},
		Direction:  direction,
		SourceType: sourceType,
		SourceID:   sourceID,
		CreatedAt:  time.Now(),
	}
}

// Signed returns the amount with the direction applied.
func (e *PvLedgerEntry) Signed() *decimal.Big {
	amount := new(decimal.Big).Copy(e.Amount.V)
	if e.Direction == PvDirection_Debit {
		amount.Neg(amount)
	}
	return amount
}

type PvLedgerEntryList struct {
	Entries []PvLedgerEntry
	Meta    PagingMeta
}
