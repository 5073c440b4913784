package model

import (
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
)

type PendingBonusStatus string

const (
	PendingBonusStatus_Pending  PendingBonusStatus = "pending"
	PendingBonusStatus_Released PendingBonusStatus = "released"
	PendingBonusStatus_Failed   PendingBonusStatus = "failed"
)

type PendingBonusReleaseMode string

const (
	PendingBonusReleaseMode_Auto   PendingBonusReleaseMode = "auto"
	PendingBonusReleaseMode_Manual PendingBonusReleaseMode = "manual"
)

// PendingBonus parks a bonus earned by a recipient who has not activated
// yet. Auto bonuses are released in bulk on the activation event; manual
// ones wait for an operator batch call. Released rows are immutable.
type PendingBonus struct {
	ID          uint64                  `gorm:"PRIMARY_KEY" json:"id"`
	RecipientID uint64                  `gorm:"column:recipient_id" json:"recipient_id"`
	Amount      *postgres.Decimal       `gorm:"column:amount" sql:"type:decimal(36,18)" json:"amount"`
	BonusType   BonusType               `gorm:"column:bonus_type" json:"bonus_type"`
	SourceType  PvSourceType            `gorm:"column:source_type" json:"source_type"`
	SourceID    string                  `gorm:"column:source_id" json:"source_id"`
	Status      PendingBonusStatus      `gorm:"column:status" json:"status"`
	ReleaseMode PendingBonusReleaseMode `gorm:"column:release_mode" json:"release_mode"`
	ReleasedTrx string                  `gorm:"column:released_trx" json:"released_trx"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

func (PendingBonus) TableName() string {
	return "pending_bonuses"
}

// NewPendingBonus parks the given bonus amount for a not yet activated recipient.
func NewPendingBonus(recipientID uint64, amount *decimal.Big, bonusType BonusType, sourceType PvSourceType, sourceID string, mode PendingBonusReleaseMode) *PendingBonus {
	return &PendingBonus{
		RecipientID: recipientID,
		Amount:      &postgres.Decimal{V: amount},
		BonusType:   bonusType,
		SourceType:  sourceType,
		SourceID:    sourceID,
		Status:      PendingBonusStatus_Pending,
		ReleaseMode: mode,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

type PendingBonusList struct {
	Bonuses []PendingBonus
	Meta    PagingMeta
}

// PendingBonusReleaseResult is the per-id outcome of a batch release call.
type PendingBonusReleaseResult struct {
	ID       uint64 `json:"id"`
	Released bool   `json:"released"`
	Message  string `json:"message,omitempty"`
}
