package model

import (
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
)

// Transaction credits a settled bonus to a user balance. One row per paid
// bonus line; the balance service consumes these out of band.
type Transaction struct {
	ID        uint64            `gorm:"PRIMARY_KEY" json:"id"`
	RefID     string            `gorm:"column:ref_id" json:"ref_id"`
	RefType   OperationType     `sql:"not null;type:operation_type_t;" json:"ref_type"`
	UserID    uint64            `gorm:"column:user_id" json:"user_id"`
	BonusType BonusType         `gorm:"column:bonus_type" json:"bonus_type"`
	PeriodKey string            `gorm:"column:period_key" json:"period_key"`
	Amount    *postgres.Decimal `gorm:"column:amount" sql:"type:decimal(36,18)" json:"amount"`
	Comment   string            `gorm:"column:comment" json:"comment"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// NewTransaction creates a bonus credit row with every required field explicit.
func NewTransaction(refID string, refType OperationType, userID uint64, bonusType BonusType, periodKey string, amount *decimal.Big, comment string) *Transaction {
	return &Transaction{
		RefID:     refID,
		RefType:   refType,
		UserID:    userID,
		BonusType: bonusType,
		PeriodKey: periodKey,
		Amount:    &postgres.Decimal{V: amount},
		Comment:   comment,
		CreatedAt: time.Now(),
	}
}

type TransactionList struct {
	Transactions []Transaction
	Meta         PagingMeta
}
