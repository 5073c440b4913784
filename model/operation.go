package model

import (
	"time"

	gouuid "github.com/nu7hatch/gouuid"
)

type OperationStatus string

const (
	OperationStatus_Pending   OperationStatus = "pending"
	OperationStatus_Accepted  OperationStatus = "accepted"
	OperationStatus_Failed    OperationStatus = "failed"
	OperationStatus_Completed OperationStatus = "completed"
)

type OperationType string

const (
	OperationType_BonusPayout      OperationType = "bonus_payout"
	OperationType_PoolDividend     OperationType = "pool_dividend"
	OperationType_PendingRelease   OperationType = "pending_release"
	OperationType_CarryFlash       OperationType = "carry_flash"
	OperationType_Adjustment       OperationType = "adjustment"
	OperationType_OrderActivation  OperationType = "order_activation"
	OperationType_SettlementWeekly OperationType = "settlement_weekly"
)

// Operation provides a reference for any balance change.
type Operation struct {
	ID      uint64          `gorm:"PRIMARY_KEY" json:"id"`
	RefID   string          `gorm:"column:ref_id" json:"ref_id"`
	RefType OperationType   `sql:"not null;type:operation_type_t;" json:"ref_type"`
	Status  OperationStatus `sql:"not null;type:operation_status_t;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// NewOperation creates a new operation with a fresh reference id.
func NewOperation(refType OperationType, status OperationStatus) *Operation {
	u, _ := gouuid.NewV4()
	return &Operation{
		RefID:     u.String(),
		RefType:   refType,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}
