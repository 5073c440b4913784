package data

import (
	"encoding/json"
	"errors"

	"github.com/ericlagergren/decimal"
	"gitlab.com/vitanet-network/settlement_api/conv"
)

// OrderActivatedEvent is emitted by the order service when a product
// purchase completes and its PV must be propagated.
type OrderActivatedEvent struct {
	UserID   uint64 `json:"user_id"`
	Amount   string `json:"amount"`
	Quantity int    `json:"quantity"`
	OrderRef string `json:"order_ref"`
}

// FromBinary loads an event from a byte array
func (event *OrderActivatedEvent) FromBinary(msg []byte) error {
	return json.Unmarshal(msg, event)
}

// ToBinary converts an event to a byte string
func (event *OrderActivatedEvent) ToBinary() ([]byte, error) {
	return json.Marshal(event)
}

// PvAmount parses the order's PV into a payout context decimal.
func (event *OrderActivatedEvent) PvAmount() (*decimal.Big, error) {
	amount := conv.NewDecimalWithPrecision()
	if _, ok := amount.SetString(event.Amount); !ok {
		return nil, errors.New("order amount is not a valid decimal")
	}
	return amount, nil
}

// UserActivatedEvent is emitted by the account service when a user completes
// their qualifying purchase. It releases the user's parked bonuses.
type UserActivatedEvent struct {
	UserID uint64 `json:"user_id"`
	PlanID uint64 `json:"plan_id"`
}

// FromBinary loads an event from a byte array
func (event *UserActivatedEvent) FromBinary(msg []byte) error {
	return json.Unmarshal(msg, event)
}

// ToBinary converts an event to a byte string
func (event *UserActivatedEvent) ToBinary() ([]byte, error) {
	return json.Marshal(event)
}
