package propagation

import (
	"errors"
	"fmt"

	"github.com/ericlagergren/decimal"
	"gitlab.com/vitanet-network/settlement_api/model"
)

var (
	// ErrTreeCycle is raised when the upward walk visits a node twice.
	// Corrupted placement data, never a normal condition.
	ErrTreeCycle = errors.New("placement tree contains a cycle")
	// ErrInvalidAmount is raised for non positive or NaN order PV.
	ErrInvalidAmount = errors.New("order PV amount must be a positive number")
)

// TreeSource resolves placement tree nodes. Implemented by queries.Repo in
// production and by in-memory fixtures in tests.
type TreeSource interface {
	GetUser(userID uint64) (*model.User, error)
}

// ActivatedOrder is the portion of an order activation event the
// propagator consumes.
type ActivatedOrder struct {
	UserID   uint64
	Amount   *decimal.Big
	OrderRef string
}

// BuildCredits walks from the order's user upward through pos_id links and
// returns one credit per ancestor, on the leg the walk arrived from. The
// walk stops at the root or after maxDepth ancestors. A visited set guards
// against corrupted trees; a cycle aborts the walk with ErrTreeCycle.
func BuildCredits(source TreeSource, order ActivatedOrder, maxDepth int) ([]*model.PvLedgerEntry, error) {
	if order.Amount == nil || order.Amount.IsNaN(0) || order.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	current, err := source.GetUser(order.UserID)
	if err != nil {
		return nil, fmt.Errorf("order user %d: %w", order.UserID, err)
	}

	entries := make([]*model.PvLedgerEntry, 0, 8)
	visited := map[uint64]struct{}{current.ID: {}}

	level := 0
	for !current.IsRoot() && level < maxDepth {
		parent, err := source.GetUser(current.PosID)
		if err != nil {
			return nil, fmt.Errorf("ancestor %d of user %d: %w", current.PosID, order.UserID, err)
		}
		if _, seen := visited[parent.ID]; seen {
			return nil, ErrTreeCycle
		}
		visited[parent.ID] = struct{}{}

		level++
		side := current.Position
		if side != model.TreeSideLeft && side != model.TreeSideRight {
			return nil, fmt.Errorf("user %d has no placement side", current.ID)
		}

		entries = append(entries, model.NewPvLedgerEntry(
			parent.ID,
			order.UserID,
			side,
			level,
			order.Amount,
			model.PvDirection_Credit,
			model.PvSourceType_Order,
			order.OrderRef,
		))

		current = parent
	}

	return entries, nil
}
