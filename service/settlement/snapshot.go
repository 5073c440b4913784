package settlement

import (
	"github.com/ericlagergren/decimal"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
)

// UserSnapshot is one user's PV position frozen at the start of a
// settlement run, together with the plan columns the calculators need.
type UserSnapshot struct {
	UserID    uint64
	RefBy     uint64
	Rank      int
	Activated bool
	LeftPv    *decimal.Big
	RightPv   *decimal.Big
}

// WeakPv is the smaller leg.
func (s *UserSnapshot) WeakPv() *decimal.Big {
	return conv.Min(s.LeftPv, s.RightPv)
}

// BuildSnapshot joins the materialized PV view with the user rows. Users
// without a PV state row are omitted; PV states without a user row are a
// data integrity problem surfaced by the engine.
func BuildSnapshot(states []*model.UserPvState, users map[uint64]*model.User) ([]*UserSnapshot, []uint64) {
	snapshot := make([]*UserSnapshot, 0, len(states))
	missing := make([]uint64, 0)
	for _, state := range states {
		user, ok := users[state.UserID]
		if !ok {
			missing = append(missing, state.UserID)
			continue
		}
		snapshot = append(snapshot, &UserSnapshot{
			UserID:    user.ID,
			RefBy:     user.RefBy,
			Rank:      user.Rank,
			Activated: user.IsActivated(),
			LeftPv:    conv.ClonePayout(state.LeftPv.V),
			RightPv:   conv.ClonePayout(state.RightPv.V),
		})
	}
	return snapshot, missing
}
