package model

import (
	"time"
)

// TreeSide is a leg of the binary placement tree.
type TreeSide string

const (
	TreeSideLeft  TreeSide = "left"
	TreeSideRight TreeSide = "right"
)

func GetTreeSideFromString(side string) TreeSide {
	switch side {
	case "left":
		return TreeSideLeft
	case "right":
		return TreeSideRight
	default:
		return ""
	}
}

// Opposite returns the other leg.
func (s TreeSide) Opposite() TreeSide {
	if s == TreeSideLeft {
		return TreeSideRight
	}
	return TreeSideLeft
}

type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)

// User carries the placement tree and plan columns the engine needs.
// Account management itself lives in the account service; this model only
// reads the columns relevant to PV propagation and settlement.
type User struct {
	ID        uint64     `gorm:"PRIMARY_KEY" json:"id"`
	PosID     uint64     `gorm:"column:pos_id" json:"pos_id"`
	Position  TreeSide   `gorm:"column:position" json:"position"`
	RefBy     uint64     `gorm:"column:ref_by" json:"ref_by"`
	PlanID    uint64     `gorm:"column:plan_id" json:"plan_id"`
	Rank      int        `gorm:"column:rank" json:"rank"`
	Status    UserStatus `gorm:"column:status" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsActivated reports whether the user completed a qualifying purchase.
// Bonuses for unactivated recipients are parked in the pending queue.
func (u *User) IsActivated() bool {
	return u.PlanID != 0
}

// IsRoot reports whether the user is the network root (no placement parent).
func (u *User) IsRoot() bool {
	return u.PosID == 0
}
