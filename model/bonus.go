package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

type BonusType string

const (
	BonusType_Direct     BonusType = "direct"
	BonusType_LevelPair  BonusType = "level_pair"
	BonusType_Pair       BonusType = "pair"
	BonusType_Management BonusType = "management"
	BonusType_Stockist   BonusType = "pool_stockist"
	BonusType_Leader     BonusType = "pool_leader"
)

func GetBonusTypeFromString(bonusType string) BonusType {
	switch bonusType {
	case "direct":
		return BonusType_Direct
	case "level_pair":
		return BonusType_LevelPair
	case "pair":
		return BonusType_Pair
	case "management":
		return BonusType_Management
	case "pool_stockist":
		return BonusType_Stockist
	case "pool_leader":
		return BonusType_Leader
	default:
		return ""
	}
}

// IsVariable reports whether the bonus type is paid from the K-factor
// damped pool. Direct and level-pair bonuses are fixed costs.
func (t BonusType) IsVariable() bool {
	return t == BonusType_Pair || t == BonusType_Management
}

// BonusLine is one aggregate line of a settlement breakdown.
type BonusLine struct {
	Amount string `json:"amount"`
	Count  int    `json:"count"`
}

// BonusBreakdown maps bonus type to its settled aggregate, stored as jsonb.
type BonusBreakdown map[BonusType]BonusLine

func (b BonusBreakdown) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(b)
	return string(raw), err
}

func (b *BonusBreakdown) Scan(value interface{}) error {
	switch raw := value.(type) {
	case []byte:
		return json.Unmarshal(raw, b)
	case string:
		return json.Unmarshal([]byte(raw), b)
	case nil:
		*b = BonusBreakdown{}
		return nil
	default:
		return errors.New("unsupported bonus breakdown column type")
	}
}
