package queries

import (
	"github.com/lib/pq"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetPendingBonusesForUpdateTx locks the given pending rows for release.
// Only rows still in pending state are returned.
func (repo *Repo) GetPendingBonusesForUpdateTx(tx *gorm.DB, ids []uint64) ([]*model.PendingBonus, error) {
	bonuses := make([]*model.PendingBonus, 0, len(ids))
	int64IDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		int64IDs = append(int64IDs, int64(id))
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ANY(?)", pq.Array(int64IDs)).
		Where("status = ?", model.PendingBonusStatus_Pending).
		Find(&bonuses).Error
	if err != nil {
		return nil, err
	}
	return bonuses, nil
}

// GetAutoPendingBonusesForRecipientTx locks the recipient's auto release
// rows when an activation event arrives.
func (repo *Repo) GetAutoPendingBonusesForRecipientTx(tx *gorm.DB, recipientID uint64) ([]*model.PendingBonus, error) {
	bonuses := make([]*model.PendingBonus, 0)
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("recipient_id = ?", recipientID).
		Where("status = ?", model.PendingBonusStatus_Pending).
		Where("release_mode = ?", model.PendingBonusReleaseMode_Auto).
		Find(&bonuses).Error
	if err != nil {
		return nil, err
	}
	return bonuses, nil
}

// GetPendingBonusesForRecipient lists a recipient's parked bonuses.
func (repo *Repo) GetPendingBonusesForRecipient(recipientID uint64, limit, page int) (*model.PendingBonusList, error) {
	bonuses := make([]model.PendingBonus, 0)
	var rowCount int64 = 0

	q := repo.ConnReader.Where("recipient_id = ?", recipientID)
	dbc := q.Table("pending_bonuses").Select("count(*) as total").Row()
	_ = dbc.Scan(&rowCount)

	q = q.Order("id DESC")
	if limit != 0 {
		q = q.Limit(limit).Offset((page - 1) * limit)
	}
	db := q.Find(&bonuses)

	list := model.PendingBonusList{
		Bonuses: bonuses,
		Meta: model.PagingMeta{
			Page:  page,
			Count: rowCount,
			Limit: limit,
		},
	}
	return &list, db.Error
}
