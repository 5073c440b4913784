package queries

import (
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetUser loads the placement tree columns for one user.
func (repo *Repo) GetUser(userID uint64) (*model.User, error) {
	user := &model.User{}
	if err := repo.ConnReader.First(user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUsersByIDs loads a batch of users keyed by id.
func (repo *Repo) GetUsersByIDs(ids []uint64) (map[uint64]*model.User, error) {
	users := make([]*model.User, 0, len(ids))
	if err := repo.ConnReader.Find(&users, "id IN ?", ids).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// ApplyLedgerEntryTx inserts one ledger entry and increments the
// materialized PV state in the same transaction. The caller owns tx. A
// unique violation on the entry means the credit was already applied by an
// earlier run; the savepoint is rolled back and (false, nil) is returned.
func (repo *Repo) ApplyLedgerEntryTx(tx *gorm.DB, entry *model.PvLedgerEntry) (bool, error) {
	savePointName := "ApplyLedgerEntry"
	if err := tx.SavePoint(savePointName).Error; err != nil {
		return false, err
	}

	if err := tx.Create(entry).Error; err != nil {
		if IsUniqueViolation(err) {
			tx.RollbackTo(savePointName)
			return false, nil
		}
		return false, err
	}

	if err := repo.incrementPvStateTx(tx, entry); err != nil {
		return false, err
	}
	return true, nil
}

// incrementPvStateTx adjusts one leg of the materialized view under a row
// lock so concurrent sibling credits to a shared ancestor cannot lose
// updates.
func (repo *Repo) incrementPvStateTx(tx *gorm.DB, entry *model.PvLedgerEntry) error {
	state := &model.UserPvState{}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(state, "user_id = ?", entry.UserID).Error
	if err == gorm.ErrRecordNotFound {
		state = &model.UserPvState{
			UserID:    entry.UserID,
			LeftPv:    &postgres.Decimal{V: conv.NewDecimalWithPrecision()},
			RightPv:   &postgres.Decimal{V: conv.NewDecimalWithPrecision()},
			UpdatedAt: time.Now(),
		}
		if err := tx.Create(state).Error; err != nil {
			if !IsUniqueViolation(err) {
				return err
			}
			// lost the insert race, lock the winner's row
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(state, "user_id = ?", entry.UserID).Error; err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}

	signed := entry.Signed()
	if entry.Side == model.TreeSideLeft {
		state.LeftPv.V.Add(state.LeftPv.V, signed)
	} else {
		state.RightPv.V.Add(state.RightPv.V, signed)
	}
	state.UpdatedAt = time.Now()

	return tx.Model(&model.UserPvState{}).
		Where("user_id = ?", entry.UserID).
		Updates(map[string]interface{}{
			"left_pv":    state.LeftPv,
			"right_pv":   state.RightPv,
			"updated_at": state.UpdatedAt,
		}).Error
}

// GetUserPvState returns the materialized PV view for one user, zero valued
// when the user has no ledger entries yet.
func (repo *Repo) GetUserPvState(userID uint64) (*model.UserPvState, error) {
	state := &model.UserPvState{}
	err := repo.ConnReader.First(state, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return &model.UserPvState{
			UserID:  userID,
			LeftPv:  &postgres.Decimal{V: conv.NewDecimalWithPrecision()},
			RightPv: &postgres.Decimal{V: conv.NewDecimalWithPrecision()},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// GetAllPvStates loads the full materialized view for a settlement snapshot.
func (repo *Repo) GetAllPvStates() ([]*model.UserPvState, error) {
	states := make([]*model.UserPvState, 0)
	if err := repo.Conn.Order("user_id ASC").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

// SumLedgerForUser recomputes one user's legs from the ledger. Used to
// verify the materialized view against the source of truth.
func (repo *Repo) SumLedgerForUser(userID uint64) (left, right *decimal.Big, err error) {
	type row struct {
		Side    model.TreeSide    `gorm:"column:side"`
		Balance *postgres.Decimal `gorm:"column:balance"`
	}
	rows := make([]row, 0, 2)
	err = repo.ConnReader.
		Table("pv_ledger_entries").
		Select("side, sum(CASE WHEN direction = 'credit' THEN amount ELSE -amount END) as balance").
		Where("user_id = ?", userID).
		Group("side").
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	left = conv.NewDecimalWithPrecision()
	right = conv.NewDecimalWithPrecision()
	for _, r := range rows {
		if r.Balance == nil || r.Balance.V == nil {
			continue
		}
		if r.Side == model.TreeSideLeft {
			left = r.Balance.V
		} else {
			right = r.Balance.V
		}
	}
	return left, right, nil
}

// GetLedgerEntriesForUser returns a paginated ledger listing.
func (repo *Repo) GetLedgerEntriesForUser(userID uint64, limit, page int) (*model.PvLedgerEntryList, error) {
	entries := make([]model.PvLedgerEntry, 0)
	var rowCount int64 = 0

	q := repo.ConnReader.Where("user_id = ?", userID)
	dbc := q.Table("pv_ledger_entries").Select("count(*) as total").Row()
	_ = dbc.Scan(&rowCount)

	q = q.Order("id DESC")
	if limit != 0 {
		q = q.Limit(limit).Offset((page - 1) * limit)
	}
	db := q.Find(&entries)

	list := model.PvLedgerEntryList{
		Entries: entries,
		Meta: model.PagingMeta{
			Page:  page,
			Count: rowCount,
			Limit: limit,
		},
	}
	return &list, db.Error
}

// CountOrdersByUser counts distinct personal purchases per user within the
// given window, derived from order sourced ledger entries.
func (repo *Repo) CountOrdersByUser(from, to time.Time) (map[uint64]int, error) {
	type row struct {
		FromUserID uint64 `gorm:"column:from_user_id"`
		Orders     int    `gorm:"column:orders"`
	}
	rows := make([]row, 0)
	err := repo.ConnReader.
		Table("pv_ledger_entries").
		Select("from_user_id, count(distinct source_id) as orders").
		Where("source_type = ?", model.PvSourceType_Order).
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("from_user_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint64]int, len(rows))
	for _, r := range rows {
		counts[r.FromUserID] = r.Orders
	}
	return counts, nil
}
