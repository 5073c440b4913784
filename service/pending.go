package service

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gitlab.com/vitanet-network/settlement_api/monitor"
	"gorm.io/gorm"
)

// ReleasePendingBonuses releases the given parked bonuses in one batch.
// Only rows still pending and marked for manual release are credited; every
// requested id gets its own outcome so the operator sees exactly what
// happened. Releasing an already released id is a no-op.
func (service *Service) ReleasePendingBonuses(ids []uint64) ([]model.PendingBonusReleaseResult, error) {
	results := make([]model.PendingBonusReleaseResult, 0, len(ids))

	err := service.repo.Conn.Transaction(func(tx *gorm.DB) error {
		rows, err := service.repo.GetPendingBonusesForUpdateTx(tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uint64]*model.PendingBonus, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}

		operation := model.NewOperation(model.OperationType_PendingRelease, model.OperationStatus_Completed)
		if err := tx.Create(operation).Error; err != nil {
			return err
		}

		for _, id := range ids {
			row, ok := byID[id]
			if !ok {
				results = append(results, model.PendingBonusReleaseResult{
					ID: id, Released: false, Message: "not found or not pending",
				})
				continue
			}
			if row.ReleaseMode != model.PendingBonusReleaseMode_Manual {
				results = append(results, model.PendingBonusReleaseResult{
					ID: id, Released: false, Message: "released automatically on recipient activation",
				})
				continue
			}
			if err := service.releasePendingTx(tx, row, operation.RefID); err != nil {
				return err
			}
			monitor.PendingReleases.WithLabelValues(string(model.PendingBonusReleaseMode_Manual)).Inc()
			results = append(results, model.PendingBonusReleaseResult{ID: id, Released: true})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ProcessActivation releases every auto release bonus parked for a freshly
// activated recipient. Invoked from the account activation event; safe to
// re-deliver because released rows are no longer pending.
func (service *Service) ProcessActivation(recipientID uint64) error {
	return service.repo.Conn.Transaction(func(tx *gorm.DB) error {
		rows, err := service.repo.GetAutoPendingBonusesForRecipientTx(tx, recipientID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		operation := model.NewOperation(model.OperationType_PendingRelease, model.OperationStatus_Completed)
		if err := tx.Create(operation).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if err := service.releasePendingTx(tx, row, operation.RefID); err != nil {
				return err
			}
			monitor.PendingReleases.WithLabelValues(string(model.PendingBonusReleaseMode_Auto)).Inc()
		}
		log.Info().
			Str("section", "service").
			Str("action", "process_activation").
			Uint64("recipient_id", recipientID).
			Int("released", len(rows)).
			Msg("Released pending bonuses on activation")
		return nil
	})
}

// releasePendingTx credits one locked pending row and flips it to released.
// The status guard in the update keeps a racing release from paying twice.
func (service *Service) releasePendingTx(tx *gorm.DB, row *model.PendingBonus, refID string) error {
	comment := fmt.Sprintf("Release of pending %s bonus (source %s)", row.BonusType, row.SourceID)
	trx := model.NewTransaction(refID, model.OperationType_PendingRelease,
		row.RecipientID, row.BonusType, row.SourceID, row.Amount.V, comment)
	if err := tx.Create(trx).Error; err != nil {
		return err
	}

	update := tx.Model(&model.PendingBonus{}).
		Where("id = ? AND status = ?", row.ID, model.PendingBonusStatus_Pending).
		Updates(map[string]interface{}{
			"status":       model.PendingBonusStatus_Released,
			"released_trx": refID,
			"updated_at":   time.Now(),
		})
	if update.Error != nil {
		return update.Error
	}
	if update.RowsAffected == 0 {
		return fmt.Errorf("pending bonus %d was released concurrently", row.ID)
	}

	paid, _ := row.Amount.V.Float64()
	monitor.BonusPaid.WithLabelValues(string(row.BonusType)).Add(paid)
	return nil
}
