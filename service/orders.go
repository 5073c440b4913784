package service

import (
	"fmt"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/data"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gitlab.com/vitanet-network/settlement_api/monitor"
	"gitlab.com/vitanet-network/settlement_api/service/propagation"
	"gorm.io/gorm"
)

// HandleOrderActivated propagates an order's PV up the placement tree and
// books the order time bonuses (direct and level pair). Safe to re-deliver:
// the ledger's unique constraint detects an already processed order and the
// bonus writes are skipped with it.
func (service *Service) HandleOrderActivated(event *data.OrderActivatedEvent) error {
	logger := log.With().
		Str("section", "service").
		Str("action", "order_activated").
		Str("order_ref", event.OrderRef).
		Uint64("user_id", event.UserID).
		Logger()

	amount, err := event.PvAmount()
	if err != nil {
		logger.Error().Err(err).Str("amount", event.Amount).Msg("Discarding malformed order event")
		return nil
	}

	order := propagation.ActivatedOrder{
		UserID:   event.UserID,
		Amount:   amount,
		OrderRef: event.OrderRef,
	}
	entries, err := propagation.BuildCredits(service.repo, order, service.maxDepth)
	if err != nil {
		return fmt.Errorf("building credits for order %s: %w", event.OrderRef, err)
	}

	// the collision scan must see the PV states as they were before this
	// order's credits land
	levelPairRecipient, err := service.findLayerCollision(entries, amount)
	if err != nil {
		return err
	}

	buyer, err := service.repo.GetUser(event.UserID)
	if err != nil {
		return fmt.Errorf("loading buyer %d: %w", event.UserID, err)
	}

	periodKey := model.WeekKeyOf(time.Now())

	return service.repo.Conn.Transaction(func(tx *gorm.DB) error {
		applied := 0
		for _, entry := range entries {
			ok, err := service.repo.ApplyLedgerEntryTx(tx, entry)
			if err != nil {
				return err
			}
			if ok {
				applied++
			} else {
				monitor.LedgerDuplicates.Inc()
			}
		}
		if len(entries) > 0 && applied == 0 {
			logger.Info().Msg("Order already processed, skipping bonuses")
			return nil
		}

		operation := model.NewOperation(model.OperationType_BonusPayout, model.OperationStatus_Completed)
		if err := tx.Create(operation).Error; err != nil {
			return err
		}

		if buyer.RefBy != 0 && service.cfg.Bonus.DirectRate > 0 {
			direct := conv.NewDecimalWithPrecision()
			direct.Mul(amount, conv.NewFromFloat(service.cfg.Bonus.DirectRate))
			conv.RoundToPayout(direct)
			comment := fmt.Sprintf("Direct bonus for order %s", event.OrderRef)
			if err := service.payOrderBonusTx(tx, operation.RefID, buyer.RefBy,
				model.BonusType_Direct, direct, event.OrderRef, periodKey, comment); err != nil {
				return err
			}
		}

		if levelPairRecipient != 0 && service.cfg.Bonus.LevelPairRate > 0 {
			levelPair := conv.NewDecimalWithPrecision()
			levelPair.Mul(amount, conv.NewFromFloat(service.cfg.Bonus.LevelPairRate))
			conv.RoundToPayout(levelPair)
			comment := fmt.Sprintf("Level pair bonus for order %s", event.OrderRef)
			if err := service.payOrderBonusTx(tx, operation.RefID, levelPairRecipient,
				model.BonusType_LevelPair, levelPair, event.OrderRef, periodKey, comment); err != nil {
				return err
			}
		}
		return nil
	})
}

// findLayerCollision returns the first ancestor on the propagation path
// whose opposite leg already holds at least the order's PV, meaning this
// credit completes a matched layer under them. At most one upline earns the
// level pair bonus per order.
func (service *Service) findLayerCollision(entries []*model.PvLedgerEntry, amount *decimal.Big) (uint64, error) {
	for _, entry := range entries {
		state, err := service.repo.GetUserPvState(entry.UserID)
		if err != nil {
			return 0, fmt.Errorf("loading PV state of ancestor %d: %w", entry.UserID, err)
		}
		opposite := state.SideAmount(entry.Side.Opposite())
		if opposite.Cmp(amount) >= 0 {
			return entry.UserID, nil
		}
	}
	return 0, nil
}

// payOrderBonusTx credits an order time bonus, parking it as pending when
// the recipient has not activated yet.
func (service *Service) payOrderBonusTx(tx *gorm.DB, refID string, recipientID uint64, bonusType model.BonusType, amount *decimal.Big, orderRef, periodKey, comment string) error {
	if amount.Sign() <= 0 {
		return nil
	}
	recipient, err := service.repo.GetUser(recipientID)
	if err != nil {
		return fmt.Errorf("loading bonus recipient %d: %w", recipientID, err)
	}
	if !recipient.IsActivated() {
		pending := model.NewPendingBonus(recipientID, amount, bonusType,
			model.PvSourceType_Order, orderRef, model.PendingBonusReleaseMode_Auto)
		return tx.Create(pending).Error
	}

	trx := model.NewTransaction(refID, model.OperationType_BonusPayout,
		recipientID, bonusType, periodKey, amount, comment)
	if err := tx.Create(trx).Error; err != nil {
		return err
	}
	paid, _ := amount.Float64()
	monitor.BonusPaid.WithLabelValues(string(bonusType)).Add(paid)
	return nil
}
