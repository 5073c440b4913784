package settlement

import (
	"fmt"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/lock"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gitlab.com/vitanet-network/settlement_api/monitor"
	"gitlab.com/vitanet-network/settlement_api/queries"
	"gorm.io/gorm"
)

// Engine runs the periodic settlements. One engine instance serves both the
// cron entrypoints and the admin API; per period serialization comes from
// the distributed lock, not from the engine itself.
type Engine struct {
	repo    *queries.Repo
	locker  lock.Locker
	cfg     *config.BonusConfig
	lockTTL time.Duration
}

func NewEngine(repo *queries.Repo, locker lock.Locker, cfg *config.BonusConfig, settlementCfg config.SettlementConfig) *Engine {
	ttl := time.Duration(settlementCfg.LockTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Engine{
		repo:    repo,
		locker:  locker,
		cfg:     cfg,
		lockTTL: ttl,
	}
}

// WeeklyResult is the structured outcome of one weekly invocation, dry run
// or finalized. Operators read ErrorKind to decide whether to retry, force,
// or investigate.
type WeeklyResult struct {
	Success            bool                 `json:"success"`
	ErrorKind          ErrorKind            `json:"error_kind,omitempty"`
	Message            string               `json:"message,omitempty"`
	WeekKey            string               `json:"week_key"`
	DryRun             bool                 `json:"dry_run"`
	ConfigVersion      string               `json:"config_version,omitempty"`
	TotalPv            string               `json:"total_pv,omitempty"`
	FixedSales         string               `json:"fixed_sales,omitempty"`
	GlobalReserve      string               `json:"global_reserve,omitempty"`
	KFactor            string               `json:"k_factor,omitempty"`
	VariableBonusTotal string               `json:"variable_bonus_total,omitempty"`
	CapacityExceeded   bool                 `json:"capacity_exceeded,omitempty"`
	Breakdown          model.BonusBreakdown `json:"bonus_breakdown,omitempty"`
}

func weeklyLockKey(weekKey string) string {
	return "weekly_settlement:" + weekKey
}

// acquireLock takes the period lock and returns its release function.
// Non blocking; a held lock surfaces as ErrorKind_LockContention.
func (e *Engine) acquireLock(key, period string) (func(), *Error) {
	handle, err := e.locker.TryAcquire(key, e.lockTTL)
	if err == lock.ErrNotAcquired {
		return nil, newError(ErrorKind_LockContention, "another settlement run holds the %s lock", period)
	}
	if err != nil {
		return nil, newError(ErrorKind_Internal, err.Error())
	}
	return func() {
		if err := e.locker.Release(handle); err != nil {
			log.Error().Err(err).Str("section", "settlement").Str("lock_key", key).Msg("Unable to release settlement lock")
		}
	}, nil
}

func failWeekly(weekKey string, dryRun bool, kind ErrorKind, message string) *WeeklyResult {
	return &WeeklyResult{
		Success:   false,
		ErrorKind: kind,
		Message:   message,
		WeekKey:   weekKey,
		DryRun:    dryRun,
	}
}

// priorWeeklyResult renders an already finalized settlement. Re-invoking a
// finalized week is an idempotent no-op, never a failure.
func priorWeeklyResult(settlement *model.WeeklySettlement) *WeeklyResult {
	return &WeeklyResult{
		Success:            true,
		ErrorKind:          ErrorKind_AlreadyFinalized,
		Message:            "week is already finalized",
		WeekKey:            settlement.WeekKey,
		ConfigVersion:      settlement.ConfigVersion,
		TotalPv:            settlement.TotalPv.V.String(),
		FixedSales:         settlement.FixedSales.V.String(),
		GlobalReserve:      settlement.GlobalReserve.V.String(),
		KFactor:            settlement.KFactor.V.String(),
		VariableBonusTotal: settlement.VariableBonusTotal.V.String(),
		Breakdown:          settlement.BonusBreakdown,
	}
}

// weeklyComputation carries everything the compute phase produced into the
// persist and carry flash phases.
type weeklyComputation struct {
	snapshot        []*UserSnapshot
	byID            map[uint64]*UserSnapshot
	pairLines       []*PairLine
	pairByUser      map[uint64]*PairLine
	managementLines []*ManagementLine
	details         *KFactorDetails
	variableTotal   *decimal.Big
}

// RunWeekly executes or previews one weekly settlement. A dry run computes
// the full result and persists nothing. Force bypasses the lock only; the
// finalize once guard always applies.
func (e *Engine) RunWeekly(weekKey string, dryRun, force bool) *WeeklyResult {
	logger := log.With().
		Str("section", "settlement").
		Str("action", "weekly").
		Str("week_key", weekKey).
		Bool("dry_run", dryRun).
		Logger()

	from, to, err := model.WeekKeyRange(weekKey)
	if err != nil {
		return failWeekly(weekKey, dryRun, ErrorKind_InvalidPeriod, err.Error())
	}

	carryFlash, err := NewCarryFlash(e.cfg)
	if err != nil {
		return failWeekly(weekKey, dryRun, ErrorKind_DataIntegrity, err.Error())
	}

	existing, err := e.repo.GetWeeklySettlementByKey(weekKey)
	if err != nil {
		return failWeekly(weekKey, dryRun, ErrorKind_Internal, err.Error())
	}
	if existing != nil {
		if dryRun || existing.CarryFlashAt != nil {
			monitor.SettlementRuns.WithLabelValues("weekly", "already_finalized").Inc()
			return priorWeeklyResult(existing)
		}
		// finalized, but the run died before carry flash committed
		return e.resumeCarryFlash(weekKey, force, carryFlash, existing, logger)
	}

	if !force {
		release, serr := e.acquireLock(weeklyLockKey(weekKey), "week")
		if serr != nil {
			if serr.Kind == ErrorKind_LockContention {
				monitor.SettlementRuns.WithLabelValues("weekly", "lock_contention").Inc()
			}
			return failWeekly(weekKey, dryRun, serr.Kind, serr.Message)
		}
		defer release()
	}

	computation, cerr := e.computeWeekly(weekKey, from, to)
	if cerr != nil {
		monitor.SettlementRuns.WithLabelValues("weekly", string(cerr.Kind)).Inc()
		logger.Error().Str("error_kind", string(cerr.Kind)).Msg(cerr.Message)
		return failWeekly(weekKey, dryRun, cerr.Kind, cerr.Message)
	}

	if computation.details.CapacityExceeded {
		logger.Error().
			Str("fixed_sales", computation.details.FixedSales.String()).
			Str("total_pv", computation.details.TotalPv.String()).
			Msg("Fixed costs exceed the weekly cap, finalizing with zero variable payouts")
	}

	result := e.weeklyResult(weekKey, dryRun, computation)
	if dryRun {
		monitor.SettlementRuns.WithLabelValues("weekly", "dry_run").Inc()
		return result
	}

	prior, perr := e.finalizeWeekly(weekKey, computation)
	if perr != nil {
		monitor.SettlementRuns.WithLabelValues("weekly", string(perr.Kind)).Inc()
		logger.Error().Str("error_kind", string(perr.Kind)).Msg(perr.Message)
		return failWeekly(weekKey, dryRun, perr.Kind, perr.Message)
	}
	if prior != nil {
		monitor.SettlementRuns.WithLabelValues("weekly", "already_finalized").Inc()
		return priorWeeklyResult(prior)
	}

	if perr := e.applyCarryFlash(weekKey, carryFlash); perr != nil {
		monitor.SettlementRuns.WithLabelValues("weekly", string(perr.Kind)).Inc()
		logger.Error().Str("error_kind", string(perr.Kind)).Msg(perr.Message)
		return failWeekly(weekKey, dryRun, perr.Kind, perr.Message)
	}

	kf, _ := computation.details.KFactor.Float64()
	monitor.KFactor.WithLabelValues(weekKey).Set(kf)
	monitor.SettlementRuns.WithLabelValues("weekly", "finalized").Inc()
	logger.Info().
		Str("k_factor", computation.details.KFactor.String()).
		Str("variable_total", computation.variableTotal.String()).
		Int("pair_lines", len(computation.pairLines)).
		Int("management_lines", len(computation.managementLines)).
		Msg("Weekly settlement finalized")
	return result
}

// resumeCarryFlash finishes a finalized week whose carry flash never
// committed, typically after a crash between the two transactions. The
// ledger's unique constraint absorbs any deductions the first attempt
// already wrote, so resuming is idempotent.
func (e *Engine) resumeCarryFlash(weekKey string, force bool, carryFlash *CarryFlash, existing *model.WeeklySettlement, logger zerolog.Logger) *WeeklyResult {
	if !force {
		release, serr := e.acquireLock(weeklyLockKey(weekKey), "week")
		if serr != nil {
			if serr.Kind == ErrorKind_LockContention {
				monitor.SettlementRuns.WithLabelValues("weekly", "lock_contention").Inc()
			}
			return failWeekly(weekKey, false, serr.Kind, serr.Message)
		}
		defer release()
	}

	logger.Info().Msg("Resuming carry flash of a finalized week")
	if perr := e.applyCarryFlash(weekKey, carryFlash); perr != nil {
		monitor.SettlementRuns.WithLabelValues("weekly", string(perr.Kind)).Inc()
		logger.Error().Str("error_kind", string(perr.Kind)).Msg(perr.Message)
		return failWeekly(weekKey, false, perr.Kind, perr.Message)
	}
	monitor.SettlementRuns.WithLabelValues("weekly", "carry_flash_resumed").Inc()
	return priorWeeklyResult(existing)
}

func (e *Engine) computeWeekly(weekKey string, from, to time.Time) (*weeklyComputation, *Error) {
	states, err := e.repo.GetAllPvStates()
	if err != nil {
		return nil, newError(ErrorKind_Internal, "loading PV states: %s", err.Error())
	}
	ids := make([]uint64, 0, len(states))
	for _, state := range states {
		ids = append(ids, state.UserID)
	}
	users, err := e.repo.GetUsersByIDs(ids)
	if err != nil {
		return nil, newError(ErrorKind_Internal, "loading users: %s", err.Error())
	}

	snapshot, missing := BuildSnapshot(states, users)
	if len(missing) > 0 {
		return nil, newError(ErrorKind_DataIntegrity, "PV states without a user row: %v", missing)
	}

	totalPv, err := e.repo.SumDistinctOrderPv(from, to)
	if err != nil {
		return nil, newError(ErrorKind_Internal, "summing order PV: %s", err.Error())
	}
	fixedSales, err := e.repo.SumFixedSalesForPeriod(weekKey, from, to)
	if err != nil {
		return nil, newError(ErrorKind_Internal, "summing fixed sales: %s", err.Error())
	}

	pairLines := ComputePairBonuses(snapshot, e.cfg)
	managementLines := ComputeManagementBonuses(snapshot, pairLines, e.cfg)
	variablePotential := SumVariablePotential(pairLines, managementLines)

	details, derr := ComputeKFactor(totalPv, fixedSales, variablePotential, e.cfg)
	if derr != nil {
		serr, ok := derr.(*Error)
		if !ok {
			serr = newError(ErrorKind_Internal, derr.Error())
		}
		return nil, serr
	}
	ApplyKFactor(pairLines, managementLines, details.KFactor)

	variableTotal := conv.NewDecimalWithPrecision()
	for _, line := range pairLines {
		variableTotal.Add(variableTotal, line.Paid)
	}
	for _, line := range managementLines {
		variableTotal.Add(variableTotal, line.Paid)
	}

	byID := make(map[uint64]*UserSnapshot, len(snapshot))
	for _, user := range snapshot {
		byID[user.UserID] = user
	}
	pairByUser := make(map[uint64]*PairLine, len(pairLines))
	for _, line := range pairLines {
		pairByUser[line.UserID] = line
	}

	return &weeklyComputation{
		snapshot:        snapshot,
		byID:            byID,
		pairLines:       pairLines,
		pairByUser:      pairByUser,
		managementLines: managementLines,
		details:         details,
		variableTotal:   variableTotal,
	}, nil
}

func (e *Engine) weeklyResult(weekKey string, dryRun bool, computation *weeklyComputation) *WeeklyResult {
	return &WeeklyResult{
		Success:            true,
		WeekKey:            weekKey,
		DryRun:             dryRun,
		ConfigVersion:      e.cfg.Version,
		TotalPv:            computation.details.TotalPv.String(),
		FixedSales:         computation.details.FixedSales.String(),
		GlobalReserve:      computation.details.GlobalReserve.String(),
		KFactor:            computation.details.KFactor.String(),
		VariableBonusTotal: computation.variableTotal.String(),
		CapacityExceeded:   computation.details.CapacityExceeded,
		Breakdown:          breakdownOf(computation),
	}
}

func breakdownOf(computation *weeklyComputation) model.BonusBreakdown {
	pairTotal := conv.NewDecimalWithPrecision()
	pairCount := 0
	for _, line := range computation.pairLines {
		if line.Paid != nil && line.Paid.Sign() > 0 {
			pairTotal.Add(pairTotal, line.Paid)
			pairCount++
		}
	}
	managementTotal := conv.NewDecimalWithPrecision()
	managementCount := 0
	for _, line := range computation.managementLines {
		if line.Paid != nil && line.Paid.Sign() > 0 {
			managementTotal.Add(managementTotal, line.Paid)
			managementCount++
		}
	}
	return model.BonusBreakdown{
		model.BonusType_Pair:       {Amount: pairTotal.String(), Count: pairCount},
		model.BonusType_Management: {Amount: managementTotal.String(), Count: managementCount},
	}
}

// finalizeWeekly persists the whole settlement in one transaction. A second
// runner that slipped past an expired lock is caught either by the in
// transaction re-check or by the unique constraint on week_key; both
// resolve to the prior record, never a double payment.
func (e *Engine) finalizeWeekly(weekKey string, computation *weeklyComputation) (*model.WeeklySettlement, *Error) {
	var prior *model.WeeklySettlement

	err := e.repo.Conn.Transaction(func(tx *gorm.DB) error {
		found := &model.WeeklySettlement{}
		err := tx.First(found, "week_key = ?", weekKey).Error
		if err == nil {
			prior = found
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		operation := model.NewOperation(model.OperationType_SettlementWeekly, model.OperationStatus_Completed)
		if err := tx.Create(operation).Error; err != nil {
			return err
		}

		settlement := &model.WeeklySettlement{
			WeekKey:            weekKey,
			RefID:              operation.RefID,
			ConfigVersion:      e.cfg.Version,
			TotalPv:            &postgres.Decimal{V: computation.details.TotalPv},
			KFactor:            &postgres.Decimal{V: computation.details.KFactor},
			GlobalReserve:      &postgres.Decimal{V: computation.details.GlobalReserve},
			FixedSales:         &postgres.Decimal{V: computation.details.FixedSales},
			VariableBonusTotal: &postgres.Decimal{V: computation.variableTotal},
			BonusBreakdown:     breakdownOf(computation),
			FinalizedAt:        time.Now(),
			CreatedAt:          time.Now(),
		}
		// savepoint keeps the transaction usable when the insert loses the
		// unique race, so the winner row can still be read
		savePointName := "CreateWeeklySettlement"
		if err := tx.SavePoint(savePointName).Error; err != nil {
			return err
		}
		if err := tx.Create(settlement).Error; err != nil {
			if queries.IsUniqueViolation(err) {
				tx.RollbackTo(savePointName)
				winner := &model.WeeklySettlement{}
				if err := tx.First(winner, "week_key = ?", weekKey).Error; err != nil {
					return err
				}
				prior = winner
				return nil
			}
			return err
		}

		if err := e.createSummariesTx(tx, weekKey, computation); err != nil {
			return err
		}
		if err := e.payVariableLinesTx(tx, weekKey, operation.RefID, computation); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, newError(ErrorKind_Internal, "finalizing week: %s", err.Error())
	}
	return prior, nil
}

func (e *Engine) createSummariesTx(tx *gorm.DB, weekKey string, computation *weeklyComputation) error {
	pairRate := e.cfg.GetPairRate()
	for _, user := range computation.snapshot {
		paid := conv.NewDecimalWithPrecision()
		capAmount := e.cfg.GetPairCap(user.Rank)
		if line, ok := computation.pairByUser[user.UserID]; ok {
			paid = line.Paid
			capAmount = line.CapAmount
		}

		capPv := conv.NewDecimalWithPrecision()
		if pairRate.Sign() > 0 {
			capPv.Quo(capAmount, pairRate)
		}

		summary := &model.UserWeeklySummary{
			WeekKey:        weekKey,
			UserID:         user.UserID,
			LeftPv:         &postgres.Decimal{V: user.LeftPv},
			RightPv:        &postgres.Decimal{V: user.RightPv},
			LeftPvEnd:      &postgres.Decimal{V: conv.ClonePayout(user.LeftPv)},
			RightPvEnd:     &postgres.Decimal{V: conv.ClonePayout(user.RightPv)},
			PairPaidActual: &postgres.Decimal{V: paid},
			CapAmount:      &postgres.Decimal{V: capAmount},
			CapPv:          &postgres.Decimal{V: capPv},
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := tx.Create(summary).Error; err != nil {
			return err
		}
	}
	return nil
}

// payVariableLinesTx books every damped line. Activated recipients get a
// transaction; unactivated ones get an auto release pending bonus.
func (e *Engine) payVariableLinesTx(tx *gorm.DB, weekKey, refID string, computation *weeklyComputation) error {
	pay := func(userID uint64, bonusType model.BonusType, amount *decimal.Big, comment string) error {
		if amount == nil || amount.Sign() <= 0 {
			return nil
		}
		recipient, ok := computation.byID[userID]
		if ok && !recipient.Activated {
			pending := model.NewPendingBonus(userID, amount, bonusType,
				model.PvSourceType_Settlement, weekKey, model.PendingBonusReleaseMode_Auto)
			return tx.Create(pending).Error
		}
		trx := model.NewTransaction(refID, model.OperationType_SettlementWeekly,
			userID, bonusType, weekKey, amount, comment)
		if err := tx.Create(trx).Error; err != nil {
			return err
		}
		paid, _ := amount.Float64()
		monitor.BonusPaid.WithLabelValues(string(bonusType)).Add(paid)
		return nil
	}

	for _, line := range computation.pairLines {
		comment := fmt.Sprintf("Pair bonus for %s (%d pairs)", weekKey, line.Pairs)
		if err := pay(line.UserID, model.BonusType_Pair, line.Paid, comment); err != nil {
			return err
		}
	}
	for _, line := range computation.managementLines {
		comment := fmt.Sprintf("Management bonus for %s (%d downline earners)", weekKey, line.Sources)
		if err := pay(line.UserID, model.BonusType_Management, line.Paid, comment); err != nil {
			return err
		}
	}
	return nil
}

// applyCarryFlash runs strictly after the settlement is finalized, still
// under the week lock. Deductions go through the ledger so a crashed run
// can be retried; the unique constraint absorbs re-applied entries.
func (e *Engine) applyCarryFlash(weekKey string, carryFlash *CarryFlash) *Error {
	summaries, err := e.repo.GetWeeklySummaries(weekKey)
	if err != nil {
		return newError(ErrorKind_Internal, "loading summaries: %s", err.Error())
	}

	err = e.repo.Conn.Transaction(func(tx *gorm.DB) error {
		for _, summary := range summaries {
			result := carryFlash.Process(summary)
			for _, entry := range result.LedgerEntries(summary.UserID, weekKey) {
				applied, err := e.repo.ApplyLedgerEntryTx(tx, entry)
				if err != nil {
					return err
				}
				if !applied {
					monitor.LedgerDuplicates.Inc()
				}
			}
			summary.LeftPvEnd = &postgres.Decimal{V: result.LeftEnd}
			summary.RightPvEnd = &postgres.Decimal{V: result.RightEnd}
			if err := e.repo.UpdateSummaryEndsTx(tx, summary); err != nil {
				return err
			}
		}
		// committed together with the deductions, so the week is either
		// fully flushed or resumable
		return tx.Model(&model.WeeklySettlement{}).
			Where("week_key = ?", weekKey).
			Update("carry_flash_at", time.Now()).Error
	})
	if err != nil {
		return newError(ErrorKind_Internal, "applying carry flash: %s", err.Error())
	}
	return nil
}
