package settlement

import (
	"fmt"
	"sort"
	"time"

	"github.com/ericlagergren/decimal"
	"github.com/ericlagergren/decimal/sql/postgres"
	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/conv"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gitlab.com/vitanet-network/settlement_api/monitor"
	"gitlab.com/vitanet-network/settlement_api/queries"
	"gorm.io/gorm"
)

// QuarterlyResult is the structured outcome of one quarterly invocation.
type QuarterlyResult struct {
	Success       bool      `json:"success"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	Message       string    `json:"message,omitempty"`
	QuarterKey    string    `json:"quarter_key"`
	DryRun        bool      `json:"dry_run"`
	ConfigVersion string    `json:"config_version,omitempty"`
	TotalPv       string    `json:"total_pv,omitempty"`
	PoolStockist  string    `json:"pool_stockist,omitempty"`
	PoolLeader    string    `json:"pool_leader,omitempty"`
	StockistCount int       `json:"stockist_count"`
	LeaderCount   int       `json:"leader_count"`
}

// poolShare is one eligible user's cut of a quarterly pool.
type poolShare struct {
	UserID uint64
	Amount *decimal.Big
}

type quarterlyComputation struct {
	totalPv        *decimal.Big
	poolStockist   *decimal.Big
	poolLeader     *decimal.Big
	stockistShares []poolShare
	leaderShares   []poolShare
	activated      map[uint64]bool
}

func quarterlyLockKey(quarterKey string) string {
	return "quarterly_settlement:" + quarterKey
}

func failQuarterly(quarterKey string, dryRun bool, kind ErrorKind, message string) *QuarterlyResult {
	return &QuarterlyResult{
		Success:    false,
		ErrorKind:  kind,
		Message:    message,
		QuarterKey: quarterKey,
		DryRun:     dryRun,
	}
}

func priorQuarterlyResult(settlement *model.QuarterlySettlement) *QuarterlyResult {
	return &QuarterlyResult{
		Success:       true,
		ErrorKind:     ErrorKind_AlreadyFinalized,
		Message:       "quarter is already finalized",
		QuarterKey:    settlement.QuarterKey,
		ConfigVersion: settlement.ConfigVersion,
		TotalPv:       settlement.TotalPv.V.String(),
		PoolStockist:  settlement.PoolStockist.V.String(),
		PoolLeader:    settlement.PoolLeader.V.String(),
		StockistCount: settlement.StockistCount,
		LeaderCount:   settlement.LeaderCount,
	}
}

// RunQuarterly executes or previews one quarterly pool distribution. The
// pools are fixed percentages of the quarter's PV, so no K-factor applies;
// per line rounding goes down and the residue stays in reserve.
func (e *Engine) RunQuarterly(quarterKey string, dryRun, force bool) *QuarterlyResult {
	logger := log.With().
		Str("section", "settlement").
		Str("action", "quarterly").
		Str("quarter_key", quarterKey).
		Bool("dry_run", dryRun).
		Logger()

	from, to, err := model.QuarterKeyRange(quarterKey)
	if err != nil {
		return failQuarterly(quarterKey, dryRun, ErrorKind_InvalidPeriod, err.Error())
	}

	existing, err := e.repo.GetQuarterlySettlementByKey(quarterKey)
	if err != nil {
		return failQuarterly(quarterKey, dryRun, ErrorKind_Internal, err.Error())
	}
	if existing != nil {
		monitor.SettlementRuns.WithLabelValues("quarterly", "already_finalized").Inc()
		return priorQuarterlyResult(existing)
	}

	if !force {
		release, serr := e.acquireLock(quarterlyLockKey(quarterKey), "quarter")
		if serr != nil {
			if serr.Kind == ErrorKind_LockContention {
				monitor.SettlementRuns.WithLabelValues("quarterly", "lock_contention").Inc()
			}
			return failQuarterly(quarterKey, dryRun, serr.Kind, serr.Message)
		}
		defer release()
	}

	computation, cerr := e.computeQuarterly(from, to)
	if cerr != nil {
		monitor.SettlementRuns.WithLabelValues("quarterly", string(cerr.Kind)).Inc()
		logger.Error().Str("error_kind", string(cerr.Kind)).Msg(cerr.Message)
		return failQuarterly(quarterKey, dryRun, cerr.Kind, cerr.Message)
	}

	result := &QuarterlyResult{
		Success:       true,
		QuarterKey:    quarterKey,
		DryRun:        dryRun,
		ConfigVersion: e.cfg.Version,
		TotalPv:       computation.totalPv.String(),
		PoolStockist:  computation.poolStockist.String(),
		PoolLeader:    computation.poolLeader.String(),
		StockistCount: len(computation.stockistShares),
		LeaderCount:   len(computation.leaderShares),
	}
	if dryRun {
		monitor.SettlementRuns.WithLabelValues("quarterly", "dry_run").Inc()
		return result
	}

	prior, perr := e.finalizeQuarterly(quarterKey, computation)
	if perr != nil {
		monitor.SettlementRuns.WithLabelValues("quarterly", string(perr.Kind)).Inc()
		logger.Error().Str("error_kind", string(perr.Kind)).Msg(perr.Message)
		return failQuarterly(quarterKey, dryRun, perr.Kind, perr.Message)
	}
	if prior != nil {
		monitor.SettlementRuns.WithLabelValues("quarterly", "already_finalized").Inc()
		return priorQuarterlyResult(prior)
	}

	monitor.SettlementRuns.WithLabelValues("quarterly", "finalized").Inc()
	logger.Info().
		Str("pool_stockist", computation.poolStockist.String()).
		Str("pool_leader", computation.poolLeader.String()).
		Int("stockists", len(computation.stockistShares)).
		Int("leaders", len(computation.leaderShares)).
		Msg("Quarterly settlement finalized")
	return result
}

func (e *Engine) computeQuarterly(from, to time.Time) (*quarterlyComputation, *Error) {
	totalPv, err := e.repo.SumDistinctOrderPv(from, to)
	if err != nil {
		return nil, newError(ErrorKind_Internal, "summing order PV: %s", err.Error())
	}
	if totalPv.IsNaN(0) || totalPv.Sign() < 0 {
		return nil, newError(ErrorKind_DataIntegrity, "total PV for quarter is negative or not a number")
	}

	poolStockist := conv.NewDecimalWithPrecision()
	poolStockist.Mul(totalPv, conv.NewFromFloat(e.cfg.PoolStockistRate))
	poolLeader := conv.NewDecimalWithPrecision()
	poolLeader.Mul(totalPv, conv.NewFromFloat(e.cfg.PoolLeaderRate))

	orderCounts, err := e.repo.CountOrdersByUser(from, to)
	if err != nil {
		return nil, newError(ErrorKind_Internal, "counting orders: %s", err.Error())
	}
	stockistMetrics := make(map[uint64]*decimal.Big)
	for userID, orders := range orderCounts {
		if orders >= e.cfg.StockistMinOrders && e.cfg.StockistMinOrders > 0 {
			stockistMetrics[userID] = conv.NewDecimalWithPrecision().SetUint64(uint64(orders))
		}
	}

	weakByUser, err := e.repo.WeakPvByUser()
	if err != nil {
		return nil, newError(ErrorKind_Internal, "loading PV states: %s", err.Error())
	}
	leaderThreshold := conv.NewFromFloat(e.cfg.LeaderMinWeakPv)
	leaderMetrics := make(map[uint64]*decimal.Big)
	if leaderThreshold.Sign() > 0 {
		for userID, weak := range weakByUser {
			if weak.Cmp(leaderThreshold) >= 0 {
				leaderMetrics[userID] = weak
			}
		}
	}

	ids := make([]uint64, 0, len(stockistMetrics)+len(leaderMetrics))
	for userID := range stockistMetrics {
		ids = append(ids, userID)
	}
	for userID := range leaderMetrics {
		ids = append(ids, userID)
	}
	users, err := e.repo.GetUsersByIDs(ids)
	if err != nil {
		return nil, newError(ErrorKind_Internal, "loading users: %s", err.Error())
	}
	activated := make(map[uint64]bool, len(users))
	for userID, user := range users {
		activated[userID] = user.IsActivated()
	}

	return &quarterlyComputation{
		totalPv:        totalPv,
		poolStockist:   poolStockist,
		poolLeader:     poolLeader,
		stockistShares: distributePool(poolStockist, stockistMetrics),
		leaderShares:   distributePool(poolLeader, leaderMetrics),
		activated:      activated,
	}, nil
}

// distributePool splits the pool pro-rata by each eligible user's metric.
// Every share rounds down to currency precision, so the sum never exceeds
// the pool; the residue is swept to reserve by not being allocated at all.
func distributePool(pool *decimal.Big, metrics map[uint64]*decimal.Big) []poolShare {
	if pool.Sign() <= 0 || len(metrics) == 0 {
		return nil
	}
	metricSum := conv.NewDecimalWithPrecision()
	for _, metric := range metrics {
		metricSum.Add(metricSum, metric)
	}
	if metricSum.Sign() <= 0 {
		return nil
	}

	shares := make([]poolShare, 0, len(metrics))
	for userID, metric := range metrics {
		amount := conv.NewDecimalWithPrecision()
		amount.Mul(pool, metric)
		amount.Quo(amount, metricSum)
		conv.RoundToPayoutDown(amount)
		if amount.Sign() <= 0 {
			continue
		}
		shares = append(shares, poolShare{UserID: userID, Amount: amount})
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].UserID < shares[j].UserID })
	return shares
}

func (e *Engine) finalizeQuarterly(quarterKey string, computation *quarterlyComputation) (*model.QuarterlySettlement, *Error) {
	var prior *model.QuarterlySettlement

	err := e.repo.Conn.Transaction(func(tx *gorm.DB) error {
		found := &model.QuarterlySettlement{}
		err := tx.First(found, "quarter_key = ?", quarterKey).Error
		if err == nil {
			prior = found
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		operation := model.NewOperation(model.OperationType_PoolDividend, model.OperationStatus_Completed)
		if err := tx.Create(operation).Error; err != nil {
			return err
		}

		settlement := &model.QuarterlySettlement{
			QuarterKey:    quarterKey,
			RefID:         operation.RefID,
			ConfigVersion: e.cfg.Version,
			TotalPv:       &postgres.Decimal{V: computation.totalPv},
			PoolStockist:  &postgres.Decimal{V: computation.poolStockist},
			PoolLeader:    &postgres.Decimal{V: computation.poolLeader},
			StockistCount: len(computation.stockistShares),
			LeaderCount:   len(computation.leaderShares),
			FinalizedAt:   time.Now(),
			CreatedAt:     time.Now(),
		}
		savePointName := "CreateQuarterlySettlement"
		if err := tx.SavePoint(savePointName).Error; err != nil {
			return err
		}
		if err := tx.Create(settlement).Error; err != nil {
			if queries.IsUniqueViolation(err) {
				tx.RollbackTo(savePointName)
				winner := &model.QuarterlySettlement{}
				if err := tx.First(winner, "quarter_key = ?", quarterKey).Error; err != nil {
					return err
				}
				prior = winner
				return nil
			}
			return err
		}

		pay := func(shares []poolShare, bonusType model.BonusType) error {
			for _, share := range shares {
				if !computation.activated[share.UserID] {
					pending := model.NewPendingBonus(share.UserID, share.Amount, bonusType,
						model.PvSourceType_Settlement, quarterKey, model.PendingBonusReleaseMode_Auto)
					if err := tx.Create(pending).Error; err != nil {
						return err
					}
					continue
				}
				comment := fmt.Sprintf("%s pool dividend for %s", bonusType, quarterKey)
				trx := model.NewTransaction(operation.RefID, model.OperationType_PoolDividend,
					share.UserID, bonusType, quarterKey, share.Amount, comment)
				if err := tx.Create(trx).Error; err != nil {
					return err
				}
				paid, _ := share.Amount.Float64()
				monitor.BonusPaid.WithLabelValues(string(bonusType)).Add(paid)
			}
			return nil
		}
		if err := pay(computation.stockistShares, model.BonusType_Stockist); err != nil {
			return err
		}
		return pay(computation.leaderShares, model.BonusType_Leader)
	})
	if err != nil {
		return nil, newError(ErrorKind_Internal, "finalizing quarter: %s", err.Error())
	}
	return prior, nil
}
