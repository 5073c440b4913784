package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SettlementRuns counts settlement invocations by period type and outcome.
	SettlementRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "runs_total",
		Help:      "Settlement runs by period type and outcome",
	}, []string{"period", "outcome"})

	// KFactor records the damping factor of the last finalized weekly run.
	KFactor = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "settlement",
		Name:      "k_factor",
		Help:      "K-factor of the last finalized weekly settlement",
	}, []string{"week_key"})

	// BonusPaid totals paid bonus amounts by bonus type.
	BonusPaid = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "bonus_paid_total",
		Help:      "Paid bonus amounts by type",
	}, []string{"bonus_type"})

	// LedgerDuplicates counts re-processed order credits swallowed as
	// already applied.
	LedgerDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "ledger_duplicates_total",
		Help:      "Duplicate ledger credits ignored via the unique constraint",
	})

	// PendingReleases counts pending bonus releases by mode.
	PendingReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Name:      "pending_releases_total",
		Help:      "Pending bonus releases by mode",
	}, []string{"mode"})
)
