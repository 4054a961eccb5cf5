// Package metrics defines and registers all custom Prometheus metrics for
// the marketplace access backend. It is the single source of truth for
// metric names, labels, and help strings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

// ── Role synchronization metrics ─────────────────────────────────────────────

// RoleSyncTotal counts synchronization attempts.
// Labels:
//   - action: "grant_role", "revoke_role", or "approve_author"
//   - role: the symbolic role name (e.g. "AUTHOR")
//   - outcome: "success" or "failed"
var RoleSyncTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_sync_total",
		Help:      "Total number of role synchronization attempts, by action, role, and outcome.",
	},
	[]string{"action", "role", "outcome"},
)

// LedgerTxDuration measures submit-to-receipt latency of ledger transactions.
// Label:
//   - method: the contract method submitted ("grantRole" or "revokeRole")
var LedgerTxDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_tx_duration_seconds",
		Help:      "Duration from transaction submission to receipt confirmation.",
		Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"method"},
)

// SyncLockContentionTotal counts synchronization attempts rejected because
// another operation held the wallet lock.
var SyncLockContentionTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_lock_contention_total",
		Help:      "Total number of operations rejected due to a held per-wallet lock.",
	},
)

// ── Author request metrics ───────────────────────────────────────────────────

// AuthorRequestsTotal counts author role petitions.
// Label:
//   - result: "submitted" or "duplicate"
var AuthorRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "author_requests_total",
		Help:      "Total number of author role requests, by result.",
	},
	[]string{"result"},
)

// ── Reconciliation metrics ───────────────────────────────────────────────────

// ReconcileDriftTotal counts divergences found between directory and ledger.
// Label:
//   - resolution: "corrected", "failed", or "orphan_request_removed"
var ReconcileDriftTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_drift_total",
		Help:      "Total number of ledger/directory divergences detected during sweeps, by resolution.",
	},
	[]string{"resolution"},
)

// ReconcileSweepDuration measures the wall time of a full reconciliation sweep.
var ReconcileSweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconcile_sweep_duration_seconds",
		Help:      "Duration of a full reconciliation sweep.",
		Buckets:   prometheus.DefBuckets,
	},
)
