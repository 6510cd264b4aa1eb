package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(creditsTotal, creditsRejected, finalizeTotal, receiptsTotal, ledgerDrift)
}

var (
	// Absolute credit movement by ledger type (signup/purchase/spend/refund/grant).
	creditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_moved_total",
			Help:      "Credits moved, labeled by ledger entry type.",
		},
		[]string{"type"},
	)

	creditsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_spend_rejected_total",
			Help:      "Spend attempts rejected for insufficient balance.",
		},
	)

	// outcome: credited|already_credited|error
	finalizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_finalize_total",
			Help:      "Finalize calls by outcome.",
		},
		[]string{"outcome"},
	)

	// result: sent|failed|dropped
	receiptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_total",
			Help:      "Receipt notifications by result.",
		},
		[]string{"result"},
	)

	ledgerDrift = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_drift_detected_total",
			Help:      "Reconciliations that found balance and ledger out of step.",
		},
	)
)

func AddCredits(typ string, n int64) {
	if n < 0 {
		n = -n
	}
	creditsTotal.WithLabelValues(norm(typ)).Add(float64(n))
}

func IncSpendRejected() { creditsRejected.Inc() }

func IncFinalize(outcome string) { finalizeTotal.WithLabelValues(norm(outcome)).Inc() }

func IncReceipt(result string) { receiptsTotal.WithLabelValues(norm(result)).Inc() }

func IncLedgerDrift() { ledgerDrift.Inc() }
