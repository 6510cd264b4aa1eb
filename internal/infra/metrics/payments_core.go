package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayRequests,
		gatewayDuration,
		webhookRequests,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Purchases by status transition (pending/paid/failed/canceled).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_revenue_minor_total",
			Help:      "Minor units of finalized purchases, labeled by currency.",
		},
		[]string{"currency"},
	)

	// op: checkout|status, result: ok|error
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_gateway_requests_total",
			Help:      "Outbound payment gateway calls by provider, operation and result.",
		},
		[]string{"provider", "op", "result"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_gateway_duration_seconds",
			Help:      "Latency of outbound payment gateway calls.",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"provider", "op"},
	)

	// result: ok|bad_signature|bad_json|not_found|error
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_requests_total",
			Help:      "Inbound payment webhooks by result.",
		},
		[]string{"result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amountMinor int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}

func ObserveGateway(provider, op string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayRequests.WithLabelValues(norm(provider), norm(op), result).Inc()
	gatewayDuration.WithLabelValues(norm(provider), norm(op)).Observe(d.Seconds())
}

func IncWebhook(result string) {
	webhookRequests.WithLabelValues(norm(result)).Inc()
}
