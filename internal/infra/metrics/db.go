package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbConns) }

// dbConns mirrors pgxpool.Stat for the Postgres pool backing the ledger and
// purchase repositories.
var dbConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "postgres",
		Name:      "pool_conns",
		Help:      "Postgres pool connections by state (total, idle, acquired, max).",
	},
	[]string{"state"},
)

func SetDBPoolStats(total, idle, acquired, max int32) {
	dbConns.WithLabelValues("total").Set(float64(total))
	dbConns.WithLabelValues("idle").Set(float64(idle))
	dbConns.WithLabelValues("acquired").Set(float64(acquired))
	dbConns.WithLabelValues("max").Set(float64(max))
}
