package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(workerTasksTotal, reconcilerRuns) }

var (
	// result: ok|error|panic|rejected
	workerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Background tasks by pool and result.",
		},
		[]string{"pool", "result"},
	)

	// kind: poll|finalize
	reconcilerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_reconciler_actions_total",
			Help:      "Purchases touched by the reconciler, by action and result.",
		},
		[]string{"kind", "result"},
	)
)

func IncWorkerTask(pool, result string) {
	workerTasksTotal.WithLabelValues(norm(pool), norm(result)).Inc()
}

func IncReconciler(kind, result string) {
	reconcilerRuns.WithLabelValues(norm(kind), norm(result)).Inc()
}
