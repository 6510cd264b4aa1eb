package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every Jobmatchly series, e.g. jobmatchly_payments_total.
const namespace = "jobmatchly"

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register queues collectors from each file's init; nothing is exported
// until MustRegister runs.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister adds the queued collectors to the default registry. Safe to
// call from both the server and tests.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(collectors...)
	})
}
