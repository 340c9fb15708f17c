package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reclaim worker.
type Metrics struct {
	Reclaimed prometheus.Counter
	Failures  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with reclaim metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Reclaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provisor_license_reclaim_processed_total",
			Help: "Total number of reclaim items completed after the grace period",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provisor_license_reclaim_failures_total",
			Help: "Total number of license removal attempts that failed and stayed pending",
		}),
	}
}

// IncReclaimed increments the processed counter.
func (m *Metrics) IncReclaimed() {
	if m != nil {
		m.Reclaimed.Inc()
	}
}

// IncFailure increments the failure counter.
func (m *Metrics) IncFailure() {
	if m != nil {
		m.Failures.Inc()
	}
}
