package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the provisioning saga.
type Metrics struct {
	// Run outcomes by event type
	RunOutcome *prometheus.CounterVec

	// End-to-end run latency by event type
	RunDuration *prometheus.HistogramVec

	// Step executions by directory action and status
	Steps *prometheus.CounterVec

	// Rollback executions by directory action and status
	Compensations *prometheus.CounterVec

	// Entitlement resolutions that fell back off the department matrix
	EntitlementFallbacks *prometheus.CounterVec
}

// New creates a new Metrics instance with all saga metrics registered.
func New() *Metrics {
	return &Metrics{
		RunOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provisor_saga_runs_total",
			Help: "Total saga runs by event type and outcome",
		}, []string{"event", "outcome"}), // outcome: "completed", "failed", "cancelled"

		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provisor_saga_duration_seconds",
			Help:    "Duration of full saga runs including compensation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"event"}),

		Steps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provisor_saga_steps_total",
			Help: "Total saga steps executed by action and status",
		}, []string{"action", "status"}), // status: "completed", "failed", "tolerated"

		Compensations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provisor_saga_compensations_total",
			Help: "Total rollback actions executed by action and status",
		}, []string{"action", "status"}), // status: "completed", "failed"

		EntitlementFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provisor_entitlement_fallbacks_total",
			Help: "Total entitlement resolutions that used a fallback instead of a configured department",
		}, []string{"fallback"}),
	}
}

// IncRunOutcome records a finished saga run.
func (m *Metrics) IncRunOutcome(event, outcome string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(event, outcome).Inc()
	}
}

// ObserveRunDuration records the duration of a saga run.
func (m *Metrics) ObserveRunDuration(event string, d time.Duration) {
	if m != nil {
		m.RunDuration.WithLabelValues(event).Observe(d.Seconds())
	}
}

// IncStep records an executed step.
func (m *Metrics) IncStep(action, status string) {
	if m != nil {
		m.Steps.WithLabelValues(action, status).Inc()
	}
}

// IncCompensation records an executed rollback action.
func (m *Metrics) IncCompensation(action, status string) {
	if m != nil {
		m.Compensations.WithLabelValues(action, status).Inc()
	}
}

// IncEntitlementFallback records a resolution that missed the department matrix.
func (m *Metrics) IncEntitlementFallback(fallback string) {
	if m != nil {
		m.EntitlementFallbacks.WithLabelValues(fallback).Inc()
	}
}
