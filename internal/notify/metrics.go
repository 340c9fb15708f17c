package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	Queued    prometheus.Counter
	Delivered prometheus.Counter
	Degraded  prometheus.Counter
	Dropped   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with notification metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Queued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provisor_notifications_queued_total",
			Help: "Total number of notifications accepted into the delivery queue",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provisor_notifications_delivered_total",
			Help: "Total number of notifications successfully delivered",
		}),
		Degraded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "provisor_notifications_degraded_total",
			Help: "Total number of notifications delivered through the fallback sink",
		}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "provisor_notifications_dropped_total",
			Help: "Total number of notifications dropped by reason",
		}, []string{"reason"}), // reason: "queue_full", "delivery_failed"
	}
}

// IncQueued increments the queued counter.
func (m *Metrics) IncQueued() {
	if m != nil {
		m.Queued.Inc()
	}
}

// IncDelivered increments the delivered counter.
func (m *Metrics) IncDelivered() {
	if m != nil {
		m.Delivered.Inc()
	}
}

// IncDegraded increments the fallback delivery counter.
func (m *Metrics) IncDegraded() {
	if m != nil {
		m.Degraded.Inc()
	}
}

// IncDropped increments the dropped counter for the given reason.
func (m *Metrics) IncDropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}
