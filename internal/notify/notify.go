// Package notify queues operator and employee notifications. Delivery is
// best-effort: the queue is bounded, failures are retried once and then
// dropped with a metric, and nothing here ever fails a provisioning run.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"provisor/pkg/platform/circuit"
)

// Priority orders delivery urgency. High is reserved for escalations.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is one outbound message.
type Notification struct {
	Recipients    []string
	Subject       string
	Body          string
	Priority      Priority
	CorrelationID string
}

// Sender delivers a single notification. Implementations: smtp.Mailer,
// LogSender.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 10 * time.Second
)

// Emitter is a bounded queue with a background delivery worker. When the
// queue is full the oldest pending notification is dropped to admit the
// new one; escalations are the freshest signal and must get through.
type Emitter struct {
	sender   Sender
	fallback Sender
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *Metrics

	sendTimeout time.Duration
	inbox       chan Notification
	wg          sync.WaitGroup
	closed      chan struct{}
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithQueueSize bounds the number of pending notifications.
func WithQueueSize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.inbox = make(chan Notification, size)
		}
	}
}

// WithSendTimeout bounds a single delivery attempt.
func WithSendTimeout(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.sendTimeout = d
		}
	}
}

// WithMetrics attaches delivery metrics.
func WithMetrics(m *Metrics) EmitterOption {
	return func(e *Emitter) {
		e.metrics = m
	}
}

// WithFallback installs a degraded-mode sink behind a circuit breaker.
// After the breaker's failure threshold of consecutive primary failures,
// deliveries route to the fallback; the primary is still attempted first
// on every notification so recoveries close the circuit on their own.
func WithFallback(sender Sender, breaker *circuit.Breaker) EmitterOption {
	return func(e *Emitter) {
		if sender != nil && breaker != nil {
			e.fallback = sender
			e.breaker = breaker
		}
	}
}

// NewEmitter constructs an emitter and starts its delivery worker.
func NewEmitter(sender Sender, logger *slog.Logger, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		sender:      sender,
		logger:      logger,
		sendTimeout: defaultSendTimeout,
		inbox:       make(chan Notification, defaultQueueSize),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.wg.Add(1)
	go e.deliverLoop()
	return e
}

// Queue accepts a notification for asynchronous delivery. It never blocks:
// a full queue evicts the oldest pending notification instead.
func (e *Emitter) Queue(ctx context.Context, n Notification) error {
	if len(n.Recipients) == 0 {
		return errors.New("notification has no recipients")
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case e.inbox <- n:
		e.metrics.IncQueued()
		return nil
	default:
	}

	// Queue is full; evict the oldest and try once more.
	select {
	case old := <-e.inbox:
		e.metrics.IncDropped("queue_full")
		e.logger.Warn("notification queue full, dropping oldest",
			"subject", old.Subject,
			"correlation_id", old.CorrelationID,
		)
	default:
	}
	select {
	case e.inbox <- n:
		e.metrics.IncQueued()
	default:
		e.metrics.IncDropped("queue_full")
		e.logger.Warn("notification queue full, dropping",
			"subject", n.Subject,
			"correlation_id", n.CorrelationID,
		)
	}
	return nil
}

// Close delivers whatever was accepted and stops the worker.
func (e *Emitter) Close() {
	close(e.closed)
	e.wg.Wait()
}

func (e *Emitter) deliverLoop() {
	defer e.wg.Done()
	for {
		select {
		case n := <-e.inbox:
			e.deliver(n)
		case <-e.closed:
			for {
				select {
				case n := <-e.inbox:
					e.deliver(n)
				default:
					return
				}
			}
		}
	}
}

// deliver attempts delivery, retrying once before giving up. With a
// fallback configured, a tripped breaker reroutes the notification there
// instead of hammering the failing sender with the retry.
func (e *Emitter) deliver(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), e.sendTimeout)
	defer cancel()

	err := e.sender.Send(ctx, n)
	if err == nil {
		e.recordSuccess()
		e.metrics.IncDelivered()
		return
	}
	if e.recordFailure(err) {
		e.deliverFallback(ctx, n)
		return
	}
	e.logger.Warn("notification delivery failed, retrying",
		"subject", n.Subject,
		"correlation_id", n.CorrelationID,
		"error", err,
	)

	if err := e.sender.Send(ctx, n); err != nil {
		if e.recordFailure(err) {
			e.deliverFallback(ctx, n)
			return
		}
		e.metrics.IncDropped("delivery_failed")
		e.logger.Error("notification dropped after retry",
			"subject", n.Subject,
			"recipients", len(n.Recipients),
			"correlation_id", n.CorrelationID,
			"error", err,
		)
		return
	}
	e.recordSuccess()
	e.metrics.IncDelivered()
}

func (e *Emitter) deliverFallback(ctx context.Context, n Notification) {
	if err := e.fallback.Send(ctx, n); err != nil {
		e.metrics.IncDropped("delivery_failed")
		e.logger.Error("notification dropped, fallback delivery failed",
			"subject", n.Subject,
			"correlation_id", n.CorrelationID,
			"error", err,
		)
		return
	}
	e.metrics.IncDegraded()
}

func (e *Emitter) recordSuccess() {
	if e.breaker == nil {
		return
	}
	if _, change := e.breaker.RecordSuccess(); change.Closed {
		e.logger.Info("notification sender recovered, resuming primary delivery",
			"breaker", e.breaker.Name(),
		)
	}
}

// recordFailure feeds the breaker and reports whether this delivery should
// go through the fallback sink.
func (e *Emitter) recordFailure(err error) bool {
	if e.breaker == nil || e.fallback == nil {
		return false
	}
	useFallback, change := e.breaker.RecordFailure()
	if change.Opened {
		e.logger.Error("notification sender circuit opened, degrading to fallback delivery",
			"breaker", e.breaker.Name(),
			"error", err,
		)
	}
	return useFallback
}

// LogSender is the delivery backend when no SMTP host is configured. It
// records the notification in the service log and reports success.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender constructs a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification (log-only delivery)",
		"recipients", n.Recipients,
		"subject", n.Subject,
		"priority", n.Priority,
		"correlation_id", n.CorrelationID,
	)
	return nil
}
