// Package dispatch serializes saga runs per employee and caps how many
// execute at once. The orchestrator itself is single-run; this layer makes
// the service safe to call concurrently.
package dispatch

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"provisor/internal/provisioning/models"
	dErrors "provisor/pkg/domain-errors"
)

const stripeCount = 64

// Executor runs one provisioning saga to completion.
type Executor interface {
	Execute(ctx context.Context, event models.LifecycleEvent) (models.Result, error)
}

// Dispatcher gates Execute calls: events for the same employee run one at
// a time, and a weighted semaphore bounds total concurrent sagas.
type Dispatcher struct {
	executor Executor
	stripes  [stripeCount]sync.Mutex
	sem      *semaphore.Weighted
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New constructs a Dispatcher capping concurrent runs at maxConcurrent.
func New(executor Executor, maxConcurrent int, opts ...Option) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	d := &Dispatcher{
		executor: executor,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Execute runs the event's saga under the dispatch gates.
//
// The employee stripe is taken before a concurrency slot, so a burst of
// events for one employee queues on its stripe without holding capacity
// other employees could use. Waiting for a slot respects ctx.
func (d *Dispatcher) Execute(ctx context.Context, event models.LifecycleEvent) (models.Result, error) {
	lock := d.stripe(string(event.EmployeeID))
	lock.Lock()
	defer lock.Unlock()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.logger.Warn("gave up waiting for a provisioning slot",
			"employee_id", event.EmployeeID,
			"event", event.Type,
			"error", err,
		)
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for a provisioning slot")
	}
	defer d.sem.Release(1)

	return d.executor.Execute(ctx, event)
}

func (d *Dispatcher) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &d.stripes[h.Sum32()%stripeCount]
}
