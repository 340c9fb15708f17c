package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"provisor/internal/audit"
	id "provisor/pkg/domain"
)

// Store persists reclaim items. Complete is idempotent: completing an item
// that is no longer pending is a no-op, which keeps the at-least-once
// worker safe across restarts.
type Store interface {
	Schedule(ctx context.Context, item Item) error
	Due(ctx context.Context, now time.Time, limit int) ([]Item, error)
	Complete(ctx context.Context, itemID id.ReclaimID) error
	ListPending(ctx context.Context) ([]Item, error)
}

// LicenseRemover is the directory surface the worker needs.
type LicenseRemover interface {
	RemoveLicenses(ctx context.Context, identityID string, licenseIDs []string) error
}

// Recorder captures audit entries for reclaimed licenses.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

const (
	defaultInterval   = time.Hour
	defaultBatchLimit = 50
)

// Worker drains due reclaim items on a ticker. A removal failure leaves the
// item pending for the next tick; the directory calls are idempotent.
type Worker struct {
	store     Store
	directory LicenseRemover
	audit     Recorder
	logger    *slog.Logger
	metrics   *Metrics

	interval   time.Duration
	batchLimit int
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithBatchLimit caps how many items one tick processes.
func WithBatchLimit(limit int) WorkerOption {
	return func(w *Worker) {
		if limit > 0 {
			w.batchLimit = limit
		}
	}
}

// WithMetrics attaches reclaim metrics.
func WithMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// NewWorker constructs a reclaim worker.
func NewWorker(store Store, directory LicenseRemover, recorder Recorder, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:      store,
		directory:  directory,
		audit:      recorder,
		logger:     logger,
		interval:   defaultInterval,
		batchLimit: defaultBatchLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Run processes due items until ctx is cancelled. The first pass runs
// immediately so restarts do not wait a full interval.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if _, err := w.Reclaim(ctx, time.Now()); err != nil {
		w.logger.Error("license reclaim pass failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Reclaim(ctx, time.Now()); err != nil {
				w.logger.Error("license reclaim pass failed", "error", err)
			}
		}
	}
}

// Reclaim processes one batch of items due at now and reports how many were
// completed. Exported so tests and shutdown paths can run a pass directly.
func (w *Worker) Reclaim(ctx context.Context, now time.Time) (int, error) {
	items, err := w.store.Due(ctx, now, w.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("list due reclaim items: %w", err)
	}

	reclaimed := 0
	for _, item := range items {
		if len(item.LicenseIDs) > 0 {
			if err := w.directory.RemoveLicenses(ctx, item.IdentityID, item.LicenseIDs); err != nil {
				w.metrics.IncFailure()
				w.logger.Error("license reclaim failed, item stays pending",
					"employee_id", item.EmployeeID,
					"identity_id", item.IdentityID,
					"licenses", len(item.LicenseIDs),
					"error", err,
				)
				continue
			}
		}

		w.record(ctx, item)
		if err := w.store.Complete(ctx, item.ID); err != nil {
			// The removal already happened; a repeat next tick is harmless.
			w.logger.Error("failed to complete reclaim item",
				"reclaim_id", item.ID,
				"error", err,
			)
			continue
		}
		w.metrics.IncReclaimed()
		reclaimed++

		w.logger.Info("reclaimed licenses",
			"employee_id", item.EmployeeID,
			"identity_id", item.IdentityID,
			"licenses", len(item.LicenseIDs),
		)
	}
	return reclaimed, nil
}

func (w *Worker) record(ctx context.Context, item Item) {
	entry := audit.Entry{
		RequestID:  item.RequestID,
		EmployeeID: item.EmployeeID,
		Action:     "remove_license",
		Outcome:    audit.OutcomeSuccess,
		Target:     item.IdentityID,
		Detail:     fmt.Sprintf("reclaimed after grace period: %s", strings.Join(item.LicenseIDs, ", ")),
		Actor:      "system:reclaim",
	}
	if err := w.audit.Record(ctx, entry); err != nil {
		w.logger.Error("failed to record reclaim audit entry",
			"employee_id", item.EmployeeID,
			"error", err,
		)
	}
}
