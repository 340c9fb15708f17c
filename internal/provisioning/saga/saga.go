// Package saga orchestrates identity lifecycle provisioning: one request,
// one sequential run over a declarative step plan, with compensation on
// failure. The orchestrator keeps no state of its own; everything it does
// lands in the request ledger and the audit trail.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"provisor/internal/audit"
	"provisor/internal/directory"
	"provisor/internal/notify"
	"provisor/internal/platform/config"
	"provisor/internal/platform/telemetry"
	"provisor/internal/provisioning/models"
	"provisor/internal/provisioning/saga/metrics"
	"provisor/internal/schedule"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
	"provisor/pkg/platform/sentinel"
	"provisor/pkg/requestcontext"
)

const tracerName = "provisor/internal/provisioning/saga"

// licenseBatchTarget labels the single ledger step a license batch runs as.
const licenseBatchTarget = "licenses"

const defaultCallTimeout = 30 * time.Second

// errCancelled marks a run stopped by the cooperative cancel flag or the
// caller's context. It is handled exactly like a step failure.
var errCancelled = errors.New("cancellation requested")

// RequestStore persists provisioning requests and their step ledgers.
type RequestStore interface {
	Create(ctx context.Context, request *models.ProvisioningRequest) error
	Get(ctx context.Context, requestID id.RequestID) (*models.ProvisioningRequest, error)
	Update(ctx context.Context, request *models.ProvisioningRequest) error
	ListByEmployee(ctx context.Context, employeeID id.EmployeeID, limit int) ([]*models.ProvisioningRequest, error)
	ListRecent(ctx context.Context, limit int) ([]*models.ProvisioningRequest, error)
	RequestCancel(ctx context.Context, requestID id.RequestID) error
	CancelRequested(ctx context.Context, requestID id.RequestID) (bool, error)
}

// Recorder captures audit entries for saga activity.
type Recorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// Notifier queues employee and operator notifications.
type Notifier interface {
	Queue(ctx context.Context, n notify.Notification) error
}

// Scheduler accepts deferred license reclaim items for leavers.
type Scheduler interface {
	Schedule(ctx context.Context, item schedule.Item) error
}

// ConfigSource hands out one immutable provisioning snapshot per run.
type ConfigSource interface {
	Snapshot() config.ProvisioningConfig
}

// Orchestrator drives lifecycle sagas against the directory and serves the
// request resource for the transport layer. One Execute call is one
// sequential saga; serializing runs for the same employee is the caller's
// job.
type Orchestrator struct {
	directory directory.Client
	store     RequestStore
	audit     Recorder
	notifier  Notifier
	scheduler Scheduler
	config    ConfigSource

	logger      *slog.Logger
	metrics     *metrics.Metrics
	callTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics wires saga metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithCallTimeout overrides the per-directory-call deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// New constructs an Orchestrator.
func New(client directory.Client, store RequestStore, recorder Recorder, notifier Notifier, scheduler Scheduler, cfg ConfigSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		directory:   client,
		store:       store,
		audit:       recorder,
		notifier:    notifier,
		scheduler:   scheduler,
		config:      cfg,
		logger:      slog.Default(),
		callTimeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Execute runs the saga for one lifecycle event and returns the caller
// facing summary. Validation failures are rejected before any external
// call; every later failure lands in the request ledger and comes back as
// a populated Result alongside the error.
func (o *Orchestrator) Execute(ctx context.Context, event models.LifecycleEvent) (models.Result, error) {
	request, err := models.NewRequest(event, requestcontext.Now(ctx))
	if err != nil {
		return models.Result{}, err
	}
	if err := o.store.Create(ctx, request); err != nil {
		return models.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist provisioning request")
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "saga.Execute",
		attribute.String("saga.event", event.Type.String()),
		attribute.String("saga.request_id", request.ID.String()),
	)
	defer span.End()

	cfg := o.config.Snapshot()
	start := time.Now()

	o.logger.Info("saga started",
		"request_id", request.ID,
		"employee_id", request.EmployeeID,
		"event", event.Type,
		"department", event.Department,
	)
	o.recordAudit(ctx, request, audit.Entry{
		Action:  audit.ActionSagaStarted,
		Outcome: audit.OutcomeSuccess,
		Target:  event.Type.String(),
	})

	result, err := o.run(ctx, request, cfg)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	o.metrics.ObserveRunDuration(event.Type.String(), time.Since(start))
	return result, err
}

func (o *Orchestrator) run(ctx context.Context, request *models.ProvisioningRequest, cfg config.ProvisioningConfig) (models.Result, error) {
	p, err := o.plan(ctx, request, cfg)
	if err != nil {
		phase := "plan"
		var pf *planFailure
		if errors.As(err, &pf) {
			phase = pf.phase
		}
		return o.abort(ctx, request, cfg, phase, err)
	}

	request.PlannedSteps = len(p.steps)
	o.persist(ctx, request)

	if failedStep, err := o.runPlan(ctx, request, p.steps); err != nil {
		return o.abort(ctx, request, cfg, failedStep, err)
	}
	return o.complete(ctx, request, p)
}

func (o *Orchestrator) complete(ctx context.Context, request *models.ProvisioningRequest, p *plan) (models.Result, error) {
	if err := request.CanComplete(); err != nil {
		return models.ResultFromRequest(request), err
	}
	request.ApplyCompletion(requestcontext.Now(ctx))
	o.persist(ctx, request)

	o.recordAudit(ctx, request, audit.Entry{
		Action:  audit.ActionSagaCompleted,
		Outcome: audit.OutcomeSuccess,
		Target:  request.Event.Type.String(),
		Detail:  fmt.Sprintf("%d of %d planned steps completed", request.CompletedSteps(), request.PlannedSteps),
	})
	o.metrics.IncRunOutcome(request.Event.Type.String(), "completed")
	o.logger.Info("saga completed",
		"request_id", request.ID,
		"employee_id", request.EmployeeID,
		"event", request.Event.Type,
		"completed_steps", request.CompletedSteps(),
		"warnings", len(request.Warnings),
	)

	if p.confirm != nil {
		p.confirm(ctx)
	}
	return models.ResultFromRequest(request), nil
}

// abort compensates whatever completed, marks the request failed, and
// notifies operators. The run's context may already be dead here;
// compensation and bookkeeping still have to run, so the deadline is
// detached while request-scoped values are kept.
func (o *Orchestrator) abort(ctx context.Context, request *models.ProvisioningRequest, cfg config.ProvisioningConfig, failedStep string, cause error) (models.Result, error) {
	ctx = context.WithoutCancel(ctx)

	o.compensate(ctx, request)

	// The request is still in progress here; failing is always a legal move.
	request.ApplyFailure(failedStep, cause.Error(), requestcontext.Now(ctx))
	o.persist(ctx, request)

	o.recordAudit(ctx, request, audit.Entry{
		Action:  audit.ActionSagaFailed,
		Outcome: audit.OutcomeFailed,
		Target:  failedStep,
		Detail:  cause.Error(),
	})
	outcome := "failed"
	if errors.Is(cause, errCancelled) {
		outcome = "cancelled"
	}
	o.metrics.IncRunOutcome(request.Event.Type.String(), outcome)
	o.logger.Error("saga failed",
		"request_id", request.ID,
		"employee_id", request.EmployeeID,
		"event", request.Event.Type,
		"failed_step", failedStep,
		"error", cause,
	)

	o.escalate(ctx, request, cfg, failedStep, cause)

	return models.ResultFromRequest(request), o.failureError(request, failedStep, cause)
}

func (o *Orchestrator) failureError(request *models.ProvisioningRequest, failedStep string, cause error) error {
	if errors.Is(cause, sentinel.ErrNotFound) {
		return dErrors.Wrapf(cause, dErrors.CodeNotFound, "no directory identity for employee %s", request.EmployeeID)
	}
	return dErrors.Wrapf(cause, dErrors.CodePartialFailure, "%s provisioning failed at %s", request.Event.Type, failedStep)
}

func (o *Orchestrator) escalate(ctx context.Context, request *models.ProvisioningRequest, cfg config.ProvisioningConfig, failedStep string, cause error) {
	if len(cfg.AdminRecipients) == 0 {
		o.logger.Warn("no admin recipients configured, skipping escalation",
			"request_id", request.ID)
		return
	}
	subject, body := notify.EscalationMessage(notify.Escalation{
		DisplayName: request.Event.DisplayName,
		EmployeeID:  request.EmployeeID.String(),
		EventType:   request.Event.Type.String(),
		Department:  request.Event.Department,
		FailedStep:  failedStep,
		ErrorDetail: cause.Error(),
		RequestID:   request.ID.String(),
	})
	err := o.notifier.Queue(ctx, notify.Notification{
		Recipients:    cfg.AdminRecipients,
		Subject:       subject,
		Body:          body,
		Priority:      notify.PriorityHigh,
		CorrelationID: request.ID.String(),
	})
	if err != nil {
		o.logger.Error("escalation notification not queued",
			"request_id", request.ID,
			"error", err,
		)
	}
}

// GetRequest loads one provisioning request with its full step ledger.
func (o *Orchestrator) GetRequest(ctx context.Context, requestID id.RequestID) (*models.ProvisioningRequest, error) {
	request, err := o.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "provisioning request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load provisioning request")
	}
	return request, nil
}

// ListRecent returns the most recently created requests.
func (o *Orchestrator) ListRecent(ctx context.Context, limit int) ([]*models.ProvisioningRequest, error) {
	requests, err := o.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list provisioning requests")
	}
	return requests, nil
}

// ListByEmployee returns an employee's requests, newest first.
func (o *Orchestrator) ListByEmployee(ctx context.Context, employeeID id.EmployeeID, limit int) ([]*models.ProvisioningRequest, error) {
	requests, err := o.store.ListByEmployee(ctx, employeeID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list provisioning requests")
	}
	return requests, nil
}

// Cancel flags an in-progress request for cooperative cancellation. The
// running saga honors the flag at its next step boundary.
func (o *Orchestrator) Cancel(ctx context.Context, requestID id.RequestID) error {
	if err := o.store.RequestCancel(ctx, requestID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "provisioning request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.Wrap(err, dErrors.CodeConflict, "request is no longer in progress")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to request cancellation")
	}
	o.logger.Info("cancellation requested", "request_id", requestID)
	return nil
}

// resolveIdentity maps the HR employee id to the directory identity before
// any plan step runs. Move and Leave cannot proceed without it.
func (o *Orchestrator) resolveIdentity(ctx context.Context, employeeID id.EmployeeID) (*directory.Identity, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return o.directory.FindByEmployeeID(ctx, employeeID)
}

func (o *Orchestrator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.callTimeout)
}

// persist writes saga progress. Best-effort: the in-memory aggregate stays
// authoritative for the rest of the run, and the terminal Update carries
// the complete ledger.
func (o *Orchestrator) persist(ctx context.Context, request *models.ProvisioningRequest) {
	if err := o.store.Update(ctx, request); err != nil {
		o.logger.Error("failed to persist request progress",
			"request_id", request.ID,
			"error", err,
		)
	}
}

// recordAudit stamps the request identifiers onto the entry. Audit is
// best-effort from the saga's perspective.
func (o *Orchestrator) recordAudit(ctx context.Context, request *models.ProvisioningRequest, entry audit.Entry) {
	entry.RequestID = request.ID
	entry.EmployeeID = request.EmployeeID
	if err := o.audit.Record(ctx, entry); err != nil {
		o.logger.Error("failed to record audit entry",
			"request_id", request.ID,
			"action", entry.Action,
			"error", err,
		)
	}
}
