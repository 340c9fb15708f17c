package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"provisor/internal/audit"
	"provisor/internal/entitlement"
	"provisor/internal/platform/config"
	"provisor/internal/platform/telemetry"
	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
	"provisor/pkg/requestcontext"
)

// step is one planned unit of work. run performs the external call and
// returns the payload the ledger captures; whether the step can be rolled
// back follows from the action, not from the plan.
type step struct {
	action models.ActionType
	target string
	run    func(ctx context.Context) (models.StepPayload, error)

	// tolerateFailure lets the run continue past this step failing: the
	// ledger records a failed step and a warning instead of aborting.
	tolerateFailure bool
}

func (s step) name() string {
	return models.StepName(s.action, s.target)
}

// plan is a workflow rendered as data: the ordered steps plus an optional
// post-completion confirmation.
type plan struct {
	steps   []step
	confirm func(ctx context.Context)
}

// planFailure marks a failure before the first step ran: resolving the
// identity or listing current memberships. It carries the phase name the
// request records as its failed step.
type planFailure struct {
	phase string
	err   error
}

func (f *planFailure) Error() string {
	return f.phase + ": " + f.err.Error()
}

func (f *planFailure) Unwrap() error {
	return f.err
}

// plan builds the step list for the request's event type. The entitlement
// resolver is wired per run so fallback signals land in this request's
// audit trail.
func (o *Orchestrator) plan(ctx context.Context, request *models.ProvisioningRequest, cfg config.ProvisioningConfig) (*plan, error) {
	resolver := entitlement.NewResolver(
		entitlement.WithLogger(o.logger),
		entitlement.WithObserver(func(department string, fallback entitlement.Fallback) {
			o.metrics.IncEntitlementFallback(string(fallback))
			o.recordAudit(ctx, request, audit.Entry{
				Action:  audit.ActionEntitlementFallback,
				Outcome: audit.OutcomeWarning,
				Target:  department,
				Detail:  fmt.Sprintf("no entitlement config for department, fell back to %s set", fallback),
			})
		}),
	)

	switch request.Event.Type {
	case id.EventJoin:
		return o.planJoin(request, cfg, resolver), nil
	case id.EventMove:
		return o.planMove(ctx, request, cfg, resolver)
	case id.EventLeave:
		return o.planLeave(ctx, request, cfg, resolver)
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported event type %q", request.Event.Type)
	}
}

// runPlan drives the steps in order. It returns the name of the step the
// run stopped at and the cause; both empty means every step ran.
//
// Cancellation is checked at each boundary, before the step starts. An
// honored cancel names the step that never ran without appending it to the
// ledger.
func (o *Orchestrator) runPlan(ctx context.Context, request *models.ProvisioningRequest, steps []step) (string, error) {
	for _, st := range steps {
		if o.cancelRequested(ctx, request.ID) {
			return st.name(), errCancelled
		}
		if err := ctx.Err(); err != nil {
			return st.name(), fmt.Errorf("%w: %w", errCancelled, err)
		}

		ledger := models.NewStep(st.action, st.target, requestcontext.Now(ctx))
		stepCtx, span := telemetry.StartSpan(ctx, tracerName, "saga.Step",
			attribute.String("saga.step", ledger.Name),
		)
		stepCtx, cancel := context.WithTimeout(stepCtx, o.callTimeout)
		payload, err := st.run(stepCtx)
		cancel()

		if err != nil {
			telemetry.RecordError(span, err)
			span.End()
			ledger.ApplyFailure(err.Error(), requestcontext.Now(ctx))
			request.AppendStep(ledger)

			if st.tolerateFailure {
				request.AddWarning(fmt.Sprintf("%s failed: %v", ledger.Name, err))
				o.persist(ctx, request)
				o.recordAudit(ctx, request, audit.Entry{
					Action:  audit.Action(st.action),
					Outcome: audit.OutcomeWarning,
					Target:  st.target,
					Detail:  err.Error(),
				})
				o.metrics.IncStep(st.action.String(), "tolerated")
				o.logger.Warn("saga step failed, continuing",
					"request_id", request.ID,
					"step", ledger.Name,
					"error", err,
				)
				continue
			}

			o.persist(ctx, request)
			o.recordAudit(ctx, request, audit.Entry{
				Action:  audit.Action(st.action),
				Outcome: audit.OutcomeFailed,
				Target:  st.target,
				Detail:  err.Error(),
			})
			o.metrics.IncStep(st.action.String(), "failed")
			return ledger.Name, err
		}

		span.End()
		ledger.ApplyCompletion(payload, requestcontext.Now(ctx))
		request.AppendStep(ledger)
		o.persist(ctx, request)
		o.recordAudit(ctx, request, audit.Entry{
			Action:  audit.Action(st.action),
			Outcome: audit.OutcomeSuccess,
			Target:  st.target,
		})
		o.metrics.IncStep(st.action.String(), "completed")
		o.logger.Debug("saga step completed",
			"request_id", request.ID,
			"step", ledger.Name,
		)
	}
	return "", nil
}

// cancelRequested reads the cooperative cancel flag. A read failure never
// stops the run; the next boundary rechecks.
func (o *Orchestrator) cancelRequested(ctx context.Context, requestID id.RequestID) bool {
	cancelled, err := o.store.CancelRequested(ctx, requestID)
	if err != nil {
		o.logger.Warn("could not read cancel flag",
			"request_id", requestID,
			"error", err,
		)
		return false
	}
	return cancelled
}
