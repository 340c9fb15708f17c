package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"provisor/internal/audit"
	"provisor/internal/platform/telemetry"
	"provisor/internal/provisioning/models"
	dErrors "provisor/pkg/domain-errors"
)

// compensate unwinds the completed rollbackable steps newest-first. Best
// effort: one rollback failing is logged and audited, and the loop moves
// on to the next. The inverse calls are idempotent at the directory, so a
// retry of a crashed run redoing a rollback is harmless.
func (o *Orchestrator) compensate(ctx context.Context, request *models.ProvisioningRequest) {
	steps := request.CompensableSteps()
	if len(steps) == 0 {
		return
	}
	o.logger.Info("compensating completed steps",
		"request_id", request.ID,
		"steps", len(steps),
	)

	for _, st := range steps {
		err := o.rollback(ctx, st)
		action := audit.RollbackAction(st.Action.String())
		if err != nil {
			o.metrics.IncCompensation(st.Action.String(), "failed")
			o.logger.Error("compensation failed",
				"request_id", request.ID,
				"step", st.Name,
				"error", err,
			)
			o.recordAudit(ctx, request, audit.Entry{
				Action:  action,
				Outcome: audit.OutcomeFailed,
				Target:  st.Target,
				Detail:  err.Error(),
			})
			continue
		}

		// CompensableSteps only returns steps satisfying CanApplyRollback.
		st.ApplyRollback()
		o.metrics.IncCompensation(st.Action.String(), "completed")
		o.recordAudit(ctx, request, audit.Entry{
			Action:  action,
			Outcome: audit.OutcomeSuccess,
			Target:  st.Target,
		})
	}

	o.persist(ctx, request)
}

// rollback issues the compensating call for one completed step. The
// payload carries every identifier the inverse needs, so nothing is
// re-read from the directory.
//
// An identity is never deleted on rollback, only disabled. A
// half-provisioned account that was disabled is recoverable by an
// operator; a deleted one is not.
func (o *Orchestrator) rollback(ctx context.Context, st *models.ProvisioningStep) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "saga.Rollback",
		attribute.String("saga.step", st.Name),
	)
	defer span.End()
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()

	var err error
	switch p := st.Payload.(type) {
	case models.IdentityCreated:
		err = o.directory.DisableIdentity(ctx, p.IdentityID)
	case models.LicensesAssigned:
		err = o.directory.RemoveLicenses(ctx, p.IdentityID, p.LicenseIDs)
	case models.GroupMemberAdded:
		err = o.directory.RemoveFromGroup(ctx, p.IdentityID, p.GroupID)
	case models.TeamMemberAdded:
		err = o.directory.RemoveFromTeam(ctx, p.IdentityID, p.TeamID)
	default:
		err = dErrors.Newf(dErrors.CodeInvariantViolation, "no compensation mapped for step %s", st.Name)
	}
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}
