package saga

import (
	"context"

	"provisor/internal/directory"
	"provisor/internal/entitlement"
	"provisor/internal/notify"
	"provisor/internal/platform/config"
	"provisor/internal/provisioning/models"
	"provisor/internal/schedule"
	"provisor/pkg/requestcontext"
)

// planLeave renders an offboarding: cut access now, reclaim licenses
// later. Memberships are removed from what the directory actually holds,
// not from config, so drift accumulated since the last Move still gets
// cleaned up. License removal is only scheduled; the reclaim worker
// executes it after the grace period.
//
// None of the Leave actions are rollbackable, so a failure terminates the
// run without compensation. There is nothing less-left to roll back to.
func (o *Orchestrator) planLeave(ctx context.Context, request *models.ProvisioningRequest, cfg config.ProvisioningConfig, resolver *entitlement.Resolver) (*plan, error) {
	event := request.Event

	identity, err := o.resolveIdentity(ctx, request.EmployeeID)
	if err != nil {
		return nil, &planFailure{phase: "resolve_identity", err: err}
	}
	identityID := identity.ID

	groups, err := o.listGroups(ctx, identityID)
	if err != nil {
		return nil, &planFailure{phase: "list_groups", err: err}
	}
	teams, err := o.listTeams(ctx, identityID)
	if err != nil {
		return nil, &planFailure{phase: "list_teams", err: err}
	}

	licenses := resolver.Resolve(event.Department, cfg).Licenses
	reclaimAt := requestcontext.Now(ctx).AddDate(0, 0, cfg.LeaverGracePeriodDays)

	var steps []step

	if cfg.AutoDisableOnLeave {
		steps = append(steps, step{
			action: models.ActionDisableIdentity,
			target: identityID,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.DisableIdentity(ctx, identityID); err != nil {
					return nil, err
				}
				return models.IdentityDisabled{IdentityID: identityID}, nil
			},
		})
	}

	steps = append(steps, step{
		action: models.ActionRevokeSessions,
		target: identityID,
		run: func(ctx context.Context) (models.StepPayload, error) {
			if err := o.directory.RevokeSessions(ctx, identityID); err != nil {
				return nil, err
			}
			return models.SessionsRevoked{IdentityID: identityID}, nil
		},
	})

	for _, group := range groups {
		groupID := group.ID
		steps = append(steps, step{
			action: models.ActionRemoveFromGroup,
			target: groupID,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.RemoveFromGroup(ctx, identityID, groupID); err != nil {
					return nil, err
				}
				return models.GroupMemberRemoved{IdentityID: identityID, GroupID: groupID}, nil
			},
		})
	}

	for _, team := range teams {
		teamID := team.ID
		steps = append(steps, step{
			action: models.ActionRemoveFromTeam,
			target: teamID,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.RemoveFromTeam(ctx, identityID, teamID); err != nil {
					return nil, err
				}
				return models.TeamMemberRemoved{IdentityID: identityID, TeamID: teamID}, nil
			},
		})
	}

	if len(licenses) > 0 {
		steps = append(steps, step{
			action: models.ActionScheduleLicenseRemoval,
			target: licenseBatchTarget,
			run: func(ctx context.Context) (models.StepPayload, error) {
				item := schedule.NewItem(request.EmployeeID, identityID, licenses, reclaimAt, request.ID)
				if err := o.scheduler.Schedule(ctx, item); err != nil {
					return nil, err
				}
				return models.LicenseRemovalScheduled{
					IdentityID:  identityID,
					LicenseIDs:  licenses,
					ScheduledAt: reclaimAt,
				}, nil
			},
		})
	}

	confirm := func(ctx context.Context) {
		if len(cfg.AdminRecipients) == 0 {
			return
		}
		subject, body := notify.LeaveMessage(event.DisplayName, request.EmployeeID.String(), cfg.AutoDisableOnLeave, len(licenses), reclaimAt)
		err := o.notifier.Queue(ctx, notify.Notification{
			Recipients:    cfg.AdminRecipients,
			Subject:       subject,
			Body:          body,
			CorrelationID: request.ID.String(),
		})
		if err != nil {
			o.logger.Warn("offboarding summary not queued",
				"request_id", request.ID,
				"error", err,
			)
		}
	}

	return &plan{steps: steps, confirm: confirm}, nil
}

func (o *Orchestrator) listGroups(ctx context.Context, identityID string) ([]directory.GroupRef, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return o.directory.ListGroups(ctx, identityID)
}

func (o *Orchestrator) listTeams(ctx context.Context, identityID string) ([]directory.TeamRef, error) {
	ctx, cancel := o.withTimeout(ctx)
	defer cancel()
	return o.directory.ListTeams(ctx, identityID)
}
