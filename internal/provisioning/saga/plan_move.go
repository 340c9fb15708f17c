package saga

import (
	"context"

	"provisor/internal/directory"
	"provisor/internal/entitlement"
	"provisor/internal/notify"
	"provisor/internal/platform/config"
	"provisor/internal/provisioning/models"
)

// planMove renders a transfer as the diff between the old and new
// department sets: profile update first, then group changes, license
// changes, team changes. A converged identity diffs to zero membership
// steps, so re-running a Move plans only the profile update.
//
// License steps tolerate failure in both directions. A stalled removal is
// a duplicate entitlement, a stalled addition leaves baseline access in
// place; neither is worth unwinding a half-finished transfer over.
func (o *Orchestrator) planMove(ctx context.Context, request *models.ProvisioningRequest, cfg config.ProvisioningConfig, resolver *entitlement.Resolver) (*plan, error) {
	event := request.Event

	identity, err := o.resolveIdentity(ctx, request.EmployeeID)
	if err != nil {
		return nil, &planFailure{phase: "resolve_identity", err: err}
	}
	identityID := identity.ID

	old := resolver.Resolve(event.PreviousDepartment, cfg)
	target := resolver.Resolve(event.Department, cfg)
	remove, add := entitlement.Diff(old, target)

	steps := []step{{
		action: models.ActionUpdateProfile,
		target: identityID,
		run: func(ctx context.Context) (models.StepPayload, error) {
			patch, fields := movePatch(event)
			if err := o.directory.UpdateIdentity(ctx, identityID, patch); err != nil {
				return nil, err
			}
			return models.ProfileUpdated{IdentityID: identityID, Fields: fields}, nil
		},
	}}

	for _, groupID := range remove.Groups {
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
	for _, groupID := range add.Groups {
		steps = append(steps, step{
			action: models.ActionAddToGroup,
			target: groupID,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.AddToGroup(ctx, identityID, groupID); err != nil {
					return nil, err
				}
				return models.GroupMemberAdded{IdentityID: identityID, GroupID: groupID}, nil
			},
		})
	}

	if len(remove.Licenses) > 0 {
		licenseIDs := remove.Licenses
		steps = append(steps, step{
			action:          models.ActionRemoveLicense,
			target:          licenseBatchTarget,
			tolerateFailure: true,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.RemoveLicenses(ctx, identityID, licenseIDs); err != nil {
					return nil, err
				}
				return models.LicensesRemoved{IdentityID: identityID, LicenseIDs: licenseIDs}, nil
			},
		})
	}
	if len(add.Licenses) > 0 {
		licenseIDs := add.Licenses
		steps = append(steps, step{
			action:          models.ActionAssignLicense,
			target:          licenseBatchTarget,
			tolerateFailure: true,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.AssignLicenses(ctx, identityID, licenseIDs); err != nil {
					return nil, err
				}
				return models.LicensesAssigned{IdentityID: identityID, LicenseIDs: licenseIDs}, nil
			},
		})
	}

	for _, teamID := range remove.Teams {
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
	for _, teamID := range add.Teams {
		steps = append(steps, step{
			action: models.ActionAddToTeam,
			target: teamID,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.AddToTeam(ctx, identityID, teamID, directory.TeamRoleMember); err != nil {
					return nil, err
				}
				return models.TeamMemberAdded{IdentityID: identityID, TeamID: teamID, Role: string(directory.TeamRoleMember)}, nil
			},
		})
	}

	confirm := func(ctx context.Context) {
		subject, body := notify.MoveMessage(event.DisplayName, identity.PrincipalName, event.PreviousDepartment, event.Department)
		err := o.notifier.Queue(ctx, notify.Notification{
			Recipients:    []string{identity.PrincipalName},
			Subject:       subject,
			Body:          body,
			CorrelationID: request.ID.String(),
		})
		if err != nil {
			o.logger.Warn("move confirmation not queued",
				"request_id", request.ID,
				"error", err,
			)
		}
	}

	return &plan{steps: steps, confirm: confirm}, nil
}

// movePatch builds the sparse profile update for a transfer. Department
// always changes; title, location, and manager only when HR sent them.
func movePatch(event models.LifecycleEvent) (directory.ProfilePatch, []string) {
	patch := directory.ProfilePatch{Department: &event.Department}
	fields := []string{"department"}
	if event.JobTitle != "" {
		patch.JobTitle = &event.JobTitle
		fields = append(fields, "job_title")
	}
	if event.Location != "" {
		patch.UsageLocation = &event.Location
		fields = append(fields, "usage_location")
	}
	if event.ManagerID != "" {
		patch.ManagerID = &event.ManagerID
		fields = append(fields, "manager_id")
	}
	return patch, fields
}
