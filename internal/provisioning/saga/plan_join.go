package saga

import (
	"context"

	"provisor/internal/directory"
	"provisor/internal/entitlement"
	"provisor/internal/notify"
	"provisor/internal/platform/config"
	"provisor/internal/provisioning/credentials"
	"provisor/internal/provisioning/models"
)

// planJoin renders a Join: create the identity, grant the department's
// entitlements, send the welcome. Steps for empty grants are not planned,
// so they never appear in the ledger.
//
// The identity id is produced by the create step; later steps close over
// it, which is safe because runPlan is strictly sequential.
func (o *Orchestrator) planJoin(request *models.ProvisioningRequest, cfg config.ProvisioningConfig, resolver *entitlement.Resolver) *plan {
	event := request.Event
	entitlements := resolver.Resolve(event.Department, cfg)

	var identityID, principalName string

	steps := []step{{
		action: models.ActionCreateIdentity,
		target: event.ContactAddress,
		run: func(ctx context.Context) (models.StepPayload, error) {
			password, err := credentials.Generate(credentials.Policy{MinLength: cfg.PasswordPolicy.MinLength})
			if err != nil {
				return nil, err
			}
			created, err := o.directory.CreateIdentity(ctx, directory.CreateProfile{
				DisplayName:         event.DisplayName,
				PrincipalName:       event.ContactAddress,
				Department:          event.Department,
				JobTitle:            event.JobTitle,
				UsageLocation:       usageLocation(event.Location, cfg),
				EmployeeID:          event.EmployeeID,
				ManagerID:           event.ManagerID,
				Password:            password,
				ForcePasswordChange: true,
			})
			if err != nil {
				return nil, err
			}
			identityID = created.ID
			principalName = created.PrincipalName
			return models.IdentityCreated{IdentityID: created.ID, PrincipalName: created.PrincipalName}, nil
		},
	}}

	if len(entitlements.Licenses) > 0 {
		licenseIDs := entitlements.Licenses
		steps = append(steps, step{
			action: models.ActionAssignLicense,
			target: licenseBatchTarget,
			run: func(ctx context.Context) (models.StepPayload, error) {
				if err := o.directory.AssignLicenses(ctx, identityID, licenseIDs); err != nil {
					return nil, err
				}
				return models.LicensesAssigned{IdentityID: identityID, LicenseIDs: licenseIDs}, nil
			},
		})
	}

	for _, groupID := range entitlements.Groups {
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

	for _, teamID := range entitlements.Teams {
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

	if cfg.SendWelcomeNotification {
		steps = append(steps, step{
			action: models.ActionSendNotification,
			target: "welcome",
			run: func(ctx context.Context) (models.StepPayload, error) {
				subject, body := notify.WelcomeMessage(event.DisplayName, event.ContactAddress, principalName, event.Department)
				err := o.notifier.Queue(ctx, notify.Notification{
					Recipients:    []string{event.ContactAddress},
					Subject:       subject,
					Body:          body,
					CorrelationID: request.ID.String(),
				})
				if err != nil {
					// Never a saga failure; the account is already usable.
					o.logger.Warn("welcome notification not queued",
						"request_id", request.ID,
						"error", err,
					)
				}
				return models.NotificationQueued{Recipient: event.ContactAddress, Template: "welcome"}, nil
			},
		})
	}

	return &plan{steps: steps}
}

// usageLocation applies the configured default when HR sent no location.
func usageLocation(location string, cfg config.ProvisioningConfig) string {
	if location != "" {
		return location
	}
	return cfg.DefaultUsageLocation
}
