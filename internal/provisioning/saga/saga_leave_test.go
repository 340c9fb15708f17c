package saga_test

import (
	"errors"

	"go.uber.org/mock/gomock"

	"provisor/internal/directory"
	"provisor/internal/directory/mocks"
	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
)

func (s *SagaSuite) TestLeaveOffboardsAndSchedulesReclaim() {
	s.seedEngineer()
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	result, err := orch.Execute(s.ctx, leaveEvent())

	s.Require().NoError(err)
	s.True(result.Success)

	stored := s.storedRequest(result.RequestID)
	s.Equal([]string{
		"disable_identity:dir-ada",
		"revoke_sessions:dir-ada",
		"remove_from_group:grp-eng",
		"remove_from_team:team-eng",
		"schedule_license_removal:licenses",
	}, stepNames(stored.Steps))

	identity, licenses, groups, teams, ok := s.directory.Snapshot("dir-ada")
	s.Require().True(ok)
	s.False(identity.Enabled)
	s.Equal(1, s.directory.SessionEpoch("dir-ada"))
	s.ElementsMatch([]string{"lic-e3", "lic-github"}, licenses, "licenses stay assigned until the grace period ends")
	s.Empty(groups)
	s.Empty(teams)

	s.Require().Len(s.scheduler.items, 1)
	item := s.scheduler.items[0]
	s.Equal(id.EmployeeID("emp-1001"), item.EmployeeID)
	s.Equal("dir-ada", item.IdentityID)
	s.ElementsMatch([]string{"lic-e3", "lic-github"}, item.LicenseIDs)
	s.Equal(s.now.AddDate(0, 0, 30), item.DueAt)
	s.Equal(result.RequestID, item.RequestID.String())

	scheduled, ok := stored.Steps[4].Payload.(models.LicenseRemovalScheduled)
	s.Require().True(ok)
	s.Equal(s.now.AddDate(0, 0, 30), scheduled.ScheduledAt)

	s.Require().Len(s.notifier.queued, 1)
	summary := s.notifier.queued[0]
	s.Equal([]string{"it-ops@corp.example"}, summary.Recipients)
	s.Contains(summary.Subject, "Offboarding completed")
	s.Contains(summary.Body, "disabled, sessions revoked")
	s.Contains(summary.Body, "2025-04-13")
}

func (s *SagaSuite) TestLeaveWithoutAutoDisableKeepsAccountEnabled() {
	s.seedEngineer()
	cfg := s.engineeringConfig()
	cfg.AutoDisableOnLeave = false
	orch := s.orchestrator(s.directory, cfg)

	result, err := orch.Execute(s.ctx, leaveEvent())

	s.Require().NoError(err)

	stored := s.storedRequest(result.RequestID)
	s.Equal([]string{
		"revoke_sessions:dir-ada",
		"remove_from_group:grp-eng",
		"remove_from_team:team-eng",
		"schedule_license_removal:licenses",
	}, stepNames(stored.Steps))

	identity, _, _, _, ok := s.directory.Snapshot("dir-ada")
	s.Require().True(ok)
	s.True(identity.Enabled)
	s.Equal(1, s.directory.SessionEpoch("dir-ada"))

	s.Require().Len(s.notifier.queued, 1)
	s.Contains(s.notifier.queued[0].Body, "left enabled per policy")
}

func (s *SagaSuite) TestLeaveFailureTerminatesWithoutRollback() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	orch := s.orchestrator(client, s.engineeringConfig())

	client.EXPECT().FindByEmployeeID(gomock.Any(), id.EmployeeID("emp-1001")).
		Return(&directory.Identity{
			ID:            "dir-ada",
			PrincipalName: "ada.lovelace@corp.example",
			Department:    "Engineering",
			EmployeeID:    "emp-1001",
			Enabled:       true,
		}, nil)
	client.EXPECT().ListGroups(gomock.Any(), "dir-ada").Return(nil, nil)
	client.EXPECT().ListTeams(gomock.Any(), "dir-ada").Return(nil, nil)
	client.EXPECT().DisableIdentity(gomock.Any(), "dir-ada").Return(nil).Times(1)
	client.EXPECT().RevokeSessions(gomock.Any(), "dir-ada").Return(errors.New("token service down"))
	// No re-enable and no other compensation: offboarding steps are not
	// rolled back, operators resume from the ledger.

	result, err := orch.Execute(s.ctx, leaveEvent())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))
	s.Equal("revoke_sessions:dir-ada", result.FailedStep)
	s.Empty(s.recorder.rollbacks())

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusFailed, stored.Status)
	s.Require().Len(stored.Steps, 2)
	s.Equal(models.StepStatusCompleted, stored.Steps[0].Status)
	s.False(stored.Steps[0].RollbackCompleted)
	s.Equal(models.StepStatusFailed, stored.Steps[1].Status)

	s.Require().Len(s.notifier.queued, 1, "failures escalate to the admin channel")
}

func (s *SagaSuite) TestLeaveMembershipListingFailureFailsBeforeAnySteps() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	orch := s.orchestrator(client, s.engineeringConfig())

	client.EXPECT().FindByEmployeeID(gomock.Any(), id.EmployeeID("emp-1001")).
		Return(&directory.Identity{
			ID:            "dir-ada",
			PrincipalName: "ada.lovelace@corp.example",
			Department:    "Engineering",
			EmployeeID:    "emp-1001",
			Enabled:       true,
		}, nil)
	client.EXPECT().ListGroups(gomock.Any(), "dir-ada").Return(nil, errors.New("graph timeout"))

	result, err := orch.Execute(s.ctx, leaveEvent())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))
	s.Equal("list_groups", result.FailedStep)
	s.Equal(0, result.TotalSteps)

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusFailed, stored.Status)
	s.Empty(stored.Steps)
}

func (s *SagaSuite) TestLeaveSchedulerFailureFailsTheRun() {
	s.seedEngineer()
	s.scheduler.err = errors.New("reclaim queue unavailable")
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	result, err := orch.Execute(s.ctx, leaveEvent())

	s.Require().Error(err)
	s.Equal("schedule_license_removal:licenses", result.FailedStep)
	s.Empty(s.scheduler.items)

	identity, _, _, _, ok := s.directory.Snapshot("dir-ada")
	s.Require().True(ok)
	s.False(identity.Enabled, "offboarding already applied stays applied")
}

func (s *SagaSuite) TestLeaveWithNoConfiguredLicensesSkipsReclaim() {
	s.directory.Seed(directory.Identity{
		ID:            "dir-contractor",
		PrincipalName: "casual@corp.example",
		DisplayName:   "Casual Contractor",
		Department:    "Warehouse",
		EmployeeID:    "emp-2002",
		Enabled:       true,
	}, nil, nil, nil)
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	event := leaveEvent()
	event.EmployeeID = "emp-2002"
	event.Department = "Warehouse"

	result, err := orch.Execute(s.ctx, event)

	s.Require().NoError(err)
	s.Empty(s.scheduler.items)

	stored := s.storedRequest(result.RequestID)
	s.Equal([]string{
		"disable_identity:dir-contractor",
		"revoke_sessions:dir-contractor",
	}, stepNames(stored.Steps))
}
