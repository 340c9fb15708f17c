package saga_test

import (
	"errors"

	"go.uber.org/mock/gomock"

	"provisor/internal/audit"
	"provisor/internal/directory"
	"provisor/internal/directory/mocks"
	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
)

func (s *SagaSuite) TestMoveConvergesOnTargetDepartment() {
	s.seedEngineer()
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	result, err := orch.Execute(s.ctx, moveEvent())

	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(7, result.TotalSteps)

	stored := s.storedRequest(result.RequestID)
	s.Equal([]string{
		"update_profile:dir-ada",
		"remove_from_group:grp-eng",
		"add_to_group:grp-platform",
		"remove_license:licenses",
		"assign_license:licenses",
		"remove_from_team:team-eng",
		"add_to_team:team-platform",
	}, stepNames(stored.Steps))

	profile, ok := stored.Steps[0].Payload.(models.ProfileUpdated)
	s.Require().True(ok)
	s.Equal([]string{"department", "job_title"}, profile.Fields)

	identity, licenses, groups, teams, ok := s.directory.Snapshot("dir-ada")
	s.Require().True(ok)
	s.Equal("Platform", identity.Department)
	s.Equal("Platform Engineer", identity.JobTitle)
	s.ElementsMatch([]string{"lic-e3", "lic-pager"}, licenses)
	s.Equal([]string{"grp-platform"}, groups)
	s.Equal([]string{"team-platform"}, teams)

	s.Require().Len(s.notifier.queued, 1)
	confirmation := s.notifier.queued[0]
	s.Equal([]string{"ada.lovelace@corp.example"}, confirmation.Recipients)
	s.Contains(confirmation.Subject, "Department transfer completed")
}

func (s *SagaSuite) TestMoveOnConvergedRecordPlansOnlyProfileUpdate() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	orch := s.orchestrator(client, s.engineeringConfig())

	client.EXPECT().FindByEmployeeID(gomock.Any(), id.EmployeeID("emp-1001")).
		Return(&directory.Identity{
			ID:            "dir-ada",
			PrincipalName: "ada.lovelace@corp.example",
			Department:    "Platform",
			EmployeeID:    "emp-1001",
			Enabled:       true,
		}, nil)
	client.EXPECT().UpdateIdentity(gomock.Any(), "dir-ada", gomock.Any()).Return(nil)
	// No membership expectations: identical old and new departments diff
	// to zero changes, so a re-run only refreshes the profile.

	event := moveEvent()
	event.PreviousDepartment = "Platform"

	result, err := orch.Execute(s.ctx, event)

	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(1, result.TotalSteps)

	stored := s.storedRequest(result.RequestID)
	s.Equal([]string{"update_profile:dir-ada"}, stepNames(stored.Steps))
}

func (s *SagaSuite) TestMoveToleratesLicenseStepFailures() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	orch := s.orchestrator(client, s.engineeringConfig())

	slow := errors.New("license service timeout")
	client.EXPECT().FindByEmployeeID(gomock.Any(), id.EmployeeID("emp-1001")).
		Return(&directory.Identity{
			ID:            "dir-ada",
			PrincipalName: "ada.lovelace@corp.example",
			Department:    "Engineering",
			EmployeeID:    "emp-1001",
			Enabled:       true,
		}, nil)
	client.EXPECT().UpdateIdentity(gomock.Any(), "dir-ada", gomock.Any()).Return(nil)
	client.EXPECT().RemoveFromGroup(gomock.Any(), "dir-ada", "grp-eng").Return(nil)
	client.EXPECT().AddToGroup(gomock.Any(), "dir-ada", "grp-platform").Return(nil)
	client.EXPECT().RemoveLicenses(gomock.Any(), "dir-ada", []string{"lic-github"}).Return(slow)
	client.EXPECT().AssignLicenses(gomock.Any(), "dir-ada", []string{"lic-pager"}).Return(slow)
	client.EXPECT().RemoveFromTeam(gomock.Any(), "dir-ada", "team-eng").Return(nil)
	client.EXPECT().AddToTeam(gomock.Any(), "dir-ada", "team-platform", directory.TeamRoleMember).Return(nil)

	result, err := orch.Execute(s.ctx, moveEvent())

	s.Require().NoError(err)
	s.True(result.Success, "license drift is reported, not fatal")
	s.Equal(7, result.TotalSteps)
	s.Equal(5, result.CompletedSteps)
	s.Require().Len(result.Warnings, 2)
	s.Contains(result.Warnings[0], "remove_license:licenses")
	s.Contains(result.Warnings[1], "assign_license:licenses")

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusCompleted, stored.Status)
	s.Equal(models.StepStatusFailed, stored.Steps[3].Status)
	s.Equal(models.StepStatusFailed, stored.Steps[4].Status)
	s.Empty(s.recorder.rollbacks())

	warned := s.recorder.withAction(audit.Action("remove_license"))
	s.Require().Len(warned, 1)
	s.Equal(audit.OutcomeWarning, warned[0].Outcome)

	s.Require().Len(s.notifier.queued, 1, "the move still confirms to the employee")
}

func (s *SagaSuite) TestMoveMembershipFailureCompensates() {
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
	client.EXPECT().UpdateIdentity(gomock.Any(), "dir-ada", gomock.Any()).Return(nil)
	client.EXPECT().RemoveFromGroup(gomock.Any(), "dir-ada", "grp-eng").Return(nil)
	client.EXPECT().AddToGroup(gomock.Any(), "dir-ada", "grp-platform").Return(nil)
	client.EXPECT().RemoveLicenses(gomock.Any(), "dir-ada", []string{"lic-github"}).Return(nil)
	client.EXPECT().AssignLicenses(gomock.Any(), "dir-ada", []string{"lic-pager"}).Return(nil)
	client.EXPECT().RemoveFromTeam(gomock.Any(), "dir-ada", "team-eng").Return(nil)
	client.EXPECT().AddToTeam(gomock.Any(), "dir-ada", "team-platform", directory.TeamRoleMember).
		Return(errors.New("team archived"))

	// Only additive steps have compensations; removals and the profile
	// patch stay as they are.
	gomock.InOrder(
		client.EXPECT().RemoveLicenses(gomock.Any(), "dir-ada", []string{"lic-pager"}).Return(nil),
		client.EXPECT().RemoveFromGroup(gomock.Any(), "dir-ada", "grp-platform").Return(nil),
	)

	result, err := orch.Execute(s.ctx, moveEvent())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))
	s.Equal("add_to_team:team-platform", result.FailedStep)
	s.Equal([]string{"rollback:assign_license", "rollback:add_to_group"}, s.recorder.rollbacks())

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusFailed, stored.Status)
}

func (s *SagaSuite) TestMoveUnknownEmployeeFailsBeforePlanning() {
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	result, err := orch.Execute(s.ctx, moveEvent())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal("resolve_identity", result.FailedStep)
	s.Equal(0, result.TotalSteps)

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusFailed, stored.Status)
	s.Empty(stored.Steps)

	s.Require().Len(s.notifier.queued, 1)
	s.Contains(s.notifier.queued[0].Body, "resolve_identity")
}
