package saga_test

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"provisor/internal/audit"
	"provisor/internal/directory"
	"provisor/internal/directory/mocks"
	"provisor/internal/notify"
	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
)

func (s *SagaSuite) TestJoinProvisionsConfiguredEntitlements() {
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	result, err := orch.Execute(s.ctx, joinEvent())

	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(5, result.TotalSteps)
	s.Equal(5, result.CompletedSteps)
	s.Empty(result.Warnings)

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusCompleted, stored.Status)
	s.Equal([]string{
		"create_identity:ada.lovelace@corp.example",
		"assign_license:licenses",
		"add_to_group:grp-eng",
		"add_to_team:team-eng",
		"send_notification:welcome",
	}, stepNames(stored.Steps))
	for _, step := range stored.Steps {
		s.Equal(models.StepStatusCompleted, step.Status)
	}

	identity, err := s.directory.FindByEmployeeID(s.ctx, "emp-1001")
	s.Require().NoError(err)
	got, licenses, groups, teams, ok := s.directory.Snapshot(identity.ID)
	s.Require().True(ok)
	s.True(got.Enabled)
	s.Equal("Engineering", got.Department)
	s.Equal("GB", got.UsageLocation)
	s.ElementsMatch([]string{"lic-e3", "lic-github"}, licenses)
	s.Equal([]string{"grp-eng"}, groups)
	s.Equal([]string{"team-eng"}, teams)

	s.Require().Len(s.notifier.queued, 1)
	welcome := s.notifier.queued[0]
	s.Equal([]string{"ada.lovelace@corp.example"}, welcome.Recipients)
	s.Contains(welcome.Subject, "Welcome aboard")
	s.Equal(result.RequestID, welcome.CorrelationID)

	s.Len(s.recorder.withAction(audit.ActionSagaStarted), 1)
	s.Len(s.recorder.withAction(audit.ActionSagaCompleted), 1)
}

func (s *SagaSuite) TestJoinWithoutWelcomeFlagSkipsNotificationStep() {
	cfg := s.engineeringConfig()
	cfg.SendWelcomeNotification = false
	orch := s.orchestrator(s.directory, cfg)

	result, err := orch.Execute(s.ctx, joinEvent())

	s.Require().NoError(err)
	s.Equal(4, result.TotalSteps)
	s.Empty(s.notifier.queued)
}

func (s *SagaSuite) TestJoinUnconfiguredDepartmentStillCreatesIdentity() {
	orch := s.orchestrator(s.directory, s.engineeringConfig())
	event := joinEvent()
	event.Department = "Warehouse"

	result, err := orch.Execute(s.ctx, event)

	s.Require().NoError(err)
	s.True(result.Success)

	stored := s.storedRequest(result.RequestID)
	s.Equal([]string{
		"create_identity:ada.lovelace@corp.example",
		"send_notification:welcome",
	}, stepNames(stored.Steps))

	identity, err := s.directory.FindByEmployeeID(s.ctx, "emp-1001")
	s.Require().NoError(err)
	_, licenses, groups, teams, ok := s.directory.Snapshot(identity.ID)
	s.Require().True(ok)
	s.Empty(licenses)
	s.Empty(groups)
	s.Empty(teams)

	fallbacks := s.recorder.withAction(audit.ActionEntitlementFallback)
	s.Require().Len(fallbacks, 1)
	s.Equal(audit.OutcomeWarning, fallbacks[0].Outcome)
	s.Equal("Warehouse", fallbacks[0].Target)
}

func (s *SagaSuite) TestJoinFailureCompensatesNewestFirst() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	orch := s.orchestrator(client, s.engineeringConfig())

	boom := errors.New("directory unavailable")
	client.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).
		Return(&directory.IdentityCreated{ID: "dir-new", PrincipalName: "ada.lovelace@corp.example"}, nil)
	client.EXPECT().AssignLicenses(gomock.Any(), "dir-new", []string{"lic-e3", "lic-github"}).Return(nil)
	client.EXPECT().AddToGroup(gomock.Any(), "dir-new", "grp-eng").Return(boom)

	// Compensation runs newest first. The identity is disabled, never deleted.
	gomock.InOrder(
		client.EXPECT().RemoveLicenses(gomock.Any(), "dir-new", []string{"lic-e3", "lic-github"}).Return(nil),
		client.EXPECT().DisableIdentity(gomock.Any(), "dir-new").Return(nil),
	)

	result, err := orch.Execute(s.ctx, joinEvent())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))
	s.False(result.Success)
	s.Equal("add_to_group:grp-eng", result.FailedStep)
	s.Equal("directory unavailable", result.ErrorMessage)
	s.Equal(2, result.CompletedSteps)
	s.Equal(3, result.TotalSteps)

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusFailed, stored.Status)
	s.True(stored.Steps[0].RollbackCompleted)
	s.True(stored.Steps[1].RollbackCompleted)
	s.False(stored.Steps[2].RollbackCompleted)
	s.Equal([]string{"rollback:assign_license", "rollback:create_identity"}, s.recorder.rollbacks())

	s.Require().Len(s.notifier.queued, 1)
	escalation := s.notifier.queued[0]
	s.Equal([]string{"it-ops@corp.example"}, escalation.Recipients)
	s.Equal(notify.PriorityHigh, escalation.Priority)
	s.Contains(escalation.Subject, "Provisioning failed")
	s.Contains(escalation.Body, "add_to_group:grp-eng")
	s.Contains(escalation.Body, "directory unavailable")
	s.Equal(result.RequestID, escalation.CorrelationID)
}

func (s *SagaSuite) TestJoinCompensationContinuesPastRollbackFailure() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	orch := s.orchestrator(client, s.engineeringConfig())

	client.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).
		Return(&directory.IdentityCreated{ID: "dir-new", PrincipalName: "ada.lovelace@corp.example"}, nil)
	client.EXPECT().AssignLicenses(gomock.Any(), "dir-new", []string{"lic-e3", "lic-github"}).Return(nil)
	client.EXPECT().AddToGroup(gomock.Any(), "dir-new", "grp-eng").Return(nil)
	client.EXPECT().AddToTeam(gomock.Any(), "dir-new", "team-eng", directory.TeamRoleMember).
		Return(errors.New("teams api down"))

	client.EXPECT().RemoveFromGroup(gomock.Any(), "dir-new", "grp-eng").
		Return(errors.New("group busy"))
	client.EXPECT().RemoveLicenses(gomock.Any(), "dir-new", []string{"lic-e3", "lic-github"}).Return(nil)
	client.EXPECT().DisableIdentity(gomock.Any(), "dir-new").Return(nil)

	result, err := orch.Execute(s.ctx, joinEvent())

	s.Require().Error(err)
	s.Equal("add_to_team:team-eng", result.FailedStep)

	stored := s.storedRequest(result.RequestID)
	s.Require().Len(stored.Steps, 4)
	s.True(stored.Steps[0].RollbackCompleted)
	s.True(stored.Steps[1].RollbackCompleted)
	s.False(stored.Steps[2].RollbackCompleted, "a failed rollback leaves the step marked for operators")

	rollbacks := s.recorder.rollbacks()
	s.Equal([]string{"rollback:add_to_group", "rollback:assign_license", "rollback:create_identity"}, rollbacks)
	failed := s.recorder.withAction(audit.RollbackAction("add_to_group"))
	s.Require().Len(failed, 1)
	s.Equal(audit.OutcomeFailed, failed[0].Outcome)
}

func (s *SagaSuite) TestJoinAppliesCredentialAndLocationPolicy() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	cfg := s.engineeringConfig()
	cfg.SendWelcomeNotification = false
	orch := s.orchestrator(client, cfg)

	var captured directory.CreateProfile
	client.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, profile directory.CreateProfile) (*directory.IdentityCreated, error) {
			captured = profile
			return &directory.IdentityCreated{ID: "dir-new", PrincipalName: profile.PrincipalName}, nil
		})

	event := joinEvent()
	event.Department = "Warehouse"
	event.Location = ""

	_, err := orch.Execute(s.ctx, event)

	s.Require().NoError(err)
	s.True(captured.ForcePasswordChange)
	s.GreaterOrEqual(len(captured.Password), 16)
	s.Equal("US", captured.UsageLocation, "empty location falls back to the configured default")
	s.Equal(id.EmployeeID("emp-1001"), captured.EmployeeID)
	s.Equal("ada.lovelace@corp.example", captured.PrincipalName)
}

func (s *SagaSuite) TestJoinWelcomeDeliveryFailureDoesNotFailTheRun() {
	s.notifier.err = errors.New("queue closed")
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	result, err := orch.Execute(s.ctx, joinEvent())

	s.Require().NoError(err)
	s.True(result.Success)
	s.Equal(5, result.CompletedSteps)

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.StepStatusCompleted, stored.Steps[4].Status)
}
