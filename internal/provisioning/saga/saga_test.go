package saga_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"provisor/internal/audit"
	"provisor/internal/directory"
	memorydir "provisor/internal/directory/memory"
	"provisor/internal/directory/mocks"
	"provisor/internal/notify"
	"provisor/internal/platform/config"
	"provisor/internal/provisioning/models"
	"provisor/internal/provisioning/saga"
	requeststore "provisor/internal/provisioning/store/request"
	"provisor/internal/schedule"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
	"provisor/pkg/requestcontext"
)

type fakeRecorder struct {
	entries []audit.Entry
}

func (r *fakeRecorder) Record(_ context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

// rollbacks returns the rollback entry actions in recording order.
func (r *fakeRecorder) rollbacks() []string {
	var out []string
	for _, entry := range r.entries {
		if strings.HasPrefix(string(entry.Action), "rollback:") {
			out = append(out, string(entry.Action))
		}
	}
	return out
}

func (r *fakeRecorder) withAction(action audit.Action) []audit.Entry {
	var out []audit.Entry
	for _, entry := range r.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}

type fakeNotifier struct {
	queued []notify.Notification
	err    error
}

func (n *fakeNotifier) Queue(_ context.Context, notification notify.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.queued = append(n.queued, notification)
	return nil
}

type fakeScheduler struct {
	items []schedule.Item
	err   error
}

func (f *fakeScheduler) Schedule(_ context.Context, item schedule.Item) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

type SagaSuite struct {
	suite.Suite

	now       time.Time
	ctx       context.Context
	directory *memorydir.Directory
	store     *requeststore.InMemory
	recorder  *fakeRecorder
	notifier  *fakeNotifier
	scheduler *fakeScheduler
}

func TestSagaSuite(t *testing.T) {
	suite.Run(t, new(SagaSuite))
}

func (s *SagaSuite) SetupTest() {
	s.now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.directory = memorydir.New()
	s.store = requeststore.NewInMemory()
	s.recorder = &fakeRecorder{}
	s.notifier = &fakeNotifier{}
	s.scheduler = &fakeScheduler{}
}

func (s *SagaSuite) orchestrator(client directory.Client, cfg config.ProvisioningConfig) *saga.Orchestrator {
	return saga.New(client, s.store, s.recorder, s.notifier, s.scheduler, config.NewProvider(cfg),
		saga.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// engineeringConfig maps Engineering to two licenses, one group, and one
// team, and Platform to an overlapping set so Move diffs are non-trivial.
func (s *SagaSuite) engineeringConfig() config.ProvisioningConfig {
	return config.ProvisioningConfig{
		DefaultUsageLocation:    "US",
		SendWelcomeNotification: true,
		LeaverGracePeriodDays:   30,
		AutoDisableOnLeave:      true,
		PasswordPolicy:          config.PasswordPolicy{MinLength: 16},
		AdminRecipients:         []string{"it-ops@corp.example"},
		Departments: []config.DepartmentConfig{
			{
				Name:     "Engineering",
				Licenses: []string{"lic-e3", "lic-github"},
				Groups:   []string{"grp-eng"},
				Teams:    []string{"team-eng"},
			},
			{
				Name:     "Platform",
				Licenses: []string{"lic-e3", "lic-pager"},
				Groups:   []string{"grp-platform"},
				Teams:    []string{"team-platform"},
			},
		},
	}
}

func (s *SagaSuite) seedEngineer() {
	s.directory.Seed(directory.Identity{
		ID:            "dir-ada",
		PrincipalName: "ada.lovelace@corp.example",
		DisplayName:   "Ada Lovelace",
		Department:    "Engineering",
		EmployeeID:    "emp-1001",
		Enabled:       true,
	}, []string{"lic-e3", "lic-github"}, []string{"grp-eng"}, []string{"team-eng"})
}

func (s *SagaSuite) storedRequest(requestID string) *models.ProvisioningRequest {
	parsed, err := id.ParseRequestID(requestID)
	s.Require().NoError(err)
	stored, err := s.store.Get(s.ctx, parsed)
	s.Require().NoError(err)
	return stored
}

func stepNames(steps []*models.ProvisioningStep) []string {
	names := make([]string, len(steps))
	for i, step := range steps {
		names[i] = step.Name
	}
	return names
}

func joinEvent() models.LifecycleEvent {
	return models.LifecycleEvent{
		EmployeeID:     "emp-1001",
		Type:           id.EventJoin,
		DisplayName:    "Ada Lovelace",
		ContactAddress: "ada.lovelace@corp.example",
		Department:     "Engineering",
		JobTitle:       "Engineer",
		Location:       "GB",
	}
}

func moveEvent() models.LifecycleEvent {
	return models.LifecycleEvent{
		EmployeeID:         "emp-1001",
		Type:               id.EventMove,
		DisplayName:        "Ada Lovelace",
		Department:         "Platform",
		PreviousDepartment: "Engineering",
		JobTitle:           "Platform Engineer",
	}
}

func leaveEvent() models.LifecycleEvent {
	return models.LifecycleEvent{
		EmployeeID:  "emp-1001",
		Type:        id.EventLeave,
		DisplayName: "Ada Lovelace",
		Department:  "Engineering",
	}
}

func (s *SagaSuite) TestValidationRejectsBeforeAnyExternalCall() {
	orch := s.orchestrator(s.directory, s.engineeringConfig())
	event := joinEvent()
	event.ContactAddress = ""

	result, err := orch.Execute(s.ctx, event)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(result.RequestID)

	requests, err := s.store.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(requests, "a rejected event leaves no request behind")
	s.Empty(s.recorder.entries)
}

func (s *SagaSuite) TestCancellationHonoredAtStepBoundary() {
	ctrl := gomock.NewController(s.T())
	client := mocks.NewMockClient(ctrl)
	orch := s.orchestrator(client, s.engineeringConfig())

	// Flag the request for cancellation while the first step is in flight;
	// the orchestrator must finish the step and stop at the next boundary.
	client.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, profile directory.CreateProfile) (*directory.IdentityCreated, error) {
			requests, err := s.store.ListRecent(ctx, 1)
			s.Require().NoError(err)
			s.Require().Len(requests, 1)
			s.Require().NoError(s.store.RequestCancel(ctx, requests[0].ID))
			return &directory.IdentityCreated{ID: "dir-new", PrincipalName: profile.PrincipalName}, nil
		})
	client.EXPECT().DisableIdentity(gomock.Any(), "dir-new").Return(nil)

	result, err := orch.Execute(s.ctx, joinEvent())

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePartialFailure))
	s.False(result.Success)
	s.Equal("assign_license:licenses", result.FailedStep)
	s.Equal(1, result.TotalSteps, "the step cancellation landed on is never recorded")
	s.Equal(1, result.CompletedSteps)

	stored := s.storedRequest(result.RequestID)
	s.Equal(models.RequestStatusFailed, stored.Status)
	s.Require().Len(stored.Steps, 1)
	s.True(stored.Steps[0].RollbackCompleted, "the created identity is compensated by disabling it")
}

func (s *SagaSuite) TestCancel() {
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	s.Run("unknown request", func() {
		err := orch.Cancel(s.ctx, id.NewRequestID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("in-progress request", func() {
		request, err := models.NewRequest(joinEvent(), s.now)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(s.ctx, request))

		s.Require().NoError(orch.Cancel(s.ctx, request.ID))

		cancelled, err := s.store.CancelRequested(s.ctx, request.ID)
		s.Require().NoError(err)
		s.True(cancelled)
	})

	s.Run("terminal request", func() {
		result, err := orch.Execute(s.ctx, joinEvent())
		s.Require().NoError(err)
		parsed, err := id.ParseRequestID(result.RequestID)
		s.Require().NoError(err)

		err = orch.Cancel(s.ctx, parsed)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *SagaSuite) TestListRequestsByEmployee() {
	s.seedEngineer()
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	_, err := orch.Execute(s.ctx, moveEvent())
	s.Require().NoError(err)
	_, err = orch.Execute(s.ctx, leaveEvent())
	s.Require().NoError(err)

	requests, err := orch.ListByEmployee(s.ctx, "emp-1001", 10)
	s.Require().NoError(err)
	s.Len(requests, 2)

	requests, err = orch.ListByEmployee(s.ctx, "emp-9999", 10)
	s.Require().NoError(err)
	s.Empty(requests)

	recent, err := orch.ListRecent(s.ctx, 1)
	s.Require().NoError(err)
	s.Len(recent, 1)
}

func (s *SagaSuite) TestGetRequest() {
	orch := s.orchestrator(s.directory, s.engineeringConfig())

	s.Run("unknown request", func() {
		_, err := orch.GetRequest(s.ctx, id.NewRequestID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("existing request includes the ledger", func() {
		result, err := orch.Execute(s.ctx, joinEvent())
		s.Require().NoError(err)
		parsed, err := id.ParseRequestID(result.RequestID)
		s.Require().NoError(err)

		request, err := orch.GetRequest(s.ctx, parsed)
		s.Require().NoError(err)
		s.Len(request.Steps, result.TotalSteps)
	})
}
