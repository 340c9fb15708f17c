package models

import (
	"strings"
	"time"

	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
)

// RequestStatus is the lifecycle state of a provisioning request.
type RequestStatus string

// Request states.
const (
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusFailed     RequestStatus = "failed"
)

// validRequestTransitions maps each status to the statuses it may move to.
// Completed and failed are terminal.
var validRequestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusInProgress: {RequestStatusCompleted, RequestStatusFailed},
	RequestStatusCompleted:  {},
	RequestStatusFailed:     {},
}

// CanTransitionTo reports whether a move to the target status is legal.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, allowed := range validRequestTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s RequestStatus) String() string {
	return string(s)
}

// ProvisioningRequest is the aggregate for one saga run: the triggering
// event plus the ordered ledger of steps taken on its behalf.
//
// Invariants:
//   - Steps are append-only and ordered by execution
//   - Status transitions: in_progress -> completed, in_progress -> failed
//   - A completed request's failed steps are tolerated ones, each matched
//     by a warning
//   - FailedStep is set exactly when the request failed
//   - CancelRequested on a terminal request has no effect
type ProvisioningRequest struct {
	ID         id.RequestID
	EmployeeID id.EmployeeID
	Event      LifecycleEvent
	Status     RequestStatus

	// CancelRequested is the cooperative cancellation flag. The orchestrator
	// checks it at step boundaries; it never interrupts an in-flight call.
	CancelRequested bool

	// FailedStep names the step (or pre-plan phase) where the run stopped.
	FailedStep    string
	FailureDetail string

	// Warnings records tolerated failures that did not stop the run.
	Warnings []string

	Steps []*ProvisioningStep

	// PlannedSteps is the ledger size the plan would produce if every step
	// ran; recorded up front so progress is reportable mid-run.
	PlannedSteps int

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// NewRequest opens a request for a validated lifecycle event.
func NewRequest(event LifecycleEvent, now time.Time) (*ProvisioningRequest, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &ProvisioningRequest{
		ID:         id.NewRequestID(),
		EmployeeID: event.EmployeeID,
		Event:      event,
		Status:     RequestStatusInProgress,
		CreatedAt:  now,
	}, nil
}

// AppendStep adds the next ledger entry.
func (r *ProvisioningRequest) AppendStep(step *ProvisioningStep) {
	r.Steps = append(r.Steps, step)
}

// AddWarning records a tolerated failure.
func (r *ProvisioningRequest) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// CanComplete checks whether the request may finish successfully. A failed
// step is acceptable only when it was tolerated, which the orchestrator
// records as a warning naming the step.
func (r *ProvisioningRequest) CanComplete() error {
	if !r.Status.CanTransitionTo(RequestStatusCompleted) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot complete request in status %s", r.Status)
	}
	for _, step := range r.Steps {
		if step.Status == StepStatusFailed && !r.warnedAbout(step.Name) {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot complete request with failed step %s", step.Name)
		}
	}
	return nil
}

func (r *ProvisioningRequest) warnedAbout(stepName string) bool {
	for _, warning := range r.Warnings {
		if strings.Contains(warning, stepName) {
			return true
		}
	}
	return false
}

// ApplyCompletion finishes the request successfully.
// Call CanComplete first to validate the transition.
func (r *ProvisioningRequest) ApplyCompletion(now time.Time) {
	r.Status = RequestStatusCompleted
	r.CompletedAt = &now
}

// CanFail checks whether the request may be marked failed.
func (r *ProvisioningRequest) CanFail() error {
	if !r.Status.CanTransitionTo(RequestStatusFailed) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot fail request in status %s", r.Status)
	}
	return nil
}

// ApplyFailure marks the request failed at the named step.
// Call CanFail first to validate the transition.
func (r *ProvisioningRequest) ApplyFailure(failedStep, detail string, now time.Time) {
	r.Status = RequestStatusFailed
	r.FailedStep = failedStep
	r.FailureDetail = detail
	r.CompletedAt = &now
}

// CompletedSteps counts ledger entries that completed.
func (r *ProvisioningRequest) CompletedSteps() int {
	n := 0
	for _, step := range r.Steps {
		if step.Status == StepStatusCompleted {
			n++
		}
	}
	return n
}

// CompensableSteps returns the completed rollbackable steps newest-first,
// the order compensation runs in.
func (r *ProvisioningRequest) CompensableSteps() []*ProvisioningStep {
	var out []*ProvisioningStep
	for i := len(r.Steps) - 1; i >= 0; i-- {
		step := r.Steps[i]
		if step.Status == StepStatusCompleted && step.CanRollback && !step.RollbackCompleted {
			out = append(out, step)
		}
	}
	return out
}
