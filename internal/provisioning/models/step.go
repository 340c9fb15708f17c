package models

import (
	"time"

	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
)

// ActionType classifies what a saga step does against the directory.
type ActionType string

// Supported step actions.
const (
	ActionCreateIdentity         ActionType = "create_identity"
	ActionDisableIdentity        ActionType = "disable_identity"
	ActionRevokeSessions         ActionType = "revoke_sessions"
	ActionAssignLicense          ActionType = "assign_license"
	ActionRemoveLicense          ActionType = "remove_license"
	ActionAddToGroup             ActionType = "add_to_group"
	ActionRemoveFromGroup        ActionType = "remove_from_group"
	ActionAddToTeam              ActionType = "add_to_team"
	ActionRemoveFromTeam         ActionType = "remove_from_team"
	ActionSendNotification       ActionType = "send_notification"
	ActionUpdateProfile          ActionType = "update_profile"
	ActionScheduleLicenseRemoval ActionType = "schedule_license_removal"
)

// rollbackableActions is the single source of truth for which actions have a
// compensating inverse. Everything else compensates as a no-op.
//
// CreateIdentity's inverse is Disable, never Delete: a half-provisioned
// account is recoverable and auditable, a deleted one is neither.
var rollbackableActions = map[ActionType]bool{
	ActionCreateIdentity: true,
	ActionAssignLicense:  true,
	ActionAddToGroup:     true,
	ActionAddToTeam:      true,
}

// Rollbackable reports whether the action has a compensating inverse.
func (a ActionType) Rollbackable() bool {
	return rollbackableActions[a]
}

// String returns the string representation of the action.
func (a ActionType) String() string {
	return string(a)
}

// StepStatus is the execution state of a single step.
type StepStatus string

// Step states. Steps that would be skipped are never recorded, so there is
// no skipped status.
const (
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// ProvisioningStep is one ledger entry of a saga run.
//
// Invariants:
//   - Status transitions: in_progress -> completed, in_progress -> failed
//   - Payload is set exactly when the step completed
//   - RollbackCompleted implies the step completed, the action is
//     rollbackable, and the parent request failed (the orchestrator only
//     compensates on the failure path)
type ProvisioningStep struct {
	ID     id.StepID
	Name   string
	Action ActionType
	Status StepStatus

	// Target is the resource acted on: a group id, team id, identity id, or
	// a license batch label.
	Target string

	// Payload captures the typed response of the completed call; it is what
	// compensation consumes.
	Payload StepPayload

	StartedAt   time.Time
	CompletedAt *time.Time

	CanRollback       bool
	RollbackCompleted bool

	// Detail carries the error text when the step failed.
	Detail string
}

// StepName derives the ledger name for an action and target. The
// orchestrator uses it to name steps that never ran, like the step a
// cancellation landed on.
func StepName(action ActionType, target string) string {
	if target == "" {
		return string(action)
	}
	return string(action) + ":" + target
}

// NewStep starts a ledger entry for an action about to run.
func NewStep(action ActionType, target string, now time.Time) *ProvisioningStep {
	return &ProvisioningStep{
		ID:          id.NewStepID(),
		Name:        StepName(action, target),
		Action:      action,
		Status:      StepStatusInProgress,
		Target:      target,
		StartedAt:   now,
		CanRollback: action.Rollbackable(),
	}
}

// ApplyCompletion marks the step completed and captures its payload.
func (s *ProvisioningStep) ApplyCompletion(payload StepPayload, now time.Time) {
	s.Status = StepStatusCompleted
	s.Payload = payload
	s.CompletedAt = &now
}

// ApplyFailure marks the step failed with the error detail.
func (s *ProvisioningStep) ApplyFailure(detail string, now time.Time) {
	s.Status = StepStatusFailed
	s.Detail = detail
	s.CompletedAt = &now
}

// CanApplyRollback checks the compensation preconditions for this step.
func (s *ProvisioningStep) CanApplyRollback() error {
	if s.Status != StepStatusCompleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "only completed steps can be rolled back")
	}
	if !s.CanRollback {
		return dErrors.New(dErrors.CodeInvariantViolation, "step action has no compensating inverse")
	}
	if s.RollbackCompleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "step already rolled back")
	}
	return nil
}

// ApplyRollback records a successful compensation.
// Call CanApplyRollback first to validate the transition.
func (s *ProvisioningStep) ApplyRollback() {
	s.RollbackCompleted = true
}
