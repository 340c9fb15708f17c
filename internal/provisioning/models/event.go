package models

import (
	"strings"

	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
)

// LifecycleEvent is the HR-originated trigger for a provisioning saga.
// Immutable once accepted: the saga works from the snapshot embedded in its
// ProvisioningRequest, so an HR correction mid-run never changes the plan.
//
// Invariants:
//   - EmployeeID, DisplayName, and a valid Type are always present
//   - Join events carry a ContactAddress (it becomes the directory principal)
//   - Move events carry a PreviousDepartment
type LifecycleEvent struct {
	EmployeeID id.EmployeeID
	Type       id.EventType

	DisplayName    string
	ContactAddress string
	Department     string
	JobTitle       string
	Location       string
	ManagerID      string

	// PreviousDepartment is the department being left; set on Move only.
	PreviousDepartment string
}

// Validate rejects malformed events before any external call is made.
//
// Errors: CodeValidation only. A department with no configured entitlements
// is not a validation failure; the resolver's fallback chain handles it.
func (e LifecycleEvent) Validate() error {
	if e.EmployeeID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "employee id is required")
	}
	if !e.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "event type is required")
	}
	if strings.TrimSpace(e.DisplayName) == "" {
		return dErrors.New(dErrors.CodeValidation, "display name is required")
	}
	if e.Type == id.EventJoin && strings.TrimSpace(e.ContactAddress) == "" {
		return dErrors.New(dErrors.CodeValidation, "contact address is required for join events")
	}
	if e.Type == id.EventMove && strings.TrimSpace(e.PreviousDepartment) == "" {
		return dErrors.New(dErrors.CodeValidation, "previous department is required for move events")
	}
	return nil
}
