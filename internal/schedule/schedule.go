// Package schedule defers license removal for leavers. The saga only ever
// schedules an item; reclaiming happens here after the grace period, so a
// failed removal never blocks an offboarding run.
package schedule

import (
	"time"

	id "provisor/pkg/domain"
)

// Item is one pending license reclaim. EmployeeID is the HR identifier used
// for audit; IdentityID is the directory identifier the removal call needs.
type Item struct {
	ID         id.ReclaimID
	EmployeeID id.EmployeeID
	IdentityID string
	LicenseIDs []string
	DueAt      time.Time
	RequestID  id.RequestID
}

// NewItem builds a reclaim item due at the given time.
func NewItem(employeeID id.EmployeeID, identityID string, licenseIDs []string, dueAt time.Time, requestID id.RequestID) Item {
	return Item{
		ID:         id.NewReclaimID(),
		EmployeeID: employeeID,
		IdentityID: identityID,
		LicenseIDs: append([]string(nil), licenseIDs...),
		DueAt:      dueAt,
		RequestID:  requestID,
	}
}
