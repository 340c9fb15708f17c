package notify

import (
	"fmt"
	"strings"
	"time"

	"provisor/pkg/email"
)

const signature = "Provisor Identity Lifecycle"

// WelcomeMessage builds the new-joiner confirmation sent to the employee's
// contact address. The one-time credential is never included; it travels
// through the manager channel.
func WelcomeMessage(displayName, contactAddress, principalName, department string) (subject, body string) {
	subject = "Welcome aboard: your corporate account is ready"
	body = strings.Join([]string{
		fmt.Sprintf("Hello %s,", email.GreetingName(displayName, contactAddress)),
		"",
		"Your corporate identity has been provisioned. Sign in with:",
		"",
		fmt.Sprintf("  Account:    %s", principalName),
		fmt.Sprintf("  Department: %s", department),
		"",
		"Your temporary password is issued separately and must be changed at",
		"first sign-in.",
		"",
		"If access is missing once you are signed in, contact the IT service",
		"desk and reference this message.",
		"",
		"-- " + signature,
	}, "\r\n")
	return subject, body
}

// Escalation carries everything an operator needs to triage a failed run.
type Escalation struct {
	DisplayName string
	EmployeeID  string
	EventType   string
	Department  string
	FailedStep  string
	ErrorDetail string
	RequestID   string
}

// EscalationMessage builds the administrator alert for a failed saga.
func EscalationMessage(e Escalation) (subject, body string) {
	subject = fmt.Sprintf("Provisioning failed: %s (%s event)", e.DisplayName, e.EventType)
	body = strings.Join([]string{
		fmt.Sprintf("Provisioning for %s (%s) did not complete.", e.DisplayName, e.EmployeeID),
		"",
		fmt.Sprintf("  Event:       %s", e.EventType),
		fmt.Sprintf("  Department:  %s", e.Department),
		fmt.Sprintf("  Failed step: %s", e.FailedStep),
		fmt.Sprintf("  Detail:      %s", e.ErrorDetail),
		fmt.Sprintf("  Request:     %s", e.RequestID),
		"",
		"Completed steps were rolled back where possible. Review the request",
		"ledger, resolve the underlying issue, and re-submit the event.",
		"",
		"-- " + signature,
	}, "\r\n")
	return subject, body
}

// MoveMessage builds the transfer confirmation sent to the employee.
func MoveMessage(displayName, contactAddress, fromDepartment, toDepartment string) (subject, body string) {
	subject = fmt.Sprintf("Department transfer completed: %s", toDepartment)
	body = strings.Join([]string{
		fmt.Sprintf("Hello %s,", email.GreetingName(displayName, contactAddress)),
		"",
		fmt.Sprintf("Your access has been updated for the move from %s to %s.", fromDepartment, toDepartment),
		"Group, team, and license assignments now match your new department.",
		"",
		"If anything you need is missing, contact the IT service desk.",
		"",
		"-- " + signature,
	}, "\r\n")
	return subject, body
}

// LeaveMessage builds the offboarding summary sent to administrators.
func LeaveMessage(displayName, employeeID string, disabled bool, licenseCount int, reclaimAt time.Time) (subject, body string) {
	subject = fmt.Sprintf("Offboarding completed: %s", displayName)

	account := "left enabled per policy"
	if disabled {
		account = "disabled, sessions revoked"
	}
	licenses := "no licenses held"
	if licenseCount > 0 {
		licenses = fmt.Sprintf("%d license(s) scheduled for removal on %s",
			licenseCount, reclaimAt.UTC().Format("2006-01-02"))
	}

	body = strings.Join([]string{
		fmt.Sprintf("Offboarding for %s (%s) has completed.", displayName, employeeID),
		"",
		fmt.Sprintf("  Account:  %s", account),
		fmt.Sprintf("  Licenses: %s", licenses),
		"",
		"Group and team memberships were removed. The account remains",
		"recoverable by an operator until the retention window closes.",
		"",
		"-- " + signature,
	}, "\r\n")
	return subject, body
}
