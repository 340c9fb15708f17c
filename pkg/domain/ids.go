package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "provisor/pkg/domain-errors"
)

// Typed identifiers for the provisioning domain.
// Invariant: uuid-backed IDs must be valid, non-empty, non-nil UUIDs.
//
// Usage: construct via Parse* at trust boundaries to enforce validation;
// direct casting bypasses it.
type (
	// RequestID identifies a provisioning request (one saga run).
	RequestID uuid.UUID

	// StepID identifies a single step in a request's ledger.
	StepID uuid.UUID

	// EntryID identifies an audit entry.
	EntryID uuid.UUID

	// ReclaimID identifies a scheduled license reclaim item.
	ReclaimID uuid.UUID
)

// EmployeeID is the HR-side identifier of a person. It is assigned by the
// upstream HR system, not by this service, so it is an opaque non-empty
// string rather than a UUID.
type EmployeeID string

const maxEmployeeIDLength = 128

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewStepID returns a fresh random StepID.
func NewStepID() StepID { return StepID(uuid.New()) }

// NewEntryID returns a fresh random EntryID.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// NewReclaimID returns a fresh random ReclaimID.
func NewReclaimID() ReclaimID { return ReclaimID(uuid.New()) }

// ParseRequestID constructs a RequestID from external input.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil
// UUID; no other errors are expected.
func ParseRequestID(s string) (RequestID, error) {
	id, err := parseUUID(s, "request id")
	return RequestID(id), err
}

// ParseStepID constructs a StepID from external input.
func ParseStepID(s string) (StepID, error) {
	id, err := parseUUID(s, "step id")
	return StepID(id), err
}

// ParseEntryID constructs an EntryID from external input.
func ParseEntryID(s string) (EntryID, error) {
	id, err := parseUUID(s, "entry id")
	return EntryID(id), err
}

// ParseReclaimID constructs a ReclaimID from external input.
func ParseReclaimID(s string) (ReclaimID, error) {
	id, err := parseUUID(s, "reclaim id")
	return ReclaimID(id), err
}

// ParseEmployeeID constructs an EmployeeID from external input. The value is
// trimmed; empty and oversized values are rejected.
func ParseEmployeeID(s string) (EmployeeID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "employee id cannot be empty")
	}
	if len(trimmed) > maxEmployeeIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "employee id too long")
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidInput, "employee id contains control characters")
		}
	}
	return EmployeeID(trimmed), nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", what)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil uuid", what)
	}
	return id, nil
}

func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id StepID) String() string    { return uuid.UUID(id).String() }
func (id EntryID) String() string   { return uuid.UUID(id).String() }
func (id ReclaimID) String() string { return uuid.UUID(id).String() }

func (id RequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReclaimID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id EmployeeID) String() string { return string(id) }
func (id EmployeeID) IsNil() bool    { return id == "" }
