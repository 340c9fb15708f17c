package domain

import dErrors "provisor/pkg/domain-errors"

// EventType classifies a lifecycle event.
// Invariant: the value must be one of the supported lifecycle event types.
//
// Usage: construct via ParseEventType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type EventType string

// Supported lifecycle event types.
const (
	// EventJoin is a new hire: provision an identity and its entitlements.
	EventJoin EventType = "join"
	// EventMove is a transfer: re-align entitlements with the new department.
	EventMove EventType = "move"
	// EventLeave is an exit: disable access and schedule license reclaim.
	EventLeave EventType = "leave"
)

// validEventTypes is the single source of truth for valid event types.
var validEventTypes = map[EventType]bool{
	EventJoin:  true,
	EventMove:  true,
	EventLeave: true,
}

// ParseEventType constructs an EventType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseEventType(s string) (EventType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "event type cannot be empty")
	}
	t := EventType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid event type")
	}
	return t, nil
}

// IsValid checks if the event type is one of the supported enum values.
func (t EventType) IsValid() bool {
	return validEventTypes[t]
}

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}
