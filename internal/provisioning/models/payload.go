package models

import (
	"encoding/json"
	"time"

	dErrors "provisor/pkg/domain-errors"
)

// StepPayload is the typed record of what a completed step did. It carries
// exactly the identifiers a compensating call needs, so rollback never has
// to re-derive state from the directory.
type StepPayload interface {
	payloadKind() string
}

// IdentityCreated records the account a create call produced. The one-time
// credential is deliberately absent; payloads are persisted.
type IdentityCreated struct {
	IdentityID    string `json:"identity_id"`
	PrincipalName string `json:"principal_name"`
}

// LicensesAssigned records a completed license batch assignment.
type LicensesAssigned struct {
	IdentityID string   `json:"identity_id"`
	LicenseIDs []string `json:"license_ids"`
}

// LicensesRemoved records a completed license batch removal.
type LicensesRemoved struct {
	IdentityID string   `json:"identity_id"`
	LicenseIDs []string `json:"license_ids"`
}

// GroupMemberAdded records a completed group addition.
type GroupMemberAdded struct {
	IdentityID string `json:"identity_id"`
	GroupID    string `json:"group_id"`
}

// GroupMemberRemoved records a completed group removal.
type GroupMemberRemoved struct {
	IdentityID string `json:"identity_id"`
	GroupID    string `json:"group_id"`
}

// TeamMemberAdded records a completed team addition.
type TeamMemberAdded struct {
	IdentityID string `json:"identity_id"`
	TeamID     string `json:"team_id"`
	Role       string `json:"role"`
}

// TeamMemberRemoved records a completed team removal.
type TeamMemberRemoved struct {
	IdentityID string `json:"identity_id"`
	TeamID     string `json:"team_id"`
}

// ProfileUpdated records which profile fields a patch touched.
type ProfileUpdated struct {
	IdentityID string   `json:"identity_id"`
	Fields     []string `json:"fields"`
}

// IdentityDisabled records a completed disable.
type IdentityDisabled struct {
	IdentityID string `json:"identity_id"`
}

// SessionsRevoked records a completed session revocation.
type SessionsRevoked struct {
	IdentityID string `json:"identity_id"`
}

// NotificationQueued records an enqueued notification.
type NotificationQueued struct {
	Recipient string `json:"recipient"`
	Template  string `json:"template"`
}

// LicenseRemovalScheduled records a deferred license reclaim.
type LicenseRemovalScheduled struct {
	IdentityID  string    `json:"identity_id"`
	LicenseIDs  []string  `json:"license_ids"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (IdentityCreated) payloadKind() string         { return "identity_created" }
func (LicensesAssigned) payloadKind() string        { return "licenses_assigned" }
func (LicensesRemoved) payloadKind() string         { return "licenses_removed" }
func (GroupMemberAdded) payloadKind() string        { return "group_member_added" }
func (GroupMemberRemoved) payloadKind() string      { return "group_member_removed" }
func (TeamMemberAdded) payloadKind() string         { return "team_member_added" }
func (TeamMemberRemoved) payloadKind() string       { return "team_member_removed" }
func (ProfileUpdated) payloadKind() string          { return "profile_updated" }
func (IdentityDisabled) payloadKind() string        { return "identity_disabled" }
func (SessionsRevoked) payloadKind() string         { return "sessions_revoked" }
func (NotificationQueued) payloadKind() string      { return "notification_queued" }
func (LicenseRemovalScheduled) payloadKind() string { return "license_removal_scheduled" }

// payloadDecoders maps wire kinds back to concrete types. Decoding returns
// value payloads so round-tripped steps compare equal to freshly built ones.
var payloadDecoders = map[string]func(json.RawMessage) (StepPayload, error){
	"identity_created":          decodeInto[IdentityCreated],
	"licenses_assigned":         decodeInto[LicensesAssigned],
	"licenses_removed":          decodeInto[LicensesRemoved],
	"group_member_added":        decodeInto[GroupMemberAdded],
	"group_member_removed":      decodeInto[GroupMemberRemoved],
	"team_member_added":         decodeInto[TeamMemberAdded],
	"team_member_removed":       decodeInto[TeamMemberRemoved],
	"profile_updated":           decodeInto[ProfileUpdated],
	"identity_disabled":         decodeInto[IdentityDisabled],
	"sessions_revoked":          decodeInto[SessionsRevoked],
	"notification_queued":       decodeInto[NotificationQueued],
	"license_removal_scheduled": decodeInto[LicenseRemovalScheduled],
}

func decodeInto[T StepPayload](raw json.RawMessage) (StepPayload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// payloadEnvelope is the persisted shape: the kind discriminator plus the
// raw payload document.
type payloadEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload with its kind discriminator.
// A nil payload encodes to nil.
func EncodePayload(p StepPayload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to marshal step payload")
	}
	raw, err := json.Marshal(payloadEnvelope{Kind: p.payloadKind(), Data: data})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to marshal payload envelope")
	}
	return raw, nil
}

// DecodePayload restores a payload from its persisted envelope.
// Empty input decodes to nil.
func DecodePayload(raw []byte) (StepPayload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var env payloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unmarshal payload envelope")
	}
	decode, ok := payloadDecoders[env.Kind]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "unknown step payload kind %q", env.Kind)
	}
	p, err := decode(env.Data)
	if err != nil {
		return nil, dErrors.Wrapf(err, dErrors.CodeInternal, "failed to unmarshal %s payload", env.Kind)
	}
	return p, nil
}
