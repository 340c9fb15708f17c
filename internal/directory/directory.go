// Package directory defines the contract with the external identity
// directory (accounts, licenses, groups, teams, sessions).
//
// Implementations live in subpackages: rest talks to the remote directory
// API, memory is a stateful fake for dev mode and tests. Services depend on
// the Client interface only.
//
// Idempotency contract: membership mutations treat "already a member" and
// "not a member" outcomes as success. Re-running a converged operation must
// not surface an error. Implementations normalize remote responses to uphold
// this before returning.
//
// Error contract: unknown identities surface sentinel.ErrNotFound (wrapped);
// transport and remote 5xx failures surface domain errors with CodeExternal.
package directory

import (
	"context"

	id "provisor/pkg/domain"
)

// TeamRole is the membership role used when adding someone to a team.
type TeamRole string

// Supported team roles.
const (
	TeamRoleMember TeamRole = "member"
	TeamRoleOwner  TeamRole = "owner"
)

// CreateProfile is the payload for provisioning a new identity.
type CreateProfile struct {
	DisplayName   string
	PrincipalName string
	Department    string
	JobTitle      string
	UsageLocation string
	EmployeeID    id.EmployeeID
	ManagerID     string

	// Password is the generated one-time credential. It is handed to the
	// directory and never persisted or logged by this service.
	Password            string
	ForcePasswordChange bool
}

// IdentityCreated is the captured response of a successful create.
type IdentityCreated struct {
	ID            string
	PrincipalName string
}

// Identity is the directory's view of an account.
type Identity struct {
	ID            string
	PrincipalName string
	DisplayName   string
	Department    string
	JobTitle      string
	UsageLocation string
	EmployeeID    id.EmployeeID
	ManagerID     string
	Enabled       bool
}

// ProfilePatch is a sparse update; nil fields are left untouched.
type ProfilePatch struct {
	DisplayName   *string
	Department    *string
	JobTitle      *string
	UsageLocation *string
	ManagerID     *string
}

// GroupRef is a group membership reference.
type GroupRef struct {
	ID   string
	Name string
}

// TeamRef is a team membership reference.
type TeamRef struct {
	ID   string
	Name string
}

// Client is the full capability surface the provisioning sagas need.
//
//go:generate mockgen -source=directory.go -destination=mocks/mocks.go -package=mocks Client
type Client interface {
	// FindByEmployeeID resolves the HR employee identifier to a directory
	// identity. Returns sentinel.ErrNotFound when no identity carries it.
	FindByEmployeeID(ctx context.Context, employeeID id.EmployeeID) (*Identity, error)

	CreateIdentity(ctx context.Context, profile CreateProfile) (*IdentityCreated, error)
	DisableIdentity(ctx context.Context, identityID string) error
	EnableIdentity(ctx context.Context, identityID string) error

	// RevokeSessions invalidates all active sessions and refresh tokens for
	// the identity.
	RevokeSessions(ctx context.Context, identityID string) error

	UpdateIdentity(ctx context.Context, identityID string, patch ProfilePatch) error

	AssignLicenses(ctx context.Context, identityID string, licenseIDs []string) error
	RemoveLicenses(ctx context.Context, identityID string, licenseIDs []string) error

	AddToGroup(ctx context.Context, identityID, groupID string) error
	RemoveFromGroup(ctx context.Context, identityID, groupID string) error
	ListGroups(ctx context.Context, identityID string) ([]GroupRef, error)

	AddToTeam(ctx context.Context, identityID, teamID string, role TeamRole) error
	RemoveFromTeam(ctx context.Context, identityID, teamID string) error
	ListTeams(ctx context.Context, identityID string) ([]TeamRef, error)
}
