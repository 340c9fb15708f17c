// Package memory provides a stateful in-memory directory for dev mode and
// tests. It honors the same idempotency and error contracts as the real
// adapter so saga behavior is observable without a remote directory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"provisor/internal/directory"
	id "provisor/pkg/domain"
	"provisor/pkg/platform/sentinel"
)

type teamMembership struct {
	ref  directory.TeamRef
	role directory.TeamRole
}

type record struct {
	identity     directory.Identity
	licenses     []string
	groups       []directory.GroupRef
	teams        []teamMembership
	sessionEpoch int
}

// Directory is an in-memory implementation of directory.Client.
type Directory struct {
	mu          sync.RWMutex
	identities  map[string]*record
	byEmployee  map[id.EmployeeID]string
	byPrincipal map[string]string
}

var _ directory.Client = (*Directory)(nil)

// New creates an empty in-memory directory.
func New() *Directory {
	return &Directory{
		identities:  make(map[string]*record),
		byEmployee:  make(map[id.EmployeeID]string),
		byPrincipal: make(map[string]string),
	}
}

// FindByEmployeeID resolves an HR employee identifier to an identity.
func (d *Directory) FindByEmployeeID(_ context.Context, employeeID id.EmployeeID) (*directory.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	identityID, ok := d.byEmployee[employeeID]
	if !ok {
		return nil, fmt.Errorf("employee %s: %w", employeeID, sentinel.ErrNotFound)
	}
	identity := d.identities[identityID].identity
	return &identity, nil
}

// CreateIdentity provisions a new account. Principal names and employee ids
// are unique; collisions surface sentinel.ErrConflict.
func (d *Directory) CreateIdentity(_ context.Context, profile directory.CreateProfile) (*directory.IdentityCreated, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if profile.PrincipalName == "" {
		return nil, fmt.Errorf("principal name required: %w", sentinel.ErrInvalidState)
	}
	if _, exists := d.byPrincipal[profile.PrincipalName]; exists {
		return nil, fmt.Errorf("principal %s: %w", profile.PrincipalName, sentinel.ErrConflict)
	}
	if _, exists := d.byEmployee[profile.EmployeeID]; exists && !profile.EmployeeID.IsNil() {
		return nil, fmt.Errorf("employee %s: %w", profile.EmployeeID, sentinel.ErrConflict)
	}

	identityID := uuid.NewString()
	d.identities[identityID] = &record{
		identity: directory.Identity{
			ID:            identityID,
			PrincipalName: profile.PrincipalName,
			DisplayName:   profile.DisplayName,
			Department:    profile.Department,
			JobTitle:      profile.JobTitle,
			UsageLocation: profile.UsageLocation,
			EmployeeID:    profile.EmployeeID,
			ManagerID:     profile.ManagerID,
			Enabled:       true,
		},
	}
	d.byPrincipal[profile.PrincipalName] = identityID
	if !profile.EmployeeID.IsNil() {
		d.byEmployee[profile.EmployeeID] = identityID
	}

	return &directory.IdentityCreated{ID: identityID, PrincipalName: profile.PrincipalName}, nil
}

// DisableIdentity blocks sign-in. Disabling an already disabled identity is
// a no-op success.
func (d *Directory) DisableIdentity(_ context.Context, identityID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	rec.identity.Enabled = false
	return nil
}

// EnableIdentity restores sign-in.
func (d *Directory) EnableIdentity(_ context.Context, identityID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	rec.identity.Enabled = true
	return nil
}

// RevokeSessions bumps the session epoch, invalidating everything issued
// before the call.
func (d *Directory) RevokeSessions(_ context.Context, identityID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	rec.sessionEpoch++
	return nil
}

// UpdateIdentity applies a sparse profile patch.
func (d *Directory) UpdateIdentity(_ context.Context, identityID string, patch directory.ProfilePatch) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	if patch.DisplayName != nil {
		rec.identity.DisplayName = *patch.DisplayName
	}
	if patch.Department != nil {
		rec.identity.Department = *patch.Department
	}
	if patch.JobTitle != nil {
		rec.identity.JobTitle = *patch.JobTitle
	}
	if patch.UsageLocation != nil {
		rec.identity.UsageLocation = *patch.UsageLocation
	}
	if patch.ManagerID != nil {
		rec.identity.ManagerID = *patch.ManagerID
	}
	return nil
}

// AssignLicenses adds licenses; already assigned ids are skipped.
func (d *Directory) AssignLicenses(_ context.Context, identityID string, licenseIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	for _, lic := range licenseIDs {
		if !contains(rec.licenses, lic) {
			rec.licenses = append(rec.licenses, lic)
		}
	}
	return nil
}

// RemoveLicenses removes licenses; ids not held are skipped.
func (d *Directory) RemoveLicenses(_ context.Context, identityID string, licenseIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	kept := rec.licenses[:0]
	for _, held := range rec.licenses {
		if !contains(licenseIDs, held) {
			kept = append(kept, held)
		}
	}
	rec.licenses = kept
	return nil
}

// AddToGroup is idempotent: adding an existing member succeeds.
func (d *Directory) AddToGroup(_ context.Context, identityID, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	for _, g := range rec.groups {
		if g.ID == groupID {
			return nil
		}
	}
	rec.groups = append(rec.groups, directory.GroupRef{ID: groupID, Name: groupID})
	return nil
}

// RemoveFromGroup is idempotent: removing a non-member succeeds.
func (d *Directory) RemoveFromGroup(_ context.Context, identityID, groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	for i, g := range rec.groups {
		if g.ID == groupID {
			rec.groups = append(rec.groups[:i], rec.groups[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListGroups returns current group memberships.
func (d *Directory) ListGroups(_ context.Context, identityID string) ([]directory.GroupRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, err := d.getRead(identityID)
	if err != nil {
		return nil, err
	}
	return append([]directory.GroupRef(nil), rec.groups...), nil
}

// AddToTeam is idempotent for existing members; the recorded role is kept.
func (d *Directory) AddToTeam(_ context.Context, identityID, teamID string, role directory.TeamRole) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	for _, t := range rec.teams {
		if t.ref.ID == teamID {
			return nil
		}
	}
	rec.teams = append(rec.teams, teamMembership{
		ref:  directory.TeamRef{ID: teamID, Name: teamID},
		role: role,
	})
	return nil
}

// RemoveFromTeam is idempotent: removing a non-member succeeds.
func (d *Directory) RemoveFromTeam(_ context.Context, identityID, teamID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.get(identityID)
	if err != nil {
		return err
	}
	for i, t := range rec.teams {
		if t.ref.ID == teamID {
			rec.teams = append(rec.teams[:i], rec.teams[i+1:]...)
			return nil
		}
	}
	return nil
}

// ListTeams returns current team memberships.
func (d *Directory) ListTeams(_ context.Context, identityID string) ([]directory.TeamRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, err := d.getRead(identityID)
	if err != nil {
		return nil, err
	}
	teams := make([]directory.TeamRef, 0, len(rec.teams))
	for _, t := range rec.teams {
		teams = append(teams, t.ref)
	}
	return teams, nil
}

func (d *Directory) get(identityID string) (*record, error) {
	rec, ok := d.identities[identityID]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	return rec, nil
}

func (d *Directory) getRead(identityID string) (*record, error) {
	return d.get(identityID)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Test and dev-mode helpers. Not part of directory.Client.
// ---------------------------------------------------------------------------

// Seed inserts an identity with memberships, bypassing CreateIdentity.
func (d *Directory) Seed(identity directory.Identity, licenses []string, groups []string, teams []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	rec := &record{identity: identity}
	rec.licenses = append(rec.licenses, licenses...)
	for _, g := range groups {
		rec.groups = append(rec.groups, directory.GroupRef{ID: g, Name: g})
	}
	for _, t := range teams {
		rec.teams = append(rec.teams, teamMembership{
			ref:  directory.TeamRef{ID: t, Name: t},
			role: directory.TeamRoleMember,
		})
	}
	d.identities[identity.ID] = rec
	d.byPrincipal[identity.PrincipalName] = identity.ID
	if !identity.EmployeeID.IsNil() {
		d.byEmployee[identity.EmployeeID] = identity.ID
	}
}

// Snapshot returns the identity plus its memberships for assertions.
func (d *Directory) Snapshot(identityID string) (directory.Identity, []string, []string, []string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.identities[identityID]
	if !ok {
		return directory.Identity{}, nil, nil, nil, false
	}
	groups := make([]string, 0, len(rec.groups))
	for _, g := range rec.groups {
		groups = append(groups, g.ID)
	}
	teams := make([]string, 0, len(rec.teams))
	for _, t := range rec.teams {
		teams = append(teams, t.ref.ID)
	}
	return rec.identity, append([]string(nil), rec.licenses...), groups, teams, true
}

// SessionEpoch reports how many times sessions were revoked.
func (d *Directory) SessionEpoch(identityID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.identities[identityID]
	if !ok {
		return 0
	}
	return rec.sessionEpoch
}
