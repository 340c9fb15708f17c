package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provisor/internal/directory"
	id "provisor/pkg/domain"
	"provisor/pkg/platform/sentinel"
)

func newIdentity(t *testing.T, d *Directory, employeeID string) string {
	t.Helper()
	created, err := d.CreateIdentity(context.Background(), directory.CreateProfile{
		DisplayName:   "Jordan Doe",
		PrincipalName: employeeID + "@corp.example.com",
		Department:    "Engineering",
		EmployeeID:    id.EmployeeID(employeeID),
	})
	require.NoError(t, err)
	return created.ID
}

func TestCreateIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("creates enabled identity and indexes it", func(t *testing.T) {
		d := New()
		identityID := newIdentity(t, d, "E-1001")

		found, err := d.FindByEmployeeID(ctx, "E-1001")
		require.NoError(t, err)
		assert.Equal(t, identityID, found.ID)
		assert.True(t, found.Enabled)
	})

	t.Run("rejects duplicate principal", func(t *testing.T) {
		d := New()
		newIdentity(t, d, "E-1001")

		_, err := d.CreateIdentity(ctx, directory.CreateProfile{
			PrincipalName: "E-1001@corp.example.com",
			EmployeeID:    "E-2002",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("rejects duplicate employee id", func(t *testing.T) {
		d := New()
		newIdentity(t, d, "E-1001")

		_, err := d.CreateIdentity(ctx, directory.CreateProfile{
			PrincipalName: "other@corp.example.com",
			EmployeeID:    "E-1001",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})
}

func TestFindByEmployeeID_Unknown(t *testing.T) {
	d := New()
	_, err := d.FindByEmployeeID(context.Background(), "E-404")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMembershipIdempotency(t *testing.T) {
	ctx := context.Background()
	d := New()
	identityID := newIdentity(t, d, "E-1001")

	t.Run("adding a group twice keeps one membership", func(t *testing.T) {
		require.NoError(t, d.AddToGroup(ctx, identityID, "grp-eng"))
		require.NoError(t, d.AddToGroup(ctx, identityID, "grp-eng"))

		groups, err := d.ListGroups(ctx, identityID)
		require.NoError(t, err)
		assert.Len(t, groups, 1)
	})

	t.Run("removing a non-member group succeeds", func(t *testing.T) {
		assert.NoError(t, d.RemoveFromGroup(ctx, identityID, "grp-never-joined"))
	})

	t.Run("adding a team twice keeps one membership", func(t *testing.T) {
		require.NoError(t, d.AddToTeam(ctx, identityID, "team-core", directory.TeamRoleMember))
		require.NoError(t, d.AddToTeam(ctx, identityID, "team-core", directory.TeamRoleMember))

		teams, err := d.ListTeams(ctx, identityID)
		require.NoError(t, err)
		assert.Len(t, teams, 1)
	})

	t.Run("removing a non-member team succeeds", func(t *testing.T) {
		assert.NoError(t, d.RemoveFromTeam(ctx, identityID, "team-never-joined"))
	})
}

func TestLicenses(t *testing.T) {
	ctx := context.Background()
	d := New()
	identityID := newIdentity(t, d, "E-1001")

	require.NoError(t, d.AssignLicenses(ctx, identityID, []string{"lic-e5", "lic-visio"}))
	require.NoError(t, d.AssignLicenses(ctx, identityID, []string{"lic-e5"}))

	_, licenses, _, _, ok := d.Snapshot(identityID)
	require.True(t, ok)
	assert.Equal(t, []string{"lic-e5", "lic-visio"}, licenses)

	require.NoError(t, d.RemoveLicenses(ctx, identityID, []string{"lic-e5", "lic-unheld"}))
	_, licenses, _, _, _ = d.Snapshot(identityID)
	assert.Equal(t, []string{"lic-visio"}, licenses)
}

func TestDisableAndRevoke(t *testing.T) {
	ctx := context.Background()
	d := New()
	identityID := newIdentity(t, d, "E-1001")

	require.NoError(t, d.DisableIdentity(ctx, identityID))
	identity, _, _, _, ok := d.Snapshot(identityID)
	require.True(t, ok)
	assert.False(t, identity.Enabled)

	// Disabling again is a no-op success.
	assert.NoError(t, d.DisableIdentity(ctx, identityID))

	require.NoError(t, d.RevokeSessions(ctx, identityID))
	require.NoError(t, d.RevokeSessions(ctx, identityID))
	assert.Equal(t, 2, d.SessionEpoch(identityID))

	require.NoError(t, d.EnableIdentity(ctx, identityID))
	identity, _, _, _, _ = d.Snapshot(identityID)
	assert.True(t, identity.Enabled)
}

func TestUpdateIdentity_SparsePatch(t *testing.T) {
	ctx := context.Background()
	d := New()
	identityID := newIdentity(t, d, "E-1001")

	dept := "Sales"
	title := "Account Executive"
	require.NoError(t, d.UpdateIdentity(ctx, identityID, directory.ProfilePatch{
		Department: &dept,
		JobTitle:   &title,
	}))

	identity, _, _, _, _ := d.Snapshot(identityID)
	assert.Equal(t, "Sales", identity.Department)
	assert.Equal(t, "Account Executive", identity.JobTitle)
	assert.Equal(t, "Jordan Doe", identity.DisplayName, "untouched fields keep their values")

	err := d.UpdateIdentity(ctx, "missing-id", directory.ProfilePatch{Department: &dept})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
