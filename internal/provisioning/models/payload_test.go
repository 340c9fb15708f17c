package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadEnvelope(t *testing.T) {
	t.Run("round-trips as values", func(t *testing.T) {
		scheduled := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
		original := LicenseRemovalScheduled{
			IdentityID:  "dir-1",
			LicenseIDs:  []string{"E3", "VISIO"},
			ScheduledAt: scheduled,
		}

		raw, err := EncodePayload(original)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"kind":"license_removal_scheduled"`)

		decoded, err := DecodePayload(raw)
		require.NoError(t, err)
		assert.Equal(t, original, decoded)
	})

	t.Run("discriminates kinds sharing a shape", func(t *testing.T) {
		// Added and removed payloads are structurally identical; the kind
		// field is what keeps compensation from inverting the wrong one.
		raw, err := EncodePayload(GroupMemberRemoved{IdentityID: "dir-1", GroupID: "grp-eng"})
		require.NoError(t, err)

		decoded, err := DecodePayload(raw)
		require.NoError(t, err)

		_, isRemoved := decoded.(GroupMemberRemoved)
		assert.True(t, isRemoved)
	})

	t.Run("nil payload encodes and decodes to nil", func(t *testing.T) {
		raw, err := EncodePayload(nil)
		require.NoError(t, err)
		assert.Nil(t, raw)

		decoded, err := DecodePayload(nil)
		require.NoError(t, err)
		assert.Nil(t, decoded)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := DecodePayload([]byte(`{"kind":"mystery","data":{}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mystery")
	})

	t.Run("rejects malformed envelope", func(t *testing.T) {
		_, err := DecodePayload([]byte(`{not json`))
		require.Error(t, err)
	})
}

func TestEveryPayloadKindDecodes(t *testing.T) {
	payloads := []StepPayload{
		IdentityCreated{IdentityID: "dir-1", PrincipalName: "ada@example.com"},
		LicensesAssigned{IdentityID: "dir-1", LicenseIDs: []string{"E3"}},
		LicensesRemoved{IdentityID: "dir-1", LicenseIDs: []string{"E3"}},
		GroupMemberAdded{IdentityID: "dir-1", GroupID: "grp-eng"},
		GroupMemberRemoved{IdentityID: "dir-1", GroupID: "grp-eng"},
		TeamMemberAdded{IdentityID: "dir-1", TeamID: "team-core", Role: "member"},
		TeamMemberRemoved{IdentityID: "dir-1", TeamID: "team-core"},
		ProfileUpdated{IdentityID: "dir-1", Fields: []string{"department"}},
		IdentityDisabled{IdentityID: "dir-1"},
		SessionsRevoked{IdentityID: "dir-1"},
		NotificationQueued{Recipient: "ada@example.com", Template: "welcome"},
		LicenseRemovalScheduled{IdentityID: "dir-1", LicenseIDs: []string{"E3"}},
	}

	for _, p := range payloads {
		t.Run(p.payloadKind(), func(t *testing.T) {
			raw, err := EncodePayload(p)
			require.NoError(t, err)

			decoded, err := DecodePayload(raw)
			require.NoError(t, err)
			assert.Equal(t, p, decoded)
		})
	}
}
