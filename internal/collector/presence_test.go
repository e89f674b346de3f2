package collector

import (
	"testing"

	"github.com/ernie/arkwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlayerList(t *testing.T) {
	t.Parallel()

	entries := ParsePlayerList([]string{
		"0. Bob Builder, 76561198000000001",
		"1. Dr.Alice , 76561198000000002",
		"No Players Connected",
		"2. Mallory, 7656abc",
		"3. Eve,",
		"4. Bob Again, 76561198000000001",
	})

	require.Len(t, entries, 2)
	assert.Equal(t, PresenceEntry{ID: "76561198000000001", Name: "Bob Builder"}, entries[0])
	assert.Equal(t, PresenceEntry{ID: "76561198000000002", Name: "Alice"}, entries[1])
}

func TestParsePlayerListIgnoresMalformedLines(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ParsePlayerList([]string{"no comma here", "0. Bob, 12x4", domain.NoResponseToken}))
}

func TestApplyPresenceJoinsAndLeaves(t *testing.T) {
	t.Parallel()

	players := map[string]*domain.PlayerRecord{}

	changes := applyPresence(players, []PresenceEntry{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}})
	require.Len(t, changes.Joined, 2)
	assert.Empty(t, changes.Left)
	assert.Equal(t, []string{"Player 'A' joined the game.", "Player 'B' joined the game."}, changes.Messages())

	changes = applyPresence(players, []PresenceEntry{{ID: "1", Name: "A"}})
	assert.Empty(t, changes.Joined)
	require.Len(t, changes.Left, 1)
	assert.Equal(t, "2", changes.Left[0].ID)
	assert.Equal(t, []string{"Player 'B' left the game."}, changes.Messages())

	assert.True(t, players["1"].IsOnline)
	assert.False(t, players["2"].IsOnline)
}

func TestApplyPresenceRejoinAfterOffline(t *testing.T) {
	t.Parallel()

	players := map[string]*domain.PlayerRecord{
		"1": {ID: "1", DisplayName: "A", IsValid: true},
	}

	changes := applyPresence(players, []PresenceEntry{{ID: "1", Name: "A"}})
	require.Len(t, changes.Joined, 1)
	assert.True(t, players["1"].IsValid, "presence must not touch validity")

	// still online: no message
	changes = applyPresence(players, []PresenceEntry{{ID: "1", Name: "A"}})
	assert.Empty(t, changes.Messages())
}

func TestApplyPresenceNeverSetsValidity(t *testing.T) {
	t.Parallel()

	players := map[string]*domain.PlayerRecord{}
	applyPresence(players, []PresenceEntry{{ID: "9", Name: "New"}})
	assert.False(t, players["9"].IsValid)
}

func TestApplyPresenceDuplicateIDsContributeOneEntry(t *testing.T) {
	t.Parallel()

	players := map[string]*domain.PlayerRecord{}
	entries := ParsePlayerList([]string{"0. A, 5", "1. A2, 5"})
	changes := applyPresence(players, entries)

	assert.Len(t, players, 1)
	require.Len(t, changes.Joined, 1)
	assert.Equal(t, "A", players["5"].DisplayName)
}
