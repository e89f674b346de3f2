package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw, verb, args string
	}{
		{"listplayers", "listplayers", ""},
		{"broadcast hello there", "broadcast", "hello there"},
		{"  serverchat\tgg  ", "serverchat", "gg"},
		{"", "", ""},
	}
	for _, tc := range cases {
		verb, args := ParseCommand(tc.raw)
		assert.Equal(t, tc.verb, verb, tc.raw)
		assert.Equal(t, tc.args, args, tc.raw)
	}
}

func TestSplitResponseDropsBlankLines(t *testing.T) {
	t.Parallel()

	lines := SplitResponse("0. Bob, 123\r\n\n   \n1. Alice, 456  \n")
	assert.Equal(t, []string{"0. Bob, 123", "1. Alice, 456"}, lines)
}

func TestSplitResponseNormalizesSentinel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{NoResponseToken}, SplitResponse("Server received, But no response!! \n"))
	assert.Equal(t, []string{NoResponseToken}, SplitResponse("Server received, But no response!!trailing"))
}

func TestSplitResponseKeepsSentinelInsideMultiLineOutput(t *testing.T) {
	t.Parallel()

	lines := SplitResponse("Server received, But no response!!\nsomething else")
	assert.Equal(t, []string{"Server received, But no response!!", "something else"}, lines)
}

func TestCommandResultIsSetOnce(t *testing.T) {
	t.Parallel()

	cmd := &Command{Raw: "getchat", Verb: "getchat"}
	require.True(t, cmd.SetResult("first"))
	assert.False(t, cmd.SetResult("second"))
	assert.Equal(t, []string{"first"}, cmd.Lines)
	assert.True(t, cmd.HasResult())
}

func TestCommandIsVerbIgnoresCase(t *testing.T) {
	t.Parallel()

	cmd := &Command{Verb: "ListPlayers"}
	assert.True(t, cmd.IsVerb(VerbListPlayers))
	assert.False(t, cmd.IsVerb(VerbGetChat))
}

func TestNewSnapshotSortsAndCounts(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	snap := NewSnapshot(map[string]*PlayerRecord{
		"2": {ID: "2", IsOnline: true},
		"1": {ID: "1"},
		"3": {ID: "3", IsOnline: true},
	}, now)

	require.Len(t, snap.Players, 3)
	assert.Equal(t, "1", snap.Players[0].ID)
	assert.Equal(t, "3", snap.Players[2].ID)
	assert.Equal(t, 2, snap.OnlineCount)
	assert.Len(t, snap.Online(), 2)
	assert.Equal(t, now, snap.TakenAt)

	_, ok := snap.Find("4")
	assert.False(t, ok)
}

func TestPlayerRecordName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Bob", PlayerRecord{ID: "1", DisplayName: "Bob", PlatformName: "bobby"}.Name())
	assert.Equal(t, "bobby", PlayerRecord{ID: "1", PlatformName: "bobby"}.Name())
	assert.Equal(t, "1", PlayerRecord{ID: "1"}.Name())
}

func TestCommandJSONIncludesError(t *testing.T) {
	t.Parallel()

	cmd := Command{ID: "x", Raw: "SaveWorld", Verb: "SaveWorld", SuppressLogging: true, Err: errors.New("rcon command failed")}
	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "rcon command failed", decoded["error"])
	assert.Equal(t, "disconnected", decoded["status"])
	assert.NotContains(t, decoded, "SuppressLogging")
	assert.NotContains(t, decoded, "linesSet")
}

func TestConnectionStatusJSONRoundTrip(t *testing.T) {
	t.Parallel()

	for _, status := range []ConnectionStatus{Connected, Disconnected} {
		data, err := json.Marshal(struct {
			Status ConnectionStatus `json:"status"`
		}{status})
		require.NoError(t, err)

		var out struct {
			Status ConnectionStatus `json:"status"`
		}
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, status, out.Status)
	}

	var s ConnectionStatus
	assert.Error(t, s.UnmarshalText([]byte("sleeping")))
}
