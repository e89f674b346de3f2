package collector

import (
	"fmt"
	"strings"

	"github.com/ernie/arkwatch/internal/domain"
)

// PresenceEntry is one player parsed from a listplayers response
type PresenceEntry struct {
	ID   string
	Name string
}

// PresenceChanges is the result of applying one poll to the roster
type PresenceChanges struct {
	Joined []domain.PlayerRecord
	Left   []domain.PlayerRecord
}

// Messages returns the synthesized join/leave lines, joins first
func (c PresenceChanges) Messages() []string {
	msgs := make([]string, 0, len(c.Joined)+len(c.Left))
	for _, p := range c.Joined {
		msgs = append(msgs, JoinMessage(p))
	}
	for _, p := range c.Left {
		msgs = append(msgs, LeaveMessage(p))
	}
	return msgs
}

// JoinMessage is the line reported when a player comes online
func JoinMessage(p domain.PlayerRecord) string {
	return fmt.Sprintf("Player '%s' joined the game.", p.Name())
}

// LeaveMessage is the line reported when a player goes offline
func LeaveMessage(p domain.PlayerRecord) string {
	return fmt.Sprintf("Player '%s' left the game.", p.Name())
}

// ParsePlayerList parses lines of the form "<label>.<name>, <id>".
// Malformed lines are skipped; the first occurrence of an id wins.
func ParsePlayerList(lines []string) []PresenceEntry {
	var entries []PresenceEntry
	seen := make(map[string]bool)

	for _, line := range lines {
		parts := strings.SplitN(line, ",", 2)
		if len(parts) != 2 {
			continue
		}

		id := strings.TrimSpace(parts[1])
		if id == "" || !isNumeric(id) {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		name := parts[0]
		if idx := strings.LastIndex(name, "."); idx != -1 {
			name = name[idx+1:]
		}
		entries = append(entries, PresenceEntry{ID: id, Name: strings.TrimSpace(name)})
	}
	return entries
}

// applyPresence diffs one poll against the player table in place
func applyPresence(players map[string]*domain.PlayerRecord, entries []PresenceEntry) PresenceChanges {
	var changes PresenceChanges
	present := make(map[string]bool, len(entries))

	for _, e := range entries {
		present[e.ID] = true

		rec, ok := players[e.ID]
		if !ok {
			rec = &domain.PlayerRecord{ID: e.ID}
			players[e.ID] = rec
		}
		if e.Name != "" {
			rec.DisplayName = e.Name
		}
		if !ok || !rec.IsOnline {
			rec.IsOnline = true
			changes.Joined = append(changes.Joined, *rec)
			continue
		}
		rec.IsOnline = true
	}

	for id, rec := range players {
		if present[id] || !rec.IsOnline {
			continue
		}
		rec.IsOnline = false
		changes.Left = append(changes.Left, *rec)
	}
	sortRecords(changes.Left)

	return changes
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
