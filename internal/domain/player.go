package domain

import (
	"sort"
	"time"
)

// PlayerRecord is everything known about one player identity
type PlayerRecord struct {
	ID                   string    `json:"id"`
	DisplayName          string    `json:"display_name"`
	PlatformName         string    `json:"platform_name,omitempty"`
	FileName             string    `json:"file_name,omitempty"`
	IsOnline             bool      `json:"is_online"`
	IsValid              bool      `json:"is_valid"`
	IsAdmin              bool      `json:"is_admin"`
	IsWhitelisted        bool      `json:"is_whitelisted"`
	LastActive           time.Time `json:"last_active,omitempty"`
	LastPlatformSyncTime time.Time `json:"last_platform_sync_time,omitempty"`
}

// Name returns the best available name for messages
func (p PlayerRecord) Name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.PlatformName != "":
		return p.PlatformName
	default:
		return p.ID
	}
}

// Snapshot is an immutable point-in-time copy of the player table
type Snapshot struct {
	Players     []PlayerRecord `json:"players"`
	OnlineCount int            `json:"online_count"`
	TakenAt     time.Time      `json:"taken_at"`
}

// NewSnapshot copies records into a snapshot sorted by ID
func NewSnapshot(records map[string]*PlayerRecord, now time.Time) Snapshot {
	snap := Snapshot{
		Players: make([]PlayerRecord, 0, len(records)),
		TakenAt: now,
	}
	for _, rec := range records {
		snap.Players = append(snap.Players, *rec)
		if rec.IsOnline {
			snap.OnlineCount++
		}
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		return snap.Players[i].ID < snap.Players[j].ID
	})
	return snap
}

// Find returns the record with the given id
func (s Snapshot) Find(id string) (PlayerRecord, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerRecord{}, false
}

// Online returns only the online records
func (s Snapshot) Online() []PlayerRecord {
	var online []PlayerRecord
	for _, p := range s.Players {
		if p.IsOnline {
			online = append(online, p)
		}
	}
	return online
}

// SaveRecord is one entry of the on-disk player-save corpus
type SaveRecord struct {
	ID          string    `json:"id,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	FileName    string    `json:"file_name"`
	LastActive  time.Time `json:"last_active"`
	Corrupt     bool      `json:"corrupt,omitempty"`
}

// Key is the roster key for the record: its id, or the file name when no id could be derived
func (r SaveRecord) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.FileName
}
