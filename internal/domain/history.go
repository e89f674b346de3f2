package domain

import "time"

// ChatMessage is a stored chat line
type ChatMessage struct {
	ID       int64     `json:"id"`
	Message  string    `json:"message"`
	FromRcon bool      `json:"from_rcon"`
	SentAt   time.Time `json:"sent_at"`
}

// PlayerSession is one stretch of a player being online
type PlayerSession struct {
	ID              int64      `json:"id"`
	PlayerID        string     `json:"player_id"`
	PlayerName      string     `json:"player_name"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds,omitempty"`
}

// CommandRecord is the audit entry for a user-issued command
type CommandRecord struct {
	ID          int64     `json:"id"`
	CommandID   string    `json:"command_id"`
	Raw         string    `json:"raw"`
	Verb        string    `json:"verb"`
	Lines       []string  `json:"lines"`
	Error       string    `json:"error,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// OnlineCount records how many players were online at a point in time
type OnlineCount struct {
	RecordedAt time.Time `json:"recorded_at"`
	Online     int       `json:"online"`
	Known      int       `json:"known"`
}
