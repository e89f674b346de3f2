package domain

import "time"

// Event types published by the RCON session
const (
	EventCommand     = "command"
	EventStatus      = "status"
	EventPlayers     = "players"
	EventChat        = "chat"
	EventPlayerJoin  = "player_join"
	EventPlayerLeave = "player_leave"
)

// Event represents a session notification delivered to listeners
type Event struct {
	Type      string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// StatusEvent is sent when the connection status changes
type StatusEvent struct {
	Status   ConnectionStatus `json:"status"`
	Previous ConnectionStatus `json:"previous"`
}

// ChatEvent is sent for each chat line read from the server or sent by an admin
type ChatEvent struct {
	Message  string `json:"message"`
	FromRcon bool   `json:"from_rcon,omitempty"`
}

// PlayerJoinEvent is sent when a player appears in the live list
type PlayerJoinEvent struct {
	Player  PlayerRecord `json:"player"`
	Message string       `json:"message"`
}

// PlayerLeaveEvent is sent when a player disappears from the live list
type PlayerLeaveEvent struct {
	Player  PlayerRecord `json:"player"`
	Message string       `json:"message"`
}
