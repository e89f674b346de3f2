package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Status    domain.ConnectionStatus `json:"status"`
	Online    int                     `json:"online"`
	Known     int                     `json:"known"`
	WSClients int                     `json:"ws_clients"`
	CheckedAt time.Time               `json:"checked_at"`
}

// handleGetStatus returns the connection status and player counts
func (r *Router) handleGetStatus(w http.ResponseWriter, req *http.Request) {
	snap := r.session.Players()
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    r.session.Status(),
		Online:    snap.OnlineCount,
		Known:     len(snap.Players),
		WSClients: r.wsHub.ClientCount(),
		CheckedAt: time.Now().UTC(),
	})
}

// handleGetPlayers returns the current snapshot; ?online=true keeps only online players
func (r *Router) handleGetPlayers(w http.ResponseWriter, req *http.Request) {
	snap := r.session.Players()
	if req.URL.Query().Get("online") == "true" {
		snap.Players = snap.Online()
	}
	if snap.Players == nil {
		snap.Players = []domain.PlayerRecord{}
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetPlayer returns one player from the current snapshot
func (r *Router) handleGetPlayer(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	player, ok := r.session.Players().Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// handleGetChat returns recent chat history
func (r *Router) handleGetChat(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	messages, err := r.store.RecentChat(req.Context(), parseLimit(req, 50, 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleGetSessions returns recent join/leave sessions, optionally for ?player=
func (r *Router) handleGetSessions(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	player := req.URL.Query().Get("player")
	if player != "" && !validSteamID(player) {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	sessions, err := r.store.RecentSessions(req.Context(), player, parseLimit(req, 50, 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []domain.PlayerSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleGetOnlineHistory returns online counts over the last ?hours= (default 24)
func (r *Router) handleGetOnlineHistory(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	hours := parseHours(req, 24, 24*30)
	counts, err := r.store.OnlineCountsSince(req.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if counts == nil {
		counts = []domain.OnlineCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}

// handleGetCommands returns the command audit log (admin only)
func (r *Router) handleGetCommands(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not enabled")
		return
	}
	records, err := r.store.RecentCommands(req.Context(), parseLimit(req, 50, 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []domain.CommandRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleHealth is a liveness check
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
