package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ernie/arkwatch/internal/collector"
	"github.com/ernie/arkwatch/internal/domain"
)

const rconTimeout = 30 * time.Second

// RconRequest is the request body for RCON commands
type RconRequest struct {
	Command string `json:"command"`
}

// RconResponse is the response body for RCON commands
type RconResponse struct {
	ID     string                  `json:"id"`
	Lines  []string                `json:"lines"`
	Output string                  `json:"output"`
	Status domain.ConnectionStatus `json:"status"`
}

// MessageRequest is the request body for broadcast and server chat
type MessageRequest struct {
	Message string `json:"message"`
}

// handleRconCommand executes an arbitrary command (admin only)
func (r *Router) handleRconCommand(w http.ResponseWriter, req *http.Request) {
	var rconReq RconRequest
	if err := json.NewDecoder(req.Body).Decode(&rconReq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(rconReq.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), rconTimeout)
	defer cancel()

	cmd, err := r.session.Execute(ctx, rconReq.Command)
	if err != nil {
		writeRconError(w, rconReq.Command, err)
		return
	}

	lines := cmd.Lines
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, RconResponse{
		ID:     cmd.ID,
		Lines:  lines,
		Output: cmd.Output(),
		Status: cmd.Status,
	})
}

// handleBroadcast sends a server-wide broadcast (admin only)
func (r *Router) handleBroadcast(w http.ResponseWriter, req *http.Request) {
	r.handleMessage(w, req, domain.VerbBroadcast, r.session.Broadcast)
}

// handleServerChat sends a chat line as the server (admin only)
func (r *Router) handleServerChat(w http.ResponseWriter, req *http.Request) {
	r.handleMessage(w, req, domain.VerbServerChat, r.session.ServerChat)
}

func (r *Router) handleMessage(w http.ResponseWriter, req *http.Request, verb string, send func(context.Context, string) error) {
	var body MessageRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), rconTimeout)
	defer cancel()

	if err := send(ctx, body.Message); err != nil {
		writeRconError(w, verb, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// handleDestroyWildDinos wipes wild creatures (admin only)
func (r *Router) handleDestroyWildDinos(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), rconTimeout)
	defer cancel()

	if err := r.session.DestroyWildDinos(ctx); err != nil {
		writeRconError(w, domain.CmdDestroyWildDinos, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeRconError(w http.ResponseWriter, command string, err error) {
	log.Printf("Error executing rcon command %q: %v", command, err)
	switch {
	case errors.Is(err, collector.ErrSessionClosed):
		writeError(w, http.StatusServiceUnavailable, "rcon session is closed")
	case errors.Is(err, collector.ErrCommandFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "rcon command timed out")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
