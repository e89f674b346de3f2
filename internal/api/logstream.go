package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ernie/arkwatch/internal/sessionlog"
	"github.com/gorilla/websocket"
)

const initialLogLines = 500

var errLogsDisabled = errors.New("session logs are not written to disk")

// LogMessage is the message format for log streaming
type LogMessage struct {
	Type    string   `json:"type"`              // "initial", "lines", "error"
	Channel string   `json:"channel,omitempty"` // session log channel
	Lines   []string `json:"lines,omitempty"`
	Message string   `json:"message,omitempty"`
}

// LogStreamClient represents a client subscribed to a session log channel
type LogStreamClient struct {
	conn    *websocket.Conn
	send    chan []byte
	channel sessionlog.Channel
	manager *LogStreamManager
}

type channelStream struct {
	cancel  context.CancelFunc
	clients map[*LogStreamClient]bool
}

// LogStreamManager tails session log files for WebSocket clients, one tailer per channel
type LogStreamManager struct {
	mu      sync.Mutex
	logs    *sessionlog.Logs
	streams map[sessionlog.Channel]*channelStream
}

// NewLogStreamManager creates a new log stream manager; nil logs disables streaming
func NewLogStreamManager(logs *sessionlog.Logs) *LogStreamManager {
	return &LogStreamManager{
		logs:    logs,
		streams: make(map[sessionlog.Channel]*channelStream),
	}
}

func (m *LogStreamManager) path(ch sessionlog.Channel) string {
	if m.logs == nil {
		return ""
	}
	return m.logs.Path(ch)
}

// Subscribe adds a client to a channel and returns the channel's recent lines
func (m *LogStreamManager) Subscribe(client *LogStreamClient, ch sessionlog.Channel) ([]string, error) {
	path := m.path(ch)
	if path == "" {
		return nil, errLogsDisabled
	}
	tailer := sessionlog.NewTailer(path)

	lines, err := tailer.Last(initialLogLines)
	if err != nil {
		log.Printf("Error reading initial %s log lines: %v", ch, err)
		lines = []string{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	client.channel = ch
	stream := m.streams[ch]
	if stream == nil {
		ctx, cancel := context.WithCancel(context.Background())
		stream = &channelStream{cancel: cancel, clients: make(map[*LogStreamClient]bool)}
		m.streams[ch] = stream
		go m.follow(ctx, ch, tailer)
	}
	stream.clients[client] = true

	log.Printf("Log stream client subscribed to %s (%d total)", ch, len(stream.clients))
	return lines, nil
}

// Unsubscribe removes a client; the channel's tailer stops with its last client
func (m *LogStreamManager) Unsubscribe(client *LogStreamClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stream, ok := m.streams[client.channel]
	if !ok {
		return
	}
	delete(stream.clients, client)
	if len(stream.clients) == 0 {
		stream.cancel()
		delete(m.streams, client.channel)
		log.Printf("Stopped %s log tailer (no subscribers)", client.channel)
	}
}

// follow forwards new lines to the channel's clients until ctx ends
func (m *LogStreamManager) follow(ctx context.Context, ch sessionlog.Channel, tailer *sessionlog.Tailer) {
	err := tailer.Follow(ctx, func(line string) {
		data, _ := json.Marshal(LogMessage{Type: "lines", Channel: string(ch), Lines: []string{line}})

		m.mu.Lock()
		defer m.mu.Unlock()
		stream := m.streams[ch]
		if stream == nil {
			return
		}
		for client := range stream.clients {
			select {
			case client.send <- data:
			default:
				// Client buffer full, drop line
			}
		}
	})
	if err != nil {
		log.Printf("Log tailer error for %s: %v", ch, err)
	}
}

// handleLogWebSocket streams a session log channel (admin only)
func (r *Router) handleLogWebSocket(w http.ResponseWriter, req *http.Request) {
	// Auth comes from a query parameter; browsers can't send headers on upgrade
	token := req.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token required")
		return
	}
	claims, err := r.auth.ValidateToken(token)
	if err != nil || claims == nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if !claims.IsAdmin {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}

	ch := sessionlog.Channel(req.URL.Query().Get("channel"))
	if ch == "" {
		ch = sessionlog.ChannelAll
	}
	if !validChannel(ch) {
		writeError(w, http.StatusBadRequest, "invalid channel")
		return
	}
	if r.logStream.path(ch) == "" {
		writeError(w, http.StatusNotFound, errLogsDisabled.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Printf("Log WebSocket upgrade error: %v", err)
		return
	}

	client := &LogStreamClient{
		conn:    conn,
		send:    make(chan []byte, 256),
		manager: r.logStream,
	}

	initialLines, err := r.logStream.Subscribe(client, ch)
	if err != nil {
		log.Printf("Log subscription error: %v", err)
		data, _ := json.Marshal(LogMessage{Type: "error", Message: "failed to subscribe to logs"})
		conn.WriteMessage(websocket.TextMessage, data)
		conn.Close()
		return
	}

	data, _ := json.Marshal(LogMessage{Type: "initial", Channel: string(ch), Lines: initialLines})
	conn.WriteMessage(websocket.TextMessage, data)

	go client.writePump()
	go client.readPump()
}

func validChannel(ch sessionlog.Channel) bool {
	for _, c := range sessionlog.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// readPump reads messages from the WebSocket (handles close)
func (c *LogStreamClient) readPump() {
	defer func() {
		c.manager.Unsubscribe(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("Log WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump sends messages to the WebSocket
func (c *LogStreamClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
