package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ernie/arkwatch/internal/auth"
	"github.com/ernie/arkwatch/internal/domain"
	"github.com/ernie/arkwatch/internal/sessionlog"
	"github.com/ernie/arkwatch/internal/storage"
)

// Session is the RCON session the API drives
type Session interface {
	Execute(ctx context.Context, raw string) (domain.Command, error)
	Broadcast(ctx context.Context, message string) error
	ServerChat(ctx context.Context, message string) error
	DestroyWildDinos(ctx context.Context) error
	Status() domain.ConnectionStatus
	Players() domain.Snapshot
}

// Router holds the HTTP routes and dependencies
type Router struct {
	mux       *http.ServeMux
	session   Session
	store     *storage.Store
	wsHub     *WebSocketHub
	logStream *LogStreamManager
	auth      *auth.Service
	staticDir string
}

// NewRouter creates a new HTTP router. store and logs may be nil, which disables
// the history and log streaming endpoints.
func NewRouter(session Session, store *storage.Store, logs *sessionlog.Logs, authService *auth.Service, staticDir string) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		session:   session,
		store:     store,
		wsHub:     NewWebSocketHub(),
		logStream: NewLogStreamManager(logs),
		auth:      authService,
		staticDir: staticDir,
	}

	r.mux.HandleFunc("GET /api/status", r.handleGetStatus)
	r.mux.HandleFunc("GET /api/players", r.handleGetPlayers)
	r.mux.HandleFunc("GET /api/players/{id}", r.handleGetPlayer)
	r.mux.HandleFunc("GET /api/chat", r.handleGetChat)
	r.mux.HandleFunc("GET /api/sessions", r.handleGetSessions)
	r.mux.HandleFunc("GET /api/history/online", r.handleGetOnlineHistory)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("GET /api/auth/check", r.handleAuthCheck)

	// RCON routes (admin only)
	r.mux.HandleFunc("POST /api/rcon", r.requireAdmin(r.handleRconCommand))
	r.mux.HandleFunc("POST /api/broadcast", r.requireAdmin(r.handleBroadcast))
	r.mux.HandleFunc("POST /api/serverchat", r.requireAdmin(r.handleServerChat))
	r.mux.HandleFunc("POST /api/dinos/destroy", r.requireAdmin(r.handleDestroyWildDinos))
	r.mux.HandleFunc("GET /api/commands", r.requireAdmin(r.handleGetCommands))

	// WebSocket endpoints
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)
	r.mux.HandleFunc("GET /ws/logs", r.handleLogWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	// Static files - only serve if staticDir is configured
	if staticDir != "" {
		r.mux.HandleFunc("GET /", r.handleStatic)
	}

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// Hub returns the WebSocket hub so it can be subscribed to the session
func (r *Router) Hub() *WebSocketHub {
	return r.wsHub
}

// StartWebSocketHub runs the hub until ctx ends
func (r *Router) StartWebSocketHub(ctx context.Context) {
	go r.wsHub.Run(ctx)
}

// handleStatic serves static files from the configured directory
// For SPA support, serves index.html for any path that doesn't match a file
func (r *Router) handleStatic(w http.ResponseWriter, req *http.Request) {
	path := filepath.Clean(req.URL.Path)
	if path == "/" {
		path = "/index.html"
	}

	fullPath := filepath.Join(r.staticDir, path)

	// Security: ensure the path is within staticDir
	absStaticDir, _ := filepath.Abs(r.staticDir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absStaticDir) {
		http.NotFound(w, req)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		// SPA fallback: serve index.html for unknown paths
		fullPath = filepath.Join(r.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			http.NotFound(w, req)
			return
		}
	}

	if contentType := getContentType(fullPath); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, req, fullPath)
}

// getContentType returns the content type for a file based on extension
func getContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".ico":
		return "image/x-icon"
	default:
		return ""
	}
}
