package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
	_ "modernc.org/sqlite"
)

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
// The Z suffix ensures the Go sqlite driver parses it back as UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db *sql.DB

	mu         sync.Mutex
	lastOnline *domain.OnlineCount
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Chat methods ---

// RecordChat stores a chat line
func (s *Store) RecordChat(ctx context.Context, msg *domain.ChatMessage) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (message, from_rcon, sent_at) VALUES (?, ?, ?)
	`, msg.Message, msg.FromRcon, formatTimestamp(msg.SentAt))
	if err != nil {
		return err
	}
	msg.ID, _ = result.LastInsertId()
	return nil
}

// RecentChat returns the latest chat lines, oldest first
func (s *Store) RecentChat(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message, from_rcon, sent_at FROM chat_messages ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// --- Session methods ---

// OpenSession starts a session for a player unless one is already open
func (s *Store) OpenSession(ctx context.Context, playerID, playerName string, joinedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_sessions (player_id, player_name, joined_at)
		SELECT ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM player_sessions WHERE player_id = ? AND left_at IS NULL
		)
	`, playerID, playerName, formatTimestamp(joinedAt), playerID)
	return err
}

// EndSession closes the player's open session (no-op if none is open)
func (s *Store) EndSession(ctx context.Context, playerID string, leftAt time.Time) error {
	formattedLeftAt := formatTimestamp(leftAt)
	_, err := s.db.ExecContext(ctx, `
		UPDATE player_sessions SET
			left_at = ?,
			duration_seconds = CAST(ROUND((julianday(?) - julianday(joined_at)) * 86400) AS INTEGER)
		WHERE player_id = ? AND left_at IS NULL
	`, formattedLeftAt, formattedLeftAt, playerID)
	return err
}

// EndOpenSessions closes every open session. Used at startup and shutdown, when
// presence is unknown.
func (s *Store) EndOpenSessions(ctx context.Context, leftAt time.Time) (int64, error) {
	formattedLeftAt := formatTimestamp(leftAt)
	result, err := s.db.ExecContext(ctx, `
		UPDATE player_sessions SET
			left_at = ?,
			duration_seconds = CAST(ROUND((julianday(?) - julianday(joined_at)) * 86400) AS INTEGER)
		WHERE left_at IS NULL
	`, formattedLeftAt, formattedLeftAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RecentSessions returns the latest sessions, newest first. A non-empty
// playerID limits the result to that player.
func (s *Store) RecentSessions(ctx context.Context, playerID string, limit int) ([]domain.PlayerSession, error) {
	query := `
		SELECT id, player_id, player_name, joined_at, left_at, duration_seconds
		FROM player_sessions`
	args := []any{}
	if playerID != "" {
		query += ` WHERE player_id = ?`
		args = append(args, playerID)
	}
	query += ` ORDER BY joined_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.PlayerSession
	for rows.Next() {
		sess, err := scanPlayerSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// --- Command audit methods ---

// RecordCommand stores a completed user-issued command
func (s *Store) RecordCommand(ctx context.Context, cmd domain.Command) error {
	var errText sql.NullString
	if cmd.Err != nil {
		errText = sql.NullString{String: cmd.Err.Error(), Valid: true}
	}
	var completedAt sql.NullString
	if !cmd.CompletedAt.IsZero() {
		completedAt = sql.NullString{String: formatTimestamp(cmd.CompletedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (command_id, raw, verb, output, error, issued_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(command_id) DO NOTHING
	`, cmd.ID, cmd.Raw, cmd.Verb, strings.Join(cmd.Lines, "\n"), errText,
		formatTimestamp(cmd.IssuedAt), completedAt)
	return err
}

// RecentCommands returns the latest audited commands, newest first
func (s *Store) RecentCommands(ctx context.Context, limit int) ([]domain.CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command_id, raw, verb, output, error, issued_at, completed_at
		FROM commands ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.CommandRecord
	for rows.Next() {
		rec, err := scanCommandRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// --- Online count methods ---

// RecordOnlineCount stores the online count when it differs from the last one recorded
func (s *Store) RecordOnlineCount(ctx context.Context, count domain.OnlineCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastOnline != nil && s.lastOnline.Online == count.Online && s.lastOnline.Known == count.Known {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO online_counts (recorded_at, online, known) VALUES (?, ?, ?)
	`, formatTimestamp(count.RecordedAt), count.Online, count.Known); err != nil {
		return err
	}
	s.lastOnline = &count
	return nil
}

// OnlineCountsSince returns recorded counts at or after since, oldest first
func (s *Store) OnlineCountsSince(ctx context.Context, since time.Time) ([]domain.OnlineCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recorded_at, online, known FROM online_counts
		WHERE recorded_at >= ? ORDER BY recorded_at, id
	`, formatTimestamp(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.OnlineCount
	for rows.Next() {
		var c domain.OnlineCount
		if err := rows.Scan(&c.RecordedAt, &c.Online, &c.Known); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
