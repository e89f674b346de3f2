package storage

import (
	"database/sql"
	"strings"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
)

// Null scanner helpers - reduce repetitive nil-checking code

func scanNullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func scanNullTimeValue(nt sql.NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}
	return time.Time{}
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanChatMessage(s scanner) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	if err := s.Scan(&msg.ID, &msg.Message, &msg.FromRcon, &msg.SentAt); err != nil {
		return nil, err
	}
	return &msg, nil
}

func scanPlayerSession(s scanner) (*domain.PlayerSession, error) {
	var sess domain.PlayerSession
	var leftAt sql.NullTime
	var duration sql.NullInt64
	err := s.Scan(&sess.ID, &sess.PlayerID, &sess.PlayerName, &sess.JoinedAt, &leftAt, &duration)
	if err != nil {
		return nil, err
	}
	sess.LeftAt = scanNullTime(leftAt)
	if duration.Valid {
		sess.DurationSeconds = duration.Int64
	}
	return &sess, nil
}

func scanCommandRecord(s scanner) (*domain.CommandRecord, error) {
	var rec domain.CommandRecord
	var output string
	var errText sql.NullString
	var completedAt sql.NullTime
	err := s.Scan(&rec.ID, &rec.CommandID, &rec.Raw, &rec.Verb, &output, &errText, &rec.IssuedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if output != "" {
		rec.Lines = strings.Split(output, "\n")
	}
	rec.Error = scanNullStringValue(errText)
	rec.CompletedAt = scanNullTimeValue(completedAt)
	return &rec, nil
}
