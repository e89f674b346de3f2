package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
)

const writeTimeout = 5 * time.Second

// Listener returns a session listener that records history: chat lines,
// join/leave sessions, user-issued commands and online counts.
func (s *Store) Listener() func(domain.Event) error {
	return func(evt domain.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		at := evt.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}

		switch data := evt.Data.(type) {
		case domain.ChatEvent:
			if err := s.RecordChat(ctx, &domain.ChatMessage{Message: data.Message, FromRcon: data.FromRcon, SentAt: at}); err != nil {
				return fmt.Errorf("recording chat: %w", err)
			}
		case domain.PlayerJoinEvent:
			if err := s.OpenSession(ctx, data.Player.ID, data.Player.Name(), at); err != nil {
				return fmt.Errorf("opening session for %s: %w", data.Player.ID, err)
			}
		case domain.PlayerLeaveEvent:
			if err := s.EndSession(ctx, data.Player.ID, at); err != nil {
				return fmt.Errorf("ending session for %s: %w", data.Player.ID, err)
			}
		case domain.Command:
			if data.SuppressLogging {
				return nil
			}
			if err := s.RecordCommand(ctx, data); err != nil {
				return fmt.Errorf("recording command %s: %w", data.ID, err)
			}
		case domain.Snapshot:
			count := domain.OnlineCount{RecordedAt: at, Online: data.OnlineCount, Known: len(data.Players)}
			if err := s.RecordOnlineCount(ctx, count); err != nil {
				return fmt.Errorf("recording online count: %w", err)
			}
		}
		return nil
	}
}
