// Package sessionlog writes session traffic to per-channel log files.
package sessionlog

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ernie/arkwatch/internal/domain"
)

// Channel names one of the session log files
type Channel string

const (
	ChannelAll     Channel = "all"
	ChannelChat    Channel = "chat"
	ChannelPlayers Channel = "players"
	ChannelDebug   Channel = "debug"
)

// Channels lists every channel in a stable order
var Channels = []Channel{ChannelAll, ChannelChat, ChannelPlayers, ChannelDebug}

// Logs holds one logger per channel. With no directory every channel discards.
type Logs struct {
	dir     string
	files   []*os.File
	loggers map[Channel]*log.Logger
}

// Open creates (or appends to) <dir>/<channel>.log for every channel
func Open(dir string) (*Logs, error) {
	l := &Logs{dir: dir, loggers: make(map[Channel]*log.Logger, len(Channels))}
	if dir == "" {
		for _, ch := range Channels {
			l.loggers[ch] = log.New(io.Discard, "", 0)
		}
		return l, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	for _, ch := range Channels {
		f, err := os.OpenFile(l.pathFor(ch), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("opening %s log: %w", ch, err)
		}
		l.files = append(l.files, f)
		l.loggers[ch] = log.New(f, "", log.LstdFlags)
	}
	return l, nil
}

func (l *Logs) pathFor(ch Channel) string {
	return filepath.Join(l.dir, string(ch)+".log")
}

// Path returns the file backing ch, or "" when logging to files is off
func (l *Logs) Path(ch Channel) string {
	if l.dir == "" {
		return ""
	}
	if _, ok := l.loggers[ch]; !ok {
		return ""
	}
	return l.pathFor(ch)
}

// Logger returns the logger for ch
func (l *Logs) Logger(ch Channel) *log.Logger {
	return l.loggers[ch]
}

// Errorf records a recovered session error on the debug channel
func (l *Logs) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.loggers[ChannelDebug].Print(msg)
	l.loggers[ChannelAll].Print("[error] " + msg)
}

// Record writes a session event to the channels it belongs to
func (l *Logs) Record(evt domain.Event) error {
	all := l.loggers[ChannelAll]

	switch data := evt.Data.(type) {
	case domain.Command:
		if data.SuppressLogging && data.Err == nil && len(data.Lines) == 0 {
			return nil
		}
		if data.Err != nil {
			all.Printf("[rcon] %s failed: %v", data.Raw, data.Err)
			return nil
		}
		if data.SuppressLogging {
			// polls only show up when they produced something
			for _, line := range data.Lines {
				all.Printf("[%s] %s", data.Verb, line)
			}
			return nil
		}
		all.Printf("[rcon] > %s", data.Raw)
		for _, line := range data.Lines {
			all.Printf("[rcon]   %s", line)
		}
	case domain.ChatEvent:
		if data.FromRcon {
			l.loggers[ChannelChat].Printf("[server] %s", data.Message)
		} else {
			l.loggers[ChannelChat].Print(data.Message)
		}
	case domain.PlayerJoinEvent:
		l.loggers[ChannelPlayers].Printf("%s (%s)", data.Message, data.Player.ID)
	case domain.PlayerLeaveEvent:
		l.loggers[ChannelPlayers].Printf("%s (%s)", data.Message, data.Player.ID)
	case domain.StatusEvent:
		msg := fmt.Sprintf("[status] %s (was %s)", data.Status, data.Previous)
		all.Print(msg)
		l.loggers[ChannelDebug].Print(msg)
	case domain.Snapshot:
		l.loggers[ChannelDebug].Printf("[players] %d online, %d known: %s",
			data.OnlineCount, len(data.Players), onlineNames(data))
	default:
		return fmt.Errorf("unexpected %s event payload %T", evt.Type, evt.Data)
	}
	return nil
}

func onlineNames(snap domain.Snapshot) string {
	var names []string
	for _, p := range snap.Online() {
		names = append(names, p.Name())
	}
	return strings.Join(names, ", ")
}

// Close closes every log file
func (l *Logs) Close() error {
	var errs []error
	for _, f := range l.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.files = nil
	return errors.Join(errs...)
}
