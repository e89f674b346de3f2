package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Well-known RCON verbs
const (
	VerbListPlayers     = "listplayers"
	VerbGetChat         = "getchat"
	VerbBroadcast       = "broadcast"
	VerbServerChat      = "serverchat"
	CmdDestroyWildDinos = "DestroyWildDinos"
	NoResponseToken     = "NO_RESPONSE"
	noResponseSentinel  = "Server received, But no response!!"
)

// ConnectionStatus is the state of the RCON session as of the last command attempt
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connected
)

func (s ConnectionStatus) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// MarshalText lets the status appear as a string in JSON payloads
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the form written by MarshalText
func (s *ConnectionStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connected":
		*s = Connected
	case "disconnected":
		*s = Disconnected
	default:
		return fmt.Errorf("unknown connection status %q", text)
	}
	return nil
}

// Command is a single RCON request and, once executed, its result
type Command struct {
	ID              string           `json:"id"`
	Raw             string           `json:"raw"`
	Verb            string           `json:"verb"`
	Args            string           `json:"args,omitempty"`
	SuppressLogging bool             `json:"-"`
	SuppressNotify  bool             `json:"suppress_notify"`
	Lines           []string         `json:"lines"`
	Status          ConnectionStatus `json:"status"`
	Err             error            `json:"-"`
	IssuedAt        time.Time        `json:"issued_at"`
	CompletedAt     time.Time        `json:"completed_at"`

	linesSet bool
}

// ParseCommand splits raw text into verb and argument remainder at the first whitespace
func ParseCommand(raw string) (verb, args string) {
	raw = strings.TrimSpace(raw)
	idx := strings.IndexAny(raw, " \t")
	if idx == -1 {
		return raw, ""
	}
	return raw[:idx], strings.TrimSpace(raw[idx+1:])
}

// IsVerb reports whether the command's verb matches name, ignoring case
func (c *Command) IsVerb(name string) bool {
	return strings.EqualFold(c.Verb, name)
}

// SetResult records the raw response. It returns false if a result was already recorded.
func (c *Command) SetResult(response string) bool {
	if c.linesSet {
		return false
	}
	c.linesSet = true
	c.Lines = SplitResponse(response)
	return true
}

// HasResult reports whether SetResult has been called
func (c *Command) HasResult() bool {
	return c.linesSet
}

// SplitResponse turns a raw response into non-empty trimmed lines, normalizing the
// "received but no response" sentinel to NoResponseToken
func SplitResponse(response string) []string {
	var lines []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 1 && strings.HasPrefix(lines[0], noResponseSentinel) {
		lines[0] = NoResponseToken
	}
	return lines
}

// Output returns the result lines joined by newlines
func (c *Command) Output() string {
	return strings.Join(c.Lines, "\n")
}

// MarshalJSON adds the failure, if any, as an "error" string
func (c Command) MarshalJSON() ([]byte, error) {
	type plain Command
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(c)}
	if c.Err != nil {
		out.Error = c.Err.Error()
	}
	return json.Marshal(out)
}
