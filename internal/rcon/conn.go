// Package rcon owns the single remote-console connection to the game server.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	srcds "github.com/leighmacdonald/rcon/rcon"
)

// ErrClosed is returned by Send and Reconnect after Close
var ErrClosed = errors.New("rcon connection closed")

// Console is an open remote console
type Console interface {
	Exec(command string) (string, error)
	io.Closer
}

// DialFunc opens a console to addr
type DialFunc func(ctx context.Context, addr, password string, timeout time.Duration) (Console, error)

// Conn is one logical RCON connection. It does not retry; callers decide the policy.
// The mutex only guards the console handle; Conn is not meant for concurrent senders.
type Conn struct {
	addr     string
	password string
	timeout  time.Duration
	dial     DialFunc

	mu      sync.Mutex
	console Console
	closed  bool
}

// NewConn creates a connection that dials lazily on first Send
func NewConn(addr, password string, timeout time.Duration) *Conn {
	return NewConnWithDialer(addr, password, timeout, dialSource)
}

// NewConnWithDialer is NewConn with a custom dialer
func NewConnWithDialer(addr, password string, timeout time.Duration, dial DialFunc) *Conn {
	return &Conn{
		addr:     addr,
		password: password,
		timeout:  timeout,
		dial:     dial,
	}
}

func dialSource(ctx context.Context, addr, password string, timeout time.Duration) (Console, error) {
	console, err := srcds.Dial(ctx, addr, password, timeout)
	if err != nil {
		return nil, err
	}
	return console, nil
}

// Addr returns the remote address
func (c *Conn) Addr() string {
	return c.addr
}

// Send delivers a command and returns the raw response
func (c *Conn) Send(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}
	if c.console == nil {
		if err := c.connectLocked(ctx); err != nil {
			return "", err
		}
	}

	response, err := c.console.Exec(command)
	if err != nil {
		return "", fmt.Errorf("executing %q on %s: %w", command, c.addr, err)
	}
	return response, nil
}

// Reconnect tears down any open console and dials again
func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.releaseLocked()
	return c.connectLocked(ctx)
}

// Close releases the console; later calls are no-ops
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.releaseLocked()
}

func (c *Conn) connectLocked(ctx context.Context) error {
	console, err := c.dial(ctx, c.addr, c.password, c.timeout)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	c.console = console
	return nil
}

func (c *Conn) releaseLocked() error {
	if c.console == nil {
		return nil
	}
	err := c.console.Close()
	c.console = nil
	return err
}
