package collector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
)

const (
	initialAttempts   = 3
	escalatedAttempts = 10
)

var (
	// ErrSessionClosed is returned for commands that cannot run because the session stopped
	ErrSessionClosed = errors.New("rcon session closed")
	// ErrCommandFailed wraps the last transport error once the retry budget is spent
	ErrCommandFailed = errors.New("rcon command failed")
)

// Connection is the transport the command pipeline drives
type Connection interface {
	Send(ctx context.Context, command string) (string, error)
	Reconnect(ctx context.Context) error
	Close() error
}

type request struct {
	cmd  *domain.Command
	done chan struct{}
}

// pipeline executes one command at a time, in submission order
type pipeline struct {
	conn       Connection
	queue      chan *request
	output     chan *request
	retryDelay time.Duration
	errLog     ErrorLogger

	// attempts is the retry budget. It starts at initialAttempts and is raised to
	// escalatedAttempts the first time a command exhausts it, for the rest of the
	// session. Never lowered again.
	attempts atomic.Int32
}

func newPipeline(conn Connection, output chan *request, queueSize int, retryDelay time.Duration, errLog ErrorLogger) *pipeline {
	p := &pipeline{
		conn:       conn,
		queue:      make(chan *request, queueSize),
		output:     output,
		retryDelay: retryDelay,
		errLog:     errLog,
	}
	p.attempts.Store(initialAttempts)
	return p
}

// run is the single worker. It owns the connection until ctx is cancelled,
// then fails whatever is still queued and closes the output queue.
func (p *pipeline) run(ctx context.Context) {
	defer close(p.output)

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case req := <-p.queue:
			p.execute(ctx, req.cmd)
			p.output <- req
		}
	}
}

func (p *pipeline) drain() {
	for {
		select {
		case req := <-p.queue:
			failRequest(req)
		default:
			return
		}
	}
}

func failRequest(req *request) {
	req.cmd.Err = ErrSessionClosed
	req.cmd.Status = domain.Disconnected
	close(req.done)
}

// execute sends the command with bounded retry and records the outcome on cmd
func (p *pipeline) execute(ctx context.Context, cmd *domain.Command) {
	budget := int(p.attempts.Load())

	var lastErr error
	for attempt := 1; ; attempt++ {
		response, err := p.conn.Send(ctx, cmd.Raw)
		if err == nil {
			cmd.Status = domain.Connected
			cmd.SetResult(response)
			cmd.CompletedAt = time.Now().UTC()
			return
		}
		lastErr = err

		if attempt >= budget {
			break
		}
		if !sleepCtx(ctx, p.retryDelay) {
			lastErr = errors.Join(lastErr, ctx.Err())
			break
		}
		if err := p.conn.Reconnect(ctx); err != nil {
			p.errLog.Errorf("Error reconnecting after failed %q (attempt %d/%d): %v", cmd.Verb, attempt, budget, err)
		}
	}

	if budget < escalatedAttempts && ctx.Err() == nil {
		p.attempts.Store(escalatedAttempts)
	}
	cmd.Status = domain.Disconnected
	cmd.Err = fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd.Verb, lastErr)
	cmd.CompletedAt = time.Now().UTC()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
