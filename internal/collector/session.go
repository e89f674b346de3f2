package collector

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
	"github.com/google/uuid"
)

// Options tunes a Session
type Options struct {
	RetryDelay          time.Duration
	PlayerListInterval  time.Duration
	ChatInterval        time.Duration
	DisablePlayerPoller bool
	DisableChatPoller   bool
	QueueSize           int
	ErrorLog            ErrorLogger
}

func (o *Options) applyDefaults() {
	if o.PlayerListInterval == 0 {
		o.PlayerListInterval = 5 * time.Second
	}
	if o.ChatInterval == 0 {
		o.ChatInterval = time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.ErrorLog == nil {
		o.ErrorLog = stdErrorLogger{}
	}
}

// Session is a persistent RCON session: a serial command pipeline, an output
// pipeline, standing presence/chat pollers and an optional presence reconciler
type Session struct {
	conn      Connection
	opts      Options
	listeners *Registry
	roster    *Roster
	pipeline  *pipeline
	output    *outputPipeline
	status    atomic.Int32

	runCtx    context.Context
	runCancel context.CancelFunc
	reconCtx  context.Context
	reconStop context.CancelFunc

	submitMu sync.RWMutex
	closed   bool

	workers   sync.WaitGroup
	pollers   sync.WaitGroup
	reconWG   sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewSession wires a session around conn. Nothing runs until Start.
func NewSession(conn Connection, opts Options) *Session {
	opts.applyDefaults()

	s := &Session{
		conn:      conn,
		opts:      opts,
		listeners: NewRegistry(opts.ErrorLog),
		roster:    NewRoster(),
	}
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.reconCtx, s.reconStop = context.WithCancel(context.Background())

	outQueue := make(chan *request, opts.QueueSize)
	s.pipeline = newPipeline(conn, outQueue, opts.QueueSize, opts.RetryDelay, opts.ErrorLog)
	s.output = &outputPipeline{
		queue:     outQueue,
		roster:    s.roster,
		listeners: s.listeners,
		errLog:    opts.ErrorLog,
		status:    &s.status,
	}
	return s
}

// Start launches the command worker, the output consumer and the standing pollers
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.workers.Add(2)
		go func() {
			defer s.workers.Done()
			s.pipeline.run(s.runCtx)
		}()
		go func() {
			defer s.workers.Done()
			s.output.run()
		}()

		if !s.opts.DisablePlayerPoller {
			s.pollers.Add(1)
			go s.pollLoop(domain.VerbListPlayers, s.opts.PlayerListInterval)
		}
		if !s.opts.DisableChatPoller {
			s.pollers.Add(1)
			go s.pollLoop(domain.VerbGetChat, s.opts.ChatInterval)
		}
	})
}

// RunReconciler runs r on the session's reconciliation context until Close
func (s *Session) RunReconciler(r *Reconciler) {
	s.reconWG.Add(1)
	go func() {
		defer s.reconWG.Done()
		r.Run(s.reconCtx)
	}()
}

// pollLoop issues verb, waits for its result to be fully processed, then sleeps
func (s *Session) pollLoop(verb string, interval time.Duration) {
	defer s.pollers.Done()

	for {
		if _, err := s.submit(s.runCtx, verb, true); errors.Is(err, ErrSessionClosed) {
			return
		}
		if !sleepCtx(s.runCtx, interval) {
			return
		}
	}
}

// Execute runs a user-issued command and returns it once listeners have seen it
func (s *Session) Execute(ctx context.Context, raw string) (domain.Command, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.Command{}, errors.New("command is required")
	}
	cmd, err := s.submit(ctx, raw, false)
	if cmd == nil {
		return domain.Command{}, err
	}
	return copyCommand(cmd), err
}

// Broadcast sends a server-wide broadcast message
func (s *Session) Broadcast(ctx context.Context, message string) error {
	_, err := s.Execute(ctx, domain.VerbBroadcast+" "+message)
	return err
}

// ServerChat sends a chat message as the server
func (s *Session) ServerChat(ctx context.Context, message string) error {
	_, err := s.Execute(ctx, domain.VerbServerChat+" "+message)
	return err
}

// DestroyWildDinos wipes wild creatures so they respawn
func (s *Session) DestroyWildDinos(ctx context.Context) error {
	_, err := s.Execute(ctx, domain.CmdDestroyWildDinos)
	return err
}

func (s *Session) submit(ctx context.Context, raw string, internal bool) (*domain.Command, error) {
	verb, args := domain.ParseCommand(raw)
	req := &request{
		cmd: &domain.Command{
			ID:              uuid.NewString(),
			Raw:             strings.TrimSpace(raw),
			Verb:            verb,
			Args:            args,
			SuppressLogging: internal,
			SuppressNotify:  internal,
			IssuedAt:        time.Now().UTC(),
		},
		done: make(chan struct{}),
	}

	s.submitMu.RLock()
	if s.closed {
		s.submitMu.RUnlock()
		return nil, ErrSessionClosed
	}
	select {
	case s.pipeline.queue <- req:
	case <-s.runCtx.Done():
		s.submitMu.RUnlock()
		return nil, ErrSessionClosed
	case <-ctx.Done():
		s.submitMu.RUnlock()
		return nil, ctx.Err()
	}
	s.submitMu.RUnlock()

	select {
	case <-req.done:
		return req.cmd, req.cmd.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe registers a listener for session events
func (s *Session) Subscribe(l Listener) *Handle {
	return s.listeners.Register(l)
}

// Listeners exposes the registry so other producers can publish through it
func (s *Session) Listeners() *Registry {
	return s.listeners
}

// Roster returns the shared player table
func (s *Session) Roster() *Roster {
	return s.roster
}

// Status returns the connection status as of the last processed command
func (s *Session) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus(s.status.Load())
}

// Players returns the current player snapshot
func (s *Session) Players() domain.Snapshot {
	return s.roster.Snapshot()
}

// RetryBudget returns the number of attempts the next command will get
func (s *Session) RetryBudget() int {
	return int(s.pipeline.attempts.Load())
}

// Close stops the session in order: reconciler, pollers and executors, listeners,
// connection. Only the first call does the work; every call returns its result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.reconStop()
		s.reconWG.Wait()

		s.runCancel()
		s.submitMu.Lock()
		s.closed = true
		s.submitMu.Unlock()

		s.pollers.Wait()
		s.startOnce.Do(func() {
			// never started: nothing consumes the queues
			close(s.output.queue)
		})
		s.workers.Wait()
		s.pipeline.drain()

		s.listeners.ReleaseAll()
		s.roster.Stop()

		if err := s.conn.Close(); err != nil {
			s.closeErr = err
			log.Printf("Error closing rcon connection: %v", err)
		}
	})
	return s.closeErr
}
