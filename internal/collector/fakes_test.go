package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("connection reset by peer")

// fakeConn answers commands from per-command response queues. The last queued
// response repeats. failNext makes the next N sends fail.
type fakeConn struct {
	mu         sync.Mutex
	responses  map[string][]string
	failNext   int
	sends      []string
	reconnects int
	closes     int
	delay      time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{responses: make(map[string][]string)}
}

func (f *fakeConn) respond(command string, responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[command] = append(f.responses[command], responses...)
}

func (f *fakeConn) fail(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
}

func (f *fakeConn) Send(_ context.Context, command string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, command)
	if f.failNext > 0 {
		f.failNext--
		return "", errTransport
	}
	queue := f.responses[command]
	if len(queue) == 0 {
		return "", nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[command] = queue[1:]
	}
	return resp, nil
}

func (f *fakeConn) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeConn) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sends...)
}

func (f *fakeConn) reconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconnects
}

type recordingErrLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingErrLog) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingErrLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) listen(evt domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) ofType(eventType string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) commands() []domain.Command {
	var cmds []domain.Command
	for _, e := range r.ofType(domain.EventCommand) {
		cmds = append(cmds, e.Data.(domain.Command))
	}
	return cmds
}

// newQuietSession returns a started session without standing pollers
func newQuietSession(t *testing.T, conn *fakeConn) (*Session, *eventRecorder, *recordingErrLog) {
	t.Helper()
	errLog := &recordingErrLog{}
	s := NewSession(conn, Options{
		DisablePlayerPoller: true,
		DisableChatPoller:   true,
		ErrorLog:            errLog,
	})
	rec := &eventRecorder{}
	s.Subscribe(rec.listen)
	s.Start()
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s, rec, errLog
}

type fakeSaves struct {
	mu      sync.Mutex
	records []domain.SaveRecord
	err     error
}

func (f *fakeSaves) Read(context.Context) ([]domain.SaveRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SaveRecord(nil), f.records...), f.err
}

type fakeLookup struct {
	names map[string]string
	err   error
	calls [][]string
}

func (f *fakeLookup) Lookup(_ context.Context, ids []string) (map[string]string, error) {
	f.calls = append(f.calls, ids)
	return f.names, f.err
}

type fakeLists struct {
	admins    []string
	whitelist []string
	adminErr  error
}

func (f *fakeLists) Admins(context.Context) ([]string, error) {
	return f.admins, f.adminErr
}

func (f *fakeLists) Whitelist(context.Context) ([]string, error) {
	return f.whitelist, nil
}
