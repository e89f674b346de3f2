package collector

import (
	"fmt"
	"log"
	"sync"

	"github.com/ernie/arkwatch/internal/domain"
)

// Listener receives session events. Returned errors are logged, never propagated.
type Listener func(domain.Event) error

// ErrorLogger receives errors the session recovers from
type ErrorLogger interface {
	Errorf(format string, args ...any)
}

type stdErrorLogger struct{}

func (stdErrorLogger) Errorf(format string, args ...any) {
	log.Printf(format, args...)
}

type listenerEntry struct {
	id       uint64
	listener Listener
}

// Registry fans events out to listeners in registration order
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	entries []listenerEntry
	errLog  ErrorLogger
}

// NewRegistry creates an empty registry; a nil logger falls back to the standard logger
func NewRegistry(errLog ErrorLogger) *Registry {
	if errLog == nil {
		errLog = stdErrorLogger{}
	}
	return &Registry{errLog: errLog}
}

// Handle removes its listener when released
type Handle struct {
	registry *Registry
	id       uint64
	once     sync.Once
}

// Register adds a listener and returns its handle
func (r *Registry) Register(listener Listener) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.entries = append(r.entries, listenerEntry{id: r.nextID, listener: listener})
	return &Handle{registry: r, id: r.nextID}
}

// Release unregisters the listener; safe to call more than once
func (h *Handle) Release() {
	h.once.Do(func() {
		h.registry.remove(h.id)
	})
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// ReleaseAll drops every registration
func (r *Registry) ReleaseAll() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// Len returns the number of registered listeners
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Dispatch delivers the event to a copy of the current listener list
func (r *Registry) Dispatch(event domain.Event) {
	r.mu.Lock()
	entries := make([]listenerEntry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	for _, e := range entries {
		if err := r.deliver(e.listener, event); err != nil {
			r.errLog.Errorf("Error delivering %s event to listener %d: %v", event.Type, e.id, err)
		}
	}
}

func (r *Registry) deliver(listener Listener, event domain.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panic: %v", p)
		}
	}()
	return listener(event)
}
