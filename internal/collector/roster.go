package collector

import (
	"sort"
	"sync"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
)

type rosterOp struct {
	fn   func(players map[string]*domain.PlayerRecord)
	done chan struct{}
}

// Roster is the shared player table. A single goroutine owns the map; every read and
// mutation is a message to that goroutine, so snapshots never see a half-applied update.
type Roster struct {
	inbox    chan rosterOp
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewRoster starts the owner goroutine
func NewRoster() *Roster {
	r := &Roster{
		inbox:   make(chan rosterOp),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		now:     time.Now,
	}
	go r.run()
	return r
}

func (r *Roster) run() {
	defer close(r.stopped)
	players := make(map[string]*domain.PlayerRecord)

	for {
		select {
		case op := <-r.inbox:
			op.fn(players)
			close(op.done)
		case <-r.quit:
			return
		}
	}
}

// Do runs fn on the owner goroutine and waits for it. It returns ErrSessionClosed
// once the roster is stopped. fn must not retain the map or call back into the roster.
func (r *Roster) Do(fn func(players map[string]*domain.PlayerRecord)) error {
	op := rosterOp{fn: fn, done: make(chan struct{})}
	select {
	case r.inbox <- op:
	case <-r.quit:
		return ErrSessionClosed
	}
	<-op.done
	return nil
}

// Snapshot returns an immutable copy of the table
func (r *Roster) Snapshot() domain.Snapshot {
	var snap domain.Snapshot
	if err := r.Do(func(players map[string]*domain.PlayerRecord) {
		snap = domain.NewSnapshot(players, r.now().UTC())
	}); err != nil {
		return domain.Snapshot{TakenAt: r.now().UTC()}
	}
	return snap
}

// ApplyPresence runs the presence diff for one listplayers poll
func (r *Roster) ApplyPresence(entries []PresenceEntry) (PresenceChanges, error) {
	var changes PresenceChanges
	err := r.Do(func(players map[string]*domain.PlayerRecord) {
		changes = applyPresence(players, entries)
	})
	return changes, err
}

// Upsert creates the record for id if needed and applies fn to it
func (r *Roster) Upsert(id string, fn func(rec *domain.PlayerRecord)) error {
	return r.Do(func(players map[string]*domain.PlayerRecord) {
		rec, ok := players[id]
		if !ok {
			rec = &domain.PlayerRecord{ID: id}
			players[id] = rec
		}
		fn(rec)
	})
}

// Stop ends the owner goroutine; later calls are no-ops
func (r *Roster) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
	<-r.stopped
}

func sortRecords(records []domain.PlayerRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}
