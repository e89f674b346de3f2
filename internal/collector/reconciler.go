package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
)

// SaveReader reads the on-disk player-save corpus
type SaveReader interface {
	Read(ctx context.Context) ([]domain.SaveRecord, error)
}

// IdentityLookup resolves platform display names for a batch of ids
type IdentityLookup interface {
	Lookup(ctx context.Context, ids []string) (map[string]string, error)
}

// AccessLists provides the server profile's admin and whitelist ids
type AccessLists interface {
	Admins(ctx context.Context) ([]string, error)
	Whitelist(ctx context.Context) ([]string, error)
}

// Publisher receives the snapshot produced by each reconciliation
type Publisher interface {
	Dispatch(domain.Event)
}

// Reconciler merges the live roster with disk and platform data on its own period
type Reconciler struct {
	roster    *Roster
	saves     SaveReader
	lookup    IdentityLookup
	lists     AccessLists
	publisher Publisher
	interval  time.Duration
	errLog    ErrorLogger
	now       func() time.Time
}

// NewReconciler creates a reconciler for the session's roster. lookup and lists may be nil.
func NewReconciler(s *Session, saves SaveReader, lookup IdentityLookup, lists AccessLists, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		roster:    s.roster,
		saves:     saves,
		lookup:    lookup,
		lists:     lists,
		publisher: s.listeners,
		interval:  interval,
		errLog:    s.opts.ErrorLog,
		now:       time.Now,
	}
}

// Run reconciles immediately, then again interval after each run completes, until ctx ends
func (r *Reconciler) Run(ctx context.Context) {
	for {
		if err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
			r.errLog.Errorf("Error reconciling players: %v", err)
		}
		if !sleepCtx(ctx, r.interval) {
			return
		}
	}
}

// Reconcile performs one run. It returns ctx.Err() when cancelled at a checkpoint;
// records committed before that point stay committed, but no snapshot is published.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	records, err := r.saves.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading player saves: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	byKey := make(map[string]domain.SaveRecord, len(records))
	var ids []string
	for _, rec := range records {
		byKey[rec.Key()] = rec
		if rec.ID != "" && !rec.Corrupt {
			ids = append(ids, rec.ID)
		}
	}

	// platform fields for records we already track
	if err := r.roster.Do(func(players map[string]*domain.PlayerRecord) {
		for key, p := range players {
			if rec, ok := byKey[key]; ok {
				p.FileName = rec.FileName
				p.LastActive = rec.LastActive
			}
		}
	}); err != nil {
		return err
	}

	names := r.lookupNames(ctx, ids)
	syncedAt := r.now().UTC()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := rec
		if err := r.roster.Upsert(rec.Key(), func(p *domain.PlayerRecord) {
			p.FileName = rec.FileName
			p.LastActive = rec.LastActive
			if rec.ID == "" || rec.Corrupt {
				p.IsValid = false
				return
			}
			p.IsValid = true
			if rec.DisplayName != "" {
				p.DisplayName = rec.DisplayName
			}
			if name, ok := names[rec.ID]; ok {
				p.PlatformName = name
				p.LastPlatformSyncTime = syncedAt
			}
		}); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.applyAccessLists(ctx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.roster.Do(func(players map[string]*domain.PlayerRecord) {
		for key := range players {
			if _, ok := byKey[key]; !ok {
				delete(players, key)
			}
		}
	}); err != nil {
		return err
	}

	r.publisher.Dispatch(domain.Event{
		Type:      domain.EventPlayers,
		Timestamp: r.now().UTC(),
		Data:      r.roster.Snapshot(),
	})
	return nil
}

func (r *Reconciler) lookupNames(ctx context.Context, ids []string) map[string]string {
	if r.lookup == nil || len(ids) == 0 {
		return nil
	}
	names, err := r.lookup.Lookup(ctx, ids)
	if err != nil {
		r.errLog.Errorf("Error looking up %d player profiles: %v", len(ids), err)
	}
	return names
}

// applyAccessLists sets admin/whitelist flags. A list that cannot be read leaves its flag untouched.
func (r *Reconciler) applyAccessLists(ctx context.Context) error {
	if r.lists == nil {
		return nil
	}

	admins, adminErr := r.lists.Admins(ctx)
	if adminErr != nil {
		r.errLog.Errorf("Error reading admin list: %v", adminErr)
	}
	whitelist, wlErr := r.lists.Whitelist(ctx)
	if wlErr != nil {
		r.errLog.Errorf("Error reading whitelist: %v", wlErr)
	}

	adminSet := toSet(admins)
	whitelistSet := toSet(whitelist)
	return r.roster.Do(func(players map[string]*domain.PlayerRecord) {
		for id, p := range players {
			if adminErr == nil {
				p.IsAdmin = adminSet[id]
			}
			if wlErr == nil {
				p.IsWhitelisted = whitelistSet[id]
			}
		}
	})
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
