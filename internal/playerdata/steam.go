package playerdata

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/leighmacdonald/steamid/v2/steamid"
	"github.com/leighmacdonald/steamweb"
)

const (
	summaryBatchSize = 100
	defaultCacheTTL  = 60 * time.Second
)

type summaryFetcher func(steamid.Collection) ([]steamweb.PlayerSummary, error)

type cachedName struct {
	name      string
	fetchedAt time.Time
}

// SteamLookup resolves persona names through the Steam Web API, caching each id
type SteamLookup struct {
	enabled bool
	ttl     time.Duration
	fetch   summaryFetcher
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cachedName
}

// NewSteamLookup creates a lookup. An empty apiKey yields a lookup that resolves nothing.
func NewSteamLookup(apiKey string, ttl time.Duration) (*SteamLookup, error) {
	l := newSteamLookup(steamweb.PlayerSummaries, ttl)
	if apiKey == "" {
		return l, nil
	}
	if err := steamweb.SetKey(apiKey); err != nil {
		return nil, fmt.Errorf("setting steam api key: %w", err)
	}
	l.enabled = true
	return l, nil
}

func newSteamLookup(fetch summaryFetcher, ttl time.Duration) *SteamLookup {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &SteamLookup{
		ttl:   ttl,
		fetch: fetch,
		now:   time.Now,
		cache: make(map[string]cachedName),
	}
}

// Lookup returns persona names for the ids it could resolve. Ids that do not
// parse as 64-bit Steam ids are skipped. A failed batch returns the names
// resolved so far alongside the error.
func (l *SteamLookup) Lookup(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if !l.enabled {
		return names, nil
	}

	now := l.now()
	var pending steamid.Collection
	l.mu.Lock()
	for _, id := range ids {
		if c, ok := l.cache[id]; ok && now.Sub(c.fetchedAt) < l.ttl {
			names[id] = c.name
			continue
		}
		sid, err := steamid.SID64FromString(id)
		if err != nil || !sid.Valid() {
			continue
		}
		pending = append(pending, sid)
	}
	l.mu.Unlock()

	for start := 0; start < len(pending); start += summaryBatchSize {
		if err := ctx.Err(); err != nil {
			return names, err
		}
		end := start + summaryBatchSize
		if end > len(pending) {
			end = len(pending)
		}

		summaries, err := l.fetch(pending[start:end])
		if err != nil {
			return names, fmt.Errorf("fetching player summaries: %w", err)
		}

		l.mu.Lock()
		for _, sum := range summaries {
			sid, err := steamid.SID64FromString(sum.Steamid)
			if err != nil {
				log.Printf("Error parsing steam id %q from api: %v", sum.Steamid, err)
				continue
			}
			id := sid.String()
			names[id] = sum.PersonaName
			l.cache[id] = cachedName{name: sum.PersonaName, fetchedAt: now}
		}
		l.mu.Unlock()
	}
	return names, nil
}
