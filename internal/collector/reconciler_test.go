package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconcileSession(t *testing.T) (*Session, *eventRecorder, *recordingErrLog) {
	t.Helper()
	errLog := &recordingErrLog{}
	s := NewSession(newFakeConn(), Options{ErrorLog: errLog})
	rec := &eventRecorder{}
	s.Subscribe(rec.listen)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s, rec, errLog
}

func TestReconcileDiskIsAuthoritative(t *testing.T) {
	t.Parallel()

	s, rec, _ := newReconcileSession(t)
	_, err := s.Roster().ApplyPresence([]PresenceEntry{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}})
	require.NoError(t, err)

	lastActive := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	saves := &fakeSaves{records: []domain.SaveRecord{
		{ID: "1", DisplayName: "Alpha", FileName: "1.arkprofile", LastActive: lastActive},
		{ID: "3", DisplayName: "Gamma", FileName: "3.arkprofile"},
	}}
	r := NewReconciler(s, saves, nil, nil, 0)

	require.NoError(t, r.Reconcile(context.Background()))

	snap := s.Players()
	require.Len(t, snap.Players, 2)

	a, ok := snap.Find("1")
	require.True(t, ok)
	assert.True(t, a.IsValid)
	assert.True(t, a.IsOnline, "reconcile leaves presence alone")
	assert.Equal(t, "Alpha", a.DisplayName)
	assert.Equal(t, "1.arkprofile", a.FileName)
	assert.Equal(t, lastActive, a.LastActive)

	_, ok = snap.Find("2")
	assert.False(t, ok, "online player without a save file is removed")

	c, ok := snap.Find("3")
	require.True(t, ok)
	assert.False(t, c.IsOnline)
	assert.True(t, c.IsValid)

	require.Len(t, rec.ofType(domain.EventPlayers), 1)
}

func TestReconcileCorruptFileKeyedByFileName(t *testing.T) {
	t.Parallel()

	s, _, _ := newReconcileSession(t)
	saves := &fakeSaves{records: []domain.SaveRecord{
		{FileName: "broken.arkprofile", Corrupt: true},
	}}
	lookup := &fakeLookup{names: map[string]string{}}
	r := NewReconciler(s, saves, lookup, nil, time.Minute)

	require.NoError(t, r.Reconcile(context.Background()))

	p, ok := s.Players().Find("broken.arkprofile")
	require.True(t, ok)
	assert.False(t, p.IsValid)
	assert.Empty(t, lookup.calls, "no valid ids to look up")
}

func TestReconcilePlatformNamesAndAccessLists(t *testing.T) {
	t.Parallel()

	s, _, _ := newReconcileSession(t)
	saves := &fakeSaves{records: []domain.SaveRecord{
		{ID: "1", FileName: "1.arkprofile"},
		{ID: "2", FileName: "2.arkprofile"},
	}}
	lookup := &fakeLookup{names: map[string]string{"1": "SteamOne"}}
	lists := &fakeLists{admins: []string{"1"}, whitelist: []string{"2", "99"}}
	r := NewReconciler(s, saves, lookup, lists, time.Minute)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	require.NoError(t, r.Reconcile(context.Background()))
	require.Len(t, lookup.calls, 1)
	assert.ElementsMatch(t, []string{"1", "2"}, lookup.calls[0])

	snap := s.Players()
	one, _ := snap.Find("1")
	assert.Equal(t, "SteamOne", one.PlatformName)
	assert.Equal(t, fixed, one.LastPlatformSyncTime)
	assert.Equal(t, "SteamOne", one.Name())
	assert.True(t, one.IsAdmin)
	assert.False(t, one.IsWhitelisted)

	two, _ := snap.Find("2")
	assert.Empty(t, two.PlatformName)
	assert.True(t, two.LastPlatformSyncTime.IsZero())
	assert.False(t, two.IsAdmin)
	assert.True(t, two.IsWhitelisted)

	_, ok := snap.Find("99")
	assert.False(t, ok, "list entries never create records")
}

func TestReconcileUnreadableListKeepsFlags(t *testing.T) {
	t.Parallel()

	s, _, errLog := newReconcileSession(t)
	require.NoError(t, s.Roster().Upsert("1", func(p *domain.PlayerRecord) { p.IsAdmin = true }))

	saves := &fakeSaves{records: []domain.SaveRecord{{ID: "1", FileName: "1.arkprofile"}}}
	lists := &fakeLists{adminErr: errors.New("permission denied"), whitelist: []string{"1"}}
	r := NewReconciler(s, saves, nil, lists, time.Minute)

	require.NoError(t, r.Reconcile(context.Background()))

	p, _ := s.Players().Find("1")
	assert.True(t, p.IsAdmin)
	assert.True(t, p.IsWhitelisted)
	assert.NotEmpty(t, errLog.all())
}

func TestReconcileLookupFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	s, rec, errLog := newReconcileSession(t)
	saves := &fakeSaves{records: []domain.SaveRecord{{ID: "1", DisplayName: "A", FileName: "1.arkprofile"}}}
	lookup := &fakeLookup{err: errors.New("steam api: 503")}
	r := NewReconciler(s, saves, lookup, nil, time.Minute)

	require.NoError(t, r.Reconcile(context.Background()))

	p, ok := s.Players().Find("1")
	require.True(t, ok)
	assert.True(t, p.IsValid)
	assert.Empty(t, p.PlatformName)
	assert.NotEmpty(t, errLog.all())
	assert.Len(t, rec.ofType(domain.EventPlayers), 1)
}

func TestReconcileReadFailureSkipsRun(t *testing.T) {
	t.Parallel()

	s, rec, _ := newReconcileSession(t)
	_, err := s.Roster().ApplyPresence([]PresenceEntry{{ID: "1", Name: "A"}})
	require.NoError(t, err)

	r := NewReconciler(s, &fakeSaves{err: errors.New("no such directory")}, nil, nil, time.Minute)

	err = r.Reconcile(context.Background())
	require.Error(t, err)

	_, ok := s.Players().Find("1")
	assert.True(t, ok)
	assert.Empty(t, rec.ofType(domain.EventPlayers))
}

func TestReconcileCancelledPublishesNothing(t *testing.T) {
	t.Parallel()

	s, rec, _ := newReconcileSession(t)
	saves := &fakeSaves{records: []domain.SaveRecord{{ID: "1", FileName: "1.arkprofile"}}}
	r := NewReconciler(s, saves, nil, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Reconcile(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.ofType(domain.EventPlayers))
}

func TestRunReconcilerStopsOnClose(t *testing.T) {
	t.Parallel()

	errLog := &recordingErrLog{}
	s := NewSession(newFakeConn(), Options{ErrorLog: errLog})
	rec := &eventRecorder{}
	s.Subscribe(rec.listen)

	saves := &fakeSaves{records: []domain.SaveRecord{{ID: "1", FileName: "1.arkprofile"}}}
	s.RunReconciler(NewReconciler(s, saves, nil, nil, 5*time.Millisecond))

	require.Eventually(t, func() bool {
		return len(rec.ofType(domain.EventPlayers)) >= 2
	}, 5*time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("close did not stop the reconciler")
	}
}
