package collector

import (
	"errors"
	"testing"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIsolatesFaultyListeners(t *testing.T) {
	t.Parallel()

	errLog := &recordingErrLog{}
	reg := NewRegistry(errLog)

	var order []string
	reg.Register(func(domain.Event) error {
		order = append(order, "panics")
		panic("listener blew up")
	})
	reg.Register(func(domain.Event) error {
		order = append(order, "errors")
		return errors.New("disk full")
	})
	reg.Register(func(domain.Event) error {
		order = append(order, "ok")
		return nil
	})

	reg.Dispatch(domain.Event{Type: domain.EventChat, Timestamp: time.Now()})

	assert.Equal(t, []string{"panics", "errors", "ok"}, order)
	lines := errLog.all()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "listener blew up")
	assert.Contains(t, lines[1], "disk full")
}

func TestRegistryReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(&recordingErrLog{})
	calls := 0
	h := reg.Register(func(domain.Event) error {
		calls++
		return nil
	})
	other := reg.Register(func(domain.Event) error { return nil })

	h.Release()
	h.Release()
	assert.Equal(t, 1, reg.Len())

	reg.Dispatch(domain.Event{Type: domain.EventStatus})
	assert.Equal(t, 0, calls)

	other.Release()
	assert.Equal(t, 0, reg.Len())
}

func TestRegistryReleaseDuringDispatch(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(&recordingErrLog{})
	var second int
	var h *Handle
	h = reg.Register(func(domain.Event) error {
		h.Release()
		return nil
	})
	reg.Register(func(domain.Event) error {
		second++
		return nil
	})

	// the in-flight dispatch still reaches everyone registered when it started
	reg.Dispatch(domain.Event{Type: domain.EventPlayers})
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, reg.Len())

	reg.Dispatch(domain.Event{Type: domain.EventPlayers})
	assert.Equal(t, 2, second)
}

func TestRegistryReleaseAll(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	h := reg.Register(func(domain.Event) error { return nil })
	reg.Register(func(domain.Event) error { return nil })

	reg.ReleaseAll()
	assert.Equal(t, 0, reg.Len())
	h.Release()
}
