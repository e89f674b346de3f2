package rcon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConsole struct {
	responses map[string]string
	execErr   error
	closed    int
}

func (f *fakeConsole) Exec(command string) (string, error) {
	if f.execErr != nil {
		return "", f.execErr
	}
	return f.responses[command], nil
}

func (f *fakeConsole) Close() error {
	f.closed++
	return nil
}

type recordingDialer struct {
	consoles []*fakeConsole
	dials    int
	err      error
}

func (d *recordingDialer) dial(_ context.Context, _, _ string, _ time.Duration) (Console, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeConsole{responses: map[string]string{"listplayers": "0. Bob, 1"}}
	d.consoles = append(d.consoles, c)
	return c, nil
}

func TestSendDialsLazily(t *testing.T) {
	t.Parallel()

	d := &recordingDialer{}
	conn := NewConnWithDialer("127.0.0.1:32330", "pw", time.Second, d.dial)
	assert.Equal(t, 0, d.dials)
	assert.Equal(t, "127.0.0.1:32330", conn.Addr())

	out, err := conn.Send(context.Background(), "listplayers")
	require.NoError(t, err)
	assert.Equal(t, "0. Bob, 1", out)

	_, err = conn.Send(context.Background(), "listplayers")
	require.NoError(t, err)
	assert.Equal(t, 1, d.dials)
}

func TestSendWrapsExecError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broken pipe")
	conn := NewConnWithDialer("host:1", "pw", time.Second, func(context.Context, string, string, time.Duration) (Console, error) {
		return &fakeConsole{execErr: boom}, nil
	})

	_, err := conn.Send(context.Background(), "getchat")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSendReportsDialFailure(t *testing.T) {
	t.Parallel()

	d := &recordingDialer{err: errors.New("refused")}
	conn := NewConnWithDialer("host:1", "pw", time.Second, d.dial)

	_, err := conn.Send(context.Background(), "getchat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to host:1")
}

func TestReconnectReplacesConsole(t *testing.T) {
	t.Parallel()

	d := &recordingDialer{}
	conn := NewConnWithDialer("host:1", "pw", time.Second, d.dial)

	require.NoError(t, conn.Reconnect(context.Background()))
	require.NoError(t, conn.Reconnect(context.Background()))
	require.Len(t, d.consoles, 2)
	assert.Equal(t, 1, d.consoles[0].closed)
	assert.Equal(t, 0, d.consoles[1].closed)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	d := &recordingDialer{}
	conn := NewConnWithDialer("host:1", "pw", time.Second, d.dial)
	_, err := conn.Send(context.Background(), "listplayers")
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, d.consoles[0].closed)

	_, err = conn.Send(context.Background(), "listplayers")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, conn.Reconnect(context.Background()), ErrClosed)
}
