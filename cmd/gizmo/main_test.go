package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gizmoapp/gizmo/src/app"
	"github.com/gizmoapp/gizmo/src/assist"
	"github.com/gizmoapp/gizmo/src/config"
	"github.com/gizmoapp/gizmo/src/snapshot"
	"github.com/gizmoapp/gizmo/src/syncer"
	"github.com/gizmoapp/gizmo/src/transport"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing assistant", fmt.Errorf("connect: %w", config.ErrMissingAssistant), ExitConfig},
		{"invalid config", fmt.Errorf("load: %w", config.ValidationError{Field: "Remote.Backend"}), ExitConfig},
		{"rejected token", &transport.ConnectionError{Op: "handshake", Err: transport.ErrAuthRejected}, ExitAuth},
		{"dial failure", &transport.ConnectionError{Op: "dial", Err: fmt.Errorf("refused")}, ExitNetwork},
		{"not connected", fmt.Errorf("cannot send: %w", assist.ErrNotConnected), ExitNetwork},
		{"timeout", fmt.Errorf("waiting: %w", context.DeadlineExceeded), ExitTimeout},
		{"interrupted", context.Canceled, ExitInterrupted},
		{"snapshot", &snapshot.PersistenceError{Op: "decode", Err: fmt.Errorf("bad")}, ExitStorage},
		{"no remote", syncer.ErrNoRemote, ExitStorage},
		{"usage", fmt.Errorf("%w: unknown chat", errUsage), ExitUsage},
		{"other", fmt.Errorf("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b", truncate("a\nb", 10))
	got := truncate(strings.Repeat("x", 20), 8)
	assert.Equal(t, "xxxxxxx…", got)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("abcd"))
	assert.Equal(t, "abcd****mnop", maskSecret("abcdefghmnop"))
}

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Directory = "/state"
	a, err := app.New(context.Background(), app.Options{Config: cfg, Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	var out bytes.Buffer
	return &repl{app: a, out: &out}, &out
}

func TestREPLCommands(t *testing.T) {
	r, out := newTestREPL(t)
	ctx := context.Background()

	require.NoError(t, r.handle(ctx, "/new"))
	require.NoError(t, r.handle(ctx, "/new"))
	require.Len(t, r.app.Sessions.GetSorted(), 2)

	out.Reset()
	require.NoError(t, r.handle(ctx, "/list"))
	assert.Equal(t, 2, strings.Count(out.String(), "New chat"))

	first := r.app.Sessions.GetSorted()[1].ID
	require.NoError(t, r.handle(ctx, "/use 2"))
	active, ok := r.app.Sessions.Active()
	require.True(t, ok)
	assert.Equal(t, first, active.ID)

	require.NoError(t, r.handle(ctx, "/delete "+first))
	_, ok = r.app.Sessions.Active()
	assert.False(t, ok)
	assert.Len(t, r.app.Sessions.GetSorted(), 1)

	out.Reset()
	require.NoError(t, r.handle(ctx, "/use 9"))
	assert.Contains(t, out.String(), "no such chat")

	out.Reset()
	require.NoError(t, r.handle(ctx, "/sync"))
	assert.Contains(t, out.String(), "no shared store")

	assert.ErrorIs(t, r.handle(ctx, "/quit"), errQuit)
}

func TestREPLMessageWithoutConnection(t *testing.T) {
	r, out := newTestREPL(t)

	require.NoError(t, r.handle(context.Background(), "turn on the lights"))
	assert.Contains(t, out.String(), assist.ErrNotConnected.Error())
	assert.Empty(t, r.app.Sessions.GetSorted())
}

func TestREPLRunStopsAtEOF(t *testing.T) {
	r, out := newTestREPL(t)
	r.in = strings.NewReader("/new\n/quit\n/new\n")

	require.NoError(t, r.run(context.Background()))
	assert.Len(t, r.app.Sessions.GetSorted(), 1)
	assert.Contains(t, out.String(), "Started")
}
