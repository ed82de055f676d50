package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/novunt/client-core/x/bonus"
	"github.com/novunt/client-core/x/clock"
)

func newTestRegistry(t *testing.T, idle time.Duration) (*Registry, *fakeBackend, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(t0)
	fb := &fakeBackend{}
	cfg := DefaultConfig(zerolog.Nop())
	cfg.Clock = clk
	cfg.IdleTimeout = idle
	reg := NewRegistry(cfg, fb)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg, fb, clk
}

func TestRegistry_AcquireReusesSessionPerToken(t *testing.T) {
	t.Parallel()
	reg, _, _ := newTestRegistry(t, time.Minute)

	a1, err := reg.Acquire("tok-a")
	require.NoError(t, err)
	a2, err := reg.Acquire("tok-a")
	require.NoError(t, err)
	b, err := reg.Acquire("tok-b")
	require.NoError(t, err)

	require.Same(t, a1, a2)
	require.NotEqual(t, a1.ID, b.ID)
	require.Equal(t, 2, reg.Len())
}

func TestRegistry_PruneIdleSessions(t *testing.T) {
	t.Parallel()
	reg, _, clk := newTestRegistry(t, time.Minute)

	idle, err := reg.Acquire("idle")
	require.NoError(t, err)
	_, err = reg.Acquire("active")
	require.NoError(t, err)
	idle.Countdown.Start(5 * time.Minute)

	clk.Advance(30 * time.Second)
	_, err = reg.Acquire("active")
	require.NoError(t, err)
	require.Zero(t, reg.Prune(context.Background()))

	clk.Advance(30 * time.Second)
	require.Equal(t, 1, reg.Prune(context.Background()))
	require.Equal(t, 1, reg.Len())

	// A disposed countdown ignores further starts and keeps its last state.
	before := idle.Countdown.State()
	idle.Countdown.Start(time.Minute)
	require.Equal(t, before, idle.Countdown.State())

	again, err := reg.Acquire("idle")
	require.NoError(t, err)
	require.NotEqual(t, idle.ID, again.ID)
}

func TestRegistry_ZeroIdleTimeoutNeverPrunes(t *testing.T) {
	t.Parallel()
	reg, _, clk := newTestRegistry(t, 0)

	_, err := reg.Acquire("tok-a")
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)
	require.Zero(t, reg.Prune(context.Background()))
}

func TestRegistry_RemoveStopsPoller(t *testing.T) {
	t.Parallel()
	reg, fb, _ := newTestRegistry(t, time.Minute)
	fb.set(func(f *fakeBackend) {
		f.snapshot = bonus.Snapshot{Completed: []bonus.StepID{bonus.StepRegistration}}
	})

	s, err := reg.Acquire("tok-a")
	require.NoError(t, err)
	_, err = s.Bonus(context.Background())
	require.NoError(t, err)
	require.True(t, s.Poller.Running())

	require.True(t, reg.Remove(context.Background(), "tok-a"))
	require.False(t, s.Poller.Running())
	require.False(t, reg.Remove(context.Background(), "tok-a"))

	_, err = s.Bonus(context.Background())
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestRegistry_CloseRejectsNewSessions(t *testing.T) {
	t.Parallel()
	reg, _, _ := newTestRegistry(t, time.Minute)

	s, err := reg.Acquire("tok-a")
	require.NoError(t, err)
	require.NoError(t, reg.Close(context.Background()))
	require.Zero(t, reg.Len())
	require.NoError(t, s.Close(context.Background()))

	_, err = reg.Acquire("tok-a")
	require.ErrorIs(t, err, ErrRegistryClosed)
}
