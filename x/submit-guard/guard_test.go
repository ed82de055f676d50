package submitguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/novunt/client-core/x/clock"
)

func newTestGuard(t *testing.T) (*Guard, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	cfg := DefaultConfig(zerolog.Nop(), "test")
	cfg.Now = clk.Now
	return New(cfg), clk
}

func TestGuardAcceptsFirstCall(t *testing.T) {
	t.Parallel()
	g, _ := newTestGuard(t)

	res, accepted, err := Do(context.Background(), g, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.True(t, accepted)
	require.Equal(t, "ok", res)
	require.False(t, g.InFlight())
}

func TestGuardRejectsConcurrentCall(t *testing.T) {
	t.Parallel()
	g, clk := newTestGuard(t)
	ctx := context.Background()

	release := make(chan struct{})
	entered := make(chan struct{})
	var (
		calls int
		mu    sync.Mutex
	)
	action := func(context.Context) (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(entered)
		<-release
		return 1, nil
	}

	done := make(chan bool)
	go func() {
		_, accepted, _ := Do(ctx, g, action)
		done <- accepted
	}()
	<-entered
	require.True(t, g.InFlight())

	// Even past the cooldown, a second call is rejected while the first is in flight.
	clk.Advance(time.Minute)
	res, accepted, err := Do(ctx, g, func(context.Context) (int, error) {
		t.Fatal("second action must not run")
		return 0, nil
	})
	require.NoError(t, err)
	require.False(t, accepted)
	require.Zero(t, res)

	close(release)
	require.True(t, <-done)
	mu.Lock()
	require.Equal(t, 1, calls)
	mu.Unlock()
}

func TestGuardCooldown(t *testing.T) {
	t.Parallel()
	g, clk := newTestGuard(t)
	ctx := context.Background()
	noop := func(context.Context) (bool, error) { return false, nil }
	require.Equal(t, DefaultCooldown, g.Cooldown())

	_, accepted, _ := Do(ctx, g, noop)
	require.True(t, accepted)

	clk.Advance(DefaultCooldown - time.Millisecond)
	_, accepted, _ = Do(ctx, g, noop)
	require.False(t, accepted)
	require.Equal(t, time.Millisecond, g.ReadyIn())

	clk.Advance(time.Millisecond)
	res, accepted, err := Do(ctx, g, noop)
	require.NoError(t, err)
	require.True(t, accepted, "a falsy result from an accepted call is still distinguishable")
	require.False(t, res)
}

func TestGuardPropagatesFailureWithoutPoisoning(t *testing.T) {
	t.Parallel()
	g, clk := newTestGuard(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, accepted, err := Do(ctx, g, func(context.Context) (int, error) { return 0, boom })
	require.True(t, accepted)
	require.ErrorIs(t, err, boom)
	require.False(t, g.InFlight())

	clk.Advance(DefaultCooldown)
	res, accepted, err := Do(ctx, g, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.True(t, accepted)
	require.Equal(t, 7, res)
}

func TestGuardReleasesOnPanic(t *testing.T) {
	t.Parallel()
	g, clk := newTestGuard(t)

	require.Panics(t, func() {
		_, _, _ = Do(context.Background(), g, func(context.Context) (int, error) { panic("kaboom") })
	})
	require.False(t, g.InFlight())

	clk.Advance(DefaultCooldown)
	_, accepted, _ := Do(context.Background(), g, func(context.Context) (int, error) { return 0, nil })
	require.True(t, accepted)
}

func TestGuardZeroCooldown(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig(zerolog.Nop(), "test")
	cfg.Cooldown = 0
	g := New(cfg)
	require.Zero(t, g.Cooldown())

	for i := 0; i < 3; i++ {
		_, accepted, _ := Do(context.Background(), g, func(context.Context) (int, error) { return i, nil })
		require.True(t, accepted)
	}
	_, ok := g.LastStart()
	require.True(t, ok)
}
