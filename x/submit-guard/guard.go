package submitguard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Guard admits at most one action at a time, and no two starts closer than the
// cooldown. It deters duplicate submissions from the UI; it does not replace
// server-side rate limiting.
type Guard struct {
	mu        sync.Mutex
	log       zerolog.Logger
	name      string
	cooldown  time.Duration
	now       func() time.Time
	metrics   *Metrics
	inFlight  bool
	started   bool
	lastStart time.Time
}

// New creates a Guard.
func New(cfg Config) *Guard {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	return &Guard{
		log:      cfg.Logger,
		name:     cfg.Name,
		cooldown: cfg.Cooldown,
		now:      cfg.Now,
		metrics:  cfg.Metrics,
	}
}

// Do runs action through g. When g rejects the call, action is not invoked and Do
// returns (zero, false, nil). Otherwise it returns action's result and error
// unchanged with accepted set to true. The in-flight flag is released on every
// exit path of action, including a panic.
func Do[T any](ctx context.Context, g *Guard, action func(context.Context) (T, error)) (result T, accepted bool, err error) {
	if !g.acquire() {
		return result, false, nil
	}
	defer g.release()

	result, err = action(ctx)
	if err != nil {
		g.metrics.recordFailed(g.name)
		g.log.Debug().Err(err).Msg("guarded action failed")
	}
	return result, true, err
}

// acquire takes the in-flight token if policy allows it.
func (g *Guard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inFlight {
		g.metrics.recordRejected(g.name, ReasonInFlight)
		g.log.Debug().Msg("rejected: action in flight")
		return false
	}
	now := g.now()
	if g.started && now.Sub(g.lastStart) < g.cooldown {
		g.metrics.recordRejected(g.name, ReasonCooldown)
		g.log.Debug().Dur("since_last_start", now.Sub(g.lastStart)).Msg("rejected: cooldown")
		return false
	}

	g.inFlight = true
	g.started = true
	g.lastStart = now
	g.metrics.recordAccepted(g.name)
	return true
}

func (g *Guard) release() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}

// InFlight reports whether an accepted action has not yet returned.
func (g *Guard) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// LastStart returns when the last accepted action began; ok is false if none has.
func (g *Guard) LastStart() (t time.Time, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastStart, g.started
}

// ReadyIn returns how long until a call would pass the cooldown, ignoring in-flight state.
func (g *Guard) ReadyIn() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return 0
	}
	wait := g.cooldown - g.now().Sub(g.lastStart)
	if wait < 0 {
		return 0
	}
	return wait
}

// Cooldown returns the configured minimum spacing between accepted submissions.
func (g *Guard) Cooldown() time.Duration { return g.cooldown }
