package cooldown

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/clock"
)

// State is a point-in-time view of a Countdown.
type State struct {
	// Initial is the duration the countdown was last started with.
	Initial   time.Duration
	Remaining time.Duration
	Expired   bool
}

// RemainingMs returns Remaining in whole milliseconds.
func (s State) RemainingMs() int64 {
	return s.Remaining.Milliseconds()
}

// RemainingSeconds returns Remaining rounded up to whole seconds, as displayed to users.
func (s State) RemainingSeconds() int64 {
	return int64((s.Remaining + time.Second - 1) / time.Second)
}

// Countdown decrements a remaining duration on a fixed tick until it reaches zero.
// Ticks are chained one-shot timers, so two ticks of the same countdown never overlap.
// Each (re)start bumps a generation counter; a tick armed by an older generation is a no-op
// even if its timer could not be stopped in time.
type Countdown struct {
	mu      sync.Mutex
	log     zerolog.Logger
	clock   clock.Clock
	tick    time.Duration
	onTick  func(State)
	metrics *Metrics

	initial   time.Duration
	remaining time.Duration
	timer     clock.Timer
	gen       uint64
	disposed  bool
}

// New creates an expired Countdown.
func New(cfg Config) *Countdown {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Countdown{
		log:     cfg.Logger,
		clock:   clock.OrSystem(cfg.Clock),
		tick:    cfg.TickInterval,
		onTick:  cfg.OnTick,
		metrics: cfg.Metrics,
	}
}

// Start replaces any running countdown with one of duration d. Negative durations are
// clamped to zero; a zero duration is immediately expired and schedules nothing.
func (c *Countdown) Start(d time.Duration) {
	if d < 0 {
		d = 0
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		c.log.Warn().Dur("duration", d).Msg("start on disposed countdown ignored")
		return
	}
	c.stopTimerLocked()
	c.gen++
	c.initial = d
	c.remaining = d
	if d > 0 {
		c.armLocked(c.gen)
	}
	st := c.stateLocked()
	c.mu.Unlock()

	if d > 0 {
		c.metrics.recordStart()
	}
	c.log.Debug().Dur("duration", d).Msg("countdown started")
	c.notify(st)
}

// Trigger starts the countdown from an external signal such as a rate-limited backend
// response. It returns false, leaving state unchanged, when the signal carries no
// positive wait.
func (c *Countdown) Trigger(signal any) bool {
	wait, ok := ExtractWait(signal)
	if ok {
		c.mu.Lock()
		ok = !c.disposed
		c.mu.Unlock()
	}
	c.metrics.recordTrigger(ok)
	if !ok {
		return false
	}
	c.log.Info().Dur("wait", wait).Msg("cooldown triggered by backend")
	c.Start(wait)
	return true
}

// Reset cancels the pending tick and expires the countdown. Resetting an expired
// countdown is a no-op, as is resetting a disposed one.
func (c *Countdown) Reset() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	changed := c.remaining != 0
	c.stopTimerLocked()
	c.gen++
	c.remaining = 0
	st := c.stateLocked()
	c.mu.Unlock()

	if changed {
		c.notify(st)
	}
}

// Dispose stops the countdown for good. No tick fires after Dispose returns and
// later calls to Start are ignored.
func (c *Countdown) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.gen++
	c.disposed = true
}

// State returns the current state.
func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Countdown) Remaining() time.Duration { return c.State().Remaining }

func (c *Countdown) IsExpired() bool { return c.State().Expired }

// armLocked schedules the next tick for generation gen.
// Caller must hold c.mu.
func (c *Countdown) armLocked(gen uint64) {
	c.timer = c.clock.AfterFunc(c.tick, func() { c.onTimer(gen) })
}

func (c *Countdown) onTimer(gen uint64) {
	c.mu.Lock()
	if c.disposed || gen != c.gen || c.remaining == 0 {
		c.mu.Unlock()
		return
	}

	c.remaining -= c.tick
	if c.remaining < 0 {
		c.remaining = 0
	}
	expired := c.remaining == 0
	if expired {
		c.timer = nil
	} else {
		c.armLocked(gen)
	}
	st := c.stateLocked()
	c.mu.Unlock()

	if expired {
		c.metrics.recordExpired()
		c.log.Debug().Dur("initial", st.Initial).Msg("countdown expired")
	}
	c.notify(st)
}

// Caller must hold c.mu.
func (c *Countdown) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Caller must hold c.mu.
func (c *Countdown) stateLocked() State {
	return State{Initial: c.initial, Remaining: c.remaining, Expired: c.remaining == 0}
}

func (c *Countdown) notify(st State) {
	if c.onTick != nil {
		c.onTick(st)
	}
}
