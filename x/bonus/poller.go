package bonus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/clock"
)

// ErrNoFetcher is returned by Start and Refresh when the poller has no Fetcher.
var ErrNoFetcher = errors.New("bonus: poller requires a fetcher")

// Fetcher loads the current bonus status from the source of truth.
type Fetcher interface {
	FetchBonusStatus(ctx context.Context) (Snapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (Snapshot, error)

func (f FetcherFunc) FetchBonusStatus(ctx context.Context) (Snapshot, error) { return f(ctx) }

const (
	triggerPoll   = "poll"
	triggerManual = "manual"
)

// Poller refreshes a Tracker on a fixed interval while bonus requirements are
// outstanding, and stops by itself once they are all met.
type Poller struct {
	// Log and lifecycle
	mu     sync.Mutex
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	// Dependencies
	fetcher  Fetcher
	tracker  *Tracker
	onUpdate func(Progress)
	metrics  *Metrics
	// Time management
	interval     time.Duration
	fetchTimeout time.Duration
	clock        clock.Clock
}

// NewPoller constructs a Poller. A nil Tracker gets a default one.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker(DefaultTrackerConfig(cfg.Logger))
	}
	return &Poller{
		log:          cfg.Logger,
		fetcher:      cfg.Fetcher,
		tracker:      cfg.Tracker,
		onUpdate:     cfg.OnUpdate,
		metrics:      cfg.Metrics,
		interval:     cfg.RefreshInterval,
		fetchTimeout: cfg.FetchTimeout,
		clock:        clock.OrSystem(cfg.Clock),
	}
}

// Tracker returns the tracker the poller feeds.
func (p *Poller) Tracker() *Tracker { return p.tracker }

// Start begins polling until the context is canceled, Stop is called, or every
// requirement is met. Starting a running poller is a no-op; a poller that stopped
// by itself may be started again.
func (p *Poller) Start(ctx context.Context) error {
	if p.fetcher == nil {
		return ErrNoFetcher
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runningLocked() {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.metrics.pollerStarted()

	go p.run(runCtx, cancel, p.done)
	return nil
}

// Stop halts polling and waits for the loop to exit, so no fetch is applied
// after Stop returns nil.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

// Caller must hold p.mu.
func (p *Poller) runningLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Refresh fetches and applies a snapshot now. It returns the tracker's progress
// after the fetch, which is the previous progress if the response was stale.
func (p *Poller) Refresh(ctx context.Context) (Progress, error) {
	return p.refresh(ctx, triggerManual)
}

func (p *Poller) refresh(ctx context.Context, trigger string) (Progress, error) {
	if p.fetcher == nil {
		return p.tracker.Progress(), ErrNoFetcher
	}

	seq := p.tracker.Begin()
	start := p.clock.Now()
	snap, err := p.fetcher.FetchBonusStatus(ctx)
	took := p.clock.Now().Sub(start)
	if err != nil {
		p.metrics.recordRefresh(trigger, "error", took)
		return p.tracker.Progress(), err
	}

	applied := p.tracker.Apply(seq, snap)
	progress := p.tracker.Progress()
	if !applied {
		p.metrics.recordRefresh(trigger, "stale", took)
		return progress, nil
	}
	p.metrics.recordRefresh(trigger, "applied", took)

	if p.onUpdate != nil {
		p.onUpdate(progress)
	}
	return progress, nil
}

// run fetches immediately, then every interval until done or every requirement is met.
func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer p.metrics.pollerStopped()

	// A tracker that already holds a snapshot waits one interval before the first fetch.
	_, skip := p.tracker.LastUpdated()
	tick := make(chan struct{}, 1)
	for {
		if !skip {
			progress, err := p.pollOnce(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				p.log.Warn().Err(err).Msg("bonus status refresh failed")
			} else if progress.AllRequirementsMet() {
				p.metrics.recordCompleted()
				p.log.Info().Int("completion_percent", progress.CompletionPercent()).Msg("all bonus requirements met, polling stopped")
				return
			}
		}
		skip = false

		timer := p.clock.AfterFunc(p.interval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-tick:
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) (Progress, error) {
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}
	return p.refresh(ctx, triggerPoll)
}
