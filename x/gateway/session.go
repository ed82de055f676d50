package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/bonus"
	"github.com/novunt/client-core/x/clock"
	"github.com/novunt/client-core/x/cooldown"
	submitguard "github.com/novunt/client-core/x/submit-guard"
)

// ErrSessionClosed is returned when polling is requested on a closed session.
var ErrSessionClosed = errors.New("gateway: session closed")

// Session holds the client-side primitives of one user.
type Session struct {
	ID        string
	CreatedAt time.Time

	Guard     *submitguard.Guard
	Countdown *cooldown.Countdown
	Poller    *bonus.Poller

	log      zerolog.Logger
	mu       sync.Mutex
	lastSeen time.Time
	closed   bool
}

func newSession(cfg Config, clk clock.Clock, fetcher bonus.Fetcher) *Session {
	id := uuid.NewString()
	log := cfg.Logger.With().Str("session_id", id).Logger()
	now := clk.Now()

	guardCfg := submitguard.DefaultConfig(log, "withdrawal")
	guardCfg.Cooldown = cfg.Session.GuardCooldown
	guardCfg.Now = clk.Now
	guardCfg.Metrics = cfg.GuardMetrics

	cdCfg := cooldown.DefaultConfig(log)
	cdCfg.Clock = clk
	cdCfg.TickInterval = cfg.Session.TickInterval
	cdCfg.Metrics = cfg.CooldownMetrics

	trCfg := bonus.DefaultTrackerConfig(log)
	if len(cfg.Session.Steps) > 0 {
		trCfg.Steps = cfg.Session.Steps
	}
	trCfg.Now = clk.Now

	pCfg := bonus.DefaultPollerConfig(log)
	pCfg.Fetcher = fetcher
	pCfg.Tracker = bonus.NewTracker(trCfg)
	pCfg.RefreshInterval = cfg.Session.RefreshInterval
	pCfg.FetchTimeout = cfg.Session.FetchTimeout
	pCfg.Clock = clk
	pCfg.Metrics = cfg.BonusMetrics
	pCfg.OnUpdate = func(p bonus.Progress) {
		if p.AllRequirementsMet() {
			log.Info().Msg("All bonus requirements met")
		}
	}

	return &Session{
		ID:        id,
		CreatedAt: now,
		Guard:     submitguard.New(guardCfg),
		Countdown: cooldown.New(cdCfg),
		Poller:    bonus.NewPoller(pCfg),
		log:       log,
		lastSeen:  now,
	}
}

// Bonus returns the current bonus progress, fetching synchronously when
// nothing has been loaded yet, and keeps the poller running while
// requirements are outstanding.
func (s *Session) Bonus(ctx context.Context) (bonus.Progress, error) {
	tracker := s.Poller.Tracker()
	if _, ok := tracker.LastUpdated(); !ok {
		if _, err := s.Poller.Refresh(ctx); err != nil {
			return bonus.Progress{}, err
		}
	}

	progress := tracker.Progress()
	if err := s.ensurePolling(ctx, progress); err != nil {
		return progress, err
	}
	return progress, nil
}

// RefreshBonus performs a user-initiated refresh.
func (s *Session) RefreshBonus(ctx context.Context) (bonus.Progress, error) {
	progress, err := s.Poller.Refresh(ctx)
	if err != nil {
		return progress, err
	}
	return progress, s.ensurePolling(ctx, progress)
}

func (s *Session) ensurePolling(ctx context.Context, progress bonus.Progress) error {
	if progress.AllRequirementsMet() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.Poller.Running() {
		return nil
	}
	// The poller outlives the request that started it; Close stops it.
	return s.Poller.Start(context.WithoutCancel(ctx))
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen returns the time of the most recent request for this session.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) idleSince(now time.Time, idle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return idle > 0 && now.Sub(s.lastSeen) >= idle
}

// Close disposes the countdown and stops the poller. No callback fires after
// Close returns.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Countdown.Dispose()
	return s.Poller.Stop(ctx)
}
