package gateway

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/bonus"
	"github.com/novunt/client-core/x/clock"
)

// ErrRegistryClosed is returned by Acquire after Close.
var ErrRegistryClosed = errors.New("gateway: session registry closed")

// FetcherSource builds a bonus fetcher bound to a user token.
type FetcherSource interface {
	BonusFetcher(token string) bonus.Fetcher
}

// Registry owns the sessions of every active user, keyed by bearer token.
type Registry struct {
	mu       sync.Mutex
	log      zerolog.Logger
	cfg      Config
	clock    clock.Clock
	fetchers FetcherSource
	metrics  *Metrics
	sessions map[string]*Session
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, fetchers FetcherSource) *Registry {
	return &Registry{
		log:      cfg.Logger,
		cfg:      cfg,
		clock:    clock.OrSystem(cfg.Clock),
		fetchers: fetchers,
		metrics:  cfg.Metrics,
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session for token, creating it on first use, and marks
// it as recently seen.
func (r *Registry) Acquire(token string) (*Session, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}

	if s, ok := r.sessions[token]; ok {
		s.touch(now)
		return s, nil
	}

	s := newSession(r.cfg, r.clock, r.fetchers.BonusFetcher(token))
	r.sessions[token] = s
	r.metrics.sessionOpened()
	r.log.Debug().Str("session_id", s.ID).Int("sessions", len(r.sessions)).Msg("Session opened")
	return s, nil
}

// Remove disposes the session for token, if any.
func (r *Registry) Remove(ctx context.Context, token string) bool {
	r.mu.Lock()
	s, ok := r.sessions[token]
	if ok {
		delete(r.sessions, token)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.closeSession(ctx, s, "removed")
	return true
}

// Prune disposes sessions idle for at least the configured idle timeout and
// returns how many were removed.
func (r *Registry) Prune(ctx context.Context) int {
	now := r.clock.Now()

	r.mu.Lock()
	var idle []*Session
	for token, s := range r.sessions {
		if s.idleSince(now, r.cfg.IdleTimeout) {
			idle = append(idle, s)
			delete(r.sessions, token)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		r.closeSession(ctx, s, "idle")
	}
	if len(idle) > 0 {
		r.log.Info().Int("pruned", len(idle)).Msg("Pruned idle sessions")
	}
	return len(idle)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close disposes every session. Acquire fails afterwards.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := r.closeSession(ctx, s, "shutdown"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) closeSession(ctx context.Context, s *Session, reason string) error {
	r.metrics.sessionClosed(reason)
	if err := s.Close(ctx); err != nil {
		r.log.Warn().Err(err).Str("session_id", s.ID).Str("reason", reason).Msg("Session did not stop cleanly")
		return err
	}
	r.log.Debug().Str("session_id", s.ID).Str("reason", reason).Msg("Session closed")
	return nil
}
