package bonus

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/clock"
)

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Logger zerolog.Logger
	// Steps is used when a snapshot does not carry its own step sequence.
	Steps []StepID
	// Now returns the current time. Defaults to time.Now if nil.
	Now func() time.Time
}

// DefaultTrackerConfig returns a config tracking DefaultSteps.
func DefaultTrackerConfig(logger zerolog.Logger) TrackerConfig {
	return TrackerConfig{
		Logger: logger.With().Str("component", "bonus-tracker").Logger(),
		Steps:  DefaultSteps,
		Now:    time.Now,
	}
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Logger  zerolog.Logger
	Fetcher Fetcher
	Tracker *Tracker
	// RefreshInterval is the delay between fetches while requirements are outstanding.
	RefreshInterval time.Duration
	// FetchTimeout bounds each poller-issued fetch; 0 disables the bound.
	FetchTimeout time.Duration
	// Clock schedules refreshes. Defaults to clock.System if nil.
	Clock clock.Clock
	// OnUpdate is called with the new progress after every applied snapshot.
	OnUpdate func(Progress)
	Metrics  *Metrics
}

// DefaultPollerConfig returns a config with sensible defaults; Fetcher and Tracker are set by the caller.
func DefaultPollerConfig(logger zerolog.Logger) PollerConfig {
	return PollerConfig{
		Logger:          logger.With().Str("component", "bonus-poller").Logger(),
		RefreshInterval: DefaultRefreshInterval,
		FetchTimeout:    DefaultFetchTimeout,
		Clock:           clock.System,
	}
}
