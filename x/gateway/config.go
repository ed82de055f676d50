package gateway

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/bonus"
	"github.com/novunt/client-core/x/clock"
	"github.com/novunt/client-core/x/cooldown"
	submitguard "github.com/novunt/client-core/x/submit-guard"
)

const (
	// DefaultIdleTimeout is how long a session lives without requests.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultPruneSchedule runs idle session pruning every minute.
	DefaultPruneSchedule = "0 * * * * *"
	// DefaultDayStartSchedule invalidates the cached day-start config at midnight.
	DefaultDayStartSchedule = "0 0 0 * * *"
)

// SessionConfig holds the per-user primitive settings.
type SessionConfig struct {
	GuardCooldown   time.Duration
	TickInterval    time.Duration
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	Steps           []bonus.StepID
}

// Config configures the session registry.
type Config struct {
	Logger      zerolog.Logger
	Session     SessionConfig
	IdleTimeout time.Duration
	// Clock drives countdown ticks, poller refreshes and idle tracking. Defaults to clock.System.
	Clock   clock.Clock
	Metrics *Metrics
	// Component metrics handed to every session; nil disables them.
	GuardMetrics    *submitguard.Metrics
	CooldownMetrics *cooldown.Metrics
	BonusMetrics    *bonus.Metrics
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(logger zerolog.Logger) Config {
	return Config{
		Logger: logger.With().Str("component", "gateway").Logger(),
		Session: SessionConfig{
			GuardCooldown:   submitguard.DefaultCooldown,
			TickInterval:    cooldown.DefaultTickInterval,
			RefreshInterval: bonus.DefaultRefreshInterval,
			FetchTimeout:    bonus.DefaultFetchTimeout,
			Steps:           bonus.DefaultSteps,
		},
		IdleTimeout: DefaultIdleTimeout,
		Clock:       clock.System,
	}
}
