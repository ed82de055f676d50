package submitguard

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown is the minimum spacing between accepted starts.
const DefaultCooldown = 1500 * time.Millisecond

// Config configures a Guard.
type Config struct {
	Logger zerolog.Logger
	// Name labels log lines and metrics, e.g. "withdrawal".
	Name string
	// Cooldown is measured from the start of the last accepted action.
	Cooldown time.Duration
	// Now returns the current time. Defaults to time.Now if nil.
	Now     func() time.Time
	Metrics *Metrics
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(logger zerolog.Logger, name string) Config {
	return Config{
		Logger:   logger.With().Str("component", "submit-guard").Str("action", name).Logger(),
		Name:     name,
		Cooldown: DefaultCooldown,
		Now:      time.Now,
	}
}
