package cooldown

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/novunt/client-core/x/clock"
)

// Config configures a Countdown.
type Config struct {
	Logger zerolog.Logger
	// Clock schedules ticks. Defaults to clock.System if nil.
	Clock clock.Clock
	// TickInterval is both the tick period and the decrement per tick.
	TickInterval time.Duration
	// OnTick, if set, receives the new state after every change. It is invoked
	// outside the countdown lock and may call back into the Countdown.
	OnTick func(State)
	// Metrics is optional.
	Metrics *Metrics
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(logger zerolog.Logger) Config {
	return Config{
		Logger:       logger.With().Str("component", "cooldown").Logger(),
		Clock:        clock.System,
		TickInterval: DefaultTickInterval,
	}
}
