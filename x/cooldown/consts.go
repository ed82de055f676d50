package cooldown

import "time"

const (
	// DefaultTickInterval is the countdown decrement period.
	DefaultTickInterval = time.Second
)
