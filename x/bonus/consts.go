package bonus

import "time"

const (
	// DefaultRefreshInterval bounds staleness while requirements are outstanding.
	DefaultRefreshInterval = 10 * time.Second
	// DefaultFetchTimeout bounds a single status fetch issued by the poller.
	DefaultFetchTimeout = 8 * time.Second
)
