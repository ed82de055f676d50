// Package ttlcache wraps a single value with the time it was fetched and answers
// whether it is still fresh without touching the network.
package ttlcache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is used for platform configuration such as the day-start schedule.
const DefaultTTL = 5 * time.Minute

// Entry holds one cached value. The zero Entry is not usable; call New.
type Entry[V any] struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	value     V
	hasValue  bool
	fetchedAt time.Time
	fetched   bool

	loadMu sync.Mutex
}

// New creates an empty Entry. A negative ttl is treated as zero, which makes every
// value immediately stale. now defaults to time.Now.
func New[V any](ttl time.Duration, now func() time.Time) *Entry[V] {
	if ttl < 0 {
		ttl = 0
	}
	if now == nil {
		now = time.Now
	}
	return &Entry[V]{ttl: ttl, now: now}
}

// Set stores v as fetched now.
func (e *Entry[V]) Set(v V) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v
	e.hasValue = true
	e.fetchedAt = e.now()
	e.fetched = true
}

// IsValid reports whether a value was fetched less than ttl ago.
func (e *Entry[V]) IsValid() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validLocked()
}

// Get returns the value only while it is valid.
func (e *Entry[V]) Get() (V, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.validLocked() {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Peek returns the last stored value regardless of freshness.
func (e *Entry[V]) Peek() (V, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.hasValue
}

// Invalidate forgets the fetch time so the next IsValid is false. The value is kept for Peek.
func (e *Entry[V]) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetched = false
	e.fetchedAt = time.Time{}
}

// FetchedAt returns when the value was stored; ok is false if absent or invalidated.
func (e *Entry[V]) FetchedAt() (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fetchedAt, e.fetched
}

// TTL returns the configured time-to-live.
func (e *Entry[V]) TTL() time.Duration { return e.ttl }

// GetOrLoad returns the valid value, or calls load and stores its result.
// Concurrent callers share one load. A load error is returned unchanged and
// leaves the entry as it was.
func (e *Entry[V]) GetOrLoad(ctx context.Context, load func(context.Context) (V, error)) (V, error) {
	if v, ok := e.Get(); ok {
		return v, nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	// Another caller may have loaded while we waited.
	if v, ok := e.Get(); ok {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	e.Set(v)
	return v, nil
}

// Caller must hold e.mu.
func (e *Entry[V]) validLocked() bool {
	return e.fetched && e.now().Sub(e.fetchedAt) < e.ttl
}
