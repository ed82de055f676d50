package bonus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Tracker holds the latest bonus progress. Snapshots are applied in request order:
// every fetch takes a sequence number from Begin, and a response whose sequence is
// not newer than the last applied one is discarded, so a slow response never
// overwrites fresher data.
//
// Within one bonus period completion is monotonic: a step reported complete stays
// complete until the period changes or Reset is called.
type Tracker struct {
	mu  sync.RWMutex
	log zerolog.Logger
	now func() time.Time

	defaultSteps []StepID

	issued    uint64
	applied   uint64
	periodID  string
	steps     []StepID
	completed []StepID
	updatedAt time.Time
}

// NewTracker creates a Tracker with no completed steps.
func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	steps := append([]StepID(nil), cfg.Steps...)
	return &Tracker{
		log:          cfg.Logger,
		now:          cfg.Now,
		defaultSteps: steps,
		steps:        steps,
	}
}

// Begin issues the sequence number for a new fetch.
func (t *Tracker) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return t.issued
}

// Apply records snap if seq is newer than the last applied snapshot.
func (t *Tracker) Apply(seq uint64, snap Snapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seq <= t.applied {
		t.log.Debug().Uint64("seq", seq).Uint64("applied", t.applied).Msg("stale bonus snapshot discarded")
		return false
	}
	t.applied = seq
	if seq > t.issued {
		t.issued = seq
	}

	if snap.PeriodID != t.periodID {
		if len(t.completed) > 0 {
			t.log.Info().Str("old_period", t.periodID).Str("new_period", snap.PeriodID).Msg("bonus period changed, progress reset")
		}
		t.completed = nil
		t.periodID = snap.PeriodID
	}

	if len(snap.Steps) > 0 {
		t.steps = append([]StepID(nil), snap.Steps...)
	} else {
		t.steps = t.defaultSteps
	}

	reported := make(map[StepID]struct{}, len(snap.Completed))
	for _, s := range snap.Completed {
		reported[s] = struct{}{}
	}
	regressed := 0
	for _, s := range t.completed {
		if _, ok := reported[s]; !ok {
			regressed++
		}
	}
	if regressed > 0 {
		t.log.Warn().Int("steps", regressed).Str("period", t.periodID).Msg("backend no longer reports completed steps, keeping them")
	}
	t.completed = mergeCompleted(t.completed, snap.Completed)

	t.updatedAt = snap.FetchedAt
	if t.updatedAt.IsZero() {
		t.updatedAt = t.now()
	}
	return true
}

// Reset clears progress for a new bonus period. Fetches begun before Reset are discarded.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied = t.issued
	t.periodID = ""
	t.completed = nil
	t.steps = t.defaultSteps
	t.updatedAt = time.Time{}
}

// Progress returns the derived view of the latest applied snapshot.
func (t *Tracker) Progress() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return NewProgress(t.steps, t.completed)
}

// LastUpdated returns when the last applied snapshot was fetched; ok is false before the first.
func (t *Tracker) LastUpdated() (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt, !t.updatedAt.IsZero()
}

func (t *Tracker) PeriodID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.periodID
}

func mergeCompleted(prev, next []StepID) []StepID {
	out := make([]StepID, 0, len(prev)+len(next))
	seen := make(map[StepID]struct{}, len(prev)+len(next))
	for _, list := range [][]StepID{prev, next} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
