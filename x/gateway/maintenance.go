package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Invalidator drops a cached value so the next read reloads it.
type Invalidator interface {
	Invalidate()
}

// MaintenanceConfig configures the background maintenance jobs.
type MaintenanceConfig struct {
	Logger   zerolog.Logger
	Sessions *Registry
	DayStart Invalidator
	// Cron specs with a leading seconds field.
	PruneSchedule    string
	DayStartSchedule string
	// Location evaluates DayStartSchedule, usually the platform timezone. Defaults to UTC.
	Location *time.Location
	// PruneTimeout bounds one prune run.
	PruneTimeout time.Duration
}

// DefaultMaintenanceConfig returns a config with the default schedules.
func DefaultMaintenanceConfig(logger zerolog.Logger) MaintenanceConfig {
	return MaintenanceConfig{
		Logger:           logger.With().Str("component", "gateway-maintenance").Logger(),
		PruneSchedule:    DefaultPruneSchedule,
		DayStartSchedule: DefaultDayStartSchedule,
		Location:         time.UTC,
		PruneTimeout:     10 * time.Second,
	}
}

// Maintenance runs cron jobs that prune idle sessions and invalidate the
// cached day-start config when a new platform day begins.
type Maintenance struct {
	cron *cron.Cron
	cfg  MaintenanceConfig
	log  zerolog.Logger
}

// NewMaintenance registers the jobs; it fails on an invalid schedule.
func NewMaintenance(cfg MaintenanceConfig) (*Maintenance, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	m := &Maintenance{
		cron: cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location)),
		cfg:  cfg,
		log:  cfg.Logger,
	}

	if cfg.Sessions != nil {
		if _, err := m.cron.AddFunc(cfg.PruneSchedule, m.PruneNow); err != nil {
			return nil, fmt.Errorf("register session prune: %w", err)
		}
	}
	if cfg.DayStart != nil {
		if _, err := m.cron.AddFunc(cfg.DayStartSchedule, m.InvalidateDayStart); err != nil {
			return nil, fmt.Errorf("register day-start invalidation: %w", err)
		}
	}
	return m, nil
}

func (m *Maintenance) Start() {
	m.cron.Start()
	m.log.Info().Int("jobs", len(m.cron.Entries())).Msg("Maintenance scheduler started")
}

// Stop halts the scheduler and waits for running jobs or ctx, whichever ends first.
func (m *Maintenance) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	select {
	case <-done.Done():
		m.log.Info().Msg("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PruneNow disposes idle sessions.
func (m *Maintenance) PruneNow() {
	ctx := context.Background()
	if m.cfg.PruneTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.PruneTimeout)
		defer cancel()
	}
	m.cfg.Sessions.Prune(ctx)
}

// InvalidateDayStart forces the next day-start read to hit the backend.
func (m *Maintenance) InvalidateDayStart() {
	m.cfg.DayStart.Invalidate()
	m.log.Debug().Msg("Day-start cache invalidated")
}
