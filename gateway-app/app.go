package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/novunt/client-core/gateway-app/config"
	"github.com/novunt/client-core/metrics"
	apisrv "github.com/novunt/client-core/server/api"
	apimw "github.com/novunt/client-core/server/api/middleware"
	"github.com/novunt/client-core/x/backend"
	"github.com/novunt/client-core/x/bonus"
	"github.com/novunt/client-core/x/clock"
	"github.com/novunt/client-core/x/cooldown"
	"github.com/novunt/client-core/x/gateway"
	submitguard "github.com/novunt/client-core/x/submit-guard"
	"github.com/novunt/client-core/x/ttlcache"
)

// App represents the gateway application
type App struct {
	cfg *config.Config
	log zerolog.Logger

	startedAt time.Time

	backend     *backend.Client
	sessions    *gateway.Registry
	dayStart    *ttlcache.Entry[backend.DayStart]
	maintenance *gateway.Maintenance

	// API server (HTTP)
	apiServer *apisrv.Server

	cancel context.CancelFunc
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg:       cfg,
		log:       log.With().Str("component", "app").Logger(),
		startedAt: time.Now(),
	}

	if err := app.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

// initialize sets up the application components
func (a *App) initialize() error {
	if err := a.initializeBackend(); err != nil {
		return err
	}

	a.initializeSessions()

	if err := a.initializeMaintenance(); err != nil {
		return err
	}

	a.initializeAPIServer()
	return nil
}

// initializeBackend creates the platform API client
func (a *App) initializeBackend() error {
	var opts []backend.Option
	if a.cfg.Metrics.Enabled {
		opts = append(opts, backend.WithMetrics(backend.NewMetrics()))
	}

	client, err := backend.NewClient(
		a.cfg.Backend.BaseURL,
		&http.Client{Timeout: a.cfg.Backend.Timeout},
		a.log,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	a.backend = client
	return nil
}

// initializeSessions wires the per-user primitives and the day-start cache
func (a *App) initializeSessions() {
	gwCfg := gateway.DefaultConfig(a.log)
	gwCfg.Clock = clock.System
	gwCfg.IdleTimeout = a.cfg.Sessions.IdleTimeout
	gwCfg.Session = gateway.SessionConfig{
		GuardCooldown:   a.cfg.Guard.Cooldown,
		TickInterval:    a.cfg.Cooldown.TickInterval,
		RefreshInterval: a.cfg.Bonus.RefreshInterval,
		FetchTimeout:    a.cfg.Bonus.FetchTimeout,
		Steps:           a.cfg.BonusSteps(),
	}
	if a.cfg.Metrics.Enabled {
		gwCfg.Metrics = gateway.NewMetrics()
		gwCfg.GuardMetrics = submitguard.NewMetrics()
		gwCfg.CooldownMetrics = cooldown.NewMetrics()
		gwCfg.BonusMetrics = bonus.NewMetrics()
	}

	a.sessions = gateway.NewRegistry(gwCfg, a.backend)
	a.dayStart = ttlcache.New[backend.DayStart](a.cfg.Cache.DayStartTTL, time.Now)
}

// initializeMaintenance schedules session pruning and day-start invalidation
func (a *App) initializeMaintenance() error {
	loc, err := a.cfg.Location()
	if err != nil {
		return fmt.Errorf("failed to resolve timezone: %w", err)
	}

	mCfg := gateway.DefaultMaintenanceConfig(a.log)
	mCfg.Sessions = a.sessions
	mCfg.DayStart = a.dayStart
	mCfg.PruneSchedule = a.cfg.Sessions.PruneCron
	mCfg.DayStartSchedule = a.cfg.Cache.DayStartCron
	mCfg.Location = loc

	m, err := gateway.NewMaintenance(mCfg)
	if err != nil {
		return fmt.Errorf("failed to create maintenance scheduler: %w", err)
	}
	a.maintenance = m
	return nil
}

// initializeAPIServer sets up the HTTP API server with all endpoints
func (a *App) initializeAPIServer() {
	s := apisrv.NewServer(a.cfg.API, a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log, "/health", "/ready", a.cfg.Metrics.Path))
	if len(a.cfg.API.CORSOrigins) > 0 {
		s.EnableCORS(a.cfg.API.CORSOrigins...)
	}

	// Health/readiness/stats
	s.Router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)
	s.Router.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)

	// Metrics
	if a.cfg.Metrics.Enabled {
		s.Router.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	// Gateway API
	gwHandler := gateway.NewHandler(a.sessions, a.backend, a.dayStart, a.log)
	gwHandler.RegisterMux(s.Router)

	a.apiServer = s
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.maintenance.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := a.apiServer.Start(runCtx); err != nil {
			a.log.Error().Err(err).Msg("API server error")
			errCh <- err
		}
	}()

	return a.runWithGracefulShutdown(runCtx, errCh)
}

// runWithGracefulShutdown handles shutdown signals.
func (a *App) runWithGracefulShutdown(ctx context.Context, errCh <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a.log.Info().Msg("Novunt gateway started successfully")

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case runErr = <-errCh:
		a.log.Error().Err(runErr).Msg("API server failed, initiating shutdown")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if err := a.shutdown(); err != nil {
		return err
	}
	return runErr
}

// shutdown stops the scheduler and disposes every session, which stops all
// countdown timers and bonus pollers.
func (a *App) shutdown() error {
	a.log.Info().Msg("Initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.maintenance.Stop(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Maintenance scheduler shutdown error")
	}

	if err := a.sessions.Close(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("Session shutdown error")
		return err
	}

	a.log.Info().Msg("Graceful shutdown complete")
	return nil
}

// handleHealth responds to health check requests.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	apisrv.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports ready once the platform day-start config can be served.
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	_, err := a.dayStart.GetOrLoad(r.Context(), a.backend.FetchDayStart)
	if err != nil {
		if _, stale := a.dayStart.Peek(); !stale {
			apisrv.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "backend_unreachable",
				"error":  err.Error(),
			})
			return
		}
	}
	apisrv.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	apisrv.WriteJSON(w, http.StatusOK, a.GetStats())
}

// GetStats returns application statistics.
func (a *App) GetStats() map[string]any {
	stats := map[string]any{
		"app_version":     Version,
		"app_build_time":  BuildTime,
		"app_git_commit":  GitCommit,
		"uptime_seconds":  time.Since(a.startedAt).Seconds(),
		"active_sessions": a.sessions.Len(),
		"day_start_valid": a.dayStart.IsValid(),
	}
	return stats
}
