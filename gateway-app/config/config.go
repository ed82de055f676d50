package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	// Timezone names must resolve in minimal containers without zoneinfo.
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	apisrv "github.com/novunt/client-core/server/api"
	"github.com/novunt/client-core/x/bonus"
)

// Config holds the complete application configuration
type Config struct {
	API      apisrv.Config  `mapstructure:"api"      yaml:"api"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
	Log      LogConfig      `mapstructure:"log"      yaml:"log"`
	Backend  BackendConfig  `mapstructure:"backend"  yaml:"backend"`
	Guard    GuardConfig    `mapstructure:"guard"    yaml:"guard"`
	Cooldown CooldownConfig `mapstructure:"cooldown" yaml:"cooldown"`
	Bonus    BonusConfig    `mapstructure:"bonus"    yaml:"bonus"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"`
	Sessions SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `mapstructure:"path"    yaml:"path"    env:"METRICS_PATH"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

// BackendConfig points at the platform API.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" env:"BACKEND_BASE_URL"`
	Timeout time.Duration `mapstructure:"timeout"  yaml:"timeout"  env:"BACKEND_TIMEOUT"`
}

// GuardConfig configures the per-user withdrawal submit guard.
type GuardConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown" env:"GUARD_COOLDOWN"`
}

// CooldownConfig configures the withdrawal countdown.
type CooldownConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval" env:"COOLDOWN_TICK_INTERVAL"`
}

// BonusConfig configures registration-bonus tracking.
type BonusConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval" env:"BONUS_REFRESH_INTERVAL"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"    yaml:"fetch_timeout"    env:"BONUS_FETCH_TIMEOUT"`
	// Steps is the ordered step sequence used when the backend omits it.
	Steps []string `mapstructure:"steps" yaml:"steps"`
}

// CacheConfig configures the cached platform day-start config.
type CacheConfig struct {
	DayStartTTL  time.Duration `mapstructure:"day_start_ttl"  yaml:"day_start_ttl"  env:"CACHE_DAY_START_TTL"`
	DayStartCron string        `mapstructure:"day_start_cron" yaml:"day_start_cron" env:"CACHE_DAY_START_CRON"`
	// Timezone evaluates DayStartCron.
	Timezone string `mapstructure:"timezone" yaml:"timezone" env:"CACHE_TIMEZONE"`
}

// SessionsConfig configures per-user session lifetime.
type SessionsConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" env:"SESSIONS_IDLE_TIMEOUT"`
	PruneCron   string        `mapstructure:"prune_cron"   yaml:"prune_cron"   env:"SESSIONS_PRUNE_CRON"`
}

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Load loads configuration from file and environment. An empty path skips the
// file and uses defaults plus environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("api.listen_addr", d.API.ListenAddr)
	v.SetDefault("api.read_header_timeout", d.API.ReadHeaderTimeout)
	v.SetDefault("api.read_timeout", d.API.ReadTimeout)
	v.SetDefault("api.write_timeout", d.API.WriteTimeout)
	v.SetDefault("api.idle_timeout", d.API.IdleTimeout)
	v.SetDefault("api.shutdown_timeout", d.API.ShutdownTimeout)
	v.SetDefault("api.max_header_bytes", d.API.MaxHeaderBytes)
	v.SetDefault("api.cors_origins", []string{})

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)

	v.SetDefault("guard.cooldown", d.Guard.Cooldown)
	v.SetDefault("cooldown.tick_interval", d.Cooldown.TickInterval)

	v.SetDefault("bonus.refresh_interval", d.Bonus.RefreshInterval)
	v.SetDefault("bonus.fetch_timeout", d.Bonus.FetchTimeout)
	v.SetDefault("bonus.steps", d.Bonus.Steps)

	v.SetDefault("cache.day_start_ttl", d.Cache.DayStartTTL)
	v.SetDefault("cache.day_start_cron", d.Cache.DayStartCron)
	v.SetDefault("cache.timezone", d.Cache.Timezone)

	v.SetDefault("sessions.idle_timeout", d.Sessions.IdleTimeout)
	v.SetDefault("sessions.prune_cron", d.Sessions.PruneCron)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateBonus(); err != nil {
		return err
	}
	if err := c.validateSchedules(); err != nil {
		return err
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	return nil
}

func (c *Config) validateBackend() error {
	raw := strings.TrimSpace(c.Backend.BaseURL)
	if raw == "" {
		return errors.New("backend.base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute http(s) URL, got %q", raw)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be positive")
	}
	return nil
}

func (c *Config) validateTiming() error {
	if c.Guard.Cooldown < 0 {
		return errors.New("guard.cooldown must not be negative")
	}
	if c.Cooldown.TickInterval <= 0 {
		return errors.New("cooldown.tick_interval must be positive")
	}
	if c.Cache.DayStartTTL <= 0 {
		return errors.New("cache.day_start_ttl must be positive")
	}
	if c.Sessions.IdleTimeout < 0 {
		return errors.New("sessions.idle_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateBonus() error {
	if c.Bonus.RefreshInterval <= 0 {
		return errors.New("bonus.refresh_interval must be positive")
	}
	if c.Bonus.FetchTimeout < 0 {
		return errors.New("bonus.fetch_timeout must not be negative")
	}
	if len(c.Bonus.Steps) == 0 {
		return errors.New("bonus.steps must not be empty")
	}
	for _, s := range c.Bonus.Steps {
		if !bonus.StepID(s).Known() {
			return fmt.Errorf("bonus.steps contains unknown step %q", s)
		}
	}
	return nil
}

func (c *Config) validateSchedules() error {
	if _, err := cronParser.Parse(c.Cache.DayStartCron); err != nil {
		return fmt.Errorf("cache.day_start_cron: %w", err)
	}
	if _, err := cronParser.Parse(c.Sessions.PruneCron); err != nil {
		return fmt.Errorf("sessions.prune_cron: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("cache.timezone: %w", err)
	}
	return nil
}

// Location resolves Cache.Timezone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Cache.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Cache.Timezone)
}

// BonusSteps returns the configured step sequence.
func (c *Config) BonusSteps() []bonus.StepID {
	return bonus.ParseSteps(c.Bonus.Steps)
}

// Default returns default configuration
func Default() *Config {
	steps := make([]string, 0, len(bonus.DefaultSteps))
	for _, s := range bonus.DefaultSteps {
		steps = append(steps, string(s))
	}

	return &Config{
		API: apisrv.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: false,
		},
		Backend: BackendConfig{
			BaseURL: "https://api.novunt.com/api/v1",
			Timeout: 30 * time.Second,
		},
		Guard:    GuardConfig{Cooldown: 1500 * time.Millisecond},
		Cooldown: CooldownConfig{TickInterval: time.Second},
		Bonus: BonusConfig{
			RefreshInterval: bonus.DefaultRefreshInterval,
			FetchTimeout:    bonus.DefaultFetchTimeout,
			Steps:           steps,
		},
		Cache: CacheConfig{
			DayStartTTL:  5 * time.Minute,
			DayStartCron: "0 0 0 * * *",
			Timezone:     "UTC",
		},
		Sessions: SessionsConfig{
			IdleTimeout: 30 * time.Minute,
			PruneCron:   "0 * * * * *",
		},
	}
}
