package api

import (
	"errors"
	"time"
)

// Config defines runtime parameters for the HTTP API server.
type Config struct {
	ListenAddr        string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`
	// CORSOrigins enables CORS when non-empty; "*" allows any origin.
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
}

// Validate checks the server parameters.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("api.listen_addr is required")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("api.shutdown_timeout must be positive")
	}
	return nil
}
