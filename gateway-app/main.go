package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/novunt/client-core/gateway-app/config"
	"github.com/novunt/client-core/log"
)

const defaultConfigPath = "gateway-app/configs/config.yaml"

var cfgFile string

const banner = `
 _   _  _____     ___   _ _   _ _____
| \ | |/ _ \ \   / / | | | \ | |_   _|
|  \| | | | \ \ / /| | | |  \| | | |
| |\  | |_| |\ V / | |_| | |\  | | |
|_| \_|\___/  \_/   \___/|_| \_| |_|
        client core gateway`

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "novunt-gateway",
		Short:         "Novunt client core gateway",
		Long:          banner + "\n\nServes per-user withdrawal cooldowns, submit guards and bonus progress over HTTP.",
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP API (default)",
		RunE:  runServe,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE:  runConfig,
	}

	bonusCmd := &cobra.Command{
		Use:   "bonus-status",
		Short: "Fetch and print registration-bonus progress for one token",
		RunE:  runBonusStatus,
	}
	bonusCmd.Flags().String("token", "", "bearer token of the user (or NOVUNT_TOKEN)")

	root.AddCommand(serveCmd, versionCmd, configCmd, bonusCmd)

	// Global flags
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", defaultConfigPath, "config file path (empty for defaults and env only)")
	pf.String("log-level", "", "log level (trace, debug, info, warn, error)")
	pf.Bool("log-pretty", false, "enable pretty logging")

	// Server flags
	pf.String("listen-addr", "", "HTTP API listen address")
	pf.String("backend-url", "", "platform API base URL")
	pf.Duration("backend-timeout", 0, "platform API request timeout")

	// Timing flags
	pf.Duration("guard-cooldown", 0, "minimum spacing between accepted withdrawal submissions")
	pf.Duration("bonus-refresh", 0, "bonus status refresh interval")
	pf.Duration("idle-timeout", 0, "dispose user sessions idle this long")

	// Metrics flags
	pf.Bool("metrics", false, "enable metrics")

	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), banner)
	fmt.Fprintln(cmd.OutOrStdout())

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := log.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("go_version", runtime.Version()).
		Msg("Build information")

	log.Info().
		Str("config_file", cfgFile).
		Str("listen_addr", cfg.API.ListenAddr).
		Str("backend_url", cfg.Backend.BaseURL).
		Bool("metrics_enabled", cfg.Metrics.Enabled).
		Str("log_level", cfg.Log.Level).
		Msg("Configuration loaded")

	application, err := NewApp(cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run(cmd.Context())
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runBonusStatus(cmd *cobra.Command, _ []string) error {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("NOVUNT_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("--token or NOVUNT_TOKEN is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := log.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout+5*time.Second)
	defer cancel()

	return printBonusStatus(ctx, cmd.OutOrStdout(), cfg, log.Logger, token)
}

func printVersion(w io.Writer) {
	fmt.Fprintln(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Novunt Client Core Gateway\n")
	fmt.Fprintf(w, "Version:    %s\n", Version)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
	fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
	fmt.Fprintf(w, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if f := flags.Lookup("log-pretty"); f != nil && f.Changed {
		cfg.Log.Pretty, _ = flags.GetBool("log-pretty")
	}

	if f := flags.Lookup("listen-addr"); f != nil && f.Changed {
		cfg.API.ListenAddr, _ = flags.GetString("listen-addr")
	}
	if f := flags.Lookup("backend-url"); f != nil && f.Changed {
		cfg.Backend.BaseURL, _ = flags.GetString("backend-url")
	}
	if f := flags.Lookup("backend-timeout"); f != nil && f.Changed {
		cfg.Backend.Timeout, _ = flags.GetDuration("backend-timeout")
	}

	if f := flags.Lookup("guard-cooldown"); f != nil && f.Changed {
		cfg.Guard.Cooldown, _ = flags.GetDuration("guard-cooldown")
	}
	if f := flags.Lookup("bonus-refresh"); f != nil && f.Changed {
		cfg.Bonus.RefreshInterval, _ = flags.GetDuration("bonus-refresh")
	}
	if f := flags.Lookup("idle-timeout"); f != nil && f.Changed {
		cfg.Sessions.IdleTimeout, _ = flags.GetDuration("idle-timeout")
	}

	if f := flags.Lookup("metrics"); f != nil && f.Changed {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	}
}
