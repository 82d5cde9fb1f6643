// ABOUTME: Root cobra command: loads configuration, sets up logging and telemetry
// ABOUTME: Subcommands register themselves from their own files via init

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"greader-sync/bootstrap"
	"greader-sync/config"
	"greader-sync/telemetry"
)

const skipConfigAnnotation = "skip-config"

var (
	accountsFile string
	verbose      bool
	cfg          *config.Config
	logger       *slog.Logger
	appVersion   = "dev"

	telemetryShutdown telemetry.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:   "greader-sync",
	Short: "Keep local message stores in sync with Google Reader API servers",
	Long: `greader-sync mirrors feeds, labels and message state from Google Reader
compatible services (FreshRSS, Inoreader, The Old Reader, BazQux, Reedah and
self-hosted servers) into a local database.

Example usage:
  greader-sync serve                     # scheduler plus admin API
  greader-sync sync home                 # one cycle for the "home" account
  greader-sync tree home -o yaml         # print the feed tree
  greader-sync mark home read <id>...    # push a state change upstream`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return nil
		}
		return initConfig(cmd.Context())
	},
}

// Execute runs the CLI and flushes telemetry before returning
func Execute() error {
	err := rootCmd.Execute()
	if telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := telemetryShutdown(ctx); shutdownErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown OpenTelemetry: %v\n", shutdownErr)
		}
	}
	return err
}

// SetVersion sets the version string reported by the CLI
func SetVersion(v string) {
	appVersion = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&accountsFile, "accounts-file", "", "YAML file listing the accounts (overrides ACCOUNTS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func initConfig(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if accountsFile != "" {
		if err := os.Setenv("ACCOUNTS_FILE", accountsFile); err != nil {
			return err
		}
	}

	loaded, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verbose {
		loaded.LogLevel = "debug"
	}
	if loaded.ServiceVersion == "dev" {
		loaded.ServiceVersion = appVersion
	}
	cfg = loaded

	shutdown, err := telemetry.InitProvider(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize OpenTelemetry: %v\n", err)
		cfg.Telemetry.Enabled = false
	} else {
		telemetryShutdown = shutdown
	}

	logger = telemetry.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.ServiceName, cfg.Telemetry.Enabled)
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		"accounts", len(cfg.Accounts),
		"db_driver", cfg.Database.Driver,
		"otel_enabled", cfg.Telemetry.Enabled)
	return nil
}

// buildDependencies wires the configured accounts for a command
func buildDependencies(ctx context.Context) (*bootstrap.Dependencies, func(), error) {
	return bootstrap.BuildDependencies(ctx, cfg, logger)
}

// lookupAccount resolves an account argument
func lookupAccount(deps *bootstrap.Dependencies, id string) (*bootstrap.Account, error) {
	account, ok := deps.Account(id)
	if !ok {
		return nil, fmt.Errorf("unknown account %q", id)
	}
	return account, nil
}
