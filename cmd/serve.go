package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"greader-sync/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler and the admin HTTP server",
	Long: `Run scheduled sync cycles for every configured account and serve
/healthz, /metrics and, when ADMIN_TOKEN_SECRET is set, the admin API.
SIGINT or SIGTERM triggers a graceful shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deps, cleanup, err := buildDependencies(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		logger.Info("Starting greader-sync",
			"version", cfg.ServiceVersion,
			"accounts", len(deps.Accounts),
			"sync_interval", cfg.Sync.Interval,
			"listen_addr", cfg.HTTP.ListenAddr)

		return bootstrap.Serve(ctx, deps, cfg.Telemetry.Enabled)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
