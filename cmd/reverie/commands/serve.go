package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reveriehq/reverie/pkg/appctx"
	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/engines"
	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/logging"
	"github.com/reveriehq/reverie/pkg/server/app"
)

// newServeCommand creates the 'reverie serve' command.
//
// serve hosts the full job service in one process:
//   - HTTP API (enqueue jobs, poll status, queue stats)
//   - Health, readiness, and Prometheus metrics endpoints
//   - The four job queues with their worker pools
//
// It runs until interrupted (SIGINT/SIGTERM), then performs graceful
// shutdown: the HTTP server closes first, then each queue drains within its
// stop timeout.
func newServeCommand(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Reverie job service",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, ok := appctx.Config(cmd.Context())
			if !ok {
				return fmt.Errorf("configuration unavailable")
			}
			cfg := mgr.Get()

			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			if noAPI, _ := cmd.Flags().GetBool("no-api"); noAPI {
				cfg.Server.APIEnabled = false
			}

			logger := logging.NewLogger("server")

			journals, err := journal.NewSQLiteStore(cfg.Journal.DBPath)
			if err != nil {
				return fmt.Errorf("open journal store: %w", err)
			}

			deps := &app.Deps{
				Journals: journals,
				Engines:  engines.New(cfg.Engines, journals),
				Config:   mgr,
				Logger:   logger,
			}

			serverApp, err := app.New(cmd.Context(), cfg, deps)
			if err != nil {
				return fmt.Errorf("initialize server: %w", err)
			}

			// Watch the config file so log-level changes apply without a
			// restart. Best effort.
			if *configFile != "" {
				watcher, err := config.NewWatcher(mgr, *configFile, logging.NewLogger("config"))
				if err != nil {
					logger.Warn().Err(err).Msg("Config watcher unavailable")
				} else {
					watcher.OnReload = func(c config.Config) {
						logging.SetLevel(c.Log.Level)
					}
					go func() {
						if err := watcher.Start(cmd.Context()); err != nil {
							logger.Warn().Err(err).Msg("Config watcher stopped")
						}
					}()
				}
			}

			return serverApp.Run(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "Server listen address (overrides config)")
	cmd.Flags().Int("port", 0, "Server listen port (overrides config)")
	cmd.Flags().Bool("no-api", false, "Disable REST API endpoints")

	return cmd
}
