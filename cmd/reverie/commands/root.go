// Package commands builds the reverie CLI: the serve command hosting the
// job service, plus stats and version.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reveriehq/reverie/pkg/appctx"
	"github.com/reveriehq/reverie/pkg/config"
	"github.com/reveriehq/reverie/pkg/logging"
)

const cliExecutable = "reverie"

// NewCommand constructs the top-level reverie CLI command, wiring global
// flags and shared configuration loading.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Reverie background job service",
		Long: `Reverie processes video journal entries asynchronously: transcription,
emotion detection, HLS transcoding, and backup/restore, each on its own
in-memory work queue.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			cfg := mgr.Get()
			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			ctx := appctx.WithConfig(cmd.Context(), mgr)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCommand(&configFile))
	cmd.AddCommand(newStatsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}
