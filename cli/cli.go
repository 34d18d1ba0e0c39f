// Package cli wires registered flows into a runnable command tree. A job
// binary registers its flows and hands the registry to Execute:
//
//	reg := runtime.NewRegistry()
//	reg.Register("labs", Labs)
//	cli.Execute(reg)
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"batchflow/handlers"
	"batchflow/logger"
	"batchflow/runtime"
)

// New builds the root command for a binary whose flows live in reg.
func New(reg *runtime.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:   "batchflow",
		Short: "Run batch data flows",
		Long: `Runs the flows registered by this binary. Each flow loads its input
assets, executes its tasks, and writes its output assets as configured in the
settings file.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(reg), newListCmd(reg))
	return root
}

// Execute runs the command tree and exits non-zero on error.
func Execute(reg *runtime.Registry) {
	if err := New(reg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRunCmd(reg *runtime.Registry) *cobra.Command {
	var (
		settingsPath string
		noLogging    bool
		debug        bool
	)

	cmd := &cobra.Command{
		Use:   "run <flow-id>",
		Short: "Run a registered flow",
		Long: `Run executes one registered flow against the settings file.

Example:
  labs run labs
  labs run labs --settings deploy/settings.yaml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := handlers.LoadConfig(settingsPath)
			if err != nil {
				return err
			}

			settings := handlers.NewFileSettings(cfg)
			if err := settings.ConnectSQL(cmd.Context()); err != nil {
				return err
			}
			defer settings.Close()

			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}

			// One stream for banners and failure reports, so a CI grep
			// sees both. Defaults to stdout, same as logger.Default.
			ctx := runtime.NewContext(
				runtime.WithSettings(settings),
				runtime.WithLogger(logger.New(cmd.OutOrStdout(), &logger.Options{Level: level})),
			)
			ctx.SetNoLogging(noLogging)

			return reg.Run(ctx, args[0])
		},
	}

	cmd.Flags().StringVar(&settingsPath, "settings", "settings.yaml", "Path to the settings file")
	cmd.Flags().BoolVar(&noLogging, "no-logging", false, "Suppress all diagnostics output")
	cmd.Flags().BoolVar(&debug, "debug", false, "Show debug-level diagnostics")

	return cmd
}

func newListCmd(reg *runtime.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered flows",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, id := range reg.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		},
	}
}
