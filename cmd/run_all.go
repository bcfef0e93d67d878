// =============================================================================
// ledgersync - Run-All Command
// =============================================================================
//
// This file defines the 'run-all' command, which runs the configured job
// sequence. Each job runs as its own `ledgersync run <job>` process with the
// same global flags.
//
// COMMAND USAGE:
//   ledgersync run-all
//
// EXIT STATUS:
//   0 when every job succeeded, 1 otherwise.
//
// =============================================================================

package cmd

import (
	"github.com/ginjaninja78/ledgersync/internal/orchestrator"
	"github.com/spf13/cobra"
)

// runAllCmd represents the 'run-all' command.
var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Run every job of the configured sequence",
	Long: `The run-all command runs the jobs listed under 'sequence' (or every job,
in configuration order) one at a time. With stop_on_error (the default)
it stops at the first failing job. A run log is written to report_dir.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		exec := &orchestrator.ProcessExecutor{
			Args:   forwardedFlags(),
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
		}
		summary := orchestrator.New(exec, orchestrator.Options{
			StopOnError: cfg.ShouldStopOnError(),
			LogDir:      cfg.ReportDir,
			Out:         cmd.OutOrStdout(),
		}).Run(cmd.Context(), cfg.RunSequence())

		return summary.Err()
	},
}

func init() {
	rootCmd.AddCommand(runAllCmd)
}
