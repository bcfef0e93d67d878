// =============================================================================
// ledgersync - Run Command
// =============================================================================
//
// This file defines the 'run' command, which applies one configured job to
// the ledger workbook.
//
// COMMAND USAGE:
//   ledgersync run <job> [flags]
//
// FLAGS:
//   --dry-run : Do everything except saving the ledger and archiving
//   --file    : Use this export instead of discovering the newest one
//
// PROCESSING PIPELINE:
//   1. Load configuration
//   2. Resolve the ledger path
//   3. Run the job (see internal/jobs)
//   4. Print the outcome
//
// =============================================================================

package cmd

import (
	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/jobs"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun skips the ledger save.
var dryRun bool

// inputFile overrides export discovery.
var inputFile string

// =============================================================================
// RUN COMMAND DEFINITION
// =============================================================================

// runCmd represents the 'run' command.
var runCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Apply one job to the ledger",
	Long: `The run command locates the job's export in the download folder, loads
it, and applies it to the ledger according to the job kind:

  merge      refresh matched rows, add new contracts, mark missing ones
  mirror     replace the sheet with the export, keeping preserved columns
  snapshot   copy a column block of the export into the sheet
  derive     copy filtered rows of another ledger sheet, sorted by date
  aggregate  write filtered sums into summary cells
  cells      copy fixed cells of the export into summary cells
  diff       write a change report (same as 'ledgersync diff')

On success the ledger is saved in place and the export is moved to
archive_dir when one is configured. On error the ledger is not saved and
the export stays where it was.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, job, err := loadJob(args[0])
		if err != nil {
			return err
		}
		return runJob(cmd, cfg, job, func(env *jobs.Env) {
			env.DryRun = dryRun
			env.InputFile = inputFile
		})
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Run the job without saving the ledger",
	)
	runCmd.Flags().StringVar(
		&inputFile,
		"file",
		"",
		"Path to the export to use instead of the newest one",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// loadJob loads the configuration and looks up the named job.
func loadJob(name string) (*config.Config, *config.Job, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	job, err := cfg.Job(name)
	if err != nil {
		return nil, nil, err
	}
	return cfg, job, nil
}

// runJob runs job with the environment adjusted by mutate.
func runJob(cmd *cobra.Command, cfg *config.Config, job *config.Job, mutate func(*jobs.Env)) error {
	ledger, err := resolveLedger(cmd, cfg)
	if err != nil {
		return err
	}

	env := jobs.NewEnv(cfg, ledger)
	if mutate != nil {
		mutate(&env)
	}

	result := jobs.New(job, env).Run(cmd.Context())
	result.Print(cmd.OutOrStdout())
	if !result.Success {
		return result.Error
	}
	return nil
}
