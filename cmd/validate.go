// =============================================================================
// ledgersync - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks everything a run
// would need without changing anything.
//
// CHECKS:
//   1. The configuration file parses and passes validation
//   2. The ledger workbook can be found and opened
//   3. Every sheet and column the jobs use exists in the ledger
//   4. Each job's export can be found and has the columns it needs,
//      with key warnings for blank or duplicate contract numbers
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/ginjaninja78/ledgersync/internal/jobs"
	"github.com/ginjaninja78/ledgersync/internal/workbook"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/spf13/cobra"
)

// validateCmd represents the 'validate' command.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, the ledger and the exports",
	Long: `The validate command loads the configuration, opens the ledger, and
checks each job's sheets, columns and export without saving anything.
Missing exports are reported but do not fail validation; everything else
does.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Configuration: %d job(s)\n", len(cfg.Jobs))

		ledger, err := resolveLedger(cmd, cfg)
		if err != nil {
			return err
		}
		env := jobs.NewEnv(cfg, ledger)

		store, err := workbook.OpenWithRetry(cmd.Context(), env.Retry, ledger, env.Password)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		problems := jobs.CheckLedger(store, cfg.Jobs)
		store.Close()

		if len(problems) == 0 {
			fmt.Fprintln(out, "✓ Ledger sheets and columns")
		}
		for _, p := range problems {
			fmt.Fprintf(out, "✗ %v\n", p)
		}

		failed := len(problems)
		for i := range cfg.Jobs {
			job := &cfg.Jobs[i]
			check := jobs.New(job, env).Inspect(cmd.Context())

			switch {
			case check.Err != nil && errors.IsNoInputFile(check.Err):
				fmt.Fprintf(out, "- %s: %v\n", job.Name, check.Err)
			case check.Err != nil:
				failed++
				fmt.Fprintf(out, "✗ %s: %v\n", job.Name, check.Err)
			case check.InputFile == "":
				fmt.Fprintf(out, "✓ %s (%s)\n", job.Name, job.Kind)
			default:
				fmt.Fprintf(out, "✓ %s (%s): %s", job.Name, job.Kind, check.InputFile)
				if check.Rows > 0 {
					fmt.Fprintf(out, ", %d rows", check.Rows)
				}
				fmt.Fprintln(out)
				if check.Keys != nil && check.Keys.HasWarnings() {
					fmt.Fprintf(out, "    warning: %s\n", check.Keys)
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("validation failed: %d problem(s)", failed)
		}
		fmt.Fprintln(out, "Configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
