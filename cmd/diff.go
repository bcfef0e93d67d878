package cmd

import (
	"fmt"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/jobs"
	"github.com/spf13/cobra"
)

// diffOut is the report path. Empty means report_dir with a generated name.
var diffOut string

// diffCmd represents the 'diff' command.
var diffCmd = &cobra.Command{
	Use:   "diff <job>",
	Short: "Write a change report without touching the ledger",
	Long: `The diff command compares the job's export with the ledger sheet and
writes a report workbook listing changed cells, added contracts and removed
contracts. The ledger is read but never saved.

The job must be of kind diff.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, job, err := loadJob(args[0])
		if err != nil {
			return err
		}
		if job.Kind != config.KindDiff {
			return fmt.Errorf("job %s is a %s job, not a diff job", job.Name, job.Kind)
		}

		return runJob(cmd, cfg, job, func(env *jobs.Env) {
			env.ReportPath = diffOut
		})
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVar(&diffOut, "out", "", "Path of the report workbook")
}
