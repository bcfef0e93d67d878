// =============================================================================
// ledgersync - Main Entry Point
// =============================================================================
//
// ledgersync merges the daily broker exports into the customer ledger
// workbook.
//
// USAGE:
//   ledgersync run <job>     - Apply one job to the ledger
//   ledgersync run-all       - Run the configured job sequence
//   ledgersync diff <job>    - Write a change report, leave the ledger alone
//   ledgersync validate      - Check config, ledger and exports
//   ledgersync version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Job kinds, ledger access, export loading
//   - pkg/           : Shared errors and file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/ledgersync/cmd"
)

func main() {
	cmd.Execute()
}
