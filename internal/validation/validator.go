// =============================================================================
// ledgersync - Validation
// =============================================================================
//
// This module performs the only schema checks ledgersync does: column-name
// presence and key hygiene. It does not validate data types or value ranges.
//
// VALIDATION STRATEGY:
//   1. Column presence: every required column must appear in the header row.
//      All missing columns are reported at once, together with the headers
//      that were found, and the caller stops before touching the ledger.
//   2. Key hygiene: rows with a blank key and keys occurring more than once
//      are counted. These are warnings; reconciliation drops blank keys and
//      resolves duplicates with the configured policy.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
)

// =============================================================================
// COLUMN PRESENCE
// =============================================================================

// RequireColumns checks that every column in required exists in the table.
//
// RETURNS:
//   - nil if all columns are present.
//   - A *errors.MissingColumnError naming every missing column otherwise.
func RequireColumns(table *types.Table, required ...string) error {
	var missing []string
	seen := make(map[string]bool, len(required))

	for _, col := range required {
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true

		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return errors.NewMissingColumnError(table.Source, missing, table.Columns())
	}
	return nil
}

// =============================================================================
// KEY HYGIENE
// =============================================================================

// KeyReport summarizes key problems found in a table.
type KeyReport struct {
	// Rows is the number of data rows inspected.
	Rows int

	// Blank is the number of rows whose normalized key is empty.
	Blank int

	// Duplicates lists keys that occur more than once, in first-seen order.
	Duplicates []string
}

// HasWarnings reports whether any key problem was found.
func (r KeyReport) HasWarnings() bool {
	return r.Blank > 0 || len(r.Duplicates) > 0
}

// String formats the report for console output.
func (r KeyReport) String() string {
	if !r.HasWarnings() {
		return fmt.Sprintf("%d rows, keys OK", r.Rows)
	}

	var parts []string
	if r.Blank > 0 {
		parts = append(parts, fmt.Sprintf("%d without key", r.Blank))
	}
	if len(r.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate keys: %s", strings.Join(r.Duplicates, ", ")))
	}
	return fmt.Sprintf("%d rows, %s", r.Rows, strings.Join(parts, "; "))
}

// CheckKeys inspects the key column of a table.
//
// PARAMETERS:
//   - table: The table to inspect.
//   - keyField: The key column name.
//   - normalize: The key normalization applied before comparison.
func CheckKeys(table *types.Table, keyField string, normalize func(any) string) KeyReport {
	report := KeyReport{Rows: len(table.Rows)}
	counts := make(map[string]int)

	for _, row := range table.Rows {
		key := normalize(row[keyField])
		if key == "" {
			report.Blank++
			continue
		}

		counts[key]++
		if counts[key] == 2 {
			report.Duplicates = append(report.Duplicates, key)
		}
	}

	return report
}
