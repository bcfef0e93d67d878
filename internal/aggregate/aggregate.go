// =============================================================================
// ledgersync - Aggregation
// =============================================================================
//
// This module computes the summary figures pushed into the daily sheet:
// a filtered sum of an amount column, scaled into a secondary unit.
//
// FILTER MODES:
//   - code     : keep rows whose category code is one of Codes. Codes are
//                compared numerically, so "004", "4.0" and 4 all match 4.
//   - contains : keep rows whose category contains the Contains substring
//                (e.g. account types containing "연금").
//   - all      : keep every row.
//
// AMOUNTS:
//   Amount cells are parsed leniently. Everything except digits, '-' and '.'
//   is stripped ("1,000원" -> 1000) and unparseable values count as zero.
//
// =============================================================================

package aggregate

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/ginjaninja78/ledgersync/internal/reconcile"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/validation"
	"github.com/shopspring/decimal"
)

// Mode selects how a Filter matches rows.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeCode     Mode = "code"
	ModeContains Mode = "contains"
)

// Filter selects the rows that take part in a sum.
type Filter struct {
	Field    string
	Mode     Mode
	Codes    []string
	Contains string
}

// Validate checks the filter against its mode.
func (f Filter) Validate() error {
	switch f.Mode {
	case ModeAll, "":
		return nil
	case ModeCode:
		if f.Field == "" || len(f.Codes) == 0 {
			return fmt.Errorf("code filter needs a field and at least one code")
		}
	case ModeContains:
		if f.Field == "" || f.Contains == "" {
			return fmt.Errorf("contains filter needs a field and a substring")
		}
	default:
		return fmt.Errorf("unknown filter mode %q", f.Mode)
	}
	return nil
}

// Match reports whether a row passes the filter.
func (f Filter) Match(row types.Record) bool {
	switch f.Mode {
	case ModeCode:
		for _, c := range f.Codes {
			if SameCode(row[f.Field], c) {
				return true
			}
		}
		return false
	case ModeContains:
		return strings.Contains(row[f.Field], f.Contains)
	default:
		return true
	}
}

// =============================================================================
// PARSING
// =============================================================================

// ParseAmount parses a lenient amount. Unparseable input yields zero.
func ParseAmount(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SameCode compares two category codes, numerically when both are numbers.
func SameCode(a, b string) bool {
	a, b = reconcile.NormalizeKey(a), reconcile.NormalizeKey(b)
	if a == "" || b == "" {
		return false
	}
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA == nil && errB == nil {
		return da.Equal(db)
	}
	return a == b
}

// =============================================================================
// SUMS
// =============================================================================

// Sum adds amountField over the rows of table that pass the filter.
//
// RETURNS:
//   - The sum and the number of rows that matched.
//   - A *errors.MissingColumnError if the filter or amount column is absent.
func Sum(table *types.Table, filter Filter, amountField string) (decimal.Decimal, int, error) {
	if err := filter.Validate(); err != nil {
		return decimal.Zero, 0, err
	}

	required := []string{amountField}
	if filter.Mode == ModeCode || filter.Mode == ModeContains {
		required = append(required, filter.Field)
	}
	if err := validation.RequireColumns(table, required...); err != nil {
		return decimal.Zero, 0, err
	}

	total := decimal.Zero
	matched := 0
	for _, row := range table.Rows {
		if !filter.Match(row) {
			continue
		}
		matched++
		total = total.Add(ParseAmount(row[amountField]))
	}
	return total, matched, nil
}

// SumValues adds a list of lenient amounts.
func SumValues(values ...string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(ParseAmount(v))
	}
	return total
}

// Scale converts a sum into the secondary unit (divisor 1e8 for 억).
func Scale(sum decimal.Decimal, divisor decimal.Decimal) float64 {
	if divisor.IsZero() {
		divisor = decimal.NewFromInt(1)
	}
	f, _ := sum.Div(divisor).Float64()
	return f
}

// Display formats a sum as a won amount, e.g. "₩3,000".
func Display(sum decimal.Decimal) string {
	return money.New(sum.Round(0).IntPart(), money.KRW).Display()
}
