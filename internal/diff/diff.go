// Package diff compares two snapshots of a keyed sheet without modifying
// either. It backs the read-only report job: which cells changed, which
// contracts appeared and which disappeared.
package diff

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/ledgersync/internal/reconcile"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/tiendc/go-deepcopy"
)

// DefaultTolerance is the absolute tolerance used when both values are numeric.
var DefaultTolerance = decimal.New(1, -9)

// Options configures Compare.
type Options struct {
	KeyField   string
	NameField  string
	Duplicates reconcile.DuplicatePolicy

	// Tolerance is the largest absolute difference between two numeric values
	// still considered equal. Nil means DefaultTolerance; zero means exact.
	Tolerance *decimal.Decimal
}

// Change is one differing cell of a contract present in both snapshots.
type Change struct {
	Key   string
	Name  string
	Field string
	Old   string
	New   string
}

// Report is the outcome of Compare.
type Report struct {
	KeyField string

	// Fields are the compared columns: those of the new snapshot that also
	// exist in the old one, key excluded, in new-snapshot order.
	Fields []string

	Changes []Change

	// Added are records of the new snapshot whose key is absent from the old.
	Added []types.Record

	// Removed are records of the old snapshot whose key is absent from the new.
	Removed []types.Record

	// Matched is the number of keys present in both snapshots.
	Matched int
}

// HasDifferences reports whether the snapshots differ at all.
func (r *Report) HasDifferences() bool {
	return len(r.Changes) > 0 || len(r.Added) > 0 || len(r.Removed) > 0
}

// ChangedKeys returns the distinct keys with at least one change, in order.
func (r *Report) ChangedKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, c := range r.Changes {
		if !seen[c.Key] {
			seen[c.Key] = true
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Compare diffs old against new by key.
//
// Values are compared after trimming; an empty cell equals a missing one.
// When both values parse as decimals they are equal within the tolerance,
// otherwise they must match exactly.
func Compare(old, new *types.Table, opts Options) (*Report, error) {
	if opts.KeyField == "" {
		return nil, fmt.Errorf("invalid diff options: key field is required")
	}
	if opts.Duplicates == "" {
		opts.Duplicates = reconcile.KeepLast
	}
	tol := DefaultTolerance
	if opts.Tolerance != nil {
		tol = opts.Tolerance.Abs()
	}

	if err := validation.RequireColumns(old, opts.KeyField); err != nil {
		return nil, err
	}
	if err := validation.RequireColumns(new, opts.KeyField); err != nil {
		return nil, err
	}

	report := &Report{KeyField: opts.KeyField}
	for _, h := range new.Columns() {
		if h != opts.KeyField && old.HasColumn(h) {
			report.Fields = append(report.Fields, h)
		}
	}

	oldIdx := reconcile.Index(old.Rows, opts.KeyField, opts.Duplicates)
	newIdx := reconcile.Index(new.Rows, opts.KeyField, opts.Duplicates)

	for _, k := range newIdx.Order {
		n := newIdx.Rows[k]
		o, ok := oldIdx.Rows[k]
		if !ok {
			report.Added = append(report.Added, n)
			continue
		}

		report.Matched++
		for _, f := range report.Fields {
			ov, nv := clean(o[f]), clean(n[f])
			if !Equal(ov, nv, tol) {
				report.Changes = append(report.Changes, Change{
					Key: k, Name: n[opts.NameField], Field: f, Old: ov, New: nv,
				})
			}
		}
	}

	for _, k := range oldIdx.Order {
		if _, ok := newIdx.Rows[k]; !ok {
			report.Removed = append(report.Removed, oldIdx.Rows[k])
		}
	}

	return report, nil
}

// Apply returns a deep copy of old with every change of the report written
// into it. old is left untouched.
func (r *Report) Apply(old *types.Table) (*types.Table, error) {
	var out types.Table
	if err := deepcopy.Copy(&out, old); err != nil {
		return nil, fmt.Errorf("failed to copy table: %w", err)
	}

	pending := make(map[string][]Change)
	for _, c := range r.Changes {
		pending[c.Key] = append(pending[c.Key], c)
	}

	for _, row := range out.Rows {
		k := reconcile.NormalizeKey(row[r.KeyField])
		for _, c := range pending[k] {
			row[c.Field] = c.New
		}
	}
	return &out, nil
}

// Equal compares two cleaned values with a numeric tolerance.
func Equal(a, b string, tol decimal.Decimal) bool {
	if a == b {
		return true
	}
	da, errA := decimal.NewFromString(strings.ReplaceAll(a, ",", ""))
	db, errB := decimal.NewFromString(strings.ReplaceAll(b, ",", ""))
	if errA != nil || errB != nil {
		return false
	}
	return da.Sub(db).Abs().LessThanOrEqual(tol)
}

func clean(v string) string {
	return strings.TrimSpace(v)
}
