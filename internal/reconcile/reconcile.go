// =============================================================================
// ledgersync - Reconciler
// =============================================================================
//
// This module merges a freshly exported broker set (the "incoming" set) into
// one sheet of the customer ledger. Both sets are keyed by contract number.
//
// PARTITIONS:
//   - Updated : ledger rows whose key is also in the incoming set. The row is
//               kept as is, except for the refresh fields (balance, return
//               rate, ...) which are copied from the incoming row.
//   - Removed : ledger rows whose key disappeared from the export. The
//               contract is treated as ended and the row is dropped.
//   - Added   : incoming rows with an unknown key. They are mapped onto the
//               ledger columns and appended after the updated rows.
//
// STATUS RULE:
//   An optional single-step override. When the export says a contract is
//   cancelled and the ledger still shows it approved, the ledger status is
//   forced to the cancelled value. No other transition is ever made.
//
// =============================================================================

package reconcile

import (
	"fmt"

	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/validation"
)

// =============================================================================
// OPTIONS
// =============================================================================

// DuplicatePolicy selects which occurrence wins when a key repeats in a set.
type DuplicatePolicy string

const (
	// KeepFirst keeps the first occurrence of a repeated key.
	KeepFirst DuplicatePolicy = "first"

	// KeepLast keeps the last occurrence of a repeated key.
	KeepLast DuplicatePolicy = "last"
)

// StatusRule forces Field to To when the incoming value is To and the ledger
// value is From.
type StatusRule struct {
	Field string
	From  string
	To    string
}

// Options configures a Reconciler.
type Options struct {
	// KeyField is the contract number column. Required.
	KeyField string

	// NameField is the customer name column, used only in reports.
	NameField string

	// RefreshFields are overwritten from the incoming row on every match.
	// At least one is required.
	RefreshFields []string

	// Status is the optional status transition rule.
	Status *StatusRule

	// Duplicates resolves repeated keys in both sets. Defaults to KeepLast.
	Duplicates DuplicatePolicy

	// InsertAt is the position among updated rows where added rows go.
	// A negative value appends them at the end.
	InsertAt int
}

// Validate checks the options and fills defaults.
func (o *Options) Validate() error {
	if o.KeyField == "" {
		return fmt.Errorf("key field is required")
	}
	if len(o.RefreshFields) == 0 {
		return fmt.Errorf("at least one refresh field is required")
	}
	for _, f := range o.RefreshFields {
		if f == "" {
			return fmt.Errorf("refresh field names must not be empty")
		}
		if f == o.KeyField {
			return fmt.Errorf("key field %q cannot be a refresh field", f)
		}
	}

	if o.Status != nil {
		if o.Status.Field == "" || o.Status.From == "" || o.Status.To == "" {
			return fmt.Errorf("status rule needs field, from and to")
		}
	}

	switch o.Duplicates {
	case "":
		o.Duplicates = KeepLast
	case KeepFirst, KeepLast:
	default:
		return fmt.Errorf("unknown duplicate policy %q (use %q or %q)", o.Duplicates, KeepFirst, KeepLast)
	}

	return nil
}

// required returns every column both sets must carry.
func (o *Options) required() []string {
	cols := append([]string{o.KeyField}, o.RefreshFields...)
	if o.Status != nil {
		cols = append(cols, o.Status.Field)
	}
	return cols
}

// =============================================================================
// RESULT
// =============================================================================

// Entry identifies a contract in a report.
type Entry struct {
	Key  string
	Name string
}

// Result holds the partitions produced by Reconcile.
type Result struct {
	// Headers is the ledger header row; every output record uses it.
	Headers []string

	// Updated are the surviving ledger rows, in ledger order.
	Updated []types.Record

	// Added are the new rows, in incoming order.
	Added []types.Record

	// AddedEntries mirrors Added for reporting.
	AddedEntries []Entry

	// Removed are the ledger contracts that disappeared from the export.
	Removed []Entry

	// StatusChanges are the contracts whose status was forced.
	StatusChanges []Entry

	// Matched counts every key present in both sets, changed or not.
	Matched int

	// Changed counts matched rows whose output differs from the ledger row.
	Changed int

	insertAt int
}

// Rows returns the new ledger content: updated rows with added rows inserted
// at the configured position (appended by default).
func (r *Result) Rows() []types.Record {
	out := make([]types.Record, 0, len(r.Updated)+len(r.Added))

	at := r.insertAt
	if at < 0 || at > len(r.Updated) {
		at = len(r.Updated)
	}

	out = append(out, r.Updated[:at]...)
	out = append(out, r.Added...)
	out = append(out, r.Updated[at:]...)
	return out
}

// Table returns Rows as a table with the ledger headers.
func (r *Result) Table(source string) *types.Table {
	return &types.Table{Source: source, Headers: r.Headers, Rows: r.Rows()}
}

// HasChanges reports whether reconciliation changes the ledger at all.
func (r *Result) HasChanges() bool {
	return r.Changed > 0 || len(r.Added) > 0 || len(r.Removed) > 0
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler merges incoming sets into ledger sets.
type Reconciler struct {
	opts Options
}

// New validates opts and returns a Reconciler.
func New(opts Options) (*Reconciler, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reconcile options: %w", err)
	}
	return &Reconciler{opts: opts}, nil
}

// Options returns the validated options.
func (rc *Reconciler) Options() Options {
	return rc.opts
}

// Reconcile merges incoming into ledger. Neither table is modified.
//
// RETURNS:
//   - The partitions, or a *errors.MissingColumnError if a required column is
//     absent from either table. Nothing is produced in that case.
func (rc *Reconciler) Reconcile(ledger, incoming *types.Table) (*Result, error) {
	o := rc.opts

	if err := validation.RequireColumns(ledger, o.required()...); err != nil {
		return nil, err
	}
	if err := validation.RequireColumns(incoming, o.required()...); err != nil {
		return nil, err
	}

	ledgerIdx := Index(ledger.Rows, o.KeyField, o.Duplicates)
	incomingIdx := Index(incoming.Rows, o.KeyField, o.Duplicates)

	result := &Result{
		Headers:  append([]string(nil), ledger.Headers...),
		insertAt: o.InsertAt,
	}

	// Existing contracts: refresh or drop.
	for _, k := range ledgerIdx.Order {
		old := ledgerIdx.Rows[k]
		name := old[o.NameField]

		in, ok := incomingIdx.Rows[k]
		if !ok {
			result.Removed = append(result.Removed, Entry{Key: k, Name: name})
			continue
		}

		result.Matched++
		row := old.Clone()
		for _, f := range o.RefreshFields {
			row[f] = in[f]
		}

		if s := o.Status; s != nil && in[s.Field] == s.To && old[s.Field] == s.From {
			row[s.Field] = s.To
			result.StatusChanges = append(result.StatusChanges, Entry{Key: k, Name: name})
		}

		if differs(old, row, o.required()) {
			result.Changed++
		}
		result.Updated = append(result.Updated, row)
	}

	// New contracts: map onto the ledger schema.
	for _, k := range incomingIdx.Order {
		if _, ok := ledgerIdx.Rows[k]; ok {
			continue
		}

		in := incomingIdx.Rows[k]
		row := make(types.Record, len(ledger.Headers))
		for _, h := range ledger.Headers {
			if h == "" {
				continue
			}
			if v, ok := in[h]; ok {
				row[h] = v
			}
		}

		row[o.KeyField] = k
		for _, f := range o.RefreshFields {
			row[f] = in[f]
		}
		if o.Status != nil {
			row[o.Status.Field] = in[o.Status.Field]
		}

		result.Added = append(result.Added, row)
		result.AddedEntries = append(result.AddedEntries, Entry{Key: k, Name: in[o.NameField]})
	}

	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// KeyedRows is a keyed view over a row slice that keeps source order.
type KeyedRows struct {
	// Order lists each key once, at the position of its winning row.
	Order []string
	Rows  map[string]types.Record
}

// Index keys rows by normalized key under policy. Rows without a key are
// dropped. For a repeated key the winning occurrence keeps its own position
// in Order, so KeepLast places it where the last occurrence sits.
func Index(rows []types.Record, keyField string, policy DuplicatePolicy) KeyedRows {
	winner := make(map[string]int, len(rows))
	keys := make([]string, len(rows))

	for i, row := range rows {
		k := NormalizeKey(row[keyField])
		keys[i] = k
		if k == "" {
			continue
		}
		if _, seen := winner[k]; seen && policy == KeepFirst {
			continue
		}
		winner[k] = i
	}

	out := KeyedRows{Rows: make(map[string]types.Record, len(winner))}
	for i, k := range keys {
		if k == "" || winner[k] != i {
			continue
		}
		out.Order = append(out.Order, k)
		out.Rows[k] = rows[i]
	}
	return out
}

func differs(a, b types.Record, fields []string) bool {
	for _, f := range fields {
		if a[f] != b[f] {
			return true
		}
	}
	return false
}
