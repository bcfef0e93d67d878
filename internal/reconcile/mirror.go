package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/validation"
)

// MirrorOptions configures Mirror.
type MirrorOptions struct {
	// KeyField is the contract number column. Required.
	KeyField string

	// NameField is the customer name column, used only in reports.
	NameField string

	// PreserveFields are ledger-only columns (remarks) carried over by key.
	PreserveFields []string

	// KeyPrefix keeps only keys starting with this prefix, on both sides.
	KeyPrefix string

	// SortByKey orders the output by key instead of incoming order.
	SortByKey bool

	// Duplicates resolves repeated keys. Defaults to KeepLast.
	Duplicates DuplicatePolicy
}

// MirrorResult is the outcome of Mirror.
type MirrorResult struct {
	Headers []string
	Rows    []types.Record
	Added   []Entry
	Removed []Entry
	Matched int
}

// Table returns the mirrored rows as a table with the ledger headers.
func (m *MirrorResult) Table(source string) *types.Table {
	return &types.Table{Source: source, Headers: m.Headers, Rows: m.Rows}
}

// Mirror replaces the ledger content with the incoming set. The export is
// authoritative for every column except PreserveFields and columns with a
// blank ledger header, which keep the ledger value of the same contract
// (blank for new contracts).
func Mirror(ledger, incoming *types.Table, opts MirrorOptions) (*MirrorResult, error) {
	if opts.KeyField == "" {
		return nil, fmt.Errorf("invalid mirror options: key field is required")
	}
	switch opts.Duplicates {
	case "":
		opts.Duplicates = KeepLast
	case KeepFirst, KeepLast:
	default:
		return nil, fmt.Errorf("invalid mirror options: unknown duplicate policy %q", opts.Duplicates)
	}

	if err := validation.RequireColumns(ledger, append([]string{opts.KeyField}, opts.PreserveFields...)...); err != nil {
		return nil, err
	}
	if err := validation.RequireColumns(incoming, opts.KeyField); err != nil {
		return nil, err
	}

	keep := func(rows []types.Record) []types.Record {
		if opts.KeyPrefix == "" {
			return rows
		}
		var out []types.Record
		for _, r := range rows {
			if strings.HasPrefix(NormalizeKey(r[opts.KeyField]), opts.KeyPrefix) {
				out = append(out, r)
			}
		}
		return out
	}

	ledgerIdx := Index(keep(ledger.Rows), opts.KeyField, opts.Duplicates)
	incomingIdx := Index(keep(incoming.Rows), opts.KeyField, opts.Duplicates)

	preserved := make(map[string]bool, len(opts.PreserveFields))
	for _, f := range opts.PreserveFields {
		preserved[f] = true
	}

	order := append([]string(nil), incomingIdx.Order...)
	if opts.SortByKey {
		sort.Strings(order)
	}

	result := &MirrorResult{Headers: append([]string(nil), ledger.Headers...)}

	for _, k := range order {
		in := incomingIdx.Rows[k]
		old, existed := ledgerIdx.Rows[k]

		row := make(types.Record, len(ledger.Headers))
		for i, h := range ledger.Headers {
			if h == "" {
				// Unnamed ledger columns belong to the ledger, like preserved ones.
				if existed {
					f := types.UnnamedColumn(i)
					row[f] = old[f]
				}
				continue
			}
			if preserved[h] {
				if existed {
					row[h] = old[h]
				}
				continue
			}
			if v, ok := in[h]; ok {
				row[h] = v
			}
		}
		row[opts.KeyField] = k

		if existed {
			result.Matched++
		} else {
			result.Added = append(result.Added, Entry{Key: k, Name: in[opts.NameField]})
		}
		result.Rows = append(result.Rows, row)
	}

	for _, k := range ledgerIdx.Order {
		if _, ok := incomingIdx.Rows[k]; !ok {
			result.Removed = append(result.Removed, Entry{Key: k, Name: ledgerIdx.Rows[k][opts.NameField]})
		}
	}
	if opts.SortByKey {
		sort.SliceStable(result.Removed, func(i, j int) bool { return result.Removed[i].Key < result.Removed[j].Key })
	}

	return result, nil
}
