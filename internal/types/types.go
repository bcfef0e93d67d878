// =============================================================================
// ledgersync - Shared Types
// =============================================================================
//
// This package contains the tabular types passed between modules. Types
// defined here are used by:
//   - workbook   (sheets are read into and written from Tables)
//   - source     (broker exports are parsed into Tables)
//   - reconcile  (ledger and incoming sets are Tables)
//   - diff, aggregate, transform, jobs
//
// =============================================================================

package types

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one row of a sheet or export, keyed by normalized header name.
// Values are carried as text; coercion happens when writing cells back.
type Record map[string]string

// Get returns the value of a field, or "" if the field is absent.
func (r Record) Get(field string) string {
	return r[field]
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether every value is blank.
func (r Record) IsEmpty() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// TABLE
// =============================================================================

// Table is an ordered set of records sharing one header row.
type Table struct {
	// Source names where the table came from (file path or sheet name).
	// Used in error messages.
	Source string

	// Headers are the normalized column names in sheet order.
	// Blank header cells are kept as "" so positions line up with columns;
	// their cells are stored in each Record under UnnamedColumn(i).
	Headers []string

	// Rows are the data rows in sheet order.
	Rows []Record
}

// HasColumn reports whether the header row contains name.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// ColumnIndex returns the 0-based position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Headers {
		if h != "" && h == name {
			return i
		}
	}
	return -1
}

// Columns returns the non-blank headers.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.Headers))
	for _, h := range t.Headers {
		if h != "" {
			cols = append(cols, h)
		}
	}
	return cols
}

// Values returns the row as a slice aligned with Headers.
func (t *Table) Values(r Record) []string {
	out := make([]string, len(t.Headers))
	for i := range t.Headers {
		out[i] = r[t.Field(i)]
	}
	return out
}

// Field returns the record key of column i: its header, or UnnamedColumn(i)
// when the header cell is blank.
func (t *Table) Field(i int) string {
	if h := t.Headers[i]; h != "" {
		return h
	}
	return UnnamedColumn(i)
}

// unnamedPrefix cannot occur in a normalized header.
const unnamedPrefix = "\x00col:"

// UnnamedColumn is the record key of the cells under the blank header at
// 0-based position i. It keeps those cells attached to their row.
func UnnamedColumn(i int) string {
	return unnamedPrefix + strconv.Itoa(i)
}

// =============================================================================
// HEADER NORMALIZATION
// =============================================================================

// headerNoise are fragments broker exports leave inside header cells.
var headerNoise = []string{"_x000D_", "\r", "\n", "\t", " ", "\u00a0"}

// NormalizeHeader canonicalizes a header cell: NFC form, with line breaks,
// tabs and every space removed. "계약 번호\n" and "계약번호" compare equal.
func NormalizeHeader(s string) string {
	s = norm.NFC.String(s)
	for _, token := range headerNoise {
		s = strings.ReplaceAll(s, token, "")
	}
	return s
}

// NormalizeHeaders applies NormalizeHeader to each header.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = NormalizeHeader(h)
	}
	return out
}
