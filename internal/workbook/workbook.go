// =============================================================================
// ledgersync - Workbook Store
// =============================================================================
//
// This module is the only code that touches spreadsheet files. The ledger,
// the xlsx broker exports and the diff reports all go through it.
//
// SHEET LAYOUT:
//   A table occupies a sheet from a header row downward, starting at a first
//   column. Both are 1-based, as Excel shows them:
//
//   | row HeaderRow   | 계약번호 | 고객명 | 계좌자산 | ... |   <- headers
//   | row HeaderRow+1 | PLVA001  | 김     | 1000     | ... |   <- data
//
//   Header text is normalized on read (spaces, CR/LF and "_x000D_" removed).
//   Cells are read raw: numbers unformatted, dates as serial numbers.
//
// WRITING:
//   Rows are written positionally under the header. Rows left over from the
//   previous content are cleared, keeping cell styles. Numeric-looking text
//   is written as a number unless its column is a text field or the text
//   has a leading zero (account numbers, padded codes).
//
// =============================================================================

package workbook

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Layout places a table on a sheet.
type Layout struct {
	// HeaderRow is the 1-based header row. Data starts on the next row.
	HeaderRow int

	// FirstColumn is the 1-based column of the first header.
	FirstColumn int

	// TextFields are always written as text.
	TextFields []string
}

// DefaultLayout is a table with headers in row 1 starting at column A.
var DefaultLayout = Layout{HeaderRow: 1, FirstColumn: 1}

func (l Layout) normalized() Layout {
	if l.HeaderRow < 1 {
		l.HeaderRow = 1
	}
	if l.FirstColumn < 1 {
		l.FirstColumn = 1
	}
	return l
}

// Store is a tabular workbook.
type Store interface {
	Path() string
	Sheets() []string
	HasSheet(sheet string) bool
	ReadSheet(sheet string, layout Layout) (*types.Table, error)
	WriteSheet(sheet string, layout Layout, table *types.Table) error
	WriteHeader(sheet string, layout Layout, headers []string) error
	GetCell(sheet, cell string) (string, error)
	SetCell(sheet, cell string, value any) error
	Save() error
	Close() error
}

// =============================================================================
// EXCELIZE IMPLEMENTATION
// =============================================================================

// Workbook is a Store backed by an excelize file.
type Workbook struct {
	file     *excelize.File
	path     string
	password string
}

var _ Store = (*Workbook)(nil)

// Open opens a workbook, decrypting it with password when not empty.
//
// RETURNS:
//   - The open workbook. The caller must Close it.
//   - A *errors.NotFoundError if the file does not exist, or the excelize
//     error (wrong password, locked file, corrupt zip) otherwise.
func Open(path, password string) (*Workbook, error) {
	var opts excelize.Options
	if password != "" {
		opts.Password = password
	}

	f, err := excelize.OpenFile(path, opts)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError("workbook", path)
		}
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{file: f, path: path, password: password}, nil
}

// New returns an empty workbook that will be written to path on Save.
func New(path string) *Workbook {
	return &Workbook{file: excelize.NewFile(), path: path}
}

// Path returns the file the workbook is saved to.
func (w *Workbook) Path() string {
	return w.path
}

// Sheets returns the sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

// HasSheet reports whether the workbook has the sheet.
func (w *Workbook) HasSheet(sheet string) bool {
	idx, err := w.file.GetSheetIndex(sheet)
	return err == nil && idx >= 0
}

// FirstSheet returns the name of the first sheet.
func (w *Workbook) FirstSheet() string {
	return w.file.GetSheetName(0)
}

// ReadSheet reads the table at layout on sheet.
//
// RETURNS:
//   - The table. Its Headers are normalized and span every column holding
//     a header or a value. Cells under a blank header are kept in the
//     record under types.UnnamedColumn. Rows that are blank across the
//     table are skipped.
//   - A *errors.NotFoundError if the sheet does not exist.
func (w *Workbook) ReadSheet(sheet string, layout Layout) (*types.Table, error) {
	layout = layout.normalized()
	if !w.HasSheet(sheet) {
		return nil, errors.NewNotFoundError("sheet", sheet, w.Sheets()...)
	}

	rows, err := w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", sheet, err)
	}

	table := &types.Table{Source: sheet}
	if len(rows) < layout.HeaderRow {
		return table, nil
	}

	first := layout.FirstColumn - 1
	data := rows[layout.HeaderRow:]

	// The table is as wide as the last column with a header or a value, so
	// cells under blank headers stay with their row.
	header := types.NormalizeHeaders(slice(rows[layout.HeaderRow-1], first))
	width := lastUsed(header, -1)
	for _, raw := range data {
		width = lastUsed(slice(raw, first), width)
	}
	width++
	for len(header) < width {
		header = append(header, "")
	}
	table.Headers = header[:width]

	for _, raw := range data {
		cells := slice(raw, first)
		record := make(types.Record, len(table.Headers))
		blank := true
		for i := range table.Headers {
			if i >= len(cells) {
				break
			}
			record[table.Field(i)] = cells[i]
			if strings.TrimSpace(cells[i]) != "" {
				blank = false
			}
		}
		if !blank {
			table.Rows = append(table.Rows, record)
		}
	}
	return table, nil
}

// WriteSheet writes table.Rows under the header row, column by column in
// table.Headers order starting at layout.FirstColumn. Columns with a blank
// header are written from the record's unnamed cells, so they move with
// their row. Old rows below the new data are cleared. A missing sheet is
// created.
func (w *Workbook) WriteSheet(sheet string, layout Layout, table *types.Table) error {
	layout = layout.normalized()
	if err := w.ensureSheet(sheet); err != nil {
		return err
	}

	existing, err := w.file.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read rows of %s: %w", sheet, err)
	}

	text := make(map[string]bool, len(layout.TextFields))
	for _, f := range layout.TextFields {
		text[types.NormalizeHeader(f)] = true
	}

	row := layout.HeaderRow
	for _, record := range table.Rows {
		row++
		for i, h := range table.Headers {
			cell, err := excelize.CoordinatesToCellName(layout.FirstColumn+i, row)
			if err != nil {
				return err
			}
			if err := w.file.SetCellValue(sheet, cell, CellValue(record[table.Field(i)], text[h])); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
			}
		}
	}

	for r := row + 1; r <= len(existing); r++ {
		width := len(table.Headers)
		if n := len(existing[r-1]) - (layout.FirstColumn - 1); n > width {
			width = n
		}
		for c := 0; c < width; c++ {
			cell, err := excelize.CoordinatesToCellName(layout.FirstColumn+c, r)
			if err != nil {
				return err
			}
			if err := w.file.SetCellValue(sheet, cell, nil); err != nil {
				return fmt.Errorf("failed to clear %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

// WriteHeader writes headers into the header row. A missing sheet is created.
func (w *Workbook) WriteHeader(sheet string, layout Layout, headers []string) error {
	layout = layout.normalized()
	if err := w.ensureSheet(sheet); err != nil {
		return err
	}

	cell, err := excelize.CoordinatesToCellName(layout.FirstColumn, layout.HeaderRow)
	if err != nil {
		return err
	}
	values := make([]any, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := w.file.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", sheet, err)
	}
	return nil
}

// GetCell returns the raw value of a cell.
func (w *Workbook) GetCell(sheet, cell string) (string, error) {
	if !w.HasSheet(sheet) {
		return "", errors.NewNotFoundError("sheet", sheet, w.Sheets()...)
	}
	v, err := w.file.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("failed to read %s!%s: %w", sheet, cell, err)
	}
	return v, nil
}

// SetCell writes one cell of an existing sheet.
func (w *Workbook) SetCell(sheet, cell string, value any) error {
	if !w.HasSheet(sheet) {
		return errors.NewNotFoundError("sheet", sheet, w.Sheets()...)
	}
	if err := w.file.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

// Save writes the workbook back to its path, re-encrypting it with the
// password it was opened with.
func (w *Workbook) Save() error {
	var opts excelize.Options
	if w.password != "" {
		opts.Password = w.password
	}
	if err := w.file.SaveAs(w.path, opts); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", w.path, err)
	}
	return nil
}

// Close releases the workbook without saving.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// File exposes the underlying excelize file for styling.
func (w *Workbook) File() *excelize.File {
	return w.file
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (w *Workbook) ensureSheet(sheet string) error {
	if w.HasSheet(sheet) {
		return nil
	}
	if _, err := w.file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return nil
}

// lastUsed returns the index of the last non-blank cell of row, or last
// when that is larger.
func lastUsed(row []string, last int) int {
	for i := len(row) - 1; i > last; i-- {
		if strings.TrimSpace(row[i]) != "" {
			return i
		}
	}
	return last
}

// slice returns row[from:], or nil when the row is shorter.
func slice(row []string, from int) []string {
	if from >= len(row) {
		return nil
	}
	return row[from:]
}
