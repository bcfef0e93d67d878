// =============================================================================
// ledgersync - Diff Report Writer
// =============================================================================
//
// This module writes the outcome of a read-only diff job to a new workbook,
// so the operator can review what a merge would change before running it.
//
// REPORT STRUCTURE:
//   변경된_셀           one row per changed cell: key, name, 컬럼, 기존값, 신규값
//   추가된_계약번호     export rows whose key is not in the ledger
//   삭제된_계약번호     ledger rows whose key is not in the export
//   신규기준_전체데이터 the export as compared
//   기존_데이터         the ledger sheet as compared
//   변경적용_데이터     the ledger sheet with every changed cell applied
//
// Each sheet has a bold, frozen header row. The ledger itself is never
// written by this module.
//
// =============================================================================

package report

import (
	"fmt"
	"path/filepath"

	"github.com/ginjaninja78/ledgersync/internal/diff"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/workbook"
	"github.com/ginjaninja78/ledgersync/pkg/utils"
	"github.com/xuri/excelize/v2"
)

// Sheet names of a diff report.
const (
	SheetChanges = "변경된_셀"
	SheetAdded   = "추가된_계약번호"
	SheetRemoved = "삭제된_계약번호"
	SheetNew     = "신규기준_전체데이터"
	SheetOld     = "기존_데이터"
	SheetApplied = "변경적용_데이터"
)

// Column headers of the changes sheet, after the key column.
const (
	ColumnName  = "고객명"
	ColumnField = "컬럼"
	ColumnOld   = "기존값"
	ColumnNew   = "신규값"
)

// FileNameFormat is the name pattern of generated reports.
const FileNameFormat = "{job}_diff_{timestamp}_{uuid}"

// =============================================================================
// REPORT INPUT
// =============================================================================

// Input is everything a report shows.
type Input struct {
	Report *diff.Report

	// New is the export, Old the ledger sheet it was compared against.
	New *types.Table
	Old *types.Table

	// Applied is Old with the changes applied. Optional.
	Applied *types.Table

	// TextFields are written as text in every data sheet.
	TextFields []string
}

// =============================================================================
// WRITING FUNCTIONS
// =============================================================================

// NewPath returns a unique report path in dir for job.
func NewPath(dir, job string) string {
	return filepath.Join(dir, utils.GenerateOutputFileName(FileNameFormat, map[string]string{"job": job}, ".xlsx"))
}

// Write creates the report workbook at path.
//
// PARAMETERS:
//   - path: The report file. Its directory is created if needed.
//   - in: The diff report and the tables it was computed from.
//
// RETURNS:
//   - An error if the workbook cannot be built or saved.
func Write(path string, in Input) error {
	if in.Report == nil || in.New == nil || in.Old == nil {
		return fmt.Errorf("report input is incomplete")
	}
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	wb := workbook.New(path)
	defer wb.Close()

	key := in.Report.KeyField
	sheets := []struct {
		name  string
		table *types.Table
	}{
		{SheetChanges, changesTable(in.Report)},
		{SheetAdded, &types.Table{Headers: in.New.Headers, Rows: in.Report.Added}},
		{SheetRemoved, &types.Table{Headers: in.Old.Headers, Rows: in.Report.Removed}},
		{SheetNew, in.New},
		{SheetOld, in.Old},
	}
	if in.Applied != nil {
		sheets = append(sheets, struct {
			name  string
			table *types.Table
		}{SheetApplied, in.Applied})
	}

	layout := workbook.Layout{HeaderRow: 1, FirstColumn: 1, TextFields: append([]string{key}, in.TextFields...)}
	for _, s := range sheets {
		if err := writeTable(wb, s.name, layout, s.table); err != nil {
			return err
		}
	}

	f := wb.File()
	if idx, err := f.GetSheetIndex("Sheet1"); err == nil && idx >= 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}
	if idx, err := f.GetSheetIndex(SheetChanges); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	return wb.Save()
}

// changesTable flattens the cell changes into rows.
func changesTable(r *diff.Report) *types.Table {
	key := r.KeyField
	t := &types.Table{
		Source:  SheetChanges,
		Headers: []string{key, ColumnName, ColumnField, ColumnOld, ColumnNew},
	}
	for _, c := range r.Changes {
		t.Rows = append(t.Rows, types.Record{
			key:         c.Key,
			ColumnName:  c.Name,
			ColumnField: c.Field,
			ColumnOld:   c.Old,
			ColumnNew:   c.New,
		})
	}
	return t
}

func writeTable(wb *workbook.Workbook, sheet string, layout workbook.Layout, table *types.Table) error {
	if err := wb.WriteHeader(sheet, layout, table.Headers); err != nil {
		return err
	}
	if err := wb.WriteSheet(sheet, layout, table); err != nil {
		return err
	}
	return styleHeader(wb.File(), sheet, len(table.Headers))
}

// styleHeader makes the header row bold and keeps it visible on scroll.
func styleHeader(f *excelize.File, sheet string, width int) error {
	if width == 0 {
		return nil
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(width, 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
