package jobs

import (
	"context"
	"fmt"
	"sort"

	"github.com/ginjaninja78/ledgersync/internal/aggregate"
	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/diff"
	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/internal/reconcile"
	"github.com/ginjaninja78/ledgersync/internal/report"
	"github.com/ginjaninja78/ledgersync/internal/source"
	"github.com/ginjaninja78/ledgersync/internal/transform"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/validation"
	"github.com/ginjaninja78/ledgersync/internal/workbook"
	"github.com/shopspring/decimal"
)

// checkIncoming verifies the export carries every column the job reads.
func checkIncoming(job *config.Job, incoming *types.Table) error {
	var required []string
	switch job.Kind {
	case config.KindMerge:
		required = append([]string{job.KeyField}, job.RefreshFields...)
		if job.Status != nil {
			required = append(required, job.Status.Field)
		}
	case config.KindMirror, config.KindDiff:
		required = []string{job.KeyField}
	case config.KindSnapshot:
		required = []string{job.FromField, job.ToField}
	case config.KindAggregate:
		for _, t := range job.Targets {
			required = append(required, t.AmountField)
			if m := aggregate.Mode(t.Filter.Mode); m == aggregate.ModeCode || m == aggregate.ModeContains {
				required = append(required, t.Filter.Field)
			}
		}
	}
	return validation.RequireColumns(incoming, unique(required)...)
}

// warnKeys logs blank and repeated keys of a keyed table.
func warnKeys(ctx context.Context, table *types.Table, keyField string) {
	rep := validation.CheckKeys(table, keyField, reconcile.NormalizeKey)
	if rep.HasWarnings() {
		logging.FromContext(ctx).Warn().Str("table", table.Source).Msg(rep.String())
	}
}

// =============================================================================
// KEYED JOBS
// =============================================================================

func (r *Runner) merge(ctx context.Context, store workbook.Store, incoming *types.Table, result *Result) error {
	job := r.job
	ledger, err := store.ReadSheet(job.Sheet, r.layout())
	if err != nil {
		return err
	}
	result.Stats.LedgerRows = len(ledger.Rows)
	warnKeys(ctx, incoming, job.KeyField)

	opts := reconcile.Options{
		KeyField:      job.KeyField,
		NameField:     job.NameField,
		RefreshFields: job.RefreshFields,
		Duplicates:    reconcile.DuplicatePolicy(job.Duplicates),
		InsertAt:      -1,
	}
	if job.InsertAt != nil {
		opts.InsertAt = *job.InsertAt
	}
	if s := job.Status; s != nil {
		opts.Status = &reconcile.StatusRule{Field: s.Field, From: s.From, To: s.To}
	}

	rc, err := reconcile.New(opts)
	if err != nil {
		return err
	}
	res, err := rc.Reconcile(ledger, incoming)
	if err != nil {
		return err
	}

	out := res.Table(job.Sheet)
	if err := store.WriteSheet(job.Sheet, r.layout(), out); err != nil {
		return err
	}

	result.Stats.WrittenRows = len(out.Rows)
	result.Stats.Matched = res.Matched
	result.Stats.Changed = res.Changed
	result.Stats.Added = res.AddedEntries
	result.Stats.Removed = res.Removed
	result.Stats.StatusChanges = res.StatusChanges
	return nil
}

func (r *Runner) mirror(ctx context.Context, store workbook.Store, incoming *types.Table, result *Result) error {
	job := r.job
	ledger, err := store.ReadSheet(job.Sheet, r.layout())
	if err != nil {
		return err
	}
	result.Stats.LedgerRows = len(ledger.Rows)
	warnKeys(ctx, incoming, job.KeyField)

	res, err := reconcile.Mirror(ledger, incoming, reconcile.MirrorOptions{
		KeyField:       job.KeyField,
		NameField:      job.NameField,
		PreserveFields: job.PreserveFields,
		KeyPrefix:      job.KeyPrefix,
		SortByKey:      job.SortByKey,
		Duplicates:     reconcile.DuplicatePolicy(job.Duplicates),
	})
	if err != nil {
		return err
	}

	if err := store.WriteSheet(job.Sheet, r.layout(), res.Table(job.Sheet)); err != nil {
		return err
	}

	result.Stats.WrittenRows = len(res.Rows)
	result.Stats.Matched = res.Matched
	result.Stats.Added = res.Added
	result.Stats.Removed = res.Removed
	return nil
}

func (r *Runner) diff(ctx context.Context, store workbook.Store, incoming *types.Table, result *Result) error {
	job := r.job
	old, err := store.ReadSheet(job.Sheet, r.layout())
	if err != nil {
		return err
	}
	result.Stats.LedgerRows = len(old.Rows)

	opts := diff.Options{
		KeyField:   job.KeyField,
		NameField:  job.NameField,
		Duplicates: reconcile.DuplicatePolicy(job.Duplicates),
	}
	if job.Tolerance != "" {
		tol, err := decimal.NewFromString(job.Tolerance)
		if err != nil {
			return fmt.Errorf("invalid tolerance %q: %w", job.Tolerance, err)
		}
		opts.Tolerance = &tol
	}

	rep, err := diff.Compare(old, incoming, opts)
	if err != nil {
		return err
	}
	applied, err := rep.Apply(old)
	if err != nil {
		return err
	}

	path := r.env.ReportPath
	if path == "" {
		path = report.NewPath(r.env.ReportDir, job.Name)
	}
	if err := report.Write(path, report.Input{
		Report:     rep,
		New:        incoming,
		Old:        old,
		Applied:    applied,
		TextFields: job.TextFields,
	}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	result.ReportFile = path

	result.Stats.Matched = rep.Matched
	result.Stats.Changed = len(rep.ChangedKeys())
	result.Stats.CellChanges = len(rep.Changes)
	result.Stats.Added = entries(rep.Added, job.KeyField, job.NameField)
	result.Stats.Removed = entries(rep.Removed, job.KeyField, job.NameField)
	return nil
}

// =============================================================================
// BLOCK JOBS
// =============================================================================

// snapshot copies the from_field..to_field column block of the export under
// the ledger header, dropping rows that are blank across the block.
func (r *Runner) snapshot(ctx context.Context, store workbook.Store, incoming *types.Table, result *Result) error {
	job := r.job
	from, to := incoming.ColumnIndex(job.FromField), incoming.ColumnIndex(job.ToField)
	if from > to {
		return fmt.Errorf("column %s comes after %s in %s", job.FromField, job.ToField, incoming.Source)
	}

	cols := incoming.Headers[from : to+1]
	block := &types.Table{Source: job.Sheet, Headers: append([]string(nil), cols...)}
	for _, row := range incoming.Rows {
		rec := make(types.Record, len(cols))
		for j := range cols {
			rec[block.Field(j)] = row[incoming.Field(from+j)]
		}
		if !rec.IsEmpty() {
			block.Rows = append(block.Rows, rec)
		}
	}

	layout := r.layout()
	if store.HasSheet(job.Sheet) {
		ledger, err := store.ReadSheet(job.Sheet, layout)
		if err != nil {
			return err
		}
		result.Stats.LedgerRows = len(ledger.Rows)

		switch {
		case len(ledger.Headers) == 0:
			if err := store.WriteHeader(job.Sheet, layout, cols); err != nil {
				return err
			}
		case !sameHeaders(ledger.Headers, cols):
			logging.FromContext(ctx).Warn().Strs("ledger", ledger.Headers).Strs("export", cols).Msg("ledger header differs from export block; writing by position")
		}
		// Ledger columns past the block are cleared on every written row.
		for i := len(cols); i < len(ledger.Headers); i++ {
			block.Headers = append(block.Headers, ledger.Headers[i])
		}
	} else if err := store.WriteHeader(job.Sheet, layout, cols); err != nil {
		return err
	}

	if err := store.WriteSheet(job.Sheet, layout, block); err != nil {
		return err
	}
	result.Stats.WrittenRows = len(block.Rows)
	return nil
}

// derive rebuilds a sheet from the rows of from_sheet whose code is listed,
// ordered by date. Rows without a readable date go last, in sheet order.
func (r *Runner) derive(ctx context.Context, store workbook.Store, result *Result) error {
	job := r.job
	layout := r.layout()

	src, err := store.ReadSheet(job.FromSheet, layout)
	if err != nil {
		return err
	}
	required := []string{job.CodeField}
	if job.DateField != "" {
		required = append(required, job.DateField)
	}
	if err := validation.RequireColumns(src, required...); err != nil {
		return err
	}

	filter := aggregate.Filter{Field: job.CodeField, Mode: aggregate.ModeCode, Codes: job.Codes}
	out := &types.Table{Source: job.Sheet, Headers: src.Headers}
	for _, row := range src.Rows {
		if filter.Match(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	if job.DateField != "" {
		SortByDate(out.Rows, job.DateField)
	}

	if store.HasSheet(job.Sheet) {
		if old, err := store.ReadSheet(job.Sheet, layout); err == nil {
			result.Stats.LedgerRows = len(old.Rows)
		}
	}
	if err := store.WriteHeader(job.Sheet, layout, out.Headers); err != nil {
		return err
	}
	if err := store.WriteSheet(job.Sheet, layout, out); err != nil {
		return err
	}

	logging.FromContext(ctx).Debug().Str("from", job.FromSheet).Int("rows", len(src.Rows)).Int("kept", len(out.Rows)).Msg("derived sheet")
	result.Stats.IncomingRows = len(src.Rows)
	result.Stats.WrittenRows = len(out.Rows)
	return nil
}

// SortByDate orders rows by the date in field, ascending. Rows whose date
// cannot be read keep their relative order after every dated row.
func SortByDate(rows []types.Record, field string) {
	type dated struct {
		ok   bool
		unix int64
	}
	dates := make([]dated, len(rows))
	idx := make([]int, len(rows))
	for i := range rows {
		t, ok := transform.ParseDate(rows[i][field])
		dates[i] = dated{ok: ok, unix: t.Unix()}
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		da, db := dates[idx[a]], dates[idx[b]]
		if da.ok != db.ok {
			return da.ok
		}
		return da.ok && da.unix < db.unix
	})

	sorted := make([]types.Record, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

// =============================================================================
// SUMMARY JOBS
// =============================================================================

func (r *Runner) aggregate(ctx context.Context, store workbook.Store, incoming *types.Table, result *Result) error {
	job := r.job
	for _, t := range job.Targets {
		filter := aggregate.Filter{
			Field:    t.Filter.Field,
			Mode:     aggregate.Mode(t.Filter.Mode),
			Codes:    t.Filter.Codes,
			Contains: t.Filter.Contains,
		}
		sum, n, err := aggregate.Sum(incoming, filter, t.AmountField)
		if err != nil {
			return fmt.Errorf("target %s: %w", t.Cell, err)
		}
		if err := r.writeTarget(ctx, store, t, sum, n, result); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) cells(ctx context.Context, store workbook.Store, result *Result) error {
	job := r.job

	var all []string
	for _, t := range job.Targets {
		all = append(all, t.SourceCells...)
	}
	values, err := source.ReadCells(ctx, result.InputFile, job.Source.Sheet, all, r.env.Converter)
	if err != nil {
		return err
	}

	offset := 0
	for _, t := range job.Targets {
		part := values[offset : offset+len(t.SourceCells)]
		offset += len(t.SourceCells)
		if err := r.writeTarget(ctx, store, t, aggregate.SumValues(part...), len(part), result); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) writeTarget(ctx context.Context, store workbook.Store, t config.Target, sum decimal.Decimal, n int, result *Result) error {
	value := aggregate.Scale(sum, decimal.NewFromFloat(t.Scale))
	if err := store.SetCell(r.job.SummarySheet, t.Cell, value); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug().Str("cell", t.Cell).Str("sum", sum.String()).Int("rows", n).Float64("value", value).Msg("summary cell written")
	result.Stats.Targets = append(result.Stats.Targets, TargetValue{Cell: t.Cell, Sum: sum, Rows: n, Value: value})
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func entries(rows []types.Record, keyField, nameField string) []reconcile.Entry {
	out := make([]reconcile.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, reconcile.Entry{Key: reconcile.NormalizeKey(row[keyField]), Name: row[nameField]})
	}
	return out
}

func sameHeaders(a, b []string) bool {
	if len(a) < len(b) {
		return false
	}
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func unique(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
