package jobs

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/reconcile"
	"github.com/ginjaninja78/ledgersync/internal/validation"
	"github.com/ginjaninja78/ledgersync/internal/workbook"
)

// Check is the outcome of inspecting a job without running it.
type Check struct {
	Job       string
	InputFile string
	Rows      int

	// Keys is set for keyed jobs.
	Keys *validation.KeyReport

	// Err is the first problem found: no export, unreadable export or
	// missing columns.
	Err error
}

// Inspect locates and loads the job's export and checks its columns. The
// ledger is not opened.
func (r *Runner) Inspect(ctx context.Context) Check {
	c := Check{Job: r.job.Name}
	if !r.job.Kind.NeedsSource() {
		return c
	}

	path, err := r.input(ctx)
	if err != nil {
		c.Err = err
		return c
	}
	c.InputFile = path

	if r.job.Kind == config.KindCells {
		return c
	}

	table, err := r.load(ctx, path)
	if err != nil {
		c.Err = err
		return c
	}
	c.Rows = len(table.Rows)

	if err := checkIncoming(r.job, table); err != nil {
		c.Err = err
		return c
	}
	if r.job.KeyField != "" {
		rep := validation.CheckKeys(table, r.job.KeyField, reconcile.NormalizeKey)
		c.Keys = &rep
	}
	return c
}

// CheckLedger verifies that the ledger has the sheets and columns each job
// reads or writes. It returns one error per problem.
func CheckLedger(store workbook.Store, jobs []config.Job) []error {
	var problems []error
	for i := range jobs {
		job := &jobs[i]
		fail := func(err error) {
			problems = append(problems, fmt.Errorf("job %s: %w", job.Name, err))
		}
		layout := workbook.Layout{HeaderRow: job.HeaderRow, FirstColumn: job.FirstColumn}

		switch job.Kind {
		case config.KindMerge, config.KindMirror, config.KindDiff:
			table, err := store.ReadSheet(job.Sheet, layout)
			if err != nil {
				fail(err)
				continue
			}
			required := []string{job.KeyField}
			if job.Kind == config.KindMerge {
				required = append(required, job.RefreshFields...)
				if job.Status != nil {
					required = append(required, job.Status.Field)
				}
			}
			required = append(required, job.PreserveFields...)
			if err := validation.RequireColumns(table, unique(required)...); err != nil {
				fail(err)
			}

		case config.KindDerive:
			table, err := store.ReadSheet(job.FromSheet, layout)
			if err != nil {
				fail(err)
				continue
			}
			if err := validation.RequireColumns(table, unique([]string{job.CodeField, job.DateField})...); err != nil {
				fail(err)
			}

		case config.KindAggregate, config.KindCells:
			if !store.HasSheet(job.SummarySheet) {
				fail(fmt.Errorf("sheet %s not found", job.SummarySheet))
			}
		}
	}
	return problems
}
