// =============================================================================
// ledgersync - Job Runner
// =============================================================================
//
// This module runs one configured job against the ledger workbook. It owns
// the pipeline shared by every job kind; the kind-specific mutation lives in
// kinds.go.
//
// PIPELINE:
//   1. Locate the broker export (before the ledger is touched)
//   2. Load it into a table
//   3. Apply the job's transformation rules
//   4. Check the columns the job needs
//   5. Open the ledger, retrying while it is locked by another client
//   6. Apply the job to the ledger
//   7. Save the ledger, retrying while it is locked (skipped on dry runs
//      and for diff jobs, which never write the ledger)
//   8. Archive the export when archive_dir is configured
//
// FAILURE:
//   Any error after step 5 closes the ledger without saving. Nothing is
//   rolled back: a failure during save may leave the file as the office
//   client last wrote it.
//
// =============================================================================

package jobs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ginjaninja78/ledgersync/internal/aggregate"
	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/internal/reconcile"
	"github.com/ginjaninja78/ledgersync/internal/source"
	"github.com/ginjaninja78/ledgersync/internal/transform"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/workbook"
	"github.com/ginjaninja78/ledgersync/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of running a single job.
type Result struct {
	Job  string
	Kind config.Kind

	// RunID identifies the run in logs.
	RunID string

	// InputFile is the export the job consumed. Empty for derive jobs.
	InputFile string

	// LedgerPath is the ledger workbook the job ran against.
	LedgerPath string

	// ReportFile is the report written by a diff job.
	ReportFile string

	// ArchivePath is where the export was moved after success.
	ArchivePath string

	// Saved reports whether the ledger was written back.
	Saved bool

	DryRun  bool
	Success bool
	Error   error

	Stats Stats
}

// Stats contains what the job did to the ledger.
type Stats struct {
	// IncomingRows is the number of export rows after loading.
	IncomingRows int

	// LedgerRows is the number of rows the ledger sheet had before the job.
	LedgerRows int

	// WrittenRows is the number of rows written to the ledger sheet.
	WrittenRows int

	Matched int
	Changed int

	Added         []reconcile.Entry
	Removed       []reconcile.Entry
	StatusChanges []reconcile.Entry

	// CellChanges is the number of changed cells found by a diff job.
	CellChanges int

	// Targets are the summary cells written by aggregate and cells jobs.
	Targets []TargetValue

	// ProcessingTime is the time taken by the whole job.
	ProcessingTime time.Duration
}

// TargetValue is one summary cell written by an aggregate or cells job.
type TargetValue struct {
	Cell  string
	Sum   decimal.Decimal
	Rows  int
	Value float64
}

// =============================================================================
// RUNNER STRUCTURE
// =============================================================================

// Opener opens the ledger workbook.
type Opener func(ctx context.Context, path, password string) (workbook.Store, error)

// Env is everything a job needs besides its own configuration.
type Env struct {
	// LedgerPath is the resolved ledger workbook.
	LedgerPath string

	// Password unlocks the ledger. Empty for unencrypted workbooks.
	Password string

	Retry     workbook.RetryPolicy
	Converter *source.Converter

	// ReportDir receives diff reports. ReportPath, when set, is used as is.
	ReportDir  string
	ReportPath string

	// ArchiveDir receives consumed exports. Empty disables archiving.
	ArchiveDir string

	// ArchiveSubdirs archives into dated subdirectories of ArchiveDir.
	ArchiveSubdirs bool

	// InputFile bypasses discovery.
	InputFile string

	// DryRun runs everything except the ledger save and the archiving.
	DryRun bool

	// Open overrides how the ledger is opened. Default: OpenWithRetry.
	Open Opener
}

// NewEnv builds an Env from the configuration.
func NewEnv(cfg *config.Config, ledgerPath string) Env {
	return Env{
		LedgerPath:     ledgerPath,
		Password:       cfg.Ledger.ResolvePassword(),
		Retry:          workbook.RetryPolicy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay},
		Converter:      source.NewConverter(cfg.Converter),
		ReportDir:      cfg.ReportDir,
		ArchiveDir:     cfg.ArchiveDir,
		ArchiveSubdirs: cfg.ArchiveSubdirs,
	}
}

// Runner runs a single job.
type Runner struct {
	job *config.Job
	env Env
}

// New creates a Runner for job.
func New(job *config.Job, env Env) *Runner {
	if env.Open == nil {
		policy := env.Retry
		env.Open = func(ctx context.Context, path, password string) (workbook.Store, error) {
			return workbook.OpenWithRetry(ctx, policy, path, password)
		}
	}
	return &Runner{job: job, env: env}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the job pipeline.
//
// RETURNS:
//   - A Result describing the outcome. Result.Error is set on failure.
func (r *Runner) Run(ctx context.Context) Result {
	start := time.Now()
	result := Result{
		Job:        r.job.Name,
		Kind:       r.job.Kind,
		RunID:      uuid.NewString(),
		LedgerPath: r.env.LedgerPath,
		DryRun:     r.env.DryRun,
	}

	ctx = logging.WithRunID(logging.WithJob(ctx, r.job.Name), result.RunID)
	log := logging.FromContext(ctx)
	log.Debug().Str("kind", string(r.job.Kind)).Str("ledger", r.env.LedgerPath).Bool("dry_run", r.env.DryRun).Msg("job started")

	err := r.run(ctx, &result)
	result.Stats.ProcessingTime = time.Since(start)

	if err != nil {
		result.Error = err
		log.Debug().Err(err).Dur("elapsed", result.Stats.ProcessingTime).Msg("job failed")
		return result
	}

	result.Success = true
	log.Debug().Dur("elapsed", result.Stats.ProcessingTime).Bool("saved", result.Saved).Msg("job finished")
	return result
}

func (r *Runner) run(ctx context.Context, result *Result) error {
	job := r.job

	// =========================================================================
	// STEP 1-4: LOCATE, LOAD, TRANSFORM AND CHECK THE EXPORT
	// =========================================================================

	var incoming *types.Table
	if job.Kind.NeedsSource() {
		path, err := r.input(ctx)
		if err != nil {
			return err
		}
		result.InputFile = path

		if job.Kind != config.KindCells {
			incoming, err = r.load(ctx, path)
			if err != nil {
				return err
			}
			result.Stats.IncomingRows = len(incoming.Rows)

			if err := checkIncoming(job, incoming); err != nil {
				return err
			}
		}
	}

	// =========================================================================
	// STEP 5: OPEN THE LEDGER
	// =========================================================================

	store, err := r.env.Open(ctx, r.env.LedgerPath, r.env.Password)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close()

	// =========================================================================
	// STEP 6: APPLY THE JOB
	// =========================================================================

	switch job.Kind {
	case config.KindMerge:
		err = r.merge(ctx, store, incoming, result)
	case config.KindMirror:
		err = r.mirror(ctx, store, incoming, result)
	case config.KindDiff:
		err = r.diff(ctx, store, incoming, result)
	case config.KindSnapshot:
		err = r.snapshot(ctx, store, incoming, result)
	case config.KindDerive:
		err = r.derive(ctx, store, result)
	case config.KindAggregate:
		err = r.aggregate(ctx, store, incoming, result)
	case config.KindCells:
		err = r.cells(ctx, store, result)
	default:
		err = fmt.Errorf("unsupported job kind %q", job.Kind)
	}
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 7: SAVE
	// =========================================================================

	if job.Kind == config.KindDiff || r.env.DryRun {
		return nil
	}
	if err := workbook.SaveWithRetry(ctx, r.env.Retry, store); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	result.Saved = true

	// =========================================================================
	// STEP 8: ARCHIVE
	// =========================================================================

	if r.env.ArchiveDir != "" && result.InputFile != "" {
		archiver := utils.NewArchiver(r.env.ArchiveDir)
		archiver.UseTimestampSubdirs = r.env.ArchiveSubdirs
		archived, err := archiver.Archive(result.InputFile)
		if err != nil {
			// The ledger is already saved; a rerun would only redo the same merge.
			logging.FromContext(ctx).Warn().Err(err).Str("file", result.InputFile).Msg("failed to archive export")
			return nil
		}
		result.ArchivePath = archived
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// input returns the export path: the override, or the discovered file.
func (r *Runner) input(ctx context.Context) (string, error) {
	if r.env.InputFile != "" {
		if _, err := os.Stat(r.env.InputFile); err != nil {
			return "", fmt.Errorf("input file: %w", err)
		}
		return r.env.InputFile, nil
	}
	return source.Discover(ctx, r.job.Source)
}

// load parses the export and applies the transformation rules.
func (r *Runner) load(ctx context.Context, path string) (*types.Table, error) {
	table, err := source.Load(ctx, path, r.job.Source, r.env.Converter)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if len(r.job.Transformations) == 0 {
		return table, nil
	}
	t, err := transform.NewTransformer(r.job.Transformations)
	if err != nil {
		return nil, err
	}
	return t.TransformTable(table)
}

// layout is the ledger sheet layout of the job.
func (r *Runner) layout() workbook.Layout {
	return workbook.Layout{
		HeaderRow:   r.job.HeaderRow,
		FirstColumn: r.job.FirstColumn,
		TextFields:  r.job.TextFields,
	}
}

// Print writes a human-readable summary of the result.
func (res Result) Print(w io.Writer) {
	mark := "✓"
	if !res.Success {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%s)\n", mark, res.Job, res.Kind)
	if res.InputFile != "" {
		fmt.Fprintf(w, "  Input:    %s\n", res.InputFile)
	}
	if res.Error != nil {
		fmt.Fprintf(w, "  Error:    %v\n", res.Error)
		return
	}

	s := res.Stats
	switch res.Kind {
	case config.KindMerge:
		fmt.Fprintf(w, "  Updated:  %d matched, %d changed\n", s.Matched, s.Changed)
		printEntries(w, "Status", s.StatusChanges)
		printEntries(w, "Removed", s.Removed)
		printEntries(w, "Added", s.Added)
	case config.KindMirror:
		fmt.Fprintf(w, "  Rows:     %d written, %d matched\n", s.WrittenRows, s.Matched)
		printEntries(w, "Removed", s.Removed)
		printEntries(w, "Added", s.Added)
	case config.KindDiff:
		fmt.Fprintf(w, "  Compared: %d matched, %d changed cells, %d added, %d removed\n",
			s.Matched, s.CellChanges, len(s.Added), len(s.Removed))
		fmt.Fprintf(w, "  Report:   %s\n", res.ReportFile)
	case config.KindSnapshot, config.KindDerive:
		fmt.Fprintf(w, "  Rows:     %d written (was %d)\n", s.WrittenRows, s.LedgerRows)
	case config.KindAggregate, config.KindCells:
		for _, t := range s.Targets {
			fmt.Fprintf(w, "  %-8s  %s -> %g\n", t.Cell, aggregate.Display(t.Sum), t.Value)
		}
	}

	switch {
	case res.DryRun:
		fmt.Fprintln(w, "  Dry run:  ledger not saved")
	case res.Saved:
		fmt.Fprintf(w, "  Saved:    %s\n", res.LedgerPath)
	}
	if res.ArchivePath != "" {
		fmt.Fprintf(w, "  Archived: %s\n", res.ArchivePath)
	}
	fmt.Fprintf(w, "  Time:     %s\n", s.ProcessingTime.Round(time.Millisecond))
}

func printEntries(w io.Writer, label string, entries []reconcile.Entry) {
	fmt.Fprintf(w, "  %-8s  %d\n", label+":", len(entries))
	for _, e := range entries {
		if e.Name != "" {
			fmt.Fprintf(w, "    - %s (%s)\n", e.Key, e.Name)
		} else {
			fmt.Fprintf(w, "    - %s\n", e.Key)
		}
	}
}
