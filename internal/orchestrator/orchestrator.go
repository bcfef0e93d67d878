// =============================================================================
// ledgersync - Run-All Orchestrator
// =============================================================================
//
// This module runs the configured job sequence one job at a time. Each job
// runs in its own child process (`ledgersync run <job>`), so a job that
// crashes or leaves the ledger locked cannot affect the jobs after it beyond
// its exit status.
//
// SEQUENCE:
//   - Jobs run strictly in order; the next job starts only after the
//     previous process exited
//   - With stop_on_error (the default) the first non-zero exit stops the
//     run and the remaining jobs are reported as skipped
//   - Cancelling the context skips every job not yet started
//
// OUTPUT:
//   The child's stdout and stderr are streamed through unchanged. A summary
//   is printed at the end and, when a log directory is set, written to a
//   run log file.
//
// =============================================================================

package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/ginjaninja78/ledgersync/pkg/utils"
)

// =============================================================================
// EXECUTORS
// =============================================================================

// Executor runs one job to completion.
type Executor interface {
	Execute(ctx context.Context, job string) error
}

// ExitError reports a child process that exited non-zero.
type ExitError struct {
	Job  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("job %s exited with status %d", e.Job, e.Code)
}

// ProcessExecutor runs `<Path> run <job> <Args...>` as a child process.
type ProcessExecutor struct {
	// Path is the executable. Default: the running binary.
	Path string

	// Args are appended after the job name, typically the global flags
	// the parent was started with (--config, --log-format).
	Args []string

	Stdout io.Writer
	Stderr io.Writer
}

// Execute starts the child and waits for it.
func (p *ProcessExecutor) Execute(ctx context.Context, job string) error {
	path := p.Path
	if path == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate executable: %w", err)
		}
		path = self
	}

	args := append([]string{"run", job}, p.Args...)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	logging.FromContext(ctx).Debug().Str("cmd", path+" "+strings.Join(args, " ")).Msg("starting job process")

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Job: job, Code: exitErr.ExitCode()}
	}
	if err != nil {
		return fmt.Errorf("job %s: %w", job, err)
	}
	return nil
}

// =============================================================================
// SUMMARY
// =============================================================================

// Status is the outcome of one step.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Step is one job of the sequence.
type Step struct {
	Job      string
	Status   Status
	Duration time.Duration
	Err      error
}

// Summary is the outcome of a run-all.
type Summary struct {
	Steps    []Step
	Duration time.Duration

	// LogFile is the run log written, if any.
	LogFile string
}

// Failed returns the names of the failed jobs.
func (s Summary) Failed() []string {
	var names []string
	for _, st := range s.Steps {
		if st.Status == StatusFailed {
			names = append(names, st.Job)
		}
	}
	return names
}

// Err returns an error naming the failed jobs, or nil.
func (s Summary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d job(s) failed: %s", len(failed), strings.Join(failed, ", "))
}

// Print writes the summary block shown after the last job.
func (s Summary) Print(w io.Writer) {
	ok, skipped := 0, 0
	for _, st := range s.Steps {
		switch st.Status {
		case StatusOK:
			ok++
		case StatusSkipped:
			skipped++
		}
	}

	fmt.Fprintln(w, "\n========================================")
	fmt.Fprintln(w, "Run-all summary")
	fmt.Fprintln(w, "========================================")
	for _, st := range s.Steps {
		mark := "✓"
		switch st.Status {
		case StatusFailed:
			mark = "✗"
		case StatusSkipped:
			mark = "-"
		}
		fmt.Fprintf(w, "  %s %-20s %s\n", mark, st.Job, st.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Succeeded: %d  Failed: %d  Skipped: %d  (%s)\n",
		ok, len(s.Failed()), skipped, s.Duration.Round(time.Millisecond))
	if s.LogFile != "" {
		fmt.Fprintf(w, "Run log: %s\n", s.LogFile)
	}
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Options control a run-all.
type Options struct {
	StopOnError bool

	// LogDir receives the run log. Empty disables it.
	LogDir string

	// Out receives the per-job banners and the summary.
	Out io.Writer
}

// Orchestrator runs a job sequence through an Executor.
type Orchestrator struct {
	exec Executor
	opts Options
}

// New creates an Orchestrator.
func New(exec Executor, opts Options) *Orchestrator {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Orchestrator{exec: exec, opts: opts}
}

// Run executes sequence in order.
//
// PARAMETERS:
//   - ctx: Cancelling it stops the current child and skips the rest.
//   - sequence: Job names in run order.
//
// RETURNS:
//   - A Summary with one Step per job in sequence. Use Summary.Err to
//     decide the exit status.
func (o *Orchestrator) Run(ctx context.Context, sequence []string) Summary {
	log := logging.FromContext(ctx)
	start := time.Now()
	summary := Summary{Steps: make([]Step, 0, len(sequence))}

	stopped := false
	for i, job := range sequence {
		if stopped || ctx.Err() != nil {
			summary.Steps = append(summary.Steps, Step{Job: job, Status: StatusSkipped})
			continue
		}

		fmt.Fprintf(o.opts.Out, "\n[%d/%d] %s\n", i+1, len(sequence), job)
		stepStart := time.Now()
		err := o.exec.Execute(ctx, job)
		step := Step{Job: job, Duration: time.Since(stepStart), Err: err}

		if err != nil {
			step.Status = StatusFailed
			log.Error().Err(err).Str("job", job).Msg("job failed")
			if o.opts.StopOnError {
				stopped = true
			}
		}
		summary.Steps = append(summary.Steps, step)
	}
	summary.Duration = time.Since(start)

	if o.opts.LogDir != "" {
		path, err := utils.WriteRunLog(logEntries(summary), o.opts.LogDir)
		if err != nil {
			log.Warn().Err(err).Msg("failed to write run log")
		}
		summary.LogFile = path
	}

	summary.Print(o.opts.Out)
	return summary
}

func logEntries(s Summary) []utils.RunLogEntry {
	entries := make([]utils.RunLogEntry, 0, len(s.Steps))
	for _, st := range s.Steps {
		e := utils.RunLogEntry{
			Job:      st.Job,
			Success:  st.Status == StatusOK,
			Skipped:  st.Status == StatusSkipped,
			Duration: st.Duration,
		}
		if st.Err != nil {
			e.Message = st.Err.Error()
		}
		entries = append(entries, e)
	}
	return entries
}
