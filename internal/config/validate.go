package config

import (
	"fmt"
	"strconv"

	"github.com/ginjaninja78/ledgersync/pkg/errors"
)

var (
	selectModes = map[string]bool{"newest": true, "lowest-number": true, "highest-number": true}
	encodings   = map[string]bool{"utf-8": true, "utf8": true, "euc-kr": true, "cp949": true}
	filterModes = map[string]bool{"": true, "all": true, "code": true, "contains": true}
)

// validate checks the whole configuration and returns the first problem.
func validate(cfg *Config) error {
	if cfg.Retry.Attempts < 1 {
		return errors.NewConfigError("retry", "attempts must be at least 1", nil)
	}
	if cfg.Retry.Delay < 0 {
		return errors.NewConfigError("retry", "delay must not be negative", nil)
	}
	if len(cfg.Jobs) == 0 {
		return errors.NewConfigError("jobs", "no jobs configured", nil)
	}

	seen := make(map[string]bool, len(cfg.Jobs))
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.Name == "" {
			return errors.NewConfigError(fmt.Sprintf("jobs[%d]", i), "name is required", nil)
		}
		if seen[job.Name] {
			return errors.NewConfigError("job "+job.Name, "duplicate job name", nil)
		}
		seen[job.Name] = true

		if err := validateJob(job); err != nil {
			return err
		}
	}

	for _, name := range cfg.Sequence {
		if !seen[name] {
			return errors.NewConfigError("sequence", fmt.Sprintf("unknown job %q", name), nil)
		}
	}
	return nil
}

// validateJob checks the fields a job's kind requires.
func validateJob(job *Job) error {
	fail := func(format string, args ...any) error {
		return errors.NewConfigError("job "+job.Name, fmt.Sprintf(format, args...), nil)
	}

	known := false
	for _, k := range Kinds {
		if job.Kind == k {
			known = true
		}
	}
	if !known {
		return fail("unknown kind %q", job.Kind)
	}

	if job.Kind.NeedsSource() {
		if job.Source.Dir == "" || job.Source.Prefix == "" {
			return fail("source.dir and source.prefix are required")
		}
		if !selectModes[job.Source.Select] {
			return fail("unknown source.select %q", job.Source.Select)
		}
		if !encodings[job.Source.Encoding] {
			return fail("unknown source.encoding %q", job.Source.Encoding)
		}
		if job.Source.HeaderRow < 1 {
			return fail("source.header_row must be at least 1")
		}
	}
	if job.HeaderRow < 1 || job.FirstColumn < 1 {
		return fail("header_row and first_column must be at least 1")
	}
	if job.Duplicates != "first" && job.Duplicates != "last" {
		return fail("duplicates must be \"first\" or \"last\", got %q", job.Duplicates)
	}

	for _, rule := range job.Transformations {
		if rule.Field == "" {
			return fail("transformation without field")
		}
		if len(rule.Actions) == 0 {
			return fail("transformation of %s has no actions", rule.Field)
		}
	}

	switch job.Kind {
	case KindMerge:
		if job.Sheet == "" || job.KeyField == "" || len(job.RefreshFields) == 0 {
			return fail("merge needs sheet, key_field and refresh_fields")
		}
		if s := job.Status; s != nil && (s.Field == "" || s.From == "" || s.To == "") {
			return fail("status needs field, from and to")
		}

	case KindDiff, KindMirror:
		if job.Sheet == "" || job.KeyField == "" {
			return fail("%s needs sheet and key_field", job.Kind)
		}
		if job.Tolerance != "" {
			if _, err := strconv.ParseFloat(job.Tolerance, 64); err != nil {
				return fail("tolerance %q is not a number", job.Tolerance)
			}
		}

	case KindSnapshot:
		if job.Sheet == "" || job.FromField == "" || job.ToField == "" {
			return fail("snapshot needs sheet, from_field and to_field")
		}

	case KindDerive:
		if job.Sheet == "" || job.FromSheet == "" || job.CodeField == "" || len(job.Codes) == 0 {
			return fail("derive needs sheet, from_sheet, code_field and codes")
		}
		if job.Sheet == job.FromSheet {
			return fail("derive cannot write its own from_sheet")
		}

	case KindAggregate, KindCells:
		if job.SummarySheet == "" || len(job.Targets) == 0 {
			return fail("%s needs summary_sheet and targets", job.Kind)
		}
		for _, t := range job.Targets {
			if err := validateTarget(job.Kind, t); err != nil {
				return fail("target %s: %v", t.Cell, err)
			}
		}
	}
	return nil
}

func validateTarget(kind Kind, t Target) error {
	if t.Cell == "" {
		return fmt.Errorf("cell is required")
	}
	if t.Scale <= 0 {
		return fmt.Errorf("scale must be positive")
	}
	if kind == KindCells {
		if len(t.SourceCells) == 0 {
			return fmt.Errorf("source_cells is required")
		}
		return nil
	}

	if t.AmountField == "" {
		return fmt.Errorf("amount_field is required")
	}
	if !filterModes[t.Filter.Mode] {
		return fmt.Errorf("unknown filter mode %q", t.Filter.Mode)
	}
	return nil
}
