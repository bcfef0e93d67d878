// =============================================================================
// ledgersync - Configuration Module
// =============================================================================
//
// This module loads the single YAML configuration file that describes the
// ledger workbook and every reconciliation job run against it.
//
// CONFIGURATION FILE (ledgersync.yaml):
//   ledger:      where the ledger workbook lives and how to unlock it
//   retry:       attempts/delay around busy ledger opens and saves
//   report_dir:  where diff report workbooks are written
//   archive_dir: optional; consumed exports are moved here after success
//   archive_subdirs: file archived exports under yyyy/mm/dd
//   converter:   external command turning legacy .xls exports into .xlsx
//   sequence:    job order for run-all (defaults to config order)
//   jobs:        one entry per job; fields depend on the job kind
//
// The file is validated once on load. Every problem is reported as a
// *errors.ConfigError naming the job and field at fault.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "ledgersync.yaml"

// =============================================================================
// JOB KINDS
// =============================================================================

// Kind names what a job does to the ledger.
type Kind string

const (
	// KindMerge refreshes a ledger sheet from the newest export by key.
	KindMerge Kind = "merge"

	// KindDiff writes a read-only comparison report of ledger and export.
	KindDiff Kind = "diff"

	// KindMirror replaces a ledger sheet with the export, keeping remarks.
	KindMirror Kind = "mirror"

	// KindSnapshot copies a contiguous column block of the export.
	KindSnapshot Kind = "snapshot"

	// KindDerive builds a sheet from filtered, date-sorted rows of another.
	KindDerive Kind = "derive"

	// KindAggregate writes filtered sums into the daily summary sheet.
	KindAggregate Kind = "aggregate"

	// KindCells writes sums of fixed export cells into the summary sheet.
	KindCells Kind = "cells"
)

// Kinds lists every supported job kind.
var Kinds = []Kind{KindMerge, KindDiff, KindMirror, KindSnapshot, KindDerive, KindAggregate, KindCells}

// NeedsSource reports whether jobs of this kind read a broker export.
func (k Kind) NeedsSource() bool {
	return k != KindDerive
}

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config is the whole configuration file.
type Config struct {
	Ledger    LedgerConfig    `yaml:"ledger"`
	Retry     RetryConfig     `yaml:"retry"`
	Converter ConverterConfig `yaml:"converter"`

	// ReportDir is where diff report workbooks are written.
	// Default: "./reports"
	ReportDir string `yaml:"report_dir"`

	// ArchiveDir receives consumed exports after a successful run.
	// Empty leaves the exports in place.
	ArchiveDir string `yaml:"archive_dir,omitempty"`

	// ArchiveSubdirs files archived exports under yyyy/mm/dd of the run date.
	ArchiveSubdirs bool `yaml:"archive_subdirs,omitempty"`

	// Sequence is the job order used by run-all. Empty means every job in
	// the order it appears under jobs.
	Sequence []string `yaml:"sequence,omitempty"`

	// StopOnError stops run-all at the first failing job. Default: true
	StopOnError *bool `yaml:"stop_on_error,omitempty"`

	// LogLevel is the zerolog level ("debug", "info", "warn", "error").
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	Jobs []Job `yaml:"jobs"`
}

// LedgerConfig locates and unlocks the ledger workbook.
type LedgerConfig struct {
	// Path is an explicit ledger path. When set, no search is done.
	Path string `yaml:"path,omitempty"`

	// FileName is the ledger file searched for under the SearchEnv dirs.
	// Default: "고객data_v101.xlsx"
	FileName string `yaml:"file_name"`

	// SearchEnv names environment variables holding sync folders to walk.
	// Default: ["OneDriveCommercial", "OneDrive"]
	SearchEnv []string `yaml:"search_env"`

	// Candidates are fallback paths tried in order.
	Candidates []string `yaml:"candidates,omitempty"`

	// Password opens the workbook. Prefer PasswordEnv.
	Password string `yaml:"password,omitempty"`

	// PasswordEnv names an environment variable that overrides Password.
	// Default: "LEDGERSYNC_PASSWORD"
	PasswordEnv string `yaml:"password_env"`
}

// ResolvePassword returns the ledger password, env var first.
func (l LedgerConfig) ResolvePassword() string {
	if l.PasswordEnv != "" {
		if v, ok := os.LookupEnv(l.PasswordEnv); ok && v != "" {
			return v
		}
	}
	return l.Password
}

// RetryConfig bounds the retry loop around ledger open and save.
type RetryConfig struct {
	// Attempts is the total number of tries. Default: 25
	Attempts int `yaml:"attempts"`

	// Delay is the fixed wait between tries. Default: 500ms
	Delay time.Duration `yaml:"delay"`
}

// ConverterConfig is the external command used for .xls exports.
// Args may use {input} and {outdir} placeholders.
type ConverterConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// SourceConfig selects and parses the broker export of a job.
type SourceConfig struct {
	// Dir is the download folder. "~" expands to the home directory.
	Dir string `yaml:"dir"`

	// Prefix is the file name prefix, e.g. "Excel_List_".
	Prefix string `yaml:"prefix"`

	// Extensions are the accepted file extensions. Default: [".xlsx"]
	Extensions []string `yaml:"extensions"`

	// Select picks among matches: "newest", "lowest-number" or
	// "highest-number". Default: "newest"
	Select string `yaml:"select"`

	// Sheet is the export sheet to read. Default: first sheet.
	Sheet string `yaml:"sheet,omitempty"`

	// HeaderRow is the 1-based header row of the export. Default: 1
	HeaderRow int `yaml:"header_row"`

	// Encoding of CSV exports: "utf-8", "euc-kr" or "cp949". Default: "utf-8"
	Encoding string `yaml:"encoding"`

	// Delimiter of CSV exports. Default: ","
	Delimiter string `yaml:"delimiter"`
}

// StatusConfig is the single allowed status transition of a merge.
type StatusConfig struct {
	Field string `yaml:"field"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
}

// FilterConfig selects rows for an aggregate target.
type FilterConfig struct {
	Field    string   `yaml:"field"`
	Mode     string   `yaml:"mode"`
	Codes    []string `yaml:"codes,omitempty"`
	Contains string   `yaml:"contains,omitempty"`
}

// Target is one summary cell written by an aggregate or cells job.
type Target struct {
	// Cell is the destination cell on the summary sheet, e.g. "B14".
	Cell string `yaml:"cell"`

	// Filter and AmountField drive aggregate jobs.
	Filter      FilterConfig `yaml:"filter,omitempty"`
	AmountField string       `yaml:"amount_field,omitempty"`

	// SourceCells drive cells jobs: the export cells summed into Cell.
	SourceCells []string `yaml:"source_cells,omitempty"`

	// Scale divides the sum before writing. Default: 100000000 (억)
	Scale float64 `yaml:"scale"`
}

// TransformationRule applies a chain of actions to one export column.
type TransformationRule struct {
	// Field is the normalized column name the actions apply to.
	Field string `yaml:"field"`

	// Actions run in order; each sees the previous result.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction is one step of a TransformationRule.
type TransformationAction struct {
	// Type is the transformation to apply.
	//
	// SUPPORTED TYPES:
	//   - trim, uppercase, lowercase
	//   - strip_decimal_zero: Remove one trailing ".0"
	//   - pad_zeros_to_length: Left-pad with zeros to Value digits
	//   - excel_date: Serial or text date to the Value layout (Go layout)
	//   - force_text: Scientific notation to plain integer text
	//   - replace: Replace Find with Value
	//   - regex_replace: Replace regex Find with Value
	//   - prepend_string, append_string
	//   - lookup: Replace via LookupTable, unknown values kept
	//   - if_empty_use_default: Value when the cell is blank
	Type string `yaml:"type"`

	Value       string            `yaml:"value,omitempty"`
	Find        string            `yaml:"find,omitempty"`
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// Job is one configured reconciliation job.
type Job struct {
	Name        string `yaml:"name"`
	Kind        Kind   `yaml:"kind"`
	Description string `yaml:"description,omitempty"`

	Source SourceConfig `yaml:"source,omitempty"`

	// Sheet is the ledger sheet the job writes (or reads, for diff).
	Sheet string `yaml:"sheet"`

	// HeaderRow is the 1-based header row of Sheet. Default: 1
	HeaderRow int `yaml:"header_row"`

	// FirstColumn is the 1-based first column of the table. Default: 1
	FirstColumn int `yaml:"first_column"`

	// TextFields are written as text even when they look numeric.
	TextFields []string `yaml:"text_fields,omitempty"`

	Transformations []TransformationRule `yaml:"transformations,omitempty"`

	// merge, diff, mirror
	KeyField      string        `yaml:"key_field,omitempty"`
	NameField     string        `yaml:"name_field,omitempty"`
	RefreshFields []string      `yaml:"refresh_fields,omitempty"`
	Status        *StatusConfig `yaml:"status,omitempty"`
	Duplicates    string        `yaml:"duplicates,omitempty"`
	InsertAt      *int          `yaml:"insert_at,omitempty"`

	// mirror
	PreserveFields []string `yaml:"preserve_fields,omitempty"`
	KeyPrefix      string   `yaml:"key_prefix,omitempty"`
	SortByKey      bool     `yaml:"sort_by_key,omitempty"`

	// diff
	Tolerance string `yaml:"tolerance,omitempty"`

	// snapshot
	FromField string `yaml:"from_field,omitempty"`
	ToField   string `yaml:"to_field,omitempty"`

	// derive
	FromSheet string   `yaml:"from_sheet,omitempty"`
	CodeField string   `yaml:"code_field,omitempty"`
	Codes     []string `yaml:"codes,omitempty"`
	DateField string   `yaml:"date_field,omitempty"`

	// aggregate, cells
	SummarySheet string   `yaml:"summary_sheet,omitempty"`
	Targets      []Target `yaml:"targets,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads, defaults and validates the configuration file.
//
// PARAMETERS:
//   - path: The path to the YAML configuration file.
//
// RETURNS:
//   - The validated configuration.
//   - An error if the file cannot be read or parsed, or a *errors.ConfigError
//     if it fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for configuration already in memory.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Job returns the job with the given name.
func (c *Config) Job(name string) (*Job, error) {
	for i := range c.Jobs {
		if c.Jobs[i].Name == name {
			return &c.Jobs[i], nil
		}
	}
	return nil, errors.NewNotFoundError("job", fmt.Sprintf("%q", name))
}

// JobNames returns the job names in config order.
func (c *Config) JobNames() []string {
	names := make([]string, len(c.Jobs))
	for i, j := range c.Jobs {
		names[i] = j.Name
	}
	return names
}

// RunSequence returns the job order used by run-all.
func (c *Config) RunSequence() []string {
	if len(c.Sequence) > 0 {
		return c.Sequence
	}
	return c.JobNames()
}

// ShouldStopOnError reports whether run-all stops at the first failure.
func (c *Config) ShouldStopOnError() bool {
	return c.StopOnError == nil || *c.StopOnError
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.Ledger.FileName == "" {
		cfg.Ledger.FileName = "고객data_v101.xlsx"
	}
	if len(cfg.Ledger.SearchEnv) == 0 {
		cfg.Ledger.SearchEnv = []string{"OneDriveCommercial", "OneDrive"}
	}
	if cfg.Ledger.PasswordEnv == "" {
		cfg.Ledger.PasswordEnv = "LEDGERSYNC_PASSWORD"
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 25
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = 500 * time.Millisecond
	}
	if cfg.Converter.Command == "" {
		cfg.Converter.Command = "soffice"
		cfg.Converter.Args = []string{"--headless", "--convert-to", "xlsx", "--outdir", "{outdir}", "{input}"}
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = "./reports"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	for i := range cfg.Jobs {
		applyJobDefaults(&cfg.Jobs[i])
	}
}

// applyJobDefaults sets default values for one job.
func applyJobDefaults(job *Job) {
	src := &job.Source
	if len(src.Extensions) == 0 {
		src.Extensions = []string{".xlsx"}
	}
	for i, ext := range src.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		src.Extensions[i] = ext
	}
	if src.Select == "" {
		src.Select = "newest"
	}
	if src.HeaderRow == 0 {
		src.HeaderRow = 1
	}
	if src.Encoding == "" {
		src.Encoding = "utf-8"
	}
	if src.Delimiter == "" {
		src.Delimiter = ","
	}

	if job.HeaderRow == 0 {
		job.HeaderRow = 1
	}
	if job.FirstColumn == 0 {
		job.FirstColumn = 1
	}
	if job.Duplicates == "" {
		job.Duplicates = "last"
	}
	if job.InsertAt == nil {
		end := -1
		job.InsertAt = &end
	}

	for i := range job.Targets {
		if job.Targets[i].Scale == 0 {
			job.Targets[i].Scale = 1e8
		}
	}
}
