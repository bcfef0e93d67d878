// Package errors provides the error types shared by the ledgersync packages.
// Typed errors implement Is so callers can test for the sentinel with the
// standard errors.Is.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// New is the standard library errors.New, re-exported for convenience.
var New = errors.New

// Sentinel errors.
var (
	// ErrMissingColumn indicates a required column is absent from a table header.
	ErrMissingColumn = errors.New("missing column")

	// ErrNoInputFile indicates no export file matched the configured source.
	ErrNoInputFile = errors.New("no input file")

	// ErrNotFound indicates a file, sheet or cell that should exist does not.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates the configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBusy indicates a transient lock or sharing violation on a file.
	ErrBusy = errors.New("resource busy")
)

// MissingColumnError lists the required columns absent from a table.
type MissingColumnError struct {
	Source  string   // table the columns were expected in
	Missing []string // required columns that were not found
	Found   []string // headers actually present
}

// Error implements the error interface
func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing column(s) %s (found: %s)",
		e.Source, quoteAll(e.Missing), quoteAll(e.Found))
}

// Is implements errors.Is support
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// NewMissingColumnError creates a new MissingColumnError
func NewMissingColumnError(source string, missing, found []string) *MissingColumnError {
	return &MissingColumnError{Source: source, Missing: missing, Found: found}
}

// NoInputFileError reports that no export file matched a source definition.
type NoInputFileError struct {
	Dir        string
	Prefix     string
	Extensions []string
}

// Error implements the error interface
func (e *NoInputFileError) Error() string {
	return fmt.Sprintf("no file matching '%s*' with extension %s in %s",
		e.Prefix, strings.Join(e.Extensions, "/"), e.Dir)
}

// Is implements errors.Is support
func (e *NoInputFileError) Is(target error) bool {
	return target == ErrNoInputFile
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
	Tried    []string // locations searched, if any
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	if len(e.Tried) > 0 {
		msg += "; tried:\n  " + strings.Join(e.Tried, "\n  ")
	}
	return msg
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string, tried ...string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id, Tried: tried}
}

// ConfigError represents a configuration problem.
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Component != "" {
		msg += " in " + e.Component
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// BusyError wraps an error classified as transient.
type BusyError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: resource busy: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *BusyError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *BusyError) Is(target error) bool {
	return target == ErrBusy
}

// busyMarkers are fragments of OS and Office lock messages.
var busyMarkers = []string{
	"being used by another process",
	"sharing violation",
	"resource busy",
	"device or resource busy",
	"text file busy",
	"locked",
}

// IsBusy reports whether err is a transient lock error, either a BusyError or
// an error whose message carries a known lock marker.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range busyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsMissingColumn reports whether err is a missing-column error.
func IsMissingColumn(err error) bool {
	return errors.Is(err, ErrMissingColumn)
}

// IsNoInputFile reports whether err is a no-input-file error.
func IsNoInputFile(err error) bool {
	return errors.Is(err, ErrNoInputFile)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// As is the standard library errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is the standard library errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func quoteAll(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, s := range sorted {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
