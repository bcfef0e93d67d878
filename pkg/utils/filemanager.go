// =============================================================================
// ledgersync - File Manager Utility
// =============================================================================
//
// This module provides the file helpers shared by the jobs and commands:
//   - Home directory expansion for configured folders
//   - Export archival (moving consumed exports out of the download folder)
//   - Report and log file naming
//   - Run log generation for run-all
//
// ARCHIVAL STRATEGY:
//   - An export is moved to archive_dir only after its job succeeded
//   - Failed jobs leave the export where it was, so a rerun finds it again
//   - A name clash in the archive gets a timestamp suffix instead of
//     overwriting the earlier copy
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExpandHome replaces a leading "~" with the home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// EnsureDir creates dir and its parents if they don't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// Archiver moves consumed exports into an archive directory.
type Archiver struct {
	// Dir is the archive directory. "~" is expanded.
	Dir string

	// UseTimestampSubdirs creates date-based subdirectories.
	// Example: archive/2024/01/15/Excel_List_3.xlsx
	UseTimestampSubdirs bool

	now func() time.Time
}

// NewArchiver creates an Archiver for dir.
func NewArchiver(dir string) *Archiver {
	return &Archiver{Dir: dir, now: time.Now}
}

// Archive moves filePath into the archive.
//
// PARAMETERS:
//   - filePath: The export to archive.
//
// RETURNS:
//   - The path of the archived file.
//   - An error if the file could not be moved. The original is left in
//     place in that case.
func (a *Archiver) Archive(filePath string) (string, error) {
	dir, err := ExpandHome(a.Dir)
	if err != nil {
		return "", err
	}

	now := time.Now()
	if a.now != nil {
		now = a.now()
	}
	if a.UseTimestampSubdirs {
		dir = filepath.Join(dir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()))
	}
	if err := EnsureDir(dir); err != nil {
		return "", err
	}

	archivePath := filepath.Join(dir, filepath.Base(filePath))
	if _, err := os.Stat(archivePath); err == nil {
		ext := filepath.Ext(archivePath)
		archivePath = strings.TrimSuffix(archivePath, ext) + "_" + now.Format("20060102_150405") + ext
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fail with rename; copy then delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}
	return archivePath, nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {job}       - and any other key of params
//   - params: A map of placeholder values.
//   - ext: The extension to enforce, e.g. ".xlsx".
//
// EXAMPLE:
//
//	format: "{job}_diff_{timestamp}_{uuid}"
//	params: {"job": "fok-check"}
//	output: "fok-check_diff_20240115_143022_a1b2c3d4-e5f6-7890-abcd-ef1234567890.xlsx"
func GenerateOutputFileName(format string, params map[string]string, ext string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = SanitizeFileName(value)
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}
	return result
}

// SanitizeFileName replaces characters that are not allowed in file names.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// =============================================================================
// RUN LOG GENERATION
// =============================================================================

// RunLogEntry is one job outcome in a run log.
type RunLogEntry struct {
	Job      string
	Success  bool
	Skipped  bool
	Duration time.Duration
	Message  string
}

// WriteRunLog writes a run-all summary to a log file in outputDir.
//
// RETURNS:
//   - The path to the log file, or "" when entries is empty.
//   - An error if writing fails.
func WriteRunLog(entries []RunLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if err := EnsureDir(outputDir); err != nil {
		return "", err
	}

	logPath := filepath.Join(outputDir, GenerateOutputFileName("run_log_{timestamp}", nil, ".txt"))
	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create run log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	failed := 0
	for _, e := range entries {
		if !e.Success && !e.Skipped {
			failed++
		}
	}
	fmt.Fprintf(writer, "ledgersync - Run Log\nGenerated: %s\nJobs: %d, failed: %d\n", time.Now().Format("2006-01-02 15:04:05"), len(entries), failed)
	writer.WriteString("================================================================================\n\n")

	for i, e := range entries {
		status := "OK"
		switch {
		case e.Skipped:
			status = "SKIPPED"
		case !e.Success:
			status = "FAILED"
		}
		fmt.Fprintf(writer, "#%d %-24s %-8s %s\n", i+1, e.Job, status, e.Duration.Round(time.Millisecond))
		if e.Message != "" {
			fmt.Fprintf(writer, "    %s\n", e.Message)
		}
	}

	writer.WriteString("\n================================================================================\nEnd of Run Log\n")
	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush run log: %w", err)
	}
	return logPath, nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}
