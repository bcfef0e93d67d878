package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/Downloads")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Downloads"), got)

	got, err = ExpandHome("/data/in")
	require.NoError(t, err)
	assert.Equal(t, "/data/in", got)

	got, err = ExpandHome("~user/x")
	require.NoError(t, err)
	assert.Equal(t, "~user/x", got)
}

func TestArchive(t *testing.T) {
	src := t.TempDir()
	archive := filepath.Join(t.TempDir(), "archive")

	write := func(name, body string) string {
		p := filepath.Join(src, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}

	fixed := time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)
	a := NewArchiver(archive)
	a.now = func() time.Time { return fixed }

	first, err := a.Archive(write("Excel_List_3.xlsx", "one"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "Excel_List_3.xlsx"), first)
	assert.NoFileExists(t, filepath.Join(src, "Excel_List_3.xlsx"))

	second, err := a.Archive(write("Excel_List_3.xlsx", "two"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "Excel_List_3_20240115_143022.xlsx"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	a.UseTimestampSubdirs = true
	dated, err := a.Archive(write("Excel2.xls", "x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "2024", "01", "15", "Excel2.xls"), dated)

	_, err = a.Archive(filepath.Join(src, "missing.xlsx"))
	assert.Error(t, err)
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{job}_diff_{timestamp}_{uuid}", map[string]string{"job": "fok/check"}, ".xlsx")

	pattern := regexp.MustCompile(`^fok_check_diff_\d{8}_\d{6}_[0-9a-f-]{36}\.xlsx$`)
	assert.Regexp(t, pattern, name)

	other := GenerateOutputFileName("{job}_diff_{timestamp}_{uuid}", map[string]string{"job": "fok/check"}, ".xlsx")
	assert.NotEqual(t, name, other)

	assert.Equal(t, "report.XLSX", GenerateOutputFileName("report.XLSX", nil, ".xlsx"))
	assert.Equal(t, "plain", GenerateOutputFileName("plain", nil, ""))
}

func TestWriteRunLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := WriteRunLog(nil, dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteRunLog([]RunLogEntry{
		{Job: "fok", Success: true, Duration: 1200 * time.Millisecond},
		{Job: "sam", Message: "no file matching 'Excel_List_*'"},
		{Job: "nh", Skipped: true},
	}, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Jobs: 3, failed: 1")
	assert.Contains(t, text, "FAILED")
	assert.Contains(t, text, "SKIPPED")
	assert.Contains(t, text, "no file matching 'Excel_List_*'")
}
