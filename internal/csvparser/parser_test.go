package csvparser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func TestParseReaderUTF8(t *testing.T) {
	input := "\ufeff계약 번호,고객명,계좌자산,\n1001, 김 ,\"1,000\",\n\n1002,이\n"

	table, err := ParseReader(strings.NewReader(input), config.SourceConfig{HeaderRow: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"계약번호", "고객명", "계좌자산"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1001", table.Rows[0]["계약번호"])
	assert.Equal(t, "김", table.Rows[0]["고객명"])
	assert.Equal(t, "1,000", table.Rows[0]["계좌자산"])
	assert.Equal(t, "", table.Rows[1]["계좌자산"])
}

func TestParseEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("조회일자\t2024-01-02\n계좌유형\t예탁자산\n연금저축\t1000\n위탁\t2000\n")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "Excel_List_1.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0644))

	table, err := Parse(path, config.SourceConfig{Encoding: "cp949", Delimiter: "tab", HeaderRow: 2})
	require.NoError(t, err)

	assert.Equal(t, path, table.Source)
	assert.Equal(t, []string{"계좌유형", "예탁자산"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "연금저축", table.Rows[0]["계좌유형"])
}

func TestParseErrors(t *testing.T) {
	_, err := ParseReader(bytes.NewReader(nil), config.SourceConfig{Encoding: "latin1"})
	assert.Error(t, err)

	_, err = ParseReader(strings.NewReader("a,b\n"), config.SourceConfig{HeaderRow: 3})
	assert.Error(t, err)

	_, err = Parse(filepath.Join(t.TempDir(), "absent.csv"), config.SourceConfig{})
	assert.Error(t, err)
}
