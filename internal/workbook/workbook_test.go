package workbook

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/internal/reconcile"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// newLedger writes a password protected workbook with a FOK_DATA sheet.
func newLedger(t *testing.T, password string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	_, err := f.NewSheet("FOK_DATA")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("FOK_DATA", "A1", &[]any{"계약 번호", "고객명", "계좌자산\n", "계좌번호"}))
	require.NoError(t, f.SetSheetRow("FOK_DATA", "A2", &[]any{"1001", "김", 1000, "0101"}))
	require.NoError(t, f.SetSheetRow("FOK_DATA", "A3", &[]any{nil, nil, nil, nil}))
	require.NoError(t, f.SetSheetRow("FOK_DATA", "A4", &[]any{"1002", "이", 2000.5, "0202"}))
	require.NoError(t, f.SetSheetRow("FOK_DATA", "A5", &[]any{"1003", "박", 3000, "0303"}))

	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, f.SaveAs(path, excelize.Options{Password: password}))
	return path
}

func TestOpenAndReadSheet(t *testing.T) {
	path := newLedger(t, "secret")

	wb, err := Open(path, "secret")
	require.NoError(t, err)
	defer wb.Close()

	assert.True(t, wb.HasSheet("FOK_DATA"))
	assert.False(t, wb.HasSheet("NH_DATA"))
	assert.Contains(t, wb.Sheets(), "FOK_DATA")

	table, err := wb.ReadSheet("FOK_DATA", DefaultLayout)
	require.NoError(t, err)
	assert.Equal(t, []string{"계약번호", "고객명", "계좌자산", "계좌번호"}, table.Headers)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, types.Record{"계약번호": "1001", "고객명": "김", "계좌자산": "1000", "계좌번호": "0101"}, table.Rows[0])
	assert.Equal(t, "2000.5", table.Rows[1]["계좌자산"])

	_, err = wb.ReadSheet("NH_DATA", DefaultLayout)
	assert.True(t, errors.IsNotFound(err))
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.xlsx"), "")
	assert.True(t, errors.IsNotFound(err))

	path := newLedger(t, "secret")
	_, err = Open(path, "wrong")
	assert.Error(t, err)
}

func TestWriteSheetRoundTrip(t *testing.T) {
	path := newLedger(t, "secret")

	wb, err := Open(path, "secret")
	require.NoError(t, err)

	layout := Layout{HeaderRow: 1, FirstColumn: 1, TextFields: []string{"계약번호"}}
	table, err := wb.ReadSheet("FOK_DATA", layout)
	require.NoError(t, err)

	table.Rows = []types.Record{
		{"계약번호": "1002", "고객명": "이", "계좌자산": "2500", "계좌번호": "0202"},
	}
	require.NoError(t, wb.WriteSheet("FOK_DATA", layout, table))
	require.NoError(t, wb.Save())
	require.NoError(t, wb.Close())

	reopened, err := Open(path, "secret")
	require.NoError(t, err)
	defer reopened.Close()

	after, err := reopened.ReadSheet("FOK_DATA", layout)
	require.NoError(t, err)
	require.Len(t, after.Rows, 1)
	assert.Equal(t, "2500", after.Rows[0]["계좌자산"])
	assert.Equal(t, "0202", after.Rows[0]["계좌번호"])

	// stale rows cleared
	v, err := reopened.GetCell("FOK_DATA", "A5")
	require.NoError(t, err)
	assert.Empty(t, v)

	// numbers are written as numbers, text fields as text
	typ, err := reopened.File().GetCellType("FOK_DATA", "C2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	assert.NotEqual(t, excelize.CellTypeInlineString, typ)
}

func TestUnnamedColumnsMoveWithTheirRow(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"계약번호", nil, "계좌자산"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"A", "memo-A", 100}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"B", "memo-B", 200, "note-B"}))
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	wb, err := Open(path, "")
	require.NoError(t, err)

	ledger, err := wb.ReadSheet("Sheet1", DefaultLayout)
	require.NoError(t, err)
	assert.Equal(t, []string{"계약번호", "", "계좌자산", ""}, ledger.Headers)
	require.Len(t, ledger.Rows, 2)
	assert.Equal(t, "memo-A", ledger.Rows[0][types.UnnamedColumn(1)])
	assert.Equal(t, "memo-B", ledger.Rows[1][types.UnnamedColumn(1)])
	assert.Equal(t, "note-B", ledger.Rows[1][types.UnnamedColumn(3)])
	assert.Equal(t, []string{"B", "memo-B", "200", "note-B"}, ledger.Values(ledger.Rows[1]))

	rc, err := reconcile.New(reconcile.Options{KeyField: "계약번호", RefreshFields: []string{"계좌자산"}, InsertAt: -1})
	require.NoError(t, err)
	incoming := &types.Table{
		Headers: []string{"계약번호", "계좌자산"},
		Rows:    []types.Record{{"계약번호": "B", "계좌자산": "250"}},
	}
	res, err := rc.Reconcile(ledger, incoming)
	require.NoError(t, err)

	require.NoError(t, wb.WriteSheet("Sheet1", DefaultLayout, res.Table("Sheet1")))
	require.NoError(t, wb.Save())
	require.NoError(t, wb.Close())

	reopened, err := Open(path, "")
	require.NoError(t, err)
	defer reopened.Close()

	want := map[string]string{
		"A2": "B", "B2": "memo-B", "C2": "250", "D2": "note-B",
		"A3": "", "B3": "", "C3": "", "D3": "",
	}
	for cell, v := range want {
		got, err := reopened.GetCell("Sheet1", cell)
		require.NoError(t, err)
		assert.Equal(t, v, got, cell)
	}
}

func TestWriteHeaderAndNewSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	wb := New(path)

	layout := Layout{HeaderRow: 5, FirstColumn: 2}
	table := &types.Table{
		Headers: []string{"계약번호", "상품"},
		Rows:    []types.Record{{"계약번호": "PLVA1", "상품": "004"}},
	}
	require.NoError(t, wb.WriteHeader("NH_DATA_1", layout, table.Headers))
	require.NoError(t, wb.WriteSheet("NH_DATA_1", layout, table))
	require.NoError(t, wb.SetCell("NH_DATA_1", "A1", 1.5))
	require.NoError(t, wb.Save())
	require.NoError(t, wb.Close())

	reopened, err := Open(path, "")
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ReadSheet("NH_DATA_1", layout)
	require.NoError(t, err)
	assert.Equal(t, table.Headers, got.Headers)
	assert.Equal(t, table.Rows, got.Rows)

	v, err := reopened.GetCell("NH_DATA_1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "1.5", v)

	assert.True(t, errors.IsNotFound(reopened.SetCell("Daily", "B1", 1)))
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in     string
		asText bool
		want   any
	}{
		{"", false, nil},
		{"  ", false, nil},
		{"1000", false, int64(1000)},
		{"-5", false, int64(-5)},
		{"0.25", false, 0.25},
		{"0", false, int64(0)},
		{"0101", false, "0101"},
		{"004", false, "004"},
		{"1000", true, "1000"},
		{"1234567890123456", false, "1234567890123456"},
		{"계약완료(승인)", false, "계약완료(승인)"},
		{"NaN", false, "NaN"},
		{"2023/03/15", false, "2023/03/15"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CellValue(tt.in, tt.asText), "input %q", tt.in)
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	t.Run("succeeds after busy", func(t *testing.T) {
		tl := logging.NewTestLogger(t)
		calls := 0
		err := Retry(logging.WithLogger(ctx, tl.Logger), policy, "open", func() error {
			calls++
			if calls < 3 {
				return errors.New("The process cannot access the file because it is being used by another process")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.True(t, tl.Contains(`"attempt":2`))
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, policy, "save", func() error {
			calls++
			return errors.New("sharing violation")
		})
		assert.ErrorIs(t, err, errors.ErrBusy)
		assert.Equal(t, 3, calls)
		var busy *errors.BusyError
		require.ErrorAs(t, err, &busy)
		assert.Equal(t, "save (gave up after 3 attempts)", busy.Op)
		assert.EqualError(t, busy.Err, "sharing violation")
	})

	t.Run("fatal errors are not retried", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, policy, "open", func() error {
			calls++
			return errors.New("zip: not a valid zip file")
		})
		assert.EqualError(t, err, "zip: not a valid zip file")
		assert.NotErrorIs(t, err, errors.ErrBusy)
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := Retry(cctx, RetryPolicy{Attempts: 5, Delay: time.Second}, "open", func() error {
			return errors.New("resource busy")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, errors.ErrBusy)
	})
}
