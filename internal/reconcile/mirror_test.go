package reconcile

import (
	"testing"

	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror(t *testing.T) {
	headers := []string{"비고", "계약번호", "고객명", "최초계약일", "계좌번호"}
	ledger := table(headers,
		types.Record{"비고": "VIP", "계약번호": "PLVA002", "고객명": "김", "최초계약일": "44927", "계좌번호": "0101"},
		types.Record{"비고": "해지예정", "계약번호": "PLVA009", "고객명": "이"},
		types.Record{"비고": "기타", "계약번호": "XYZ001", "고객명": "외부"},
	)
	incoming := table([]string{"계약번호", "고객명", "최초계약일", "계좌번호", "잔고"},
		types.Record{"계약번호": "PLVA003", "고객명": "박", "최초계약일": "45000", "계좌번호": "0303", "잔고": "9"},
		types.Record{"계약번호": "PLVA002", "고객명": "김철수", "최초계약일": "44927", "계좌번호": "0102"},
		types.Record{"계약번호": "OTHER1", "고객명": "제외"},
	)

	res, err := Mirror(ledger, incoming, MirrorOptions{
		KeyField:       "계약번호",
		NameField:      "고객명",
		PreserveFields: []string{"비고"},
		KeyPrefix:      "PLVA",
		SortByKey:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, headers, res.Headers)
	assert.Equal(t, []types.Record{
		{"비고": "VIP", "계약번호": "PLVA002", "고객명": "김철수", "최초계약일": "44927", "계좌번호": "0102"},
		{"계약번호": "PLVA003", "고객명": "박", "최초계약일": "45000", "계좌번호": "0303"},
	}, res.Rows)
	assert.Equal(t, []Entry{{"PLVA003", "박"}}, res.Added)
	assert.Equal(t, []Entry{{"PLVA009", "이"}}, res.Removed)
	assert.Equal(t, 1, res.Matched)
}

func TestMirrorKeepsIncomingOrder(t *testing.T) {
	headers := []string{"key", "v"}
	res, err := Mirror(
		table(headers),
		table(headers, types.Record{"key": "b", "v": "1"}, types.Record{"key": "a", "v": "2"}),
		MirrorOptions{KeyField: "key"},
	)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "b", res.Rows[0]["key"])
	assert.Equal(t, "a", res.Rows[1]["key"])
	assert.Len(t, res.Added, 2)
}

func TestMirrorKeepsUnnamedLedgerCells(t *testing.T) {
	ledger := table([]string{"계약번호", "", "잔고"},
		types.Record{"계약번호": "PLVA1", types.UnnamedColumn(1): "memo-1", "잔고": "10"},
		types.Record{"계약번호": "PLVA2", types.UnnamedColumn(1): "memo-2", "잔고": "20"},
	)
	incoming := table([]string{"계약번호", "잔고"},
		types.Record{"계약번호": "PLVA3", "잔고": "30"},
		types.Record{"계약번호": "PLVA2", "잔고": "25"},
	)

	res, err := Mirror(ledger, incoming, MirrorOptions{KeyField: "계약번호"})
	require.NoError(t, err)
	assert.Equal(t, []types.Record{
		{"계약번호": "PLVA3", "잔고": "30"},
		{"계약번호": "PLVA2", types.UnnamedColumn(1): "memo-2", "잔고": "25"},
	}, res.Rows)
	assert.Equal(t, []Entry{{Key: "PLVA1"}}, res.Removed)
}

func TestMirrorErrors(t *testing.T) {
	headers := []string{"key", "v"}

	_, err := Mirror(table(headers), table(headers), MirrorOptions{})
	assert.Error(t, err)

	_, err = Mirror(table(headers), table(headers), MirrorOptions{KeyField: "key", Duplicates: "any"})
	assert.Error(t, err)

	_, err = Mirror(table(headers), table(headers), MirrorOptions{KeyField: "key", PreserveFields: []string{"비고"}})
	assert.True(t, errors.IsMissingColumn(err))

	_, err = Mirror(table(headers), table([]string{"v"}), MirrorOptions{KeyField: "key"})
	assert.True(t, errors.IsMissingColumn(err))
}
