package reconcile

import (
	"testing"

	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyCol    = "계약번호"
	nameCol   = "고객명"
	assetCol  = "계좌자산"
	retCol    = "수익률"
	statusCol = "계약요청상태"
	approved  = "계약완료(승인)"
	cancelled = "계약해지"
)

var ledgerHeaders = []string{keyCol, nameCol, assetCol, retCol, statusCol, "비고"}

func newFokReconciler(t *testing.T) *Reconciler {
	t.Helper()
	rc, err := New(Options{
		KeyField:      keyCol,
		NameField:     nameCol,
		RefreshFields: []string{assetCol, retCol},
		Status:        &StatusRule{Field: statusCol, From: approved, To: cancelled},
		InsertAt:      -1,
	})
	require.NoError(t, err)
	return rc
}

func table(headers []string, rows ...types.Record) *types.Table {
	return &types.Table{Source: "test", Headers: headers, Rows: rows}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"123.0", "123"},
		{" 123 ", "123"},
		{123, "123"},
		{int64(123), "123"},
		{123.0, "123"},
		{float64(123456789012), "123456789012"},
		{" PLVA001\t", "PLVA001"},
		{"", ""},
		{"   ", ""},
		{nil, ""},
		{"007", "007"},
		{"12.05", "12.05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.in), "input %#v", tt.in)
	}
	assert.NotEqual(t, NormalizeKey("007"), NormalizeKey("7"))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing key", Options{RefreshFields: []string{assetCol}}},
		{"no refresh fields", Options{KeyField: keyCol}},
		{"key as refresh", Options{KeyField: keyCol, RefreshFields: []string{keyCol}}},
		{"partial status", Options{KeyField: keyCol, RefreshFields: []string{assetCol}, Status: &StatusRule{Field: statusCol}}},
		{"bad policy", Options{KeyField: keyCol, RefreshFields: []string{assetCol}, Duplicates: "middle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			assert.Error(t, err)
		})
	}

	rc, err := New(Options{KeyField: keyCol, RefreshFields: []string{assetCol}})
	require.NoError(t, err)
	assert.Equal(t, KeepLast, rc.Options().Duplicates)
}

func TestReconcileScenario(t *testing.T) {
	rc, err := New(Options{KeyField: "key", RefreshFields: []string{"balance"}, InsertAt: -1})
	require.NoError(t, err)

	ledger := table([]string{"key", "balance"},
		types.Record{"key": "A", "balance": "100"},
		types.Record{"key": "B", "balance": "200"},
	)
	incoming := table([]string{"key", "balance"},
		types.Record{"key": "B", "balance": "250"},
		types.Record{"key": "C", "balance": "50"},
	)

	res, err := rc.Reconcile(ledger, incoming)
	require.NoError(t, err)

	assert.Equal(t, []types.Record{{"key": "B", "balance": "250"}}, res.Updated)
	assert.Equal(t, []Entry{{Key: "A"}}, res.Removed)
	assert.Equal(t, []types.Record{{"key": "C", "balance": "50"}}, res.Added)
	assert.Equal(t, []types.Record{
		{"key": "B", "balance": "250"},
		{"key": "C", "balance": "50"},
	}, res.Rows())
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Changed)

	// inputs untouched
	assert.Equal(t, "200", ledger.Rows[1]["balance"])
}

func TestReconcileDisjointKeys(t *testing.T) {
	rc := newFokReconciler(t)

	ledger := table(ledgerHeaders,
		types.Record{keyCol: "1", nameCol: "김", assetCol: "10", retCol: "0.1", statusCol: approved, "비고": "memo"},
		types.Record{keyCol: "2", nameCol: "이", assetCol: "20", retCol: "0.2", statusCol: approved},
	)
	incoming := table([]string{keyCol, nameCol, assetCol, retCol, statusCol, "예수금"},
		types.Record{keyCol: "3.0", nameCol: "박", assetCol: "30", retCol: "0.3", statusCol: approved, "예수금": "5"},
		types.Record{keyCol: "4", nameCol: "최", assetCol: "40", retCol: "0.4", statusCol: cancelled, "예수금": "6"},
	)

	res, err := rc.Reconcile(ledger, incoming)
	require.NoError(t, err)

	assert.Empty(t, res.Updated)
	assert.Equal(t, []Entry{{"1", "김"}, {"2", "이"}}, res.Removed)
	assert.Equal(t, []Entry{{"3", "박"}, {"4", "최"}}, res.AddedEntries)
	require.Len(t, res.Added, 2)

	// mapped onto ledger schema: shared fields copied, export-only fields dropped
	assert.Equal(t, types.Record{keyCol: "3", nameCol: "박", assetCol: "30", retCol: "0.3", statusCol: approved}, res.Added[0])
	assert.NotContains(t, res.Added[1], "예수금")
	assert.Equal(t, 0, res.Matched)
}

func TestReconcileIdenticalSets(t *testing.T) {
	rc := newFokReconciler(t)

	rows := []types.Record{
		{keyCol: "1", nameCol: "김", assetCol: "10", retCol: "0.1", statusCol: approved, "비고": "x"},
		{keyCol: "2", nameCol: "이", assetCol: "20", retCol: "0.2", statusCol: "심사중"},
	}
	ledger := table(ledgerHeaders, rows...)
	incoming := table(ledgerHeaders, rows...)

	res, err := rc.Reconcile(ledger, incoming)
	require.NoError(t, err)

	assert.Equal(t, rows, res.Updated)
	assert.Empty(t, res.Added)
	assert.Empty(t, res.Removed)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 0, res.Changed)
	assert.False(t, res.HasChanges())
}

func TestReconcileIdempotent(t *testing.T) {
	rc := newFokReconciler(t)

	ledger := table(ledgerHeaders,
		types.Record{keyCol: "1", nameCol: "김", assetCol: "10", retCol: "0.1", statusCol: approved},
		types.Record{keyCol: "2", nameCol: "이", assetCol: "20", retCol: "0.2", statusCol: approved},
		types.Record{keyCol: "", nameCol: "키없음"},
	)
	incoming := table([]string{keyCol, nameCol, assetCol, retCol, statusCol},
		types.Record{keyCol: "2", nameCol: "이", assetCol: "25", retCol: "0.5", statusCol: cancelled},
		types.Record{keyCol: "5", nameCol: "정", assetCol: "50", retCol: "0.9", statusCol: approved},
	)

	first, err := rc.Reconcile(ledger, incoming)
	require.NoError(t, err)
	assert.True(t, first.HasChanges())

	second, err := rc.Reconcile(first.Table("ledger'"), incoming)
	require.NoError(t, err)

	assert.Equal(t, first.Rows(), second.Updated)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Removed)
	assert.Empty(t, second.StatusChanges)
	assert.Equal(t, 0, second.Changed)
	assert.False(t, second.HasChanges())
}

func TestReconcileStatusTransition(t *testing.T) {
	rc := newFokReconciler(t)

	t.Run("approved to cancelled", func(t *testing.T) {
		ledger := table(ledgerHeaders,
			types.Record{keyCol: "1", nameCol: "김", assetCol: "10", retCol: "0", statusCol: approved})
		incoming := table(ledgerHeaders,
			types.Record{keyCol: "1", nameCol: "김", assetCol: "0", retCol: "0", statusCol: cancelled})

		res, err := rc.Reconcile(ledger, incoming)
		require.NoError(t, err)
		require.Len(t, res.Updated, 1)
		assert.Equal(t, cancelled, res.Updated[0][statusCol])
		assert.Equal(t, []Entry{{"1", "김"}}, res.StatusChanges)
	})

	for _, start := range []string{"심사중", "계약요청", cancelled, ""} {
		t.Run("no transition from "+start, func(t *testing.T) {
			ledger := table(ledgerHeaders,
				types.Record{keyCol: "1", nameCol: "김", assetCol: "10", retCol: "0", statusCol: start})
			incoming := table(ledgerHeaders,
				types.Record{keyCol: "1", nameCol: "김", assetCol: "10", retCol: "0", statusCol: cancelled})

			res, err := rc.Reconcile(ledger, incoming)
			require.NoError(t, err)
			assert.Equal(t, start, res.Updated[0][statusCol])
			assert.Empty(t, res.StatusChanges)
		})
	}

	t.Run("no transition when export not cancelled", func(t *testing.T) {
		ledger := table(ledgerHeaders,
			types.Record{keyCol: "1", assetCol: "10", retCol: "0", statusCol: approved})
		incoming := table(ledgerHeaders,
			types.Record{keyCol: "1", assetCol: "10", retCol: "0", statusCol: "계약요청"})

		res, err := rc.Reconcile(ledger, incoming)
		require.NoError(t, err)
		assert.Equal(t, approved, res.Updated[0][statusCol])
		assert.Empty(t, res.StatusChanges)
	})
}

func TestReconcileMissingColumns(t *testing.T) {
	rc := newFokReconciler(t)

	ledger := table(ledgerHeaders)
	incoming := table([]string{keyCol, nameCol, assetCol})

	res, err := rc.Reconcile(ledger, incoming)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.IsMissingColumn(err))

	var mce *errors.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{retCol, statusCol}, mce.Missing)
}

func TestReconcileDuplicatePolicy(t *testing.T) {
	headers := []string{"key", "balance"}
	ledger := table(headers, types.Record{"key": "1", "balance": "0"})
	incoming := table(headers,
		types.Record{"key": "1", "balance": "first"},
		types.Record{"key": "2", "balance": "x"},
		types.Record{"key": "1.0", "balance": "last"},
	)

	for policy, want := range map[DuplicatePolicy]string{KeepFirst: "first", KeepLast: "last"} {
		t.Run(string(policy), func(t *testing.T) {
			rc, err := New(Options{KeyField: "key", RefreshFields: []string{"balance"}, Duplicates: policy, InsertAt: -1})
			require.NoError(t, err)

			res, err := rc.Reconcile(ledger, incoming)
			require.NoError(t, err)
			assert.Equal(t, want, res.Updated[0]["balance"])
			assert.Len(t, res.Added, 1)
		})
	}
}

func TestIndex(t *testing.T) {
	rows := []types.Record{
		{"key": "1", "v": "first"},
		{"key": ""},
		{"key": "2", "v": "x"},
		{"key": "1.0", "v": "last"},
	}

	first := Index(rows, "key", KeepFirst)
	assert.Equal(t, []string{"1", "2"}, first.Order)
	assert.Equal(t, "first", first.Rows["1"]["v"])

	last := Index(rows, "key", KeepLast)
	assert.Equal(t, []string{"2", "1"}, last.Order)
	assert.Equal(t, "last", last.Rows["1"]["v"])
	assert.Len(t, last.Rows, 2)
}

func TestResultInsertAt(t *testing.T) {
	headers := []string{"key", "balance"}
	ledger := table(headers,
		types.Record{"key": "A", "balance": "1"},
		types.Record{"key": "B", "balance": "2"},
	)
	incoming := table(headers,
		types.Record{"key": "A", "balance": "1"},
		types.Record{"key": "B", "balance": "2"},
		types.Record{"key": "C", "balance": "3"},
	)

	keys := func(rows []types.Record) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r["key"])
		}
		return out
	}

	for at, want := range map[int][]string{
		-1: {"A", "B", "C"},
		0:  {"C", "A", "B"},
		1:  {"A", "C", "B"},
		99: {"A", "B", "C"},
	} {
		rc, err := New(Options{KeyField: "key", RefreshFields: []string{"balance"}, InsertAt: at})
		require.NoError(t, err)
		res, err := rc.Reconcile(ledger, incoming)
		require.NoError(t, err)
		assert.Equal(t, want, keys(res.Rows()), "insert at %d", at)
	}
}
