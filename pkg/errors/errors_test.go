package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMissingColumnError(t *testing.T) {
	err := pkgerrors.NewMissingColumnError("FOK_DATA", []string{"수익률", "계좌자산"}, []string{"계약번호"})
	assert.Equal(t, "FOK_DATA: missing column(s) ['계좌자산', '수익률'] (found: ['계약번호'])", err.Error())
	assert.True(t, pkgerrors.IsMissingColumn(err))
	assert.True(t, pkgerrors.IsMissingColumn(fmt.Errorf("reconcile: %w", err)))
	assert.False(t, pkgerrors.IsNotFound(err))
}

func TestNoInputFileError(t *testing.T) {
	err := &pkgerrors.NoInputFileError{Dir: "/tmp/dl", Prefix: "file_", Extensions: []string{".xls", ".xlsx"}}
	assert.Equal(t, "no file matching 'file_*' with extension .xls/.xlsx in /tmp/dl", err.Error())
	assert.True(t, pkgerrors.IsNoInputFile(err))
}

func TestNotFoundError(t *testing.T) {
	t.Run("without locations", func(t *testing.T) {
		err := pkgerrors.NewNotFoundError("sheet", "Daily")
		assert.Equal(t, "sheet Daily not found", err.Error())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("with locations", func(t *testing.T) {
		err := pkgerrors.NewNotFoundError("ledger", "data.xlsx", "/a", "/b")
		assert.Contains(t, err.Error(), "tried:\n  /a\n  /b")
	})
}

func TestConfigError(t *testing.T) {
	base := errors.New("boom")
	err := pkgerrors.NewConfigError("jobs[0]", "bad kind", base)
	assert.Equal(t, "configuration error in jobs[0]: bad kind: boom", err.Error())
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidConfig))
	assert.True(t, errors.Is(err, base))
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed", &pkgerrors.BusyError{Op: "save", Err: errors.New("x")}, true},
		{"windows sharing", errors.New("The process cannot access the file because it is being used by another process."), true},
		{"ebusy", errors.New("open x.xlsx: device or resource busy"), true},
		{"other", errors.New("permission denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.IsBusy(tt.err))
		})
	}
}
