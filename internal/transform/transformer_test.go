package transform

import (
	"testing"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func action(typ, value string) config.TransformationAction {
	return config.TransformationAction{Type: typ, Value: value}
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name    string
		actions []config.TransformationAction
		in      string
		want    string
	}{
		{"trim", []config.TransformationAction{action("trim", "")}, "  a b ", "a b"},
		{"upper", []config.TransformationAction{action("uppercase", "")}, "plva1", "PLVA1"},
		{"lower", []config.TransformationAction{action("lowercase", "")}, "ABC", "abc"},
		{"strip", []config.TransformationAction{action("strip_decimal_zero", "")}, "4.0", "4"},
		{"pad", []config.TransformationAction{action("pad_zeros_to_length", "3")}, "4", "004"},
		{"pad blank", []config.TransformationAction{action("pad_zeros_to_length", "3")}, " ", ""},
		{"pad non-digit", []config.TransformationAction{action("pad_zeros_to_length", "3")}, "A1", "A1"},
		{"pad long", []config.TransformationAction{action("pad_zeros_to_length", "3")}, "1234", "1234"},
		{"strip then pad", []config.TransformationAction{
			action("strip_decimal_zero", ""), action("pad_zeros_to_length", "3"),
		}, "5.0", "005"},
		{"force text", []config.TransformationAction{action("force_text", "")}, "1.23456789012E+11", "123456789012"},
		{"force text plain", []config.TransformationAction{action("force_text", "")}, "0101234.0", "0101234"},
		{"serial date", []config.TransformationAction{action("excel_date", "")}, "45000", "2023/03/15"},
		{"text date", []config.TransformationAction{action("excel_date", "2006-01-02")}, "2023.03.15", "2023-03-15"},
		{"compact date", []config.TransformationAction{action("excel_date", "")}, "20230315", "2023/03/15"},
		{"bad date kept", []config.TransformationAction{action("excel_date", "")}, "미정", "미정"},
		{"prepend append", []config.TransformationAction{
			action("prepend_string", "<"), action("append_string", ">"),
		}, "x", "<x>"},
		{"replace", []config.TransformationAction{{Type: "replace", Find: "-", Value: ""}}, "010-12", "01012"},
		{"regex", []config.TransformationAction{{Type: "regex_replace", Find: `[^0-9]`, Value: ""}}, "A1-2", "12"},
		{"lookup", []config.TransformationAction{{Type: "lookup", LookupTable: map[string]string{"1": "일임"}}}, "1", "일임"},
		{"lookup miss", []config.TransformationAction{{Type: "lookup", LookupTable: map[string]string{"1": "일임"}}}, "2", "2"},
		{"default", []config.TransformationAction{action("if_empty_use_default", "-")}, "", "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransformer([]config.TransformationRule{{Field: "f", Actions: tt.actions}})
			require.NoError(t, err)

			got, err := tr.Transform("f", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			untouched, err := tr.Transform("other", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.in, untouched)
		})
	}
}

func TestNewTransformerErrors(t *testing.T) {
	_, err := NewTransformer([]config.TransformationRule{{Field: "f", Actions: []config.TransformationAction{action("explode", "")}}})
	assert.Error(t, err)

	_, err = NewTransformer([]config.TransformationRule{{Field: "f", Actions: []config.TransformationAction{{Type: "regex_replace", Find: "("}}}})
	assert.Error(t, err)

	_, err = NewTransformer([]config.TransformationRule{
		{Field: "f", Actions: []config.TransformationAction{action("trim", "")}},
		{Field: " f", Actions: []config.TransformationAction{action("trim", "")}},
	})
	assert.Error(t, err)
}

func TestPadLengthError(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{{Field: "f", Actions: []config.TransformationAction{action("pad_zeros_to_length", "x")}}})
	require.NoError(t, err)
	_, err = tr.Transform("f", "1")
	assert.Error(t, err)
}

func TestTransformTable(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{
		{Field: "상품", Actions: []config.TransformationAction{action("strip_decimal_zero", ""), action("pad_zeros_to_length", "3")}},
	})
	require.NoError(t, err)

	in := &types.Table{
		Source:  "hts.xlsx",
		Headers: []string{"상품", "고객명"},
		Rows:    []types.Record{{"상품": "4", "고객명": "김"}, {"상품": "15.0", "고객명": "이"}},
	}

	out, err := tr.TransformTable(in)
	require.NoError(t, err)
	assert.Equal(t, "004", out.Rows[0]["상품"])
	assert.Equal(t, "015", out.Rows[1]["상품"])
	assert.Equal(t, "이", out.Rows[1]["고객명"])
	assert.Equal(t, "4", in.Rows[0]["상품"])

	_, err = tr.TransformTable(&types.Table{Headers: []string{"고객명"}})
	assert.True(t, errors.IsMissingColumn(err))
}

func TestParseDate(t *testing.T) {
	d, ok := ParseDate("44927")
	require.True(t, ok)
	assert.Equal(t, "2023-01-01", d.Format("2006-01-02"))

	_, ok = ParseDate("")
	assert.False(t, ok)

	_, ok = ParseDate("abc")
	assert.False(t, ok)
}
