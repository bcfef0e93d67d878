// =============================================================================
// ledgersync - Transformation Engine
// =============================================================================
//
// This module rewrites export values before they are reconciled, so that the
// incoming set uses the same conventions as the ledger.
//
// TRANSFORMATION TYPES:
//   - String manipulations (trim, case, replace, regex, prepend/append)
//   - Key cleanup (strip_decimal_zero, force_text for scientific notation)
//   - Code padding (pad_zeros_to_length, e.g. product code 4 -> "004")
//   - Date formatting (excel_date, serial or text date -> layout)
//   - Lookup table replacements
//
// Rules are configured per job. Each rule targets one column and runs its
// actions in order, each action seeing the previous result.
//
// =============================================================================

package transform

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/types"
	"github.com/ginjaninja78/ledgersync/internal/validation"
	"github.com/xuri/excelize/v2"
)

// DefaultDateLayout is the excel_date output layout when none is configured.
const DefaultDateLayout = "2006/01/02"

// dateLayouts are the text date forms excel_date and ParseDate accept.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	"2006. 1. 2",
}

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies configured rules to table values.
type Transformer struct {
	rules  []config.TransformationRule
	byName map[string]*config.TransformationRule
	regex  map[string]*regexp.Regexp
}

// NewTransformer checks the rules and compiles their patterns.
//
// RETURNS:
//   - The transformer.
//   - An error for an unknown action type or an invalid pattern.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{
		rules:  rules,
		byName: make(map[string]*config.TransformationRule, len(rules)),
		regex:  make(map[string]*regexp.Regexp),
	}

	for i := range rules {
		rule := &rules[i]
		field := types.NormalizeHeader(rule.Field)
		if _, dup := t.byName[field]; dup {
			return nil, fmt.Errorf("field %s has more than one transformation rule", field)
		}
		t.byName[field] = rule

		for _, action := range rule.Actions {
			if !known[action.Type] {
				return nil, fmt.Errorf("unknown transformation type: %s", action.Type)
			}
			if action.Type == "regex_replace" && action.Find != "" {
				re, err := regexp.Compile(action.Find)
				if err != nil {
					return nil, fmt.Errorf("invalid regex pattern for %s: %w", field, err)
				}
				t.regex[action.Find] = re
			}
		}
	}
	return t, nil
}

// Fields returns the columns the rules apply to.
func (t *Transformer) Fields() []string {
	fields := make([]string, 0, len(t.byName))
	for i := range t.rules {
		fields = append(fields, types.NormalizeHeader(t.rules[i].Field))
	}
	return fields
}

// Transform applies the rule for fieldName, if any, to value.
func (t *Transformer) Transform(fieldName, value string) (string, error) {
	rule, ok := t.byName[fieldName]
	if !ok {
		return value, nil
	}

	result := value
	for _, action := range rule.Actions {
		var err error
		result, err = t.apply(result, action)
		if err != nil {
			return "", fmt.Errorf("transformation '%s' failed: %w", action.Type, err)
		}
	}
	return result, nil
}

// TransformTable returns a copy of table with every rule applied. A rule
// whose column is absent fails with a *errors.MissingColumnError.
func (t *Transformer) TransformTable(table *types.Table) (*types.Table, error) {
	if err := validation.RequireColumns(table, t.Fields()...); err != nil {
		return nil, err
	}

	out := &types.Table{
		Source:  table.Source,
		Headers: append([]string(nil), table.Headers...),
		Rows:    make([]types.Record, len(table.Rows)),
	}
	for i, row := range table.Rows {
		next := row.Clone()
		for field := range t.byName {
			v, err := t.Transform(field, row[field])
			if err != nil {
				return nil, fmt.Errorf("row %d, field '%s': %w", i+1, field, err)
			}
			next[field] = v
		}
		out.Rows[i] = next
	}
	return out, nil
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

var known = map[string]bool{
	"trim": true, "uppercase": true, "lowercase": true,
	"strip_decimal_zero": true, "pad_zeros_to_length": true,
	"excel_date": true, "force_text": true,
	"replace": true, "regex_replace": true,
	"prepend_string": true, "append_string": true,
	"lookup": true, "if_empty_use_default": true,
}

// apply runs a single action.
func (t *Transformer) apply(value string, action config.TransformationAction) (string, error) {
	switch action.Type {

	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "prepend_string":
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		if action.Find == "" {
			return value, nil
		}
		return t.regex[action.Find].ReplaceAllString(value, action.Value), nil

	case "strip_decimal_zero":
		// "1234.0" -> "1234"
		return strings.TrimSuffix(strings.TrimSpace(value), ".0"), nil

	case "pad_zeros_to_length":
		// "4" -> "004" with value "3". Only all-digit values are padded.
		n, err := strconv.Atoi(action.Value)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("pad length %q is not a positive integer", action.Value)
		}
		v := strings.TrimSpace(value)
		if !isDigits(v) {
			return v, nil
		}
		return PadLeft(v, n, '0'), nil

	case "force_text":
		return ForceText(value), nil

	case "excel_date":
		layout := action.Value
		if layout == "" {
			layout = DefaultDateLayout
		}
		d, ok := ParseDate(value)
		if !ok {
			return value, nil
		}
		return d.Format(layout), nil

	case "lookup":
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return value, nil

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// PadLeft pads s on the left with padChar up to length runes.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ForceText renders numbers in scientific notation as plain integer text,
// e.g. "1.23456789012E+11" -> "123456789012". Other values are trimmed only.
func ForceText(value string) string {
	v := strings.TrimSpace(value)
	if !strings.ContainsAny(v, "eE") {
		return strings.TrimSuffix(v, ".0")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseDate reads an Excel serial number or a text date.
func ParseDate(value string) (time.Time, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(v, 64); err == nil && !strings.ContainsAny(v, "-/") {
		// Serials are days since 1900; eight-digit values are yyyymmdd text.
		if serial > 0 && serial < 100000 {
			t, err := excelize.ExcelDateToTime(serial, false)
			if err == nil {
				return t, true
			}
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
