package workbook

import (
	"strconv"
	"strings"
)

// CellValue converts a text value into what is written to a cell.
//
// Blank text clears the cell. Text is kept as text when asText is set, when
// it has a leading zero ("0101", "004") or when it is too long to survive a
// float. Otherwise integers and decimals become numbers.
func CellValue(v string, asText bool) any {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	if asText || hasLeadingZero(s) {
		return v
	}

	digits := strings.TrimPrefix(s, "-")
	if isInteger(digits) {
		if len(digits) > 15 {
			return v
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && isPlainDecimal(digits) {
		return f
	}
	return v
}

func hasLeadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

func isInteger(s string) bool {
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

// isPlainDecimal accepts "12.5" and "1.5E-3" forms but not "NaN" or "Inf".
func isPlainDecimal(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == 'e', r == 'E', r == '-', r == '+':
		default:
			return false
		}
	}
	return true
}
