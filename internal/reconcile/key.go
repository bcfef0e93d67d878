package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NormalizeKey returns the canonical text of a contract or account number.
// The value is stringified, surrounding whitespace (NBSP included) is trimmed
// and one trailing ".0" left by float coercion is removed. An empty result
// means the record has no key.
//
// Keys compare by string equality: "007" and "7" are different keys.
func NormalizeKey(v any) string {
	var s string

	switch t := v.(type) {
	case nil:
		return ""
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}

	s = strings.TrimFunc(s, unicode.IsSpace)
	s = strings.TrimSuffix(s, ".0")
	return s
}
