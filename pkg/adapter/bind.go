package adapter

import (
	"fmt"
)

// BindNamed rewrites named parameters (":name") into positional ones and
// returns the matching argument list. Text inside quotes and "::" casts is
// left alone. placeholder renders the n-th parameter; nil means "?".
func BindNamed(sqlStr string, params map[string]any, placeholder func(n int) string) (string, []any, error) {
	if placeholder == nil {
		placeholder = func(int) string { return "?" }
	}

	out := make([]byte, 0, len(sqlStr))
	var args []any
	for i := 0; i < len(sqlStr); i++ {
		c := sqlStr[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(sqlStr, i)
			out = append(out, sqlStr[i:end]...)
			i = end - 1

		case c == ':' && i+1 < len(sqlStr) && sqlStr[i+1] == ':':
			out = append(out, "::"...)
			i++

		case c == ':' && i+1 < len(sqlStr) && isNameStart(sqlStr[i+1]):
			j := i + 1
			for j < len(sqlStr) && isNamePart(sqlStr[j]) {
				j++
			}
			name := sqlStr[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("missing value for parameter :%s", name)
			}
			args = append(args, value)
			out = append(out, placeholder(len(args))...)
			i = j - 1

		default:
			out = append(out, c)
		}
	}
	return string(out), args, nil
}

// closingQuote returns the index just past the quoted run starting at
// start. A doubled quote character is an escaped quote.
func closingQuote(s string, start int) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		if s[i] != q {
			continue
		}
		if i+1 < len(s) && s[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// DollarPlaceholder renders PostgreSQL-style "$n" parameters.
func DollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
