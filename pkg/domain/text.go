package domain

import (
	"strings"
	"unicode"
)

// CleanLine trims s and removes every control character. Used for
// single-line fields such as names and locations.
func CleanLine(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// CleanText trims s and removes control characters except newline,
// carriage return and tab.
func CleanText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}
