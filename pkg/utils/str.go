package utils

import (
	"regexp"
	"strings"
)

// SplitByMultipleDelimiters splits s on any of the delimiters. Surrounding
// whitespace is trimmed and empty parts are dropped.
func SplitByMultipleDelimiters(s string, delimiters ...string) []string {
	if len(delimiters) == 0 {
		return []string{strings.TrimSpace(s)}
	}
	re := regexp.MustCompile("[" + regexp.QuoteMeta(strings.Join(delimiters, "")) + "]")
	parts := re.Split(s, -1)
	out := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
