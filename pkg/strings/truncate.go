package strings

import (
	"strings"
)

// DefaultColumnMaxLen is the default maximum length for free-text columns
// in formatted output, shared so tables truncate consistently.
const DefaultColumnMaxLen = 30

// MinTruncateLen is the minimum maxLen value for Truncate. Values smaller
// than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate shortens a string to maxLen characters and ensures single-line
// output: newlines and repeated whitespace collapse to single spaces, and
// "..." marks a truncation.
//
// Operates on runes rather than bytes so multi-byte characters are never
// cut in half.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
