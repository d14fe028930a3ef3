// Package strutil provides small string helpers shared across packages.
package strutil

// Ellipsis is appended to strings shortened by Truncate.
const Ellipsis = "..."

// Truncate shortens s to at most maxLen runes and appends Ellipsis when anything was cut.
// Counting runes keeps multi-byte characters intact.
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + Ellipsis
}
