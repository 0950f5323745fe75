package documents

import "unicode/utf8"

const (
	descriptionLimit = 40
	notesLimit       = 80
	ellipsis         = ".."
)

// Truncate shortens s to at most n runes, marking the cut with "..".
// Strings that already fit are returned unchanged.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if n < len(ellipsis) {
		return string(r[:n])
	}
	return string(r[:n-len(ellipsis)]) + ellipsis
}
