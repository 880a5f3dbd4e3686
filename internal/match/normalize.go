// Package match holds the text normalizer and the keyword classifier that
// routes party titles to interest groups.
package match

import "strings"

// Normalize lowercases text, replaces everything outside [a-z0-9 ] with a
// space, collapses whitespace runs and trims. Titles and keywords must both
// go through it before any substring test.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}
