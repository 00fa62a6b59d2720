// Package textnorm collapses whitespace and case so that the same text
// scraped twice compares equal.
package textnorm

import (
	"strings"
	"unicode"
)

// Normalize lower-cases s, collapses every run of Unicode white space
// (including no-break space) to one ASCII space and trims the ends.
func Normalize(s string) string {
	return strings.ToLower(Clean(s))
}

// Clean is Normalize without lower-casing. Used for display fields.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// Ptr returns nil for text that is empty after cleaning.
func Ptr(s string) *string {
	s = Clean(s)
	if s == "" {
		return nil
	}
	return &s
}
