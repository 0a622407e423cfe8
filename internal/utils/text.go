// Package utils holds small shared helpers for text cleanup and
// human-readable formatting.
package utils

import (
	"strings"
	"unicode"
)

// CleanText normalizes a raw OCR span: control characters become spaces,
// runs of whitespace collapse to one space, surrounding whitespace is
// trimmed. OCR output is full of stray newlines and null bytes; geocoding
// works much better on the cleaned form.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true // trims leading whitespace
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimRight(b.String(), " ")
}

// Truncate shortens s to at most max runes, appending an ellipsis when
// anything was cut. max must be at least 4.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
