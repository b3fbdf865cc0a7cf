package textutil

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Truncate shortens s to at most width terminal cells, ending in "…" when
// cut. Wide runes count as two cells.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

// Pad truncates s to width cells and right-pads it with spaces.
func Pad(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}

// Snippet collapses all whitespace in s to single spaces and truncates the
// result to width cells.
func Snippet(s string, width int) string {
	return Truncate(strings.Join(strings.Fields(s), " "), width)
}

// FirstLine returns the first non-empty-prefixed line of s.
func FirstLine(s string) string {
	s = strings.TrimLeft(s, "\r\n")
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
