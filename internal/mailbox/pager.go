package mailbox

import "fmt"

// DefaultPageSize is the number of messages shown per page.
const DefaultPageSize = 6

// Window is the half-open range [Start, End) of the loaded list that is
// currently visible.
type Window struct {
	Start int
	End   int
	Total int
}

// computeWindow derives the window from the list length, page size and the
// first visible index. The result never references an index >= total.
func computeWindow(total, size, start int) Window {
	if size < 1 {
		size = DefaultPageSize
	}
	if total <= 0 {
		return Window{}
	}
	if start < 0 {
		start = 0
	}
	if start >= total {
		start = ((total - 1) / size) * size
	}
	end := start + size
	if end > total {
		end = total
	}
	return Window{Start: start, End: end, Total: total}
}

// Len returns the number of visible messages.
func (w Window) Len() int { return w.End - w.Start }

// HasPrev reports whether a previous page exists.
func (w Window) HasPrev() bool { return w.Start > 0 }

// HasNext reports whether a following page exists.
func (w Window) HasNext() bool { return w.End < w.Total }

// Label renders the window as "1-6 of 14".
func (w Window) Label() string {
	if w.Total == 0 {
		return "0-0 of 0"
	}
	return fmt.Sprintf("%d-%d of %d", w.Start+1, w.End, w.Total)
}
