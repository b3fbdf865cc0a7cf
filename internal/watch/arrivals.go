package watch

import (
	"sync"

	"github.com/wesm/inboxctl/internal/mail"
)

// Arrivals remembers which message ids have been seen in each folder.
type Arrivals struct {
	mu   sync.Mutex
	seen map[string]map[int64]bool
}

// NewArrivals returns an empty tracker.
func NewArrivals() *Arrivals {
	return &Arrivals{seen: make(map[string]map[int64]bool)}
}

// Diff records msgs as the current content of folder and returns those not
// present last time, in input order. The first call for a folder only
// records a baseline and returns nil. Ids that left the folder are
// forgotten, so a message moved out and back counts as new.
func (a *Arrivals) Diff(folder string, msgs []mail.Message) []mail.Message {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev, primed := a.seen[folder]
	next := make(map[int64]bool, len(msgs))
	var fresh []mail.Message
	for _, m := range msgs {
		next[m.ID] = true
		if primed && !prev[m.ID] {
			fresh = append(fresh, m)
		}
	}
	a.seen[folder] = next
	return fresh
}

// Forget drops the baseline for folder.
func (a *Arrivals) Forget(folder string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.seen, folder)
}
