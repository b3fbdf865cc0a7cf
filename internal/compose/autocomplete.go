package compose

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/wesm/inboxctl/internal/contacts"
	"github.com/wesm/inboxctl/internal/mail"
)

const (
	minFragment    = 2
	maxSuggestions = 5
)

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Email string
	Name  string
}

type autocomplete struct {
	items  []Suggestion
	cursor int // -1 when nothing is highlighted
}

// update recomputes the suggestions for fragment.
func (a *autocomplete) update(fragment string, list []mail.Contact) {
	a.items = nil
	a.cursor = -1
	fragment = strings.TrimSpace(fragment)
	if len([]rune(fragment)) < minFragment {
		return
	}
	fold := cases.Fold()
	q := fold.String(fragment)
	for _, c := range list {
		if !contacts.Matches(fold, c, q) {
			continue
		}
		for _, e := range c.Emails {
			if contacts.Matches(fold, mail.Contact{Name: c.Name, Emails: []string{e}}, q) {
				a.items = append(a.items, Suggestion{Email: e, Name: c.Name})
				if len(a.items) == maxSuggestions {
					return
				}
			}
		}
	}
}

func (s *Session) contacts() []mail.Contact {
	if s.directory == nil {
		return nil
	}
	return s.directory.Contacts()
}

// Suggestions returns the current candidates and the highlighted index
// (-1 when none).
func (s *Session) Suggestions() ([]Suggestion, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Suggestion(nil), s.ac.items...), s.ac.cursor
}

// NextSuggestion moves the highlight down, wrapping to the top.
func (s *Session) NextSuggestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.ac.items); n > 0 {
		s.ac.cursor = (s.ac.cursor + 1) % n
	}
}

// PrevSuggestion moves the highlight up, wrapping to the bottom.
func (s *Session) PrevSuggestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.ac.items); n > 0 {
		if s.ac.cursor <= 0 {
			s.ac.cursor = n - 1
		} else {
			s.ac.cursor--
		}
	}
}

// SelectSuggestion commits the highlighted candidate, or the first when
// none is highlighted, as the sole recipient and clears the suggestions.
func (s *Session) SelectSuggestion() (Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ac.items) == 0 {
		return Suggestion{}, false
	}
	i := s.ac.cursor
	if i < 0 {
		i = 0
	}
	picked := s.ac.items[i]
	s.to = picked.Email
	s.ac = autocomplete{cursor: -1}
	return picked, true
}

// DismissSuggestions hides the candidates without changing the recipients.
func (s *Session) DismissSuggestions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ac = autocomplete{cursor: -1}
}

var _ Directory = (*contacts.Directory)(nil)
