package compose

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoRecipients is returned when the recipient field is empty.
var ErrNoRecipients = errors.New("please enter at least one recipient")

// InvalidAddressError lists recipients that are not valid addresses.
type InvalidAddressError struct {
	Addresses []string
}

func (e *InvalidAddressError) Error() string {
	return "invalid email address(es): " + strings.Join(e.Addresses, ", ")
}

var addressRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidAddress reports whether s has the local@domain.tld shape.
func ValidAddress(s string) bool {
	return addressRe.MatchString(s)
}

// ValidateRecipients checks an already split recipient list.
func ValidateRecipients(recipients []string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	var bad []string
	for _, r := range recipients {
		if !ValidAddress(r) {
			bad = append(bad, r)
		}
	}
	if len(bad) > 0 {
		return &InvalidAddressError{Addresses: bad}
	}
	return nil
}

// priorityGlyphs index by priority level.
var priorityGlyphs = [...]string{"", "⚪", "🟢", "🔵", "🟠", "🔴"}

// PriorityGlyph returns the display marker for a priority level.
func PriorityGlyph(p int) string {
	if p < 1 || p >= len(priorityGlyphs) {
		return priorityGlyphs[1]
	}
	return priorityGlyphs[p]
}
