package filter

import (
	"strings"
	"time"

	"github.com/wesm/inboxctl/internal/mail"
)

// MatchAll reports whether m satisfies every constrained field of c.
// Address and text comparisons are case-insensitive substring matches.
func MatchAll(c Criteria, m *mail.Message) bool {
	if len(c.Sender) > 0 && !containsAny(m.Sender, c.Sender) {
		return false
	}
	if len(c.Receiver) > 0 && !containsAny(m.Receiver, c.Receiver) {
		return false
	}
	if c.Subject != "" && !containsFold(m.Subject, c.Subject) {
		return false
	}
	if c.Body != "" && !containsFold(m.Body, c.Body) {
		return false
	}
	if c.IsRead != nil && m.IsRead != *c.IsRead {
		return false
	}
	if c.HasAttachment != nil && m.HasAttachments() != *c.HasAttachment {
		return false
	}
	return matchDate(c, m.Timestamp)
}

// MatchAny reports whether any text field of c matches m. Used for the
// general search, where one term is applied to every field.
func MatchAny(c Criteria, m *mail.Message) bool {
	if !matchDate(c, m.Timestamp) {
		return false
	}
	if len(c.Sender) > 0 && containsAny(m.Sender, c.Sender) {
		return true
	}
	if len(c.Receiver) > 0 && containsAny(m.Receiver, c.Receiver) {
		return true
	}
	if c.Subject != "" && containsFold(m.Subject, c.Subject) {
		return true
	}
	if c.Body != "" && containsFold(m.Body, c.Body) {
		return true
	}
	return len(c.Sender) == 0 && len(c.Receiver) == 0 && c.Subject == "" && c.Body == ""
}

// matchDate applies the exact-date or before/after window. BeforeDate is the
// earliest accepted time and AfterDate the latest, matching how relative
// ranges are built.
func matchDate(c Criteria, ts time.Time) bool {
	if c.ExactDate != nil {
		y1, m1, d1 := c.ExactDate.UTC().Date()
		y2, m2, d2 := ts.UTC().Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
	if c.BeforeDate != nil && ts.Before(*c.BeforeDate) {
		return false
	}
	if c.AfterDate != nil && ts.After(*c.AfterDate) {
		return false
	}
	return true
}

func containsAny(field string, needles []string) bool {
	for _, n := range needles {
		if containsFold(field, n) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
