// Package filter turns user-entered search fields into the normalized
// criteria object sent to the mail gateway.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wesm/inboxctl/internal/mail"
)

// TimeLayout is the wire format for dates: second precision, no zone.
const TimeLayout = "2006-01-02T15:04:05"

// ScopeAll searches every folder.
const ScopeAll = "all"

var (
	// ErrUnknownRange is returned for a relative range name that is not
	// one of Ranges().
	ErrUnknownRange = errors.New("unknown date range")
	// ErrInvalidDate is returned when the exact date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")
)

// relativeRange describes one named lookback window.
type relativeRange struct {
	name   string
	days   int
	months int
	years  int
}

// ranges lists the accepted windows in display order. Day and week windows
// are literal day counts; month and year windows are calendar arithmetic.
var ranges = []relativeRange{
	{name: "1 day", days: 1},
	{name: "3 days", days: 3},
	{name: "1 week", days: 7},
	{name: "2 weeks", days: 14},
	{name: "1 month", months: 1},
	{name: "2 months", months: 2},
	{name: "6 months", months: 6},
	{name: "1 year", years: 1},
}

// Ranges returns the accepted relative range names.
func Ranges() []string {
	names := make([]string, len(ranges))
	for i, r := range ranges {
		names[i] = r.name
	}
	return names
}

// Inputs holds the raw advanced-search form fields.
type Inputs struct {
	UserID        int64
	From          string // comma-separated senders
	To            string // comma-separated receivers
	Subject       string
	Words         string // body keywords
	DateRange     string // one of Ranges(), or empty
	ExactDate     string // YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS; wins over DateRange
	IsRead        *bool
	HasAttachment bool
}

// Criteria is the normalized query. Nil slices and pointers mean the field
// does not constrain the search.
type Criteria struct {
	UserID        int64
	Sender        []string
	Receiver      []string
	Subject       string
	Body          string
	ExactDate     *time.Time
	AfterDate     *time.Time
	BeforeDate    *time.Time
	IsRead        *bool
	HasAttachment *bool
}

// IsEmpty returns true if no field constrains the search.
func (c *Criteria) IsEmpty() bool {
	return len(c.Sender) == 0 &&
		len(c.Receiver) == 0 &&
		c.Subject == "" &&
		c.Body == "" &&
		c.ExactDate == nil &&
		c.AfterDate == nil &&
		c.BeforeDate == nil &&
		c.IsRead == nil &&
		c.HasAttachment == nil
}

// Build converts raw inputs into criteria. It performs no I/O; now anchors
// relative ranges.
func Build(in Inputs, now time.Time) (Criteria, error) {
	c := Criteria{
		UserID:   in.UserID,
		Sender:   mail.ParseList(in.From),
		Receiver: mail.ParseList(in.To),
		Subject:  strings.TrimSpace(in.Subject),
		Body:     strings.TrimSpace(in.Words),
		IsRead:   in.IsRead,
	}
	if in.HasAttachment {
		t := true
		c.HasAttachment = &t
	}

	switch {
	case strings.TrimSpace(in.ExactDate) != "":
		d, err := parseDate(in.ExactDate)
		if err != nil {
			return Criteria{}, err
		}
		c.ExactDate = &d
	case strings.TrimSpace(in.DateRange) != "":
		before, err := rangeStart(in.DateRange, now)
		if err != nil {
			return Criteria{}, err
		}
		after := now
		c.BeforeDate = &before
		c.AfterDate = &after
	}

	return c, nil
}

// General builds the breadth search: the same term against sender,
// receiver, subject and body.
func General(userID int64, text string) Criteria {
	term := strings.ToLower(strings.TrimSpace(text))
	return Criteria{
		UserID:   userID,
		Sender:   []string{term},
		Receiver: []string{term},
		Subject:  term,
		Body:     term,
	}
}

// rangeStart returns now moved back by the named window.
func rangeStart(name string, now time.Time) (time.Time, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, r := range ranges {
		if r.name == key {
			if r.days > 0 {
				return now.AddDate(0, 0, -r.days), nil
			}
			return now.AddDate(-r.years, -r.months, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRange, name)
}

// parseDate accepts a calendar date or a second-precision timestamp.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, TimeLayout, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// wireCriteria is the JSON shape the gateway expects.
type wireCriteria struct {
	UserID        int64    `json:"userId,omitempty"`
	Sender        []string `json:"sender,omitempty"`
	Receiver      []string `json:"receiver,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Body          string   `json:"body,omitempty"`
	ExactDate     string   `json:"exactDate,omitempty"`
	AfterDate     string   `json:"afterDate,omitempty"`
	BeforeDate    string   `json:"beforeDate,omitempty"`
	IsRead        *bool    `json:"isRead,omitempty"`
	HasAttachment *bool    `json:"hasAttachment,omitempty"`
}

// MarshalJSON encodes dates in TimeLayout and omits unconstrained fields.
func (c Criteria) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCriteria{
		UserID:        c.UserID,
		Sender:        c.Sender,
		Receiver:      c.Receiver,
		Subject:       c.Subject,
		Body:          c.Body,
		ExactDate:     formatTime(c.ExactDate),
		AfterDate:     formatTime(c.AfterDate),
		BeforeDate:    formatTime(c.BeforeDate),
		IsRead:        c.IsRead,
		HasAttachment: c.HasAttachment,
	})
}

// UnmarshalJSON decodes the wire shape.
func (c *Criteria) UnmarshalJSON(data []byte) error {
	var w wireCriteria
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Criteria{
		UserID:        w.UserID,
		Sender:        w.Sender,
		Receiver:      w.Receiver,
		Subject:       w.Subject,
		Body:          w.Body,
		IsRead:        w.IsRead,
		HasAttachment: w.HasAttachment,
	}
	var err error
	if out.ExactDate, err = parseOptional(w.ExactDate); err != nil {
		return err
	}
	if out.AfterDate, err = parseOptional(w.AfterDate); err != nil {
		return err
	}
	if out.BeforeDate, err = parseOptional(w.BeforeDate); err != nil {
		return err
	}
	*c = out
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func parseOptional(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
