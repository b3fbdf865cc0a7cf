package filter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/testutil/ptr"
)

var fixedNow = time.Date(2025, 3, 31, 12, 30, 45, 0, time.UTC)

// assertCriteriaEqual compares two Criteria, treating nil and empty slices
// as equivalent.
func assertCriteriaEqual(t *testing.T, got, want Criteria) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Criteria mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Lists(t *testing.T) {
	c, err := Build(Inputs{
		UserID: 7,
		From:   " alice@example.com , ,bob@example.com",
		To:     "   ",
		Words:  " invoice ",
	}, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertCriteriaEqual(t, c, Criteria{
		UserID: 7,
		Sender: []string{"alice@example.com", "bob@example.com"},
		Body:   "invoice",
	})
	if c.Receiver != nil {
		t.Errorf("Receiver = %#v, want nil so the field is omitted", c.Receiver)
	}
}

func TestBuild_EmptyListsOmittedOnWire(t *testing.T) {
	c, err := Build(Inputs{From: ",", To: ""}, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, field := range []string{"sender", "receiver", "isRead", "hasAttachment"} {
		if strings.Contains(string(data), field) {
			t.Errorf("wire payload %s should not mention %q", data, field)
		}
	}
}

func TestBuild_OneWeek(t *testing.T) {
	c, err := Build(Inputs{DateRange: "1 week"}, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.BeforeDate == nil || c.AfterDate == nil {
		t.Fatalf("expected before and after dates, got %+v", c)
	}
	if want := fixedNow.Add(-7 * 24 * time.Hour); !c.BeforeDate.Equal(want) {
		t.Errorf("BeforeDate = %v, want %v", c.BeforeDate, want)
	}
	if !c.AfterDate.Equal(fixedNow) {
		t.Errorf("AfterDate = %v, want %v", c.AfterDate, fixedNow)
	}
	if c.ExactDate != nil {
		t.Errorf("ExactDate = %v, want nil", c.ExactDate)
	}
}

func TestBuild_OneWeekAgainstWallClock(t *testing.T) {
	start := time.Now()
	c, err := Build(Inputs{DateRange: "1 week"}, time.Now())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	end := time.Now()

	if c.BeforeDate.Before(start.AddDate(0, 0, -7)) || c.BeforeDate.After(end.AddDate(0, 0, -7)) {
		t.Errorf("BeforeDate %v not 7 days before call window [%v, %v]", c.BeforeDate, start, end)
	}
	if c.AfterDate.After(end.Add(2 * time.Second)) {
		t.Errorf("AfterDate %v later than call time %v", c.AfterDate, end)
	}
}

func TestBuild_CalendarRanges(t *testing.T) {
	tests := []struct {
		rng  string
		want time.Time
	}{
		{"1 day", time.Date(2025, 3, 30, 12, 30, 45, 0, time.UTC)},
		{"3 days", time.Date(2025, 3, 28, 12, 30, 45, 0, time.UTC)},
		{"2 weeks", time.Date(2025, 3, 17, 12, 30, 45, 0, time.UTC)},
		// Calendar month arithmetic: March 31 minus one month normalizes
		// past February, unlike a fixed 30-day subtraction.
		{"1 month", fixedNow.AddDate(0, -1, 0)},
		{"2 months", time.Date(2025, 1, 31, 12, 30, 45, 0, time.UTC)},
		{"6 months", time.Date(2024, 10, 1, 12, 30, 45, 0, time.UTC)},
		{"1 year", time.Date(2024, 3, 31, 12, 30, 45, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.rng, func(t *testing.T) {
			c, err := Build(Inputs{DateRange: tt.rng}, fixedNow)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !c.BeforeDate.Equal(tt.want) {
				t.Errorf("BeforeDate = %v, want %v", c.BeforeDate, tt.want)
			}
		})
	}
}

func TestBuild_ExactDateWins(t *testing.T) {
	c, err := Build(Inputs{ExactDate: "2024-05-01", DateRange: "1 week"}, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.ExactDate == nil || !c.ExactDate.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ExactDate = %v", c.ExactDate)
	}
	if c.BeforeDate != nil || c.AfterDate != nil {
		t.Errorf("range must not be sent with an exact date: %+v", c)
	}
}

func TestBuild_Errors(t *testing.T) {
	if _, err := Build(Inputs{DateRange: "5 fortnights"}, fixedNow); !errors.Is(err, ErrUnknownRange) {
		t.Errorf("unknown range err = %v", err)
	}
	if _, err := Build(Inputs{ExactDate: "yesterday"}, fixedNow); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("bad date err = %v", err)
	}
}

func TestBuild_FlagsCarried(t *testing.T) {
	c, err := Build(Inputs{IsRead: ptr.To(false), HasAttachment: true}, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	assertCriteriaEqual(t, c, Criteria{IsRead: ptr.To(false), HasAttachment: ptr.To(true)})
}

func TestGeneral(t *testing.T) {
	assertCriteriaEqual(t, General(3, "  Invoice "), Criteria{
		UserID:   3,
		Sender:   []string{"invoice"},
		Receiver: []string{"invoice"},
		Subject:  "invoice",
		Body:     "invoice",
	})
}

func TestCriteriaJSONRoundTripsDates(t *testing.T) {
	c, err := Build(Inputs{DateRange: "3 days"}, fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"afterDate":"2025-03-31T12:30:45"`) {
		t.Errorf("payload %s missing second-precision afterDate", data)
	}

	var back Criteria
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	assertCriteriaEqual(t, back, c)
}

func TestMatchAllAndAny(t *testing.T) {
	msg := &mail.Message{
		Sender:    "Alice@Example.com",
		Receiver:  "bob@example.com",
		Subject:   "Quarterly invoice",
		Body:      "please pay",
		Timestamp: fixedNow.AddDate(0, 0, -2),
	}

	week, _ := Build(Inputs{DateRange: "1 week", From: "alice"}, fixedNow)
	if !MatchAll(week, msg) {
		t.Error("MatchAll should accept sender within the last week")
	}
	day, _ := Build(Inputs{DateRange: "1 day", From: "alice"}, fixedNow)
	if MatchAll(day, msg) {
		t.Error("MatchAll should reject a message older than one day")
	}
	both, _ := Build(Inputs{From: "alice", Subject: "refund"}, fixedNow)
	if MatchAll(both, msg) {
		t.Error("MatchAll must AND the supplied fields")
	}

	if !MatchAny(General(0, "INVOICE"), msg) {
		t.Error("MatchAny should find the term in the subject")
	}
	if MatchAny(General(0, "zebra"), msg) {
		t.Error("MatchAny should not match an absent term")
	}
}
