package filter

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/wesm/inboxctl/internal/testutil/ptr"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Criteria
		terms []string
	}{
		{
			name:  "from operator",
			query: "from:Alice@Example.com",
			want:  Criteria{Sender: []string{"alice@example.com"}},
		},
		{
			name:  "multiple from and to",
			query: "from:alice from:bob to:carol",
			want: Criteria{
				Sender:   []string{"alice", "bob"},
				Receiver: []string{"carol"},
			},
		},
		{
			name:  "bare text",
			query: "hello world",
			want:  Criteria{Body: "hello world"},
			terms: []string{"hello", "world"},
		},
		{
			name:  "quoted phrase",
			query: `"hello   world"`,
			want:  Criteria{Body: "hello   world"},
			terms: []string{"hello", "world"},
		},
		{
			name:  "subject with quoted phrase",
			query: `subject:"meeting notes" from:alice`,
			want: Criteria{
				Subject: "meeting notes",
				Sender:  []string{"alice"},
			},
			terms: []string{"meeting", "notes"},
		},
		{
			name:  "single-quoted operator value",
			query: `subject:'q3 report'`,
			want:  Criteria{Subject: "q3 report"},
			terms: []string{"q3", "report"},
		},
		{
			name:  "repeated subject joins",
			query: `subject:urgent subject:"very important"`,
			want:  Criteria{Subject: "urgent very important"},
			terms: []string{"urgent", "very", "important"},
		},
		{
			name:  "quoted phrase with colon is text",
			query: `"re: lunch" from:bob`,
			want: Criteria{
				Body:   "re: lunch",
				Sender: []string{"bob"},
			},
			terms: []string{"re:", "lunch"},
		},
		{
			name:  "unknown operator is text",
			query: "label:work meeting",
			want:  Criteria{Body: "label:work meeting"},
			terms: []string{"label:work", "meeting"},
		},
		{
			name:  "flags",
			query: "has:attachment is:unread",
			want: Criteria{
				HasAttachment: ptr.To(true),
				IsRead:        ptr.To(false),
			},
		},
		{
			name:  "is read",
			query: "IS:Read",
			want:  Criteria{IsRead: ptr.To(true)},
		},
		{
			name:  "exact date",
			query: "on:2025-03-01",
			want:  Criteria{ExactDate: ptr.To(ptr.Date(2025, 3, 1))},
		},
		{
			name:  "after and before bound the window",
			query: "after:2025-01-15 before:2025-02-01",
			want: Criteria{
				BeforeDate: ptr.To(ptr.Date(2025, 1, 15)),
				AfterDate:  ptr.To(ptr.Date(2025, 2, 1)),
			},
		},
		{
			name:  "relative dates",
			query: "newer_than:2w older_than:1d",
			want: Criteria{
				BeforeDate: ptr.To(fixedNow.AddDate(0, 0, -14)),
				AfterDate:  ptr.To(fixedNow.AddDate(0, 0, -1)),
			},
		},
		{
			name:  "relative months and years",
			query: "newer_than:1y older_than:1m",
			want: Criteria{
				BeforeDate: ptr.To(fixedNow.AddDate(-1, 0, 0)),
				AfterDate:  ptr.To(fixedNow.AddDate(0, -1, 0)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuery(7, tt.query, fixedNow)
			if err != nil {
				t.Fatalf("ParseQuery(%q): %v", tt.query, err)
			}
			tt.want.UserID = 7
			assertCriteriaEqual(t, q.Criteria, tt.want)
			if diff := cmp.Diff(tt.terms, q.Terms, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Terms mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseQuery_Errors(t *testing.T) {
	tests := []struct {
		query string
		want  error
	}{
		{"has:pictures", ErrInvalidQuery},
		{"is:starred", ErrInvalidQuery},
		{"from:", ErrInvalidQuery},
		{"newer_than:soon", ErrInvalidQuery},
		{"newer_than:3h", ErrInvalidQuery},
		{"after:yesterday", ErrInvalidDate},
		{"on:2025-13-01", ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			_, err := ParseQuery(1, tt.query, fixedNow)
			if !errors.Is(err, tt.want) {
				t.Errorf("ParseQuery(%q) error = %v, want %v", tt.query, err, tt.want)
			}
		})
	}
}

func TestParseQuery_EmptyLine(t *testing.T) {
	q, err := ParseQuery(1, "   ", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Criteria.IsEmpty() {
		t.Errorf("criteria = %+v, want empty", q.Criteria)
	}
}

func TestHasOperators(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"lunch friday", false},
		{`"re: lunch"`, false},
		{"label:work", false},
		{"meeting at 10:30", false},
		{"from:bob", true},
		{"lunch IS:unread", true},
		{`subject:"a b"`, true},
	}
	for _, tt := range tests {
		if got := HasOperators(tt.line); got != tt.want {
			t.Errorf("HasOperators(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
