package mbox

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestReader_SplitsAndUnescapes(t *testing.T) {
	data := strings.Join([]string{
		"preamble that is not a message",
		"From sender@example.com Mon Jan 1 00:00:00 2024",
		"Subject: One",
		"",
		">From should-unescape",
		">>From keep-one",
		"From is not a separator here",
		"",
		"From other@example.com Mon Jan  1 00:00:01 2024",
		"Subject: Two",
		"",
		"Body2",
		"",
	}, "\n")

	r := NewReader(strings.NewReader(data), 0)

	msg1, err := r.Next()
	if err != nil {
		t.Fatalf("Next(): %v", err)
	}
	if msg1.Separator.Sender != "sender@example.com" {
		t.Errorf("Sender = %q", msg1.Separator.Sender)
	}
	want1 := "Subject: One\n\nFrom should-unescape\n>From keep-one\nFrom is not a separator here\n"
	if got := string(msg1.Raw); got != want1 {
		t.Errorf("raw1 = %q, want %q", got, want1)
	}

	msg2, err := r.Next()
	if err != nil {
		t.Fatalf("Next() (msg2): %v", err)
	}
	if msg2.Separator.Sender != "other@example.com" || msg2.Separator.Date.Second() != 1 {
		t.Errorf("separator2 = %+v", msg2.Separator)
	}
	if got := string(msg2.Raw); got != "Subject: Two\n\nBody2\n" {
		t.Errorf("raw2 = %q", got)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF again, got: %v", err)
	}
}

func TestReader_Empty(t *testing.T) {
	r := NewReader(strings.NewReader("no separators at all\n"), 0)
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got: %v", err)
	}
}

func TestReader_TooLargeSkipsToNext(t *testing.T) {
	data := "From a@b Mon Jan 1 00:00:00 2024\n" +
		"Subject: big\n\n" + strings.Repeat("x", 200) + "\n\n" +
		"From a@b Mon Jan 1 00:00:01 2024\n" +
		"Subject: small\n\nok\n"
	r := NewReader(strings.NewReader(data), 100)

	if _, err := r.Next(); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("first Next() error = %v, want ErrMessageTooLarge", err)
	}
	msg, err := r.Next()
	if err != nil {
		t.Fatalf("second Next(): %v", err)
	}
	if !strings.Contains(string(msg.Raw), "Subject: small") {
		t.Errorf("raw = %q", msg.Raw)
	}
}

func TestReader_LongLine(t *testing.T) {
	long := strings.Repeat("y", 10000)
	data := "From a@b Mon Jan 1 00:00:00 2024\n\n" + long + "\n"
	msg, err := NewReader(strings.NewReader(data), 0).Next()
	if err != nil {
		t.Fatalf("Next(): %v", err)
	}
	if got := string(msg.Raw); got != "\n"+long+"\n" {
		t.Errorf("raw has %d bytes, want %d", len(got), len(long)+2)
	}
}

func TestParseSeparator(t *testing.T) {
	tests := []struct {
		line   string
		sender string
		want   string
		ok     bool
	}{
		{"From a@b Mon Jan 1 00:00:00 2024", "a@b", "2024-01-01T00:00:00Z", true},
		{"From a@b Mon Jan 1 00:00:00 -0700 2024", "a@b", "2024-01-01T07:00:00Z", true},
		{"From a@b Mon Jan 1 00:00:00 PST 2024", "a@b", "2024-01-01T08:00:00Z", true},
		{"From a@b Mon Jan 1 00:00:00 2024 remote from x", "a@b", "2024-01-01T00:00:00Z", true},
		{"From a@b Jan 1 00:00 2024", "a@b", "2024-01-01T00:00:00Z", true},
		{"From a@b Mon Jan 1 00:00 2024", "a@b", "2024-01-01T00:00:00Z", true},
		{"From me to you, with love", "", "", false},
		{"Subject: From a@b Mon Jan 1 00:00:00 2024", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			sep, ok := ParseSeparator(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if sep.Sender != tt.sender {
				t.Errorf("Sender = %q, want %q", sep.Sender, tt.sender)
			}
			if got := sep.Date.UTC().Format(time.RFC3339); got != tt.want {
				t.Errorf("Date = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWriterRoundTrip(t *testing.T) {
	date := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	bodies := []string{
		"Subject: One\n\nFrom the start\n>From quoted\nplain\n",
		"Subject: Two\r\n\r\nno trailing newline",
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, b := range bodies {
		if err := w.WriteMessage("carol@example.com", date, []byte(b)); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}
	if err := w.WriteMessage("", time.Time{}, []byte("Subject: Three\n\n")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "From carol@example.com Tue Mar  4 05:06:07 2025\n") {
		t.Errorf("unexpected separator:\n%s", out)
	}
	if !strings.Contains(out, "\n>From the start\n>>From quoted\n") {
		t.Errorf("body not escaped:\n%s", out)
	}

	r := NewReader(&buf, 0)
	want := []string{
		bodies[0],
		"Subject: Two\r\n\r\nno trailing newline\n",
		"Subject: Three\n\n",
	}
	for i, w := range want {
		msg, err := r.Next()
		if err != nil {
			t.Fatalf("Next() #%d: %v", i, err)
		}
		if string(msg.Raw) != w {
			t.Errorf("message %d = %q, want %q", i, msg.Raw, w)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestFormatSeparator(t *testing.T) {
	got := FormatSeparator("  odd  sender ", time.Date(2024, 12, 25, 1, 2, 3, 0, time.FixedZone("X", 3600)))
	if got != "From oddsender Wed Dec 25 00:02:03 2024" {
		t.Errorf("FormatSeparator = %q", got)
	}
	sep, ok := ParseSeparator(got)
	if !ok || sep.Sender != "oddsender" {
		t.Errorf("ParseSeparator(%q) = %+v, %v", got, sep, ok)
	}
}
