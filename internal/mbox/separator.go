package mbox

import (
	"fmt"
	"strings"
	"time"
)

// separatorLayouts are the ctime-like dates seen after the sender on a
// "From " line, with and without seconds, weekday and zone.
var separatorLayouts = []string{
	"Mon Jan 2 15:04:05 2006",
	"Mon Jan 2 15:04:05 -0700 2006",
	"Mon Jan 2 15:04:05 MST 2006",
	"Mon Jan 2 15:04:05 2006 -0700",
	"Mon Jan 2 15:04:05 2006 MST",
	"Mon Jan 2 15:04 2006",
	"Jan 2 15:04:05 2006",
	"Jan 2 15:04:05 -0700 2006",
	"Jan 2 15:04 2006",
}

// zoneOffsets resolves the abbreviations mail tools commonly write. An
// unknown abbreviation is read as UTC.
var zoneOffsets = map[string]int{
	"UTC": 0, "GMT": 0, "UT": 0, "Z": 0,
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
}

// Separator is a parsed "From " line.
type Separator struct {
	Sender string
	Date   time.Time
}

// ParseSeparator parses "From <sender> <date> [extra...]". Producers that
// append tokens after the date (e.g. "remote from ...") are accepted.
func ParseSeparator(line string) (Separator, bool) {
	fields := strings.Fields(strings.TrimRight(line, "\r\n"))
	if len(fields) < 6 || fields[0] != "From" {
		return Separator{}, false
	}
	for _, layout := range separatorLayouts {
		n := len(strings.Fields(layout))
		if len(fields) < 2+n {
			continue
		}
		t, err := time.Parse(layout, strings.Join(fields[2:2+n], " "))
		if err != nil {
			continue
		}
		if name, off := t.Zone(); off == 0 && name != "" && name != "UTC" {
			if known, ok := zoneOffsets[strings.ToUpper(name)]; ok {
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0,
					time.FixedZone(name, known))
			}
		}
		return Separator{Sender: fields[1], Date: t}, true
	}
	return Separator{}, false
}

// FormatSeparator renders a "From " line without the trailing newline. An
// empty sender is written as MAILER-DAEMON.
func FormatSeparator(sender string, date time.Time) string {
	sender = strings.Join(strings.Fields(sender), "")
	if sender == "" {
		sender = "MAILER-DAEMON"
	}
	if date.IsZero() {
		date = time.Unix(0, 0)
	}
	return fmt.Sprintf("From %s %s", sender, date.UTC().Format("Mon Jan _2 15:04:05 2006"))
}
