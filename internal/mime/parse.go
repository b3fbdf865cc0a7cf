// Package mime reads RFC 5322 messages (.eml files) into the fields a
// compose session can be pre-populated with.
package mime

import (
	"io"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"golang.org/x/net/html"

	"github.com/wesm/inboxctl/internal/textutil"
)

// Message is the subset of a parsed .eml file that maps onto a mail
// message: addresses, subject, a plain text body and attached files.
type Message struct {
	Subject     string
	Date        time.Time
	From        []string
	To          []string
	Cc          []string
	Body        string
	Attachments []Attachment
	Warnings    []string
}

// Attachment is one attached file.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Parse reads a message from r. Text bodies are forced to valid UTF-8; an
// HTML-only message is reduced to text.
func Parse(r io.Reader) (*Message, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Subject: env.GetHeader("Subject"),
		From:    addressList(env, "From"),
		To:      addressList(env, "To"),
		Cc:      addressList(env, "Cc"),
	}
	if d := env.GetHeader("Date"); d != "" {
		msg.Date = parseDate(d)
	}

	switch {
	case strings.TrimSpace(env.Text) != "":
		msg.Body = textutil.EnsureUTF8(env.Text)
	case env.HTML != "":
		msg.Body = StripHTML(textutil.EnsureUTF8(env.HTML))
	}

	for _, part := range append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...) {
		if isBodyPart(part) {
			continue
		}
		name := part.FileName
		if name == "" {
			name = "attachment"
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    name,
			ContentType: part.ContentType,
			Content:     part.Content,
		})
	}

	for _, e := range env.Errors {
		msg.Warnings = append(msg.Warnings, e.Error())
	}
	return msg, nil
}

// addressList returns the bare, lower-cased addresses of a header.
func addressList(env *enmime.Envelope, header string) []string {
	list, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	var out []string
	for _, a := range list {
		if a.Address != "" {
			out = append(out, strings.ToLower(a.Address))
		}
	}
	return out
}

// isBodyPart reports whether a text/plain or text/html part without a file
// name or attachment disposition is really body content.
func isBodyPart(part *enmime.Part) bool {
	ct := mediaType(part.ContentType)
	if ct != "text/plain" && ct != "text/html" {
		return false
	}
	if part.FileName != "" {
		return false
	}
	return mediaType(part.Disposition) != "attachment"
}

func mediaType(s string) string {
	s = strings.ToLower(s)
	if i := strings.Index(s, ";"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

var dateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseDate tries the common header layouts and returns UTC, or the zero
// time when none match.
func parseDate(s string) time.Time {
	s = strings.Join(strings.Fields(s), " ")
	if i := strings.LastIndex(s, "("); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// blockTags become line breaks when stripping HTML.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "ul": true, "ol": true,
}

// droppedTags have their content discarded.
var droppedTags = map[string]bool{"script": true, "style": true, "head": true}

// StripHTML reduces an HTML body to readable text: block elements become
// line breaks, entities are decoded and blank runs collapsed.
func StripHTML(rawHTML string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	skip := 0
tokens:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			break tokens
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case droppedTags[tag] && tt == html.StartTagToken:
				skip++
			case droppedTags[tag]:
				if skip > 0 {
					skip--
				}
			case blockTags[tag]:
				b.WriteByte('\n')
			}
		}
	}
	text := strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u00a0", " ").Replace(b.String())

	var lines []string
	blank := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
