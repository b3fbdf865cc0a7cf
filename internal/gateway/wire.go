package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/wesm/inboxctl/internal/mail"
)

// WireMessage is the message shape the service returns. Some endpoints
// report the id as "mailId" and the read flag as "read"; both aliases are
// accepted.
type WireMessage struct {
	ID          *int64           `json:"id,omitempty"`
	MailID      *int64           `json:"mailId,omitempty"`
	Sender      string           `json:"sender"`
	Receiver    json.RawMessage  `json:"receiver,omitempty"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	Timestamp   string           `json:"timestamp,omitempty"`
	Priority    int              `json:"priority"`
	FolderName  string           `json:"folderName"`
	IsRead      *bool            `json:"isRead,omitempty"`
	Read        *bool            `json:"read,omitempty"`
	Attachments []wireAttachment `json:"attachments,omitempty"`
}

// wireAttachment accepts both "fileName" and "filename".
type wireAttachment struct {
	ID       int64  `json:"id"`
	FileName string `json:"fileName,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// timestampLayouts are tried in order when decoding message timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses the service's timestamp, returning the zero time
// when it is absent or unrecognized.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// decodeReceiver accepts a single string or a list of strings.
func decodeReceiver(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", ")
	}
	return ""
}

// Message converts the wire shape into the canonical message.
func (w WireMessage) Message() mail.Message {
	m := mail.Message{
		Sender:     w.Sender,
		Receiver:   decodeReceiver(w.Receiver),
		Subject:    w.Subject,
		Body:       w.Body,
		Timestamp:  parseTimestamp(w.Timestamp),
		Priority:   w.Priority,
		FolderName: w.FolderName,
	}
	switch {
	case w.ID != nil && *w.ID != 0:
		m.ID = *w.ID
	case w.MailID != nil:
		m.ID = *w.MailID
	}
	switch {
	case w.IsRead != nil:
		m.IsRead = *w.IsRead
	case w.Read != nil:
		m.IsRead = *w.Read
	}
	if len(w.Attachments) > 0 {
		m.Attachments = make([]mail.Attachment, len(w.Attachments))
		for i, a := range w.Attachments {
			name := a.FileName
			if name == "" {
				name = a.Filename
			}
			m.Attachments[i] = mail.Attachment{ID: a.ID, FileName: name}
		}
	}
	return m
}

// toMessages converts a list; a missing list yields an empty, non-nil slice.
func toMessages(list []WireMessage) []mail.Message {
	out := make([]mail.Message, len(list))
	for i, w := range list {
		out[i] = w.Message()
	}
	return out
}

// FromMessage builds the wire shape the service emits. The reference server
// uses it so both sides agree on field names.
func FromMessage(m mail.Message) WireMessage {
	id := m.ID
	read := m.IsRead
	receiver, _ := json.Marshal(m.Receiver)
	w := WireMessage{
		ID:         &id,
		Sender:     m.Sender,
		Receiver:   receiver,
		Subject:    m.Subject,
		Body:       m.Body,
		Priority:   m.Priority,
		FolderName: m.FolderName,
		IsRead:     &read,
	}
	if !m.Timestamp.IsZero() {
		w.Timestamp = m.Timestamp.UTC().Format("2006-01-02T15:04:05")
	}
	for _, a := range m.Attachments {
		w.Attachments = append(w.Attachments, wireAttachment{ID: a.ID, FileName: a.FileName})
	}
	return w
}

// wireCompose is the JSON payload for send and draft calls.
type wireCompose struct {
	Sender    string   `json:"sender"`
	Receivers []string `json:"receivers"`
	Subject   string   `json:"subject"`
	Body      string   `json:"body"`
	Priority  int      `json:"priority"`
}

func toWireCompose(f mail.ComposeFields) wireCompose {
	receivers := f.Receivers
	if receivers == nil {
		receivers = []string{}
	}
	return wireCompose{
		Sender:    f.Sender,
		Receivers: receivers,
		Subject:   f.Subject,
		Body:      f.Body,
		Priority:  f.Priority,
	}
}

// DecodeCompose parses a send or draft payload.
func DecodeCompose(data []byte) (mail.ComposeFields, error) {
	var w wireCompose
	if err := json.Unmarshal(data, &w); err != nil {
		return mail.ComposeFields{}, err
	}
	return mail.ComposeFields{
		Sender:    w.Sender,
		Receivers: w.Receivers,
		Subject:   w.Subject,
		Body:      w.Body,
		Priority:  w.Priority,
	}, nil
}

// WireContact is the JSON form of a contact.
type WireContact struct {
	ID     int64    `json:"id,omitempty"`
	Name   string   `json:"name"`
	Emails []string `json:"emails"`
}

// FromContact converts a contact to its JSON form.
func FromContact(c mail.Contact) WireContact {
	emails := c.Emails
	if emails == nil {
		emails = []string{}
	}
	return WireContact{ID: c.ID, Name: c.Name, Emails: emails}
}

// Contact converts the JSON form back to the domain type.
func (w WireContact) Contact() mail.Contact {
	return mail.Contact{ID: w.ID, Name: w.Name, Emails: w.Emails}
}

// draftResponse is returned by draft creation.
type draftResponse struct {
	DraftID int64 `json:"draftId"`
	ID      int64 `json:"id"`
}

// SendResult is the service's acknowledgement of a send.
type SendResult struct {
	Message string `json:"message"`
}
