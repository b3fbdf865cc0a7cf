package testutil

import (
	"fmt"
	"time"

	"github.com/wesm/inboxctl/internal/mail"
)

// BaseTime is the timestamp builders start from.
var BaseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// MessageBuilder provides a fluent API for constructing mail.Message in tests.
type MessageBuilder struct {
	m mail.Message
}

// NewMessage creates a builder with sensible defaults.
func NewMessage(id int64) *MessageBuilder {
	return &MessageBuilder{
		m: mail.Message{
			ID:         id,
			Sender:     "sender@example.com",
			Receiver:   "me@example.com",
			Subject:    fmt.Sprintf("Message %d", id),
			Body:       "body",
			Timestamp:  BaseTime.Add(time.Duration(id) * time.Minute),
			Priority:   mail.DefaultPriority,
			FolderName: mail.FolderInbox,
		},
	}
}

func (b *MessageBuilder) WithSender(s string) *MessageBuilder {
	b.m.Sender = s
	return b
}

func (b *MessageBuilder) WithReceiver(r string) *MessageBuilder {
	b.m.Receiver = r
	return b
}

func (b *MessageBuilder) WithSubject(s string) *MessageBuilder {
	b.m.Subject = s
	return b
}

func (b *MessageBuilder) WithBody(s string) *MessageBuilder {
	b.m.Body = s
	return b
}

func (b *MessageBuilder) WithTimestamp(t time.Time) *MessageBuilder {
	b.m.Timestamp = t
	return b
}

func (b *MessageBuilder) WithPriority(p int) *MessageBuilder {
	b.m.Priority = p
	return b
}

func (b *MessageBuilder) WithFolder(f string) *MessageBuilder {
	b.m.FolderName = f
	return b
}

func (b *MessageBuilder) Read() *MessageBuilder {
	b.m.IsRead = true
	return b
}

func (b *MessageBuilder) WithAttachment(id int64, name string) *MessageBuilder {
	b.m.Attachments = append(b.m.Attachments, mail.Attachment{ID: id, FileName: name})
	return b
}

// Build returns the constructed message.
func (b *MessageBuilder) Build() mail.Message {
	return b.m
}

// Messages builds n default messages with ids 1..n in folder.
func Messages(n int, folder string) []mail.Message {
	out := make([]mail.Message, n)
	for i := range out {
		out[i] = NewMessage(int64(i + 1)).WithFolder(folder).Build()
	}
	return out
}

// IDs extracts message ids in order.
func IDs(msgs []mail.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
