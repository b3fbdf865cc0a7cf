package devserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mbox"
	"github.com/wesm/inboxctl/internal/mime"
	"github.com/wesm/inboxctl/internal/store"
)

// maxImportMessageBytes bounds a single imported message.
const maxImportMessageBytes = 32 << 20

// ImportResult counts an mbox import.
type ImportResult struct {
	Imported int
	Skipped  int
}

// ImportMbox files every message of r into email's folder, creating a
// custom folder when needed. Messages that are too large or cannot be
// parsed are logged and skipped; store errors abort the import.
func ImportMbox(st *store.Store, email, folder string, r io.Reader, logger *slog.Logger) (ImportResult, error) {
	var res ImportResult
	if !mail.IsSystemFolder(folder) {
		if err := mail.ValidateFolderName(folder); err != nil {
			return res, err
		}
	}
	u, err := st.EnsureUser(email)
	if err != nil {
		return res, err
	}
	if !mail.IsSystemFolder(folder) {
		if err := st.CreateFolder(u.ID, folder); err != nil && !errors.Is(err, store.ErrExists) {
			return res, err
		}
	}

	rd := mbox.NewReader(r, maxImportMessageBytes)
	for n := 1; ; n++ {
		raw, err := rd.Next()
		if err == io.EOF {
			return res, nil
		}
		if errors.Is(err, mbox.ErrMessageTooLarge) {
			logger.Warn("skipping mbox message", "index", n, "error", err)
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read mbox: %w", err)
		}

		parsed, err := mime.Parse(bytes.NewReader(raw.Raw))
		if err != nil {
			logger.Warn("skipping unparseable message", "index", n, "error", err)
			res.Skipped++
			continue
		}
		for _, w := range parsed.Warnings {
			logger.Debug("mime warning", "index", n, "warning", w)
		}

		m := storedMessage(u, folder, raw.Separator, parsed)
		if _, err := st.InsertMessage(m); err != nil {
			return res, err
		}
		res.Imported++
	}
}

// storedMessage maps a parsed message onto the store. The separator
// supplies the sender and date when the headers lack them.
func storedMessage(u *store.User, folder string, sep mbox.Separator, p *mime.Message) *store.Message {
	m := &store.Message{
		OwnerID:   u.ID,
		Folder:    folder,
		Sender:    sep.Sender,
		Receivers: append(append([]string{}, p.To...), p.Cc...),
		Subject:   p.Subject,
		Body:      p.Body,
		Priority:  mail.DefaultPriority,
		CreatedAt: p.Date,
	}
	if len(p.From) > 0 {
		m.Sender = p.From[0]
	}
	if len(m.Receivers) == 0 {
		m.Receivers = []string{u.Email}
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = sep.Date
	}
	for _, a := range p.Attachments {
		m.Attachments = append(m.Attachments, store.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Data:        a.Content,
		})
	}
	return m
}
