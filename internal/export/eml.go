package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	gomail "github.com/emersion/go-message/mail"

	"github.com/wesm/inboxctl/internal/mail"
)

// WriteEML renders msg as a MIME message. Attachment content is fetched with
// f; a nil f writes the text part only.
func WriteEML(ctx context.Context, w io.Writer, msg mail.Message, f Fetcher) error {
	var h gomail.Header
	h.SetDate(msg.Timestamp)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", addresses(msg.Sender))
	h.SetAddressList("To", addresses(msg.Receiver))
	if msg.Priority != 0 {
		// X-Priority counts down: 1 is the most urgent.
		h.Set("X-Priority", strconv.Itoa(mail.MaxPriority+1-msg.Priority))
	}
	if msg.ID != 0 {
		h.Set("X-Inboxctl-Id", strconv.FormatInt(msg.ID, 10))
	}

	if f == nil || !msg.HasAttachments() {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		sw, err := gomail.CreateSingleInlineWriter(w, h)
		if err != nil {
			return fmt.Errorf("create message: %w", err)
		}
		if _, err := io.WriteString(sw, msg.Body); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
		return sw.Close()
	}

	mw, err := gomail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	if err := writeText(mw, msg.Body); err != nil {
		return err
	}
	for _, a := range msg.Attachments {
		if err := writeAttachment(ctx, mw, f, a); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeText(mw *gomail.Writer, body string) error {
	iw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("create inline part: %w", err)
	}
	var th gomail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	th.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := iw.CreatePart(th)
	if err != nil {
		return fmt.Errorf("create text part: %w", err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := pw.Close(); err != nil {
		return err
	}
	return iw.Close()
}

// writeAttachment downloads a into memory first so a failed fetch never
// leaves a truncated part behind.
func writeAttachment(ctx context.Context, mw *gomail.Writer, f Fetcher, a mail.Attachment) error {
	var buf bytes.Buffer
	name, err := f.FetchAttachment(ctx, a.ID, &buf)
	if err != nil {
		return fmt.Errorf("fetch attachment %d: %w", a.ID, err)
	}
	if name == "" {
		name = a.FileName
	}

	var ah gomail.AttachmentHeader
	ah.SetContentType(contentType(name, buf.Bytes()), nil)
	ah.SetFilename(name)
	ah.Set("Content-Transfer-Encoding", "base64")
	pw, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := pw.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write attachment %q: %w", name, err)
	}
	return pw.Close()
}

// contentType guesses a media type from the extension, then the content.
func contentType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func addresses(list string) []*gomail.Address {
	var out []*gomail.Address
	for _, a := range mail.ParseList(list) {
		out = append(out, &gomail.Address{Address: a})
	}
	return out
}
