package export

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mbox"
)

// WriteMbox renders msgs as .eml and appends them to w as an mboxrd file.
// It returns the number of messages written; on error the count covers the
// messages completed before it.
func WriteMbox(ctx context.Context, w io.Writer, msgs []mail.Message, f Fetcher) (int, error) {
	mw := mbox.NewWriter(w)
	var buf bytes.Buffer
	n := 0
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		buf.Reset()
		if err := WriteEML(ctx, &buf, msg, f); err != nil {
			return n, fmt.Errorf("message %d: %w", msg.ID, err)
		}
		if err := mw.WriteMessage(msg.Sender, msg.Timestamp, buf.Bytes()); err != nil {
			return n, fmt.Errorf("write mbox: %w", err)
		}
		n++
	}
	if err := mw.Flush(); err != nil {
		return n, fmt.Errorf("write mbox: %w", err)
	}
	return n, nil
}
