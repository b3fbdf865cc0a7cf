package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/textutil"
)

func outputMessagesTable(out io.Writer, msgs []mail.Message, footer string) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\t\tDATE\tFROM\tSUBJECT\tATT")
	fmt.Fprintln(w, "──\t\t────\t────\t───────\t───")

	for _, msg := range msgs {
		read := "●"
		if msg.IsRead {
			read = " "
		}
		att := ""
		if msg.HasAttachments() {
			att = fmt.Sprintf("%d", len(msg.Attachments))
		}
		fmt.Fprintf(w, "%d\t%s%s\t%s\t%s\t%s\t%s\n",
			msg.ID, read, compose.PriorityGlyph(msg.Priority),
			msg.Timestamp.Local().Format("2006-01-02 15:04"),
			textutil.Truncate(msg.Sender, 30),
			textutil.Truncate(msg.Subject, 50),
			att)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if footer != "" {
		fmt.Fprintf(out, "\n%s\n", footer)
	}
	return nil
}

func outputJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputMessagesJSON(out io.Writer, msgs []mail.Message) error {
	wire := make([]gateway.WireMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = gateway.FromMessage(m)
	}
	return outputJSON(out, wire)
}

func outputMessages(out io.Writer, msgs []mail.Message, footer string, asJSON bool) error {
	if asJSON {
		return outputMessagesJSON(out, msgs)
	}
	return outputMessagesTable(out, msgs, footer)
}
