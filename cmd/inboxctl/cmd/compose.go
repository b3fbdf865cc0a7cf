package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/mail"
)

// composeFlags are shared by send and draft.
type composeFlags struct {
	to       string
	subject  string
	body     string
	bodyFile string
	emlFile  string
	priority int
	attach   []string
	draftID  int64
}

var sendFlags, draftFlags composeFlags

func (f *composeFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.to, "to", "", "comma-separated recipients")
	fl.StringVar(&f.subject, "subject", "", "subject line")
	fl.StringVar(&f.body, "body", "", "message body")
	fl.StringVar(&f.bodyFile, "body-file", "", "read the body from a file (- for stdin)")
	fl.StringVar(&f.emlFile, "eml", "", "start from an .eml file (recipients, subject, body, attachments)")
	fl.IntVar(&f.priority, "priority", 0, "priority 1 (lowest) to 5 (highest)")
	fl.StringSliceVar(&f.attach, "attach", nil, "file to attach (repeatable)")
	fl.Int64Var(&f.draftID, "draft", 0, "start from the saved draft with this id")
}

// fill opens the session and applies the flags on top of any draft or
// .eml source.
func (f *composeFlags) fill(ctx context.Context, c *client, stdin io.Reader) error {
	if f.draftID != 0 {
		draft, err := c.findMessage(ctx, mail.FolderDrafts, f.draftID)
		if err != nil {
			return err
		}
		if err := c.compose.OpenDraft(ctx, draft); err != nil {
			return err
		}
	} else if err := c.compose.Open(ctx); err != nil {
		return err
	}

	if f.emlFile != "" {
		file, err := os.Open(f.emlFile)
		if err != nil {
			return fmt.Errorf("open eml: %w", err)
		}
		err = c.compose.ImportEML(file)
		file.Close()
		if err != nil {
			return err
		}
	}

	if f.to != "" {
		c.compose.SetTo(f.to)
	}
	if f.subject != "" {
		c.compose.SetSubject(f.subject)
	}
	switch {
	case f.bodyFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		c.compose.SetBody(string(data))
	case f.bodyFile != "":
		data, err := os.ReadFile(f.bodyFile)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		c.compose.SetBody(string(data))
	case f.body != "":
		c.compose.SetBody(f.body)
	}
	if f.priority != 0 {
		if err := c.compose.SetPriority(f.priority); err != nil {
			return err
		}
	}
	for _, path := range f.attach {
		if err := c.compose.AddAttachmentFile(path); err != nil {
			return err
		}
	}
	return nil
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message",
	Long: `Send a message to one or more recipients. Sending a saved draft
(--draft) removes the draft once the message is sent.

Examples:
  inboxctl send --to bob@example.com --subject Lunch --body "Noon?"
  inboxctl send --to a@example.com,b@example.com --body-file notes.txt --attach report.pdf
  inboxctl send --draft 31`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := sendFlags.fill(ctx, c, cmd.InOrStdin()); err != nil {
			return err
		}
		res, err := c.compose.Send(ctx)
		if err != nil {
			return err
		}
		msg := "Email sent successfully"
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Save a message as a draft",
	Long: `Save a message in the drafts folder without sending it. With --draft,
the saved draft is updated instead of creating a new one.

Examples:
  inboxctl draft --to bob@example.com --subject "Plan" --body "First cut"
  inboxctl draft --draft 31 --subject "Plan v2"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := draftFlags.fill(ctx, c, cmd.InOrStdin()); err != nil {
			return err
		}
		id, err := c.compose.SaveDraft(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Draft %d saved\n", id)
		return nil
	},
}

func init() {
	sendFlags.register(sendCmd)
	draftFlags.register(draftCmd)
	rootCmd.AddCommand(sendCmd, draftCmd)
}
