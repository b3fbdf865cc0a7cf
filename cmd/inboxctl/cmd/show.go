package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

var (
	showFolder string
	showJSON   bool
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a message and mark it read",
	Long: `Show the headers, attachments and body of one message. Opening an
unread message marks it read.

Examples:
  inboxctl show 42
  inboxctl show 7 --folder sent --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid message id %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		msg, err := c.findMessage(ctx, showFolder, id)
		if err != nil {
			return err
		}
		if err := c.mailbox.SetPreview(ctx, msg); err != nil {
			logger.Warn("failed to mark message read", "id", id, "error", err)
		}
		if p, ok := c.mailbox.Preview(); ok {
			msg = p
		}

		out := cmd.OutOrStdout()
		if showJSON {
			return outputJSON(out, gateway.FromMessage(msg))
		}
		fmt.Fprintf(out, "From:     %s\n", msg.Sender)
		fmt.Fprintf(out, "To:       %s\n", msg.Receiver)
		fmt.Fprintf(out, "Subject:  %s\n", msg.Subject)
		fmt.Fprintf(out, "Date:     %s\n", msg.Timestamp.Local().Format(time.RFC1123))
		fmt.Fprintf(out, "Priority: %d\n", msg.Priority)
		fmt.Fprintf(out, "Folder:   %s\n", msg.FolderName)
		if msg.HasAttachments() {
			fmt.Fprintf(out, "Attached: %s\n", attachmentNames(msg))
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, msg.Body)
		return nil
	},
}

func attachmentNames(msg mail.Message) string {
	names := make([]string, len(msg.Attachments))
	for i, a := range msg.Attachments {
		names[i] = fmt.Sprintf("%s (#%d)", a.FileName, a.ID)
	}
	return strings.Join(names, ", ")
}

func init() {
	showCmd.Flags().StringVar(&showFolder, "folder", mail.FolderInbox, "folder holding the message")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(showCmd)
}
