package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/export"
	"github.com/wesm/inboxctl/internal/fileutil"
	"github.com/wesm/inboxctl/internal/mail"
)

var (
	exportFolder string
	exportDir    string
	exportZip    string
	exportOutput string
)

func messageArg(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return id, nil
}

var exportAttachmentsCmd = &cobra.Command{
	Use:   "attachments <message-id>",
	Short: "Download a message's attachments",
	Long: `Download every attachment of a message into a directory (default: the
current directory), or into a single zip archive with --zip. Existing files
are never overwritten; a numeric suffix is added instead.

Examples:
  inboxctl attachments 42
  inboxctl attachments 42 --dir ~/Downloads
  inboxctl attachments 42 --zip report-files.zip`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := messageArg(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		msg, err := c.findMessage(ctx, exportFolder, id)
		if err != nil {
			return err
		}
		if !msg.HasAttachments() {
			return fmt.Errorf("message %d has no attachments", id)
		}

		out := cmd.OutOrStdout()
		if exportZip != "" {
			stats := export.Attachments(ctx, exportZip, c.gw, msg.Attachments)
			fmt.Fprintln(out, export.FormatExportResult(stats))
			if stats.WriteError || stats.Count == 0 {
				return fmt.Errorf("export failed")
			}
			return nil
		}

		for _, a := range msg.Attachments {
			path, err := export.SaveAttachment(ctx, c.gw, a, exportDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, path)
		}
		return nil
	},
}

var exportEMLCmd = &cobra.Command{
	Use:   "export-eml <message-id>",
	Short: "Export a message as an .eml file",
	Long: `Write a message, with its attachments, as an RFC 5322 .eml file.
Without --output the message is written to stdout.

Examples:
  inboxctl export-eml 42 -o lunch.eml
  inboxctl export-eml 7 --folder sent > sent.eml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := messageArg(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		msg, err := c.findMessage(ctx, exportFolder, id)
		if err != nil {
			return err
		}

		if exportOutput == "" {
			return export.WriteEML(ctx, cmd.OutOrStdout(), msg, c.gw)
		}
		err = writeNewFile(exportOutput, func(w io.Writer) error {
			return export.WriteEML(ctx, w, msg, c.gw)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", exportOutput)
		return nil
	},
}

var exportMboxCmd = &cobra.Command{
	Use:   "export-mbox <folder>",
	Short: "Export a folder as an mbox file",
	Long: `Write every message of a folder, with attachments, as one mboxrd file,
oldest first. Without --output the mbox is written to stdout.

Examples:
  inboxctl export-mbox inbox -o inbox.mbox
  inboxctl export-mbox Projects > projects.mbox`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		msgs, err := c.gw.ListFolder(ctx, c.user, args[0])
		if err != nil {
			return err
		}
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Timestamp.Before(msgs[j].Timestamp)
		})

		var n int
		write := func(w io.Writer) error {
			n, err = export.WriteMbox(ctx, w, msgs, c.gw)
			return err
		}
		if exportOutput == "" {
			return write(cmd.OutOrStdout())
		}
		if err := writeNewFile(exportOutput, write); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d message(s) to %s\n", n, exportOutput)
		return nil
	},
}

// writeNewFile creates path, which must not exist, and fills it with write.
// A failed write removes the partial file.
func writeNewFile(path string, write func(io.Writer) error) error {
	if err := fileutil.SecureMkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{exportAttachmentsCmd, exportEMLCmd} {
		c.Flags().StringVar(&exportFolder, "folder", mail.FolderInbox, "folder holding the message")
		rootCmd.AddCommand(c)
	}
	exportAttachmentsCmd.Flags().StringVar(&exportDir, "dir", ".", "directory to save into")
	exportAttachmentsCmd.Flags().StringVar(&exportZip, "zip", "", "write one zip archive instead")
	exportEMLCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write (must not exist)")
	exportMboxCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "file to write (must not exist)")
	rootCmd.AddCommand(exportMboxCmd)
}
