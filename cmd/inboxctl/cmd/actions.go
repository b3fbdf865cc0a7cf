package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
)

var actionFolder string

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid message id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Move messages to the trash, or delete them from the trash",
	Long: `Delete messages. Outside the trash, messages are moved to the trash.
In the trash (--folder trash) they are deleted permanently.

Each message is deleted independently; when some fail, the rest still go
and the failed ids are reported.

Examples:
  inboxctl delete 12 13 14
  inboxctl delete 9 --folder trash --yes`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := c.mailbox.LoadFolder(ctx, actionFolder); err != nil {
			return err
		}

		res, err := c.mailbox.DeleteIDs(ctx, ids)
		if errors.Is(err, mailbox.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		verb := "Moved %d message(s) to trash\n"
		if actionFolder == mail.FolderTrash {
			verb = "Permanently deleted %d message(s)\n"
		}
		fmt.Fprintf(cmd.OutOrStdout(), verb, len(res.Succeeded()))
		return err
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <destination> <id>...",
	Short: "Move messages to another folder",
	Long: `Move messages from --folder (default inbox) to the destination folder.

A move copies each message into the destination and then removes the
original. If the removal fails after the copy succeeded, the message is in
both folders and is reported as a possible duplicate.

Examples:
  inboxctl move Work 12 13
  inboxctl move inbox 40 --folder spam`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := args[0]
		ids, err := parseIDs(args[1:])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := c.mailbox.LoadFolder(ctx, actionFolder); err != nil {
			return err
		}

		err = c.mailbox.MoveIDs(ctx, ids, dest)
		var me *mailbox.MoveError
		if errors.As(err, &me) {
			for _, d := range c.mailbox.Duplicates() {
				fmt.Fprintf(cmd.ErrOrStderr(), "possible duplicate: message %d is also in %s\n", d.ID, d.Folder)
			}
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %d message(s) to %s\n", len(ids), dest)
		return nil
	},
}

func newMarkCmd(use, short string, read bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var errs []error
			for _, id := range ids {
				if read {
					err = c.mailbox.MarkRead(ctx, id)
				} else {
					err = c.mailbox.MarkUnread(ctx, id)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("message %d: %w", id, err))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %d message(s)\n", len(ids)-len(errs))
			return errors.Join(errs...)
		},
	}
}

func init() {
	for _, c := range []*cobra.Command{deleteCmd, moveCmd} {
		c.Flags().StringVar(&actionFolder, "folder", mail.FolderInbox, "folder holding the messages")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(newMarkCmd("mark-read", "Mark messages as read", true))
	rootCmd.AddCommand(newMarkCmd("mark-unread", "Mark messages as unread", false))
}
