package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/mail"
)

var (
	listSort     string
	listAsc      bool
	listPriority bool
	listPage     int
	listAll      bool
	listJSON     bool
)

var listCmd = &cobra.Command{
	Use:   "list [folder]",
	Short: "List the messages in a folder",
	Long: `List the messages in a folder (default: inbox), one page at a time.

The inbox can be ordered by date, sender, subject or priority. Other folders
are shown in the order the service returns them.

Examples:
  inboxctl list
  inboxctl list sent --page 2
  inboxctl list --sort sender --asc
  inboxctl list --priority`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		folder := mail.FolderInbox
		if len(args) == 1 {
			folder = args[0]
		}
		if err := c.mailbox.LoadFolder(ctx, folder); err != nil {
			return err
		}

		switch {
		case listPriority:
			if err := c.mailbox.TogglePriorityMode(ctx); err != nil {
				return err
			}
		case listSort != "" || listAsc:
			if listAsc {
				if err := c.mailbox.ToggleSortDirection(ctx); err != nil {
					return err
				}
			}
			if listSort != "" {
				if err := c.mailbox.SetSortCriterion(ctx, listSort); err != nil {
					return err
				}
			}
		}

		if listAll {
			return outputMessages(cmd.OutOrStdout(), c.mailbox.Messages(),
				fmt.Sprintf("%d message(s) in %s", len(c.mailbox.Messages()), folder), listJSON)
		}
		for i := 1; i < listPage; i++ {
			c.mailbox.PageRight()
		}
		return outputMessages(cmd.OutOrStdout(), c.mailbox.Visible(),
			fmt.Sprintf("%s: %s", folder, c.mailbox.PageLabel()), listJSON)
	},
}

func init() {
	listCmd.Flags().StringVar(&listSort, "sort", "", "inbox order: date, sender, subject or priority")
	listCmd.Flags().BoolVar(&listAsc, "asc", false, "ascending order (default descending)")
	listCmd.Flags().BoolVar(&listPriority, "priority", false, "order the inbox by priority")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page to show")
	listCmd.Flags().BoolVar(&listAll, "all", false, "show every message instead of one page")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(listCmd)
}
