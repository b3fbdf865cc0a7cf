package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
)

var foldersJSON bool

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List and manage folders",
	Long: `List the system folders and your custom folders, or manage custom
folders with the create, rename and delete subcommands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		custom, err := c.mailbox.LoadFolders(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if foldersJSON {
			return outputJSON(out, map[string][]string{
				"system": mail.SystemFolders(),
				"custom": custom,
			})
		}
		for _, f := range mail.SystemFolders() {
			fmt.Fprintln(out, f)
		}
		for _, f := range custom {
			fmt.Fprintf(out, "%s (custom)\n", f)
		}
		return nil
	},
}

var folderCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a custom folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.mailbox.CreateFolder(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created folder %q\n", args[0])
		return nil
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a custom folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.mailbox.RenameFolder(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %q to %q\n", args[0], args[1])
		return nil
	},
}

var folderDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a custom folder and the messages in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		err = c.mailbox.DeleteFolder(cmd.Context(), args[0])
		if errors.Is(err, mailbox.ErrCancelled) {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %q\n", args[0])
		return nil
	},
}

func init() {
	foldersCmd.Flags().BoolVar(&foldersJSON, "json", false, "output as JSON")
	foldersCmd.AddCommand(folderCreateCmd, folderRenameCmd, folderDeleteCmd)
	rootCmd.AddCommand(foldersCmd)
}
