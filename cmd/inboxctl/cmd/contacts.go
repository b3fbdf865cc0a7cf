package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

var (
	contactsDesc  bool
	contactsJSON  bool
	contactName   string
	contactEmails []string
)

func outputContacts(out io.Writer, list []mail.Contact, asJSON bool) error {
	if asJSON {
		wire := make([]gateway.WireContact, len(list))
		for i, c := range list {
			wire[i] = gateway.FromContact(c)
		}
		return outputJSON(out, wire)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAILS")
	fmt.Fprintln(w, "──\t────\t──────")
	for _, c := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, strings.Join(c.Emails, ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d contact(s)\n", len(list))
	return nil
}

func parseContactID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid contact id %q", s)
	}
	return id, nil
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List and manage contacts",
	Long: `List your contacts sorted by name, or manage them with the add, edit,
remove and find subcommands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.contacts.List(cmd.Context(), !contactsDesc); err != nil {
			return err
		}
		return outputContacts(cmd.OutOrStdout(), c.contacts.Contacts(), contactsJSON)
	},
}

var contactAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a contact",
	Long: `Add a contact with a name and one or more email addresses.

Example:
  inboxctl contacts add --name "Ann Lee" --email ann@example.com --email ann@work.example`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		added, err := c.contacts.Add(cmd.Context(), mail.Contact{Name: contactName, Emails: contactEmails})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added contact %d %q\n", added.ID, added.Name)
		return nil
	},
}

var contactEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a contact's name or emails",
	Long: `Change a contact. Flags that are not given keep their current value;
--email replaces the whole email list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseContactID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := c.contacts.Load(ctx); err != nil {
			return err
		}
		contact, ok := c.contacts.Find(id)
		if !ok {
			return fmt.Errorf("contact %d not found", id)
		}
		if cmd.Flags().Changed("name") {
			contact.Name = contactName
		}
		if cmd.Flags().Changed("email") {
			contact.Emails = contactEmails
		}
		if err := c.contacts.Edit(ctx, contact); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated contact %d\n", id)
		return nil
	},
}

var contactRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseContactID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := c.contacts.Load(ctx); err != nil {
			return err
		}
		if err := c.contacts.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed contact %d\n", id)
		return nil
	},
}

var contactFindCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Find contacts by name or email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.contacts.Load(cmd.Context()); err != nil {
			return err
		}
		return outputContacts(cmd.OutOrStdout(), c.contacts.Filter(args[0]), contactsJSON)
	},
}

func init() {
	contactsCmd.Flags().BoolVar(&contactsDesc, "desc", false, "sort Z to A")
	contactsCmd.PersistentFlags().BoolVar(&contactsJSON, "json", false, "output as JSON")
	for _, c := range []*cobra.Command{contactAddCmd, contactEditCmd} {
		c.Flags().StringVar(&contactName, "name", "", "contact name")
		c.Flags().StringSliceVar(&contactEmails, "email", nil, "email address (repeatable)")
	}
	contactsCmd.AddCommand(contactAddCmd, contactEditCmd, contactRemoveCmd, contactFindCmd)
	rootCmd.AddCommand(contactsCmd)
}
