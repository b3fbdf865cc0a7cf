package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/filter"
)

var (
	searchScope string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search sender, recipient, subject and body",
	Long: `Search every folder (or one folder with --scope) for messages whose
sender, recipient, subject or body contains the text. Matching is
case-insensitive.

Text that uses search operators (from:, to:, subject:, has:attachment,
is:read, is:unread, on:, after:, before:, newer_than:, older_than:) runs
as an advanced search over every folder instead; see "inboxctl filter".

Examples:
  inboxctl search invoice
  inboxctl search "quarterly report" --scope sent
  inboxctl search from:carol has:attachment newer_than:2w`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		var criteria *filter.Criteria
		if filter.HasOperators(text) {
			if cmd.Flags().Changed("scope") {
				return fmt.Errorf("--scope cannot be combined with search operators")
			}
			q, err := filter.ParseQuery(cfg.User.ID, text, time.Now())
			if err != nil {
				return err
			}
			criteria = &q.Criteria
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if criteria != nil {
			err = c.mailbox.Search(cmd.Context(), *criteria)
		} else {
			err = c.mailbox.GeneralSearch(cmd.Context(), searchScope, text)
		}
		if err != nil {
			return err
		}
		msgs := c.mailbox.Messages()
		return outputMessages(cmd.OutOrStdout(), msgs,
			fmt.Sprintf("%d message(s) match %q", len(msgs), text), searchJSON)
	},
}

var (
	filterInputs        filter.Inputs
	filterRead          bool
	filterUnread        bool
	filterJSON          bool
	filterPrintCriteria bool
)

var filterCmd = &cobra.Command{
	Use:   "filter [query]",
	Short: "Advanced search where every given field must match",
	Long: `Run an advanced search. Every field that is given must match:
senders and recipients are comma-separated lists, subject and words are
substrings, and the date is either an exact day or a relative range.

The fields come either from flags or from a query:
  from:ADDR  to:ADDR  subject:TEXT  has:attachment  is:read  is:unread
  on:DATE  after:DATE  before:DATE  newer_than:N[dwmy]  older_than:N[dwmy]
Other words and "quoted phrases" must appear in the body.

Date ranges: ` + strings.Join(filter.Ranges(), ", ") + `

Examples:
  inboxctl filter --from alice@example.com --range "1 week"
  inboxctl filter --subject report --has-attachment --unread
  inboxctl filter --date 2024-03-01
  inboxctl filter 'from:alice subject:"q3 report" newer_than:1m'`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := filterCriteria(cmd, args, time.Now())
		if err != nil {
			return err
		}
		if criteria.IsEmpty() {
			return fmt.Errorf("no filter fields given")
		}
		if filterPrintCriteria {
			return outputJSON(cmd.OutOrStdout(), criteria)
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.mailbox.Search(cmd.Context(), criteria); err != nil {
			return err
		}
		msgs := c.mailbox.Messages()
		return outputMessages(cmd.OutOrStdout(), msgs,
			fmt.Sprintf("%d message(s) match", len(msgs)), filterJSON)
	},
}

// filterFieldFlags are the flags that set criteria fields.
var filterFieldFlags = []string{"from", "to", "subject", "words", "range", "date", "has-attachment", "read", "unread"}

// filterCriteria builds the criteria from the query arguments or, when
// there are none, from the field flags.
func filterCriteria(cmd *cobra.Command, args []string, now time.Time) (filter.Criteria, error) {
	if len(args) > 0 {
		for _, name := range filterFieldFlags {
			if cmd.Flags().Changed(name) {
				return filter.Criteria{}, fmt.Errorf("--%s cannot be combined with a query", name)
			}
		}
		q, err := filter.ParseQuery(cfg.User.ID, strings.Join(args, " "), now)
		return q.Criteria, err
	}

	if filterRead && filterUnread {
		return filter.Criteria{}, fmt.Errorf("--read and --unread are mutually exclusive")
	}
	in := filterInputs
	in.UserID = cfg.User.ID
	switch {
	case filterRead:
		v := true
		in.IsRead = &v
	case filterUnread:
		v := false
		in.IsRead = &v
	}
	return filter.Build(in, now)
}

func init() {
	searchCmd.Flags().StringVar(&searchScope, "scope", filter.ScopeAll, "folder to search, or \"all\"")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(searchCmd)

	f := filterCmd.Flags()
	f.StringVar(&filterInputs.From, "from", "", "comma-separated senders")
	f.StringVar(&filterInputs.To, "to", "", "comma-separated recipients")
	f.StringVar(&filterInputs.Subject, "subject", "", "subject contains")
	f.StringVar(&filterInputs.Words, "words", "", "body contains")
	f.StringVar(&filterInputs.DateRange, "range", "", "relative date range, e.g. \"1 week\"")
	f.StringVar(&filterInputs.ExactDate, "date", "", "exact date, YYYY-MM-DD")
	f.BoolVar(&filterInputs.HasAttachment, "has-attachment", false, "only messages with attachments")
	f.BoolVar(&filterRead, "read", false, "only read messages")
	f.BoolVar(&filterUnread, "unread", false, "only unread messages")
	f.BoolVar(&filterJSON, "json", false, "output as JSON")
	f.BoolVar(&filterPrintCriteria, "print-criteria", false, "print the normalized criteria and exit")
	rootCmd.AddCommand(filterCmd)
}
