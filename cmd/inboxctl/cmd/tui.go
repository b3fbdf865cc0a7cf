package cmd

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/tui"
)

var tuiDownloadDir string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Open an interactive terminal UI for reading and managing mail.

Navigation:
  ↑/k, ↓/j    Move up/down
  ←/h, →/l    Previous / next page
  Enter       Open message (drafts open in the composer)
  Esc         Go back
  g           Go to folder
  /           Search all folders

Selection & actions:
  Space       Toggle selection
  a           Select / deselect the page
  d           Delete (permanent in the trash)
  m           Move to folder
  r           Toggle read
  s, S, p     Sort field, sort direction, priority view (inbox)

Writing:
  c           Compose
  C           Contacts
  ?           All shortcuts
  q           Quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		dir := tuiDownloadDir
		if dir == "" {
			dir = filepath.Join(cfg.HomeDir, "attachments")
		}

		model := tui.New(tui.Deps{
			Mailbox:  c.mailbox,
			Compose:  c.compose,
			Contacts: c.contacts,
			Fetcher:  c.gw,
		}, tui.Options{Version: Version, DownloadDir: dir, Logger: logger})

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run tui: %w", err)
		}
		return nil
	},
}

func init() {
	tuiCmd.Flags().StringVar(&tuiDownloadDir, "download-dir", "", "where saved attachments go (default: <home>/attachments)")
	rootCmd.AddCommand(tuiCmd)
}
