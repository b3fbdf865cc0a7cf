// Package tui provides a terminal user interface for inboxctl.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/contacts"
	"github.com/wesm/inboxctl/internal/export"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
)

// screen is the top-level view being shown.
type screen int

const (
	screenList screen = iota
	screenDetail
	screenCompose
	screenContacts
)

// modalType represents the type of modal dialog.
type modalType int

const (
	modalNone modalType = iota
	modalConfirm
	modalPicker
	modalInput
	modalHelp
)

// pickerPurpose says what a folder picked in modalPicker is for.
type pickerPurpose int

const (
	pickOpen pickerPurpose = iota
	pickMove
)

// inputPurpose says what the text typed in modalInput is for.
type inputPurpose int

const (
	inputSearch inputPurpose = iota
	inputNewFolder
	inputRenameFolder
	inputAttachPath
	inputContactName
	inputContactEmails
	inputContactFilter
)

// Options configuration for TUI.
type Options struct {
	Version     string
	DownloadDir string // where saved attachments are written
	Logger      *slog.Logger
}

// Deps are the controllers the TUI drives. Fetcher downloads attachments.
type Deps struct {
	Mailbox  *mailbox.Controller
	Compose  *compose.Session
	Contacts *contacts.Directory
	Fetcher  export.Fetcher
}

// modalPrompter answers controller confirmations with the choice the user
// made in the TUI's own dialog. Approve arms a single yes; any prompt that
// arrives unarmed is declined.
type modalPrompter struct {
	approved atomic.Bool
}

func (p *modalPrompter) Approve() { p.approved.Store(true) }

func (p *modalPrompter) Confirm(context.Context, string) (bool, error) {
	return p.approved.Swap(false), nil
}

// Model is the main TUI model following the Elm architecture.
type Model struct {
	mailbox  *mailbox.Controller
	compose  *compose.Session
	contacts *contacts.Directory
	fetcher  export.Fetcher
	prompter *modalPrompter
	logger   *slog.Logger
	ctx      context.Context

	version     string
	downloadDir string

	screen screen
	view   mailbox.View // last snapshot of the mailbox controller
	cursor int          // index into view.Visible

	// Last search line, and the words highlighted while the search folder
	// is shown
	lastSearch string
	highlight  string

	// Detail view
	detailScroll int

	// Compose view
	toInput      textinput.Model
	subjectInput textinput.Model
	bodyInput    textarea.Model
	composeFocus int

	// Contacts view
	contactCursor int
	contactFilter string
	editContact   *mail.Contact // contact being added or edited

	// Modal state
	modal         modalType
	confirmPrompt string
	confirmAction func(m *Model) tea.Cmd
	pickerTitle   string
	pickerItems   []string
	pickerCursor  int
	pickerPurpose pickerPurpose
	moveIDs       []int64
	input         textinput.Model
	inputTitle    string
	inputPurpose  inputPurpose
	helpScroll    int

	// Terminal dimensions
	width  int
	height int

	// Outstanding background operations
	inflight      int
	spinnerFrame  int
	spinnerActive bool

	// Flash message (temporary notification)
	flashMessage   string
	flashExpiresAt time.Time

	quitting bool
}

// New creates a new TUI model. The mailbox controller and compose session
// get a prompter that defers to the TUI's confirmation dialog.
func New(deps Deps, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &modalPrompter{}
	deps.Mailbox.WithPrompter(p)
	deps.Compose.WithPrompter(p)

	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 50

	to := textinput.New()
	to.Placeholder = "recipient@example.com, ..."
	to.Prompt = "To:      "
	to.Width = 60

	subject := textinput.New()
	subject.Prompt = "Subject: "
	subject.CharLimit = 250
	subject.Width = 60

	body := textarea.New()
	body.Placeholder = "Write your message..."
	body.ShowLineNumbers = false
	body.SetWidth(78)
	body.SetHeight(10)

	return Model{
		mailbox:      deps.Mailbox,
		compose:      deps.Compose,
		contacts:     deps.Contacts,
		fetcher:      deps.Fetcher,
		prompter:     p,
		logger:       logger,
		ctx:          context.Background(),
		version:      opts.Version,
		downloadDir:  opts.DownloadDir,
		view:         deps.Mailbox.Snapshot(),
		input:        ti,
		toInput:      to,
		subjectInput: subject,
		bodyInput:    body,
		width:        100,
		height:       30,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.run("load inbox", func(ctx context.Context) (string, error) {
		if _, err := m.mailbox.LoadFolders(ctx); err != nil {
			m.logger.Warn("failed to load folders", "error", err)
		}
		return "", m.mailbox.LoadFolder(ctx, mail.FolderInbox)
	})
}

// opDoneMsg is sent when a background operation finishes.
type opDoneMsg struct {
	op    string
	flash string
	err   error
	next  screen
	goTo  bool // switch to next once done, on success only
}

// flashClearMsg clears the flash message after timeout.
type flashClearMsg struct{}

// spinnerTickMsg advances the loading spinner animation.
type spinnerTickMsg struct{}

// flashDuration is how long flash messages stay on screen.
const flashDuration = 4 * time.Second

// spinnerFrames are the Braille dot animation frames for the loading spinner.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func spinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// run executes fn off the UI goroutine and reports back with opDoneMsg.
func (m *Model) run(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	return m.runThen(op, screenList, false, fn)
}

// runThen is run that also switches to next when fn succeeds.
func (m *Model) runThen(op string, next screen, goTo bool, fn func(ctx context.Context) (string, error)) tea.Cmd {
	m.inflight++
	ctx := m.ctx
	work := func() (msg tea.Msg) {
		// Recover from panics to prevent TUI from becoming unresponsive
		defer func() {
			if r := recover(); r != nil {
				msg = opDoneMsg{op: op, err: fmt.Errorf("%s panic: %v", op, r)}
			}
		}()
		flash, err := fn(ctx)
		return opDoneMsg{op: op, flash: flash, err: err, next: next, goTo: goTo}
	}
	if m.spinnerActive {
		return work
	}
	m.spinnerActive = true
	return tea.Batch(work, spinnerTick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bodyInput.SetWidth(max(20, msg.Width-4))
		m.bodyInput.SetHeight(max(3, msg.Height-14))
		return m, nil

	case spinnerTickMsg:
		if m.inflight == 0 {
			m.spinnerActive = false
			return m, nil
		}
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, spinnerTick()

	case flashClearMsg:
		if !m.flashExpiresAt.IsZero() && !time.Now().Before(m.flashExpiresAt) {
			m.flashMessage = ""
		}
		return m, nil

	case opDoneMsg:
		return m.handleOpDone(msg)

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m Model) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	if m.inflight > 0 {
		m.inflight--
	}
	m.syncView()

	if msg.err != nil {
		if errors.Is(msg.err, mailbox.ErrCancelled) || errors.Is(msg.err, compose.ErrCancelled) {
			return m.showFlash("Cancelled")
		}
		m.logger.Warn("operation failed", "op", msg.op, "error", msg.err)
		return m.showFlash(errorText(msg.err))
	}
	if msg.goTo {
		m.screen = msg.next
		if msg.next == screenCompose {
			m.loadComposeInputs()
		}
	}
	if m.screen == screenCompose && m.compose.State() == compose.Closed {
		m.screen = screenList
	}
	if msg.flash != "" {
		return m.showFlash(msg.flash)
	}
	return m, nil
}

// errorText picks the message shown to the user for err.
func errorText(err error) string {
	var sendErr *compose.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Message
	}
	return err.Error()
}

// syncView refreshes the snapshot and keeps the cursor on the page.
func (m *Model) syncView() {
	m.view = m.mailbox.Snapshot()
	if m.cursor >= len(m.view.Visible) {
		m.cursor = len(m.view.Visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) showFlash(message string) (tea.Model, tea.Cmd) {
	m.flashMessage = message
	m.flashExpiresAt = time.Now().Add(flashDuration)
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashClearMsg{} })
}

// cursorMessage returns the message under the cursor.
func (m Model) cursorMessage() (mail.Message, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Visible) {
		return mail.Message{}, false
	}
	return m.view.Visible[m.cursor], true
}

// targetIDs returns the selection, or the message under the cursor when
// nothing is selected.
func (m Model) targetIDs() []int64 {
	if ids := m.mailbox.Selected(); len(ids) > 0 {
		return ids
	}
	if msg, ok := m.cursorMessage(); ok {
		return []int64{msg.ID}
	}
	return nil
}

// loading reports whether a background operation is outstanding.
func (m Model) loading() bool {
	return m.inflight > 0 || m.view.Loading
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var body string
	switch m.screen {
	case screenDetail:
		body = m.detailView()
	case screenCompose:
		body = m.composeView()
	case screenContacts:
		body = m.contactsView()
	default:
		body = m.listView()
	}
	if m.modal != modalNone {
		return m.overlayModal(body)
	}
	return body
}
