package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/export"
	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
)

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.modal != modalNone {
		return m.handleModalKeys(msg)
	}
	switch m.screen {
	case screenDetail:
		return m.handleDetailKeys(msg)
	case screenCompose:
		return m.handleComposeKeys(msg)
	case screenContacts:
		return m.handleContactsKeys(msg)
	default:
		return m.handleListKeys(msg)
	}
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.view.Visible)-1 {
			m.cursor++
		}
	case "right", "l", "]":
		m.mailbox.PageRight()
		m.cursor = 0
		m.syncView()
	case "left", "h", "[":
		m.mailbox.PageLeft()
		m.cursor = 0
		m.syncView()

	case " ":
		if cur, ok := m.cursorMessage(); ok {
			m.mailbox.ToggleSelection(cur.ID)
			m.syncView()
			if m.cursor < len(m.view.Visible)-1 {
				m.cursor++
			}
		}
	case "a":
		m.mailbox.ToggleSelectAll()
		m.syncView()
	case "esc", "x":
		m.mailbox.ClearSelection()
		m.syncView()

	case "enter":
		return m.openCursorMessage()

	case "d", "delete":
		return m.confirmDelete()
	case "m":
		ids := m.targetIDs()
		if len(ids) == 0 {
			return m.showFlash("No messages selected")
		}
		m.openPicker("Move to folder", m.mailbox.TargetFolders(), pickMove)
		m.moveIDs = ids
	case "g":
		m.openPicker("Go to folder", append(mail.SystemFolders(), m.view.Folders...), pickOpen)

	case "r":
		cur, ok := m.cursorMessage()
		if !ok {
			return m, nil
		}
		cmd := m.run("toggle read", func(ctx context.Context) (string, error) {
			return "", m.mailbox.ToggleReadStatus(ctx, cur.ID)
		})
		return m, cmd
	case "p":
		cmd := m.run("priority mode", func(ctx context.Context) (string, error) {
			return "", m.mailbox.TogglePriorityMode(ctx)
		})
		return m, cmd
	case "s":
		next := nextCriterion(m.view.SortCriterion)
		cmd := m.run("sort", func(ctx context.Context) (string, error) {
			return "Sorted by " + next, m.mailbox.SetSortCriterion(ctx, next)
		})
		return m, cmd
	case "S":
		cmd := m.run("sort direction", func(ctx context.Context) (string, error) {
			return "", m.mailbox.ToggleSortDirection(ctx)
		})
		return m, cmd
	case "R", "ctrl+r":
		cmd := m.run("refresh", func(ctx context.Context) (string, error) {
			return "", m.mailbox.Refresh(ctx)
		})
		return m, cmd

	case "/":
		cmd := m.openInput("Search all folders", m.lastSearch, inputSearch)
		return m, cmd
	case "N":
		cmd := m.openInput("New folder name", "", inputNewFolder)
		return m, cmd
	case "E":
		if !isCustomFolder(m.view.Folder) {
			return m.showFlash("Only custom folders can be renamed")
		}
		cmd := m.openInput(fmt.Sprintf("Rename %q to", m.view.Folder), m.view.Folder, inputRenameFolder)
		return m, cmd
	case "X":
		folder := m.view.Folder
		if !isCustomFolder(folder) {
			return m.showFlash("Only custom folders can be deleted")
		}
		m.openConfirm(fmt.Sprintf("Delete folder %q and all messages in it?", folder), func(m *Model) tea.Cmd {
			return m.run("delete folder", func(ctx context.Context) (string, error) {
				m.prompter.Approve()
				return fmt.Sprintf("Deleted folder %q", folder), m.mailbox.DeleteFolder(ctx, folder)
			})
		})
	case "D":
		m.mailbox.ClearDuplicates()
		m.syncView()

	case "c":
		cmd := m.runThen("compose", screenCompose, true, func(ctx context.Context) (string, error) {
			return "", m.compose.Open(ctx)
		})
		return m, cmd
	case "C":
		m.contactCursor = 0
		cmd := m.runThen("contacts", screenContacts, true, func(ctx context.Context) (string, error) {
			return "", m.contacts.Load(ctx)
		})
		return m, cmd

	case "?":
		m.modal = modalHelp
		m.helpScroll = 0
	}
	return m, nil
}

// openCursorMessage opens a draft in the composer and anything else in the
// detail view, marking it read.
func (m Model) openCursorMessage() (tea.Model, tea.Cmd) {
	cur, ok := m.cursorMessage()
	if !ok {
		return m, nil
	}
	if m.view.Folder == mail.FolderDrafts {
		cmd := m.runThen("open draft", screenCompose, true, func(ctx context.Context) (string, error) {
			return "", m.compose.OpenDraft(ctx, cur)
		})
		return m, cmd
	}
	m.detailScroll = 0
	cmd := m.runThen("open message", screenDetail, true, func(ctx context.Context) (string, error) {
		return "", m.mailbox.SetPreview(ctx, cur)
	})
	return m, cmd
}

func (m Model) confirmDelete() (tea.Model, tea.Cmd) {
	ids := m.targetIDs()
	if len(ids) == 0 {
		return m.showFlash("No messages selected")
	}
	m.openConfirm(deletePrompt(len(ids), m.view.Folder == mail.FolderTrash), func(m *Model) tea.Cmd {
		return m.run("delete", func(ctx context.Context) (string, error) {
			m.prompter.Approve()
			res, err := m.mailbox.DeleteIDs(ctx, ids)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Deleted %d message(s)", len(res.Succeeded())), nil
		})
	})
	return m, nil
}

func deletePrompt(n int, permanent bool) string {
	if permanent {
		return fmt.Sprintf("Permanently delete %d message(s)? This cannot be undone.", n)
	}
	return fmt.Sprintf("Move %d message(s) to trash?", n)
}

// nextCriterion cycles through the inbox sort criteria.
func nextCriterion(current string) string {
	list := mailbox.SortCriteria()
	i := slices.Index(list, current)
	return list[(i+1)%len(list)]
}

func isCustomFolder(name string) bool {
	return name != "" && name != mail.FolderSearch && !mail.IsSystemFolder(name)
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	preview := m.view.Preview
	switch msg.String() {
	case "esc", "q", "backspace":
		m.mailbox.ClearPreview()
		m.syncView()
		m.screen = screenList
	case "down", "j":
		m.detailScroll++
	case "up", "k":
		if m.detailScroll > 0 {
			m.detailScroll--
		}
	case "u":
		if preview == nil {
			return m, nil
		}
		id := preview.ID
		m.screen = screenList
		cmd := m.run("mark unread", func(ctx context.Context) (string, error) {
			err := m.mailbox.MarkUnread(ctx, id)
			m.mailbox.ClearPreview()
			return "Marked as unread", err
		})
		return m, cmd
	case "d":
		if preview == nil {
			return m, nil
		}
		id := preview.ID
		m.openConfirm(deletePrompt(1, m.view.Folder == mail.FolderTrash), func(m *Model) tea.Cmd {
			m.screen = screenList
			return m.run("delete", func(ctx context.Context) (string, error) {
				m.prompter.Approve()
				_, err := m.mailbox.DeleteSingle(ctx, id)
				m.mailbox.ClearPreview()
				return "Deleted 1 message", err
			})
		})
	case "s":
		if preview == nil || !preview.HasAttachments() {
			return m.showFlash("No attachments")
		}
		atts := append([]mail.Attachment(nil), preview.Attachments...)
		dir := m.downloadDir
		cmd := m.run("save attachments", func(ctx context.Context) (string, error) {
			var saved []string
			for _, a := range atts {
				path, err := export.SaveAttachment(ctx, m.fetcher, a, dir)
				if err != nil {
					return "", err
				}
				saved = append(saved, path)
			}
			return fmt.Sprintf("Saved %d attachment(s) to %s", len(saved), dir), nil
		})
		return m, cmd
	}
	return m, nil
}

func (m Model) handleModalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalConfirm:
		switch msg.String() {
		case "y", "Y", "enter":
			action := m.confirmAction
			m.closeModal()
			if action != nil {
				cmd := action(&m)
				return m, cmd
			}
		case "n", "N", "esc", "q":
			m.closeModal()
			return m.showFlash("Cancelled")
		}
		return m, nil

	case modalPicker:
		switch msg.String() {
		case "up", "k":
			if m.pickerCursor > 0 {
				m.pickerCursor--
			}
		case "down", "j":
			if m.pickerCursor < len(m.pickerItems)-1 {
				m.pickerCursor++
			}
		case "esc", "q":
			m.closeModal()
		case "enter":
			if len(m.pickerItems) == 0 {
				m.closeModal()
				return m, nil
			}
			return m.pick(m.pickerItems[m.pickerCursor])
		}
		return m, nil

	case modalInput:
		switch msg.String() {
		case "esc":
			m.closeModal()
			m.editContact = nil
			return m, nil
		case "enter":
			value := m.input.Value()
			purpose := m.inputPurpose
			m.closeModal()
			return m.submitInput(purpose, value)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case modalHelp:
		switch msg.String() {
		case "down", "j":
			if m.helpScroll < len(rawHelpLines)-m.helpMaxVisible() {
				m.helpScroll++
			}
		case "up", "k":
			if m.helpScroll > 0 {
				m.helpScroll--
			}
		default:
			m.closeModal()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) pick(folder string) (tea.Model, tea.Cmd) {
	purpose := m.pickerPurpose
	ids := m.moveIDs
	m.closeModal()
	switch purpose {
	case pickMove:
		cmd := m.run("move", func(ctx context.Context) (string, error) {
			err := m.mailbox.MoveIDs(ctx, ids, folder)
			var me *mailbox.MoveError
			if errors.As(err, &me) && len(me.Duplicates) > 0 {
				return "", fmt.Errorf("%w (press D once resolved)", err)
			}
			return fmt.Sprintf("Moved %d message(s) to %s", len(ids), folder), err
		})
		return m, cmd
	default:
		m.cursor = 0
		cmd := m.run("open folder", func(ctx context.Context) (string, error) {
			return "", m.mailbox.LoadFolder(ctx, folder)
		})
		return m, cmd
	}
}

func (m Model) submitInput(purpose inputPurpose, value string) (tea.Model, tea.Cmd) {
	value = strings.TrimSpace(value)
	switch purpose {
	case inputSearch:
		m.lastSearch = value
		m.highlight = value
		m.cursor = 0
		if filter.HasOperators(value) {
			q, err := filter.ParseQuery(m.mailbox.User().ID, value, time.Now())
			if err != nil {
				return m.showFlash(err.Error())
			}
			m.highlight = strings.Join(q.Terms, " ")
			cmd := m.run("search", func(ctx context.Context) (string, error) {
				return "", m.mailbox.Search(ctx, q.Criteria)
			})
			return m, cmd
		}
		cmd := m.run("search", func(ctx context.Context) (string, error) {
			return "", m.mailbox.GeneralSearch(ctx, "", value)
		})
		return m, cmd
	case inputNewFolder:
		cmd := m.run("create folder", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("Created folder %q", value), m.mailbox.CreateFolder(ctx, value)
		})
		return m, cmd
	case inputRenameFolder:
		old := m.view.Folder
		cmd := m.run("rename folder", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("Renamed %q to %q", old, value), m.mailbox.RenameFolder(ctx, old, value)
		})
		return m, cmd
	case inputAttachPath:
		if value == "" {
			return m, nil
		}
		if err := m.compose.AddAttachmentFile(value); err != nil {
			return m.showFlash(err.Error())
		}
		return m.showFlash("Attached " + value)
	case inputContactName, inputContactEmails, inputContactFilter:
		return m.submitContactInput(purpose, value)
	}
	return m, nil
}

func (m *Model) openConfirm(prompt string, action func(m *Model) tea.Cmd) {
	m.modal = modalConfirm
	m.confirmPrompt = prompt
	m.confirmAction = action
}

func (m *Model) openPicker(title string, items []string, purpose pickerPurpose) {
	m.modal = modalPicker
	m.pickerTitle = title
	m.pickerItems = items
	m.pickerCursor = 0
	m.pickerPurpose = purpose
}

func (m *Model) openInput(title, value string, purpose inputPurpose) tea.Cmd {
	m.modal = modalInput
	m.inputTitle = title
	m.inputPurpose = purpose
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) closeModal() {
	m.modal = modalNone
	m.confirmAction = nil
	m.moveIDs = nil
	m.input.Blur()
}

// loadComposeInputs copies the session's fields into the editors.
func (m *Model) loadComposeInputs() {
	d := m.compose.Draft()
	m.toInput.SetValue(d.To)
	m.subjectInput.SetValue(d.Subject)
	m.bodyInput.SetValue(d.Body)
	m.composeFocus = 0
	m.focusCompose()
}

// compile-time check that the TUI prompter fits both controllers.
var (
	_ mailbox.Prompter = (*modalPrompter)(nil)
	_ compose.Prompter = (*modalPrompter)(nil)
)
