package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/mail"
)

// Compose focus positions.
const (
	focusTo = iota
	focusSubject
	focusBody
	focusCount
)

func (m *Model) focusCompose() {
	m.toInput.Blur()
	m.subjectInput.Blur()
	m.bodyInput.Blur()
	switch m.composeFocus {
	case focusTo:
		m.toInput.Focus()
	case focusSubject:
		m.subjectInput.Focus()
	case focusBody:
		m.bodyInput.Focus()
	}
}

func (m Model) handleComposeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab":
		m.composeFocus = (m.composeFocus + 1) % focusCount
		m.focusCompose()
		return m, nil
	case "shift+tab":
		m.composeFocus = (m.composeFocus + focusCount - 1) % focusCount
		m.focusCompose()
		return m, nil

	case "ctrl+s":
		cmd := m.run("send", func(ctx context.Context) (string, error) {
			res, err := m.compose.Send(ctx)
			if err != nil {
				return "", err
			}
			if res != nil && res.Message != "" {
				return res.Message, nil
			}
			return "Email sent successfully", nil
		})
		return m, cmd
	case "ctrl+w":
		cmd := m.run("save draft", func(ctx context.Context) (string, error) {
			id, err := m.compose.SaveDraft(ctx)
			return fmt.Sprintf("Draft %d saved", id), err
		})
		return m, cmd
	case "ctrl+d":
		cmd := m.run("save draft and close", func(ctx context.Context) (string, error) {
			return "", m.compose.SaveDraftAndClose(ctx)
		})
		return m, cmd
	case "esc":
		if !m.compose.HasContent() {
			cmd := m.run("cancel", func(ctx context.Context) (string, error) {
				return "", m.compose.Cancel(ctx)
			})
			return m, cmd
		}
		m.openConfirm("Discard this message?", func(m *Model) tea.Cmd {
			return m.run("cancel", func(ctx context.Context) (string, error) {
				m.prompter.Approve()
				return "Message discarded", m.compose.Cancel(ctx)
			})
		})
		return m, nil
	case "ctrl+t":
		d := m.compose.Draft()
		next := d.Priority%mail.MaxPriority + 1
		if err := m.compose.SetPriority(next); err != nil {
			return m.showFlash(err.Error())
		}
		return m, nil
	case "ctrl+a":
		cmd := m.openInput("Attach file (path)", "", inputAttachPath)
		return m, cmd
	case "ctrl+x":
		d := m.compose.Draft()
		if len(d.Attachments) == 0 {
			return m.showFlash("No attachments")
		}
		last := d.Attachments[len(d.Attachments)-1]
		m.compose.RemoveAttachment(last)
		return m.showFlash("Removed " + last)
	}

	if m.composeFocus == focusTo {
		if handled, model, cmd := m.handleSuggestionKeys(msg); handled {
			return model, cmd
		}
	}

	var cmd tea.Cmd
	switch m.composeFocus {
	case focusTo:
		m.toInput, cmd = m.toInput.Update(msg)
		m.compose.SetTo(m.toInput.Value())
	case focusSubject:
		if msg.String() == "enter" {
			m.composeFocus = focusBody
			m.focusCompose()
			return m, nil
		}
		m.subjectInput, cmd = m.subjectInput.Update(msg)
		m.compose.SetSubject(m.subjectInput.Value())
	case focusBody:
		m.bodyInput, cmd = m.bodyInput.Update(msg)
		m.compose.SetBody(m.bodyInput.Value())
	}
	return m, cmd
}

// handleSuggestionKeys drives the recipient autocomplete list.
func (m Model) handleSuggestionKeys(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	list, _ := m.compose.Suggestions()
	switch msg.String() {
	case "down", "ctrl+n":
		if len(list) > 0 {
			m.compose.NextSuggestion()
			return true, m, nil
		}
	case "up", "ctrl+p":
		if len(list) > 0 {
			m.compose.PrevSuggestion()
			return true, m, nil
		}
	case "enter":
		if s, ok := m.compose.SelectSuggestion(); ok {
			m.toInput.SetValue(s.Email)
			m.toInput.CursorEnd()
			return true, m, nil
		}
		m.composeFocus = focusSubject
		m.focusCompose()
		return true, m, nil
	case "ctrl+g":
		m.compose.DismissSuggestions()
		return true, m, nil
	}
	return false, m, nil
}

func (m Model) composeView() string {
	d := m.compose.Draft()
	var sb strings.Builder

	title := "New message"
	if m.compose.State() == compose.ComposingDraft {
		title = fmt.Sprintf("Draft #%d", m.compose.DraftID())
	}
	sb.WriteString(m.titleBar(title))
	sb.WriteString("\n\n")

	sb.WriteString(m.toInput.View())
	sb.WriteString("\n")
	if m.composeFocus == focusTo {
		list, cursor := m.compose.Suggestions()
		for i, s := range list {
			marker := "  "
			style := normalRowStyle
			if i == cursor {
				marker = "▶ "
				style = cursorRowStyle
			}
			line := marker + s.Email
			if s.Name != "" {
				line += "  (" + s.Name + ")"
			}
			sb.WriteString("         " + style.Render(line) + "\n")
		}
	}
	sb.WriteString(m.subjectInput.View())
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Priority: %s %d\n", compose.PriorityGlyph(d.Priority), d.Priority))
	if len(d.Attachments) > 0 {
		sb.WriteString("Attached: " + strings.Join(d.Attachments, ", ") + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.bodyInput.View())
	sb.WriteString("\n\n")
	sb.WriteString(m.renderNotificationLine())
	sb.WriteString("\n")
	sb.WriteString(footerStyle.Render("[Tab] Next field  [Ctrl+S] Send  [Ctrl+W] Save draft  [Ctrl+D] Save & close  [Ctrl+T] Priority  [Ctrl+A] Attach  [Esc] Discard"))
	return sb.String()
}
