package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/wesm/inboxctl/internal/mail"
)

// shownContacts returns the contacts after the local filter.
func (m Model) shownContacts() []mail.Contact {
	if m.contactFilter == "" {
		return m.contacts.Contacts()
	}
	return m.contacts.Filter(m.contactFilter)
}

func (m Model) cursorContact() (mail.Contact, bool) {
	list := m.shownContacts()
	if m.contactCursor < 0 || m.contactCursor >= len(list) {
		return mail.Contact{}, false
	}
	return list[m.contactCursor], true
}

func (m Model) handleContactsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.shownContacts())
	switch msg.String() {
	case "esc", "q":
		if m.contactFilter != "" {
			m.contactFilter = ""
			m.contactCursor = 0
			return m, nil
		}
		m.screen = screenList
	case "up", "k":
		if m.contactCursor > 0 {
			m.contactCursor--
		}
	case "down", "j":
		if m.contactCursor < n-1 {
			m.contactCursor++
		}
	case "/":
		cmd := m.openInput("Filter contacts", m.contactFilter, inputContactFilter)
		return m, cmd
	case "o":
		cmd := m.run("sort contacts", func(ctx context.Context) (string, error) {
			return "", m.contacts.ToggleSort(ctx)
		})
		return m, cmd
	case "a", "n":
		m.editContact = &mail.Contact{}
		cmd := m.openInput("Contact name", "", inputContactName)
		return m, cmd
	case "e", "enter":
		c, ok := m.cursorContact()
		if !ok {
			return m, nil
		}
		m.editContact = &c
		cmd := m.openInput("Contact name", c.Name, inputContactName)
		return m, cmd
	case "x", "d":
		c, ok := m.cursorContact()
		if !ok {
			return m, nil
		}
		m.openConfirm(fmt.Sprintf("Delete contact %q?", c.Name), func(m *Model) tea.Cmd {
			return m.run("delete contact", func(ctx context.Context) (string, error) {
				return fmt.Sprintf("Deleted %q", c.Name), m.contacts.Remove(ctx, c.ID)
			})
		})
	case "c":
		c, ok := m.cursorContact()
		if !ok || len(c.Emails) == 0 {
			return m, nil
		}
		to := c.Emails[0]
		cmd := m.runThen("compose", screenCompose, true, func(ctx context.Context) (string, error) {
			if err := m.compose.Open(ctx); err != nil {
				return "", err
			}
			m.compose.SetTo(to)
			m.compose.DismissSuggestions()
			return "", nil
		})
		return m, cmd
	}
	return m, nil
}

// submitContactInput advances the two-step add/edit form.
func (m Model) submitContactInput(purpose inputPurpose, value string) (tea.Model, tea.Cmd) {
	switch purpose {
	case inputContactFilter:
		m.contactFilter = value
		m.contactCursor = 0
		return m, nil

	case inputContactName:
		if m.editContact == nil {
			return m, nil
		}
		if value == "" {
			m.editContact = nil
			return m.showFlash("A contact needs a name")
		}
		m.editContact.Name = value
		cmd := m.openInput("Emails (comma separated)", strings.Join(m.editContact.Emails, ", "), inputContactEmails)
		return m, cmd

	case inputContactEmails:
		if m.editContact == nil {
			return m, nil
		}
		c := *m.editContact
		c.Emails = mail.ParseList(value)
		m.editContact = nil
		if err := c.Validate(); err != nil {
			return m.showFlash(err.Error())
		}
		if c.ID == 0 {
			cmd := m.run("add contact", func(ctx context.Context) (string, error) {
				_, err := m.contacts.Add(ctx, c)
				return fmt.Sprintf("Added %q", c.Name), err
			})
			return m, cmd
		}
		cmd := m.run("edit contact", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("Updated %q", c.Name), m.contacts.Edit(ctx, c)
		})
		return m, cmd
	}
	return m, nil
}

func (m Model) contactsView() string {
	var sb strings.Builder
	order := "A-Z"
	if !m.contacts.Ascending() {
		order = "Z-A"
	}
	title := fmt.Sprintf("Contacts (%s)", order)
	if m.contactFilter != "" {
		title += fmt.Sprintf(" matching %q", m.contactFilter)
	}
	sb.WriteString(m.titleBar(title))
	sb.WriteString("\n")

	nameWidth := 28
	emailWidth := max(10, m.width-nameWidth-6)
	header := fmt.Sprintf("  %s %s", padRight("Name", nameWidth), "Emails")
	sb.WriteString(tableHeaderStyle.Render(padRight(header, m.width)))
	sb.WriteString("\n")
	sb.WriteString(separatorStyle.Render(strings.Repeat("─", max(0, m.width))))
	sb.WriteString("\n")

	list := m.shownContacts()
	if len(list) == 0 {
		sb.WriteString(normalRowStyle.Render(padRight("  No contacts", m.width)))
		sb.WriteString("\n")
	}
	for i, c := range list {
		marker := " "
		if m.contacts.Pending(c.ID) {
			marker = "…"
		}
		line := fmt.Sprintf("%s %s %s", marker,
			padRight(truncateRunes(c.Name, nameWidth), nameWidth),
			truncateRunes(strings.Join(c.Emails, ", "), emailWidth))
		style := normalRowStyle
		if i == m.contactCursor {
			style = cursorRowStyle
		} else if i%2 == 1 {
			style = altRowStyle
		}
		sb.WriteString(style.Render(padRight(line, m.width)))
		sb.WriteString("\n")
	}

	if d := m.contacts.Divergences(); len(d) > 0 {
		sb.WriteString(errorStyle.Render(fmt.Sprintf(" %d contact change(s) could not be confirmed by the server", len(d))))
		sb.WriteString("\n")
	}
	sb.WriteString(m.renderNotificationLine())
	sb.WriteString("\n")
	sb.WriteString(footerStyle.Render("[a] Add  [e] Edit  [x] Delete  [c] Compose  [o] Sort  [/] Filter  [Esc] Back"))
	return sb.String()
}
