package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
)

var (
	// Background colors - adaptive for light/dark terminals
	bgBase   = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}
	bgAlt    = lipgloss.AdaptiveColor{Light: "#f0f0f0", Dark: "#181818"}
	bgCursor = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#282828"}

	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"}).
			Padding(0, 1)

	statsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	// Spinner style - NOT faint so it's visible
	spinnerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	separatorStyle = lipgloss.NewStyle().
			Faint(true).
			Background(bgBase)

	cursorRowStyle = lipgloss.NewStyle().
			Background(bgCursor)

	// Selected (checked) rows: bold
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Background(bgBase)

	normalRowStyle = lipgloss.NewStyle().
			Background(bgBase)

	altRowStyle = lipgloss.NewStyle().
			Background(bgAlt)

	// Unread messages: bold sender and subject
	unreadStyle = lipgloss.NewStyle().
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#999999"}).
			Background(bgBase).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Background(bgBase)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1, 2).
			Background(bgBase)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true)

	flashStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#996600", Dark: "#ffcc00"}). // Amber for visibility
			Background(bgBase)

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#000000"}).
			Background(lipgloss.AdaptiveColor{Light: "#e8d44d", Dark: "#e8d44d"}).
			Bold(true)
)

// titleBar renders "inboxctl [version] - user - title".
func (m Model) titleBar(title string) string {
	titleText := "inboxctl"
	if m.version != "" && m.version != "dev" && m.version != "unknown" {
		titleText = fmt.Sprintf("inboxctl [%s]", m.version)
	}
	line := fmt.Sprintf("%s - %s - %s", titleText, m.mailbox.User().Email, title)
	return titleBarStyle.Render(padRight(line, m.width-2)) // -2 for padding
}

// folderLabel names the folder the way the list header shows it.
func folderLabel(v mailbox.View) string {
	if v.Folder == mail.FolderSearch {
		return "Search results"
	}
	if v.Folder == "" {
		return "(no folder)"
	}
	if mail.IsSystemFolder(v.Folder) {
		return cases.Title(language.English).String(v.Folder)
	}
	return v.Folder
}

// sortIndicator describes the ordering in effect.
func sortIndicator(v mailbox.View) string {
	if v.PriorityMode {
		return "priority ↓"
	}
	if v.SortCriterion == "" {
		return ""
	}
	arrow := "↓"
	if v.SortAscending {
		arrow = "↑"
	}
	return v.SortCriterion + " " + arrow
}

const (
	fromWidth = 26
	dateWidth = 10
)

func (m Model) listView() string {
	var sb strings.Builder
	v := m.view

	sb.WriteString(m.titleBar(folderLabel(v)))
	sb.WriteString("\n")

	stats := v.Window.Label()
	if s := sortIndicator(v); s != "" {
		stats += "  sorted by " + s
	}
	if n := len(v.Selected); n > 0 {
		stats += fmt.Sprintf("  %d selected", n)
	}
	sb.WriteString(m.renderInfoLine(stats, m.loading()))
	sb.WriteString("\n")

	subjectWidth := max(10, m.width-fromWidth-dateWidth-10)
	header := fmt.Sprintf("     %s %s %s",
		padRight("From", fromWidth), padRight("Subject", subjectWidth), "Date")
	sb.WriteString(tableHeaderStyle.Render(padRight(header, m.width)))
	sb.WriteString("\n")
	sb.WriteString(separatorStyle.Render(strings.Repeat("─", max(0, m.width))))
	sb.WriteString("\n")

	highlight := ""
	if v.Folder == mail.FolderSearch {
		highlight = m.highlight
	}
	now := time.Now()

	if len(v.Visible) == 0 && !v.Loading {
		empty := "  No messages"
		if v.Folder == mail.FolderSearch {
			empty = "  No messages match"
		}
		sb.WriteString(normalRowStyle.Render(padRight(empty, m.width)))
		sb.WriteString("\n")
	}
	for i, msg := range v.Visible {
		sel := " "
		if v.Selected[msg.ID] {
			sel = "✓"
		}
		unread := " "
		if !msg.IsRead {
			unread = "●"
		}
		from := padRight(truncateRunes(msg.Sender, fromWidth), fromWidth)
		subjectText := truncateRunes(msg.Subject, subjectWidth)
		if msg.HasAttachments() {
			subjectText = truncateRunes(msg.Subject, subjectWidth-2) + " ⎘"
		}
		subject := padRight(highlightTerms(subjectText, highlight), subjectWidth)
		if !msg.IsRead {
			from = unreadStyle.Render(from)
			subject = unreadStyle.Render(subject)
		}
		line := fmt.Sprintf("%s%s%s %s %s %s", sel,
			compose.PriorityGlyph(msg.Priority), unread, from, subject,
			formatTimestamp(msg.Timestamp, now))

		style := normalRowStyle
		switch {
		case i == m.cursor:
			style = cursorRowStyle
		case v.Selected[msg.ID]:
			style = selectedRowStyle
		case i%2 == 1:
			style = altRowStyle
		}
		sb.WriteString(style.Render(padRight(line, m.width)))
		sb.WriteString("\n")
	}

	if v.Err != "" {
		sb.WriteString(errorStyle.Render(" " + v.Err))
		sb.WriteString("\n")
	}
	if len(v.Duplicates) > 0 {
		var parts []string
		for _, d := range v.Duplicates {
			parts = append(parts, fmt.Sprintf("#%d in %s", d.ID, d.Folder))
		}
		sb.WriteString(errorStyle.Render(" Possible duplicates: " + strings.Join(parts, ", ") + "  [D] dismiss"))
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderNotificationLine())
	sb.WriteString("\n")
	sb.WriteString(footerStyle.Render(m.listFooter()))
	return sb.String()
}

func (m Model) listFooter() string {
	if m.view.Folder == mail.FolderDrafts {
		return "[Enter] Edit draft  [d] Delete  [g] Folder  [c] Compose  [?] Help  [q] Quit"
	}
	return "[Enter] Open  [Space] Select  [d] Delete  [m] Move  [g] Folder  [/] Search  [c] Compose  [?] Help  [q] Quit"
}

// detailLines renders the open message as lines for scrolling.
func (m Model) detailLines() []string {
	p := m.view.Preview
	if p == nil {
		return []string{"No message"}
	}
	lines := []string{
		"From:     " + p.Sender,
		"To:       " + p.Receiver,
		"Subject:  " + p.Subject,
		"Date:     " + p.Timestamp.Local().Format(time.RFC1123),
		fmt.Sprintf("Priority: %s %d", compose.PriorityGlyph(p.Priority), p.Priority),
	}
	if p.HasAttachments() {
		names := make([]string, len(p.Attachments))
		for i, a := range p.Attachments {
			names[i] = a.FileName
		}
		lines = append(lines, "Attached: "+strings.Join(names, ", "))
	}
	lines = append(lines, "")
	lines = append(lines, wrapText(p.Body, max(20, m.width-2))...)
	return lines
}

func (m Model) detailView() string {
	var sb strings.Builder
	title := "Message"
	if p := m.view.Preview; p != nil {
		title = truncateRunes(p.Subject, max(10, m.width/2))
	}
	sb.WriteString(m.titleBar(title))
	sb.WriteString("\n")

	lines := m.detailLines()
	pageSize := max(1, m.height-4)
	start := min(m.detailScroll, max(0, len(lines)-pageSize))
	end := min(len(lines), start+pageSize)
	for _, line := range lines[start:end] {
		sb.WriteString(normalRowStyle.Render(padRight(" "+line, m.width)))
		sb.WriteString("\n")
	}
	for i := end - start; i < pageSize; i++ {
		sb.WriteString(normalRowStyle.Render(strings.Repeat(" ", max(0, m.width))))
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderNotificationLine())
	sb.WriteString("\n")
	sb.WriteString(footerStyle.Render("[↑/↓] Scroll  [u] Mark unread  [d] Delete  [s] Save attachments  [Esc] Back"))
	return sb.String()
}

func (m Model) spinnerIndicator() string {
	if m.spinnerFrame < len(spinnerFrames) {
		return spinnerFrames[m.spinnerFrame]
	}
	return spinnerFrames[0]
}

// renderInfoLine renders the info line with an optional right-aligned loading spinner.
func (m Model) renderInfoLine(content string, loading bool) string {
	// statsStyle has Padding(0, 1) which adds 2 characters
	contentWidth := max(1, m.width-2)
	if content == "" && !loading {
		return statsStyle.Render(strings.Repeat(" ", contentWidth))
	}
	if loading {
		indicator := m.spinnerIndicator()
		gap := max(1, contentWidth-lipgloss.Width(content)-lipgloss.Width(indicator))
		content += strings.Repeat(" ", gap) + spinnerStyle.Render(indicator)
	}
	return statsStyle.Render(padRight(content, contentWidth))
}

// renderNotificationLine shows the flash message, a loading spinner, or a blank line.
func (m Model) renderNotificationLine() string {
	if m.flashMessage != "" {
		flash := " " + m.flashMessage
		if m.loading() {
			indicator := m.spinnerIndicator()
			gap := max(1, m.width-lipgloss.Width(flash)-lipgloss.Width(indicator))
			return flashStyle.Render(padRight(flash+strings.Repeat(" ", gap)+indicator, m.width))
		}
		return flashStyle.Render(padRight(flash, m.width))
	}
	if m.loading() {
		return m.renderInfoLine("", true)
	}
	return normalRowStyle.Render(strings.Repeat(" ", max(0, m.width)))
}

// rawHelpLines contains the help modal content. The first line is the title.
var rawHelpLines = []string{
	"Keyboard shortcuts",
	"",
	"Messages",
	"  ↑/k ↓/j     Move cursor",
	"  ←/h →/l     Previous / next page",
	"  Enter       Open message (edit drafts)",
	"  Space       Toggle selection",
	"  a           Select / deselect page",
	"  x, Esc      Clear selection",
	"  d           Delete (trash empties permanently)",
	"  m           Move to folder",
	"  r           Toggle read",
	"",
	"Ordering",
	"  s           Cycle sort field (inbox)",
	"  S           Reverse sort direction",
	"  p           Priority view (inbox)",
	"  R           Refresh",
	"",
	"Folders",
	"  g           Go to folder",
	"  /           Search all folders (from: subject: is:unread ...)",
	"  N           New folder",
	"  E           Rename current folder",
	"  X           Delete current folder",
	"  D           Dismiss duplicate warning",
	"",
	"Other",
	"  c           Compose",
	"  C           Contacts",
	"  q           Quit",
	"",
	"[↑/↓] Scroll  [Any other key] Close",
}

// helpMaxVisible returns the max visible lines for the help modal given terminal height.
func (m Model) helpMaxVisible() int {
	return max(1, min(m.height-6, len(rawHelpLines)))
}

func (m Model) renderHelpModal() string {
	maxVisible := m.helpMaxVisible()
	scroll := min(m.helpScroll, max(0, len(rawHelpLines)-maxVisible))

	visible := rawHelpLines[scroll : scroll+maxVisible]
	rendered := make([]string, len(visible))
	for i, line := range visible {
		if scroll+i == 0 {
			rendered[i] = modalTitleStyle.Render(line)
		} else {
			rendered[i] = line
		}
	}
	return strings.Join(rendered, "\n")
}

func (m Model) renderConfirmModal() string {
	return modalTitleStyle.Render("Confirm") + "\n\n" +
		m.confirmPrompt + "\n\n" +
		"[y] Yes  [n] No"
}

func (m Model) renderPickerModal() string {
	var sb strings.Builder
	sb.WriteString(modalTitleStyle.Render(m.pickerTitle))
	sb.WriteString("\n\n")
	if len(m.pickerItems) == 0 {
		sb.WriteString("  (no folders)\n")
	}
	for i, item := range m.pickerItems {
		if i == m.pickerCursor {
			sb.WriteString("▶ " + item)
		} else {
			sb.WriteString("  " + item)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n[↑/↓] Navigate  [Enter] Select  [Esc] Cancel")
	return sb.String()
}

func (m Model) renderInputModal() string {
	return modalTitleStyle.Render(m.inputTitle) + "\n\n" +
		m.input.View() + "\n\n" +
		"[Enter] OK  [Esc] Cancel"
}

// overlayModal renders a modal dialog over the content.
func (m Model) overlayModal(background string) string {
	var modalContent string
	switch m.modal {
	case modalConfirm:
		modalContent = m.renderConfirmModal()
	case modalPicker:
		modalContent = m.renderPickerModal()
	case modalInput:
		modalContent = m.renderInputModal()
	case modalHelp:
		modalContent = m.renderHelpModal()
	}
	if modalContent == "" {
		return background
	}

	modal := modalStyle.Render(modalContent)
	bgLines := strings.Split(background, "\n")
	modalLines := strings.Split(modal, "\n")

	startLine := max(0, (len(bgLines)-len(modalLines))/2)
	modalWidth := lipgloss.Width(modal)
	leftPadding := max(0, (m.width-modalWidth)/2)

	// Overlay modal onto background, preserving background where modal doesn't cover
	for i, modalLine := range modalLines {
		lineIdx := startLine + i
		if lineIdx >= len(bgLines) {
			bgLines = append(bgLines, "")
		}
		bgLine := bgLines[lineIdx]
		bgWidth := lipgloss.Width(bgLine)

		var composite strings.Builder
		if leftPadding > 0 {
			leftBg := truncateToWidth(bgLine, leftPadding)
			composite.WriteString(leftBg)
			if w := lipgloss.Width(leftBg); w < leftPadding {
				composite.WriteString(strings.Repeat(" ", leftPadding-w))
			}
		}
		composite.WriteString(modalLine)
		if rightStart := leftPadding + modalWidth; rightStart < bgWidth {
			composite.WriteString(skipToWidth(bgLine, rightStart))
		}
		bgLines[lineIdx] = composite.String()
	}
	return strings.Join(bgLines, "\n")
}
