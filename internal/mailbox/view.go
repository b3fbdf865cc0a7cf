package mailbox

import (
	"sort"

	"github.com/wesm/inboxctl/internal/mail"
)

// View is an immutable snapshot of the controller for renderers.
type View struct {
	Folder        string
	Messages      []mail.Message
	Visible       []mail.Message
	Window        Window
	Loading       bool
	Err           string
	Selected      map[int64]bool
	SortCriterion string
	SortAscending bool
	PriorityMode  bool
	Preview       *mail.Message
	Folders       []string
	Duplicates    []Duplicate
}

// Duplicate is a message left in two folders by a failed move.
type Duplicate struct {
	ID     int64
	Folder string
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windowLocked()
	v := View{
		Folder:        c.folder,
		Messages:      append([]mail.Message(nil), c.messages...),
		Window:        w,
		Loading:       c.loading,
		Err:           c.errMsg,
		Selected:      make(map[int64]bool, len(c.selected)),
		SortCriterion: c.sortCriterion,
		SortAscending: c.sortAscending,
		PriorityMode:  c.priorityMode,
		Folders:       append([]string(nil), c.folders...),
		Duplicates:    c.duplicatesLocked(),
	}
	v.Visible = v.Messages[w.Start:w.End]
	for id := range c.selected {
		v.Selected[id] = true
	}
	if c.preview != nil {
		p := *c.preview
		v.Preview = &p
	}
	return v
}

// Duplicates returns messages that a failed move left in two folders.
func (c *Controller) Duplicates() []Duplicate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duplicatesLocked()
}

func (c *Controller) duplicatesLocked() []Duplicate {
	out := make([]Duplicate, 0, len(c.duplicates))
	for id, folder := range c.duplicates {
		out = append(out, Duplicate{ID: id, Folder: folder})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClearDuplicates drops the duplicate flags once the user has resolved them.
func (c *Controller) ClearDuplicates() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duplicates = make(map[int64]string)
}
