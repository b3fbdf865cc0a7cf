package mailbox

import "github.com/wesm/inboxctl/internal/mail"

func (c *Controller) windowLocked() Window {
	return computeWindow(len(c.messages), c.pageSize, c.start)
}

// Window returns the current pagination window.
func (c *Controller) Window() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowLocked()
}

// PageLabel renders the window as "1-6 of 14".
func (c *Controller) PageLabel() string {
	return c.Window().Label()
}

// Visible returns the messages on the current page.
func (c *Controller) Visible() []mail.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.windowLocked()
	return append([]mail.Message(nil), c.messages[w.Start:w.End]...)
}

// PageRight advances one page. On the last page it does nothing.
func (c *Controller) PageRight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.windowLocked()
	if w.HasNext() {
		c.start = w.Start + c.pageSize
	}
}

// PageLeft goes back one page. On the first page it does nothing.
func (c *Controller) PageLeft() {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.windowLocked()
	if !w.HasPrev() {
		return
	}
	c.start = w.Start - c.pageSize
	if c.start < 0 {
		c.start = 0
	}
}

// ToggleSelection flips membership of id in the selection. The list is
// never touched.
func (c *Controller) ToggleSelection(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected[id] {
		delete(c.selected, id)
	} else {
		c.selected[id] = true
	}
}

// IsSelected reports whether id is selected.
func (c *Controller) IsSelected(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected[id]
}

func (c *Controller) visibleIDsLocked() []int64 {
	w := c.windowLocked()
	ids := make([]int64, 0, w.Len())
	for _, m := range c.messages[w.Start:w.End] {
		ids = append(ids, m.ID)
	}
	return ids
}

func (c *Controller) allVisibleSelectedLocked() bool {
	ids := c.visibleIDsLocked()
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !c.selected[id] {
			return false
		}
	}
	return true
}

// IsAllVisibleSelected reports whether every message on the current page is
// selected. An empty page is never all selected.
func (c *Controller) IsAllVisibleSelected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allVisibleSelectedLocked()
}

// ToggleSelectAll deselects the current page when it is fully selected and
// selects it otherwise. Selections on other pages are untouched.
func (c *Controller) ToggleSelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := c.allVisibleSelectedLocked()
	for _, id := range c.visibleIDsLocked() {
		if all {
			delete(c.selected, id)
		} else {
			c.selected[id] = true
		}
	}
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[int64]bool)
}

// Selected returns the selected ids in list order.
func (c *Controller) Selected() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

func (c *Controller) selectedLocked() []int64 {
	var ids []int64
	for _, m := range c.messages {
		if c.selected[m.ID] {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
