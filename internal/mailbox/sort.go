package mailbox

import (
	"context"
	"fmt"

	"github.com/wesm/inboxctl/internal/mail"
)

// Sort criteria accepted by the sorted-list endpoint.
const (
	SortByDate        = "date"
	SortBySender      = "sender"
	SortBySubject     = "subject"
	PriorityCriterion = "priority"
)

// SortCriteria lists the criteria offered in the inbox.
func SortCriteria() []string {
	return []string{SortByDate, SortBySender, SortBySubject, PriorityCriterion}
}

func validCriterion(s string) bool {
	for _, c := range SortCriteria() {
		if c == s {
			return true
		}
	}
	return false
}

func (c *Controller) sortedRequest(criterion string, ascending bool) loadRequest {
	return loadRequest{
		folder:   mail.FolderInbox,
		keepList: true,
		errText:  "Failed to load inbox",
		fetch: func(ctx context.Context) ([]mail.Message, error) {
			return c.gw.ListSorted(ctx, c.user, criterion, ascending)
		},
	}
}

// priorityRequest empties the list when it fails.
func (c *Controller) priorityRequest() loadRequest {
	return loadRequest{
		folder:  mail.FolderInbox,
		errText: "Failed to load priority sorted emails",
		fetch: func(ctx context.Context) ([]mail.Message, error) {
			return c.gw.ListSorted(ctx, c.user, PriorityCriterion, true)
		},
	}
}

// TogglePriorityMode switches priority ordering of the inbox on or off.
// Turning it on requests the list sorted by priority; turning it off
// clears any sort criterion and reloads the folder in its default order. An
// empty list issues no request.
func (c *Controller) TogglePriorityMode(ctx context.Context) error {
	c.mu.Lock()
	if c.folder != mail.FolderInbox {
		c.mu.Unlock()
		return ErrSortUnavailable
	}
	c.priorityMode = !c.priorityMode
	enabled := c.priorityMode
	if !enabled {
		c.sortCriterion = ""
	}
	empty := len(c.messages) == 0
	c.mu.Unlock()

	if empty {
		c.logger.Debug("no messages to sort, skipping priority request")
		return nil
	}
	if enabled {
		return c.runLoad(ctx, c.priorityRequest())
	}
	return c.runLoad(ctx, c.folderRequest(mail.FolderInbox))
}

// SetSortCriterion orders the inbox by criterion using the current
// direction. It leaves priority mode.
func (c *Controller) SetSortCriterion(ctx context.Context, criterion string) error {
	if !validCriterion(criterion) {
		return fmt.Errorf("%w: %q", ErrUnknownSortCriterion, criterion)
	}
	c.mu.Lock()
	if c.folder != mail.FolderInbox {
		c.mu.Unlock()
		return ErrSortUnavailable
	}
	c.sortCriterion = criterion
	c.priorityMode = false
	asc := c.sortAscending
	c.mu.Unlock()

	return c.runLoad(ctx, c.sortedRequest(criterion, asc))
}

// ToggleSortDirection flips the sort direction and re-requests the sorted
// inbox. With no criterion chosen yet, the date criterion is used. It
// leaves priority mode.
func (c *Controller) ToggleSortDirection(ctx context.Context) error {
	c.mu.Lock()
	if c.folder != mail.FolderInbox {
		c.mu.Unlock()
		return ErrSortUnavailable
	}
	c.sortAscending = !c.sortAscending
	if c.sortCriterion == "" {
		c.sortCriterion = SortByDate
	}
	c.priorityMode = false
	criterion, asc := c.sortCriterion, c.sortAscending
	c.mu.Unlock()

	return c.runLoad(ctx, c.sortedRequest(criterion, asc))
}
