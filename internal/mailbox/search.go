package mailbox

import (
	"context"
	"strings"

	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/mail"
)

// Search runs an advanced search, where every supplied field must match,
// and shows the results in the search pseudo-folder. A failed search keeps
// the current folder and list.
func (c *Controller) Search(ctx context.Context, criteria filter.Criteria) error {
	criteria.UserID = c.user.ID
	return c.runLoad(ctx, loadRequest{
		folder:   mail.FolderSearch,
		keepList: true,
		errText:  "Failed to filter emails",
		fetch: func(ctx context.Context) ([]mail.Message, error) {
			return c.gw.Filter(ctx, c.user.ID, criteria)
		},
	})
}

// GeneralSearch applies one free-text term to sender, receiver, subject
// and body across scope ("" or "all" for every folder). A blank term
// reloads the inbox.
func (c *Controller) GeneralSearch(ctx context.Context, scope, text string) error {
	if strings.TrimSpace(text) == "" {
		return c.LoadFolder(ctx, mail.FolderInbox)
	}
	if scope == "" {
		scope = filter.ScopeAll
	}
	criteria := filter.General(c.user.ID, text)
	return c.runLoad(ctx, loadRequest{
		folder:   mail.FolderSearch,
		keepList: true,
		errText:  "Search failed",
		fetch: func(ctx context.Context) ([]mail.Message, error) {
			return c.gw.Search(ctx, scope, criteria)
		},
	})
}
