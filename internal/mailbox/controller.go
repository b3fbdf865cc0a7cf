// Package mailbox implements the mailbox view controller: the loaded message
// list of one folder, its pagination window, the multi-select set, sort and
// priority modes, and the reconciliation performed after every mutation.
package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

// Prompter asks the user to confirm a destructive action.
type Prompter interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// AutoConfirm is a Prompter that accepts every prompt.
type AutoConfirm struct{}

// Confirm always returns true.
func (AutoConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }

// Options configures a Controller.
type Options struct {
	PageSize    int
	MaxInFlight int
}

// Controller owns the client-side state of one mailbox session. All state
// lives behind mu; mu is never held across a gateway call.
type Controller struct {
	gw          gateway.Gateway
	user        mail.User
	pageSize    int
	maxInFlight int
	prompter    Prompter
	logger      *slog.Logger

	mu            sync.Mutex
	folder        string
	messages      []mail.Message
	loading       bool
	errMsg        string
	selected      map[int64]bool
	start         int
	sortCriterion string
	sortAscending bool
	priorityMode  bool
	preview       *mail.Message
	folders       []string
	duplicates    map[int64]string
	seq           uint64
}

// New creates a controller for user backed by gw. The controller starts on
// the inbox with an empty list; call LoadFolder to populate it.
func New(gw gateway.Gateway, user mail.User, opts Options) *Controller {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	return &Controller{
		gw:          gw,
		user:        user,
		pageSize:    opts.PageSize,
		maxInFlight: opts.MaxInFlight,
		prompter:    AutoConfirm{},
		logger:      slog.Default(),
		folder:      mail.FolderInbox,
		selected:    make(map[int64]bool),
		duplicates:  make(map[int64]string),
	}
}

// WithLogger sets the logger.
func (c *Controller) WithLogger(logger *slog.Logger) *Controller {
	c.logger = logger
	return c
}

// WithPrompter sets the confirmation prompter.
func (c *Controller) WithPrompter(p Prompter) *Controller {
	c.prompter = p
	return c
}

// User returns the logged-in user.
func (c *Controller) User() mail.User {
	return c.user
}

// loadRequest describes one list-replacing request.
type loadRequest struct {
	folder   string // folder to show once the list is replaced
	switchTo bool   // set the current folder before the request is issued
	keepList bool   // on failure, keep the existing list instead of emptying it
	errText  string
	fetch    func(ctx context.Context) ([]mail.Message, error)
}

// begin issues a new sequence number and marks the controller loading.
func (c *Controller) begin(req loadRequest) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if req.switchTo {
		c.folder = req.folder
	}
	c.loading = true
	c.errMsg = ""
	return c.seq
}

// runLoad executes a list-replacing request. A response whose sequence
// number is no longer the latest is discarded.
func (c *Controller) runLoad(ctx context.Context, req loadRequest) error {
	seq := c.begin(req)
	msgs, err := req.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		c.logger.Debug("discarding stale response", "folder", req.folder, "seq", seq, "latest", c.seq)
		return nil
	}
	c.loading = false
	if err != nil {
		c.logger.Error("load failed", "folder", req.folder, "error", err)
		c.errMsg = req.errText
		if !req.keepList {
			c.replaceLocked(nil)
		}
		return fmt.Errorf("%s: %w", req.errText, err)
	}
	c.folder = req.folder
	c.replaceLocked(msgs)
	return nil
}

// replaceLocked swaps the loaded list, prunes the selection and preview to
// ids still present, and recomputes the window from scratch.
func (c *Controller) replaceLocked(msgs []mail.Message) {
	if msgs == nil {
		msgs = []mail.Message{}
	}
	c.messages = msgs

	present := make(map[int64]bool, len(msgs))
	for _, m := range msgs {
		present[m.ID] = true
	}
	for id := range c.selected {
		if !present[id] {
			delete(c.selected, id)
		}
	}
	if c.preview != nil && !present[c.preview.ID] {
		c.preview = nil
	}
	c.start = 0
}

// LoadFolder makes name the current folder and replaces the list with its
// messages. Sort and priority modes are reset.
func (c *Controller) LoadFolder(ctx context.Context, name string) error {
	if name == "" || name == mail.FolderSearch {
		return fmt.Errorf("cannot load folder %q", name)
	}
	c.mu.Lock()
	c.sortCriterion = ""
	c.priorityMode = false
	c.mu.Unlock()
	return c.runLoad(ctx, c.folderRequest(name))
}

func (c *Controller) folderRequest(name string) loadRequest {
	return loadRequest{
		folder:   name,
		switchTo: true,
		errText:  fmt.Sprintf("Failed to load %s", name),
		fetch: func(ctx context.Context) ([]mail.Message, error) {
			return c.gw.ListFolder(ctx, c.user, name)
		},
	}
}

// Refresh reloads the current folder. The search pseudo-folder is only
// replaced by a new search, so refreshing it does nothing. In the inbox an
// active sort or priority mode is re-applied.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	folder := c.folder
	criterion, asc := c.sortCriterion, c.sortAscending
	priority := c.priorityMode
	c.mu.Unlock()

	switch {
	case folder == mail.FolderSearch:
		return nil
	case folder == mail.FolderInbox && priority:
		return c.runLoad(ctx, c.priorityRequest())
	case folder == mail.FolderInbox && criterion != "":
		return c.runLoad(ctx, c.sortedRequest(criterion, asc))
	default:
		return c.runLoad(ctx, c.folderRequest(folder))
	}
}

// Folder returns the current folder name.
func (c *Controller) Folder() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.folder
}

// Messages returns a copy of the loaded list.
func (c *Controller) Messages() []mail.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mail.Message(nil), c.messages...)
}

// Message returns the loaded message with id.
func (c *Controller) Message(id int64) (mail.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.messages[i], true
	}
	return mail.Message{}, false
}

func (c *Controller) indexLocked(id int64) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// removeLocked drops ids from the list and the selection.
func (c *Controller) removeLocked(ids []int64) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(c.selected, id)
	}
	kept := c.messages[:0:0]
	for _, m := range c.messages {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	c.messages = kept
	if c.preview != nil && drop[c.preview.ID] {
		c.preview = nil
	}
	c.start = computeWindow(len(c.messages), c.pageSize, c.start).Start
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
}

// Err returns the user-facing error message, or "".
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Loading reports whether a list-replacing request is outstanding.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) confirm(ctx context.Context, prompt string) error {
	ok, err := c.prompter.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}
