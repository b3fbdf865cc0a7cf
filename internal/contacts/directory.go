// Package contacts holds the user's contact directory. Mutations are applied
// locally at once, marked pending while the gateway call is in flight, and
// reverted individually when the call fails.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

var (
	// ErrNotFound is returned for an id not in the directory.
	ErrNotFound = errors.New("contact not found")
	// ErrPending is returned when a contact still has a mutation in flight.
	ErrPending = errors.New("contact has a pending change")
)

// Op names a directory mutation.
type Op string

const (
	OpAdd    Op = "add"
	OpEdit   Op = "edit"
	OpRemove Op = "remove"
)

// Divergence records a local mutation the server rejected and the revert
// that followed.
type Divergence struct {
	Op       Op
	Contact  mail.Contact // the rejected local version
	Restored *mail.Contact
	Err      error
}

// Directory is the in-memory contact list for one user.
type Directory struct {
	gw     gateway.Gateway
	user   mail.User
	logger *slog.Logger

	mu          sync.Mutex
	contacts    []mail.Contact
	ascending   bool
	pending     map[int64]Op
	divergences []Divergence
	nextLocalID int64
}

// New creates an empty directory. Call Load to populate it.
func New(gw gateway.Gateway, user mail.User) *Directory {
	return &Directory{
		gw:        gw,
		user:      user,
		logger:    slog.Default(),
		ascending: true,
		pending:   make(map[int64]Op),
	}
}

// WithLogger sets the logger.
func (d *Directory) WithLogger(logger *slog.Logger) *Directory {
	d.logger = logger
	return d
}

// Load fetches the directory in the current sort direction. Ordering is
// always the server's.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.Lock()
	asc := d.ascending
	d.mu.Unlock()

	list, err := d.gw.ListContacts(ctx, d.user, asc)
	if err != nil {
		d.logger.Warn("failed to load contacts", "error", err)
		return fmt.Errorf("list contacts: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = append([]mail.Contact{}, list...)
	d.pending = make(map[int64]Op)
	return nil
}

// List sets the sort direction and reloads.
func (d *Directory) List(ctx context.Context, ascending bool) error {
	d.mu.Lock()
	d.ascending = ascending
	d.mu.Unlock()
	return d.Load(ctx)
}

// ToggleSort flips the sort direction and reloads.
func (d *Directory) ToggleSort(ctx context.Context) error {
	d.mu.Lock()
	d.ascending = !d.ascending
	d.mu.Unlock()
	return d.Load(ctx)
}

// Ascending reports the current sort direction.
func (d *Directory) Ascending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ascending
}

// Contacts returns a copy of the directory.
func (d *Directory) Contacts() []mail.Contact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneAll(d.contacts)
}

// Pending reports whether id has a mutation in flight.
func (d *Directory) Pending(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[id]
	return ok
}

// Divergences returns every rejected mutation recorded so far.
func (d *Directory) Divergences() []Divergence {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Divergence(nil), d.divergences...)
}

// Add inserts c locally under a provisional negative id, then creates it on
// the server. On success the server id is adopted when one is returned.
func (d *Directory) Add(ctx context.Context, c mail.Contact) (mail.Contact, error) {
	if err := c.Validate(); err != nil {
		return mail.Contact{}, err
	}
	c = normalize(c)

	d.mu.Lock()
	d.nextLocalID--
	c.ID = d.nextLocalID
	d.contacts = append(d.contacts, clone(c))
	d.pending[c.ID] = OpAdd
	d.mu.Unlock()

	created, err := d.gw.AddContact(ctx, c, d.user)

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, c.ID)
	i := d.indexLocked(c.ID)
	if err != nil {
		if i >= 0 {
			d.contacts = append(d.contacts[:i], d.contacts[i+1:]...)
		}
		d.divergences = append(d.divergences, Divergence{Op: OpAdd, Contact: c, Err: err})
		d.logger.Warn("failed to add contact", "name", c.Name, "error", err)
		return mail.Contact{}, fmt.Errorf("add contact %q: %w", c.Name, err)
	}
	if created != nil && created.ID != 0 && i >= 0 {
		d.contacts[i].ID = created.ID
		c.ID = created.ID
	}
	return c, nil
}

// Edit replaces a contact locally, then on the server. On failure the
// previous version is restored.
func (d *Directory) Edit(ctx context.Context, c mail.Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c = normalize(c)

	d.mu.Lock()
	i := d.indexLocked(c.ID)
	if i < 0 {
		d.mu.Unlock()
		return fmt.Errorf("edit contact %d: %w", c.ID, ErrNotFound)
	}
	if _, busy := d.pending[c.ID]; busy || c.ID < 0 {
		d.mu.Unlock()
		return fmt.Errorf("edit contact %d: %w", c.ID, ErrPending)
	}
	prev := clone(d.contacts[i])
	d.contacts[i] = clone(c)
	d.pending[c.ID] = OpEdit
	d.mu.Unlock()

	err := d.gw.EditContact(ctx, c)

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, c.ID)
	if err != nil {
		if j := d.indexLocked(c.ID); j >= 0 {
			d.contacts[j] = prev
		}
		d.divergences = append(d.divergences, Divergence{Op: OpEdit, Contact: c, Restored: &prev, Err: err})
		d.logger.Warn("failed to edit contact", "id", c.ID, "error", err)
		return fmt.Errorf("edit contact %d: %w", c.ID, err)
	}
	return nil
}

// Remove deletes a contact locally, then on the server. On failure it is
// reinserted at its former position.
func (d *Directory) Remove(ctx context.Context, id int64) error {
	d.mu.Lock()
	i := d.indexLocked(id)
	if i < 0 {
		d.mu.Unlock()
		return fmt.Errorf("remove contact %d: %w", id, ErrNotFound)
	}
	if _, busy := d.pending[id]; busy || id < 0 {
		d.mu.Unlock()
		return fmt.Errorf("remove contact %d: %w", id, ErrPending)
	}
	prev := d.contacts[i]
	d.contacts = append(d.contacts[:i:i], d.contacts[i+1:]...)
	d.pending[id] = OpRemove
	d.mu.Unlock()

	err := d.gw.DeleteContact(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, id)
	if err != nil {
		at := i
		if at > len(d.contacts) {
			at = len(d.contacts)
		}
		d.contacts = append(d.contacts[:at:at], append([]mail.Contact{prev}, d.contacts[at:]...)...)
		d.divergences = append(d.divergences, Divergence{Op: OpRemove, Contact: prev, Restored: &prev, Err: err})
		d.logger.Warn("failed to remove contact", "id", id, "error", err)
		return fmt.Errorf("remove contact %d: %w", id, err)
	}
	return nil
}

// Filter returns contacts whose name or any email contains query, compared
// with Unicode case folding. An empty query returns every contact.
func (d *Directory) Filter(query string) []mail.Contact {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := strings.TrimSpace(query)
	if q == "" {
		return cloneAll(d.contacts)
	}
	fold := cases.Fold()
	q = fold.String(q)

	var out []mail.Contact
	for _, c := range d.contacts {
		if Matches(fold, c, q) {
			out = append(out, clone(c))
		}
	}
	return out
}

// Matches reports whether the folded query appears in the contact's name or
// any of its emails.
func Matches(fold cases.Caser, c mail.Contact, foldedQuery string) bool {
	if strings.Contains(fold.String(c.Name), foldedQuery) {
		return true
	}
	for _, e := range c.Emails {
		if strings.Contains(fold.String(e), foldedQuery) {
			return true
		}
	}
	return false
}

// Find returns the contact with id.
func (d *Directory) Find(id int64) (mail.Contact, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.indexLocked(id); i >= 0 {
		return clone(d.contacts[i]), true
	}
	return mail.Contact{}, false
}

func (d *Directory) indexLocked(id int64) int {
	for i := range d.contacts {
		if d.contacts[i].ID == id {
			return i
		}
	}
	return -1
}

func normalize(c mail.Contact) mail.Contact {
	c.Name = strings.TrimSpace(c.Name)
	var emails []string
	for _, e := range c.Emails {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	c.Emails = emails
	return c
}

func clone(c mail.Contact) mail.Contact {
	c.Emails = append([]string(nil), c.Emails...)
	return c
}

func cloneAll(list []mail.Contact) []mail.Contact {
	out := make([]mail.Contact, len(list))
	for i, c := range list {
		out[i] = clone(c)
	}
	return out
}
