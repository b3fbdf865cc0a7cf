// Package gatewaytest provides a shared test double for the gateway.Gateway
// interface.
package gatewaytest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

// Call records one invocation. ID is set for per-message and per-contact
// calls; Arg holds the folder, scope, or criterion argument when present.
type Call struct {
	Method string
	ID     int64
	Arg    string
}

// MockGateway implements gateway.Gateway for testing. Each method delegates
// to an optional function field; when the field is nil, the canned data
// fields are used or a nil error is returned. All methods are safe for
// concurrent use and every call is recorded.
type MockGateway struct {
	// Canned data.
	FolderMessages map[string][]mail.Message
	SortedMessages []mail.Message
	SearchResults  []mail.Message
	FilterResults  []mail.Message
	FolderNames    []string
	ContactList    []mail.Contact
	NextDraftID    int64
	NextContactID  int64

	// Optional overrides.
	ListFolderFunc      func(ctx context.Context, user mail.User, folder string) ([]mail.Message, error)
	ListSortedFunc      func(ctx context.Context, user mail.User, criterion string, ascending bool) ([]mail.Message, error)
	SearchFunc          func(ctx context.Context, scope string, c filter.Criteria) ([]mail.Message, error)
	FilterFunc          func(ctx context.Context, userID int64, c filter.Criteria) ([]mail.Message, error)
	SendFunc            func(ctx context.Context, f mail.ComposeFields, uploads []mail.Upload) (*gateway.SendResult, error)
	CreateDraftFunc     func(ctx context.Context, f mail.ComposeFields) (int64, error)
	UpdateDraftFunc     func(ctx context.Context, id int64, f mail.ComposeFields) error
	DeleteFunc          func(ctx context.Context, id int64) error
	PermanentDeleteFunc func(ctx context.Context, id int64) error
	MarkReadFunc        func(ctx context.Context, id int64) error
	MarkUnreadFunc      func(ctx context.Context, id int64) error
	MoveToFolderFunc    func(ctx context.Context, id int64, folder string) error
	ListFoldersFunc     func(ctx context.Context, user mail.User) ([]string, error)
	CreateFolderFunc    func(ctx context.Context, user mail.User, name string) error
	RenameFolderFunc    func(ctx context.Context, user mail.User, oldName, newName string) error
	DeleteFolderFunc    func(ctx context.Context, user mail.User, name string) error
	ListContactsFunc    func(ctx context.Context, user mail.User, ascending bool) ([]mail.Contact, error)
	AddContactFunc      func(ctx context.Context, c mail.Contact, user mail.User) (*mail.Contact, error)
	EditContactFunc     func(ctx context.Context, c mail.Contact) error
	DeleteContactFunc   func(ctx context.Context, id int64) error
	FetchAttachmentFunc func(ctx context.Context, id int64, w io.Writer) (string, error)

	mu    sync.Mutex
	calls []Call
	sent  []mail.ComposeFields
}

// Compile-time check.
var _ gateway.Gateway = (*MockGateway)(nil)

func (m *MockGateway) record(method string, id int64, arg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, ID: id, Arg: arg})
}

// Calls returns a copy of every recorded call in order.
func (m *MockGateway) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo returns the recorded calls of one method.
func (m *MockGateway) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// IDs returns the ids passed to one method, in call order.
func (m *MockGateway) IDs(method string) []int64 {
	calls := m.CallsTo(method)
	out := make([]int64, len(calls))
	for i, c := range calls {
		out[i] = c.ID
	}
	return out
}

// Count returns how many times method was called.
func (m *MockGateway) Count(method string) int {
	return len(m.CallsTo(method))
}

// Sent returns the fields of every Send call.
func (m *MockGateway) Sent() []mail.ComposeFields {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.ComposeFields(nil), m.sent...)
}

// Reset clears the call log.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.sent = nil
}

func cloneMessages(msgs []mail.Message) []mail.Message {
	return append([]mail.Message{}, msgs...)
}

func (m *MockGateway) ListFolder(ctx context.Context, user mail.User, folder string) ([]mail.Message, error) {
	m.record("ListFolder", 0, folder)
	if m.ListFolderFunc != nil {
		return m.ListFolderFunc(ctx, user, folder)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneMessages(m.FolderMessages[folder]), nil
}

func (m *MockGateway) ListSorted(ctx context.Context, user mail.User, criterion string, ascending bool) ([]mail.Message, error) {
	m.record("ListSorted", 0, fmt.Sprintf("%s:%t", criterion, ascending))
	if m.ListSortedFunc != nil {
		return m.ListSortedFunc(ctx, user, criterion, ascending)
	}
	return cloneMessages(m.SortedMessages), nil
}

func (m *MockGateway) Search(ctx context.Context, scope string, c filter.Criteria) ([]mail.Message, error) {
	m.record("Search", 0, scope)
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, scope, c)
	}
	return cloneMessages(m.SearchResults), nil
}

func (m *MockGateway) Filter(ctx context.Context, userID int64, c filter.Criteria) ([]mail.Message, error) {
	m.record("Filter", userID, "")
	if m.FilterFunc != nil {
		return m.FilterFunc(ctx, userID, c)
	}
	return cloneMessages(m.FilterResults), nil
}

func (m *MockGateway) Send(ctx context.Context, f mail.ComposeFields, uploads []mail.Upload) (*gateway.SendResult, error) {
	m.record("Send", 0, f.Subject)
	m.mu.Lock()
	m.sent = append(m.sent, f)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, f, uploads)
	}
	return &gateway.SendResult{Message: "Email sent successfully"}, nil
}

func (m *MockGateway) CreateDraft(ctx context.Context, f mail.ComposeFields) (int64, error) {
	m.record("CreateDraft", 0, f.Subject)
	if m.CreateDraftFunc != nil {
		return m.CreateDraftFunc(ctx, f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NextDraftID++
	return m.NextDraftID, nil
}

func (m *MockGateway) UpdateDraft(ctx context.Context, id int64, f mail.ComposeFields) error {
	m.record("UpdateDraft", id, f.Subject)
	if m.UpdateDraftFunc != nil {
		return m.UpdateDraftFunc(ctx, id, f)
	}
	return nil
}

func (m *MockGateway) Delete(ctx context.Context, id int64) error {
	m.record("Delete", id, "")
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockGateway) PermanentDelete(ctx context.Context, id int64) error {
	m.record("PermanentDelete", id, "")
	if m.PermanentDeleteFunc != nil {
		return m.PermanentDeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockGateway) MarkRead(ctx context.Context, id int64) error {
	m.record("MarkRead", id, "")
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id)
	}
	return nil
}

func (m *MockGateway) MarkUnread(ctx context.Context, id int64) error {
	m.record("MarkUnread", id, "")
	if m.MarkUnreadFunc != nil {
		return m.MarkUnreadFunc(ctx, id)
	}
	return nil
}

func (m *MockGateway) MoveToFolder(ctx context.Context, id int64, folder string) error {
	m.record("MoveToFolder", id, folder)
	if m.MoveToFolderFunc != nil {
		return m.MoveToFolderFunc(ctx, id, folder)
	}
	return nil
}

func (m *MockGateway) ListFolders(ctx context.Context, user mail.User) ([]string, error) {
	m.record("ListFolders", 0, "")
	if m.ListFoldersFunc != nil {
		return m.ListFoldersFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.FolderNames...), nil
}

func (m *MockGateway) CreateFolder(ctx context.Context, user mail.User, name string) error {
	m.record("CreateFolder", 0, name)
	if m.CreateFolderFunc != nil {
		return m.CreateFolderFunc(ctx, user, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FolderNames = append(m.FolderNames, name)
	return nil
}

func (m *MockGateway) RenameFolder(ctx context.Context, user mail.User, oldName, newName string) error {
	m.record("RenameFolder", 0, oldName+"->"+newName)
	if m.RenameFolderFunc != nil {
		return m.RenameFolderFunc(ctx, user, oldName, newName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.FolderNames {
		if n == oldName {
			m.FolderNames[i] = newName
		}
	}
	return nil
}

func (m *MockGateway) DeleteFolder(ctx context.Context, user mail.User, name string) error {
	m.record("DeleteFolder", 0, name)
	if m.DeleteFolderFunc != nil {
		return m.DeleteFolderFunc(ctx, user, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.FolderNames[:0]
	for _, n := range m.FolderNames {
		if n != name {
			kept = append(kept, n)
		}
	}
	m.FolderNames = kept
	return nil
}

func (m *MockGateway) ListContacts(ctx context.Context, user mail.User, ascending bool) ([]mail.Contact, error) {
	m.record("ListContacts", 0, fmt.Sprintf("%t", ascending))
	if m.ListContactsFunc != nil {
		return m.ListContactsFunc(ctx, user, ascending)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Contact{}, m.ContactList...), nil
}

func (m *MockGateway) AddContact(ctx context.Context, c mail.Contact, user mail.User) (*mail.Contact, error) {
	m.record("AddContact", 0, c.Name)
	if m.AddContactFunc != nil {
		return m.AddContactFunc(ctx, c, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NextContactID++
	c.ID = m.NextContactID
	return &c, nil
}

func (m *MockGateway) EditContact(ctx context.Context, c mail.Contact) error {
	m.record("EditContact", c.ID, c.Name)
	if m.EditContactFunc != nil {
		return m.EditContactFunc(ctx, c)
	}
	return nil
}

func (m *MockGateway) DeleteContact(ctx context.Context, id int64) error {
	m.record("DeleteContact", id, "")
	if m.DeleteContactFunc != nil {
		return m.DeleteContactFunc(ctx, id)
	}
	return nil
}

func (m *MockGateway) AttachmentURL(id int64) string {
	return fmt.Sprintf("http://mail.test/api/mail/attachments/id/%d", id)
}

func (m *MockGateway) FetchAttachment(ctx context.Context, id int64, w io.Writer) (string, error) {
	m.record("FetchAttachment", id, "")
	if m.FetchAttachmentFunc != nil {
		return m.FetchAttachmentFunc(ctx, id, w)
	}
	return "", fmt.Errorf("attachment %d not found", id)
}
