// Package mail defines the webmail domain types shared by the controller,
// the gateway client and the reference server.
package mail

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// System folder names. They are reserved and cannot be created, renamed or
// deleted by the user.
const (
	FolderInbox  = "inbox"
	FolderSent   = "sent"
	FolderDrafts = "drafts"
	FolderSpam   = "spam"
	FolderTrash  = "trash"
)

// FolderSearch is the pseudo-folder holding the results of the last search.
// It is never persisted.
const FolderSearch = "search"

// Priority bounds.
const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = MinPriority
)

var (
	// ErrReservedFolder is returned when a user folder operation targets a
	// system folder name.
	ErrReservedFolder = errors.New("folder name is reserved")
	// ErrEmptyFolderName is returned for blank folder names.
	ErrEmptyFolderName = errors.New("folder name is required")
	// ErrInvalidContact is returned when a contact lacks a name or email.
	ErrInvalidContact = errors.New("contact requires a name and at least one email")
	// ErrInvalidPriority is returned for priorities outside 1..5.
	ErrInvalidPriority = errors.New("priority must be between 1 and 5")
)

// Message is a single mail item as the gateway reports it.
type Message struct {
	ID          int64
	Sender      string
	Receiver    string
	Subject     string
	Body        string
	Timestamp   time.Time
	Priority    int
	IsRead      bool
	FolderName  string
	Attachments []Attachment
}

// HasAttachments reports whether the message carries attachment references.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// Attachment is a reference to a stored attachment.
type Attachment struct {
	ID       int64
	FileName string
}

// Contact is an address book entry.
type Contact struct {
	ID     int64
	Name   string
	Emails []string
}

// Validate checks that the contact can be persisted.
func (c *Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidContact
	}
	for _, e := range c.Emails {
		if strings.TrimSpace(e) != "" {
			return nil
		}
	}
	return ErrInvalidContact
}

// User identifies the logged-in account.
type User struct {
	ID    int64
	Email string
}

// ComposeFields is the outgoing payload for send and draft calls.
type ComposeFields struct {
	Sender    string
	Receivers []string
	Subject   string
	Body      string
	Priority  int
}

// Upload is a pending attachment file. Open is called once per request so
// the same upload can be retried.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// SystemFolders returns the fixed folders in display order.
func SystemFolders() []string {
	return []string{FolderInbox, FolderSent, FolderDrafts, FolderSpam, FolderTrash}
}

// IsSystemFolder reports whether name is one of the reserved folders.
func IsSystemFolder(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, f := range SystemFolders() {
		if n == f {
			return true
		}
	}
	return false
}

// ValidateFolderName checks a user folder name.
func ValidateFolderName(name string) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return ErrEmptyFolderName
	}
	if IsSystemFolder(n) || strings.EqualFold(n, FolderSearch) {
		return fmt.Errorf("%q: %w", n, ErrReservedFolder)
	}
	return nil
}

// ValidatePriority checks that p is within the ordinal range.
func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return ErrInvalidPriority
	}
	return nil
}

// ParseList splits a comma-separated string into trimmed, non-empty items.
// It returns nil when nothing remains.
func ParseList(value string) []string {
	var items []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
