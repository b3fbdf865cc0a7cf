// Package compose holds the single in-progress outgoing message: its
// recipients, subject, body, priority and attachments, and whether it
// updates an existing draft.
package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mime"
)

// State is the lifecycle state of a session.
type State int

const (
	Closed State = iota
	ComposingNew
	ComposingDraft
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case ComposingNew:
		return "composing-new"
	case ComposingDraft:
		return "composing-draft"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned by operations that need an open session.
	ErrClosed = errors.New("no message is being composed")
	// ErrSessionActive is returned when opening while another message is
	// being composed.
	ErrSessionActive = errors.New("a message is already being composed")
	// ErrEmptyDraft is returned when saving a draft with no recipient,
	// subject or body.
	ErrEmptyDraft = errors.New("draft is empty")
	// ErrCancelled is returned when the user keeps editing instead of
	// discarding.
	ErrCancelled = errors.New("cancelled by user")
)

// SendError carries the message shown to the user when a send fails.
type SendError struct {
	Message string
	Err     error
}

func (e *SendError) Error() string { return e.Message }

func (e *SendError) Unwrap() error { return e.Err }

// Directory supplies contacts for autocomplete.
type Directory interface {
	Load(ctx context.Context) error
	Contacts() []mail.Contact
}

// Refresher reloads the mailbox view after a send or draft save.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Prompter asks the user to confirm discarding content.
type Prompter interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Draft is a snapshot of the session fields.
type Draft struct {
	State       State
	DraftID     int64
	To          string
	Subject     string
	Body        string
	Priority    int
	Attachments []string
}

// Session is the compose/draft workflow. At most one message is composed at
// a time; Send, Cancel and SaveDraftAndClose return it to Closed.
type Session struct {
	gw        gateway.Gateway
	user      mail.User
	directory Directory
	refresher Refresher
	prompter  Prompter
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	draftID     int64
	to          string
	subject     string
	body        string
	priority    int
	attachments []mail.Upload
	ac          autocomplete
}

// New creates a closed session. directory and refresher may be nil.
func New(gw gateway.Gateway, user mail.User, directory Directory, refresher Refresher) *Session {
	return &Session{
		gw:        gw,
		user:      user,
		directory: directory,
		refresher: refresher,
		prompter:  acceptAll{},
		logger:    slog.Default(),
		priority:  mail.DefaultPriority,
	}
}

type acceptAll struct{}

func (acceptAll) Confirm(context.Context, string) (bool, error) { return true, nil }

// WithLogger sets the logger.
func (s *Session) WithLogger(logger *slog.Logger) *Session {
	s.logger = logger
	return s
}

// WithPrompter sets the confirmation prompter.
func (s *Session) WithPrompter(p Prompter) *Session {
	s.prompter = p
	return s
}

// Open starts a new message and reloads the contact directory for
// autocomplete. A failed reload only leaves autocomplete empty.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Closed {
		s.mu.Unlock()
		return ErrSessionActive
	}
	s.resetLocked()
	s.state = ComposingNew
	s.mu.Unlock()

	s.loadDirectory(ctx)
	return nil
}

// OpenDraft starts editing a persisted draft, pre-populated from msg. It
// replaces a new message; when that message has content the user must
// confirm, and declining returns ErrCancelled.
func (s *Session) OpenDraft(ctx context.Context, msg mail.Message) error {
	s.mu.Lock()
	if s.state == ComposingDraft {
		s.mu.Unlock()
		return ErrSessionActive
	}
	replacing := s.state == ComposingNew && s.hasContentLocked()
	s.mu.Unlock()

	if replacing {
		ok, err := s.prompter.Confirm(ctx, "Discard this message and open the draft?")
		if err != nil {
			return fmt.Errorf("confirm: %w", err)
		}
		if !ok {
			return ErrCancelled
		}
	}

	s.mu.Lock()
	s.resetLocked()
	s.state = ComposingDraft
	s.draftID = msg.ID
	s.to = msg.Receiver
	s.subject = msg.Subject
	s.body = msg.Body
	if mail.ValidatePriority(msg.Priority) == nil {
		s.priority = msg.Priority
	}
	s.mu.Unlock()

	s.loadDirectory(ctx)
	return nil
}

func (s *Session) loadDirectory(ctx context.Context) {
	if s.directory == nil {
		return
	}
	if err := s.directory.Load(ctx); err != nil {
		s.logger.Warn("failed to load contacts for autocomplete", "error", err)
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DraftID returns the persisted draft id, or 0.
func (s *Session) DraftID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftID
}

// Draft returns a snapshot of the fields.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := Draft{
		State:    s.state,
		DraftID:  s.draftID,
		To:       s.to,
		Subject:  s.subject,
		Body:     s.body,
		Priority: s.priority,
	}
	for _, a := range s.attachments {
		d.Attachments = append(d.Attachments, a.Name)
	}
	return d
}

// SetTo replaces the recipient field and recomputes suggestions from the
// fragment after the last comma.
func (s *Session) SetTo(to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = to
	fragment := to
	if i := strings.LastIndex(to, ","); i >= 0 {
		fragment = to[i+1:]
	}
	s.ac.update(fragment, s.contacts())
}

// SetSubject replaces the subject.
func (s *Session) SetSubject(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
}

// SetBody replaces the body.
func (s *Session) SetBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
}

// SetPriority sets the priority level 1..5.
func (s *Session) SetPriority(p int) error {
	if err := mail.ValidatePriority(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priority = p
	return nil
}

// AddAttachment queues a file for upload on send.
func (s *Session) AddAttachment(u mail.Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments = append(s.attachments, u)
}

// AddAttachmentFile queues the file at path.
func (s *Session) AddAttachmentFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("attach %s: is a directory", path)
	}
	s.AddAttachment(mail.Upload{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	})
	return nil
}

// RemoveAttachment drops the first queued file named name.
func (s *Session) RemoveAttachment(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.attachments {
		if a.Name == name {
			s.attachments = append(s.attachments[:i:i], s.attachments[i+1:]...)
			return true
		}
	}
	return false
}

// ImportEML fills the open session from an RFC 5322 message: recipients,
// subject, text body and attached files.
func (s *Session) ImportEML(r io.Reader) error {
	msg, err := mime.Parse(r)
	if err != nil {
		return fmt.Errorf("parse message: %w", err)
	}
	for _, w := range msg.Warnings {
		s.logger.Debug("eml parse warning", "warning", w)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return ErrClosed
	}
	if len(msg.To) > 0 {
		s.to = strings.Join(msg.To, ", ")
	}
	if msg.Subject != "" {
		s.subject = msg.Subject
	}
	if msg.Body != "" {
		s.body = msg.Body
	}
	for _, a := range msg.Attachments {
		content := a.Content
		s.attachments = append(s.attachments, mail.Upload{
			Name: a.Filename,
			Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
		})
	}
	return nil
}

func (s *Session) hasContentLocked() bool {
	return len(mail.ParseList(s.to)) > 0 ||
		strings.TrimSpace(s.subject) != "" ||
		strings.TrimSpace(s.body) != ""
}

// HasContent reports whether any recipient, subject or body was entered.
func (s *Session) HasContent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasContentLocked()
}

func (s *Session) resetLocked() {
	s.state = Closed
	s.draftID = 0
	s.to = ""
	s.subject = ""
	s.body = ""
	s.priority = mail.DefaultPriority
	s.attachments = nil
	s.ac = autocomplete{}
}

func (s *Session) fieldsLocked() mail.ComposeFields {
	return mail.ComposeFields{
		Sender:    s.user.Email,
		Receivers: mail.ParseList(s.to),
		Subject:   s.subject,
		Body:      s.body,
		Priority:  s.priority,
	}
}

// Send validates the recipients and sends the message with its attachments
// in one request. On success an edited draft is permanently deleted (its
// failure is only logged), the mailbox is refreshed and the session closes.
// On failure the session stays open for correction.
func (s *Session) Send(ctx context.Context) (*gateway.SendResult, error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	fields := s.fieldsLocked()
	uploads := append([]mail.Upload(nil), s.attachments...)
	draftID := s.draftID
	s.mu.Unlock()

	if err := ValidateRecipients(fields.Receivers); err != nil {
		return nil, err
	}

	res, err := s.gw.Send(ctx, fields, uploads)
	if err != nil {
		s.logger.Error("send failed", "recipients", len(fields.Receivers), "error", err)
		return nil, &SendError{Message: sendFailureMessage(err), Err: err}
	}
	s.logger.Info("message sent", "recipients", len(fields.Receivers), "attachments", len(uploads))

	if draftID != 0 {
		if err := s.gw.PermanentDelete(ctx, draftID); err != nil {
			s.logger.Warn("failed to delete sent draft", "id", draftID, "error", err)
		}
	}
	s.refresh(ctx)

	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	return res, nil
}

func sendFailureMessage(err error) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Structured() {
		return apiErr.UserMessage()
	}
	return "Failed to send email. Please try again."
}

func (s *Session) refresh(ctx context.Context) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after compose failed", "error", err)
	}
}

// SaveDraft persists the message as a draft: an update when a draft id is
// held, otherwise a create whose returned id is adopted. It returns the
// draft id.
func (s *Session) SaveDraft(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if !s.hasContentLocked() {
		s.mu.Unlock()
		return 0, ErrEmptyDraft
	}
	fields := s.fieldsLocked()
	id := s.draftID
	s.mu.Unlock()

	if id != 0 {
		if err := s.gw.UpdateDraft(ctx, id, fields); err != nil {
			s.logger.Warn("failed to update draft", "id", id, "error", err)
			return id, fmt.Errorf("update draft %d: %w", id, err)
		}
	} else {
		newID, err := s.gw.CreateDraft(ctx, fields)
		if err != nil {
			s.logger.Warn("failed to create draft", "error", err)
			return 0, fmt.Errorf("create draft: %w", err)
		}
		id = newID
		s.mu.Lock()
		if s.state != Closed {
			s.draftID = id
			s.state = ComposingDraft
		}
		s.mu.Unlock()
	}
	s.refresh(ctx)
	return id, nil
}

// SaveDraftAndClose saves and closes. A fully empty message is discarded
// silently. When the save fails the user chooses between discarding anyway
// and continuing to edit; the latter returns the save error.
func (s *Session) SaveDraftAndClose(ctx context.Context) error {
	if s.State() == Closed {
		return nil
	}
	if !s.HasContent() {
		s.close()
		return nil
	}
	_, err := s.SaveDraft(ctx)
	if err == nil {
		s.close()
		return nil
	}

	discard, perr := s.prompter.Confirm(ctx, fmt.Sprintf("Saving the draft failed (%v). Discard it anyway?", err))
	if perr != nil {
		return fmt.Errorf("confirm: %w", perr)
	}
	if discard {
		s.close()
		return nil
	}
	return err
}

// Cancel discards the message. When it has content the user must confirm;
// declining returns ErrCancelled and keeps the session open.
func (s *Session) Cancel(ctx context.Context) error {
	if s.State() == Closed {
		return nil
	}
	if s.HasContent() {
		ok, err := s.prompter.Confirm(ctx, "Discard this message?")
		if err != nil {
			return fmt.Errorf("confirm: %w", err)
		}
		if !ok {
			return ErrCancelled
		}
	}
	s.close()
	return nil
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}
