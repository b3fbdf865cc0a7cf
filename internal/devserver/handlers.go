package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/store"
)

// maxUploadBytes bounds a send-with-attachments request body.
const maxUploadBytes = 25 << 20

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatsResponse represents the database statistics.
type StatsResponse struct {
	TotalUsers    int64 `json:"total_users"`
	TotalMessages int64 `json:"total_messages"`
	TotalAttach   int64 `json:"total_attachments"`
	TotalFolders  int64 `json:"total_folders"`
	TotalContacts int64 `json:"total_contacts"`
	DatabaseSize  int64 `json:"database_size_bytes"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeStoreError maps store errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", what+" not found")
	case errors.Is(err, store.ErrExists):
		writeError(w, http.StatusConflict, "conflict", what+" already exists")
	default:
		s.logger.Error("store error", "what", what, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to process "+what)
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// param returns the unescaped path parameter.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}

// toMail converts a stored copy to the domain message.
func toMail(m store.Message) mail.Message {
	out := mail.Message{
		ID:         m.ID,
		Sender:     m.Sender,
		Receiver:   strings.Join(m.Receivers, ", "),
		Subject:    m.Subject,
		Body:       m.Body,
		Timestamp:  m.CreatedAt,
		Priority:   m.Priority,
		IsRead:     m.IsRead,
		FolderName: m.Folder,
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, mail.Attachment{ID: a.ID, FileName: a.Filename})
	}
	return out
}

func toWire(list []store.Message) []gateway.WireMessage {
	out := make([]gateway.WireMessage, len(list))
	for i, m := range list {
		out[i] = gateway.FromMessage(toMail(m))
	}
	return out
}

// user resolves the {email} path parameter, provisioning unknown addresses.
func (s *Server) user(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	email := strings.TrimSpace(param(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Missing user email")
		return nil, false
	}
	u, err := s.store.EnsureUser(email)
	if err != nil {
		s.writeStoreError(w, err, "user")
		return nil, false
	}
	return u, true
}

// handleStats returns database statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		s.logger.Error("failed to get stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve statistics")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		TotalUsers:    stats.UserCount,
		TotalMessages: stats.MessageCount,
		TotalAttach:   stats.AttachmentCount,
		TotalFolders:  stats.FolderCount,
		TotalContacts: stats.ContactCount,
		DatabaseSize:  stats.DatabaseSize,
	})
}

func (s *Server) handleListFolder(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(w, r)
	if !ok {
		return
	}
	msgs, err := s.store.ListFolder(u.ID, param(r, "folder"))
	if err != nil {
		s.writeStoreError(w, err, "folder")
		return
	}
	writeJSON(w, http.StatusOK, toWire(msgs))
}

// handleListSorted orders the user's inbox.
func (s *Server) handleListSorted(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(w, r)
	if !ok {
		return
	}
	criterion := r.URL.Query().Get("criteria")
	if criterion == "" {
		criterion = "date"
	}
	ascending, _ := strconv.ParseBool(r.URL.Query().Get("ascending"))
	msgs, err := s.store.ListSorted(u.ID, mail.FolderInbox, criterion, ascending)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toWire(msgs))
}

// handleSearch applies the breadth search: any text field may match.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var c filter.Criteria
	if err := decodeBody(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid search criteria")
		return
	}
	scope := param(r, "scope")
	s.writeMatches(w, c.UserID, func(m *mail.Message) bool {
		if scope != "" && scope != filter.ScopeAll && m.FolderName != scope {
			return false
		}
		return filter.MatchAny(c, m)
	})
}

// handleFilter applies the advanced search: every constrained field must match.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid user id")
		return
	}
	var c filter.Criteria
	if err := decodeBody(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid filter criteria")
		return
	}
	s.writeMatches(w, userID, func(m *mail.Message) bool {
		return filter.MatchAll(c, m)
	})
}

func (s *Server) writeMatches(w http.ResponseWriter, ownerID int64, match func(*mail.Message) bool) {
	msgs, err := s.store.ListOwned(ownerID)
	if err != nil {
		s.writeStoreError(w, err, "messages")
		return
	}
	out := []gateway.WireMessage{}
	for _, sm := range msgs {
		m := toMail(sm)
		if match(&m) {
			out = append(out, gateway.FromMessage(m))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSend stores the sender's copy in sent and one copy per recipient in
// their inbox. The body is multipart: an "email" JSON part followed by any
// number of "attachments" files.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Expected a multipart body")
		return
	}

	var fields *mail.ComposeFields
	var files []store.Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "Malformed multipart body")
			return
		}
		data, err := io.ReadAll(part)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "Attachment too large")
			return
		}
		switch part.FormName() {
		case "email":
			f, err := gateway.DecodeCompose(data)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "Invalid email payload")
				return
			}
			fields = &f
		case "attachments":
			ct := part.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			files = append(files, store.Attachment{Filename: part.FileName(), ContentType: ct, Data: data})
		}
	}
	if fields == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Missing email part")
		return
	}
	if len(fields.Receivers) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "At least one receiver is required")
		return
	}

	sender, err := s.store.EnsureUser(fields.Sender)
	if err != nil {
		s.writeStoreError(w, err, "sender")
		return
	}
	now := s.now()
	if _, err := s.store.InsertMessage(s.copyFor(sender.ID, mail.FolderSent, *fields, files, now, true)); err != nil {
		s.writeStoreError(w, err, "message")
		return
	}
	for _, rcpt := range fields.Receivers {
		u, err := s.store.EnsureUser(rcpt)
		if err != nil {
			s.writeStoreError(w, err, "recipient")
			return
		}
		if _, err := s.store.InsertMessage(s.copyFor(u.ID, mail.FolderInbox, *fields, files, now, false)); err != nil {
			s.writeStoreError(w, err, "message")
			return
		}
	}
	s.logger.Info("message delivered", "sender", sender.Email, "recipients", len(fields.Receivers), "attachments", len(files))
	writeJSON(w, http.StatusOK, gateway.SendResult{Message: "Email sent successfully"})
}

func (s *Server) copyFor(ownerID int64, folder string, f mail.ComposeFields, files []store.Attachment, now time.Time, read bool) *store.Message {
	return &store.Message{
		OwnerID:     ownerID,
		Folder:      folder,
		Sender:      f.Sender,
		Receivers:   f.Receivers,
		Subject:     f.Subject,
		Body:        f.Body,
		Priority:    clampPriority(f.Priority),
		IsRead:      read,
		CreatedAt:   now.UTC(),
		Attachments: append([]store.Attachment(nil), files...),
	}
}

func clampPriority(p int) int {
	if mail.ValidatePriority(p) != nil {
		return mail.DefaultPriority
	}
	return p
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Unreadable body")
		return
	}
	f, err := gateway.DecodeCompose(data)
	if err != nil || strings.TrimSpace(f.Sender) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid draft payload")
		return
	}
	owner, err := s.store.EnsureUser(f.Sender)
	if err != nil {
		s.writeStoreError(w, err, "sender")
		return
	}
	id, err := s.store.InsertMessage(s.copyFor(owner.ID, mail.FolderDrafts, f, nil, s.now(), true))
	if err != nil {
		s.writeStoreError(w, err, "draft")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"draftId": id})
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid draft id")
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Unreadable body")
		return
	}
	f, err := gateway.DecodeCompose(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid draft payload")
		return
	}
	err = s.store.UpdateMessage(id, store.MessageUpdate{
		Receivers: f.Receivers,
		Subject:   f.Subject,
		Body:      f.Body,
		Priority:  clampPriority(f.Priority),
	})
	if err != nil {
		s.writeStoreError(w, err, "draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDelete moves a message to the trash.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid message id")
		return
	}
	if err := s.store.MoveMessage(id, mail.FolderTrash); err != nil {
		s.writeStoreError(w, err, "message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePermanentDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid message id")
		return
	}
	if err := s.store.DeleteMessage(id); err != nil {
		s.writeStoreError(w, err, "message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetRead(read bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid message id")
			return
		}
		if err := s.store.SetRead(id, read); err != nil {
			s.writeStoreError(w, err, "message")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleMove copies a message into a folder. The source copy stays where it
// is; clients remove it with a separate delete.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid message id")
		return
	}
	folder := strings.TrimSpace(r.URL.Query().Get("folder"))
	if folder == "" || folder == mail.FolderSearch {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid destination folder")
		return
	}
	msg, err := s.store.GetMessage(id)
	if err != nil {
		s.writeStoreError(w, err, "message")
		return
	}
	if !mail.IsSystemFolder(folder) {
		names, err := s.store.ListFolders(msg.OwnerID)
		if err != nil {
			s.writeStoreError(w, err, "folders")
			return
		}
		if !slices.Contains(names, folder) {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Folder %q not found", folder))
			return
		}
	}
	newID, err := s.store.CopyMessage(id, folder)
	if err != nil {
		s.writeStoreError(w, err, "message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"id": newID})
}

func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid attachment id")
		return
	}
	a, err := s.store.GetAttachment(id)
	if err != nil {
		s.writeStoreError(w, err, "attachment")
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	_, _ = w.Write(a.Data)
}
