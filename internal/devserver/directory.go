package devserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/store"
)

type folderRequest struct {
	Name    string `json:"name"`
	NewName string `json:"newName"`
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(w, r)
	if !ok {
		return
	}
	names, err := s.store.ListFolders(u.ID)
	if err != nil {
		s.writeStoreError(w, err, "folders")
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(w, r)
	if !ok {
		return
	}
	var req folderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid folder payload")
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := mail.ValidateFolderName(name); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := s.store.CreateFolder(u.ID, name); err != nil {
		s.writeStoreError(w, err, "folder")
		return
	}
	writeJSON(w, http.StatusCreated, folderRequest{Name: name})
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(w, r)
	if !ok {
		return
	}
	var req folderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid folder payload")
		return
	}
	oldName := param(r, "name")
	newName := strings.TrimSpace(req.NewName)
	if mail.IsSystemFolder(oldName) {
		writeError(w, http.StatusBadRequest, "bad_request", "System folders cannot be renamed")
		return
	}
	if err := mail.ValidateFolderName(newName); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := s.store.RenameFolder(u.ID, oldName, newName); err != nil {
		s.writeStoreError(w, err, "folder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(w, r)
	if !ok {
		return
	}
	name := param(r, "name")
	if mail.IsSystemFolder(name) {
		writeError(w, http.StatusBadRequest, "bad_request", "System folders cannot be deleted")
		return
	}
	if err := s.store.DeleteFolder(u.ID, name); err != nil {
		s.writeStoreError(w, err, "folder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// contactOwner resolves the userEmail query parameter.
func (s *Server) contactOwner(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	email := strings.TrimSpace(r.URL.Query().Get("userEmail"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Missing userEmail")
		return nil, false
	}
	u, err := s.store.EnsureUser(email)
	if err != nil {
		s.writeStoreError(w, err, "user")
		return nil, false
	}
	return u, true
}

func wireContact(c store.Contact) gateway.WireContact {
	return gateway.FromContact(mail.Contact{ID: c.ID, Name: c.Name, Emails: c.Emails})
}

// cleanContact trims the name and drops blank emails.
func cleanContact(in gateway.WireContact) (mail.Contact, error) {
	c := mail.Contact{Name: strings.TrimSpace(in.Name)}
	for _, e := range in.Emails {
		if e = strings.TrimSpace(e); e != "" {
			c.Emails = append(c.Emails, e)
		}
	}
	return c, c.Validate()
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	u, ok := s.contactOwner(w, r)
	if !ok {
		return
	}
	ascending := true
	if v := r.URL.Query().Get("ascending"); v != "" {
		ascending, _ = strconv.ParseBool(v)
	}
	list, err := s.store.ListContacts(u.ID, ascending)
	if err != nil {
		s.writeStoreError(w, err, "contacts")
		return
	}
	out := make([]gateway.WireContact, len(list))
	for i, c := range list {
		out[i] = wireContact(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	u, ok := s.contactOwner(w, r)
	if !ok {
		return
	}
	var in gateway.WireContact
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid contact payload")
		return
	}
	c, err := cleanContact(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	sc := &store.Contact{OwnerID: u.ID, Name: c.Name, Emails: c.Emails}
	if _, err := s.store.AddContact(sc); err != nil {
		s.writeStoreError(w, err, "contact")
		return
	}
	writeJSON(w, http.StatusCreated, wireContact(*sc))
}

func (s *Server) handleEditContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid contact id")
		return
	}
	var in gateway.WireContact
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid contact payload")
		return
	}
	c, err := cleanContact(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := s.store.UpdateContact(&store.Contact{ID: id, Name: c.Name, Emails: c.Emails}); err != nil {
		s.writeStoreError(w, err, "contact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid contact id")
		return
	}
	if err := s.store.DeleteContact(id); err != nil {
		s.writeStoreError(w, err, "contact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
