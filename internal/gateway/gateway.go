package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/mail"
)

// Gateway is the remote mail service contract. Each call returns either a
// success payload or an error; no ordering or idempotency is assumed.
type Gateway interface {
	ListFolder(ctx context.Context, user mail.User, folder string) ([]mail.Message, error)
	ListSorted(ctx context.Context, user mail.User, criterion string, ascending bool) ([]mail.Message, error)
	Search(ctx context.Context, scope string, criteria filter.Criteria) ([]mail.Message, error)
	Filter(ctx context.Context, userID int64, criteria filter.Criteria) ([]mail.Message, error)

	Send(ctx context.Context, fields mail.ComposeFields, uploads []mail.Upload) (*SendResult, error)
	CreateDraft(ctx context.Context, fields mail.ComposeFields) (int64, error)
	UpdateDraft(ctx context.Context, id int64, fields mail.ComposeFields) error

	Delete(ctx context.Context, id int64) error
	PermanentDelete(ctx context.Context, id int64) error
	MarkRead(ctx context.Context, id int64) error
	MarkUnread(ctx context.Context, id int64) error
	MoveToFolder(ctx context.Context, id int64, folder string) error

	ListFolders(ctx context.Context, user mail.User) ([]string, error)
	CreateFolder(ctx context.Context, user mail.User, name string) error
	RenameFolder(ctx context.Context, user mail.User, oldName, newName string) error
	DeleteFolder(ctx context.Context, user mail.User, name string) error

	ListContacts(ctx context.Context, user mail.User, ascending bool) ([]mail.Contact, error)
	AddContact(ctx context.Context, contact mail.Contact, user mail.User) (*mail.Contact, error)
	EditContact(ctx context.Context, contact mail.Contact) error
	DeleteContact(ctx context.Context, id int64) error

	AttachmentURL(id int64) string
	FetchAttachment(ctx context.Context, id int64, w io.Writer) (string, error)
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, strconv.FormatInt(id, 10))
}

func (c *Client) listMessages(ctx context.Context, method, path string, in interface{}) ([]mail.Message, error) {
	var list []WireMessage
	if err := c.do(ctx, method, path, in, &list); err != nil {
		return nil, err
	}
	return toMessages(list), nil
}

// ListFolder fetches every message in one of the user's folders.
func (c *Client) ListFolder(ctx context.Context, user mail.User, folder string) ([]mail.Message, error) {
	path := "/api/mail/folder/" + escape(user.Email) + "/" + escape(folder)
	return c.listMessages(ctx, http.MethodGet, path, nil)
}

// ListSorted fetches the user's inbox ordered server-side by criterion.
func (c *Client) ListSorted(ctx context.Context, user mail.User, criterion string, ascending bool) ([]mail.Message, error) {
	q := url.Values{}
	q.Set("criteria", criterion)
	q.Set("ascending", strconv.FormatBool(ascending))
	path := "/api/mail/sorted/" + escape(user.Email) + "?" + q.Encode()
	return c.listMessages(ctx, http.MethodGet, path, nil)
}

// Search runs the breadth search over a folder scope ("all" for every folder).
func (c *Client) Search(ctx context.Context, scope string, criteria filter.Criteria) ([]mail.Message, error) {
	if scope == "" {
		scope = filter.ScopeAll
	}
	return c.listMessages(ctx, http.MethodPost, "/api/mail/search/"+escape(scope), criteria)
}

// Filter runs the advanced search, where every supplied field must match.
func (c *Client) Filter(ctx context.Context, userID int64, criteria filter.Criteria) ([]mail.Message, error) {
	path := "/api/mail/filter/" + strconv.FormatInt(userID, 10)
	return c.listMessages(ctx, http.MethodPost, path, criteria)
}

// Send posts one multipart request: an "email" JSON part followed by one
// "attachments" part per upload.
func (c *Client) Send(ctx context.Context, fields mail.ComposeFields, uploads []mail.Upload) (*SendResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="email"; filename="blob"`)
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create email part: %w", err)
	}
	if err := json.NewEncoder(part).Encode(toWireCompose(fields)); err != nil {
		return nil, fmt.Errorf("encode email part: %w", err)
	}

	for _, u := range uploads {
		if err := writeUpload(mw, u); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	const path = "/api/mail/send-with-attachments"
	resp, err := c.doRequest(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result SendResult
	if err := decodeResponse(resp, http.MethodPost, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func writeUpload(mw *multipart.Writer, u mail.Upload) error {
	rc, err := u.Open()
	if err != nil {
		return fmt.Errorf("open attachment %s: %w", u.Name, err)
	}
	defer rc.Close()

	part, err := mw.CreateFormFile("attachments", u.Name)
	if err != nil {
		return fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("copy attachment %s: %w", u.Name, err)
	}
	return nil
}

// CreateDraft persists a new draft and returns the id the service assigned.
func (c *Client) CreateDraft(ctx context.Context, fields mail.ComposeFields) (int64, error) {
	var resp draftResponse
	if err := c.do(ctx, http.MethodPost, "/api/mail/draft", toWireCompose(fields), &resp); err != nil {
		return 0, err
	}
	if resp.DraftID != 0 {
		return resp.DraftID, nil
	}
	return resp.ID, nil
}

// UpdateDraft overwrites an existing draft.
func (c *Client) UpdateDraft(ctx context.Context, id int64, fields mail.ComposeFields) error {
	return c.do(ctx, http.MethodPut, idPath("/api/mail/draft/%s", id), toWireCompose(fields), nil)
}

// Delete moves a message to the trash.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/mail/%s", id), nil, nil)
}

// PermanentDelete removes a message irreversibly.
func (c *Client) PermanentDelete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/mail/%s/permanent", id), nil, nil)
}

// MarkRead sets the read flag.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, idPath("/api/mail/%s/read", id), nil, nil)
}

// MarkUnread clears the read flag.
func (c *Client) MarkUnread(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, idPath("/api/mail/%s/unread", id), nil, nil)
}

// MoveToFolder copies a message into folder. The source copy is left in
// place; callers delete it separately.
func (c *Client) MoveToFolder(ctx context.Context, id int64, folder string) error {
	path := idPath("/api/mail/%s/move", id) + "?folder=" + url.QueryEscape(folder)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ListFolders returns the user's custom folder names.
func (c *Client) ListFolders(ctx context.Context, user mail.User) ([]string, error) {
	var folders []string
	if err := c.do(ctx, http.MethodGet, "/api/folders/"+escape(user.Email), nil, &folders); err != nil {
		return nil, err
	}
	if folders == nil {
		folders = []string{}
	}
	return folders, nil
}

type folderRequest struct {
	Name    string `json:"name,omitempty"`
	NewName string `json:"newName,omitempty"`
}

// CreateFolder creates a custom folder.
func (c *Client) CreateFolder(ctx context.Context, user mail.User, name string) error {
	return c.do(ctx, http.MethodPost, "/api/folders/"+escape(user.Email), folderRequest{Name: name}, nil)
}

// RenameFolder renames a custom folder.
func (c *Client) RenameFolder(ctx context.Context, user mail.User, oldName, newName string) error {
	path := "/api/folders/" + escape(user.Email) + "/" + escape(oldName)
	return c.do(ctx, http.MethodPut, path, folderRequest{NewName: newName}, nil)
}

// DeleteFolder deletes a custom folder and its messages.
func (c *Client) DeleteFolder(ctx context.Context, user mail.User, name string) error {
	path := "/api/folders/" + escape(user.Email) + "/" + escape(name)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListContacts returns the user's contacts ordered by name.
func (c *Client) ListContacts(ctx context.Context, user mail.User, ascending bool) ([]mail.Contact, error) {
	q := url.Values{}
	q.Set("userEmail", user.Email)
	q.Set("ascending", strconv.FormatBool(ascending))

	var list []WireContact
	if err := c.do(ctx, http.MethodGet, "/api/contacts?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	out := make([]mail.Contact, len(list))
	for i, w := range list {
		out[i] = w.Contact()
	}
	return out, nil
}

// AddContact creates a contact. The returned contact carries the id the
// service assigned, or nil when the service did not echo one.
func (c *Client) AddContact(ctx context.Context, contact mail.Contact, user mail.User) (*mail.Contact, error) {
	q := url.Values{}
	q.Set("userEmail", user.Email)

	in := FromContact(contact)
	in.ID = 0
	var out WireContact
	if err := c.do(ctx, http.MethodPost, "/api/contacts?"+q.Encode(), in, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, nil
	}
	created := out.Contact()
	return &created, nil
}

// EditContact replaces a contact's name and emails.
func (c *Client) EditContact(ctx context.Context, contact mail.Contact) error {
	return c.do(ctx, http.MethodPut, idPath("/api/contacts/%s", contact.ID), FromContact(contact), nil)
}

// DeleteContact removes a contact.
func (c *Client) DeleteContact(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/api/contacts/%s", id), nil, nil)
}

// AttachmentURL returns the retrievable location of an attachment.
func (c *Client) AttachmentURL(id int64) string {
	return c.baseURL + idPath("/api/mail/attachments/id/%s", id)
}

// FetchAttachment streams an attachment into w and returns the file name
// the service reported, if any.
func (c *Client) FetchAttachment(ctx context.Context, id int64, w io.Writer) (string, error) {
	path := idPath("/api/mail/attachments/id/%s", id)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", handleErrorResponse(resp, http.MethodGet, path)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("download attachment %d: %w", id, err)
	}

	name := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			name = params["filename"]
		}
	}
	return name, nil
}
