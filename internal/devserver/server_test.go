package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/wesm/inboxctl/internal/config"
	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
	"github.com/wesm/inboxctl/internal/store"
	"github.com/wesm/inboxctl/internal/testutil"
)

const testKey = "dev-secret"

var (
	alice = mail.User{Email: "alice@example.com"}
	bob   = mail.User{Email: "bob@example.com"}
)

// testLogger returns a logger for tests that only prints errors.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type env struct {
	st     *store.Store
	srv    *Server
	http   *httptest.Server
	client *gateway.Client
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := store.Open(":memory:")
	testutil.MustNoErr(t, err, "store.Open")
	t.Cleanup(func() { st.Close() })

	cfg := config.Default(t.TempDir())
	cfg.DevServer.APIKey = testKey
	cfg.DevServer.RateQPS = 1000
	srv := NewServer(cfg, st, testLogger())

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	client, err := gateway.New(gateway.Config{URL: ts.URL, APIKey: testKey, AllowInsecure: true})
	testutil.MustNoErr(t, err, "gateway.New")
	return &env{st: st, srv: srv, http: ts, client: client}
}

func (e *env) userID(t *testing.T, email string) int64 {
	t.Helper()
	u, err := e.st.EnsureUser(email)
	testutil.MustNoErr(t, err, "EnsureUser")
	return u.ID
}

func (e *env) send(t *testing.T, subject string, priority int, uploads ...mail.Upload) {
	t.Helper()
	_, err := e.client.Send(context.Background(), mail.ComposeFields{
		Sender:    alice.Email,
		Receivers: []string{bob.Email},
		Subject:   subject,
		Body:      "body of " + subject,
		Priority:  priority,
	}, uploads)
	testutil.MustNoErr(t, err, "Send")
}

func textUpload(name, content string) mail.Upload {
	return mail.Upload{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.http.URL + "/health")
	testutil.MustNoErr(t, err, "GET /health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	bad, err := gateway.New(gateway.Config{URL: e.http.URL, APIKey: "wrong", AllowInsecure: true})
	testutil.MustNoErr(t, err, "gateway.New")

	_, err = bad.ListFolders(context.Background(), alice)
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Code != "unauthorized" {
		t.Fatalf("error = %v, want 401 unauthorized", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("bearer auth status = %d, want 200", w.Code)
	}
}

func TestSendDeliversCopies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.send(t, "hello", 3, textUpload("notes.txt", "attached text"))

	inbox, err := e.client.ListFolder(ctx, bob, mail.FolderInbox)
	testutil.MustNoErr(t, err, "ListFolder inbox")
	if len(inbox) != 1 {
		t.Fatalf("bob inbox = %d messages, want 1", len(inbox))
	}
	got := inbox[0]
	if got.Sender != alice.Email || got.Receiver != bob.Email || got.Subject != "hello" || got.Priority != 3 || got.IsRead {
		t.Errorf("inbox message = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if len(got.Attachments) != 1 || got.Attachments[0].FileName != "notes.txt" {
		t.Fatalf("attachments = %+v", got.Attachments)
	}

	var buf bytes.Buffer
	name, err := e.client.FetchAttachment(ctx, got.Attachments[0].ID, &buf)
	testutil.MustNoErr(t, err, "FetchAttachment")
	if name != "notes.txt" || buf.String() != "attached text" {
		t.Errorf("attachment = %q %q", name, buf.String())
	}

	sent, err := e.client.ListFolder(ctx, alice, mail.FolderSent)
	testutil.MustNoErr(t, err, "ListFolder sent")
	if len(sent) != 1 || !sent[0].IsRead {
		t.Errorf("alice sent = %+v", sent)
	}
}

func TestSendWithoutReceivers(t *testing.T) {
	e := newEnv(t)
	_, err := e.client.Send(context.Background(), mail.ComposeFields{Sender: alice.Email, Subject: "x"}, nil)
	var apiErr *gateway.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("error = %v, want 400", err)
	}
}

func TestDraftLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	id, err := e.client.CreateDraft(ctx, mail.ComposeFields{Sender: alice.Email, Subject: "draft v1"})
	testutil.MustNoErr(t, err, "CreateDraft")
	if id == 0 {
		t.Fatal("draft id should be assigned")
	}
	testutil.MustNoErr(t, e.client.UpdateDraft(ctx, id, mail.ComposeFields{
		Sender: alice.Email, Receivers: []string{bob.Email}, Subject: "draft v2", Priority: 2,
	}), "UpdateDraft")

	drafts, err := e.client.ListFolder(ctx, alice, mail.FolderDrafts)
	testutil.MustNoErr(t, err, "ListFolder drafts")
	if len(drafts) != 1 || drafts[0].Subject != "draft v2" || drafts[0].Receiver != bob.Email {
		t.Fatalf("drafts = %+v", drafts)
	}

	testutil.MustNoErr(t, e.client.PermanentDelete(ctx, id), "PermanentDelete")
	if err := e.client.PermanentDelete(ctx, id); !gateway.IsNotFound(err) {
		t.Errorf("second delete = %v, want not found", err)
	}
	if err := e.client.UpdateDraft(ctx, id, mail.ComposeFields{}); !gateway.IsNotFound(err) {
		t.Errorf("update of deleted draft = %v, want not found", err)
	}
}

func TestReadFlagsAndSoftDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.send(t, "one", 1)
	inbox, err := e.client.ListFolder(ctx, bob, mail.FolderInbox)
	testutil.MustNoErr(t, err, "ListFolder")
	id := inbox[0].ID

	testutil.MustNoErr(t, e.client.MarkRead(ctx, id), "MarkRead")
	inbox, _ = e.client.ListFolder(ctx, bob, mail.FolderInbox)
	if !inbox[0].IsRead {
		t.Error("message should be read")
	}
	testutil.MustNoErr(t, e.client.MarkUnread(ctx, id), "MarkUnread")

	testutil.MustNoErr(t, e.client.Delete(ctx, id), "Delete")
	trash, err := e.client.ListFolder(ctx, bob, mail.FolderTrash)
	testutil.MustNoErr(t, err, "ListFolder trash")
	if len(trash) != 1 || trash[0].ID != id || trash[0].IsRead {
		t.Errorf("trash = %+v", trash)
	}
	if err := e.client.MarkRead(ctx, 9999); !gateway.IsNotFound(err) {
		t.Errorf("MarkRead(missing) = %v, want not found", err)
	}
}

func TestMoveCopies(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.send(t, "keep", 1)
	testutil.MustNoErr(t, e.client.CreateFolder(ctx, bob, "Work Stuff"), "CreateFolder")
	inbox, _ := e.client.ListFolder(ctx, bob, mail.FolderInbox)
	id := inbox[0].ID

	testutil.MustNoErr(t, e.client.MoveToFolder(ctx, id, "Work Stuff"), "MoveToFolder")
	work, err := e.client.ListFolder(ctx, bob, "Work Stuff")
	testutil.MustNoErr(t, err, "ListFolder work")
	if len(work) != 1 || work[0].ID == id || work[0].Subject != "keep" {
		t.Errorf("work = %+v", work)
	}
	inbox, _ = e.client.ListFolder(ctx, bob, mail.FolderInbox)
	if len(inbox) != 1 {
		t.Errorf("source should remain after copy, inbox = %d", len(inbox))
	}

	if err := e.client.MoveToFolder(ctx, id, "Nowhere"); !gateway.IsNotFound(err) {
		t.Errorf("move to unknown folder = %v, want not found", err)
	}
	testutil.MustNoErr(t, e.client.MoveToFolder(ctx, id, mail.FolderSpam), "move to system folder")
}

func TestListSortedByPriority(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.send(t, "low", 1)
	e.send(t, "high", 5)
	e.send(t, "mid", 3)

	msgs, err := e.client.ListSorted(ctx, bob, "priority", false)
	testutil.MustNoErr(t, err, "ListSorted")
	var subjects []string
	for _, m := range msgs {
		subjects = append(subjects, m.Subject)
	}
	testutil.AssertStrings(t, subjects, "high", "mid", "low")

	if _, err := e.client.ListSorted(ctx, bob, "size", true); err == nil {
		t.Error("unknown criterion should fail")
	}
}

func TestSearchAndFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.send(t, "Quarterly report", 1)
	e.send(t, "Lunch", 1)
	bobID := e.userID(t, bob.Email)

	found, err := e.client.Search(ctx, filter.ScopeAll, filter.General(bobID, "QUARTERLY"))
	testutil.MustNoErr(t, err, "Search")
	if len(found) != 1 || found[0].Subject != "Quarterly report" {
		t.Errorf("search = %+v", found)
	}

	scoped, err := e.client.Search(ctx, mail.FolderTrash, filter.General(bobID, "quarterly"))
	testutil.MustNoErr(t, err, "Search trash")
	if len(scoped) != 0 {
		t.Errorf("trash search = %+v, want none", scoped)
	}

	c, err := filter.Build(filter.Inputs{UserID: bobID, From: "alice@", Subject: "lunch"}, testutil.BaseTime)
	testutil.MustNoErr(t, err, "Build")
	filtered, err := e.client.Filter(ctx, bobID, c)
	testutil.MustNoErr(t, err, "Filter")
	if len(filtered) != 1 || filtered[0].Subject != "Lunch" {
		t.Errorf("filter = %+v", filtered)
	}
}

func TestFolderManagement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.MustNoErr(t, e.client.CreateFolder(ctx, bob, "Work"), "CreateFolder")

	var apiErr *gateway.APIError
	if err := e.client.CreateFolder(ctx, bob, "Work"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Errorf("duplicate = %v, want 409", err)
	}
	if err := e.client.CreateFolder(ctx, bob, "Inbox"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("reserved = %v, want 400", err)
	}

	testutil.MustNoErr(t, e.client.RenameFolder(ctx, bob, "Work", "Jobs"), "RenameFolder")
	names, err := e.client.ListFolders(ctx, bob)
	testutil.MustNoErr(t, err, "ListFolders")
	testutil.AssertStrings(t, names, "Jobs")

	testutil.MustNoErr(t, e.client.DeleteFolder(ctx, bob, "Jobs"), "DeleteFolder")
	if err := e.client.DeleteFolder(ctx, bob, "Jobs"); !gateway.IsNotFound(err) {
		t.Errorf("delete missing = %v", err)
	}
	if err := e.client.DeleteFolder(ctx, bob, mail.FolderTrash); !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("delete system folder = %v, want 400", err)
	}
}

func TestContacts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	created, err := e.client.AddContact(ctx, mail.Contact{Name: " Zoe ", Emails: []string{"zoe@x.com", " "}}, alice)
	testutil.MustNoErr(t, err, "AddContact")
	if created == nil || created.ID == 0 || created.Name != "Zoe" || len(created.Emails) != 1 {
		t.Fatalf("created = %+v", created)
	}
	_, err = e.client.AddContact(ctx, mail.Contact{Name: "Adam", Emails: []string{"adam@x.com"}}, alice)
	testutil.MustNoErr(t, err, "AddContact")

	list, err := e.client.ListContacts(ctx, alice, true)
	testutil.MustNoErr(t, err, "ListContacts")
	if len(list) != 2 || list[0].Name != "Adam" {
		t.Errorf("ascending = %+v", list)
	}

	created.Emails = []string{"zoe@new.org"}
	testutil.MustNoErr(t, e.client.EditContact(ctx, *created), "EditContact")
	testutil.MustNoErr(t, e.client.DeleteContact(ctx, created.ID), "DeleteContact")
	if err := e.client.DeleteContact(ctx, created.ID); !gateway.IsNotFound(err) {
		t.Errorf("second delete = %v", err)
	}

	if _, err := e.client.AddContact(ctx, mail.Contact{Name: "NoMail"}, alice); err == nil {
		t.Error("contact without email should be rejected")
	}
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	e.send(t, "s", 1)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)

	var resp StatsResponse
	testutil.MustNoErr(t, json.NewDecoder(w.Body).Decode(&resp), "decode")
	if resp.TotalMessages != 2 || resp.TotalUsers != 2 {
		t.Errorf("stats = %+v", resp)
	}
}

// The controller's two-phase move against the real service: three copies
// land in the destination and the inbox is emptied.
func TestControllerMoveEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, s := range []string{"a", "b", "c"} {
		e.send(t, s, 1)
	}
	testutil.MustNoErr(t, e.client.CreateFolder(ctx, bob, "Work"), "CreateFolder")

	c := mailbox.New(e.client, bob, mailbox.Options{}).WithLogger(testLogger())
	testutil.MustNoErr(t, c.LoadFolder(ctx, mail.FolderInbox), "LoadFolder")
	c.ToggleSelectAll()
	if len(c.Selected()) != 3 {
		t.Fatalf("selected = %v", c.Selected())
	}
	testutil.MustNoErr(t, c.MoveSelected(ctx, "Work"), "MoveSelected")

	if n := len(c.Messages()); n != 0 {
		t.Errorf("inbox after move = %d messages, want 0", n)
	}
	work, err := e.client.ListFolder(ctx, bob, "Work")
	testutil.MustNoErr(t, err, "ListFolder")
	if len(work) != 3 {
		t.Errorf("work = %d messages, want 3", len(work))
	}
	trash, _ := e.client.ListFolder(ctx, bob, mail.FolderTrash)
	if len(trash) != 3 {
		t.Errorf("trash = %d messages, want 3 removed source copies", len(trash))
	}
}
