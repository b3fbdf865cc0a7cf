package compose

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/inboxctl/internal/contacts"
	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/gateway/gatewaytest"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/testutil"
)

var me = mail.User{ID: 7, Email: "me@example.com"}

type countingRefresher struct{ n int }

func (r *countingRefresher) Refresh(context.Context) error {
	r.n++
	return nil
}

type fakePrompter struct {
	answer  bool
	prompts []string
}

func (p *fakePrompter) Confirm(_ context.Context, prompt string) (bool, error) {
	p.prompts = append(p.prompts, prompt)
	return p.answer, nil
}

func newSession(t *testing.T) (*Session, *gatewaytest.MockGateway, *countingRefresher) {
	t.Helper()
	gw := &gatewaytest.MockGateway{
		ContactList: []mail.Contact{
			{ID: 1, Name: "Ana Lima", Emails: []string{"ana@example.com"}},
			{ID: 2, Name: "Bruno", Emails: []string{"bruno@work.org", "b@home.net"}},
			{ID: 3, Name: "Anabel", Emails: []string{"anabel@example.com"}},
		},
	}
	r := &countingRefresher{}
	s := New(gw, me, contacts.New(gw, me), r)
	return s, gw, r
}

func TestOpen_LoadsContacts(t *testing.T) {
	s, gw, _ := newSession(t)
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	if s.State() != ComposingNew {
		t.Errorf("state = %v, want composing-new", s.State())
	}
	if gw.Count("ListContacts") != 1 {
		t.Errorf("ListContacts calls = %d, want 1", gw.Count("ListContacts"))
	}
	if err := s.Open(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Open = %v, want ErrSessionActive", err)
	}
}

func TestOpen_ContactLoadFailureIsNotFatal(t *testing.T) {
	s, gw, _ := newSession(t)
	gw.ListContactsFunc = func(context.Context, mail.User, bool) ([]mail.Contact, error) {
		return nil, errors.New("boom")
	}
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo("an")
	if got, _ := s.Suggestions(); len(got) != 0 {
		t.Errorf("suggestions = %v, want none", got)
	}
}

func TestSend_EditedDraftIsDeleted(t *testing.T) {
	s, gw, r := newSession(t)
	ctx := context.Background()
	draft := mail.Message{ID: 42, Receiver: "ana@example.com", Subject: "Draft", Body: "hi", Priority: 3}
	testutil.MustNoErr(t, s.OpenDraft(ctx, draft), "OpenDraft")
	s.SetSubject("Final")

	res, err := s.Send(ctx)
	testutil.MustNoErr(t, err, "Send")
	if res == nil || res.Message == "" {
		t.Errorf("result = %+v", res)
	}

	want := []mail.ComposeFields{{
		Sender:    me.Email,
		Receivers: []string{"ana@example.com"},
		Subject:   "Final",
		Body:      "hi",
		Priority:  3,
	}}
	if diff := cmp.Diff(want, gw.Sent()); diff != "" {
		t.Errorf("sent (-want +got):\n%s", diff)
	}
	testutil.AssertIDs(t, gw.IDs("PermanentDelete"), 42)

	var order []string
	for _, c := range gw.Calls() {
		if c.Method == "Send" || c.Method == "PermanentDelete" {
			order = append(order, c.Method)
		}
	}
	testutil.AssertStrings(t, order, "Send", "PermanentDelete")

	if s.State() != Closed {
		t.Errorf("state = %v, want closed", s.State())
	}
	if r.n != 1 {
		t.Errorf("refreshes = %d, want 1", r.n)
	}
}

func TestSend_DraftDeleteFailureStillCloses(t *testing.T) {
	s, gw, _ := newSession(t)
	ctx := context.Background()
	gw.PermanentDeleteFunc = func(context.Context, int64) error { return errors.New("gone wrong") }
	testutil.MustNoErr(t, s.OpenDraft(ctx, mail.Message{ID: 9, Receiver: "a@b.com"}), "OpenDraft")
	_, err := s.Send(ctx)
	testutil.MustNoErr(t, err, "Send")
	if s.State() != Closed {
		t.Errorf("state = %v, want closed", s.State())
	}
}

func TestOpenDraft_ReplacesNewMessage(t *testing.T) {
	s, _, _ := newSession(t)
	p := &fakePrompter{answer: false}
	s.WithPrompter(p)
	ctx := context.Background()
	draft := mail.Message{ID: 42, Receiver: "ana@example.com", Subject: "Saved"}

	testutil.MustNoErr(t, s.Open(ctx), "Open")
	testutil.MustNoErr(t, s.OpenDraft(ctx, draft), "OpenDraft over empty message")
	if len(p.prompts) != 0 {
		t.Errorf("prompts = %v, want none for an empty message", p.prompts)
	}
	s.close()

	testutil.MustNoErr(t, s.Open(ctx), "Open")
	s.SetSubject("half-written")
	testutil.AssertErrorIs(t, s.OpenDraft(ctx, draft), ErrCancelled)
	if d := s.Draft(); d.State != ComposingNew || d.Subject != "half-written" {
		t.Errorf("declined: %+v", d)
	}

	p.answer = true
	testutil.MustNoErr(t, s.OpenDraft(ctx, draft), "OpenDraft")
	d := s.Draft()
	if d.State != ComposingDraft || d.DraftID != 42 || d.Subject != "Saved" {
		t.Errorf("after OpenDraft: %+v", d)
	}
	if len(p.prompts) != 2 {
		t.Errorf("prompts = %v, want 2", p.prompts)
	}

	testutil.AssertErrorIs(t, s.OpenDraft(ctx, draft), ErrSessionActive)
}

func TestSend_InvalidAddresses(t *testing.T) {
	s, gw, _ := newSession(t)
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo("a@b.com, not-an-email, c@d.org")

	_, err := s.Send(context.Background())
	var invalid *InvalidAddressError
	if !errors.As(err, &invalid) {
		t.Fatalf("Send error = %v, want InvalidAddressError", err)
	}
	testutil.AssertStrings(t, invalid.Addresses, "not-an-email")
	if gw.Count("Send") != 0 {
		t.Error("no request should be issued")
	}
	if s.State() != ComposingNew {
		t.Errorf("state = %v, session should stay open", s.State())
	}
}

func TestSend_NoRecipients(t *testing.T) {
	s, gw, _ := newSession(t)
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo(" , ,")
	s.SetSubject("hello")
	_, err := s.Send(context.Background())
	testutil.AssertErrorIs(t, err, ErrNoRecipients)
	if gw.Count("Send") != 0 {
		t.Error("no request should be issued")
	}
}

func TestSend_FailureKeepsSessionOpen(t *testing.T) {
	s, gw, r := newSession(t)
	gw.SendFunc = func(context.Context, mail.ComposeFields, []mail.Upload) (*gateway.SendResult, error) {
		return nil, &gateway.APIError{Status: http.StatusBadRequest, Message: "Attachment too large"}
	}
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo("a@b.com")

	_, err := s.Send(context.Background())
	var se *SendError
	if !errors.As(err, &se) {
		t.Fatalf("Send error = %v, want SendError", err)
	}
	if se.Message != "Attachment too large" {
		t.Errorf("message = %q", se.Message)
	}
	if s.State() != ComposingNew || s.Draft().To != "a@b.com" {
		t.Errorf("session should keep its fields: %+v", s.Draft())
	}
	if r.n != 0 {
		t.Errorf("refreshes = %d, want 0", r.n)
	}
}

func TestSend_GenericFailureMessage(t *testing.T) {
	s, gw, _ := newSession(t)
	gw.SendFunc = func(context.Context, mail.ComposeFields, []mail.Upload) (*gateway.SendResult, error) {
		return nil, errors.New("dial tcp: refused")
	}
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo("a@b.com")
	_, err := s.Send(context.Background())
	if err == nil || err.Error() != "Failed to send email. Please try again." {
		t.Errorf("Send error = %v", err)
	}
}

func TestSend_UnstructuredFailureMessage(t *testing.T) {
	s, gw, _ := newSession(t)
	gw.SendFunc = func(context.Context, mail.ComposeFields, []mail.Upload) (*gateway.SendResult, error) {
		return nil, &gateway.APIError{Status: http.StatusBadGateway, Body: "<html><body>502 Bad Gateway nginx</body></html>"}
	}
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo("a@b.com")
	_, err := s.Send(context.Background())
	var se *SendError
	if !errors.As(err, &se) {
		t.Fatalf("Send error = %v, want SendError", err)
	}
	if se.Message != "Failed to send email. Please try again." {
		t.Errorf("message = %q, want generic message", se.Message)
	}
}

func TestSend_PassesAttachments(t *testing.T) {
	s, gw, _ := newSession(t)
	var names []string
	gw.SendFunc = func(_ context.Context, _ mail.ComposeFields, uploads []mail.Upload) (*gateway.SendResult, error) {
		for _, u := range uploads {
			names = append(names, u.Name)
		}
		return &gateway.SendResult{Message: "ok"}, nil
	}
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo("a@b.com")

	path := filepath.Join(t.TempDir(), "notes.txt")
	testutil.MustNoErr(t, os.WriteFile(path, []byte("x"), 0o600), "write file")
	testutil.MustNoErr(t, s.AddAttachmentFile(path), "AddAttachmentFile")
	s.AddAttachment(mail.Upload{Name: "b.bin", Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("b")), nil
	}})
	if !s.RemoveAttachment("b.bin") {
		t.Fatal("RemoveAttachment returned false")
	}

	_, err := s.Send(context.Background())
	testutil.MustNoErr(t, err, "Send")
	testutil.AssertStrings(t, names, "notes.txt")
}

func TestSaveDraft_CreateThenUpdate(t *testing.T) {
	s, gw, r := newSession(t)
	gw.NextDraftID = 41
	ctx := context.Background()
	testutil.MustNoErr(t, s.Open(ctx), "Open")
	s.SetSubject("plans")

	id, err := s.SaveDraft(ctx)
	testutil.MustNoErr(t, err, "SaveDraft")
	if id != 42 || s.DraftID() != 42 || s.State() != ComposingDraft {
		t.Fatalf("after create: id=%d draft=%d state=%v", id, s.DraftID(), s.State())
	}

	s.SetBody("more")
	_, err = s.SaveDraft(ctx)
	testutil.MustNoErr(t, err, "SaveDraft")
	testutil.AssertIDs(t, gw.IDs("UpdateDraft"), 42)
	if gw.Count("CreateDraft") != 1 {
		t.Errorf("CreateDraft calls = %d, want 1", gw.Count("CreateDraft"))
	}
	if r.n != 2 {
		t.Errorf("refreshes = %d, want 2", r.n)
	}
}

func TestSaveDraftAndClose_EmptyClosesSilently(t *testing.T) {
	s, gw, _ := newSession(t)
	p := &fakePrompter{}
	s.WithPrompter(p)
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	testutil.MustNoErr(t, s.SaveDraftAndClose(context.Background()), "SaveDraftAndClose")
	if s.State() != Closed {
		t.Errorf("state = %v, want closed", s.State())
	}
	if gw.Count("CreateDraft") != 0 || len(p.prompts) != 0 {
		t.Error("empty draft should not be saved or prompted")
	}
}

func TestSaveDraftAndClose_FailureAsksToDiscard(t *testing.T) {
	for _, discard := range []bool{true, false} {
		s, gw, _ := newSession(t)
		gw.CreateDraftFunc = func(context.Context, mail.ComposeFields) (int64, error) {
			return 0, errors.New("unavailable")
		}
		p := &fakePrompter{answer: discard}
		s.WithPrompter(p)
		testutil.MustNoErr(t, s.Open(context.Background()), "Open")
		s.SetBody("half written")

		err := s.SaveDraftAndClose(context.Background())
		if len(p.prompts) != 1 {
			t.Fatalf("discard=%t: prompts = %v", discard, p.prompts)
		}
		if discard {
			testutil.MustNoErr(t, err, "SaveDraftAndClose")
			if s.State() != Closed {
				t.Errorf("discard: state = %v, want closed", s.State())
			}
		} else {
			if err == nil {
				t.Error("keep editing: want the save error")
			}
			if s.State() != ComposingNew {
				t.Errorf("keep editing: state = %v", s.State())
			}
		}
	}
}

func TestCancel(t *testing.T) {
	s, _, _ := newSession(t)
	p := &fakePrompter{answer: false}
	s.WithPrompter(p)
	ctx := context.Background()

	testutil.MustNoErr(t, s.Open(ctx), "Open")
	testutil.MustNoErr(t, s.Cancel(ctx), "Cancel empty")
	if len(p.prompts) != 0 || s.State() != Closed {
		t.Fatalf("empty cancel: prompts=%v state=%v", p.prompts, s.State())
	}

	testutil.MustNoErr(t, s.Open(ctx), "Open")
	s.SetSubject("x")
	testutil.AssertErrorIs(t, s.Cancel(ctx), ErrCancelled)
	if s.State() != ComposingNew {
		t.Errorf("declined cancel: state = %v", s.State())
	}
	p.answer = true
	testutil.MustNoErr(t, s.Cancel(ctx), "Cancel")
	if s.State() != Closed || s.Draft().Subject != "" {
		t.Errorf("after cancel: %+v", s.Draft())
	}
}

func TestSetPriority(t *testing.T) {
	s, _, _ := newSession(t)
	testutil.MustNoErr(t, s.SetPriority(4), "SetPriority")
	if err := s.SetPriority(6); !errors.Is(err, mail.ErrInvalidPriority) {
		t.Errorf("SetPriority(6) = %v", err)
	}
	if s.Draft().Priority != 4 {
		t.Errorf("priority = %d, want 4", s.Draft().Priority)
	}
}

func TestAutocomplete(t *testing.T) {
	s, _, _ := newSession(t)
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")

	s.SetTo("a")
	if got, _ := s.Suggestions(); len(got) != 0 {
		t.Errorf("one character should not suggest: %v", got)
	}

	s.SetTo("bob@x.com, AN")
	got, cursor := s.Suggestions()
	want := []Suggestion{
		{Email: "ana@example.com", Name: "Ana Lima"},
		{Email: "anabel@example.com", Name: "Anabel"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("suggestions (-want +got):\n%s", diff)
	}
	if cursor != -1 {
		t.Errorf("cursor = %d, want -1", cursor)
	}

	s.PrevSuggestion()
	if _, c := s.Suggestions(); c != 1 {
		t.Errorf("prev from none = %d, want 1", c)
	}
	s.NextSuggestion()
	if _, c := s.Suggestions(); c != 0 {
		t.Errorf("next wraps to %d, want 0", c)
	}

	picked, ok := s.SelectSuggestion()
	if !ok || picked.Email != "ana@example.com" {
		t.Fatalf("SelectSuggestion = %+v, %t", picked, ok)
	}
	if s.Draft().To != "ana@example.com" {
		t.Errorf("to = %q", s.Draft().To)
	}
	if got, _ := s.Suggestions(); len(got) != 0 {
		t.Errorf("suggestions not cleared: %v", got)
	}
}

func TestAutocomplete_MatchesEveryEmailOfNamedContact(t *testing.T) {
	s, _, _ := newSession(t)
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	s.SetTo("brU")
	got, _ := s.Suggestions()
	if len(got) != 2 || got[1].Email != "b@home.net" {
		t.Errorf("suggestions = %+v", got)
	}
	s.DismissSuggestions()
	if got, _ := s.Suggestions(); len(got) != 0 || s.Draft().To != "brU" {
		t.Errorf("dismiss: %v to=%q", got, s.Draft().To)
	}
}

func TestImportEML(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"To: x@example.com, y@example.com\r\n" +
		"Subject: Imported\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=BB\r\n\r\n" +
		"--BB\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nbody text\r\n" +
		"--BB\r\nContent-Type: text/plain\r\nContent-Disposition: attachment; filename=\"n.txt\"\r\n\r\nnote\r\n" +
		"--BB--\r\n"

	s, _, _ := newSession(t)
	if err := s.ImportEML(strings.NewReader(raw)); !errors.Is(err, ErrClosed) {
		t.Errorf("ImportEML on closed session = %v", err)
	}
	testutil.MustNoErr(t, s.Open(context.Background()), "Open")
	testutil.MustNoErr(t, s.ImportEML(strings.NewReader(raw)), "ImportEML")

	d := s.Draft()
	if d.To != "x@example.com, y@example.com" || d.Subject != "Imported" {
		t.Errorf("draft = %+v", d)
	}
	if !strings.Contains(d.Body, "body text") {
		t.Errorf("body = %q", d.Body)
	}
	testutil.AssertStrings(t, d.Attachments, "n.txt")
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a@b.com", true},
		{"first.last@sub.example.org", true},
		{"not-an-email", false},
		{"a@b", false},
		{"a b@c.com", false},
		{"@b.com", false},
	}
	for _, tt := range tests {
		if got := ValidAddress(tt.in); got != tt.want {
			t.Errorf("ValidAddress(%q) = %t, want %t", tt.in, got, tt.want)
		}
	}
}

func TestPriorityGlyph(t *testing.T) {
	if PriorityGlyph(5) != "🔴" || PriorityGlyph(1) != "⚪" || PriorityGlyph(0) != "⚪" {
		t.Error("unexpected glyphs")
	}
}
