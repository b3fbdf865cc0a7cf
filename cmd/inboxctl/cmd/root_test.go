package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesm/inboxctl/internal/compose"
	"github.com/wesm/inboxctl/internal/config"
	"github.com/wesm/inboxctl/internal/contacts"
	"github.com/wesm/inboxctl/internal/gateway/gatewaytest"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/mailbox"
	"github.com/wesm/inboxctl/internal/testutil"
)

// newTestRootCmd creates a fresh root command for testing, avoiding mutation
// of the global rootCmd which could cause race conditions in parallel tests.
func newTestRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inboxctl",
		Short: "Terminal webmail client",
	}
}

// TestExecuteContext_CancellationPropagates verifies that context cancellation
// from ExecuteContext propagates to command handlers.
func TestExecuteContext_CancellationPropagates(t *testing.T) {
	var contextWasCancelled atomic.Bool
	handlerStarted := make(chan struct{})

	testRoot := newTestRootCmd()
	testRoot.AddCommand(&cobra.Command{
		Use: "test-cancel",
		RunE: func(cmd *cobra.Command, args []string) error {
			close(handlerStarted)
			select {
			case <-cmd.Context().Done():
				contextWasCancelled.Store(true)
				return cmd.Context().Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		testRoot.SetArgs([]string{"test-cancel"})
		done <- testRoot.ExecuteContext(ctx)
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("command handler did not start in time")
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled error, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command did not return after cancellation")
	}
	if !contextWasCancelled.Load() {
		t.Error("handler did not observe cancellation")
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "10", "7"})
	testutil.MustNoErr(t, err, "parseIDs")
	testutil.AssertIDs(t, ids, 3, 10, 7)

	for _, bad := range [][]string{{"x"}, {"0"}, {"-4"}, {"5", "1.5"}} {
		if _, err := parseIDs(bad); err == nil {
			t.Errorf("parseIDs(%v) succeeded, want error", bad)
		}
	}
}

// newTestClient wires the controllers to a mock gateway. The HTTP client
// is left nil; commands under test must not reach it.
func newTestClient(gw *gatewaytest.MockGateway) *client {
	user := mail.User{ID: 1, Email: "me@example.com"}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	mb := mailbox.New(gw, user, mailbox.Options{}).WithLogger(quiet)
	dir := contacts.New(gw, user).WithLogger(quiet)
	session := compose.New(gw, user, dir, mb).WithLogger(quiet)
	return &client{user: user, mailbox: mb, contacts: dir, compose: session}
}

func TestComposeFlagsFill_BodyFromStdin(t *testing.T) {
	c := newTestClient(&gatewaytest.MockGateway{})
	f := composeFlags{
		to:       "bob@example.com, carol@example.com",
		subject:  "Notes",
		bodyFile: "-",
		priority: 4,
	}
	err := f.fill(context.Background(), c, strings.NewReader("line one\nline two\n"))
	testutil.MustNoErr(t, err, "fill")

	d := c.compose.Draft()
	if d.State != compose.ComposingNew {
		t.Errorf("State = %v, want ComposingNew", d.State)
	}
	if d.To != "bob@example.com, carol@example.com" || d.Subject != "Notes" {
		t.Errorf("draft = %+v", d)
	}
	if d.Body != "line one\nline two\n" {
		t.Errorf("Body = %q", d.Body)
	}
	if d.Priority != 4 {
		t.Errorf("Priority = %d, want 4", d.Priority)
	}
}

func TestComposeFlagsFill_FromDraft(t *testing.T) {
	draft := testutil.NewMessage(31).
		WithFolder(mail.FolderDrafts).
		WithReceiver("bob@example.com").
		WithSubject("Old subject").
		WithBody("draft body").
		Build()
	gw := &gatewaytest.MockGateway{
		FolderMessages: map[string][]mail.Message{mail.FolderDrafts: {draft}},
	}
	c := newTestClient(gw)

	f := composeFlags{draftID: 31, subject: "New subject"}
	testutil.MustNoErr(t, f.fill(context.Background(), c, strings.NewReader("")), "fill")

	d := c.compose.Draft()
	if d.State != compose.ComposingDraft || d.DraftID != 31 {
		t.Fatalf("draft = %+v, want draft 31", d)
	}
	if d.To != "bob@example.com" || d.Subject != "New subject" || d.Body != "draft body" {
		t.Errorf("draft = %+v", d)
	}
}

func TestComposeFlagsFill_MissingDraft(t *testing.T) {
	c := newTestClient(&gatewaytest.MockGateway{})
	f := composeFlags{draftID: 99}
	if err := f.fill(context.Background(), c, strings.NewReader("")); err == nil {
		t.Fatal("fill with unknown draft succeeded")
	}
}

func TestComposeFlagsFill_BadPriority(t *testing.T) {
	c := newTestClient(&gatewaytest.MockGateway{})
	f := composeFlags{to: "bob@example.com", priority: 9}
	if err := f.fill(context.Background(), c, strings.NewReader("")); err == nil {
		t.Fatal("fill accepted priority 9")
	}
}

func TestTerminalPrompter_AssumeYes(t *testing.T) {
	old := assumeYes
	t.Cleanup(func() { assumeYes = old })
	assumeYes = true

	ok, err := terminalPrompter{}.Confirm(context.Background(), "Delete?")
	if err != nil || !ok {
		t.Fatalf("Confirm = %v, %v; want true, nil", ok, err)
	}
}

func TestPrintArrivals(t *testing.T) {
	var buf strings.Builder
	msgs := []mail.Message{
		testutil.NewMessage(4).
			WithSender("carol@example.com").
			WithSubject("Quarterly report").
			WithTimestamp(time.Date(2026, 3, 2, 14, 5, 0, 0, time.Local)).
			Build(),
		testutil.NewMessage(5).WithSubject("Lunch").Build(),
	}
	printArrivals(&buf, mail.FolderInbox, msgs)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	testutil.AssertContainsAll(t, lines[0], []string{"2026-03-02 14:05", "inbox", "carol@example.com", "Quarterly report"})
	testutil.AssertContainsAll(t, lines[1], []string{"sender@example.com", "Lunch"})
}

func TestFilterCriteria_Query(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })
	cfg = config.Default(t.TempDir())
	cfg.User.ID = 3
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cmd := &cobra.Command{}
	cmd.Flags().String("from", "", "")
	c, err := filterCriteria(cmd, []string{"from:carol", "is:unread", "budget"}, now)
	testutil.MustNoErr(t, err, "filterCriteria")
	if c.UserID != 3 || len(c.Sender) != 1 || c.Sender[0] != "carol" || c.Body != "budget" {
		t.Errorf("criteria = %+v", c)
	}
	if c.IsRead == nil || *c.IsRead {
		t.Errorf("IsRead = %v, want false", c.IsRead)
	}

	testutil.MustNoErr(t, cmd.Flags().Set("from", "dave"), "Set")
	if _, err := filterCriteria(cmd, []string{"budget"}, now); err == nil {
		t.Error("query combined with --from succeeded")
	}
}

func TestWriteNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "inbox.mbox")
	err := writeNewFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "From a@b Thu Jan  1 00:00:00 1970\n\nhi\n\n")
		return err
	})
	testutil.MustNoErr(t, err, "writeNewFile")

	if err := writeNewFile(path, func(io.Writer) error { return nil }); err == nil {
		t.Error("writeNewFile overwrote an existing file")
	}

	failed := filepath.Join(filepath.Dir(path), "partial.mbox")
	err = writeNewFile(failed, func(io.Writer) error { return errors.New("boom") })
	if err == nil {
		t.Fatal("writeNewFile ignored the write error")
	}
	if _, statErr := os.Stat(failed); !os.IsNotExist(statErr) {
		t.Errorf("partial file left behind: %v", statErr)
	}
}
