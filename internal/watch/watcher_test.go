package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wesm/inboxctl/internal/config"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/testutil"
)

func noop(ctx context.Context, folder string) error { return nil }

// rarely is a schedule that never fires during a test.
const rarely = "0 0 1 1 *"

func TestAddFolder(t *testing.T) {
	w := New(noop)
	if err := w.AddFolder("inbox", "*/5 * * * *"); err != nil {
		t.Fatalf("AddFolder() = %v", err)
	}
	if !w.IsWatched("inbox") {
		t.Error("inbox is not watched")
	}
	if err := w.AddFolder("spam", "invalid cron"); err == nil {
		t.Error("AddFolder() with invalid cron = nil, want error")
	}
	if w.IsWatched("spam") {
		t.Error("spam is watched after a failed AddFolder")
	}
}

func TestAddFolderReplacesExisting(t *testing.T) {
	w := New(noop)
	if err := w.AddFolder("inbox", "0 2 * * *"); err != nil {
		t.Fatalf("AddFolder: %v", err)
	}
	w.mu.RLock()
	firstID := w.jobs["inbox"]
	w.mu.RUnlock()

	if err := w.AddFolder("inbox", "0 3 * * *"); err != nil {
		t.Fatalf("AddFolder replacement: %v", err)
	}
	w.mu.RLock()
	secondID := w.jobs["inbox"]
	schedule := w.schedules["inbox"]
	w.mu.RUnlock()

	if firstID == secondID {
		t.Error("job ID was not updated after replacement")
	}
	if schedule != "0 3 * * *" {
		t.Errorf("schedule = %q", schedule)
	}
}

func TestRemoveFolder(t *testing.T) {
	w := New(noop)
	if err := w.AddFolder("inbox", rarely); err != nil {
		t.Fatalf("AddFolder: %v", err)
	}
	w.RemoveFolder("inbox")
	if w.IsWatched("inbox") {
		t.Error("inbox still watched after RemoveFolder")
	}
	w.RemoveFolder("never-added")
}

func TestAddFoldersFromConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Watch.Folders = []string{"inbox", "", "Work"}
	cfg.Watch.Schedule = "*/10 * * * *"

	w := New(noop)
	added, errs := w.AddFoldersFromConfig(cfg)
	if len(errs) != 0 {
		t.Fatalf("errors = %v", errs)
	}
	if added != 2 || !w.IsWatched("inbox") || !w.IsWatched("Work") {
		t.Errorf("added = %d, status = %+v", added, w.Status())
	}

	cfg.Watch.Schedule = "not a cron"
	added, errs = New(noop).AddFoldersFromConfig(cfg)
	if added != 0 || len(errs) != 2 {
		t.Errorf("added = %d, errs = %v; want 0 and 2 errors", added, errs)
	}
}

func TestStartStop(t *testing.T) {
	w := New(noop)
	if w.IsRunning() {
		t.Error("IsRunning() = true before Start()")
	}
	w.Start()
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}
	ctx := w.Stop()
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop()")
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Stop() did not complete in time")
	}
}

func TestStopCancelsRunningPoll(t *testing.T) {
	started := make(chan struct{})
	w := New(func(ctx context.Context, folder string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	if err := w.AddFolder("inbox", rarely); err != nil {
		t.Fatalf("AddFolder: %v", err)
	}
	if err := w.Trigger("inbox"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("poll did not start")
	}

	ctx := w.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete after cancelling poll")
	}
	for _, st := range w.Status() {
		if st.Folder == "inbox" && st.LastError == "" {
			t.Error("expected error after cancelled poll")
		}
	}
}

func TestTriggerPreventsDoubleRun(t *testing.T) {
	var concurrent, maxConcurrent, calls atomic.Int32
	release := make(chan struct{})
	w := New(func(ctx context.Context, folder string) error {
		calls.Add(1)
		c := concurrent.Add(1)
		if c > maxConcurrent.Load() {
			maxConcurrent.Store(c)
		}
		<-release
		concurrent.Add(-1)
		return nil
	})
	if err := w.AddFolder("inbox", rarely); err != nil {
		t.Fatalf("AddFolder: %v", err)
	}

	if err := w.Trigger("inbox"); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := w.Trigger("inbox"); err == nil {
			t.Error("Trigger() while running = nil, want error")
		}
	}
	close(release)
	<-w.Stop().Done()

	if maxConcurrent.Load() != 1 || calls.Load() != 1 {
		t.Errorf("max concurrent = %d, calls = %d; want 1 and 1", maxConcurrent.Load(), calls.Load())
	}
}

func TestTriggerErrors(t *testing.T) {
	w := New(noop)
	if err := w.Trigger("inbox"); err == nil {
		t.Error("Trigger() on unwatched folder = nil, want error")
	}
	if err := w.AddFolder("inbox", rarely); err != nil {
		t.Fatalf("AddFolder: %v", err)
	}
	<-w.Stop().Done()
	if err := w.Trigger("inbox"); err == nil {
		t.Error("Trigger() after Stop() = nil, want error")
	}
}

func TestStatusAfterPoll(t *testing.T) {
	fail := errors.New("gateway down")
	w := New(func(ctx context.Context, folder string) error {
		if folder == "spam" {
			return fail
		}
		return nil
	})
	for _, f := range []string{"inbox", "spam"} {
		if err := w.AddFolder(f, rarely); err != nil {
			t.Fatalf("AddFolder(%s): %v", f, err)
		}
		if err := w.Trigger(f); err != nil {
			t.Fatalf("Trigger(%s): %v", f, err)
		}
	}
	w.Start()
	<-w.Stop().Done()

	got := map[string]FolderStatus{}
	for _, st := range w.Status() {
		got[st.Folder] = st
	}
	if st := got["inbox"]; st.LastRun.IsZero() || st.LastError != "" || st.Schedule != rarely {
		t.Errorf("inbox status = %+v", st)
	}
	if st := got["spam"]; st.LastError != fail.Error() {
		t.Errorf("spam LastError = %q, want %q", st.LastError, fail.Error())
	}
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"*/5 * * * *", false},
		{"0 8,18 * * 1-5", false},
		{"invalid", true},
		{"* * * * * *", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCronExpr(%q) error = %v, wantErr = %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestArrivals(t *testing.T) {
	a := NewArrivals()
	first := testutil.Messages(3, mail.FolderInbox)

	if got := a.Diff("inbox", first); got != nil {
		t.Fatalf("baseline Diff = %v, want nil", testutil.IDs(got))
	}
	if got := a.Diff("inbox", first); len(got) != 0 {
		t.Errorf("unchanged Diff = %v", testutil.IDs(got))
	}

	next := append([]mail.Message{}, first[1:]...)
	next = append(next, testutil.NewMessage(9).Build(), testutil.NewMessage(7).Build())
	testutil.AssertIDs(t, testutil.IDs(a.Diff("inbox", next)), 9, 7)

	// Message 1 left and came back.
	testutil.AssertIDs(t, testutil.IDs(a.Diff("inbox", first)), 1)

	// Folders are tracked independently.
	if got := a.Diff("Work", first); got != nil {
		t.Errorf("new folder Diff = %v, want nil", testutil.IDs(got))
	}

	a.Forget("inbox")
	if got := a.Diff("inbox", next); got != nil {
		t.Errorf("Diff after Forget = %v, want nil", testutil.IDs(got))
	}
}
