package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/gateway/gatewaytest"
	"github.com/wesm/inboxctl/internal/mail"
	"github.com/wesm/inboxctl/internal/testutil"
)

var me = mail.User{ID: 4, Email: "me@example.com"}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newHandlers(gw *gatewaytest.MockGateway) *handlers {
	return &handlers{gw: gw, user: me, now: func() time.Time { return fixedNow }}
}

// toolHandler is the function signature for MCP tool handler methods.
type toolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// callToolDirect invokes a handler directly with the given arguments and returns the raw result.
func callToolDirect(t *testing.T, name string, fn toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := fn(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty content")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", r.Content[0])
	}
	return tc.Text
}

// runTool invokes a handler, asserts no error, and unmarshals the JSON result into T.
func runTool[T any](t *testing.T, name string, fn toolHandler, args map[string]any) T {
	t.Helper()
	r := callToolDirect(t, name, fn, args)
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, r))
	}
	var out T
	if err := json.Unmarshal([]byte(resultText(t, r)), &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return out
}

// runToolExpectError invokes a handler and asserts it returns an error result.
func runToolExpectError(t *testing.T, name string, fn toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	r := callToolDirect(t, name, fn, args)
	if !r.IsError {
		t.Fatal("expected error result")
	}
	return r
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(&gatewaytest.MockGateway{}, me, "test")
	tools := s.ListTools()
	for _, name := range []string{ToolListFolders, ToolListMessages, ToolSearchMessages, ToolGetMessage, ToolGetAttachment, ToolListContacts} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func TestListFolders(t *testing.T) {
	h := newHandlers(&gatewaytest.MockGateway{FolderNames: []string{"Projects"}})
	folders := runTool[[]string](t, ToolListFolders, h.listFolders, nil)
	if len(folders) != len(mail.SystemFolders())+1 || folders[0] != mail.FolderInbox || folders[len(folders)-1] != "Projects" {
		t.Fatalf("folders = %v", folders)
	}
}

func TestListMessages(t *testing.T) {
	msgs := testutil.Messages(5, "Projects")
	msgs[1].IsRead = true
	msgs[3].IsRead = true
	gw := &gatewaytest.MockGateway{FolderMessages: map[string][]mail.Message{"Projects": msgs}}
	h := newHandlers(gw)

	t.Run("paging", func(t *testing.T) {
		got := runTool[[]messageSummary](t, ToolListMessages, h.listMessages, map[string]any{
			"folder": "Projects",
			"offset": float64(1),
			"limit":  float64(2),
		})
		if len(got) != 2 || got[0].ID != msgs[1].ID || got[1].ID != msgs[2].ID {
			t.Fatalf("page = %+v", got)
		}
	})

	t.Run("unread only", func(t *testing.T) {
		got := runTool[[]messageSummary](t, ToolListMessages, h.listMessages, map[string]any{
			"folder":      "Projects",
			"unread_only": true,
		})
		if len(got) != 3 {
			t.Fatalf("got %d unread, want 3", len(got))
		}
		for _, m := range got {
			if m.IsRead {
				t.Errorf("message %d is read", m.ID)
			}
		}
	})

	t.Run("defaults to inbox", func(t *testing.T) {
		got := runTool[[]messageSummary](t, ToolListMessages, h.listMessages, map[string]any{})
		if len(got) != 0 {
			t.Fatalf("inbox = %+v", got)
		}
		calls := gw.CallsTo("ListFolder")
		if last := calls[len(calls)-1]; last.Arg != mail.FolderInbox {
			t.Errorf("listed %q, want inbox", last.Arg)
		}
	})
}

func TestSearchMessages(t *testing.T) {
	var gotCriteria filter.Criteria
	gw := &gatewaytest.MockGateway{
		SearchResults: []mail.Message{testutil.NewMessage(1).WithSubject("Lunch").Build()},
		FilterFunc: func(ctx context.Context, userID int64, c filter.Criteria) ([]mail.Message, error) {
			gotCriteria = c
			return []mail.Message{testutil.NewMessage(2).WithSubject("Q3 report").Build()}, nil
		},
	}
	h := newHandlers(gw)

	t.Run("plain text uses breadth search", func(t *testing.T) {
		got := runTool[[]messageSummary](t, ToolSearchMessages, h.searchMessages, map[string]any{"query": "lunch"})
		if len(got) != 1 || got[0].Subject != "Lunch" {
			t.Fatalf("result = %+v", got)
		}
		calls := gw.CallsTo("Search")
		if len(calls) != 1 || calls[0].Arg != filter.ScopeAll {
			t.Errorf("Search calls = %+v", calls)
		}
	})

	t.Run("operators use filter", func(t *testing.T) {
		got := runTool[[]messageSummary](t, ToolSearchMessages, h.searchMessages, map[string]any{"query": "from:carol newer_than:1w"})
		if len(got) != 1 || got[0].ID != 2 {
			t.Fatalf("result = %+v", got)
		}
		if gotCriteria.UserID != me.ID || len(gotCriteria.Sender) != 1 || gotCriteria.Sender[0] != "carol" {
			t.Errorf("criteria = %+v", gotCriteria)
		}
		if gotCriteria.BeforeDate == nil || !gotCriteria.BeforeDate.Equal(fixedNow.AddDate(0, 0, -7)) {
			t.Errorf("BeforeDate = %v", gotCriteria.BeforeDate)
		}
	})

	t.Run("errors", func(t *testing.T) {
		runToolExpectError(t, ToolSearchMessages, h.searchMessages, map[string]any{})
		runToolExpectError(t, ToolSearchMessages, h.searchMessages, map[string]any{"query": "is:starred"})
	})
}

func TestGetMessage(t *testing.T) {
	msg := testutil.NewMessage(42).
		WithSubject("Test Message").
		WithBody("Hello world").
		WithAttachment(7, "q3.csv").
		Build()
	h := newHandlers(&gatewaytest.MockGateway{
		FolderMessages: map[string][]mail.Message{mail.FolderInbox: {msg}},
	})

	t.Run("found", func(t *testing.T) {
		got := runTool[messageDetail](t, ToolGetMessage, h.getMessage, map[string]any{"id": float64(42)})
		if got.Subject != "Test Message" || got.Body != "Hello world" {
			t.Fatalf("message = %+v", got)
		}
		if len(got.Attachments) != 1 || got.Attachments[0].ID != 7 || got.Attachments[0].Filename != "q3.csv" {
			t.Errorf("attachments = %+v", got.Attachments)
		}
	})

	errorCases := []struct {
		name string
		args map[string]any
	}{
		{"not found", map[string]any{"id": float64(999)}},
		{"other folder", map[string]any{"id": float64(42), "folder": "sent"}},
		{"missing id", map[string]any{}},
		{"non-integer id", map[string]any{"id": float64(1.9)}},
		{"negative id", map[string]any{"id": float64(-1)}},
		{"overflow id", map[string]any{"id": float64(1e19)}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			runToolExpectError(t, ToolGetMessage, h.getMessage, tt.args)
		})
	}
}

func TestGetAttachment(t *testing.T) {
	content := []byte("id,total\n1,42\n")
	gw := &gatewaytest.MockGateway{
		FetchAttachmentFunc: func(ctx context.Context, id int64, w io.Writer) (string, error) {
			switch id {
			case 10:
				_, err := w.Write(content)
				return "q3.csv", err
			case 11:
				_, err := w.Write(make([]byte, maxAttachmentSize+1))
				return "huge.bin", err
			}
			return "", io.ErrUnexpectedEOF
		},
	}
	h := newHandlers(gw)

	t.Run("valid", func(t *testing.T) {
		resp := runTool[struct {
			Filename      string `json:"filename"`
			Size          int    `json:"size"`
			ContentBase64 string `json:"content_base64"`
		}](t, ToolGetAttachment, h.getAttachment, map[string]any{"attachment_id": float64(10)})

		if resp.Filename != "q3.csv" || resp.Size != len(content) {
			t.Fatalf("resp = %+v", resp)
		}
		decoded, err := base64.StdEncoding.DecodeString(resp.ContentBase64)
		if err != nil {
			t.Fatal(err)
		}
		if string(decoded) != string(content) {
			t.Fatalf("content mismatch: got %q", string(decoded))
		}
	})

	t.Run("oversized", func(t *testing.T) {
		r := runToolExpectError(t, ToolGetAttachment, h.getAttachment, map[string]any{"attachment_id": float64(11)})
		if txt := resultText(t, r); !strings.Contains(txt, "too large") {
			t.Fatalf("expected 'too large' error, got: %s", txt)
		}
	})

	errorCases := []struct {
		name string
		args map[string]any
	}{
		{"missing attachment_id", map[string]any{}},
		{"non-integer id", map[string]any{"attachment_id": float64(1.5)}},
		{"fetch failure", map[string]any{"attachment_id": float64(999)}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			runToolExpectError(t, ToolGetAttachment, h.getAttachment, tt.args)
		})
	}
}

func TestListContacts(t *testing.T) {
	gw := &gatewaytest.MockGateway{ContactList: []mail.Contact{
		{ID: 1, Name: "Bob", Emails: []string{"bob@example.com"}},
		{ID: 2, Name: "Carol", Emails: []string{"carol@example.com", "c@work.example"}},
	}}
	h := newHandlers(gw)

	got := runTool[[]struct {
		ID     int64    `json:"id"`
		Name   string   `json:"name"`
		Emails []string `json:"emails"`
	}](t, ToolListContacts, h.listContacts, nil)
	if len(got) != 2 || got[1].Name != "Carol" || len(got[1].Emails) != 2 {
		t.Fatalf("contacts = %+v", got)
	}
	if calls := gw.CallsTo("ListContacts"); len(calls) != 1 || calls[0].Arg != "true" {
		t.Errorf("ListContacts calls = %+v, want ascending", calls)
	}
}

func TestIntArgClamping(t *testing.T) {
	tests := []struct {
		name string
		val  float64
		want int
	}{
		{"negative clamped to 0", -5, 0},
		{"zero stays zero", 0, 0},
		{"normal value", 50, 50},
		{"above max clamped", 5000, maxLimit},
		{"huge float clamped", 1e18, maxLimit},
		{"NaN clamped to 0", math.NaN(), 0},
		{"Inf clamped", math.Inf(1), maxLimit},
		{"negative Inf clamped to 0", math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := limitArg(map[string]any{"x": tt.val}, "x", 20)
			if got != tt.want {
				t.Fatalf("limitArg(%v) = %d, want %d", tt.val, got, tt.want)
			}
		})
	}
}
