package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wesm/inboxctl/internal/filter"
	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

const maxLimit = 1000

const maxAttachmentSize = 50 * 1024 * 1024 // 50MB

var errAttachmentTooLarge = fmt.Errorf("attachment too large (max %d bytes)", maxAttachmentSize)

type handlers struct {
	gw   gateway.Gateway
	user mail.User
	now  func() time.Time
}

type messageSummary struct {
	ID             int64     `json:"id"`
	Folder         string    `json:"folder"`
	Sender         string    `json:"sender"`
	Receiver       string    `json:"receiver"`
	Subject        string    `json:"subject"`
	Timestamp      time.Time `json:"timestamp"`
	Priority       int       `json:"priority"`
	IsRead         bool      `json:"is_read"`
	HasAttachments bool      `json:"has_attachments"`
}

type attachmentRef struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

type messageDetail struct {
	messageSummary
	Body        string          `json:"body"`
	Attachments []attachmentRef `json:"attachments"`
}

func summarize(m mail.Message) messageSummary {
	return messageSummary{
		ID:             m.ID,
		Folder:         m.FolderName,
		Sender:         m.Sender,
		Receiver:       m.Receiver,
		Subject:        m.Subject,
		Timestamp:      m.Timestamp,
		Priority:       m.Priority,
		IsRead:         m.IsRead,
		HasAttachments: m.HasAttachments(),
	}
}

// page applies offset and limit to msgs and converts them to summaries.
func page(msgs []mail.Message, offset, limit int) []messageSummary {
	out := []messageSummary{}
	for i := offset; i < len(msgs) && len(out) < limit; i++ {
		out = append(out, summarize(msgs[i]))
	}
	return out
}

// getIDArg extracts a required positive integer ID from the arguments map.
func getIDArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	if v != math.Trunc(v) || v < 1 || v > math.MaxInt64 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return int64(v), nil
}

func folderArg(args map[string]any) string {
	if v, ok := args["folder"].(string); ok && v != "" {
		return v
	}
	return mail.FolderInbox
}

func (h *handlers) listFolders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	custom, err := h.gw.ListFolders(ctx, h.user)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list folders failed: %v", err)), nil
	}
	return jsonResult(append(mail.SystemFolders(), custom...))
}

func (h *handlers) listMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	msgs, err := h.gw.ListFolder(ctx, h.user, folderArg(args))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if v, ok := args["unread_only"].(bool); ok && v {
		unread := msgs[:0]
		for _, m := range msgs {
			if !m.IsRead {
				unread = append(unread, m)
			}
		}
		msgs = unread
	}
	return jsonResult(page(msgs, limitArg(args, "offset", 0), limitArg(args, "limit", 20)))
}

func (h *handlers) searchMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	line, _ := args["query"].(string)
	if line == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	var (
		msgs []mail.Message
		err  error
	)
	if filter.HasOperators(line) {
		q, perr := filter.ParseQuery(h.user.ID, line, h.now())
		if perr != nil {
			return mcp.NewToolResultError(perr.Error()), nil
		}
		msgs, err = h.gw.Filter(ctx, h.user.ID, q.Criteria)
	} else {
		msgs, err = h.gw.Search(ctx, filter.ScopeAll, filter.General(h.user.ID, line))
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(page(msgs, limitArg(args, "offset", 0), limitArg(args, "limit", 20)))
}

func (h *handlers) getMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	id, err := getIDArg(args, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	folder := folderArg(args)
	msgs, err := h.gw.ListFolder(ctx, h.user, folder)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	for _, m := range msgs {
		if m.ID != id {
			continue
		}
		d := messageDetail{messageSummary: summarize(m), Body: m.Body, Attachments: []attachmentRef{}}
		for _, a := range m.Attachments {
			d.Attachments = append(d.Attachments, attachmentRef{ID: a.ID, Filename: a.FileName})
		}
		return jsonResult(d)
	}
	return mcp.NewToolResultError(fmt.Sprintf("message %d not found in %s", id, folder)), nil
}

// cappedBuffer fails writes that would grow it past max.
type cappedBuffer struct {
	bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.Len()+len(p) > b.max {
		return 0, errAttachmentTooLarge
	}
	return b.Buffer.Write(p)
}

func (h *handlers) getAttachment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	id, err := getIDArg(args, "attachment_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	buf := &cappedBuffer{max: maxAttachmentSize}
	name, err := h.gw.FetchAttachment(ctx, id, buf)
	if errors.Is(err, errAttachmentTooLarge) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get attachment failed: %v", err)), nil
	}

	resp := struct {
		Filename      string `json:"filename"`
		Size          int    `json:"size"`
		ContentBase64 string `json:"content_base64"`
	}{
		Filename:      name,
		Size:          buf.Len(),
		ContentBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}

	return jsonResult(resp)
}

func (h *handlers) listContacts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.gw.ListContacts(ctx, h.user, true)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list contacts failed: %v", err)), nil
	}
	type contact struct {
		ID     int64    `json:"id"`
		Name   string   `json:"name"`
		Emails []string `json:"emails"`
	}
	out := make([]contact, 0, len(list))
	for _, c := range list {
		out = append(out, contact{ID: c.ID, Name: c.Name, Emails: c.Emails})
	}
	return jsonResult(out)
}

// limitArg extracts a non-negative integer limit from a map, with a default.
// JSON numbers arrive as float64. Clamps to maxLimit to prevent excessive
// result sets.
func limitArg(args map[string]any, key string, def int) int {
	v, ok := args[key].(float64)
	if !ok {
		return def
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) || v > float64(maxLimit) {
		return maxLimit
	}
	return int(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
