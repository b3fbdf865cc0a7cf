// Package mcp exposes the signed-in mailbox to AI assistants as Model
// Context Protocol tools served over stdio.
package mcp

import (
	"context"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wesm/inboxctl/internal/gateway"
	"github.com/wesm/inboxctl/internal/mail"
)

// Tool name constants.
const (
	ToolListFolders    = "list_folders"
	ToolListMessages   = "list_messages"
	ToolSearchMessages = "search_messages"
	ToolGetMessage     = "get_message"
	ToolGetAttachment  = "get_attachment"
	ToolListContacts   = "list_contacts"
)

// Common argument helpers for recurring tool option definitions.

func withLimit(defaultDesc string) mcp.ToolOption {
	return mcp.WithNumber("limit",
		mcp.Description("Maximum results to return (default "+defaultDesc+")"),
	)
}

func withOffset() mcp.ToolOption {
	return mcp.WithNumber("offset",
		mcp.Description("Number of results to skip for pagination (default 0)"),
	)
}

func withFolder(desc string) mcp.ToolOption {
	return mcp.WithString("folder",
		mcp.Description(desc+" (default inbox)"),
	)
}

// Serve creates an MCP server with read-only mailbox tools for user and
// serves over stdio. It blocks until stdin is closed or ctx is cancelled.
func Serve(ctx context.Context, gw gateway.Gateway, user mail.User, version string) error {
	s := NewServer(gw, user, version)
	stdio := server.NewStdioServer(s)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// NewServer registers the mailbox tools on a new MCP server.
func NewServer(gw gateway.Gateway, user mail.User, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"inboxctl",
		version,
		server.WithToolCapabilities(false),
	)

	h := &handlers{gw: gw, user: user, now: time.Now}

	s.AddTool(listFoldersTool(), h.listFolders)
	s.AddTool(listMessagesTool(), h.listMessages)
	s.AddTool(searchMessagesTool(), h.searchMessages)
	s.AddTool(getMessageTool(), h.getMessage)
	s.AddTool(getAttachmentTool(), h.getAttachment)
	s.AddTool(listContactsTool(), h.listContacts)
	return s
}

func listFoldersTool() mcp.Tool {
	return mcp.NewTool(ToolListFolders,
		mcp.WithDescription("List the mailbox folders: the system folders (inbox, sent, drafts, spam, trash) followed by custom folders."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func listMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolListMessages,
		mcp.WithDescription("List message summaries in one folder, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		withFolder("Folder to list"),
		mcp.WithBoolean("unread_only",
			mcp.Description("Only unread messages"),
		),
		withLimit("20"),
		withOffset(),
	)
}

func searchMessagesTool() mcp.Tool {
	return mcp.NewTool(ToolSearchMessages,
		mcp.WithDescription("Search every folder. Plain text matches sender, receiver, subject or body. Operators narrow the search: from:, to:, subject:, has:attachment, is:read, is:unread, on:, after:, before: (YYYY-MM-DD), newer_than:, older_than: (7d, 2w, 1m, 1y)."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text or operator query (e.g. 'from:carol has:attachment newer_than:2w')"),
		),
		withLimit("20"),
		withOffset(),
	)
}

func getMessageTool() mcp.Tool {
	return mcp.NewTool(ToolGetMessage,
		mcp.WithDescription("Get a full message including body text and attachment IDs."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Message ID"),
		),
		withFolder("Folder holding the message"),
	)
}

func getAttachmentTool() mcp.Tool {
	return mcp.NewTool(ToolGetAttachment,
		mcp.WithDescription("Get attachment content by attachment ID. Returns base64-encoded content. Use get_message first to find attachment IDs."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithNumber("attachment_id",
			mcp.Required(),
			mcp.Description("Attachment ID (from get_message response)"),
		),
	)
}

func listContactsTool() mcp.Tool {
	return mcp.NewTool(ToolListContacts,
		mcp.WithDescription("List address book contacts sorted by name."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}
