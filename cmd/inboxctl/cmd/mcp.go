package cmd

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/wesm/inboxctl/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run MCP server for AI assistant integration",
	Long: `Start an MCP (Model Context Protocol) server over stdio.

This lets any MCP client read the configured mailbox through the gateway
with tools like list_folders, list_messages, search_messages,
get_message, get_attachment and list_contacts. The tools are read-only.

Add to the client's MCP config:
  {
    "mcpServers": {
      "inboxctl": {
        "command": "inboxctl",
        "args": ["mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		logger.Info("mcp server starting", "user", c.user.Email, "gateway", cfg.Gateway.URL)
		return mcpserver.Serve(cmd.Context(), c.gw, c.user, Version)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
