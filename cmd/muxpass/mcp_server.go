package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest6511/muxpass/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

// mcpServerCmd starts the MCP server for AI coding assistant integration
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start the MCP server for AI coding assistant integration",
	Long: `Start a read-only MCP server over stdio.

Agents can list credential names and links, check whether a credential
exists, and read the lock status. Passwords are never returned.

Available tools:
  - credential_list:   List names, links and password lengths
  - credential_exists: Check whether a name is stored
  - lock_status:       Report lock and PIN state

Example MCP configuration:
  {
    "mcpServers": {
      "muxpass": {
        "type": "stdio",
        "command": "/path/to/muxpass",
        "args": ["mcp-server"]
      }
    }
  }`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer()
	},
}

func runMCPServer() error {
	s, err := openService()
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(s, &mcp.ServerOptions{
		Version: version,
		Logger:  logger.Named("mcp"),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		// Don't report context canceled as an error
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
