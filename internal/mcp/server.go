// Package mcp implements the MCP (Model Context Protocol) server for muxpass.
// Agents can see which credentials exist and whether the session is locked;
// they never receive a password.
package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/forest6511/muxpass/internal/app"
)

// Server represents the MCP server for muxpass.
type Server struct {
	server *mcp.Server
	svc    *app.Service
	logger *zap.Logger
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	// Version is reported to clients during initialisation.
	Version string

	// Logger receives tool call logs. Defaults to a no-op logger.
	Logger *zap.Logger
}

// NewServer creates a new MCP server over svc. The caller keeps ownership
// of svc.
func NewServer(svc *app.Service, opts *ServerOptions) (*Server, error) {
	if svc == nil {
		return nil, errors.New("mcp: service is required")
	}
	if opts == nil {
		opts = &ServerOptions{}
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "muxpass",
			Version: version,
		},
		nil,
	)

	s := &Server{
		server: mcpServer,
		svc:    svc,
		logger: logger,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_list",
		Description: "List stored credentials: name, link and password length. Accepts an optional glob pattern on the name. Does NOT return passwords.",
	}, s.handleCredentialList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_exists",
		Description: "Check whether a credential with the given name exists and return its links. Does NOT return the password.",
	}, s.handleCredentialExists)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lock_status",
		Description: "Report whether the muxpass session is locked and whether a PIN is configured.",
	}, s.handleLockStatus)
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server started")
	defer s.logger.Info("mcp server stopped")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
