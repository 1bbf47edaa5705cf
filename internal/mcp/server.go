package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/Hazer/ArtifactFinder/internal/finder"
)

const (
	// ServerName is the MCP server name
	ServerName = "artifactfinder"
)

// ServerVersion is the reported server version, set by the CLI from build info
var ServerVersion = "dev"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	finder *finder.Finder
	logger *zap.Logger
}

// NewServer creates a new MCP server over f. The caller keeps ownership of f.
func NewServer(f *finder.Finder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:    mcpServer,
		finder: f,
		logger: logger,
	}
	s.registerTools()

	return s
}

// Serve starts the MCP server on stdio and blocks until stdin closes or ctx
// is cancelled
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", zap.String("version", ServerVersion))
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchArtifactsTool(), s.handleSearchArtifacts)
	s.mcp.AddTool(addPendingArtifactTool(), s.handleAddPendingArtifact)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(syncIndexTool(), s.handleSyncIndex)
}
