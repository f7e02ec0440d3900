package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/semcache/internal/indexer"
	"github.com/dshills/semcache/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "semcache"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Backend is the engine surface exposed as MCP tools
type Backend interface {
	Search(ctx context.Context, req types.SearchRequest) ([]types.RankedResult, error)
	Health(ctx context.Context) (*types.Health, error)
	Ingest(ctx context.Context, dir string) (*indexer.Statistics, error)
	IndexingInProgress() bool
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	backend Backend
	logger  zerolog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(backend Backend, logger zerolog.Logger) *Server {
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:     mcpServer,
		backend: backend,
		logger:  logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("name", ServerName).Msg("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(ingestDocumentsTool(), s.handleIngestDocuments)
}
