package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Chavalentas/Semantic-Search-Project/internal/search"
	"github.com/Chavalentas/Semantic-Search-Project/internal/storage"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Search  *search.Service
	Storage storage.Store
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "paper-search-server",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_titles",
		Description: "Search paper titles. Mode semantic ranks by embedding similarity, mode lexical by case-insensitive occurrence count of the query.",
	}, makeSearchTitlesHandler(cfg.Search))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_abstracts",
		Description: "Search paper abstracts. Semantic mode returns each paper with its matching abstract sentences; lexical mode ranks papers by occurrence count.",
	}, makeSearchAbstractsHandler(cfg.Search))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the number of stored papers and chunks and whether the title and abstract search indexes exist.",
	}, makeStatusHandler(cfg.Storage))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
