package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/reposcope/reposcope/internal/cache"
	"github.com/reposcope/reposcope/internal/graph"
	"github.com/reposcope/reposcope/internal/indexer"
	"github.com/reposcope/reposcope/internal/searcher"
	"github.com/reposcope/reposcope/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "reposcope"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Deps carries the wired application components the server adapts.
type Deps struct {
	Storage  storage.Storage
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Cache    *cache.Manager // May be nil
	Logger   *zap.Logger
}

// Server exposes the core operations as MCP tools over stdio. It holds no
// logic of its own; handlers translate arguments, delegate, and format.
type Server struct {
	mcp       *server.MCPServer
	storage   storage.Storage
	indexer   *indexer.Indexer
	searcher  *searcher.Searcher
	traverser *graph.Traverser
	cache     *cache.Manager
	logger    *zap.Logger
}

// NewServer creates an MCP server over already-constructed components.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion),
		storage:   deps.Storage,
		indexer:   deps.Indexer,
		searcher:  deps.Searcher,
		traverser: graph.NewTraverser(deps.Storage),
		cache:     deps.Cache,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdio and blocks until the transport closes.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(reindexFileTool(), s.handleReindexFile)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getChunkTool(), s.handleGetChunk)
	s.mcp.AddTool(graphTraverseTool(), s.handleGraphTraverse)
	s.mcp.AddTool(shortestPathTool(), s.handleShortestPath)
	s.mcp.AddTool(cacheStatsTool(), s.handleCacheStats)
}
