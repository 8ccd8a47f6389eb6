package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/reposcope/reposcope/internal/indexer"
	"github.com/reposcope/reposcope/internal/searcher"
	"github.com/reposcope/reposcope/internal/storage"
	"github.com/reposcope/reposcope/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeIndexInProgress = -32002 // Another indexing run is already active
	ErrorCodeNotFound        = -32003 // Requested entity does not exist
)

// MCPError carries a protocol error code back through the framework.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// handleIndexRepository runs a full indexing pass over a repository root.
func (s *Server) handleIndexRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, missingParam("path")
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, newMCPError(ErrorCodeInvalidParams, "path must be an existing directory", map[string]interface{}{
			"param": "path",
			"value": path,
		})
	}

	result, err := s.indexer.IndexRepository(ctx, repository, path)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexInProgress, "an indexing run is already active", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(indexResultPayload(result))), nil
}

// handleReindexFile forces one file through the pipeline.
func (s *Server) handleReindexFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}
	filePath, ok := args["file_path"].(string)
	if !ok || filePath == "" {
		return nil, missingParam("file_path")
	}

	result, err := s.indexer.ReindexFile(ctx, repository, filePath)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexInProgress, "an indexing run is already active", nil)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotFound, "repository not indexed", map[string]interface{}{
			"repository": repository,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "reindex failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(indexResultPayload(result))), nil
}

// handleSearchCode runs lexical, vector, or hybrid retrieval.
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, missingParam("query")
	}

	req := searcher.SearchRequest{
		Repository:  repository,
		Query:       query,
		Mode:        searcher.SearchMode(getStringDefault(args, "mode", string(searcher.SearchModeHybrid))),
		Domain:      types.EmbeddingDomain(getStringDefault(args, "domain", string(types.DomainText))),
		Limit:       getIntDefault(args, "limit", 10),
		MinScore:    getFloatDefault(args, "min_score", 0),
		MaxDistance: getFloatDefault(args, "max_distance", 0),
		UseCache:    getBoolDefault(args, "use_cache", true),
	}

	resp, err := s.searcher.Search(ctx, req)
	if errors.Is(err, types.ErrInvalidQuery) {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"chunk_id":   r.ChunkID,
			"rank":       r.Rank,
			"score":      r.Score,
			"name_path":  r.Chunk.NamePath,
			"file_path":  r.Chunk.FilePath,
			"chunk_type": string(r.Chunk.ChunkType),
			"language":   r.Chunk.Language,
			"signature":  r.Chunk.Signature,
			"start_line": r.Chunk.StartLine,
			"end_line":   r.Chunk.EndLine,
		})
	}
	payload := map[string]interface{}{
		"results":         results,
		"total_results":   resp.TotalResults,
		"mode":            string(resp.Mode),
		"cache_hit":       resp.CacheHit,
		"duration_ms":     resp.Duration.Milliseconds(),
		"lexical_results": resp.LexicalResults,
		"vector_results":  resp.VectorResults,
	}
	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// handleGetChunk fetches one chunk with full content.
func (s *Server) handleGetChunk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	chunkID := int64(getIntDefault(args, "chunk_id", 0))
	if chunkID <= 0 {
		return nil, missingParam("chunk_id")
	}

	chunk, err := s.storage.GetChunk(ctx, chunkID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotFound, "chunk not found", map[string]interface{}{
			"chunk_id": chunkID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load chunk", map[string]interface{}{
			"error": err.Error(),
		})
	}

	payload := map[string]interface{}{
		"chunk_id":   chunk.ID,
		"repository": chunk.Repository,
		"file_path":  chunk.FilePath,
		"language":   chunk.Language,
		"chunk_type": string(chunk.ChunkType),
		"name":       chunk.Name,
		"name_path":  chunk.NamePath,
		"signature":  chunk.Signature,
		"docstring":  chunk.Docstring,
		"content":    chunk.Content,
		"start_line": chunk.StartLine,
		"end_line":   chunk.EndLine,
		"complexity": chunk.Complexity,
		"line_count": chunk.LineCount,
		"imports":    chunk.Imports,
		"calls":      chunk.Calls,
	}
	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// handleGraphTraverse walks the dependency graph from a named symbol.
func (s *Server) handleGraphTraverse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}
	namePath, ok := args["name_path"].(string)
	if !ok || namePath == "" {
		return nil, missingParam("name_path")
	}
	direction := types.Direction(getStringDefault(args, "direction", string(types.DirectionForward)))
	maxDepth := getIntDefault(args, "max_depth", 3)

	start, err := s.storage.FindNodeByNamePath(ctx, repository, namePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotFound, "symbol not found in graph", map[string]interface{}{
			"name_path": namePath,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to resolve symbol", map[string]interface{}{
			"error": err.Error(),
		})
	}

	sub, err := s.traverser.Traverse(ctx, start.ID, direction, maxDepth)
	if errors.Is(err, types.ErrInvalidQuery) {
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "traversal failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	nodes := make([]map[string]interface{}, 0, len(sub.Nodes))
	for _, node := range sub.Nodes {
		nodes = append(nodes, map[string]interface{}{
			"node_id":   node.ID,
			"label":     node.Label,
			"kind":      string(node.Kind),
			"file_path": node.FilePath,
		})
	}
	edges := make([]map[string]interface{}, 0, len(sub.Edges))
	for _, edge := range sub.Edges {
		edges = append(edges, map[string]interface{}{
			"source_id": edge.SourceID,
			"target_id": edge.TargetID,
			"relation":  string(edge.Relation),
		})
	}
	payload := map[string]interface{}{
		"start_node": start.ID,
		"direction":  string(direction),
		"max_depth":  maxDepth,
		"nodes":      nodes,
		"edges":      edges,
	}
	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// handleShortestPath finds a minimum-hop route between two symbols. An
// unreachable target is a negative result, not an error.
func (s *Server) handleShortestPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	repository, ok := args["repository"].(string)
	if !ok || repository == "" {
		return nil, missingParam("repository")
	}
	fromPath, ok := args["from"].(string)
	if !ok || fromPath == "" {
		return nil, missingParam("from")
	}
	toPath, ok := args["to"].(string)
	if !ok || toPath == "" {
		return nil, missingParam("to")
	}

	from, err := s.storage.FindNodeByNamePath(ctx, repository, fromPath)
	if err != nil {
		return nil, nodeLookupError(fromPath, err)
	}
	to, err := s.storage.FindNodeByNamePath(ctx, repository, toPath)
	if err != nil {
		return nil, nodeLookupError(toPath, err)
	}

	path, err := s.traverser.ShortestPath(ctx, from.ID, to.ID)
	if errors.Is(err, types.ErrNoPath) {
		payload := map[string]interface{}{
			"found": false,
			"from":  fromPath,
			"to":    toPath,
		}
		return mcp.NewToolResultText(formatJSON(payload)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "path search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	labels := make([]string, 0, len(path.NodeIDs))
	nodes, err := s.storage.GetNodes(ctx, path.NodeIDs)
	if err == nil {
		for _, node := range nodes {
			labels = append(labels, node.Label)
		}
	}
	payload := map[string]interface{}{
		"found":    true,
		"from":     fromPath,
		"to":       toPath,
		"length":   path.Length,
		"node_ids": path.NodeIDs,
		"labels":   labels,
	}
	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// handleCacheStats reports per-tier hit/miss counters.
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cache == nil {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"enabled": false,
		})), nil
	}

	stats := s.cache.Stats()
	payload := map[string]interface{}{
		"enabled":  true,
		"degraded": s.cache.Degraded(),
		"local": map[string]interface{}{
			"hits":   stats.Local.Hits,
			"misses": stats.Local.Misses,
			"size":   stats.Local.Size,
		},
		"shared": map[string]interface{}{
			"hits":   stats.Shared.Hits,
			"misses": stats.Shared.Misses,
			"size":   stats.Shared.Size,
		},
		"backend_loads": stats.Backend,
	}
	return mcp.NewToolResultText(formatJSON(payload)), nil
}

// Helper functions

func indexResultPayload(result *indexer.Result) map[string]interface{} {
	payload := map[string]interface{}{
		"repository":     result.Repository,
		"run_id":         result.RunID,
		"files_indexed":  result.FilesIndexed,
		"files_skipped":  result.FilesSkipped,
		"files_removed":  result.FilesRemoved,
		"files_failed":   result.FilesFailed,
		"chunks_created": result.ChunksCreated,
		"duration_ms":    result.Duration.Milliseconds(),
	}
	if len(result.Errors) > 0 {
		limit := len(result.Errors)
		if limit > 5 {
			limit = 5
		}
		messages := make([]string, 0, limit)
		for _, indexErr := range result.Errors[:limit] {
			messages = append(messages, indexErr.Error())
		}
		payload["errors"] = messages
		payload["error_count"] = len(result.Errors)
	}
	return payload
}

func missingParam(name string) error {
	return newMCPError(ErrorCodeInvalidParams, name+" parameter is required", map[string]interface{}{
		"param":  name,
		"reason": "missing or empty",
	})
}

func nodeLookupError(namePath string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return newMCPError(ErrorCodeNotFound, "symbol not found in graph", map[string]interface{}{
			"name_path": namePath,
		})
	}
	return newMCPError(ErrorCodeInternalError, "failed to resolve symbol", map[string]interface{}{
		"error": err.Error(),
	})
}

func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
