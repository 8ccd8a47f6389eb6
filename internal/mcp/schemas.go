package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexRepositoryTool returns the tool definition for index_repository
func indexRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repository",
		Description: "Index a source repository: parse, chunk, embed, and build its dependency graph",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Logical repository name the index is stored under",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the repository root directory",
				},
			},
			Required: []string{"repository", "path"},
		},
	}
}

// reindexFileTool returns the tool definition for reindex_file
func reindexFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_file",
		Description: "Force a single file through the indexing pipeline, ignoring its content hash",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name",
				},
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the repository root",
				},
			},
			Required: []string{"repository", "file_path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed code with trigram, vector, or fused hybrid retrieval",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name to search in",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or code fragment)",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy",
					"enum":        []string{"hybrid", "vector", "lexical"},
					"default":     "hybrid",
				},
				"domain": map[string]interface{}{
					"type":        "string",
					"description": "Embedding channel for the vector side: text matches docs/signatures, code matches raw source",
					"enum":        []string{"text", "code"},
					"default":     "text",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Lexical score floor; results below it are dropped",
				},
				"max_distance": map[string]interface{}{
					"type":        "number",
					"description": "Vector cosine-distance ceiling; 0 disables",
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "Serve from and populate the result cache",
					"default":     true,
				},
			},
			Required: []string{"repository", "query"},
		},
	}
}

// getChunkTool returns the tool definition for get_chunk
func getChunkTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_chunk",
		Description: "Fetch one indexed chunk with full content and metadata",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_id": map[string]interface{}{
					"type":        "integer",
					"description": "Chunk identifier from a search or graph result",
				},
			},
			Required: []string{"chunk_id"},
		},
	}
}

// graphTraverseTool returns the tool definition for graph_traverse
func graphTraverseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "graph_traverse",
		Description: "Walk the dependency graph from a symbol, bounded by depth",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name",
				},
				"name_path": map[string]interface{}{
					"type":        "string",
					"description": "Qualified symbol name to start from, e.g. 'pkg.module.Class.method'",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"description": "forward follows dependencies, backward follows dependents",
					"enum":        []string{"forward", "backward", "both"},
					"default":     "forward",
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Traversal depth bound (1-10)",
					"default":     3,
					"minimum":     1,
					"maximum":     10,
				},
			},
			Required: []string{"repository", "name_path"},
		},
	}
}

// shortestPathTool returns the tool definition for shortest_path
func shortestPathTool() mcp.Tool {
	return mcp.Tool{
		Name:        "shortest_path",
		Description: "Find the minimum-hop dependency route between two symbols",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository name",
				},
				"from": map[string]interface{}{
					"type":        "string",
					"description": "Qualified name of the start symbol",
				},
				"to": map[string]interface{}{
					"type":        "string",
					"description": "Qualified name of the target symbol",
				},
			},
			Required: []string{"repository", "from", "to"},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report result-cache hit/miss counters per tier and degradation state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
