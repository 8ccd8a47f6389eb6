package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reposcope/reposcope/internal/embedder"
	"github.com/reposcope/reposcope/internal/indexer"
	"github.com/reposcope/reposcope/internal/searcher"
	"github.com/reposcope/reposcope/internal/storage"
)

const sampleSource = `def parse(path):
    return load(path)

def load(path):
    return open(path).read()
`

// setupServer wires a server over in-memory storage with an indexed sample
// repository on disk.
func setupServer(t *testing.T) (*Server, string) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dual, err := embedder.NewDual(
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.DefaultCacheSize,
	)
	require.NoError(t, err)
	t.Cleanup(func() { dual.Close() })

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte(sampleSource), 0o644))

	idx := indexer.New(store, dual, nil, zap.NewNop(), &indexer.Config{Workers: 1})
	srch := searcher.New(store, dual, nil, zap.NewNop())

	server := NewServer(Deps{
		Storage:  store,
		Indexer:  idx,
		Searcher: srch,
	})
	return server, root
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultJSON unmarshals the text payload of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func indexSample(t *testing.T, server *Server, root string) {
	result, err := server.handleIndexRepository(context.Background(), callRequest("index_repository", map[string]interface{}{
		"repository": "myrepo",
		"path":       root,
	}))
	require.NoError(t, err)
	payload := resultJSON(t, result)
	require.EqualValues(t, 1, payload["files_indexed"])
}

func TestHandleIndexRepository(t *testing.T) {
	server, root := setupServer(t)

	result, err := server.handleIndexRepository(context.Background(), callRequest("index_repository", map[string]interface{}{
		"repository": "myrepo",
		"path":       root,
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.EqualValues(t, 1, payload["files_indexed"])
	assert.EqualValues(t, 3, payload["chunks_created"])
	assert.NotEmpty(t, payload["run_id"])
}

func TestHandleIndexRepositoryValidation(t *testing.T) {
	server, root := setupServer(t)
	ctx := context.Background()

	_, err := server.handleIndexRepository(ctx, callRequest("index_repository", map[string]interface{}{
		"path": root,
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)

	_, err = server.handleIndexRepository(ctx, callRequest("index_repository", map[string]interface{}{
		"repository": "myrepo",
		"path":       filepath.Join(root, "does-not-exist"),
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestHandleSearchCode(t *testing.T) {
	server, root := setupServer(t)
	indexSample(t, server, root)

	result, err := server.handleSearchCode(context.Background(), callRequest("search_code", map[string]interface{}{
		"repository": "myrepo",
		"query":      "parse",
		"mode":       "lexical",
		"limit":      float64(5),
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, "lexical", payload["mode"])
	results, ok := payload["results"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, results)

	first := results[0].(map[string]interface{})
	assert.Equal(t, "app.parse", first["name_path"])
	assert.Equal(t, "app.py", first["file_path"])
}

func TestHandleSearchCodeInvalidMode(t *testing.T) {
	server, root := setupServer(t)
	indexSample(t, server, root)

	_, err := server.handleSearchCode(context.Background(), callRequest("search_code", map[string]interface{}{
		"repository": "myrepo",
		"query":      "parse",
		"mode":       "fuzzy",
	}))
	requireMCPCode(t, err, ErrorCodeInvalidParams)
}

func TestHandleGetChunk(t *testing.T) {
	server, root := setupServer(t)
	indexSample(t, server, root)
	ctx := context.Background()

	chunks, err := server.storage.ListChunks(ctx, storage.ChunkFilter{Repository: "myrepo", NamePath: "app.parse"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	result, err := server.handleGetChunk(ctx, callRequest("get_chunk", map[string]interface{}{
		"chunk_id": float64(chunks[0].ID),
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, "app.parse", payload["name_path"])
	assert.Contains(t, payload["content"], "def parse")

	_, err = server.handleGetChunk(ctx, callRequest("get_chunk", map[string]interface{}{
		"chunk_id": float64(999999),
	}))
	requireMCPCode(t, err, ErrorCodeNotFound)
}

func TestHandleGraphTraverse(t *testing.T) {
	server, root := setupServer(t)
	indexSample(t, server, root)

	result, err := server.handleGraphTraverse(context.Background(), callRequest("graph_traverse", map[string]interface{}{
		"repository": "myrepo",
		"name_path":  "app.parse",
		"direction":  "forward",
		"max_depth":  float64(2),
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	nodes, ok := payload["nodes"].([]interface{})
	require.True(t, ok)

	labels := make([]string, 0, len(nodes))
	for _, raw := range nodes {
		node := raw.(map[string]interface{})
		labels = append(labels, node["label"].(string))
	}
	assert.Contains(t, labels, "app.parse")
	assert.Contains(t, labels, "app.load")
}

func TestHandleGraphTraverseUnknownSymbol(t *testing.T) {
	server, root := setupServer(t)
	indexSample(t, server, root)

	_, err := server.handleGraphTraverse(context.Background(), callRequest("graph_traverse", map[string]interface{}{
		"repository": "myrepo",
		"name_path":  "app.missing",
	}))
	requireMCPCode(t, err, ErrorCodeNotFound)
}

func TestHandleShortestPath(t *testing.T) {
	server, root := setupServer(t)
	indexSample(t, server, root)
	ctx := context.Background()

	result, err := server.handleShortestPath(ctx, callRequest("shortest_path", map[string]interface{}{
		"repository": "myrepo",
		"from":       "app.parse",
		"to":         "app.load",
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, true, payload["found"])
	assert.EqualValues(t, 1, payload["length"])

	// The call edge is directed; there is no route back
	result, err = server.handleShortestPath(ctx, callRequest("shortest_path", map[string]interface{}{
		"repository": "myrepo",
		"from":       "app.load",
		"to":         "app.parse",
	}))
	require.NoError(t, err)
	payload = resultJSON(t, result)
	assert.Equal(t, false, payload["found"])
}

func TestHandleCacheStatsWithoutCache(t *testing.T) {
	server, _ := setupServer(t)

	result, err := server.handleCacheStats(context.Background(), callRequest("cache_stats", nil))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, false, payload["enabled"])
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}
