package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reposcope/reposcope/internal/cache"
	"github.com/reposcope/reposcope/internal/embedder"
	"github.com/reposcope/reposcope/internal/graph"
	"github.com/reposcope/reposcope/internal/storage"
	"github.com/reposcope/reposcope/pkg/types"
)

func setupStore(t *testing.T) *storage.SQLiteStorage {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func setupIndexer(t *testing.T, store *storage.SQLiteStorage) *Indexer {
	dual, err := embedder.NewDual(
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.DefaultCacheSize,
	)
	require.NoError(t, err)
	t.Cleanup(func() { dual.Close() })
	return New(store, dual, nil, zap.NewNop(), &Config{Workers: 2})
}

// writeRepo materializes a file tree under a temp dir and returns its root.
func writeRepo(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

const appSource = `def parse(path):
    return load(path)

def load(path):
    return open(path).read()
`

func TestIndexRepository(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{"app.py": appSource})

	result, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesIndexed)
	assert.Zero(t, result.FilesSkipped)
	assert.Zero(t, result.FilesFailed)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.RunID)
	// File chunk plus two function chunks
	assert.Equal(t, 3, result.ChunksCreated)

	repo, err := store.GetRepository(ctx, "myrepo")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.TotalFiles)
	assert.Equal(t, 3, repo.TotalChunks)
	assert.False(t, repo.LastIndexedAt.IsZero())

	file, err := store.GetFile(ctx, "myrepo", "app.py")
	require.NoError(t, err)
	assert.Equal(t, "python", file.Language)
	assert.Nil(t, file.ParseError)

	chunks, err := store.ListChunks(ctx, storage.ChunkFilter{Repository: "myrepo"})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	// Both embedding domains are populated for every chunk
	for _, chunk := range chunks {
		_, err := store.GetEmbedding(ctx, chunk.ID, types.DomainCode)
		assert.NoError(t, err, "code vector for %s", chunk.NamePath)
	}

	state, err := store.GetMeta(ctx, "index_state:myrepo")
	require.NoError(t, err)
	assert.Equal(t, result.RunID, state)
}

func TestIndexRepositoryBuildsCallGraph(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{"app.py": appSource})
	_, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)

	caller, err := store.FindNodeByNamePath(ctx, "myrepo", "app.parse")
	require.NoError(t, err)
	callee, err := store.FindNodeByNamePath(ctx, "myrepo", "app.load")
	require.NoError(t, err)

	edges, err := store.OutEdges(ctx, caller.ID)
	require.NoError(t, err)
	found := false
	for _, edge := range edges {
		if edge.TargetID == callee.ID && edge.Relation == types.RelationCalls {
			found = true
		}
	}
	assert.True(t, found, "parse should call load")

	traverser := graph.NewTraverser(store)
	dependents, err := traverser.Dependents(ctx, callee.ID)
	require.NoError(t, err)
	labels := make([]string, 0, len(dependents))
	for _, node := range dependents {
		labels = append(labels, node.Label)
	}
	assert.Contains(t, labels, "app.parse")
}

func TestIndexRepositorySkipsUnchangedFiles(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{"app.py": appSource})

	first, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	require.Equal(t, 1, first.FilesIndexed)

	second, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	assert.Zero(t, second.FilesIndexed)
	assert.Equal(t, 1, second.FilesSkipped)

	// Byte-identical content keeps the state marker, so cached results
	// remain valid
	assert.Equal(t, first.RunID, second.RunID)
	state, err := store.GetMeta(ctx, "index_state:myrepo")
	require.NoError(t, err)
	assert.Equal(t, first.RunID, state)
}

func TestIndexRepositoryReindexesModifiedFiles(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{"app.py": appSource})
	_, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)

	updated := appSource + "\ndef save(path):\n    return write(path)\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.py"), []byte(updated), 0o644))

	result, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)

	chunks, err := store.ListChunks(ctx, storage.ChunkFilter{Repository: "myrepo", NamePath: "app.save"})
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestIndexRepositoryRemovesDeletedFiles(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{
		"app.py":  appSource,
		"util.py": "def helper():\n    return 1\n",
	})
	first, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	require.Equal(t, 2, first.FilesIndexed)

	require.NoError(t, os.Remove(filepath.Join(root, "util.py")))

	second, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	assert.Equal(t, 1, second.FilesRemoved)

	_, err = store.GetFile(ctx, "myrepo", "util.py")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	chunks, err := store.ListChunks(ctx, storage.ChunkFilter{Repository: "myrepo", FilePath: "util.py"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDiscoverSkipsHiddenAndExcludedDirs(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{
		"app.py":                  appSource,
		".git/hooks/ignored.py":   "def hook():\n    pass\n",
		"node_modules/pkg/dep.py": "def dep():\n    pass\n",
		"notes.txt":               "not source",
	})

	result, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)

	files, err := store.ListFiles(ctx, "myrepo")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "app.py", files[0].FilePath)
}

func TestIndexRepositoryRecordsParseErrors(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{
		"app.py":    appSource,
		"broken.py": "def broken(:\n    ???\n",
	})

	result, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	// Best-effort parsing: the broken file is still indexed, flagged
	assert.Equal(t, 2, result.FilesIndexed)

	file, err := store.GetFile(ctx, "myrepo", "broken.py")
	require.NoError(t, err)
	require.NotNil(t, file.ParseError)
}

func TestIndexRepositoryOversizeFilesSkipped(t *testing.T) {
	store := setupStore(t)
	dual, err := embedder.NewDual(
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.DefaultCacheSize,
	)
	require.NoError(t, err)
	t.Cleanup(func() { dual.Close() })
	idx := New(store, dual, nil, zap.NewNop(), &Config{Workers: 1, MaxFileSize: 16})

	root := writeRepo(t, map[string]string{"app.py": appSource})

	result, err := idx.IndexRepository(context.Background(), "myrepo", root)
	require.NoError(t, err)
	assert.Zero(t, result.FilesIndexed)
	assert.Equal(t, 1, result.FilesSkipped)
}

func TestReindexFileForcesUnchangedContent(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{"app.py": appSource})
	first, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)

	result, err := idx.ReindexFile(ctx, "myrepo", "app.py")
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesIndexed)
	assert.Zero(t, result.FilesSkipped)
	assert.NotEqual(t, first.RunID, result.RunID)
}

func TestIndexRepositoryInvalidatesCache(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	shared := cache.NewMemorySharedCache(cache.DefaultSharedCapacity, time.Minute)
	manager := cache.NewManager(64, shared, time.Minute, zap.NewNop())
	t.Cleanup(func() { manager.Close() })

	dual, err := embedder.NewDual(
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.DefaultCacheSize,
	)
	require.NoError(t, err)
	t.Cleanup(func() { dual.Close() })
	idx := New(store, dual, manager, zap.NewNop(), &Config{Workers: 1})

	manager.Set(ctx, "myrepo", "query", "stale-state", []byte(`{}`))
	_, hit := manager.Get(ctx, "myrepo", "query", "stale-state")
	require.True(t, hit)

	root := writeRepo(t, map[string]string{"app.py": appSource})
	result, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)

	// The run rotated the index state, so lookups under the current state
	// cannot see the old entry
	state, err := store.GetMeta(ctx, "index_state:myrepo")
	require.NoError(t, err)
	require.Equal(t, result.RunID, state)
	require.NotEqual(t, "stale-state", state)

	_, hit = manager.Get(ctx, "myrepo", "query", state)
	assert.False(t, hit)
}

func TestUnchangedRunKeepsCacheValid(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	shared := cache.NewMemorySharedCache(cache.DefaultSharedCapacity, time.Minute)
	manager := cache.NewManager(64, shared, time.Minute, zap.NewNop())
	t.Cleanup(func() { manager.Close() })

	dual, err := embedder.NewDual(
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.Config{Provider: embedder.ProviderLocal},
		embedder.DefaultCacheSize,
	)
	require.NoError(t, err)
	t.Cleanup(func() { dual.Close() })
	idx := New(store, dual, manager, zap.NewNop(), &Config{Workers: 1})

	root := writeRepo(t, map[string]string{"app.py": appSource})
	first, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)

	manager.Set(ctx, "myrepo", "query", first.RunID, []byte(`{"results":[]}`))

	// Byte-identical content: every file hash-skips, the state marker
	// stays put and the cached entry remains reachable
	second, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	require.Equal(t, 1, second.FilesSkipped)
	assert.Equal(t, first.RunID, second.RunID)

	payload, hit := manager.Get(ctx, "myrepo", "query", second.RunID)
	require.True(t, hit)
	assert.JSONEq(t, `{"results":[]}`, string(payload))
}

func TestCircularImportsIndexAndTraverse(t *testing.T) {
	store := setupStore(t)
	idx := setupIndexer(t, store)
	ctx := context.Background()

	root := writeRepo(t, map[string]string{
		"a.py": "import b\n\ndef fa():\n    return b.fb()\n",
		"b.py": "import a\n\ndef fb():\n    return a.fa()\n",
	})

	result, err := idx.IndexRepository(ctx, "myrepo", root)
	require.NoError(t, err)
	require.Equal(t, 2, result.FilesIndexed)

	moduleA, err := store.FindNodeByNamePath(ctx, "myrepo", "a")
	require.NoError(t, err)

	// The import cycle must not hang a bidirectional walk
	traverser := graph.NewTraverser(store)
	sub, err := traverser.Traverse(ctx, moduleA.ID, types.DirectionBoth, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, sub.Nodes)
}

func TestRunLock(t *testing.T) {
	var lock runLock
	require.True(t, lock.TryAcquire())
	assert.False(t, lock.TryAcquire())
	lock.Release()
	assert.True(t, lock.TryAcquire())
}
