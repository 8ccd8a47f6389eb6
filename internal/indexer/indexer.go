package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reposcope/reposcope/internal/cache"
	"github.com/reposcope/reposcope/internal/embedder"
	"github.com/reposcope/reposcope/internal/extractor"
	"github.com/reposcope/reposcope/internal/graph"
	"github.com/reposcope/reposcope/internal/parser"
	"github.com/reposcope/reposcope/internal/storage"
	"github.com/reposcope/reposcope/pkg/types"
)

// ErrIndexInProgress is returned when a run is requested while another run
// on the same Indexer is still active.
var ErrIndexInProgress = errors.New("indexing already in progress")

// DefaultMaxFileSize caps the source files the indexer will read.
const DefaultMaxFileSize = 1 << 20

// defaultExcludedDirs are skipped during discovery in every repository.
var defaultExcludedDirs = []string{
	"node_modules",
	"vendor",
	"__pycache__",
	"dist",
	"build",
	"target",
}

// Config contains configuration for the indexer
type Config struct {
	Workers     int      // Concurrent file workers (default: runtime.NumCPU())
	MaxFileSize int64    // Bytes; larger files are skipped (default: 1 MiB)
	ExcludeDirs []string // Extra directory names to skip during discovery
}

// Result summarizes one indexing run.
type Result struct {
	Repository    string
	RunID         string
	FilesIndexed  int
	FilesSkipped  int // Unchanged content hash
	FilesRemoved  int // On record but no longer on disk
	FilesFailed   int
	ChunksCreated int
	Errors        []types.IndexError // Per-file, non-fatal
	Duration      time.Duration
}

// Indexer drives the pipeline: discover -> parse -> extract -> embed ->
// persist, then a graph rebuild and a cache invalidation. One run at a
// time per Indexer; concurrent calls fail fast with ErrIndexInProgress.
type Indexer struct {
	store     storage.Storage
	parser    *parser.Parser
	extractor *extractor.Extractor
	embedder  *embedder.DualEmbedder
	graph     *graph.Builder
	cache     *cache.Manager
	logger    *zap.Logger

	workers     int
	maxFileSize int64
	excludeDirs map[string]bool

	lock runLock
}

// New creates an Indexer. embedder and cacheManager may be nil; without an
// embedder only the lexical channel is populated.
func New(store storage.Storage, dual *embedder.DualEmbedder, cacheManager *cache.Manager, logger *zap.Logger, cfg *Config) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	maxFileSize := cfg.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	excluded := make(map[string]bool, len(defaultExcludedDirs)+len(cfg.ExcludeDirs))
	for _, dir := range defaultExcludedDirs {
		excluded[dir] = true
	}
	for _, dir := range cfg.ExcludeDirs {
		excluded[dir] = true
	}

	return &Indexer{
		store:       store,
		parser:      parser.New(nil),
		extractor:   extractor.New(nil),
		embedder:    dual,
		graph:       graph.NewBuilder(store, graph.DefaultResolutionPolicy(), logger),
		cache:       cacheManager,
		logger:      logger,
		workers:     workers,
		maxFileSize: maxFileSize,
		excludeDirs: excluded,
	}
}

// IndexRepository indexes every supported source file under rootPath into
// the named repository. Files whose content hash is unchanged are skipped;
// files that disappeared from disk are de-indexed. Per-file failures are
// collected in the result, never fatal to the run.
func (idx *Indexer) IndexRepository(ctx context.Context, name, rootPath string) (*Result, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	start := time.Now()

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	repo := &storage.Repository{Name: name, RootPath: absRoot}
	if err := idx.store.UpsertRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("failed to register repository: %w", err)
	}

	files, err := idx.discoverFiles(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	result := &Result{Repository: name}

	removed, err := idx.removeMissingFiles(ctx, name, files)
	if err != nil {
		return nil, err
	}
	result.FilesRemoved = removed

	if err := idx.indexFiles(ctx, repo, files, result); err != nil {
		return nil, err
	}

	if err := idx.finishRun(ctx, repo, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	idx.logger.Info("indexing run complete",
		zap.String("repository", name),
		zap.String("run_id", result.RunID),
		zap.Int("indexed", result.FilesIndexed),
		zap.Int("skipped", result.FilesSkipped),
		zap.Int("removed", result.FilesRemoved),
		zap.Int("failed", result.FilesFailed),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// ReindexFile forces a single file through the pipeline, bypassing the
// unchanged-content check, then rebuilds the graph and rotates the index
// state.
func (idx *Indexer) ReindexFile(ctx context.Context, repository, relPath string) (*Result, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexInProgress
	}
	defer idx.lock.Release()

	start := time.Now()

	repo, err := idx.store.GetRepository(ctx, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository: %w", err)
	}

	result := &Result{Repository: repository}
	if indexErr := idx.processFile(ctx, repo, relPath, true, result, &sync.Mutex{}); indexErr != nil {
		result.FilesFailed++
		result.Errors = append(result.Errors, *indexErr)
	}

	if err := idx.finishRun(ctx, repo, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

// discoverFiles walks the tree collecting relative paths of files with a
// registered grammar. Hidden and excluded directories are pruned.
func (idx *Indexer) discoverFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			name := entry.Name()
			if path != root && (strings.HasPrefix(name, ".") || idx.excludeDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if idx.parser.Language(path) == "" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

// removeMissingFiles de-indexes files that are on record but no longer on
// disk. Chunk, embedding, and graph rows go with them through foreign keys.
func (idx *Indexer) removeMissingFiles(ctx context.Context, repository string, discovered []string) (int, error) {
	onDisk := make(map[string]bool, len(discovered))
	for _, rel := range discovered {
		onDisk[rel] = true
	}

	known, err := idx.store.ListFiles(ctx, repository)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed files: %w", err)
	}

	removed := 0
	for _, file := range known {
		if onDisk[file.FilePath] {
			continue
		}
		if err := idx.store.DeleteFile(ctx, repository, file.FilePath); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", file.FilePath, err)
		}
		removed++
	}
	return removed, nil
}

// indexFiles runs the per-file pipeline across a bounded worker pool.
// Parsing and embedding run concurrently; persistence is serialized.
func (idx *Indexer) indexFiles(ctx context.Context, repo *storage.Repository, files []string, result *Result) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	var mu sync.Mutex

	for _, relPath := range files {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if indexErr := idx.processFile(gctx, repo, relPath, false, result, &mu); indexErr != nil {
				mu.Lock()
				result.FilesFailed++
				result.Errors = append(result.Errors, *indexErr)
				mu.Unlock()
				idx.logger.Warn("file failed",
					zap.String("file", indexErr.FilePath),
					zap.String("category", string(indexErr.Category)),
					zap.String("error", indexErr.Message))
			}
			return nil
		})
	}
	return g.Wait()
}

// processFile takes one file through read -> hash -> parse -> extract ->
// embed -> persist. mu guards result counters and the persist step. A nil
// return means indexed or skipped; a non-nil return is a categorized
// per-file failure.
func (idx *Indexer) processFile(ctx context.Context, repo *storage.Repository, relPath string, force bool, result *Result, mu *sync.Mutex) *types.IndexError {
	absPath := filepath.Join(repo.RootPath, relPath)

	info, err := os.Stat(absPath)
	if err != nil {
		return fileError(relPath, types.ErrorStorage, err)
	}
	if info.Size() > idx.maxFileSize {
		mu.Lock()
		result.FilesSkipped++
		mu.Unlock()
		return nil
	}

	src, err := os.ReadFile(absPath)
	if err != nil {
		return fileError(relPath, types.ErrorStorage, err)
	}
	contentHash := types.HashContent(string(src))

	if !force {
		existing, err := idx.store.GetFile(ctx, repo.Name, relPath)
		if err == nil && existing.ContentHash == contentHash {
			mu.Lock()
			result.FilesSkipped++
			mu.Unlock()
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fileError(relPath, types.ErrorStorage, err)
		}
	}

	parsed, err := idx.parser.Parse(ctx, relPath, src)
	if err != nil {
		if errors.Is(err, types.ErrUnsupportedLanguage) {
			return fileError(relPath, types.ErrorUnsupported, err)
		}
		return fileError(relPath, types.ErrorParse, err)
	}
	defer parsed.Close()

	chunks := idx.extractor.Extract(repo.Name, relPath, parsed)

	// Every chunk gets an embedding attempt; one failure never abandons
	// the rest of the file
	var embedErr error
	if idx.embedder != nil {
		for _, chunk := range chunks {
			if err := idx.embedder.EmbedChunk(ctx, chunk); err != nil {
				embedErr = errors.Join(embedErr, err)
			}
		}
	}

	file := &storage.File{
		RepositoryID: repo.ID,
		Repository:   repo.Name,
		FilePath:     relPath,
		Language:     parsed.Spec.Name,
		ContentHash:  contentHash,
		SizeBytes:    info.Size(),
	}
	if parsed.HasError {
		msg := "syntax errors present"
		file.ParseError = &msg
	}

	mu.Lock()
	defer mu.Unlock()

	if err := idx.store.UpsertFile(ctx, file); err != nil {
		return fileError(relPath, types.ErrorStorage, err)
	}
	if err := idx.store.ReplaceChunks(ctx, file.ID, chunks); err != nil {
		return fileError(relPath, types.ErrorStorage, err)
	}
	if err := idx.storeEmbeddings(ctx, chunks); err != nil {
		return fileError(relPath, types.ErrorEmbedding, err)
	}

	result.FilesIndexed++
	result.ChunksCreated += len(chunks)

	// Chunks are persisted even when embedding failed so the lexical
	// channel stays current; the failure is still reported
	if embedErr != nil {
		return fileError(relPath, types.ErrorEmbedding, embedErr)
	}
	return nil
}

// storeEmbeddings persists the vectors EmbedChunk attached to each chunk.
// Either domain may be absent independently.
func (idx *Indexer) storeEmbeddings(ctx context.Context, chunks []*types.CodeChunk) error {
	if idx.embedder == nil {
		return nil
	}
	text, code := idx.embedder.Providers()

	for _, chunk := range chunks {
		if len(chunk.EmbeddingText) > 0 {
			emb := &storage.Embedding{
				ChunkID:  chunk.ID,
				Domain:   types.DomainText,
				Vector:   chunk.EmbeddingText,
				Provider: text.Provider(),
				Model:    text.Model(),
			}
			if err := idx.store.UpsertEmbedding(ctx, emb); err != nil {
				return fmt.Errorf("text vector for chunk %d: %w", chunk.ID, err)
			}
		}
		if len(chunk.EmbeddingCode) > 0 {
			emb := &storage.Embedding{
				ChunkID:  chunk.ID,
				Domain:   types.DomainCode,
				Vector:   chunk.EmbeddingCode,
				Provider: code.Provider(),
				Model:    code.Model(),
			}
			if err := idx.store.UpsertEmbedding(ctx, emb); err != nil {
				return fmt.Errorf("code vector for chunk %d: %w", chunk.ID, err)
			}
		}
	}
	return nil
}

// finishRun rebuilds the dependency graph, refreshes repository totals,
// rotates the index state marker, and invalidates cached results.
func (idx *Indexer) finishRun(ctx context.Context, repo *storage.Repository, result *Result) error {
	if err := idx.graph.Rebuild(ctx, repo.Name); err != nil {
		return fmt.Errorf("failed to rebuild graph: %w", err)
	}

	stats, err := idx.store.Stats(ctx, repo.Name)
	if err != nil {
		return fmt.Errorf("failed to compute repository stats: %w", err)
	}
	repo.TotalFiles = stats.FilesCount
	repo.TotalChunks = stats.ChunksCount
	repo.LastIndexedAt = time.Now()
	if err := idx.store.UpsertRepository(ctx, repo); err != nil {
		return fmt.Errorf("failed to update repository totals: %w", err)
	}

	// A run that changed nothing keeps the existing state marker so
	// cached search results stay valid
	if result.FilesIndexed+result.FilesRemoved == 0 {
		state, err := idx.store.GetMeta(ctx, "index_state:"+repo.Name)
		if err == nil && state != "" {
			result.RunID = state
			return nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to read index state: %w", err)
		}
	}

	result.RunID = uuid.NewString()
	if err := idx.store.SetMeta(ctx, "index_state:"+repo.Name, result.RunID); err != nil {
		return fmt.Errorf("failed to record index state: %w", err)
	}
	if idx.cache != nil {
		idx.cache.Invalidate(ctx, repo.Name)
	}
	return nil
}

func fileError(relPath string, category types.ErrorCategory, err error) *types.IndexError {
	return &types.IndexError{
		FilePath: relPath,
		Category: category,
		Message:  err.Error(),
	}
}
