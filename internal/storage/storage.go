package storage

import (
	"context"
	"errors"
	"time"

	"github.com/reposcope/reposcope/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrDimensionMismatch is returned when a vector's dimension differs
	// from the dimension the index was created with
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Storage defines the durable-store interface: chunk CRUD, filtered listing,
// the trigram lexical query primitive, the vector nearest-neighbor primitive,
// and the graph node/edge tables.
type Storage interface {
	// Repository operations
	UpsertRepository(ctx context.Context, repo *Repository) error
	GetRepository(ctx context.Context, name string) (*Repository, error)
	ListRepositories(ctx context.Context) ([]*Repository, error)
	DeleteRepository(ctx context.Context, name string) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, repository, filePath string) (*File, error)
	ListFiles(ctx context.Context, repository string) ([]*File, error)
	DeleteFile(ctx context.Context, repository, filePath string) error

	// Chunk operations. ReplaceChunks swaps a file's chunk set in full,
	// assigning ids to the drafts; chunks are never patched in place.
	ReplaceChunks(ctx context.Context, fileID int64, chunks []*types.CodeChunk) error
	GetChunk(ctx context.Context, chunkID int64) (*types.CodeChunk, error)
	ListChunks(ctx context.Context, filter ChunkFilter) ([]*types.CodeChunk, error)
	DeleteChunksByFile(ctx context.Context, fileID int64) error

	// Embedding operations, keyed (chunk, domain)
	UpsertEmbedding(ctx context.Context, emb *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64, domain types.EmbeddingDomain) (*Embedding, error)

	// Search primitives
	SearchLexical(ctx context.Context, repository, query string, limit int, minScore float64) ([]types.RankedRef, error)
	SearchVector(ctx context.Context, repository string, domain types.EmbeddingDomain, vector []float32, limit int, maxDistance float64) ([]types.RankedRef, error)

	// Graph operations. ReplaceGraph atomically supersedes a repository's
	// node/edge set; readers see the old graph or the new one, never a mix.
	ReplaceGraph(ctx context.Context, repository string, nodes []*types.GraphNode, edges []types.GraphEdge) error
	GetNode(ctx context.Context, nodeID int64) (*types.GraphNode, error)
	GetNodes(ctx context.Context, nodeIDs []int64) ([]*types.GraphNode, error)
	FindNodeByNamePath(ctx context.Context, repository, namePath string) (*types.GraphNode, error)
	// OutEdges and InEdges return edges in insertion order so traversal
	// tie-breaking is deterministic.
	OutEdges(ctx context.Context, nodeID int64) ([]types.GraphEdge, error)
	InEdges(ctx context.Context, nodeID int64) ([]types.GraphEdge, error)

	// Meta operations (embedding dimensions, model identity)
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Stats
	Stats(ctx context.Context, repository string) (*RepositoryStats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Repository represents an indexed source repository
type Repository struct {
	ID            int64
	Name          string
	RootPath      string
	TotalFiles    int
	TotalChunks   int
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source file
type File struct {
	ID            int64
	RepositoryID  int64
	Repository    string
	FilePath      string // Relative to repository root
	Language      string
	ContentHash   string // Hex SHA-256 of the full file
	SizeBytes     int64
	ParseError    *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Embedding represents one stored vector for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Domain    types.EmbeddingDomain
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// ChunkFilter narrows chunk listing
type ChunkFilter struct {
	Repository string
	FilePath   string
	Language   string
	ChunkType  types.ChunkType
	NamePath   string // Exact name_path match
	Limit      int    // 0 means no limit
}

// RepositoryStats contains statistics about an indexed repository
type RepositoryStats struct {
	Repository      string
	FilesCount      int
	ChunksCount     int
	EmbeddingsCount int
	NodesCount      int
	EdgesCount      int
	LastIndexedAt   time.Time
}
