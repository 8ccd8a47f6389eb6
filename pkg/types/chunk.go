package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ChunkType represents the granularity of a code chunk
type ChunkType string

const (
	ChunkFile     ChunkType = "file"
	ChunkClass    ChunkType = "class"
	ChunkFunction ChunkType = "function"
	ChunkMethod   ChunkType = "method"
)

// EmbeddingDomain selects which encoder a vector came from
type EmbeddingDomain string

const (
	// DomainText embeds the docstring/signature summary channel
	DomainText EmbeddingDomain = "text"
	// DomainCode embeds the raw source channel
	DomainCode EmbeddingDomain = "code"
)

// CodeChunk is a unit of indexed code (file, class, function, or method)
// together with its extracted metadata and embeddings.
type CodeChunk struct {
	// Identification
	ID         int64
	Repository string
	FilePath   string // Relative to repository root
	Language   string

	// Content
	ChunkType ChunkType
	Content   string
	StartLine int
	EndLine   int

	// Metadata
	Name       string
	NamePath   string // Hierarchical qualified name, outermost scope first
	Signature  string
	Docstring  string
	Decorators []string
	Imports    []string // Imported symbol references
	Calls      []string // Outgoing call names, builtins filtered
	Complexity int      // Cyclomatic complexity (branch points + 1)
	LineCount  int

	// Staleness detection
	ContentHash string // SHA-256 of Content, hex encoded

	// Embeddings; either may be absent independently
	EmbeddingText []float32
	EmbeddingCode []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeContentHash fills ContentHash from the chunk source text.
func (c *CodeChunk) ComputeContentHash() {
	c.ContentHash = HashContent(c.Content)
}

// HashContent returns the hex SHA-256 of source text.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Contains reports whether c strictly contains other by line span.
// Bounds are strict on both ends so a child starting or ending exactly
// where a sibling does is not treated as contained.
func (c *CodeChunk) Contains(other *CodeChunk) bool {
	return c.StartLine < other.StartLine && other.EndLine < c.EndLine
}

// ValidateType checks the chunk type is one of the known kinds.
func (c *CodeChunk) ValidateType() error {
	switch c.ChunkType {
	case ChunkFile, ChunkClass, ChunkFunction, ChunkMethod:
		return nil
	default:
		return errors.New("invalid chunk type")
	}
}

// Validate performs comprehensive validation of the chunk.
func (c *CodeChunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.Repository == "" {
		return errors.New("repository is required")
	}
	if c.FilePath == "" {
		return errors.New("file path is required")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if err := c.ValidateType(); err != nil {
		return err
	}
	if c.ContentHash == "" {
		return errors.New("content hash must be computed")
	}
	return nil
}

// TextSummary builds the input for the TEXT-oriented encoder: docstring and
// signature when present, falling back to the qualified name.
func (c *CodeChunk) TextSummary() string {
	s := ""
	if c.NamePath != "" {
		s = c.NamePath
	}
	if c.Signature != "" {
		s += "\n" + c.Signature
	}
	if c.Docstring != "" {
		s += "\n" + c.Docstring
	}
	return s
}
