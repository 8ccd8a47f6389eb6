package types

import "errors"

// Domain errors shared across the core
var (
	// ErrInvalidQuery rejects a malformed search request before execution,
	// e.g. a vector search without a result limit.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnsupportedLanguage marks a file with no registered grammar.
	// Non-fatal during indexing: the file is recorded and skipped.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrNoPath is the negative result of a shortest-path query. Expected,
	// not exceptional.
	ErrNoPath = errors.New("no path between nodes")

	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// Search result validation errors
	ErrInvalidChunkID        = errors.New("invalid chunk ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be non-negative")
)

// ErrorCategory classifies per-file indexing failures
type ErrorCategory string

const (
	ErrorParse       ErrorCategory = "parse_error"
	ErrorUnsupported ErrorCategory = "unsupported_language"
	ErrorEmbedding   ErrorCategory = "embedding_error"
	ErrorStorage     ErrorCategory = "storage_error"
)

// IndexError records a single non-fatal failure during an indexing run.
type IndexError struct {
	FilePath string
	Category ErrorCategory
	Message  string
}

// Error implements the error interface
func (e *IndexError) Error() string {
	return string(e.Category) + " " + e.FilePath + ": " + e.Message
}
