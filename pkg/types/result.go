package types

// SearchResult represents a single search result with relevance information
type SearchResult struct {
	// Identification
	ChunkID int64
	Rank    int // Position in result set (1-based)

	// Scoring
	Score float64 // Raw score in single-mode search, fused RRF score in hybrid

	// Payload
	Chunk *CodeChunk
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	if sr.Score < 0 {
		return ErrInvalidRelevanceScore
	}
	return nil
}

// RankedRef is a (chunk, rank, raw score) triple from one retrieval mode,
// before fusion.
type RankedRef struct {
	ChunkID int64
	Rank    int // 1-based position in its source list
	Score   float64
}
