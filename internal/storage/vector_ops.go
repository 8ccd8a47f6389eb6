package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/reposcope/reposcope/pkg/types"
)

// SearchVector returns the nearest chunks to the query vector within a
// repository and embedding domain. Scores are cosine similarities; results
// with distance above maxDistance are dropped when maxDistance > 0.
func (s *SQLiteStorage) SearchVector(ctx context.Context, repository string, domain types.EmbeddingDomain, vector []float32, limit int, maxDistance float64) ([]types.RankedRef, error) {
	return s.searchVectorWithQuerier(ctx, s.querier(), repository, domain, vector, limit, maxDistance)
}

func (t *sqliteTx) SearchVector(ctx context.Context, repository string, domain types.EmbeddingDomain, vector []float32, limit int, maxDistance float64) ([]types.RankedRef, error) {
	return t.storage.searchVectorWithQuerier(ctx, t.querier(), repository, domain, vector, limit, maxDistance)
}

func (s *SQLiteStorage) searchVectorWithQuerier(ctx context.Context, q querier, repository string, domain types.EmbeddingDomain, vector []float32, limit int, maxDistance float64) ([]types.RankedRef, error) {
	if limit <= 0 {
		return []types.RankedRef{}, nil
	}
	if len(vector) == 0 {
		return []types.RankedRef{}, nil
	}
	if err := s.checkQueryDimension(ctx, q, domain, len(vector)); err != nil {
		return nil, err
	}

	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, repository, domain, vector, limit, maxDistance)
	}
	return searchVectorFallback(ctx, q, repository, domain, vector, limit, maxDistance)
}

// checkQueryDimension rejects query vectors whose dimension differs from the
// dimension the domain's index was built with.
func (s *SQLiteStorage) checkQueryDimension(ctx context.Context, q querier, domain types.EmbeddingDomain, dim int) error {
	key := "embedding_dim:" + string(domain)
	value, err := s.getMetaWithQuerier(ctx, q, key)
	if err == ErrNotFound {
		return nil // Nothing indexed yet, search will return empty
	}
	if err != nil {
		return err
	}
	stored, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("corrupt meta value for %s: %w", key, err)
	}
	if stored != dim {
		return fmt.Errorf("%w: index built with dimension %d, query has %d", ErrDimensionMismatch, stored, dim)
	}
	return nil
}

// searchVectorOptimized computes cosine distance at the database layer via
// the sqlite-vec extension. Ties break on chunk id.
func searchVectorOptimized(ctx context.Context, q querier, repository string, domain types.EmbeddingDomain, vector []float32, limit int, maxDistance float64) ([]types.RankedRef, error) {
	blob := serializeVector(vector)

	query := `
		SELECT c.id, vec_distance_cosine(e.vector, ?) AS distance
		FROM embeddings e
		INNER JOIN chunks c ON e.chunk_id = c.id
		WHERE c.repository = ? AND e.domain = ?
	`
	args := []interface{}{blob, repository, string(domain)}

	if maxDistance > 0 {
		query += " AND vec_distance_cosine(e.vector, ?) <= ?"
		args = append(args, blob, maxDistance)
	}
	query += " ORDER BY distance ASC, c.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := make([]types.RankedRef, 0, limit)
	for rows.Next() {
		var chunkID int64
		var distance float64
		if err := rows.Scan(&chunkID, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector result: %w", err)
		}
		refs = append(refs, types.RankedRef{
			ChunkID: chunkID,
			Rank:    len(refs) + 1,
			Score:   1.0 - distance,
		})
	}
	return refs, rows.Err()
}

type vectorCandidate struct {
	chunkID  int64
	distance float64
}

// searchVectorFallback loads candidate vectors and computes cosine distance
// in Go. Used when the sqlite-vec extension is unavailable.
func searchVectorFallback(ctx context.Context, q querier, repository string, domain types.EmbeddingDomain, vector []float32, limit int, maxDistance float64) ([]types.RankedRef, error) {
	query := `
		SELECT c.id, e.vector
		FROM embeddings e
		INNER JOIN chunks c ON e.chunk_id = c.id
		WHERE c.repository = ? AND e.domain = ?
	`
	rows, err := q.QueryContext(ctx, query, repository, string(domain))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var candidates []vectorCandidate
	for rows.Next() {
		var chunkID int64
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		stored, err := deserializeVector(blob)
		if err != nil {
			return nil, err
		}
		if len(stored) != len(vector) {
			continue
		}
		distance := cosineDistance(vector, stored)
		if maxDistance > 0 && distance > maxDistance {
			continue
		}
		candidates = append(candidates, vectorCandidate{chunkID: chunkID, distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	refs := make([]types.RankedRef, 0, len(candidates))
	for i, c := range candidates {
		refs = append(refs, types.RankedRef{
			ChunkID: c.chunkID,
			Rank:    i + 1,
			Score:   1.0 - c.distance,
		})
	}
	return refs, nil
}

// cosineDistance returns 1 - cosine similarity. Zero vectors get the
// maximum distance.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// serializeVector encodes float32 values as a little-endian blob, the layout
// sqlite-vec expects.
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector decodes a little-endian float32 blob.
func deserializeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}
