package searcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reposcope/reposcope/internal/cache"
	"github.com/reposcope/reposcope/internal/embedder"
	"github.com/reposcope/reposcope/internal/storage"
	"github.com/reposcope/reposcope/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Trigram + vector fused with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeLexical SearchMode = "lexical" // Trigram full-text only
)

// DefaultRRFConstant is the k in 1/(k + rank).
const DefaultRRFConstant = 60.0

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Repository  string
	Query       string
	Mode        SearchMode
	Domain      types.EmbeddingDomain // Vector channel; defaults to text
	Limit       int
	MinScore    float64 // Lexical score floor
	MaxDistance float64 // Vector distance ceiling; 0 disables
	RRFConstant float64 // 0 uses the default
	UseCache    bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results        []types.SearchResult
	TotalResults   int
	Mode           SearchMode
	Duration       time.Duration `json:"-"`
	CacheHit       bool          `json:"-"`
	LexicalResults int
	VectorResults  int
}

// Searcher coordinates retrieval across the lexical and vector channels.
type Searcher struct {
	store    storage.Storage
	embedder *embedder.DualEmbedder
	cache    *cache.Manager
	logger   *zap.Logger
}

// New creates a Searcher. cache may be nil to disable result caching.
func New(store storage.Storage, dual *embedder.DualEmbedder, cacheManager *cache.Manager, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{
		store:    store,
		embedder: dual,
		cache:    cacheManager,
		logger:   logger,
	}
}

// Search runs a query in the requested mode.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	stateHash := s.indexState(ctx, req.Repository)
	cacheKey := requestKey(req)
	if req.UseCache && s.cache != nil {
		if payload, ok := s.cache.Get(ctx, req.Repository, cacheKey, stateHash); ok {
			var resp SearchResponse
			if err := json.Unmarshal(payload, &resp); err == nil {
				resp.Mode = req.Mode
				resp.CacheHit = true
				resp.Duration = time.Since(start)
				return &resp, nil
			}
		}
	}

	var resp *SearchResponse
	var err error
	switch req.Mode {
	case SearchModeHybrid:
		resp, err = s.hybridSearch(ctx, req)
	case SearchModeVector:
		resp, err = s.vectorSearch(ctx, req)
	case SearchModeLexical:
		resp, err = s.lexicalSearch(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unsupported search mode %q", types.ErrInvalidQuery, req.Mode)
	}
	if err != nil {
		return nil, err
	}

	resp.Mode = req.Mode
	resp.Duration = time.Since(start)

	if req.UseCache && s.cache != nil {
		if payload, err := json.Marshal(resp); err == nil {
			s.cache.Set(ctx, req.Repository, cacheKey, stateHash, payload)
		}
	}
	return resp, nil
}

func (s *Searcher) validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query cannot be empty", types.ErrInvalidQuery)
	}
	if req.Repository == "" {
		return fmt.Errorf("%w: repository is required", types.ErrInvalidQuery)
	}
	if req.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", types.ErrInvalidQuery)
	}
	if req.MinScore < 0 {
		return fmt.Errorf("%w: min score cannot be negative", types.ErrInvalidQuery)
	}
	if req.MaxDistance < 0 {
		return fmt.Errorf("%w: max distance cannot be negative", types.ErrInvalidQuery)
	}
	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}
	if req.Domain == "" {
		req.Domain = types.DomainText
	}
	if req.Domain != types.DomainText && req.Domain != types.DomainCode {
		return fmt.Errorf("%w: unknown embedding domain %q", types.ErrInvalidQuery, req.Domain)
	}
	if req.RRFConstant == 0 {
		req.RRFConstant = DefaultRRFConstant
	}
	return nil
}

// indexState reads the repository's index state marker; the cache treats a
// changed marker as an invalidation.
func (s *Searcher) indexState(ctx context.Context, repository string) string {
	state, err := s.store.GetMeta(ctx, "index_state:"+repository)
	if err != nil {
		return ""
	}
	return state
}

// requestKey fingerprints the request parameters that affect results.
func requestKey(req SearchRequest) string {
	return fmt.Sprintf("%s|%s|%s|%d|%g|%g|%g",
		req.Mode, req.Domain, req.Query, req.Limit, req.MinScore, req.MaxDistance, req.RRFConstant)
}

// lexicalSearch runs the trigram channel only.
func (s *Searcher) lexicalSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	refs, err := s.store.SearchLexical(ctx, req.Repository, req.Query, req.Limit, req.MinScore)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results, err := s.fetchResults(ctx, refs, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{
		Results:        results,
		TotalResults:   len(results),
		LexicalResults: len(refs),
	}, nil
}

// vectorSearch embeds the query in the requested domain and runs nearest
// neighbor retrieval.
func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	refs, err := s.runVector(ctx, req, req.Limit)
	if err != nil {
		return nil, err
	}

	results, err := s.fetchResults(ctx, refs, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(refs),
	}, nil
}

func (s *Searcher) runVector(ctx context.Context, req SearchRequest, limit int) ([]types.RankedRef, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", types.ErrInvalidQuery)
	}
	emb, err := s.embedder.Embed(ctx, req.Domain, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	refs, err := s.store.SearchVector(ctx, req.Repository, req.Domain, emb.Vector, limit, req.MaxDistance)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return refs, nil
}

type channelResult struct {
	refs []types.RankedRef
	err  error
}

// hybridSearch runs both channels concurrently and fuses their rankings
// with Reciprocal Rank Fusion. One failing channel degrades to the other;
// both failing is an error.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	// Overfetch each channel so fusion has depth to work with
	fetchLimit := req.Limit * 2

	lexicalChan := make(chan channelResult, 1)
	vectorChan := make(chan channelResult, 1)

	go func() {
		refs, err := s.store.SearchLexical(ctx, req.Repository, req.Query, fetchLimit, req.MinScore)
		lexicalChan <- channelResult{refs: refs, err: err}
	}()
	go func() {
		refs, err := s.runVector(ctx, req, fetchLimit)
		vectorChan <- channelResult{refs: refs, err: err}
	}()

	var lexical, vector channelResult
	for i := 0; i < 2; i++ {
		select {
		case lexical = <-lexicalChan:
			lexicalChan = nil
		case vector = <-vectorChan:
			vectorChan = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if lexical.err != nil && vector.err != nil {
		return nil, fmt.Errorf("both channels failed: lexical=%w, vector=%v", lexical.err, vector.err)
	}
	if lexical.err != nil {
		s.logger.Warn("lexical channel failed, using vector only", zap.Error(lexical.err))
	}
	if vector.err != nil {
		s.logger.Warn("vector channel failed, using lexical only", zap.Error(vector.err))
	}

	fused := fuseRRF(lexical.refs, vector.refs, req.RRFConstant)
	results, err := s.fetchResults(ctx, fused, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:        results,
		TotalResults:   len(results),
		LexicalResults: len(lexical.refs),
		VectorResults:  len(vector.refs),
	}, nil
}

// fuseRRF combines two ranked lists: score(d) = sum over lists of
// 1/(k + rank(d)). Equal fused scores order by chunk id so results are
// stable across runs.
func fuseRRF(lexical, vector []types.RankedRef, k float64) []types.RankedRef {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[int64]float64)
	for _, ref := range lexical {
		scores[ref.ChunkID] += 1.0 / (k + float64(ref.Rank))
	}
	for _, ref := range vector {
		scores[ref.ChunkID] += 1.0 / (k + float64(ref.Rank))
	}

	fused := make([]types.RankedRef, 0, len(scores))
	for chunkID, score := range scores {
		fused = append(fused, types.RankedRef{ChunkID: chunkID, Score: score})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})
	for i := range fused {
		fused[i].Rank = i + 1
	}
	return fused
}

// fetchResults hydrates ranked references into full search results. Chunks
// deleted between ranking and fetch are skipped.
func (s *Searcher) fetchResults(ctx context.Context, refs []types.RankedRef, limit int) ([]types.SearchResult, error) {
	if limit > len(refs) {
		limit = len(refs)
	}

	results := make([]types.SearchResult, 0, limit)
	for _, ref := range refs {
		if len(results) >= limit {
			break
		}
		chunk, err := s.store.GetChunk(ctx, ref.ChunkID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chunk %d: %w", ref.ChunkID, err)
		}
		results = append(results, types.SearchResult{
			ChunkID: ref.ChunkID,
			Rank:    len(results) + 1,
			Score:   ref.Score,
			Chunk:   chunk,
		})
	}
	return results, nil
}
