package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/reposcope/reposcope/pkg/types"
)

// DualEmbedder routes chunk content through two encoders: the TEXT channel
// embeds the docstring/signature summary, the CODE channel embeds raw
// source. Results are cached per (content hash, domain) so re-indexing an
// unchanged chunk never re-embeds it.
type DualEmbedder struct {
	text  Embedder
	code  Embedder
	cache *Cache
}

// NewDualEmbedder composes the two channel encoders. A nil cache disables
// caching.
func NewDualEmbedder(text, code Embedder, cache *Cache) *DualEmbedder {
	return &DualEmbedder{text: text, code: code, cache: cache}
}

// provider returns the encoder for a domain.
func (d *DualEmbedder) provider(domain types.EmbeddingDomain) (Embedder, error) {
	switch domain {
	case types.DomainText:
		return d.text, nil
	case types.DomainCode:
		return d.code, nil
	default:
		return nil, fmt.Errorf("%w: unknown domain %q", ErrInvalidInput, domain)
	}
}

// Dimension returns the vector dimension for a domain.
func (d *DualEmbedder) Dimension(domain types.EmbeddingDomain) (int, error) {
	p, err := d.provider(domain)
	if err != nil {
		return 0, err
	}
	return p.Dimension(), nil
}

// Embed produces one vector for the given text in the given domain.
func (d *DualEmbedder) Embed(ctx context.Context, domain types.EmbeddingDomain, text string) (*Embedding, error) {
	p, err := d.provider(domain)
	if err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if d.cache != nil {
		if emb, ok := d.cache.Get(domain, hash); ok {
			return emb, nil
		}
	}

	emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		d.cache.Set(domain, hash, emb)
	}
	return emb, nil
}

// EmbedChunk fills both embedding channels on a chunk. The TEXT channel
// uses the chunk's summary (qualified name, signature, docstring); the CODE
// channel uses the source. A chunk with no summary content still gets a
// CODE vector, and a failure on one channel never blocks the other: the
// chunk keeps whichever vectors were produced.
func (d *DualEmbedder) EmbedChunk(ctx context.Context, chunk *types.CodeChunk) error {
	var textErr, codeErr error

	if summary := chunk.TextSummary(); summary != "" {
		if emb, err := d.Embed(ctx, types.DomainText, summary); err != nil {
			textErr = fmt.Errorf("text channel: %w", err)
		} else {
			chunk.EmbeddingText = emb.Vector
		}
	}

	if emb, err := d.Embed(ctx, types.DomainCode, chunk.Content); err != nil {
		codeErr = fmt.Errorf("code channel: %w", err)
	} else {
		chunk.EmbeddingCode = emb.Vector
	}

	return errors.Join(textErr, codeErr)
}

// Providers exposes the channel encoders, text first.
func (d *DualEmbedder) Providers() (Embedder, Embedder) {
	return d.text, d.code
}

// Close releases both encoders.
func (d *DualEmbedder) Close() error {
	errText := d.text.Close()
	errCode := d.code.Close()
	if errText != nil {
		return errText
	}
	return errCode
}
