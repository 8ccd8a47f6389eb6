package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposcope/reposcope/pkg/types"
)

// countingEmbedder wraps an Embedder and counts generate calls.
type countingEmbedder struct {
	Embedder
	calls int
}

func (c *countingEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	c.calls++
	return c.Embedder.GenerateEmbedding(ctx, req)
}

func newTestDual() (*DualEmbedder, *countingEmbedder, *countingEmbedder) {
	text := &countingEmbedder{Embedder: NewLocalProvider()}
	code := &countingEmbedder{Embedder: NewLocalProvider()}
	return NewDualEmbedder(text, code, NewCache(100)), text, code
}

func testChunk() *types.CodeChunk {
	c := &types.CodeChunk{
		Repository: "myrepo",
		FilePath:   "app.py",
		Language:   "python",
		ChunkType:  types.ChunkFunction,
		Content:    "def parse(path):\n    return open(path).read()",
		StartLine:  1,
		EndLine:    2,
		Name:       "parse",
		NamePath:   "app.parse",
		Signature:  "def parse(path)",
		Docstring:  "Read a file.",
	}
	c.ComputeContentHash()
	return c
}

func TestEmbedChunkFillsBothChannels(t *testing.T) {
	dual, _, _ := newTestDual()
	chunk := testChunk()

	require.NoError(t, dual.EmbedChunk(context.Background(), chunk))
	assert.Len(t, chunk.EmbeddingText, LocalDimension)
	assert.Len(t, chunk.EmbeddingCode, LocalDimension)
	// The channels encode different inputs
	assert.NotEqual(t, chunk.EmbeddingText, chunk.EmbeddingCode)
}

func TestEmbedChunkWithoutSummary(t *testing.T) {
	dual, _, _ := newTestDual()
	chunk := testChunk()
	chunk.Name = ""
	chunk.NamePath = ""
	chunk.Signature = ""
	chunk.Docstring = ""

	require.NoError(t, dual.EmbedChunk(context.Background(), chunk))
	assert.Nil(t, chunk.EmbeddingText)
	assert.NotNil(t, chunk.EmbeddingCode)
}

func TestDualEmbedderCachesPerDomain(t *testing.T) {
	dual, text, code := newTestDual()
	ctx := context.Background()
	chunk := testChunk()

	require.NoError(t, dual.EmbedChunk(ctx, chunk))
	require.NoError(t, dual.EmbedChunk(ctx, chunk))

	assert.Equal(t, 1, text.calls, "second pass must hit the cache")
	assert.Equal(t, 1, code.calls)
}

func TestDualEmbedderSameTextDistinctDomains(t *testing.T) {
	dual, text, code := newTestDual()
	ctx := context.Background()

	// Identical input through both channels still invokes both encoders
	_, err := dual.Embed(ctx, types.DomainText, "same input")
	require.NoError(t, err)
	_, err = dual.Embed(ctx, types.DomainCode, "same input")
	require.NoError(t, err)

	assert.Equal(t, 1, text.calls)
	assert.Equal(t, 1, code.calls)
}

func TestDualEmbedderUnknownDomain(t *testing.T) {
	dual, _, _ := newTestDual()
	_, err := dual.Embed(context.Background(), "audio", "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type failingEmbedder struct {
	Embedder
}

func (f *failingEmbedder) GenerateEmbedding(context.Context, EmbeddingRequest) (*Embedding, error) {
	return nil, errors.New("provider down")
}

func TestEmbedChunkPropagatesChannelErrors(t *testing.T) {
	dual := NewDualEmbedder(
		&failingEmbedder{Embedder: NewLocalProvider()},
		NewLocalProvider(),
		nil,
	)
	err := dual.EmbedChunk(context.Background(), testChunk())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text channel")
}

func TestEmbedChunkChannelsAreIndependent(t *testing.T) {
	// A dead TEXT provider must not block the CODE vector, and vice versa
	dual := NewDualEmbedder(
		&failingEmbedder{Embedder: NewLocalProvider()},
		NewLocalProvider(),
		nil,
	)
	chunk := testChunk()
	err := dual.EmbedChunk(context.Background(), chunk)
	require.Error(t, err)
	assert.Empty(t, chunk.EmbeddingText)
	assert.NotEmpty(t, chunk.EmbeddingCode)

	dual = NewDualEmbedder(
		NewLocalProvider(),
		&failingEmbedder{Embedder: NewLocalProvider()},
		nil,
	)
	chunk = testChunk()
	err = dual.EmbedChunk(context.Background(), chunk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code channel")
	assert.NotEmpty(t, chunk.EmbeddingText)
	assert.Empty(t, chunk.EmbeddingCode)
}
