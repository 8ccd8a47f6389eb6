package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaTestServer(t *testing.T, dimension int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vectors := make([][]float32, len(req.Input))
		for i := range req.Input {
			v := make([]float32, dimension)
			v[0] = float32(len(req.Input[i]))
			vectors[i] = v
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: vectors})
	}))
}

func TestOllamaProviderEmbedding(t *testing.T) {
	server := ollamaTestServer(t, 4)
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "test-model", 4)
	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 4)
	assert.Equal(t, float32(5), emb.Vector[0])
	assert.Equal(t, ProviderOllama, emb.Provider)
	assert.Equal(t, "test-model", emb.Model)
	assert.Equal(t, ComputeHash("hello"), emb.Hash)
}

func TestOllamaProviderBatch(t *testing.T) {
	server := ollamaTestServer(t, 4)
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "test-model", 4)
	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"one", "three"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, float32(3), resp.Embeddings[0].Vector[0])
	assert.Equal(t, float32(5), resp.Embeddings[1].Vector[0])
}

func TestOllamaProviderBatchTooLarge(t *testing.T) {
	provider := NewOllamaProvider("http://unused", "m", 4)
	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestOllamaProviderRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "m", 4)
	_, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestOllamaProviderRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "m", 2)
	emb, err := provider.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, emb.Vector)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaProviderContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := NewOllamaProvider(server.URL, "m", 4)
	_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
	assert.Error(t, err)
}

func TestOpenAIProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := openAIEmbedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider("test-key")
	require.NoError(t, err)
	provider.baseURL = server.URL

	resp, err := provider.GenerateBatch(context.Background(), BatchEmbeddingRequest{
		Texts: []string{"a", "b"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, float32(0), resp.Embeddings[0].Vector[0])
	assert.Equal(t, float32(1), resp.Embeddings[1].Vector[0])
}

func TestOpenAIProviderRequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider("")
	assert.ErrorIs(t, err, ErrNoProviderEnabled)
}
