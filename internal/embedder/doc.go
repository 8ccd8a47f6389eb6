// Package embedder generates vector embeddings for code chunks.
//
// Chunks are embedded twice, through two independent channels: the TEXT
// channel encodes the qualified name, signature, and docstring, serving
// natural-language queries; the CODE channel encodes the raw source,
// serving code-shaped queries. DualEmbedder composes one provider per
// channel and caches results by (content hash, domain) with LRU eviction.
//
// Providers: ollama (HTTP /api/embed), openai, and local (deterministic
// hash-derived vectors, no external service). API providers retry with
// exponential backoff and respect context cancellation.
package embedder
