// Package searcher runs retrieval across two channels: trigram full-text
// over chunk names, signatures, and source, and vector similarity over the
// TEXT or CODE embedding domain. Hybrid mode queries both concurrently and
// fuses the rankings with Reciprocal Rank Fusion (score = sum of
// 1/(k + rank), k = 60 by default); ties in the fused score break on chunk
// id so hybrid output is deterministic.
//
// Responses can be cached through the layered result cache, keyed by the
// request fingerprint and pinned to the repository's index state marker, so
// a re-index invalidates them without any TTL guesswork.
package searcher
