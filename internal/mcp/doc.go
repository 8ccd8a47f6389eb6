// Package mcp implements the Model Context Protocol server front-end.
//
// The server exposes the core operations as tools over a JSON-RPC 2.0 stdio
// transport:
//   - index_repository: run the full pipeline over a repository root
//   - reindex_file: force one file through the pipeline
//   - search_code: lexical, vector, or fused hybrid retrieval
//   - get_chunk: fetch one chunk with full content
//   - graph_traverse: bounded dependency-graph walk from a symbol
//   - shortest_path: minimum-hop route between two symbols
//   - cache_stats: per-tier cache counters and degradation state
//
// Handlers are thin adapters: they validate arguments, delegate to the
// indexer, searcher, traverser, or storage, and format the result as JSON
// text. Domain errors map onto protocol error codes; an unreachable
// shortest-path target is reported as found=false rather than an error.
//
// The server is typically started via the CLI:
//
//	reposcope mcp
//
// and then reads MCP messages on stdin, writing responses to stdout.
package mcp
