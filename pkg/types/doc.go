// Package types provides shared type definitions for the reposcope core.
//
// This package defines the domain types used across the indexing pipeline,
// the retrieval engine, and the graph engine: code chunks, graph nodes and
// edges, search results, and the indexing error taxonomy.
//
// # Core Types
//
// CodeChunk is the unit of indexing: a file, class, function, or method with
// its extracted metadata and up to two embeddings (TEXT and CODE domains):
//
//	chunk := &types.CodeChunk{
//	    Repository: "acme/api",
//	    FilePath:   "models/user.py",
//	    ChunkType:  types.ChunkMethod,
//	    Name:       "validate",
//	    NamePath:   "models.user.User.validate",
//	}
//	chunk.ComputeContentHash()
//
// NamePath is always ordered outermost scope first. Containment between
// chunks uses strict bounds on both ends, see CodeChunk.Contains.
//
// GraphNode and GraphEdge form the dependency graph. Edges are plain records
// addressed by node id, so cyclic imports are representable without any
// ownership cycle; cycle handling belongs to the traversal engine.
//
// # Error Taxonomy
//
// Per-file indexing failures are non-fatal and aggregate as IndexError
// records. Malformed queries are rejected with ErrInvalidQuery before
// execution. A shortest-path miss is ErrNoPath, an expected negative result.
package types
