// Package storage persists the code index in SQLite: repositories, files,
// chunks with their extracted metadata, per-domain embedding vectors, and
// the dependency graph.
//
// Search primitives live here too. Lexical retrieval uses an FTS5 virtual
// table with the trigram tokenizer, which gives case-insensitive,
// substring-tolerant matching over chunk names, signatures, and source.
// Vector retrieval uses the sqlite-vec extension when built with the
// sqlite_vec tag, falling back to Go-side cosine distance on pure-Go
// builds.
//
// Graph writes go through ReplaceGraph, which swaps a repository's node
// and edge set in one transaction so readers never observe a half-built
// graph. Edge rowids preserve insertion order, keeping traversal output
// deterministic.
//
// All mutating operations are available inside a transaction via BeginTx;
// the returned Tx exposes the same Storage interface bound to the
// transaction.
package storage
