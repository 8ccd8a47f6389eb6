// Package indexer drives the indexing pipeline: discover source files,
// parse them, extract chunks, embed both channels, and persist, followed by
// a dependency-graph rebuild and a cache invalidation. Files run through a
// bounded worker pool; parsing and embedding are concurrent while writes
// are serialized. Per-file failures are categorized and collected in the
// run result instead of aborting the run.
//
// Each completed run writes a fresh index state marker to the meta table.
// The result cache pins entries to that marker, so rotating it makes every
// previously cached search response stale at once.
package indexer
