// Package graph builds and queries the code dependency graph.
//
// The builder derives nodes and edges from a repository's chunk set: one
// node per chunk, with contains, imports, inherits, and calls edges between
// them. Reference resolution is name based (exact qualified name, then the
// referencing scope, then suffix match); anything that resolves to nothing
// inside the repository is dropped, so the graph never contains dangling
// nodes. Rebuilds replace the stored graph atomically.
//
// The traverser answers bounded breadth-first reachability queries and
// minimum-hop path searches over the stored graph. Cycles are legal and
// terminate through visited sets.
package graph
