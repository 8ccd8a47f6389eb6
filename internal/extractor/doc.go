// Package extractor turns parsed syntax trees into CodeChunk drafts.
//
// For each file it emits a file-level chunk followed by one chunk per
// function, method, and class, in source order. Per chunk it derives the
// local name, the hierarchical name path (outermost scope first), the
// signature, docstring, decorators, module-level imports, outgoing calls,
// and cyclomatic complexity.
//
// Call names matching the injected deny list (print, len, append, ...) are
// dropped before they ever reach the graph builder. The deny list is plain
// injected configuration; see DefaultDenyList.
package extractor
