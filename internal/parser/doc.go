// Package parser wraps per-language tree-sitter grammars behind a registry
// keyed by file extension.
//
// Each supported language is described by a LanguageSpec: the grammar plus
// explicit node-kind tables (definition kinds, import kinds, call kind,
// branch kinds) that the extractor dispatches on. Dispatch is always on these
// tags, never on probing node attributes at runtime.
//
// Parsing never crashes on malformed input: tree-sitter returns a best-effort
// tree and the result is flagged HasError, letting an indexing run record the
// failure for that one file and continue. Files with no registered grammar
// return types.ErrUnsupportedLanguage, which indexing treats the same way.
package parser
