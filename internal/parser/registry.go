package parser

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec describes one supported grammar: the tree-sitter language and
// the node-kind tables the extractor dispatches on. Kinds are explicit tags,
// not runtime probing, so adding a language means filling in a table.
type LanguageSpec struct {
	Name       string
	Language   *sitter.Language
	Extensions []string

	// Definition node kinds mapped to the chunk granularity they produce.
	// Function kinds nested under a class kind become methods.
	FunctionKinds map[string]bool
	ClassKinds    map[string]bool

	// ImportKinds are module-level import statement node kinds.
	ImportKinds map[string]bool

	// CallKind is the call-expression node kind ("call", "call_expression").
	CallKind string

	// BranchKinds count toward cyclomatic complexity.
	BranchKinds map[string]bool

	// BooleanOperatorKind is the boolean-expression node kind counted as a
	// branch point ("boolean_operator", "binary_expression").
	BooleanOperatorKind string

	// DecoratorKind is the decorator/annotation node kind, empty when the
	// language has none.
	DecoratorKind string

	// DocstringInBody is true for languages that carry documentation as the
	// first string expression of a definition body (Python); false means the
	// docstring is the comment block preceding the definition.
	DocstringInBody bool
}

// IsDefinition reports whether the node kind opens a new chunk scope.
func (s *LanguageSpec) IsDefinition(kind string) bool {
	return s.FunctionKinds[kind] || s.ClassKinds[kind]
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]*LanguageSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]*LanguageSpec)}
}

// Register adds a language spec for all of its extensions.
func (r *Registry) Register(spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.byExt[ext] = spec
	}
}

// Lookup returns the spec for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) *LanguageSpec {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byExt[ext]
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		exts[ext] = true
	}
	return exts
}

// DefaultRegistry returns a registry with all built-in grammars registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterPython(r)
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterRust(r)
	return r
}
