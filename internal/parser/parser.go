package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/reposcope/reposcope/pkg/types"
)

// ParseResult holds a parsed syntax tree together with the spec and source
// the extractor needs. Callers must Close the result when done.
type ParseResult struct {
	Spec     *LanguageSpec
	Tree     *sitter.Tree
	Source   []byte
	HasError bool // Structural errors are surfaced, never a crash
}

// Root returns the root node of the parsed tree.
func (pr *ParseResult) Root() *sitter.Node {
	return pr.Tree.RootNode()
}

// Close releases the underlying tree.
func (pr *ParseResult) Close() {
	if pr.Tree != nil {
		pr.Tree.Close()
	}
}

// Parser wraps per-language tree-sitter grammars.
type Parser struct {
	registry *Registry
}

// New creates a Parser backed by the given registry.
func New(registry *Registry) *Parser {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Parser{registry: registry}
}

// Registry returns the language registry.
func (p *Parser) Registry() *Registry {
	return p.registry
}

// Language returns the registered language name for a path, or "".
func (p *Parser) Language(path string) string {
	spec := p.registry.Lookup(path)
	if spec == nil {
		return ""
	}
	return spec.Name
}

// Parse parses source text for the given path. A file with no registered
// grammar returns types.ErrUnsupportedLanguage; a file with syntax errors
// still parses (tree-sitter produces a best-effort tree) and is flagged via
// HasError so callers can record a parse error and move on.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*ParseResult, error) {
	spec := p.registry.Lookup(path)
	if spec == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedLanguage, path)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.Language)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &ParseResult{
		Spec:     spec,
		Tree:     tree,
		Source:   src,
		HasError: tree.RootNode().HasError(),
	}, nil
}
