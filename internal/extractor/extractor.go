package extractor

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/reposcope/reposcope/internal/parser"
	"github.com/reposcope/reposcope/pkg/types"
)

// Extractor walks parsed trees and emits CodeChunk drafts (no id, no
// embeddings) for the file and every function, method, and class in it.
type Extractor struct {
	denylist DenyList
}

// New creates an Extractor with the given call-name deny list.
func New(denylist DenyList) *Extractor {
	if denylist == nil {
		denylist = DefaultDenyList()
	}
	return &Extractor{denylist: denylist}
}

// Extract produces the ordered chunk sequence for one parsed file: a
// file-level chunk first, then one chunk per definition in source order.
func (e *Extractor) Extract(repository, filePath string, pr *parser.ParseResult) []*types.CodeChunk {
	spec := pr.Spec
	src := pr.Source
	root := pr.Root()

	module := ModulePath(filePath)

	chunks := make([]*types.CodeChunk, 0, 8)
	chunks = append(chunks, e.fileChunk(repository, filePath, module, spec, root, src))

	e.walk(root, func(node *sitter.Node) bool {
		if !spec.IsDefinition(node.Type()) {
			return true
		}
		if chunk := e.definitionChunk(repository, filePath, module, spec, node, src); chunk != nil {
			chunks = append(chunks, chunk)
		}
		return true // Keep descending: nested definitions get their own chunks
	})

	return chunks
}

// walk runs fn over node and its subtree in document order. Returning false
// from fn prunes the subtree.
func (e *Extractor) walk(node *sitter.Node, fn func(*sitter.Node) bool) {
	if !fn(node) {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walk(node.NamedChild(i), fn)
	}
}

// fileChunk builds the module-level chunk: whole-file content plus
// module-level imports and top-level calls.
func (e *Extractor) fileChunk(repository, filePath, module string, spec *parser.LanguageSpec, root *sitter.Node, src []byte) *types.CodeChunk {
	chunk := &types.CodeChunk{
		Repository: repository,
		FilePath:   filePath,
		Language:   spec.Name,
		ChunkType:  types.ChunkFile,
		Content:    string(src),
		StartLine:  1,
		EndLine:    int(root.EndPoint().Row) + 1,
		Name:       moduleName(filePath),
		NamePath:   module,
		Imports:    e.moduleImports(spec, root, src),
		Calls:      e.outgoingCalls(spec, root, src),
		Complexity: e.complexity(spec, root, src),
	}
	chunk.LineCount = chunk.EndLine - chunk.StartLine + 1
	chunk.ComputeContentHash()
	return chunk
}

// definitionChunk builds a chunk for one function, method, or class node.
func (e *Extractor) definitionChunk(repository, filePath, module string, spec *parser.LanguageSpec, node *sitter.Node, src []byte) *types.CodeChunk {
	name := definitionName(spec, node, src)
	if name == "" {
		return nil
	}

	chunkType := types.ChunkFunction
	if spec.ClassKinds[node.Type()] {
		chunkType = types.ChunkClass
	} else if enclosingClass(spec, node) != nil {
		chunkType = types.ChunkMethod
	}

	chunk := &types.CodeChunk{
		Repository: repository,
		FilePath:   filePath,
		Language:   spec.Name,
		ChunkType:  chunkType,
		Content:    node.Content(src),
		StartLine:  int(node.StartPoint().Row) + 1,
		EndLine:    int(node.EndPoint().Row) + 1,
		Name:       name,
		NamePath:   NamePath(module, spec, node, src),
		Signature:  signature(node, src),
		Docstring:  docstring(spec, node, src),
		Decorators: decorators(spec, node, src),
		Calls:      e.outgoingCalls(spec, node, src),
		Complexity: e.complexity(spec, node, src),
	}
	if chunkType == types.ChunkClass {
		chunk.Imports = inheritedBases(spec, node, src)
	}
	chunk.LineCount = chunk.EndLine - chunk.StartLine + 1
	chunk.ComputeContentHash()
	return chunk
}

// ModulePath converts a relative file path into a dotted module path:
// models/user.py becomes models.user.
func ModulePath(filePath string) string {
	trimmed := strings.TrimSuffix(filePath, filepath.Ext(filePath))
	trimmed = strings.TrimSuffix(trimmed, "/__init__")
	return strings.ReplaceAll(filepath.ToSlash(trimmed), "/", ".")
}

func moduleName(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// NamePath builds the hierarchical qualified name for a definition node by
// climbing its ancestor definitions. Ancestors are collected innermost-first
// (the only order a parent walk can produce) and then reversed so the result
// reads outermost-to-innermost.
func NamePath(module string, spec *parser.LanguageSpec, node *sitter.Node, src []byte) string {
	parts := []string{definitionName(spec, node, src)}
	for anc := node.Parent(); anc != nil; anc = anc.Parent() {
		if spec.IsDefinition(anc.Type()) {
			if name := definitionName(spec, anc, src); name != "" {
				parts = append(parts, name)
			}
		}
	}

	// parts is innermost-first; reverse in place.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}

	if module == "" {
		return strings.Join(parts, ".")
	}
	return module + "." + strings.Join(parts, ".")
}

// definitionName extracts the declared name of a definition node.
func definitionName(spec *parser.LanguageSpec, node *sitter.Node, src []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	// Go type_declaration wraps the name inside a type_spec child.
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "type_spec" {
			if name := child.ChildByFieldName("name"); name != nil {
				return name.Content(src)
			}
		}
	}
	// Rust impl blocks name the implemented type.
	if typ := node.ChildByFieldName("type"); typ != nil {
		return typ.Content(src)
	}
	return ""
}

// enclosingClass returns the nearest class-kind ancestor, or nil.
func enclosingClass(spec *parser.LanguageSpec, node *sitter.Node) *sitter.Node {
	for anc := node.Parent(); anc != nil; anc = anc.Parent() {
		if spec.ClassKinds[anc.Type()] {
			return anc
		}
		if spec.FunctionKinds[anc.Type()] {
			// A function between us and any class makes this a local
			// function, not a method.
			return nil
		}
	}
	return nil
}
