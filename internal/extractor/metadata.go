package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/reposcope/reposcope/internal/parser"
)

// signature is the definition header: everything from the start of the node
// up to its body, collapsed to one line.
func signature(node *sitter.Node, src []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.StartByte() <= node.StartByte() {
		// No body field: fall back to the first source line.
		text := node.Content(src)
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}
	header := string(src[node.StartByte():body.StartByte()])
	header = strings.TrimRight(strings.TrimSpace(header), ":{")
	return strings.Join(strings.Fields(header), " ")
}

// docstring extracts documentation for a definition. Python carries it as the
// first string expression of the body; everything else uses the comment block
// immediately preceding the definition.
func docstring(spec *parser.LanguageSpec, node *sitter.Node, src []byte) string {
	if spec.DocstringInBody {
		return bodyDocstring(node, src)
	}
	return precedingComments(node, src)
}

func bodyDocstring(node *sitter.Node, src []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return trimStringQuotes(str.Content(src))
}

func precedingComments(node *sitter.Node, src []byte) string {
	// Decorator wrappers sit between the comment and the definition.
	top := node
	if parent := top.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		top = parent
	}

	var lines []string
	for sib := top.PrevNamedSibling(); sib != nil && isCommentKind(sib.Type()); sib = sib.PrevNamedSibling() {
		lines = append(lines, cleanCommentLine(sib.Content(src)))
	}
	if len(lines) == 0 {
		return ""
	}
	// Collected bottom-up; restore source order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

func isCommentKind(kind string) bool {
	return kind == "comment" || kind == "line_comment" || kind == "block_comment"
}

func cleanCommentLine(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "///")
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimPrefix(text, "#")
	if strings.HasPrefix(text, "/*") {
		text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
	}
	return strings.TrimSpace(text)
}

func trimStringQuotes(text string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return strings.TrimSpace(text[len(q) : len(text)-len(q)])
		}
	}
	return strings.TrimSpace(text)
}

// decorators collects decorator text for definitions wrapped in a
// decorated_definition (Python); languages without decorators return nil.
func decorators(spec *parser.LanguageSpec, node *sitter.Node, src []byte) []string {
	if spec.DecoratorKind == "" {
		return nil
	}
	parent := node.Parent()
	if parent == nil || parent.Type() != "decorated_definition" {
		return nil
	}
	var out []string
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)
		if child.Type() == spec.DecoratorKind {
			out = append(out, strings.TrimPrefix(child.Content(src), "@"))
		}
	}
	return out
}

// moduleImports collects module-level import references: only imports that
// are direct children of the root count, nested/function-local imports do
// not.
func (e *Extractor) moduleImports(spec *parser.LanguageSpec, root *sitter.Node, src []byte) []string {
	var out []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if spec.ImportKinds[child.Type()] {
			out = append(out, importRefs(child, src)...)
		}
	}
	return out
}

// importRefs extracts the imported module/symbol names from one import
// statement node, whatever the language shape.
func importRefs(node *sitter.Node, src []byte) []string {
	// from X import a, b: the module_name field is the reference.
	if mod := node.ChildByFieldName("module_name"); mod != nil {
		return []string{mod.Content(src)}
	}

	var out []string
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "dotted_name", "scoped_identifier", "use_wildcard":
			out = append(out, n.Content(src))
			return
		case "aliased_import":
			if name := n.ChildByFieldName("name"); name != nil {
				out = append(out, name.Content(src))
				return
			}
		case "interpreted_string_literal", "string", "string_literal":
			out = append(out, importPathTail(trimStringQuotes(n.Content(src))))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(node)
	return out
}

// importPathTail reduces "github.com/acme/pkg/sub" or "./lib/util" to a
// reference comparable against module paths.
func importPathTail(path string) string {
	path = strings.TrimPrefix(path, "./")
	return strings.ReplaceAll(path, "/", ".")
}

// inheritedBases returns base-class references for a class definition:
// Python superclasses, JS/TS heritage clauses.
func inheritedBases(spec *parser.LanguageSpec, node *sitter.Node, src []byte) []string {
	var out []string
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			child := supers.NamedChild(i)
			if child.Type() == "identifier" || child.Type() == "attribute" {
				out = append(out, child.Content(src))
			}
		}
		return out
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "class_heritage" || child.Type() == "extends_clause" {
			for j := 0; j < int(child.NamedChildCount()); j++ {
				out = append(out, child.NamedChild(j).Content(src))
			}
		}
	}
	return out
}

// outgoingCalls finds call targets within a definition body, stopping at
// nested definitions (their calls belong to their own chunk) and dropping
// deny-listed builtin names.
func (e *Extractor) outgoingCalls(spec *parser.LanguageSpec, node *sitter.Node, src []byte) []string {
	var out []string
	seen := make(map[string]bool)

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n != node && spec.IsDefinition(n.Type()) {
			return
		}
		if n.Type() == spec.CallKind {
			if name := calleeName(n, src); name != "" && !e.denylist.Has(name) && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(node)
	return out
}

// calleeName extracts the called name from a call node, normalizing away
// self/this receivers so method calls resolve against the defining class.
func calleeName(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	name := fn.Content(src)
	name = strings.TrimPrefix(name, "self.")
	name = strings.TrimPrefix(name, "this.")
	return name
}

// complexity counts branch points within a definition body plus one, the
// classic cyclomatic measure: if/for/while/except plus short-circuit boolean
// operators. Nested definitions are skipped; they carry their own count.
func (e *Extractor) complexity(spec *parser.LanguageSpec, node *sitter.Node, src []byte) int {
	count := 1

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n != node && spec.IsDefinition(n.Type()) {
			return
		}
		kind := n.Type()
		if spec.BranchKinds[kind] {
			count++
		} else if kind == spec.BooleanOperatorKind && isShortCircuit(n, src) {
			count++
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(node)
	return count
}

// isShortCircuit keeps only and/or/&&/|| out of the generic binary-expression
// kinds some grammars use for all infix operators.
func isShortCircuit(n *sitter.Node, src []byte) bool {
	if n.Type() == "boolean_operator" {
		return true
	}
	op := n.ChildByFieldName("operator")
	if op == nil {
		return false
	}
	switch op.Content(src) {
	case "&&", "||", "and", "or":
		return true
	}
	return false
}
