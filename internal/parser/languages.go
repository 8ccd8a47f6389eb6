package parser

import (
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// RegisterPython registers the Python grammar.
func RegisterPython(r *Registry) {
	r.Register(&LanguageSpec{
		Name:       "python",
		Language:   python.GetLanguage(),
		Extensions: []string{"py", "pyi"},
		FunctionKinds: map[string]bool{
			"function_definition": true,
		},
		ClassKinds: map[string]bool{
			"class_definition": true,
		},
		ImportKinds: map[string]bool{
			"import_statement":      true,
			"import_from_statement": true,
		},
		CallKind: "call",
		BranchKinds: map[string]bool{
			"if_statement":           true,
			"elif_clause":            true,
			"for_statement":          true,
			"while_statement":        true,
			"except_clause":          true,
			"conditional_expression": true,
		},
		BooleanOperatorKind: "boolean_operator",
		DecoratorKind:       "decorator",
		DocstringInBody:     true,
	})
}

// RegisterGo registers the Go grammar.
func RegisterGo(r *Registry) {
	r.Register(&LanguageSpec{
		Name:       "go",
		Language:   golang.GetLanguage(),
		Extensions: []string{"go"},
		FunctionKinds: map[string]bool{
			"function_declaration": true,
			"method_declaration":   true,
		},
		ClassKinds: map[string]bool{
			"type_declaration": true,
		},
		ImportKinds: map[string]bool{
			"import_declaration": true,
		},
		CallKind: "call_expression",
		BranchKinds: map[string]bool{
			"if_statement":          true,
			"for_statement":         true,
			"expression_case":       true,
			"type_case":             true,
			"communication_case":    true,
			"select_statement":      true,
		},
		BooleanOperatorKind: "binary_expression",
	})
}

// RegisterJavaScript registers the JavaScript grammar.
func RegisterJavaScript(r *Registry) {
	r.Register(&LanguageSpec{
		Name:       "javascript",
		Language:   javascript.GetLanguage(),
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
		FunctionKinds: map[string]bool{
			"function_declaration":  true,
			"method_definition":     true,
			"generator_function_declaration": true,
		},
		ClassKinds: map[string]bool{
			"class_declaration": true,
		},
		ImportKinds: map[string]bool{
			"import_statement": true,
		},
		CallKind: "call_expression",
		BranchKinds: map[string]bool{
			"if_statement":       true,
			"for_statement":      true,
			"for_in_statement":   true,
			"while_statement":    true,
			"catch_clause":       true,
			"switch_case":        true,
			"ternary_expression": true,
		},
		BooleanOperatorKind: "binary_expression",
	})
}

// RegisterTypeScript registers the TypeScript grammar.
func RegisterTypeScript(r *Registry) {
	r.Register(&LanguageSpec{
		Name:       "typescript",
		Language:   typescript.GetLanguage(),
		Extensions: []string{"ts", "tsx"},
		FunctionKinds: map[string]bool{
			"function_declaration": true,
			"method_definition":    true,
		},
		ClassKinds: map[string]bool{
			"class_declaration":     true,
			"interface_declaration": true,
		},
		ImportKinds: map[string]bool{
			"import_statement": true,
		},
		CallKind: "call_expression",
		BranchKinds: map[string]bool{
			"if_statement":       true,
			"for_statement":      true,
			"for_in_statement":   true,
			"while_statement":    true,
			"catch_clause":       true,
			"switch_case":        true,
			"ternary_expression": true,
		},
		BooleanOperatorKind: "binary_expression",
	})
}

// RegisterRust registers the Rust grammar.
func RegisterRust(r *Registry) {
	r.Register(&LanguageSpec{
		Name:       "rust",
		Language:   rust.GetLanguage(),
		Extensions: []string{"rs"},
		FunctionKinds: map[string]bool{
			"function_item": true,
		},
		ClassKinds: map[string]bool{
			"struct_item": true,
			"enum_item":   true,
			"trait_item":  true,
			"impl_item":   true,
		},
		ImportKinds: map[string]bool{
			"use_declaration": true,
		},
		CallKind: "call_expression",
		BranchKinds: map[string]bool{
			"if_expression":    true,
			"for_expression":   true,
			"while_expression": true,
			"match_arm":        true,
		},
		BooleanOperatorKind: "binary_expression",
	})
}
