package extractor

// DenyList is the set of call names never turned into graph edges. It is
// immutable configuration injected into the extractor, not a package-level
// mutable singleton.
type DenyList map[string]struct{}

// Has reports whether a call name is deny-listed.
func (d DenyList) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// DefaultDenyList covers the builtin and stdlib call names of the supported
// languages so the graph is not polluted with edges to print, len, and
// friends.
func DefaultDenyList() DenyList {
	names := []string{
		// Python builtins
		"print", "len", "range", "str", "int", "float", "bool", "list",
		"dict", "set", "tuple", "type", "isinstance", "issubclass", "super",
		"getattr", "setattr", "hasattr", "repr", "format", "open", "input",
		"enumerate", "zip", "map", "filter", "sorted", "reversed", "sum",
		"min", "max", "abs", "round", "any", "all", "iter", "next", "id",
		"hash", "vars", "dir", "callable", "frozenset", "bytes", "bytearray",
		"ValueError", "TypeError", "KeyError", "RuntimeError", "Exception",
		// Go builtins
		"append", "cap", "clear", "close", "copy", "delete", "make", "new",
		"panic", "recover", "complex", "real", "imag",
		// JavaScript / TypeScript globals
		"require", "parseInt", "parseFloat", "String", "Number", "Boolean",
		"Array", "Object", "JSON", "Promise", "Error", "Symbol", "Math",
		"console.log", "console.error", "console.warn", "console.info",
		"setTimeout", "setInterval", "clearTimeout", "clearInterval",
		// Rust macros-as-calls and prelude
		"println", "format", "vec", "Some", "None", "Ok", "Err", "Box",
	}
	d := make(DenyList, len(names))
	for _, n := range names {
		d[n] = struct{}{}
	}
	return d
}
