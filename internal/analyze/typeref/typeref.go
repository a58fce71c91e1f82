// Package typeref mines type references out of a symbol tree: function
// parameter and return types, struct field types, type-parameter
// bounds. Extraction is heuristic and per-language, not a real parser,
// matching the engine's stated Non-goal of not parsing source languages
// directly.
package typeref

import (
	"regexp"
	"strings"

	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/project"
)

// Context is where a mined type name was used.
type Context int

const (
	FunctionParameter Context = iota
	FunctionReturn
	StructField
	TypeAlias
	TraitBound
)

// Reference is one mined type name and where it came from.
type Reference struct {
	TypeName   string
	Context    Context
	Position   lsptypes.Position
	URI        lsptypes.DocumentURI
	CharOffset *uint32
}

// Miner extracts type references for one project kind.
type Miner struct {
	projectKind project.Type
	builtins    map[string]bool
}

// New builds a Miner with the builtin-type table for projectKind.
func New(projectKind project.Type) *Miner {
	return &Miner{projectKind: projectKind, builtins: builtinTypes(projectKind)}
}

var (
	identWithColonPath = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*(?:::[a-zA-Z][a-zA-Z0-9_]*)*`)
	identPython        = regexp.MustCompile(`[a-z_][a-zA-Z0-9_]*(?:\.[a-zA-Z][a-zA-Z0-9_]*)*|[A-Z][a-zA-Z0-9_]*`)
)

// Extract mines every type reference out of a single symbol (not its
// descendants — callers walk the tree and call Extract per node).
func (m *Miner) Extract(symbol extractor.SymbolInfo, uri lsptypes.DocumentURI) []Reference {
	var refs []Reference

	switch symbol.Kind {
	case extractor.KindFunction, extractor.KindMethod:
		refs = append(refs, m.extractParameters(symbol, uri)...)
		refs = append(refs, m.extractReturnType(symbol, uri)...)

	case extractor.KindStruct, extractor.KindClass:
		for _, child := range symbol.Children {
			if child.Kind == extractor.KindField || child.Kind == extractor.KindProperty {
				refs = append(refs, m.extractFieldType(child, uri)...)
			}
		}

	case extractor.KindField, extractor.KindProperty:
		refs = append(refs, m.extractFieldType(symbol, uri)...)

	case extractor.KindTypeParameter:
		if symbol.Detail != "" {
			for _, name := range m.extractTypeNames(symbol.Detail) {
				refs = append(refs, Reference{
					TypeName: name,
					Context:  TypeAlias,
					Position: symbol.SelectionRange.Start,
					URI:      uri,
				})
			}
		}
	}

	return m.filterBuiltins(refs)
}

// extractParameters mines types from children LSP classifies as
// Variable/Constant, excluding anything that's really a nested
// Function/Method/Class. Some servers use other kinds (e.g. Namespace)
// for parameter-like children; those are not matched here, which can
// under-report parameters for such servers. Not widened — left as the
// source's own known false-negative, real-world tuning is expected.
func (m *Miner) extractParameters(symbol extractor.SymbolInfo, uri lsptypes.DocumentURI) []Reference {
	var refs []Reference
	for _, child := range symbol.Children {
		isParameterLike := (child.Kind == extractor.KindVariable || child.Kind == extractor.KindConstant) &&
			child.Kind != extractor.KindFunction && child.Kind != extractor.KindMethod && child.Kind != extractor.KindClass
		if !isParameterLike {
			continue
		}

		typeSource := child.Detail
		if typeSource == "" {
			typeSource = extractTypeFromHoverDocs(child.Documentation)
		}
		if typeSource == "" {
			continue
		}

		for _, name := range m.extractTypeNames(typeSource) {
			refs = append(refs, Reference{
				TypeName: name,
				Context:  FunctionParameter,
				Position: child.SelectionRange.Start,
				URI:      uri,
			})
		}
	}
	return refs
}

func (m *Miner) extractReturnType(symbol extractor.SymbolInfo, uri lsptypes.DocumentURI) []Reference {
	signature := symbol.Detail
	if signature == "" {
		signature = extractReturnSignatureFromHoverDocs(symbol.Documentation)
	}
	if signature == "" {
		return nil
	}

	returnType := m.returnTypeFromSignature(signature)
	if returnType == "" {
		return nil
	}

	var refs []Reference
	for _, name := range m.extractTypeNames(returnType) {
		// Approximate: the function's selection-range end, not the
		// actual "->" offset in the signature. A more precise strategy
		// would scan the detail string for that offset; left as-is,
		// matching the source this was ported from.
		refs = append(refs, Reference{
			TypeName: name,
			Context:  FunctionReturn,
			Position: symbol.SelectionRange.End,
			URI:      uri,
		})
	}
	return refs
}

func (m *Miner) extractFieldType(symbol extractor.SymbolInfo, uri lsptypes.DocumentURI) []Reference {
	if symbol.Detail == "" {
		return nil
	}
	// Where the type annotation starts: after the field name and ": ".
	annotationStart := symbol.SelectionRange.End.Character + 2

	var refs []Reference
	for _, nameOffset := range m.extractTypeNamesWithOffsets(symbol.Detail) {
		offset := uint32(nameOffset.offset)
		refs = append(refs, Reference{
			TypeName: nameOffset.name,
			Context:  StructField,
			Position: lsptypes.Position{Line: symbol.SelectionRange.Start.Line, Character: annotationStart + offset},
			URI:      uri,
			CharOffset: &offset,
		})
	}
	return refs
}

func (m *Miner) returnTypeFromSignature(detail string) string {
	switch m.projectKind {
	case project.Rust:
		if idx := strings.Index(detail, "->"); idx >= 0 {
			rest := strings.TrimSpace(detail[idx+2:])
			if wIdx := strings.Index(rest, "where"); wIdx >= 0 {
				return strings.TrimSpace(rest[:wIdx])
			}
			return rest
		}
	case project.TypeScript, project.JavaScript:
		if idx := strings.LastIndex(detail, "):"); idx >= 0 {
			return strings.TrimSpace(detail[idx+2:])
		}
		if idx := strings.LastIndex(detail, "=>"); idx >= 0 {
			return strings.TrimSpace(detail[idx+2:])
		}
	case project.Python:
		if idx := strings.Index(detail, "->"); idx >= 0 {
			return strings.TrimSpace(detail[idx+2:])
		}
	case project.Go:
		if idx := strings.Index(detail, ")"); idx >= 0 {
			return strings.TrimSpace(detail[idx+1:])
		}
	}
	return ""
}

// extractTypeFromHoverDocs finds Python's "(parameter) name: Type"
// hover shape and returns just the type text.
func extractTypeFromHoverDocs(doc string) string {
	const marker = "(parameter)"
	idx := strings.Index(doc, marker)
	if idx < 0 {
		return ""
	}
	after := doc[idx+len(marker):]
	colon := strings.Index(after, ":")
	if colon < 0 {
		return ""
	}
	afterColon := strings.TrimLeft(after[colon+1:], " \t")
	end := len(afterColon)
	if nl := strings.IndexByte(afterColon, '\n'); nl >= 0 && nl < end {
		end = nl
	}
	if bt := strings.IndexByte(afterColon, '`'); bt >= 0 && bt < end {
		end = bt
	}
	typeStr := strings.TrimSpace(afterColon[:end])
	if typeStr == "" || typeStr == "Unknown" {
		return ""
	}
	return typeStr
}

// extractReturnSignatureFromHoverDocs finds Python's
// "(function) def name(...) -> ReturnType" hover shape and returns the
// signature line for returnTypeFromSignature to parse.
func extractReturnSignatureFromHoverDocs(doc string) string {
	if !strings.Contains(doc, "(function)") && !strings.Contains(doc, "(method)") {
		return ""
	}
	idx := strings.Index(doc, "def ")
	if idx < 0 {
		return ""
	}
	rest := doc[idx:]
	end := len(rest)
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		end = nl
	}
	return strings.TrimSpace(rest[:end])
}

type nameOffset struct {
	name   string
	offset int
}

func (m *Miner) extractTypeNamesWithOffsets(typeExpr string) []nameOffset {
	re := identWithColonPath
	if m.projectKind == project.Python {
		re = identPython
	}

	var out []nameOffset
	for _, loc := range re.FindAllStringIndex(typeExpr, -1) {
		name := typeExpr[loc[0]:loc[1]]
		simple := name
		if strings.Contains(name, "::") {
			parts := strings.Split(name, "::")
			simple = parts[len(parts)-1]
		} else if strings.Contains(name, ".") {
			parts := strings.Split(name, ".")
			simple = parts[len(parts)-1]
		}
		if simple == "" {
			continue
		}
		out = append(out, nameOffset{name: simple, offset: loc[0]})
	}
	return out
}

func (m *Miner) extractTypeNames(typeExpr string) []string {
	withOffsets := m.extractTypeNamesWithOffsets(typeExpr)
	names := make([]string, len(withOffsets))
	for i, no := range withOffsets {
		names[i] = no.name
	}
	return names
}

func (m *Miner) filterBuiltins(refs []Reference) []Reference {
	out := refs[:0]
	for _, r := range refs {
		if !m.builtins[r.TypeName] {
			out = append(out, r)
		}
	}
	return out
}

func builtinTypes(kind project.Type) map[string]bool {
	var names []string
	switch kind {
	case project.Rust:
		names = []string{
			"bool", "char", "str", "String", "i8", "i16", "i32", "i64", "i128", "isize",
			"u8", "u16", "u32", "u64", "u128", "usize", "f32", "f64", "Vec", "Option",
			"Result", "Box", "Rc", "Arc", "RefCell", "Cell", "Mutex", "RwLock",
			"HashMap", "HashSet", "BTreeMap", "BTreeSet", "Path", "PathBuf",
		}
	case project.TypeScript, project.JavaScript:
		names = []string{
			"string", "number", "boolean", "any", "void", "never", "unknown", "null", "undefined",
			"String", "Number", "Boolean", "Array", "Object", "Function", "Promise", "Map", "Set", "Date", "RegExp",
		}
	case project.Python:
		names = []string{
			"str", "int", "float", "bool", "list", "dict", "tuple", "set", "frozenset", "bytes", "bytearray",
			"List", "Dict", "Tuple", "Set", "FrozenSet", "Optional", "Union", "Any", "Callable",
		}
	case project.Go:
		names = []string{
			"bool", "byte", "rune", "int", "int8", "int16", "int32", "int64", "uint",
			"uint8", "uint16", "uint32", "uint64", "float32", "float64", "complex64", "complex128", "string", "error",
		}
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
