package typeref

import (
	"testing"

	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/project"
)

func rng(startChar, endChar uint32) lsptypes.Range {
	return lsptypes.Range{
		Start: lsptypes.Position{Line: 0, Character: startChar},
		End:   lsptypes.Position{Line: 0, Character: endChar},
	}
}

func TestExtractFunctionReturnTypeRust(t *testing.T) {
	m := New(project.Rust)
	fn := extractor.SymbolInfo{
		Name:           "parse",
		Kind:           extractor.KindFunction,
		Detail:         "fn parse(input: &str) -> Result<Config, ParseError>",
		SelectionRange: rng(3, 8),
		Range:          rng(0, 40),
	}

	refs := m.Extract(fn, "file:///a.rs")
	names := map[string]bool{}
	for _, r := range refs {
		if r.Context == FunctionReturn {
			names[r.TypeName] = true
		}
	}
	if !names["Config"] || !names["ParseError"] {
		t.Fatalf("return type refs = %+v, want Config and ParseError", refs)
	}
	if names["Result"] {
		t.Fatalf("Result should be filtered as a builtin, got %+v", refs)
	}
}

func TestExtractFunctionReturnTypeWhereClauseStripped(t *testing.T) {
	m := New(project.Rust)
	fn := extractor.SymbolInfo{
		Name:   "build",
		Kind:   extractor.KindFunction,
		Detail: "fn build<T>() -> T where T: Default",
	}
	refs := m.Extract(fn, "file:///a.rs")
	for _, r := range refs {
		if r.TypeName == "Default" {
			t.Fatalf("where clause should have been stripped, got %+v", refs)
		}
	}
}

func TestExtractStructFieldTypes(t *testing.T) {
	m := New(project.Rust)
	field := extractor.SymbolInfo{
		Name:           "name",
		Kind:           extractor.KindField,
		Detail:         "String",
		SelectionRange: rng(4, 8),
	}
	strct := extractor.SymbolInfo{
		Name:     "User",
		Kind:     extractor.KindStruct,
		Children: []extractor.SymbolInfo{field},
	}

	refs := m.Extract(strct, "file:///a.rs")
	if len(refs) != 0 {
		t.Fatalf("String is a builtin, expected no refs, got %+v", refs)
	}

	field2 := extractor.SymbolInfo{
		Name:           "owner",
		Kind:           extractor.KindField,
		Detail:         "Account",
		SelectionRange: rng(4, 9),
	}
	strct.Children = []extractor.SymbolInfo{field2}
	refs = m.Extract(strct, "file:///a.rs")
	if len(refs) != 1 || refs[0].TypeName != "Account" || refs[0].Context != StructField {
		t.Fatalf("refs = %+v, want single Account StructField ref", refs)
	}
	if refs[0].CharOffset == nil {
		t.Fatalf("expected CharOffset to be set")
	}
}

func TestExtractParametersTypeScript(t *testing.T) {
	m := New(project.TypeScript)
	param := extractor.SymbolInfo{
		Name:   "opts",
		Kind:   extractor.KindVariable,
		Detail: "opts: RequestOptions",
	}
	fn := extractor.SymbolInfo{
		Name:     "fetch",
		Kind:     extractor.KindFunction,
		Detail:   "fetch(opts: RequestOptions): Promise<Response>",
		Children: []extractor.SymbolInfo{param},
	}

	refs := m.Extract(fn, "file:///a.ts")
	var gotParam, gotReturn bool
	for _, r := range refs {
		if r.Context == FunctionParameter && r.TypeName == "RequestOptions" {
			gotParam = true
		}
		if r.Context == FunctionReturn && r.TypeName == "Response" {
			gotReturn = true
		}
	}
	if !gotParam {
		t.Fatalf("missing RequestOptions parameter ref, got %+v", refs)
	}
	if !gotReturn {
		t.Fatalf("missing Response return ref (Promise should be filtered), got %+v", refs)
	}
}

func TestExtractGoReturnType(t *testing.T) {
	m := New(project.Go)
	fn := extractor.SymbolInfo{
		Name:   "Open",
		Kind:   extractor.KindFunction,
		Detail: "func Open(path string) (*File, error)",
	}
	refs := m.Extract(fn, "file:///a.go")
	var gotFile bool
	for _, r := range refs {
		if r.TypeName == "File" {
			gotFile = true
		}
		if r.TypeName == "error" {
			t.Fatalf("error is a builtin and should be filtered, got %+v", refs)
		}
	}
	if !gotFile {
		t.Fatalf("missing File return ref, got %+v", refs)
	}
}

func TestExtractPythonHoverFallback(t *testing.T) {
	m := New(project.Python)
	param := extractor.SymbolInfo{
		Name:          "value",
		Kind:          extractor.KindVariable,
		Documentation: "(parameter) value: Config",
	}
	fn := extractor.SymbolInfo{
		Name:          "configure",
		Kind:          extractor.KindFunction,
		Documentation: "(function) def configure(value: Config) -> Result",
		Children:      []extractor.SymbolInfo{param},
	}

	refs := m.Extract(fn, "file:///a.py")
	var gotParam, gotReturn bool
	for _, r := range refs {
		if r.Context == FunctionParameter && r.TypeName == "Config" {
			gotParam = true
		}
		if r.Context == FunctionReturn && r.TypeName == "Result" {
			gotReturn = true
		}
	}
	if !gotParam || !gotReturn {
		t.Fatalf("refs = %+v, want Config parameter and Result return from hover fallback", refs)
	}
}

func TestExtractTypeParameterBound(t *testing.T) {
	m := New(project.Rust)
	tp := extractor.SymbolInfo{
		Name:   "T",
		Kind:   extractor.KindTypeParameter,
		Detail: "Serialize",
	}
	refs := m.Extract(tp, "file:///a.rs")
	if len(refs) != 1 || refs[0].TypeName != "Serialize" || refs[0].Context != TypeAlias {
		t.Fatalf("refs = %+v, want single Serialize TypeAlias ref", refs)
	}
}

func TestQualifiedPathTakesLastSegment(t *testing.T) {
	m := New(project.Rust)
	fn := extractor.SymbolInfo{
		Name:   "load",
		Kind:   extractor.KindFunction,
		Detail: "fn load() -> std::collections::HashMap<K, V>",
	}
	refs := m.Extract(fn, "file:///a.rs")
	for _, r := range refs {
		if r.TypeName == "std" || r.TypeName == "collections" {
			t.Fatalf("qualified path segments should be collapsed to the last segment, got %+v", refs)
		}
	}
}
