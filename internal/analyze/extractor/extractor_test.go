package extractor

import (
	"encoding/json"
	"testing"

	"codescope/internal/analyze/lsptypes"
)

func parseDocumentSymbolResult(t *testing.T, raw string) lsptypes.DocumentSymbolResult {
	t.Helper()
	var result lsptypes.DocumentSymbolResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("unmarshaling fixture: %v", err)
	}
	return result
}

func TestExtractHierarchical(t *testing.T) {
	raw := `[{
		"name": "Foo",
		"kind": 23,
		"range": {"start": {"line": 0, "character": 0}, "end": {"line": 10, "character": 0}},
		"selectionRange": {"start": {"line": 0, "character": 6}, "end": {"line": 0, "character": 9}},
		"children": [
			{"name": "bar", "kind": 8, "range": {"start": {"line":1,"character":4}, "end": {"line":1,"character":10}}, "selectionRange": {"start": {"line":1,"character":4}, "end": {"line":1,"character":7}}}
		]
	}]`

	symbols := Extract(parseDocumentSymbolResult(t, raw))
	if len(symbols) != 1 {
		t.Fatalf("got %d top-level symbols, want 1", len(symbols))
	}
	if symbols[0].Name != "Foo" || symbols[0].Kind != KindStruct {
		t.Fatalf("top-level symbol = %+v", symbols[0])
	}
	if len(symbols[0].Children) != 1 || symbols[0].Children[0].Name != "bar" {
		t.Fatalf("children = %+v", symbols[0].Children)
	}
}

func TestExtractFlat(t *testing.T) {
	raw := `[{"name": "main", "kind": 12, "location": {"uri": "file:///a.go", "range": {"start": {"line":0,"character":0}, "end": {"line":2,"character":0}}}}]`

	symbols := Extract(parseDocumentSymbolResult(t, raw))
	if len(symbols) != 1 || symbols[0].Name != "main" || symbols[0].Kind != KindFunction {
		t.Fatalf("flat extraction = %+v", symbols)
	}
	// A flat SymbolInformation response carries no top-level "range"/
	// "selectionRange" keys; if shape detection mistook it for a
	// hierarchical []DocumentSymbol, these would decode as zero values
	// instead of the location's actual range.
	if symbols[0].Range.End.Line != 2 {
		t.Fatalf("range not populated from location, got %+v", symbols[0].Range)
	}
}

func TestExtractNullIsEmpty(t *testing.T) {
	symbols := Extract(parseDocumentSymbolResult(t, `null`))
	if len(symbols) != 0 {
		t.Fatalf("got %d symbols for a null response, want 0", len(symbols))
	}
}

func TestFilterFunctions(t *testing.T) {
	symbols := []SymbolInfo{
		{Name: "f", Kind: KindFunction},
		{Name: "S", Kind: KindStruct, Children: []SymbolInfo{{Name: "m", Kind: KindMethod}}},
	}
	got := Functions(symbols)
	if len(got) != 2 {
		t.Fatalf("Functions() returned %d symbols, want 2 (got %+v)", len(got), got)
	}
}

func TestFilterTypes(t *testing.T) {
	symbols := []SymbolInfo{
		{Name: "f", Kind: KindFunction},
		{Name: "S", Kind: KindStruct},
		{Name: "E", Kind: KindEnum},
	}
	got := Types(symbols)
	if len(got) != 2 {
		t.Fatalf("Types() returned %d symbols, want 2", len(got))
	}
}

func TestHoverTextHandlesNil(t *testing.T) {
	if got := HoverText(nil); got != "" {
		t.Fatalf("HoverText(nil) = %q, want empty string", got)
	}
}

func TestHoverTextMarkupContent(t *testing.T) {
	raw := `{"contents": {"kind": "markdown", "value": "**bold**"}}`
	var hover lsptypes.Hover
	if err := json.Unmarshal([]byte(raw), &hover); err != nil {
		t.Fatalf("unmarshaling hover fixture: %v", err)
	}
	if got := HoverText(&hover); got != "**bold**" {
		t.Fatalf("HoverText() = %q, want \"**bold**\"", got)
	}
}
