package resolver

import (
	"context"
	"errors"
	"testing"

	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/symbolindex"
	"codescope/internal/analyze/typeref"
)

type fakeDefiner struct {
	result lsptypes.GotoDefinitionResult
	err    error
	called bool
}

func (f *fakeDefiner) TypeDefinition(ctx context.Context, uri lsptypes.DocumentURI, pos lsptypes.Position) (lsptypes.GotoDefinitionResult, error) {
	f.called = true
	return f.result, f.err
}

func TestResolveOneLocalHit(t *testing.T) {
	index := symbolindex.New()
	index.AddFile("file:///a.rs", symbolsWithStruct("Config"))

	r := newWithDefiner(index, nil, nil)
	got := r.ResolveOne(context.Background(), typeref.Reference{TypeName: "Config"})
	if got.Resolution != Local {
		t.Fatalf("resolution = %v, want Local", got.Resolution)
	}
	if got.URI != "file:///a.rs" {
		t.Fatalf("URI = %q", got.URI)
	}
}

func TestResolveOneFallsThroughToLSP(t *testing.T) {
	index := symbolindex.New()
	def := &fakeDefiner{result: singleLocationResult("file:///b.rs", 42)}

	r := newWithDefiner(index, def, nil)
	got := r.ResolveOne(context.Background(), typeref.Reference{TypeName: "Unknown", URI: "file:///a.rs"})

	if !def.called {
		t.Fatalf("expected typeDefinition to be queried")
	}
	if got.Resolution != External {
		t.Fatalf("resolution = %v, want External", got.Resolution)
	}
	if got.Line != 42 {
		t.Fatalf("line = %d, want 42", got.Line)
	}
}

func TestResolveOneUnresolvedWithoutSession(t *testing.T) {
	index := symbolindex.New()
	r := newWithDefiner(index, nil, nil)
	got := r.ResolveOne(context.Background(), typeref.Reference{TypeName: "Ghost"})
	if got.Resolution != Unresolved {
		t.Fatalf("resolution = %v, want Unresolved", got.Resolution)
	}
}

func TestResolveOneLspErrorIsUnresolved(t *testing.T) {
	index := symbolindex.New()
	def := &fakeDefiner{err: errors.New("boom")}
	r := newWithDefiner(index, def, nil)
	got := r.ResolveOne(context.Background(), typeref.Reference{TypeName: "Ghost"})
	if got.Resolution != Unresolved {
		t.Fatalf("resolution = %v, want Unresolved", got.Resolution)
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	index := symbolindex.New()
	index.AddFile("file:///a.rs", symbolsWithStruct("A"))
	r := newWithDefiner(index, nil, nil)

	refs := []typeref.Reference{{TypeName: "A"}, {TypeName: "B"}}
	got := r.ResolveAll(context.Background(), refs)
	if len(got) != 2 || got[0].TypeName != "A" || got[1].TypeName != "B" {
		t.Fatalf("ResolveAll = %+v", got)
	}
}

func symbolsWithStruct(name string) []extractor.SymbolInfo {
	return []extractor.SymbolInfo{{Name: name, Kind: extractor.KindStruct}}
}

func singleLocationResult(uriStr string, line uint32) lsptypes.GotoDefinitionResult {
	raw := []byte(`{"uri":"` + uriStr + `","range":{"start":{"line":` + itoa(line) + `,"character":0},"end":{"line":` + itoa(line) + `,"character":1}}}`)
	var result lsptypes.GotoDefinitionResult
	if err := result.UnmarshalJSON(raw); err != nil {
		panic(err)
	}
	return result
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
