// Package symbolindex builds a flat name-to-location index restricted
// to type-defining symbol kinds, letting the resolver find a type's
// definition without a second round-trip to the language server.
package symbolindex

import (
	"sync"

	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/lsptypes"
)

// Location is where one symbol is defined.
type Location struct {
	URI       lsptypes.DocumentURI
	LineStart uint32
	LineEnd   uint32
	Kind      lsptypes.SymbolKind
	Detail    string
}

// Index maps a symbol name to every location it's defined at.
type Index struct {
	mu      sync.RWMutex
	symbols map[string][]Location
}

// New returns an empty Index.
func New() *Index {
	return &Index{symbols: make(map[string][]Location)}
}

// indexableKinds are the only kinds ever added to the index. Fields and
// properties are never indexed directly — a resolver reaches them by
// traversing their parent struct/class's children, not by name lookup.
var indexableKinds = map[lsptypes.SymbolKind]bool{
	extractor.KindStruct:        true,
	extractor.KindClass:         true,
	extractor.KindEnum:          true,
	extractor.KindInterface:     true,
	extractor.KindTypeParameter: true,
	extractor.KindModule:        true,
	extractor.KindNamespace:     true,
}

// BuildFromFiles builds an Index from every file's extracted symbol
// tree. Only top-level symbols and their direct children are
// considered — the index does not recurse into grandchildren.
func BuildFromFiles(fileSymbols map[lsptypes.DocumentURI][]extractor.SymbolInfo) *Index {
	idx := New()
	for uri, symbols := range fileSymbols {
		idx.AddFile(uri, symbols)
	}
	return idx
}

// AddFile adds one file's top-level symbols and their direct children
// to the index.
func (idx *Index) AddFile(uri lsptypes.DocumentURI, symbols []extractor.SymbolInfo) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, sym := range symbols {
		idx.addSymbol(uri, sym)
		for _, child := range sym.Children {
			idx.addSymbol(uri, child)
		}
	}
}

func (idx *Index) addSymbol(uri lsptypes.DocumentURI, sym extractor.SymbolInfo) {
	if !indexableKinds[sym.Kind] {
		return
	}
	idx.symbols[sym.Name] = append(idx.symbols[sym.Name], Location{
		URI:       uri,
		LineStart: sym.Range.Start.Line,
		LineEnd:   sym.Range.End.Line,
		Kind:      sym.Kind,
		Detail:    sym.Detail,
	})
}

// Lookup returns every indexed location for name.
func (idx *Index) Lookup(name string) ([]Location, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	locs, ok := idx.symbols[name]
	return locs, ok
}

// AllNames returns every indexed symbol name, in no particular order.
func (idx *Index) AllNames() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := make([]string, 0, len(idx.symbols))
	for name := range idx.symbols {
		names = append(names, name)
	}
	return names
}

// Len returns the number of distinct indexed names.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.symbols)
}
