// Package extractor converts a documentSymbol response (hierarchical or
// flat) into codescope's own SymbolInfo tree, and normalizes hover
// content to plain text.
package extractor

import (
	"context"

	"codescope/internal/analyze/lsptypes"
)

// SymbolInfo is one node of a file's symbol tree.
type SymbolInfo struct {
	Name           string
	Kind           lsptypes.SymbolKind
	Detail         string
	Documentation  string
	Range          lsptypes.Range
	SelectionRange lsptypes.Range
	Children       []SymbolInfo
}

// Extract builds a symbol tree from a documentSymbol response. The
// response is a disjoint union of two shapes (hierarchical
// []DocumentSymbol, or flat []SymbolInformation); each is tried in
// order and the first that parses wins, matching spec's "not via
// reflection" guidance — HoverContents/DocumentSymbolResult already did
// the shape detection, so this just walks whichever shape it holds.
func Extract(result lsptypes.DocumentSymbolResult) []SymbolInfo {
	if hier, ok := result.Hierarchical(); ok {
		return convertHierarchy(hier)
	}
	if flat, ok := result.Flat(); ok {
		return convertFlat(flat)
	}
	return nil
}

func convertHierarchy(docSymbols []lsptypes.DocumentSymbol) []SymbolInfo {
	out := make([]SymbolInfo, 0, len(docSymbols))
	for _, ds := range docSymbols {
		out = append(out, SymbolInfo{
			Name:           ds.Name,
			Kind:           ds.Kind,
			Detail:         ds.Detail,
			Range:          ds.Range,
			SelectionRange: ds.SelectionRange,
			Children:       convertHierarchy(ds.Children),
		})
	}
	return out
}

// convertFlat wraps flat SymbolInformation entries as childless nodes.
// Flat responses carry no range beyond the symbol's own location and no
// containment information besides ContainerName, which codescope does
// not attempt to reconstruct into a tree: every flat entry becomes a
// top-level SymbolInfo, matching the source's own behavior.
func convertFlat(symbols []lsptypes.SymbolInformation) []SymbolInfo {
	out := make([]SymbolInfo, 0, len(symbols))
	for _, si := range symbols {
		out = append(out, SymbolInfo{
			Name:           si.Name,
			Kind:           si.Kind,
			Range:          si.Location.Range,
			SelectionRange: si.Location.Range,
		})
	}
	return out
}

// HoverText normalizes a hover response to plain markdown text, or ""
// if hover was nil.
func HoverText(hover *lsptypes.Hover) string {
	if hover == nil {
		return ""
	}
	return hover.Contents.String()
}

// HoverFunc fetches hover content at a position. Session.Hover matches
// this signature exactly, so callers can pass it by method value with
// no adapter. Implementations should degrade a missing/erroring hover
// to (nil, nil); AttachHover treats any non-nil error as "skip this
// node", never as a reason to abort extraction.
type HoverFunc func(ctx context.Context, uri lsptypes.DocumentURI, pos lsptypes.Position) (*lsptypes.Hover, error)

// AttachHover walks symbols preorder and fills in Documentation from a
// per-node hover request at SelectionRange.Start. One position rule
// covers both documentSymbol shapes: convertFlat already copies a flat
// entry's location range into SelectionRange, so "hover at the
// symbol's location" (flat) and "hover at selection_range.start"
// (hierarchical) are the same walk. hover may be nil, in which case
// AttachHover is a no-op — callers that skip hover (e.g. no session)
// don't need to special-case the call.
func AttachHover(ctx context.Context, symbols []SymbolInfo, uri lsptypes.DocumentURI, hover HoverFunc) {
	if hover == nil {
		return
	}
	for i := range symbols {
		h, err := hover(ctx, uri, symbols[i].SelectionRange.Start)
		if err == nil {
			symbols[i].Documentation = HoverText(h)
		}
		AttachHover(ctx, symbols[i].Children, uri, hover)
	}
}

// FilterByKind returns only the symbols (recursively) matching one of
// the given kinds.
func FilterByKind(symbols []SymbolInfo, kinds ...lsptypes.SymbolKind) []SymbolInfo {
	want := make(map[lsptypes.SymbolKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []SymbolInfo
	var walk func([]SymbolInfo)
	walk = func(symbols []SymbolInfo) {
		for _, sym := range symbols {
			if want[sym.Kind] {
				out = append(out, sym)
			}
			walk(sym.Children)
		}
	}
	walk(symbols)
	return out
}

// Symbol kinds, per the LSP SymbolKind enum.
const (
	KindFile          lsptypes.SymbolKind = 1
	KindModule        lsptypes.SymbolKind = 2
	KindNamespace     lsptypes.SymbolKind = 3
	KindPackage       lsptypes.SymbolKind = 4
	KindClass         lsptypes.SymbolKind = 5
	KindMethod        lsptypes.SymbolKind = 6
	KindProperty      lsptypes.SymbolKind = 7
	KindField         lsptypes.SymbolKind = 8
	KindConstructor   lsptypes.SymbolKind = 9
	KindEnum          lsptypes.SymbolKind = 10
	KindInterface     lsptypes.SymbolKind = 11
	KindFunction      lsptypes.SymbolKind = 12
	KindVariable      lsptypes.SymbolKind = 13
	KindConstant      lsptypes.SymbolKind = 14
	KindString        lsptypes.SymbolKind = 15
	KindNumber        lsptypes.SymbolKind = 16
	KindBoolean       lsptypes.SymbolKind = 17
	KindArray         lsptypes.SymbolKind = 18
	KindObject        lsptypes.SymbolKind = 19
	KindKey           lsptypes.SymbolKind = 20
	KindNull          lsptypes.SymbolKind = 21
	KindEnumMember    lsptypes.SymbolKind = 22
	KindStruct        lsptypes.SymbolKind = 23
	KindEvent         lsptypes.SymbolKind = 24
	KindOperator      lsptypes.SymbolKind = 25
	KindTypeParameter lsptypes.SymbolKind = 26
)

// Functions returns all Function and Method symbols in the tree.
func Functions(symbols []SymbolInfo) []SymbolInfo {
	return FilterByKind(symbols, KindFunction, KindMethod)
}

// Types returns all type-defining symbols in the tree.
func Types(symbols []SymbolInfo) []SymbolInfo {
	return FilterByKind(symbols, KindClass, KindStruct, KindEnum, KindInterface)
}

// Variables returns all Variable and Constant symbols in the tree.
func Variables(symbols []SymbolInfo) []SymbolInfo {
	return FilterByKind(symbols, KindVariable, KindConstant)
}
