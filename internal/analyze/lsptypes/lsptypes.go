// Package lsptypes holds the wire-level JSON shapes codescope's session
// reads and writes. Simple geometry and capability types are aliased
// straight from go.lsp.dev/protocol; the disjoint-union response shapes
// (documentSymbol, typeDefinition, workspace/symbol) are hand-rolled
// here because the session parses them order-sensitively, per spec.
package lsptypes

import (
	"encoding/json"

	"go.lsp.dev/protocol"
)

// Re-exported so callers never need to import go.lsp.dev/protocol
// themselves.
type (
	Position           = protocol.Position
	Range              = protocol.Range
	Location           = protocol.Location
	LocationLink       = protocol.LocationLink
	DocumentURI        = protocol.DocumentURI
	SymbolKind         = protocol.SymbolKind
	Diagnostic         = protocol.Diagnostic
	DiagnosticSeverity = protocol.DiagnosticSeverity
	ClientCapabilities = protocol.ClientCapabilities
	MarkupContent      = protocol.MarkupContent
	MarkupKind         = protocol.MarkupKind
	WorkspaceFolder    = protocol.WorkspaceFolder
	TextDocumentItem   = protocol.TextDocumentItem
)

// DocumentSymbol is the hierarchical documentSymbol shape
// (textDocument/documentSymbol when the server supports nesting).
type DocumentSymbol struct {
	Name           string           `json:"name"`
	Detail         string           `json:"detail,omitempty"`
	Kind           SymbolKind       `json:"kind"`
	Range          Range            `json:"range"`
	SelectionRange Range            `json:"selectionRange"`
	Children       []DocumentSymbol `json:"children,omitempty"`
}

// SymbolInformation is the flat documentSymbol/workspace-symbol shape
// every server supports as a fallback.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// Hover is textDocument/hover's result. Contents can legally be a bare
// string, a {language,value} pair, an array of either, or a
// MarkupContent object; HoverContents below absorbs all four.
type Hover struct {
	Contents HoverContents `json:"contents"`
	Range    *Range        `json:"range,omitempty"`
}

// HoverContents stores the raw bytes of textDocument/hover's contents
// field and exposes a single String() that normalizes every legal shape
// to plain markdown text. The shape is decided at read time, in the
// order the LSP spec lists them, not via reflection.
type HoverContents struct {
	raw json.RawMessage
}

func (h *HoverContents) UnmarshalJSON(data []byte) error {
	h.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (h HoverContents) MarshalJSON() ([]byte, error) {
	if h.raw == nil {
		return []byte("null"), nil
	}
	return h.raw, nil
}

// String renders hover contents to plain markdown, trying each legal
// shape in spec order and stopping at the first that parses.
func (h HoverContents) String() string {
	if len(h.raw) == 0 {
		return ""
	}

	// MarkupContent: {"kind": "...", "value": "..."}
	var markup MarkupContent
	if err := json.Unmarshal(h.raw, &markup); err == nil && markup.Value != "" {
		return markup.Value
	}

	// Bare string.
	var s string
	if err := json.Unmarshal(h.raw, &s); err == nil {
		return s
	}

	// {language, value} MarkedString.
	var marked struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(h.raw, &marked); err == nil && marked.Value != "" {
		return marked.Value
	}

	// Array of any of the above.
	var arr []json.RawMessage
	if err := json.Unmarshal(h.raw, &arr); err == nil {
		var parts string
		for _, item := range arr {
			var nested HoverContents
			nested.raw = item
			if s := nested.String(); s != "" {
				if parts != "" {
					parts += "\n\n"
				}
				parts += s
			}
		}
		return parts
	}

	return ""
}

// GotoDefinitionResult absorbs typeDefinition/definition's three legal
// shapes: a single Location, a Location array, or a LocationLink array.
type GotoDefinitionResult struct {
	raw json.RawMessage
}

func (g *GotoDefinitionResult) UnmarshalJSON(data []byte) error {
	g.raw = append(json.RawMessage(nil), data...)
	return nil
}

// First returns the URI and range of the first location in whichever
// shape the server sent, trying Location, then []Location, then
// []LocationLink in that order, stopping at the first that unmarshals
// with a non-empty URI.
func (g GotoDefinitionResult) First() (uri DocumentURI, rng Range, ok bool) {
	if len(g.raw) == 0 || string(g.raw) == "null" {
		return "", Range{}, false
	}

	var loc Location
	if err := json.Unmarshal(g.raw, &loc); err == nil && loc.URI != "" {
		return loc.URI, loc.Range, true
	}

	var locs []Location
	if err := json.Unmarshal(g.raw, &locs); err == nil && len(locs) > 0 && locs[0].URI != "" {
		return locs[0].URI, locs[0].Range, true
	}

	var links []LocationLink
	if err := json.Unmarshal(g.raw, &links); err == nil && len(links) > 0 {
		return links[0].TargetURI, links[0].TargetSelectionRange, true
	}

	return "", Range{}, false
}

// DocumentSymbolResult absorbs the other documentSymbol disjoint union:
// a server may answer with either []DocumentSymbol (hierarchical) or
// []SymbolInformation (flat). Tried in that order, per spec.
type DocumentSymbolResult struct {
	raw json.RawMessage
}

func (d *DocumentSymbolResult) UnmarshalJSON(data []byte) error {
	d.raw = append(json.RawMessage(nil), data...)
	return nil
}

// IsNull reports a JSON null result, which the session must treat as a
// retry signal rather than an error (see spec's null-vs-error asymmetry).
func (d DocumentSymbolResult) IsNull() bool {
	return len(d.raw) == 0 || string(d.raw) == "null"
}

// Hierarchical tries to parse the result as []DocumentSymbol.
func (d DocumentSymbolResult) Hierarchical() ([]DocumentSymbol, bool) {
	if d.IsNull() {
		return nil, false
	}
	hierarchical, ok := d.shape()
	if !ok || !hierarchical {
		return nil, false
	}
	var out []DocumentSymbol
	if err := json.Unmarshal(d.raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Flat tries to parse the result as []SymbolInformation.
func (d DocumentSymbolResult) Flat() ([]SymbolInformation, bool) {
	if d.IsNull() {
		return nil, false
	}
	hierarchical, ok := d.shape()
	if !ok || hierarchical {
		return nil, false
	}
	var out []SymbolInformation
	if err := json.Unmarshal(d.raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

// shape inspects the raw array's first element's keys to decide
// between the two documentSymbol shapes before committing to either
// struct. Go's encoding/json does not error on missing fields the way
// the serde-derived source this was ported from does: a flat
// SymbolInformation (which always carries "location") would otherwise
// decode successfully, if uselessly, into DocumentSymbol's "range"/
// "selectionRange" fields, zeroed out. hierarchical is only meaningful
// when ok is true; an empty array carries no distinguishing keys and is
// reported as hierarchical, matching documentSymbol's empty-hierarchy
// convention.
func (d DocumentSymbolResult) shape() (hierarchical bool, ok bool) {
	var elems []map[string]json.RawMessage
	if err := json.Unmarshal(d.raw, &elems); err != nil {
		return false, false
	}
	if len(elems) == 0 {
		return true, true
	}
	_, hasRange := elems[0]["range"]
	_, hasSelectionRange := elems[0]["selectionRange"]
	_, hasLocation := elems[0]["location"]
	switch {
	case hasRange || hasSelectionRange:
		return true, true
	case hasLocation:
		return false, true
	default:
		return false, false
	}
}

// WorkspaceSymbolResult absorbs workspace/symbol's two legal response
// shapes: []SymbolInformation, or (per the 3.17 WorkspaceSymbol
// extension) a structurally compatible subset of the same fields.
type WorkspaceSymbolResult struct {
	raw json.RawMessage
}

func (w *WorkspaceSymbolResult) UnmarshalJSON(data []byte) error {
	w.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (w WorkspaceSymbolResult) Symbols() []SymbolInformation {
	if len(w.raw) == 0 || string(w.raw) == "null" {
		return nil
	}
	var out []SymbolInformation
	if err := json.Unmarshal(w.raw, &out); err == nil {
		return out
	}
	return nil
}
