// Package resolver resolves a mined type reference to its definition:
// first against a local symbol index, then (if a session is supplied)
// via an LSP typeDefinition round-trip, falling back to Unresolved.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/session"
	"codescope/internal/analyze/symbolindex"
	"codescope/internal/analyze/telemetry"
	"codescope/internal/analyze/typeref"
)

// Resolution is where a type turned out to be defined.
type Resolution int

const (
	Unresolved Resolution = iota
	Local
	External
)

// Resolved is one type reference paired with where its definition was
// found.
type Resolved struct {
	TypeName   string
	Context    typeref.Context
	Resolution Resolution

	// Populated when Resolution is Local or External.
	URI  lsptypes.DocumentURI
	Line uint32
	Kind lsptypes.SymbolKind
}

// typeDefiner is the subset of *session.Session the resolver needs,
// narrowed so tests can substitute a fake without spawning a server.
type typeDefiner interface {
	TypeDefinition(ctx context.Context, uri lsptypes.DocumentURI, pos lsptypes.Position) (lsptypes.GotoDefinitionResult, error)
}

// Resolver resolves type references against a local index and,
// optionally, a live language server session.
type Resolver struct {
	index  *symbolindex.Index
	sess   typeDefiner
	logger *telemetry.Logger
}

// New builds a Resolver. sess may be nil, in which case resolution
// never falls through to the LSP round-trip and unmatched references
// resolve to Unresolved.
func New(index *symbolindex.Index, sess *session.Session, logger *telemetry.Logger) *Resolver {
	r := &Resolver{index: index, logger: logger}
	if sess != nil {
		r.sess = sess
	}
	return r
}

// newWithDefiner is used by tests to inject a fake typeDefiner.
func newWithDefiner(index *symbolindex.Index, sess typeDefiner, logger *telemetry.Logger) *Resolver {
	return &Resolver{index: index, sess: sess, logger: logger}
}

// ResolveAll resolves every reference in refs, in order.
func (r *Resolver) ResolveAll(ctx context.Context, refs []typeref.Reference) []Resolved {
	out := make([]Resolved, 0, len(refs))
	for _, ref := range refs {
		out = append(out, r.ResolveOne(ctx, ref))
	}
	return out
}

// ResolveOne resolves a single type reference.
func (r *Resolver) ResolveOne(ctx context.Context, ref typeref.Reference) Resolved {
	if locs, ok := r.index.Lookup(ref.TypeName); ok {
		if loc, ok := findBestMatch(locs); ok {
			return Resolved{
				TypeName:   ref.TypeName,
				Context:    ref.Context,
				Resolution: Local,
				URI:        loc.URI,
				Line:       loc.LineStart,
				Kind:       loc.Kind,
			}
		}
	}

	if r.sess != nil {
		result, err := r.sess.TypeDefinition(ctx, ref.URI, ref.Position)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("typeDefinition query failed", zap.Error(err), zap.String("type", ref.TypeName))
			}
		} else if uri, rng, ok := result.First(); ok {
			return Resolved{
				TypeName:   ref.TypeName,
				Context:    ref.Context,
				Resolution: External,
				URI:        uri,
				Line:       rng.Start.Line,
			}
		}
	}

	return Resolved{TypeName: ref.TypeName, Context: ref.Context, Resolution: Unresolved}
}

// typeDefinitionKinds are preferred when a name has multiple local
// matches — a struct/class/enum/interface/type-alias definition beats
// a module or namespace of the same name (the other kinds the symbol
// index holds).
var typeDefinitionKinds = map[lsptypes.SymbolKind]bool{
	5:  true, // Class
	10: true, // Enum
	11: true, // Interface
	23: true, // Struct
	26: true, // TypeParameter (stands in for TypeAlias, which LSP has no distinct kind for)
}

func findBestMatch(locs []symbolindex.Location) (symbolindex.Location, bool) {
	if len(locs) == 0 {
		return symbolindex.Location{}, false
	}
	for _, loc := range locs {
		if typeDefinitionKinds[loc.Kind] {
			return loc, true
		}
	}
	return locs[0], true
}
