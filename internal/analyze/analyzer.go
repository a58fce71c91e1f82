// Package analyze wires the engine's components together: project
// detection, cache lookup, session lifecycle, symbol extraction, type
// mining, indexing, and resolution, for one or more source files.
package analyze

import (
	"context"
	"fmt"
	"os"
	"time"

	"codescope/internal/analyze/cache"
	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/project"
	"codescope/internal/analyze/resolver"
	"codescope/internal/analyze/session"
	"codescope/internal/analyze/symbolindex"
	"codescope/internal/analyze/telemetry"
	"codescope/internal/analyze/transport"
	"codescope/internal/analyze/typeref"
)

// Options configures one analysis run.
type Options struct {
	ServerCommand string
	ServerArgs    []string
	BinPaths      []string
	Tuning        session.Tuning
	CacheDir      string
	UseCache      bool
	UseLSP        bool
	WaitTimeout   time.Duration
	Logger        *telemetry.Logger

	// OnProgress, if set, is wired to the spawned session's
	// OnProgress hook, letting callers (the CLI's status line) observe
	// $/progress state while WaitForIndexing runs. Never called when
	// every file is a cache hit and no session is spawned.
	OnProgress func(map[string]transport.ProgressState)
}

// FileReport is one analyzed file's extracted and resolved data.
type FileReport struct {
	Path        string
	ProjectKind project.Type
	Symbols     []extractor.SymbolInfo
	TypeRefs    []typeref.Reference
	Resolved    []resolver.Resolved
	FromCache   bool
}

// Run analyzes every file in paths, spawning one shared language
// server session (files must share a project root for this to make
// sense — callers should group by root before calling Run) and
// returning one FileReport per file, in the same order as paths.
func Run(ctx context.Context, paths []string, opts Options) ([]FileReport, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.Noop()
	}

	root, kind, err := project.DetectRoot(paths[0])
	if err != nil {
		return nil, fmt.Errorf("detecting project root: %w", err)
	}

	var c *cache.Cache
	if opts.UseCache {
		c, err = cache.New(opts.CacheDir, logger)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
	}

	reports := make([]FileReport, len(paths))
	pending := make([]int, 0, len(paths))

	for i := range reports {
		reports[i] = FileReport{Path: paths[i], ProjectKind: kind}
	}

	if c != nil {
		kinds := make([]project.Type, len(paths))
		for i := range kinds {
			kinds[i] = kind
		}
		checks, err := cache.BatchCheckValidity(ctx, c, paths, kinds)
		if err != nil {
			return nil, fmt.Errorf("checking cache validity: %w", err)
		}
		for i, check := range checks {
			if !check.Valid {
				pending = append(pending, i)
				continue
			}
			symbols, ok := c.Get(paths[i], kind)
			if !ok {
				pending = append(pending, i)
				continue
			}
			reports[i].Symbols = symbols
			reports[i].FromCache = true
		}
	} else {
		for i := range paths {
			pending = append(pending, i)
		}
	}

	var sess *session.Session
	if len(pending) > 0 {
		serverCommand := opts.ServerCommand
		if serverCommand == "" {
			return nil, fmt.Errorf("no language server command configured for project kind %s", kind)
		}

		sess = session.New(project.FileURI(root), project.LanguageID(kind), opts.Tuning, logger)
		sess.OnProgress = opts.OnProgress
		if err := sess.Spawn(session.ServerConfig{Command: serverCommand, Args: opts.ServerArgs, BinPaths: opts.BinPaths}); err != nil {
			return nil, fmt.Errorf("spawning language server: %w", err)
		}
		defer sess.Shutdown(context.Background())

		if _, err := sess.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initializing language server: %w", err)
		}

		waitTimeout := opts.WaitTimeout
		if waitTimeout == 0 {
			waitTimeout = 10 * time.Second
		}
		if err := sess.WaitForIndexing(ctx, waitTimeout); err != nil {
			logger.Warn("wait for indexing did not complete cleanly")
		}

		for _, i := range pending {
			path := paths[i]
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			uri := project.FileURI(path)
			if err := sess.DidOpen(ctx, uri, string(content)); err != nil {
				return nil, fmt.Errorf("opening %s with language server: %w", path, err)
			}

			result, err := sess.DocumentSymbols(ctx, uri)
			if err != nil {
				return nil, fmt.Errorf("fetching symbols for %s: %w", path, err)
			}
			symbols := extractor.Extract(result)
			extractor.AttachHover(ctx, symbols, uri, sess.Hover)
			reports[i].Symbols = symbols

			if c != nil {
				if err := c.Put(path, symbols, kind); err != nil {
					logger.Warn("failed to write cache entry for " + path)
				}
			}
		}

		expected := len(pending)
		if _, err := sess.CollectDiagnostics(ctx, waitTimeout, &expected); err != nil {
			logger.Warn("collecting diagnostics did not complete cleanly")
		}
	}

	finishReports(reports, kind)

	miner := typeref.New(kind)
	byURI := make(map[lsptypes.DocumentURI][]extractor.SymbolInfo, len(reports))
	for _, r := range reports {
		byURI[project.FileURI(r.Path)] = r.Symbols
	}
	index := symbolindex.BuildFromFiles(byURI)

	var res *resolver.Resolver
	if opts.UseLSP && sess != nil {
		res = resolver.New(index, sess, logger)
	} else {
		res = resolver.New(index, nil, logger)
	}

	for i := range reports {
		uri := project.FileURI(reports[i].Path)
		var refs []typeref.Reference
		var walk func([]extractor.SymbolInfo)
		walk = func(symbols []extractor.SymbolInfo) {
			for _, sym := range symbols {
				refs = append(refs, miner.Extract(sym, uri)...)
				walk(sym.Children)
			}
		}
		walk(reports[i].Symbols)
		reports[i].TypeRefs = refs
		reports[i].Resolved = res.ResolveAll(ctx, refs)
	}

	return reports, nil
}

func finishReports(reports []FileReport, kind project.Type) {
	for i := range reports {
		reports[i].ProjectKind = kind
	}
}
