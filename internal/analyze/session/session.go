// Package session drives a single spawned LSP server through its
// lifecycle: spawn, initialize, open documents, query symbols/hover/
// type definitions, wait for indexing, collect diagnostics, shut down.
// Session and every one of its public methods are meant to be called
// from a single caller goroutine; only the transport's background pump
// runs concurrently with it.
package session

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	analyzeerrors "codescope/internal/analyze/errors"
	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/telemetry"
	"codescope/internal/analyze/transport"

	"go.uber.org/zap"
)

// State is a Session's position in the Unspawned -> Spawned ->
// Initializing -> Ready -> ShuttingDown -> Terminated lifecycle.
type State int

const (
	Unspawned State = iota
	Spawned
	Initializing
	Ready
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Unspawned:
		return "Unspawned"
	case Spawned:
		return "Spawned"
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	case ShuttingDown:
		return "ShuttingDown"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// ServerConfig names the external LSP server to spawn.
type ServerConfig struct {
	Command string
	Args    []string
	// BinPaths are tilde-expandable directories prepended to PATH
	// before spawning, for servers installed outside the default PATH.
	BinPaths []string
}

// Tuning exposes the timing knobs spec.md's source hardcodes. Zero
// values fall back to the source's own fixed behavior.
type Tuning struct {
	DocumentSymbolRetries   int
	DocumentSymbolRetryWait time.Duration
	DiagnosticsPoll         time.Duration
	DiagnosticsSettle       time.Duration // quiet window; when DiagnosticsStablePolls is unset it becomes ceil(DiagnosticsSettle/DiagnosticsPoll) polls
	DiagnosticsStablePolls  int
	IndexingPoll            time.Duration
	IndexingSettle          time.Duration
}

func (t Tuning) withDefaults() Tuning {
	if t.DocumentSymbolRetries == 0 {
		t.DocumentSymbolRetries = 6
	}
	if t.DocumentSymbolRetryWait == 0 {
		t.DocumentSymbolRetryWait = time.Second
	}
	if t.DiagnosticsPoll == 0 {
		t.DiagnosticsPoll = 100 * time.Millisecond
	}
	if t.DiagnosticsStablePolls == 0 {
		if t.DiagnosticsSettle > 0 {
			t.DiagnosticsStablePolls = int((t.DiagnosticsSettle + t.DiagnosticsPoll - 1) / t.DiagnosticsPoll)
		} else {
			t.DiagnosticsStablePolls = 3
		}
	}
	if t.IndexingPoll == 0 {
		t.IndexingPoll = 50 * time.Millisecond
	}
	if t.IndexingSettle == 0 {
		t.IndexingSettle = 500 * time.Millisecond
	}
	return t
}

// Session owns one spawned LSP server process and its transport. All
// public methods must be called from one goroutine; only the
// transport's own pump runs concurrently.
type Session struct {
	mu sync.Mutex // guards state only; everything else is single-threaded by contract

	state       State
	cmd         *exec.Cmd
	transport   *transport.Transport
	rootURI     lsptypes.DocumentURI
	languageID  string
	tuning      Tuning
	logger      *telemetry.Logger
	initialized bool

	// OnProgress, if set, is invoked on every WaitForIndexing poll tick
	// with the transport's current $/progress snapshot. Callers use this
	// to drive a live status line without reaching into transport state
	// themselves.
	OnProgress func(map[string]transport.ProgressState)
}

// New constructs a Session in the Unspawned state. Spawn must be called
// before any other operation.
func New(rootURI lsptypes.DocumentURI, languageID string, tuning Tuning, logger *telemetry.Logger) *Session {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Session{
		state:      Unspawned,
		rootURI:    rootURI,
		languageID: languageID,
		tuning:     tuning.withDefaults(),
		logger:     logger,
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Spawn starts the external LSP server process and its transport pump.
func (s *Session) Spawn(cfg ServerConfig) error {
	if s.State() != Unspawned {
		return analyzeerrors.Protocol("Spawn called from state %s, want Unspawned", s.State())
	}

	if _, err := exec.LookPath(cfg.Command); err != nil {
		return analyzeerrors.Spawn(err, "language server command %q not found on PATH", cfg.Command)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)

	if len(cfg.BinPaths) > 0 {
		expanded := make([]string, 0, len(cfg.BinPaths))
		for _, p := range cfg.BinPaths {
			expanded = append(expanded, expandTilde(p))
		}
		currentPath := os.Getenv("PATH")
		var newPath string
		if currentPath == "" {
			newPath = strings.Join(expanded, ":")
		} else {
			newPath = strings.Join(expanded, ":") + ":" + currentPath
		}
		cmd.Env = append(os.Environ(), "PATH="+newPath)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return analyzeerrors.Spawn(err, "creating stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return analyzeerrors.Spawn(err, "creating stdout pipe")
	}
	// stderr is drained and discarded: server diagnostics go to its own
	// log, not ours, and an unread stderr pipe can deadlock the child
	// once its OS pipe buffer fills.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return analyzeerrors.Spawn(err, "creating stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return analyzeerrors.Spawn(err, "starting %s", cfg.Command)
	}
	go drain(stderr)

	s.cmd = cmd
	s.transport = transport.New(stdin, stdout, s.logger)
	s.transport.Start()
	s.setState(Spawned)
	s.logger.Info("spawned language server", zap.String("command", cfg.Command), zap.Strings("args", cfg.Args))
	return nil
}

func drain(r interface{ Read([]byte) (int, error) }) {
	buf := make([]byte, 4096)
	for {
		if _, err := r.Read(buf); err != nil {
			return
		}
	}
}

func expandTilde(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return home + strings.TrimPrefix(p, "~")
}

// InitializeResult is the subset of the server's initialize response
// codescope cares about.
type InitializeResult struct {
	Capabilities map[string]any `json:"capabilities"`
}

// Initialize performs the initialize/initialized handshake.
func (s *Session) Initialize(ctx context.Context) (*InitializeResult, error) {
	if s.State() != Spawned {
		return nil, analyzeerrors.Protocol("Initialize called from state %s, want Spawned", s.State())
	}
	s.setState(Initializing)

	params := map[string]any{
		"processId": os.Getpid(),
		"workspaceFolders": []map[string]any{
			{"uri": string(s.rootURI), "name": "root"},
		},
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"hover": map[string]any{
					"dynamicRegistration": false,
					"contentFormat":       []string{"markdown", "plaintext"},
				},
				"documentSymbol": map[string]any{
					"dynamicRegistration":                false,
					"hierarchicalDocumentSymbolSupport": true,
				},
			},
			"window": map[string]any{
				"workDoneProgress": true,
			},
		},
	}

	raw, err := s.transport.Call(ctx, "initialize", params)
	if err != nil {
		s.setState(Terminated)
		return nil, err
	}

	var result InitializeResult
	if err := unmarshalRaw(raw, &result); err != nil {
		s.setState(Terminated)
		return nil, analyzeerrors.Protocol("parsing initialize result: %v", err)
	}

	if err := s.transport.Notify("initialized", map[string]any{}); err != nil {
		s.setState(Terminated)
		return nil, err
	}

	s.initialized = true
	s.setState(Ready)
	s.logger.Info("initialize handshake complete")
	return &result, nil
}

// DidOpen opens a document with the server.
func (s *Session) DidOpen(ctx context.Context, uri lsptypes.DocumentURI, content string) error {
	if s.State() != Ready {
		return analyzeerrors.Protocol("DidOpen called from state %s, want Ready", s.State())
	}
	params := map[string]any{
		"textDocument": map[string]any{
			"uri":        string(uri),
			"languageId": s.languageID,
			"version":    1,
			"text":       content,
		},
	}
	return s.transport.Notify("textDocument/didOpen", params)
}

// DocumentSymbols fetches the symbol tree for uri, retrying on a null
// result; Tuning.DocumentSymbolRetries is the total number of attempts. A null result that
// survives every retry is an empty success, not an error; an explicit
// LSP error response is always a hard failure, even on the first
// attempt. This asymmetry matches the upstream client being ported and
// is intentional, not a bug to paper over.
func (s *Session) DocumentSymbols(ctx context.Context, uri lsptypes.DocumentURI) (lsptypes.DocumentSymbolResult, error) {
	if s.State() != Ready {
		return lsptypes.DocumentSymbolResult{}, analyzeerrors.Protocol("DocumentSymbols called from state %s, want Ready", s.State())
	}

	params := map[string]any{"textDocument": map[string]any{"uri": string(uri)}}

	for attempt := 0; attempt < s.tuning.DocumentSymbolRetries; attempt++ {
		raw, err := s.transport.Call(ctx, "textDocument/documentSymbol", params)
		if err != nil {
			return lsptypes.DocumentSymbolResult{}, err
		}

		var result lsptypes.DocumentSymbolResult
		if err := unmarshalRaw(raw, &result); err != nil {
			return lsptypes.DocumentSymbolResult{}, analyzeerrors.Protocol("parsing documentSymbol result: %v", err)
		}

		if result.IsNull() {
			if attempt < s.tuning.DocumentSymbolRetries-1 {
				s.logger.Debug("documentSymbol returned null, retrying", zap.Int("attempt", attempt+1))
				select {
				case <-time.After(s.tuning.DocumentSymbolRetryWait):
					continue
				case <-ctx.Done():
					return lsptypes.DocumentSymbolResult{}, analyzeerrors.Timeout("waiting to retry documentSymbol")
				}
			}
			s.logger.Warn("documentSymbol returned null after all retries, treating as empty", zap.Int("retries", s.tuning.DocumentSymbolRetries))
			return lsptypes.DocumentSymbolResult{}, nil
		}

		return result, nil
	}

	return lsptypes.DocumentSymbolResult{}, nil
}

// Hover fetches hover text at a position. A server-side error is
// treated as "no hover available", not a failure.
func (s *Session) Hover(ctx context.Context, uri lsptypes.DocumentURI, pos lsptypes.Position) (*lsptypes.Hover, error) {
	if s.State() != Ready {
		return nil, analyzeerrors.Protocol("Hover called from state %s, want Ready", s.State())
	}
	params := map[string]any{
		"textDocument": map[string]any{"uri": string(uri)},
		"position":     pos,
	}
	raw, err := s.transport.Call(ctx, "textDocument/hover", params)
	if err != nil {
		if kind, ok := analyzeerrors.KindOf(err); ok && kind == analyzeerrors.LspError {
			s.logger.Warn("hover error, returning no hover", zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var hover lsptypes.Hover
	if err := unmarshalRaw(raw, &hover); err != nil {
		return nil, analyzeerrors.Protocol("parsing hover result: %v", err)
	}
	return &hover, nil
}

// TypeDefinition resolves the type definition at a position, absorbing
// the Location/Location[]/LocationLink[] disjoint union.
func (s *Session) TypeDefinition(ctx context.Context, uri lsptypes.DocumentURI, pos lsptypes.Position) (lsptypes.GotoDefinitionResult, error) {
	if s.State() != Ready {
		return lsptypes.GotoDefinitionResult{}, analyzeerrors.Protocol("TypeDefinition called from state %s, want Ready", s.State())
	}
	params := map[string]any{
		"textDocument": map[string]any{"uri": string(uri)},
		"position":     pos,
	}
	raw, err := s.transport.Call(ctx, "textDocument/typeDefinition", params)
	if err != nil {
		if kind, ok := analyzeerrors.KindOf(err); ok && kind == analyzeerrors.LspError {
			s.logger.Debug("typeDefinition error, treating as unresolved", zap.Error(err))
			return lsptypes.GotoDefinitionResult{}, nil
		}
		return lsptypes.GotoDefinitionResult{}, err
	}
	var result lsptypes.GotoDefinitionResult
	if err := unmarshalRaw(raw, &result); err != nil {
		return lsptypes.GotoDefinitionResult{}, analyzeerrors.Protocol("parsing typeDefinition result: %v", err)
	}
	return result, nil
}

// WorkspaceSymbol searches the workspace for symbols matching query.
// Server errors return an empty slice rather than propagating, matching
// the ported client's treatment of this as a best-effort lookup.
func (s *Session) WorkspaceSymbol(ctx context.Context, query string) ([]lsptypes.SymbolInformation, error) {
	if s.State() != Ready {
		return nil, analyzeerrors.Protocol("WorkspaceSymbol called from state %s, want Ready", s.State())
	}
	raw, err := s.transport.Call(ctx, "workspace/symbol", map[string]any{"query": query})
	if err != nil {
		if kind, ok := analyzeerrors.KindOf(err); ok && kind == analyzeerrors.LspError {
			s.logger.Warn("workspace/symbol error, returning empty", zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	var result lsptypes.WorkspaceSymbolResult
	if err := unmarshalRaw(raw, &result); err != nil {
		s.logger.Warn("failed to parse workspace/symbol result", zap.Error(err))
		return nil, nil
	}
	return result.Symbols(), nil
}

// ProgressSnapshot exposes the transport's current per-token $/progress
// state, for callers that want to render a live status line while
// WaitForIndexing runs.
func (s *Session) ProgressSnapshot() map[string]transport.ProgressState {
	if s.transport == nil {
		return nil
	}
	return s.transport.ProgressSnapshot()
}

// WaitForIndexing polls $/progress state until nothing is active and at
// least IndexingSettle has elapsed, or timeout expires.
func (s *Session) WaitForIndexing(ctx context.Context, timeout time.Duration) error {
	if s.State() != Ready {
		return analyzeerrors.Protocol("WaitForIndexing called from state %s, want Ready", s.State())
	}

	deadline := time.Now().Add(timeout)
	start := time.Now()
	ticker := time.NewTicker(s.tuning.IndexingPoll)
	defer ticker.Stop()

	for {
		if time.Now().After(deadline) {
			s.logger.Warn("indexing wait timeout exceeded", zap.Duration("timeout", timeout))
			return nil
		}

		select {
		case <-ctx.Done():
			return analyzeerrors.Timeout("waiting for indexing")
		case <-ticker.C:
		}

		if s.OnProgress != nil {
			s.OnProgress(s.transport.ProgressSnapshot())
		}

		hasActive := s.transport.HasActiveProgress()
		if !hasActive && time.Since(start) > s.tuning.IndexingSettle {
			s.logger.Info("indexing appears complete")
			return nil
		}
	}
}

// CollectDiagnostics polls accumulated diagnostics until either
// expectedFileCount URIs have reported (if non-nil) or the count of
// reporting URIs stays unchanged for DiagnosticsStablePolls consecutive
// polls, whichever happens first, then returns (and clears) everything
// accumulated so far.
func (s *Session) CollectDiagnostics(ctx context.Context, timeout time.Duration, expectedFileCount *int) (map[lsptypes.DocumentURI][]lsptypes.Diagnostic, error) {
	deadline := time.Now().Add(timeout)
	lastCount := -1
	stable := 0

	ticker := time.NewTicker(s.tuning.DiagnosticsPoll)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, analyzeerrors.Timeout("collecting diagnostics")
		case <-ticker.C:
		}

		current := s.transport.DiagnosticsCount()

		if expectedFileCount != nil {
			if current >= *expectedFileCount {
				s.logger.Info("received diagnostics for all expected files, exiting early")
				break
			}
		} else if current > 0 && current == lastCount {
			stable++
			if stable >= s.tuning.DiagnosticsStablePolls {
				s.logger.Info("diagnostics appear stable, exiting early", zap.Int("count", current))
				break
			}
		} else {
			stable = 0
		}
		lastCount = current
	}

	diags := s.transport.TakeAllDiagnostics()
	s.logger.Info("collected diagnostics", zap.Int("file_count", len(diags)))
	return diags, nil
}

// Shutdown sends shutdown+exit, waits briefly, then kills and reaps the
// child process. Safe to call multiple times; safe to call from any
// state (it is always on the destructor path).
func (s *Session) Shutdown(ctx context.Context) error {
	st := s.State()
	if st == Terminated || st == Unspawned {
		return nil
	}
	s.setState(ShuttingDown)

	if s.initialized {
		if _, err := s.transport.Call(ctx, "shutdown", nil); err != nil {
			s.logger.Warn("shutdown request failed", zap.Error(err))
		}
		if err := s.transport.Notify("exit", nil); err != nil {
			s.logger.Warn("exit notification failed", zap.Error(err))
		}
		time.Sleep(100 * time.Millisecond)
	}

	if s.cmd != nil && s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil {
			s.logger.Warn("failed to kill language server process", zap.Error(err))
		}
	}
	// Close waits for the pump, which only stops once the child's stdout
	// reaches EOF, so it runs after the kill.
	if s.transport != nil {
		_ = s.transport.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_, _ = s.cmd.Process.Wait()
	}

	s.setState(Terminated)
	s.logger.Info("session shut down")
	return nil
}

func unmarshalRaw(raw []byte, v any) error {
	if len(raw) == 0 {
		raw = []byte("null")
	}
	return json.Unmarshal(raw, v)
}
