// Package transport drives the JSON-RPC 2.0 conversation with a spawned
// LSP server over stdio: a single background pump goroutine reads every
// frame, correlates responses to the caller that's waiting on them, and
// accumulates diagnostics/progress notifications as shared state rather
// than as a stream, since nothing in this engine consumes them live.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	analyzeerrors "codescope/internal/analyze/errors"
	"codescope/internal/analyze/frame"
	"codescope/internal/analyze/lsptypes"
	"codescope/internal/analyze/telemetry"

	"go.uber.org/zap"
)

// RequestID is the numeric id codescope assigns to its own outbound
// requests. Monotonically increasing, starting at 1.
type RequestID uint64

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// ProgressState mirrors $/progress's Begin/Report/End value shapes.
// "Latest wins": each new notification for a token replaces the
// previous state rather than appending to a history.
type ProgressState struct {
	Kind       string // "begin", "report", or "end"
	Title      string
	Message    string
	Percentage *uint32
}

type pendingSlot struct {
	resultCh chan pendingResult
}

type pendingResult struct {
	result json.RawMessage
	err    error
}

// Transport owns the pump goroutine and every piece of shared mutable
// state it produces. Each piece of state gets its own mutex so the
// pump never has to hold more than one lock at a time.
type Transport struct {
	stdin  io.WriteCloser
	reader *bufio.Reader
	logger *telemetry.Logger

	nextID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]*pendingSlot

	diagMu      sync.Mutex
	diagnostics map[lsptypes.DocumentURI][]lsptypes.Diagnostic

	progMu   sync.Mutex
	progress map[string]ProgressState

	closedMu sync.Mutex
	closed   bool
	closeErr error

	writeMu sync.Mutex

	pumpDone chan struct{}
}

// New builds a Transport over the given stdin/stdout pipes. Call Start
// to begin the background pump before issuing any Call/Notify.
func New(stdin io.WriteCloser, stdout io.Reader, logger *telemetry.Logger) *Transport {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Transport{
		stdin:       stdin,
		reader:      bufio.NewReader(stdout),
		logger:      logger,
		pending:     make(map[uint64]*pendingSlot),
		diagnostics: make(map[lsptypes.DocumentURI][]lsptypes.Diagnostic),
		progress:    make(map[string]ProgressState),
		pumpDone:    make(chan struct{}),
	}
}

// Start launches the background reader goroutine. It runs until the
// stream closes or a malformed frame is encountered, at which point the
// transport marks itself closed and wakes every pending caller with a
// ChannelClosed error.
func (t *Transport) Start() {
	go t.pump()
}

func (t *Transport) pump() {
	defer close(t.pumpDone)
	for {
		body, err := t.readFrame()
		if err != nil {
			t.fail(analyzeerrors.Closed("server stream closed: %v", err))
			return
		}
		if err := t.dispatch(body); err != nil {
			t.logger.Warn("dropping frame after dispatch error", zap.Error(err))
		}
	}
}

func (t *Transport) readFrame() ([]byte, error) {
	return frame.Read(t.reader)
}

func (t *Transport) dispatch(body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return analyzeerrors.Protocol("invalid JSON-RPC envelope: %v", err)
	}

	switch {
	case env.ID != nil && env.Method == "":
		// A response to one of our own requests.
		t.deliver(env)
		return nil

	case env.ID != nil && env.Method != "":
		// A server-initiated request. We only implement the handful of
		// requests a well-behaved server actually sends a client during
		// an analysis run; everything else gets MethodNotFound so the
		// server doesn't hang waiting on us.
		return t.handleServerRequest(env)

	case env.ID == nil && env.Method != "":
		t.handleNotification(env)
		return nil

	default:
		return analyzeerrors.Protocol("envelope has neither id nor method")
	}
}

func (t *Transport) deliver(env envelope) {
	var id uint64
	if err := json.Unmarshal(env.ID, &id); err != nil {
		t.logger.Warn("response id is not numeric, dropping", zap.ByteString("id", env.ID))
		return
	}

	t.pendingMu.Lock()
	slot, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()

	if !ok {
		t.logger.Debug("response for unknown or already-delivered id, dropping", zap.Uint64("id", id))
		return
	}

	if env.Error != nil {
		slot.resultCh <- pendingResult{err: analyzeerrors.Lsp(env.Error.Code, env.Error.Message)}
		return
	}
	slot.resultCh <- pendingResult{result: env.Result}
}

// handleServerRequest acknowledges the requests a server is allowed to
// send a client mid-analysis (window/workDoneProgress/create needs a
// null result so the server proceeds to send $/progress notifications)
// and answers everything else with MethodNotFound, per spec.
func (t *Transport) handleServerRequest(env envelope) error {
	switch env.Method {
	case "window/workDoneProgress/create":
		return t.respond(env.ID, json.RawMessage("null"), nil)
	default:
		return t.respond(env.ID, nil, &rpcError{Code: -32601, Message: fmt.Sprintf("method not found: %s", env.Method)})
	}
}

func (t *Transport) respond(id json.RawMessage, result json.RawMessage, rpcErr *rpcError) error {
	resp := envelope{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr}
	body, err := json.Marshal(resp)
	if err != nil {
		return analyzeerrors.Protocol("marshaling response to server request: %v", err)
	}
	return t.writeFrame(body)
}

func (t *Transport) handleNotification(env envelope) {
	switch env.Method {
	case "textDocument/publishDiagnostics":
		t.recordDiagnostics(env.Params)
	case "$/progress":
		t.recordProgress(env.Params)
	case "window/logMessage", "window/showMessage":
		t.logger.Debug("server message", zap.String("method", env.Method), zap.ByteString("params", env.Params))
	default:
		// Unrecognized notifications are dropped silently, per spec.
	}
}

func (t *Transport) recordDiagnostics(params json.RawMessage) {
	var payload struct {
		URI         lsptypes.DocumentURI   `json:"uri"`
		Diagnostics []lsptypes.Diagnostic `json:"diagnostics"`
	}
	if err := json.Unmarshal(params, &payload); err != nil {
		t.logger.Warn("malformed publishDiagnostics params", zap.Error(err))
		return
	}
	t.diagMu.Lock()
	t.diagnostics[payload.URI] = payload.Diagnostics
	t.diagMu.Unlock()
}

func (t *Transport) recordProgress(params json.RawMessage) {
	var payload struct {
		Token json.RawMessage `json:"token"`
		Value struct {
			Kind       string  `json:"kind"`
			Title      string  `json:"title"`
			Message    string  `json:"message"`
			Percentage *uint32 `json:"percentage"`
		} `json:"value"`
	}
	if err := json.Unmarshal(params, &payload); err != nil {
		t.logger.Warn("malformed $/progress params", zap.Error(err))
		return
	}
	token := string(payload.Token)

	t.progMu.Lock()
	defer t.progMu.Unlock()

	switch payload.Value.Kind {
	case "begin":
		t.progress[token] = ProgressState{Kind: "begin", Title: payload.Value.Title, Message: payload.Value.Message, Percentage: payload.Value.Percentage}
	case "report":
		t.progress[token] = ProgressState{Kind: "report", Message: payload.Value.Message, Percentage: payload.Value.Percentage}
	case "end":
		t.progress[token] = ProgressState{Kind: "end", Message: payload.Value.Message}
	}
}

// fail marks the transport closed and wakes every caller currently
// blocked in Call with err.
func (t *Transport) fail(err error) {
	t.closedMu.Lock()
	if t.closed {
		t.closedMu.Unlock()
		return
	}
	t.closed = true
	t.closeErr = err
	t.closedMu.Unlock()

	t.pendingMu.Lock()
	pending := t.pending
	t.pending = make(map[uint64]*pendingSlot)
	t.pendingMu.Unlock()

	for _, slot := range pending {
		slot.resultCh <- pendingResult{err: err}
	}
}

// Call sends a request and blocks until a response arrives, ctx is
// done, or the transport closes, whichever comes first.
func (t *Transport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	t.closedMu.Lock()
	if t.closed {
		err := t.closeErr
		t.closedMu.Unlock()
		return nil, err
	}
	t.closedMu.Unlock()

	id := t.nextID.Add(1)
	slot := &pendingSlot{resultCh: make(chan pendingResult, 1)}

	t.pendingMu.Lock()
	t.pending[id] = slot
	t.pendingMu.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, analyzeerrors.Protocol("marshaling params for %s: %v", method, err)
	}

	env := envelope{JSONRPC: "2.0", ID: json.RawMessage(fmt.Sprintf("%d", id)), Method: method, Params: paramsJSON}
	body, err := json.Marshal(env)
	if err != nil {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, analyzeerrors.Protocol("marshaling request envelope for %s: %v", method, err)
	}

	if err := t.writeFrame(body); err != nil {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, err
	}

	select {
	case res := <-slot.resultCh:
		return res.result, res.err
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
		return nil, analyzeerrors.Timeout("waiting for response to %s", method)
	}
}

// Notify sends a notification; there is no response to wait for.
func (t *Transport) Notify(method string, params any) error {
	t.closedMu.Lock()
	if t.closed {
		err := t.closeErr
		t.closedMu.Unlock()
		return err
	}
	t.closedMu.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return analyzeerrors.Protocol("marshaling params for %s: %v", method, err)
	}
	env := envelope{JSONRPC: "2.0", Method: method, Params: paramsJSON}
	body, err := json.Marshal(env)
	if err != nil {
		return analyzeerrors.Protocol("marshaling notification envelope for %s: %v", method, err)
	}
	return t.writeFrame(body)
}

func (t *Transport) writeFrame(body []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return frame.Write(t.stdin, body)
}

// Close stops accepting new work, closes stdin (signalling the server
// to notice EOF on its next read) and waits for the pump to exit.
func (t *Transport) Close() error {
	t.fail(analyzeerrors.Closed("transport closed by caller"))
	err := t.stdin.Close()
	<-t.pumpDone
	return err
}

// TakeDiagnostics returns and clears the accumulated diagnostics for
// uri. Returns ok=false if nothing has been published for that URI.
func (t *Transport) TakeDiagnostics(uri lsptypes.DocumentURI) ([]lsptypes.Diagnostic, bool) {
	t.diagMu.Lock()
	defer t.diagMu.Unlock()
	diags, ok := t.diagnostics[uri]
	if ok {
		delete(t.diagnostics, uri)
	}
	return diags, ok
}

// DiagnosticsCount returns the number of URIs that have received at
// least one publishDiagnostics notification.
func (t *Transport) DiagnosticsCount() int {
	t.diagMu.Lock()
	defer t.diagMu.Unlock()
	return len(t.diagnostics)
}

// TakeAllDiagnostics returns everything accumulated so far and clears
// the accumulator, mirroring the ported client's take_diagnostics.
func (t *Transport) TakeAllDiagnostics() map[lsptypes.DocumentURI][]lsptypes.Diagnostic {
	t.diagMu.Lock()
	defer t.diagMu.Unlock()
	out := t.diagnostics
	t.diagnostics = make(map[lsptypes.DocumentURI][]lsptypes.Diagnostic)
	return out
}

// ProgressSnapshot returns a copy of the current per-token progress
// state.
func (t *Transport) ProgressSnapshot() map[string]ProgressState {
	t.progMu.Lock()
	defer t.progMu.Unlock()
	out := make(map[string]ProgressState, len(t.progress))
	for k, v := range t.progress {
		out[k] = v
	}
	return out
}

// HasActiveProgress reports whether any token is in the begin/report
// state (i.e. hasn't received an end yet).
func (t *Transport) HasActiveProgress() bool {
	t.progMu.Lock()
	defer t.progMu.Unlock()
	for _, state := range t.progress {
		if state.Kind != "end" {
			return true
		}
	}
	return false
}
