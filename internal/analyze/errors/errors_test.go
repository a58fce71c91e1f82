package errors

import (
	stderrors "errors"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Timeout("waited %dms", 500)
	kind, ok := KindOf(err)
	if !ok || kind != TimedOut {
		t.Fatalf("KindOf() = %v, %v; want TimedOut, true", kind, ok)
	}
}

func TestIsMatchesSameKindOnly(t *testing.T) {
	a := Spawn(nil, "could not start server")
	b := Spawn(nil, "different message, same kind")
	c := Closed("pump goroutine exited")

	if !stderrors.Is(a, b) {
		t.Fatalf("expected two SpawnFailed errors to match via errors.Is")
	}
	if stderrors.Is(a, c) {
		t.Fatalf("expected SpawnFailed and ChannelClosed to not match")
	}
}

func TestLspErrorCarriesCode(t *testing.T) {
	err := Lsp(-32601, "method not found")
	if err.Code != -32601 {
		t.Fatalf("Code = %d, want -32601", err.Code)
	}
	if err.Kind != LspError {
		t.Fatalf("Kind = %v, want LspError", err.Kind)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := stderrors.New("no such file")
	err := Path(cause, "canonicalizing %s", "foo.rs")
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find wrapped cause")
	}
}
