package session

import "testing"

func TestTuningDefaults(t *testing.T) {
	tuning := Tuning{}.withDefaults()

	if tuning.DocumentSymbolRetries != 6 {
		t.Errorf("DocumentSymbolRetries = %d, want 6", tuning.DocumentSymbolRetries)
	}
	if tuning.DiagnosticsStablePolls != 3 {
		t.Errorf("DiagnosticsStablePolls = %d, want 3", tuning.DiagnosticsStablePolls)
	}
	if tuning.IndexingSettle.Milliseconds() != 500 {
		t.Errorf("IndexingSettle = %v, want 500ms", tuning.IndexingSettle)
	}
}

func TestTuningRespectsExplicitValues(t *testing.T) {
	tuning := Tuning{DocumentSymbolRetries: 2}.withDefaults()
	if tuning.DocumentSymbolRetries != 2 {
		t.Errorf("explicit DocumentSymbolRetries overridden by default: got %d", tuning.DocumentSymbolRetries)
	}
	// Untouched fields still get their defaults.
	if tuning.IndexingPoll.Milliseconds() != 50 {
		t.Errorf("IndexingPoll = %v, want 50ms", tuning.IndexingPoll)
	}
}

func TestStateStringer(t *testing.T) {
	cases := map[State]string{
		Unspawned:    "Unspawned",
		Spawned:      "Spawned",
		Initializing: "Initializing",
		Ready:        "Ready",
		ShuttingDown: "ShuttingDown",
		Terminated:   "Terminated",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func TestNewSessionStartsUnspawned(t *testing.T) {
	s := New("file:///tmp/project", "rust", Tuning{}, nil)
	if s.State() != Unspawned {
		t.Fatalf("new session state = %v, want Unspawned", s.State())
	}
}

func TestOperationsRejectedBeforeReady(t *testing.T) {
	s := New("file:///tmp/project", "rust", Tuning{}, nil)
	if _, err := s.DocumentSymbols(nil, "file:///tmp/project/a.rs"); err == nil { //nolint:staticcheck
		t.Fatal("expected an error calling DocumentSymbols before Ready")
	}
}

func TestShutdownOnUnspawnedIsNoop(t *testing.T) {
	s := New("file:///tmp/project", "rust", Tuning{}, nil)
	if err := s.Shutdown(nil); err != nil { //nolint:staticcheck
		t.Fatalf("Shutdown on an unspawned session returned error: %v", err)
	}
}
