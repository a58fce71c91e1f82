package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AnalyzeConfig is the on-disk schema for <workspace>/.codescope/analyze.json.
// It tunes the engine's retry/poll behavior and server spawn command
// without requiring a recompile to adjust for a slow language server.
type AnalyzeConfig struct {
	ServerCommand string   `json:"server_command,omitempty"`
	ServerArgs    []string `json:"server_args,omitempty"`
	BinPaths      []string `json:"bin_paths,omitempty"`

	DocumentSymbolRetries    int `json:"document_symbol_retries,omitempty"`
	DocumentSymbolRetryWaitMS int `json:"document_symbol_retry_wait_ms,omitempty"`
	DiagnosticsPollMS        int `json:"diagnostics_poll_ms,omitempty"`
	DiagnosticsSettleMS      int `json:"diagnostics_settle_ms,omitempty"`
	DiagnosticsStablePolls   int `json:"diagnostics_stable_polls,omitempty"`
	IndexingPollMS           int `json:"indexing_poll_ms,omitempty"`
	IndexingSettleMS         int `json:"indexing_settle_ms,omitempty"`

	CacheDir string `json:"cache_dir,omitempty"`
}

// LoadAnalyzeConfig loads <workspace>/.codescope/analyze.json. A
// missing file is not an error — it returns the zero-value config,
// which callers apply their own defaults over.
func LoadAnalyzeConfig(workspace string) (AnalyzeConfig, error) {
	ws := strings.TrimSpace(workspace)
	if ws == "" {
		return AnalyzeConfig{}, nil
	}
	path := filepath.Join(filepath.Clean(ws), ".codescope", "analyze.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AnalyzeConfig{}, nil
		}
		return AnalyzeConfig{}, err
	}
	if len(data) == 0 {
		return AnalyzeConfig{}, nil
	}
	var cfg AnalyzeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AnalyzeConfig{}, err
	}
	return cfg, nil
}

// DocumentSymbolRetryWait returns the configured retry wait, or zero if
// unset (callers fall back to their own default).
func (c AnalyzeConfig) DocumentSymbolRetryWait() time.Duration {
	return time.Duration(c.DocumentSymbolRetryWaitMS) * time.Millisecond
}

// DiagnosticsPoll returns the configured diagnostics poll interval.
func (c AnalyzeConfig) DiagnosticsPoll() time.Duration {
	return time.Duration(c.DiagnosticsPollMS) * time.Millisecond
}

// DiagnosticsSettle returns the configured diagnostics settle window.
func (c AnalyzeConfig) DiagnosticsSettle() time.Duration {
	return time.Duration(c.DiagnosticsSettleMS) * time.Millisecond
}

// IndexingPoll returns the configured indexing poll interval.
func (c AnalyzeConfig) IndexingPoll() time.Duration {
	return time.Duration(c.IndexingPollMS) * time.Millisecond
}

// IndexingSettle returns the configured indexing settle window.
func (c AnalyzeConfig) IndexingSettle() time.Duration {
	return time.Duration(c.IndexingSettleMS) * time.Millisecond
}
