package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/project"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	cacheDir := t.TempDir()
	c, err := New(cacheDir, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	src := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, src, "package main\n")

	symbols := []extractor.SymbolInfo{{Name: "main", Kind: extractor.KindFunction}}
	if err := c.Put(src, symbols, project.Go); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, ok := c.Get(src, project.Go)
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if len(got) != 1 || got[0].Name != "main" {
		t.Fatalf("got = %+v", got)
	}
}

func TestGetMissesOnNonexistentEntry(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("/nonexistent/file.go", project.Go); ok {
		t.Fatalf("expected a miss for a never-cached file")
	}
}

func TestGetMissesOnMtimeChange(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, src, "package main\n")

	if err := c.Put(src, nil, project.Go); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, future, future); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(src, project.Go); ok {
		t.Fatalf("expected a miss after mtime changed")
	}
}

func TestGetMissesOnSizeChange(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, src, "package main\n")

	if err := c.Put(src, nil, project.Go); err != nil {
		t.Fatal(err)
	}
	writeFile(t, src, "package main\n\nfunc main() {}\n")

	if _, ok := c.Get(src, project.Go); ok {
		t.Fatalf("expected a miss after file size changed")
	}
}

func TestGetMissesOnProjectKindMismatch(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, src, "package main\n")

	if err := c.Put(src, nil, project.Go); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(src, project.Rust); ok {
		t.Fatalf("expected a miss on project kind mismatch")
	}
}

func TestClearRemovesEntries(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "main.go")
	writeFile(t, src, "package main\n")
	if err := c.Put(src, nil, project.Go); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok := c.Get(src, project.Go); ok {
		t.Fatalf("expected a miss after Clear()")
	}
}

func TestMultiFileCacheIsIndependent(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	writeFile(t, a, "package main\n")
	writeFile(t, b, "package main\n")

	if err := c.Put(a, []extractor.SymbolInfo{{Name: "A"}}, project.Go); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(b, []extractor.SymbolInfo{{Name: "B"}}, project.Go); err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(a, future, future); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(a, project.Go); ok {
		t.Fatalf("expected a to be invalidated")
	}
	gotB, ok := c.Get(b, project.Go)
	if !ok || gotB[0].Name != "B" {
		t.Fatalf("expected b to remain a valid hit, got %+v ok=%v", gotB, ok)
	}
}

func TestBatchCheckValidity(t *testing.T) {
	c, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	writeFile(t, a, "package main\n")
	writeFile(t, b, "package main\n")
	if err := c.Put(a, nil, project.Go); err != nil {
		t.Fatal(err)
	}

	results, err := BatchCheckValidity(context.Background(), c, []string{a, b}, []project.Type{project.Go, project.Go})
	if err != nil {
		t.Fatalf("BatchCheckValidity() error: %v", err)
	}
	byPath := map[string]bool{}
	for _, r := range results {
		byPath[r.FilePath] = r.Valid
	}
	if !byPath[a] {
		t.Fatalf("expected a to be valid")
	}
	if byPath[b] {
		t.Fatalf("expected b (never cached) to be invalid")
	}
}
