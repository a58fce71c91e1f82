package discover

import (
	"os"
	"path/filepath"
	"testing"

	"codescope/internal/analyze/project"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExpandDirectoryFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# hi\n")
	writeFile(t, filepath.Join(dir, "sub", "helper.go"), "package sub\n")

	out, err := Expand([]string{dir}, project.Go)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d files, want 2: %v", len(out), out)
	}
	for _, f := range out {
		if filepath.Ext(f) != ".go" {
			t.Fatalf("unexpected non-.go file in result: %s", f)
		}
	}
}

func TestExpandSkipsVendorAndGit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "vendor", "dep.go"), "package dep\n")
	writeFile(t, filepath.Join(dir, ".git", "hook.go"), "package hook\n")

	out, err := Expand([]string{dir}, project.Go)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d files, want 1: %v", len(out), out)
	}
}

func TestExpandHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), "generated.go\n")
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n")
	writeFile(t, filepath.Join(dir, "generated.go"), "package main\n")

	out, err := Expand([]string{dir}, project.Go)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || filepath.Base(out[0]) != "main.go" {
		t.Fatalf("got %v, want only main.go", out)
	}
}

func TestExpandPassesPlainFilesThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.py")
	writeFile(t, path, "x = 1\n")

	out, err := Expand([]string{path}, project.Python)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %v", out)
	}
}

func TestExpandUnknownKindDoesNotFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.txt"), "hello\n")

	out, err := Expand([]string{dir}, project.Unknown)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %v, want one.txt passed through unfiltered", out)
	}
}
