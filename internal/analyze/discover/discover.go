// Package discover expands the file and directory arguments passed to
// the analyze CLI into a concrete list of source files, honoring
// .gitignore and skipping the directories no language server needs to
// see (.git, vendor trees, dependency caches).
package discover

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codescope/internal/analyze/project"
)

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
}

// extensions maps a project kind to the file extensions that belong to
// it, so a directory argument doesn't pull in unrelated languages that
// happen to live alongside it (a Python project's vendored JS assets,
// a Go module's embedded Rust build script).
var extensions = map[project.Type][]string{
	project.Rust:       {".rs"},
	project.Python:     {".py"},
	project.TypeScript: {".ts", ".tsx"},
	project.JavaScript: {".js", ".jsx"},
	project.Go:         {".go"},
}

// Expand walks args, resolving directories into the source files they
// contain (recursively, depth-first, skipping ignored directories and
// extensions foreign to kind) and passing plain file arguments through
// unfiltered, as absolute paths. The result is sorted for deterministic output ordering.
func Expand(args []string, kind project.Type) ([]string, error) {
	ignore := loadIgnoreFiles(args)

	var out []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, abs)
			continue
		}
		if err := walkDir(abs, kind, ignore, &out); err != nil {
			return nil, err
		}
	}

	sort.Strings(out)
	return out, nil
}

func walkDir(dir string, kind project.Type, ignore *ignoreMatcher, out *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if skipDirs[entry.Name()] || ignore.matches(path) {
				continue
			}
			if err := walkDir(path, kind, ignore, out); err != nil {
				return err
			}
			continue
		}
		if ignore.matches(path) {
			continue
		}
		if hasWantedExtension(path, kind) {
			*out = append(*out, path)
		}
	}
	return nil
}

func hasWantedExtension(path string, kind project.Type) bool {
	wanted, ok := extensions[kind]
	if !ok {
		return true // unknown project kind: don't filter, let the caller's server reject what it can't open
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, w := range wanted {
		if ext == w {
			return true
		}
	}
	return false
}

// ignoreMatcher is a minimal .gitignore subset: blank/comment lines
// skipped, "!" negation not supported, "*" wildcards matched against a
// single path segment. It is a filter for discovery convenience, not a
// faithful gitignore implementation.
type ignoreMatcher struct {
	patterns []string
}

func loadIgnoreFiles(args []string) *ignoreMatcher {
	seen := map[string]bool{}
	var patterns []string
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			continue
		}
		dir := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			dir = filepath.Dir(abs)
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		patterns = append(patterns, readGitignore(dir)...)
	}
	return &ignoreMatcher{patterns: patterns}
}

func readGitignore(dir string) []string {
	f, err := os.Open(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(line, "/"))
	}
	return patterns
}

func (m *ignoreMatcher) matches(path string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	base := filepath.Base(path)
	for _, p := range m.patterns {
		if matchSegment(p, base) {
			return true
		}
	}
	return false
}

func matchSegment(pattern, segment string) bool {
	if pattern == segment {
		return true
	}
	if ok, err := filepath.Match(pattern, segment); err == nil && ok {
		return true
	}
	return false
}
