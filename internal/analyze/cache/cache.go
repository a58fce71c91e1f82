// Package cache persists per-file symbol extraction results to disk so
// repeated analysis runs over an unchanged file can skip the language
// server round-trip entirely. Entries are plain JSON files keyed by a
// hash of the absolute file path, validated by mtime, size, and
// project kind.
package cache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	analyzeerrors "codescope/internal/analyze/errors"
	"codescope/internal/analyze/extractor"
	"codescope/internal/analyze/project"
	"codescope/internal/analyze/telemetry"
)

// entry is the on-disk shape of one cached file's symbols.
type entry struct {
	FilePath    string                  `json:"file_path"`
	MtimeSecs   int64                   `json:"mtime_secs"`
	MtimeNanos  int32                   `json:"mtime_nanos"`
	FileSize    int64                   `json:"file_size"`
	ProjectKind project.Type            `json:"project_kind"`
	Symbols     []extractor.SymbolInfo  `json:"symbols"`
}

// Cache is a directory of per-file JSON cache entries.
type Cache struct {
	root   string
	logger *telemetry.Logger
}

// New opens (creating if necessary) a cache rooted at dir. If dir is
// empty, the XDG-style default ($XDG_CACHE_HOME or $HOME/.cache,
// joined "codescope/analyze") is used.
func New(dir string, logger *telemetry.Logger) (*Cache, error) {
	if dir == "" {
		d, err := defaultCacheDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, analyzeerrors.Corrupt(err, "creating cache directory %s", dir)
	}
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Cache{root: dir, logger: logger}, nil
}

func defaultCacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "", analyzeerrors.Path(nil, "cannot determine cache directory: HOME not set")
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "codescope", "analyze"), nil
}

func cacheKey(filePath string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(filePath))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (c *Cache) entryPath(filePath string) string {
	return filepath.Join(c.root, "symbols", cacheKey(filePath), "cache.json")
}

// Get returns the cached symbols for filePath, or (nil, false) on a
// miss (no entry, unreadable entry, or a stale entry).
func (c *Cache) Get(filePath string, kind project.Type) ([]extractor.SymbolInfo, bool) {
	path := c.entryPath(filePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("cache entry unreadable, treating as a miss")
		return nil, false
	}

	if !c.isValid(e, filePath, kind) {
		return nil, false
	}
	return e.Symbols, true
}

func (c *Cache) isValid(e entry, filePath string, kind project.Type) bool {
	if e.ProjectKind != kind {
		return false
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	if info.Size() != e.FileSize {
		return false
	}
	mtime := info.ModTime()
	return mtime.Unix() == e.MtimeSecs && int32(mtime.Nanosecond()) == e.MtimeNanos
}

// Put writes symbols to the cache for filePath, keyed against its
// current mtime/size/project kind.
func (c *Cache) Put(filePath string, symbols []extractor.SymbolInfo, kind project.Type) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return analyzeerrors.Path(err, "stat %s", filePath)
	}
	mtime := info.ModTime()

	e := entry{
		FilePath:    filePath,
		MtimeSecs:   mtime.Unix(),
		MtimeNanos:  int32(mtime.Nanosecond()),
		FileSize:    info.Size(),
		ProjectKind: kind,
		Symbols:     symbols,
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return analyzeerrors.Corrupt(err, "marshaling cache entry for %s", filePath)
	}

	path := c.entryPath(filePath)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return analyzeerrors.Corrupt(err, "creating cache entry directory %s", dir)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file in the same directory as path
// and renames it into place, so a crash mid-write never leaves a
// corrupt cache entry visible.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.tmp")
	if err != nil {
		return analyzeerrors.Corrupt(err, "creating temp cache file for %s", path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return analyzeerrors.Corrupt(err, "writing temp cache file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return analyzeerrors.Corrupt(err, "closing temp cache file for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return analyzeerrors.Corrupt(err, "renaming temp cache file into place for %s", path)
	}
	return nil
}

// Clear removes every cached entry.
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.root); err != nil {
		return analyzeerrors.Corrupt(err, "clearing cache directory %s", c.root)
	}
	return os.MkdirAll(c.root, 0o755)
}

// ValidityCheck reports whether filePath's cache entry would currently
// be considered a hit, without reading or decoding its symbols.
type ValidityCheck struct {
	FilePath string
	Valid    bool
}

// BatchCheckValidity checks many files concurrently, each against its
// own cache entry and project kind. Useful before a full analysis run
// to report how much of the work a cache hit will save.
func BatchCheckValidity(ctx context.Context, c *Cache, files []string, kinds []project.Type) ([]ValidityCheck, error) {
	if len(files) != len(kinds) {
		return nil, analyzeerrors.Path(nil, "files and kinds length mismatch (%d vs %d)", len(files), len(kinds))
	}

	results := make([]ValidityCheck, len(files))
	g, _ := errgroup.WithContext(ctx)
	for i := range files {
		i := i
		g.Go(func() error {
			path := c.entryPath(files[i])
			data, err := os.ReadFile(path)
			if err != nil {
				results[i] = ValidityCheck{FilePath: files[i], Valid: false}
				return nil
			}
			var e entry
			if err := json.Unmarshal(data, &e); err != nil {
				results[i] = ValidityCheck{FilePath: files[i], Valid: false}
				return nil
			}
			results[i] = ValidityCheck{FilePath: files[i], Valid: c.isValid(e, files[i], kinds[i])}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
