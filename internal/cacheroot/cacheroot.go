// Package cacheroot implements the process-wide interned CacheRoot
// registry described in spec §4.A: construction by path is idempotent, so
// every caller holding the same path sees the same handle and therefore a
// consistent view of that root's entries and urls_index.
package cacheroot

import (
	"path/filepath"
	"sync"

	"github.com/yookoala/realpath"

	"github.com/artifex-pm/artifexctl/internal/cachepath"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
	"github.com/artifex-pm/artifexctl/internal/urlsindex"
)

// Entry is a CacheEntry: a Ref plus the side-channel attributes the scanner
// and actions attach to it (spec §3).
type Entry struct {
	Ref          pkgref.Ref
	TarballPath  cachepath.AbsolutePath
	ExtractedDir cachepath.AbsolutePath
	MD5          string
	Size         int64
	OriginURL    string
}

// IsFetched reports whether the tarball is present on disk.
func (e Entry) IsFetched() bool {
	return e.TarballPath != "" && e.TarballPath.FileExists()
}

// IsExtracted reports whether the extracted directory's info/index.json
// is present and readable.
func (e Entry) IsExtracted() bool {
	return e.ExtractedDir != "" && e.ExtractedDir.Join("info", "index.json").FileExists()
}

// Root is a CacheRoot: a single directory holding tarballs/extracted trees,
// exclusively owning its own entries map and urls index (spec §3
// Ownership).
type Root struct {
	Path     cachepath.AbsolutePath
	Writable bool

	mu      sync.RWMutex
	entries map[pkgref.Ref]Entry
	urls    *urlsindex.Index

	scanned bool
}

// Entries returns a snapshot slice of all entries currently held.
func (r *Root) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

// Get returns the entry for ref's identity, if present.
func (r *Root) Get(ref pkgref.Ref) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ref.Key()]
	return e, ok
}

// Insert adds or replaces the entry for its ref's identity.
func (r *Root) Insert(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = map[pkgref.Ref]Entry{}
	}
	r.entries[e.Ref.Key()] = e
}

// Remove deletes the entry for ref's identity, if present.
func (r *Root) Remove(ref pkgref.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, ref.Key())
}

// MarkScanned records that CacheScanner has populated this root at least
// once, so CacheIndex's lazy-initialization can avoid rescanning.
func (r *Root) MarkScanned() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanned = true
}

// Scanned reports whether MarkScanned has been called.
func (r *Root) Scanned() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scanned
}

// URLs returns this root's UrlsIndex, lazily constructing it on first use.
func (r *Root) URLs() *urlsindex.Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.urls == nil {
		r.urls = urlsindex.Load(r.Path)
	}
	return r.urls
}

// registry is the process-wide interned set of CacheRoot handles, keyed by
// normalized (symlink-resolved) path, per spec §4.A and §9 ("a module-level
// registry keyed by normalized path; construction via a factory function
// that returns existing handles").
var (
	registryMu sync.Mutex
	registry   = map[string]*Root{}
)

// Get returns the interned Root for path, constructing it on first use.
// Construction is idempotent: a second call with an equivalent path
// (after symlink resolution) returns the same *Root.
func Get(path string) (*Root, error) {
	normalized, err := normalize(path)
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if r, ok := registry[normalized]; ok {
		return r, nil
	}
	r := &Root{Path: cachepath.New(normalized)}
	registry[normalized] = r
	return r, nil
}

func normalize(path string) (string, error) {
	if resolved, err := realpath.Realpath(path); err == nil {
		return resolved, nil
	}
	// realpath requires the path to exist; a not-yet-created root is
	// made absolute with filepath.Abs (filepath.Clean if that fails), and
	// gets resolved properly the next time Get is called once it exists
	// on disk.
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path), nil
	}
	return abs, nil
}

// Clear resets the registry. Test support only, per spec §4.A.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]*Root{}
}
