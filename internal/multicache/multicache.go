// Package multicache implements MultiCache (spec §4.E): an ordered
// collection of cache roots with write/read-only classification and
// cross-root queries.
package multicache

import (
	"github.com/artifex-pm/artifexctl/internal/cacheindex"
	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/cerrors"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
)

// MultiCache holds an ordered list of cache indexes, externally
// configured (spec §4.E).
type MultiCache struct {
	indexes []*cacheindex.Index
}

// New builds a MultiCache over indexes, preserving their given order.
func New(indexes []*cacheindex.Index) *MultiCache {
	return &MultiCache{indexes: indexes}
}

// WritableCaches returns the writable roots in declared order.
func (m *MultiCache) WritableCaches() []*cacheindex.Index {
	var out []*cacheindex.Index
	for _, idx := range m.indexes {
		if idx.Root.Writable {
			out = append(out, idx)
		}
	}
	return out
}

// ReadOnlyCaches returns the non-writable roots in declared order.
func (m *MultiCache) ReadOnlyCaches() []*cacheindex.Index {
	var out []*cacheindex.Index
	for _, idx := range m.indexes {
		if !idx.Root.Writable {
			out = append(out, idx)
		}
	}
	return out
}

// FirstWritable returns the first writable root, or NoWritableCache if
// none exists. Supplemented feature (SPEC_FULL §4.4) used by planner
// rules R1-R3 and by the `cache status` CLI verb.
func (m *MultiCache) FirstWritable() (*cacheindex.Index, error) {
	writable := m.WritableCaches()
	if len(writable) == 0 {
		return nil, cerrors.New(cerrors.NoWritableCache, "no writable cache root is configured")
	}
	return writable[0], nil
}

// QueryAll concatenates writable-root results then read-only-root
// results, per spec §4.E query_all.
func (m *MultiCache) QueryAll(q pkgref.Query) ([]cacheroot.Entry, error) {
	var out []cacheroot.Entry
	for _, idx := range m.WritableCaches() {
		entries, err := idx.Query(q)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	for _, idx := range m.ReadOnlyCaches() {
		entries, err := idx.Query(q)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// EntryToLink returns the first extracted entry matching ref across all
// caches, writable-first, falling back to a no-channel scan by
// DistStrNoChannel to tolerate refs whose channel provenance is unknown
// (spec §4.E entry_to_link). Each cache's on-disk state is lazily scanned
// on first access (via Index.Get/Values), not read directly off Root.
func (m *MultiCache) EntryToLink(ref pkgref.Ref) (cacheroot.Entry, bool, error) {
	all := append(m.WritableCaches(), m.ReadOnlyCaches()...)
	for _, idx := range all {
		e, err := idx.Get(ref)
		if err != nil {
			if cerrors.Is(err, cerrors.EntryNotFound) {
				continue
			}
			return cacheroot.Entry{}, false, err
		}
		if e.IsExtracted() {
			return e, true, nil
		}
	}
	for _, idx := range all {
		entries, err := idx.Values()
		if err != nil {
			return cacheroot.Entry{}, false, err
		}
		for _, e := range entries {
			if e.Ref.DistStrNoChannel() == ref.DistStrNoChannel() && e.IsExtracted() {
				return e, true, nil
			}
		}
	}
	return cacheroot.Entry{}, false, nil
}

// AnyFetched returns the first fetched (tarball-present) entry matching
// ref across writable caches, then read-only caches, reporting which
// class it came from (used by the planner's R1/R2 rules). Lookups go
// through Index.Get so an unscanned root is scanned before it is
// consulted.
func (m *MultiCache) AnyFetched(ref pkgref.Ref) (entry cacheroot.Entry, idx *cacheindex.Index, writable bool, ok bool, err error) {
	for _, i := range m.WritableCaches() {
		e, getErr := i.Get(ref)
		if getErr != nil {
			if cerrors.Is(getErr, cerrors.EntryNotFound) {
				continue
			}
			return cacheroot.Entry{}, nil, false, false, getErr
		}
		if e.IsFetched() {
			return e, i, true, true, nil
		}
	}
	for _, i := range m.ReadOnlyCaches() {
		e, getErr := i.Get(ref)
		if getErr != nil {
			if cerrors.Is(getErr, cerrors.EntryNotFound) {
				continue
			}
			return cacheroot.Entry{}, nil, false, false, getErr
		}
		if e.IsFetched() {
			return e, i, false, true, nil
		}
	}
	return cacheroot.Entry{}, nil, false, false, nil
}

// AnyExtracted returns the first extracted entry matching ref across all
// caches (used by the planner's R0 rule). Lookups go through Index.Get
// so an unscanned root is scanned before it is consulted.
func (m *MultiCache) AnyExtracted(ref pkgref.Ref) (cacheroot.Entry, bool, error) {
	for _, i := range append(m.WritableCaches(), m.ReadOnlyCaches()...) {
		e, err := i.Get(ref)
		if err != nil {
			if cerrors.Is(err, cerrors.EntryNotFound) {
				continue
			}
			return cacheroot.Entry{}, false, err
		}
		if e.IsExtracted() {
			return e, true, nil
		}
	}
	return cacheroot.Entry{}, false, nil
}
