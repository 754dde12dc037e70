package cacheindex

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"gotest.tools/v3/assert"

	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/cachepath"
	"github.com/artifex-pm/artifexctl/internal/cachescan"
	"github.com/artifex-pm/artifexctl/internal/cerrors"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	cacheroot.Clear()
	t.Cleanup(cacheroot.Clear)
	dir := t.TempDir()
	root, err := cacheroot.Get(dir)
	assert.NilError(t, err)
	scanner := cachescan.New(".tar.bz2", "urls.txt")
	return New(root, scanner, afero.NewOsFs())
}

func testEntry(dir string) cacheroot.Entry {
	ref := pkgref.Ref{Channel: "main", Name: "numpy", Version: "1.2.0", BuildString: "py310_0"}
	extracted := cachepath.New(filepath.Join(dir, "numpy-1.2.0-py310_0"))
	_ = extracted.Join("info").MkdirAll()
	_ = extracted.Join("info", "index.json").WriteFile([]byte(`{"name":"numpy"}`), 0644)
	return cacheroot.Entry{Ref: ref, ExtractedDir: extracted, MD5: "abc"}
}

func TestNewProbesWritability(t *testing.T) {
	defer cacheroot.Clear()
	dir := t.TempDir()
	root, err := cacheroot.Get(dir)
	assert.NilError(t, err)
	scanner := cachescan.New(".tar.bz2", "urls.txt")
	New(root, scanner, afero.NewOsFs())
	assert.Assert(t, root.Writable)
}

func TestInsertGetRemoveRoundTrip(t *testing.T) {
	idx := newIndex(t)
	entry := testEntry(idx.Root.Path.ToString())
	assert.NilError(t, idx.Insert(entry))

	got, err := idx.Get(entry.Ref)
	assert.NilError(t, err)
	assert.Equal(t, got.MD5, "abc")

	assert.NilError(t, idx.Remove(entry.Ref))
	_, err = idx.Get(entry.Ref)
	assert.Assert(t, cerrors.Is(err, cerrors.EntryNotFound))
}

func TestGetOrDefaultReturnsDefaultWhenAbsent(t *testing.T) {
	idx := newIndex(t)
	def := cacheroot.Entry{MD5: "default"}
	ref := pkgref.Ref{Channel: "main", Name: "missing", Version: "1.0"}
	got, err := idx.GetOrDefault(ref, def)
	assert.NilError(t, err)
	assert.Equal(t, got.MD5, "default")
}

func TestQueryBySpecMatchesEveryEligibleEntry(t *testing.T) {
	idx := newIndex(t)
	entry := testEntry(idx.Root.Path.ToString())
	assert.NilError(t, idx.Insert(entry))

	spec := &pkgref.MatchSpec{Name: "numpy"}
	results, err := idx.Query(pkgref.Query{Spec: spec})
	assert.NilError(t, err)
	// The lazy first scan (triggered by Insert) also indexes the on-disk
	// numpy directory testEntry created, so both entries match.
	assert.Equal(t, len(results), 2)
}

func TestQueryByExactRefToleratesMissingChannel(t *testing.T) {
	idx := newIndex(t)
	entry := testEntry(idx.Root.Path.ToString())
	assert.NilError(t, idx.Insert(entry))

	noChannel := pkgref.Ref{Name: "numpy", Version: "1.2.0", BuildString: "py310_0"}
	results, err := idx.Query(pkgref.Query{Exact: &noChannel})
	assert.NilError(t, err)
	assert.Equal(t, len(results), 1)
}

func TestSweepReportsAndRemovesOrphanedExtractedDirs(t *testing.T) {
	idx := newIndex(t)
	ref := pkgref.Ref{Channel: "main", Name: "orphan", Version: "0.1"}
	orphanDir := cachepath.New(filepath.Join(idx.Root.Path.ToString(), "orphan-0.1"))
	assert.NilError(t, orphanDir.MkdirAll())
	entry := cacheroot.Entry{Ref: ref, ExtractedDir: orphanDir}
	assert.NilError(t, idx.Insert(entry))

	removed, err := idx.Sweep(true)
	assert.NilError(t, err)
	assert.Equal(t, len(removed), 1)
	assert.Assert(t, orphanDir.DirExists())

	removed, err = idx.Sweep(false)
	assert.NilError(t, err)
	assert.Equal(t, len(removed), 1)
	assert.Assert(t, !orphanDir.DirExists())
}
