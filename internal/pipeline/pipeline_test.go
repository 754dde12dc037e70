package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"gotest.tools/v3/assert"

	"github.com/artifex-pm/artifexctl/internal/cacheindex"
	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/cachescan"
	"github.com/artifex-pm/artifexctl/internal/multicache"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
	"github.com/artifex-pm/artifexctl/internal/planner"
	"github.com/artifex-pm/artifexctl/internal/transport"
)

func newExtractedRef(t *testing.T, idx *cacheindex.Index, name string) pkgref.Ref {
	t.Helper()
	ref := pkgref.Ref{Name: name, Version: "1.0.0", BuildString: "0", MD5: "deadbeef"}
	dir := idx.Root.Path.Join(name + "-1.0.0-0")
	assert.NilError(t, dir.Join("info").MkdirAll())
	assert.NilError(t, dir.Join("info", "index.json").WriteFile([]byte("{}"), 0644))
	idx.Root.Insert(cacheroot.Entry{Ref: ref.Key(), ExtractedDir: dir, MD5: "deadbeef"})
	return ref
}

func newTestPlanner(t *testing.T) (*planner.Planner, *cacheindex.Index) {
	t.Helper()
	defer cacheroot.Clear()
	root, err := cacheroot.Get(t.TempDir())
	assert.NilError(t, err)
	idx := cacheindex.New(root, cachescan.New(".tar.bz2", "urls.txt"), afero.NewMemMapFs())
	idx.Root.MarkScanned()
	multi := multicache.New([]*cacheindex.Index{idx})
	return planner.New(multi, transport.NewClient(hclog.NewNullLogger(), time.Second), ".tar.bz2"), idx
}

func TestPrepareDedupesByDistStrPreservingFirstSeenOrder(t *testing.T) {
	p, idx := newTestPlanner(t)
	ref := newExtractedRef(t, idx, "numpy")

	e := New(p, false, false)
	assert.NilError(t, e.Prepare([]pkgref.Ref{ref, ref, ref}))
	assert.Equal(t, len(e.prepared), 1)
}

func TestExecuteIsNoopForAllR0Plans(t *testing.T) {
	p, idx := newTestPlanner(t)
	a := newExtractedRef(t, idx, "numpy")
	b := newExtractedRef(t, idx, "scipy")

	e := New(p, false, false)
	assert.NilError(t, e.Prepare([]pkgref.Ref{a, b}))
	assert.NilError(t, e.Execute(context.Background()))
}

func TestExecuteRejectsDryRun(t *testing.T) {
	p, idx := newTestPlanner(t)
	ref := newExtractedRef(t, idx, "numpy")

	e := New(p, false, true)
	assert.NilError(t, e.Prepare([]pkgref.Ref{ref}))
	err := e.Execute(context.Background())
	assert.ErrorContains(t, err, "dry-run")
}
