// Package cacheindex implements CacheIndex (spec §4.D): the in-memory
// index of a single root's entries, lazily populated by CacheScanner on
// first access, plus the magic-file writability probe.
package cacheindex

import (
	"os"

	"github.com/spf13/afero"

	"github.com/artifex-pm/artifexctl/internal/archive"
	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/cachescan"
	"github.com/artifex-pm/artifexctl/internal/cerrors"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
)

// Index wraps a *cacheroot.Root, triggering a scan on first access and
// exposing the insert/get/remove/query surface of spec §4.D.
type Index struct {
	Root    *cacheroot.Root
	Scanner *cachescan.Scanner
	Fs      afero.Fs // injectable for the writability probe; defaults to the OS fs
}

// New builds an Index over root, probing writability immediately (spec
// §4.D is_writable) using fsys for the probe (nil defaults to the real
// filesystem).
func New(root *cacheroot.Root, scanner *cachescan.Scanner, fsys afero.Fs) *Index {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	idx := &Index{Root: root, Scanner: scanner, Fs: fsys}
	root.Writable = idx.probeWritable(scanner.MagicFile)
	return idx
}

// probeWritable resolves spec §4.D's is_writable: it probes
// <root>/<magicFile> for write permission; if the root does not yet
// exist, the probe creates the directory and magic file, and writability
// follows from whether that creation succeeded. A root that cannot be
// written is demoted to read-only for the rest of the process's
// lifetime (the caller stores the result on Root.Writable, which is
// never re-probed).
func (idx *Index) probeWritable(magicFile string) bool {
	root := idx.Root.Path.ToString()
	if err := idx.Fs.MkdirAll(root, 0775); err != nil {
		return false
	}
	magicPath := idx.Root.Path.Join(magicFile).ToString()
	if exists, err := afero.Exists(idx.Fs, magicPath); err == nil && exists {
		return idx.canWrite(magicPath)
	}
	f, err := idx.Fs.OpenFile(magicPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (idx *Index) canWrite(path string) bool {
	f, err := idx.Fs.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func (idx *Index) ensureScanned() error {
	if idx.Root.Scanned() {
		return nil
	}
	return idx.Scanner.Scan(idx.Root)
}

// Insert adds entry to the root's index and, when entry has an extracted
// directory, writes its repodata_record.json, per spec §4.D.
func (idx *Index) Insert(entry cacheroot.Entry) error {
	if err := idx.ensureScanned(); err != nil {
		return err
	}
	idx.Root.Insert(entry)
	if entry.ExtractedDir == "" {
		return nil
	}
	rec, err := archive.ReadIndexJSON(entry.ExtractedDir)
	if err != nil {
		return nil // best-effort; the scanner will recover metadata later
	}
	return archive.WriteRepodataRecord(entry.ExtractedDir, rec)
}

// Get returns the entry for ref, or the error EntryNotFound if absent
// and no default is supplied.
func (idx *Index) Get(ref pkgref.Ref) (cacheroot.Entry, error) {
	if err := idx.ensureScanned(); err != nil {
		return cacheroot.Entry{}, err
	}
	if e, ok := idx.Root.Get(ref); ok {
		return e, nil
	}
	return cacheroot.Entry{}, cerrors.New(cerrors.EntryNotFound, "no entry for ref "+ref.DistStr())
}

// GetOrDefault returns the entry for ref, or def if absent.
func (idx *Index) GetOrDefault(ref pkgref.Ref, def cacheroot.Entry) (cacheroot.Entry, error) {
	if err := idx.ensureScanned(); err != nil {
		return def, err
	}
	if e, ok := idx.Root.Get(ref); ok {
		return e, nil
	}
	return def, nil
}

// Remove deletes the entry for ref.
func (idx *Index) Remove(ref pkgref.Ref) error {
	if err := idx.ensureScanned(); err != nil {
		return err
	}
	idx.Root.Remove(ref)
	return nil
}

// Query evaluates q against every entry (spec §4.D query): a match-spec
// query yields every matching entry, and a ref query yields the single
// equal entry if any; when no entry equals the ref, every entry whose
// DistStrNoChannel matches the ref's is returned instead (supplemented
// feature, SPEC_FULL §4.1).
func (idx *Index) Query(q pkgref.Query) ([]cacheroot.Entry, error) {
	if err := idx.ensureScanned(); err != nil {
		return nil, err
	}
	var out []cacheroot.Entry
	if q.Spec != nil {
		for _, e := range idx.Root.Entries() {
			if q.Spec.Matches(e.Ref) {
				out = append(out, e)
			}
		}
		return out, nil
	}
	if e, ok := idx.Root.Get(*q.Exact); ok {
		return []cacheroot.Entry{e}, nil
	}
	for _, e := range idx.Root.Entries() {
		if e.Ref.DistStrNoChannel() == q.Exact.DistStrNoChannel() {
			out = append(out, e)
		}
	}
	return out, nil
}

// Values returns every entry currently held.
func (idx *Index) Values() ([]cacheroot.Entry, error) {
	if err := idx.ensureScanned(); err != nil {
		return nil, err
	}
	return idx.Root.Entries(), nil
}

// Sweep implements the supplemented orphan-detection feature (SPEC_FULL
// §4.2): entries whose extracted directory has neither a tarball nor a
// readable info/index.json are crash debris from a previous partial
// extraction. Sweep reports their paths and, unless dryRun, removes them.
// This is detection of unusable debris, not the policy-driven garbage
// collection the spec's Non-goals exclude.
func (idx *Index) Sweep(dryRun bool) ([]string, error) {
	if err := idx.ensureScanned(); err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range idx.Root.Entries() {
		if e.IsFetched() || e.IsExtracted() {
			continue
		}
		if e.ExtractedDir == "" {
			continue
		}
		removed = append(removed, e.ExtractedDir.ToString())
		if !dryRun {
			_ = e.ExtractedDir.RemoveAll()
			idx.Root.Remove(e.Ref)
		}
	}
	return removed, nil
}
