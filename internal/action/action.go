// Package action implements the reversible FetchAction / ExtractAction
// unit operations of spec §4.G: a small interface with two concrete
// variants sharing only the verify/execute/reverse/cleanup phase
// contract, per spec §9's re-architecture of the source's "action object".
package action

import (
	"context"
	"fmt"

	"github.com/artifex-pm/artifexctl/internal/archive"
	"github.com/artifex-pm/artifexctl/internal/cachepath"
	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/cerrors"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
	"github.com/artifex-pm/artifexctl/internal/transport"
	"github.com/artifex-pm/artifexctl/internal/urlsindex"
)

// ProgressFunc reports execute() progress in [0, 1].
type ProgressFunc func(fraction float64)

// Action is the uniform four-phase contract shared by FetchAction and
// ExtractAction.
type Action interface {
	// Verify performs an idempotent, non-destructive pre-flight check.
	Verify() error
	// Execute performs the operation, invoking progress at least once
	// at completion.
	Execute(ctx context.Context, progress ProgressFunc) error
	// Reverse undoes partial on-disk effects of a failed Execute. Must
	// be safe to call even if Execute never started.
	Reverse() error
	// Cleanup removes temporaries after a successful Execute.
	Cleanup() error
}

// FetchAction downloads a tarball into a target cache root.
type FetchAction struct {
	Client       *transport.Client
	URL          string
	TargetRoot   *cacheroot.Root
	Channel      string
	Subdir       string
	Basename     string
	MD5          string
	ExpectedSize int64

	dst cachepath.AbsolutePath
}

func (f *FetchAction) destPath() cachepath.AbsolutePath {
	if f.Channel != "" && f.Subdir != "" {
		return f.TargetRoot.Path.Join(f.Channel, f.Subdir, f.Basename)
	}
	return f.TargetRoot.Path.Join(f.Basename)
}

// Verify checks the target directory is reachable and records the
// destination path. No destructive effect.
func (f *FetchAction) Verify() error {
	f.dst = f.destPath()
	return f.dst.EnsureDir()
}

// Execute downloads the tarball, verifying its checksum if one was given.
func (f *FetchAction) Execute(ctx context.Context, progress ProgressFunc) error {
	if f.dst == "" {
		f.dst = f.destPath()
	}
	var onProgress transport.ProgressFunc
	if progress != nil {
		onProgress = transport.ProgressFunc(progress)
	}
	if err := f.Client.Download(ctx, f.URL, f.dst, f.MD5, f.ExpectedSize, onProgress); err != nil {
		return cerrors.Wrap(cerrors.IntegrityMismatch, f.Basename, err, "fetch failed")
	}
	return nil
}

// Reverse removes any partially or fully downloaded file.
func (f *FetchAction) Reverse() error {
	if f.dst == "" {
		return nil
	}
	if f.dst.FileExists() {
		return f.dst.Remove()
	}
	return nil
}

// Cleanup records the URL into the target root's UrlsIndex on success.
// §5's ordering guarantee requires this precede the corresponding
// ExtractAction's CacheIndex.insert, which PipelineExecutor enforces by
// running FetchAction.Cleanup before ExtractAction.Cleanup (ExtractAction
// defers its index insert to its own Cleanup for exactly this reason).
func (f *FetchAction) Cleanup() error {
	return f.TargetRoot.URLs().AddURL(f.URL, urlsindex.SafeName(f.Channel), f.Subdir)
}

// ExtractAction extracts a tarball already present on disk into a target
// cache root and publishes the resulting entry into its CacheIndex.
type ExtractAction struct {
	SourceTarball   cachepath.AbsolutePath
	TargetRoot      *cacheroot.Root
	Channel         string
	Subdir          string
	ExtractedDirname string
	MD5             string

	dst   cachepath.AbsolutePath
	entry cacheroot.Entry
}

func (e *ExtractAction) destDir() cachepath.AbsolutePath {
	if e.Channel != "" && e.Subdir != "" {
		return e.TargetRoot.Path.Join(e.Channel, e.Subdir, e.ExtractedDirname)
	}
	return e.TargetRoot.Path.Join(e.ExtractedDirname)
}

// Verify checks the source tarball exists and records the destination.
func (e *ExtractAction) Verify() error {
	if !e.SourceTarball.FileExists() {
		return fmt.Errorf("extract: source tarball does not exist: %s", e.SourceTarball)
	}
	e.dst = e.destDir()
	return nil
}

// Execute extracts the tarball and stages the resulting entry for
// insertion. The insert itself is deferred to Cleanup so that it happens
// after the corresponding FetchAction.Cleanup has recorded the URL (spec
// §5's ordering guarantee).
func (e *ExtractAction) Execute(ctx context.Context, progress ProgressFunc) error {
	if e.dst == "" {
		e.dst = e.destDir()
	}
	if err := archive.ExtractTarball(e.SourceTarball, e.dst); err != nil {
		return cerrors.Wrap(cerrors.CorruptArchive, e.ExtractedDirname, err, "extract failed")
	}
	rec, err := archive.ReadIndexJSON(e.dst)
	if err != nil {
		return cerrors.Wrap(cerrors.MissingMetadata, e.ExtractedDirname, err, "missing info/index.json after extract")
	}

	e.entry = cacheroot.Entry{
		Ref: pkgref.Ref{
			Channel:     rec.Channel,
			Name:        rec.Name,
			Version:     rec.Version,
			BuildString: rec.Build,
			BuildNumber: rec.BuildNumber,
			Subdir:      e.Subdir,
		},
		TarballPath:  e.SourceTarball,
		ExtractedDir: e.dst,
		MD5:          e.MD5,
		Size:         rec.Size,
	}
	if progress != nil {
		progress(1.0)
	}
	return nil
}

// Reverse removes the partial extracted directory.
func (e *ExtractAction) Reverse() error {
	if e.dst == "" {
		return nil
	}
	return e.dst.RemoveAll()
}

// Cleanup inserts the extracted entry into the target root's index and
// writes repodata_record.json to short-circuit future scans, per spec
// §4.C step 2 / §4.D insert. Run after FetchAction.Cleanup so the
// UrlsIndex is updated before the CacheIndex sees the entry.
func (e *ExtractAction) Cleanup() error {
	e.TargetRoot.Insert(e.entry)
	rec, err := archive.ReadIndexJSON(e.dst)
	if err != nil {
		return nil // best-effort; the scanner will recover metadata later
	}
	return archive.WriteRepodataRecord(e.dst, rec)
}
