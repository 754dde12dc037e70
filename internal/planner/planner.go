// Package planner implements ActionPlanner (spec §4.F): the R0-R3
// decision ladder that turns a package reference into an optional
// (FetchAction, ExtractAction) pair.
package planner

import (
	"path/filepath"
	"strings"

	"github.com/artifex-pm/artifexctl/internal/action"
	"github.com/artifex-pm/artifexctl/internal/cachepath"
	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/cerrors"
	"github.com/artifex-pm/artifexctl/internal/multicache"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
	"github.com/artifex-pm/artifexctl/internal/transport"
)

// Plan is the per-ref planner output: either side may be nil.
type Plan struct {
	Fetch   *action.FetchAction
	Extract *action.ExtractAction
}

// Planner applies rules R0-R3 in order, first match wins, per spec §4.F.
type Planner struct {
	Multi      *multicache.MultiCache
	Client     *transport.Client
	TarballExt string
}

// New builds a Planner bound to a MultiCache and download client.
func New(multi *multicache.MultiCache, client *transport.Client, tarballExt string) *Planner {
	return &Planner{Multi: multi, Client: client, TarballExt: tarballExt}
}

// Plan applies the decision ladder for a single ref.
func (p *Planner) Plan(ref pkgref.Ref) (Plan, error) {
	// R0: ref has an md5 and some cache contains a matching extracted entry.
	if ref.MD5 != "" {
		extracted, ok, err := p.Multi.AnyExtracted(ref)
		if err != nil {
			return Plan{}, err
		}
		if ok && extracted.MD5 == ref.MD5 {
			return Plan{}, nil
		}
	}

	target, err := p.Multi.FirstWritable()
	if err != nil {
		return Plan{}, err
	}

	// R1 / R2: some cache already has the tarball.
	entry, srcIdx, writable, ok, err := p.Multi.AnyFetched(ref)
	if err != nil {
		return Plan{}, err
	}
	if ok {
		if writable {
			// R1: extract in place, next to the tarball, in the root and
			// channel/subdir that already hold it.
			channel, subdir := "", ""
			if rel, relErr := entry.TarballPath.Dir().RelativePathString(srcIdx.Root.Path); relErr == nil && rel != "." {
				channel, subdir = filepath.Split(rel)
				channel = strings.TrimSuffix(channel, string(filepath.Separator))
			}
			return Plan{Extract: p.extractActionFor(entry.TarballPath.ToString(), srcIdx.Root, channel, subdir, entry.MD5)}, nil
		}
		// R2: promote from a read-only root via a file:// fetch into the
		// first writable root, then extract.
		fileURL := "file://" + entry.TarballPath.ToString()
		basename := ref.TarballBasename(p.TarballExt)
		fetch := &action.FetchAction{
			Client:       p.Client,
			URL:          fileURL,
			TargetRoot:   target.Root,
			Channel:      ref.Channel,
			Subdir:       ref.Subdir,
			Basename:     basename,
			MD5:          entry.MD5,
			ExpectedSize: entry.Size,
		}
		dst := targetTarballPath(target.Root, ref.Channel, ref.Subdir, basename)
		return Plan{Fetch: fetch, Extract: p.extractActionFor(dst, target.Root, ref.Channel, ref.Subdir, entry.MD5)}, nil
	}

	// R3: nothing cached anywhere — full fetch from ref.URL, then extract.
	if ref.URL == "" {
		return Plan{}, cerrors.Wrap(cerrors.PlanUnsatisfiable, ref.DistStr(), nil,
			"rule R3 selected but ref.url is empty")
	}
	resolved, err := pkgref.ParseRef(ref.URL, p.TarballExt)
	if err != nil {
		return Plan{}, err
	}
	basename := ref.TarballBasename(p.TarballExt)
	fetch := &action.FetchAction{
		Client:       p.Client,
		URL:          ref.URL,
		TargetRoot:   target.Root,
		Channel:      resolved.Channel,
		Subdir:       resolved.Subdir,
		Basename:     basename,
		MD5:          ref.MD5,
		ExpectedSize: ref.Size,
	}
	dst := targetTarballPath(target.Root, resolved.Channel, resolved.Subdir, basename)
	// The extracted dir's channel/subdir must match the tarball's, i.e.
	// resolved from ref.url, not ref's own (possibly absent) channel/subdir
	// (spec §4.F R3, §3 CacheEntry invariant).
	return Plan{Fetch: fetch, Extract: p.extractActionFor(dst, target.Root, resolved.Channel, resolved.Subdir, ref.MD5)}, nil
}

// extractActionFor builds an ExtractAction whose source tarball is
// sourceTarball (either already on disk, for R1, or the destination a
// preceding FetchAction will populate, for R2/R3). The extracted
// dirname is the tarball basename minus its extension, per spec §4.F.
// channel/subdir must match whatever channel/subdir the tarball itself
// was fetched into, not necessarily the input ref's.
func (p *Planner) extractActionFor(sourceTarball string, target *cacheroot.Root, channel, subdir, md5 string) *action.ExtractAction {
	basename := filepath.Base(sourceTarball)
	dirname := strings.TrimSuffix(basename, p.TarballExt)
	return &action.ExtractAction{
		SourceTarball:    cachepath.New(sourceTarball),
		TargetRoot:       target,
		Channel:          channel,
		Subdir:           subdir,
		ExtractedDirname: dirname,
		MD5:              md5,
	}
}

func targetTarballPath(target *cacheroot.Root, channel, subdir, basename string) string {
	if channel != "" && subdir != "" {
		return target.Path.Join(channel, subdir, basename).ToString()
	}
	return target.Path.Join(basename).ToString()
}
