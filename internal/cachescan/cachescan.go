// Package cachescan implements CacheScanner (spec §4.C): walking a root's
// directory tree across both the legacy flat and new channel/subdir
// layouts, deduping tarball/extracted-dir pairs, and recovering metadata
// via the make_entry ladder.
package cachescan

import (
	"os"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/karrick/godirwalk"

	"github.com/artifex-pm/artifexctl/internal/archive"
	"github.com/artifex-pm/artifexctl/internal/cachepath"
	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
)

// Scanner walks cache roots per the fixed on-disk layout of spec §6.
type Scanner struct {
	TarballExt string
	MagicFile  string
}

// New builds a Scanner bound to the deployment's tarball extension and
// magic-file name.
func New(tarballExt, magicFile string) *Scanner {
	return &Scanner{TarballExt: tarballExt, MagicFile: magicFile}
}

// Scan populates root's entries by walking its legacy-flat children and
// any <channel>/metadata.json new-layout subtrees, per spec §4.C. It is
// idempotent to call repeatedly; MarkScanned lets CacheIndex skip
// redundant rescans.
func (s *Scanner) Scan(root *cacheroot.Root) error {
	if err := s.scanDir(root, root.Path, "", ""); err != nil {
		return err
	}

	entries, err := os.ReadDir(root.Path.ToString())
	if err != nil {
		if os.IsNotExist(err) {
			root.MarkScanned()
			return nil
		}
		return err
	}
	for _, child := range entries {
		if !child.IsDir() {
			continue
		}
		channelDir := root.Path.Join(child.Name())
		if !channelDir.Join("metadata.json").FileExists() {
			continue
		}
		subEntries, err := os.ReadDir(channelDir.ToString())
		if err != nil {
			continue
		}
		for _, sub := range subEntries {
			if !sub.IsDir() {
				continue
			}
			subdirPath := channelDir.Join(sub.Name())
			if !subdirPath.Join(s.MagicFile).FileExists() {
				continue // sentinel absent: not a recognized new-layout level
			}
			if err := s.scanDir(root, subdirPath, child.Name(), sub.Name()); err != nil {
				return err
			}
		}
	}

	root.MarkScanned()
	return nil
}

// scanDir applies the legacy-flat discovery algorithm (sorted listing,
// pair dedup, symlink skip, metadata-recovery ladder) within one
// directory level, whether that is the root itself (legacy flat) or a
// <channel>/<subdir> level (new layout).
func (s *Scanner) scanDir(root *cacheroot.Root, dir cachepath.AbsolutePath, channel, subdir string) error {
	names, err := sortedListing(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	candidates := Dedupe(names, s.TarballExt)
	seen := mapset.NewSet[string]()
	for _, name := range candidates {
		base := strings.TrimSuffix(name, s.TarballExt)
		if seen.Contains(base) {
			continue
		}
		seen.Add(base)

		entryPath := dir.Join(name)
		if entryPath.IsSymlink() {
			continue
		}

		entry, ok, err := s.makeEntry(root, dir, base, channel, subdir)
		if err != nil {
			return err
		}
		if ok {
			root.Insert(entry)
		}
	}
	return nil
}

// sortedListing returns dir's immediate children, sorted, via godirwalk's
// ReadDirents for the non-recursive single-level listing the pair-dedup
// algorithm operates over.
func sortedListing(dir cachepath.AbsolutePath) ([]string, error) {
	dirents, err := godirwalk.ReadDirents(dir.ToString(), nil)
	if err != nil {
		return nil, err
	}
	dirents.Sort()
	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Dedupe implements spec §4.C / §8's pair-dedup rule: operating on the
// sorted listing, when a tarball immediately follows its own extracted
// directory name, the directory name is dropped and only the tarball
// entry survives.
func Dedupe(sorted []string, tarballExt string) []string {
	out := make([]string, 0, len(sorted))
	i := 0
	for i < len(sorted) {
		if i+1 < len(sorted) && sorted[i+1] == sorted[i]+tarballExt {
			out = append(out, sorted[i+1])
			i += 2
			continue
		}
		out = append(out, sorted[i])
		i++
	}
	return out
}

// makeEntry runs the metadata-recovery ladder of spec §4.C for the
// candidate named base within dir.
func (s *Scanner) makeEntry(root *cacheroot.Root, dir cachepath.AbsolutePath, base, channel, subdir string) (cacheroot.Entry, bool, error) {
	tarballPath := dir.Join(base + s.TarballExt)
	extractedDir := dir.Join(base)
	hasTarball := tarballPath.FileExists()
	hasExtracted := extractedDir.DirExists()

	ref := func(rec archive.PackageRecord) pkgref.Ref {
		return pkgref.Ref{
			Channel:     channel,
			Name:        rec.Name,
			Version:     rec.Version,
			BuildString: rec.Build,
			BuildNumber: rec.BuildNumber,
			Subdir:      subdir,
			Filename:    base + s.TarballExt,
		}
	}

	// Step 1: repodata_record.json short-circuits the whole ladder.
	if hasExtracted {
		if rec, err := archive.ReadRepodataRecord(extractedDir); err == nil {
			return cacheroot.Entry{
				Ref: ref(rec), TarballPath: orNil(hasTarball, tarballPath),
				ExtractedDir: extractedDir, MD5: rec.MD5, Size: rec.Size, OriginURL: rec.URL,
			}, true, nil
		}

		// Step 2: index.json, supplemented with md5/URL, optionally
		// upgraded to a repodata_record.json if writable.
		if rec, err := archive.ReadIndexJSON(extractedDir); err == nil {
			md5sum := rec.MD5
			if md5sum == "" && hasTarball {
				if sum, err := archive.ComputeMD5(tarballPath); err == nil {
					md5sum = sum
				}
			}
			url := rec.URL
			if url == "" {
				if u, ok := root.URLs().GetURL(base, s.TarballExt); ok {
					url = u
				} else if hasTarball {
					url = "file://" + tarballPath.ToString()
				}
			}
			rec.MD5, rec.URL = md5sum, url
			if root.Writable {
				_ = archive.WriteRepodataRecord(extractedDir, rec)
			}
			return cacheroot.Entry{
				Ref: ref(rec), TarballPath: orNil(hasTarball, tarballPath),
				ExtractedDir: extractedDir, MD5: md5sum, Size: rec.Size, OriginURL: url,
			}, true, nil
		}

		// Step 3: extracted dir exists with neither metadata file and no
		// tarball to fall back on — not enough data, ignored silently.
		if !hasTarball {
			return cacheroot.Entry{}, false, nil
		}
	}

	if !hasTarball {
		return cacheroot.Entry{}, false, nil
	}

	// Step 4: attempt extraction to recover metadata.
	if root.Writable {
		_ = extractedDir.RemoveAll() // drop any partial extraction first
		if err := archive.ExtractTarball(tarballPath, extractedDir); err != nil {
			// Step 5: corrupt archive — delete the tarball, emit nothing.
			_ = tarballPath.Remove()
			return cacheroot.Entry{}, false, nil
		}
		rec, err := archive.ReadIndexJSON(extractedDir)
		if err != nil {
			_ = tarballPath.Remove()
			return cacheroot.Entry{}, false, nil
		}
		md5sum, _ := archive.ComputeMD5(tarballPath)
		rec.MD5 = md5sum
		_ = archive.WriteRepodataRecord(extractedDir, rec)
		return cacheroot.Entry{
			Ref: ref(rec), TarballPath: tarballPath, ExtractedDir: extractedDir,
			MD5: md5sum, Size: rec.Size,
		}, true, nil
	}

	// Read-only root: read index.json directly from the tarball stream.
	rec, err := archive.ReadIndexJSONFromTarball(tarballPath)
	if err != nil {
		return cacheroot.Entry{}, false, nil
	}
	md5sum, _ := archive.ComputeMD5(tarballPath)
	return cacheroot.Entry{
		Ref: ref(rec), TarballPath: tarballPath, MD5: md5sum, Size: rec.Size,
	}, true, nil
}

func orNil(present bool, p cachepath.AbsolutePath) cachepath.AbsolutePath {
	if present {
		return p
	}
	return ""
}
