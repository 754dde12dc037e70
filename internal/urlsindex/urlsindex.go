// Package urlsindex implements the per-root tarball-filename-to-origin-URL
// mapping described in spec §4.B: an append-only urls.txt per bucket,
// loaded newest-first in memory despite being appended oldest-first on
// disk (spec §9's explicit re-architecture: "make the newest-first
// invariant explicit in the type rather than by reversing after read" —
// here that invariant is the bucket's slice order, established once at
// Load time).
package urlsindex

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/artifex-pm/artifexctl/internal/cachepath"
)

const globalBucket = "global"
const urlsFileName = "urls.txt"

// Index is a root's UrlsIndex: bucket name -> URLs, most-recent-first.
type Index struct {
	root    cachepath.AbsolutePath
	buckets map[string][]string
	order   []string // bucket insertion order, for get_url's search order
}

// Load constructs an Index for root, reading the legacy root-level
// urls.txt into the global bucket and any <channel>/<subdir>/urls.txt
// files into their own buckets, per spec §4.B's Load algorithm.
func Load(root cachepath.AbsolutePath) *Index {
	idx := &Index{root: root, buckets: map[string][]string{}}

	if lines, err := readLines(root.Join(urlsFileName)); err == nil {
		idx.buckets[globalBucket] = reversed(lines)
		idx.order = append(idx.order, globalBucket)
	}

	entries, err := os.ReadDir(root.ToString())
	if err != nil {
		return idx
	}
	for _, channelEntry := range entries {
		if !channelEntry.IsDir() {
			continue
		}
		channelDir := root.Join(channelEntry.Name())
		subEntries, err := os.ReadDir(channelDir.ToString())
		if err != nil {
			continue
		}
		for _, subEntry := range subEntries {
			if !subEntry.IsDir() {
				continue
			}
			subdirPath := channelDir.Join(subEntry.Name())
			lines, err := readLines(subdirPath.Join(urlsFileName))
			if err != nil {
				continue
			}
			bucket := channelEntry.Name() + "/" + subEntry.Name()
			idx.buckets[bucket] = reversed(lines)
			idx.order = append(idx.order, bucket)
		}
	}
	return idx
}

func readLines(path cachepath.AbsolutePath) ([]string, error) {
	f, err := path.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func reversed(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[len(lines)-1-i] = l
	}
	return out
}

// SafeName renders a channel identifier as a filesystem-safe directory
// component (spec glossary: "Safe name"), collapsing path separators that
// would otherwise create nested directories from a multi-segment channel.
func SafeName(channel string) string {
	return strings.ReplaceAll(channel, "/", "_")
}

// AddURL records url in both the global bucket and, if a channel/subdir
// can be determined, the matching per-channel bucket. In-memory state is
// updated first; on-disk append failures are reported but do not roll
// back the in-memory entry, per spec §4.B ("the URL will be recovered on
// next scan from remaining state").
func (idx *Index) AddURL(url, channelSafeName, subdir string) error {
	idx.prepend(globalBucket, url)
	bucket := ""
	if channelSafeName != "" && subdir != "" {
		bucket = channelSafeName + "/" + subdir
		if _, ok := idx.buckets[bucket]; !ok {
			idx.order = append(idx.order, bucket)
		}
		idx.prepend(bucket, url)
	}

	if err := idx.appendDisk(idx.root.Join(urlsFileName), url); err != nil {
		return err
	}
	if bucket == "" {
		return nil
	}
	subdirPath := idx.root.Join(channelSafeName, subdir)
	if err := subdirPath.MkdirAll(); err != nil {
		return err
	}
	return idx.appendDisk(subdirPath.Join(urlsFileName), url)
}

func (idx *Index) prepend(bucket, url string) {
	if idx.buckets == nil {
		idx.buckets = map[string][]string{}
	}
	idx.buckets[bucket] = append([]string{url}, idx.buckets[bucket]...)
}

func (idx *Index) appendDisk(path cachepath.AbsolutePath, url string) error {
	f, err := path.OpenFile(os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(url + "\n")
	return err
}

// GetURL returns the most recent URL whose basename equals name (with
// tarballExt appended if name lacks it already), searching the global
// bucket first, then per-channel buckets in insertion order, most-recent-
// first within each bucket (spec §4.B get_url).
func (idx *Index) GetURL(name, tarballExt string) (string, bool) {
	target := name
	if !strings.HasSuffix(target, tarballExt) {
		target += tarballExt
	}

	if url, ok := idx.searchBucket(globalBucket, target); ok {
		return url, true
	}
	for _, bucket := range idx.order {
		if bucket == globalBucket {
			continue
		}
		if url, ok := idx.searchBucket(bucket, target); ok {
			return url, true
		}
	}
	return "", false
}

func (idx *Index) searchBucket(bucket, basename string) (string, bool) {
	for _, u := range idx.buckets[bucket] {
		if filepath.Base(u) == basename {
			return u, true
		}
	}
	return "", false
}
