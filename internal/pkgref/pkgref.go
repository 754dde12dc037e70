// Package pkgref defines the package-reference identity tuple shared by
// every layer of the cache core, along with the match-spec predicate used
// to query entries by pattern rather than exact identity.
package pkgref

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Ref is the identity tuple of a package artifact. Equality and ordering
// are defined over (Channel, Name, Version, BuildString, BuildNumber);
// the remaining fields are side-channel attributes carried for
// convenience, not part of identity.
type Ref struct {
	Channel     string
	Name        string
	Version     string
	BuildString string
	BuildNumber int

	Subdir   string
	Filename string
	MD5      string
	Size     int64
	URL      string
}

// Key returns the identity-only portion of the ref, suitable for use as a
// map key (Ref itself is comparable and usable directly as a map key as
// long as callers only ever populate the identity fields consistently
// before using it that way; Key documents the intent explicitly).
func (r Ref) Key() Ref {
	return Ref{
		Channel:     r.Channel,
		Name:        r.Name,
		Version:     r.Version,
		BuildString: r.BuildString,
		BuildNumber: r.BuildNumber,
	}
}

// Equal compares two refs by identity tuple only.
func (r Ref) Equal(other Ref) bool {
	return r.Channel == other.Channel &&
		r.Name == other.Name &&
		r.Version == other.Version &&
		r.BuildString == other.BuildString &&
		r.BuildNumber == other.BuildNumber
}

// Less orders two refs lexicographically over the identity tuple, per
// spec §3 ("ordering is lexicographic over that tuple").
func (r Ref) Less(other Ref) bool {
	if r.Channel != other.Channel {
		return r.Channel < other.Channel
	}
	if r.Name != other.Name {
		return r.Name < other.Name
	}
	if r.Version != other.Version {
		return r.Version < other.Version
	}
	if r.BuildString != other.BuildString {
		return r.BuildString < other.BuildString
	}
	return r.BuildNumber < other.BuildNumber
}

// DistStr returns the stable string key "<channel>::<name>-<version>-<build>".
func (r Ref) DistStr() string {
	return fmt.Sprintf("%s::%s", r.Channel, r.DistStrNoChannel())
}

// DistStrNoChannel strips the channel prefix from DistStr.
func (r Ref) DistStrNoChannel() string {
	build := r.BuildString
	if build == "" {
		build = strconv.Itoa(r.BuildNumber)
	}
	return fmt.Sprintf("%s-%s-%s", r.Name, r.Version, build)
}

// TarballBasename is the filename this ref would have on disk with the
// given tarball extension (e.g. ".tar.bz2").
func (r Ref) TarballBasename(ext string) string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.DistStrNoChannel() + ext
}

// ParseRef builds a Ref from a URL, replacing the source's metaclass-driven
// type coercion (spec §9) with a single explicit parsing function. The URL
// is expected to look like "<scheme>://<host>/<channel-path>/<subdir>/<pkg>-<ver>-<build>.<ext>".
func ParseRef(rawURL string, tarballExt string) (Ref, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Ref{}, fmt.Errorf("parse ref url %q: %w", rawURL, err)
	}
	dir, file := path.Split(u.Path)
	dir = strings.Trim(dir, "/")
	segments := strings.Split(dir, "/")
	subdir := ""
	channel := dir
	if len(segments) > 0 {
		subdir = segments[len(segments)-1]
		channel = strings.Join(segments[:len(segments)-1], "/")
	}
	name, version, build := splitDistName(strings.TrimSuffix(file, tarballExt))
	return Ref{
		Channel:     channel,
		Name:        name,
		Version:     version,
		BuildString: build,
		Subdir:      subdir,
		Filename:    file,
		URL:         rawURL,
	}, nil
}

// splitDistName splits "<name>-<version>-<build>" into its three parts.
// Package names may themselves contain hyphens, so the split anchors on
// the last two hyphen-separated segments.
func splitDistName(distName string) (name, version, build string) {
	parts := strings.Split(distName, "-")
	if len(parts) < 3 {
		return distName, "", ""
	}
	build = parts[len(parts)-1]
	version = parts[len(parts)-2]
	name = strings.Join(parts[:len(parts)-2], "-")
	return name, version, build
}

// MatchSpec is the tagged-variant predicate over package references named
// in spec §9 ("a tagged variant {MatchSpec, PackageRef, String} with
// explicit match arms in query"). Each non-empty pattern field is matched
// with glob semantics; empty fields match anything.
type MatchSpec struct {
	Channel     string
	Name        string
	Version     string
	BuildString string
}

// Matches reports whether ref satisfies every non-empty pattern field.
func (m MatchSpec) Matches(ref Ref) bool {
	return globMatches(m.Channel, ref.Channel) &&
		globMatches(m.Name, ref.Name) &&
		globMatches(m.Version, ref.Version) &&
		globMatches(m.BuildString, ref.BuildString)
}

func globMatches(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		// An unparseable pattern is treated as a literal, not a fatal error.
		return pattern == value
	}
	return g.Match(value)
}

// Query is the explicit tagged variant consumed by CacheIndex.Query /
// MultiCache.QueryAll: exactly one of Spec or Exact is set.
type Query struct {
	Spec  *MatchSpec
	Exact *Ref
}

// ForRef builds a Query matching exactly one ref by identity.
func ForRef(ref Ref) Query {
	k := ref.Key()
	return Query{Exact: &k}
}

// ForSpec builds a Query matching any ref satisfying spec.
func ForSpec(spec MatchSpec) Query {
	return Query{Spec: &spec}
}
