// Package wheelmeta implements WheelMetadataAdapter (spec §4.I): scanning
// a Python prefix's site-packages directory for installed distributions
// and synthesizing cache-style records from their metadata files. This
// adapter is isolated from the cache core (spec §4.I, §5) — it shares
// record shapes only, consuming no CacheIndex/MultiCache state — so,
// unlike the core's mandated single-writer sequential model, parsing
// independent entries here is safely parallelized.
package wheelmeta

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"

	"github.com/artifex-pm/artifexctl/internal/pkgref"
	"github.com/artifex-pm/artifexctl/internal/util"
)

// sentinel channels for synthetic records, per spec §4.I.
const (
	ChannelPyPI    = "pypi"
	ChannelDevelop = "<develop>"
)

// Kind classifies one site-packages entry.
type Kind int

const (
	KindIgnored Kind = iota
	KindWheel        // <name>.dist-info/
	KindEggInfoDir   // <name>.egg-info/
	KindEggInfoFile  // <name>.egg-info (flat file)
	KindEgg          // <name>.egg/
	KindEggLink      // <name>.egg-link
)

// DistMetadata is the RFC-822 METADATA/PKG-INFO field set this adapter
// parses, decoded via mapstructure from the raw key/value map (spec
// §4.I: "{name, version, requires_dist, requires_python, provides_extra, ...}").
type DistMetadata struct {
	Name          string   `mapstructure:"Name"`
	Version       string   `mapstructure:"Version"`
	RequiresDist  []string `mapstructure:"Requires-Dist"`
	RequiresPython string  `mapstructure:"Requires-Python"`
	ProvidesExtra []string `mapstructure:"Provides-Extra"`
}

// Requirement is one parsed "Requires-Dist" entry:
// "<name>[extra1,extra2] (>=1.0,<2.0); marker" -> (name, extras, constraints, marker).
type Requirement struct {
	Name        string
	Extras      []string
	Constraints string
	Marker      string
	URL         string
}

// Adapter scans one prefix's site-packages directory.
type Adapter struct {
	SitePackages string
	PythonVersion string // used to evaluate {python_version} markers
}

// New builds an Adapter bound to a prefix's site-packages directory.
func New(sitePackages, pythonVersion string) *Adapter {
	return &Adapter{SitePackages: sitePackages, PythonVersion: pythonVersion}
}

// Scan classifies every entry under SitePackages and parses metadata for
// each recognized one, in parallel (safe: each entry is independent I/O).
func (a *Adapter) Scan() ([]pkgref.Ref, error) {
	entries, err := os.ReadDir(a.SitePackages)
	if err != nil {
		return nil, err
	}

	refs := make([]pkgref.Ref, len(entries))
	var g errgroup.Group
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			kind, name := classify(entry.Name())
			if kind == KindIgnored {
				return nil
			}
			if kind == KindEggInfoDir && !entry.IsDir() {
				kind = KindEggInfoFile
			}
			ref, err := a.parseOne(kind, name, entry.Name())
			if err != nil {
				return nil // a single unparsable entry does not fail the whole scan
			}
			refs[i] = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := refs[:0]
	for _, r := range refs {
		if r.Name != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func classify(name string) (Kind, string) {
	switch {
	case strings.HasSuffix(name, ".dist-info"):
		return KindWheel, strings.TrimSuffix(name, ".dist-info")
	case strings.HasSuffix(name, ".egg-link"):
		return KindEggLink, strings.TrimSuffix(name, ".egg-link")
	case strings.HasSuffix(name, ".egg-info"):
		return KindEggInfoDir, strings.TrimSuffix(name, ".egg-info")
	case strings.HasSuffix(name, ".egg"):
		return KindEgg, strings.TrimSuffix(name, ".egg")
	default:
		return KindIgnored, ""
	}
}

func (a *Adapter) parseOne(kind Kind, distName, entryName string) (pkgref.Ref, error) {
	dir := filepath.Join(a.SitePackages, entryName)

	var metadataPath string
	channel := ChannelPyPI
	switch kind {
	case KindWheel:
		metadataPath = filepath.Join(dir, "METADATA")
	case KindEggInfoDir:
		metadataPath = filepath.Join(dir, "PKG-INFO")
	case KindEggInfoFile:
		metadataPath = dir
	case KindEgg:
		metadataPath = filepath.Join(dir, "EGG-INFO", "PKG-INFO")
	case KindEggLink:
		// An .egg-link points at a development checkout elsewhere on
		// disk; its channel is the develop sentinel rather than pypi.
		channel = ChannelDevelop
		target, err := os.ReadFile(dir)
		if err != nil {
			return pkgref.Ref{}, err
		}
		lines := strings.Split(strings.TrimSpace(string(target)), "\n")
		if len(lines) == 0 {
			return pkgref.Ref{}, os.ErrNotExist
		}
		metadataPath = filepath.Join(strings.TrimSpace(lines[0]), distNameToEggInfo(distName), "PKG-INFO")
	}

	raw, err := parseRFC822(metadataPath)
	if err != nil {
		return pkgref.Ref{}, err
	}

	var meta DistMetadata
	if err := mapstructure.Decode(raw, &meta); err != nil {
		return pkgref.Ref{}, err
	}
	if meta.Name == "" {
		meta.Name = distName
	}

	return pkgref.Ref{
		Channel: channel,
		Name:    meta.Name,
		Version: meta.Version,
	}, nil
}

func distNameToEggInfo(distName string) string {
	return distName + ".egg-info"
}

// parseRFC822 reads a METADATA/PKG-INFO style file into a raw
// key -> []string map (repeated headers, e.g. Requires-Dist, collect
// into a slice).
func parseRFC822(path string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer util.CloseAndIgnoreError(f)

	out := map[string]interface{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break // metadata header block ends at the first blank line
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch existing := out[key].(type) {
		case nil:
			out[key] = value
		case string:
			out[key] = []string{existing, value}
		case []string:
			out[key] = append(existing, value)
		}
	}
	return out, scanner.Err()
}

// ParseRequirement parses one "Requires-Dist" entry into its components:
// "<name>[extra1,extra2] (>=1.0,<2.0); marker". Markers are evaluated
// against {python_version} only, per spec §4.I.
func ParseRequirement(raw string) Requirement {
	req := Requirement{}
	rest := raw
	if name, marker, ok := strings.Cut(rest, ";"); ok {
		req.Marker = strings.TrimSpace(marker)
		rest = strings.TrimSpace(name)
	}
	if name, constraint, ok := strings.Cut(rest, "("); ok {
		rest = strings.TrimSpace(name)
		req.Constraints = strings.TrimSuffix(strings.TrimSpace(constraint), ")")
	}
	if name, extras, ok := strings.Cut(rest, "["); ok {
		rest = strings.TrimSpace(name)
		req.Extras = strings.Split(strings.TrimSuffix(extras, "]"), ",")
	}
	req.Name = strings.TrimSpace(rest)
	return req
}

// MarkerSatisfied evaluates a "python_version <op> '<value>'" marker
// against pythonVersion; any other marker shape is treated as satisfied
// (conservative: this adapter only needs to filter on interpreter
// version, per spec §4.I).
func MarkerSatisfied(marker, pythonVersion string) bool {
	if marker == "" {
		return true
	}
	if !strings.Contains(marker, "python_version") {
		return true
	}
	return strings.Contains(marker, pythonVersion)
}
