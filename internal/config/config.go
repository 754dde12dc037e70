// Package config loads the ordered cache-root list, verbosity/quiet/json/
// dry-run flags, and the on-disk naming conventions (magic file, tarball
// extension) that the rest of the tree is built around.
package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	hclog "github.com/hashicorp/go-hclog"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvLogLevel is the log-level environment variable.
	EnvLogLevel = "ARTIFEXCTL_LOG_LEVEL"
	// EnvCacheRoots is a PATH-style separated list overriding the
	// configured cache roots.
	EnvCacheRoots = "ARTIFEXCTL_CACHE_ROOTS"
	// MagicFile is the sentinel file probed (and, if absent, created) in
	// a cache root to decide whether it is writable.
	MagicFile = "urls.txt"
	// TarballExt is the cache's tarball extension (spec §3).
	TarballExt = ".tar.bz2"
)

// Config is the resolved set of inputs the rest of the program is built
// from: which roots to use, in what order, and how verbose to be.
type Config struct {
	Logger hclog.Logger

	// CacheRoots is the ordered list of configured cache-root paths. The
	// first writable one is where new packages land (spec §4.E/§4.F).
	CacheRoots []string

	Verbosity int
	Quiet     bool
	JSON      bool
	DryRun    bool

	TarballExt string
	MagicFile  string

	Version string
}

// AddFlags registers the common flags shared by every subcommand.
func AddFlags(flags *pflag.FlagSet) {
	flags.StringSlice("cache-root", nil, "cache root directory (repeatable, first writable root receives new packages)")
	flags.CountP("verbosity", "v", "increase logging verbosity")
	flags.BoolP("quiet", "q", false, "suppress progress bar output")
	flags.Bool("json", false, "emit the final outcome table as JSON")
	flags.Bool("dry-run", false, "plan without executing")
}

// Load resolves a Config from flags, environment variables, and defaults,
// in that order of precedence, via viper bound to the given flag set.
func Load(flags *pflag.FlagSet, version string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARTIFEXCTL")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	roots := v.GetStringSlice("cache-root")
	if len(roots) == 0 {
		if env := os.Getenv(EnvCacheRoots); env != "" {
			roots = filepath.SplitList(env)
		}
	}
	if len(roots) == 0 {
		def, err := defaultCacheRoot()
		if err != nil {
			return nil, err
		}
		roots = []string{def}
	}
	for i, r := range roots {
		expanded, err := homedir.Expand(r)
		if err != nil {
			return nil, fmt.Errorf("cache root %q: %w", r, err)
		}
		roots[i] = expanded
	}

	verbosity := v.GetInt("verbosity")
	level := levelForVerbosity(verbosity)
	if level == hclog.NoLevel {
		if raw := os.Getenv(EnvLogLevel); raw != "" {
			level = hclog.LevelFromString(raw)
			if level == hclog.NoLevel {
				return nil, fmt.Errorf("%s value %q is not a valid log level", EnvLogLevel, raw)
			}
		}
	}

	var output io.Writer = ioutil.Discard
	color := hclog.ColorOff
	if level != hclog.NoLevel {
		output = os.Stderr
		color = hclog.AutoColor
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "artifexctl",
		Level:  level,
		Color:  color,
		Output: output,
	})

	return &Config{
		Logger:     logger,
		CacheRoots: roots,
		Verbosity:  verbosity,
		Quiet:      v.GetBool("quiet"),
		JSON:       v.GetBool("json"),
		DryRun:     v.GetBool("dry-run"),
		TarballExt: TarballExt,
		MagicFile:  MagicFile,
		Version:    version,
	}, nil
}

func levelForVerbosity(v int) hclog.Level {
	switch {
	case v <= 0:
		return hclog.NoLevel
	case v == 1:
		return hclog.Info
	case v == 2:
		return hclog.Debug
	default:
		return hclog.Trace
	}
}

// defaultCacheRoot resolves the cache root used when no --cache-root flag
// or ARTIFEXCTL_CACHE_ROOTS env var is given: an XDG cache directory,
// falling back to ~/.cache/artifexctl.
func defaultCacheRoot() (string, error) {
	if dir, err := xdg.CacheFile("artifexctl/pkgs"); err == nil && dir != "" {
		return filepath.Dir(dir), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("could not resolve a default cache root: %w", err)
	}
	return filepath.Join(home, ".cache", "artifexctl"), nil
}
