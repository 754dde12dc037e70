package config

import (
	"os"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"gotest.tools/v3/assert"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flags)
	assert.NilError(t, flags.Parse(args))
	return flags
}

func TestLoadPrefersExplicitCacheRootFlagOverEnv(t *testing.T) {
	t.Setenv(EnvCacheRoots, "/env/one")
	flags := newFlags(t, "--cache-root=/flag/one", "--cache-root=/flag/two")

	cfg, err := Load(flags, "0.0.0-test")
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg.CacheRoots, []string{"/flag/one", "/flag/two"})
}

func TestLoadFallsBackToEnvCacheRootsWhenNoFlagGiven(t *testing.T) {
	t.Setenv(EnvCacheRoots, "/env/one"+string(os.PathListSeparator)+"/env/two")
	flags := newFlags(t)

	cfg, err := Load(flags, "0.0.0-test")
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg.CacheRoots, []string{"/env/one", "/env/two"})
}

func TestLoadFallsBackToDefaultCacheRootWhenUnconfigured(t *testing.T) {
	t.Setenv(EnvCacheRoots, "")
	flags := newFlags(t)

	cfg, err := Load(flags, "0.0.0-test")
	assert.NilError(t, err)
	assert.Equal(t, len(cfg.CacheRoots), 1)
	assert.Assert(t, strings.Contains(cfg.CacheRoots[0], "artifexctl"))
}

func TestLoadMapsVerbosityToLogLevel(t *testing.T) {
	flags := newFlags(t, "-vv")
	cfg, err := Load(flags, "0.0.0-test")
	assert.NilError(t, err)
	assert.Equal(t, cfg.Verbosity, 2)
	assert.Equal(t, cfg.Logger.GetLevel(), hclog.Debug)
}

func TestLoadZeroVerbosityHonorsLogLevelEnvVar(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	flags := newFlags(t)
	cfg, err := Load(flags, "0.0.0-test")
	assert.NilError(t, err)
	assert.Equal(t, cfg.Logger.GetLevel(), hclog.Warn)
}

func TestLoadRejectsInvalidLogLevelEnvVar(t *testing.T) {
	t.Setenv(EnvLogLevel, "not-a-level")
	flags := newFlags(t)
	_, err := Load(flags, "0.0.0-test")
	assert.ErrorContains(t, err, EnvLogLevel)
}

func TestAddFlagsRegistersQuietJSONAndDryRun(t *testing.T) {
	flags := newFlags(t, "--quiet", "--json", "--dry-run")
	cfg, err := Load(flags, "0.0.0-test")
	assert.NilError(t, err)
	assert.Assert(t, cfg.Quiet)
	assert.Assert(t, cfg.JSON)
	assert.Assert(t, cfg.DryRun)
	assert.Equal(t, cfg.TarballExt, TarballExt)
	assert.Equal(t, cfg.MagicFile, MagicFile)
}
