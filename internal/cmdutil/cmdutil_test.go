package cmdutil

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"gotest.tools/v3/assert"
)

type countingCloser struct {
	closed int
	err    error
}

func (c *countingCloser) Close() error {
	c.closed++
	return c.err
}

func TestAddFlagsRegistersColorAndConfigFlags(t *testing.T) {
	helper := NewHelper("0.0.0-test")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	helper.AddFlags(flags)

	for _, name := range []string{"color", "no-color", "cache-root", "verbosity", "quiet", "json", "dry-run"} {
		assert.Assert(t, flags.Lookup(name) != nil, "expected flag %q to be registered", name)
	}
}

func TestGetCmdBaseResolvesConfigFromFlags(t *testing.T) {
	helper := NewHelper("1.2.3")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	helper.AddFlags(flags)
	assert.NilError(t, flags.Parse([]string{"--cache-root=/tmp/root-a", "--quiet"}))

	base, err := helper.GetCmdBase(flags)
	assert.NilError(t, err)
	assert.Assert(t, base.UI != nil)
	assert.Assert(t, base.Logger != nil)
	assert.DeepEqual(t, base.Config.CacheRoots, []string{"/tmp/root-a"})
	assert.Assert(t, base.Config.Quiet)
	assert.Equal(t, base.Config.Version, "1.2.3")
}

func TestCleanupRunsEveryRegisteredCloserEvenWhenOneErrors(t *testing.T) {
	helper := NewHelper("0.0.0-test")
	a := &countingCloser{}
	b := &countingCloser{err: errors.New("boom")}
	c := &countingCloser{}
	helper.RegisterCleanup(a)
	helper.RegisterCleanup(b)
	helper.RegisterCleanup(c)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	helper.AddFlags(flags)
	helper.Cleanup(flags)

	assert.Equal(t, a.closed, 1)
	assert.Equal(t, b.closed, 1)
	assert.Equal(t, c.closed, 1)
}
