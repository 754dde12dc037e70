package cmd

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/artifex-pm/artifexctl/internal/cmdutil"
)

func TestResolveArgsPrependsFetchWhenNoSubcommandGiven(t *testing.T) {
	root := getCmd(cmdutil.NewHelper("0.0.0-test"))
	got := resolveArgs(root, []string{"https://host/main/linux-64/numpy-1.0-0.tar.bz2"})
	assert.DeepEqual(t, got, []string{"fetch", "https://host/main/linux-64/numpy-1.0-0.tar.bz2"})
}

func TestResolveArgsLeavesKnownSubcommandAlone(t *testing.T) {
	root := getCmd(cmdutil.NewHelper("0.0.0-test"))
	got := resolveArgs(root, []string{"cache", "status"})
	assert.DeepEqual(t, got, []string{"cache", "status"})
}

func TestResolveArgsLeavesHelpAndVersionFlagsAlone(t *testing.T) {
	root := getCmd(cmdutil.NewHelper("0.0.0-test"))
	for _, args := range [][]string{{"--help"}, {"-h"}, {"--version"}, {"completion"}} {
		got := resolveArgs(root, args)
		assert.DeepEqual(t, got, args)
	}
}

func TestGetCmdRegistersFetchAndCacheSubcommands(t *testing.T) {
	root := getCmd(cmdutil.NewHelper("0.0.0-test"))
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.Assert(t, names["fetch"])
	assert.Assert(t, names["cache"])
}
