// Package cmd holds the root cobra command for artifexctl.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/artifex-pm/artifexctl/internal/cmdutil"
	"github.com/artifex-pm/artifexctl/internal/signals"
	"github.com/artifex-pm/artifexctl/internal/util"
)

// RunWithArgs runs artifexctl with the specified arguments. The arguments
// should not include the binary name itself.
func RunWithArgs(args []string, version string) int {
	signalWatcher := signals.NewWatcher()
	helper := cmdutil.NewHelper(version)
	root := getCmd(helper)
	resolvedArgs := resolveArgs(root, args)
	defer helper.Cleanup(root.Flags())
	root.SetArgs(resolvedArgs)

	doneCh := make(chan struct{})
	var execErr error
	go func() {
		execErr = root.Execute()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		signalWatcher.Close()
		var exitErr *util.ExitCodeError
		if errors.As(execErr, &exitErr) {
			return exitErr.ExitCode
		}
		if execErr != nil {
			return 1
		}
		return 0
	case <-signalWatcher.Done():
		// A signal arrived; the in-flight action's reverser already ran.
		return 1
	}
}

const defaultCmd = "fetch"

// resolveArgs prepends the default subcommand when none was given, mirroring
// the teacher's resolveArgs but without a daemon/run split to default into.
func resolveArgs(root *cobra.Command, args []string) []string {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" || arg == "--version" || arg == "completion" {
			return args
		}
	}
	found, _, err := root.Traverse(args)
	if err != nil {
		return args
	} else if found.Name() == root.Name() {
		return append([]string{defaultCmd}, args...)
	}
	return args
}

func getCmd(helper *cmdutil.Helper) *cobra.Command {
	root := &cobra.Command{
		Use:              "artifexctl",
		Short:            "Content-addressed package cache fetch/extract pipeline",
		Long:             "Content-addressed package cache fetch/extract pipeline.\n\nSource: " + util.SourceCodeRepo + "\nIssues: " + util.SourceCodeIssues,
		TraverseChildren: true,
		Version:          helper.Version,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	flags := root.PersistentFlags()
	helper.AddFlags(flags)

	root.AddCommand(newFetchCmd(helper))
	root.AddCommand(newCacheCmd(helper))
	return root
}
