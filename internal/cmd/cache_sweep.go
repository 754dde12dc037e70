package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/artifex-pm/artifexctl/internal/cmdutil"
)

func newCacheSweepCmd(helper *cmdutil.Helper) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove orphaned half-extracted entries left by a previous crash",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runCacheSweep(helper, c.Flags())
		},
	}
}

// runCacheSweep implements the supplemented orphan-sweep verb (SPEC_FULL
// §4.2). --dry-run (a flag already shared with fetch) reports without
// deleting.
func runCacheSweep(helper *cmdutil.Helper, flags *pflag.FlagSet) error {
	base, err := helper.GetCmdBase(flags)
	if err != nil {
		return err
	}
	cfg := base.Config

	multi, err := buildMultiCache(cfg)
	if err != nil {
		base.LogError("%v", err)
		return err
	}

	var removedTotal int
	for _, idx := range multi.WritableCaches() {
		removed, err := idx.Sweep(cfg.DryRun)
		if err != nil {
			base.LogError("%v", err)
			return err
		}
		for _, path := range removed {
			fmt.Fprintln(os.Stdout, path)
		}
		removedTotal += len(removed)
	}
	verb := "removed"
	if cfg.DryRun {
		verb = "would remove"
	}
	base.LogInfo(fmt.Sprintf("%s %d orphaned entries", verb, removedTotal))
	return nil
}
