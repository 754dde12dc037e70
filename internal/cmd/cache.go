package cmd

import (
	"github.com/spf13/cobra"

	"github.com/artifex-pm/artifexctl/internal/cacheindex"
	"github.com/artifex-pm/artifexctl/internal/cacheroot"
	"github.com/artifex-pm/artifexctl/internal/cachescan"
	"github.com/artifex-pm/artifexctl/internal/cmdutil"
	"github.com/artifex-pm/artifexctl/internal/config"
	"github.com/artifex-pm/artifexctl/internal/multicache"
)

func newCacheCmd(helper *cmdutil.Helper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain configured cache roots",
	}
	cmd.AddCommand(newCacheStatusCmd(helper))
	cmd.AddCommand(newCacheSweepCmd(helper))
	return cmd
}

// buildMultiCache interns every configured cache root and wraps each in a
// CacheIndex, in configured order (spec §4.E).
func buildMultiCache(cfg *config.Config) (*multicache.MultiCache, error) {
	scanner := cachescan.New(cfg.TarballExt, cfg.MagicFile)

	indexes := make([]*cacheindex.Index, 0, len(cfg.CacheRoots))
	for _, path := range cfg.CacheRoots {
		root, err := cacheroot.Get(path)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, cacheindex.New(root, scanner, nil))
	}
	return multicache.New(indexes), nil
}
