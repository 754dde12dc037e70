package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/artifex-pm/artifexctl/internal/cmdutil"
	"github.com/artifex-pm/artifexctl/internal/pipeline"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
	"github.com/artifex-pm/artifexctl/internal/planner"
	"github.com/artifex-pm/artifexctl/internal/transport"
)

func newFetchCmd(helper *cmdutil.Helper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url> [url...]",
		Short: "Plan and execute fetch/extract for one or more package refs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runFetch(helper, c.Flags(), args)
		},
	}
	return cmd
}

func runFetch(helper *cmdutil.Helper, flags *pflag.FlagSet, args []string) error {
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

	refs := make([]pkgref.Ref, 0, len(args))
	for _, raw := range args {
		ref, err := parseRefArg(raw, cfg.TarballExt)
		if err != nil {
			base.LogError("%v", err)
			return err
		}
		refs = append(refs, ref)
	}

	client := transport.NewClient(cfg.Logger, 0)
	p := planner.New(multi, client, cfg.TarballExt)
	exec := pipeline.New(p, !cfg.Quiet, cfg.DryRun)

	if err := exec.Prepare(refs); err != nil {
		base.LogError("%v", err)
		return err
	}

	if cfg.DryRun {
		return printDryRun(refs)
	}

	if err := exec.Execute(context.Background()); err != nil {
		base.LogError("%v", err)
		return err
	}
	base.LogInfo(fmt.Sprintf("fetched/extracted %d ref(s)", len(refs)))
	return nil
}

// parseRefArg accepts a tarball URL, optionally carrying "md5" and "size"
// query parameters (e.g. "https://host/channel/subdir/pkg-1.0-0.tar.bz2?md5=...&size=...").
func parseRefArg(raw string, tarballExt string) (pkgref.Ref, error) {
	ref, err := pkgref.ParseRef(raw, tarballExt)
	if err != nil {
		return pkgref.Ref{}, err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ref, nil
	}
	q := u.Query()
	if md5 := q.Get("md5"); md5 != "" {
		ref.MD5 = md5
	}
	if size := q.Get("size"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			ref.Size = n
		}
	}
	return ref, nil
}

func printDryRun(refs []pkgref.Ref) error {
	type outcome struct {
		Ref     string `json:"ref"`
		WouldDo string `json:"would_do"`
	}
	var out []outcome
	for _, ref := range refs {
		out = append(out, outcome{Ref: ref.DistStr(), WouldDo: "planned"})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
