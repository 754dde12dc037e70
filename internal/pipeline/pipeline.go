// Package pipeline implements PipelineExecutor (spec §4.H): the single
// public driver that runs planned actions sequentially with combined
// progress reporting, error aggregation, and signal handling.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"

	"github.com/artifex-pm/artifexctl/internal/action"
	"github.com/artifex-pm/artifexctl/internal/cerrors"
	"github.com/artifex-pm/artifexctl/internal/pkgref"
	"github.com/artifex-pm/artifexctl/internal/planner"
	"github.com/artifex-pm/artifexctl/internal/signals"
)

// refPlan is one entry in the executor's ordered ref -> (fetch?, extract?)
// mapping (spec §4.H).
type refPlan struct {
	ref  pkgref.Ref
	plan planner.Plan
}

// Executor drives the planner across a batch of refs. Visible controls
// progress-bar rendering (quiet/json modes suppress it, per spec §6's
// "verbosity/quiet/json flags that toggle progress visibility").
type Executor struct {
	Planner *planner.Planner
	Visible bool
	DryRun  bool

	prepared []refPlan
}

// New builds an Executor bound to a Planner.
func New(p *planner.Planner, visible bool, dryRun bool) *Executor {
	return &Executor{Planner: p, Visible: visible, DryRun: dryRun}
}

// Prepare runs the planner for every ref, deduping by DistStr and
// preserving first-seen order (supplemented feature, SPEC_FULL §4.3).
// Idempotent: calling it again replaces the prepared mapping.
func (e *Executor) Prepare(refs []pkgref.Ref) error {
	seen := map[string]bool{}
	var out []refPlan
	for _, ref := range refs {
		key := ref.DistStr()
		if seen[key] {
			continue
		}
		seen[key] = true

		plan, err := e.Planner.Plan(ref)
		if err != nil {
			return err
		}
		out = append(out, refPlan{ref: ref, plan: plan})
	}
	e.prepared = out
	return nil
}

// Execute is the single public driver of spec §4.H: for each ref in
// insertion order, it runs fetch then extract with a shared progress
// bar, reversing both on failure (extract first, then fetch) and
// continuing to the next ref; on success both actions are cleaned up.
// A signal delivered during Execute reverses the in-flight action and
// stops the batch; partially completed refs from earlier in the batch
// are not reversed (spec §5 Cancellation).
func (e *Executor) Execute(ctx context.Context) error {
	if e.DryRun {
		return fmt.Errorf("pipeline: Execute called with dry-run enabled")
	}

	watcher := signals.NewWatcher()
	defer watcher.Close()

	var batchErr *multierror.Error
	for _, rp := range e.prepared {
		select {
		case <-watcher.Done():
			return batchErr.ErrorOrNil()
		default:
		}

		if err := e.runOne(ctx, watcher, rp); err != nil {
			batchErr = multierror.Append(batchErr, err)
		}

		if watcher.SignaledDuring() {
			// Cancellation stops the batch; earlier-committed refs stand.
			return cerrors.Wrap(cerrors.PartialFailureBatch, "", batchErr.ErrorOrNil(),
				"batch stopped by signal")
		}
	}

	if err := batchErr.ErrorOrNil(); err != nil {
		return cerrors.Wrap(cerrors.PartialFailureBatch, "", err, "one or more refs failed")
	}
	return nil
}

func (e *Executor) runOne(ctx context.Context, watcher *signals.Watcher, rp refPlan) (retErr error) {
	if rp.plan.Fetch == nil && rp.plan.Extract == nil {
		return nil // R0: no-op
	}

	bar := e.newBar(rp.ref)
	defer func() { _ = bar.Close() }()

	fetchWeight, extractWeight := 0.75, 0.25
	if rp.plan.Fetch == nil || isFileURL(rp.plan.Fetch) {
		fetchWeight, extractWeight = 0.0, 1.0
	}

	var ranFetch, ranExtract bool
	defer func() {
		if retErr == nil {
			return
		}
		if ranExtract && rp.plan.Extract != nil {
			_ = rp.plan.Extract.Reverse()
		}
		if ranFetch && rp.plan.Fetch != nil {
			_ = rp.plan.Fetch.Reverse()
		}
	}()

	watcher.SetCurrentReverser(func() {
		if ranExtract && rp.plan.Extract != nil {
			_ = rp.plan.Extract.Reverse()
		}
		if ranFetch && rp.plan.Fetch != nil {
			_ = rp.plan.Fetch.Reverse()
		}
	})
	defer watcher.SetCurrentReverser(nil)

	if rp.plan.Fetch != nil {
		if err := rp.plan.Fetch.Verify(); err != nil {
			return err
		}
		ranFetch = true
		if err := rp.plan.Fetch.Execute(ctx, scaledProgress(bar, 0.0, fetchWeight)); err != nil {
			return err
		}
	}

	if rp.plan.Extract != nil {
		if err := rp.plan.Extract.Verify(); err != nil {
			return err
		}
		ranExtract = true
		if err := rp.plan.Extract.Execute(ctx, scaledProgress(bar, fetchWeight, extractWeight)); err != nil {
			return err
		}
	}

	if rp.plan.Fetch != nil {
		if err := rp.plan.Fetch.Cleanup(); err != nil {
			return err
		}
	}
	if rp.plan.Extract != nil {
		if err := rp.plan.Extract.Cleanup(); err != nil {
			return err
		}
	}
	_ = bar.Finish()
	return nil
}

func isFileURL(f *action.FetchAction) bool {
	return len(f.URL) >= 7 && f.URL[:7] == "file://"
}

func (e *Executor) newBar(ref pkgref.Ref) *progressbar.ProgressBar {
	label := fmt.Sprintf("%s %s", ref.Name, ref.Version)
	if !e.Visible {
		return progressbar.NewOptions(100, progressbar.OptionSetWriter(os.Stderr), progressbar.OptionSetVisibility(false))
	}
	return progressbar.NewOptions(100,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func scaledProgress(bar *progressbar.ProgressBar, offset, weight float64) action.ProgressFunc {
	return func(fraction float64) {
		_ = bar.Set(int((offset + fraction*weight) * 100))
	}
}
