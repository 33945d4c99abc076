// Package reconcile pushes edits made to the patch corpus itself back onto
// the source tree. Given a commit or range in the fork repository, it works
// out which corpus entries changed, resets each affected target to a
// baseline, and reapplies the surviving patches.
package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forkline/forkline/internal/apply"
	"github.com/forkline/forkline/internal/gitx"
)

// ChangeType classifies how a corpus entry changed in fork history.
type ChangeType int

const (
	Modified ChangeType = iota
	Added
	Deleted
	Renamed
	Copied
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	case Copied:
		return "copied"
	default:
		return "modified"
	}
}

// typeFor maps a git name-status letter. Anything unrecognized is treated
// as a modification, the safest reconciliation.
func typeFor(status byte) ChangeType {
	switch status {
	case 'A':
		return Added
	case 'D':
		return Deleted
	case 'R':
		return Renamed
	case 'C':
		return Copied
	default:
		return Modified
	}
}

// PatchChange is one corpus entry that changed, with the source-tree file
// it governs.
type PatchChange struct {
	TargetPath    string // source-tree path, also the corpus-relative path
	OldTargetPath string // pre-rename target, empty otherwise
	Type          ChangeType
}

// Plan is the set of reconciliations implied by a fork-repo revision.
type Plan struct {
	Changes []PatchChange
}

// Empty reports whether there is nothing to do.
func (p *Plan) Empty() bool { return len(p.Changes) == 0 }

// Summary renders the plan grouped by change type, for the confirmation
// prompt shown before anything is touched.
func (p *Plan) Summary() string {
	groups := make(map[ChangeType][]string)
	for _, c := range p.Changes {
		groups[c.Type] = append(groups[c.Type], c.TargetPath)
	}
	var b strings.Builder
	for _, t := range []ChangeType{Added, Modified, Renamed, Copied, Deleted} {
		paths := groups[t]
		if len(paths) == 0 {
			continue
		}
		sort.Strings(paths)
		fmt.Fprintf(&b, "%s (%d):\n", t, len(paths))
		for _, p := range paths {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Engine computes and executes reconciliation plans.
type Engine struct {
	ForkDir string // repository holding the corpus
	SrcDir  string
	Prefix  string // corpus directory prefix inside the fork repository, with trailing slash
	Applier *apply.Applier
	// Baseline is the source-repo ref targets are reset to before
	// reapplying. Execute requires it: reconciliation without a known
	// upstream state would reapply patches onto drifted content.
	Baseline string
}

// ComputeCommit builds the plan for a single fork-repo commit.
func (e *Engine) ComputeCommit(ref string) (*Plan, error) {
	if !gitx.CommitExists(e.ForkDir, ref) {
		return nil, fmt.Errorf("commit %s not found in %s", ref, e.ForkDir)
	}
	entries, err := gitx.CommitStatus(e.ForkDir, ref)
	if err != nil {
		return nil, err
	}
	return e.plan(entries), nil
}

// ComputeRange builds the plan for a fork-repo commit range.
func (e *Engine) ComputeRange(start, end string) (*Plan, error) {
	for _, ref := range []string{start, end} {
		if !gitx.CommitExists(e.ForkDir, ref) {
			return nil, fmt.Errorf("commit %s not found in %s", ref, e.ForkDir)
		}
	}
	entries, err := gitx.RangeStatus(e.ForkDir, start, end)
	if err != nil {
		return nil, err
	}
	return e.plan(entries), nil
}

// plan keeps only entries inside the corpus directory and rewrites their
// repository paths into target paths. Changes outside the corpus, including
// the series and feature index files, are none of our business.
func (e *Engine) plan(entries []gitx.StatusEntry) *Plan {
	p := &Plan{}
	for _, ent := range entries {
		target, ok := e.strip(ent.Path)
		if !ok {
			continue
		}
		c := PatchChange{TargetPath: target, Type: typeFor(ent.Status)}
		if old, ok := e.strip(ent.OldPath); ok && old != target {
			c.OldTargetPath = old
		}
		p.Changes = append(p.Changes, c)
	}
	return p
}

func (e *Engine) strip(repoPath string) (string, bool) {
	if repoPath == "" || !strings.HasPrefix(repoPath, e.Prefix) {
		return "", false
	}
	return strings.TrimPrefix(repoPath, e.Prefix), true
}

// Result tallies an executed plan.
type Result struct {
	Applied   []string // reset then reapplied
	ResetOnly []string // reset with no patch left to apply
	Failed    []string
}

func (r *Result) String() string {
	return fmt.Sprintf("%d reapplied, %d reset only, %d failed",
		len(r.Applied), len(r.ResetOnly), len(r.Failed))
}

// Execute carries out the plan. Every affected target is first reset to
// the baseline; targets whose patch still exists are then reapplied, while
// a deleted patch leaves its target at the baseline. With dryRun set
// nothing is touched and every change lands in the would-be buckets.
func (e *Engine) Execute(plan *Plan, dryRun bool) (*Result, error) {
	if !dryRun && e.Baseline == "" {
		return nil, fmt.Errorf("no baseline ref set")
	}
	res := &Result{}
	for _, c := range plan.Changes {
		reapply := c.Type != Deleted
		if dryRun {
			if reapply {
				res.Applied = append(res.Applied, c.TargetPath)
			} else {
				res.ResetOnly = append(res.ResetOnly, c.TargetPath)
			}
			continue
		}

		if c.OldTargetPath != "" {
			if err := e.reset(c.OldTargetPath); err != nil {
				res.Failed = append(res.Failed, c.OldTargetPath)
				continue
			}
		}
		if err := e.reset(c.TargetPath); err != nil {
			res.Failed = append(res.Failed, c.TargetPath)
			continue
		}
		if !reapply {
			res.ResetOnly = append(res.ResetOnly, c.TargetPath)
			continue
		}

		outcome, err := e.Applier.ApplyOne(c.TargetPath)
		if err != nil {
			res.Failed = append(res.Failed, c.TargetPath)
			if err == apply.ErrAborted {
				return res, err
			}
			continue
		}
		switch outcome {
		case apply.Applied:
			res.Applied = append(res.Applied, c.TargetPath)
		case apply.Skipped:
			res.ResetOnly = append(res.ResetOnly, c.TargetPath)
		default:
			res.Failed = append(res.Failed, c.TargetPath)
		}
	}
	return res, nil
}

// reset restores a target to the baseline, or removes it when the baseline
// does not carry the file.
func (e *Engine) reset(target string) error {
	if gitx.FileExistsAt(e.SrcDir, e.Baseline, target) {
		return gitx.CheckoutFileAt(e.SrcDir, e.Baseline, target)
	}
	abs := filepath.Join(e.SrcDir, filepath.FromSlash(target))
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove %s: %w", target, err)
	}
	return nil
}
