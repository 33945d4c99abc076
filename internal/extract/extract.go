// Package extract pulls changes out of the source tree's git history and
// lands them in the patch corpus as per-file units, keeping the series file
// in step with what was written.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forkline/forkline/internal/corpus"
	"github.com/forkline/forkline/internal/diffparse"
	"github.com/forkline/forkline/internal/gitx"
)

// ErrCanceled is returned when the caller declines an overwrite.
var ErrCanceled = errors.New("extraction canceled")

// Engine extracts commits or commit ranges into the corpus.
type Engine struct {
	SrcDir        string
	Corpus        *corpus.Corpus
	SeriesPath    string
	IncludeBinary bool
	Force         bool

	// Confirm is asked once per batch when existing corpus entries would
	// be overwritten. Nil with Force unset means overwrites are refused.
	Confirm func(existing []string) (bool, error)
}

// CommitResult reports a single-commit extraction.
type CommitResult struct {
	Commit        *gitx.Commit
	Written       []string
	SkippedBinary int
	SeriesAdded   int
}

// Commit extracts one commit. The diff is taken against the commit's
// parent, or against base when given; a custom base is restricted to the
// files the commit itself touched so unrelated drift between base and the
// commit does not leak in.
func (e *Engine) Commit(ref, base string) (*CommitResult, error) {
	if !gitx.CommitExists(e.SrcDir, ref) {
		return nil, fmt.Errorf("commit %s not found in %s", ref, e.SrcDir)
	}
	info, err := gitx.Info(e.SrcDir, ref)
	if err != nil {
		return nil, err
	}

	if base != "" && !gitx.CommitExists(e.SrcDir, base) {
		return nil, fmt.Errorf("base commit %s not found in %s", base, e.SrcDir)
	}
	diffText, err := e.commitDiff(ref, base)
	if err != nil {
		return nil, err
	}

	written, skipped, err := e.writeDiff(diffText, nil)
	if err != nil {
		return nil, err
	}
	added, err := corpus.AppendSeries(e.SeriesPath, written)
	if err != nil {
		return nil, err
	}
	return &CommitResult{Commit: info, Written: written, SkippedBinary: skipped, SeriesAdded: added}, nil
}

// commitDiff diffs one commit against its parent, or against base when
// given; a custom base is restricted to the files the commit itself
// touched so unrelated drift between base and the commit does not leak in.
func (e *Engine) commitDiff(ref, base string) (string, error) {
	if base == "" {
		return gitx.CommitDiff(e.SrcDir, ref)
	}
	files, err := gitx.ChangedFiles(e.SrcDir, ref)
	if err != nil {
		return "", err
	}
	return gitx.RangeDiff(e.SrcDir, base, ref, files...)
}

// CommitFailure records one commit that could not be extracted during an
// individual-mode range run.
type CommitFailure struct {
	Ref string
	Err error
}

// RangeResult reports a range extraction in either mode.
type RangeResult struct {
	Commits       int
	Written       []string
	SkippedBinary int
	SeriesAdded   int
	Failures      []CommitFailure
}

// FailureReport renders the failed commits, capped at the first five.
func (r *RangeResult) FailureReport() string {
	if len(r.Failures) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d commit(s) failed to extract:\n", len(r.Failures))
	for i, f := range r.Failures {
		if i == 5 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(r.Failures)-5)
			break
		}
		fmt.Fprintf(&b, "  %s: %v\n", f.Ref, f.Err)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Range extracts start..end. In squash mode the whole range collapses into
// one cumulative diff per file. In individual mode each commit in the range
// is extracted on its own, oldest first, with per-commit failures collected
// instead of stopping the run; a later commit's patch for a path replaces
// an earlier one.
func (e *Engine) Range(start, end, base string, squash bool) (*RangeResult, error) {
	for _, ref := range []string{start, end} {
		if !gitx.CommitExists(e.SrcDir, ref) {
			return nil, fmt.Errorf("commit %s not found in %s", ref, e.SrcDir)
		}
	}
	if squash {
		return e.rangeSquash(start, end, base)
	}
	return e.rangeIndividual(start, end, base)
}

func (e *Engine) rangeSquash(start, end, base string) (*RangeResult, error) {
	var diffText string
	var err error
	if base == "" {
		diffText, err = gitx.RangeDiff(e.SrcDir, start, end)
	} else {
		if !gitx.CommitExists(e.SrcDir, base) {
			return nil, fmt.Errorf("base commit %s not found in %s", base, e.SrcDir)
		}
		var files []string
		files, err = gitx.RangeFiles(e.SrcDir, start, end)
		if err != nil {
			return nil, err
		}
		diffText, err = gitx.RangeDiff(e.SrcDir, base, end, files...)
	}
	if err != nil {
		return nil, err
	}

	count, err := gitx.RevListCount(e.SrcDir, start, end)
	if err != nil {
		return nil, err
	}
	written, skipped, err := e.writeDiff(diffText, nil)
	if err != nil {
		return nil, err
	}
	added, err := corpus.AppendSeries(e.SeriesPath, written)
	if err != nil {
		return nil, err
	}
	return &RangeResult{Commits: count, Written: written, SkippedBinary: skipped, SeriesAdded: added}, nil
}

func (e *Engine) rangeIndividual(start, end, base string) (*RangeResult, error) {
	if base != "" && !gitx.CommitExists(e.SrcDir, base) {
		return nil, fmt.Errorf("base commit %s not found in %s", base, e.SrcDir)
	}
	commits, err := gitx.RevListReverse(e.SrcDir, start, end)
	if err != nil {
		return nil, err
	}

	res := &RangeResult{Commits: len(commits)}
	seen := make(map[string]bool)
	for _, ref := range commits {
		diffText, err := e.commitDiff(ref, base)
		if err != nil {
			res.Failures = append(res.Failures, CommitFailure{Ref: ref, Err: err})
			continue
		}
		written, skipped, err := e.writeDiff(diffText, seen)
		if err != nil {
			if errors.Is(err, ErrCanceled) {
				return nil, err
			}
			res.Failures = append(res.Failures, CommitFailure{Ref: ref, Err: err})
			continue
		}
		res.SkippedBinary += skipped
		// Keep first-seen order across commits even when a later commit
		// rewrites an earlier path.
		for _, p := range written {
			if !seen[p] {
				seen[p] = true
				res.Written = append(res.Written, p)
			}
		}
	}

	added, err := corpus.AppendSeries(e.SeriesPath, res.Written)
	if err != nil {
		return nil, err
	}
	res.SeriesAdded = added
	return res, nil
}

// writeDiff parses a raw diff and lands each unit in the corpus, asking
// once about any pre-existing entries the batch would overwrite. Paths in
// ownedPaths were written earlier in the same run and may be rewritten
// freely; later commits in an individual-mode range supersede earlier ones.
func (e *Engine) writeDiff(diffText string, ownedPaths map[string]bool) ([]string, int, error) {
	parsed, err := diffparse.Parse(diffText, e.IncludeBinary)
	if err != nil {
		return nil, 0, err
	}

	if !e.Force {
		var existing []string
		for _, u := range parsed.Units {
			if ownedPaths[u.Path] {
				continue
			}
			if e.Corpus.Exists(u.Path) {
				existing = append(existing, u.Path)
			}
		}
		if len(existing) > 0 {
			if e.Confirm == nil {
				return nil, 0, fmt.Errorf("%w: %d corpus entries already exist", ErrCanceled, len(existing))
			}
			ok, err := e.Confirm(existing)
			if err != nil {
				return nil, 0, err
			}
			if !ok {
				return nil, 0, ErrCanceled
			}
		}
	}

	var written []string
	for _, u := range parsed.Units {
		if err := e.Corpus.WriteUnit(u, true); err != nil {
			return written, parsed.Skipped, err
		}
		written = append(written, u.Path)
	}
	return written, parsed.Skipped, nil
}
