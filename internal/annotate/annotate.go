// Package annotate turns an applied patch series into per-feature commits
// in the source tree, so upstream history gains one readable commit per
// feature instead of a single undifferentiated wall of changes.
package annotate

import (
	"errors"
	"fmt"

	"github.com/forkline/forkline/internal/feature"
	"github.com/forkline/forkline/internal/gitx"
)

// Engine groups modified source-tree files by feature and commits each group.
type Engine struct {
	SrcDir string // upstream source tree the patches were applied to
	// Progress, if set, is called before each feature is considered.
	Progress func(name string, index, total int)
}

// Result summarizes an annotation run.
type Result struct {
	Committed []string // feature names that produced a commit
	Clean     []string // feature names with nothing staged
}

// Run walks the features in name order. For each, every target file of the
// feature with local modifications in the source tree is staged and
// committed under "name: description". Features whose files are all clean
// are skipped, not failed. When only is non-empty, just that feature is
// processed.
func (e *Engine) Run(reg *feature.Registry, only string) (*Result, error) {
	names := reg.Names()
	if only != "" {
		if _, ok := reg.Get(only); !ok {
			return nil, fmt.Errorf("unknown feature %q", only)
		}
		names = []string{only}
	}

	res := &Result{}
	for i, name := range names {
		if e.Progress != nil {
			e.Progress(name, i+1, len(names))
		}
		f, _ := reg.Get(name)

		staged := 0
		for _, file := range f.Files {
			dirty, err := gitx.FileModified(e.SrcDir, file)
			if err != nil {
				return res, fmt.Errorf("cannot check %s: %w", file, err)
			}
			if !dirty {
				continue
			}
			if err := gitx.Add(e.SrcDir, file); err != nil {
				return res, err
			}
			staged++
		}
		if staged == 0 {
			res.Clean = append(res.Clean, name)
			continue
		}

		msg := name
		if f.Description != "" {
			msg = fmt.Sprintf("%s: %s", name, f.Description)
		}
		if err := gitx.CommitStaged(e.SrcDir, msg); err != nil {
			if errors.Is(err, gitx.ErrNothingToCommit) {
				res.Clean = append(res.Clean, name)
				continue
			}
			return res, err
		}
		res.Committed = append(res.Committed, name)
	}
	return res, nil
}
