package apply

import (
	"errors"
	"fmt"
	"sort"

	"github.com/forkline/forkline/internal/corpus"
	"github.com/forkline/forkline/internal/feature"
)

// Summary is the aggregate result of a batch apply run.
type Summary struct {
	Applied []string
	Skipped []string
	Failed  []string
	Missing []string // series or feature entries with no corpus file
}

// OK reports whether every present entry applied cleanly.
func (s Summary) OK() bool {
	return len(s.Failed) == 0
}

func (s Summary) String() string {
	return fmt.Sprintf("%d applied, %d skipped, %d failed, %d missing",
		len(s.Applied), len(s.Skipped), len(s.Failed), len(s.Missing))
}

// Engine runs batch applications over the series file or the feature index.
type Engine struct {
	Applier *Applier
	// Progress, if set, is called before each entry is attempted.
	Progress func(relPath string, index, total int)
}

// ApplyAll applies every series entry in file order. Entries that name a
// missing corpus file are recorded and skipped; a resolver Abort stops the
// run immediately with the partial summary.
func (e *Engine) ApplyAll(seriesPath string) (Summary, error) {
	entries, err := corpus.LoadSeries(seriesPath)
	if err != nil {
		return Summary{}, err
	}
	paths := make([]string, 0, len(entries))
	for _, ent := range entries {
		paths = append(paths, ent.Path)
	}
	return e.applyList(paths)
}

// ApplyFeature applies one feature's files in sorted order.
func (e *Engine) ApplyFeature(reg *feature.Registry, name string) (Summary, error) {
	f, ok := reg.Get(name)
	if !ok {
		return Summary{}, fmt.Errorf("unknown feature %q", name)
	}
	paths := append([]string(nil), f.Files...)
	sort.Strings(paths)
	return e.applyList(paths)
}

func (e *Engine) applyList(paths []string) (Summary, error) {
	var sum Summary
	for i, p := range paths {
		if e.Progress != nil {
			e.Progress(p, i+1, len(paths))
		}
		if !e.Applier.Corpus.Exists(p) {
			sum.Missing = append(sum.Missing, p)
			continue
		}
		outcome, err := e.Applier.ApplyOne(p)
		if err != nil {
			if errors.Is(err, ErrAborted) {
				sum.Failed = append(sum.Failed, p)
				return sum, err
			}
			sum.Failed = append(sum.Failed, p)
			continue
		}
		switch outcome {
		case Applied:
			sum.Applied = append(sum.Applied, p)
		case Skipped:
			sum.Skipped = append(sum.Skipped, p)
		case Failed:
			sum.Failed = append(sum.Failed, p)
		}
	}
	return sum, nil
}
