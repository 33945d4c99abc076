package project

import (
	"fmt"
	"os"

	"github.com/forkline/forkline/internal/corpus"
	"github.com/forkline/forkline/internal/feature"
	"github.com/forkline/forkline/internal/gitx"
)

// Issue is a health-check finding.
type Issue struct {
	Severity string // "warning" or "error"
	Message  string
}

// CheckHealth verifies the workspace structure and the consistency of the
// corpus, series file, and feature index. Warnings do not block commands;
// errors generally do.
func (p *Project) CheckHealth() []Issue {
	var issues []Issue

	if err := gitx.Available(); err != nil {
		issues = append(issues, Issue{"error", err.Error()})
	}

	src := p.SourceDir()
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		issues = append(issues, Issue{"error", fmt.Sprintf("upstream source tree not found: %s", src)})
	} else if !gitx.IsRepository(src) {
		issues = append(issues, Issue{"error", fmt.Sprintf("upstream source tree is not a git repository: %s", src)})
	}

	if _, err := os.Stat(p.PatchesDir()); err != nil {
		issues = append(issues, Issue{"error", fmt.Sprintf("patch corpus directory missing: %s", p.PatchesDir())})
		return issues
	}

	c := corpus.New(p.PatchesDir())
	files, err := c.List()
	if err != nil {
		issues = append(issues, Issue{"error", err.Error()})
		return issues
	}
	inCorpus := make(map[string]bool, len(files))
	for _, f := range files {
		inCorpus[f] = true
	}

	entries, err := corpus.LoadSeries(p.SeriesPath())
	if err != nil {
		issues = append(issues, Issue{"error", err.Error()})
	} else {
		inSeries := make(map[string]bool, len(entries))
		for _, e := range entries {
			inSeries[e.Path] = true
			if !inCorpus[e.Path] {
				issues = append(issues, Issue{"warning", fmt.Sprintf("series lists missing patch: %s", e.Path)})
			}
		}
		for _, f := range files {
			if !inSeries[f] {
				issues = append(issues, Issue{"warning", fmt.Sprintf("patch not in series (will never apply): %s", f)})
			}
		}
	}

	reg, err := feature.Load(p.FeaturesPath())
	if err != nil {
		issues = append(issues, Issue{"error", err.Error()})
		return issues
	}
	for _, name := range reg.Names() {
		for _, f := range reg.Features[name].Files {
			if !inCorpus[f] {
				issues = append(issues, Issue{"warning", fmt.Sprintf("feature %q lists missing patch: %s", name, f)})
			}
		}
	}
	if n := len(reg.Unclassified(files)); n > 0 {
		issues = append(issues, Issue{"warning", fmt.Sprintf("%d unclassified patch file(s) — run 'forkline feature classify'", n)})
	}

	return issues
}
