package feature

import (
	"context"
	"errors"
	"fmt"
)

// ErrInterrupted is returned when a classification session is cut short.
// Progress up to that point has already been saved.
var ErrInterrupted = errors.New("classification interrupted")

// Assignment is one classification decision for a single corpus file.
type Assignment struct {
	Feature     string // empty means skip this file
	Description string // used only when the feature is new
}

// Picker decides where an unclassified file belongs. It receives the file,
// the current feature names, and the session position. Returning an error
// aborts the session; returning an empty Feature skips the file.
type Picker func(file string, features []string, index, total int) (Assignment, error)

// ClassifyResult summarizes a classification session.
type ClassifyResult struct {
	Assigned  int
	Skipped   int
	Remaining int
}

// Classify walks the unclassified files one at a time, consulting the
// picker for each. The registry is saved after every assignment so an
// interrupt never loses accepted decisions. Skipped files stay
// unclassified and come back on the next run.
func (r *Registry) Classify(ctx context.Context, path string, corpusFiles []string, pick Picker) (ClassifyResult, error) {
	pending := r.Unclassified(corpusFiles)
	res := ClassifyResult{Remaining: len(pending)}

	for i, file := range pending {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%w: %d files remaining", ErrInterrupted, res.Remaining)
		}

		a, err := pick(file, r.Names(), i, len(pending))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return res, fmt.Errorf("%w: %d files remaining", ErrInterrupted, res.Remaining)
			}
			return res, err
		}
		if a.Feature == "" {
			res.Skipped++
			res.Remaining--
			continue
		}

		name := Slugify(a.Feature)
		if name == "" {
			res.Skipped++
			res.Remaining--
			continue
		}
		r.AddFiles(name, a.Description, "", []string{file})
		if err := r.Save(path); err != nil {
			return res, err
		}
		res.Assigned++
		res.Remaining--
	}
	return res, nil
}
