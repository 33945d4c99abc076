// Package apply replays the patch corpus onto a source tree. Each corpus
// entry is either a unified diff handed to the external patch tool, a
// deletion marker, or a binary marker. Failures are resolved through an
// injected callback so batch runs and interactive runs share one engine.
package apply

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forkline/forkline/internal/corpus"
	"github.com/forkline/forkline/internal/gitx"
)

// Resolution is a caller decision for a patch that failed to apply.
type Resolution int

const (
	// Skip leaves the target untouched and moves on.
	Skip Resolution = iota
	// Retry re-runs the same patch, typically after a manual edit.
	Retry
	// Abort stops the whole run.
	Abort
	// Manual means the caller fixed the target by hand; the patch is
	// counted as applied without re-running the tool.
	Manual
)

// ErrAborted is returned when a resolver chooses Abort. Work completed
// before the abort stays on disk.
var ErrAborted = errors.New("apply aborted")

// Resolver is consulted when a patch fails. It receives the corpus-relative
// path, the 1-based attempt number, and the patch tool's output. A nil
// Resolver means non-interactive: every failure resolves to Skip and the
// file is recorded as failed.
type Resolver func(patchPath string, attempt int, output string) (Resolution, error)

// Applier applies individual corpus entries to a source tree.
type Applier struct {
	SrcDir    string
	Corpus    *corpus.Corpus
	PatchTool string // defaults to "patch"
	Resolver  Resolver
	// Baseline, when set, names a source-repo ref each target is reset to
	// before its patch is applied, so patches land on pristine upstream
	// content instead of whatever drift the working tree has accumulated.
	Baseline string
}

// Outcome reports what happened to a single corpus entry.
type Outcome int

const (
	Applied Outcome = iota
	Skipped
	Failed
)

// ApplyOne applies one corpus entry, driving the resolution loop until the
// entry is applied, skipped, or the run is aborted.
func (a *Applier) ApplyOne(relPath string) (Outcome, error) {
	kind, _, err := a.Corpus.ReadEntry(relPath)
	if err != nil {
		return Failed, err
	}

	switch kind {
	case corpus.EntryDeletion:
		if err := a.deleteTarget(relPath); err != nil {
			return Failed, err
		}
		return Applied, nil
	case corpus.EntryBinary:
		// Binary payloads are not stored in the corpus; the file has to
		// be brought over out of band.
		return Skipped, nil
	}

	if a.Baseline != "" {
		if err := a.resetTarget(relPath); err != nil {
			return Failed, err
		}
	}

	for attempt := 1; ; attempt++ {
		out, err := a.runPatch(relPath)
		if err == nil {
			return Applied, nil
		}

		if a.Resolver == nil {
			return Failed, nil
		}
		res, rerr := a.Resolver(relPath, attempt, out)
		if rerr != nil {
			return Failed, rerr
		}
		switch res {
		case Skip:
			return Skipped, nil
		case Retry:
			continue
		case Manual:
			return Applied, nil
		case Abort:
			return Failed, ErrAborted
		default:
			return Failed, fmt.Errorf("unknown resolution %d", res)
		}
	}
}

// runPatch invokes the external patch tool with the conventions the corpus
// is written against: strip one path component, ignore whitespace drift,
// never apply in reverse, and do not litter .orig backups.
func (a *Applier) runPatch(relPath string) (string, error) {
	patchFile, err := filepath.Abs(a.Corpus.PatchPath(relPath))
	if err != nil {
		return "", fmt.Errorf("cannot resolve patch path: %w", err)
	}
	tool := a.PatchTool
	if tool == "" {
		tool = "patch"
	}
	cmd := exec.Command(tool, "-p1", "-l", "-N", "--no-backup-if-mismatch",
		"-d", a.SrcDir, "-i", patchFile)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("%s failed for %s: %w", tool, relPath, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// resetTarget restores a target to the Baseline ref, or removes it when
// the baseline does not carry the file. The reset happens once per entry,
// before the first attempt, so a manual fix between retries survives.
func (a *Applier) resetTarget(relPath string) error {
	if gitx.FileExistsAt(a.SrcDir, a.Baseline, relPath) {
		if err := gitx.CheckoutFileAt(a.SrcDir, a.Baseline, relPath); err != nil {
			return fmt.Errorf("cannot reset %s to %s: %w", relPath, a.Baseline, err)
		}
		return nil
	}
	target := filepath.Join(a.SrcDir, filepath.FromSlash(relPath))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot reset %s to %s: %w", relPath, a.Baseline, err)
	}
	return nil
}

// deleteTarget removes the file a deletion marker points at. The target
// already being gone is success, not an error.
func (a *Applier) deleteTarget(relPath string) error {
	target := filepath.Join(a.SrcDir, filepath.FromSlash(relPath))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot delete %s: %w", relPath, err)
	}
	return nil
}
