// Package corpus owns the on-disk patch corpus: a directory tree mirroring
// the upstream source tree's paths, each file holding the unified diff for
// that path, plus the series file that fixes application order.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forkline/forkline/internal/diffparse"
)

// Marker first-lines for corpus entries that carry no hunk body. A deleted
// upstream file and a binary change are both recorded as small marker files
// rather than diff text.
const (
	deletionMarkerLine = "forkline-deleted-file"
	binaryMarkerPrefix = "forkline-binary-file:"
)

// Corpus is a patch corpus rooted at a directory.
type Corpus struct {
	Root string
}

// New returns a Corpus for the given root directory.
func New(root string) *Corpus {
	return &Corpus{Root: root}
}

// PatchPath maps an upstream tree path to its corpus file.
func (c *Corpus) PatchPath(target string) string {
	return filepath.Join(c.Root, filepath.FromSlash(target))
}

// Exists reports whether a corpus entry already exists for target.
func (c *Corpus) Exists(target string) bool {
	info, err := os.Stat(c.PatchPath(target))
	return err == nil && info.Mode().IsRegular()
}

// List returns every corpus entry as a slash-separated path relative to the
// corpus root, sorted.
func (c *Corpus) List() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(c.Root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk patch corpus: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// WriteUnit persists one patch unit. Existing entries are refused unless
// force is set; re-extraction overwrites whole files, it never patches a
// stored diff in place.
func (c *Corpus) WriteUnit(unit diffparse.PatchUnit, force bool) error {
	if !force && c.Exists(unit.Path) {
		return fmt.Errorf("patch already exists for %s (use force to overwrite)", unit.Path)
	}

	var content []byte
	switch {
	case unit.Op == diffparse.OpDelete:
		content = []byte(deletionMarkerLine + "\n")
	case unit.Binary:
		content = []byte(fmt.Sprintf("%s %s\n", binaryMarkerPrefix, unit.Op))
	default:
		content = unit.Body
	}

	path := c.PatchPath(unit.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create corpus directory for %s: %w", unit.Path, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("cannot write patch for %s: %w", unit.Path, err)
	}
	return nil
}

// Remove deletes the corpus entry for target, pruning any directories the
// removal leaves empty.
func (c *Corpus) Remove(target string) error {
	path := c.PatchPath(target)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("cannot remove patch for %s: %w", target, err)
	}
	dir := filepath.Dir(path)
	for dir != c.Root {
		if err := os.Remove(dir); err != nil {
			break // not empty
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

// EntryKind describes what a stored corpus file holds.
type EntryKind int

const (
	EntryDiff EntryKind = iota
	EntryDeletion
	EntryBinary
)

// ReadEntry loads a corpus file and classifies it as a diff, a deletion
// marker, or a binary marker.
func (c *Corpus) ReadEntry(target string) (EntryKind, []byte, error) {
	data, err := os.ReadFile(c.PatchPath(target))
	if err != nil {
		return EntryDiff, nil, fmt.Errorf("cannot read patch for %s: %w", target, err)
	}
	firstLine, _, _ := strings.Cut(string(data), "\n")
	switch {
	case strings.TrimSpace(firstLine) == deletionMarkerLine:
		return EntryDeletion, data, nil
	case strings.HasPrefix(firstLine, binaryMarkerPrefix):
		return EntryBinary, data, nil
	default:
		return EntryDiff, data, nil
	}
}
