// Package diffparse turns raw git unified-diff text into per-file patch
// units, classifying each file's operation from the extended headers before
// the hunk bodies are consumed.
package diffparse

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Op is the kind of change a patch unit represents.
type Op int

const (
	OpModify Op = iota
	OpAdd
	OpDelete
	OpRename
	OpCopy
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	case OpCopy:
		return "copy"
	default:
		return "modify"
	}
}

// PatchUnit is one file's change extracted from a diff. A unit carries
// exactly one operation. Binary units and deletions have no Body; they are
// persisted as marker files instead of hunk text.
type PatchUnit struct {
	Path    string // target path, relative to the upstream tree root
	OldPath string // source path for renames and copies
	Op      Op
	Binary  bool
	Body    []byte // unified diff for this file, nil for deletes and binaries
}

// Result is the outcome of parsing one diff.
type Result struct {
	Units   []PatchUnit // in diff order, one per target path
	Skipped int         // binary files dropped because includeBinary was false
}

// Parse splits a multi-file unified diff into patch units. Rename wins the
// operation tag when a file is both renamed and modified; the post-rename
// diff body still flows through. When includeBinary is false, binary files
// are parsed but dropped from the result and counted as skipped.
func Parse(diffText string, includeBinary bool) (*Result, error) {
	fds, err := diff.NewMultiFileDiffReader(strings.NewReader(diffText)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("cannot parse diff: %w", err)
	}

	res := &Result{}
	seen := make(map[string]int)
	for _, fd := range fds {
		unit, err := classify(fd)
		if err != nil {
			return nil, err
		}
		if unit.Binary && !includeBinary {
			res.Skipped++
			continue
		}
		// A squashed range can only produce one entry per path; keep the
		// last classification if git ever emits duplicates.
		if i, dup := seen[unit.Path]; dup {
			res.Units[i] = unit
			continue
		}
		seen[unit.Path] = len(res.Units)
		res.Units = append(res.Units, unit)
	}
	return res, nil
}

func classify(fd *diff.FileDiff) (PatchUnit, error) {
	unit := PatchUnit{Op: OpModify}

	for _, ext := range fd.Extended {
		switch {
		case strings.HasPrefix(ext, "deleted file mode"):
			unit.Op = OpDelete
		case strings.HasPrefix(ext, "new file mode"):
			unit.Op = OpAdd
		case strings.HasPrefix(ext, "rename from "):
			unit.Op = OpRename
			unit.OldPath = strings.TrimPrefix(ext, "rename from ")
		case strings.HasPrefix(ext, "copy from "):
			unit.Op = OpCopy
			unit.OldPath = strings.TrimPrefix(ext, "copy from ")
		case strings.HasPrefix(ext, "Binary files ") || ext == "GIT binary patch":
			unit.Binary = true
		}
	}

	unit.Path = targetName(fd)
	if unit.Path == "" {
		return unit, fmt.Errorf("diff entry has no usable path (orig=%q new=%q)", fd.OrigName, fd.NewName)
	}

	if unit.Op == OpDelete || unit.Binary {
		return unit, nil
	}

	body, err := diff.PrintFileDiff(fd)
	if err != nil {
		return unit, fmt.Errorf("cannot print diff for %s: %w", unit.Path, err)
	}
	unit.Body = body
	return unit, nil
}

// targetName picks the post-change path of a file diff, preferring the new
// name and falling back to the original for deletions.
func targetName(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	return StripGitPrefix(name)
}

// StripGitPrefix removes the a/ or b/ prefix git puts on diff paths.
func StripGitPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
