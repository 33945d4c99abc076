// Package gitx wraps the git queries forkline needs: diffs, rev-lists,
// commit metadata, per-file status, and single-file checkouts. Every call
// takes an explicit repository directory; nothing depends on the process
// working directory.
package gitx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNothingToCommit is returned by CommitStaged when the index has no
// staged changes. Callers treat this as a skip, not a failure.
var ErrNothingToCommit = errors.New("nothing to commit")

// Commit holds the metadata forkline reads from a commit.
type Commit struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Subject     string
}

// StatusEntry is one line of a name-status diff.
type StatusEntry struct {
	Status  byte   // first letter of the git status field (R100 -> 'R')
	Path    string // new path for renames/copies
	OldPath string // populated for renames/copies
}

// Available reports whether the git binary can be found in PATH.
func Available() error {
	if _, err := exec.LookPath("git"); err != nil {
		return fmt.Errorf("git not found in PATH: %w", err)
	}
	return nil
}

// IsRepository reports whether dir is inside a git work tree.
func IsRepository(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	out, err := run(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Root returns the top-level directory of the repository containing dir.
func Root(dir string) (string, error) {
	out, err := run(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %s: %w", dir, err)
	}
	return strings.TrimSpace(out), nil
}

// CommitExists reports whether ref resolves to a commit in the repo at dir.
func CommitExists(dir, ref string) bool {
	_, err := run(dir, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// Info returns author and subject metadata for ref.
func Info(dir, ref string) (*Commit, error) {
	out, err := run(dir, "show", "-s", "--format=%H%x00%an%x00%ae%x00%s", ref)
	if err != nil {
		return nil, fmt.Errorf("cannot read commit %s: %w", ref, err)
	}
	fields := strings.SplitN(strings.TrimRight(out, "\n"), "\x00", 4)
	if len(fields) != 4 {
		return nil, fmt.Errorf("unexpected commit format for %s", ref)
	}
	return &Commit{
		Hash:        fields[0],
		AuthorName:  fields[1],
		AuthorEmail: fields[2],
		Subject:     fields[3],
	}, nil
}

// Head returns the SHA of HEAD, or "" if it cannot be resolved.
func Head(dir string) string {
	out, err := run(dir, "rev-parse", "HEAD")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// ChangedFiles returns the paths touched by a single commit.
func ChangedFiles(dir, ref string) ([]string, error) {
	out, err := run(dir, "diff-tree", "--no-commit-id", "--name-only", "-r", ref)
	if err != nil {
		return nil, fmt.Errorf("cannot list files for %s: %w", ref, err)
	}
	return splitLines(out), nil
}

// CommitStatus returns the name-status entries for a single commit.
// Rename detection is explicit; diff-tree does not enable it on its own.
func CommitStatus(dir, ref string) ([]StatusEntry, error) {
	out, err := run(dir, "diff-tree", "--no-commit-id", "--name-status", "-r", "-M", ref)
	if err != nil {
		return nil, fmt.Errorf("cannot diff commit %s: %w", ref, err)
	}
	return parseNameStatus(out), nil
}

// RangeStatus returns the name-status entries for a two-dot range.
func RangeStatus(dir, start, end string) ([]StatusEntry, error) {
	out, err := run(dir, "diff", "--name-status", start+".."+end)
	if err != nil {
		return nil, fmt.Errorf("cannot diff range %s..%s: %w", start, end, err)
	}
	return parseNameStatus(out), nil
}

// CommitDiff returns the full unified diff of a commit against its parent.
func CommitDiff(dir, ref string) (string, error) {
	out, err := run(dir, "diff", ref+"^", ref)
	if err != nil {
		return "", fmt.Errorf("cannot diff commit %s: %w", ref, err)
	}
	return out, nil
}

// RangeDiff returns the full unified diff between two commits. When paths
// are given the diff is restricted to them.
func RangeDiff(dir, start, end string, paths ...string) (string, error) {
	args := []string{"diff", start + ".." + end}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	out, err := run(dir, args...)
	if err != nil {
		return "", fmt.Errorf("cannot diff range %s..%s: %w", start, end, err)
	}
	return out, nil
}

// RangeFiles returns the paths changed anywhere in start..end.
func RangeFiles(dir, start, end string) ([]string, error) {
	out, err := run(dir, "diff", "--name-only", start+".."+end)
	if err != nil {
		return nil, fmt.Errorf("cannot list files for %s..%s: %w", start, end, err)
	}
	return splitLines(out), nil
}

// RevListCount returns the number of commits in start..end.
func RevListCount(dir, start, end string) (int, error) {
	out, err := run(dir, "rev-list", "--count", start+".."+end)
	if err != nil {
		return 0, fmt.Errorf("cannot count commits %s..%s: %w", start, end, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q", out)
	}
	return n, nil
}

// RevListReverse returns the commits in start..end, oldest first.
func RevListReverse(dir, start, end string) ([]string, error) {
	out, err := run(dir, "rev-list", "--reverse", start+".."+end)
	if err != nil {
		return nil, fmt.Errorf("cannot list commits %s..%s: %w", start, end, err)
	}
	return splitLines(out), nil
}

// FileExistsAt reports whether path exists as a blob at ref.
func FileExistsAt(dir, ref, path string) bool {
	_, err := run(dir, "cat-file", "-e", ref+":"+path)
	return err == nil
}

// CheckoutFileAt restores a single file's content from ref into the work tree.
func CheckoutFileAt(dir, ref, path string) error {
	if _, err := run(dir, "checkout", ref, "--", path); err != nil {
		return fmt.Errorf("cannot restore %s from %s: %w", path, ref, err)
	}
	return nil
}

// FileModified reports whether a single path shows up in git status. The
// check is per file rather than one bulk status parse so very large file
// lists stay cheap on huge trees.
func FileModified(dir, path string) (bool, error) {
	out, err := run(dir, "status", "--porcelain", "--", path)
	if err != nil {
		return false, fmt.Errorf("cannot check status of %s: %w", path, err)
	}
	return strings.TrimSpace(out) != "", nil
}

// Add stages a single path.
func Add(dir, path string) error {
	if _, err := run(dir, "add", "--", path); err != nil {
		return fmt.Errorf("cannot stage %s: %w", path, err)
	}
	return nil
}

// CommitStaged creates a commit from the staged changes. Returns
// ErrNothingToCommit when the index is clean; git uses the same exit code
// for that and for genuine failures, so the stderr text is inspected.
func CommitStaged(dir, message string) error {
	_, err := run(dir, "commit", "-m", message)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "nothing to commit") || strings.Contains(msg, "nothing added to commit") {
			return ErrNothingToCommit
		}
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// run executes git with an explicit working directory and returns stdout.
// On a non-zero exit the error carries the trimmed stderr.
func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), detail)
	}
	return stdout.String(), nil
}

func splitLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func parseNameStatus(out string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		e := StatusEntry{Status: parts[0][0], Path: parts[len(parts)-1]}
		if len(parts) >= 3 {
			e.OldPath = parts[1]
		}
		entries = append(entries, e)
	}
	return entries
}
