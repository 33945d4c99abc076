package corpus

import (
	"fmt"
	"os"
	"strings"
)

// SeriesEntry is one ordered reference into the corpus. Application order is
// series-file order, top to bottom.
type SeriesEntry struct {
	Path    string // corpus-relative, slash-separated
	Comment string // inline trailing comment, without the leading hash
}

// LoadSeries parses a series file. Blank lines and lines starting with #
// are ignored; an inline trailing " #comment" is stripped. A missing series
// file yields an empty series, not an error — an empty corpus is legal.
func LoadSeries(path string) ([]SeriesEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read series file: %w", err)
	}

	var entries []SeriesEntry
	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry := SeriesEntry{Path: line}
		if i := strings.Index(line, " #"); i >= 0 {
			entry.Path = strings.TrimSpace(line[:i])
			entry.Comment = strings.TrimSpace(strings.TrimPrefix(line[i+2:], " "))
		}
		if entry.Path == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AppendSeries adds paths not already listed, appending new entries at the
// bottom. Existing lines, comment lines included, are left byte for byte
// as they were. Returns the number added.
func AppendSeries(path string, paths []string) (int, error) {
	entries, err := LoadSeries(path)
	if err != nil {
		return 0, err
	}
	listed := make(map[string]bool, len(entries))
	for _, e := range entries {
		listed[e.Path] = true
	}
	var b strings.Builder
	added := 0
	for _, p := range paths {
		if listed[p] {
			continue
		}
		b.WriteString(p)
		b.WriteString("\n")
		listed[p] = true
		added++
	}
	if added == 0 {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("cannot read series file: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	data = append(data, b.String()...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("cannot write series file: %w", err)
	}
	return added, nil
}

// RemoveFromSeries drops the given paths from the series file if present,
// leaving every other line, comments included, untouched.
func RemoveFromSeries(path string, paths []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot read series file: %w", err)
	}
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		drop[p] = true
	}

	lines := strings.Split(string(data), "\n")
	kept := lines[:0]
	changed := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		entryPath := line
		if i := strings.Index(line, " #"); i >= 0 {
			entryPath = strings.TrimSpace(line[:i])
		}
		if line != "" && !strings.HasPrefix(line, "#") && drop[entryPath] {
			changed = true
			continue
		}
		kept = append(kept, raw)
	}
	if !changed {
		return nil
	}
	if err := os.WriteFile(path, []byte(strings.Join(kept, "\n")), 0644); err != nil {
		return fmt.Errorf("cannot write series file: %w", err)
	}
	return nil
}
