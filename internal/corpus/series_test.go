package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeries(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSeries_SkipsBlanksAndComments(t *testing.T) {
	path := writeSeries(t, `# patch order for the fork

chrome/browser/first.cc
chrome/browser/second.cc # needs rebase after 120
  chrome/browser/third.cc

# trailing comment
`)
	entries, err := LoadSeries(path)
	if err != nil {
		t.Fatalf("LoadSeries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %+v", entries)
	}
	if entries[0].Path != "chrome/browser/first.cc" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Path != "chrome/browser/second.cc" || entries[1].Comment != "needs rebase after 120" {
		t.Errorf("inline comment not parsed: %+v", entries[1])
	}
	if entries[2].Path != "chrome/browser/third.cc" {
		t.Errorf("indented entry not trimmed: %+v", entries[2])
	}
}

func TestLoadSeries_MissingFile(t *testing.T) {
	entries, err := LoadSeries(filepath.Join(t.TempDir(), "no-such-series"))
	if err != nil {
		t.Fatalf("missing series should not error, got %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %+v", entries)
	}
}

func TestAppendSeries_DedupesAndPreservesOrder(t *testing.T) {
	path := writeSeries(t, "a.cc\nb.cc # keep\n")

	added, err := AppendSeries(path, []string{"b.cc", "c.cc", "a.cc", "d.cc"})
	if err != nil {
		t.Fatalf("AppendSeries failed: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}

	entries, _ := LoadSeries(path)
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	want := []string{"a.cc", "b.cc", "c.cc", "d.cc"}
	if len(paths) != len(want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if entries[1].Comment != "keep" {
		t.Errorf("existing inline comment lost: %+v", entries[1])
	}
}

func TestAppendSeries_NoopMakesNoWrite(t *testing.T) {
	path := writeSeries(t, "a.cc\n")
	before, _ := os.Stat(path)

	added, err := AppendSeries(path, []string{"a.cc"})
	if err != nil {
		t.Fatalf("AppendSeries failed: %v", err)
	}
	if added != 0 {
		t.Errorf("expected 0 added, got %d", added)
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("series file rewritten despite no additions")
	}
}

func TestRemoveFromSeries(t *testing.T) {
	path := writeSeries(t, "a.cc\nb.cc\nc.cc\n")
	if err := RemoveFromSeries(path, []string{"b.cc", "missing.cc"}); err != nil {
		t.Fatalf("RemoveFromSeries failed: %v", err)
	}
	entries, _ := LoadSeries(path)
	if len(entries) != 2 || entries[0].Path != "a.cc" || entries[1].Path != "c.cc" {
		t.Errorf("unexpected entries after removal: %+v", entries)
	}
}

func TestAppendSeries_PreservesCommentLines(t *testing.T) {
	path := writeSeries(t, "# patch order for the fork\na.cc # fragile\n")
	added, err := AppendSeries(path, []string{"b.cc"})
	if err != nil || added != 1 {
		t.Fatalf("AppendSeries failed: %d, %v", added, err)
	}

	data, _ := os.ReadFile(path)
	got := string(data)
	if got != "# patch order for the fork\na.cc # fragile\nb.cc\n" {
		t.Errorf("rewrite mangled existing lines: %q", got)
	}

	entries, err := LoadSeries(path)
	if err != nil || len(entries) != 2 {
		t.Fatalf("reload failed: %+v, %v", entries, err)
	}
	if entries[0].Comment != "fragile" {
		t.Errorf("inline comment lost: %+v", entries[0])
	}
}

func TestRemoveFromSeries_PreservesCommentLines(t *testing.T) {
	path := writeSeries(t, "# header\na.cc\nb.cc # doomed\nc.cc\n")
	if err := RemoveFromSeries(path, []string{"b.cc"}); err != nil {
		t.Fatalf("RemoveFromSeries failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# header\na.cc\nc.cc\n" {
		t.Errorf("unexpected series after removal: %q", data)
	}
}
