package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forkline/forkline/internal/diffparse"
)

func TestWriteUnit_RefusesOverwriteWithoutForce(t *testing.T) {
	c := New(t.TempDir())
	unit := diffparse.PatchUnit{Path: "chrome/foo.cc", Body: []byte("--- a\n+++ b\n")}

	if err := c.WriteUnit(unit, false); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := c.WriteUnit(unit, false); err == nil {
		t.Error("expected overwrite without force to fail")
	}
	if err := c.WriteUnit(unit, true); err != nil {
		t.Errorf("forced overwrite failed: %v", err)
	}
}

func TestWriteUnit_Markers(t *testing.T) {
	c := New(t.TempDir())

	del := diffparse.PatchUnit{Path: "chrome/gone.cc", Op: diffparse.OpDelete}
	if err := c.WriteUnit(del, false); err != nil {
		t.Fatalf("write deletion failed: %v", err)
	}
	kind, data, err := c.ReadEntry("chrome/gone.cc")
	if err != nil {
		t.Fatalf("ReadEntry failed: %v", err)
	}
	if kind != EntryDeletion {
		t.Errorf("expected deletion marker, got %v (%q)", kind, data)
	}

	bin := diffparse.PatchUnit{Path: "chrome/icon.png", Op: diffparse.OpModify, Binary: true}
	if err := c.WriteUnit(bin, false); err != nil {
		t.Fatalf("write binary failed: %v", err)
	}
	kind, data, err = c.ReadEntry("chrome/icon.png")
	if err != nil {
		t.Fatalf("ReadEntry failed: %v", err)
	}
	if kind != EntryBinary {
		t.Errorf("expected binary marker, got %v (%q)", kind, data)
	}
	if !strings.Contains(string(data), "modify") {
		t.Errorf("binary marker should record the operation, got %q", data)
	}
}

func TestReadEntry_Diff(t *testing.T) {
	c := New(t.TempDir())
	body := []byte("--- a/chrome/foo.cc\n+++ b/chrome/foo.cc\n@@ -1 +1 @@\n-a\n+b\n")
	if err := c.WriteUnit(diffparse.PatchUnit{Path: "chrome/foo.cc", Body: body}, false); err != nil {
		t.Fatal(err)
	}
	kind, data, err := c.ReadEntry("chrome/foo.cc")
	if err != nil {
		t.Fatalf("ReadEntry failed: %v", err)
	}
	if kind != EntryDiff {
		t.Errorf("expected diff entry, got %v", kind)
	}
	if string(data) != string(body) {
		t.Errorf("diff body altered on round trip")
	}
}

func TestList_SortedSlashPaths(t *testing.T) {
	c := New(t.TempDir())
	for _, p := range []string{"z/last.cc", "a/b/deep.cc", "top.cc"} {
		if err := c.WriteUnit(diffparse.PatchUnit{Path: p, Body: []byte("x\n")}, false); err != nil {
			t.Fatal(err)
		}
	}
	files, err := c.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"a/b/deep.cc", "top.cc", "z/last.cc"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestRemove_PrunesEmptyDirs(t *testing.T) {
	c := New(t.TempDir())
	if err := c.WriteUnit(diffparse.PatchUnit{Path: "a/b/c.cc", Body: []byte("x\n")}, false); err != nil {
		t.Fatal(err)
	}
	if err := c.Remove("a/b/c.cc"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.Root, "a")); !os.IsNotExist(err) {
		t.Error("expected empty parent directories to be pruned")
	}
	if _, err := os.Stat(c.Root); err != nil {
		t.Error("corpus root should survive pruning")
	}
}
