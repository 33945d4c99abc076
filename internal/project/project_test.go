package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := Init(root, "../upstream", false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// Re-init without force refuses.
	if err := Init(root, "", false); err == nil {
		t.Error("expected second Init to fail without force")
	}
	if err := Init(root, "../upstream", true); err != nil {
		t.Errorf("forced re-init failed: %v", err)
	}

	p, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Config.SourceRoot != "../upstream" {
		t.Errorf("source root not persisted: %q", p.Config.SourceRoot)
	}
	if _, err := os.Stat(p.PatchesDir()); err != nil {
		t.Error("patches directory not created")
	}
	if _, err := os.Stat(p.SeriesPath()); err != nil {
		t.Error("series file not created")
	}
}

func TestLocate_WalksUp(t *testing.T) {
	root := t.TempDir()
	if err := Init(root, "", false); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "patches", "chrome", "browser")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	found, err := Locate(nested)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if found != root {
		t.Errorf("Locate = %q, want %q", found, root)
	}
}

func TestLocate_NotFound(t *testing.T) {
	if _, err := Locate(t.TempDir()); err == nil {
		t.Error("expected error when no forkline.yaml exists")
	}
}

func TestLoad_DefaultsForMissingFields(t *testing.T) {
	root := t.TempDir()
	cfg := "version: \"1\"\nsource_root: /abs/upstream\n"
	if err := os.WriteFile(filepath.Join(root, ConfigFile), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Config.PatchesDir != "patches" || p.Config.SeriesFile != "series" {
		t.Errorf("defaults not applied: %+v", p.Config)
	}
	if p.PatchTool() != "patch" {
		t.Errorf("default patch tool not applied: %q", p.PatchTool())
	}
	if p.SourceDir() != filepath.Clean("/abs/upstream") {
		t.Errorf("absolute source root mangled: %q", p.SourceDir())
	}
}

func TestSourceDir_RelativeToRoot(t *testing.T) {
	root := t.TempDir()
	if err := Init(root, "../src", false); err != nil {
		t.Fatal(err)
	}
	p, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(root), "src")
	if p.SourceDir() != want {
		t.Errorf("SourceDir = %q, want %q", p.SourceDir(), want)
	}
}

func TestValidateSource_MissingTree(t *testing.T) {
	root := t.TempDir()
	if err := Init(root, filepath.Join(root, "no-such-src"), false); err != nil {
		t.Fatal(err)
	}
	p, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ValidateSource(); err == nil {
		t.Error("expected validation failure for missing source tree")
	}
}
