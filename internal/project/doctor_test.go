package project

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forkline/forkline/internal/feature"
	"github.com/forkline/forkline/internal/gitx"
)

func healthFixture(t *testing.T) *Project {
	t.Helper()
	if err := gitx.Available(); err != nil {
		t.Skip("git not available")
	}

	src := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", src}, args...)...)
		cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1", "HOME="+src)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	git("init")

	root := t.TempDir()
	if err := Init(root, src, false); err != nil {
		t.Fatal(err)
	}
	p, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func messages(issues []Issue) string {
	var all []string
	for _, i := range issues {
		all = append(all, i.Severity+": "+i.Message)
	}
	return strings.Join(all, "\n")
}

func TestCheckHealth_CleanWorkspace(t *testing.T) {
	p := healthFixture(t)
	if issues := p.CheckHealth(); len(issues) != 0 {
		t.Errorf("expected no issues, got:\n%s", messages(issues))
	}
}

func TestCheckHealth_SeriesAndFeatureDrift(t *testing.T) {
	p := healthFixture(t)

	// A patch on disk that the series never mentions, and a series entry
	// with no patch behind it.
	patch := filepath.Join(p.PatchesDir(), "chrome", "orphan.cc")
	if err := os.MkdirAll(filepath.Dir(patch), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(patch, []byte("diff\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.SeriesPath(), []byte("chrome/ghost.cc\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reg := &feature.Registry{Version: "1.0", Features: map[string]feature.Feature{}}
	reg.AddFiles("phantom", "", "", []string{"chrome/missing.cc"})
	if err := reg.Save(p.FeaturesPath()); err != nil {
		t.Fatal(err)
	}

	got := messages(p.CheckHealth())
	for _, want := range []string{
		"series lists missing patch: chrome/ghost.cc",
		"patch not in series",
		`feature "phantom" lists missing patch: chrome/missing.cc`,
		"unclassified patch file(s)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected issue %q, got:\n%s", want, got)
		}
	}
	for _, i := range p.CheckHealth() {
		if i.Severity == "error" {
			t.Errorf("drift should be warnings, got error: %s", i.Message)
		}
	}
}

func TestCheckHealth_MissingSourceIsError(t *testing.T) {
	p := healthFixture(t)
	p.Config.SourceRoot = filepath.Join(p.Root, "vanished")

	issues := p.CheckHealth()
	found := false
	for _, i := range issues {
		if i.Severity == "error" && strings.Contains(i.Message, "source tree not found") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected source-tree error, got:\n%s", messages(issues))
	}
}
