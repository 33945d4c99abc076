package reconcile

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forkline/forkline/internal/apply"
	"github.com/forkline/forkline/internal/corpus"
	"github.com/forkline/forkline/internal/gitx"
)

// fixture wires a fork repository (holding the corpus under patches/) to a
// source repository the patches apply to.
type fixture struct {
	t       *testing.T
	forkDir string
	srcDir  string
	engine  *Engine
}

const fooPatch = `--- a/sub/foo.txt
+++ b/sub/foo.txt
@@ -1,3 +1,3 @@
 one
-two
+two patched
 three
`

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if err := gitx.Available(); err != nil {
		t.Skip("git not available")
	}
	if _, err := exec.LookPath("patch"); err != nil {
		t.Skip("patch tool not available")
	}

	f := &fixture{t: t, forkDir: t.TempDir(), srcDir: t.TempDir()}

	f.git(f.srcDir, "init")
	f.git(f.srcDir, "config", "user.email", "test@test.com")
	f.git(f.srcDir, "config", "user.name", "Test")
	f.write(f.srcDir, "sub/foo.txt", "one\ntwo\nthree\n")
	f.git(f.srcDir, "add", ".")
	f.git(f.srcDir, "commit", "-m", "upstream")

	f.git(f.forkDir, "init")
	f.git(f.forkDir, "config", "user.email", "test@test.com")
	f.git(f.forkDir, "config", "user.name", "Test")
	f.write(f.forkDir, "patches/sub/foo.txt", fooPatch)
	f.git(f.forkDir, "add", ".")
	f.git(f.forkDir, "commit", "-m", "add foo patch")

	c := corpus.New(filepath.Join(f.forkDir, "patches"))
	f.engine = &Engine{
		ForkDir:  f.forkDir,
		SrcDir:   f.srcDir,
		Prefix:   "patches/",
		Applier:  &apply.Applier{SrcDir: f.srcDir, Corpus: c},
		Baseline: "HEAD",
	}
	return f
}

func (f *fixture) git(dir string, args ...string) {
	f.t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1", "HOME="+dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		f.t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func (f *fixture) write(dir, name, content string) {
	f.t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) srcContent(name string) string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.srcDir, name))
	if err != nil {
		f.t.Fatalf("cannot read %s: %v", name, err)
	}
	return string(data)
}

func TestComputeCommit_FiltersAndStripsPrefix(t *testing.T) {
	f := newFixture(t)

	f.write(f.forkDir, "patches/sub/foo.txt", strings.Replace(fooPatch, "two patched", "two reworked", 1))
	f.write(f.forkDir, "README.md", "outside the corpus\n")
	f.git(f.forkDir, "add", ".")
	f.git(f.forkDir, "commit", "-m", "rework foo patch")

	plan, err := f.engine.ComputeCommit("HEAD")
	if err != nil {
		t.Fatalf("ComputeCommit failed: %v", err)
	}
	if len(plan.Changes) != 1 {
		t.Fatalf("expected 1 change, got %+v", plan.Changes)
	}
	c := plan.Changes[0]
	if c.TargetPath != "sub/foo.txt" || c.Type != Modified {
		t.Errorf("unexpected change: %+v", c)
	}
	if !strings.Contains(plan.Summary(), "modified (1):") {
		t.Errorf("summary not grouped: %s", plan.Summary())
	}
}

func TestExecute_ModifiedResetsAndReapplies(t *testing.T) {
	f := newFixture(t)

	// The target already carries the old patch.
	f.write(f.srcDir, "sub/foo.txt", "one\ntwo patched\nthree\n")

	f.write(f.forkDir, "patches/sub/foo.txt", strings.Replace(fooPatch, "two patched", "two reworked", 1))
	f.git(f.forkDir, "add", ".")
	f.git(f.forkDir, "commit", "-m", "rework foo patch")

	plan, err := f.engine.ComputeCommit("HEAD")
	if err != nil {
		t.Fatalf("ComputeCommit failed: %v", err)
	}
	res, err := f.engine.Execute(plan, false)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(res.Applied) != 1 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := f.srcContent("sub/foo.txt"); got != "one\ntwo reworked\nthree\n" {
		t.Errorf("target not reconciled, got %q", got)
	}
}

func TestExecute_DeletedPatchResetsOnly(t *testing.T) {
	f := newFixture(t)
	f.write(f.srcDir, "sub/foo.txt", "one\ntwo patched\nthree\n")

	f.git(f.forkDir, "rm", "patches/sub/foo.txt")
	f.git(f.forkDir, "commit", "-m", "drop foo patch")

	plan, err := f.engine.ComputeCommit("HEAD")
	if err != nil {
		t.Fatalf("ComputeCommit failed: %v", err)
	}
	if len(plan.Changes) != 1 || plan.Changes[0].Type != Deleted {
		t.Fatalf("expected one deletion, got %+v", plan.Changes)
	}

	res, err := f.engine.Execute(plan, false)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(res.ResetOnly) != 1 || len(res.Applied) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if got := f.srcContent("sub/foo.txt"); got != "one\ntwo\nthree\n" {
		t.Errorf("target not reset to baseline, got %q", got)
	}
}

func TestExecute_DeletedPatchForNewFileRemovesTarget(t *testing.T) {
	f := newFixture(t)

	// The patch added a brand new file; the baseline never had it.
	f.write(f.srcDir, "sub/added.txt", "entirely ours\n")
	f.write(f.forkDir, "patches/sub/added.txt", "some diff\n")
	f.git(f.forkDir, "add", ".")
	f.git(f.forkDir, "commit", "-m", "track added patch")

	f.git(f.forkDir, "rm", "patches/sub/added.txt")
	f.git(f.forkDir, "commit", "-m", "drop added patch")

	plan, err := f.engine.ComputeCommit("HEAD")
	if err != nil {
		t.Fatalf("ComputeCommit failed: %v", err)
	}
	if _, err := f.engine.Execute(plan, false); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.srcDir, "sub/added.txt")); !os.IsNotExist(err) {
		t.Error("target of deleted add-patch should be removed")
	}
}

func TestExecute_DryRunTouchesNothing(t *testing.T) {
	f := newFixture(t)
	f.write(f.srcDir, "sub/foo.txt", "untouched\n")

	f.write(f.forkDir, "patches/sub/foo.txt", strings.Replace(fooPatch, "two patched", "two reworked", 1))
	f.git(f.forkDir, "add", ".")
	f.git(f.forkDir, "commit", "-m", "rework")

	plan, _ := f.engine.ComputeCommit("HEAD")
	res, err := f.engine.Execute(plan, true)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if len(res.Applied) != 1 {
		t.Errorf("dry run should report the would-be work: %+v", res)
	}
	if got := f.srcContent("sub/foo.txt"); got != "untouched\n" {
		t.Errorf("dry run modified the source tree: %q", got)
	}
}

func TestTypeFor(t *testing.T) {
	cases := []struct {
		status byte
		want   ChangeType
	}{
		{'A', Added}, {'M', Modified}, {'D', Deleted},
		{'R', Renamed}, {'C', Copied}, {'T', Modified}, {'X', Modified},
	}
	for _, tc := range cases {
		if got := typeFor(tc.status); got != tc.want {
			t.Errorf("typeFor(%c) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestExecute_RequiresBaseline(t *testing.T) {
	f := newFixture(t)
	f.engine.Baseline = ""

	plan := &Plan{Changes: []PatchChange{{TargetPath: "sub/foo.txt", Type: Modified}}}
	if _, err := f.engine.Execute(plan, false); err == nil {
		t.Error("expected error without a baseline ref")
	}
	// Dry runs compute buckets without touching the tree and need no ref.
	if _, err := f.engine.Execute(plan, true); err != nil {
		t.Errorf("dry run should not require a baseline: %v", err)
	}
}
