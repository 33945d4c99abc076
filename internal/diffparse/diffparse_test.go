package diffparse

import (
	"strings"
	"testing"
)

const modifyDiff = `diff --git a/chrome/browser/about_flags.cc b/chrome/browser/about_flags.cc
index 1111111..2222222 100644
--- a/chrome/browser/about_flags.cc
+++ b/chrome/browser/about_flags.cc
@@ -1,3 +1,3 @@
 line one
-line two
+line two changed
 line three
`

const addDiff = `diff --git a/chrome/browser/new_feature.cc b/chrome/browser/new_feature.cc
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/chrome/browser/new_feature.cc
@@ -0,0 +1,2 @@
+int main() {
+}
`

const deleteDiff = `diff --git a/chrome/browser/old_code.cc b/chrome/browser/old_code.cc
deleted file mode 100644
index 4444444..0000000
--- a/chrome/browser/old_code.cc
+++ /dev/null
@@ -1,2 +0,0 @@
-int old() {
-}
`

const renameDiff = `diff --git a/chrome/old_name.cc b/chrome/new_name.cc
similarity index 90%
rename from chrome/old_name.cc
rename to chrome/new_name.cc
index 5555555..6666666 100644
--- a/chrome/old_name.cc
+++ b/chrome/new_name.cc
@@ -1,2 +1,2 @@
 kept line
-old line
+new line
`

const binaryDiff = `diff --git a/chrome/app/icon.png b/chrome/app/icon.png
index 7777777..8888888 100644
Binary files a/chrome/app/icon.png and b/chrome/app/icon.png differ
`

func TestParse_Modify(t *testing.T) {
	res, err := Parse(modifyDiff, false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(res.Units))
	}
	u := res.Units[0]
	if u.Path != "chrome/browser/about_flags.cc" {
		t.Errorf("unexpected path %q", u.Path)
	}
	if u.Op != OpModify {
		t.Errorf("expected modify, got %s", u.Op)
	}
	if !strings.Contains(string(u.Body), "+line two changed") {
		t.Errorf("body missing hunk content:\n%s", u.Body)
	}
}

func TestParse_AddAndDelete(t *testing.T) {
	res, err := Parse(addDiff+deleteDiff, false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(res.Units))
	}

	add := res.Units[0]
	if add.Op != OpAdd || add.Path != "chrome/browser/new_feature.cc" {
		t.Errorf("unexpected add unit: %+v", add)
	}
	if len(add.Body) == 0 {
		t.Error("add unit should carry a body")
	}

	del := res.Units[1]
	if del.Op != OpDelete || del.Path != "chrome/browser/old_code.cc" {
		t.Errorf("unexpected delete unit: %+v", del)
	}
	if del.Body != nil {
		t.Error("delete unit should not carry a body")
	}
}

func TestParse_Rename(t *testing.T) {
	res, err := Parse(renameDiff, false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(res.Units))
	}
	u := res.Units[0]
	if u.Op != OpRename {
		t.Errorf("expected rename, got %s", u.Op)
	}
	if u.Path != "chrome/new_name.cc" || u.OldPath != "chrome/old_name.cc" {
		t.Errorf("unexpected paths: %+v", u)
	}
	if !strings.Contains(string(u.Body), "+new line") {
		t.Errorf("rename body should keep the post-rename hunk:\n%s", u.Body)
	}
}

func TestParse_BinarySkippedByDefault(t *testing.T) {
	res, err := Parse(modifyDiff+binaryDiff, false)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Units) != 1 {
		t.Fatalf("expected binary unit dropped, got %d units", len(res.Units))
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", res.Skipped)
	}
}

func TestParse_BinaryIncluded(t *testing.T) {
	res, err := Parse(binaryDiff, true)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Units) != 1 || res.Skipped != 0 {
		t.Fatalf("expected 1 unit and 0 skipped, got %d/%d", len(res.Units), res.Skipped)
	}
	u := res.Units[0]
	if !u.Binary {
		t.Error("expected binary flag set")
	}
	if u.Body != nil {
		t.Error("binary unit should not carry a body")
	}
	if u.Path != "chrome/app/icon.png" {
		t.Errorf("unexpected path %q", u.Path)
	}
}

func TestParse_Empty(t *testing.T) {
	res, err := Parse("", false)
	if err != nil {
		t.Fatalf("Parse of empty diff failed: %v", err)
	}
	if len(res.Units) != 0 {
		t.Errorf("expected no units, got %d", len(res.Units))
	}
}

func TestStripGitPrefix(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a/chrome/foo.cc", "chrome/foo.cc"},
		{"b/chrome/foo.cc", "chrome/foo.cc"},
		{"chrome/foo.cc", "chrome/foo.cc"},
	}
	for _, tc := range cases {
		if got := StripGitPrefix(tc.in); got != tc.want {
			t.Errorf("StripGitPrefix(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
