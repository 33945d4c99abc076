// Package feature maintains the feature index: a durable mapping from
// feature name to description, file set, and provenance commit. The index
// is a secondary view over the patch corpus — it can lag behind, and
// reconciling it (classification) is always an explicit operation.
package feature

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feature is one named grouping of corpus files.
type Feature struct {
	Description string   `yaml:"description"`
	Files       []string `yaml:"files"`
	Commit      string   `yaml:"commit,omitempty"` // advisory provenance, not authoritative
}

// Registry is the feature index file content.
type Registry struct {
	Version  string             `yaml:"version"`
	Features map[string]Feature `yaml:"features"`
}

// Load reads the feature index. A missing file yields an empty registry so
// read paths degrade to warnings rather than failures.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{Version: "1.0", Features: map[string]Feature{}}, nil
		}
		return nil, fmt.Errorf("cannot read feature index: %w", err)
	}
	reg := Registry{Version: "1.0"}
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("invalid feature index: %w", err)
	}
	if reg.Features == nil {
		reg.Features = map[string]Feature{}
	}
	return &reg, nil
}

// Save writes the feature index.
func (r *Registry) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("cannot marshal feature index: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("cannot write feature index: %w", err)
	}
	return nil
}

// Names returns the feature names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Features))
	for name := range r.Features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a feature by name.
func (r *Registry) Get(name string) (Feature, bool) {
	f, ok := r.Features[name]
	return f, ok
}

// AddFiles merges files into a feature, creating it if needed. The merge is
// additive: new files are unioned in, duplicates dropped, and an existing
// description is preserved unless it was empty. A file may belong to more
// than one feature; only duplicates within the same feature are dropped.
// Returns how many files were new.
func (r *Registry) AddFiles(name, description, commit string, files []string) int {
	f, ok := r.Features[name]
	if !ok {
		f = Feature{Description: description, Commit: commit}
	}
	if f.Description == "" {
		f.Description = description
	}
	if f.Commit == "" {
		f.Commit = commit
	}

	existing := make(map[string]bool, len(f.Files))
	for _, p := range f.Files {
		existing[p] = true
	}
	added := 0
	for _, p := range files {
		if existing[p] {
			continue
		}
		f.Files = append(f.Files, p)
		existing[p] = true
		added++
	}
	sort.Strings(f.Files)
	r.Features[name] = f
	return added
}

// AllFiles returns the union of every feature's file set.
func (r *Registry) AllFiles() map[string]bool {
	all := make(map[string]bool)
	for _, f := range r.Features {
		for _, p := range f.Files {
			all[p] = true
		}
	}
	return all
}

// Unclassified returns the corpus files not referenced by any feature,
// sorted. The set is recomputed fresh on every call; interrupted
// classification runs resume by simply recomputing.
func (r *Registry) Unclassified(corpusFiles []string) []string {
	classified := r.AllFiles()
	var out []string
	for _, f := range corpusFiles {
		if !classified[f] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)

// Slugify normalizes a feature name: lowercase, spaces to hyphens, and
// anything else unsafe dropped.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugInvalid.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	return s
}
