// Package project locates and loads a forkline workspace: the fork
// repository holding the patch corpus, and the upstream source tree the
// patches apply to.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/forkline/forkline/internal/gitx"
)

// ConfigFile is the marker file that identifies a fork repository root.
const ConfigFile = "forkline.yaml"

// PatchConfig holds settings for the external patch utility.
type PatchConfig struct {
	Tool string `yaml:"tool"`
}

// Config holds forkline configuration, stored at the fork repo root.
type Config struct {
	Version      string      `yaml:"version"`
	SourceRoot   string      `yaml:"source_root"`   // upstream tree, absolute or relative to the fork root
	PatchesDir   string      `yaml:"patches_dir"`   // corpus directory, relative to the fork root
	SeriesFile   string      `yaml:"series_file"`   // relative to the fork root
	FeaturesFile string      `yaml:"features_file"` // relative to the fork root
	Patch        PatchConfig `yaml:"patch,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Version:      "1",
		SourceRoot:   "../src",
		PatchesDir:   "patches",
		SeriesFile:   "series",
		FeaturesFile: "features.yaml",
		Patch:        PatchConfig{Tool: "patch"},
	}
}

// Project is a loaded fork workspace.
type Project struct {
	Root   string // fork repo root, absolute
	Config Config
}

// Locate walks up from dir looking for forkline.yaml.
func Locate(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, ConfigFile)); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no %s found in %s or any parent — run 'forkline init' at the fork repo root", ConfigFile, dir)
		}
		abs = parent
	}
}

// Init writes a default forkline.yaml plus the corpus skeleton at root.
func Init(root, sourceRoot string, force bool) error {
	cfgPath := filepath.Join(root, ConfigFile)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists at %s (use --force to overwrite)", ConfigFile, root)
	}

	cfg := DefaultConfig()
	if sourceRoot != "" {
		cfg.SourceRoot = sourceRoot
	}

	if err := os.MkdirAll(filepath.Join(root, cfg.PatchesDir), 0755); err != nil {
		return fmt.Errorf("cannot create patches directory: %w", err)
	}
	seriesPath := filepath.Join(root, cfg.SeriesFile)
	if _, err := os.Stat(seriesPath); err != nil {
		header := "# forkline series — patches apply in this order, top to bottom\n"
		if err := os.WriteFile(seriesPath, []byte(header), 0644); err != nil {
			return fmt.Errorf("cannot write series file: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("cannot write %s: %w", ConfigFile, err)
	}
	return nil
}

// Load reads the config at root. Missing fields are filled from defaults.
func Load(root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(abs, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("cannot read %s at %s: %w", ConfigFile, abs, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	return &Project{Root: abs, Config: cfg}, nil
}

// SourceDir returns the absolute path of the upstream source tree.
func (p *Project) SourceDir() string {
	if filepath.IsAbs(p.Config.SourceRoot) {
		return filepath.Clean(p.Config.SourceRoot)
	}
	return filepath.Join(p.Root, p.Config.SourceRoot)
}

// PatchesDir returns the absolute path of the patch corpus directory.
func (p *Project) PatchesDir() string {
	return filepath.Join(p.Root, p.Config.PatchesDir)
}

// SeriesPath returns the absolute path of the series file.
func (p *Project) SeriesPath() string {
	return filepath.Join(p.Root, p.Config.SeriesFile)
}

// FeaturesPath returns the absolute path of the feature index file.
func (p *Project) FeaturesPath() string {
	return filepath.Join(p.Root, p.Config.FeaturesFile)
}

// PatchTool returns the configured patch utility name.
func (p *Project) PatchTool() string {
	if p.Config.Patch.Tool == "" {
		return "patch"
	}
	return p.Config.Patch.Tool
}

// CorpusPrefix returns the slash-separated prefix of corpus files relative
// to the fork repository's git root, with a trailing slash. The fork root
// may itself sit below the git root.
func (p *Project) CorpusPrefix() (string, error) {
	gitRoot, err := gitx.Root(p.Root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(gitRoot, p.PatchesDir())
	if err != nil || rel == "." {
		return p.Config.PatchesDir + "/", nil
	}
	return filepath.ToSlash(rel) + "/", nil
}

// ValidateSource checks the preconditions every mutating command shares:
// git in PATH, an existing source tree, and an existing corpus directory.
// Failures here are fatal before any mutation begins.
func (p *Project) ValidateSource() error {
	if err := gitx.Available(); err != nil {
		return err
	}
	src := p.SourceDir()
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("upstream source tree not found: %s", src)
	}
	if !gitx.IsRepository(src) {
		return fmt.Errorf("upstream source tree is not a git repository: %s", src)
	}
	if _, err := os.Stat(p.PatchesDir()); err != nil {
		return fmt.Errorf("patch corpus directory not found: %s", p.PatchesDir())
	}
	return nil
}
