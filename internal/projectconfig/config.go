// Package projectconfig provides the ProjectConfig struct and loader for
// .maskeval.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pavise/maskeval/internal/utils"
)

// Default values for project configuration. These are the single source of
// truth — New() references them and no other code should duplicate them.
const (
	DefaultDatasetsDir = "datasets/"
	DefaultResultsDir  = "results/"

	DefaultWorkers = 4

	DefaultCacheDir = ".maskeval-cache"

	DefaultServerPort       = 3000
	DefaultServerResultsDir = "results/"
)

// PathsConfig holds directory paths for datasets and results.
type PathsConfig struct {
	Datasets string `yaml:"datasets,omitempty"`
	Results  string `yaml:"results,omitempty"`
}

// DefaultsConfig holds run parameters applied when the command line and the
// manifest leave them unset.
type DefaultsConfig struct {
	Model    string `yaml:"model,omitempty"`
	Parallel *bool  `yaml:"parallel,omitempty"`
	Workers  int    `yaml:"workers,omitempty"`
	Verbose  *bool  `yaml:"verbose,omitempty"`
	FailFast *bool  `yaml:"fail_fast,omitempty"`
}

// CacheConfig holds sample-result cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// ServerConfig holds report browser settings.
type ServerConfig struct {
	Port       int    `yaml:"port,omitempty"`
	ResultsDir string `yaml:"results_dir,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .maskeval.yaml.
// Ranges carries project-wide expected-range overrides, keyed by metric
// name; a manifest's own expected_ranges still wins over these.
type ProjectConfig struct {
	Paths    PathsConfig           `yaml:"paths,omitempty"`
	Defaults DefaultsConfig        `yaml:"defaults,omitempty"`
	Ranges   map[string][2]float64 `yaml:"ranges,omitempty"`
	Cache    CacheConfig           `yaml:"cache,omitempty"`
	Server   ServerConfig          `yaml:"server,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Datasets: DefaultDatasetsDir,
			Results:  DefaultResultsDir,
		},
		Defaults: DefaultsConfig{
			Model:    "",
			Parallel: utils.Ptr(false),
			Workers:  DefaultWorkers,
			Verbose:  utils.Ptr(false),
			FailFast: utils.Ptr(false),
		},
		Cache: CacheConfig{
			Enabled: utils.Ptr(false),
			Dir:     DefaultCacheDir,
		},
		Server: ServerConfig{
			Port:       DefaultServerPort,
			ResultsDir: DefaultServerResultsDir,
		},
	}
}

// Load finds .maskeval.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading .maskeval.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .maskeval.yaml: %w", err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .maskeval.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors (e.g. permission denied) instead of silently swallowing
// them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".maskeval.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Datasets != "" {
		dst.Paths.Datasets = src.Paths.Datasets
	}
	if src.Paths.Results != "" {
		dst.Paths.Results = src.Paths.Results
	}

	// Defaults
	if src.Defaults.Model != "" {
		dst.Defaults.Model = src.Defaults.Model
	}
	if src.Defaults.Parallel != nil {
		dst.Defaults.Parallel = src.Defaults.Parallel
	}
	if src.Defaults.Workers != 0 {
		dst.Defaults.Workers = src.Defaults.Workers
	}
	if src.Defaults.Verbose != nil {
		dst.Defaults.Verbose = src.Defaults.Verbose
	}
	if src.Defaults.FailFast != nil {
		dst.Defaults.FailFast = src.Defaults.FailFast
	}

	// Ranges replace wholesale; per-metric merging would make it impossible
	// to drop a default band from a project file.
	if src.Ranges != nil {
		dst.Ranges = src.Ranges
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Server
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.ResultsDir != "" {
		dst.Server.ResultsDir = src.Server.ResultsDir
	}
}
