// Package config holds the assembled configuration for a single evaluation
// run. An EvalConfig is built once by the CLI layer and handed to the
// orchestration runner; fields are read through accessors so nothing can
// mutate a run mid-flight.
package config

import "github.com/pavise/maskeval/internal/dataset"

// EvalConfig carries everything one evaluation run needs: the parsed
// manifest plus the paths and switches supplied on the command line.
type EvalConfig struct {
	manifest     *dataset.Manifest
	manifestPath string
	dataDir      string
	model        string
	verbose      bool
	outputPath   string
	logPath      string
	workers      int
}

// Option mutates an EvalConfig during construction.
type Option func(*EvalConfig)

// NewEvalConfig builds an EvalConfig for manifest, applying opts in order.
// Later options win. A nil option panics: it is a programming error at the
// call site, never a runtime condition.
func NewEvalConfig(manifest *dataset.Manifest, opts ...Option) *EvalConfig {
	cfg := &EvalConfig{manifest: manifest}
	for _, opt := range opts {
		if opt == nil {
			panic("config: nil Option passed to NewEvalConfig")
		}
		opt(cfg)
	}
	return cfg
}

// Manifest returns the parsed dataset manifest.
func (c *EvalConfig) Manifest() *dataset.Manifest { return c.manifest }

// ManifestPath returns the path of the eval.yaml this run was loaded from.
func (c *EvalConfig) ManifestPath() string { return c.manifestPath }

// DataDir returns the directory relative sample paths resolve against,
// normally the directory containing eval.yaml.
func (c *EvalConfig) DataDir() string { return c.dataDir }

// BaseDir is an alias for DataDir; path-resolution code calls the same
// directory its base.
func (c *EvalConfig) BaseDir() string { return c.dataDir }

// Model returns the selected model name, or "" to let the manifest decide.
func (c *EvalConfig) Model() string { return c.model }

// Verbose reports whether per-sample progress should be printed.
func (c *EvalConfig) Verbose() bool { return c.verbose }

// OutputPath returns where the JSON report is written, or "" for the default.
func (c *EvalConfig) OutputPath() string { return c.outputPath }

// LogPath returns the debug log destination, or "" when file logging is off.
func (c *EvalConfig) LogPath() string { return c.logPath }

// Workers returns the concurrency override, 0 meaning "use the manifest".
func (c *EvalConfig) Workers() int { return c.workers }

// WithManifestPath records where the manifest was loaded from.
func WithManifestPath(path string) Option {
	return func(c *EvalConfig) { c.manifestPath = path }
}

// WithDataDir sets the resolution root for relative sample paths.
func WithDataDir(dir string) Option {
	return func(c *EvalConfig) { c.dataDir = dir }
}

// WithBaseDir is an alias for WithDataDir.
func WithBaseDir(dir string) Option {
	return func(c *EvalConfig) { c.dataDir = dir }
}

// WithModel selects which manifest model to evaluate.
func WithModel(name string) Option {
	return func(c *EvalConfig) { c.model = name }
}

// WithVerbose toggles per-sample progress output.
func WithVerbose(v bool) Option {
	return func(c *EvalConfig) { c.verbose = v }
}

// WithOutputPath sets the JSON report destination.
func WithOutputPath(path string) Option {
	return func(c *EvalConfig) { c.outputPath = path }
}

// WithLogPath sets the debug log destination.
func WithLogPath(path string) Option {
	return func(c *EvalConfig) { c.logPath = path }
}

// WithWorkers overrides the manifest's worker count.
func WithWorkers(n int) Option {
	return func(c *EvalConfig) { c.workers = n }
}
