// Package dataset loads evaluation datasets: the eval.yaml manifest
// describing how masks are encoded and where prediction/truth files
// live, CSV sample listings, and the mask image files themselves.
package dataset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pavise/maskeval/internal/hooks"
	"github.com/pavise/maskeval/internal/mask"
	"github.com/pavise/maskeval/internal/template"
	"github.com/pavise/maskeval/internal/utils"
)

// Manifest represents a complete dataset evaluation manifest (eval.yaml).
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Encoding declares how raw mask pixels should be interpreted.
	Encoding EncodingSpec `yaml:"encoding" json:"encoding"`

	// Tolerance for the dual-path conversion cross-check. Zero means
	// the built-in default.
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`

	// ExpectedRanges overrides the built-in plausibility bands per
	// metric, as [lo, hi] pairs.
	ExpectedRanges map[string][2]float64 `yaml:"expected_ranges,omitempty" json:"expected_ranges,omitempty"`

	// Samples lists prediction/truth pairs inline. Mutually exclusive
	// with SamplesCSV.
	Samples []SamplePair `yaml:"samples,omitempty" json:"samples,omitempty"`

	// SamplesCSV points at a CSV listing with id/prediction/truth
	// columns; extra columns become per-sample template variables.
	SamplesCSV string `yaml:"samples_csv,omitempty" json:"samples_csv,omitempty"`

	// SamplesCSVRange restricts the CSV listing to data rows
	// [start, end], 1-based inclusive. Zero means every row.
	SamplesCSVRange [2]int `yaml:"samples_csv_range,omitempty" json:"samples_csv_range,omitempty"`

	// TruthPattern is a templated path used for samples that do not
	// carry an explicit truth path, e.g. "truth/{{.SampleID}}.png".
	TruthPattern string `yaml:"truth_pattern,omitempty" json:"truth_pattern,omitempty"`

	// Models names prediction sets produced by different models over
	// the same ground truth.
	Models []ModelSpec `yaml:"models,omitempty" json:"models,omitempty"`

	// Inputs are user-defined template variables shared by all samples.
	Inputs map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	Hooks hooks.HooksConfig `yaml:"hooks,omitempty" json:"hooks,omitempty"`

	Workers     int  `yaml:"max_workers,omitempty" json:"workers,omitempty"`
	Parallel    bool `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	StopOnError bool `yaml:"fail_fast,omitempty" json:"stop_on_error,omitempty"`
}

// EncodingSpec declares the raw mask encoding and its parameters. Params
// are decoded per kind: threshold for intensity masks, categories and
// optional values for categorical masks, values for small-int masks.
type EncodingSpec struct {
	Kind   string         `yaml:"kind" json:"kind"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// SamplePair is one evaluation sample as declared in the manifest or a
// CSV row. Prediction and Truth may be empty when patterns supply them.
type SamplePair struct {
	ID         string            `yaml:"id" json:"id"`
	Prediction string            `yaml:"prediction,omitempty" json:"prediction,omitempty"`
	Truth      string            `yaml:"truth,omitempty" json:"truth,omitempty"`
	Vars       map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`
}

// ModelSpec names one prediction set and the templated path pattern
// that locates its mask files.
type ModelSpec struct {
	Name        string `yaml:"name" json:"name"`
	Predictions string `yaml:"predictions" json:"predictions"`
}

// Pair is a fully resolved prediction/truth file pair ready for loading.
type Pair struct {
	ID             string
	PredictionPath string
	TruthPath      string
}

// Load reads and validates a manifest from a YAML file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	return &m, nil
}

// validKinds are the accepted encoding kind names.
var validKinds = map[string]bool{
	string(mask.KindBool):  true,
	string(mask.KindInt):   true,
	string(mask.KindGray):  true,
	string(mask.KindClass): true,
}

// Validate checks that the manifest is internally consistent. It does
// not touch the filesystem; missing mask files surface per sample at
// evaluation time.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Encoding.Kind == "" {
		return fmt.Errorf("encoding.kind is required")
	}
	if !validKinds[m.Encoding.Kind] {
		return fmt.Errorf("unknown encoding.kind %q", m.Encoding.Kind)
	}
	if len(m.Samples) == 0 && m.SamplesCSV == "" {
		return fmt.Errorf("either samples or samples_csv is required")
	}
	if len(m.Samples) > 0 && m.SamplesCSV != "" {
		return fmt.Errorf("samples and samples_csv are mutually exclusive")
	}
	if m.SamplesCSVRange != [2]int{} {
		if m.SamplesCSV == "" {
			return fmt.Errorf("samples_csv_range requires samples_csv")
		}
		if m.SamplesCSVRange[0] <= 0 || m.SamplesCSVRange[1] <= 0 {
			return fmt.Errorf("samples_csv_range: both bounds must be > 0, got [%d, %d]",
				m.SamplesCSVRange[0], m.SamplesCSVRange[1])
		}
		if m.SamplesCSVRange[0] > m.SamplesCSVRange[1] {
			return fmt.Errorf("samples_csv_range: start (%d) must be <= end (%d)",
				m.SamplesCSVRange[0], m.SamplesCSVRange[1])
		}
	}
	if m.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %g", m.Tolerance)
	}
	if m.Workers < 0 {
		return fmt.Errorf("max_workers must be >= 0, got %d", m.Workers)
	}
	for metric, r := range m.ExpectedRanges {
		if r[0] > r[1] {
			return fmt.Errorf("expected_ranges.%s: lo (%g) must be <= hi (%g)", metric, r[0], r[1])
		}
		if r[0] < 0 || r[1] > 1 {
			return fmt.Errorf("expected_ranges.%s: bounds must be within [0, 1], got [%g, %g]", metric, r[0], r[1])
		}
	}
	seen := make(map[string]bool)
	for i, ms := range m.Models {
		if ms.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if ms.Predictions == "" {
			return fmt.Errorf("models[%d] (%s): predictions pattern is required", i, ms.Name)
		}
		if seen[ms.Name] {
			return fmt.Errorf("duplicate model name %q", ms.Name)
		}
		seen[ms.Name] = true
	}
	return nil
}

// Model returns the named model spec.
func (m *Manifest) Model(name string) (ModelSpec, bool) {
	for _, ms := range m.Models {
		if ms.Name == name {
			return ms, true
		}
	}
	return ModelSpec{}, false
}

// ModelNames returns the configured model names in declaration order.
func (m *Manifest) ModelNames() []string {
	names := make([]string, 0, len(m.Models))
	for _, ms := range m.Models {
		names = append(names, ms.Name)
	}
	return names
}

// ResolveModel maps a requested model name to the effective one: an
// explicit name must exist, a single declared model is selected
// automatically, several declared models require a choice, and no
// declared models resolve to "".
func (m *Manifest) ResolveModel(model string) (string, error) {
	switch {
	case model != "":
		if _, ok := m.Model(model); !ok {
			return "", fmt.Errorf("dataset %s: no model named %q (have %v)", m.Name, model, m.ModelNames())
		}
		return model, nil
	case len(m.Models) == 1:
		return m.Models[0].Name, nil
	case len(m.Models) > 1:
		return "", fmt.Errorf("dataset %s: %d models configured, select one", m.Name, len(m.Models))
	}
	return "", nil
}

// Pairs resolves every sample into concrete prediction/truth file
// paths. baseDir is the manifest directory; relative paths and CSV
// listings resolve against it. model selects a prediction set when
// the manifest declares several; with a single declared model it may
// be empty.
func (m *Manifest) Pairs(baseDir, model string) ([]Pair, error) {
	samples := m.Samples
	if m.SamplesCSV != "" {
		csvPath := utils.ResolvePath(m.SamplesCSV, baseDir)
		var rows []Row
		var err error
		if m.SamplesCSVRange != [2]int{} {
			rows, err = LoadCSVRange(csvPath, m.SamplesCSVRange[0], m.SamplesCSVRange[1])
		} else {
			rows, err = LoadCSV(csvPath)
		}
		if err != nil {
			return nil, err
		}
		samples, err = PairsFromRows(rows)
		if err != nil {
			return nil, err
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset %s: no samples configured", m.Name)
	}

	modelName, err := m.ResolveModel(model)
	if err != nil {
		return nil, err
	}
	predPattern := ""
	if modelName != "" {
		spec, _ := m.Model(modelName)
		predPattern = spec.Predictions
	}

	seen := make(map[string]bool, len(samples))
	pairs := make([]Pair, 0, len(samples))
	for _, s := range samples {
		if s.ID == "" {
			return nil, fmt.Errorf("dataset %s: sample with empty id", m.Name)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("dataset %s: duplicate sample id %q", m.Name, s.ID)
		}
		seen[s.ID] = true

		ctx := &template.Context{
			SampleID: s.ID,
			Dataset:  m.Name,
			Model:    modelName,
			Vars:     mergeVars(m.Inputs, s.Vars),
		}

		pred := s.Prediction
		if pred == "" {
			pred = predPattern
		}
		if pred == "" {
			return nil, fmt.Errorf("sample %s: no prediction path and no model pattern", s.ID)
		}
		pred, err := template.Render(pred, ctx)
		if err != nil {
			return nil, fmt.Errorf("sample %s: prediction: %w", s.ID, err)
		}

		truth := s.Truth
		if truth == "" {
			truth = m.TruthPattern
		}
		if truth == "" {
			return nil, fmt.Errorf("sample %s: no truth path and no truth_pattern", s.ID)
		}
		truth, err = template.Render(truth, ctx)
		if err != nil {
			return nil, fmt.Errorf("sample %s: truth: %w", s.ID, err)
		}

		pairs = append(pairs, Pair{
			ID:             s.ID,
			PredictionPath: utils.ResolvePath(pred, baseDir),
			TruthPath:      utils.ResolvePath(truth, baseDir),
		})
	}

	return pairs, nil
}

// mergeVars layers sample vars over manifest inputs; sample values win.
func mergeVars(inputs, vars map[string]string) map[string]string {
	merged := make(map[string]string, len(inputs)+len(vars))
	for k, v := range inputs {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return merged
}
