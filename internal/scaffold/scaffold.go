// Package scaffold provides shared template functions for generating the
// dataset skeletons created by maskeval init.
package scaffold

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var kebabCase = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateName rejects empty names, names with path-traversal characters,
// and names that are not kebab-case.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name must not be empty")
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.Contains(cleaned, "/") || strings.Contains(cleaned, "\\") {
		return fmt.Errorf("dataset name %q contains invalid path characters", name)
	}
	if !kebabCase.MatchString(name) {
		return fmt.Errorf("dataset name %q must be kebab-case (lowercase letters, digits, hyphens)", name)
	}
	return nil
}

// TitleCase converts a kebab-case name to Title Case.
func TitleCase(s string) string {
	words := strings.Split(s, "-")
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// EvalYAML returns a default eval.yaml for the given dataset. The params
// block follows the encoding kind: intensity masks get a threshold,
// categorical masks get the category list, bool and smallint need none.
func EvalYAML(name, description, kind string, threshold int, categories []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", name)
	if description != "" {
		fmt.Fprintf(&b, "description: %s\n", description)
	}
	b.WriteString("encoding:\n")
	fmt.Fprintf(&b, "  kind: %s\n", kind)
	switch kind {
	case "intensity":
		b.WriteString("  params:\n")
		fmt.Fprintf(&b, "    threshold: %d\n", threshold)
	case "categorical":
		b.WriteString("  params:\n")
		b.WriteString("    categories:\n")
		for _, c := range categories {
			fmt.Fprintf(&b, "      - %s\n", c)
		}
	}
	b.WriteString(`truth_pattern: truth/{{.SampleID}}.png
models:
  - name: model-a
    predictions: preds/{{.SampleID}}.png
expected_ranges:
  iou: [0.30, 0.95]
  dice: [0.40, 0.97]
samples:
  - id: sample-001
`)
	return b.String()
}

// ReadmeCard returns the dataset card written to README.md. The relative
// links are what maskeval dev links verifies.
func ReadmeCard(name, description, kind string) string {
	return fmt.Sprintf(`# %s

%s

## Layout

- [eval.yaml](eval.yaml) declares the %s encoding, the sample list, and
  the expected metric ranges.
- Model outputs go under [preds/](preds/), reference masks under
  [truth/](truth/), one PNG per sample id.

## Running

`+"```bash"+`
maskeval run eval.yaml
maskeval check .
`+"```"+`

## Notes

Record labeling conventions here: what counts as foreground, which pixel
values appear in the masks, and any preprocessing applied to the source
imagery.
`, TitleCase(name), description, kind)
}

// CIWorkflow returns a GitHub Actions workflow that evaluates the dataset
// on pull requests and fails the build on error findings.
func CIWorkflow(name string) string {
	return fmt.Sprintf(`name: Evaluate %s

on:
  pull_request:
    branches: [main]

permissions:
  contents: read

jobs:
  evaluate:
    name: Run Evaluation
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4

      - uses: actions/setup-go@v5
        with:
          go-version: "1.26"

      - name: Install maskeval
        run: go install github.com/pavise/maskeval/cmd/maskeval@latest

      - name: Evaluate
        run: |
          maskeval run eval.yaml --junit results/junit.xml --fail-on error

      - uses: actions/upload-artifact@v4
        if: always()
        with:
          name: evaluation-results
          path: results/
`, TitleCase(name))
}

// Gitignore returns the default .gitignore for a scaffolded dataset.
func Gitignore() string {
	return `results/
.maskeval-cache/
`
}
