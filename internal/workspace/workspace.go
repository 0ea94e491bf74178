// Package workspace provides dataset workspace detection for maskeval
// commands. It analyzes directory structures to identify single-dataset or
// multi-dataset roots and locates eval.yaml manifests using a priority-based
// search.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContextType represents the type of workspace detected.
type ContextType int

const (
	ContextNone          ContextType = iota
	ContextSingleDataset             // CWD is inside a single dataset directory
	ContextMultiDataset              // Workspace contains multiple datasets
)

// manifestName is the file that marks a dataset directory.
const manifestName = "eval.yaml"

// maxParentWalk is the maximum number of parent directories to walk up when searching.
const maxParentWalk = 10

// DetectOption configures workspace detection behavior.
type DetectOption func(*detectOptions)

type detectOptions struct {
	datasetsDir string // subdirectory name for datasets (default "datasets")
}

func defaultDetectOptions() detectOptions {
	return detectOptions{datasetsDir: "datasets"}
}

// WithDatasetsDir overrides the datasets subdirectory name used during detection.
func WithDatasetsDir(dir string) DetectOption {
	return func(o *detectOptions) {
		if dir != "" {
			o.datasetsDir = dir
		}
	}
}

// DatasetInfo holds information about a discovered dataset.
type DatasetInfo struct {
	Name         string // dataset name from the manifest, or the directory name
	Dir          string // absolute path to the dataset directory
	ManifestPath string // absolute path to eval.yaml
}

// WorkspaceContext represents the detected workspace.
type WorkspaceContext struct {
	Type     ContextType
	Root     string        // workspace root directory
	Datasets []DatasetInfo // discovered datasets
}

// DetectContext analyzes the given directory to determine workspace type.
// It checks:
// 1. CWD for eval.yaml → single-dataset
// 2. Walk up parents for eval.yaml → single-dataset (nested inside dataset dir)
// 3. Check for datasets/ directory with eval.yaml children → multi-dataset
// 4. Scan CWD for child dirs containing eval.yaml → multi-dataset
func DetectContext(dir string, opts ...DetectOption) (*WorkspaceContext, error) {
	o := defaultDetectOptions()
	for _, fn := range opts {
		fn(&o)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	fi, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("workspace directory: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("workspace path %s is not a directory", absDir)
	}

	// 1. Check if eval.yaml exists in the given directory
	if info, ok := tryParseDataset(absDir); ok {
		return &WorkspaceContext{
			Type:     ContextSingleDataset,
			Root:     absDir,
			Datasets: []DatasetInfo{info},
		}, nil
	}

	// 2. Walk up parent directories looking for eval.yaml
	current := absDir
	for i := 0; i < maxParentWalk; i++ {
		parent := filepath.Dir(current)
		if parent == current {
			break // reached filesystem root
		}
		current = parent

		if info, ok := tryParseDataset(current); ok {
			return &WorkspaceContext{
				Type:     ContextSingleDataset,
				Root:     current,
				Datasets: []DatasetInfo{info},
			}, nil
		}
	}

	// 3. Check for configured datasets subdirectory with eval.yaml children
	datasetsDir := filepath.Join(absDir, o.datasetsDir)
	if isDir(datasetsDir) {
		datasets := scanForDatasets(datasetsDir)
		if len(datasets) > 0 {
			return &WorkspaceContext{
				Type:     ContextMultiDataset,
				Root:     absDir,
				Datasets: datasets,
			}, nil
		}
	}

	// 4. Scan immediate children of dir for eval.yaml
	datasets := scanForDatasets(absDir)
	if len(datasets) > 0 {
		return &WorkspaceContext{
			Type:     ContextMultiDataset,
			Root:     absDir,
			Datasets: datasets,
		}, nil
	}

	// Nothing found
	return &WorkspaceContext{
		Type:     ContextNone,
		Root:     absDir,
		Datasets: nil,
	}, nil
}

// FindDataset locates a named dataset in the workspace.
func FindDataset(ctx *WorkspaceContext, name string) (*DatasetInfo, error) {
	if ctx == nil {
		return nil, fmt.Errorf("no workspace context")
	}
	for i := range ctx.Datasets {
		if ctx.Datasets[i].Name == name {
			return &ctx.Datasets[i], nil
		}
	}
	return nil, fmt.Errorf("dataset %q not found in workspace", name)
}

// FindManifest returns the eval.yaml path for a named dataset.
func FindManifest(ctx *WorkspaceContext, name string) (string, error) {
	di, err := FindDataset(ctx, name)
	if err != nil {
		return "", err
	}
	return di.ManifestPath, nil
}

// tryParseDataset checks if dir contains eval.yaml and reads the dataset name.
func tryParseDataset(dir string) (DatasetInfo, bool) {
	manifestPath := filepath.Join(dir, manifestName)
	if !isFile(manifestPath) {
		return DatasetInfo{}, false
	}

	name, err := parseDatasetName(manifestPath)
	if err != nil || name == "" {
		// Fall back to directory name when the manifest has no name
		name = filepath.Base(dir)
	}

	return DatasetInfo{
		Name:         name,
		Dir:          dir,
		ManifestPath: manifestPath,
	}, true
}

// scanForDatasets scans immediate child directories of parentDir for eval.yaml files.
func scanForDatasets(parentDir string) []DatasetInfo {
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		return nil
	}

	var datasets []DatasetInfo
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		childDir := filepath.Join(parentDir, entry.Name())
		if info, ok := tryParseDataset(childDir); ok {
			datasets = append(datasets, info)
		}
	}
	return datasets
}

// parseDatasetName reads only the manifest's name field so detection stays
// cheap and tolerant of manifests that would fail full validation.
func parseDatasetName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading manifest: %w", err)
	}

	var doc struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing eval.yaml: %w", err)
	}

	return strings.TrimSpace(doc.Name), nil
}

// isFile returns true if path exists and is a regular file.
func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// isDir returns true if path exists and is a directory.
func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// LooksLikePath returns true if the string appears to be a file path
// rather than a dataset name. Exported so that the CLI package can share
// the same heuristic without duplication.
func LooksLikePath(s string) bool {
	return strings.ContainsAny(s, `/\`) ||
		filepath.Ext(s) != "" ||
		s == "."
}
