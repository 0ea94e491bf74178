// Package discovery finds evaluation datasets under a directory tree by
// walking for eval.yaml manifests.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFilename is the file name that marks a dataset directory.
const ManifestFilename = "eval.yaml"

// DiscoveredDataset represents a dataset found during directory traversal.
type DiscoveredDataset struct {
	Name         string // name from the manifest, falling back to the directory name
	ManifestPath string // absolute path to eval.yaml
	Dir          string // absolute path to the dataset directory
	ParseErr     string // non-empty when the manifest could not be read
}

// OK reports whether the manifest parsed far enough to be usable.
func (d DiscoveredDataset) OK() bool {
	return d.ParseErr == ""
}

// Discover walks the given root directory and finds all dataset
// manifests. Hidden directories and dependency directories
// (node_modules, vendor) are skipped.
func Discover(root string) ([]DiscoveredDataset, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root path: %w", err)
	}

	// Verify root exists before walking
	if _, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}

	var datasets []DiscoveredDataset

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}

		// Skip hidden directories, but not the root itself when the
		// caller points directly at one.
		if d.IsDir() && path != absRoot && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}

		// Skip node_modules and similar
		if d.IsDir() && (d.Name() == "node_modules" || d.Name() == "vendor") {
			return fs.SkipDir
		}

		if !d.IsDir() && d.Name() == ManifestFilename {
			dir := filepath.Dir(path)
			name, parseErr := manifestName(path)
			if name == "" {
				name = filepath.Base(dir)
			}

			datasets = append(datasets, DiscoveredDataset{
				Name:         name,
				ManifestPath: path,
				Dir:          dir,
				ParseErr:     parseErr,
			})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory %s: %w", absRoot, err)
	}

	return datasets, nil
}

// manifestName reads only the name field from a manifest file. Full
// validation is left to dataset.Load; discovery listings should still
// show broken manifests.
func manifestName(path string) (string, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err.Error()
	}

	var doc struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Sprintf("parsing manifest: %v", err)
	}
	return doc.Name, ""
}

// FilterOK returns only datasets whose manifest parsed.
func FilterOK(datasets []DiscoveredDataset) []DiscoveredDataset {
	var result []DiscoveredDataset
	for _, d := range datasets {
		if d.OK() {
			result = append(result, d)
		}
	}
	return result
}

// FilterBroken returns only datasets whose manifest failed to parse.
func FilterBroken(datasets []DiscoveredDataset) []DiscoveredDataset {
	var result []DiscoveredDataset
	for _, d := range datasets {
		if !d.OK() {
			result = append(result, d)
		}
	}
	return result
}

// FilterByName returns datasets whose name matches any of the glob
// patterns. An empty pattern list matches everything.
func FilterByName(datasets []DiscoveredDataset, patterns []string) ([]DiscoveredDataset, error) {
	if len(patterns) == 0 {
		return datasets, nil
	}

	var result []DiscoveredDataset
	for _, d := range datasets {
		for _, p := range patterns {
			ok, err := filepath.Match(p, d.Name)
			if err != nil {
				return nil, fmt.Errorf("bad name pattern %q: %w", p, err)
			}
			if ok {
				result = append(result, d)
				break
			}
		}
	}
	return result, nil
}
