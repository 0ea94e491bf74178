package utils

import "path/filepath"

// ResolvePath resolves a single path relative to a base directory.
// Absolute paths are returned unchanged. Manifest-relative paths
// (prediction dirs, ground-truth dirs, cache locations) all go
// through here so the rule stays in one place.
func ResolvePath(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
