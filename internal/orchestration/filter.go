package orchestration

import (
	"fmt"
	"path/filepath"

	"github.com/pavise/maskeval/internal/dataset"
)

// FilterPairs returns the subset of pairs whose sample id matches at
// least one of the given glob patterns. An empty patterns slice returns
// all pairs unchanged.
func FilterPairs(pairs []dataset.Pair, patterns []string) ([]dataset.Pair, error) {
	if len(patterns) == 0 {
		return pairs, nil
	}

	var matched []dataset.Pair
	for _, pair := range pairs {
		ok, err := matchesAny(pair.ID, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, pair)
		}
	}
	return matched, nil
}

// matchesAny reports whether a sample id matches any pattern.
func matchesAny(id string, patterns []string) (bool, error) {
	for _, p := range patterns {
		ok, err := filepath.Match(p, id)
		if err != nil {
			return false, fmt.Errorf("invalid sample filter pattern %q: %w", p, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
