package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavise/maskeval/internal/dataset"
)

func samplePairs() []dataset.Pair {
	return []dataset.Pair{
		{ID: "road-001"},
		{ID: "road-002"},
		{ID: "building-001"},
		{ID: "water-001"},
	}
}

func TestFilterPairs_NoPatterns(t *testing.T) {
	pairs := samplePairs()
	result, err := FilterPairs(pairs, nil)
	require.NoError(t, err)
	assert.Len(t, result, 4, "empty patterns should return all pairs")
}

func TestFilterPairs_ExactID(t *testing.T) {
	pairs := samplePairs()
	result, err := FilterPairs(pairs, []string{"building-001"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "building-001", result[0].ID)
}

func TestFilterPairs_GlobPattern(t *testing.T) {
	pairs := samplePairs()
	result, err := FilterPairs(pairs, []string{"road-*"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "road-001", result[0].ID)
	assert.Equal(t, "road-002", result[1].ID)
}

func TestFilterPairs_MultiplePatterns(t *testing.T) {
	pairs := samplePairs()
	result, err := FilterPairs(pairs, []string{"water-*", "road-001"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "road-001", result[0].ID)
	assert.Equal(t, "water-001", result[1].ID)
}

func TestFilterPairs_NoMatch(t *testing.T) {
	pairs := samplePairs()
	result, err := FilterPairs(pairs, []string{"bridge-*"})
	require.NoError(t, err)
	assert.Len(t, result, 0)
}

func TestFilterPairs_InvalidPattern(t *testing.T) {
	pairs := samplePairs()
	_, err := FilterPairs(pairs, []string{"["})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sample filter pattern")
}

func TestFilterPairs_SingleCharGlob(t *testing.T) {
	pairs := samplePairs()
	result, err := FilterPairs(pairs, []string{"road-00?"})
	require.NoError(t, err)
	assert.Len(t, result, 2, "? should match a single character in ids")
}
