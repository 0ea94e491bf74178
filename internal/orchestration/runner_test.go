package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavise/maskeval/internal/checks"
	"github.com/pavise/maskeval/internal/config"
	"github.com/pavise/maskeval/internal/dataset"
	"github.com/pavise/maskeval/internal/models"
)

func TestWorkerCount_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		option   int
		cfg      int
		manifest int
		expected int
	}{
		{
			name:     "option wins over everything",
			option:   8,
			cfg:      3,
			manifest: 2,
			expected: 8,
		},
		{
			name:     "config wins over manifest",
			cfg:      3,
			manifest: 2,
			expected: 3,
		},
		{
			name:     "manifest wins over default",
			manifest: 2,
			expected: 2,
		},
		{
			name:     "default when nothing set",
			expected: defaultWorkers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewEvalConfig(nil, config.WithWorkers(tt.cfg))
			var opts []RunnerOption
			if tt.option > 0 {
				opts = append(opts, WithWorkers(tt.option))
			}
			r := NewRunner(cfg, opts...)
			m := &dataset.Manifest{Workers: tt.manifest}
			assert.Equal(t, tt.expected, r.workerCount(m))
		})
	}
}

func TestConcurrent_Selection(t *testing.T) {
	cfg := config.NewEvalConfig(nil)

	r := NewRunner(cfg)
	assert.False(t, r.concurrent(&dataset.Manifest{}), "sequential by default")
	assert.True(t, r.concurrent(&dataset.Manifest{Parallel: true}), "manifest opts in")

	r = NewRunner(cfg, WithWorkers(2))
	assert.True(t, r.concurrent(&dataset.Manifest{}), "worker override forces concurrency")

	r = NewRunner(cfg, WithWorkers(1))
	assert.False(t, r.concurrent(&dataset.Manifest{}), "a single worker stays sequential")
}

func TestAnnotate_StampsSampleAndSide(t *testing.T) {
	findings := []models.Finding{
		{Severity: models.SeverityWarning, Message: "category \"0\" has no pixels"},
		{Severity: models.SeverityInfo, Message: "unusual names"},
	}

	out := annotate(findings, "tile-042", "prediction")

	assert.Len(t, out, 2)
	for _, f := range out {
		assert.Equal(t, "tile-042", f.Sample)
	}
	assert.Equal(t, "prediction: category \"0\" has no pixels", out[0].Message)
	assert.Equal(t, "prediction: unusual names", out[1].Message)
}

func TestCrossCheckTolerance_ManifestOverridesDefault(t *testing.T) {
	assert.Equal(t, 0.001, crossCheckTolerance(&dataset.Manifest{Tolerance: 0.001}))
	assert.Equal(t, checks.DefaultCrossCheckTolerance, crossCheckTolerance(&dataset.Manifest{}))
}

func TestHasExplicitThreshold(t *testing.T) {
	with := &dataset.Manifest{Encoding: dataset.EncodingSpec{
		Kind:   "intensity",
		Params: map[string]any{"threshold": 127},
	}}
	without := &dataset.Manifest{Encoding: dataset.EncodingSpec{Kind: "intensity"}}

	assert.True(t, hasExplicitThreshold(with))
	assert.False(t, hasExplicitThreshold(without))
}

func TestRangeOverrides(t *testing.T) {
	assert.Nil(t, rangeOverrides(&dataset.Manifest{}), "no overrides declared")

	m := &dataset.Manifest{ExpectedRanges: map[string][2]float64{
		"iou": {0.2, 0.9},
	}}
	out := rangeOverrides(m)
	assert.Equal(t, map[string]checks.Range{"iou": {Lo: 0.2, Hi: 0.9}}, out)
}
