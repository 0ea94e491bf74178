package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavise/maskeval/internal/models"
)

func resetCompareGlobals() {
	compareOutputFormat = "table"
}

// createReportFile writes a Report to a temp JSON file.
func createReportFile(t *testing.T, dir string, name string, report *models.Report) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, report.Save(p))
	return p
}

// sampleReport builds a fully scored report with one sample per IoU value.
// Dice and accuracy mirror the IoU so deltas are easy to reason about.
func sampleReport(model string, ious ...float64) *models.Report {
	samples := make([]models.SampleResult, 0, len(ious))
	for i, iou := range ious {
		samples = append(samples, models.SampleResult{
			ID:      fmt.Sprintf("tile-%03d", i+1),
			Status:  models.StatusScored,
			Metrics: &models.SampleMetrics{IoU: iou, Dice: iou, Accuracy: iou},
		})
	}
	r := &models.Report{
		Dataset:   "test-roads",
		Model:     model,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Samples:   samples,
		Aggregates: map[string]models.Aggregate{
			"iou":      models.NewAggregate(ious),
			"dice":     models.NewAggregate(ious),
			"accuracy": models.NewAggregate(ious),
		},
	}
	r.ComputeDigest(1000 * time.Millisecond)
	return r
}

// ---------------------------------------------------------------------------
// Argument validation
// ---------------------------------------------------------------------------

func TestCompareCommand_RequiresAtLeastTwoArgs(t *testing.T) {
	resetCompareGlobals()

	tests := []struct {
		name string
		args []string
	}{
		{"no args", []string{}},
		{"one arg", []string{"one.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newCompareCommand()
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			assert.Error(t, err)
		})
	}
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

func TestCompareCommand_MissingFile(t *testing.T) {
	resetCompareGlobals()

	cmd := newCompareCommand()
	cmd.SetArgs([]string{"nonexistent1.json", "nonexistent2.json"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestCompareCommand_InvalidJSON(t *testing.T) {
	resetCompareGlobals()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{invalid"), 0o644))

	good := createReportFile(t, dir, "good.json", sampleReport("unet-v2", 0.8))

	cmd := newCompareCommand()
	cmd.SetArgs([]string{good, bad})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestCompareCommand_InvalidFormat(t *testing.T) {
	resetCompareGlobals()

	dir := t.TempDir()
	f1 := createReportFile(t, dir, "r1.json", sampleReport("unet-v2", 0.8))
	f2 := createReportFile(t, dir, "r2.json", sampleReport("unet-v3", 0.9))

	cmd := newCompareCommand()
	cmd.SetArgs([]string{f1, f2, "--format", "xml"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

// ---------------------------------------------------------------------------
// Table output
// ---------------------------------------------------------------------------

func TestCompareCommand_TableOutput(t *testing.T) {
	resetCompareGlobals()

	dir := t.TempDir()
	f1 := createReportFile(t, dir, "r1.json", sampleReport("unet-v2", 0.70, 0.80, 0.90))
	f2 := createReportFile(t, dir, "r2.json", sampleReport("unet-v3", 0.90, 0.95, 1.00))

	cmd := newCompareCommand()
	cmd.SetArgs([]string{f1, f2})

	var err error
	out := captureStdout(t, func() {
		err = cmd.Execute()
	})
	require.NoError(t, err)

	assert.Contains(t, out, " COMPARISON REPORT")
	assert.Contains(t, out, " AGGREGATE")
	assert.Contains(t, out, " PER-SAMPLE DELTAS (IoU)")
	assert.Contains(t, out, " SIGNIFICANCE")
	assert.Contains(t, out, " BASELINE IMPROVEMENT")
	assert.Contains(t, out, " RECOMMENDATION")
	assert.Contains(t, out, "unet-v2")
	assert.Contains(t, out, "unet-v3")
	assert.Contains(t, out, "tile-001")
}

// ---------------------------------------------------------------------------
// JSON output
// ---------------------------------------------------------------------------

func TestCompareCommand_JSONOutput(t *testing.T) {
	resetCompareGlobals()

	dir := t.TempDir()
	f1 := createReportFile(t, dir, "r1.json", sampleReport("unet-v2", 0.70, 0.80, 0.90))
	f2 := createReportFile(t, dir, "r2.json", sampleReport("unet-v3", 0.90, 0.95, 1.00))

	cmd := newCompareCommand()
	cmd.SetArgs([]string{f1, f2, "--format", "json"})

	var err error
	out := captureStdout(t, func() {
		err = cmd.Execute()
	})
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))

	files, ok := result["files"].([]any)
	require.True(t, ok)
	assert.Len(t, files, 2)
	assert.InDelta(t, 0.15, result["mean_iou_delta"].(float64), 0.001)

	sig, ok := result["significance"].(map[string]any)
	require.True(t, ok, "two fully paired runs should produce a significance block")
	assert.Equal(t, float64(3), sig["paired_count"])

	assert.NotNil(t, result["baseline"])
	assert.NotNil(t, result["recommendation"])
}

// ---------------------------------------------------------------------------
// Three-way compare
// ---------------------------------------------------------------------------

func TestCompareCommand_ThreeFiles(t *testing.T) {
	resetCompareGlobals()

	dir := t.TempDir()
	f1 := createReportFile(t, dir, "r1.json", sampleReport("unet-v1", 0.60, 0.70))
	f2 := createReportFile(t, dir, "r2.json", sampleReport("unet-v2", 0.75, 0.85))
	f3 := createReportFile(t, dir, "r3.json", sampleReport("unet-v3", 0.90, 0.95))

	cmd := newCompareCommand()
	cmd.SetArgs([]string{f1, f2, f3})

	var err error
	out := captureStdout(t, func() {
		err = cmd.Execute()
	})
	require.NoError(t, err)

	// Deltas run last minus first; three-way compares skip the baseline.
	assert.Contains(t, out, "unet-v1")
	assert.Contains(t, out, "unet-v3")
	assert.NotContains(t, out, " BASELINE IMPROVEMENT")
}

// ---------------------------------------------------------------------------
// Report building logic
// ---------------------------------------------------------------------------

func TestBuildComparisonReport_Deltas(t *testing.T) {
	resetCompareGlobals()

	r1 := sampleReport("unet-v2", 0.70, 0.80, 0.90)
	r2 := sampleReport("unet-v3", 0.90, 0.95, 1.00)

	report := buildComparisonReport(
		[]string{"r1.json", "r2.json"},
		[]*models.Report{r1, r2},
	)

	assert.Len(t, report.Files, 2)
	assert.Equal(t, "unet-v2", report.Models[0])
	assert.Equal(t, "unet-v3", report.Models[1])
	assert.InDelta(t, 0.15, report.IoUDelta, 0.001)
	// 0.15 gained out of the 0.20 headroom above mean IoU 0.80
	assert.InDelta(t, 0.75, report.IoUGain, 0.001)
	assert.InDelta(t, 0.0, report.SuccessRDelta, 0.001)

	require.Len(t, report.SampleDeltas, 3)
	assert.Equal(t, "tile-001", report.SampleDeltas[0].SampleID)
	assert.InDelta(t, 0.20, float64(report.SampleDeltas[0].IoUDelta), 0.001)

	require.NotNil(t, report.Baseline)
	assert.Greater(t, report.Baseline.Improvement, 0.0)

	require.NotNil(t, report.Recommendation)
	assert.Equal(t, "unet-v3", report.Recommendation.RecommendedModel)
}

func TestBuildComparisonReport_MissingSample(t *testing.T) {
	resetCompareGlobals()

	r1 := sampleReport("unet-v2", 0.80)
	r2 := sampleReport("unet-v3", 0.90)
	// Extra sample only the second run scored
	r2.Samples = append(r2.Samples, models.SampleResult{
		ID:      "tile-099",
		Status:  models.StatusScored,
		Metrics: &models.SampleMetrics{IoU: 0.5, Dice: 0.5, Accuracy: 0.5},
	})

	report := buildComparisonReport(
		[]string{"r1.json", "r2.json"},
		[]*models.Report{r1, r2},
	)

	require.Len(t, report.SampleDeltas, 2)
	// The extra sample should show as n/a for file 1
	extra := report.SampleDeltas[1]
	assert.Equal(t, "tile-099", extra.SampleID)
	assert.Equal(t, "n/a", extra.Statuses[0])
	assert.True(t, math.IsNaN(float64(extra.IoUs[0])))
	assert.True(t, math.IsNaN(float64(extra.IoUDelta)))
}

func TestBuildComparisonReport_FailedSampleIsNaN(t *testing.T) {
	resetCompareGlobals()

	r1 := sampleReport("unet-v2", 0.80, 0.85)
	r1.Samples[1] = models.SampleResult{
		ID:     "tile-002",
		Status: models.StatusFailed,
		Error:  "loading prediction: file does not exist",
	}
	r2 := sampleReport("unet-v3", 0.90, 0.95)

	report := buildComparisonReport(
		[]string{"r1.json", "r2.json"},
		[]*models.Report{r1, r2},
	)

	require.Len(t, report.SampleDeltas, 2)
	failed := report.SampleDeltas[1]
	assert.Equal(t, "failed", failed.Statuses[0])
	assert.True(t, math.IsNaN(float64(failed.IoUs[0])))
	assert.False(t, math.IsNaN(float64(failed.IoUs[1])))
}

func TestComputeSignificance_TooFewPairs(t *testing.T) {
	deltas := []sampleComparison{
		{SampleID: "tile-001", IoUs: []jsonFloat{0.8, 0.9}},
		{SampleID: "tile-002", IoUs: []jsonFloat{jsonFloat(math.NaN()), 0.9}},
	}
	assert.Nil(t, computeSignificance(deltas, 2), "one honest pair is not enough")
}

func TestJSONFloat_NaNMarshalsAsNull(t *testing.T) {
	data, err := json.Marshal(jsonFloat(math.NaN()))
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	data, err = json.Marshal(jsonFloat(0.75))
	require.NoError(t, err)
	assert.Equal(t, "0.75", string(data))
}

func TestModelLabel(t *testing.T) {
	named := sampleReport("unet-v2", 0.8)
	assert.Equal(t, "unet-v2", modelLabel(named, "r1.json"))

	unnamed := sampleReport("", 0.8)
	assert.Equal(t, "r1.json", modelLabel(unnamed, "r1.json"))
}

// ---------------------------------------------------------------------------
// Root command wiring
// ---------------------------------------------------------------------------

func TestRootCommand_HasCompareSubcommand(t *testing.T) {
	root := newRootCommand()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "compare" {
			found = true
			break
		}
	}
	assert.True(t, found, "root command should have 'compare' subcommand")
}

// ---------------------------------------------------------------------------
// Flag parsing
// ---------------------------------------------------------------------------

func TestCompareCommand_FormatFlagParsed(t *testing.T) {
	cmd := newCompareCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--format", "json"}))

	val, err := cmd.Flags().GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "json", val)
}

func TestCompareCommand_ShortFormatFlag(t *testing.T) {
	cmd := newCompareCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-f", "json"}))

	val, err := cmd.Flags().GetString("format")
	require.NoError(t, err)
	assert.Equal(t, "json", val)
}
