package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavise/maskeval/internal/projectconfig"
)

// resetRunGlobals restores the package-level flag vars so prior tests don't leak.
func resetRunGlobals() {
	runDataDir = ""
	outputPath = ""
	verbose = false
	sampleFilters = nil
	parallel = false
	workers = 0
	interpret = false
	format = "text"
	junitPath = ""
	enableCache = false
	disableCache = false
	runCacheDir = projectconfig.DefaultCacheDir
	modelOverrides = nil
	publishReport = false
	publishURL = ""
	publishContainer = ""
	failOn = "error"
}

// silenceRunSpinner swaps the spinner starter for a no-op so runs stay
// quiet even when the test harness attaches a terminal.
func silenceRunSpinner(t *testing.T) {
	t.Helper()
	prev := startRunSpinner
	startRunSpinner = func(io.Writer, string, int) (tick, stop func()) {
		return func() {}, func() {}
	}
	t.Cleanup(func() { startRunSpinner = prev })
}

// writeMaskPNG writes an 8-bit grayscale PNG with the given pixels in
// row-major order.
func writeMaskPNG(t *testing.T, path string, width, height int, pixels []uint8) {
	t.Helper()
	require.Len(t, pixels, width*height)

	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

// createTestDataset writes a minimal intensity dataset in a temp dir: an
// eval.yaml manifest, one perfect sample, and one half-overlap sample.
// The batch scores cleanly with no findings, so a run exits zero. Returns
// the manifest path.
func createTestDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeMaskPNG(t, filepath.Join(dir, "preds", "tile-001.png"), 2, 2, []uint8{0, 0, 255, 255})
	writeMaskPNG(t, filepath.Join(dir, "truth", "tile-001.png"), 2, 2, []uint8{0, 0, 255, 255})
	writeMaskPNG(t, filepath.Join(dir, "preds", "tile-002.png"), 2, 2, []uint8{0, 255, 255, 0})
	writeMaskPNG(t, filepath.Join(dir, "truth", "tile-002.png"), 2, 2, []uint8{0, 0, 255, 255})

	manifest := `name: test-roads
encoding:
  kind: intensity
  params:
    threshold: 127
truth_pattern: "truth/{{.SampleID}}.png"
models:
  - name: unet-v2
    predictions: "preds/{{.SampleID}}.png"
samples:
  - id: tile-001
  - id: tile-002
`
	manifestPath := filepath.Join(dir, "eval.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))
	return manifestPath
}

// createPerfectDataset writes a dataset whose three samples all score a
// perfect 1.0 on every metric, which trips the plausibility validator.
func createPerfectDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	for _, id := range []string{"tile-001", "tile-002", "tile-003"} {
		writeMaskPNG(t, filepath.Join(dir, "preds", id+".png"), 2, 2, []uint8{0, 0, 255, 255})
		writeMaskPNG(t, filepath.Join(dir, "truth", id+".png"), 2, 2, []uint8{0, 0, 255, 255})
	}

	manifest := `name: too-good
encoding:
  kind: intensity
  params:
    threshold: 127
truth_pattern: "truth/{{.SampleID}}.png"
models:
  - name: unet-v2
    predictions: "preds/{{.SampleID}}.png"
samples:
  - id: tile-001
  - id: tile-002
  - id: tile-003
`
	manifestPath := filepath.Join(dir, "eval.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))
	return manifestPath
}

// ---------------------------------------------------------------------------
// Argument validation
// ---------------------------------------------------------------------------

func TestRunCommand_RejectsTwoArgs(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"a.yaml", "b.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	assert.Error(t, err, "expected error for two positional args")
}

// ---------------------------------------------------------------------------
// Flag parsing
// ---------------------------------------------------------------------------

func TestRunCommand_FlagsParsed(t *testing.T) {
	tmpData := filepath.Join(t.TempDir(), "data")
	tmpOut := filepath.Join(t.TempDir(), "out.json")

	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--data-dir", tmpData,
		"--output", tmpOut,
		"--verbose",
		"--fail-on", "warning",
	}))

	val, err := cmd.Flags().GetString("data-dir")
	require.NoError(t, err)
	assert.Equal(t, tmpData, val)

	val, err = cmd.Flags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, tmpOut, val)

	boolVal, err := cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	assert.True(t, boolVal)

	val, err = cmd.Flags().GetString("fail-on")
	require.NoError(t, err)
	assert.Equal(t, "warning", val)
}

func TestRunCommand_ShortFlags(t *testing.T) {
	tmpOut := filepath.Join(t.TempDir(), "out.json")

	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"-o", tmpOut,
		"-v",
	}))

	val, err := cmd.Flags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, tmpOut, val)

	boolVal, err := cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	assert.True(t, boolVal)
}

func TestRunCommand_ModelFlagParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--model", "unet-v2",
		"--model", "unet-v3",
	}))

	vals, err := cmd.Flags().GetStringArray("model")
	require.NoError(t, err)
	assert.Equal(t, []string{"unet-v2", "unet-v3"}, vals)
}

func TestRunCommand_CacheFlagsParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--cache", "--cache-dir", "/tmp/mc"}))

	boolVal, err := cmd.Flags().GetBool("cache")
	require.NoError(t, err)
	assert.True(t, boolVal)

	val, err := cmd.Flags().GetString("cache-dir")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/mc", val)
}

// ---------------------------------------------------------------------------
// Flag validation
// ---------------------------------------------------------------------------

func TestRunCommand_InvalidFailOn(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--fail-on", "sometimes", "eval.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --fail-on value")
}

func TestRunCommand_InvalidFormat(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--format", "xml", "eval.yaml"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

func TestRunCommand_MissingManifest(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nonexistent.yaml")})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load manifest")
}

func TestRunCommand_InvalidManifest(t *testing.T) {
	resetRunGlobals()

	dir := t.TempDir()
	badManifest := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badManifest, []byte("foo: [bar"), 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{badManifest})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load manifest")
}

// ---------------------------------------------------------------------------
// Full runs against a scored fixture dataset
// ---------------------------------------------------------------------------

func TestRunCommand_CleanRun(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath})

	// Suppress stdout/stderr noise during test
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	assert.NoError(t, err)
}

func TestRunCommand_VerboseRun(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--verbose"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	assert.NoError(t, err)
}

func TestRunCommand_OutputJSON(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)
	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--output", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.NoError(t, err)

	// Verify JSON output was written and is valid
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Greater(t, len(data), 0)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "test-roads", result["dataset"])
	assert.Equal(t, "unet-v2", result["model"])
}

func TestRunCommand_FormatJSON(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)

	var out bytes.Buffer
	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--format", "json"})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "test-roads", result["dataset"])

	digest, ok := result["digest"].(map[string]any)
	require.True(t, ok, "report should carry a digest")
	assert.Equal(t, float64(2), digest["total_samples"])
	assert.Equal(t, float64(2), digest["scored"])
}

func TestRunCommand_FormatMarkdown(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)

	var out bytes.Buffer
	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--format", "markdown"})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "## Mask Evaluation: test-roads")
	assert.Contains(t, out.String(), "iou")
}

func TestRunCommand_DataDirFlag(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	// Move the manifest away from the masks; --data-dir points back at them.
	manifestPath := createTestDataset(t)
	dataDir := filepath.Dir(manifestPath)

	movedManifest := filepath.Join(t.TempDir(), "eval.yaml")
	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(movedManifest, data, 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{movedManifest, "--data-dir", dataDir})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err = cmd.Execute()
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Sample filtering via --sample flag
// ---------------------------------------------------------------------------

func TestRunCommand_SampleFlagParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--sample", "tile-*",
		"--sample", "edge-042",
	}))

	vals, err := cmd.Flags().GetStringArray("sample")
	require.NoError(t, err)
	assert.Equal(t, []string{"tile-*", "edge-042"}, vals)
}

func TestRunCommand_SampleFilterRuns(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--sample", "tile-*"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	assert.NoError(t, err)
}

func TestRunCommand_SampleFilterNoMatch(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--sample", "nonexistent-*"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no samples found")
}

// ---------------------------------------------------------------------------
// Parallel evaluation via --parallel and --workers flags
// ---------------------------------------------------------------------------

func TestRunCommand_ParallelFlagParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--parallel", "--workers", "8"}))

	boolVal, err := cmd.Flags().GetBool("parallel")
	require.NoError(t, err)
	assert.True(t, boolVal)

	intVal, err := cmd.Flags().GetInt("workers")
	require.NoError(t, err)
	assert.Equal(t, 8, intVal)
}

func TestRunCommand_ParallelFlagDefaultWorkers(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--parallel"}))

	intVal, err := cmd.Flags().GetInt("workers")
	require.NoError(t, err)
	assert.Equal(t, 0, intVal, "workers should default to 0 (runner defaults to 4)")
}

func TestRunCommand_ParallelRun(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)
	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--parallel", "--workers", "2", "--output", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.NoError(t, err)

	// Verify a report was produced (proves the concurrent path ran)
	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Greater(t, len(data), 0)

	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "test-roads", result["dataset"])
}

// ---------------------------------------------------------------------------
// --interpret and --junit flags
// ---------------------------------------------------------------------------

func TestRunCommand_InterpretFlagParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--interpret"}))

	boolVal, err := cmd.Flags().GetBool("interpret")
	require.NoError(t, err)
	assert.True(t, boolVal)
}

func TestRunCommand_InterpretRun(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--interpret"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	assert.NoError(t, err)
}

func TestRunCommand_JUnitOutput(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)
	junitFile := filepath.Join(t.TempDir(), "junit.xml")

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--junit", junitFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.NoError(t, err)

	data, err := os.ReadFile(junitFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuite")
	assert.Contains(t, string(data), "tile-001")
}

// ---------------------------------------------------------------------------
// Caching
// ---------------------------------------------------------------------------

func TestRunCommand_CachedRerun(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	run := func() error {
		cmd := newRunCommand()
		cmd.SetArgs([]string{manifestPath, "--cache", "--cache-dir", cacheDir})
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		return cmd.Execute()
	}

	require.NoError(t, run())

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "first run should populate the cache")

	// Second run serves from cache and still succeeds.
	resetRunGlobals()
	require.NoError(t, run())
}

// ---------------------------------------------------------------------------
// Multi-model runs
// ---------------------------------------------------------------------------

func TestRunCommand_MultiModelPerModelOutput(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	dir := t.TempDir()
	for _, model := range []string{"preds-v2", "preds-v3"} {
		writeMaskPNG(t, filepath.Join(dir, model, "tile-001.png"), 2, 2, []uint8{0, 0, 255, 255})
		writeMaskPNG(t, filepath.Join(dir, model, "tile-002.png"), 2, 2, []uint8{0, 255, 255, 0})
	}
	writeMaskPNG(t, filepath.Join(dir, "truth", "tile-001.png"), 2, 2, []uint8{0, 0, 255, 255})
	writeMaskPNG(t, filepath.Join(dir, "truth", "tile-002.png"), 2, 2, []uint8{0, 0, 255, 255})

	manifest := `name: duel
encoding:
  kind: intensity
  params:
    threshold: 127
truth_pattern: "truth/{{.SampleID}}.png"
models:
  - name: unet-v2
    predictions: "preds-v2/{{.SampleID}}.png"
  - name: unet-v3
    predictions: "preds-v3/{{.SampleID}}.png"
samples:
  - id: tile-001
  - id: tile-002
`
	manifestPath := filepath.Join(dir, "eval.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	outFile := filepath.Join(t.TempDir(), "results.json")

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--output", outFile})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.NoError(t, err)

	// Multi-model runs save one report per model.
	base := filepath.Join(filepath.Dir(outFile), "results")
	for _, model := range []string{"unet-v2", "unet-v3"} {
		data, err := os.ReadFile(base + "_" + model + ".json")
		require.NoError(t, err, "expected a report for model %s", model)

		var result map[string]any
		require.NoError(t, json.Unmarshal(data, &result))
		assert.Equal(t, model, result["model"])
	}
}

// ---------------------------------------------------------------------------
// Exit code behavior
// ---------------------------------------------------------------------------

func TestRunCommand_ReturnsEvalFailedErrorOnFindings(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	// Every sample scoring a perfect 1.0 trips the plausibility validator.
	manifestPath := createPerfectDataset(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)

	var evalErr *EvalFailedError
	assert.True(t, errors.As(err, &evalErr), "expected EvalFailedError type")
	assert.Contains(t, err.Error(), "evaluation completed with")
}

func TestRunCommand_ReturnsEvalFailedErrorOnFailedSample(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createTestDataset(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(manifestPath), "preds", "tile-002.png")))

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)

	var evalErr *EvalFailedError
	assert.True(t, errors.As(err, &evalErr), "expected EvalFailedError type")
	assert.Contains(t, err.Error(), "failed sample(s)")
}

func TestRunCommand_FailOnNeverSuppressesFindings(t *testing.T) {
	resetRunGlobals()
	silenceRunSpinner(t)

	manifestPath := createPerfectDataset(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath, "--fail-on", "never"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	assert.NoError(t, err)
}

func TestRunCommand_ReturnsRegularErrorOnConfigFailure(t *testing.T) {
	resetRunGlobals()

	dir := t.TempDir()
	manifest := `name: bad-encoding
encoding:
  kind: hologram
samples:
  - id: tile-001
`
	manifestPath := filepath.Join(dir, "eval.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{manifestPath})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)

	// A config error is NOT an eval failure
	var evalErr *EvalFailedError
	assert.False(t, errors.As(err, &evalErr), "expected regular error, not EvalFailedError")
	assert.Contains(t, err.Error(), "unknown encoding.kind")
}

// ---------------------------------------------------------------------------
// Root command wiring
// ---------------------------------------------------------------------------

func TestRootCommand_HasRunSubcommand(t *testing.T) {
	root := newRootCommand()
	found := false
	for _, c := range root.Commands() {
		if c.Name() == "run" {
			found = true
			break
		}
	}
	assert.True(t, found, "root command should have 'run' subcommand")
}
