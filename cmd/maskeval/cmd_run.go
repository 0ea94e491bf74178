package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pavise/maskeval/internal/cache"
	"github.com/pavise/maskeval/internal/config"
	"github.com/pavise/maskeval/internal/dataset"
	"github.com/pavise/maskeval/internal/models"
	"github.com/pavise/maskeval/internal/orchestration"
	"github.com/pavise/maskeval/internal/projectconfig"
	"github.com/pavise/maskeval/internal/publish"
	"github.com/pavise/maskeval/internal/reporting"
	"github.com/pavise/maskeval/internal/spinner"
)

var (
	runDataDir       string
	outputPath       string
	verbose          bool
	sampleFilters    []string
	parallel         bool
	workers          int
	interpret        bool
	format           string
	junitPath        string
	enableCache      bool
	disableCache     bool
	runCacheDir      string
	modelOverrides   []string
	publishReport    bool
	publishURL       string
	publishContainer string
	failOn           string
)

// startRunSpinner is swapped out in tests so command runs stay silent.
var startRunSpinner = spinner.StartCount

// modelResult pairs a model name with its evaluation report.
type modelResult struct {
	modelName string
	report    *models.Report
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [eval.yaml | dataset-name]",
		Short: "Evaluate predicted masks against ground truth",
		Long: `Evaluate a dataset of predicted segmentation masks against ground truth.

The manifest defines the mask encoding, the sample list, and the expected
metric ranges. Mask files are loaded relative to the manifest directory
unless --data-dir overrides it.

With no arguments, uses workspace detection to find the dataset
automatically. A project-level .maskeval.yaml can supply defaults for
workers, caching, and expected metric ranges.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVar(&runDataDir, "data-dir", "", "Directory mask paths resolve against (default: manifest directory)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output JSON file for the report")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output with per-sample progress")
	cmd.Flags().StringArrayVar(&sampleFilters, "sample", nil, "Filter samples by id glob pattern (can be repeated)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Evaluate samples concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (default: 4, requires --parallel)")
	cmd.Flags().BoolVar(&interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, markdown")
	cmd.Flags().StringVar(&junitPath, "junit", "", "Write a JUnit XML report to this path")
	cmd.Flags().BoolVar(&enableCache, "cache", false, "Enable result caching")
	cmd.Flags().BoolVar(&disableCache, "no-cache", false, "Disable result caching even when the project config enables it")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", projectconfig.DefaultCacheDir, "Cache directory for storing results")
	cmd.Flags().StringArrayVar(&modelOverrides, "model", nil, "Model to evaluate (overrides the manifest, can be repeated for comparison)")
	cmd.Flags().BoolVar(&publishReport, "publish", false, "Upload the report to Azure Blob Storage after the run")
	cmd.Flags().StringVar(&publishURL, "publish-url", "", "Blob service URL for --publish (default: $MASKEVAL_PUBLISH_URL)")
	cmd.Flags().StringVar(&publishContainer, "publish-container", "", "Blob container for --publish (default: $MASKEVAL_PUBLISH_CONTAINER)")
	cmd.Flags().StringVar(&failOn, "fail-on", "error", "Exit nonzero on: error, warning, never")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	if failOn != "error" && failOn != "warning" && failOn != "never" {
		return fmt.Errorf("invalid --fail-on value %q: expected error, warning, or never", failOn)
	}
	if format != "text" && format != "json" && format != "markdown" {
		return fmt.Errorf("unknown output format: %s (supported: text, json, markdown)", format)
	}

	manifestPath, err := resolveManifestArg(args)
	if err != nil {
		return err
	}

	m, err := dataset.Load(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	// Project config supplies defaults; the manifest and CLI flags win.
	pc := loadProjectConfig(filepath.Dir(manifestPath))
	applyProjectDefaults(cmd, m, pc)

	// CLI flags override manifest config
	if parallel {
		m.Parallel = true
	}

	// Determine the list of models to evaluate
	modelsToRun := modelOverrides
	if len(modelsToRun) == 0 {
		modelsToRun = m.ModelNames()
	}
	if len(modelsToRun) == 0 {
		modelsToRun = []string{""}
	}
	multiModel := len(modelsToRun) > 1

	// Run evaluation for each model, collecting results
	var allResults []modelResult
	var lastErr error

	for _, modelName := range modelsToRun {
		report, err := runSingleModel(cmd, m, manifestPath, modelName, multiModel)
		if err != nil {
			var evalErr *EvalFailedError
			if errors.As(err, &evalErr) {
				// Eval failures are recorded but don't stop a multi-model run
				allResults = append(allResults, modelResult{modelName: modelName, report: report})
				lastErr = err
				continue
			}
			return err
		}
		allResults = append(allResults, modelResult{modelName: modelName, report: report})
	}

	// Print comparison table when multiple models were evaluated
	if multiModel && len(allResults) > 0 && format == "text" {
		printModelComparison(allResults)
	}

	// Save per-model results when --output is specified with multiple models
	if outputPath != "" && multiModel {
		ext := filepath.Ext(outputPath)
		base := strings.TrimSuffix(outputPath, ext)
		for _, mr := range allResults {
			if mr.report == nil {
				continue
			}
			perModelPath := fmt.Sprintf("%s_%s%s", base, sanitizeModelName(mr.modelName), ext)
			if err := mr.report.Save(perModelPath); err != nil {
				return fmt.Errorf("failed to save output for model %s: %w", mr.modelName, err)
			}
			fmt.Printf("Report saved to: %s\n", perModelPath)
		}
	}

	if lastErr != nil {
		return lastErr
	}

	return nil
}

// loadProjectConfig reads .maskeval.yaml starting from dir. Missing or
// broken project config never blocks a run.
func loadProjectConfig(dir string) *projectconfig.ProjectConfig {
	pc, err := projectconfig.Load(dir)
	if err != nil {
		return projectconfig.New()
	}
	return pc
}

// applyProjectDefaults fills manifest and flag gaps from the project
// config: expected ranges the manifest doesn't set, the default model,
// and worker/parallel/verbose defaults.
func applyProjectDefaults(cmd *cobra.Command, m *dataset.Manifest, pc *projectconfig.ProjectConfig) {
	for metric, bounds := range pc.Ranges {
		if m.ExpectedRanges == nil {
			m.ExpectedRanges = make(map[string][2]float64, len(pc.Ranges))
		}
		if _, ok := m.ExpectedRanges[metric]; !ok {
			m.ExpectedRanges[metric] = bounds
		}
	}

	if len(modelOverrides) == 0 && pc.Defaults.Model != "" {
		if _, ok := m.Model(pc.Defaults.Model); ok {
			modelOverrides = []string{pc.Defaults.Model}
		}
	}
	if !m.Parallel && pc.Defaults.Parallel != nil && *pc.Defaults.Parallel {
		m.Parallel = true
	}
	if workers == 0 && pc.Defaults.Workers > 0 {
		workers = pc.Defaults.Workers
	}
	if !verbose && pc.Defaults.Verbose != nil && *pc.Defaults.Verbose {
		verbose = true
	}
	if !m.StopOnError && pc.Defaults.FailFast != nil && *pc.Defaults.FailFast {
		m.StopOnError = true
	}

	if !enableCache && pc.Cache.Enabled != nil && *pc.Cache.Enabled {
		enableCache = true
	}
	if !cmd.Flags().Changed("cache-dir") && pc.Cache.Dir != "" {
		runCacheDir = pc.Cache.Dir
	}
}

// runSingleModel evaluates the dataset for one model and returns the report.
// It prints the per-model summary and saves output for single-model runs.
func runSingleModel(cmd *cobra.Command, m *dataset.Manifest, manifestPath, modelName string, multiModel bool) (*models.Report, error) {
	// Get manifest directory for resolving relative paths
	manifestDir := filepath.Dir(manifestPath)
	if !filepath.IsAbs(manifestDir) {
		absDir, err := filepath.Abs(manifestDir)
		if err == nil {
			manifestDir = absDir
		}
	}

	// Resolve data dir relative to CWD if given, else use the manifest dir
	dataDir := runDataDir
	if dataDir == "" {
		dataDir = manifestDir
	} else if !filepath.IsAbs(dataDir) {
		absDataDir, err := filepath.Abs(dataDir)
		if err == nil {
			dataDir = absDataDir
		}
	}

	cfgOpts := []config.Option{
		config.WithManifestPath(manifestPath),
		config.WithDataDir(dataDir),
		config.WithModel(modelName),
		config.WithVerbose(verbose),
		config.WithOutputPath(outputPath),
	}
	if workers > 0 {
		cfgOpts = append(cfgOpts, config.WithWorkers(workers))
	}
	cfg := config.NewEvalConfig(m, cfgOpts...)

	// Setup cache if enabled
	var resultCache *cache.Cache
	useCaching := enableCache && !disableCache

	if useCaching {
		absCacheDir, err := filepath.Abs(runCacheDir)
		if err != nil {
			return nil, fmt.Errorf("resolving cache directory: %w", err)
		}
		resultCache = cache.New(absCacheDir)
		if verbose {
			fmt.Printf("Cache enabled: %s\n", absCacheDir)
		}
	}

	// Create runner with optional sample filters and cache
	runnerOpts := []orchestration.RunnerOption{
		orchestration.WithSampleFilters(sampleFilters...),
	}
	if resultCache != nil {
		runnerOpts = append(runnerOpts, orchestration.WithCache(resultCache))
	}
	runner := orchestration.NewRunner(cfg, runnerOpts...)

	// Add progress listener: verbose detail, a counting spinner on a
	// TTY, or one line per sample everywhere else (CI logs).
	var stopSpinner func()
	switch {
	case verbose:
		runner.OnProgress(verboseProgressListener)
	case format == "text" && stdoutIsTerminal():
		stopSpinner = attachSpinnerListener(runner)
	case format == "text":
		runner.OnProgress(simpleProgressListener)
	}

	ctx := context.Background()

	if format == "text" {
		fmt.Printf("Evaluating dataset: %s\n", m.Name)
		fmt.Printf("Encoding: %s\n", m.Encoding.Kind)
		if modelName != "" {
			fmt.Printf("Model: %s\n", modelName)
		}
		if m.Parallel {
			w := cfg.Workers()
			if w <= 0 {
				w = m.Workers
			}
			if w <= 0 {
				w = projectconfig.DefaultWorkers
			}
			fmt.Printf("Parallel: %d workers\n", w)
		}
		fmt.Println()
	}

	report, err := runner.Run(ctx)
	if stopSpinner != nil {
		stopSpinner()
	}
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	// Print results based on format
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data)) //nolint:errcheck
	case "markdown":
		fmt.Fprint(cmd.OutOrStdout(), reporting.FormatMarkdownSummary(report)) //nolint:errcheck
	case "text":
		printSummary(report, false)

		if interpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummaryReport(report))
		}
	}

	if junitPath != "" {
		if err := reporting.WriteJUnitXML(report, junitPath); err != nil {
			return nil, fmt.Errorf("failed to write JUnit report: %w", err)
		}
		if format == "text" {
			fmt.Printf("JUnit report saved to: %s\n", junitPath)
		}
	}

	// Save output for single-model runs (multi-model saves are handled by the caller)
	if outputPath != "" && !multiModel {
		if err := report.Save(outputPath); err != nil {
			return nil, fmt.Errorf("failed to save output: %w", err)
		}
		if format == "text" {
			fmt.Printf("\nReport saved to: %s\n", outputPath)
		}
	}

	if publishReport {
		url, err := publishToBlob(ctx, report)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Report published to: %s\n", url)
	}

	// Return eval failure as error so caller can decide how to handle it
	if failed, msg := evalFailed(report); failed {
		return report, &EvalFailedError{Message: msg}
	}

	return report, nil
}

// evalFailed applies the --fail-on policy to a finished report.
func evalFailed(report *models.Report) (bool, string) {
	if failOn == "never" {
		return false, ""
	}

	findings := report.AllFindings()
	counts := models.CountBySeverity(findings)
	errFindings := counts[models.SeverityError]
	warnFindings := counts[models.SeverityWarning]

	if report.Digest.Failed > 0 || errFindings > 0 {
		return true, fmt.Sprintf("evaluation completed with %d failed sample(s) and %d error finding(s)",
			report.Digest.Failed, errFindings)
	}
	if failOn == "warning" && warnFindings > 0 {
		return true, fmt.Sprintf("evaluation completed with %d warning finding(s)", warnFindings)
	}
	return false, ""
}

// publishToBlob uploads the report, showing a spinner while the upload runs.
func publishToBlob(ctx context.Context, report *models.Report) (string, error) {
	serviceURL := publishURL
	if serviceURL == "" {
		serviceURL = os.Getenv("MASKEVAL_PUBLISH_URL")
	}
	container := publishContainer
	if container == "" {
		container = os.Getenv("MASKEVAL_PUBLISH_CONTAINER")
	}
	if serviceURL == "" || container == "" {
		return "", fmt.Errorf("--publish requires --publish-url and --publish-container (or MASKEVAL_PUBLISH_URL / MASKEVAL_PUBLISH_CONTAINER)")
	}

	up, err := publish.NewDefaultBlobUploader(serviceURL, container)
	if err != nil {
		return "", err
	}

	stop := spinner.Start(os.Stderr, "Publishing report...")
	url, err := publish.Publish(ctx, up, report)
	stop()
	if err != nil {
		return "", err
	}
	return url, nil
}

// attachSpinnerListener drives a counting spinner from runner progress
// events. The returned stop function also runs on EventRunComplete; the
// extra call after Run returns is a no-op.
func attachSpinnerListener(runner *orchestration.Runner) (stop func()) {
	var tick func()
	stopped := func() {}
	stop = func() { stopped() }

	runner.OnProgress(func(event orchestration.ProgressEvent) {
		switch event.EventType {
		case orchestration.EventRunStart:
			tick, stopped = startRunSpinner(os.Stderr, "evaluating samples", event.TotalSamples)
		case orchestration.EventSampleComplete, orchestration.EventSampleCached:
			if tick != nil {
				tick()
			}
		}
	})
	return stop
}

// stdoutIsTerminal reports whether stdout is an interactive terminal.
func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// printModelComparison renders a comparison table for multi-model runs.
func printModelComparison(results []modelResult) {
	fmt.Println()
	fmt.Println("═" + strings.Repeat("═", 54))
	fmt.Println(" MODEL COMPARISON")
	fmt.Println("═" + strings.Repeat("═", 54))
	fmt.Println()
	fmt.Printf("%-20s %-8s %-8s %-10s %s\n", "Model", "IoU", "Dice", "Scored", "Duration")
	fmt.Println("─" + strings.Repeat("─", 54))

	for _, mr := range results {
		meanIoU := 0.0
		meanDice := 0.0
		scored := 0
		total := 0
		durationMs := int64(0)
		if mr.report != nil {
			meanIoU = mr.report.Digest.MeanIoU
			meanDice = mr.report.Digest.MeanDice
			scored = mr.report.Digest.Scored
			total = mr.report.Digest.TotalSamples
			durationMs = mr.report.Digest.DurationMs
		}
		duration := time.Duration(durationMs) * time.Millisecond
		scoredStr := fmt.Sprintf("%d/%d", scored, total)
		fmt.Printf("%-20s %-8.4f %-8.4f %-10s %s\n", mr.modelName, meanIoU, meanDice, scoredStr, formatDuration(duration))
	}
	fmt.Println()
}

// sanitizeModelName replaces characters that are invalid in filenames.
func sanitizeModelName(name string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	return r.Replace(name)
}
