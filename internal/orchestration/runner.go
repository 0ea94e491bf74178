// Package orchestration drives batch evaluation: it resolves the sample
// pairs a manifest describes, pushes each pair through the
// load → check → encode → score pipeline, and assembles the report.
package orchestration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pavise/maskeval/internal/cache"
	"github.com/pavise/maskeval/internal/checks"
	"github.com/pavise/maskeval/internal/config"
	"github.com/pavise/maskeval/internal/dataset"
	"github.com/pavise/maskeval/internal/hooks"
	"github.com/pavise/maskeval/internal/mask"
	"github.com/pavise/maskeval/internal/metrics"
	"github.com/pavise/maskeval/internal/models"
	"github.com/pavise/maskeval/internal/utils"
)

// defaultWorkers bounds the concurrent path when neither the manifest
// nor the command line picks a worker count.
const defaultWorkers = 4

// Runner evaluates every sample of one dataset against one model.
type Runner struct {
	cfg     *config.EvalConfig
	verbose bool

	// Sample filtering
	sampleFilters []string

	// Result caching
	cache *cache.Cache

	// Dual-path conversion checking for ambiguous intensity masks
	crossCheck bool

	// Worker override applied after config and manifest
	workers int

	// Lifecycle hooks
	hookRunner *hooks.Runner

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart       EventType = "run_start"
	EventRunComplete    EventType = "run_complete"
	EventRunStopped     EventType = "run_stopped"
	EventSampleStart    EventType = "sample_start"
	EventSampleComplete EventType = "sample_complete"
	EventSampleCached   EventType = "sample_cached"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType    EventType
	SampleID     string
	SampleNum    int
	TotalSamples int
	Status       models.Status
	DurationMs   int64
	Details      map[string]any
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithSampleFilters sets glob patterns used to filter samples by id.
func WithSampleFilters(patterns ...string) RunnerOption {
	return func(r *Runner) {
		r.sampleFilters = patterns
	}
}

// WithCache enables result caching
func WithCache(c *cache.Cache) RunnerOption {
	return func(r *Runner) {
		r.cache = c
	}
}

// WithCrossCheck toggles the dual-path conversion check. It is on by
// default.
func WithCrossCheck(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.crossCheck = enabled
	}
}

// WithWorkers overrides the worker count for the concurrent path.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithHooks replaces the default hook runner. Tests use it to control
// hook verbosity without a full config.
func WithHooks(hr *hooks.Runner) RunnerOption {
	return func(r *Runner) {
		r.hookRunner = hr
	}
}

// NewRunner creates a new evaluation runner
func NewRunner(cfg *config.EvalConfig, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:        cfg,
		verbose:    cfg.Verbose(),
		crossCheck: true,
		listeners:  []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// sampleDetails extracts the headline metric and duration from a result
// for inclusion in EventSampleComplete Details.
func sampleDetails(res *models.SampleResult) map[string]any {
	iou := 0.0
	if res.Metrics != nil {
		iou = res.Metrics.IoU
	}
	return map[string]any{
		"iou":         iou,
		"duration_ms": res.DurationMs,
	}
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// runPlan carries per-run resolved state shared by every sample.
type runPlan struct {
	manifest   *dataset.Manifest
	model      string
	pairs      []dataset.Pair
	encodeOpts []mask.EncodeOption
	tolerance  float64
}

// Run evaluates the configured dataset end to end and returns the report.
// Sample-level failures are recorded in the report; only setup problems
// (hooks, manifest resolution) return an error.
func (r *Runner) Run(ctx context.Context) (*models.Report, error) {
	startTime := time.Now()

	m := r.cfg.Manifest()
	if m == nil {
		return nil, fmt.Errorf("no manifest configured")
	}

	// Set up hooks runner
	if r.hookRunner == nil {
		r.hookRunner = &hooks.Runner{Verbose: r.verbose}
	}

	// Run after_run hooks on exit (even on error)
	defer func() {
		if len(m.Hooks.AfterRun) > 0 {
			if err := r.hookRunner.Execute(ctx, "after_run", m.Hooks.AfterRun); err != nil {
				fmt.Printf("[WARN] after_run hook error: %v\n", err)
			}
		}
	}()

	// Run before_run hooks
	if len(m.Hooks.BeforeRun) > 0 {
		if err := r.hookRunner.Execute(ctx, "before_run", m.Hooks.BeforeRun); err != nil {
			return nil, fmt.Errorf("before_run hook failed: %w", err)
		}
	}

	modelName, err := m.ResolveModel(r.cfg.Model())
	if err != nil {
		return nil, err
	}

	pairs, err := m.Pairs(r.cfg.BaseDir(), modelName)
	if err != nil {
		return nil, fmt.Errorf("resolving sample pairs: %w", err)
	}

	// Apply sample filters
	if len(r.sampleFilters) > 0 {
		pairs, err = FilterPairs(pairs, r.sampleFilters)
		if err != nil {
			return nil, fmt.Errorf("sample filter error: %w", err)
		}
		fmt.Printf("Sample filters matched %d sample(s)\n", len(pairs))
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("no samples found")
	}

	// Decode encoding params once; they apply to every sample.
	encodeOpts, err := mask.OptionsFromParams(m.Encoding.Params)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}

	plan := runPlan{
		manifest:   m,
		model:      modelName,
		pairs:      pairs,
		encodeOpts: encodeOpts,
		tolerance:  crossCheckTolerance(m),
	}

	r.notifyProgress(ProgressEvent{
		EventType:    EventRunStart,
		TotalSamples: len(pairs),
	})

	var results []models.SampleResult
	if r.concurrent(m) {
		results = r.runConcurrent(ctx, plan)
	} else {
		results = r.runSequential(ctx, plan)
	}

	report := r.buildReport(plan, results, startTime)

	r.notifyProgress(ProgressEvent{
		EventType:  EventRunComplete,
		DurationMs: time.Since(startTime).Milliseconds(),
	})

	return report, nil
}

// concurrent reports whether this run uses the bounded-worker path: the
// manifest opts in, or the caller forces more than one worker.
func (r *Runner) concurrent(m *dataset.Manifest) bool {
	if m.Parallel {
		return true
	}
	n := r.workers
	if n == 0 {
		n = r.cfg.Workers()
	}
	return n > 1
}

// workerCount resolves the worker bound: runner option, then command
// line, then manifest, then the default.
func (r *Runner) workerCount(m *dataset.Manifest) int {
	if r.workers > 0 {
		return r.workers
	}
	if n := r.cfg.Workers(); n > 0 {
		return n
	}
	if m.Workers > 0 {
		return m.Workers
	}
	return defaultWorkers
}

func (r *Runner) runSequential(ctx context.Context, plan runPlan) []models.SampleResult {
	results := make([]models.SampleResult, 0, len(plan.pairs))
	m := plan.manifest

	for i, pair := range plan.pairs {
		if ctx.Err() != nil {
			r.notifyProgress(ProgressEvent{
				EventType: EventRunStopped,
				Details:   map[string]any{"reason": ctx.Err().Error()},
			})
			return results
		}

		// Check if we should stop on error
		if m.StopOnError && i > 0 {
			for _, prev := range results {
				if prev.Status != models.StatusScored {
					r.notifyProgress(ProgressEvent{
						EventType: EventRunStopped,
						Details:   map[string]any{"reason": "fail_fast enabled and previous sample failed"},
					})
					// Skip remaining samples
					return results
				}
			}
		}

		// Run before_sample hooks
		if len(m.Hooks.BeforeSample) > 0 {
			if err := r.hookRunner.Execute(ctx, "before_sample", m.Hooks.BeforeSample); err != nil {
				// before_sample failure with error_on_fail: mark sample as failed and skip
				results = append(results, models.SampleResult{
					ID:     pair.ID,
					Status: models.StatusFailed,
					Error:  fmt.Sprintf("before_sample hook failed: %v", err),
				})
				r.notifyProgress(ProgressEvent{
					EventType:    EventSampleComplete,
					SampleID:     pair.ID,
					SampleNum:    i + 1,
					TotalSamples: len(plan.pairs),
					Status:       models.StatusFailed,
					Details:      map[string]any{"iou": 0.0, "duration_ms": int64(0)},
				})
				continue
			}
		}

		r.notifyProgress(ProgressEvent{
			EventType:    EventSampleStart,
			SampleID:     pair.ID,
			SampleNum:    i + 1,
			TotalSamples: len(plan.pairs),
		})

		res, wasCached := r.evalSample(plan, pair)
		results = append(results, res)

		// Surface hard failures even in non-verbose mode
		if res.Error != "" && !r.verbose {
			fmt.Printf("[ERROR] %s\n", res.Error)
		}

		// Run after_sample hooks
		if len(m.Hooks.AfterSample) > 0 {
			if err := r.hookRunner.Execute(ctx, "after_sample", m.Hooks.AfterSample); err != nil {
				fmt.Printf("[WARN] after_sample hook error for %s: %v\n", pair.ID, err)
			}
		}

		if wasCached {
			// Emit cached event instead of complete
			r.notifyProgress(ProgressEvent{
				EventType:    EventSampleCached,
				SampleID:     pair.ID,
				SampleNum:    i + 1,
				TotalSamples: len(plan.pairs),
				Status:       res.Status,
			})
		} else {
			r.notifyProgress(ProgressEvent{
				EventType:    EventSampleComplete,
				SampleID:     pair.ID,
				SampleNum:    i + 1,
				TotalSamples: len(plan.pairs),
				Status:       res.Status,
				DurationMs:   res.DurationMs,
				Details:      sampleDetails(&res),
			})
		}
	}

	return results
}

func (r *Runner) runConcurrent(ctx context.Context, plan runPlan) []models.SampleResult {
	m := plan.manifest
	workers := r.workerCount(m)

	type result struct {
		index int
		res   models.SampleResult
	}

	resultChan := make(chan result, len(plan.pairs))
	semaphore := make(chan struct{}, workers)

	var wg sync.WaitGroup

	for i, pair := range plan.pairs {
		wg.Add(1)
		go func(idx int, pair dataset.Pair) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			// Run before_sample hooks
			if len(m.Hooks.BeforeSample) > 0 {
				if err := r.hookRunner.Execute(ctx, "before_sample", m.Hooks.BeforeSample); err != nil {
					resultChan <- result{index: idx, res: models.SampleResult{
						ID:     pair.ID,
						Status: models.StatusFailed,
						Error:  fmt.Sprintf("before_sample hook failed: %v", err),
					}}
					r.notifyProgress(ProgressEvent{
						EventType:    EventSampleComplete,
						SampleID:     pair.ID,
						SampleNum:    idx + 1,
						TotalSamples: len(plan.pairs),
						Status:       models.StatusFailed,
						Details:      map[string]any{"iou": 0.0, "duration_ms": int64(0)},
					})
					return
				}
			}

			r.notifyProgress(ProgressEvent{
				EventType:    EventSampleStart,
				SampleID:     pair.ID,
				SampleNum:    idx + 1,
				TotalSamples: len(plan.pairs),
			})

			res, wasCached := r.evalSample(plan, pair)
			resultChan <- result{index: idx, res: res}

			if res.Error != "" && !r.verbose {
				fmt.Printf("[ERROR] %s\n", res.Error)
			}

			// Run after_sample hooks
			if len(m.Hooks.AfterSample) > 0 {
				if err := r.hookRunner.Execute(ctx, "after_sample", m.Hooks.AfterSample); err != nil {
					fmt.Printf("[WARN] after_sample hook error for %s: %v\n", pair.ID, err)
				}
			}

			if wasCached {
				r.notifyProgress(ProgressEvent{
					EventType:    EventSampleCached,
					SampleID:     pair.ID,
					SampleNum:    idx + 1,
					TotalSamples: len(plan.pairs),
					Status:       res.Status,
				})
			} else {
				r.notifyProgress(ProgressEvent{
					EventType:    EventSampleComplete,
					SampleID:     pair.ID,
					SampleNum:    idx + 1,
					TotalSamples: len(plan.pairs),
					Status:       res.Status,
					DurationMs:   res.DurationMs,
					Details:      sampleDetails(&res),
				})
			}
		}(i, pair)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results in input order
	results := make([]models.SampleResult, len(plan.pairs))
	for res := range resultChan {
		results[res.index] = res.res
	}

	return results
}

// evalSample scores one pair, consulting the cache when enabled. The
// second return reports whether the result was served from cache.
// Cached entries are produced with cross-checking on; serving them with
// it off would resurrect findings the caller asked to suppress, so a
// disabled cross-check bypasses the cache entirely.
func (r *Runner) evalSample(plan runPlan, pair dataset.Pair) (models.SampleResult, bool) {
	if r.cache != nil && r.crossCheck {
		key, err := cache.Key(plan.manifest, plan.model, pair)
		if err == nil {
			if cached, found := r.cache.Get(key); found {
				res := *cached
				res.FromCache = true
				return res, true
			}
			// Evaluate the sample and cache the result
			res := r.evalSampleUncached(plan, pair)
			if err := r.cache.Put(key, &res); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to write cache for sample %q: %v\n", pair.ID, err)
			}
			return res, false
		}
	}

	// No cache or cache key generation failed
	return r.evalSampleUncached(plan, pair), false
}

func (r *Runner) evalSampleUncached(plan runPlan, pair dataset.Pair) models.SampleResult {
	start := time.Now()
	res := models.SampleResult{ID: pair.ID, Status: models.StatusScored}

	fail := func(err error) models.SampleResult {
		res.Status = models.StatusFailed
		res.Error = err.Error()
		res.Metrics = nil
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}

	predSrc, truthSrc, err := dataset.LoadSources(pair, plan.manifest.Encoding)
	if err != nil {
		return fail(err)
	}

	// Structural findings are advisory: a mask that trips them still
	// proceeds to encoding, which produces any hard error.
	res.Findings = append(res.Findings, annotate(checks.ValidateStructure(predSrc), pair.ID, "prediction")...)
	res.Findings = append(res.Findings, annotate(checks.ValidateStructure(truthSrc), pair.ID, "truth")...)

	predMask, predFindings, err := mask.Encode(predSrc, plan.encodeOpts...)
	if err != nil {
		return fail(fmt.Errorf("prediction: %w", err))
	}
	res.Findings = append(res.Findings, annotate(predFindings, pair.ID, "prediction")...)

	truthMask, truthFindings, err := mask.Encode(truthSrc, plan.encodeOpts...)
	if err != nil {
		return fail(fmt.Errorf("truth: %w", err))
	}
	res.Findings = append(res.Findings, annotate(truthFindings, pair.ID, "truth")...)

	scored, err := metrics.Score(predMask, truthMask)
	if err != nil {
		return fail(err)
	}
	res.Metrics = &scored

	if r.crossCheck && hasExplicitThreshold(plan.manifest) {
		res.Findings = append(res.Findings, crossCheckFindings(pair, predSrc, truthSrc, scored, plan.tolerance)...)
	}

	res.DurationMs = time.Since(start).Milliseconds()
	return res
}

// crossCheckFindings re-scores a pair through the encoder's two-value
// rule and compares against the threshold-path metrics. Both paths are
// defined only when each side is an intensity mask with exactly two
// distinct values; uniform masks have no larger value to match and
// masks with more than two go through the derived-threshold rule, so
// either skips the check.
func crossCheckFindings(pair dataset.Pair, pred, truth mask.Source, primary models.SampleMetrics, tol float64) []models.Finding {
	predGray, ok := pred.(*mask.GraySource)
	if !ok {
		return nil
	}
	truthGray, ok := truth.(*mask.GraySource)
	if !ok {
		return nil
	}
	if len(predGray.Classes()) != 2 || len(truthGray.Classes()) != 2 {
		return nil
	}

	// Encoding without a threshold applies the exact two-value rule.
	altPred, _, err := mask.Encode(predGray)
	if err != nil {
		return nil
	}
	altTruth, _, err := mask.Encode(truthGray)
	if err != nil {
		return nil
	}
	alternate, err := metrics.Score(altPred, altTruth)
	if err != nil {
		return nil
	}

	return checks.CrossCheck(pair.ID, primary, alternate, tol)
}

// annotate stamps findings with their sample and which side of the pair
// they describe.
func annotate(findings []models.Finding, sampleID, side string) []models.Finding {
	for i := range findings {
		findings[i].Sample = sampleID
		findings[i].Message = side + ": " + findings[i].Message
	}
	return findings
}

func hasExplicitThreshold(m *dataset.Manifest) bool {
	_, ok := m.Encoding.Params["threshold"]
	return ok
}

// crossCheckTolerance resolves the manifest tolerance, falling back to
// the built-in default when unset.
func crossCheckTolerance(m *dataset.Manifest) float64 {
	if m.Tolerance > 0 {
		return m.Tolerance
	}
	return checks.DefaultCrossCheckTolerance
}

// buildReport aggregates sample results, runs the plausibility checks
// over the aggregates, and fills the digest.
func (r *Runner) buildReport(plan runPlan, results []models.SampleResult, startTime time.Time) *models.Report {
	report := &models.Report{
		Dataset:    plan.manifest.Name,
		Model:      plan.model,
		CreatedAt:  startTime.UTC(),
		Samples:    results,
		Aggregates: metrics.Aggregate(results),
	}

	report.Findings = checks.ValidateAll(report.Aggregates, rangeOverrides(plan.manifest))
	utils.FindingsToSlog("runner", report.Findings)

	report.ComputeDigest(time.Since(startTime))
	return report
}

// rangeOverrides converts the manifest's expected_ranges into checker
// ranges. Metrics without an override keep the built-in defaults.
func rangeOverrides(m *dataset.Manifest) map[string]checks.Range {
	if len(m.ExpectedRanges) == 0 {
		return nil
	}
	out := make(map[string]checks.Range, len(m.ExpectedRanges))
	for name, bounds := range m.ExpectedRanges {
		out[name] = checks.Range{Lo: bounds[0], Hi: bounds[1]}
	}
	return out
}
