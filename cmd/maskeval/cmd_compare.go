package main

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pavise/maskeval/internal/baseline"
	"github.com/pavise/maskeval/internal/models"
	"github.com/pavise/maskeval/internal/recommend"
	"github.com/pavise/maskeval/internal/statistics"
	"github.com/spf13/cobra"
)

var compareOutputFormat string

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <report1.json> <report2.json> [report3.json ...]",
		Short: "Compare multiple evaluation report files",
		Long: `Compare reports from multiple evaluation runs side by side.

Loads two or more report JSON files and generates a comparison showing
per-sample IoU deltas, aggregate metric differences, and a bootstrap
significance test on the paired per-sample deltas. With exactly two
reports the improvement over the first (baseline) report is computed;
with two or more a heuristic model recommendation is included.`,
		Args: cobra.MinimumNArgs(2),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVarP(&compareOutputFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

// jsonFloat is a float64 that marshals NaN as null. Samples missing from
// a run or failed in it are NaN internally, which encoding/json rejects.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

// sampleComparison holds per-sample delta information across report files.
type sampleComparison struct {
	SampleID string      `json:"sample_id"`
	IoUs     []jsonFloat `json:"ious"`
	Statuses []string    `json:"statuses"`
	IoUDelta jsonFloat   `json:"iou_delta"`
}

// significanceResult is the bootstrap test over paired first-vs-last deltas.
type significanceResult struct {
	Metric      string                        `json:"metric"`
	PairedCount int                           `json:"paired_count"`
	MeanDelta   float64                       `json:"mean_delta"`
	Interval    statistics.ConfidenceInterval `json:"confidence_interval"`
	Significant bool                          `json:"significant"`
}

// comparisonReport is the full comparison output.
type comparisonReport struct {
	Files          []string                 `json:"files"`
	Datasets       []string                 `json:"datasets"`
	Models         []string                 `json:"models"`
	MeanIoUs       []float64                `json:"mean_ious"`
	MeanDices      []float64                `json:"mean_dices"`
	MeanAccuracies []float64                `json:"mean_accuracies"`
	SuccessRates   []float64                `json:"success_rates"`
	IoUDelta       float64                  `json:"mean_iou_delta"`
	DiceDelta      float64                  `json:"mean_dice_delta"`
	AccuracyDelta  float64                  `json:"mean_accuracy_delta"`
	IoUGain        float64                  `json:"iou_normalized_gain"`
	SuccessRDelta  float64                  `json:"success_rate_delta"`
	SampleDeltas   []sampleComparison       `json:"sample_deltas"`
	TotalSamples   []int                    `json:"total_samples"`
	DurationsMs    []int64                  `json:"durations_ms"`
	DurationDeltaM int64                    `json:"duration_delta_ms"`
	Significance   *significanceResult      `json:"significance,omitempty"`
	Baseline       *baseline.BaselineResult `json:"baseline,omitempty"`
	Recommendation *models.Recommendation   `json:"recommendation,omitempty"`
}

func compareCommandE(_ *cobra.Command, args []string) error {
	if compareOutputFormat != "table" && compareOutputFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", compareOutputFormat)
	}

	reports := make([]*models.Report, 0, len(args))
	for _, path := range args {
		r, err := models.LoadReport(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		reports = append(reports, r)
	}

	report := buildComparisonReport(args, reports)

	if compareOutputFormat == "json" {
		return printComparisonJSON(report)
	}
	printComparisonTable(report)
	return nil
}

func buildComparisonReport(files []string, reports []*models.Report) *comparisonReport {
	cr := &comparisonReport{
		Files: files,
	}

	for i, r := range reports {
		cr.Datasets = append(cr.Datasets, r.Dataset)
		cr.Models = append(cr.Models, modelLabel(r, files[i]))
		cr.MeanIoUs = append(cr.MeanIoUs, r.Digest.MeanIoU)
		cr.MeanDices = append(cr.MeanDices, r.Digest.MeanDice)
		cr.MeanAccuracies = append(cr.MeanAccuracies, r.Digest.MeanAccuracy)
		cr.SuccessRates = append(cr.SuccessRates, r.Digest.SuccessRate)
		cr.TotalSamples = append(cr.TotalSamples, r.Digest.TotalSamples)
		cr.DurationsMs = append(cr.DurationsMs, r.Digest.DurationMs)
	}

	n := len(reports)
	cr.IoUDelta = cr.MeanIoUs[n-1] - cr.MeanIoUs[0]
	cr.DiceDelta = cr.MeanDices[n-1] - cr.MeanDices[0]
	cr.AccuracyDelta = cr.MeanAccuracies[n-1] - cr.MeanAccuracies[0]
	// Raw deltas understate progress near the ceiling, so also report
	// the IoU gain relative to the headroom the first run left.
	cr.IoUGain = statistics.NormalizedGain(cr.MeanIoUs[0], cr.MeanIoUs[n-1])
	cr.SuccessRDelta = cr.SuccessRates[n-1] - cr.SuccessRates[0]
	cr.DurationDeltaM = cr.DurationsMs[n-1] - cr.DurationsMs[0]

	// Build sample-level rows keyed by sample ID, in first-seen order.
	allIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, r := range reports {
		for _, s := range r.Samples {
			if !seen[s.ID] {
				seen[s.ID] = true
				allIDs = append(allIDs, s.ID)
			}
		}
	}

	for _, id := range allIDs {
		sc := sampleComparison{
			SampleID: id,
		}
		for _, r := range reports {
			found := false
			for _, s := range r.Samples {
				if s.ID == id {
					found = true
					iou := math.NaN()
					if s.Status == models.StatusScored && s.Metrics != nil {
						iou = s.Metrics.IoU
					}
					sc.IoUs = append(sc.IoUs, jsonFloat(iou))
					sc.Statuses = append(sc.Statuses, string(s.Status))
					break
				}
			}
			if !found {
				sc.IoUs = append(sc.IoUs, jsonFloat(math.NaN()))
				sc.Statuses = append(sc.Statuses, "n/a")
			}
		}
		sc.IoUDelta = sc.IoUs[n-1] - sc.IoUs[0]
		cr.SampleDeltas = append(cr.SampleDeltas, sc)
	}

	cr.Significance = computeSignificance(cr.SampleDeltas, n)

	if n == 2 {
		cr.Baseline = baseline.ComputeFromReports(reports[0], reports[1])
	}

	inputs := make([]recommend.ModelInput, 0, n)
	for i, r := range reports {
		inputs = append(inputs, recommend.ModelInput{ModelID: cr.Models[i], Report: r})
	}
	cr.Recommendation = recommend.NewEngine().Recommend(inputs)

	return cr
}

// computeSignificance bootstraps a confidence interval over the paired
// first-vs-last IoU deltas. Samples scored in only one run are excluded
// so the pairing stays honest.
func computeSignificance(deltas []sampleComparison, n int) *significanceResult {
	var before, after []float64
	for _, sc := range deltas {
		if math.IsNaN(float64(sc.IoUs[0])) || math.IsNaN(float64(sc.IoUs[n-1])) {
			continue
		}
		before = append(before, float64(sc.IoUs[0]))
		after = append(after, float64(sc.IoUs[n-1]))
	}
	if len(before) < 2 {
		return nil
	}

	paired, err := statistics.PairedDeltas(before, after)
	if err != nil {
		return nil
	}
	ci := statistics.BootstrapCI(paired, 0.95)
	return &significanceResult{
		Metric:      "iou",
		PairedCount: len(paired),
		MeanDelta:   ci.Mean,
		Interval:    ci,
		Significant: statistics.IsSignificant(ci),
	}
}

// modelLabel names a report for display, falling back to the file path
// when the report carries no model name.
func modelLabel(r *models.Report, file string) string {
	if r.Model != "" {
		return r.Model
	}
	return file
}

func printComparisonTable(r *comparisonReport) {
	n := len(r.Files)

	// Header
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println(" COMPARISON REPORT")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println()

	// File listing
	for i, f := range r.Files {
		fmt.Printf("  [%d] %s  (model: %s)\n", i+1, f, r.Models[i])
	}
	fmt.Println()

	// Aggregate summary
	fmt.Println(strings.Repeat("-", 70))
	fmt.Println(" AGGREGATE")
	fmt.Println(strings.Repeat("-", 70))

	fmt.Printf("  %-20s", "Metric")
	for i := range r.Files {
		fmt.Printf("  [%d]      ", i+1)
	}
	fmt.Printf("  Delta\n")

	fmt.Printf("  %-20s", "Mean IoU")
	for _, v := range r.MeanIoUs {
		fmt.Printf("  %-9.4f", v)
	}
	fmt.Printf("  %+.4f\n", r.IoUDelta)

	fmt.Printf("  %-20s", "Mean Dice")
	for _, v := range r.MeanDices {
		fmt.Printf("  %-9.4f", v)
	}
	fmt.Printf("  %+.4f\n", r.DiceDelta)

	fmt.Printf("  %-20s", "Mean Accuracy")
	for _, v := range r.MeanAccuracies {
		fmt.Printf("  %-9.4f", v)
	}
	fmt.Printf("  %+.4f\n", r.AccuracyDelta)

	fmt.Printf("  %-20s", "Success Rate")
	for _, v := range r.SuccessRates {
		fmt.Printf("  %-9.1f%%", v*100)
	}
	fmt.Printf("  %+.1f%%\n", r.SuccessRDelta*100)

	fmt.Printf("  %-20s", "Duration (ms)")
	for _, d := range r.DurationsMs {
		fmt.Printf("  %-9d", d)
	}
	fmt.Printf("  %+d\n", r.DurationDeltaM)

	fmt.Printf("\n  Normalized IoU gain (last vs first): %+.3f of available headroom\n", r.IoUGain)
	fmt.Println()

	// Per-sample table
	fmt.Println(strings.Repeat("-", 70))
	fmt.Println(" PER-SAMPLE DELTAS (IoU)")
	fmt.Println(strings.Repeat("-", 70))

	// Column header
	fmt.Printf("  %-25s", "Sample")
	for i := range r.Files {
		fmt.Printf("  [%d] IoU  ", i+1)
	}
	fmt.Printf("  Delta\n")

	for _, sc := range r.SampleDeltas {
		name := sc.SampleID
		if len(name) > 25 {
			name = name[:22] + "..."
		}
		fmt.Printf("  %-25s", name)
		for i := 0; i < n; i++ {
			if math.IsNaN(float64(sc.IoUs[i])) {
				fmt.Printf("  %-9s", sc.Statuses[i])
			} else {
				fmt.Printf("  %-9.4f", float64(sc.IoUs[i]))
			}
		}
		if math.IsNaN(float64(sc.IoUDelta)) {
			fmt.Printf("   n/a\n")
			continue
		}
		deltaIcon := " "
		if sc.IoUDelta > 0 {
			deltaIcon = "↑"
		} else if sc.IoUDelta < 0 {
			deltaIcon = "↓"
		}
		fmt.Printf("  %s%+.4f\n", deltaIcon, sc.IoUDelta)
	}
	fmt.Println()

	// Bootstrap significance over the paired deltas
	if r.Significance != nil {
		fmt.Println(strings.Repeat("-", 70))
		fmt.Println(" SIGNIFICANCE")
		fmt.Println(strings.Repeat("-", 70))
		s := r.Significance
		fmt.Printf("  Paired IoU delta (last - first): %+.4f\n", s.MeanDelta)
		fmt.Printf("  %.0f%% CI [%+.4f, %+.4f] over %d paired sample(s), %d resamples\n",
			s.Interval.ConfidenceLevel*100, s.Interval.Lower, s.Interval.Upper,
			s.PairedCount, s.Interval.NumBootstraps)
		if s.Significant {
			fmt.Printf("  Result: significant (interval excludes zero)\n")
		} else {
			fmt.Printf("  Result: not significant (interval contains zero)\n")
		}
		fmt.Println()
	}

	// Baseline improvement (two-report comparisons only)
	if r.Baseline != nil {
		fmt.Println(strings.Repeat("-", 70))
		fmt.Println(" BASELINE IMPROVEMENT")
		fmt.Println(strings.Repeat("-", 70))
		b := r.Baseline
		fmt.Printf("  %s -> %s: %+.1f%%\n", orUnnamed(b.Baseline), orUnnamed(b.Candidate), b.Improvement*100)
		fmt.Printf("  %-20s  %+.4f\n", "IoU delta", b.Breakdown.IoUDelta)
		fmt.Printf("  %-20s  %+.4f\n", "Dice delta", b.Breakdown.DiceDelta)
		fmt.Printf("  %-20s  %+.4f\n", "Accuracy delta", b.Breakdown.AccuracyDelta)
		fmt.Printf("  %-20s  %+.4f\n", "Failure rate delta", b.Breakdown.FailureRateDelta)
		fmt.Println()
	}

	// Heuristic recommendation
	if r.Recommendation != nil {
		fmt.Println(strings.Repeat("-", 70))
		fmt.Println(" RECOMMENDATION")
		fmt.Println(strings.Repeat("-", 70))
		rec := r.Recommendation
		fmt.Printf("  Recommended model: %s  (score %.4f, margin %.1f%%)\n",
			rec.RecommendedModel, rec.HeuristicScore, rec.WinnerMarginPct)
		fmt.Printf("  %s\n", rec.Reason)
		for _, ms := range rec.ModelScores {
			fmt.Printf("    #%d %-25s %.4f\n", ms.Rank, truncate(ms.ModelID, 25), ms.HeuristicScore)
		}
		fmt.Println()
	}
}

func orUnnamed(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

func printComparisonJSON(r *comparisonReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal comparison report: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
