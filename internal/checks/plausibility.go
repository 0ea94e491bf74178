package checks

import (
	"fmt"
	"math"
	"sort"

	"github.com/pavise/maskeval/internal/metrics"
	"github.com/pavise/maskeval/internal/models"
)

// Range bounds the aggregate mean a genuinely trained model is
// expected to produce for one metric. The defaults are dataset
// heuristics, so callers can override them per run.
type Range struct {
	Lo float64
	Hi float64
}

// DefaultRanges returns the expected-range defaults for binary
// segmentation tasks, keyed by metric name.
func DefaultRanges() map[string]Range {
	return map[string]Range{
		"iou":      {Lo: 0.30, Hi: 0.95},
		"dice":     {Lo: 0.40, Hi: 0.97},
		"accuracy": {Lo: 0.70, Hi: 0.99},
	}
}

const (
	// perfectMeanFloor is the mean at or above which a zero-variance
	// aggregate is treated as a conversion artifact.
	perfectMeanFloor = 0.9999
	// varianceEpsilon is the standard deviation below which an
	// aggregate counts as having no variance.
	varianceEpsilon = 0.0001
	// DefaultCrossCheckTolerance bounds the disagreement allowed
	// between two encoding paths before it counts as a conversion
	// mismatch.
	DefaultCrossCheckTolerance = 1e-9
)

// MetricCheckers returns all plausibility checkers in display order,
// with the range checker configured for expected.
func MetricCheckers(expected Range) []MetricChecker {
	return append(degenerateCheckers(), &RangeChecker{Expected: expected})
}

// degenerateCheckers are the plausibility checks that need no expected
// range.
func degenerateCheckers() []MetricChecker {
	return []MetricChecker{
		&PerfectMetricsChecker{},
		&LowVarianceChecker{},
		&IdenticalValuesChecker{},
	}
}

// ValidateAggregate runs every plausibility checker against a single
// metric's aggregate. The findings are advisory and never change the
// computed metric.
func ValidateAggregate(metric string, agg models.Aggregate, expected Range) []models.Finding {
	results, _ := RunMetricChecks(MetricCheckers(expected), metric, agg)
	return Flatten(results)
}

// ValidateAll validates each aggregate in aggs, resolving expected
// ranges from overrides first and the defaults second. Metrics are
// visited in name order so the findings come out deterministically.
// A metric with no known range still gets the range-free checks.
func ValidateAll(aggs map[string]models.Aggregate, overrides map[string]Range) []models.Finding {
	names := make([]string, 0, len(aggs))
	for name := range aggs {
		names = append(names, name)
	}
	sort.Strings(names)

	defaults := DefaultRanges()
	var findings []models.Finding
	for _, name := range names {
		expected, ok := overrides[name]
		if !ok {
			expected, ok = defaults[name]
		}
		if !ok {
			results, _ := RunMetricChecks(degenerateCheckers(), name, aggs[name])
			findings = append(findings, Flatten(results)...)
			continue
		}
		findings = append(findings, ValidateAggregate(name, aggs[name], expected)...)
	}
	return findings
}

// CrossCheck compares per-sample metrics computed through two
// independent encoding paths for the same raw mask. Disagreement
// beyond tolerance means the paths interpreted the mask differently,
// the defect the aggregate validators can only infer statistically.
// A tolerance <= 0 selects DefaultCrossCheckTolerance.
func CrossCheck(sample string, primary, alternate models.SampleMetrics, tolerance float64) []models.Finding {
	if tolerance <= 0 {
		tolerance = DefaultCrossCheckTolerance
	}
	var findings []models.Finding
	for _, name := range models.MetricNames() {
		a, _ := primary.Value(name)
		b, _ := alternate.Value(name)
		if math.Abs(a-b) > tolerance {
			findings = append(findings, models.Finding{
				Severity:       models.SeverityError,
				Category:       models.CategoryConversionMismatch,
				Message:        fmt.Sprintf("%s disagrees between encoding paths: %.6f vs %.6f", name, a, b),
				Recommendation: "the two conversion routes read this mask differently; one of them is misinterpreting the labels",
				Sample:         sample,
				Metric:         name,
			})
		}
	}
	return findings
}

// PerfectMetricsChecker flags an aggregate whose mean is essentially
// 1.0 with essentially no spread. Real models do not do this across a
// batch; collapsed conversions do.
type PerfectMetricsChecker struct{}

var _ MetricChecker = (*PerfectMetricsChecker)(nil)

func (*PerfectMetricsChecker) Name() string { return "perfect-metrics" }

func (*PerfectMetricsChecker) Check(metric string, agg models.Aggregate) (*CheckResult, error) {
	var findings []models.Finding
	if agg.Count >= 2 && agg.Mean >= perfectMeanFloor && agg.StdDev < varianceEpsilon {
		findings = append(findings, models.Finding{
			Severity:       models.SeverityError,
			Category:       models.CategoryPerfectMetrics,
			Message:        fmt.Sprintf("%s mean %.4f with stddev %.6f across %d samples", metric, agg.Mean, agg.StdDev, agg.Count),
			Recommendation: "near-perfect scores with no spread usually mean prediction and truth were converted identically; audit the label encoding",
			Metric:         metric,
		})
	}
	return result("perfect-metrics", findings), nil
}

// LowVarianceChecker warns when scores barely move across samples,
// whatever the mean.
type LowVarianceChecker struct{}

var _ MetricChecker = (*LowVarianceChecker)(nil)

func (*LowVarianceChecker) Name() string { return "low-variance" }

func (*LowVarianceChecker) Check(metric string, agg models.Aggregate) (*CheckResult, error) {
	var findings []models.Finding
	if agg.Count >= 2 && agg.StdDev < varianceEpsilon {
		findings = append(findings, models.Finding{
			Severity:       models.SeverityWarning,
			Category:       models.CategoryLowVariance,
			Message:        fmt.Sprintf("%s stddev %.6f across %d samples is suspiciously low", metric, agg.StdDev, agg.Count),
			Recommendation: "scores this uniform suggest the same mask pair was scored repeatedly",
			Metric:         metric,
		})
	}
	return result("low-variance", findings), nil
}

// IdenticalValuesChecker flags a series whose entries are exactly
// equal. Exact equality is stronger evidence than a small standard
// deviation, which can still arise from floating-point rounding.
type IdenticalValuesChecker struct{}

var _ MetricChecker = (*IdenticalValuesChecker)(nil)

func (*IdenticalValuesChecker) Name() string { return "identical-values" }

func (*IdenticalValuesChecker) Check(metric string, agg models.Aggregate) (*CheckResult, error) {
	var findings []models.Finding
	if agg.Count >= 2 && metrics.AllEqual(agg.Values) {
		findings = append(findings, models.Finding{
			Severity:       models.SeverityError,
			Category:       models.CategoryIdenticalValues,
			Message:        fmt.Sprintf("all %d %s values are exactly %.4f", agg.Count, metric, agg.Values[0]),
			Recommendation: "bitwise-identical scores across samples point at a conversion or caching defect",
			Metric:         metric,
		})
	}
	return result("identical-values", findings), nil
}

// RangeChecker compares the aggregate mean against the expected
// envelope for the metric.
type RangeChecker struct {
	Expected Range
}

var _ MetricChecker = (*RangeChecker)(nil)

func (*RangeChecker) Name() string { return "expected-range" }

func (c *RangeChecker) Check(metric string, agg models.Aggregate) (*CheckResult, error) {
	var findings []models.Finding
	switch {
	case agg.Mean == 1.0:
		findings = append(findings, models.Finding{
			Severity:       models.SeverityError,
			Category:       models.CategoryPerfectScore,
			Message:        fmt.Sprintf("%s mean is exactly 1.0", metric),
			Recommendation: "a perfect aggregate score is not credible; verify the conversion before trusting this run",
			Metric:         metric,
		})
	case agg.Mean < c.Expected.Lo:
		findings = append(findings, models.Finding{
			Severity:       models.SeverityWarning,
			Category:       models.CategoryBelowRange,
			Message:        fmt.Sprintf("%s mean %.4f is below the expected range [%.2f, %.2f]", metric, agg.Mean, c.Expected.Lo, c.Expected.Hi),
			Recommendation: "below the typical performance envelope; the model may be undertrained or the masks mislabeled",
			Metric:         metric,
		})
	case agg.Mean > c.Expected.Hi:
		findings = append(findings, models.Finding{
			Severity:       models.SeverityWarning,
			Category:       models.CategoryAboveRange,
			Message:        fmt.Sprintf("%s mean %.4f is above the expected range [%.2f, %.2f]", metric, agg.Mean, c.Expected.Lo, c.Expected.Hi),
			Recommendation: "implausibly high for this task; verify the conversion",
			Metric:         metric,
		})
	}
	return result("expected-range", findings), nil
}
