// Package models defines the shared data types exchanged between the
// encoder, metric engine, validators, runner, and reporting layers.
package models

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding categories. These are stable identifiers used in output and
// downstream processing; display text lives in the finding message.
const (
	CategoryDerivedThreshold   = "derived-threshold"
	CategoryFallback           = "category-fallback"
	CategoryCount              = "category-count"
	CategoryEmpty              = "empty-category"
	CategoryImbalance          = "category-imbalance"
	CategoryNaming             = "category-naming"
	CategoryPerfectMetrics     = "perfect-metrics"
	CategoryLowVariance        = "low-variance"
	CategoryIdenticalValues    = "identical-values"
	CategoryBelowRange         = "below-range"
	CategoryAboveRange         = "above-range"
	CategoryPerfectScore       = "perfect-score"
	CategoryConversionMismatch = "conversion-mismatch"
)

// Finding is an advisory diagnostic. Findings accompany results but never
// replace them: a finding is not an error and does not abort evaluation.
type Finding struct {
	// Severity is one of info, warning, error.
	Severity Severity `json:"severity"`
	// Category is a stable kebab-case tag identifying the rule that fired.
	Category string `json:"category"`
	// Message is a human-readable description of what was observed.
	Message string `json:"message"`
	// Recommendation suggests a follow-up action, when one exists.
	Recommendation string `json:"recommendation,omitempty"`
	// Sample names the sample the finding refers to, when sample-scoped.
	Sample string `json:"sample,omitempty"`
	// Metric names the metric the finding refers to, when metric-scoped.
	Metric string `json:"metric,omitempty"`
}

// CountBySeverity tallies findings per severity level.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// MaxSeverity returns the most severe level present in findings, or ""
// when the slice is empty.
func MaxSeverity(findings []Finding) Severity {
	var max Severity
	for _, f := range findings {
		if severityRank(f.Severity) > severityRank(max) {
			max = f.Severity
		}
	}
	return max
}

func severityRank(s Severity) int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return 0
	}
}
