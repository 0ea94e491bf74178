// Package checks provides the validators that inspect raw masks before
// encoding and metric aggregates after scoring. Structural checks flag
// masks whose shape would make encoding meaningless even if it
// succeeds; plausibility checks flag aggregate statistics that genuine
// model behavior cannot produce. Both kinds annotate, never reject:
// acting on a finding is the calling workflow's decision.
package checks

import (
	"errors"

	"github.com/pavise/maskeval/internal/mask"
	"github.com/pavise/maskeval/internal/models"
)

// CheckResult holds the outcome of a single validation check.
type CheckResult struct {
	// Name is a stable check identifier used in output and downstream processing.
	Name string
	// Passed indicates the check found nothing at Warning severity or above.
	Passed bool
	// Findings lists everything the check flagged, in detection order.
	Findings []models.Finding
}

// MaskChecker runs a single structural check against a raw mask.
type MaskChecker interface {
	Name() string
	Check(src mask.Source) (*CheckResult, error)
}

// MetricChecker runs a single plausibility check against one metric's
// aggregate statistics.
type MetricChecker interface {
	Name() string
	Check(metric string, agg models.Aggregate) (*CheckResult, error)
}

// RunChecks executes each structural checker against src, collecting
// results and errors.
func RunChecks(checkers []MaskChecker, src mask.Source) ([]*CheckResult, error) {
	var (
		errs    []error
		results []*CheckResult
	)
	for _, c := range checkers {
		r, err := c.Check(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, r)
	}
	return results, errors.Join(errs...)
}

// RunMetricChecks executes each plausibility checker against one
// metric's aggregate, collecting results and errors.
func RunMetricChecks(checkers []MetricChecker, metric string, agg models.Aggregate) ([]*CheckResult, error) {
	var (
		errs    []error
		results []*CheckResult
	)
	for _, c := range checkers {
		r, err := c.Check(metric, agg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, r)
	}
	return results, errors.Join(errs...)
}

// Flatten concatenates the findings of all results in order.
func Flatten(results []*CheckResult) []models.Finding {
	var findings []models.Finding
	for _, r := range results {
		findings = append(findings, r.Findings...)
	}
	return findings
}

// result builds a CheckResult, deriving Passed from the severities.
func result(name string, findings []models.Finding) *CheckResult {
	passed := true
	for _, f := range findings {
		if f.Severity != models.SeverityInfo {
			passed = false
			break
		}
	}
	return &CheckResult{Name: name, Passed: passed, Findings: findings}
}
