package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/pavise/maskeval/internal/models"
)

// bands holds one metric's quality cutoffs. A mean at or above
// excellent reads as "Excellent", and so on down the scale.
type bands struct {
	excellent float64
	good      float64
	fair      float64
}

// metricBands calibrates the labels per metric. Dice always sits above
// IoU for the same masks, and accuracy runs high on imbalanced masks,
// so each metric gets its own cutoffs.
var metricBands = map[string]bands{
	"iou":      {excellent: 0.90, good: 0.70, fair: 0.50},
	"dice":     {excellent: 0.94, good: 0.82, fair: 0.65},
	"accuracy": {excellent: 0.99, good: 0.95, fair: 0.85},
}

// defaultBands applies to metrics without a calibrated entry.
var defaultBands = bands{excellent: 0.90, good: 0.70, fair: 0.50}

// InterpretMetric returns a plain-language label for a metric value (0-1).
func InterpretMetric(metric string, value float64) string {
	b, ok := metricBands[metric]
	if !ok {
		b = defaultBands
	}
	switch {
	case value >= b.excellent:
		return fmt.Sprintf("Excellent (>=%.2f)", b.excellent)
	case value >= b.good:
		return fmt.Sprintf("Good (%.2f-%.2f)", b.good, b.excellent)
	case value >= b.fair:
		return fmt.Sprintf("Needs Work (%.2f-%.2f)", b.fair, b.good)
	default:
		return fmt.Sprintf("Poor (<%.2f)", b.fair)
	}
}

// InterpretSuccessRate returns a human-readable explanation of the scored
// fraction (0-1).
func InterpretSuccessRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All samples scored (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most samples scored (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the samples scored (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few samples scored (%.0f%%)", pct)
	}
}

// InterpretFindings explains what the findings mean for trust in the
// numbers.
func InterpretFindings(findings []models.Finding) string {
	counts := models.CountBySeverity(findings)
	errors := counts[models.SeverityError]
	warnings := counts[models.SeverityWarning]
	switch {
	case errors > 0:
		return fmt.Sprintf("%d error finding(s); verify the label conversion before trusting these numbers.", errors)
	case warnings > 0:
		return fmt.Sprintf("%d warning(s); the scores look unusual but may be legitimate.", warnings)
	default:
		return "No findings; nothing suggests a conversion problem."
	}
}

// FormatSummaryReport produces a full plain-language report.
func FormatSummaryReport(report *models.Report) string {
	var b strings.Builder

	d := report.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	if report.Model != "" {
		b.WriteString(fmt.Sprintf("Model:         %s on %s\n", report.Model, report.Dataset))
	} else {
		b.WriteString(fmt.Sprintf("Dataset:       %s\n", report.Dataset))
	}
	b.WriteString(fmt.Sprintf("Mean IoU:      %.3f, %s\n", d.MeanIoU, InterpretMetric("iou", d.MeanIoU)))
	b.WriteString(fmt.Sprintf("Mean Dice:     %.3f, %s\n", d.MeanDice, InterpretMetric("dice", d.MeanDice)))
	b.WriteString(fmt.Sprintf("Mean Accuracy: %.3f, %s\n", d.MeanAccuracy, InterpretMetric("accuracy", d.MeanAccuracy)))
	b.WriteString(fmt.Sprintf("Coverage:      %s\n", InterpretSuccessRate(d.SuccessRate)))
	b.WriteString(fmt.Sprintf("Duration:      %v\n", duration))

	if d.TotalSamples > 0 {
		b.WriteString(fmt.Sprintf("Samples:       %d scored, %d failed out of %d total\n",
			d.Scored, d.Failed, d.TotalSamples))
	}

	b.WriteString(fmt.Sprintf("Trust:         %s\n", InterpretFindings(report.AllFindings())))

	// Per-sample interpretation
	if len(report.Samples) > 0 {
		b.WriteString("\nPer-Sample Interpretation:\n")
		for _, s := range report.Samples {
			icon := "✓"
			if s.Status != models.StatusScored {
				icon = "✗"
			}
			b.WriteString(fmt.Sprintf("  %s %s: %s", icon, s.ID, s.Status))
			if s.Metrics != nil {
				b.WriteString(fmt.Sprintf(" (iou %.3f, dice %.3f)", s.Metrics.IoU, s.Metrics.Dice))
			}
			if s.Error != "" {
				b.WriteString(": " + s.Error)
			}
			b.WriteString("\n")
			for _, f := range s.Findings {
				b.WriteString(fmt.Sprintf("    [%s] %s\n", f.Severity, f.Message))
			}
		}
	}

	if len(report.Findings) > 0 {
		b.WriteString("\nBatch Findings:\n")
		for _, f := range report.Findings {
			b.WriteString(fmt.Sprintf("  [%s] %s: %s\n", f.Severity, f.Category, f.Message))
		}
	}

	return b.String()
}
