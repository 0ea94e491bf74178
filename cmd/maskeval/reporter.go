package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pavise/maskeval/internal/models"
	"github.com/pavise/maskeval/internal/orchestration"
	"github.com/pavise/maskeval/internal/reporting"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	// Use the built-in formatting but ensure we control it
	return d.String()
}

// truncate shortens s to maxLen characters, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func simpleProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventSampleCached:
		fmt.Printf("✓ [%d/%d] %s [cached]\n", event.SampleNum, event.TotalSamples, event.SampleID)
	case orchestration.EventSampleComplete:
		status := "✓"
		if event.Status != models.StatusScored {
			status = "✗"
		}
		fmt.Printf("%s [%d/%d] %s\n", status, event.SampleNum, event.TotalSamples, event.SampleID)
	}
}

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventRunStart:
		fmt.Printf("Evaluating %d sample(s)...\n\n", event.TotalSamples)
	case orchestration.EventSampleStart:
		fmt.Printf("  Sample %s [%d/%d]...", event.SampleID, event.SampleNum, event.TotalSamples)
	case orchestration.EventSampleCached:
		fmt.Printf("  Sample %s [%d/%d]... %s [cached]\n", event.SampleID, event.SampleNum, event.TotalSamples, event.Status)
	case orchestration.EventSampleComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf(" %s (%s)", event.Status, formatDuration(duration))
		if iou, ok := event.Details["iou"].(float64); ok && event.Status == models.StatusScored {
			fmt.Printf("  iou=%.4f", iou)
		}
		fmt.Println()
	case orchestration.EventRunStopped:
		if reason, ok := event.Details["reason"].(string); ok {
			fmt.Printf("  [STOPPED] %s\n", truncate(reason, 200))
		}
	case orchestration.EventRunComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("\nEvaluation completed in %s\n\n", formatDuration(duration))
	}
}

func printSummary(report *models.Report, interpret bool) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" EVALUATION RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	digest := report.Digest

	fmt.Printf("Total Samples:  %d\n", digest.TotalSamples)
	fmt.Printf("Scored:         %d\n", digest.Scored)
	fmt.Printf("Failed:         %d\n", digest.Failed)
	fmt.Printf("Success Rate:   %.1f%%\n", digest.SuccessRate*100)

	duration := time.Duration(digest.DurationMs) * time.Millisecond
	fmt.Printf("Duration:       %s\n", formatDuration(duration))
	fmt.Println()

	// Per-metric breakdown
	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Println(" METRICS")
	fmt.Println("-" + strings.Repeat("-", 50))

	metricNames := make([]string, 0, len(report.Aggregates))
	for name := range report.Aggregates {
		metricNames = append(metricNames, name)
	}
	sort.Strings(metricNames)

	for _, name := range metricNames {
		agg := report.Aggregates[name]
		fmt.Printf("  %s  mean=%.4f  min=%.4f  max=%.4f  stddev=%.4f\n",
			padRight(name, 10), agg.Mean, agg.Min, agg.Max, agg.StdDev)
		if interpret {
			fmt.Printf("  %s  %s\n", padRight("", 10), reporting.InterpretMetric(name, agg.Mean))
		}
	}
	fmt.Println()

	// Show failed samples
	if digest.Failed > 0 {
		fmt.Println("Failed Samples:")
		for _, s := range report.Samples {
			if s.Status != models.StatusScored {
				fmt.Printf("  - %s: %s\n", s.ID, truncate(s.Error, 120))
			}
		}
		fmt.Println()
	}

	// Show findings grouped by severity, errors first
	findings := report.AllFindings()
	if len(findings) > 0 {
		fmt.Printf("⚠ Findings (%d):\n", len(findings))
		for _, sev := range []models.Severity{models.SeverityError, models.SeverityWarning, models.SeverityInfo} {
			for _, f := range findings {
				if f.Severity != sev {
					continue
				}
				label := string(f.Severity)
				if f.Sample != "" {
					label += " " + f.Sample
				}
				fmt.Printf("  [%s] %s: %s\n", label, f.Category, f.Message)
				if f.Recommendation != "" {
					fmt.Printf("      → %s\n", f.Recommendation)
				}
			}
		}
		fmt.Println()
	}

	if interpret {
		fmt.Printf("Assessment: %s\n", reporting.InterpretSuccessRate(digest.SuccessRate))
		if msg := reporting.InterpretFindings(findings); msg != "" {
			fmt.Printf("Findings:   %s\n", msg)
		}
		fmt.Println()
	}
}
