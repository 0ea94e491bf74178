package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/pavise/maskeval/internal/models"
)

// FormatMarkdownSummary renders the report as a markdown fragment
// suitable for a CI comment: a metrics table, the sample tally, and
// every finding with its sample attribution.
func FormatMarkdownSummary(report *models.Report) string {
	var b strings.Builder
	d := report.Digest

	title := report.Dataset
	if report.Model != "" {
		title = fmt.Sprintf("%s / %s", report.Dataset, report.Model)
	}
	b.WriteString(fmt.Sprintf("## Mask Evaluation: %s\n\n", title))

	duration := time.Duration(d.DurationMs) * time.Millisecond
	b.WriteString(fmt.Sprintf("**%d/%d samples scored** in %v.\n\n", d.Scored, d.TotalSamples, duration))

	b.WriteString("| Metric | Mean | Min | Max | Interpretation |\n")
	b.WriteString("|--------|------|-----|-----|----------------|\n")
	for _, name := range models.MetricNames() {
		agg, ok := report.Aggregates[name]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("| %s | %.3f | %.3f | %.3f | %s |\n",
			name, agg.Mean, agg.Min, agg.Max, InterpretMetric(name, agg.Mean)))
	}

	if failed := failedSamples(report); len(failed) > 0 {
		b.WriteString("\n### Failed Samples\n\n")
		for _, s := range failed {
			b.WriteString(fmt.Sprintf("- `%s`: %s\n", s.ID, s.Error))
		}
	}

	all := report.AllFindings()
	if len(all) == 0 {
		b.WriteString("\nNo findings.\n")
		return b.String()
	}

	b.WriteString("\n### Findings\n\n")
	for _, f := range all {
		b.WriteString(fmt.Sprintf("- **%s** `%s`: %s", f.Severity, f.Category, f.Message))
		if f.Sample != "" {
			b.WriteString(fmt.Sprintf(" (sample `%s`)", f.Sample))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func failedSamples(report *models.Report) []models.SampleResult {
	var failed []models.SampleResult
	for _, s := range report.Samples {
		if s.Status == models.StatusFailed {
			failed = append(failed, s)
		}
	}
	return failed
}
