package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/pavise/maskeval/cmd/maskeval/dev"
	"github.com/pavise/maskeval/internal/checks"
	"github.com/pavise/maskeval/internal/dataset"
	"github.com/pavise/maskeval/internal/discovery"
	"github.com/pavise/maskeval/internal/models"
	"github.com/pavise/maskeval/internal/validation"
	"github.com/pavise/maskeval/internal/workspace"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [dataset-name | dataset-path]",
		Short: "Check if a dataset is ready for evaluation",
		Long: `Check if a dataset is ready for evaluation by running schema, structural, and card checks.

Performs the following checks:
  1. Manifest schema - Validates eval.yaml against the manifest schema
  2. Mask structure  - Loads every sample and flags structural problems
  3. Card links      - Verifies README links and mask file references

With no arguments, uses workspace detection to find datasets automatically:
  - Single-dataset workspace → checks that dataset
  - Multi-dataset workspace → checks ALL datasets with summary table

You can also specify a dataset name or path:
  maskeval check roads-val          # by dataset name
  maskeval check datasets/roads-val # by path
  maskeval check .                  # current directory`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          runCheck,
		SilenceErrors: true,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

// --- JSON output structs ---

type checkJSONReport struct {
	Timestamp string              `json:"timestamp"`
	Datasets  []datasetJSONReport `json:"datasets"`
}

type datasetJSONReport struct {
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	Ready     bool          `json:"ready"`
	Schema    schemaJSON    `json:"schema"`
	Structure structureJSON `json:"structure"`
	Links     *linksJSON    `json:"links,omitempty"`
	NextSteps []string      `json:"nextSteps"`
}

type schemaJSON struct {
	Valid          bool     `json:"valid"`
	ManifestErrors []string `json:"manifestErrors,omitempty"`
	CSVErrors      []string `json:"csvErrors,omitempty"`
}

type structureJSON struct {
	SamplesChecked int           `json:"samplesChecked"`
	LoadErrors     []string      `json:"loadErrors,omitempty"`
	Findings       []findingJSON `json:"findings,omitempty"`
}

type findingJSON struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Sample   string `json:"sample,omitempty"`
	Message  string `json:"message"`
}

type linkIssueJSON struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

type linksJSON struct {
	Valid             int             `json:"valid"`
	Total             int             `json:"total"`
	Passed            bool            `json:"passed"`
	BrokenLinks       []linkIssueJSON `json:"brokenLinks,omitempty"`
	DirectoryLinks    []linkIssueJSON `json:"directoryLinks,omitempty"`
	ScopeEscapes      []linkIssueJSON `json:"scopeEscapes,omitempty"`
	UnreferencedMasks []string        `json:"unreferencedMasks,omitempty"`
}

// readinessReport aggregates every check's output for one dataset.
type readinessReport struct {
	datasetName    string
	datasetDir     string
	manifestPath   string
	manifestErrs   []string // eval.yaml schema errors (including load failures)
	csvErrs        []string // sample CSV shape errors
	sampleCount    int      // prediction/truth pairs checked
	loadErrs       []string // masks that could not be loaded
	structFindings []models.Finding
	linkResult     *dev.LinkResult
}

// ready reports whether nothing blocking was found. Warnings don't block.
func (r *readinessReport) ready() bool {
	return len(r.manifestErrs) == 0 &&
		len(r.csvErrs) == 0 &&
		len(r.loadErrs) == 0 &&
		!hasErrorSeverity(r.structFindings) &&
		(r.linkResult == nil || r.linkResult.Passed())
}

func hasErrorSeverity(findings []models.Finding) bool {
	for _, f := range findings {
		if f.Severity == models.SeverityError {
			return true
		}
	}
	return false
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", format)
	}

	// If arg looks like a file path, use it directly
	if len(args) > 0 && workspace.LooksLikePath(args[0]) {
		datasetDir := args[0]
		if strings.HasSuffix(datasetDir, discovery.ManifestFilename) {
			datasetDir = filepath.Dir(datasetDir)
		}
		if !filepath.IsAbs(datasetDir) {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting working directory: %w", err)
			}
			datasetDir = filepath.Join(wd, datasetDir)
		}
		report := checkReadiness(datasetDir)
		return outputCheckReport(cmd, format, []*readinessReport{report})
	}

	// Try workspace detection
	wsCtx, err := resolveWorkspace(args)
	if err == nil && len(wsCtx.Datasets) > 0 {
		return runCheckForDatasets(cmd, wsCtx, format)
	}

	// Fallback: current directory
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	report := checkReadiness(wd)
	return outputCheckReport(cmd, format, []*readinessReport{report})
}

func runCheckForDatasets(cmd *cobra.Command, wsCtx *workspace.WorkspaceContext, format string) error {
	w := cmd.OutOrStdout()
	var reports []*readinessReport

	for i, di := range wsCtx.Datasets {
		if format == "text" && len(wsCtx.Datasets) > 1 {
			if i > 0 {
				fmt.Fprintln(w) //nolint:errcheck
			}
			fmt.Fprintf(w, "\n=== %s ===\n", di.Name) //nolint:errcheck
		}

		report := checkReadiness(di.Dir)
		reports = append(reports, report)
		if format == "text" {
			displayReadinessReport(w, report)
		}
	}

	if format == "text" && len(wsCtx.Datasets) > 1 {
		printCheckSummaryTable(w, reports)
	}

	if format == "json" {
		return outputCheckJSON(cmd, reports)
	}
	return checkFailure(reports)
}

// checkFailure converts blocking findings into the exit-1 error type.
func checkFailure(reports []*readinessReport) error {
	notReady := 0
	for _, r := range reports {
		if !r.ready() {
			notReady++
		}
	}
	if notReady > 0 {
		return &EvalFailedError{Message: fmt.Sprintf("%d dataset(s) not ready", notReady)}
	}
	return nil
}

// checkReadiness runs every check against one dataset directory. It never
// returns an error: problems land in the report so a multi-dataset check
// can keep going.
func checkReadiness(datasetDir string) *readinessReport {
	report := &readinessReport{
		datasetDir:   datasetDir,
		datasetName:  filepath.Base(datasetDir),
		manifestPath: filepath.Join(datasetDir, discovery.ManifestFilename),
	}

	// 1. Validate eval.yaml against the manifest schema
	manifestErrs, csvErrs, err := validation.ValidateManifestFile(report.manifestPath)
	if err != nil {
		report.manifestErrs = append(report.manifestErrs, err.Error())
	} else {
		report.manifestErrs = manifestErrs
		report.csvErrs = csvErrs
	}

	// 2. Load the manifest for the structural pass. Schema errors above
	// don't necessarily stop parsing, so try regardless.
	m, err := dataset.Load(report.manifestPath)
	if err != nil {
		if len(report.manifestErrs) == 0 {
			report.manifestErrs = append(report.manifestErrs, err.Error())
		}
	} else {
		report.datasetName = m.Name
		checkStructure(report, m)
	}

	// 3. Card link validation
	report.linkResult = dev.CheckLinks(datasetDir)

	return report
}

// checkStructure loads every sample pair and runs the structural checkers
// on both masks. Ground-truth masks shared between models are checked once.
func checkStructure(report *readinessReport, m *dataset.Manifest) {
	modelNames := m.ModelNames()
	if len(modelNames) == 0 {
		modelNames = []string{""}
	}

	seenTruth := make(map[string]bool)
	for _, name := range modelNames {
		pairs, err := m.Pairs(report.datasetDir, name)
		if err != nil {
			report.manifestErrs = append(report.manifestErrs, err.Error())
			continue
		}
		for _, pair := range pairs {
			report.sampleCount++
			pred, truth, err := dataset.LoadSources(pair, m.Encoding)
			if err != nil {
				report.loadErrs = append(report.loadErrs, fmt.Sprintf("%s: %v", pair.ID, err))
				continue
			}

			label := pair.ID
			if name != "" {
				label = pair.ID + "/" + name
			}
			report.structFindings = append(report.structFindings,
				annotate(checks.ValidateStructure(pred), label+" (prediction)")...)
			if !seenTruth[pair.TruthPath] {
				seenTruth[pair.TruthPath] = true
				report.structFindings = append(report.structFindings,
					annotate(checks.ValidateStructure(truth), pair.ID+" (truth)")...)
			}
		}
	}
}

// annotate stamps every finding with the sample label it came from.
func annotate(findings []models.Finding, sample string) []models.Finding {
	for i := range findings {
		findings[i].Sample = sample
	}
	return findings
}

func printCheckSummaryTable(w interface{ Write([]byte) (int, error) }, reports []*readinessReport) {
	const maxNameWidth = 25
	const minNameWidth = 10

	// Compute dynamic column width from the longest dataset name.
	nameWidth := len("Dataset")
	for _, r := range reports {
		n := r.datasetName
		if n == "" {
			n = "unnamed"
		}
		if runeLen := utf8.RuneCountInString(n); runeLen > nameWidth {
			nameWidth = runeLen
		}
	}
	if nameWidth > maxNameWidth {
		nameWidth = maxNameWidth
	}
	if nameWidth < minNameWidth {
		nameWidth = minNameWidth
	}

	// Fixed column widths (display columns) for emoji-safe alignment.
	const colSchema = 8
	const colSamples = 10
	const colStructure = 11
	const colLinks = 7
	totalWidth := nameWidth + colSchema + colSamples + colStructure + colLinks + 5*2 + len("Ready")

	fmt.Fprintf(w, "\n")                                      //nolint:errcheck
	fmt.Fprintf(w, "%s\n", strings.Repeat("═", totalWidth))   //nolint:errcheck
	fmt.Fprintf(w, " CHECK SUMMARY\n")                        //nolint:errcheck
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("═", totalWidth)) //nolint:errcheck

	fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
		padRight("Dataset", nameWidth),
		padRight("Schema", colSchema),
		padRight("Samples", colSamples),
		padRight("Structure", colStructure),
		padRight("Links", colLinks),
		"Ready")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", totalWidth)) //nolint:errcheck

	for _, r := range reports {
		name := r.datasetName
		if name == "" {
			name = "unnamed"
		}
		name = truncateName(name, nameWidth)

		schemaStatus := "✅"
		if len(r.manifestErrs) > 0 || len(r.csvErrs) > 0 {
			schemaStatus = "❌"
		}
		structStatus := "✅"
		if len(r.loadErrs) > 0 || hasErrorSeverity(r.structFindings) {
			structStatus = "❌"
		} else if len(r.structFindings) > 0 {
			structStatus = "⚠️ "
		}
		linkStatus := "✅"
		if r.linkResult != nil && !r.linkResult.Passed() {
			linkStatus = "⚠️ "
		}
		readyStatus := "✅"
		if !r.ready() {
			readyStatus = "❌"
		}
		samplesStr := fmt.Sprintf("%d", r.sampleCount)
		if n := len(r.loadErrs); n > 0 {
			samplesStr = fmt.Sprintf("%d (%d!)", r.sampleCount, n)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s  %s  %s\n", //nolint:errcheck
			padRight(name, nameWidth),
			padRight(schemaStatus, colSchema),
			padRight(samplesStr, colSamples),
			padRight(structStatus, colStructure),
			padRight(linkStatus, colLinks),
			readyStatus)
	}
	fmt.Fprintf(w, "\n") //nolint:errcheck
}

// truncateName shortens a name to maxLen runes, replacing the last rune with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// outputCheckReport dispatches to text or JSON output.
func outputCheckReport(cmd *cobra.Command, format string, reports []*readinessReport) error {
	if format == "json" {
		return outputCheckJSON(cmd, reports)
	}
	w := cmd.OutOrStdout()
	for _, report := range reports {
		displayReadinessReport(w, report)
	}
	return checkFailure(reports)
}

// outputCheckJSON marshals reports as JSON to the command's stdout.
func outputCheckJSON(cmd *cobra.Command, reports []*readinessReport) error {
	jsonReport := checkJSONReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Datasets:  make([]datasetJSONReport, 0, len(reports)),
	}
	for _, r := range reports {
		jsonReport.Datasets = append(jsonReport.Datasets, buildDatasetJSON(r))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	if _, err := fmt.Fprint(cmd.OutOrStdout(), buf.String()); err != nil {
		return err
	}
	return checkFailure(reports)
}

// buildDatasetJSON converts a readinessReport to its JSON representation.
func buildDatasetJSON(report *readinessReport) datasetJSONReport {
	name := report.datasetName
	if name == "" {
		name = "unnamed-dataset"
	}

	jr := datasetJSONReport{
		Name:  name,
		Path:  report.manifestPath,
		Ready: report.ready(),
	}

	jr.Schema = schemaJSON{
		Valid:          len(report.manifestErrs) == 0 && len(report.csvErrs) == 0,
		ManifestErrors: report.manifestErrs,
		CSVErrors:      report.csvErrs,
	}

	jr.Structure = structureJSON{
		SamplesChecked: report.sampleCount,
		LoadErrors:     report.loadErrs,
	}
	for _, f := range report.structFindings {
		jr.Structure.Findings = append(jr.Structure.Findings, findingJSON{
			Severity: string(f.Severity),
			Category: f.Category,
			Sample:   f.Sample,
			Message:  f.Message,
		})
	}

	if report.linkResult != nil {
		lr := &linksJSON{
			Valid:  report.linkResult.ValidLinks,
			Total:  report.linkResult.TotalLinks,
			Passed: report.linkResult.Passed(),
		}
		for _, bl := range report.linkResult.BrokenLinks {
			lr.BrokenLinks = append(lr.BrokenLinks, linkIssueJSON{Source: bl.Source, Target: bl.Target, Reason: bl.Reason})
		}
		for _, dl := range report.linkResult.DirectoryLinks {
			lr.DirectoryLinks = append(lr.DirectoryLinks, linkIssueJSON{Source: dl.Source, Target: dl.Target, Reason: dl.Reason})
		}
		for _, se := range report.linkResult.ScopeEscapes {
			lr.ScopeEscapes = append(lr.ScopeEscapes, linkIssueJSON{Source: se.Source, Target: se.Target, Reason: se.Reason})
		}
		lr.UnreferencedMasks = report.linkResult.UnreferencedMasks
		jr.Links = lr
	}

	jr.NextSteps = generateNextSteps(report)

	return jr
}

// ---------------------------------------------------------------------------
// Shared display helpers for check output formatting.
//
// Convention:
//   Section header:  "emoji Title: summary\n"
//   Status line:     "   emoji  message\n"   (3-space indent, emoji, 2-space gap)
//
// 3-state icons:  ✅ = ok/passed   ⚠️ = warning   ❌ = error/failed
// ---------------------------------------------------------------------------

type writer = interface{ Write([]byte) (int, error) }

// writeSection prints a section header: "emoji Title: summary\n".
//
//nolint:errcheck
func writeSection(w writer, emoji, title, summary string) {
	if summary != "" {
		fmt.Fprintf(w, "%s %s: %s\n", emoji, title, summary)
	} else {
		fmt.Fprintf(w, "%s %s\n", emoji, title)
	}
}

// writeStatus prints a status line: "   icon  message\n".
//
//nolint:errcheck
func writeStatus(w writer, icon, message string) {
	fmt.Fprintf(w, "   %s  %s\n", icon, message)
}

// statusIcon returns the standard 3-state icon for the given state.
func statusIcon(state string) string {
	switch state {
	case "ok":
		return "✅"
	case "warning":
		return "⚠️"
	case "error":
		return "❌"
	default:
		return "—"
	}
}

func severityState(sev models.Severity) string {
	switch sev {
	case models.SeverityError:
		return "error"
	case models.SeverityWarning:
		return "warning"
	default:
		return "ok"
	}
}

//nolint:errcheck // display function — fmt.Fprintf errors to stdout are not actionable
func displayReadinessReport(out writer, report *readinessReport) {
	w := out

	// Header
	fmt.Fprintf(w, "\n🔍 Dataset Readiness Check\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	name := report.datasetName
	if name == "" {
		name = "unnamed-dataset"
	}
	fmt.Fprintf(w, "Dataset: %s\n\n", name)

	// 1. Manifest Schema
	if len(report.manifestErrs) == 0 && len(report.csvErrs) == 0 {
		writeSection(w, "📐", "Manifest Schema", "Valid")
		writeStatus(w, statusIcon("ok"), "eval.yaml matches the manifest schema.")
	} else {
		total := len(report.manifestErrs) + len(report.csvErrs)
		writeSection(w, "📐", "Manifest Schema", fmt.Sprintf("%d error(s)", total))
		for _, e := range report.manifestErrs {
			writeStatus(w, statusIcon("error"), e)
		}
		for _, e := range report.csvErrs {
			writeStatus(w, statusIcon("error"), "samples CSV: "+e)
		}
	}
	fmt.Fprintf(w, "\n")

	// 2. Mask Structure
	writeSection(w, "🧩", "Mask Structure", fmt.Sprintf("%d sample(s) checked", report.sampleCount))
	switch {
	case len(report.loadErrs) > 0:
		writeStatus(w, statusIcon("error"), fmt.Sprintf("%d mask(s) could not be loaded.", len(report.loadErrs)))
		for _, e := range report.loadErrs {
			writeStatus(w, statusIcon("error"), e)
		}
	case len(report.structFindings) == 0 && report.sampleCount > 0:
		writeStatus(w, statusIcon("ok"), "All masks are structurally sound.")
	case report.sampleCount == 0:
		writeStatus(w, statusIcon("warning"), "No samples were checked.")
	}
	for _, f := range report.structFindings {
		writeStatus(w, statusIcon(severityState(f.Severity)), fmt.Sprintf("[%s] %s: %s", f.Sample, f.Category, f.Message))
	}
	fmt.Fprintf(w, "\n")

	// 3. Card Links
	if report.linkResult != nil {
		writeSection(w, "📎", "Card Links", fmt.Sprintf("%d/%d valid", report.linkResult.ValidLinks, report.linkResult.TotalLinks))
		if report.linkResult.Passed() {
			if report.linkResult.TotalLinks == 0 {
				writeStatus(w, statusIcon("neutral"), "No links found.")
			} else {
				writeStatus(w, statusIcon("ok"), "All links valid.")
			}
		}
		for _, bl := range report.linkResult.BrokenLinks {
			writeStatus(w, statusIcon("error"), fmt.Sprintf("[%s] %s: %s", bl.Source, bl.Target, bl.Reason))
		}
		for _, dl := range report.linkResult.DirectoryLinks {
			writeStatus(w, statusIcon("warning"), fmt.Sprintf("[%s] %s: %s", dl.Source, dl.Target, dl.Reason))
		}
		for _, se := range report.linkResult.ScopeEscapes {
			writeStatus(w, statusIcon("error"), fmt.Sprintf("[%s] %s: %s", se.Source, se.Target, se.Reason))
		}
		if len(report.linkResult.UnreferencedMasks) > 0 {
			fmt.Fprintf(w, "\n   Unreferenced mask files:\n")
			for _, f := range report.linkResult.UnreferencedMasks {
				writeStatus(w, statusIcon("warning"), f)
			}
		}
		fmt.Fprintf(w, "\n")
	}

	// Overall Readiness Assessment
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "📈 Overall Readiness\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	if report.ready() {
		fmt.Fprintf(w, "✅ Your dataset is ready for evaluation!\n\n")
	} else {
		fmt.Fprintf(w, "⚠️  Your dataset needs some work before evaluation.\n\n")
	}

	// Next Steps
	steps := generateNextSteps(report)
	if len(steps) > 0 {
		fmt.Fprintf(w, "🎯 Next Steps\n")
		fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
		for i, step := range steps {
			fmt.Fprintf(w, "%d. %s\n", i+1, step)
		}
		fmt.Fprintf(w, "\n")
	} else {
		fmt.Fprintf(w, "✨ No action needed. Run 'maskeval run eval.yaml' to evaluate.\n\n")
	}
}

func generateNextSteps(report *readinessReport) []string {
	var steps []string

	if len(report.manifestErrs) > 0 {
		steps = append(steps, fmt.Sprintf("Fix %d schema error(s) in eval.yaml", len(report.manifestErrs)))
	}
	if len(report.csvErrs) > 0 {
		steps = append(steps, fmt.Sprintf("Fix %d error(s) in the samples CSV", len(report.csvErrs)))
	}
	if len(report.loadErrs) > 0 {
		steps = append(steps, fmt.Sprintf("Fix %d mask file(s) that could not be loaded", len(report.loadErrs)))
	}
	errFindings := 0
	for _, f := range report.structFindings {
		if f.Severity == models.SeverityError {
			errFindings++
		}
	}
	if errFindings > 0 {
		steps = append(steps, fmt.Sprintf("Fix %d structural error(s) in the masks", errFindings))
	}
	if report.linkResult != nil && !report.linkResult.Passed() {
		if n := len(report.linkResult.BrokenLinks) + len(report.linkResult.DirectoryLinks) + len(report.linkResult.ScopeEscapes); n > 0 {
			steps = append(steps, fmt.Sprintf("Fix %d card link issue(s); run 'maskeval dev links' for detail", n))
		}
		if n := len(report.linkResult.UnreferencedMasks); n > 0 {
			steps = append(steps, fmt.Sprintf("Reference or remove %d unused mask file(s)", n))
		}
	}

	return steps
}
