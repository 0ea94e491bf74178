package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/pavise/maskeval/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one evaluation run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one evaluated sample.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a sample whose scores cannot be trusted.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a sample that could not be evaluated at all.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a sample as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a report to JUnit XML format. Samples that
// failed to evaluate become test errors; scored samples with
// error-severity findings become test failures, since their numbers
// exist but cannot be trusted.
func ConvertToJUnit(report *models.Report) *JUnitTestSuites {
	durationSec := float64(report.Digest.DurationMs) / 1000.0

	classname := report.Model
	if classname == "" {
		classname = report.Dataset
	}

	var failures, errors int
	cases := make([]JUnitTestCase, 0, len(report.Samples))
	for i := range report.Samples {
		tc := convertSample(classname, &report.Samples[i])
		if tc.Failure != nil {
			failures++
		}
		if tc.Error != nil {
			errors++
		}
		cases = append(cases, tc)
	}

	suite := JUnitTestSuite{
		Name:       report.Dataset,
		Tests:      len(report.Samples),
		Failures:   failures,
		Errors:     errors,
		Time:       durationSec,
		Timestamp:  report.CreatedAt.Format(time.RFC3339),
		Properties: suiteProperties(report),
		TestCases:  cases,
	}

	return &JUnitTestSuites{
		Tests:      len(report.Samples),
		Failures:   failures,
		Errors:     errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

// suiteProperties records the run parameters plus every batch-level
// error finding, so CI dashboards surface plausibility failures even
// when all samples scored.
func suiteProperties(report *models.Report) []JUnitProperty {
	props := []JUnitProperty{
		{Name: "model", Value: report.Model},
		{Name: "mean_iou", Value: fmt.Sprintf("%.4f", report.Digest.MeanIoU)},
		{Name: "mean_dice", Value: fmt.Sprintf("%.4f", report.Digest.MeanDice)},
		{Name: "mean_accuracy", Value: fmt.Sprintf("%.4f", report.Digest.MeanAccuracy)},
	}
	for _, f := range report.Findings {
		if f.Severity == models.SeverityError {
			props = append(props, JUnitProperty{
				Name:  "finding:" + f.Category,
				Value: f.Message,
			})
		}
	}
	return props
}

func convertSample(classname string, s *models.SampleResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      s.ID,
		Classname: classname,
		Time:      float64(s.DurationMs) / 1000.0,
	}

	if s.Status == models.StatusFailed {
		msg := s.Error
		if msg == "" {
			msg = "evaluation error"
		}
		tc.Error = &JUnitError{
			Message: msg,
			Type:    "EvaluationError",
		}
		return tc
	}

	if body := formatErrorFindings(s.Findings); body != "" {
		iou := 0.0
		if s.Metrics != nil {
			iou = s.Metrics.IoU
		}
		tc.Failure = &JUnitFailure{
			Message: fmt.Sprintf("%s: iou=%.2f", s.ID, iou),
			Type:    failureType(s.Findings),
			Body:    body,
		}
	}

	return tc
}

// failureType names the dominant problem. Conversion mismatches beat
// structural complaints because they invalidate the metrics outright.
func failureType(findings []models.Finding) string {
	for _, f := range findings {
		if f.Category == models.CategoryConversionMismatch {
			return "ConversionMismatch"
		}
	}
	return "MaskFinding"
}

// formatErrorFindings lists the error-severity findings one per line;
// warnings and infos stay out of the failure body.
func formatErrorFindings(findings []models.Finding) string {
	var result string
	for _, f := range findings {
		if f.Severity != models.SeverityError {
			continue
		}
		result += fmt.Sprintf("[%s] %s: %s\n", f.Severity, f.Category, f.Message)
	}
	return result
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(report *models.Report, path string) error {
	suites := ConvertToJUnit(report)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0o644)
}
