package webapi

import "time"

// ReportSummary is the API response for a single report in the list.
type ReportSummary struct {
	ID          string    `json:"id"`
	Dataset     string    `json:"dataset"`
	Model       string    `json:"model"`
	Outcome     string    `json:"outcome"`
	ScoredCount int       `json:"scoredCount"`
	SampleCount int       `json:"sampleCount"`
	MeanIoU     float64   `json:"meanIoU"`
	MeanDice    float64   `json:"meanDice"`
	Findings    int       `json:"findings"`
	Duration    float64   `json:"duration"`
	Timestamp   time.Time `json:"timestamp"`
}

// ReportDetail is the API response for a single report with per-sample
// results and batch-level findings.
type ReportDetail struct {
	ReportSummary
	Samples       []SampleResponse  `json:"samples"`
	BatchFindings []FindingResponse `json:"batchFindings"`
}

// SampleResponse is a per-sample result within a report.
type SampleResponse struct {
	ID        string            `json:"id"`
	Outcome   string            `json:"outcome"`
	IoU       float64           `json:"iou"`
	Dice      float64           `json:"dice"`
	Accuracy  float64           `json:"accuracy"`
	Duration  float64           `json:"duration"`
	FromCache bool              `json:"fromCache"`
	Error     string            `json:"error,omitempty"`
	Findings  []FindingResponse `json:"findings"`
}

// FindingResponse is a single validator finding.
type FindingResponse struct {
	Severity       string `json:"severity"`
	Category       string `json:"category"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation,omitempty"`
	Metric         string `json:"metric,omitempty"`
}

// SummaryResponse is the aggregate KPI response.
type SummaryResponse struct {
	TotalReports int     `json:"totalReports"`
	TotalSamples int     `json:"totalSamples"`
	ScoreRate    float64 `json:"scoreRate"`
	AvgMeanIoU   float64 `json:"avgMeanIoU"`
	AvgMeanDice  float64 `json:"avgMeanDice"`
	AvgDuration  float64 `json:"avgDuration"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
