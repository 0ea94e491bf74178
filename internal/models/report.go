package models

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// Aggregate summarizes one metric across every scored sample in a batch.
// It is built exactly once when the batch completes and not mutated after.
type Aggregate struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
	// Values preserves the per-sample series for downstream statistics
	// (bootstrap intervals, degenerate-distribution checks).
	Values []float64 `json:"values,omitempty"`
}

// NewAggregate computes mean, population standard deviation, and extrema
// over values. The result is independent of input order.
func NewAggregate(values []float64) Aggregate {
	agg := Aggregate{Count: len(values)}
	if len(values) == 0 {
		return agg
	}

	agg.Min, agg.Max = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		sum += v
		if v < agg.Min {
			agg.Min = v
		}
		if v > agg.Max {
			agg.Max = v
		}
	}
	agg.Mean = sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - agg.Mean
		variance += d * d
	}
	variance /= float64(len(values))
	agg.StdDev = math.Sqrt(variance)

	agg.Values = append([]float64(nil), values...)
	return agg
}

// Digest is the at-a-glance summary of a report.
type Digest struct {
	TotalSamples int     `json:"total_samples"`
	Scored       int     `json:"scored"`
	Failed       int     `json:"failed"`
	SuccessRate  float64 `json:"success_rate"`
	MeanIoU      float64 `json:"mean_iou"`
	MeanDice     float64 `json:"mean_dice"`
	MeanAccuracy float64 `json:"mean_accuracy"`
	DurationMs   int64   `json:"duration_ms"`
}

// Report is the complete output of evaluating one model on one dataset.
type Report struct {
	Dataset   string    `json:"dataset"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Samples    []SampleResult       `json:"samples"`
	Aggregates map[string]Aggregate `json:"aggregates"`

	// Findings holds batch-level findings (plausibility, cross-checks).
	// Sample-scoped findings live on each SampleResult.
	Findings []Finding `json:"findings,omitempty"`

	Digest Digest `json:"digest"`
}

// ComputeDigest fills the digest from samples and aggregates.
func (r *Report) ComputeDigest(duration time.Duration) {
	d := Digest{
		TotalSamples: len(r.Samples),
		DurationMs:   duration.Milliseconds(),
	}
	for _, s := range r.Samples {
		switch s.Status {
		case StatusScored:
			d.Scored++
		case StatusFailed:
			d.Failed++
		}
	}
	if d.TotalSamples > 0 {
		d.SuccessRate = float64(d.Scored) / float64(d.TotalSamples)
	}
	d.MeanIoU = r.Aggregates["iou"].Mean
	d.MeanDice = r.Aggregates["dice"].Mean
	d.MeanAccuracy = r.Aggregates["accuracy"].Mean
	r.Digest = d
}

// AllFindings returns batch-level findings followed by sample findings in
// sample order. The slice is freshly allocated.
func (r *Report) AllFindings() []Finding {
	out := append([]Finding(nil), r.Findings...)
	for _, s := range r.Samples {
		out = append(out, s.Findings...)
	}
	return out
}

// Save writes the report as indented JSON, creating parent directories.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// LoadReport reads a report previously written by Save.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}
