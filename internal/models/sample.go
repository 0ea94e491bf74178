package models

// Status represents the terminal state of a single sample evaluation.
type Status string

const (
	// StatusScored means both masks encoded and metrics were computed.
	StatusScored Status = "scored"
	// StatusFailed means the sample could not be scored (conversion or
	// I/O error); it is counted but excluded from aggregates.
	StatusFailed Status = "failed"
)

// SampleMetrics holds the three overlap metrics for one prediction/truth
// pair. All values are in [0, 1].
type SampleMetrics struct {
	IoU      float64 `json:"iou"`
	Dice     float64 `json:"dice"`
	Accuracy float64 `json:"accuracy"`
}

// MetricNames lists the metric keys in canonical display order.
func MetricNames() []string {
	return []string{"iou", "dice", "accuracy"}
}

// Value returns the named metric, or false when the name is unknown.
func (m SampleMetrics) Value(name string) (float64, bool) {
	switch name {
	case "iou":
		return m.IoU, true
	case "dice":
		return m.Dice, true
	case "accuracy":
		return m.Accuracy, true
	}
	return 0, false
}

// SampleResult is the per-sample record in a report. Failed samples carry
// an error string and no metrics.
type SampleResult struct {
	ID         string         `json:"id"`
	Status     Status         `json:"status"`
	Metrics    *SampleMetrics `json:"metrics,omitempty"`
	Findings   []Finding      `json:"findings,omitempty"`
	Error      string         `json:"error,omitempty"`
	FromCache  bool           `json:"from_cache,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}
