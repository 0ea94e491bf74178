package baseline

import (
	"math"

	"github.com/pavise/maskeval/internal/models"
)

// BaselineResult pairs a baseline model's report and a candidate model's
// report on the same dataset with computed improvement metrics.
type BaselineResult struct {
	Dataset         string               `json:"dataset"`
	Baseline        string               `json:"baseline_model"`
	Candidate       string               `json:"candidate_model"`
	BaselineDigest  models.Digest        `json:"baseline_digest"`
	CandidateDigest models.Digest        `json:"candidate_digest"`
	Improvement     float64              `json:"improvement"`
	Breakdown       ImprovementBreakdown `json:"improvement_breakdown"`
}

// ImprovementBreakdown captures per-metric deltas between baseline and
// candidate reports. Positive metric deltas mean the candidate scored higher;
// a positive failure-rate delta means the candidate failed more samples.
type ImprovementBreakdown struct {
	IoUDelta         float64 `json:"iou_delta"`
	DiceDelta        float64 `json:"dice_delta"`
	AccuracyDelta    float64 `json:"accuracy_delta"`
	FailureRateDelta float64 `json:"failure_rate_delta"`
}

// ComputeImprovement calculates the overall improvement score and per-metric
// breakdown between a baseline model's report and a candidate model's report.
// Returns a value in [-1, 1] where positive means the candidate is better.
func ComputeImprovement(baseline, candidate *models.Report) (float64, ImprovementBreakdown) {
	breakdown := ImprovementBreakdown{}

	breakdown.IoUDelta = candidate.Digest.MeanIoU - baseline.Digest.MeanIoU
	breakdown.DiceDelta = candidate.Digest.MeanDice - baseline.Digest.MeanDice
	breakdown.AccuracyDelta = candidate.Digest.MeanAccuracy - baseline.Digest.MeanAccuracy

	// Failure rate delta: positive means the candidate failed more samples
	breakdown.FailureRateDelta = failureRate(candidate.Digest) - failureRate(baseline.Digest)

	// Overall improvement: weighted composite clamped to [-1, 1]
	improvement := computeComposite(breakdown)

	return improvement, breakdown
}

// ComputeFromReports computes a BaselineResult for a pair of reports.
// Either side may be nil or empty, in which case the improvement is zero.
func ComputeFromReports(baseline, candidate *models.Report) *BaselineResult {
	result := &BaselineResult{}
	if candidate != nil {
		result.Dataset = candidate.Dataset
		result.Candidate = candidate.Model
	}
	if baseline != nil {
		if result.Dataset == "" {
			result.Dataset = baseline.Dataset
		}
		result.Baseline = baseline.Model
	}
	if baseline == nil || candidate == nil ||
		baseline.Digest.TotalSamples == 0 || candidate.Digest.TotalSamples == 0 {
		return result
	}

	result.BaselineDigest = baseline.Digest
	result.CandidateDigest = candidate.Digest
	result.Improvement, result.Breakdown = ComputeImprovement(baseline, candidate)

	return result
}

func failureRate(d models.Digest) float64 {
	if d.TotalSamples == 0 {
		return 0.0
	}
	return float64(d.Failed) / float64(d.TotalSamples)
}

// computeComposite produces a [-1, 1] improvement score.
// Overlap deltas are the primary signal; pixel accuracy is dampened because
// background pixels inflate it. The failure-rate delta is inverted: fewer
// candidate failures count toward improvement.
func computeComposite(b ImprovementBreakdown) float64 {
	score := b.DiceDelta*0.35 +
		b.IoUDelta*0.35 +
		b.AccuracyDelta*0.1 +
		(-b.FailureRateDelta)*0.2

	return math.Max(-1.0, math.Min(1.0, score))
}
