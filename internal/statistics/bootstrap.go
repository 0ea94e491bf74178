// Package statistics provides the resampling helpers used when two
// evaluation runs are compared: bootstrap confidence intervals over
// per-sample metric scores, and paired per-sample deltas between runs.
package statistics

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// BootstrapCI computes a bootstrap confidence interval over the given
// per-sample scores using the percentile method. confidenceLevel should
// be in (0, 1), e.g. 0.95. Returns a degenerate interval when fewer
// than 2 samples exist.
func BootstrapCI(scores []float64, confidenceLevel float64) ConfidenceInterval {
	return BootstrapCIWithSeed(scores, confidenceLevel, -1)
}

// BootstrapCIWithSeed is like BootstrapCI but accepts a seed for reproducibility.
// A negative seed uses a non-deterministic source.
func BootstrapCIWithSeed(scores []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	n := len(scores)
	if n < 2 {
		m := mean(scores)
		return ConfidenceInterval{
			Lower:           m,
			Upper:           m,
			Mean:            m,
			ConfidenceLevel: confidenceLevel,
			NumBootstraps:   0,
		}
	}

	var rng *rand.Rand
	if seed >= 0 {
		rng = rand.New(rand.NewSource(seed))
	} else {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	m := mean(scores)
	iters := DefaultBootstrapIterations

	// Resample with replacement, collecting the mean of each resample.
	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := 0; i < iters; i++ {
		for j := 0; j < n; j++ {
			sample[j] = scores[rng.Intn(n)]
		}
		bootMeans[i] = mean(sample)
	}

	sort.Float64s(bootMeans)

	// Percentile method
	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(iters)))
	if hiIdx >= iters {
		hiIdx = iters - 1
	}

	return ConfidenceInterval{
		Lower:           bootMeans[loIdx],
		Upper:           bootMeans[hiIdx],
		Mean:            m,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

// IsSignificant returns true if the confidence interval does not contain
// zero. Applied to an interval over paired score deltas, this is the
// test for "model B genuinely differs from model A" at the interval's
// confidence level.
func IsSignificant(ci ConfidenceInterval) bool {
	return ci.Lower > 0 || ci.Upper < 0
}

// PairedDeltas returns after[i]-before[i] for every sample pair. The
// two runs must score the same samples in the same order; a length
// mismatch is an error because silently truncating would bias the
// comparison.
func PairedDeltas(before, after []float64) ([]float64, error) {
	if len(before) != len(after) {
		return nil, fmt.Errorf("statistics: paired series differ in length: %d vs %d", len(before), len(after))
	}
	deltas := make([]float64, len(before))
	for i := range before {
		deltas[i] = after[i] - before[i]
	}
	return deltas, nil
}

// NormalizedGain computes Hake's normalized gain (1998):
//
//	g = (post - pre) / (1 - pre)
//
// For metrics bounded at 1.0 this controls for ceiling effects — lifting
// IoU from 0.90 to 0.95 is harder than from 0.10 to 0.15.
// Returns 0 if pre >= 1.0 (already at ceiling) or pre == post (no change).
// Returns 1.0 if post >= 1.0 (reached maximum).
func NormalizedGain(pre, post float64) float64 {
	if pre >= 1.0 {
		return 0.0
	}
	if post >= 1.0 {
		return 1.0
	}
	if math.Abs(post-pre) < 1e-12 {
		return 0.0
	}
	return (post - pre) / (1.0 - pre)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
