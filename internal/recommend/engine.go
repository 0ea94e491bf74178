package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pavise/maskeval/internal/models"
)

// ModelInput pairs a model identifier with its evaluation report.
// The report may be nil if the model run failed entirely.
type ModelInput struct {
	ModelID string
	Report  *models.Report
}

// Engine computes heuristic recommendations from per-model evaluation reports.
type Engine struct {
	weights models.RecommendationWeights
}

// NewEngine creates a recommendation engine with default weights.
func NewEngine() *Engine {
	return &Engine{
		weights: models.RecommendationWeights{
			MeanDice:    0.40,
			MeanIoU:     0.30,
			Consistency: 0.20,
			Completion:  0.10,
		},
	}
}

// Recommend computes a heuristic recommendation from a slice of model reports.
// Returns nil if fewer than 2 models have non-nil reports.
func (e *Engine) Recommend(results []ModelInput) *models.Recommendation {
	// Filter to models with actual reports
	var valid []ModelInput
	for _, r := range results {
		if r.Report != nil {
			valid = append(valid, r)
		}
	}
	if len(valid) < 2 {
		return nil
	}

	scores := e.scoreModels(valid)

	winner := scores[0]
	runnerUp := scores[1]

	var margin float64
	if runnerUp.HeuristicScore > 0 {
		margin = ((winner.HeuristicScore - runnerUp.HeuristicScore) / runnerUp.HeuristicScore) * 100
	}

	reason := e.buildReason(winner, runnerUp, valid)

	return &models.Recommendation{
		RecommendedModel: winner.ModelID,
		HeuristicScore:   math.Round(winner.HeuristicScore*10) / 10,
		Reason:           reason,
		WinnerMarginPct:  math.Round(margin*10) / 10,
		Weights:          e.weights,
		ModelScores:      scores,
	}
}

// rawMetrics holds unnormalized values extracted from a report.
type rawMetrics struct {
	meanDice    float64
	meanIoU     float64
	diceStdDev  float64
	successRate float64
}

// normalizedMetrics holds 0–10 normalized scores.
type normalizedMetrics struct {
	meanDice    float64
	meanIoU     float64
	consistency float64
	completion  float64
}

func (e *Engine) scoreModels(results []ModelInput) []models.ModelScore {
	metrics := e.extractMetrics(results)
	normalized := e.normalizeMetrics(metrics)

	scores := make([]models.ModelScore, len(results))
	for i := range results {
		norm := normalized[i]
		hScore := (norm.meanDice * e.weights.MeanDice) +
			(norm.meanIoU * e.weights.MeanIoU) +
			(norm.consistency * e.weights.Consistency) +
			(norm.completion * e.weights.Completion)

		// Round to 1 decimal place
		hScore = math.Round(hScore*10) / 10

		scores[i] = models.ModelScore{
			ModelID:        results[i].ModelID,
			HeuristicScore: hScore,
			Scores: map[string]float64{
				"mean_dice_normalized":   math.Round(norm.meanDice*10) / 10,
				"mean_iou_normalized":    math.Round(norm.meanIoU*10) / 10,
				"consistency_normalized": math.Round(norm.consistency*10) / 10,
				"completion_normalized":  math.Round(norm.completion*10) / 10,
			},
		}
	}

	// Sort descending by score; stable sort preserves input order for ties
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].HeuristicScore > scores[b].HeuristicScore
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}

	return scores
}

// extractMetrics returns metrics keyed by array index to avoid collisions
// when duplicate ModelIDs are present.
func (e *Engine) extractMetrics(results []ModelInput) map[int]rawMetrics {
	metrics := make(map[int]rawMetrics, len(results))
	for i, mr := range results {
		d := mr.Report.Digest
		metrics[i] = rawMetrics{
			meanDice:    d.MeanDice,
			meanIoU:     d.MeanIoU,
			diceStdDev:  mr.Report.Aggregates["dice"].StdDev,
			successRate: d.SuccessRate * 100,
		}
	}
	return metrics
}

// normalizeMetrics scales each metric to a 0–10 range using min-max normalization.
// When all values are equal, all models receive 5.0 for that metric.
// Keyed by array index to handle duplicate ModelIDs correctly.
func (e *Engine) normalizeMetrics(metrics map[int]rawMetrics) map[int]normalizedMetrics {
	var meanDices, meanIoUs, stdDevs, successRates []float64
	for _, m := range metrics {
		meanDices = append(meanDices, m.meanDice)
		meanIoUs = append(meanIoUs, m.meanIoU)
		stdDevs = append(stdDevs, m.diceStdDev)
		successRates = append(successRates, m.successRate)
	}

	result := make(map[int]normalizedMetrics, len(metrics))
	for i, m := range metrics {
		result[i] = normalizedMetrics{
			meanDice:    normalizeHigherBetter(m.meanDice, meanDices),
			meanIoU:     normalizeHigherBetter(m.meanIoU, meanIoUs),
			consistency: normalizeLowerBetter(m.diceStdDev, stdDevs),
			completion:  normalizeHigherBetter(m.successRate, successRates),
		}
	}
	return result
}

// normalizeHigherBetter maps a value to 0–10 where higher raw values are better.
func normalizeHigherBetter(value float64, all []float64) float64 {
	minVal, maxVal := minMax(all)
	if maxVal == minVal {
		return 5.0
	}
	return ((value - minVal) / (maxVal - minVal)) * 10
}

// normalizeLowerBetter maps a value to 0–10 where lower raw values are better.
func normalizeLowerBetter(value float64, all []float64) float64 {
	minVal, maxVal := minMax(all)
	if maxVal == minVal {
		return 5.0
	}
	return ((maxVal - value) / (maxVal - minVal)) * 10
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mn, mx := values[0], values[0]
	for _, v := range values[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}

func (e *Engine) buildReason(winner, runnerUp models.ModelScore, results []ModelInput) string {
	if winner.HeuristicScore == runnerUp.HeuristicScore {
		return fmt.Sprintf("Tied with %s; first in evaluation order selected", runnerUp.ModelID)
	}

	// Identify the strongest component advantage
	wDice := winner.Scores["mean_dice_normalized"]
	rDice := runnerUp.Scores["mean_dice_normalized"]
	wComp := winner.Scores["completion_normalized"]
	rComp := runnerUp.Scores["completion_normalized"]

	var parts []string

	if wDice > rDice {
		// Find raw values for human-readable output
		for _, r := range results {
			if r.ModelID == winner.ModelID {
				parts = append(parts, fmt.Sprintf("Highest mean Dice: %.3f", r.Report.Digest.MeanDice))
				break
			}
		}
	}
	if wComp > rComp {
		for _, r := range results {
			if r.ModelID == winner.ModelID {
				parts = append(parts, fmt.Sprintf("Success rate: %.0f%%", r.Report.Digest.SuccessRate*100))
				break
			}
		}
	}

	if len(parts) == 0 {
		parts = append(parts, "Highest weighted score across all components")
	}

	return fmt.Sprintf("%s (weighted score: %.1f vs %s: %.1f)",
		strings.Join(parts, "; "), winner.HeuristicScore, runnerUp.ModelID, runnerUp.HeuristicScore)
}
