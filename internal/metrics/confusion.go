// Package metrics computes the overlap metrics between canonical masks
// and aggregates them across a batch.
package metrics

import (
	"github.com/pavise/maskeval/internal/mask"
	"github.com/pavise/maskeval/internal/models"
)

// Counts is the per-sample confusion table over foreground membership.
type Counts struct {
	TP int // foreground in both masks
	FP int // foreground in prediction only
	FN int // foreground in truth only
	TN int // background in both masks
}

// Confusion tallies pixel agreement between a prediction and its ground
// truth. Both masks must share the same grid dimensions.
func Confusion(pred, truth *mask.Mask) (Counts, error) {
	if pred.Width() != truth.Width() || pred.Height() != truth.Height() {
		return Counts{}, &mask.DimensionError{
			PredWidth: pred.Width(), PredHeight: pred.Height(),
			TruthWidth: truth.Width(), TruthHeight: truth.Height(),
		}
	}

	var c Counts
	for i := 0; i < pred.Len(); i++ {
		p := pred.At(i) == mask.Foreground
		t := truth.At(i) == mask.Foreground
		switch {
		case p && t:
			c.TP++
		case p && !t:
			c.FP++
		case !p && t:
			c.FN++
		default:
			c.TN++
		}
	}
	return c, nil
}

// Score computes IoU, Dice, and pixel accuracy for one mask pair.
//
// IoU and Dice follow the vacuous-agreement convention: when neither mask
// has any foreground, both score 1.0 — two empty sets are identical.
func Score(pred, truth *mask.Mask) (models.SampleMetrics, error) {
	c, err := Confusion(pred, truth)
	if err != nil {
		return models.SampleMetrics{}, err
	}

	union := c.TP + c.FP + c.FN
	iou := 1.0
	if union > 0 {
		iou = float64(c.TP) / float64(union)
	}

	sizes := 2*c.TP + c.FP + c.FN // |pred| + |truth|
	dice := 1.0
	if sizes > 0 {
		dice = float64(2*c.TP) / float64(sizes)
	}

	total := c.TP + c.FP + c.FN + c.TN
	accuracy := float64(c.TP+c.TN) / float64(total)

	return models.SampleMetrics{IoU: iou, Dice: dice, Accuracy: accuracy}, nil
}
