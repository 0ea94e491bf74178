package models

// Recommendation represents a heuristic recommendation for the best model
// across evaluations of the same dataset.
type Recommendation struct {
	RecommendedModel string                `json:"recommended_model"`
	HeuristicScore   float64               `json:"heuristic_score"`
	Reason           string                `json:"reason"`
	WinnerMarginPct  float64               `json:"winner_margin_pct"`
	Weights          RecommendationWeights `json:"weights"`
	ModelScores      []ModelScore          `json:"all_models"`
}

// RecommendationWeights defines the weighting scheme for heuristic scoring.
type RecommendationWeights struct {
	MeanDice    float64 `json:"mean_dice"`
	MeanIoU     float64 `json:"mean_iou"`
	Consistency float64 `json:"consistency"`
	Completion  float64 `json:"completion"`
}

// ModelScore holds the heuristic score and rank for a single model.
type ModelScore struct {
	ModelID        string             `json:"model_id"`
	HeuristicScore float64            `json:"heuristic_score"`
	Rank           int                `json:"rank"`
	Scores         map[string]float64 `json:"component_scores,omitempty"`
}
