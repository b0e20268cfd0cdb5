package models

import "time"

// TrainingExample is one labeled historical trade. Label is derived from the
// realized profit sign: profit > 0 -> 1.
type TrainingExample struct {
	Features  map[string]float64 `json:"features"`
	Label     int                `json:"label"`
	Profit    float64            `json:"profit"`
	ClosedAt  time.Time          `json:"closed_at"`
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Direction string             `json:"direction"`
}

// LabelFromProfit applies the labeling rule used across the pipeline.
func LabelFromProfit(profit float64) int {
	if profit > 0 {
		return 1
	}
	return 0
}

// RegimeSnapshot is the advisory market-regime classification attached to
// training metadata. It never gates training on its own.
type RegimeSnapshot struct {
	Volatility  string  `json:"volatility"` // low, medium, high
	Trend       string  `json:"trend"`      // bearish, neutral, bullish
	Stability   float64 `json:"stability"`  // 0..1, fewer transitions = more stable
	Transitions int     `json:"transitions"`
}

// FoldMetrics are the per-fold results of walk-forward validation.
type FoldMetrics struct {
	Fold                  int     `json:"fold"`
	Accuracy              float64 `json:"accuracy"`
	AUC                   float64 `json:"auc"`
	ConfidenceCorrelation float64 `json:"confidence_correlation"`
	TrainSize             int     `json:"train_size"`
	ValidationSize        int     `json:"validation_size"`
}

// ValidationSummary aggregates walk-forward folds.
type ValidationSummary struct {
	Folds                     []FoldMetrics `json:"folds"`
	MeanAccuracy              float64       `json:"mean_accuracy"`
	StdAccuracy               float64       `json:"std_accuracy"`
	MeanAUC                   float64       `json:"mean_auc"`
	MeanConfidenceCorrelation float64       `json:"mean_confidence_correlation"`
	Stable                    bool          `json:"stable"`
}

// HealthReport is the composite 0-100 model health assessment.
type HealthReport struct {
	Accuracy            float64 `json:"accuracy"`
	AUC                 float64 `json:"auc"`
	CalibrationError    float64 `json:"calibration_error"`
	ConfidenceInversion bool    `json:"confidence_inversion"`
	Score               int     `json:"score"`
	Healthy             bool    `json:"healthy"`
}

// RetrainResult is the full diagnostic outcome of one retraining invocation.
// Failure is a value, not a panic: Reason and Diagnostics explain it.
type RetrainResult struct {
	Success     bool               `json:"success"`
	ModelKey    string             `json:"model_key"`
	Reason      string             `json:"reason,omitempty"`
	Samples     int                `json:"samples"`
	ClassCounts map[int]int        `json:"class_counts,omitempty"`
	Dropped     int                `json:"dropped"`
	Validation  *ValidationSummary `json:"validation,omitempty"`
	Health      *HealthReport      `json:"health,omitempty"`
	Regime      *RegimeSnapshot    `json:"regime,omitempty"`
	UsedLenient bool               `json:"used_lenient"`
	Warning     string             `json:"warning,omitempty"`
	Meta        *BundleMeta        `json:"meta,omitempty"`
	Duration    time.Duration      `json:"-"`
}

// RetrainPriority levels for retraining recommendations.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
)

// RetrainRecommendation flags one reason retraining is warranted. A model may
// accumulate several at once.
type RetrainRecommendation struct {
	ModelKey string `json:"model_key"`
	Priority string `json:"priority"`
	Reason   string `json:"reason"`
}
