package retrain

import (
	"math"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/services/ml"
	applogger "TradePilot/pkg/logger"
)

// foldPlan is the adaptive walk-forward layout for a given sample count.
// Small batches get fewer folds and smaller minimum slices instead of being
// rejected outright.
type foldPlan struct {
	folds    int
	minTrain int
	minVal   int
}

func planFolds(n int) foldPlan {
	p := foldPlan{folds: 3, minTrain: 20, minVal: 10}
	if n < 100 {
		p.folds = 2
	}
	if n < 50 {
		p.minTrain = 10
		p.minVal = 5
	}
	return p
}

// walkForward runs time-ordered expanding-window validation. Rows must
// already be sorted oldest first; the split never shuffles, so training
// folds only ever see data older than their validation slice. Folds whose
// train or validation slice is too small or single-class are skipped, not
// zero-filled. Zero surviving folds yields a failure-state summary instead
// of an error.
func walkForward(X [][]float64, y []int, boost ml.BoostConfig, plan foldPlan, l *applogger.Logger) models.ValidationSummary {
	n := len(X)
	summary := models.ValidationSummary{}

	for f := 0; f < plan.folds; f++ {
		trainEnd := n * (f + 1) / (plan.folds + 1)
		valEnd := n * (f + 2) / (plan.folds + 1)
		if f == plan.folds-1 {
			valEnd = n
		}
		if trainEnd < plan.minTrain || valEnd-trainEnd < plan.minVal {
			l.Debug("skipping undersized walk-forward fold",
				applogger.Int("fold", f), applogger.Int("train", trainEnd),
				applogger.Int("validation", valEnd-trainEnd))
			continue
		}
		if singleClass(y[:trainEnd]) {
			l.Debug("skipping single-class walk-forward fold", applogger.Int("fold", f))
			continue
		}

		model, err := ml.TrainGradientBoosting(X[:trainEnd], y[:trainEnd], boost)
		if err != nil {
			l.Warn("walk-forward fold training failed",
				applogger.Int("fold", f), applogger.Error(err))
			continue
		}

		probs := make([]float64, 0, valEnd-trainEnd)
		for _, row := range X[trainEnd:valEnd] {
			probs = append(probs, model.PredictProba(row))
		}
		valY := y[trainEnd:valEnd]

		summary.Folds = append(summary.Folds, models.FoldMetrics{
			Fold:                  f,
			Accuracy:              ml.Accuracy(probs, valY),
			AUC:                   ml.AUC(probs, valY),
			ConfidenceCorrelation: ml.ConfidenceCorrelation(probs, valY),
			TrainSize:             trainEnd,
			ValidationSize:        valEnd - trainEnd,
		})
	}

	if len(summary.Folds) == 0 {
		summary.Stable = false
		return summary
	}

	var accSum, accSq, aucSum, corrSum float64
	for _, f := range summary.Folds {
		accSum += f.Accuracy
		accSq += f.Accuracy * f.Accuracy
		aucSum += f.AUC
		corrSum += f.ConfidenceCorrelation
	}
	k := float64(len(summary.Folds))
	summary.MeanAccuracy = accSum / k
	summary.MeanAUC = aucSum / k
	summary.MeanConfidenceCorrelation = corrSum / k
	variance := accSq/k - summary.MeanAccuracy*summary.MeanAccuracy
	if variance > 0 {
		summary.StdAccuracy = math.Sqrt(variance)
	}
	summary.Stable = summary.StdAccuracy <= 0.1

	return summary
}

func singleClass(y []int) bool {
	if len(y) == 0 {
		return true
	}
	first := y[0]
	for _, v := range y[1:] {
		if v != first {
			return false
		}
	}
	return true
}
