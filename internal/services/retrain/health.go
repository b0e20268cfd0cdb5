package retrain

import (
	"TradePilot/internal/domain/models"
	"TradePilot/internal/services/ml"
)

const (
	healthAccuracyPoints    = 40
	healthCalibrationPoints = 30
	healthInversionPoints   = 30
	healthyScore            = 80
	rejectScore             = 40
	warnScore               = 70
)

// assessHealth scores a calibrated model on the full training set. The
// three components are weighted 40/30/30: accuracy above the floor,
// calibration error under the ceiling, and absence of confidence inversion.
func assessHealth(model models.Classifier, X [][]float64, y []int, accuracyFloor, calibCeiling float64) models.HealthReport {
	probs := make([]float64, len(X))
	for i, row := range X {
		probs[i] = model.PredictProba(row)
	}

	report := models.HealthReport{
		Accuracy:            ml.Accuracy(probs, y),
		AUC:                 ml.AUC(probs, y),
		CalibrationError:    ml.CalibrationError(probs, y, 5),
		ConfidenceInversion: ml.ConfidenceInverted(probs, y),
	}

	if report.Accuracy >= accuracyFloor {
		report.Score += healthAccuracyPoints
	}
	if report.CalibrationError <= calibCeiling {
		report.Score += healthCalibrationPoints
	}
	if !report.ConfidenceInversion {
		report.Score += healthInversionPoints
	}
	report.Healthy = report.Score >= healthyScore
	return report
}
