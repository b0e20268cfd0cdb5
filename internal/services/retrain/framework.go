package retrain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/services/features"
	"TradePilot/internal/services/ml"
	applogger "TradePilot/pkg/logger"
)

// Rejection reasons returned in RetrainResult.Reason.
const (
	ReasonInsufficientData = "insufficient training data"
	ReasonSingleClass      = "single-class training batch"
	ReasonLowAccuracy      = "validation accuracy below floor"
	ReasonBrokenHealth     = "model health critically low"
	ReasonTrainingFailed   = "training failed"
	ReasonCancelled        = "retraining cancelled"
)

// Config tunes one retraining framework instance. The boosting
// hyperparameters stay fixed across retrains; only the gates and methods
// are meant to be configured per deployment.
type Config struct {
	OutputDir               string        `yaml:"output_dir"`
	MinSamples              int           `yaml:"min_samples"`
	MinSamplesAbsolute      int           `yaml:"min_samples_absolute"`
	MaxFeatures             int           `yaml:"max_features"`
	SelectionMethod         string        `yaml:"selection_method"`
	AccuracyFloor           float64       `yaml:"accuracy_floor"`
	LenientAccuracyFloor    float64       `yaml:"lenient_accuracy_floor"`
	CalibrationMethod       string        `yaml:"calibration_method"`
	CalibrationErrorCeiling float64       `yaml:"calibration_error_ceiling"`
	ModelVersion            float64       `yaml:"model_version"`
	Boost                   ml.BoostConfig `yaml:"-"`
}

// DefaultConfig returns the production retraining configuration.
func DefaultConfig(outputDir string) Config {
	return Config{
		OutputDir:               outputDir,
		MinSamples:              50,
		MinSamplesAbsolute:      20,
		MaxFeatures:             15,
		SelectionMethod:         ml.SelectMutualInfo,
		AccuracyFloor:           0.45,
		LenientAccuracyFloor:    0.35,
		CalibrationMethod:       ml.CalibrationIsotonic,
		CalibrationErrorCeiling: 0.25,
		ModelVersion:            2.0,
		Boost:                   ml.DefaultBoostConfig(),
	}
}

// Framework turns a batch of labeled historical trades into a validated,
// calibrated, persisted model bundle, or a rich diagnostic explaining why it
// refused to. Each invocation is stateless beyond the files it writes.
type Framework struct {
	cfg Config
	l   *applogger.Logger
}

// NewFramework creates a retraining framework.
func NewFramework(cfg Config, l *applogger.Logger) *Framework {
	if cfg.Boost.Estimators == 0 {
		cfg.Boost = ml.DefaultBoostConfig()
	}
	return &Framework{cfg: cfg, l: l}
}

// Retrain runs the full pipeline for one model key. Failures are values:
// the returned result is never nil and panics anywhere in the pipeline are
// converted to a failed result. allowLenient lowers the accuracy floor for
// first-time model creation only; callers must not pass it on routine
// retrains of an existing model.
func (f *Framework) Retrain(ctx context.Context, key models.ModelKey, examples []models.TrainingExample, allowLenient bool) (result *models.RetrainResult) {
	start := time.Now()
	result = &models.RetrainResult{ModelKey: key.String()}
	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			f.l.Error("retraining panicked",
				applogger.String("model_key", key.String()), applogger.Any("panic", r))
			result.Success = false
			result.Reason = ReasonTrainingFailed
		}
	}()

	if len(examples) < f.cfg.MinSamplesAbsolute {
		result.Reason = ReasonInsufficientData
		result.Samples = len(examples)
		f.l.Warn("retraining rejected, batch below absolute floor",
			applogger.String("model_key", key.String()),
			applogger.Int("samples", len(examples)),
			applogger.Int("floor", f.cfg.MinSamplesAbsolute))
		return result
	}

	ordered := orderByTime(examples)
	names, X, y, dropped, malformed := f.buildMatrix(ordered)
	result.Samples = len(X)
	result.Dropped = dropped
	result.ClassCounts = classCounts(y)

	minRequired := f.cfg.MinSamples
	if len(examples) < f.cfg.MinSamples {
		minRequired = f.cfg.MinSamplesAbsolute
	}
	if len(X) < minRequired {
		result.Reason = ReasonInsufficientData
		f.l.Warn("retraining rejected after cleaning",
			applogger.String("model_key", key.String()),
			applogger.Int("clean", len(X)), applogger.Int("dropped", dropped),
			applogger.Int("required", minRequired),
			applogger.Any("class_counts", result.ClassCounts),
			applogger.Any("malformed_sample", malformed))
		return result
	}

	if len(result.ClassCounts) < 2 {
		result.Reason = ReasonSingleClass
		f.l.Warn("retraining rejected, single-class batch",
			applogger.String("model_key", key.String()),
			applogger.Any("class_counts", result.ClassCounts),
			applogger.Any("profit_distribution", profitDistribution(ordered)))
		return result
	}

	if err := ctx.Err(); err != nil {
		result.Reason = ReasonCancelled
		return result
	}

	regime := DetectRegime(ordered)
	result.Regime = &regime

	selectedNames, Xsel := f.selectFeatures(key, names, X, y)

	scaler, err := ml.FitScaler(Xsel)
	if err != nil {
		result.Reason = ReasonTrainingFailed
		f.l.Error("scaler fit failed",
			applogger.String("model_key", key.String()), applogger.Error(err))
		return result
	}
	Xscaled, err := scaler.TransformMatrix(Xsel)
	if err != nil {
		result.Reason = ReasonTrainingFailed
		return result
	}

	plan := planFolds(len(Xscaled))
	summary := walkForward(Xscaled, y, f.cfg.Boost, plan, f.l)
	result.Validation = &summary

	floor := f.cfg.AccuracyFloor
	if allowLenient && summary.MeanAccuracy < f.cfg.AccuracyFloor {
		floor = f.cfg.LenientAccuracyFloor
		result.UsedLenient = true
	}
	if summary.MeanAccuracy < floor {
		result.Reason = ReasonLowAccuracy
		result.UsedLenient = false
		f.l.Warn("retraining rejected, accuracy below floor",
			applogger.String("model_key", key.String()),
			applogger.Any("mean_accuracy", summary.MeanAccuracy),
			applogger.Any("floor", floor),
			applogger.Int("folds", len(summary.Folds)))
		return result
	}

	if summary.MeanConfidenceCorrelation < 0 {
		// The very pathology retraining exists to repair; blocking on it
		// here would be self-defeating.
		f.l.Warn("confidence inversion present in validation folds",
			applogger.String("model_key", key.String()),
			applogger.Any("mean_correlation", summary.MeanConfidenceCorrelation))
	}

	if err := ctx.Err(); err != nil {
		result.Reason = ReasonCancelled
		return result
	}

	gb, err := ml.TrainGradientBoosting(Xscaled, y, f.cfg.Boost)
	if err != nil {
		result.Reason = ReasonTrainingFailed
		f.l.Error("final fit failed",
			applogger.String("model_key", key.String()), applogger.Error(err))
		return result
	}

	model := &ml.Model{Type: ml.ModelTypeGradientBoosting, Boost: gb}
	if cal, err := f.calibrate(Xscaled, y); err != nil {
		result.Warning = appendWarning(result.Warning, "calibration failed, serving uncalibrated probabilities")
		f.l.Warn("calibration failed, degrading to uncalibrated model",
			applogger.String("model_key", key.String()), applogger.Error(err))
	} else {
		model.Calibrator = cal
	}

	health := assessHealth(model, Xscaled, y, f.cfg.AccuracyFloor, f.cfg.CalibrationErrorCeiling)
	result.Health = &health
	if health.Score < rejectScore {
		result.Reason = ReasonBrokenHealth
		f.l.Warn("retrained model rejected as broken",
			applogger.String("model_key", key.String()),
			applogger.Int("health_score", health.Score))
		return result
	}
	if health.Score < warnScore {
		result.Warning = appendWarning(result.Warning,
			fmt.Sprintf("model accepted with degraded health score %d", health.Score))
		f.l.Warn("retrained model accepted with degraded health",
			applogger.String("model_key", key.String()),
			applogger.Int("health_score", health.Score))
	}

	meta := f.buildMeta(key, selectedNames, len(Xscaled), summary, regime, health, result.UsedLenient, floor)
	if err := persistBundle(f.cfg.OutputDir, key, model, scaler, selectedNames, meta); err != nil {
		result.Reason = ReasonTrainingFailed
		f.l.Error("bundle persistence failed",
			applogger.String("model_key", key.String()), applogger.Error(err))
		return result
	}

	result.Success = true
	result.Meta = meta
	f.l.Info("retraining complete",
		applogger.String("model_key", key.String()),
		applogger.Int("samples", len(Xscaled)),
		applogger.Any("cv_accuracy", summary.MeanAccuracy),
		applogger.Int("health_score", health.Score),
		applogger.Bool("lenient", result.UsedLenient),
		applogger.Duration("took", time.Since(start)))
	return result
}

// buildMatrix cleans the batch and projects every surviving example onto
// the canonical engineered feature set, so training and serving always
// agree on feature order. Malformed examples are dropped and sampled for
// the diagnostic log, never zero-filled.
func (f *Framework) buildMatrix(examples []models.TrainingExample) (names []string, X [][]float64, y []int, dropped int, malformed []string) {
	names = features.UniversalFeatureNames()

	for i := range examples {
		ex := &examples[i]
		if len(ex.Features) == 0 || !allFinite(ex.Features) {
			dropped++
			if len(malformed) < 3 {
				malformed = append(malformed, fmt.Sprintf("example %d: %v", i, ex.Features))
			}
			continue
		}
		engineered := features.Engineer(ex.Features)
		vec, err := features.Project(engineered, names)
		if err != nil {
			dropped++
			if len(malformed) < 3 {
				malformed = append(malformed, fmt.Sprintf("example %d: %v", i, err))
			}
			continue
		}
		label := ex.Label
		if label != 0 && label != 1 {
			label = models.LabelFromProfit(ex.Profit)
		}
		X = append(X, vec)
		y = append(y, label)
	}
	return names, X, y, dropped, malformed
}

func (f *Framework) selectFeatures(key models.ModelKey, names []string, X [][]float64, y []int) ([]string, [][]float64) {
	cols, err := ml.SelectFeatures(f.cfg.SelectionMethod, X, y, f.cfg.MaxFeatures)
	if err != nil {
		f.l.Warn("feature selection failed, using all features",
			applogger.String("model_key", key.String()), applogger.Error(err))
		return names, X
	}
	selected := make([]string, len(cols))
	for i, c := range cols {
		selected[i] = names[c]
	}
	return selected, ml.ProjectColumns(X, cols)
}

// calibrate fits the probability calibrator on a time-ordered holdout so
// the calibration targets are out-of-sample for the model that produced
// them.
func (f *Framework) calibrate(X [][]float64, y []int) (*ml.Calibrator, error) {
	split := len(X) * 7 / 10
	if len(X)-split < 4 {
		return nil, fmt.Errorf("holdout too small for calibration: %d", len(X)-split)
	}
	if singleClass(y[:split]) {
		return nil, fmt.Errorf("single-class calibration training slice")
	}
	base, err := ml.TrainGradientBoosting(X[:split], y[:split], f.cfg.Boost)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, 0, len(X)-split)
	for _, row := range X[split:] {
		probs = append(probs, base.PredictProba(row))
	}
	return ml.FitCalibrator(f.cfg.CalibrationMethod, probs, y[split:])
}

func (f *Framework) buildMeta(key models.ModelKey, names []string, samples int, summary models.ValidationSummary, regime models.RegimeSnapshot, health models.HealthReport, usedLenient bool, floorUsed float64) *models.BundleMeta {
	now := time.Now().UTC().Format(time.RFC3339)
	quality := "standard"
	if usedLenient {
		quality = "low_accuracy"
	}
	return &models.BundleMeta{
		Symbol:                key.Symbol,
		Timeframe:             key.Timeframe,
		Direction:             string(key.Direction),
		TrainingDate:          now,
		LastRetrained:         now,
		TrainingSamples:       samples,
		FeaturesUsed:          names,
		CVAccuracy:            summary.MeanAccuracy,
		CVStd:                 summary.StdAccuracy,
		ConfidenceCorrelation: summary.MeanConfidenceCorrelation,
		MarketRegime: map[string]interface{}{
			"volatility":  regime.Volatility,
			"trend":       regime.Trend,
			"stability":   regime.Stability,
			"transitions": regime.Transitions,
		},
		HealthScore:           health.Score,
		ModelType:             ml.ModelTypeGradientBoosting,
		RetrainedBy:           "walk_forward_framework",
		ModelVersion:          f.cfg.ModelVersion,
		UsedLenientThreshold:  usedLenient,
		AccuracyThresholdUsed: floorUsed,
		ModelQuality:          quality,
	}
}

func orderByTime(examples []models.TrainingExample) []models.TrainingExample {
	out := append([]models.TrainingExample{}, examples...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ClosedAt.Before(out[j].ClosedAt)
	})
	return out
}

func allFinite(features map[string]float64) bool {
	for _, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func classCounts(y []int) map[int]int {
	counts := make(map[int]int, 2)
	for _, v := range y {
		counts[v]++
	}
	return counts
}

func profitDistribution(examples []models.TrainingExample) map[string]any {
	var wins, losses int
	var total float64
	for i := range examples {
		if examples[i].Profit > 0 {
			wins++
		} else {
			losses++
		}
		total += examples[i].Profit
	}
	return map[string]any{"wins": wins, "losses": losses, "net_profit": total}
}

func appendWarning(existing, extra string) string {
	if existing == "" {
		return extra
	}
	return existing + "; " + extra
}
