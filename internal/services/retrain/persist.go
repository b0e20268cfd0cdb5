package retrain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/registry"
	"TradePilot/internal/services/ml"
)

// persistBundle writes the four artifacts of one model bundle. The metadata
// record is marshaled key by key first so a bad value is reported with the
// offending key named instead of vanishing into a generic encode error.
func persistBundle(dir string, key models.ModelKey, model *ml.Model, scaler *ml.StandardScaler, names []string, meta *models.BundleMeta) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("model dir: %w", err)
	}
	arts := registry.ArtifactNames(key)

	if err := model.Save(filepath.Join(dir, arts.Model)); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	if err := ml.SaveScaler(scaler, filepath.Join(dir, arts.Scaler)); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}

	namesJSON, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("encode feature names: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, arts.FeatureNames), namesJSON, 0o644); err != nil {
		return fmt.Errorf("write feature names: %w", err)
	}

	metaJSON, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, arts.Metadata), metaJSON, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func encodeMeta(meta *models.BundleMeta) ([]byte, error) {
	fields := map[string]any{
		"symbol":                  meta.Symbol,
		"timeframe":               meta.Timeframe,
		"direction":               meta.Direction,
		"training_date":           meta.TrainingDate,
		"last_retrained":          meta.LastRetrained,
		"training_samples":        meta.TrainingSamples,
		"features_used":           meta.FeaturesUsed,
		"cv_accuracy":             meta.CVAccuracy,
		"cv_std":                  meta.CVStd,
		"confidence_correlation":  meta.ConfidenceCorrelation,
		"market_regime":           meta.MarketRegime,
		"health_score":            meta.HealthScore,
		"model_type":              meta.ModelType,
		"retrained_by":            meta.RetrainedBy,
		"model_version":           meta.ModelVersion,
		"used_lenient_threshold":  meta.UsedLenientThreshold,
		"accuracy_threshold_used": meta.AccuracyThresholdUsed,
		"model_quality":           meta.ModelQuality,
	}
	for k, v := range fields {
		if _, err := json.Marshal(v); err != nil {
			return nil, fmt.Errorf("metadata key %q not serializable: %w", k, err)
		}
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
