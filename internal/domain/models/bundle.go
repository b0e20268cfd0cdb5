package models

import "time"

// Direction identifies which side of the market a model predicts.
type Direction string

const (
	DirectionBuy      Direction = "buy"
	DirectionSell     Direction = "sell"
	DirectionCombined Direction = "combined"
)

// IsValid reports whether d is one of the supported directions.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionBuy, DirectionSell, DirectionCombined:
		return true
	default:
		return false
	}
}

// Opposite returns the mirrored direction; combined maps to itself.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return d
	}
}

// ModelKey is the composite identity of one model bundle.
type ModelKey struct {
	Direction Direction
	Symbol    string
	Timeframe string
}

// String renders the registry key, e.g. "buy_EURUSD+_PERIOD_M5".
func (k ModelKey) String() string {
	return string(k.Direction) + "_" + k.Symbol + "_PERIOD_" + k.Timeframe
}

// Classifier produces the probability of the positive class for one
// already-scaled feature vector.
type Classifier interface {
	PredictProba(features []float64) float64
}

// Scaler normalizes a raw feature vector into model space.
type Scaler interface {
	Transform(features []float64) ([]float64, error)
	NumFeatures() int
}

// BundleMeta is the metadata record persisted next to every model artifact.
// Key names mirror the on-disk JSON exactly.
type BundleMeta struct {
	Symbol                string                 `json:"symbol"`
	Timeframe             string                 `json:"timeframe"`
	Direction             string                 `json:"direction"`
	TrainingDate          string                 `json:"training_date"`
	LastRetrained         string                 `json:"last_retrained"`
	TrainingSamples       int                    `json:"training_samples"`
	FeaturesUsed          []string               `json:"features_used"`
	CVAccuracy            float64                `json:"cv_accuracy"`
	CVStd                 float64                `json:"cv_std"`
	ConfidenceCorrelation float64                `json:"confidence_correlation"`
	MarketRegime          map[string]interface{} `json:"market_regime"`
	HealthScore           int                    `json:"health_score"`
	ModelType             string                 `json:"model_type"`
	RetrainedBy           string                 `json:"retrained_by"`
	ModelVersion          float64                `json:"model_version"`
	UsedLenientThreshold  bool                   `json:"used_lenient_threshold"`
	AccuracyThresholdUsed float64                `json:"accuracy_threshold_used"`
	ModelQuality          string                 `json:"model_quality"`
}

// ModelBundle groups everything needed to serve one model key. Bundles are
// immutable after load; superseding a key means swapping in a new bundle,
// never mutating the old one in place.
type ModelBundle struct {
	Key          ModelKey
	Model        Classifier
	Scaler       Scaler
	FeatureNames []string
	Meta         *BundleMeta
	ModelFile    string
	LoadedAt     time.Time
}

// CanServe reports whether the bundle carries everything a prediction needs.
// A bundle without its feature-name list is loadable but must fail closed
// when asked to predict.
func (b *ModelBundle) CanServe() bool {
	return b != nil && b.Model != nil && len(b.FeatureNames) > 0
}
