package retrain

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/registry"
	"TradePilot/internal/services/ml"
	applogger "TradePilot/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testFramework(t *testing.T, dir string) *Framework {
	t.Helper()
	return NewFramework(DefaultConfig(dir), testLogger(t))
}

var testKey = models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}

// separableBatch builds a time-ordered batch where RSI perfectly determines
// the outcome.
func separableBatch(n int) []models.TrainingExample {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.TrainingExample, n)
	for i := range out {
		label := i % 2
		rsi := 70.0
		profit := -5.0
		if label == 1 {
			rsi = 30.0
			profit = 5.0
		}
		out[i] = models.TrainingExample{
			Features: map[string]float64{
				"rsi":          rsi,
				"volatility":   0.001 + 0.0001*float64(i),
				"price_change": 0.0005,
				"atr":          0.002,
			},
			Label:    label,
			Profit:   profit,
			ClosedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestRetrainRejectsTinyBatch(t *testing.T) {
	f := testFramework(t, t.TempDir())
	res := f.Retrain(context.Background(), testKey, separableBatch(15), false)
	if res.Success || res.Reason != ReasonInsufficientData {
		t.Fatalf("15-example batch must be rejected: %+v", res)
	}
}

func TestRetrainRejectsAfterCleaning(t *testing.T) {
	batch := separableBatch(25)
	for i := 0; i < 10; i++ {
		batch[i].Features["rsi"] = math.NaN()
	}
	f := testFramework(t, t.TempDir())
	res := f.Retrain(context.Background(), testKey, batch, false)
	if res.Success || res.Reason != ReasonInsufficientData {
		t.Fatalf("expected post-cleaning rejection: %+v", res)
	}
	if res.Dropped != 10 {
		t.Fatalf("dropped = %d, want 10", res.Dropped)
	}
}

func TestRetrainRejectsSingleClass(t *testing.T) {
	batch := separableBatch(60)
	for i := range batch {
		batch[i].Label = 1
		batch[i].Profit = 5
	}
	f := testFramework(t, t.TempDir())
	res := f.Retrain(context.Background(), testKey, batch, false)
	if res.Success || res.Reason != ReasonSingleClass {
		t.Fatalf("single-class batch must be rejected: %+v", res)
	}
}

func TestRetrainRejectsLowAccuracyEvenWithLenientFloor(t *testing.T) {
	// Constant features make the model a base-rate predictor; the label mix
	// is arranged so later validation slices disagree with the majority.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := make([]models.TrainingExample, 40)
	for i := range batch {
		label := 0
		if i < 20 && i != 5 && i != 10 {
			label = 1
		}
		batch[i] = models.TrainingExample{
			Features: map[string]float64{"rsi": 50, "atr": 0.002},
			Label:    label,
			Profit:   float64(label*10 - 5),
			ClosedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	f := testFramework(t, t.TempDir())
	res := f.Retrain(context.Background(), testKey, batch, true)
	if res.Success || res.Reason != ReasonLowAccuracy {
		t.Fatalf("expected accuracy rejection: %+v", res)
	}
	if res.UsedLenient {
		t.Fatalf("rejected run must not report lenient acceptance")
	}
}

func TestRetrainSuccessWritesBundle(t *testing.T) {
	dir := t.TempDir()
	f := testFramework(t, dir)
	res := f.Retrain(context.Background(), testKey, separableBatch(120), false)
	if !res.Success {
		t.Fatalf("retrain failed: %+v", res)
	}
	if res.UsedLenient {
		t.Fatalf("strict pass must not be marked lenient")
	}
	if res.Validation == nil || len(res.Validation.Folds) == 0 {
		t.Fatalf("missing validation summary")
	}
	if res.Validation.MeanAccuracy < 0.9 {
		t.Fatalf("separable data should validate cleanly: %.3f", res.Validation.MeanAccuracy)
	}
	if res.Health == nil || res.Health.Score < 70 {
		t.Fatalf("unexpected health: %+v", res.Health)
	}
	if res.Meta == nil || res.Meta.ModelQuality != "standard" {
		t.Fatalf("unexpected meta: %+v", res.Meta)
	}
	if len(res.Meta.FeaturesUsed) > DefaultConfig(dir).MaxFeatures {
		t.Fatalf("feature selection not applied: %d features", len(res.Meta.FeaturesUsed))
	}

	// The serving registry must be able to load what retraining wrote.
	reg := registry.New(dir, testLogger(t))
	if _, err := reg.LoadAll(); err != nil {
		t.Fatalf("load: %v", err)
	}
	bundle, ok := reg.Get(testKey)
	if !ok || !bundle.CanServe() {
		t.Fatalf("persisted bundle not servable")
	}
	if bundle.Scaler == nil || bundle.Meta == nil {
		t.Fatalf("bundle missing scaler or metadata")
	}
}

func TestMetadataCarriesAllRequiredKeys(t *testing.T) {
	dir := t.TempDir()
	f := testFramework(t, dir)
	if res := f.Retrain(context.Background(), testKey, separableBatch(120), false); !res.Success {
		t.Fatalf("retrain failed: %+v", res)
	}

	arts := registry.ArtifactNames(testKey)
	raw, err := os.ReadFile(filepath.Join(dir, arts.Metadata))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	required := []string{
		"symbol", "timeframe", "direction", "training_date", "last_retrained",
		"training_samples", "features_used", "cv_accuracy", "cv_std",
		"confidence_correlation", "market_regime", "health_score", "model_type",
		"retrained_by", "model_version", "used_lenient_threshold",
		"accuracy_threshold_used", "model_quality",
	}
	for _, k := range required {
		if _, ok := m[k]; !ok {
			t.Fatalf("metadata missing key %q", k)
		}
	}
	if _, err := time.Parse(time.RFC3339, m["training_date"].(string)); err != nil {
		t.Fatalf("training_date not RFC3339: %v", err)
	}
}

func TestRetrainCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := testFramework(t, t.TempDir())
	res := f.Retrain(ctx, testKey, separableBatch(120), false)
	if res.Success || res.Reason != ReasonCancelled {
		t.Fatalf("cancelled context must stop the run: %+v", res)
	}
}

func TestWalkForwardIsTimeOrdered(t *testing.T) {
	n := 120
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		label := i % 2
		v := -1.0
		if label == 1 {
			v = 1.0
		}
		X[i] = []float64{v}
		y[i] = label
	}

	summary := walkForward(X, y, ml.DefaultBoostConfig(), planFolds(n), testLogger(t))
	if len(summary.Folds) != 3 {
		t.Fatalf("fold count = %d, want 3", len(summary.Folds))
	}
	prevTrain := 0
	for _, fold := range summary.Folds {
		// Each fold trains strictly on data older than its validation
		// slice; training windows only ever expand forward.
		if fold.TrainSize <= prevTrain {
			t.Fatalf("training window not expanding: %+v", summary.Folds)
		}
		prevTrain = fold.TrainSize
		if fold.ValidationSize <= 0 {
			t.Fatalf("empty validation slice: %+v", fold)
		}
	}
	if summary.MeanAccuracy < 0.9 || !summary.Stable {
		t.Fatalf("separable series should validate stably: %+v", summary)
	}
}

func TestWalkForwardZeroFoldsIsFailureState(t *testing.T) {
	X := [][]float64{{1}, {0}, {1}, {0}, {1}, {0}}
	y := []int{1, 0, 1, 0, 1, 0}
	summary := walkForward(X, y, ml.DefaultBoostConfig(), planFolds(len(X)), testLogger(t))
	if len(summary.Folds) != 0 || summary.MeanAccuracy != 0 || summary.Stable {
		t.Fatalf("undersized series must report failure state: %+v", summary)
	}
}

// probe returns its single input feature as the probability.
type probe struct{}

func (probe) PredictProba(x []float64) float64 { return x[0] }

func healthRows(probs []float64) [][]float64 {
	X := make([][]float64, len(probs))
	for i, p := range probs {
		X[i] = []float64{p}
	}
	return X
}

func TestHealthScoreComponents(t *testing.T) {
	floor, ceiling := 0.45, 0.25

	// Accurate, calibrated, no inversion.
	probs := []float64{0.95, 0.05, 0.95, 0.05, 0.95, 0.05}
	y := []int{1, 0, 1, 0, 1, 0}
	h := assessHealth(probe{}, healthRows(probs), y, floor, ceiling)
	if h.Score != 100 || !h.Healthy {
		t.Fatalf("perfect model score = %d", h.Score)
	}

	// Confidently wrong on half, meekly right on the rest: accuracy holds
	// but calibration and inversion points are lost.
	probs = []float64{0.95, 0.55, 0.95, 0.55, 0.95, 0.55}
	y = []int{0, 1, 0, 1, 0, 1}
	h = assessHealth(probe{}, healthRows(probs), y, floor, ceiling)
	if h.Score != 40 || !h.ConfidenceInversion {
		t.Fatalf("inverted model score = %d, inversion=%v", h.Score, h.ConfidenceInversion)
	}
	if h.Healthy {
		t.Fatalf("score 40 must not be healthy")
	}

	// Everything wrong all the time: only the no-inversion points survive
	// (both confidence extremes are equally bad, so no inversion).
	probs = []float64{0.95, 0.05, 0.95, 0.05}
	y = []int{0, 1, 0, 1}
	h = assessHealth(probe{}, healthRows(probs), y, floor, ceiling)
	if h.Score != 30 {
		t.Fatalf("broken model score = %d, want 30", h.Score)
	}
}

func TestDetectRegimeDefaults(t *testing.T) {
	batch := separableBatch(30)
	for i := range batch {
		delete(batch[i].Features, "volatility")
		delete(batch[i].Features, "price_change")
	}
	snap := DetectRegime(batch)
	if snap.Volatility != "medium" || snap.Trend != "neutral" {
		t.Fatalf("missing columns must default: %+v", snap)
	}
	if snap.Stability != 1 {
		t.Fatalf("default stability = %.2f", snap.Stability)
	}
}

func TestDetectRegimeBuckets(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := make([]models.TrainingExample, 60)
	for i := range batch {
		batch[i] = models.TrainingExample{
			Features: map[string]float64{
				"volatility":   0.001 * float64(i+1), // rising into the top tertile
				"price_change": 0.002,
			},
			Label:    i % 2,
			ClosedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	snap := DetectRegime(batch)
	if snap.Volatility != "high" {
		t.Fatalf("volatility bucket = %q, want high", snap.Volatility)
	}
	if snap.Trend != "bullish" {
		t.Fatalf("trend bucket = %q, want bullish", snap.Trend)
	}
	if snap.Stability <= 0 || snap.Stability > 1 {
		t.Fatalf("stability out of range: %.2f", snap.Stability)
	}
}

func TestRecommendations(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	recs := Recommend(testKey, nil, now)
	if len(recs) != 1 || recs[0].Priority != models.PriorityHigh {
		t.Fatalf("missing model must be high priority: %+v", recs)
	}

	healthy := &models.BundleMeta{
		HealthScore:           90,
		ConfidenceCorrelation: 0.2,
		LastRetrained:         now.Add(-24 * time.Hour).Format(time.RFC3339),
	}
	if recs := Recommend(testKey, healthy, now); len(recs) != 0 {
		t.Fatalf("healthy fresh model flagged: %+v", recs)
	}

	degraded := &models.BundleMeta{
		HealthScore:           50,
		ConfidenceCorrelation: -0.3,
		LastRetrained:         now.Add(-40 * 24 * time.Hour).Format(time.RFC3339),
	}
	recs = Recommend(testKey, degraded, now)
	if len(recs) != 3 {
		t.Fatalf("expected all three reasons: %+v", recs)
	}
	priorities := map[string]bool{}
	for _, r := range recs {
		priorities[r.Priority] = true
	}
	if !priorities[models.PriorityHigh] || !priorities[models.PriorityMedium] || !priorities[models.PriorityCritical] {
		t.Fatalf("priorities wrong: %+v", recs)
	}
}
