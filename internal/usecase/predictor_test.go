package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/registry"
	"TradePilot/internal/risk"
	"TradePilot/internal/services/features"
	"TradePilot/internal/services/ml"
	"TradePilot/pkg/config"
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

type fakeTelemetry struct {
	status    string
	reachable bool
}

func (f *fakeTelemetry) ModelHealth(_ context.Context, key string) (models.ModelHealth, error) {
	return models.ModelHealth{ModelKey: key, Status: f.status, HealthScore: 85}, nil
}

func (f *fakeTelemetry) Reachable(context.Context) bool { return f.reachable }

type fakeSink struct {
	decisions []*models.DecisionEvent
	retrains  []*models.RetrainEvent
}

func (f *fakeSink) PublishDecision(_ context.Context, ev *models.DecisionEvent) {
	f.decisions = append(f.decisions, ev)
}

func (f *fakeSink) PublishRetrain(_ context.Context, ev *models.RetrainEvent) {
	f.retrains = append(f.retrains, ev)
}

type fakeMetrics struct {
	predictions  int
	errors       int
	healthScores map[string]float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{healthScores: make(map[string]float64)}
}

func (f *fakeMetrics) RecordPrediction(string, string, bool) { f.predictions++ }
func (f *fakeMetrics) RecordError(string)                    { f.errors++ }
func (f *fakeMetrics) RecordLatency(string, float64)         {}
func (f *fakeMetrics) RecordPortfolioRisk(float64)           {}

func (f *fakeMetrics) RecordModelHealth(modelKey string, score float64) {
	f.healthScores[modelKey] = score
}

// trainOnRaws trains a gradient boosting model on raw feature maps run
// through the same engineering pipeline serving uses, so the on-disk bundle
// behaves exactly like one the retraining framework produced.
func trainOnRaws(t *testing.T, raws []map[string]float64, labels []int) *ml.Model {
	t.Helper()
	names := features.UniversalFeatureNames()
	X := make([][]float64, len(raws))
	for i, raw := range raws {
		row, err := features.Project(features.Engineer(raw), names)
		if err != nil {
			t.Fatalf("project row %d: %v", i, err)
		}
		X[i] = row
	}
	cfg := ml.DefaultBoostConfig()
	cfg.Estimators = 40
	cfg.MaxDepth = 3
	cfg.Subsample = 1.0
	gb, err := ml.TrainGradientBoosting(X, labels, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return &ml.Model{Type: ml.ModelTypeGradientBoosting, Boost: gb}
}

func separableModel(t *testing.T) *ml.Model {
	t.Helper()
	raws := make([]map[string]float64, 60)
	labels := make([]int, 60)
	for i := range raws {
		if i%2 == 0 {
			raws[i] = map[string]float64{"rsi": 30, "atr": 0.001}
			labels[i] = 1
		} else {
			raws[i] = map[string]float64{"rsi": 70, "atr": 0.001}
			labels[i] = 0
		}
	}
	return trainOnRaws(t, raws, labels)
}

// biasedModel sees constant features with a 70/30 label split, so it serves
// the base rate: probability near 0.7, confidence near 0.4. That lands
// between the healthy (0.3) and warning (0.6) thresholds.
func biasedModel(t *testing.T) *ml.Model {
	t.Helper()
	raws := make([]map[string]float64, 60)
	labels := make([]int, 60)
	for i := range raws {
		raws[i] = map[string]float64{}
		if i < 42 {
			labels[i] = 1
		}
	}
	return trainOnRaws(t, raws, labels)
}

// flatModel learns nothing: constant features with balanced labels leave the
// booster at the 0.5 base rate, so served confidence is zero.
func flatModel(t *testing.T) *ml.Model {
	t.Helper()
	raws := make([]map[string]float64, 60)
	labels := make([]int, 60)
	for i := range raws {
		raws[i] = map[string]float64{}
		labels[i] = i % 2
	}
	return trainOnRaws(t, raws, labels)
}

func writeServingBundle(t *testing.T, dir string, key models.ModelKey, model *ml.Model) {
	t.Helper()
	arts := registry.ArtifactNames(key)
	if err := model.Save(filepath.Join(dir, arts.Model)); err != nil {
		t.Fatalf("save model: %v", err)
	}
	b, _ := json.Marshal(features.UniversalFeatureNames())
	if err := os.WriteFile(filepath.Join(dir, arts.FeatureNames), b, 0o644); err != nil {
		t.Fatalf("write names: %v", err)
	}
}

func newTestService(t *testing.T, dir string, riskMgr *risk.Manager, telemetry *fakeTelemetry, sink *fakeSink) *PredictionService {
	t.Helper()
	l := testLogger(t)
	reg := registry.New(dir, l)
	if _, err := reg.LoadAll(); err != nil {
		t.Fatalf("load registry: %v", err)
	}
	if riskMgr == nil {
		riskMgr = risk.NewManager(models.DefaultRiskLimits(), l)
	}
	svc := NewPredictionService(&config.Config{}, l, reg, riskMgr, nil, nil, nil, nil)
	if telemetry != nil {
		svc.telemetry = telemetry
	}
	if sink != nil {
		svc.sink = sink
	}
	return svc
}

func buyRequest(featuresMap map[string]float64) *models.PredictRequest {
	return &models.PredictRequest{
		Strategy:  "trend",
		Symbol:    "EURUSD",
		Timeframe: "M5",
		Direction: "buy",
		Features:  featuresMap,
	}
}

func TestPredictNoModelIsNotFound(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil, nil, nil)
	_, err := svc.Predict(context.Background(), buyRequest(map[string]float64{"rsi": 30}))
	if err == nil {
		t.Fatalf("expected error for empty registry")
	}
}

func TestPredictLegacyShape(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, separableModel(t))
	svc := newTestService(t, dir, nil, nil, nil)

	resp, err := svc.PredictLegacy(context.Background(), buyRequest(map[string]float64{"rsi": 30, "atr": 0.001}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if resp.Status != "success" || resp.Prediction == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	p := resp.Prediction
	if p.Probability <= 0 || p.Probability >= 1 {
		t.Fatalf("probability out of range: %v", p.Probability)
	}
	wantConf := (p.Probability - 0.5) * 2
	if wantConf < 0 {
		wantConf = -wantConf
	}
	if diff := p.Confidence - wantConf; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence %v does not match probability %v", p.Confidence, p.Probability)
	}
	if p.ModelKey != key.String() {
		t.Fatalf("model key %q", p.ModelKey)
	}
	if resp.Metadata == nil || len(resp.Metadata.FeaturesUsed) == 0 {
		t.Fatalf("metadata missing feature list")
	}
}

func TestPredictConfidentHealthySignalsTrade(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, separableModel(t))

	l := testLogger(t)
	riskMgr := risk.NewManager(models.DefaultRiskLimits(), l)
	riskMgr.SetAccountInfo(10000, 10000, 0)
	sink := &fakeSink{}
	svc := newTestService(t, dir, riskMgr, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, sink)

	resp, err := svc.Predict(context.Background(), buyRequest(map[string]float64{
		"rsi": 30, "atr": 0.001, "current_price": 1.1000,
	}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	d := resp.Prediction
	if d.ShouldTrade != 1 {
		t.Fatalf("confident healthy prediction should trade, confidence=%v threshold=%v", d.Confidence, d.ConfidenceThreshold)
	}
	tp := d.TradeParameters
	if tp == nil || tp.Error != "" {
		t.Fatalf("trade parameters missing or errored: %+v", tp)
	}
	if tp.EntryPrice != 1.1000 {
		t.Fatalf("entry price %v", tp.EntryPrice)
	}
	if tp.StopLoss >= tp.EntryPrice || tp.TakeProfit <= tp.EntryPrice {
		t.Fatalf("buy stop/target on wrong side: stop=%v target=%v", tp.StopLoss, tp.TakeProfit)
	}
	// 2xATR stop, 4xATR target.
	if diff := tp.EntryPrice - tp.StopLoss - 0.002; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("stop distance %v", tp.EntryPrice-tp.StopLoss)
	}
	if diff := tp.TakeProfit - tp.EntryPrice - 0.004; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("target distance %v", tp.TakeProfit-tp.EntryPrice)
	}
	if tp.LotSize <= 0 {
		t.Fatalf("lot size %v", tp.LotSize)
	}
	if !tp.RiskValidation.CanTrade {
		t.Fatalf("trade unexpectedly blocked: %s", tp.RiskValidation.ValidationDetails)
	}
	if len(sink.decisions) != 1 {
		t.Fatalf("expected one decision event, got %d", len(sink.decisions))
	}
}

func TestPredictFlatModelDoesNotTrade(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, flatModel(t))
	svc := newTestService(t, dir, nil, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, nil)

	resp, err := svc.Predict(context.Background(), buyRequest(map[string]float64{
		"rsi": 50, "atr": 0.001, "current_price": 1.1000,
	}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	d := resp.Prediction
	if d.Confidence >= 0.3 {
		t.Fatalf("flat model confidence %v", d.Confidence)
	}
	if d.ShouldTrade != 0 {
		t.Fatalf("flat model must not trade")
	}
	if d.TradeParameters != nil {
		t.Fatalf("no parameters expected for a skipped trade")
	}
}

func TestPredictWarningHealthBlocksMidConfidence(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, biasedModel(t))
	reqFeatures := map[string]float64{"rsi": 50, "atr": 0.001, "current_price": 1.1000}

	warn := newTestService(t, dir, nil, &fakeTelemetry{status: models.HealthStatusWarning, reachable: true}, nil)
	resp, err := warn.Predict(context.Background(), buyRequest(reqFeatures))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	d := resp.Prediction
	if d.Confidence < 0.3 || d.Confidence >= 0.6 {
		t.Fatalf("biased model confidence %v outside the mid band", d.Confidence)
	}
	if d.ConfidenceThreshold != 0.6 {
		t.Fatalf("warning threshold = %v, want 0.6", d.ConfidenceThreshold)
	}
	if d.ShouldTrade != 0 {
		t.Fatalf("mid confidence must not clear the warning tier")
	}

	// The same prediction clears the healthy tier.
	riskMgr := risk.NewManager(models.DefaultRiskLimits(), testLogger(t))
	riskMgr.SetAccountInfo(10000, 10000, 0)
	healthy := newTestService(t, dir, riskMgr, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, nil)
	resp, err = healthy.Predict(context.Background(), buyRequest(reqFeatures))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if resp.Prediction.ShouldTrade != 1 {
		t.Fatalf("mid confidence must trade at the healthy tier, confidence=%v", resp.Prediction.Confidence)
	}
}

func TestPredictThresholdOverridesFromConfig(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, biasedModel(t))
	svc := newTestService(t, dir, nil, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, nil)
	svc.cfg.Serving.ThresholdHealthy = 0.5

	resp, err := svc.Predict(context.Background(), buyRequest(map[string]float64{
		"rsi": 50, "atr": 0.001, "current_price": 1.1000,
	}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	d := resp.Prediction
	if d.ConfidenceThreshold != 0.5 {
		t.Fatalf("overridden threshold = %v, want 0.5", d.ConfidenceThreshold)
	}
	if d.ShouldTrade != 0 {
		t.Fatalf("confidence %v must not clear the raised threshold", d.Confidence)
	}
}

func TestPredictCriticalHealthRaisesThreshold(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, separableModel(t))
	svc := newTestService(t, dir, nil, &fakeTelemetry{status: models.HealthStatusCritical, reachable: true}, nil)

	resp, err := svc.Predict(context.Background(), buyRequest(map[string]float64{
		"rsi": 30, "atr": 0.001, "current_price": 1.1000,
	}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if resp.Prediction.ConfidenceThreshold != 0.7 {
		t.Fatalf("critical threshold = %v, want 0.7", resp.Prediction.ConfidenceThreshold)
	}
}

func TestPredictRecordsModelHealthGauge(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, separableModel(t))
	svc := newTestService(t, dir, nil, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, nil)
	fm := newFakeMetrics()
	svc.metrics = fm

	if _, err := svc.Predict(context.Background(), buyRequest(map[string]float64{
		"rsi": 30, "atr": 0.001, "current_price": 1.1000,
	})); err != nil {
		t.Fatalf("predict: %v", err)
	}

	score, ok := fm.healthScores[key.String()]
	if !ok {
		t.Fatalf("model health gauge never recorded")
	}
	if score != 85 {
		t.Fatalf("recorded health score %v, want 85", score)
	}
	if fm.predictions != 1 {
		t.Fatalf("recorded %d predictions", fm.predictions)
	}
}

func TestPredictMissingCurrentPriceIsVisibleError(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, separableModel(t))
	svc := newTestService(t, dir, nil, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, nil)

	resp, err := svc.Predict(context.Background(), buyRequest(map[string]float64{"rsi": 30, "atr": 0.001}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	d := resp.Prediction
	if d.ShouldTrade != 1 {
		t.Fatalf("gate outcome should not depend on trade parameters")
	}
	if d.TradeParameters == nil || d.TradeParameters.Error == "" {
		t.Fatalf("missing current_price must surface as a parameter error")
	}
	if d.TradeParameters.LotSize != 0 {
		t.Fatalf("lot size must stay zero without a price")
	}
}

func TestPredictBlockedTradeHasZeroLot(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, separableModel(t))

	l := testLogger(t)
	limits := models.DefaultRiskLimits()
	limits.MaxTotalPositions = 1
	riskMgr := risk.NewManager(limits, l)
	riskMgr.SetAccountInfo(10000, 10000, 0)
	riskMgr.SetPositionsData([]models.Position{{
		Ticket: 1, Symbol: "GBPUSD", Direction: "BUY", Volume: 0.1,
		OpenPrice: 1.25, CurrentPrice: 1.25, StopLoss: 1.24,
		OpenTime: time.Now(),
	}})
	svc := newTestService(t, dir, riskMgr, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, nil)

	resp, err := svc.Predict(context.Background(), buyRequest(map[string]float64{
		"rsi": 30, "atr": 0.001, "current_price": 1.1000,
	}))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	tp := resp.Prediction.TradeParameters
	if tp == nil {
		t.Fatalf("parameters must stay visible for blocked trades")
	}
	if tp.RiskValidation.CanTrade {
		t.Fatalf("expected blocked trade")
	}
	if !strings.HasPrefix(tp.RiskValidation.ValidationDetails, risk.ReasonMaxPositions) {
		t.Fatalf("reason %q", tp.RiskValidation.ValidationDetails)
	}
	// The gate's computed numbers must reach the caller, not just its name.
	if !strings.Contains(tp.RiskValidation.ValidationDetails, "open=1") {
		t.Fatalf("details missing gate numbers: %q", tp.RiskValidation.ValidationDetails)
	}
	if tp.LotSize != 0 {
		t.Fatalf("blocked trade lot size %v", tp.LotSize)
	}
	if tp.EntryPrice == 0 || tp.StopLoss == 0 {
		t.Fatalf("entry and stop must stay populated")
	}
}

func TestDirectionalProbabilityMapping(t *testing.T) {
	buy := &models.ModelBundle{Key: models.ModelKey{Direction: models.DirectionBuy}}
	combined := &models.ModelBundle{Key: models.ModelKey{Direction: models.DirectionCombined}}

	if got := directionalProbability(buy, "", 0.3); got != 0.7 {
		t.Fatalf("no direction should serve the max class, got %v", got)
	}
	if got := directionalProbability(buy, models.DirectionBuy, 0.8); got != 0.8 {
		t.Fatalf("matching direction, got %v", got)
	}
	if got := directionalProbability(combined, models.DirectionBuy, 0.8); got != 0.8 {
		t.Fatalf("combined model serving buy, got %v", got)
	}
	if got := directionalProbability(combined, models.DirectionSell, 0.8); got-0.2 > 1e-12 || got-0.2 < -1e-12 {
		t.Fatalf("combined model serving sell, got %v", got)
	}
}

func TestServiceHealthAccounting(t *testing.T) {
	dir := t.TempDir()
	key := models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"}
	writeServingBundle(t, dir, key, separableModel(t))
	svc := newTestService(t, dir, nil, &fakeTelemetry{status: models.HealthStatusHealthy, reachable: true}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.PredictLegacy(ctx, buyRequest(map[string]float64{"rsi": 30, "atr": 0.001})); err != nil {
			t.Fatalf("predict %d: %v", i, err)
		}
	}
	// One failing request for an unknown symbol.
	bad := buyRequest(map[string]float64{"rsi": 30})
	bad.Symbol = "USDJPY"
	if _, err := svc.PredictLegacy(ctx, bad); err == nil {
		t.Fatalf("expected miss for unknown symbol")
	}

	h := svc.Health(ctx)
	if h.Status != "healthy" {
		t.Fatalf("status %q", h.Status)
	}
	if h.ModelsLoaded != 1 {
		t.Fatalf("models loaded %d", h.ModelsLoaded)
	}
	if h.Requests < 4 || h.Errors < 1 {
		t.Fatalf("accounting requests=%d errors=%d", h.Requests, h.Errors)
	}
	if h.ResponseWindowLength != int(h.Requests) {
		t.Fatalf("window length %d for %d requests", h.ResponseWindowLength, h.Requests)
	}
}

func TestServiceHealthUnhealthyWithoutModels(t *testing.T) {
	svc := newTestService(t, t.TempDir(), nil, &fakeTelemetry{reachable: true}, nil)
	h := svc.Health(context.Background())
	if h.Status != "unhealthy" {
		t.Fatalf("status %q with zero models", h.Status)
	}
}
