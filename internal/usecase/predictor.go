package usecase

import (
	"context"
	"math"
	"time"

	"TradePilot/internal/domain/models"
	domrepo "TradePilot/internal/domain/repository"
	domsvc "TradePilot/internal/domain/service"
	"TradePilot/internal/registry"
	"TradePilot/internal/risk"
	"TradePilot/internal/services/features"
	"TradePilot/pkg/config"
	xhttp "TradePilot/pkg/http"
	applogger "TradePilot/pkg/logger"
)

// Confidence thresholds by model-health tier, overridable via config.
const (
	defaultThresholdCritical = 0.7
	defaultThresholdWarning  = 0.6
	defaultThresholdHealthy  = 0.3
)

// LegacyPredictionResponse is the backward-compatible response shape older
// expert advisors consume: probability and confidence only, no trade gating.
type LegacyPredictionResponse struct {
	Status     string                 `json:"status"`
	Prediction *models.Prediction     `json:"prediction"`
	Metadata   *models.PredictionMeta `json:"metadata"`
}

// EnhancedPredictionResponse is the full trade-decision response.
type EnhancedPredictionResponse struct {
	Status     string                 `json:"status"`
	Prediction *models.TradeDecision  `json:"prediction"`
	Metadata   *models.PredictionMeta `json:"metadata"`
}

// PredictionService answers prediction and trade-decision requests against
// the loaded model registry. It sits on the live-trading hot path: every
// failure mode inside Predict degrades or errors cleanly, never panics out.
type PredictionService struct {
	cfg       *config.Config
	l         *applogger.Logger
	reg       *registry.Registry
	riskMgr   *risk.Manager
	telemetry domsvc.HealthTelemetry
	portfolio domsvc.PortfolioProvider
	sink      domsvc.EventSink
	metrics   domrepo.Metrics
	stats     *servingStats
}

// NewPredictionService wires the serving pipeline.
func NewPredictionService(
	cfg *config.Config,
	l *applogger.Logger,
	reg *registry.Registry,
	riskMgr *risk.Manager,
	telemetry domsvc.HealthTelemetry,
	portfolio domsvc.PortfolioProvider,
	sink domsvc.EventSink,
	metrics domrepo.Metrics,
) *PredictionService {
	return &PredictionService{
		cfg:       cfg,
		l:         l,
		reg:       reg,
		riskMgr:   riskMgr,
		telemetry: telemetry,
		portfolio: portfolio,
		sink:      sink,
		metrics:   metrics,
		stats:     newServingStats(),
	}
}

// Registry exposes the underlying model registry for listing endpoints.
func (s *PredictionService) Registry() *registry.Registry { return s.reg }

// RiskManager exposes the risk manager for the risk endpoints.
func (s *PredictionService) RiskManager() *risk.Manager { return s.riskMgr }

// PredictLegacy serves the backward-compatible probability/confidence shape.
func (s *PredictionService) PredictLegacy(ctx context.Context, req *models.PredictRequest) (resp *LegacyPredictionResponse, err error) {
	start := time.Now()
	defer s.finish(start, &err)

	pred, meta, _, err := s.predictCore(ctx, req)
	if err != nil {
		return nil, err
	}
	return &LegacyPredictionResponse{Status: "success", Prediction: pred, Metadata: meta}, nil
}

// Predict serves the enhanced trade-decision response: the legacy fields
// plus health-thresholded gating and concrete trade parameters.
func (s *PredictionService) Predict(ctx context.Context, req *models.PredictRequest) (resp *EnhancedPredictionResponse, err error) {
	start := time.Now()
	defer s.finish(start, &err)

	pred, meta, bundle, err := s.predictCore(ctx, req)
	if err != nil {
		return nil, err
	}

	decision := &models.TradeDecision{Prediction: *pred}
	health := s.modelHealth(ctx, bundle.Key.String())
	decision.ModelHealth = &health
	if s.metrics != nil {
		s.metrics.RecordModelHealth(bundle.Key.String(), float64(health.HealthScore))
	}
	decision.ConfidenceThreshold = s.thresholdFor(health.Status)
	if pred.Confidence >= decision.ConfidenceThreshold {
		decision.ShouldTrade = 1
		decision.TradeParameters = s.tradeParameters(ctx, req, pred)
	}

	if s.sink != nil {
		s.sink.PublishDecision(ctx, &models.DecisionEvent{
			Type: "decision", Decision: decision, Timestamp: time.Now(),
		})
	}
	if s.metrics != nil {
		s.metrics.RecordPrediction(req.Symbol, req.Direction, decision.ShouldTrade == 1)
	}
	return &EnhancedPredictionResponse{Status: "success", Prediction: decision, Metadata: meta}, nil
}

// predictCore resolves the model, prepares features and produces the legacy
// prediction fields shared by both response modes.
func (s *PredictionService) predictCore(ctx context.Context, req *models.PredictRequest) (*models.Prediction, *models.PredictionMeta, *models.ModelBundle, error) {
	timeframe := string(domrepo.NormalizeTimeframe(req.Timeframe))
	direction := models.Direction(req.Direction)

	bundle, ok := s.reg.Select(req.Symbol, timeframe, direction)
	if !ok {
		return nil, nil, nil, xhttp.NotFoundErrorf("no model for %s %s %s", req.Symbol, timeframe, req.Direction)
	}
	if !bundle.CanServe() {
		return nil, nil, nil, xhttp.NotFoundErrorf("model %s has no feature list and cannot serve", bundle.Key.String())
	}

	vector, err := s.prepareFeatures(req.Features, bundle)
	if err != nil {
		return nil, nil, nil, xhttp.BadRequestError(err.Error())
	}

	rawProb := bundle.Model.PredictProba(vector)
	probability := directionalProbability(bundle, direction, rawProb)

	pred := &models.Prediction{
		Probability: probability,
		Confidence:  math.Abs(probability-0.5) * 2,
		ModelKey:    bundle.Key.String(),
		ModelType:   metaModelType(bundle),
		Direction:   req.Direction,
		Strategy:    req.Strategy,
		Symbol:      req.Symbol,
		Timeframe:   timeframe,
		Timestamp:   time.Now(),
	}
	meta := &models.PredictionMeta{
		FeaturesUsed: bundle.FeatureNames,
		ModelFile:    bundle.ModelFile,
		LoadedAt:     bundle.LoadedAt,
	}
	return pred, meta, bundle, nil
}

// prepareFeatures engineers the raw map, projects it onto the bundle's
// feature order and scales it. A scaler arity mismatch is tolerated by
// truncating or zero-padding and retrying; if that still fails the vector is
// served unscaled. Every fallback step is logged.
func (s *PredictionService) prepareFeatures(raw map[string]float64, bundle *models.ModelBundle) ([]float64, error) {
	engineered := features.Engineer(raw)
	vector, err := features.Project(engineered, bundle.FeatureNames)
	if err != nil {
		return nil, err
	}
	if bundle.Scaler == nil {
		return vector, nil
	}

	scaled, err := bundle.Scaler.Transform(vector)
	if err == nil {
		return scaled, nil
	}

	want := bundle.Scaler.NumFeatures()
	s.l.Warn("scaler arity mismatch, adjusting vector",
		applogger.String("model_key", bundle.Key.String()),
		applogger.Int("have", len(vector)), applogger.Int("want", want))
	adjusted := make([]float64, want)
	copy(adjusted, vector)

	scaled, err = bundle.Scaler.Transform(adjusted)
	if err != nil {
		s.l.Warn("adjusted transform failed, serving unscaled features",
			applogger.String("model_key", bundle.Key.String()), applogger.Error(err))
		return vector, nil
	}
	return scaled, nil
}

// directionalProbability maps the positive-class probability onto the
// requested direction: the matching class for explicit buy/sell requests,
// the max over classes when no direction was given.
func directionalProbability(bundle *models.ModelBundle, direction models.Direction, p float64) float64 {
	switch {
	case direction == "":
		return math.Max(p, 1-p)
	case bundle.Key.Direction == direction:
		return p
	case bundle.Key.Direction == models.DirectionCombined && direction == models.DirectionBuy:
		return p
	default:
		// Served by the combined model's opposite class or an
		// opposite-direction fallback model.
		return 1 - p
	}
}

func (s *PredictionService) modelHealth(ctx context.Context, modelKey string) models.ModelHealth {
	if s.telemetry == nil {
		return models.ModelHealth{ModelKey: modelKey, Status: models.HealthStatusUnknown}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	health, err := s.telemetry.ModelHealth(ctx, modelKey)
	if err != nil {
		return models.ModelHealth{ModelKey: modelKey, Status: models.HealthStatusUnknown}
	}
	return health
}

func (s *PredictionService) thresholdFor(status string) float64 {
	critical, warning, healthy := defaultThresholdCritical, defaultThresholdWarning, defaultThresholdHealthy
	if s.cfg != nil {
		if s.cfg.Serving.ThresholdCritical > 0 {
			critical = s.cfg.Serving.ThresholdCritical
		}
		if s.cfg.Serving.ThresholdWarning > 0 {
			warning = s.cfg.Serving.ThresholdWarning
		}
		if s.cfg.Serving.ThresholdHealthy > 0 {
			healthy = s.cfg.Serving.ThresholdHealthy
		}
	}
	switch status {
	case models.HealthStatusCritical:
		return critical
	case models.HealthStatusWarning:
		return warning
	default:
		return healthy
	}
}

// tradeParameters derives order parameters for an admitted prediction.
// current_price is mandatory; without it the parameter set is zero-valued
// with an error reason. When the risk manager blocks the trade, lot size is
// forced to zero but entry/stop/target remain populated for visibility.
func (s *PredictionService) tradeParameters(ctx context.Context, req *models.PredictRequest, pred *models.Prediction) *models.TradeParameters {
	price, ok := req.Features["current_price"]
	if !ok || price <= 0 {
		return &models.TradeParameters{Error: "current_price missing from features"}
	}

	atr := req.Features["atr"]
	if atr <= 0 {
		atr, _ = features.RawDefault("atr")
	}
	stopDistance := 2 * atr
	targetDistance := 4 * atr

	params := &models.TradeParameters{EntryPrice: price}
	if pred.Direction == string(models.DirectionSell) {
		params.StopLoss = price + stopDistance
		params.TakeProfit = price - targetDistance
	} else {
		params.StopLoss = price - stopDistance
		params.TakeProfit = price + targetDistance
	}

	balance := s.riskMgr.Snapshot().Balance
	if balance <= 0 {
		summary, err := s.portfolioSummary(ctx)
		if err != nil {
			s.l.Warn("portfolio summary unavailable, using default balance", applogger.Error(err))
		}
		balance = summary.Balance
	}

	lot := s.riskMgr.CalculateOptimalLotSize(req.Symbol, params.EntryPrice, params.StopLoss, balance, 0)
	params.LotCalculation = &lot
	if lot.Error != "" {
		params.Error = lot.Error
		return params
	}
	params.LotSize = lot.LotSize

	verdict := s.riskMgr.CanOpenNewTrade(req.Symbol, lot.LotSize, stopDistance, pred.Direction)
	status := s.riskMgr.GetRiskStatus()
	details := verdict.Reason
	if verdict.Detail != "" {
		details = verdict.Reason + ": " + verdict.Detail
	}
	params.RiskValidation = models.RiskValidation{
		CanTrade:          verdict.Allowed,
		ValidationDetails: details,
		RiskStatus:        string(status.Status),
		PortfolioRisk:     status.Portfolio.TotalRiskPct,
		CurrentDrawdown:   status.Portfolio.CurrentDrawdown,
	}
	params.RiskMetrics = map[string]any{
		"risk_amount":       lot.RiskAmount,
		"risk_pct":          lot.RiskPct,
		"stop_distance":     lot.StopDistance,
		"weekly_drawdown":   s.riskMgr.GetWeeklyDrawdown(),
		"open_positions":    status.Portfolio.TotalPositions,
		"daily_loss_pct":    status.Portfolio.DailyLossPct,
		"margin_level":      status.Portfolio.MarginLevel,
		"risk_status_level": string(status.Status),
	}
	if !verdict.Allowed {
		params.LotSize = 0
	}
	if s.metrics != nil {
		s.metrics.RecordPortfolioRisk(status.Portfolio.TotalRiskPct)
	}
	return params
}

func (s *PredictionService) portfolioSummary(ctx context.Context) (models.PortfolioSummary, error) {
	if s.portfolio == nil {
		return models.DefaultPortfolioSummary(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	summary, err := s.portfolio.Summary(ctx)
	if err != nil {
		return models.DefaultPortfolioSummary(), err
	}
	return summary, nil
}

func metaModelType(bundle *models.ModelBundle) string {
	if bundle.Meta != nil && bundle.Meta.ModelType != "" {
		return bundle.Meta.ModelType
	}
	return "gradient_boosting"
}

// finish records request accounting; it also converts panics anywhere in
// the prediction path into a generic internal error, since this code must
// never crash the live-trading caller.
func (s *PredictionService) finish(start time.Time, err *error) {
	if r := recover(); r != nil {
		s.l.Error("prediction panicked", applogger.Any("panic", r))
		*err = xhttp.InternalError("prediction failed")
	}
	s.stats.record(time.Since(start), *err == nil)
	if s.metrics != nil {
		s.metrics.RecordLatency("predict", time.Since(start).Seconds())
		if *err != nil {
			s.metrics.RecordError("predict")
		}
	}
}
