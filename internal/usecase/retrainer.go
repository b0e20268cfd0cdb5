package usecase

import (
	"context"
	"net/http"
	"time"

	"TradePilot/internal/domain/models"
	domrepo "TradePilot/internal/domain/repository"
	domsvc "TradePilot/internal/domain/service"
	"TradePilot/internal/registry"
	"TradePilot/internal/service/ratelimit"
	"TradePilot/internal/services/retrain"
	xhttp "TradePilot/pkg/http"
	applogger "TradePilot/pkg/logger"
)

// A full retraining run holds CPU for seconds; one run per model key per
// minute keeps a misbehaving bridge from starving the prediction path.
const (
	retrainBurst     = 1.0
	retrainPerSecond = 1.0 / 60.0
)

// RetrainService orchestrates retraining runs: it gathers the training
// batch, invokes the framework, records the run, reloads the registry on
// success and fans the outcome out to subscribers.
type RetrainService struct {
	l       *applogger.Logger
	fw      *retrain.Framework
	store   domrepo.TrainingStore
	runlog  domrepo.RunLog
	reg     *registry.Registry
	sink    domsvc.EventSink
	limiter *ratelimit.Limiter
}

// NewRetrainService wires the retraining orchestration.
func NewRetrainService(
	l *applogger.Logger,
	fw *retrain.Framework,
	store domrepo.TrainingStore,
	runlog domrepo.RunLog,
	reg *registry.Registry,
	sink domsvc.EventSink,
) *RetrainService {
	return &RetrainService{
		l: l, fw: fw, store: store, runlog: runlog, reg: reg, sink: sink,
		limiter: ratelimit.New(),
	}
}

// Retrain runs one retraining invocation. The training batch comes from the
// request body, the training store, or both.
func (s *RetrainService) Retrain(ctx context.Context, req *models.RetrainRequest) (*models.RetrainResult, error) {
	key := models.ModelKey{
		Direction: models.Direction(req.Direction),
		Symbol:    req.Symbol,
		Timeframe: string(domrepo.NormalizeTimeframe(req.Timeframe)),
	}

	if !s.limiter.Allow(key.String(), retrainBurst, retrainPerSecond) {
		return nil, xhttp.NewAppError("ERR_RATE_LIMITED", "",
			"retraining for "+key.String()+" was run too recently", http.StatusTooManyRequests)
	}

	examples := req.Examples
	if req.UseStore {
		if s.store == nil {
			return nil, xhttp.BadRequestError("training store is not configured")
		}
		stored, err := s.store.GetTrainingExamples(ctx, req.Symbol, key.Timeframe, req.Direction, req.StoreLimit)
		if err != nil {
			s.l.Error("training store fetch failed",
				applogger.String("model_key", key.String()), applogger.Error(err))
			return nil, xhttp.InternalError("training store unavailable")
		}
		examples = append(examples, stored...)
	}
	if len(examples) == 0 {
		return nil, xhttp.BadRequestError("no training examples supplied")
	}

	result := s.fw.Retrain(ctx, key, examples, req.AllowLenient)
	s.recordRun(ctx, key, result)

	if result.Success {
		if _, err := s.reg.LoadAll(); err != nil {
			s.l.Error("registry reload after retrain failed", applogger.Error(err))
		}
	}
	if s.sink != nil {
		ev := &models.RetrainEvent{
			Type:      "retrain",
			ModelKey:  key.String(),
			Success:   result.Success,
			Reason:    result.Reason,
			Timestamp: time.Now(),
		}
		if result.Validation != nil {
			ev.Accuracy = result.Validation.MeanAccuracy
		}
		if result.Health != nil {
			ev.HealthScore = result.Health.Score
		}
		s.sink.PublishRetrain(ctx, ev)
	}
	return result, nil
}

// Recommendations inspects persisted metadata for one model key and lists
// every reason retraining is warranted.
func (s *RetrainService) Recommendations(req *models.RecommendationsRequest) []models.RetrainRecommendation {
	key := models.ModelKey{
		Direction: models.Direction(req.Direction),
		Symbol:    req.Symbol,
		Timeframe: string(domrepo.NormalizeTimeframe(req.Timeframe)),
	}
	var meta *models.BundleMeta
	if bundle, ok := s.reg.Get(key); ok {
		meta = bundle.Meta
	}
	return retrain.Recommend(key, meta, time.Now())
}

// History returns recent retraining runs from the audit log.
func (s *RetrainService) History(ctx context.Context, req *models.RetrainHistoryRequest) ([]domrepo.RetrainRun, error) {
	if s.runlog == nil {
		return []domrepo.RetrainRun{}, nil
	}
	runs, err := s.runlog.History(ctx, req.Symbol, req.Limit)
	if err != nil {
		return nil, xhttp.InternalError("retrain history unavailable")
	}
	return runs, nil
}

func (s *RetrainService) recordRun(ctx context.Context, key models.ModelKey, result *models.RetrainResult) {
	if s.runlog == nil {
		return
	}
	run := &domrepo.RetrainRun{
		ModelKey:    key.String(),
		Symbol:      key.Symbol,
		Timeframe:   key.Timeframe,
		Direction:   string(key.Direction),
		Success:     result.Success,
		Reason:      result.Reason,
		Samples:     result.Samples,
		UsedLenient: result.UsedLenient,
		DurationMs:  result.Duration.Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if result.Validation != nil {
		run.Accuracy = result.Validation.MeanAccuracy
	}
	if result.Health != nil {
		run.HealthScore = result.Health.Score
	}
	if err := s.runlog.Record(ctx, run); err != nil {
		s.l.Warn("retrain run log write failed", applogger.Error(err))
	}
}
