package usecase

import (
	"context"
	"testing"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/registry"
	"TradePilot/internal/services/retrain"
)

func newTestRetrainService(t *testing.T) *RetrainService {
	t.Helper()
	l := testLogger(t)
	dir := t.TempDir()
	fw := retrain.NewFramework(retrain.DefaultConfig(dir), l)
	reg := registry.New(dir, l)
	return NewRetrainService(l, fw, nil, nil, reg, nil)
}

func tinyBatch(n int) []models.TrainingExample {
	out := make([]models.TrainingExample, n)
	for i := range out {
		profit := 1.0
		if i%2 == 1 {
			profit = -1.0
		}
		out[i] = models.TrainingExample{
			Features: map[string]float64{"rsi": 50},
			Profit:   profit,
		}
	}
	return out
}

func TestRetrainReturnsFailedRunNotError(t *testing.T) {
	svc := newTestRetrainService(t)
	req := &models.RetrainRequest{
		Symbol: "EURUSD", Timeframe: "M5", Direction: "buy",
		Examples: tinyBatch(5),
	}
	result, err := svc.Retrain(context.Background(), req)
	if err != nil {
		t.Fatalf("undersized batch is a failed run, not a transport error: %v", err)
	}
	if result.Success {
		t.Fatalf("5 examples must not train a model")
	}
	if result.Reason != retrain.ReasonInsufficientData {
		t.Fatalf("reason %q", result.Reason)
	}
}

func TestRetrainRejectsEmptyBatch(t *testing.T) {
	svc := newTestRetrainService(t)
	req := &models.RetrainRequest{Symbol: "EURUSD", Timeframe: "M5", Direction: "buy"}
	if _, err := svc.Retrain(context.Background(), req); err == nil {
		t.Fatalf("expected bad request for empty batch")
	}
}

func TestRetrainIsRateLimitedPerKey(t *testing.T) {
	svc := newTestRetrainService(t)
	req := &models.RetrainRequest{
		Symbol: "EURUSD", Timeframe: "M5", Direction: "buy",
		Examples: tinyBatch(5),
	}
	if _, err := svc.Retrain(context.Background(), req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := svc.Retrain(context.Background(), req); err == nil {
		t.Fatalf("immediate second run for the same key must be limited")
	}

	// A different key has its own bucket.
	other := &models.RetrainRequest{
		Symbol: "GBPUSD", Timeframe: "M5", Direction: "buy",
		Examples: tinyBatch(5),
	}
	if _, err := svc.Retrain(context.Background(), other); err != nil {
		t.Fatalf("other key: %v", err)
	}
}

func TestRecommendationsForMissingModel(t *testing.T) {
	svc := newTestRetrainService(t)
	recs := svc.Recommendations(&models.RecommendationsRequest{
		Symbol: "EURUSD", Timeframe: "M5", Direction: "buy",
	})
	if len(recs) != 1 || recs[0].Priority != models.PriorityHigh {
		t.Fatalf("missing model must yield one high-priority recommendation: %+v", recs)
	}
}

func TestHistoryWithoutRunLog(t *testing.T) {
	svc := newTestRetrainService(t)
	runs, err := svc.History(context.Background(), &models.RetrainHistoryRequest{Limit: 10})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty history, got %d", len(runs))
	}
}
