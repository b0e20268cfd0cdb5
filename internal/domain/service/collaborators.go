package service

import (
	"context"

	"TradePilot/internal/domain/models"
)

// HealthTelemetry answers model-health queries used to pick serving-time
// confidence thresholds. Implementations must degrade to an "unknown" record
// instead of failing the prediction when the collaborator is down.
type HealthTelemetry interface {
	ModelHealth(ctx context.Context, modelKey string) (models.ModelHealth, error)
	Reachable(ctx context.Context) bool
}

// PortfolioProvider fetches live positions and the account summary from the
// analytics collaborator. Fallbacks: empty position list, default portfolio.
type PortfolioProvider interface {
	Positions(ctx context.Context) ([]models.Position, error)
	Summary(ctx context.Context) (models.PortfolioSummary, error)
}

// EventSink receives decision/retrain events for fan-out (Kafka topic,
// websocket hub). Implementations must never block the prediction path.
type EventSink interface {
	PublishDecision(ctx context.Context, ev *models.DecisionEvent)
	PublishRetrain(ctx context.Context, ev *models.RetrainEvent)
}
