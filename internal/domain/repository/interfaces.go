package repository

import (
	"context"
	"time"

	"TradePilot/internal/domain/models"
)

// TrainingStore persists closed labeled trades and serves them back as
// training batches for the retraining framework.
type TrainingStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Append(ctx context.Context, ex *models.TrainingExample) error
	AppendBatch(ctx context.Context, exs []*models.TrainingExample) error
	GetTrainingExamples(ctx context.Context, symbol, timeframe, direction string, limit int) ([]models.TrainingExample, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// RunLog records retraining invocations for audit and history queries.
type RunLog interface {
	Record(ctx context.Context, run *RetrainRun) error
	History(ctx context.Context, symbol string, limit int) ([]RetrainRun, error)
}

// RetrainRun is one row of the retrain audit trail.
type RetrainRun struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ModelKey    string    `json:"model_key" gorm:"index"`
	Symbol      string    `json:"symbol" gorm:"index"`
	Timeframe   string    `json:"timeframe"`
	Direction   string    `json:"direction"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason"`
	Samples     int       `json:"samples"`
	Accuracy    float64   `json:"accuracy"`
	HealthScore int       `json:"health_score"`
	UsedLenient bool      `json:"used_lenient"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// Metrics abstracts the Prometheus recorder so hot-path code does not depend
// on the client library directly.
type Metrics interface {
	RecordPrediction(symbol, direction string, shouldTrade bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordModelHealth(modelKey string, score float64)
	RecordPortfolioRisk(pct float64)
}
