package models

import "time"

// ModelHealthStatus values reported by the health telemetry collaborator.
const (
	HealthStatusHealthy  = "healthy"
	HealthStatusWarning  = "warning"
	HealthStatusCritical = "critical"
	HealthStatusUnknown  = "unknown"
)

// ModelHealth is the telemetry record used to pick a confidence threshold.
type ModelHealth struct {
	ModelKey    string `json:"model_key"`
	Status      string `json:"status"`
	HealthScore int    `json:"health_score"`
}

// Prediction is the legacy response body: probability and confidence only,
// no trade gating. Older expert advisors still consume this shape.
type Prediction struct {
	Probability float64   `json:"probability"`
	Confidence  float64   `json:"confidence"`
	ModelKey    string    `json:"model_key"`
	ModelType   string    `json:"model_type"`
	Direction   string    `json:"direction"`
	Strategy    string    `json:"strategy"`
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Timestamp   time.Time `json:"timestamp"`
}

// PredictionMeta describes which artifacts served the prediction.
type PredictionMeta struct {
	FeaturesUsed []string  `json:"features_used"`
	ModelFile    string    `json:"model_file"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// RiskValidation carries the risk manager's admission verdict alongside the
// portfolio numbers it was based on.
type RiskValidation struct {
	CanTrade          bool    `json:"can_trade"`
	ValidationDetails string  `json:"validation_details"`
	RiskStatus        string  `json:"risk_status"`
	PortfolioRisk     float64 `json:"portfolio_risk"`
	CurrentDrawdown   float64 `json:"current_drawdown"`
}

// TradeParameters are the concrete order parameters computed for an admitted
// trade. When the risk manager blocks the trade, LotSize is forced to zero
// but entry/stop/target stay populated for visibility.
type TradeParameters struct {
	EntryPrice     float64         `json:"entry_price"`
	StopLoss       float64         `json:"stop_loss"`
	TakeProfit     float64         `json:"take_profit"`
	LotSize        float64         `json:"lot_size"`
	RiskValidation RiskValidation  `json:"risk_validation"`
	LotCalculation *LotCalculation `json:"lot_calculation,omitempty"`
	RiskMetrics    map[string]any  `json:"risk_metrics,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// TradeDecision is the enhanced response: legacy prediction fields plus the
// health-gated trade verdict and parameters.
type TradeDecision struct {
	Prediction
	ShouldTrade         int              `json:"should_trade"` // 0/1 for terminal-side parsing
	ConfidenceThreshold float64          `json:"confidence_threshold"`
	ModelHealth         *ModelHealth     `json:"model_health,omitempty"`
	TradeParameters     *TradeParameters `json:"trade_parameters"`
}

// DecisionEvent is published to the decisions topic and the websocket hub
// after every enhanced prediction.
type DecisionEvent struct {
	Type      string         `json:"type"` // "decision"
	Decision  *TradeDecision `json:"decision"`
	Timestamp time.Time      `json:"timestamp"`
}

// RetrainEvent announces a completed retraining run.
type RetrainEvent struct {
	Type        string    `json:"type"` // "retrain"
	ModelKey    string    `json:"model_key"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	Accuracy    float64   `json:"accuracy"`
	HealthScore int       `json:"health_score"`
	Timestamp   time.Time `json:"timestamp"`
}
