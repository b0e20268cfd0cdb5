package models

import "time"

// Position is one open trade as reported by the terminal bridge.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"` // BUY or SELL
	Volume       float64   `json:"volume"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	ProfitLoss   float64   `json:"profit_loss"`
	OpenTime     time.Time `json:"open_time"`
	Comment      string    `json:"comment"`
	TickValue    float64   `json:"tick_value,omitempty"`
	TickSize     float64   `json:"tick_size,omitempty"`
}

// IsLong reports whether the position is a buy.
func (p *Position) IsLong() bool { return p.Direction == "BUY" }

// PortfolioSummary is the aggregate account view fetched from the analytics
// collaborator, with safe defaults when it is unreachable.
type PortfolioSummary struct {
	Equity         float64 `json:"equity"`
	Balance        float64 `json:"balance"`
	Margin         float64 `json:"margin"`
	FreeMargin     float64 `json:"free_margin"`
	TotalPositions int     `json:"total_positions"`
	LongPositions  int     `json:"long_positions"`
	ShortPositions int     `json:"short_positions"`
	TotalVolume    float64 `json:"total_volume"`
	AvgLotSize     float64 `json:"avg_lot_size"`
}

// DefaultPortfolioSummary is the conservative fallback used when the
// collaborator cannot be reached.
func DefaultPortfolioSummary() PortfolioSummary {
	return PortfolioSummary{Equity: 10000, Balance: 10000, FreeMargin: 10000}
}

// PortfolioSnapshot is the immutable state the risk manager evaluates
// against. It is replaced wholesale on every push, never diffed.
type PortfolioSnapshot struct {
	Balance         float64              `json:"balance"`
	Equity          float64              `json:"equity"`
	Margin          float64              `json:"margin"`
	MarginLevel     float64              `json:"margin_level"`
	Positions       []Position           `json:"positions"`
	TotalPositions  int                  `json:"total_positions"`
	LongPositions   int                  `json:"long_positions"`
	ShortPositions  int                  `json:"short_positions"`
	SymbolPositions map[string]int       `json:"symbol_positions"`
	OpenProfitLoss  float64              `json:"open_profit_loss"`
	TotalRiskPct    float64              `json:"total_risk_pct"`
	DailyLossPct    float64              `json:"daily_loss_pct"`
	CurrentDrawdown float64              `json:"current_drawdown"`
	WeeklyDrawdown  float64              `json:"weekly_drawdown"`
	UpdatedAt       time.Time            `json:"updated_at"`
	PositionRisks   map[int64]RiskAmount `json:"-"`
}

// RiskAmount is the money-at-risk estimate for a single position together
// with how trustworthy the estimate is.
type RiskAmount struct {
	Amount     float64 `json:"amount"`
	Source     string  `json:"source"` // tick_economics, no_stop_notional, notional_fallback
	LowquoteOK bool    `json:"-"`
	Capped     bool    `json:"capped"`
}

// RiskLimits are the configured ceilings the six admission gates enforce.
type RiskLimits struct {
	MaxTotalPositions     int     `json:"max_total_positions" yaml:"max_total_positions"`
	MaxDrawdownPct        float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MaxDailyLossPct       float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"`
	MaxTotalRiskPct       float64 `json:"max_total_risk_pct" yaml:"max_total_risk_pct"`
	MaxPerSymbol          int     `json:"max_per_symbol" yaml:"max_per_symbol"`
	MaxPerSymbolDirection int     `json:"max_per_symbol_direction" yaml:"max_per_symbol_direction"`
	RiskPerTradePct       float64 `json:"risk_per_trade_pct" yaml:"risk_per_trade_pct"`
	MaxRiskPerTradePct    float64 `json:"max_risk_per_trade_pct" yaml:"max_risk_per_trade_pct"`
}

// DefaultRiskLimits mirrors the terminal-side expert defaults.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxTotalPositions:     40,
		MaxDrawdownPct:        20.0,
		MaxDailyLossPct:       5.0,
		MaxTotalRiskPct:       15.0,
		MaxPerSymbol:          4,
		MaxPerSymbolDirection: 2,
		RiskPerTradePct:       1.0,
		MaxRiskPerTradePct:    1.5,
	}
}

// RiskStatusLevel classifies the portfolio's overall exposure.
type RiskStatusLevel string

const (
	RiskStatusLow     RiskStatusLevel = "LOW_RISK"
	RiskStatusMedium  RiskStatusLevel = "MEDIUM_RISK"
	RiskStatusHigh    RiskStatusLevel = "HIGH_RISK"
	RiskStatusUnknown RiskStatusLevel = "UNKNOWN"
)

// RiskStatus is the display/audit view returned by the risk endpoint.
type RiskStatus struct {
	Status    RiskStatusLevel   `json:"status"`
	Portfolio PortfolioSnapshot `json:"portfolio"`
	Limits    RiskLimits        `json:"limits"`
	Timestamp time.Time         `json:"timestamp"`
}

// TradeVerdict is the structured outcome of a trade-admission check. The
// fallback path is a visible field, not an exception.
type TradeVerdict struct {
	Allowed bool   `json:"can_trade"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// LotCalculation reports how a lot size was derived.
type LotCalculation struct {
	LotSize      float64 `json:"lot_size"`
	RiskAmount   float64 `json:"risk_amount"`
	RiskPct      float64 `json:"risk_pct"`
	StopDistance float64 `json:"stop_distance"`
	Clamped      bool    `json:"clamped"`
	Error        string  `json:"error,omitempty"`
}
