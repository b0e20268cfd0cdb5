package models

import "time"

// PortfolioSnapshotEvent is pushed by the terminal bridge over Kafka on its
// poll cadence. Account info and positions arrive together and replace the
// tracked state wholesale.
type PortfolioSnapshotEvent struct {
	Balance        float64    `json:"balance"`
	Equity         float64    `json:"equity"`
	Margin         float64    `json:"margin"`
	WeeklyDrawdown float64    `json:"weekly_drawdown"`
	Positions      []Position `json:"positions"`
	Timestamp      time.Time  `json:"timestamp"`
}

// TradeClosedEvent is emitted when the terminal closes a trade; it becomes a
// training example for the symbol/timeframe/direction it belongs to.
type TradeClosedEvent struct {
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Direction string             `json:"direction"`
	Profit    float64            `json:"profit"`
	Features  map[string]float64 `json:"features"`
	ClosedAt  time.Time          `json:"closed_at"`
}
