package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"TradePilot/internal/domain/models"
	domrepo "TradePilot/internal/domain/repository"
	"TradePilot/internal/risk"
	applogger "TradePilot/pkg/logger"
)

// PortfolioSnapshotHandler consumes terminal-bridge portfolio snapshots and
// pushes them into the risk manager wholesale.
type PortfolioSnapshotHandler struct {
	topic   string
	riskMgr *risk.Manager
	l       *applogger.Logger
}

func NewPortfolioSnapshotHandler(topic string, riskMgr *risk.Manager, l *applogger.Logger) *PortfolioSnapshotHandler {
	return &PortfolioSnapshotHandler{topic: topic, riskMgr: riskMgr, l: l}
}

func (h *PortfolioSnapshotHandler) Topic() string { return h.topic }

func (h *PortfolioSnapshotHandler) Handle(_ context.Context, data []byte) error {
	var ev models.PortfolioSnapshotEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode portfolio snapshot: %w", err)
	}
	if ev.Balance <= 0 {
		return fmt.Errorf("portfolio snapshot without balance")
	}

	h.riskMgr.SetAccountInfo(ev.Balance, ev.Equity, ev.Margin)
	h.riskMgr.SetWeeklyDrawdown(ev.WeeklyDrawdown)
	h.riskMgr.SetPositionsData(ev.Positions)

	h.l.Debug("portfolio snapshot applied",
		applogger.Any("balance", ev.Balance),
		applogger.Int("positions", len(ev.Positions)))
	return nil
}

// TradeClosedHandler consumes closed-trade events and appends them to the
// training store so later retrains have labeled history to work with.
type TradeClosedHandler struct {
	topic string
	store domrepo.TrainingStore
	l     *applogger.Logger
}

func NewTradeClosedHandler(topic string, store domrepo.TrainingStore, l *applogger.Logger) *TradeClosedHandler {
	return &TradeClosedHandler{topic: topic, store: store, l: l}
}

func (h *TradeClosedHandler) Topic() string { return h.topic }

func (h *TradeClosedHandler) Handle(ctx context.Context, data []byte) error {
	var ev models.TradeClosedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode trade closed: %w", err)
	}
	if ev.Symbol == "" || len(ev.Features) == 0 {
		return fmt.Errorf("trade closed event missing symbol or features")
	}

	ex := &models.TrainingExample{
		Features:  ev.Features,
		Label:     models.LabelFromProfit(ev.Profit),
		Profit:    ev.Profit,
		ClosedAt:  ev.ClosedAt,
		Symbol:    ev.Symbol,
		Timeframe: string(domrepo.NormalizeTimeframe(ev.Timeframe)),
		Direction: ev.Direction,
	}
	if err := h.store.Append(ctx, ex); err != nil {
		return fmt.Errorf("append training example: %w", err)
	}
	h.l.Debug("training example stored",
		applogger.String("symbol", ev.Symbol),
		applogger.Any("profit", ev.Profit))
	return nil
}
