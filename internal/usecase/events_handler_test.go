package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/risk"
)

type fakeStore struct {
	appended []*models.TrainingExample
	batch    [][]*models.TrainingExample
}

func (f *fakeStore) Init(context.Context) error { return nil }

func (f *fakeStore) Append(_ context.Context, ex *models.TrainingExample) error {
	f.appended = append(f.appended, ex)
	return nil
}

func (f *fakeStore) AppendBatch(_ context.Context, exs []*models.TrainingExample) error {
	f.batch = append(f.batch, exs)
	return nil
}

func (f *fakeStore) GetTrainingExamples(context.Context, string, string, string, int) ([]models.TrainingExample, error) {
	return nil, nil
}

func (f *fakeStore) Health(context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

func TestPortfolioSnapshotHandlerAppliesState(t *testing.T) {
	l := testLogger(t)
	mgr := risk.NewManager(models.DefaultRiskLimits(), l)
	h := NewPortfolioSnapshotHandler("tradepilot.portfolio", mgr, l)

	if h.Topic() != "tradepilot.portfolio" {
		t.Fatalf("topic %q", h.Topic())
	}

	ev := models.PortfolioSnapshotEvent{
		Balance:        10000,
		Equity:         9800,
		Margin:         500,
		WeeklyDrawdown: 2.5,
		Positions: []models.Position{{
			Ticket: 7, Symbol: "EURUSD", Direction: "BUY", Volume: 0.1,
			OpenPrice: 1.1, CurrentPrice: 1.1, StopLoss: 1.09,
			OpenTime: time.Now(),
		}},
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(ev)
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("handle: %v", err)
	}

	snap := mgr.Snapshot()
	if snap.Balance != 10000 || snap.Equity != 9800 {
		t.Fatalf("account not applied: %+v", snap)
	}
	if snap.TotalPositions != 1 || snap.SymbolPositions["EURUSD"] != 1 {
		t.Fatalf("positions not applied: %+v", snap)
	}
	if mgr.GetWeeklyDrawdown() != 2.5 {
		t.Fatalf("weekly drawdown %v", mgr.GetWeeklyDrawdown())
	}
}

func TestPortfolioSnapshotHandlerRejectsBadPayload(t *testing.T) {
	l := testLogger(t)
	mgr := risk.NewManager(models.DefaultRiskLimits(), l)
	h := NewPortfolioSnapshotHandler("t", mgr, l)

	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := h.Handle(context.Background(), []byte(`{"balance":0}`)); err == nil {
		t.Fatalf("expected rejection of zero balance")
	}
}

func TestTradeClosedHandlerStoresLabeledExample(t *testing.T) {
	l := testLogger(t)
	store := &fakeStore{}
	h := NewTradeClosedHandler("tradepilot.trades.closed", store, l)

	ev := models.TradeClosedEvent{
		Symbol:    "EURUSD",
		Timeframe: "M5",
		Direction: "buy",
		Profit:    12.5,
		Features:  map[string]float64{"rsi": 41, "atr": 0.0012},
		ClosedAt:  time.Now(),
	}
	data, _ := json.Marshal(ev)
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(store.appended) != 1 {
		t.Fatalf("appended %d examples", len(store.appended))
	}
	ex := store.appended[0]
	if ex.Label != 1 {
		t.Fatalf("profitable trade label %d", ex.Label)
	}
	if ex.Symbol != "EURUSD" || ex.Timeframe != "M5" {
		t.Fatalf("identity not carried: %+v", ex)
	}

	// Losing trade gets the zero label.
	ev.Profit = -4
	data, _ = json.Marshal(ev)
	if err := h.Handle(context.Background(), data); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.appended[1].Label != 0 {
		t.Fatalf("losing trade label %d", store.appended[1].Label)
	}
}

func TestTradeClosedHandlerRejectsIncompleteEvents(t *testing.T) {
	l := testLogger(t)
	store := &fakeStore{}
	h := NewTradeClosedHandler("t", store, l)

	if err := h.Handle(context.Background(), []byte(`{"symbol":"","features":{}}`)); err == nil {
		t.Fatalf("expected rejection without symbol and features")
	}
	if len(store.appended) != 0 {
		t.Fatalf("nothing should be stored")
	}
}
