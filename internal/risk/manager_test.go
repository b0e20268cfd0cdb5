package risk

import (
	"fmt"
	"testing"

	"TradePilot/internal/domain/models"
	applogger "TradePilot/pkg/logger"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewManager(models.DefaultRiskLimits(), l)
}

func position(ticket int, symbol, direction string, volume, price, stop float64) models.Position {
	return models.Position{
		Ticket:       int64(ticket),
		Symbol:       symbol,
		Direction:    direction,
		Volume:       volume,
		OpenPrice:    price,
		CurrentPrice: price,
		StopLoss:     stop,
	}
}

func TestPositionRiskNoStopCapped(t *testing.T) {
	p := position(1, "BTCUSD", "BUY", 1.0, 50000, 0)
	ra := calculatePositionRisk(&p)
	if ra.Amount != MaxPositionRiskUSD {
		t.Fatalf("no-stop risk = %.2f, want capped %.2f", ra.Amount, MaxPositionRiskUSD)
	}
	if !ra.Capped || ra.Source != "no_stop_notional" {
		t.Fatalf("expected capped no_stop_notional, got %+v", ra)
	}
}

func TestPositionRiskTickEconomics(t *testing.T) {
	p := position(2, "EURUSD", "BUY", 0.5, 1.1000, 1.0950)
	p.TickSize = 0.0001
	p.TickValue = 1.0
	ra := calculatePositionRisk(&p)
	// 0.0050 / 0.0001 * 1.0 * 0.5 = 25
	if ra.Amount < 24.9 || ra.Amount > 25.1 {
		t.Fatalf("tick-economics risk = %.2f, want 25", ra.Amount)
	}
	if ra.Source != "tick_economics" || ra.Capped {
		t.Fatalf("unexpected risk detail %+v", ra)
	}
}

func TestPositionRiskNotionalFallback(t *testing.T) {
	p := position(3, "EURUSD", "SELL", 0.1, 1.1000, 1.1050)
	ra := calculatePositionRisk(&p)
	if ra.Source != "notional_fallback" {
		t.Fatalf("expected notional fallback, got %q", ra.Source)
	}
	full := p.Volume * p.CurrentPrice * ContractSize * NoStopRiskPct
	want := full * MissingTickDiscount
	if want > MaxPositionRiskUSD {
		want = MaxPositionRiskUSD
	}
	if ra.Amount != want {
		t.Fatalf("fallback risk = %.2f, want %.2f", ra.Amount, want)
	}
}

func TestLotSizeShrinksWithStopDistance(t *testing.T) {
	m := testManager(t)

	near := m.CalculateOptimalLotSize("EURUSD", 1.1000, 1.0980, 10000, 0)
	far := m.CalculateOptimalLotSize("EURUSD", 1.1000, 1.0900, 10000, 0)
	if near.Error != "" || far.Error != "" {
		t.Fatalf("unexpected errors: %q %q", near.Error, far.Error)
	}
	if near.LotSize <= far.LotSize {
		t.Fatalf("lot must shrink as stop widens: near=%.2f far=%.2f", near.LotSize, far.LotSize)
	}
	if near.RiskPct != 1.0 {
		t.Fatalf("default risk pct = %.2f, want 1.0", near.RiskPct)
	}
}

func TestLotSizeOverrideClampedToCeiling(t *testing.T) {
	m := testManager(t)
	lc := m.CalculateOptimalLotSize("EURUSD", 1.1000, 1.0950, 10000, 5.0)
	if lc.RiskPct != 1.5 {
		t.Fatalf("override not clamped: %.2f", lc.RiskPct)
	}
}

func TestLotSizeBounds(t *testing.T) {
	m := testManager(t)

	// Tiny balance with a wide stop floors at the minimum lot.
	small := m.CalculateOptimalLotSize("EURUSD", 1.2000, 1.0000, 100, 0)
	if small.LotSize != minLotSize || !small.Clamped {
		t.Fatalf("expected floor clamp, got %+v", small)
	}

	// Huge balance with a hair-thin stop caps at the maximum.
	big := m.CalculateOptimalLotSize("EURUSD", 1.10000, 1.09999, 1e9, 0)
	if big.LotSize != maxLotSize || !big.Clamped {
		t.Fatalf("expected ceiling clamp, got %+v", big)
	}
}

func TestLotSizeZeroStopDistanceIsError(t *testing.T) {
	m := testManager(t)
	lc := m.CalculateOptimalLotSize("EURUSD", 1.1000, 1.1000, 10000, 0)
	if lc.Error == "" {
		t.Fatalf("expected structured error for zero stop distance")
	}
	if lc.LotSize != 0 {
		t.Fatalf("errored calculation must not size a trade: %.2f", lc.LotSize)
	}
}

func TestAdmissionGateOrderAndReasons(t *testing.T) {
	limits := models.DefaultRiskLimits()
	limits.MaxTotalPositions = 2
	limits.MaxPerSymbol = 1
	limits.MaxPerSymbolDirection = 1
	l, _ := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	m := NewManager(limits, l)
	m.SetAccountInfo(10000, 10000, 0)

	// Gate 1: total positions.
	m.SetPositionsData([]models.Position{
		position(1, "EURUSD", "BUY", 0.01, 1.1, 1.09),
		position(2, "GBPUSD", "SELL", 0.01, 1.3, 1.31),
	})
	v := m.CanOpenNewTrade("USDJPY", 0.01, 0.5, "buy")
	if v.Allowed || v.Reason != ReasonMaxPositions {
		t.Fatalf("gate 1: %+v", v)
	}

	// Gate 3: weekly drawdown, checked before daily loss.
	m.SetPositionsData([]models.Position{position(1, "EURUSD", "BUY", 0.01, 1.1, 1.09)})
	m.SetWeeklyDrawdown(limits.MaxDrawdownPct + 1)
	v = m.CanOpenNewTrade("USDJPY", 0.01, 0.5, "buy")
	if v.Allowed || v.Reason != ReasonWeeklyDrawdown {
		t.Fatalf("gate 3: %+v", v)
	}
	m.SetWeeklyDrawdown(0)

	// Gate 5: total risk including the candidate trade.
	v = m.CanOpenNewTrade("USDJPY", 100, 1.0, "buy")
	if v.Allowed || v.Reason != ReasonTotalRisk {
		t.Fatalf("gate 5: %+v", v)
	}

	// Gate 6: per-symbol limit.
	v = m.CanOpenNewTrade("EURUSD", 0.01, 0.001, "sell")
	if v.Allowed || v.Reason != ReasonSymbolLimit {
		t.Fatalf("gate 6: %+v", v)
	}

	// Gate 7: per-symbol same-direction limit.
	m2 := NewManager(models.DefaultRiskLimits(), l)
	m2.SetAccountInfo(10000, 10000, 0)
	m2.SetPositionsData([]models.Position{
		position(1, "EURUSD", "BUY", 0.01, 1.1, 1.09),
		position(2, "EURUSD", "BUY", 0.01, 1.1, 1.09),
	})
	v = m2.CanOpenNewTrade("EURUSD", 0.01, 0.001, "BUY")
	if v.Allowed || v.Reason != ReasonSymbolDirectional {
		t.Fatalf("gate 7: %+v", v)
	}
	// Opposite direction on the same symbol is still fine.
	v = m2.CanOpenNewTrade("EURUSD", 0.01, 0.001, "SELL")
	if !v.Allowed {
		t.Fatalf("opposite direction wrongly blocked: %+v", v)
	}
}

func TestDailyLossGate(t *testing.T) {
	m := testManager(t)
	m.SetAccountInfo(10000, 10000, 0)
	// Equity collapse past the daily-loss ceiling.
	m.SetAccountInfo(10000, 9400, 0)
	v := m.CanOpenNewTrade("EURUSD", 0.01, 0.001, "buy")
	if v.Allowed || v.Reason != ReasonDailyLoss {
		t.Fatalf("daily loss gate: %+v", v)
	}
}

func TestDrawdownScalesAggregateRisk(t *testing.T) {
	m := testManager(t)
	m.SetAccountInfo(10000, 10000, 0)

	pos := position(1, "EURUSD", "BUY", 0.1, 1.1, 1.09)
	pos.TickSize = 0.0001
	pos.TickValue = 1.0

	m.SetPositionsData([]models.Position{pos})
	base := m.Snapshot().TotalRiskPct

	m.SetWeeklyDrawdown(50)
	m.SetPositionsData([]models.Position{pos})
	scaled := m.Snapshot().TotalRiskPct

	want := base * 2 // 1 + 2*0.5
	if diff := scaled - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("50%% drawdown multiplier: got %.4f want %.4f", scaled, want)
	}

	m.SetWeeklyDrawdown(100)
	m.SetPositionsData([]models.Position{pos})
	if got := m.Snapshot().TotalRiskPct; got > base*3+1e-9 {
		t.Fatalf("multiplier must cap at 3x: %.4f > %.4f", got, base*3)
	}
}

func TestRiskStatusLevels(t *testing.T) {
	m := testManager(t)
	m.SetAccountInfo(10000, 10000, 0)
	if s := m.GetRiskStatus(); s.Status != models.RiskStatusLow {
		t.Fatalf("fresh account status = %s", s.Status)
	}

	// Weekly drawdown at 80% of ceiling flips to HIGH.
	m.SetWeeklyDrawdown(0.8 * models.DefaultRiskLimits().MaxDrawdownPct)
	if s := m.GetRiskStatus(); s.Status != models.RiskStatusHigh {
		t.Fatalf("drawdown status = %s, want HIGH_RISK", s.Status)
	}
	m.SetWeeklyDrawdown(0)

	// Daily loss at 80% of its ceiling is MEDIUM.
	m.SetAccountInfo(10000, 10000-10000*0.8*models.DefaultRiskLimits().MaxDailyLossPct/100, 0)
	s := m.GetRiskStatus()
	if s.Status != models.RiskStatusMedium {
		t.Fatalf("daily loss status = %s, want MEDIUM_RISK", s.Status)
	}
}

func TestSnapshotWholesaleReplace(t *testing.T) {
	m := testManager(t)
	m.SetAccountInfo(10000, 10000, 0)
	m.SetPositionsData([]models.Position{
		position(1, "EURUSD", "BUY", 0.01, 1.1, 1.09),
		position(2, "EURUSD", "SELL", 0.01, 1.1, 1.11),
	})
	if got := m.Snapshot().SymbolPositions["EURUSD"]; got != 2 {
		t.Fatalf("symbol count = %d", got)
	}

	// Stale entries must not survive the replace.
	m.SetPositionsData([]models.Position{position(3, "GBPUSD", "BUY", 0.01, 1.3, 1.29)})
	snap := m.Snapshot()
	if snap.SymbolPositions["EURUSD"] != 0 || snap.SymbolPositions["GBPUSD"] != 1 {
		t.Fatalf("wholesale replace failed: %+v", snap.SymbolPositions)
	}
	if snap.TotalPositions != 1 || snap.LongPositions != 1 || snap.ShortPositions != 0 {
		t.Fatalf("counts not recomputed: %+v", snap)
	}
}

func TestMarginLevelComputed(t *testing.T) {
	m := testManager(t)
	m.SetAccountInfo(10000, 9000, 3000)
	if got := m.Snapshot().MarginLevel; got != 300 {
		t.Fatalf("margin level = %.2f, want 300", got)
	}
}

func TestManyPositionsStayUnderCap(t *testing.T) {
	m := testManager(t)
	m.SetAccountInfo(1000000, 1000000, 0)
	var positions []models.Position
	for i := 0; i < 10; i++ {
		positions = append(positions, position(i+1, fmt.Sprintf("SYM%d", i), "BUY", 1.0, 50000, 0))
	}
	m.SetPositionsData(positions)
	snap := m.Snapshot()
	for ticket, ra := range snap.PositionRisks {
		if ra.Amount > MaxPositionRiskUSD {
			t.Fatalf("ticket %d risk %.2f exceeds cap", ticket, ra.Amount)
		}
	}
	if snap.TotalRiskPct <= 0 {
		t.Fatalf("aggregate risk not computed")
	}
}
