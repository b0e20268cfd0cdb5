package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	domrepo "TradePilot/internal/domain/repository"
)

func TestRunLogRecordAndHistory(t *testing.T) {
	log, err := NewSQLiteRunLog(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	ctx := context.Background()
	runs := []*domrepo.RetrainRun{
		{ModelKey: "buy_EURUSD_PERIOD_M5", Symbol: "EURUSD", Success: true, Accuracy: 0.61, HealthScore: 90, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ModelKey: "sell_EURUSD_PERIOD_M5", Symbol: "EURUSD", Success: false, Reason: "validation accuracy below floor", CreatedAt: time.Now().Add(-time.Hour)},
		{ModelKey: "combined_GBPUSD_PERIOD_H1", Symbol: "GBPUSD", Success: true, Accuracy: 0.55, HealthScore: 75, CreatedAt: time.Now()},
	}
	for _, run := range runs {
		if err := log.Record(ctx, run); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	all, err := log.History(ctx, "", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	if all[0].Symbol != "GBPUSD" {
		t.Fatalf("newest first expected, got %s", all[0].Symbol)
	}

	eur, err := log.History(ctx, "EURUSD", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(eur) != 2 {
		t.Fatalf("symbol filter returned %d runs", len(eur))
	}

	one, err := log.History(ctx, "EURUSD", 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(one) != 1 || one[0].Success {
		t.Fatalf("limit/order wrong: %+v", one)
	}
}
