package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/services/features"
	"TradePilot/internal/services/ml"
	applogger "TradePilot/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func trainedModel(t *testing.T) *ml.Model {
	t.Helper()
	X := make([][]float64, 60)
	y := make([]int, 60)
	for i := range X {
		label := i % 2
		v := -1.0
		if label == 1 {
			v = 1.0
		}
		X[i] = []float64{v, float64(i)}
		y[i] = label
	}
	cfg := ml.DefaultBoostConfig()
	cfg.Estimators = 5
	gb, err := ml.TrainGradientBoosting(X, y, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return &ml.Model{Type: ml.ModelTypeGradientBoosting, Boost: gb}
}

func writeBundle(t *testing.T, dir string, key models.ModelKey, names []string) {
	t.Helper()
	arts := ArtifactNames(key)
	if err := trainedModel(t).Save(filepath.Join(dir, arts.Model)); err != nil {
		t.Fatalf("save model: %v", err)
	}
	b, _ := json.Marshal(names)
	if err := os.WriteFile(filepath.Join(dir, arts.FeatureNames), b, 0o644); err != nil {
		t.Fatalf("write names: %v", err)
	}
}

func TestParseModelPath(t *testing.T) {
	key, err := ParseModelPath("/models/buy_model_EURUSD+_PERIOD_M5.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if key.Direction != models.DirectionBuy || key.Symbol != "EURUSD+" || key.Timeframe != "M5" {
		t.Fatalf("unexpected key %+v", key)
	}
	if key.String() != "buy_EURUSD+_PERIOD_M5" {
		t.Fatalf("key string %q", key.String())
	}
}

func TestParseModelPathSymbolFallbackFromPath(t *testing.T) {
	key, err := ParseModelPath("/models/GBPUSD/combined_model_x_PERIOD_H1.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if key.Symbol != "GBPUSD" {
		t.Fatalf("fallback symbol = %q, want GBPUSD", key.Symbol)
	}
}

func TestParseModelPathRejectsNonModel(t *testing.T) {
	if _, err := ParseModelPath("/models/buy_scaler_EURUSD_PERIOD_M5.json"); err == nil {
		t.Fatalf("expected error for scaler artifact")
	}
}

func TestEnsureConsistentFeatureNames(t *testing.T) {
	canonical := features.UniversalFeatureNames()

	with := append([]string{}, canonical...)
	with = append(with, features.DeprecatedADX)
	got := EnsureConsistentFeatureNames(with)
	if len(got) != len(canonical) {
		t.Fatalf("adx not stripped: %d names", len(got))
	}
	for _, n := range got {
		if n == features.DeprecatedADX {
			t.Fatalf("adx still present")
		}
	}

	short := canonical[:5]
	got = EnsureConsistentFeatureNames(short)
	if len(got) != len(canonical) {
		t.Fatalf("short list not replaced wholesale: %d", len(got))
	}

	mid := canonical[:20]
	got = EnsureConsistentFeatureNames(mid)
	if len(got) != 20 {
		t.Fatalf("valid legacy list must be left as-is, got %d", len(got))
	}
}

func TestLoadAllSkipsArchivedAndPartialBundles(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, models.ModelKey{Direction: models.DirectionBuy, Symbol: "EURUSD", Timeframe: "M5"},
		features.UniversalFeatureNames())

	// Backup copy must be ignored.
	bdir := filepath.Join(dir, "backup_2024")
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeBundle(t, bdir, models.ModelKey{Direction: models.DirectionSell, Symbol: "EURUSD", Timeframe: "M5"},
		features.UniversalFeatureNames())

	// Model with no feature names loads but cannot serve.
	arts := ArtifactNames(models.ModelKey{Direction: models.DirectionSell, Symbol: "USDJPY", Timeframe: "H1"})
	if err := trainedModel(t).Save(filepath.Join(dir, arts.Model)); err != nil {
		t.Fatalf("save: %v", err)
	}

	reg := New(dir, testLogger(t))
	n, err := reg.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d bundles, want 2 (backup skipped)", n)
	}

	b, ok := reg.Get(models.ModelKey{Direction: models.DirectionSell, Symbol: "USDJPY", Timeframe: "H1"})
	if !ok {
		t.Fatalf("partial bundle should still be listed")
	}
	if b.CanServe() {
		t.Fatalf("bundle without feature names must not be servable")
	}
}

func TestSelectFallbackOrder(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []models.Direction{models.DirectionBuy, models.DirectionSell, models.DirectionCombined} {
		writeBundle(t, dir, models.ModelKey{Direction: d, Symbol: "EURUSD", Timeframe: "M5"},
			features.UniversalFeatureNames())
	}
	reg := New(dir, testLogger(t))
	if _, err := reg.LoadAll(); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Exact direction wins.
	b, ok := reg.Select("EURUSD", "M5", models.DirectionSell)
	if !ok || b.Key.Direction != models.DirectionSell {
		t.Fatalf("exact direction not preferred: %+v", b)
	}

	// Remove the exact model; combined must win over the opposite direction.
	arts := ArtifactNames(models.ModelKey{Direction: models.DirectionSell, Symbol: "EURUSD", Timeframe: "M5"})
	if err := os.Remove(filepath.Join(dir, arts.Model)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := reg.LoadAll(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	b, ok = reg.Select("EURUSD", "M5", models.DirectionSell)
	if !ok || b.Key.Direction != models.DirectionCombined {
		t.Fatalf("combined fallback not used: %+v", b.Key)
	}

	if _, ok := reg.Select("XAUUSD", "M5", models.DirectionBuy); ok {
		t.Fatalf("unexpected bundle for unknown symbol")
	}
}
