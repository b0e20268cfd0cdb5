package features

import "testing"

func TestUniversalFeatureNamesSize(t *testing.T) {
	names := UniversalFeatureNames()
	if len(names) != 28 {
		t.Fatalf("expected 28 canonical features, got %d", len(names))
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate feature name %q", n)
		}
		seen[n] = true
	}
	if seen[DeprecatedADX] {
		t.Fatalf("deprecated feature must not be canonical")
	}
}

func TestEngineerAppliesDefaults(t *testing.T) {
	out := Engineer(map[string]float64{})
	if got := out["rsi"]; got != 50.0 {
		t.Fatalf("rsi default = %v, want 50", got)
	}
	if got := out["volatility"]; got != 0.001 {
		t.Fatalf("volatility default = %v, want 0.001", got)
	}
	if got := out["williams_r"]; got != -50.0 {
		t.Fatalf("williams_r default = %v, want -50", got)
	}
	for _, name := range UniversalFeatureNames() {
		if _, ok := out[name]; !ok {
			t.Fatalf("engineered map missing canonical feature %q", name)
		}
	}
}

func TestEngineerKeepsSuppliedValues(t *testing.T) {
	out := Engineer(map[string]float64{"rsi": 81, "macd_main": 1.5, "macd_signal": 0.5})
	if out["rsi"] != 81 {
		t.Fatalf("supplied rsi overwritten: %v", out["rsi"])
	}
	if out["macd_histogram"] != 1.0 {
		t.Fatalf("macd_histogram = %v, want 1.0", out["macd_histogram"])
	}
	if out["rsi_overbought"] != 1 {
		t.Fatalf("rsi_overbought flag not set for rsi=81")
	}
	if out["rsi_oversold"] != 0 {
		t.Fatalf("rsi_oversold set for rsi=81")
	}
}

func TestEngineerSessionFlags(t *testing.T) {
	out := Engineer(map[string]float64{"hour": 14})
	if out["session_european"] != 1 || out["session_american"] != 1 {
		t.Fatalf("hour 14 should be in both sessions: eu=%v us=%v",
			out["session_european"], out["session_american"])
	}
	out = Engineer(map[string]float64{"hour": 3})
	if out["session_european"] != 0 || out["session_american"] != 0 {
		t.Fatalf("hour 3 should be in neither session")
	}
}

func TestProjectOrdersByNameList(t *testing.T) {
	eng := Engineer(map[string]float64{"rsi": 60, "cci": 25})
	vec, err := Project(eng, []string{"cci", "rsi"})
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if vec[0] != 25 || vec[1] != 60 {
		t.Fatalf("projection order wrong: %v", vec)
	}
}

func TestProjectFailsClosedOnUnknownRequiredFeature(t *testing.T) {
	eng := Engineer(map[string]float64{})
	if _, err := Project(eng, []string{"rsi", "some_exotic_feature"}); err == nil {
		t.Fatalf("expected error for unproducible required feature")
	}
}

func TestProjectNeverFailsForRawOmission(t *testing.T) {
	// Any subset of raw inputs may be absent; Engineer must have filled them.
	eng := Engineer(nil)
	if _, err := Project(eng, UniversalFeatureNames()); err != nil {
		t.Fatalf("raw omission alone must not fail projection: %v", err)
	}
}
