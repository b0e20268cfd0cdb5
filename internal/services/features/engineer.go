package features

import (
	"fmt"
	"sort"
)

// The universal feature set. Every model bundle stores an ordered subset of
// these names; serving projects onto that subset in bundle order.
//
// Raw inputs arrive from the terminal as a sparse map. Missing raw inputs are
// filled with documented neutral defaults. Engineered features are derived
// from the (defaulted) raw inputs and must always be producible; a model that
// requires a name outside this set fails closed at prediction time.

// DeprecatedADX was carried by one generation of bundles and later removed.
// Loaders strip it from 29-name lists (see registry reconciliation).
const DeprecatedADX = "adx"

// LegacyFeatureFloor is the size of the oldest supported feature-name list.
// Lists shorter than this are considered corrupt and replaced wholesale.
const LegacyFeatureFloor = 19

// rawDefaults maps every raw input to its neutral default, applied when the
// terminal omits the field.
var rawDefaults = map[string]float64{
	"rsi":          50.0,
	"macd_main":    0.0,
	"macd_signal":  0.0,
	"stoch_main":   50.0,
	"stoch_signal": 50.0,
	"cci":          0.0,
	"williams_r":   -50.0,
	"bb_upper":     0.0,
	"bb_middle":    0.0,
	"bb_lower":     0.0,
	"atr":          0.001,
	"volatility":   0.001,
	"volume_ratio": 1.0,
	"price_change": 0.0,
	"momentum":     0.0,
	"spread":       1.0,
	"hour":         12.0,
	"day_of_week":  3.0,
	"tick_volume":  1.0,
}

// rawOrder fixes the canonical ordering of the raw inputs.
var rawOrder = []string{
	"rsi", "macd_main", "macd_signal", "stoch_main", "stoch_signal",
	"cci", "williams_r", "bb_upper", "bb_middle", "bb_lower",
	"atr", "volatility", "volume_ratio", "price_change", "momentum",
	"spread", "hour", "day_of_week", "tick_volume",
}

// engineeredOrder fixes the canonical ordering of the derived features.
var engineeredOrder = []string{
	"macd_histogram", "bb_width", "bb_position", "stoch_cross",
	"rsi_overbought", "rsi_oversold", "volatility_regime",
	"session_european", "session_american",
}

// UniversalFeatureNames returns the full 28-name canonical list in fixed
// order: raw inputs first, engineered features after.
func UniversalFeatureNames() []string {
	out := make([]string, 0, len(rawOrder)+len(engineeredOrder))
	out = append(out, rawOrder...)
	out = append(out, engineeredOrder...)
	return out
}

// RawDefault returns the documented default for a raw input name.
func RawDefault(name string) (float64, bool) {
	v, ok := rawDefaults[name]
	return v, ok
}

// Engineer expands a sparse raw feature map into the full engineered set.
// Missing raw inputs get their defaults; unknown extra keys are passed
// through untouched so model-specific extras survive projection.
func Engineer(raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(rawOrder)+len(engineeredOrder)+len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for name, def := range rawDefaults {
		if _, ok := out[name]; !ok {
			out[name] = def
		}
	}

	out["macd_histogram"] = out["macd_main"] - out["macd_signal"]
	out["stoch_cross"] = out["stoch_main"] - out["stoch_signal"]

	if mid := out["bb_middle"]; mid != 0 {
		out["bb_width"] = (out["bb_upper"] - out["bb_lower"]) / mid
	} else {
		out["bb_width"] = 0
	}
	if span := out["bb_upper"] - out["bb_lower"]; span != 0 {
		out["bb_position"] = (out["bb_middle"] - out["bb_lower"]) / span
	} else {
		out["bb_position"] = 0.5
	}

	out["rsi_overbought"] = boolFeature(out["rsi"] > 70)
	out["rsi_oversold"] = boolFeature(out["rsi"] < 30)

	if atr := out["atr"]; atr > 0 {
		out["volatility_regime"] = out["volatility"] / atr
	} else {
		out["volatility_regime"] = 1.0
	}

	hour := out["hour"]
	out["session_european"] = boolFeature(hour >= 7 && hour < 16)
	out["session_american"] = boolFeature(hour >= 13 && hour < 22)

	return out
}

// Project orders the engineered map onto the model's stored feature-name
// list. Raw-input omission never reaches this point (Engineer filled it);
// a name the model requires that cannot be produced is a hard error.
func Project(engineered map[string]float64, names []string) ([]float64, error) {
	vec := make([]float64, len(names))
	var missing []string
	for i, name := range names {
		v, ok := engineered[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		vec[i] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("required features missing after engineering: %v", missing)
	}
	return vec, nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
