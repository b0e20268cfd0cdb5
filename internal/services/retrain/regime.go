package retrain

import (
	"sort"

	"TradePilot/internal/domain/models"
)

const regimeWindow = 10

// DetectRegime classifies the market conditions the training batch was
// collected under. It is advisory metadata only and never gates training.
//
// Volatility buckets are tertile-based over the batch's own volatility
// series; trend comes from the rolling mean of price change. When the raw
// columns are absent the snapshot defaults to medium/neutral.
func DetectRegime(examples []models.TrainingExample) models.RegimeSnapshot {
	snap := models.RegimeSnapshot{Volatility: "medium", Trend: "neutral", Stability: 1}

	vols := column(examples, "volatility")
	changes := column(examples, "price_change")
	if len(vols) < regimeWindow && len(changes) < regimeWindow {
		return snap
	}

	var volLabels, trendLabels []string
	if len(vols) >= regimeWindow {
		lo, hi := tertiles(vols)
		for _, w := range rollingMeans(vols, regimeWindow) {
			volLabels = append(volLabels, volBucket(w, lo, hi))
		}
		snap.Volatility = volLabels[len(volLabels)-1]
	}
	if len(changes) >= regimeWindow {
		for _, w := range rollingMeans(changes, regimeWindow) {
			trendLabels = append(trendLabels, trendBucket(w))
		}
		snap.Trend = trendLabels[len(trendLabels)-1]
	}

	transitions := countTransitions(volLabels) + countTransitions(trendLabels)
	steps := max(len(volLabels), len(trendLabels))
	snap.Transitions = transitions
	if steps > 1 {
		stability := 1 - float64(transitions)/float64(2*(steps-1))
		if stability < 0 {
			stability = 0
		}
		snap.Stability = stability
	}
	return snap
}

func column(examples []models.TrainingExample, name string) []float64 {
	var out []float64
	for i := range examples {
		if v, ok := examples[i].Features[name]; ok {
			out = append(out, v)
		}
	}
	return out
}

func tertiles(vals []float64) (lo, hi float64) {
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)
	lo = sorted[len(sorted)/3]
	hi = sorted[2*len(sorted)/3]
	return lo, hi
}

func volBucket(v, lo, hi float64) string {
	switch {
	case v < lo:
		return "low"
	case v > hi:
		return "high"
	default:
		return "medium"
	}
}

func trendBucket(meanChange float64) string {
	const eps = 1e-4
	switch {
	case meanChange > eps:
		return "bullish"
	case meanChange < -eps:
		return "bearish"
	default:
		return "neutral"
	}
}

func rollingMeans(vals []float64, window int) []float64 {
	if len(vals) < window {
		return nil
	}
	out := make([]float64, 0, len(vals)-window+1)
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= window {
			sum -= vals[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

func countTransitions(labels []string) int {
	n := 0
	for i := 1; i < len(labels); i++ {
		if labels[i] != labels[i-1] {
			n++
		}
	}
	return n
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
