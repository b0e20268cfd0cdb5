package ml

import (
	"math"
	"math/rand"
	"testing"
)

// separableSet builds a toy set where feature 0 fully determines the label
// and feature 1 is noise.
func separableSet(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		label := i % 2
		shift := -1.0
		if label == 1 {
			shift = 1.0
		}
		X[i] = []float64{shift + rng.NormFloat64()*0.2, rng.NormFloat64()}
		y[i] = label
	}
	return X, y
}

func TestGradientBoostingLearnsSeparableData(t *testing.T) {
	X, y := separableSet(200, 1)
	gb, err := TrainGradientBoosting(X, y, DefaultBoostConfig())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	probs := make([]float64, len(X))
	for i := range X {
		probs[i] = gb.PredictProba(X[i])
	}
	if acc := Accuracy(probs, y); acc < 0.95 {
		t.Fatalf("accuracy %v too low for separable data", acc)
	}
	if auc := AUC(probs, y); auc < 0.95 {
		t.Fatalf("auc %v too low for separable data", auc)
	}
}

func TestGradientBoostingRejectsSingleClass(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	y := []int{1, 1, 1}
	if _, err := TrainGradientBoosting(X, y, DefaultBoostConfig()); err == nil {
		t.Fatalf("expected single-class error")
	}
}

func TestGradientBoostingDeterministicForFixedSeed(t *testing.T) {
	X, y := separableSet(120, 7)
	a, err := TrainGradientBoosting(X, y, DefaultBoostConfig())
	if err != nil {
		t.Fatalf("train a: %v", err)
	}
	b, err := TrainGradientBoosting(X, y, DefaultBoostConfig())
	if err != nil {
		t.Fatalf("train b: %v", err)
	}
	probe := []float64{0.4, -0.1}
	if a.PredictProba(probe) != b.PredictProba(probe) {
		t.Fatalf("same seed produced different models")
	}
}

func TestConfidenceRescaling(t *testing.T) {
	cases := []struct{ p, want float64 }{
		{0.5, 0}, {0.0, 1}, {1.0, 1}, {0.75, 0.5}, {0.25, 0.5},
	}
	for _, c := range cases {
		if got := Confidence(c.p); math.Abs(got-c.want) > 1e-12 {
			t.Fatalf("Confidence(%v) = %v, want %v", c.p, got, c.want)
		}
	}
	for p := 0.0; p <= 1.0; p += 0.01 {
		c := Confidence(p)
		if c < 0 || c > 1 {
			t.Fatalf("confidence out of range at p=%v: %v", p, c)
		}
	}
}

func TestAUCNeutralForSingleClass(t *testing.T) {
	if got := AUC([]float64{0.2, 0.9}, []int{1, 1}); got != 0.5 {
		t.Fatalf("single-class AUC = %v, want 0.5", got)
	}
}

func TestScalerTransform(t *testing.T) {
	X := [][]float64{{1, 10}, {3, 10}, {5, 10}}
	s, err := FitScaler(X)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	v, err := s.Transform([]float64{3, 10})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if math.Abs(v[0]) > 1e-9 {
		t.Fatalf("mean value should scale to 0, got %v", v[0])
	}
	// Constant column passes through centered but unscaled.
	if math.Abs(v[1]) > 1e-9 {
		t.Fatalf("constant column should center to 0, got %v", v[1])
	}
	if _, err := s.Transform([]float64{1}); err == nil {
		t.Fatalf("expected feature-count mismatch error")
	}
}

func TestIsotonicCalibratorMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	probs := make([]float64, 300)
	y := make([]int, 300)
	for i := range probs {
		probs[i] = rng.Float64()
		if rng.Float64() < probs[i] {
			y[i] = 1
		}
	}
	cal, err := FitCalibrator(CalibrationIsotonic, probs, y)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	prev := -1.0
	for p := 0.0; p <= 1.0; p += 0.05 {
		v := cal.Apply(p)
		if v < prev-1e-9 {
			t.Fatalf("isotonic output not monotone at %v: %v < %v", p, v, prev)
		}
		prev = v
	}
}

func TestSigmoidCalibratorDirection(t *testing.T) {
	// Overconfident raw probabilities around the right answer.
	probs := []float64{0.95, 0.9, 0.92, 0.88, 0.1, 0.08, 0.12, 0.05, 0.6, 0.4, 0.55, 0.45}
	y := []int{1, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0}
	cal, err := FitCalibrator(CalibrationSigmoid, probs, y)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if cal.Apply(0.9) <= cal.Apply(0.1) {
		t.Fatalf("sigmoid calibration inverted ordering")
	}
}

func TestSelectFeaturesKeepsInformativeColumn(t *testing.T) {
	X, y := separableSet(200, 5)
	for _, method := range []string{SelectMutualInfo, SelectFStat, SelectRFE} {
		cols, err := SelectFeatures(method, X, y, 1)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		if len(cols) != 1 || cols[0] != 0 {
			t.Fatalf("%s kept %v, want [0]", method, cols)
		}
	}
}

func TestHealthSignals(t *testing.T) {
	// High-confidence predictions wrong, low-confidence right: inversion.
	probs := []float64{0.95, 0.9, 0.05, 0.52, 0.48, 0.55}
	y := []int{0, 0, 1, 1, 0, 1}
	if !ConfidenceInverted(probs, y) {
		t.Fatalf("expected inversion flag")
	}
	// High-confidence predictions right: no inversion.
	probs = []float64{0.95, 0.9, 0.05, 0.52, 0.48}
	y = []int{1, 1, 0, 0, 1}
	if ConfidenceInverted(probs, y) {
		t.Fatalf("unexpected inversion flag")
	}
}
