package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// BoostConfig holds the gradient-boosting hyperparameters. The defaults are
// fixed for behavioral parity across retrains; do not tune them per symbol.
type BoostConfig struct {
	Estimators      int     `json:"n_estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	Subsample       float64 `json:"subsample"`
	Seed            int64   `json:"random_state"`
}

// DefaultBoostConfig returns the production hyperparameter set.
func DefaultBoostConfig() BoostConfig {
	return BoostConfig{
		Estimators:      100,
		LearningRate:    0.1,
		MaxDepth:        6,
		MinSamplesSplit: 20,
		MinSamplesLeaf:  10,
		Subsample:       0.8,
		Seed:            42,
	}
}

// GradientBoosting is a binary classifier trained with logistic loss.
type GradientBoosting struct {
	Config      BoostConfig       `json:"config"`
	InitScore   float64           `json:"init_score"`
	Trees       []*RegressionTree `json:"trees"`
	NumFeatures int               `json:"num_features"`
	Importance  []float64         `json:"importance,omitempty"`
}

// TrainGradientBoosting fits a fresh ensemble on X, y (y in {0,1}).
func TrainGradientBoosting(X [][]float64, y []int, cfg BoostConfig) (*GradientBoosting, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("training set shape mismatch: %d samples, %d labels", len(X), len(y))
	}
	nFeatures := len(X[0])
	for i, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("ragged feature matrix at row %d: %d != %d", i, len(row), nFeatures)
		}
	}

	pos := 0
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return nil, fmt.Errorf("single-class training set: %d positives of %d", pos, len(y))
	}

	p := float64(pos) / float64(len(y))
	gb := &GradientBoosting{
		Config:      cfg,
		InitScore:   math.Log(p / (1 - p)),
		NumFeatures: nFeatures,
		Importance:  make([]float64, nFeatures),
	}

	n := len(X)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = gb.InitScore
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	rng := rand.New(rand.NewSource(cfg.Seed))
	params := treeParams{
		maxDepth:        cfg.MaxDepth,
		minSamplesSplit: cfg.MinSamplesSplit,
		minSamplesLeaf:  cfg.MinSamplesLeaf,
	}

	for m := 0; m < cfg.Estimators; m++ {
		for i := 0; i < n; i++ {
			prob := sigmoid(scores[i])
			grad[i] = float64(y[i]) - prob
			hess[i] = prob * (1 - prob)
		}

		idx := subsampleIndices(n, cfg.Subsample, rng)
		tree := fitTree(X, grad, hess, idx, params, gb.Importance)
		gb.Trees = append(gb.Trees, tree)

		for i := 0; i < n; i++ {
			scores[i] += cfg.LearningRate * tree.Predict(X[i])
		}
	}

	normalizeImportance(gb.Importance)
	return gb, nil
}

// PredictProba returns P(label=1) for one feature vector.
func (gb *GradientBoosting) PredictProba(x []float64) float64 {
	score := gb.InitScore
	for _, t := range gb.Trees {
		score += gb.Config.LearningRate * t.Predict(x)
	}
	return sigmoid(score)
}

// RawScore returns the pre-sigmoid margin, used by calibrators.
func (gb *GradientBoosting) RawScore(x []float64) float64 {
	score := gb.InitScore
	for _, t := range gb.Trees {
		score += gb.Config.LearningRate * t.Predict(x)
	}
	return score
}

func subsampleIndices(n int, frac float64, rng *rand.Rand) []int {
	if frac >= 1 || frac <= 0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	k := int(frac * float64(n))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	return perm
}

func normalizeImportance(imp []float64) {
	var sum float64
	for _, v := range imp {
		sum += v
	}
	if sum <= 0 {
		return
	}
	for i := range imp {
		imp[i] /= sum
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
