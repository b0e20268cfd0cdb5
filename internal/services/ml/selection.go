package ml

import (
	"fmt"
	"math"
	"sort"
)

// Feature-selection methods.
const (
	SelectMutualInfo = "mutual_info"
	SelectFStat      = "f_stat"
	SelectRFE        = "rfe"
)

// SelectFeatures reduces the feature set to at most maxFeatures using the
// configured scoring method, returning the kept column indexes in their
// original order. Callers fall back to all features when this errors.
func SelectFeatures(method string, X [][]float64, y []int, maxFeatures int) ([]int, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	nFeatures := len(X[0])
	if maxFeatures <= 0 || maxFeatures >= nFeatures {
		return allColumns(nFeatures), nil
	}

	switch method {
	case SelectMutualInfo:
		return topKByScore(mutualInfoScores(X, y), maxFeatures), nil
	case SelectFStat:
		return topKByScore(fStatScores(X, y), maxFeatures), nil
	case SelectRFE:
		return recursiveElimination(X, y, maxFeatures)
	default:
		return nil, fmt.Errorf("unknown selection method %q", method)
	}
}

// ProjectColumns extracts the selected columns from every row.
func ProjectColumns(X [][]float64, cols []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		r := make([]float64, len(cols))
		for j, c := range cols {
			r[j] = row[c]
		}
		out[i] = r
	}
	return out
}

// mutualInfoScores estimates MI between each binned feature and the label.
func mutualInfoScores(X [][]float64, y []int) []float64 {
	const bins = 10
	n := len(X)
	nFeatures := len(X[0])
	scores := make([]float64, nFeatures)

	var py1 float64
	for _, v := range y {
		py1 += float64(v)
	}
	py1 /= float64(n)
	py := []float64{1 - py1, py1}

	for f := 0; f < nFeatures; f++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < n; i++ {
			v := X[i][f]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi <= lo {
			continue // constant feature carries no information
		}
		width := (hi - lo) / bins

		joint := make([][2]float64, bins)
		for i := 0; i < n; i++ {
			b := int((X[i][f] - lo) / width)
			if b >= bins {
				b = bins - 1
			}
			joint[b][y[i]]++
		}

		var mi float64
		for b := 0; b < bins; b++ {
			pb := (joint[b][0] + joint[b][1]) / float64(n)
			if pb == 0 {
				continue
			}
			for c := 0; c < 2; c++ {
				pbc := joint[b][c] / float64(n)
				if pbc == 0 || py[c] == 0 {
					continue
				}
				mi += pbc * math.Log(pbc/(pb*py[c]))
			}
		}
		scores[f] = mi
	}
	return scores
}

// fStatScores computes the one-way ANOVA F statistic per feature.
func fStatScores(X [][]float64, y []int) []float64 {
	n := len(X)
	nFeatures := len(X[0])
	scores := make([]float64, nFeatures)

	for f := 0; f < nFeatures; f++ {
		var sum0, sum1, sq0, sq1 float64
		var n0, n1 float64
		for i := 0; i < n; i++ {
			v := X[i][f]
			if y[i] == 1 {
				sum1 += v
				sq1 += v * v
				n1++
			} else {
				sum0 += v
				sq0 += v * v
				n0++
			}
		}
		if n0 < 2 || n1 < 2 {
			continue
		}
		m0, m1 := sum0/n0, sum1/n1
		grand := (sum0 + sum1) / (n0 + n1)
		between := n0*(m0-grand)*(m0-grand) + n1*(m1-grand)*(m1-grand)
		within := (sq0 - n0*m0*m0) + (sq1 - n1*m1*m1)
		df2 := n0 + n1 - 2
		if within < 1e-12 || df2 <= 0 {
			continue
		}
		scores[f] = between / (within / df2)
	}
	return scores
}

// recursiveElimination repeatedly fits a small forest and drops the weakest
// feature until maxFeatures remain.
func recursiveElimination(X [][]float64, y []int, maxFeatures int) ([]int, error) {
	cfg := DefaultBoostConfig()
	cfg.Estimators = 20
	cfg.MaxDepth = 3

	remaining := allColumns(len(X[0]))
	for len(remaining) > maxFeatures {
		sub := ProjectColumns(X, remaining)
		gb, err := TrainGradientBoosting(sub, y, cfg)
		if err != nil {
			return nil, fmt.Errorf("rfe fit: %w", err)
		}
		worst := 0
		for j := 1; j < len(gb.Importance); j++ {
			if gb.Importance[j] < gb.Importance[worst] {
				worst = j
			}
		}
		remaining = append(remaining[:worst], remaining[worst+1:]...)
	}
	return remaining, nil
}

func topKByScore(scores []float64, k int) []int {
	idx := allColumns(len(scores))
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	kept := idx[:k]
	sort.Ints(kept)
	return kept
}

func allColumns(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
