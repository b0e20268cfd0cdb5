package ml

import "sort"

// TreeNode is one node of a regression tree. Leaf nodes carry Value; split
// nodes carry Feature/Threshold and child indexes into the flat node slice.
type TreeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Leaf      bool    `json:"leaf"`
}

// RegressionTree is a flat-array decision tree fit to gradient residuals.
type RegressionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Predict returns the leaf value for one sample.
func (t *RegressionTree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if n.Feature < len(x) && x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// fitTree grows a regression tree on (X, residuals) restricted to idx, with
// Newton-step leaf values computed from hessians. splitGain records per-feature
// squared-error improvement for importance accounting.
func fitTree(X [][]float64, grad, hess []float64, idx []int, p treeParams, splitGain []float64) *RegressionTree {
	t := &RegressionTree{}
	t.grow(X, grad, hess, idx, 0, p, splitGain)
	return t
}

func (t *RegressionTree) grow(X [][]float64, grad, hess []float64, idx []int, depth int, p treeParams, splitGain []float64) int {
	nodeID := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Leaf: true})

	if depth >= p.maxDepth || len(idx) < p.minSamplesSplit {
		t.Nodes[nodeID].Value = newtonLeaf(grad, hess, idx)
		return nodeID
	}

	feat, thresh, gain, left, right := bestSplit(X, grad, idx, p.minSamplesLeaf)
	if feat < 0 {
		t.Nodes[nodeID].Value = newtonLeaf(grad, hess, idx)
		return nodeID
	}
	if splitGain != nil && feat < len(splitGain) {
		splitGain[feat] += gain
	}

	l := t.grow(X, grad, hess, left, depth+1, p, splitGain)
	r := t.grow(X, grad, hess, right, depth+1, p, splitGain)
	t.Nodes[nodeID] = TreeNode{Feature: feat, Threshold: thresh, Left: l, Right: r}
	return nodeID
}

// newtonLeaf computes the one-step Newton value sum(g)/sum(h), clipped to
// keep a single leaf from dominating the ensemble.
func newtonLeaf(grad, hess []float64, idx []int) float64 {
	var g, h float64
	for _, i := range idx {
		g += grad[i]
		h += hess[i]
	}
	if h < 1e-9 {
		return 0
	}
	v := g / h
	const clip = 4.0
	if v > clip {
		v = clip
	} else if v < -clip {
		v = -clip
	}
	return v
}

// bestSplit scans every feature for the squared-error-optimal threshold.
// Returns feature -1 when no split satisfies the leaf minimum.
func bestSplit(X [][]float64, grad []float64, idx []int, minLeaf int) (int, float64, float64, []int, []int) {
	if len(idx) < 2*minLeaf {
		return -1, 0, 0, nil, nil
	}
	nFeatures := len(X[0])

	var total, totalSq float64
	for _, i := range idx {
		total += grad[i]
		totalSq += grad[i] * grad[i]
	}
	n := float64(len(idx))
	baseImpurity := totalSq - total*total/n

	bestFeat := -1
	var bestThresh, bestGain float64

	order := make([]int, len(idx))
	for f := 0; f < nFeatures; f++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool { return X[order[a]][f] < X[order[b]][f] })

		var leftSum, leftSq float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			g := grad[i]
			leftSum += g
			leftSq += g * g

			if pos+1 < minLeaf || len(order)-pos-1 < minLeaf {
				continue
			}
			cur, next := X[i][f], X[order[pos+1]][f]
			if cur == next {
				continue
			}

			nl := float64(pos + 1)
			nr := n - nl
			rightSum := total - leftSum
			rightSq := totalSq - leftSq
			impurity := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			gain := baseImpurity - impurity
			if gain > bestGain {
				bestGain = gain
				bestFeat = f
				bestThresh = (cur + next) / 2
			}
		}
	}

	if bestFeat < 0 {
		return -1, 0, 0, nil, nil
	}

	var left, right []int
	for _, i := range idx {
		if X[i][bestFeat] <= bestThresh {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < minLeaf || len(right) < minLeaf {
		return -1, 0, 0, nil, nil
	}
	return bestFeat, bestThresh, bestGain, left, right
}
