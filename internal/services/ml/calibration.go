package ml

import (
	"fmt"
	"math"
	"sort"
)

// Calibration methods.
const (
	CalibrationIsotonic = "isotonic"
	CalibrationSigmoid  = "sigmoid"
)

// Calibrator maps raw predicted probabilities to calibrated ones.
type Calibrator struct {
	Method string `json:"method"`
	// Sigmoid (Platt) parameters over the raw margin.
	A float64 `json:"a,omitempty"`
	B float64 `json:"b,omitempty"`
	// Isotonic step function over raw probabilities.
	X []float64 `json:"x,omitempty"`
	Y []float64 `json:"y,omitempty"`
}

// Apply maps one raw probability through the calibrator.
func (c *Calibrator) Apply(rawProb float64) float64 {
	switch c.Method {
	case CalibrationSigmoid:
		margin := logit(rawProb)
		return 1 / (1 + math.Exp(c.A*margin+c.B))
	case CalibrationIsotonic:
		return c.isotonicLookup(rawProb)
	default:
		return rawProb
	}
}

func (c *Calibrator) isotonicLookup(p float64) float64 {
	if len(c.X) == 0 {
		return p
	}
	i := sort.SearchFloat64s(c.X, p)
	if i == 0 {
		return c.Y[0]
	}
	if i >= len(c.X) {
		return c.Y[len(c.Y)-1]
	}
	// Linear interpolation between step points.
	x0, x1 := c.X[i-1], c.X[i]
	y0, y1 := c.Y[i-1], c.Y[i]
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(p-x0)/(x1-x0)
}

// FitCalibrator fits a calibrator on out-of-fold raw probabilities and
// labels. method selects isotonic (pool-adjacent-violators) or sigmoid
// (Platt scaling via Newton iterations).
func FitCalibrator(method string, rawProbs []float64, y []int) (*Calibrator, error) {
	if len(rawProbs) != len(y) || len(rawProbs) < 4 {
		return nil, fmt.Errorf("calibration needs matched samples, got %d/%d", len(rawProbs), len(y))
	}
	switch method {
	case CalibrationIsotonic:
		return fitIsotonic(rawProbs, y)
	case CalibrationSigmoid:
		return fitSigmoid(rawProbs, y)
	default:
		return nil, fmt.Errorf("unknown calibration method %q", method)
	}
}

// fitIsotonic runs pool-adjacent-violators over (prob, label) pairs.
func fitIsotonic(probs []float64, y []int) (*Calibrator, error) {
	type pair struct {
		x float64
		y float64
	}
	pairs := make([]pair, len(probs))
	for i := range probs {
		pairs[i] = pair{x: probs[i], y: float64(y[i])}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].x < pairs[b].x })

	// Each block holds a pooled mean and weight.
	xs := make([]float64, 0, len(pairs))
	ys := make([]float64, 0, len(pairs))
	ws := make([]float64, 0, len(pairs))
	for _, p := range pairs {
		xs = append(xs, p.x)
		ys = append(ys, p.y)
		ws = append(ws, 1)
		for len(ys) > 1 && ys[len(ys)-2] > ys[len(ys)-1] {
			n := len(ys)
			w := ws[n-2] + ws[n-1]
			merged := (ys[n-2]*ws[n-2] + ys[n-1]*ws[n-1]) / w
			ys[n-2] = merged
			ws[n-2] = w
			xs[n-2] = xs[n-1] // block boundary at the right edge
			xs = xs[:n-1]
			ys = ys[:n-1]
			ws = ws[:n-1]
		}
	}
	return &Calibrator{Method: CalibrationIsotonic, X: xs, Y: ys}, nil
}

// fitSigmoid runs Platt scaling with Newton's method on the margin.
func fitSigmoid(probs []float64, y []int) (*Calibrator, error) {
	margins := make([]float64, len(probs))
	for i, p := range probs {
		margins[i] = logit(p)
	}

	// Target values with Platt's prior correction.
	var n1, n0 float64
	for _, v := range y {
		if v == 1 {
			n1++
		} else {
			n0++
		}
	}
	hiTarget := (n1 + 1) / (n1 + 2)
	loTarget := 1 / (n0 + 2)
	t := make([]float64, len(y))
	for i, v := range y {
		if v == 1 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	a, b := 0.0, math.Log((n0+1)/(n1+1))
	for iter := 0; iter < 100; iter++ {
		var g1, g2, h11, h22, h12 float64
		for i, m := range margins {
			fApB := a*m + b
			var p float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
			}
			d1 := t[i] - p
			d2 := p * (1 - p)
			g1 += m * d1
			g2 += d1
			h11 += m * m * d2
			h22 += d2
			h12 += m * d2
		}
		if math.Abs(g1) < 1e-7 && math.Abs(g2) < 1e-7 {
			break
		}
		det := h11*h22 - h12*h12
		if math.Abs(det) < 1e-12 {
			break
		}
		a -= (h22*g1 - h12*g2) / det
		b -= (h11*g2 - h12*g1) / det
	}
	// Platt parameterization: p = 1/(1+exp(A*m+B)) with A expected negative.
	return &Calibrator{Method: CalibrationSigmoid, A: a, B: b}, nil
}

func logit(p float64) float64 {
	const eps = 1e-7
	if p < eps {
		p = eps
	} else if p > 1-eps {
		p = 1 - eps
	}
	return math.Log(p / (1 - p))
}
