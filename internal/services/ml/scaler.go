package ml

import (
	"fmt"
	"math"
)

// StandardScaler centers and scales features to zero mean, unit variance.
// Near-constant features keep scale 1 so they pass through unchanged.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// FitScaler computes per-feature mean and standard deviation.
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("empty matrix")
	}
	nFeatures := len(X[0])
	mean := make([]float64, nFeatures)
	scale := make([]float64, nFeatures)

	for _, row := range X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("ragged matrix: %d != %d", len(row), nFeatures)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(X))
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range X {
		for j, v := range row {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] < 1e-12 {
			scale[j] = 1
		}
	}
	return &StandardScaler{Mean: mean, Scale: scale}, nil
}

// NumFeatures returns the feature count the scaler was fit on.
func (s *StandardScaler) NumFeatures() int { return len(s.Mean) }

// Transform scales one vector. A length mismatch is an explicit error; the
// serving layer decides whether to pad/truncate and retry.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler expects %d features, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out, nil
}

// TransformMatrix scales every row.
func (s *StandardScaler) TransformMatrix(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		v, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
