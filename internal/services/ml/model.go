package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelTypeGradientBoosting tags the only classifier family this stack
// currently trains.
const ModelTypeGradientBoosting = "gradient_boosting"

// Model is the serialized classifier envelope: the boosted ensemble plus an
// optional probability calibrator. It implements models.Classifier.
type Model struct {
	Type       string            `json:"type"`
	Boost      *GradientBoosting `json:"boost"`
	Calibrator *Calibrator       `json:"calibrator,omitempty"`
}

// PredictProba returns the (calibrated, when available) probability of the
// positive class.
func (m *Model) PredictProba(x []float64) float64 {
	raw := m.Boost.PredictProba(x)
	if m.Calibrator != nil {
		return clamp01(m.Calibrator.Apply(raw))
	}
	return raw
}

// Save writes the model as JSON to path.
func (m *Model) Save(path string) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// LoadModel reads a serialized model from path.
func LoadModel(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if m.Boost == nil {
		return nil, fmt.Errorf("model %s has no ensemble", path)
	}
	return &m, nil
}

// LoadScaler reads a serialized scaler from path.
func LoadScaler(path string) (*StandardScaler, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var s StandardScaler
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	return &s, nil
}

// SaveScaler writes the scaler as JSON to path.
func SaveScaler(s *StandardScaler, path string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal scaler: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
