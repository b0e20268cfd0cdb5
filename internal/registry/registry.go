package registry

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"TradePilot/internal/domain/models"
	"TradePilot/internal/services/ml"
	applogger "TradePilot/pkg/logger"
)

// Registry maps (direction, symbol, timeframe) keys to immutable model
// bundles loaded from a directory tree. The bundle map is swapped atomically
// on reload so concurrent readers never observe a half-populated registry.
type Registry struct {
	dir     string
	l       *applogger.Logger
	bundles atomic.Pointer[map[string]*models.ModelBundle]
}

// New creates an empty registry rooted at dir.
func New(dir string, l *applogger.Logger) *Registry {
	r := &Registry{dir: dir, l: l}
	empty := make(map[string]*models.ModelBundle)
	r.bundles.Store(&empty)
	return r
}

// Dir returns the model directory the registry watches.
func (r *Registry) Dir() string { return r.dir }

// LoadAll walks the model directory and rebuilds the bundle map. Load is
// best-effort: partial bundles are loaded and logged, not fatal; they fail
// closed later at prediction time. Returns the number of loaded bundles.
func (r *Registry) LoadAll() (int, error) {
	next := make(map[string]*models.ModelBundle)

	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.Contains(name, "_model_") || !strings.HasSuffix(name, ".json") {
			return nil
		}
		if IsBackupPath(path) {
			return nil
		}

		bundle, err := r.loadBundle(path)
		if err != nil {
			r.l.Warn("skipping unloadable model artifact",
				applogger.String("path", path), applogger.Error(err))
			return nil
		}
		next[bundle.Key.String()] = bundle
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			r.l.Warn("model directory missing", applogger.String("dir", r.dir))
			r.bundles.Store(&next)
			return 0, nil
		}
		return 0, fmt.Errorf("walk model dir: %w", err)
	}

	r.bundles.Store(&next)
	r.l.Info("model registry loaded",
		applogger.String("dir", r.dir), applogger.Int("bundles", len(next)))
	return len(next), nil
}

func (r *Registry) loadBundle(modelPath string) (*models.ModelBundle, error) {
	key, err := ParseModelPath(modelPath)
	if err != nil {
		return nil, err
	}

	model, err := ml.LoadModel(modelPath)
	if err != nil {
		return nil, err
	}

	bundle := &models.ModelBundle{
		Key:       key,
		Model:     model,
		ModelFile: modelPath,
		LoadedAt:  time.Now(),
	}

	dir := filepath.Dir(modelPath)
	sibs := SiblingNames(filepath.Base(modelPath))

	if scaler, err := ml.LoadScaler(filepath.Join(dir, sibs.Scaler)); err == nil {
		bundle.Scaler = scaler
	} else {
		r.l.Warn("bundle has no scaler, serving unscaled",
			applogger.String("key", key.String()), applogger.Error(err))
	}

	if names, err := loadFeatureNames(filepath.Join(dir, sibs.FeatureNames)); err == nil {
		bundle.FeatureNames = EnsureConsistentFeatureNames(names)
	} else {
		// No feature list means the bundle cannot serve; keep it loaded so
		// the gap shows up in listings instead of looking like a missing model.
		r.l.Warn("bundle has no feature-name artifact",
			applogger.String("key", key.String()), applogger.Error(err))
	}

	if meta, err := loadMetadata(filepath.Join(dir, sibs.Metadata)); err == nil {
		bundle.Meta = meta
	}

	return bundle, nil
}

// Get returns the bundle for an exact key.
func (r *Registry) Get(key models.ModelKey) (*models.ModelBundle, bool) {
	m := *r.bundles.Load()
	b, ok := m[key.String()]
	return b, ok
}

// Select resolves the serving bundle for a request: exact direction first,
// then the combined model, then buy, then sell. The order is fixed.
func (r *Registry) Select(symbol, timeframe string, direction models.Direction) (*models.ModelBundle, bool) {
	m := *r.bundles.Load()
	candidates := []models.Direction{direction, models.DirectionCombined, models.DirectionBuy, models.DirectionSell}
	if direction == "" {
		candidates = candidates[1:]
	}
	for _, d := range candidates {
		key := models.ModelKey{Direction: d, Symbol: symbol, Timeframe: timeframe}
		if b, ok := m[key.String()]; ok {
			return b, true
		}
	}
	return nil, false
}

// List returns all loaded bundles.
func (r *Registry) List() []*models.ModelBundle {
	m := *r.bundles.Load()
	out := make([]*models.ModelBundle, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	return out
}

// Len reports the number of loaded bundles.
func (r *Registry) Len() int {
	return len(*r.bundles.Load())
}

func loadFeatureNames(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return nil, fmt.Errorf("parse feature names: %w", err)
	}
	return names, nil
}

func loadMetadata(path string) (*models.BundleMeta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta models.BundleMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}
