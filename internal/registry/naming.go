package registry

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"TradePilot/internal/domain/models"
)

// Artifact name scheme decided at write time by the retraining framework:
//
//	{direction}_model_{symbol}_PERIOD_{timeframe}.json
//	{direction}_scaler_{symbol}_PERIOD_{timeframe}.json
//	{direction}_feature_names_{symbol}_PERIOD_{timeframe}.json
//	{direction}_metadata_{symbol}_PERIOD_{timeframe}.json
//
// The parser below reads this scheme back and keeps a legacy fallback for
// artifacts produced before the scheme was fixed, where the symbol sometimes
// only appeared as a path segment.

// ArtifactSet holds the four sibling filenames of one bundle.
type ArtifactSet struct {
	Model        string
	Scaler       string
	FeatureNames string
	Metadata     string
}

// ArtifactNames renders the artifact filenames for a model key.
func ArtifactNames(key models.ModelKey) ArtifactSet {
	base := fmt.Sprintf("%s_%%s_%s_PERIOD_%s.json", key.Direction, key.Symbol, key.Timeframe)
	return ArtifactSet{
		Model:        fmt.Sprintf(base, "model"),
		Scaler:       fmt.Sprintf(base, "scaler"),
		FeatureNames: fmt.Sprintf(base, "feature_names"),
		Metadata:     fmt.Sprintf(base, "metadata"),
	}
}

// SiblingNames derives the scaler/feature-name/metadata filenames from a
// model filename by token substitution.
func SiblingNames(modelFile string) ArtifactSet {
	return ArtifactSet{
		Model:        modelFile,
		Scaler:       strings.Replace(modelFile, "_model_", "_scaler_", 1),
		FeatureNames: strings.Replace(modelFile, "_model_", "_feature_names_", 1),
		Metadata:     strings.Replace(modelFile, "_model_", "_metadata_", 1),
	}
}

// symbolToken matches a 6-7 letter instrument name, optionally suffixed with
// '+' for raw-spread variants (e.g. EURUSD+).
var symbolToken = regexp.MustCompile(`^[A-Za-z]{6,7}\+?$`)

// ParseModelPath extracts the model key from an artifact path. Filename
// parsing is authoritative; when the symbol token looks wrong, path segments
// are inspected as a legacy fallback.
func ParseModelPath(path string) (models.ModelKey, error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	head, tail, found := strings.Cut(name, "_model_")
	if !found {
		return models.ModelKey{}, fmt.Errorf("not a model artifact: %s", name)
	}
	direction := models.Direction(head)
	if !direction.IsValid() {
		return models.ModelKey{}, fmt.Errorf("unknown direction %q in %s", head, name)
	}

	symbol, timeframe, found := strings.Cut(tail, "_PERIOD_")
	if !found {
		return models.ModelKey{}, fmt.Errorf("no timeframe token in %s", name)
	}

	if !symbolToken.MatchString(symbol) {
		if fallback, ok := symbolFromPath(path); ok {
			symbol = fallback
		} else if symbol == "" {
			return models.ModelKey{}, fmt.Errorf("no symbol in %s", name)
		}
	}

	return models.ModelKey{Direction: direction, Symbol: symbol, Timeframe: timeframe}, nil
}

// symbolFromPath scans directory segments for a plausible instrument token.
func symbolFromPath(path string) (string, bool) {
	dir := filepath.Dir(path)
	segs := strings.Split(dir, string(filepath.Separator))
	for i := len(segs) - 1; i >= 0; i-- {
		if symbolToken.MatchString(segs[i]) {
			return segs[i], true
		}
	}
	return "", false
}

// IsBackupPath reports whether any path segment marks the artifact as a
// backup copy; those are never loaded.
func IsBackupPath(path string) bool {
	for _, seg := range strings.Split(path, string(filepath.Separator)) {
		if strings.Contains(strings.ToLower(seg), "backup") {
			return true
		}
	}
	return false
}
