package registry

import "TradePilot/internal/services/features"

// EnsureConsistentFeatureNames normalizes a loaded feature-name list across
// artifact generations:
//
//   - a 29-name list carrying the deprecated "adx" feature has it stripped;
//   - a list shorter than the legacy floor is considered corrupt and replaced
//     wholesale with the canonical set;
//   - anything else is trusted as-is.
//
// This is a compatibility shim for bundles written before the current
// universal set settled; newly written bundles never need it.
func EnsureConsistentFeatureNames(names []string) []string {
	if len(names) == len(features.UniversalFeatureNames())+1 {
		stripped := make([]string, 0, len(names)-1)
		removed := false
		for _, n := range names {
			if n == features.DeprecatedADX && !removed {
				removed = true
				continue
			}
			stripped = append(stripped, n)
		}
		if removed {
			return stripped
		}
		return names
	}
	if len(names) < features.LegacyFeatureFloor {
		return features.UniversalFeatureNames()
	}
	return names
}
