package pipeline

import (
	"math"

	"github.com/railsafe/milepost-linkage/internal/domain"
)

// registryKey is the exact-lookup key for the fallback path. Milepost
// values are quantized to thousandths so float parsing noise cannot
// split "12.5" and "12.500" into different keys.
type registryKey struct {
	railroad string
	milepost int64
}

func makeRegistryKey(k domain.MilepostKey) registryKey {
	return registryKey{railroad: k.Railroad, milepost: int64(math.Round(k.Milepost * 1000))}
}

// FallbackMatcher resolves residual incidents by exact
// (railroad, milepost number) lookup against the registry. Registry keys
// run through the same normalization as incident keys so both sides of
// the comparison are canonical.
type FallbackMatcher struct {
	keys      domain.KeyConfig
	byKey     map[registryKey]int // registry index, first entry wins
	mileposts []domain.MilepostRecord
}

// NewFallbackMatcher builds the key map once from the registry. Registry
// rows whose key does not normalize are unreachable on this path; rows
// excluded from the spatial index for bad coordinates remain reachable
// here when their key is usable.
func NewFallbackMatcher(registry []domain.MilepostRecord, keys domain.KeyConfig) *FallbackMatcher {
	byKey := make(map[registryKey]int, len(registry))
	for i, mp := range registry {
		k := domain.NormalizeKey(mp.Railroad, mp.Milepost, keys)
		if k.Status != domain.KeyValid {
			continue
		}
		rk := makeRegistryKey(k)
		if _, exists := byKey[rk]; !exists {
			byKey[rk] = i
		}
	}
	return &FallbackMatcher{keys: keys, byKey: byKey, mileposts: registry}
}

// KeyCount returns the number of distinct registry keys available.
func (f *FallbackMatcher) KeyCount() int { return len(f.byKey) }

// Match attempts the exact-key lookup for a residual incident. residual
// is the spatial matcher's NONE result carrying the coordinate-side
// cause; it is returned unchanged when the incident's key does not
// normalize, and with ReasonKeyNotFound when a well-formed key simply is
// not in the registry. Unmatched is the expected outcome for a
// substantial share of real-world input, not an error.
func (f *FallbackMatcher) Match(inc domain.IncidentRecord, residual domain.MatchResult) domain.MatchResult {
	key := domain.NormalizeKey(inc.Railroad, inc.Milepost, f.keys)
	if key.Status != domain.KeyValid {
		return residual
	}

	idx, ok := f.byKey[makeRegistryKey(key)]
	if !ok {
		residual.Reason = domain.ReasonKeyNotFound
		return residual
	}

	return domain.MatchResult{
		IncidentID: inc.ID,
		MilepostID: f.mileposts[idx].ID,
		Method:     domain.MethodFallback,
		Confidence: key.LowConfidence(),
	}
}
