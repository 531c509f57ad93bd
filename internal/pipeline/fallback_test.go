package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsafe/milepost-linkage/internal/domain"
	"github.com/railsafe/milepost-linkage/internal/pipeline"
)

func keyConfig() domain.KeyConfig {
	return domain.KeyConfig{Aliases: domain.DefaultAliases(), StripSuffix: true}
}

func residualFor(id string, reason domain.UnmatchedReason) domain.MatchResult {
	return domain.MatchResult{IncidentID: id, Method: domain.MethodNone, Reason: reason}
}

func TestFallbackMatcher_ExactKeyHit(t *testing.T) {
	registry := registryFixture()
	f := pipeline.NewFallbackMatcher(registry, keyConfig())

	inc := domain.IncidentRecord{ID: "inc-1", Railroad: "CSXT", Milepost: "47"}
	res := f.Match(inc, residualFor("inc-1", domain.ReasonNoCoordinate))

	assert.Equal(t, domain.MethodFallback, res.Method)
	assert.Equal(t, registry[1].ID, res.MilepostID)
	assert.False(t, res.Confidence, "clean key needs no repair")
}

func TestFallbackMatcher_AliasSetsConfidence(t *testing.T) {
	// Lowercased alias of CSXT: the match lands but is flagged.
	registry := registryFixture()
	f := pipeline.NewFallbackMatcher(registry, keyConfig())

	inc := domain.IncidentRecord{ID: "inc-2", Railroad: "csx", Milepost: "47"}
	res := f.Match(inc, residualFor("inc-2", domain.ReasonNoCoordinate))

	require.Equal(t, domain.MethodFallback, res.Method)
	assert.Equal(t, registry[1].ID, res.MilepostID)
	assert.True(t, res.Confidence)
}

func TestFallbackMatcher_SuffixSetsConfidence(t *testing.T) {
	f := pipeline.NewFallbackMatcher(registryFixture(), keyConfig())

	inc := domain.IncidentRecord{ID: "inc-3", Railroad: "CSXT", Milepost: "12.5A"}
	res := f.Match(inc, residualFor("inc-3", domain.ReasonTooFar))

	require.Equal(t, domain.MethodFallback, res.Method)
	assert.True(t, res.Confidence)
}

func TestFallbackMatcher_KeyNotFound(t *testing.T) {
	f := pipeline.NewFallbackMatcher(registryFixture(), keyConfig())

	inc := domain.IncidentRecord{ID: "inc-4", Railroad: "CSXT", Milepost: "999.9"}
	res := f.Match(inc, residualFor("inc-4", domain.ReasonTooFar))

	assert.Equal(t, domain.MethodNone, res.Method)
	assert.Empty(t, res.MilepostID)
	assert.Equal(t, domain.ReasonKeyNotFound, res.Reason)
}

func TestFallbackMatcher_UnusableKeyKeepsResidualReason(t *testing.T) {
	f := pipeline.NewFallbackMatcher(registryFixture(), keyConfig())

	t.Run("missing key", func(t *testing.T) {
		inc := domain.IncidentRecord{ID: "inc-5"}
		res := f.Match(inc, residualFor("inc-5", domain.ReasonNoCoordinate))
		assert.Equal(t, domain.ReasonNoCoordinate, res.Reason)
	})

	t.Run("malformed milepost", func(t *testing.T) {
		inc := domain.IncidentRecord{ID: "inc-6", Railroad: "CSXT", Milepost: "twelve"}
		res := f.Match(inc, residualFor("inc-6", domain.ReasonTooFar))
		assert.Equal(t, domain.ReasonTooFar, res.Reason)
	})
}

func TestFallbackMatcher_EquivalentMilepostSpellingsShareKey(t *testing.T) {
	f := pipeline.NewFallbackMatcher(registryFixture(), keyConfig())

	for _, spelling := range []string{"47", "47.0", "47.000", " 47 "} {
		inc := domain.IncidentRecord{ID: "inc", Railroad: "CSXT", Milepost: spelling}
		res := f.Match(inc, residualFor("inc", domain.ReasonNoCoordinate))
		assert.Equal(t, domain.MethodFallback, res.Method, "spelling %q", spelling)
	}
}

func TestFallbackMatcher_RegistryWithBadCoordsStillReachable(t *testing.T) {
	// A registry row excluded from the spatial index remains reachable by
	// key.
	registry := []domain.MilepostRecord{
		{ID: "mp-nocoord", Railroad: "NS", Milepost: "88.0", Lat: 0, Lon: 0},
	}
	f := pipeline.NewFallbackMatcher(registry, keyConfig())
	require.Equal(t, 1, f.KeyCount())

	inc := domain.IncidentRecord{ID: "inc-7", Railroad: "NS", Milepost: "88"}
	res := f.Match(inc, residualFor("inc-7", domain.ReasonNoCoordinate))
	assert.Equal(t, domain.MethodFallback, res.Method)
	assert.Equal(t, "mp-nocoord", res.MilepostID)
}

func TestFallbackMatcher_RegistryAliasNormalized(t *testing.T) {
	// Registry rows reported under a historical code meet incidents
	// reported under the canonical one.
	registry := []domain.MilepostRecord{
		{ID: "mp-atsf", Railroad: "ATSF", Milepost: "210.0", Lat: 35.4676, Lon: -97.5164},
	}
	f := pipeline.NewFallbackMatcher(registry, keyConfig())

	inc := domain.IncidentRecord{ID: "inc-8", Railroad: "BNSF", Milepost: "210"}
	res := f.Match(inc, residualFor("inc-8", domain.ReasonNoCoordinate))
	assert.Equal(t, domain.MethodFallback, res.Method)
}
