package pipeline

import (
	"strings"

	"github.com/railsafe/milepost-linkage/internal/domain"
)

// Breakdowns selects the optional report dimensions.
type Breakdowns struct {
	ByRailroad bool
	ByState    bool
}

// MethodCounts is a per-dimension tally of match outcomes.
type MethodCounts struct {
	Spatial   int `json:"spatial"`
	Fallback  int `json:"fallback"`
	Unmatched int `json:"unmatched"`
}

// Summary is the aggregate match report for one reconciliation run.
type Summary struct {
	TotalIncidents  int `json:"total_incidents"`
	RegistryRecords int `json:"registry_records"`
	RegistryIndexed int `json:"registry_indexed"`

	Spatial   int `json:"spatial"`
	Fallback  int `json:"fallback"`
	Unmatched int `json:"unmatched"`

	SpatialPct  float64 `json:"spatial_pct"`
	FallbackPct float64 `json:"fallback_pct"`
	MatchedPct  float64 `json:"matched_pct"`

	// UnmatchedReasons makes unmatched volume and cause visible: a high
	// unmatched rate is expected in this domain and must not be hidden.
	UnmatchedReasons map[domain.UnmatchedReason]int `json:"unmatched_reasons,omitempty"`

	ByRailroad map[string]MethodCounts `json:"by_railroad,omitempty"`
	ByState    map[string]MethodCounts `json:"by_state,omitempty"`
}

// Accumulator tallies match results for one worker partition. Each
// worker owns its own accumulator; partitions are merged after the join,
// so no counter is ever mutated from two goroutines.
type Accumulator struct {
	dims Breakdowns

	total    int
	spatial  int
	fallback int
	reasons  map[domain.UnmatchedReason]int

	byRailroad map[string]MethodCounts
	byState    map[string]MethodCounts
}

// NewAccumulator creates an empty accumulator with the given dimensions.
func NewAccumulator(dims Breakdowns) *Accumulator {
	a := &Accumulator{
		dims:    dims,
		reasons: make(map[domain.UnmatchedReason]int),
	}
	if dims.ByRailroad {
		a.byRailroad = make(map[string]MethodCounts)
	}
	if dims.ByState {
		a.byState = make(map[string]MethodCounts)
	}
	return a
}

// Observe records one result. Pure aggregation; neither input is mutated.
func (a *Accumulator) Observe(inc domain.IncidentRecord, res domain.MatchResult) {
	a.total++
	switch res.Method {
	case domain.MethodSpatial:
		a.spatial++
	case domain.MethodFallback:
		a.fallback++
	default:
		a.reasons[res.Reason]++
	}

	if a.dims.ByRailroad {
		bump(a.byRailroad, dimensionKey(inc.Railroad), res.Method)
	}
	if a.dims.ByState {
		bump(a.byState, dimensionKey(inc.State), res.Method)
	}
}

// Merge folds another partition's counts into this one.
func (a *Accumulator) Merge(b *Accumulator) {
	a.total += b.total
	a.spatial += b.spatial
	a.fallback += b.fallback
	for reason, n := range b.reasons {
		a.reasons[reason] += n
	}
	for key, c := range b.byRailroad {
		mergeCounts(a.byRailroad, key, c)
	}
	for key, c := range b.byState {
		mergeCounts(a.byState, key, c)
	}
}

// Summary finalizes the report. Registry sizes are supplied by the
// caller since the accumulator only ever sees incidents.
func (a *Accumulator) Summary(registryRecords, registryIndexed int) Summary {
	s := Summary{
		TotalIncidents:  a.total,
		RegistryRecords: registryRecords,
		RegistryIndexed: registryIndexed,
		Spatial:         a.spatial,
		Fallback:        a.fallback,
		Unmatched:       a.total - a.spatial - a.fallback,
		ByRailroad:      a.byRailroad,
		ByState:         a.byState,
	}
	if len(a.reasons) > 0 {
		s.UnmatchedReasons = a.reasons
	}
	if a.total > 0 {
		s.SpatialPct = pct(a.spatial, a.total)
		s.FallbackPct = pct(a.fallback, a.total)
		s.MatchedPct = pct(a.spatial+a.fallback, a.total)
	}
	return s
}

func pct(part, total int) float64 {
	return float64(part) / float64(total) * 100
}

// dimensionKey folds empty and whitespace values into one bucket so the
// breakdown tables stay readable.
func dimensionKey(raw string) string {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return "UNKNOWN"
	}
	return v
}

func bump(m map[string]MethodCounts, key string, method domain.MatchMethod) {
	c := m[key]
	switch method {
	case domain.MethodSpatial:
		c.Spatial++
	case domain.MethodFallback:
		c.Fallback++
	default:
		c.Unmatched++
	}
	m[key] = c
}

func mergeCounts(m map[string]MethodCounts, key string, c MethodCounts) {
	cur := m[key]
	cur.Spatial += c.Spatial
	cur.Fallback += c.Fallback
	cur.Unmatched += c.Unmatched
	m[key] = cur
}
