package pipeline

import "github.com/railsafe/milepost-linkage/internal/domain"

// Dedupe enforces one result per incident id, keeping the first and
// dropping the rest. The spatial and fallback matchers operate on
// disjoint partitions by construction, so duplicates can only come from
// duplicated incident ids in the input or accidental double-processing
// upstream; collapsing to the first result keeps reruns idempotent.
// Order is preserved. A milepost staying the target of many incidents is
// normal many-to-one linkage and is untouched here.
func Dedupe(results []domain.MatchResult) []domain.MatchResult {
	seen := make(map[string]struct{}, len(results))
	out := results[:0:0]
	for _, r := range results {
		if _, dup := seen[r.IncidentID]; dup {
			continue
		}
		seen[r.IncidentID] = struct{}{}
		out = append(out, r)
	}
	return out
}
