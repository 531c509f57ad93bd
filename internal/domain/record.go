package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// IncidentRecord is one reported accident/incident as loaded from the
// incident snapshot. Fields that arrive as free text stay textual here;
// the normalizers decide what is usable. The record is never mutated —
// matching output lives in a separate MatchResult.
type IncidentRecord struct {
	ID        string    `json:"id"`
	Railroad  string    `json:"railroad,omitempty"` // reporting railroad code, free text
	Milepost  string    `json:"milepost,omitempty"` // raw milepost string, may carry a suffix
	Latitude  string    `json:"latitude,omitempty"`
	Longitude string    `json:"longitude,omitempty"`
	State     string    `json:"state,omitempty"`
	Date      time.Time `json:"date,omitempty"`

	// Attributes the engine does not interpret (damage, injuries, ...),
	// carried through to the enriched output untouched.
	Extra map[string]string `json:"extra,omitempty"`
}

// MilepostRecord is one entry of the milepost infrastructure registry.
// The registry is authoritative: coordinates are expected valid, and the
// engine only range-checks them when building the spatial index.
type MilepostRecord struct {
	ID       string  `json:"id"`
	Railroad string  `json:"railroad"`
	Milepost string  `json:"milepost"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// MatchMethod identifies the strategy that produced a match.
type MatchMethod string

const (
	MethodSpatial  MatchMethod = "SPATIAL"
	MethodFallback MatchMethod = "FALLBACK"
	MethodNone     MatchMethod = "NONE"
)

// UnmatchedReason explains a MethodNone result. When the incident carried
// a well-formed key that simply was not in the registry the reason is
// ReasonKeyNotFound; otherwise the coordinate-side gap is reported.
type UnmatchedReason string

const (
	ReasonNoCoordinate UnmatchedReason = "no_coordinate"
	ReasonTooFar       UnmatchedReason = "coordinate_too_far"
	ReasonKeyNotFound  UnmatchedReason = "key_not_found"

	// ReasonIndexUnavailable appears only in the degraded mode where the
	// registry had no indexable coordinates at all, so coordinate-valid
	// incidents never got a spatial attempt.
	ReasonIndexUnavailable UnmatchedReason = "spatial_index_unavailable"
)

// MatchResult is the engine's verdict for a single incident. Exactly one
// is produced per IncidentRecord.
type MatchResult struct {
	IncidentID string      `json:"incident_id"`
	MilepostID string      `json:"matched_milepost_id,omitempty"` // empty means unmatched
	Method     MatchMethod `json:"match_method"`

	// DistanceM is set only for spatial matches and is always within the
	// configured acceptance threshold.
	DistanceM *float64 `json:"match_distance_m,omitempty"`

	// Confidence is set on fallback matches whose key needed repair:
	// railroad alias resolution, milepost suffix stripping, or an unknown
	// railroad code passed through unresolved.
	Confidence bool `json:"confidence_flag"`

	Reason      UnmatchedReason `json:"unmatched_reason,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// Matched reports whether the result points at a registry milepost.
func (r MatchResult) Matched() bool {
	return r.Method == MethodSpatial || r.Method == MethodFallback
}

// EnrichedIncident pairs an incident with its match result for the sinks.
type EnrichedIncident struct {
	Incident IncidentRecord `json:"incident"`
	Match    MatchResult    `json:"match"`
}

// MilepostID derives a deterministic registry id from a milepost's key
// fields. Deterministic ids keep reruns idempotent: the same registry
// snapshot always yields the same ids, so enriched tables from two runs
// compare equal row for row.
func MilepostID(railroad, milepost string, lat, lon float64) string {
	input := fmt.Sprintf("%s|%s|%.6f|%.6f", railroad, milepost, lat, lon)
	hash := sha256.Sum256([]byte(input))
	return "mp-" + hex.EncodeToString(hash[:8])
}
