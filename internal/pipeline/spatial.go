package pipeline

import (
	"github.com/railsafe/milepost-linkage/internal/domain"
	"github.com/railsafe/milepost-linkage/internal/spatial"
)

// SpatialMatcher resolves incidents against the nearest registry
// milepost by great-circle distance. Incidents whose coordinate failed
// normalization, or whose nearest milepost is beyond the threshold, pass
// through as residuals for the fallback matcher. Malformed input is
// never an error here: it was classified upstream.
type SpatialMatcher struct {
	tree       *spatial.BallTree
	mileposts  []domain.MilepostRecord
	thresholdM float64
}

// NewSpatialMatcher indexes every registry record with a valid
// coordinate. Returns spatial.ErrEmptyIndex when no record is indexable;
// the caller decides whether that is fatal.
func NewSpatialMatcher(registry []domain.MilepostRecord, thresholdM float64) (*SpatialMatcher, error) {
	points := make([]spatial.Point, 0, len(registry))
	for i, mp := range registry {
		if domain.CheckCoordinate(mp.Lat, mp.Lon).Valid() {
			points = append(points, spatial.Point{Lat: mp.Lat, Lon: mp.Lon, Ref: i})
		}
	}

	tree, err := spatial.NewBallTree(points)
	if err != nil {
		return nil, err
	}

	return &SpatialMatcher{tree: tree, mileposts: registry, thresholdM: thresholdM}, nil
}

// IndexedCount returns how many registry records made it into the index.
func (m *SpatialMatcher) IndexedCount() int { return m.tree.Size() }

// Match attempts a spatial match. The second return value is true when
// the match was accepted; otherwise the returned result is the residual
// (method NONE with the coordinate-side cause) to hand to the fallback
// matcher.
func (m *SpatialMatcher) Match(inc domain.IncidentRecord) (domain.MatchResult, bool) {
	coord := domain.NormalizeCoordinate(inc.Latitude, inc.Longitude)
	if !coord.Valid() {
		return domain.MatchResult{
			IncidentID: inc.ID,
			Method:     domain.MethodNone,
			Reason:     domain.ReasonNoCoordinate,
		}, false
	}

	nearest, dist := m.tree.Nearest(coord.Lat, coord.Lon)
	if dist > m.thresholdM {
		return domain.MatchResult{
			IncidentID: inc.ID,
			Method:     domain.MethodNone,
			Reason:     domain.ReasonTooFar,
		}, false
	}

	return domain.MatchResult{
		IncidentID: inc.ID,
		MilepostID: m.mileposts[nearest.Ref].ID,
		Method:     domain.MethodSpatial,
		DistanceM:  &dist,
	}, true
}
