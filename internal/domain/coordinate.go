package domain

import (
	"math"
	"strconv"
	"strings"
)

// CoordStatus classifies a raw latitude/longitude pair.
type CoordStatus int

const (
	// CoordValid means both components parsed and passed range checks.
	CoordValid CoordStatus = iota
	// CoordMissing means one or both components were absent, or the pair
	// was the (0,0) never-recorded sentinel used by the source data.
	CoordMissing
	// CoordInvalid means a component was non-numeric, non-finite, or out
	// of range.
	CoordInvalid
)

// Coordinate is the normalized form of a raw lat/lon pair. Lat and Lon
// are meaningful only when Status is CoordValid.
type Coordinate struct {
	Lat    float64
	Lon    float64
	Status CoordStatus
}

// Valid reports whether the coordinate can be used for spatial matching.
func (c Coordinate) Valid() bool { return c.Status == CoordValid }

// NormalizeCoordinate validates a textual latitude/longitude pair.
// Rules: both components must parse as finite reals, latitude in
// [-90, 90], longitude in [-180, 180]. An exact (0,0) pair is treated as
// missing data, not a real location off the coast of Africa.
func NormalizeCoordinate(rawLat, rawLon string) Coordinate {
	rawLat = strings.TrimSpace(rawLat)
	rawLon = strings.TrimSpace(rawLon)
	if rawLat == "" || rawLon == "" {
		return Coordinate{Status: CoordMissing}
	}

	lat, errLat := strconv.ParseFloat(rawLat, 64)
	lon, errLon := strconv.ParseFloat(rawLon, 64)
	if errLat != nil || errLon != nil {
		return Coordinate{Status: CoordInvalid}
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Coordinate{Status: CoordInvalid}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Coordinate{Status: CoordInvalid}
	}
	if lat == 0 && lon == 0 {
		return Coordinate{Status: CoordMissing}
	}

	return Coordinate{Lat: lat, Lon: lon, Status: CoordValid}
}

// CheckCoordinate applies the same validation to an already-numeric pair,
// as found in the milepost registry.
func CheckCoordinate(lat, lon float64) Coordinate {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Coordinate{Status: CoordInvalid}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Coordinate{Status: CoordInvalid}
	}
	if lat == 0 && lon == 0 {
		return Coordinate{Status: CoordMissing}
	}
	return Coordinate{Lat: lat, Lon: lon, Status: CoordValid}
}
