// Package spatial provides great-circle distance and a ball-tree
// nearest-neighbor index over geographic coordinates.
package spatial

import "math"

// EarthRadiusM is the mean earth radius used by the spherical
// approximation. The resulting error is a few hundred meters at most at
// continental scale, far below milepost spacing.
const EarthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// points given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(a)))
}
