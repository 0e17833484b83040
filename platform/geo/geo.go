// Package geo provides coordinate types and great-circle distance math.
// This is part of the platform layer and contains no business logic.
package geo

import "math"

// earthRadiusKm is the mean Earth radius of the spherical approximation.
// Good enough for intra-city routing heuristics, not for geodetic work.
const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceKm returns the haversine great-circle distance in kilometers
// between two points. When either point is nil the distance is unknown and
// ok is false; callers must not substitute zero or infinity.
func DistanceKm(a, b *Point) (km float64, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}

	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c, true
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
