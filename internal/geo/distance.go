package geo

import "math"

const earthRadiusMeters = 6371000

// HaversineDistance returns the great-circle distance between two
// coordinates in meters. It is symmetric and zero for identical points.
func HaversineDistance(a, b Coordinate) float64 {
	lat1 := degreesToRadians(a.Lat)
	lat2 := degreesToRadians(b.Lat)
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Lerp linearly interpolates between start and end.
// Lerp(s, e, 0) == s and Lerp(s, e, 1) == e.
func Lerp(start, end, alpha float64) float64 {
	return start + alpha*(end-start)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
