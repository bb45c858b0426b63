// Package route splices the two legs of a dispatch trip (ambulance→patient,
// patient→hospital) into one continuous polyline.
package route

import (
	"math"

	"github.com/lifeline-ems/service-dispatch/internal/geo"
)

// junctionTolerance is the per-axis tolerance in degrees under which the end
// of leg A and the start of leg B count as the same waypoint.
const junctionTolerance = 1e-7

// Merge decodes both encoded legs, drops leg B's first point when it
// duplicates leg A's last point, concatenates and re-encodes. Either leg may
// be empty, in which case the other leg is returned unchanged in content.
func Merge(legA, legB string) string {
	return geo.EncodePolyline(MergePoints(geo.DecodePolyline(legA), geo.DecodePolyline(legB)))
}

// MergePoints merges two decoded legs without mutating either input slice.
func MergePoints(pointsA, pointsB []geo.Coordinate) []geo.Coordinate {
	if len(pointsA) > 0 && len(pointsB) > 0 && sameJunction(pointsA[len(pointsA)-1], pointsB[0]) {
		pointsB = pointsB[1:]
	}

	merged := make([]geo.Coordinate, 0, len(pointsA)+len(pointsB))
	merged = append(merged, pointsA...)
	merged = append(merged, pointsB...)
	return merged
}

func sameJunction(a, b geo.Coordinate) bool {
	return math.Abs(a.Lat-b.Lat) < junctionTolerance && math.Abs(a.Lng-b.Lng) < junctionTolerance
}
