// Package selection picks the dispatch candidate for an emergency.
package selection

import (
	"github.com/lifeline-ems/service-dispatch/internal/dto"
	"github.com/lifeline-ems/service-dispatch/internal/geo"
)

// Pair couples one available ambulance with the hospital that owns it. Pairs
// exist only while a candidate set is being evaluated.
type Pair struct {
	Ambulance dto.Ambulance
	Hospital  dto.Hospital
}

// Nearest returns the pair whose ambulance is closest to the emergency by
// great-circle distance. Ties go to the earliest pair in the slice, so the
// result is deterministic for a fixed input order. Returns nil for an empty
// candidate set.
func Nearest(pairs []Pair, emergency geo.Coordinate) *Pair {
	if len(pairs) == 0 {
		return nil
	}

	best := 0
	bestDist := ambulanceDistance(pairs[0], emergency)
	for i := 1; i < len(pairs); i++ {
		if d := ambulanceDistance(pairs[i], emergency); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return &pairs[best]
}

func ambulanceDistance(p Pair, emergency geo.Coordinate) float64 {
	return geo.HaversineDistance(
		geo.Coordinate{Lat: p.Ambulance.Latitude, Lng: p.Ambulance.Longitude},
		emergency,
	)
}
