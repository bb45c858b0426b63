// Package geo implements the geospatial primitives the dispatch engine is
// built on: the Google polyline codec, great-circle distance and linear
// interpolation.
//
// The polyline format stores coordinates as ×1e5-scaled integer deltas,
// zig-zag signed, split into 5-bit chunks with a 0x20 continuation flag and
// biased by +63 into printable ASCII. Round-tripping is lossy to the
// quantization step of 1e-5 degrees per component.
package geo

import (
	"math"
	"strings"
)

// Coordinate is a geographic point in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// DecodePolyline decodes an encoded polyline into an ordered coordinate
// slice. It is a pure function of its input; an empty string decodes to nil.
func DecodePolyline(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	points := make([]Coordinate, 0, len(encoded)/4)
	index := 0
	prevLat, prevLng := 0, 0

	for index < len(encoded) {
		dLat, next := decodeSignedValue(encoded, index)
		index = next
		dLng, next := decodeSignedValue(encoded, index)
		index = next

		prevLat += dLat
		prevLng += dLng

		points = append(points, Coordinate{
			Lat: float64(prevLat) / 1e5,
			Lng: float64(prevLng) / 1e5,
		})
	}
	return points
}

// decodeSignedValue reads one zig-zag encoded delta starting at index and
// returns the delta and the index just past it.
func decodeSignedValue(encoded string, index int) (int, int) {
	shift, result := 0, 0
	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// EncodePolyline encodes an ordered coordinate slice into the polyline
// format. The delta for the first point is taken from the origin (0, 0).
func EncodePolyline(points []Coordinate) string {
	if len(points) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(points) * 4)
	prevLat, prevLng := 0, 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lng := int(math.Round(p.Lng * 1e5))

		encodeSignedValue(&sb, lat-prevLat)
		encodeSignedValue(&sb, lng-prevLng)

		prevLat, prevLng = lat, lng
	}
	return sb.String()
}

// encodeSignedValue zig-zag encodes value and appends its 5-bit chunks,
// continuation-flagged and biased by +63, to sb.
func encodeSignedValue(sb *strings.Builder, value int) {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}
	for value >= 0x20 {
		sb.WriteByte(byte((value&0x1f)|0x20) + 63)
		value >>= 5
	}
	sb.WriteByte(byte(value) + 63)
}
