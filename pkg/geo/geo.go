// Package geo holds the proximity math behind "events near me".
package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// MaxRadiusKm caps proximity queries.
const MaxRadiusKm = 500.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Box is a latitude/longitude rectangle. When the box crosses the
// antimeridian MinLng > MaxLng.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Validate checks the coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(from, to Point) float64 {
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	deltaLat := toRadians(to.Lat - from.Lat)
	deltaLng := toRadians(to.Lng - from.Lng)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BoundingBox returns a rectangle containing every point within radiusKm
// of center. It is a prefilter: callers still check DistanceKm.
func BoundingBox(center Point, radiusKm float64) Box {
	latDelta := radiusKm / earthRadiusKm * 180 / math.Pi
	box := Box{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
	}

	// Near the poles every longitude is in range.
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.MinLng, box.MaxLng = -180, 180
		return box
	}

	lngDelta := latDelta / math.Cos(toRadians(center.Lat))
	if lngDelta >= 180 {
		box.MinLng, box.MaxLng = -180, 180
		return box
	}
	box.MinLng = center.Lng - lngDelta
	box.MaxLng = center.Lng + lngDelta
	if box.MinLng < -180 {
		box.MinLng += 360
	}
	if box.MaxLng > 180 {
		box.MaxLng -= 360
	}
	return box
}

// CrossesAntimeridian reports whether the box wraps around longitude 180.
func (b Box) CrossesAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return p.Lng >= b.MinLng || p.Lng <= b.MaxLng
	}
	return p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// ClampRadius bounds a requested radius, substituting def when unset.
func ClampRadius(radiusKm, def float64) float64 {
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		return def
	}
	return math.Min(radiusKm, MaxRadiusKm)
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
