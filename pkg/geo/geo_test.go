package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	london := Point{Lat: 51.5074, Lng: -0.1278}
	paris := Point{Lat: 48.8566, Lng: 2.3522}

	assert.InDelta(t, 343.5, DistanceKm(london, paris), 1.0)
	assert.InDelta(t, 0, DistanceKm(london, london), 1e-9)
	assert.InDelta(t, DistanceKm(london, paris), DistanceKm(paris, london), 1e-9)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Point{Lat: 0, Lng: 0}.Validate())
	assert.NoError(t, Point{Lat: -90, Lng: 180}.Validate())
	assert.Error(t, Point{Lat: 91, Lng: 0}.Validate())
	assert.Error(t, Point{Lat: 0, Lng: -181}.Validate())
	assert.Error(t, Point{Lat: math.NaN(), Lng: 0}.Validate())
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	center := Point{Lat: 40.7128, Lng: -74.0060}
	box := BoundingBox(center, 10)

	assert.True(t, box.Contains(center))
	// ~9km north and east are inside, ~15km north is not.
	assert.True(t, box.Contains(Point{Lat: center.Lat + 0.08, Lng: center.Lng}))
	assert.True(t, box.Contains(Point{Lat: center.Lat, Lng: center.Lng + 0.1}))
	assert.False(t, box.Contains(Point{Lat: center.Lat + 0.135, Lng: center.Lng}))
}

func TestBoundingBoxAntimeridian(t *testing.T) {
	box := BoundingBox(Point{Lat: 0, Lng: 179.9}, 50)

	assert.True(t, box.CrossesAntimeridian())
	assert.True(t, box.Contains(Point{Lat: 0, Lng: -179.9}))
	assert.True(t, box.Contains(Point{Lat: 0, Lng: 179.5}))
	assert.False(t, box.Contains(Point{Lat: 0, Lng: 0}))
}

func TestBoundingBoxNearPole(t *testing.T) {
	box := BoundingBox(Point{Lat: 89.9, Lng: 10}, 100)
	assert.Equal(t, -180.0, box.MinLng)
	assert.Equal(t, 180.0, box.MaxLng)
	assert.Equal(t, 90.0, box.MaxLat)
}

func TestClampRadius(t *testing.T) {
	assert.Equal(t, 25.0, ClampRadius(0, 25))
	assert.Equal(t, 25.0, ClampRadius(-3, 25))
	assert.Equal(t, 7.5, ClampRadius(7.5, 25))
	assert.Equal(t, MaxRadiusKm, ClampRadius(10000, 25))
}
