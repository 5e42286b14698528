package geo

import (
	"testing"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/stretchr/testify/assert"
)

var (
	ktlx = domain.GeoPoint{Lat: 35.333, Lon: -97.278}
	kfws = domain.GeoPoint{Lat: 32.573, Lon: -97.303}
)

func TestDistanceKm_SamePoint(t *testing.T) {
	assert.InDelta(t, 0.0, DistanceKm(ktlx, ktlx), 1e-9)
}

func TestDistanceKm_Symmetric(t *testing.T) {
	assert.InDelta(t, DistanceKm(ktlx, kfws), DistanceKm(kfws, ktlx), 1e-9)
}

func TestDistanceKm_KnownValues(t *testing.T) {
	// 2.76 degrees of latitude along (almost) the same meridian.
	assert.InDelta(t, 306.9, DistanceKm(ktlx, kfws), 1.0)

	// A quarter of the equator.
	d := DistanceKm(domain.GeoPoint{Lat: 0, Lon: 0}, domain.GeoPoint{Lat: 0, Lon: 90})
	assert.InDelta(t, EarthRadiusKm*3.141592653589793/2, d, 1e-6)
}

func TestBearingDeg_Cardinal(t *testing.T) {
	origin := domain.GeoPoint{Lat: 0, Lon: 0}

	assert.InDelta(t, 0.0, BearingDeg(origin, domain.GeoPoint{Lat: 10, Lon: 0}), 1e-9)
	assert.InDelta(t, 90.0, BearingDeg(origin, domain.GeoPoint{Lat: 0, Lon: 10}), 1e-9)
	assert.InDelta(t, 180.0, BearingDeg(origin, domain.GeoPoint{Lat: -10, Lon: 0}), 1e-9)
	assert.InDelta(t, 270.0, BearingDeg(origin, domain.GeoPoint{Lat: 0, Lon: -10}), 1e-9)
}

func TestBearingDeg_AlwaysInRange(t *testing.T) {
	points := []domain.GeoPoint{ktlx, kfws, {Lat: -45, Lon: 170}, {Lat: 60, Lon: -170}, {Lat: 0, Lon: 0}}
	for _, a := range points {
		for _, b := range points {
			got := BearingDeg(a, b)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 360.0)
		}
	}
}

func TestKmToMiles(t *testing.T) {
	assert.InDelta(t, 62.137, KmToMiles(100), 0.001)
}

func TestCompassPoint(t *testing.T) {
	assert.Equal(t, "N", CompassPoint(0))
	assert.Equal(t, "N", CompassPoint(359))
	assert.Equal(t, "ESE", CompassPoint(112.5))
	assert.Equal(t, "S", CompassPoint(180))
	assert.Equal(t, "W", CompassPoint(-90))
}
