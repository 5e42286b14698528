// Package geo provides great-circle primitives on a spherical Earth.
// Callers validate coordinates (domain.GeoPoint.Valid) before calling.
package geo

import (
	"math"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the haversine formula.
	EarthRadiusKm = 6371.0

	kmPerMile = 1.609344
)

// DistanceKm returns the haversine great-circle distance between a and b.
func DistanceKm(a, b domain.GeoPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// BearingDeg returns the initial bearing from a to b, normalized to [0, 360).
func BearingDeg(a, b domain.GeoPoint) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return normalizeDeg(toDegrees(math.Atan2(y, x)))
}

// KmToMiles converts kilometres to statute miles.
func KmToMiles(km float64) float64 {
	return km / kmPerMile
}

// CompassPoint returns the 16-wind compass abbreviation for a bearing,
// e.g. 0 → "N", 112.5 → "ESE".
func CompassPoint(bearing float64) string {
	points := [...]string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	idx := int(math.Floor(normalizeDeg(bearing)/22.5+0.5)) % len(points)
	return points[idx]
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
