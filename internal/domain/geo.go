package domain

import (
	"math"

	"github.com/twpayne/go-geom"
)

// GeoPoint is a WGS-84 latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within the legal coordinate ranges.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Viewport is the visible map region reported by the rendering surface.
type Viewport struct {
	Center         GeoPoint `json:"center"`
	LatitudeDelta  float64  `json:"latitude_delta"`
	LongitudeDelta float64  `json:"longitude_delta"`
}

// ViewportFromBounds derives a viewport from an XY bounding box whose X axis
// is longitude and Y axis is latitude.
func ViewportFromBounds(b *geom.Bounds) Viewport {
	if b == nil || b.IsEmpty() {
		return Viewport{}
	}
	minLon, minLat := b.Min(0), b.Min(1)
	maxLon, maxLat := b.Max(0), b.Max(1)
	return Viewport{
		Center:         GeoPoint{Lat: (minLat + maxLat) / 2, Lon: (minLon + maxLon) / 2},
		LatitudeDelta:  maxLat - minLat,
		LongitudeDelta: maxLon - minLon,
	}
}
