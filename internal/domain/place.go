package domain

import "context"

// GeocodingResult is the place a reverse geocoder found for a point.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Label is the short place name, or the full address when the provider
// returned no short name.
func (r GeocodingResult) Label() string {
	if r.PlaceName != "" {
		return r.PlaceName
	}
	return r.FormattedAddress
}

// ReverseGeocoder labels an anchor point with a human-readable place.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
