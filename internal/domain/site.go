package domain

// RadarSite is one entry of the static radar site registry.
type RadarSite struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	State          string   `json:"state,omitempty"`
	County         string   `json:"county,omitempty"`
	Lat            float64  `json:"lat"`
	Lon            float64  `json:"lon"`
	ElevationFt    *float64 `json:"elevFt,omitempty"`
	UTCOffsetHours *float64 `json:"utcOffsetHours,omitempty"`
	Country        string   `json:"country,omitempty"`
	OwnerType      string   `json:"ownerType,omitempty"`
}

// Point returns the site location.
func (s RadarSite) Point() GeoPoint {
	return GeoPoint{Lat: s.Lat, Lon: s.Lon}
}

// NearestSiteResult describes the closest site to a query point.
// It is computed on demand and never cached.
type NearestSiteResult struct {
	Site       RadarSite `json:"site"`
	DistanceKm float64   `json:"distance_km"`
	DistanceMi float64   `json:"distance_mi"`
	BearingDeg float64   `json:"bearing_deg"` // [0, 360), from the query point to the site
}
