package sites

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection renders the registry as GeoJSON point features for the
// map's site markers.
func (r *Registry) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(r.sites)),
	}
	bounds := geom.NewBounds(geom.XY)
	for _, s := range r.sites {
		pt := geom.NewPointFlat(geom.XY, []float64{s.Lon, s.Lat})
		bounds.Extend(pt)

		props := map[string]interface{}{
			"name":  s.Name,
			"state": s.State,
			"owner": s.OwnerType,
		}
		if s.ElevationFt != nil {
			props["elev_ft"] = *s.ElevationFt
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         s.ID,
			Geometry:   pt,
			Properties: props,
		})
	}
	if len(r.sites) > 0 {
		fc.BBox = bounds
	}
	return fc
}

// GeoJSON encodes FeatureCollection.
func (r *Registry) GeoJSON() ([]byte, error) {
	data, err := json.Marshal(r.FeatureCollection())
	if err != nil {
		return nil, fmt.Errorf("encode sites geojson: %w", err)
	}
	return data, nil
}
