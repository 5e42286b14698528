package sites

import (
	"math"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/geo"
)

// Options narrows a Nearest query. A zero MaxDistanceKm means no limit.
type Options struct {
	MaxDistanceKm float64
	Filter        func(domain.RadarSite) bool
}

// Nearest returns the closest site to p by haversine distance.
//
// It reports false when p is out of range, the registry is empty, the filter
// excludes every site, or the closest site is farther than MaxDistanceKm.
// On exact ties the site that appears first in the registry wins.
func (r *Registry) Nearest(p domain.GeoPoint, opts Options) (domain.NearestSiteResult, bool) {
	if r == nil || !p.Valid() || len(r.sites) == 0 {
		return domain.NearestSiteResult{}, false
	}

	best := -1
	bestDist := math.Inf(1)
	for i, s := range r.sites {
		if opts.Filter != nil && !opts.Filter(s) {
			continue
		}
		if d := geo.DistanceKm(p, s.Point()); d < bestDist {
			best, bestDist = i, d
		}
	}

	if best < 0 {
		return domain.NearestSiteResult{}, false
	}
	if opts.MaxDistanceKm > 0 && bestDist > opts.MaxDistanceKm {
		return domain.NearestSiteResult{}, false
	}

	site := r.sites[best]
	return domain.NearestSiteResult{
		Site:       site,
		DistanceKm: bestDist,
		DistanceMi: geo.KmToMiles(bestDist),
		BearingDeg: geo.BearingDeg(p, site.Point()),
	}, true
}

// OwnedBy returns a filter that keeps sites of the given owner type.
func OwnedBy(ownerType string) func(domain.RadarSite) bool {
	return func(s domain.RadarSite) bool { return s.OwnerType == ownerType }
}
