package session

import (
	"context"

	"github.com/couchcryptid/storm-radar/internal/anchor"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/radar"
	"github.com/couchcryptid/storm-radar/internal/sites"
	"github.com/couchcryptid/storm-radar/internal/viewstate"
)

// startFetch asks the tier's chain for a manifest off the loop. Only the
// result of the most recent request is applied.
func (s *Session) startFetch() {
	s.fetchGen++
	gen := s.fetchGen
	chain := s.deps.Router.Chain(s.anchor.Tier())
	parent := s.runCtx

	go func() {
		ctx, cancel := context.WithTimeout(parent, s.opts.FetchTimeout)
		defer cancel()
		res, err := chain.Frames(ctx)
		s.post(func() {
			s.applyFetch(gen, res, err)
			s.publish()
		})
	}()
}

func (s *Session) applyFetch(gen uint64, res radar.Result, err error) {
	if gen != s.fetchGen {
		s.logger.Debug("discarding stale manifest result", "generation", gen, "current", s.fetchGen)
		return
	}
	if err != nil {
		s.logger.Warn("manifest unavailable", "error", err)
		s.errMsg = domain.Describe(err)
		return
	}
	s.errMsg = ""

	if s.manifest != nil && s.provider == res.Provider && s.manifest.ID == res.Manifest.ID {
		s.manifest = res.Manifest
		return
	}

	// New manifest identity: indices from the old one are meaningless.
	s.logger.Info("manifest changed",
		"provider", res.Provider.ID(), "manifest_id", res.Manifest.ID, "frame_count", res.Manifest.Len())
	s.provider = res.Provider
	s.manifest = res.Manifest
	s.fade.Reset()
	s.timeline.Reset(res.Manifest.Len(), res.Manifest.LatestObserved())
	s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetPlaying{Playing: s.timeline.State().Playing})
	s.showIndex(s.timeline.State().FrameIndex)
}

func (s *Session) onAnchor(p anchor.Point, tier domain.Tier) {
	prevTier := s.tier
	s.tier = tier

	if res, ok := s.deps.Sites.Nearest(p.Point, sites.Options{MaxDistanceKm: s.opts.NearestMaxKm}); ok {
		s.nearest = &res
	} else {
		s.nearest = nil
	}
	s.lookupPlace(p)

	if tier != prevTier {
		s.logger.Debug("tier changed", "from", prevTier, "to", tier)
		s.startFetch()
	}
}

// lookupPlace resolves a label for the anchor off the loop.
func (s *Session) lookupPlace(p anchor.Point) {
	s.labelGen++
	s.place = ""
	if s.deps.Geocoder == nil || p.Fallback {
		return
	}
	gen := s.labelGen
	parent := s.runCtx
	geocoder := s.deps.Geocoder

	go func() {
		ctx, cancel := context.WithTimeout(parent, s.opts.FetchTimeout)
		defer cancel()
		res, err := geocoder.ReverseGeocode(ctx, p.Point.Lat, p.Point.Lon)
		s.post(func() {
			if gen != s.labelGen {
				return
			}
			if err != nil {
				s.logger.Debug("place label lookup failed", "error", err)
				return
			}
			s.place = res.Label()
			s.publish()
		})
	}()
}
