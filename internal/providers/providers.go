// Package providers builds the configured radar providers and the tier
// router from configuration.
package providers

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/adapter/iem"
	"github.com/couchcryptid/storm-radar/internal/adapter/rainviewer"
	"github.com/couchcryptid/storm-radar/internal/adapter/upstream"
	"github.com/couchcryptid/storm-radar/internal/config"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
	"github.com/couchcryptid/storm-radar/internal/radar"
)

// Set holds one provider per configured id. Each provider owns its cache, so
// both tiers share manifests for a provider listed in both.
type Set struct {
	byID  map[string]*radar.Provider
	order []string
}

// Build creates every provider named in PROVIDERS_LOCAL or PROVIDERS_NATIONAL.
func Build(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) (*Set, error) {
	s := &Set{byID: make(map[string]*radar.Provider)}
	cacheOpts := radar.CacheOptions{
		TTL: cfg.ManifestTTL,
		// One attempt plus the client's retries.
		FetchTimeout: 3 * cfg.UpstreamTimeout,
		Clock:        clock,
	}

	for _, id := range append(append([]string{}, cfg.ProvidersLocal...), cfg.ProvidersNational...) {
		if _, ok := s.byID[id]; ok {
			continue
		}
		src, err := newSource(id, cfg, clock, logger)
		if err != nil {
			return nil, err
		}
		cache := radar.NewCache(src, cacheOpts, metrics, logger)
		s.byID[id] = radar.NewProvider(src, cache)
		s.order = append(s.order, id)
	}
	return s, nil
}

func newSource(id string, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger) (domain.FrameSource, error) {
	clientOpts := upstream.DefaultOptions(cfg.UpstreamTimeout)
	clientOpts.Clock = clock

	switch id {
	case config.ProviderRainViewer:
		client := upstream.NewClient(id, clientOpts, logger)
		return rainviewer.NewSource(rainviewer.Config{
			URL:       cfg.RainViewerURL,
			MaxFrames: cfg.RainViewerMaxFrames,
			TileStyle: cfg.RainViewerTileStyle,
			MaxZoom:   cfg.RainViewerMaxZoom,
		}, client, clock), nil
	case config.ProviderIEMScans:
		client := upstream.NewClient(id, clientOpts, logger)
		return iem.NewScansSource(iem.ScansConfig{
			BaseURL:   cfg.IEMBaseURL,
			Window:    cfg.IEMScanWindow,
			MaxFrames: cfg.RainViewerMaxFrames,
		}, client, clock), nil
	case config.ProviderIEMStatic:
		return iem.NewStaticSource(cfg.IEMBaseURL, clock), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", id)
	}
}

// Get returns the provider with the given id.
func (s *Set) Get(id string) (*radar.Provider, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// All returns every provider in configuration order.
func (s *Set) All() []*radar.Provider {
	out := make([]*radar.Provider, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id]
	}
	return out
}

// Router builds the local and national fallback chains.
func (s *Set) Router(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*radar.Router, error) {
	local, err := radar.NewChainFromIDs(cfg.ProvidersLocal, s.byID, metrics, logger.With("tier", domain.TierLocal))
	if err != nil {
		return nil, fmt.Errorf("local providers: %w", err)
	}
	national, err := radar.NewChainFromIDs(cfg.ProvidersNational, s.byID, metrics, logger.With("tier", domain.TierNational))
	if err != nil {
		return nil, fmt.Errorf("national providers: %w", err)
	}
	return radar.NewRouter(local, national), nil
}
