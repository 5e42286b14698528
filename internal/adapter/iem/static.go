package iem

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

// StaticID is the provider id of the offset mosaic.
const StaticID = "iem-static"

const (
	staticLayer = "nexrad-n0q-900913"
	staticStep  = 5 * time.Minute
	staticSpan  = 30 * time.Minute
)

// StaticSource serves the fixed IEM NEXRAD composite layers for
// offsets -30m through latest. It never fails.
type StaticSource struct {
	baseURL string
	maxZoom int
	clock   clockwork.Clock
}

// NewStaticSource creates the fallback source rooted at baseURL.
func NewStaticSource(baseURL string, clock clockwork.Clock) *StaticSource {
	return &StaticSource{baseURL: baseURL, maxZoom: defaultMaxZoom, clock: clock}
}

func (s *StaticSource) ID() string    { return StaticID }
func (s *StaticSource) Label() string { return "IEM NEXRAD mosaic" }
func (s *StaticSource) MaxZoom() int  { return s.maxZoom }

// FetchManifest enumerates the offset layers oldest first, with times
// anchored to the current five-minute boundary.
func (s *StaticSource) FetchManifest(_ context.Context) (*domain.FrameManifest, error) {
	now := s.clock.Now().UTC()
	latest := now.Truncate(staticStep)

	frames := make([]domain.Frame, 0, int(staticSpan/staticStep)+1)
	for offset := staticSpan; offset >= 0; offset -= staticStep {
		frames = append(frames, domain.Frame{
			Time:  latest.Add(-offset),
			Token: staticLayerName(offset),
		})
	}

	return &domain.FrameManifest{
		ID:         domain.ManifestID(StaticID, frames),
		ProviderID: StaticID,
		Host:       s.baseURL,
		Frames:     frames,
		FetchedAt:  now,
	}, nil
}

func (s *StaticSource) BuildTemplate(m *domain.FrameManifest, f domain.Frame) (domain.TileTemplate, error) {
	return buildTemplate(StaticID, s.baseURL, m, f)
}

// staticLayerName maps an offset to the IEM layer, e.g. 15m -> "-m15m".
func staticLayerName(offset time.Duration) string {
	if offset == 0 {
		return staticLayer
	}
	return fmt.Sprintf("%s-m%02dm", staticLayer, int(offset.Minutes()))
}
