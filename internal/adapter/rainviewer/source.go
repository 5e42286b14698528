// Package rainviewer adapts the RainViewer public weather-maps manifest into
// radar frames. It is the primary mosaic provider.
package rainviewer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/adapter/upstream"
	"github.com/couchcryptid/storm-radar/internal/domain"
)

// ID is the provider id used in configuration and metrics.
const ID = "rainviewer"

// Config describes the upstream manifest and tile layout.
type Config struct {
	URL       string
	MaxFrames int
	TileStyle string
	MaxZoom   int
}

// Source implements domain.FrameSource for RainViewer.
type Source struct {
	cfg    Config
	client upstream.Getter
	clock  clockwork.Clock
}

// NewSource creates a RainViewer frame source.
func NewSource(cfg Config, client upstream.Getter, clock clockwork.Clock) *Source {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 12
	}
	if cfg.TileStyle == "" {
		cfg.TileStyle = "2/1_1"
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = 7
	}
	return &Source{cfg: cfg, client: client, clock: clock}
}

func (s *Source) ID() string    { return ID }
func (s *Source) Label() string { return "RainViewer mosaic" }
func (s *Source) MaxZoom() int  { return s.cfg.MaxZoom }

// FetchManifest downloads the weather-maps document and returns past and
// nowcast frames merged oldest first, truncated to the most recent MaxFrames.
func (s *Source) FetchManifest(ctx context.Context) (*domain.FrameManifest, error) {
	var resp manifestResponse
	if err := s.client.GetJSON(ctx, s.cfg.URL, &resp); err != nil {
		return nil, fmt.Errorf("fetch rainviewer manifest: %w", err)
	}

	frames := make([]domain.Frame, 0, len(resp.Radar.Past)+len(resp.Radar.Nowcast))
	for _, e := range resp.Radar.Past {
		frames = append(frames, e.frame(false))
	}
	for _, e := range resp.Radar.Nowcast {
		frames = append(frames, e.frame(true))
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: rainviewer: empty frame list", domain.ErrMalformedManifest)
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Time.Before(frames[j].Time) })
	if len(frames) > s.cfg.MaxFrames {
		frames = frames[len(frames)-s.cfg.MaxFrames:]
	}

	return &domain.FrameManifest{
		ID:         domain.ManifestID(ID, frames),
		ProviderID: ID,
		Host:       strings.TrimRight(resp.Host, "/"),
		Frames:     frames,
		FetchedAt:  s.clock.Now(),
	}, nil
}

// BuildTemplate joins host and frame path, appending the tile suffix unless
// the path already carries placeholders.
func (s *Source) BuildTemplate(m *domain.FrameManifest, f domain.Frame) (domain.TileTemplate, error) {
	if !m.Contains(f) {
		return "", fmt.Errorf("rainviewer frame %s: %w", f.Token, domain.ErrFrameEvicted)
	}
	tmpl := m.Host + f.Token
	if !domain.HasPlaceholders(f.Token) {
		tmpl += "/256/{z}/{x}/{y}/" + s.cfg.TileStyle + ".png"
	}
	return domain.TileTemplate(tmpl), nil
}

// RainViewer API response types.

type manifestResponse struct {
	Version   string `json:"version"`
	Generated int64  `json:"generated"`
	Host      string `json:"host" validate:"required,url"`
	Radar     struct {
		Past    []frameEntry `json:"past" validate:"dive"`
		Nowcast []frameEntry `json:"nowcast" validate:"dive"`
	} `json:"radar"`
}

type frameEntry struct {
	Time int64  `json:"time" validate:"gt=0"`
	Path string `json:"path" validate:"required"`
}

func (e frameEntry) frame(nowcast bool) domain.Frame {
	return domain.Frame{Time: time.Unix(e.Time, 0).UTC(), Token: e.Path, Nowcast: nowcast}
}
