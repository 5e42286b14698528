package iem

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/adapter/upstream"
	"github.com/couchcryptid/storm-radar/internal/domain"
)

// ScansID is the provider id of the scan listing.
const ScansID = "iem-scans"

const (
	scanTimeLayout = "2006-01-02T15:04Z"
	stampLayout    = "200601021504"
)

// ScansConfig configures the scan-listing source.
type ScansConfig struct {
	BaseURL   string
	Window    time.Duration
	MaxFrames int
	Product   string
	Radar     string
}

// ScansSource lists composite scans from the IEM radar catalog for the
// window ending now and maps each timestamp to a RIDGE layer stamp.
type ScansSource struct {
	cfg    ScansConfig
	client upstream.Getter
	clock  clockwork.Clock
}

// NewScansSource creates a scan-listing source.
func NewScansSource(cfg ScansConfig, client upstream.Getter, clock clockwork.Clock) *ScansSource {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 12
	}
	if cfg.Product == "" {
		cfg.Product = "N0Q"
	}
	if cfg.Radar == "" {
		cfg.Radar = "USCOMP"
	}
	return &ScansSource{cfg: cfg, client: client, clock: clock}
}

func (s *ScansSource) ID() string    { return ScansID }
func (s *ScansSource) Label() string { return "IEM NEXRAD scans" }
func (s *ScansSource) MaxZoom() int  { return defaultMaxZoom }

func (s *ScansSource) FetchManifest(ctx context.Context) (*domain.FrameManifest, error) {
	now := s.clock.Now().UTC()
	var resp scanListResponse
	if err := s.client.GetJSON(ctx, s.listURL(now.Add(-s.cfg.Window), now), &resp); err != nil {
		return nil, fmt.Errorf("fetch iem scan list: %w", err)
	}

	frames := make([]domain.Frame, 0, len(resp.Scans))
	for _, sc := range resp.Scans {
		ts, err := time.Parse(scanTimeLayout, sc.TS)
		if err != nil {
			return nil, fmt.Errorf("%w: iem scan time %q: %w", domain.ErrMalformedManifest, sc.TS, err)
		}
		frames = append(frames, domain.Frame{Time: ts, Token: s.stamp(ts)})
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Time.Before(frames[j].Time) })
	if len(frames) > s.cfg.MaxFrames {
		frames = frames[len(frames)-s.cfg.MaxFrames:]
	}

	return &domain.FrameManifest{
		ID:         domain.ManifestID(ScansID, frames),
		ProviderID: ScansID,
		Host:       s.cfg.BaseURL,
		Frames:     frames,
		FetchedAt:  now,
	}, nil
}

func (s *ScansSource) BuildTemplate(m *domain.FrameManifest, f domain.Frame) (domain.TileTemplate, error) {
	return buildTemplate(ScansID, s.cfg.BaseURL, m, f)
}

func (s *ScansSource) listURL(start, end time.Time) string {
	params := url.Values{
		"operation": {"list"},
		"product":   {s.cfg.Product},
		"radar":     {s.cfg.Radar},
		"start":     {start.Format(scanTimeLayout)},
		"end":       {end.Format(scanTimeLayout)},
	}
	return s.cfg.BaseURL + "/json/radar.py?" + params.Encode()
}

// stamp formats a scan time as a RIDGE layer, e.g. ridge::USCOMP-N0Q-202405202110.
func (s *ScansSource) stamp(ts time.Time) string {
	return fmt.Sprintf("ridge::%s-%s-%s", s.cfg.Radar, s.cfg.Product, ts.UTC().Format(stampLayout))
}

// IEM radar.py response types.

type scanListResponse struct {
	Scans []scan `json:"scans" validate:"min=1,dive"`
}

type scan struct {
	TS string `json:"ts" validate:"required"`
}
