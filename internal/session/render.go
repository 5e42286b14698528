package session

import (
	"time"

	"github.com/couchcryptid/storm-radar/internal/anchor"
	"github.com/couchcryptid/storm-radar/internal/crossfade"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/timeline"
	"github.com/couchcryptid/storm-radar/internal/viewstate"
)

// RenderState is everything the rendering surface needs to paint one frame
// of the session and its controls.
type RenderState struct {
	SessionID string `json:"session_id"`

	Crossfade   crossfade.State `json:"crossfade"`
	MaxTileZoom int             `json:"max_tile_zoom"`

	FrameIndex int        `json:"frame_index"`
	FrameCount int        `json:"frame_count"`
	FrameTime  *time.Time `json:"frame_time,omitempty"`
	FrameLabel string     `json:"frame_label,omitempty"`
	Playing    bool       `json:"playing"`
	SpeedMs    int        `json:"speed_ms"`

	Tier          domain.Tier `json:"tier"`
	TierLabel     string      `json:"tier_label"`
	ProviderID    string      `json:"provider_id,omitempty"`
	ProviderLabel string      `json:"provider_label,omitempty"`

	Anchor      anchor.Point              `json:"anchor"`
	NearestSite *domain.NearestSiteResult `json:"nearest_site,omitempty"`
	PlaceLabel  string                    `json:"place_label,omitempty"`

	ViewID       string                    `json:"view_id"`
	AdvancedMode bool                      `json:"advanced_mode"`
	Viewport     domain.Viewport           `json:"viewport"`
	Layers       []viewstate.SettingsLayer `json:"layers"`

	Notice string `json:"notice,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Session) render() RenderState {
	rs := RenderState{
		SessionID:    s.id,
		Crossfade:    s.fade.Sample(),
		FrameIndex:   s.state.Timeline.FrameIndex,
		FrameCount:   s.manifest.Len(),
		Playing:      s.state.Timeline.Playing,
		SpeedMs:      s.state.Timeline.SpeedMs,
		Tier:         s.tier,
		TierLabel:    s.tier.Label(),
		Anchor:       s.anchor.Current(),
		NearestSite:  s.nearest,
		PlaceLabel:   s.place,
		ViewID:       s.state.ViewID,
		AdvancedMode: s.state.AdvancedMode,
		Viewport:     s.state.Viewport,
		Layers:       viewstate.SettingsLayers(s.deps.Catalog, s.state),
		Error:        s.errMsg,
	}
	if s.provider != nil {
		rs.ProviderID = s.provider.ID()
		rs.ProviderLabel = s.provider.Label()
		rs.MaxTileZoom = s.provider.MaxZoom()
	}
	if n := s.manifest.Len(); n > 0 {
		i := timeline.Clamp(rs.FrameIndex, n)
		t := s.manifest.Frames[i].Time
		rs.FrameTime = &t
		rs.FrameLabel = timeline.FrameLabel(s.manifest, i)
	}
	if rs.Anchor.Fallback {
		rs.Notice = domain.Describe(domain.ErrNoAnchor)
	}
	return rs
}
