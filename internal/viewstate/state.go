package viewstate

import (
	"maps"
	"math"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/timeline"
)

// LayerState is the runtime state of one catalog layer.
type LayerState struct {
	Enabled bool    `json:"enabled"`
	Opacity float64 `json:"opacity"`
}

// MapState is the runtime state of one map session. Layers only ever holds
// catalog ids; Reduce never adds keys.
type MapState struct {
	ViewID       string                 `json:"view_id"`
	AdvancedMode bool                   `json:"advanced_mode"`
	Viewport     domain.Viewport        `json:"viewport"`
	Layers       map[LayerID]LayerState `json:"layers"`
	Timeline     timeline.State         `json:"timeline"`
}

// Action is a state transition request. See Reduce.
type Action interface {
	isAction()
}

type (
	SetView         struct{ ViewID string }
	SetAdvancedMode struct{ Enabled bool }
	SetViewport     struct{ Viewport domain.Viewport }
	SetLayerEnabled struct {
		ID      LayerID
		Enabled bool
	}
	SetLayerOpacity struct {
		ID      LayerID
		Opacity float64
	}
	SetFrame   struct{ Index int }
	SetPlaying struct{ Playing bool }
	SetSpeed   struct{ SpeedMs int }
)

func (SetView) isAction()         {}
func (SetAdvancedMode) isAction() {}
func (SetViewport) isAction()     {}
func (SetLayerEnabled) isAction() {}
func (SetLayerOpacity) isAction() {}
func (SetFrame) isAction()        {}
func (SetPlaying) isAction()      {}
func (SetSpeed) isAction()        {}

// Initial builds the state for viewID with the given timeline. An unknown
// view falls back to the catalog's first view.
func Initial(c *Catalog, viewID string, tl timeline.State) MapState {
	if _, ok := c.Preset(viewID); !ok {
		viewID = c.Views()[0]
	}
	return MapState{
		ViewID:   viewID,
		Layers:   buildLayers(c, viewID, nil),
		Timeline: tl,
	}
}

// Reduce applies a to s and returns the new state. It has no side effects
// and never mutates s; unchanged maps are shared with the previous state.
func Reduce(c *Catalog, s MapState, a Action) MapState {
	switch a := a.(type) {
	case SetView:
		if _, ok := c.Preset(a.ViewID); !ok {
			return s
		}
		s.ViewID = a.ViewID
		s.Layers = buildLayers(c, a.ViewID, s.Layers)
	case SetAdvancedMode:
		s.AdvancedMode = a.Enabled
	case SetViewport:
		s.Viewport = a.Viewport
	case SetLayerEnabled:
		cur, ok := s.Layers[a.ID]
		if !ok || cur.Enabled == a.Enabled {
			return s
		}
		cur.Enabled = a.Enabled
		s.Layers = with(s.Layers, a.ID, cur)
	case SetLayerOpacity:
		cur, ok := s.Layers[a.ID]
		if !ok {
			return s
		}
		cur.Opacity = clampOpacity(a.Opacity)
		s.Layers = with(s.Layers, a.ID, cur)
	case SetFrame:
		s.Timeline.FrameIndex = max(0, a.Index)
	case SetPlaying:
		s.Timeline.Playing = a.Playing
	case SetSpeed:
		if a.SpeedMs > 0 {
			s.Timeline.SpeedMs = a.SpeedMs
		}
	}
	return s
}

// buildLayers applies catalog defaults, then the preset, then the previous
// opacities of layers that still exist.
func buildLayers(c *Catalog, viewID string, prev map[LayerID]LayerState) map[LayerID]LayerState {
	layers := make(map[LayerID]LayerState, len(c.layers))
	for _, def := range c.layers {
		layers[def.ID] = LayerState{Opacity: def.DefaultOpacity}
	}

	preset, _ := c.Preset(viewID)
	for _, id := range preset.EnabledLayerIDs {
		l := layers[id]
		l.Enabled = true
		layers[id] = l
	}
	for id, o := range preset.OpacityOverrides {
		l := layers[id]
		l.Opacity = o
		layers[id] = l
	}

	for id, p := range prev {
		if l, ok := layers[id]; ok {
			l.Opacity = p.Opacity
			layers[id] = l
		}
	}
	return layers
}

func with(m map[LayerID]LayerState, id LayerID, l LayerState) map[LayerID]LayerState {
	out := maps.Clone(m)
	out[id] = l
	return out
}

func clampOpacity(o float64) float64 {
	if math.IsNaN(o) {
		return 0
	}
	return math.Max(0, math.Min(1, o))
}

// SettingsLayer is one row of the layer settings list.
type SettingsLayer struct {
	ID      LayerID `json:"id"`
	Label   string  `json:"label"`
	Scope   Scope   `json:"scope"`
	ZOrder  int     `json:"z_order"`
	Enabled bool    `json:"enabled"`
	Opacity float64 `json:"opacity"`
}

// SettingsLayers lists the catalog layers visible in the current mode,
// bottom first. Advanced layers are hidden unless AdvancedMode is on.
func SettingsLayers(c *Catalog, s MapState) []SettingsLayer {
	out := make([]SettingsLayer, 0, len(c.layers))
	for _, def := range c.layers {
		if def.Scope == ScopeAdvanced && !s.AdvancedMode {
			continue
		}
		st := s.Layers[def.ID]
		out = append(out, SettingsLayer{
			ID:      def.ID,
			Label:   def.Label,
			Scope:   def.Scope,
			ZOrder:  def.ZOrder,
			Enabled: st.Enabled,
			Opacity: st.Opacity,
		})
	}
	return out
}
