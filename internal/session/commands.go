package session

import (
	"fmt"

	"github.com/couchcryptid/storm-radar/internal/anchor"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/scheduler"
	"github.com/couchcryptid/storm-radar/internal/viewstate"
)

// Play starts playback. It has no effect on timelines with fewer than two frames.
func (s *Session) Play() error {
	return s.do(func() { s.setPlaying(true) })
}

// Pause stops playback.
func (s *Session) Pause() error {
	return s.do(func() { s.setPlaying(false) })
}

// SetSpeed changes the playback interval in milliseconds.
func (s *Session) SetSpeed(ms int) error {
	if ms <= 0 {
		return fmt.Errorf("speed %d: %w", ms, domain.ErrInvalidInput)
	}
	return s.do(func() {
		s.timeline.SetSpeed(ms)
		s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetSpeed{SpeedMs: ms})
	})
}

// Scrub jumps to frame index i, clamped to the current manifest.
func (s *Session) Scrub(i int) error {
	return s.do(func() { s.showIndex(s.timeline.Jump(i)) })
}

// Step moves delta frames, wrapping at either end.
func (s *Session) Step(delta int) error {
	return s.do(func() { s.showIndex(s.timeline.Step(delta)) })
}

// SetView switches the view preset. Unknown views are ignored.
func (s *Session) SetView(viewID string) error {
	return s.do(func() {
		s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetView{ViewID: viewID})
		s.fade.SetOpacity(s.radarOpacity())
	})
}

// SetAdvancedMode toggles advanced layers in the settings list.
func (s *Session) SetAdvancedMode(enabled bool) error {
	return s.do(func() {
		s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetAdvancedMode{Enabled: enabled})
	})
}

// SetLayerEnabled shows or hides a catalog layer.
func (s *Session) SetLayerEnabled(id viewstate.LayerID, enabled bool) error {
	return s.do(func() {
		s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetLayerEnabled{ID: id, Enabled: enabled})
	})
}

// SetLayerOpacity changes a catalog layer's opacity.
func (s *Session) SetLayerOpacity(id viewstate.LayerID, opacity float64) error {
	return s.do(func() {
		s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetLayerOpacity{ID: id, Opacity: opacity})
		if id == viewstate.LayerRadar {
			s.fade.SetOpacity(s.radarOpacity())
		}
	})
}

// SetAnchorMode switches between device location and map centre.
func (s *Session) SetAnchorMode(m anchor.Mode) error {
	return s.do(func() { s.anchor.SetMode(m) })
}

// UpdateLocation reports a device location fix.
func (s *Session) UpdateLocation(p domain.GeoPoint) error {
	return s.do(func() {
		if err := s.anchor.UpdateLocation(p); err != nil {
			s.errMsg = domain.Describe(err)
		}
	})
}

// UpdateViewport reports a map viewport change.
func (s *Session) UpdateViewport(v domain.Viewport) error {
	return s.do(func() {
		if err := s.anchor.UpdateViewport(v); err != nil {
			s.errMsg = domain.Describe(err)
			return
		}
		s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetViewport{Viewport: v})
	})
}

// Refresh requests a manifest fetch now.
func (s *Session) Refresh() error {
	return s.do(s.startFetch)
}

func (s *Session) setPlaying(playing bool) {
	got := s.timeline.SetPlaying(playing)
	s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetPlaying{Playing: got})
}

func (s *Session) onTick(index int) {
	s.showIndex(index)
	s.publish()
}

// showIndex records the frame in the view state and fades to its template.
func (s *Session) showIndex(index int) {
	s.state = viewstate.Reduce(s.deps.Catalog, s.state, viewstate.SetFrame{Index: index})
	if s.manifest.Len() == 0 || s.provider == nil {
		return
	}
	tmpl, err := s.provider.TileTemplate(s.manifest.Frames[index])
	if err != nil {
		s.logger.Debug("frame template unavailable", "provider", s.provider.ID(), "error", err)
		s.errMsg = domain.Describe(err)
		s.startFetch()
		return
	}
	s.fade.TransitionWith(tmpl, s.radarOpacity(), s.opts.CrossfadeDuration)
	if s.fade.Active() {
		s.sched.Every(scheduler.Crossfade, fadeSampleInterval, s.onFadeSample)
	}
}

func (s *Session) onFadeSample() {
	if !s.fade.Active() {
		s.sched.Cancel(scheduler.Crossfade)
	}
	s.publish()
}

func (s *Session) radarOpacity() float64 {
	return s.state.Layers[viewstate.LayerRadar].Opacity
}
