// Package crossfade blends successive radar tile templates through a base
// slot and a fade slot. Progress is sampled from elapsed time, so callers may
// sample at any rate.
package crossfade

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

// State is one sample of the two slots. While a fade is active
// BaseOpacity+FadeOpacity equals the configured opacity; when idle the base
// holds all of it.
type State struct {
	BaseTemplate domain.TileTemplate `json:"base_template"`
	FadeTemplate domain.TileTemplate `json:"fade_template,omitempty"`
	BaseOpacity  float64             `json:"base_opacity"`
	FadeOpacity  float64             `json:"fade_opacity"`
	Progress     float64             `json:"progress"`
}

// Animator is not safe for concurrent use.
type Animator struct {
	clock    clockwork.Clock
	duration time.Duration
	opacity  float64

	base   domain.TileTemplate
	fade   domain.TileTemplate
	start  time.Time
	fading bool
}

// New creates an empty animator with a default fade duration and opacity.
func New(clock clockwork.Clock, duration time.Duration, opacity float64) *Animator {
	return &Animator{clock: clock, duration: duration, opacity: ClampOpacity(opacity)}
}

// ClampOpacity bounds o to [0,1]; NaN becomes 0.
func ClampOpacity(o float64) float64 {
	if math.IsNaN(o) {
		return 0
	}
	return math.Max(0, math.Min(1, o))
}

// TransitionTo fades to tmpl with the animator's configured opacity and duration.
func (a *Animator) TransitionTo(tmpl domain.TileTemplate) {
	a.TransitionWith(tmpl, a.opacity, a.duration)
}

// TransitionWith fades to tmpl over duration at the given opacity. The first
// template is shown immediately. A transition requested mid-fade replaces
// the pending fade target and restarts its progress.
func (a *Animator) TransitionWith(tmpl domain.TileTemplate, opacity float64, duration time.Duration) {
	a.opacity = ClampOpacity(opacity)
	a.duration = duration

	if a.base == "" {
		a.base = tmpl
		a.fade = ""
		a.fading = false
		return
	}
	if !a.fading && tmpl == a.base {
		return
	}
	if duration <= 0 {
		a.base = tmpl
		a.fade = ""
		a.fading = false
		return
	}
	a.fade = tmpl
	a.start = a.clock.Now()
	a.fading = true
}

// SetOpacity changes the configured opacity; both slots rescale at once.
func (a *Animator) SetOpacity(o float64) {
	a.opacity = ClampOpacity(o)
}

// Opacity returns the configured opacity.
func (a *Animator) Opacity() float64 { return a.opacity }

// Active reports whether a fade is still running at the current time.
func (a *Animator) Active() bool {
	a.Sample()
	return a.fading
}

// Reset clears both slots, e.g. when the manifest identity changes.
func (a *Animator) Reset() {
	a.base = ""
	a.fade = ""
	a.fading = false
}

// Sample returns the slots at the current clock time, completing the fade
// when its duration has elapsed.
func (a *Animator) Sample() State {
	if !a.fading {
		return a.idle()
	}

	progress := float64(a.clock.Since(a.start)) / float64(a.duration)
	if progress >= 1 {
		a.base = a.fade
		a.fade = ""
		a.fading = false
		return a.idle()
	}
	progress = math.Max(0, progress)

	return State{
		BaseTemplate: a.base,
		FadeTemplate: a.fade,
		BaseOpacity:  a.opacity * (1 - progress),
		FadeOpacity:  a.opacity * progress,
		Progress:     progress,
	}
}

func (a *Animator) idle() State {
	s := State{BaseTemplate: a.base, Progress: 1}
	if a.base != "" {
		s.BaseOpacity = a.opacity
	}
	return s
}
