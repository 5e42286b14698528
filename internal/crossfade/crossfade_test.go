package crossfade

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

const (
	frameA = domain.TileTemplate("https://tiles.test/a/{z}/{x}/{y}.png")
	frameB = domain.TileTemplate("https://tiles.test/b/{z}/{x}/{y}.png")
	frameC = domain.TileTemplate("https://tiles.test/c/{z}/{x}/{y}.png")
)

func TestFirstTemplateIsImmediate(t *testing.T) {
	a := New(clockwork.NewFakeClock(), 280*time.Millisecond, 0.8)
	a.TransitionTo(frameA)

	s := a.Sample()
	assert.Equal(t, frameA, s.BaseTemplate)
	assert.Empty(t, s.FadeTemplate)
	assert.InDelta(t, 0.8, s.BaseOpacity, 1e-9)
	assert.Zero(t, s.FadeOpacity)
	assert.False(t, a.Active())
}

func TestTransition_SumInvariant(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := New(clock, 280*time.Millisecond, 0.7)
	a.TransitionTo(frameA)
	a.TransitionTo(frameB)

	start := a.Sample()
	assert.InDelta(t, 0.7, start.BaseOpacity, 1e-6)
	assert.InDelta(t, 0, start.FadeOpacity, 1e-6)
	assert.Equal(t, frameB, start.FadeTemplate)

	for elapsed := 10 * time.Millisecond; elapsed < 280*time.Millisecond; elapsed += 30 * time.Millisecond {
		clock.Advance(30 * time.Millisecond)
		s := a.Sample()
		if s.FadeTemplate == "" {
			break
		}
		assert.InDelta(t, 0.7, s.BaseOpacity+s.FadeOpacity, 1e-6, "elapsed %s", elapsed)
		assert.GreaterOrEqual(t, s.Progress, 0.0)
		assert.Less(t, s.Progress, 1.0)
	}
}

func TestTransition_Completes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := New(clock, 280*time.Millisecond, 1)
	a.TransitionTo(frameA)
	a.TransitionTo(frameB)
	require.True(t, a.Active())

	clock.Advance(140 * time.Millisecond)
	mid := a.Sample()
	assert.InDelta(t, 0.5, mid.Progress, 1e-6)
	assert.InDelta(t, 0.5, mid.FadeOpacity, 1e-6)

	clock.Advance(140 * time.Millisecond)
	done := a.Sample()
	assert.Equal(t, frameB, done.BaseTemplate, "fade slot promoted to base")
	assert.Empty(t, done.FadeTemplate, "previous base discarded")
	assert.InDelta(t, 1, done.BaseOpacity, 1e-9)
	assert.Zero(t, done.FadeOpacity)
	assert.InDelta(t, 1, done.Progress, 0)
	assert.False(t, a.Active())
}

func TestTransition_ReplacesInFlightTarget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := New(clock, 200*time.Millisecond, 1)
	a.TransitionTo(frameA)
	a.TransitionTo(frameB)
	clock.Advance(150 * time.Millisecond)

	a.TransitionTo(frameC)
	s := a.Sample()
	assert.Equal(t, frameA, s.BaseTemplate)
	assert.Equal(t, frameC, s.FadeTemplate)
	assert.InDelta(t, 0, s.Progress, 1e-9, "progress restarts for the new target")

	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, frameC, a.Sample().BaseTemplate)
}

func TestTransition_SameTemplateIsNoop(t *testing.T) {
	a := New(clockwork.NewFakeClock(), 200*time.Millisecond, 1)
	a.TransitionTo(frameA)
	a.TransitionTo(frameA)
	assert.False(t, a.Active())
}

func TestTransition_ZeroDurationIsInstant(t *testing.T) {
	a := New(clockwork.NewFakeClock(), 200*time.Millisecond, 1)
	a.TransitionTo(frameA)
	a.TransitionWith(frameB, 0.5, 0)

	s := a.Sample()
	assert.Equal(t, frameB, s.BaseTemplate)
	assert.InDelta(t, 0.5, s.BaseOpacity, 1e-9)
}

func TestSetOpacity_Rescales(t *testing.T) {
	clock := clockwork.NewFakeClock()
	a := New(clock, 100*time.Millisecond, 1)
	a.TransitionTo(frameA)

	a.SetOpacity(0.4)
	assert.InDelta(t, 0.4, a.Sample().BaseOpacity, 1e-9)

	a.TransitionTo(frameB)
	clock.Advance(25 * time.Millisecond)
	a.SetOpacity(0.6)
	s := a.Sample()
	assert.InDelta(t, 0.6, s.BaseOpacity+s.FadeOpacity, 1e-6)
	assert.InDelta(t, 0.15, s.FadeOpacity, 1e-6)
}

func TestClampOpacity(t *testing.T) {
	assert.Zero(t, ClampOpacity(math.NaN()))
	assert.Zero(t, ClampOpacity(-1))
	assert.InDelta(t, 1, ClampOpacity(3), 0)
	assert.InDelta(t, 0.25, ClampOpacity(0.25), 0)
}

func TestReset(t *testing.T) {
	a := New(clockwork.NewFakeClock(), 100*time.Millisecond, 1)
	a.TransitionTo(frameA)
	a.TransitionTo(frameB)
	a.Reset()

	s := a.Sample()
	assert.Empty(t, s.BaseTemplate)
	assert.Zero(t, s.BaseOpacity)

	a.TransitionTo(frameC)
	assert.Equal(t, frameC, a.Sample().BaseTemplate)
}
