// Package timeline is the frame index state machine and playback timer.
package timeline

import (
	"math"
	"time"

	"github.com/couchcryptid/storm-radar/internal/scheduler"
)

// State is the timeline as seen by the view state. The frame count is not
// stored; it always comes from the active manifest.
type State struct {
	FrameIndex int  `json:"frame_index"`
	Playing    bool `json:"playing"`
	SpeedMs    int  `json:"speed_ms"`
}

// Clamp bounds i to [0, n). n <= 0 yields 0.
func Clamp(i, n int) int {
	if n <= 0 {
		return 0
	}
	return max(0, min(n-1, i))
}

// ClampFloat floors i before clamping; NaN yields 0.
func ClampFloat(i float64, n int) int {
	if math.IsNaN(i) || n <= 0 {
		return 0
	}
	f := math.Floor(i)
	if f >= float64(n-1) {
		return n - 1
	}
	if f <= 0 {
		return 0
	}
	return int(f)
}

// Next returns the index after i, wrapping to 0.
func Next(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (Clamp(i, n) + 1) % n
}

// Prev returns the index before i, wrapping to n-1.
func Prev(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (Clamp(i, n) - 1 + n) % n
}

// Controller drives playback over a frame count supplied by the active
// manifest. It is not safe for concurrent use; the owning session calls it
// from its event loop, and the scheduler's dispatcher delivers ticks there.
type Controller struct {
	sched    *scheduler.Scheduler
	onTick   func(index int)
	state    State
	count    int
	disposed bool
}

// NewController creates a paused controller with the given default speed.
// onTick is called with the new index after every playback step.
func NewController(sched *scheduler.Scheduler, speed time.Duration, onTick func(index int)) *Controller {
	ms := int(speed / time.Millisecond)
	if ms <= 0 {
		ms = 500
	}
	return &Controller{sched: sched, onTick: onTick, state: State{SpeedMs: ms}}
}

// State returns a copy of the current state.
func (c *Controller) State() State { return c.state }

// Count returns the frame count of the active manifest.
func (c *Controller) Count() int { return c.count }

// Reset adopts a new manifest's frame count and selects index. Playback
// continues only if the new count can still animate.
func (c *Controller) Reset(n, index int) {
	c.count = max(n, 0)
	c.state.FrameIndex = Clamp(index, c.count)
	if c.count < 2 {
		c.state.Playing = false
	}
	c.rearm()
}

// SetPlaying starts or stops playback. Starting is refused for fewer than
// two frames. Returns the resulting playing flag.
func (c *Controller) SetPlaying(playing bool) bool {
	if playing && c.count < 2 {
		playing = false
	}
	if playing != c.state.Playing {
		c.state.Playing = playing
		c.rearm()
	}
	return c.state.Playing
}

// SetSpeed changes the playback interval. Non-positive values are ignored.
func (c *Controller) SetSpeed(ms int) {
	if ms <= 0 || ms == c.state.SpeedMs {
		return
	}
	c.state.SpeedMs = ms
	c.rearm()
}

// Step moves delta frames, wrapping at either end, and returns the new index.
func (c *Controller) Step(delta int) int {
	n := c.count
	if n <= 0 {
		c.state.FrameIndex = 0
		return 0
	}
	c.state.FrameIndex = ((Clamp(c.state.FrameIndex, n)+delta%n)%n + n) % n
	return c.state.FrameIndex
}

// Jump selects index i, clamped to the frame range.
func (c *Controller) Jump(i int) int {
	c.state.FrameIndex = Clamp(i, c.count)
	return c.state.FrameIndex
}

// Dispose cancels the playback timer; no ticks are delivered afterwards.
func (c *Controller) Dispose() {
	c.disposed = true
	c.state.Playing = false
	c.sched.Cancel(scheduler.Playback)
}

func (c *Controller) rearm() {
	if c.disposed {
		return
	}
	if !c.state.Playing {
		c.sched.Cancel(scheduler.Playback)
		return
	}
	c.sched.Every(scheduler.Playback, time.Duration(c.state.SpeedMs)*time.Millisecond, c.tick)
}

func (c *Controller) tick() {
	if c.disposed || !c.state.Playing {
		return
	}
	c.state.FrameIndex = Next(c.state.FrameIndex, c.count)
	if c.onTick != nil {
		c.onTick(c.state.FrameIndex)
	}
}
