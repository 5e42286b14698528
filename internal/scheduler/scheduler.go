// Package scheduler owns every timer of a map session. Each named slot holds
// at most one live timer; arming a slot replaces whatever was there, and Stop
// cancels everything at teardown.
package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Slot names a logical timer.
type Slot string

const (
	Playback        Slot = "playback"
	Crossfade       Slot = "crossfade"
	AnchorDebounce  Slot = "anchor-debounce"
	ManifestRefresh Slot = "manifest-refresh"
)

// Dispatcher runs a timer callback, typically by queueing it onto the
// owner's event loop. The callback re-checks liveness when it runs.
type Dispatcher func(func())

type entry struct {
	gen   uint64
	timer clockwork.Timer
}

// Scheduler arms exclusive, cancellable timers per slot.
type Scheduler struct {
	clock    clockwork.Clock
	dispatch Dispatcher

	mu      sync.Mutex
	gen     uint64
	slots   map[Slot]*entry
	stopped bool
}

// New creates a scheduler. A nil dispatcher runs callbacks on the timer goroutine.
func New(clock clockwork.Clock, dispatch Dispatcher) *Scheduler {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Scheduler{clock: clock, dispatch: dispatch, slots: make(map[Slot]*entry)}
}

// After runs fn once after d, replacing any timer in slot.
func (s *Scheduler) After(slot Slot, d time.Duration, fn func()) {
	s.arm(slot, d, fn, false)
}

// Every runs fn every d until the slot is cancelled or replaced. A
// non-positive period only cancels the slot.
func (s *Scheduler) Every(slot Slot, d time.Duration, fn func()) {
	if d <= 0 {
		s.Cancel(slot)
		return
	}
	s.arm(slot, d, fn, true)
}

// Cancel stops the timer in slot, if any. A tick already queued on the
// dispatcher is discarded when it runs.
func (s *Scheduler) Cancel(slot Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(slot)
}

// Active reports whether slot holds a live timer.
func (s *Scheduler) Active(slot Slot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[slot]
	return ok
}

// Stop cancels every slot. Later calls to After and Every are no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for slot := range s.slots {
		s.cancelLocked(slot)
	}
	s.stopped = true
}

func (s *Scheduler) arm(slot Slot, d time.Duration, fn func(), repeat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.cancelLocked(slot)

	s.gen++
	e := &entry{gen: s.gen}
	s.slots[slot] = e

	var fire func()
	fire = func() {
		s.mu.Lock()
		if !s.liveLocked(slot, e.gen) {
			s.mu.Unlock()
			return
		}
		if repeat {
			e.timer = s.clock.AfterFunc(d, fire)
		}
		s.mu.Unlock()

		s.dispatch(func() {
			s.mu.Lock()
			if !s.liveLocked(slot, e.gen) {
				s.mu.Unlock()
				return
			}
			if !repeat {
				delete(s.slots, slot)
			}
			s.mu.Unlock()
			fn()
		})
	}
	e.timer = s.clock.AfterFunc(d, fire)
}

func (s *Scheduler) cancelLocked(slot Slot) {
	if e, ok := s.slots[slot]; ok {
		e.timer.Stop()
		delete(s.slots, slot)
	}
}

func (s *Scheduler) liveLocked(slot Slot, gen uint64) bool {
	e, ok := s.slots[slot]
	return ok && !s.stopped && e.gen == gen
}
