// Package anchor decides which point drives radar selection (device
// location or map centre) and the local/national tier of the current view.
package anchor

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/scheduler"
)

// Mode selects the authoritative anchor source.
type Mode string

const (
	ModeGPS       Mode = "gps"
	ModeMapCenter Mode = "map_center"
)

// ParseMode accepts "gps" or "map_center".
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeGPS, ModeMapCenter:
		return Mode(s), true
	}
	return "", false
}

// Point is the resolved anchor. Fallback is set when neither source was
// available and the default region was used.
type Point struct {
	Point    domain.GeoPoint `json:"point"`
	Mode     Mode            `json:"mode"`
	Fallback bool            `json:"fallback,omitempty"`
}

// Options configures a Resolver.
type Options struct {
	Mode         Mode
	Debounce     time.Duration
	LocalMinZoom int
	Default      domain.GeoPoint
}

// Resolver is not safe for concurrent use; it runs on the session loop and
// its debounce timer is delivered there by the scheduler.
type Resolver struct {
	sched    *scheduler.Scheduler
	opts     Options
	onChange func(Point, domain.Tier)

	mode     Mode
	gps      *domain.GeoPoint
	viewport *domain.Viewport

	current Point
	tier    domain.Tier
}

// New creates a resolver anchored at the default point until a source reports.
func New(sched *scheduler.Scheduler, opts Options, onChange func(Point, domain.Tier)) *Resolver {
	if opts.Mode == "" {
		opts.Mode = ModeGPS
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 120 * time.Millisecond
	}
	if opts.LocalMinZoom <= 0 {
		opts.LocalMinZoom = 7
	}
	return &Resolver{
		sched:    sched,
		opts:     opts,
		onChange: onChange,
		mode:     opts.Mode,
		current:  Point{Point: opts.Default, Mode: opts.Mode, Fallback: true},
		tier:     domain.TierNational,
	}
}

func (r *Resolver) Mode() Mode        { return r.mode }
func (r *Resolver) Current() Point    { return r.current }
func (r *Resolver) Tier() domain.Tier { return r.tier }
func (r *Resolver) LocalMinZoom() int { return r.opts.LocalMinZoom }

// SetMode switches the authoritative source and recomputes immediately.
func (r *Resolver) SetMode(m Mode) {
	if m == r.mode {
		return
	}
	r.mode = m
	r.sched.Cancel(scheduler.AnchorDebounce)
	r.recompute()
}

// UpdateLocation records a device fix. In GPS mode the anchor follows at once.
func (r *Resolver) UpdateLocation(p domain.GeoPoint) error {
	if !p.Valid() {
		return fmt.Errorf("location %v: %w", p, domain.ErrInvalidInput)
	}
	r.gps = &p
	if r.mode == ModeGPS {
		r.recompute()
	}
	return nil
}

// UpdateViewport records a viewport change; the anchor and tier follow once
// the viewport has been still for the debounce interval.
func (r *Resolver) UpdateViewport(v domain.Viewport) error {
	if !v.Center.Valid() {
		return fmt.Errorf("viewport center %v: %w", v.Center, domain.ErrInvalidInput)
	}
	r.viewport = &v
	r.sched.After(scheduler.AnchorDebounce, r.opts.Debounce, r.recompute)
	return nil
}

// Recompute forces an immediate resolution, e.g. at session start.
func (r *Resolver) Recompute() { r.recompute() }

// Dispose cancels a pending debounce.
func (r *Resolver) Dispose() {
	r.sched.Cancel(scheduler.AnchorDebounce)
}

func (r *Resolver) recompute() {
	next := r.resolve()
	tier := r.tier
	if r.viewport != nil {
		tier = TierFor(Zoom(r.viewport.LongitudeDelta), r.opts.LocalMinZoom)
	}
	if next == r.current && tier == r.tier {
		return
	}
	r.current = next
	r.tier = tier
	if r.onChange != nil {
		r.onChange(next, tier)
	}
}

func (r *Resolver) resolve() Point {
	primary, secondary := r.gps, r.viewportCenter()
	if r.mode == ModeMapCenter {
		primary, secondary = secondary, primary
	}
	switch {
	case primary != nil:
		return Point{Point: *primary, Mode: r.mode}
	case secondary != nil:
		return Point{Point: *secondary, Mode: r.mode}
	default:
		return Point{Point: r.opts.Default, Mode: r.mode, Fallback: true}
	}
}

func (r *Resolver) viewportCenter() *domain.GeoPoint {
	if r.viewport == nil {
		return nil
	}
	c := r.viewport.Center
	return &c
}

// Zoom approximates the slippy-map zoom level showing lonDelta degrees.
// Non-positive or non-finite deltas yield 0.
func Zoom(lonDelta float64) int {
	if lonDelta <= 0 || math.IsNaN(lonDelta) || math.IsInf(lonDelta, 0) {
		return 0
	}
	return max(0, int(math.Round(math.Log2(360/lonDelta))))
}

// TierFor is local at or above localMinZoom and national below it.
func TierFor(zoom, localMinZoom int) domain.Tier {
	if zoom >= localMinZoom {
		return domain.TierLocal
	}
	return domain.TierNational
}
