// Package session runs one map session: a single event loop that owns the
// view state, timeline, crossfade and anchor, and turns user commands,
// timer ticks and completed fetches into render snapshots.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/anchor"
	"github.com/couchcryptid/storm-radar/internal/crossfade"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
	"github.com/couchcryptid/storm-radar/internal/radar"
	"github.com/couchcryptid/storm-radar/internal/scheduler"
	"github.com/couchcryptid/storm-radar/internal/sites"
	"github.com/couchcryptid/storm-radar/internal/timeline"
	"github.com/couchcryptid/storm-radar/internal/viewstate"
)

// ErrClosed is returned by commands sent to a session that has stopped.
var ErrClosed = errors.New("session closed")

const fadeSampleInterval = 16 * time.Millisecond

// Deps are the shared, process-wide collaborators of a session.
type Deps struct {
	Router   *radar.Router
	Sites    *sites.Registry
	Geocoder domain.ReverseGeocoder
	Catalog  *viewstate.Catalog
	Clock    clockwork.Clock
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Options are per-session defaults, normally taken from configuration.
type Options struct {
	ViewID            string
	AnchorMode        anchor.Mode
	DefaultAnchor     domain.GeoPoint
	PlaybackSpeed     time.Duration
	CrossfadeDuration time.Duration
	AnchorDebounce    time.Duration
	RefreshInterval   time.Duration
	FetchTimeout      time.Duration
	LocalMinZoom      int
	NearestMaxKm      float64
}

// Session is created per map screen and discarded at teardown. All fields
// below events are owned by the loop goroutine started by Run.
type Session struct {
	id     string
	deps   Deps
	opts   Options
	logger *slog.Logger

	events    chan func()
	updates   chan RenderState
	done      chan struct{}
	closeOnce sync.Once
	runCtx    context.Context

	sched    *scheduler.Scheduler
	timeline *timeline.Controller
	fade     *crossfade.Animator
	anchor   *anchor.Resolver
	state    viewstate.MapState

	provider *radar.Provider
	manifest *domain.FrameManifest
	fetchGen uint64
	labelGen uint64
	tier     domain.Tier
	nearest  *domain.NearestSiteResult
	place    string
	errMsg   string
}

// New creates a session. Nothing runs until Run is called.
func New(deps Deps, opts Options) *Session {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	s := &Session{
		id:      uuid.NewString(),
		deps:    deps,
		opts:    opts,
		events:  make(chan func(), 64),
		updates: make(chan RenderState, 1),
		done:    make(chan struct{}),
		runCtx:  context.Background(),
		tier:    domain.TierNational,
	}
	s.logger = deps.Logger.With("session_id", s.id)
	s.sched = scheduler.New(deps.Clock, s.post)
	s.timeline = timeline.NewController(s.sched, opts.PlaybackSpeed, s.onTick)
	s.state = viewstate.Initial(deps.Catalog, opts.ViewID, s.timeline.State())
	s.fade = crossfade.New(deps.Clock, opts.CrossfadeDuration, s.radarOpacity())
	s.anchor = anchor.New(s.sched, anchor.Options{
		Mode:         opts.AnchorMode,
		Debounce:     opts.AnchorDebounce,
		LocalMinZoom: opts.LocalMinZoom,
		Default:      opts.DefaultAnchor,
	}, s.onAnchor)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Updates delivers the latest render snapshot. Older unread snapshots are
// dropped. The channel is closed when the session stops.
func (s *Session) Updates() <-chan RenderState { return s.updates }

// Done is closed once Close has been called.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the session. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Run processes events until ctx is cancelled or Close is called, then
// cancels every timer. Results of fetches still in flight are discarded.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.runCtx = ctx

	s.deps.Metrics.SessionsActive.Inc()
	defer s.deps.Metrics.SessionsActive.Dec()
	defer s.dispose()

	s.logger.Info("session started", "view", s.state.ViewID)
	s.onAnchor(s.anchor.Current(), s.anchor.Tier())
	s.startFetch()
	s.sched.Every(scheduler.ManifestRefresh, s.opts.RefreshInterval, s.startFetch)
	s.publish()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped")
			return nil
		case <-s.done:
			s.logger.Info("session closed")
			return nil
		case fn := <-s.events:
			fn()
		}
	}
}

func (s *Session) dispose() {
	s.Close()
	s.fetchGen++
	s.labelGen++
	s.timeline.Dispose()
	s.anchor.Dispose()
	s.sched.Stop()
	close(s.updates)
}

// post queues fn onto the loop. It is used by timers and async results,
// never from the loop itself.
func (s *Session) post(fn func()) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// do queues a command and publishes the resulting state.
func (s *Session) do(fn func()) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- func() { fn(); s.publish() }:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Snapshot returns the current render state as computed on the loop.
func (s *Session) Snapshot(ctx context.Context) (RenderState, error) {
	reply := make(chan RenderState, 1)
	if err := s.do(func() { reply <- s.render() }); err != nil {
		return RenderState{}, err
	}
	select {
	case rs := <-reply:
		return rs, nil
	case <-ctx.Done():
		return RenderState{}, ctx.Err()
	case <-s.done:
		return RenderState{}, ErrClosed
	}
}

func (s *Session) publish() {
	rs := s.render()
	select {
	case s.updates <- rs:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- rs:
	default:
	}
}
