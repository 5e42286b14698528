// Package pipeline keeps provider manifests warm and publishes a summary
// event whenever a provider's manifest changes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Refresher is a provider whose manifest can be force-refreshed.
type Refresher interface {
	ID() string
	Refresh(ctx context.Context) (*domain.FrameManifest, error)
	TileTemplate(f domain.Frame) (domain.TileTemplate, error)
}

// BatchLoader writes manifest events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.ManifestEvent) error
}

// Pipeline runs the refresh/publish loop.
type Pipeline struct {
	providers []Refresher
	loader    BatchLoader
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	// last published manifest id per provider; only touched by Run.
	published map[string]string
}

// New creates a Pipeline refreshing providers every interval.
func New(providers []Refresher, l BatchLoader, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		providers: providers,
		loader:    l,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		published: make(map[string]string),
	}
}

// CheckReadiness returns nil once at least one manifest has been loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no radar manifest loaded yet")
	}
	return nil
}

// Run refreshes and publishes until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "providers", len(p.providers), "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		wait := p.interval
		if err := p.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("manifest cycle failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = sharedretry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !p.sleep(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// cycle refreshes every provider and loads an event for each changed
// manifest. It fails when no provider could be refreshed or the load failed.
func (p *Pipeline) cycle(ctx context.Context) error {
	var (
		events []domain.ManifestEvent
		errs   []error
		loaded int
	)
	for _, prov := range p.providers {
		m, err := prov.Refresh(ctx)
		if err != nil {
			p.logger.Warn("manifest refresh failed", "provider", prov.ID(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", prov.ID(), err))
			continue
		}
		loaded++
		if p.published[prov.ID()] == m.ID {
			continue
		}
		events = append(events, p.event(prov, m))
	}

	if loaded == 0 {
		return fmt.Errorf("%w: %w", domain.ErrProvidersExhausted, errors.Join(errs...))
	}
	p.ready.Store(true)

	if len(events) == 0 {
		return nil
	}
	if err := p.loader.LoadBatch(ctx, events); err != nil {
		return fmt.Errorf("load manifest events: %w", err)
	}
	for _, e := range events {
		p.published[e.ProviderID] = e.ManifestID
	}
	p.metrics.ManifestsPublished.Add(float64(len(events)))
	return nil
}

func (p *Pipeline) event(prov Refresher, m *domain.FrameManifest) domain.ManifestEvent {
	e := domain.ManifestEvent{
		ManifestID: m.ID,
		ProviderID: prov.ID(),
		FrameCount: m.Len(),
		FetchedAt:  m.FetchedAt,
	}
	if m.Len() > 0 {
		e.Oldest = m.Frames[0].Time
		e.Newest = m.Frames[m.Len()-1].Time
		if tmpl, err := prov.TileTemplate(m.Frames[m.LatestObserved()]); err == nil {
			e.Latest = string(tmpl)
		}
	}
	return e
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(d):
		return true
	}
}

// LogLoader logs events instead of publishing them. Used when no broker is
// configured.
type LogLoader struct {
	logger *slog.Logger
}

func NewLogLoader(logger *slog.Logger) *LogLoader {
	return &LogLoader{logger: logger}
}

func (l *LogLoader) LoadBatch(_ context.Context, events []domain.ManifestEvent) error {
	for _, e := range events {
		l.logger.Info("manifest updated",
			"provider", e.ProviderID,
			"manifest_id", e.ManifestID,
			"frame_count", e.FrameCount,
			"newest", e.Newest,
		)
	}
	return nil
}
