package radar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
)

// CacheOptions configures a manifest Cache.
type CacheOptions struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Clock        clockwork.Clock
}

// Cache holds the current manifest of one FrameSource. Entries are replaced
// wholesale; concurrent misses share a single upstream fetch.
type Cache struct {
	source  domain.FrameSource
	ttl     time.Duration
	timeout time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	current *domain.FrameManifest
}

// NewCache creates a cache in front of source.
func NewCache(source domain.FrameSource, opts CacheOptions, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 60 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Cache{
		source:  source,
		ttl:     opts.TTL,
		timeout: opts.FetchTimeout,
		clock:   opts.Clock,
		metrics: metrics,
		logger:  logger.With("provider", source.ID()),
	}
}

// Get returns the cached manifest while it is younger than the TTL and
// fetches a new one otherwise.
func (c *Cache) Get(ctx context.Context) (*domain.FrameManifest, error) {
	if m := c.fresh(); m != nil {
		c.metrics.ManifestCache.WithLabelValues(c.source.ID(), "hit").Inc()
		return m, nil
	}
	return c.load(ctx, false)
}

// Refresh fetches regardless of the TTL. On failure the previous manifest is
// returned while it is still within its TTL.
func (c *Cache) Refresh(ctx context.Context) (*domain.FrameManifest, error) {
	return c.load(ctx, true)
}

// Peek returns the last good manifest without I/O, or nil.
func (c *Cache) Peek() *domain.FrameManifest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Cache) fresh() *domain.FrameManifest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current != nil && c.clock.Since(c.current.FetchedAt) < c.ttl {
		return c.current
	}
	return nil
}

func (c *Cache) load(ctx context.Context, force bool) (*domain.FrameManifest, error) {
	ch := c.group.DoChan(c.source.ID(), func() (any, error) {
		if !force {
			if m := c.fresh(); m != nil {
				return m, nil
			}
		}
		return c.fetch(ctx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrNetworkFailure, c.source.ID(), ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.metrics.ManifestCache.WithLabelValues(c.source.ID(), "shared").Inc()
		} else {
			c.metrics.ManifestCache.WithLabelValues(c.source.ID(), "miss").Inc()
		}
		if res.Err != nil {
			if m := c.fresh(); m != nil {
				c.metrics.ManifestCache.WithLabelValues(c.source.ID(), "stale").Inc()
				c.logger.Warn("manifest refresh failed, keeping previous manifest", "manifest_id", m.ID, "error", res.Err)
				return m, nil
			}
			return nil, res.Err
		}
		return res.Val.(*domain.FrameManifest), nil
	}
}

// fetch runs detached from the caller's cancellation so that one waiter
// giving up does not fail the others sharing the flight.
func (c *Cache) fetch(ctx context.Context) (*domain.FrameManifest, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := c.clock.Now()
	m, err := c.source.FetchManifest(ctx)
	c.metrics.ManifestFetchDuration.WithLabelValues(c.source.ID()).Observe(c.clock.Since(start).Seconds())
	if err == nil && m.Len() == 0 {
		err = fmt.Errorf("%w: %s: empty frame list", domain.ErrMalformedManifest, c.source.ID())
	}
	if err != nil {
		c.metrics.ManifestFetches.WithLabelValues(c.source.ID(), outcome(err)).Inc()
		return nil, err
	}

	m.TTL = c.ttl
	c.mu.Lock()
	c.current = m
	c.mu.Unlock()

	c.metrics.ManifestFetches.WithLabelValues(c.source.ID(), "success").Inc()
	c.metrics.ManifestFrames.WithLabelValues(c.source.ID()).Set(float64(m.Len()))
	c.logger.Debug("manifest fetched", "manifest_id", m.ID, "frame_count", m.Len())
	return m, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNetworkFailure):
		return "network"
	case errors.Is(err, domain.ErrMalformedManifest):
		return "malformed"
	default:
		return "error"
	}
}
