// Package radar turns frame sources into cached providers and orders them
// into per-tier fallback chains.
package radar

import (
	"context"
	"fmt"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

// Provider pairs a frame source with the cache that owns its manifest.
type Provider struct {
	source domain.FrameSource
	cache  *Cache
}

// NewProvider wraps source behind cache. The cache must front the same source.
func NewProvider(source domain.FrameSource, cache *Cache) *Provider {
	return &Provider{source: source, cache: cache}
}

func (p *Provider) ID() string    { return p.source.ID() }
func (p *Provider) Label() string { return p.source.Label() }
func (p *Provider) MaxZoom() int  { return p.source.MaxZoom() }

// Frames returns the current manifest, fetching when the cache has expired.
func (p *Provider) Frames(ctx context.Context) (*domain.FrameManifest, error) {
	return p.cache.Get(ctx)
}

// Refresh forces a manifest fetch.
func (p *Provider) Refresh(ctx context.Context) (*domain.FrameManifest, error) {
	return p.cache.Refresh(ctx)
}

// Current returns the cached manifest without I/O.
func (p *Provider) Current() *domain.FrameManifest {
	return p.cache.Peek()
}

// TileTemplate builds the template for a frame of the current manifest.
// Frames from a replaced manifest fail with domain.ErrFrameEvicted.
func (p *Provider) TileTemplate(f domain.Frame) (domain.TileTemplate, error) {
	m := p.cache.Peek()
	if m == nil {
		return "", fmt.Errorf("%s: no manifest loaded: %w", p.ID(), domain.ErrFrameEvicted)
	}
	return p.source.BuildTemplate(m, f)
}
