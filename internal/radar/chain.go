package radar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
)

// Result is a manifest together with the provider that served it.
type Result struct {
	Provider *Provider
	Manifest *domain.FrameManifest
}

// Chain tries providers in priority order and returns the first manifest
// with at least one frame.
type Chain struct {
	providers []*Provider
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewChain creates a chain over providers, highest priority first.
func NewChain(providers []*Provider, metrics *observability.Metrics, logger *slog.Logger) *Chain {
	return &Chain{providers: providers, metrics: metrics, logger: logger}
}

// NewChainFromIDs resolves ids against the provider set.
func NewChainFromIDs(ids []string, set map[string]*Provider, metrics *observability.Metrics, logger *slog.Logger) (*Chain, error) {
	providers := make([]*Provider, 0, len(ids))
	for _, id := range ids {
		p, ok := set[id]
		if !ok {
			return nil, fmt.Errorf("unknown radar provider %q", id)
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, errors.New("radar chain needs at least one provider")
	}
	return NewChain(providers, metrics, logger), nil
}

// Providers returns the chain's providers in priority order.
func (c *Chain) Providers() []*Provider {
	return append([]*Provider(nil), c.providers...)
}

// Frames returns the first successful provider's manifest. Failures fall
// through to the next provider; when every provider fails the causes are
// joined under domain.ErrProvidersExhausted.
func (c *Chain) Frames(ctx context.Context) (Result, error) {
	var errs []error
	for _, p := range c.providers {
		m, err := p.Frames(ctx)
		if err == nil {
			return Result{Provider: p, Manifest: m}, nil
		}
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("radar chain: %w", ctx.Err())
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.ID(), err))
		c.metrics.ProviderFallbacks.WithLabelValues(p.ID()).Inc()
		c.logger.Warn("radar provider failed, falling back", "provider", p.ID(), "error", err)
	}
	err := fmt.Errorf("%w: %w", domain.ErrProvidersExhausted, errors.Join(errs...))
	c.logger.Error("all radar providers failed", "error", err)
	return Result{}, err
}
