package radar

import "github.com/couchcryptid/storm-radar/internal/domain"

// Router selects the provider chain for a tier. With identical chains the
// tier only changes the display label.
type Router struct {
	local    *Chain
	national *Chain
}

// NewRouter creates a router. A nil local chain falls back to national.
func NewRouter(local, national *Chain) *Router {
	if local == nil {
		local = national
	}
	return &Router{local: local, national: national}
}

// Chain returns the chain for tier; unknown tiers use the national chain.
func (r *Router) Chain(tier domain.Tier) *Chain {
	if tier == domain.TierLocal {
		return r.local
	}
	return r.national
}
