package domain

// Tier classifies the current view by zoom: local views are zoomed in close
// enough to a single radar's coverage area.
type Tier string

const (
	TierLocal    Tier = "local"
	TierNational Tier = "national"
)

// ParseTier accepts "local" or "national".
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierLocal, TierNational:
		return Tier(s), true
	}
	return "", false
}

// Label is the display name of the tier.
func (t Tier) Label() string {
	if t == TierLocal {
		return "Local radar"
	}
	return "National mosaic"
}
