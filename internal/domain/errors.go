package domain

import "errors"

// Error kinds. Callers classify with errors.Is; wrapped causes carry detail.
var (
	ErrNetworkFailure     = errors.New("network failure")
	ErrMalformedManifest  = errors.New("malformed manifest")
	ErrNoAnchor           = errors.New("no anchor")
	ErrNoNearestSite      = errors.New("no nearest site")
	ErrInvalidInput       = errors.New("invalid input")
	ErrFrameEvicted       = errors.New("frame not in current manifest")
	ErrProvidersExhausted = errors.New("all radar providers failed")
)

// Describe maps an error to a short message suitable for display.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProvidersExhausted):
		return "Radar imagery is unavailable right now. Showing the last good frame."
	case errors.Is(err, ErrNetworkFailure):
		return "Could not reach the radar provider."
	case errors.Is(err, ErrMalformedManifest):
		return "The radar provider returned unexpected data."
	case errors.Is(err, ErrFrameEvicted):
		return "Radar frames were refreshed; reloading."
	case errors.Is(err, ErrNoAnchor):
		return "Location unavailable. Showing the default region."
	case errors.Is(err, ErrNoNearestSite):
		return "No radar site within range."
	case errors.Is(err, ErrInvalidInput):
		return "Invalid coordinates."
	default:
		return "Something went wrong loading radar data."
	}
}
