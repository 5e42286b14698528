package domain

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TileTemplate is a slippy-map URL containing {z}/{x}/{y} placeholders.
type TileTemplate string

// HasPlaceholders reports whether s already carries all three tile tokens.
func HasPlaceholders(s string) bool {
	return strings.Contains(s, "{z}") && strings.Contains(s, "{x}") && strings.Contains(s, "{y}")
}

// Frame is one radar image time step.
type Frame struct {
	Time    time.Time `json:"time"`
	Token   string    `json:"token"`
	Nowcast bool      `json:"nowcast,omitempty"`
}

// FrameManifest is the ordered (oldest first) frame list of one provider.
// Manifests are replaced wholesale on refresh and never mutated in place.
type FrameManifest struct {
	ID         string        `json:"id"`
	ProviderID string        `json:"provider_id"`
	Host       string        `json:"host,omitempty"`
	Frames     []Frame       `json:"frames"`
	FetchedAt  time.Time     `json:"fetched_at"`
	TTL        time.Duration `json:"ttl"`
}

// Len returns the frame count; nil manifests have zero frames.
func (m *FrameManifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Frames)
}

// Contains reports whether f belongs to this manifest.
func (m *FrameManifest) Contains(f Frame) bool {
	if m == nil {
		return false
	}
	for _, candidate := range m.Frames {
		if candidate.Token == f.Token && candidate.Time.Equal(f.Time) {
			return true
		}
	}
	return false
}

// LatestObserved returns the index of the newest non-nowcast frame, or the
// last index when every frame is a nowcast. Returns -1 for an empty manifest.
func (m *FrameManifest) LatestObserved() int {
	n := m.Len()
	for i := n - 1; i >= 0; i-- {
		if !m.Frames[i].Nowcast {
			return i
		}
	}
	return n - 1
}

// ManifestID derives a stable identity from a provider and its frame list,
// so refetching an unchanged manifest keeps the same id.
func ManifestID(providerID string, frames []Frame) string {
	var b strings.Builder
	b.WriteString(providerID)
	for _, f := range frames {
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(f.Time.Unix(), 10))
		b.WriteByte(':')
		b.WriteString(f.Token)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(b.String())).String()
}

// FrameSource is one upstream radar provider strategy. FetchManifest may do
// network I/O; BuildTemplate is a pure lookup against a manifest the same
// source returned.
type FrameSource interface {
	ID() string
	Label() string
	MaxZoom() int
	FetchManifest(ctx context.Context) (*FrameManifest, error)
	BuildTemplate(m *FrameManifest, f Frame) (TileTemplate, error)
}

// ManifestEvent is the published summary of a refreshed manifest.
type ManifestEvent struct {
	ManifestID string    `json:"manifest_id"`
	ProviderID string    `json:"provider_id"`
	FrameCount int       `json:"frame_count"`
	Oldest     time.Time `json:"oldest"`
	Newest     time.Time `json:"newest"`
	Latest     string    `json:"latest_template"`
	FetchedAt  time.Time `json:"fetched_at"`
}
