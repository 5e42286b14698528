package timeline

import (
	"fmt"
	"math"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

// FrameLabel describes frame i relative to the newest observed frame:
// "Now", "-25 min" for older frames and "+10 min" for nowcasts.
func FrameLabel(m *domain.FrameManifest, i int) string {
	if m.Len() == 0 {
		return ""
	}
	i = Clamp(i, m.Len())
	ref := m.LatestObserved()
	if i == ref {
		return "Now"
	}
	minutes := int(math.Round(m.Frames[i].Time.Sub(m.Frames[ref].Time).Minutes()))
	switch {
	case minutes == 0:
		return "Now"
	case minutes > 0:
		return fmt.Sprintf("+%d min", minutes)
	default:
		return fmt.Sprintf("%d min", minutes)
	}
}
