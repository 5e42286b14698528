// Package iem provides the Iowa Environmental Mesonet radar sources: a
// static offset mosaic that needs no network call to enumerate frames, and
// a scan listing over a recent time window.
package iem

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/storm-radar/internal/domain"
)

const defaultMaxZoom = 12

// tileTemplate builds the TMS cache URL for one IEM layer name.
func tileTemplate(baseURL, layer string) domain.TileTemplate {
	return domain.TileTemplate(fmt.Sprintf("%s/cache/tile.py/1.0.0/%s/{z}/{x}/{y}.png", strings.TrimRight(baseURL, "/"), layer))
}

func buildTemplate(provider, baseURL string, m *domain.FrameManifest, f domain.Frame) (domain.TileTemplate, error) {
	if !m.Contains(f) {
		return "", fmt.Errorf("%s frame %s: %w", provider, f.Token, domain.ErrFrameEvicted)
	}
	return tileTemplate(baseURL, f.Token), nil
}
