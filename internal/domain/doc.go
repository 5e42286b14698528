// Package domain models weather radar imagery as served by public mosaic
// providers, and the NEXRAD sites that produce it.
//
// # Frames and Manifests
//
// A provider publishes radar imagery as an ordered series of frames, oldest
// first. The ordered list plus its fetch metadata is a [FrameManifest]. A
// manifest is immutable once built: a refresh produces a new manifest with a
// new ID and the old one is dropped wholesale. Frame indices are only
// meaningful against the manifest that produced them.
//
// Each [Frame] carries an opaque provider token:
//
//	RainViewer:   "/v2/radar/1714143000"             (path under the manifest host)
//	IEM static:   "nexrad-n0q-900913-m15m"           (fixed-offset layer name)
//	IEM scans:    "ridge::USCOMP-N0Q-202404261510"   (absolute scan stamp)
//
// # Tile Templates
//
// A [TileTemplate] is a slippy-map URL with {z}/{x}/{y} placeholders, built
// from a frame by the provider that owns it:
//
//	https://tilecache.rainviewer.com/v2/radar/1714143000/256/{z}/{x}/{y}/2/1_1.png
//	https://mesonet.agron.iastate.edu/cache/tile.py/1.0.0/nexrad-n0q-900913/{z}/{x}/{y}.png
//
// # Coordinates
//
// All coordinates are WGS-84 degrees. Latitude must be within [-90, 90] and
// longitude within [-180, 180]; anything else (including NaN) is invalid
// input and yields an empty result rather than an error from the geometry
// helpers.
//
// # NEXRAD Sites
//
// Sites are identified by their four-letter ICAO code (KTLX = Oklahoma City,
// KFWS = Dallas/Fort Worth). The registry is a static dataset loaded once at
// start-up; see package sites.
package domain
