package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Provider ids accepted in PROVIDERS_LOCAL / PROVIDERS_NATIONAL.
const (
	ProviderRainViewer = "rainviewer"
	ProviderIEMScans   = "iem-scans"
	ProviderIEMStatic  = "iem-static"
)

var knownProviders = map[string]bool{
	ProviderRainViewer: true,
	ProviderIEMScans:   true,
	ProviderIEMStatic:  true,
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	UpstreamTimeout time.Duration
	ManifestTTL     time.Duration

	// Primary mosaic provider.
	RainViewerURL       string
	RainViewerMaxFrames int
	RainViewerTileStyle string
	RainViewerMaxZoom   int

	// Iowa Environmental Mesonet fallback and scan listing.
	IEMBaseURL    string
	IEMScanWindow time.Duration

	// Provider priority per tier.
	ProvidersLocal    []string
	ProvidersNational []string

	// Map session behaviour.
	PlaybackSpeed     time.Duration
	CrossfadeDuration time.Duration
	AnchorDebounce    time.Duration
	LocalMinZoom      int
	NearestMaxKm      float64
	DefaultView       string
	DefaultAnchorLat  float64
	DefaultAnchorLon  float64
	RadarSitesPath    string

	// Manifest warm/publish loop.
	PublishInterval time.Duration
	KafkaBrokers    []string
	KafkaTopic      string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// KafkaEnabled reports whether manifest events should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:            sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		RainViewerURL:       sharedcfg.EnvOrDefault("RAINVIEWER_URL", "https://api.rainviewer.com/public/weather-maps.json"),
		RainViewerTileStyle: sharedcfg.EnvOrDefault("RAINVIEWER_TILE_STYLE", "2/1_1"),
		IEMBaseURL:          strings.TrimRight(sharedcfg.EnvOrDefault("IEM_BASE_URL", "https://mesonet.agron.iastate.edu"), "/"),
		DefaultView:         sharedcfg.EnvOrDefault("DEFAULT_VIEW", "radar"),
		RadarSitesPath:      os.Getenv("RADAR_SITES_PATH"),
		KafkaBrokers:        parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:          sharedcfg.EnvOrDefault("KAFKA_TOPIC", "radar-manifests"),
	}
	for _, d := range []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"UPSTREAM_TIMEOUT", "10s", &cfg.UpstreamTimeout},
		{"MANIFEST_TTL", "60s", &cfg.ManifestTTL},
		{"IEM_SCAN_WINDOW", "1h", &cfg.IEMScanWindow},
		{"PLAYBACK_SPEED", "500ms", &cfg.PlaybackSpeed},
		{"CROSSFADE_DURATION", "280ms", &cfg.CrossfadeDuration},
		{"ANCHOR_DEBOUNCE", "120ms", &cfg.AnchorDebounce},
		{"PUBLISH_INTERVAL", "60s", &cfg.PublishInterval},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout},
	} {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.RainViewerMaxFrames, err = parsePositiveInt("RAINVIEWER_MAX_FRAMES", 12); err != nil {
		return nil, err
	}
	if cfg.RainViewerMaxZoom, err = parsePositiveInt("RAINVIEWER_MAX_ZOOM", 7); err != nil {
		return nil, err
	}
	if cfg.LocalMinZoom, err = parsePositiveInt("LOCAL_MIN_ZOOM", 7); err != nil {
		return nil, err
	}
	if cfg.NearestMaxKm, err = parseFloat("NEAREST_MAX_KM", 460); err != nil {
		return nil, err
	}
	if cfg.NearestMaxKm < 0 {
		return nil, errors.New("invalid NEAREST_MAX_KM: must be >= 0")
	}
	if cfg.DefaultAnchorLat, err = parseFloat("DEFAULT_ANCHOR_LAT", 39.8283); err != nil {
		return nil, err
	}
	if cfg.DefaultAnchorLon, err = parseFloat("DEFAULT_ANCHOR_LON", -98.5795); err != nil {
		return nil, err
	}
	if cfg.DefaultAnchorLat < -90 || cfg.DefaultAnchorLat > 90 || cfg.DefaultAnchorLon < -180 || cfg.DefaultAnchorLon > 180 {
		return nil, errors.New("invalid DEFAULT_ANCHOR_LAT/DEFAULT_ANCHOR_LON: out of range")
	}

	defaultProviders := strings.Join([]string{ProviderRainViewer, ProviderIEMScans, ProviderIEMStatic}, ",")
	if cfg.ProvidersLocal, err = parseProviders("PROVIDERS_LOCAL", defaultProviders); err != nil {
		return nil, err
	}
	if cfg.ProvidersNational, err = parseProviders("PROVIDERS_NATIONAL", defaultProviders); err != nil {
		return nil, err
	}

	cfg.MapboxCacheSize = parseMapboxCacheSize()
	cfg.MapboxToken = os.Getenv("MAPBOX_TOKEN")
	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseProviders(key, def string) ([]string, error) {
	ids := parseList(sharedcfg.EnvOrDefault(key, def))
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s must name at least one provider", key)
	}
	for _, id := range ids {
		if !knownProviders[id] {
			return nil, fmt.Errorf("invalid %s: unknown provider %q", key, id)
		}
	}
	return ids, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
