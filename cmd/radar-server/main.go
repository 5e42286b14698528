package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-radar/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-radar/internal/adapter/kafka"
	"github.com/couchcryptid/storm-radar/internal/adapter/mapbox"
	"github.com/couchcryptid/storm-radar/internal/anchor"
	"github.com/couchcryptid/storm-radar/internal/config"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/observability"
	"github.com/couchcryptid/storm-radar/internal/pipeline"
	"github.com/couchcryptid/storm-radar/internal/providers"
	"github.com/couchcryptid/storm-radar/internal/session"
	"github.com/couchcryptid/storm-radar/internal/sites"
	"github.com/couchcryptid/storm-radar/internal/viewstate"
)

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	registry, err := loadSites(cfg)
	if err != nil {
		logger.Error("failed to load radar sites", "error", err)
		os.Exit(1)
	}

	set, err := providers.Build(cfg, clock, metrics, logger)
	if err != nil {
		logger.Error("failed to build providers", "error", err)
		os.Exit(1)
	}
	router, err := set.Router(cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to build provider chains", "error", err)
		os.Exit(1)
	}

	// Place labels are feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var geocoder domain.ReverseGeocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var (
		loader pipeline.BatchLoader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loader = writer
		logger.Info("publishing manifest events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		loader = pipeline.NewLogLoader(logger)
	}

	refreshers := make([]pipeline.Refresher, 0, len(set.All()))
	for _, p := range set.All() {
		refreshers = append(refreshers, p)
	}
	p := pipeline.New(refreshers, loader, cfg.PublishInterval, clock, logger, metrics)

	sessionDeps := session.Deps{
		Router:   router,
		Sites:    registry,
		Geocoder: geocoder,
		Catalog:  viewstate.DefaultCatalog(),
		Clock:    clock,
		Metrics:  metrics,
		Logger:   logger,
	}
	sessionOpts := session.Options{
		ViewID:            cfg.DefaultView,
		AnchorMode:        anchor.ModeGPS,
		DefaultAnchor:     domain.GeoPoint{Lat: cfg.DefaultAnchorLat, Lon: cfg.DefaultAnchorLon},
		PlaybackSpeed:     cfg.PlaybackSpeed,
		CrossfadeDuration: cfg.CrossfadeDuration,
		AnchorDebounce:    cfg.AnchorDebounce,
		RefreshInterval:   cfg.ManifestTTL,
		FetchTimeout:      3 * cfg.UpstreamTimeout,
		LocalMinZoom:      cfg.LocalMinZoom,
		NearestMaxKm:      cfg.NearestMaxKm,
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Router:       router,
		Sites:        registry,
		Ready:        p,
		NewSession:   func() *session.Session { return session.New(sessionDeps, sessionOpts) },
		NearestMaxKm: cfg.NearestMaxKm,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start manifest warm/publish loop.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-pipelineDone:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func loadSites(cfg *config.Config) (*sites.Registry, error) {
	if cfg.RadarSitesPath != "" {
		return sites.LoadFile(cfg.RadarSitesPath)
	}
	return sites.Default()
}
