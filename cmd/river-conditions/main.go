package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/river-conditions-service/internal/adapter/geocache"
	httpadapter "github.com/couchcryptid/river-conditions-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/river-conditions-service/internal/adapter/kafka"
	"github.com/couchcryptid/river-conditions-service/internal/adapter/mapbox"
	"github.com/couchcryptid/river-conditions-service/internal/adapter/openweather"
	"github.com/couchcryptid/river-conditions-service/internal/adapter/usgs"
	"github.com/couchcryptid/river-conditions-service/internal/catalog"
	"github.com/couchcryptid/river-conditions-service/internal/conditions"
	"github.com/couchcryptid/river-conditions-service/internal/config"
	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/feed"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// readiness is ready when every component is.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	sites, err := catalog.Load(cfg.SitesFile)
	if err != nil {
		logger.Error("failed to load site catalog", "path", cfg.SitesFile, "error", err)
		os.Exit(1)
	}
	logger.Info("site catalog loaded", "sites", sites.Len(), "path", cfg.SitesFile)

	weather := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.UpstreamTimeout, metrics, logger)
	gauge := usgs.NewClient(cfg.USGSBaseURL, cfg.UpstreamTimeout, metrics, logger)

	// Zip geocoding uses OpenWeather unless Mapbox is enabled via MAPBOX_ENABLED / MAPBOX_TOKEN.
	var zipGeocoder domain.Geocoder = weather
	if cfg.MapboxEnabled {
		zipGeocoder = mapbox.NewClient(cfg.MapboxToken, cfg.UpstreamTimeout, metrics, logger)
		logger.Info("mapbox zip geocoding enabled", "cache_size", cfg.GeocodeCacheSize)
	}
	geocoder := geocache.New(zipGeocoder, cfg.GeocodeCacheSize, metrics)

	aggregator := conditions.NewAggregator(weather, gauge, clock, cfg.Location, metrics, logger)
	svc := conditions.NewService(sites, aggregator, geocoder, cfg.MaxConcurrency, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := readiness{sites}

	var (
		writer   *kafkaadapter.Writer
		feedDone = make(chan struct{})
	)
	if cfg.FeedEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		f := feed.New(svc, writer, clock, logger, metrics, feed.Options{
			Schedule:    cfg.FeedSchedule,
			Location:    cfg.Location,
			Reference:   cfg.DefaultReference(),
			RadiusMiles: cfg.DefaultRadius,
		})
		checks = append(checks, f)

		// Start conditions feed.
		go func() {
			defer close(feedDone)
			if err := f.Run(ctx); err != nil {
				logger.Error("feed error", "error", err)
			}
		}()
	} else {
		close(feedDone)
		logger.Info("conditions feed disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, httpadapter.Defaults{
		Reference:   cfg.DefaultReference(),
		RadiusMiles: cfg.DefaultRadius,
	}, checks, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
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
	case <-feedDone:
	case <-shutdownCtx.Done():
		logger.Warn("feed did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
