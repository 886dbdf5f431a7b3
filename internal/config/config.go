package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream providers.
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string
	USGSBaseURL        string
	UpstreamTimeout    time.Duration

	// Mapbox replaces OpenWeather for zip geocoding when enabled.
	MapboxToken      string
	MapboxEnabled    bool
	GeocodeCacheSize int

	SitesFile      string
	Location       *time.Location // weekday scoring is evaluated in this zone
	DefaultLat     float64
	DefaultLon     float64
	DefaultRadius  float64
	MaxConcurrency int

	// Scheduled conditions feed.
	FeedEnabled  bool
	FeedSchedule string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables (and an optional .env
// file), applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env file is fine

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := parsePositiveDuration("UPSTREAM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIMEZONE", "America/Los_Angeles"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	defaultLat, err := parseFloat("DEFAULT_LAT", 45.5155)
	if err != nil {
		return nil, err
	}
	defaultLon, err := parseFloat("DEFAULT_LON", -122.6789)
	if err != nil {
		return nil, err
	}
	defaultRadius, err := parseFloat("DEFAULT_RADIUS", domain.DefaultRadiusMiles)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		USGSBaseURL:        sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://waterservices.usgs.gov/nwis/iv/"),
		UpstreamTimeout:    upstreamTimeout,

		MapboxToken:      mapboxToken,
		MapboxEnabled:    mapboxEnabled,
		GeocodeCacheSize: parsePositiveInt("GEOCODE_CACHE_SIZE", 1000),

		SitesFile:      os.Getenv("SITES_FILE"),
		Location:       loc,
		DefaultLat:     defaultLat,
		DefaultLon:     defaultLon,
		DefaultRadius:  defaultRadius,
		MaxConcurrency: parsePositiveInt("MAX_CONCURRENCY", 8),

		FeedEnabled:  os.Getenv("FEED_ENABLED") == "true",
		FeedSchedule: sharedcfg.EnvOrDefault("FEED_SCHEDULE", "*/30 * * * *"),
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "river-conditions"),
	}

	if cfg.OpenWeatherAPIKey == "" {
		return nil, errors.New("OPENWEATHER_API_KEY is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if err := domain.ValidateRadius(cfg.DefaultRadius); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RADIUS: %w", err)
	}
	if cfg.FeedEnabled {
		if _, err := cron.ParseStandard(cfg.FeedSchedule); err != nil {
			return nil, fmt.Errorf("invalid FEED_SCHEDULE: %w", err)
		}
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when FEED_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when FEED_ENABLED is true")
		}
	}

	return cfg, nil
}

// DefaultReference is the location rivers are ranked against when a request
// does not supply one.
func (c *Config) DefaultReference() domain.Coordinate {
	return domain.Coordinate{Lat: c.DefaultLat, Lon: c.DefaultLon}
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
