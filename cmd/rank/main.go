// Command rank prints one ranking of nearby rivers and exits. It reads the same
// environment as the service (OPENWEATHER_API_KEY is required).
//
// Usage:
//
//	go run ./cmd/rank -zip 97201 -radius 200
//	go run ./cmd/rank -lat 46.4165 -lon -117.0177 -json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/river-conditions-service/internal/adapter/geocache"
	"github.com/couchcryptid/river-conditions-service/internal/adapter/mapbox"
	"github.com/couchcryptid/river-conditions-service/internal/adapter/openweather"
	"github.com/couchcryptid/river-conditions-service/internal/adapter/usgs"
	"github.com/couchcryptid/river-conditions-service/internal/catalog"
	"github.com/couchcryptid/river-conditions-service/internal/conditions"
	"github.com/couchcryptid/river-conditions-service/internal/config"
	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lat := flag.Float64("lat", cfg.DefaultLat, "reference latitude")
	lon := flag.Float64("lon", cfg.DefaultLon, "reference longitude")
	zip := flag.String("zip", "", "five-digit US zip code; overrides -lat/-lon")
	radius := flag.Float64("radius", cfg.DefaultRadius, "search radius in miles (50-1000)")
	sitesFile := flag.String("sites", cfg.SitesFile, "site catalog JSON file; empty uses the built-in list")
	asJSON := flag.Bool("json", false, "print records as JSON instead of a table")
	verbose := flag.Bool("v", false, "log upstream warnings to stderr")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	metrics := observability.NewMetricsForTesting()

	sites, err := catalog.Load(*sitesFile)
	if err != nil {
		return err
	}

	weather := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.UpstreamTimeout, metrics, logger)
	gauge := usgs.NewClient(cfg.USGSBaseURL, cfg.UpstreamTimeout, metrics, logger)
	var zipGeocoder domain.Geocoder = weather
	if cfg.MapboxEnabled {
		zipGeocoder = mapbox.NewClient(cfg.MapboxToken, cfg.UpstreamTimeout, metrics, logger)
	}

	aggregator := conditions.NewAggregator(weather, gauge, clockwork.NewRealClock(), cfg.Location, metrics, logger)
	svc := conditions.NewService(sites, aggregator, geocache.New(zipGeocoder, 1, metrics), cfg.MaxConcurrency, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ref := domain.Coordinate{Lat: *lat, Lon: *lon}
	if *zip != "" {
		if ref, err = svc.ResolveZip(ctx, *zip); err != nil {
			return err
		}
	}

	records, err := svc.Rank(ctx, ref, *radius)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	return printTable(os.Stdout, ref, *radius, records)
}

func printTable(w io.Writer, ref domain.Coordinate, radius float64, records []domain.ConditionRecord) error {
	fmt.Fprintf(w, "%d rivers within %.0f miles of %.4f, %.4f\n\n", len(records), radius, ref.Lat, ref.Lon)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tRIVER\tMILES\tTEMP\tSKY\tGAUGE\tTREND")
	for i, r := range records {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%.0f°F\t%s\t%s\t%s\n",
			i+1, r.Score, r.Name, miles(r.Distance), r.Weather.TemperatureF, r.Weather.Description, height(r.Gauge.Current), r.GaugeTrend)
	}
	return tw.Flush()
}

func miles(d *float64) string {
	if d == nil {
		return "-"
	}
	return strconv.FormatFloat(*d, 'f', 0, 64)
}

func height(r domain.GaugeReading) string {
	if !r.Available() {
		return "n/a"
	}
	return strconv.FormatFloat(*r.Height, 'f', 2, 64) + " ft"
}
