// Package conditions builds and ranks live condition records for the river
// catalog.
package conditions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// Aggregator joins a site's forecast and gauge sample into a scored record.
type Aggregator struct {
	weather  domain.WeatherProvider
	gauge    domain.GaugeProvider
	clock    clockwork.Clock
	location *time.Location
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. Weekday bonuses are evaluated in loc;
// a nil loc means UTC.
func NewAggregator(weather domain.WeatherProvider, gauge domain.GaugeProvider, clock clockwork.Clock, loc *time.Location, metrics *observability.Metrics, logger *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		weather:  weather,
		gauge:    gauge,
		clock:    clock,
		location: loc,
		metrics:  metrics,
		logger:   logger,
	}
}

// BuildConditionRecord fetches weather and gauge data for site concurrently
// and returns the scored record. It never fails: a forecast error yields the
// placeholder snapshot and gauge failures arrive as the sentinel sample.
func (a *Aggregator) BuildConditionRecord(ctx context.Context, site domain.RiverSite) domain.ConditionRecord {
	return a.build(ctx, site, nil)
}

func (a *Aggregator) build(ctx context.Context, site domain.RiverSite, distance *float64) domain.ConditionRecord {
	var (
		weather domain.WeatherSnapshot
		sample  domain.GaugeSample
		wg      sync.WaitGroup
	)

	wg.Go(func() {
		w, err := a.weather.FetchForecast(ctx, site.Lat, site.Lon)
		if err != nil {
			a.logger.Warn("forecast unavailable, using placeholder",
				"river_id", site.ID,
				"river", site.Name,
				"error", err,
			)
			a.metrics.WeatherFallbacks.Inc()
			w = domain.PlaceholderWeather()
		}
		weather = w
	})
	wg.Go(func() {
		sample = a.gauge.FetchGauge(ctx, site.GaugeSiteID)
	})
	wg.Wait()

	rec := domain.NewConditionRecord(site, weather, sample, a.clock.Now().In(a.location), distance)

	a.metrics.RecordsBuilt.Inc()
	a.metrics.Scores.Observe(float64(rec.Score))
	a.logger.Debug("condition record built",
		"river_id", rec.ID,
		"score", rec.Score,
		"gauge_trend", rec.GaugeTrend,
	)
	return rec
}
