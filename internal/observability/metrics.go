package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Upstream provider label values.
const (
	ProviderOpenWeather = "openweather"
	ProviderUSGS        = "usgs"
	ProviderMapbox      = "mapbox"
)

// Upstream outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the conditions service.
type Metrics struct {
	// Upstream provider metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: provider, operation={forecast,gauge,geocode}, outcome={success,error,empty}
	UpstreamDuration *prometheus.HistogramVec // labels: provider, operation
	GeocodeCache     *prometheus.CounterVec   // labels: result={hit,miss}

	// Aggregation metrics.
	RecordsBuilt     prometheus.Counter
	WeatherFallbacks prometheus.Counter
	GaugeSentinels   prometheus.Counter
	Scores           prometheus.Histogram
	RankDuration     prometheus.Histogram

	// Feed metrics.
	FeedBatches *prometheus.CounterVec // labels: outcome={success,error}
	FeedEnabled prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_conditions",
			Name:      "upstream_requests_total",
			Help:      "Upstream provider requests by provider, operation, and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "river_conditions",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "operation"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_conditions",
			Name:      "geocode_cache_total",
			Help:      "Zip geocoding cache lookups by result.",
		}, []string{"result"}),
		RecordsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_conditions",
			Name:      "records_built_total",
			Help:      "Total condition records built.",
		}),
		WeatherFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_conditions",
			Name:      "weather_fallbacks_total",
			Help:      "Records built with placeholder weather after a forecast failure.",
		}),
		GaugeSentinels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "river_conditions",
			Name:      "gauge_sentinels_total",
			Help:      "Gauge lookups that degraded to the unavailable sentinel sample.",
		}),
		Scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_conditions",
			Name:      "score",
			Help:      "Distribution of computed condition scores.",
			Buckets:   []float64{-1, 0, 5, 10, 15, 20, 25, 30, 35, 40, 50},
		}),
		RankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "river_conditions",
			Name:      "rank_duration_seconds",
			Help:      "Duration of a complete radius search including every upstream fetch.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		FeedBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "river_conditions",
			Name:      "feed_batches_total",
			Help:      "Scheduled feed batches by outcome.",
		}, []string{"outcome"}),
		FeedEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "river_conditions",
			Name:      "feed_enabled",
			Help:      "1 when the scheduled conditions feed is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.GeocodeCache,
		m.RecordsBuilt,
		m.WeatherFallbacks,
		m.GaugeSentinels,
		m.Scores,
		m.RankDuration,
		m.FeedBatches,
		m.FeedEnabled,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "river_conditions", Name: "upstream_requests_total"}, []string{"provider", "operation", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "river_conditions", Name: "upstream_request_duration_seconds"}, []string{"provider", "operation"}),
		GeocodeCache:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "river_conditions", Name: "geocode_cache_total"}, []string{"result"}),
		RecordsBuilt:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "river_conditions", Name: "records_built_total"}),
		WeatherFallbacks: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "river_conditions", Name: "weather_fallbacks_total"}),
		GaugeSentinels:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "river_conditions", Name: "gauge_sentinels_total"}),
		Scores:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "river_conditions", Name: "score"}),
		RankDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "river_conditions", Name: "rank_duration_seconds"}),
		FeedBatches:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "river_conditions", Name: "feed_batches_total"}, []string{"outcome"}),
		FeedEnabled:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "river_conditions", Name: "feed_enabled"}),
	}
}

// ObserveUpstream records one upstream request's outcome and duration.
func (m *Metrics) ObserveUpstream(provider, operation, outcome string, seconds float64) {
	m.UpstreamRequests.WithLabelValues(provider, operation, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(provider, operation).Observe(seconds)
}
