// Package usgs reads gauge height from the USGS NWIS Instantaneous Values
// service.
package usgs

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// DefaultBaseURL is the NWIS Instantaneous Values endpoint.
const DefaultBaseURL = "https://waterservices.usgs.gov/nwis/iv/"

const (
	gaugeHeightParam = "00065"
	// Slightly more than a day so a reading 23 to 25 hours old is usually present.
	lookbackPeriod = "PT26H"
	noDataValue    = -999999
)

var errNoSeries = errors.New("no gauge height series in response")

// Client implements domain.GaugeProvider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a USGS client. Every request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchGauge returns the current and roughly day-old gauge height readings for
// a site. Any failure degrades to domain.SentinelGaugeSample.
func (c *Client) FetchGauge(ctx context.Context, siteID string) domain.GaugeSample {
	start := time.Now()
	readings, err := c.fetchReadings(ctx, siteID)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		outcome := observability.OutcomeError
		if errors.Is(err, errNoSeries) {
			outcome = observability.OutcomeEmpty
		}
		c.metrics.ObserveUpstream(observability.ProviderUSGS, "gauge", outcome, elapsed)
		c.metrics.GaugeSentinels.Inc()
		c.logger.Warn("gauge unavailable, using sentinel sample",
			"site_id", siteID,
			"error", fmt.Errorf("%w: %w", domain.ErrGaugeUnavailable, err),
		)
		return domain.SentinelGaugeSample()
	}

	c.metrics.ObserveUpstream(observability.ProviderUSGS, "gauge", observability.OutcomeSuccess, elapsed)
	return domain.NewGaugeSample(readings)
}

func (c *Client) fetchReadings(ctx context.Context, siteID string) ([]domain.GaugeReading, error) {
	params := url.Values{
		"format":      {"json"},
		"sites":       {siteID},
		"parameterCd": {gaugeHeightParam},
		"period":      {lookbackPeriod},
		"siteStatus":  {"all"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usgs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("usgs API error: status %d: %s", resp.StatusCode, body)
	}

	var ivResp ivResponse
	if err := json.NewDecoder(resp.Body).Decode(&ivResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	readings := ivResp.readings()
	if len(readings) == 0 {
		return nil, errNoSeries
	}
	return readings, nil
}

// NWIS IV JSON response types (WaterML 1.1 rendered as JSON).

type ivResponse struct {
	Value struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	Variable struct {
		NoDataValue *float64 `json:"noDataValue"`
	} `json:"variable"`
	Values []struct {
		Value []point `json:"value"`
	} `json:"values"`
}

type point struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}

// readings flattens the first series into domain readings, most recent first.
// Points without a parsable timestamp are dropped; no-data, unparsable and
// non-finite values become unavailable readings.
func (r ivResponse) readings() []domain.GaugeReading {
	if len(r.Value.TimeSeries) == 0 || len(r.Value.TimeSeries[0].Values) == 0 {
		return nil
	}
	series := r.Value.TimeSeries[0]

	noData := float64(noDataValue)
	if series.Variable.NoDataValue != nil {
		noData = *series.Variable.NoDataValue
	}

	points := series.Values[0].Value
	out := make([]domain.GaugeReading, 0, len(points))
	for _, p := range points {
		ts, err := time.Parse(time.RFC3339, p.DateTime)
		if err != nil {
			continue
		}
		reading := domain.GaugeReading{Time: ts}
		if v, err := strconv.ParseFloat(p.Value, 64); err == nil && usable(v, noData) {
			reading.Height = &v
		}
		out = append(out, reading)
	}

	slices.SortStableFunc(out, func(a, b domain.GaugeReading) int {
		return cmp.Compare(b.Time.UnixNano(), a.Time.UnixNano())
	})
	return out
}

// usable reports whether v is a real height. ParseFloat accepts "NaN" and
// "Inf", which JSON cannot encode.
func usable(v, noData float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v != noData && v != noDataValue
}
