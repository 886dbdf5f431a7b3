// Package openweather implements the forecast provider and the default zip
// geocoder on top of the OpenWeather REST API.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// DefaultBaseURL is the public OpenWeather API host.
const DefaultBaseURL = "https://api.openweathermap.org"

var errEmptyForecast = errors.New("forecast list is empty")

// Client implements domain.WeatherProvider and domain.Geocoder.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeather client. Every request is bounded by timeout.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchForecast returns the first entry of the imperial-unit 5 day forecast.
// Every failure wraps domain.ErrWeatherUnavailable.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"appid": {c.apiKey},
		"units": {"imperial"},
	}

	start := time.Now()
	var resp forecastResponse
	err := c.getJSON(ctx, "/data/2.5/forecast", params, &resp)
	if err == nil && len(resp.List) == 0 {
		err = errEmptyForecast
	}
	c.observe("forecast", err, start)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, err)
	}

	return resp.List[0].snapshot(), nil
}

// GeocodeZip resolves a US postal code through the OpenWeather geocoding API.
func (c *Client) GeocodeZip(ctx context.Context, zip string) (domain.Coordinate, error) {
	params := url.Values{
		"zip":   {zip + ",US"},
		"appid": {c.apiKey},
	}

	start := time.Now()
	var resp zipResponse
	err := c.getJSON(ctx, "/geo/1.0/zip", params, &resp)
	if err == nil && (resp.Lat == nil || resp.Lon == nil) {
		err = fmt.Errorf("no coordinates for zip %s", zip)
	}
	c.observe("geocode", err, start)
	if err != nil {
		return domain.Coordinate{}, err
	}

	return domain.Coordinate{Lat: *resp.Lat, Lon: *resp.Lon}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openweather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(operation string, err error, start time.Time) {
	outcome := observability.OutcomeSuccess
	switch {
	case errors.Is(err, errEmptyForecast):
		outcome = observability.OutcomeEmpty
	case err != nil:
		outcome = observability.OutcomeError
	}
	c.metrics.ObserveUpstream(observability.ProviderOpenWeather, operation, outcome, time.Since(start).Seconds())
	if err != nil {
		c.logger.Debug("openweather request failed", "operation", operation, "error", err)
	}
}

// OpenWeather API response types.

type forecastResponse struct {
	List []forecastEntry `json:"list"`
}

type forecastEntry struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Pop float64 `json:"pop"`
}

func (e forecastEntry) snapshot() domain.WeatherSnapshot {
	s := domain.WeatherSnapshot{
		TemperatureF:             e.Main.Temp,
		PrecipitationProbability: e.Pop,
		WindSpeed:                e.Wind.Speed,
	}
	if len(e.Weather) > 0 {
		s.Sky = e.Weather[0].Main
		s.Description = e.Weather[0].Description
	}
	return s
}

type zipResponse struct {
	Zip  string   `json:"zip"`
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}
