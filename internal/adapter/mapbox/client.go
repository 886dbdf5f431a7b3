package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// DefaultBaseURL is the Mapbox Geocoding v5 places endpoint.
const DefaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// errNoMatch is returned when Mapbox has no postcode feature for the query.
var errNoMatch = errors.New("mapbox: no postcode match")

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: DefaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// GeocodeZip resolves a US postal code to the centroid Mapbox reports for it.
func (c *Client) GeocodeZip(ctx context.Context, zip string) (domain.Coordinate, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(zip))
	params := url.Values{
		"access_token": {c.token},
		"country":      {"us"},
		"types":        {"postcode"},
		"limit":        {"1"},
	}

	start := time.Now()
	coord, err := c.doRequest(ctx, u+"?"+params.Encode())
	elapsed := time.Since(start).Seconds()

	switch {
	case errors.Is(err, errNoMatch):
		c.metrics.ObserveUpstream(observability.ProviderMapbox, "geocode", observability.OutcomeEmpty, elapsed)
	case err != nil:
		c.metrics.ObserveUpstream(observability.ProviderMapbox, "geocode", observability.OutcomeError, elapsed)
		c.logger.Warn("mapbox geocode failed", "zip", zip, "error", err)
	default:
		c.metrics.ObserveUpstream(observability.ProviderMapbox, "geocode", observability.OutcomeSuccess, elapsed)
	}
	return coord, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("zip geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinate{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Coordinate{}, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 || len(mapboxResp.Features[0].Center) != 2 {
		return domain.Coordinate{}, errNoMatch
	}

	// Mapbox uses lon,lat order.
	center := mapboxResp.Features[0].Center
	return domain.Coordinate{Lat: center[1], Lon: center[0]}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
