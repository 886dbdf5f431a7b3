package domain

import (
	"context"
	"time"
)

// Coordinate is a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RiverSite is the static description of a monitored river.
type RiverSite struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	GaugeSiteID       string  `json:"usgsId"`
	IsOpen            *bool   `json:"isOpen"` // nil when the regulatory status is unknown
	AnticipatedReturn int     `json:"anticipatedReturn"`
	State             string  `json:"state,omitempty"`
	FishingInfoURL    string  `json:"fishingInfoUrl,omitempty"`
}

// Closed reports whether the river is known to be closed to angling.
func (s RiverSite) Closed() bool {
	return s.IsOpen != nil && !*s.IsOpen
}

// GaugeURL links to the public USGS page for the site's gauge.
func (s RiverSite) GaugeURL() string {
	return "https://waterdata.usgs.gov/monitoring-location/" + s.GaugeSiteID + "/"
}

// GaugeReading is a single gauge-height measurement. A nil Height marks the
// reading as unavailable.
type GaugeReading struct {
	Time   time.Time `json:"time,omitzero"`
	Height *float64  `json:"height"`
}

// Available reports whether the reading carries a numeric height.
func (r GaugeReading) Available() bool {
	return r.Height != nil
}

// GaugeSample pairs the current reading with the one taken roughly a day earlier.
type GaugeSample struct {
	Current    GaugeReading `json:"current"`
	Historical GaugeReading `json:"historical"`
}

// WeatherSnapshot holds the forecast values displayed alongside a river.
type WeatherSnapshot struct {
	TemperatureF             float64 `json:"temperatureF"`
	Sky                      string  `json:"sky"`         // provider category, e.g. "Clouds"
	Description              string  `json:"description"` // e.g. "broken clouds"
	PrecipitationProbability float64 `json:"precipitationProbability"`
	WindSpeed                float64 `json:"windSpeed"` // displayed as knots
}

// ConditionRecord is a river enriched with live conditions and its score.
// Records are built fresh on every request and never modified afterwards.
type ConditionRecord struct {
	RiverSite
	GaugeURL   string          `json:"gaugeUrl"`
	Weather    WeatherSnapshot `json:"weather"`
	Gauge      GaugeSample     `json:"gauge"`
	GaugeTrend TrendLabel      `json:"gaugeTrend"`
	Score      int             `json:"score"`
	Distance   *float64        `json:"distance,omitempty"` // miles; set only by radius filtering
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ConditionBatch is one ranked snapshot of every river near a reference location.
type ConditionBatch struct {
	ID          string
	Reference   Coordinate
	RadiusMiles float64
	GeneratedAt time.Time
	Records     []ConditionRecord
}

// WeatherProvider fetches the current forecast for a coordinate.
type WeatherProvider interface {
	FetchForecast(ctx context.Context, lat, lon float64) (WeatherSnapshot, error)
}

// GaugeProvider fetches gauge readings for a site. Implementations degrade to
// SentinelGaugeSample instead of returning errors.
type GaugeProvider interface {
	FetchGauge(ctx context.Context, siteID string) GaugeSample
}

// Geocoder resolves a postal code to a coordinate.
type Geocoder interface {
	GeocodeZip(ctx context.Context, zip string) (Coordinate, error)
}
