package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConditionRecord(t *testing.T) {
	site := RiverSite{
		ID:                1,
		Name:              "Deschutes River",
		Lat:               45.6387,
		Lon:               -121.1865,
		GaugeSiteID:       "14103000",
		IsOpen:            boolPtr(true),
		AnticipatedReturn: 8000,
		State:             "OR",
	}
	gauge := NewGaugeSample([]GaugeReading{reading(0, 3.1), reading(24*time.Hour, 3.4)})
	weather := WeatherSnapshot{TemperatureF: 48.2, Sky: "Clouds", Description: "broken clouds", PrecipitationProbability: 0.2, WindSpeed: 4.6}
	distance := 77.4

	rec := NewConditionRecord(site, weather, gauge, wednesday, &distance)

	assert.Equal(t, site, rec.RiverSite)
	assert.Equal(t, "https://waterdata.usgs.gov/monitoring-location/14103000/", rec.GaugeURL)
	assert.Equal(t, weather, rec.Weather)
	assert.Equal(t, gauge, rec.Gauge)
	assert.Equal(t, TrendDropping, rec.GaugeTrend)
	assert.Equal(t, 36, rec.Score)
	assert.Equal(t, wednesday, rec.UpdatedAt)
	require.NotNil(t, rec.Distance)
	assert.Equal(t, 77.0, *rec.Distance)

	// The caller's distance variable is not aliased.
	distance = 500
	assert.Equal(t, 77.0, *rec.Distance)
}

func TestNewConditionRecord_TotalDataLoss(t *testing.T) {
	site := openSite(6000)

	rec := NewConditionRecord(site, PlaceholderWeather(), SentinelGaugeSample(), monday, nil)

	assert.Equal(t, TrendUnknown, rec.GaugeTrend)
	assert.Equal(t, 11, rec.Score) // 6 + Monday 5
	assert.Nil(t, rec.Distance)
	assert.Equal(t, PlaceholderDescription, rec.Weather.Description)
}

func TestRiverSite_Closed(t *testing.T) {
	assert.False(t, RiverSite{}.Closed())
	assert.False(t, RiverSite{IsOpen: boolPtr(true)}.Closed())
	assert.True(t, RiverSite{IsOpen: boolPtr(false)}.Closed())
}
