package domain

import (
	"math"
	"time"
)

// NewConditionRecord assembles a record from a site and whatever conditions
// were obtained for it, deriving the gauge trend and score. distance is nil
// unless the record was built for a radius search; it is rounded to whole miles.
func NewConditionRecord(site RiverSite, weather WeatherSnapshot, gauge GaugeSample, now time.Time, distance *float64) ConditionRecord {
	trend := ClassifyTrend(gauge)

	rec := ConditionRecord{
		RiverSite:  site,
		GaugeURL:   site.GaugeURL(),
		Weather:    weather,
		Gauge:      gauge,
		GaugeTrend: trend,
		Score:      Score(site, weather, trend, now),
		UpdatedAt:  now,
	}
	if distance != nil {
		d := math.Round(*distance)
		rec.Distance = &d
	}
	return rec
}
