package domain

import (
	"math"
	"strings"
	"time"
)

// ClosedScore is assigned to every river known to be closed to angling.
const ClosedScore = -1

// Score ranks a river's fishing conditions. It is pure: the caller supplies
// now, already converted to the time zone whose weekday should count.
func Score(site RiverSite, weather WeatherSnapshot, trend TrendLabel, now time.Time) int {
	if site.Closed() {
		return ClosedScore
	}

	score := float64(site.AnticipatedReturn) / 1000
	score += trendBonus(trend)
	score += skyBonus(weather)
	score += weekdayBonus(now.Weekday())

	return int(math.Floor(score + 0.5))
}

func trendBonus(trend TrendLabel) float64 {
	switch trend {
	case TrendDropping:
		return 10
	case TrendStable:
		return 5
	default:
		return 0
	}
}

// skyBonus matches on the provider's sky category, or the free-text
// description when no category is present. Cloud and rain bonuses stack.
func skyBonus(weather WeatherSnapshot) float64 {
	sky := weather.Sky
	if sky == "" {
		sky = weather.Description
	}
	sky = strings.ToLower(sky)

	var bonus float64
	if strings.Contains(sky, "cloud") {
		bonus += 8
	}
	if strings.Contains(sky, "rain") {
		bonus += 5
	}
	return bonus
}

func weekdayBonus(day time.Weekday) float64 {
	switch day {
	case time.Tuesday, time.Wednesday, time.Thursday:
		return 10
	case time.Monday, time.Friday:
		return 5
	default:
		return 0
	}
}
