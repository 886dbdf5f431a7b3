package domain

import "time"

// The historical reading must be between 23 and 25 hours older than current.
const (
	historicalWindowMin = 23 * time.Hour
	historicalWindowMax = 25 * time.Hour
	historicalTarget    = 24 * time.Hour
)

// SentinelGaugeSample is the sample used when a gauge cannot be read: both
// readings are unavailable, which classifies as TrendUnknown.
func SentinelGaugeSample() GaugeSample {
	return GaugeSample{}
}

// NewGaugeSample builds a sample from readings ordered most-recent-first.
// Current is readings[0]; historical is chosen by SelectHistorical.
func NewGaugeSample(readings []GaugeReading) GaugeSample {
	if len(readings) == 0 {
		return SentinelGaugeSample()
	}
	return GaugeSample{
		Current:    readings[0],
		Historical: SelectHistorical(readings[0], readings[1:]),
	}
}

// SelectHistorical picks the available candidate whose age relative to current
// falls in the 23h–25h window, preferring the one closest to 24h. Without a
// match it falls back to the oldest available candidate. It returns an
// unavailable reading when no candidate is available.
func SelectHistorical(current GaugeReading, candidates []GaugeReading) GaugeReading {
	var (
		best     GaugeReading
		bestDiff time.Duration
		found    bool
		oldest   GaugeReading
		haveOld  bool
	)

	for _, r := range candidates {
		if !r.Available() {
			continue
		}
		if !haveOld || r.Time.Before(oldest.Time) {
			oldest = r
			haveOld = true
		}

		age := current.Time.Sub(r.Time)
		if age < historicalWindowMin || age > historicalWindowMax {
			continue
		}
		diff := absDuration(age - historicalTarget)
		if !found || diff < bestDiff {
			best, bestDiff, found = r, diff, true
		}
	}

	if found {
		return best
	}
	if haveOld {
		return oldest
	}
	return GaugeReading{}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
