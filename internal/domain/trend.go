package domain

// TrendLabel describes how the gauge height moved over the last day.
type TrendLabel string

const (
	TrendRising   TrendLabel = "rising"
	TrendDropping TrendLabel = "dropping"
	TrendStable   TrendLabel = "stable"
	TrendUnknown  TrendLabel = "unknown"
)

// ClassifyTrend compares the current and historical gauge heights. Equality is
// exact; any unavailable reading yields TrendUnknown.
func ClassifyTrend(sample GaugeSample) TrendLabel {
	if !sample.Current.Available() || !sample.Historical.Available() {
		return TrendUnknown
	}

	current, historical := *sample.Current.Height, *sample.Historical.Height
	switch {
	case current > historical:
		return TrendRising
	case current < historical:
		return TrendDropping
	case current == historical:
		return TrendStable
	default:
		// NaN compares false every way.
		return TrendUnknown
	}
}
