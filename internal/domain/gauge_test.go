package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gaugeNow = time.Date(2024, time.April, 26, 15, 0, 0, 0, time.UTC)

func reading(age time.Duration, height float64) GaugeReading {
	return GaugeReading{Time: gaugeNow.Add(-age), Height: &height}
}

func unavailable(age time.Duration) GaugeReading {
	return GaugeReading{Time: gaugeNow.Add(-age)}
}

func TestSelectHistorical_PrefersWindow(t *testing.T) {
	current := reading(0, 4.2)
	candidates := []GaugeReading{
		reading(6*time.Hour, 4.0),
		reading(23*time.Hour, 3.8),
		reading(25*time.Hour+time.Minute, 3.5),
	}

	got := SelectHistorical(current, candidates)

	require.True(t, got.Available())
	assert.Equal(t, gaugeNow.Add(-23*time.Hour), got.Time)
	assert.Equal(t, 3.8, *got.Height)
}

func TestSelectHistorical_ClosestTo24h(t *testing.T) {
	current := reading(0, 4.2)
	candidates := []GaugeReading{
		reading(23*time.Hour, 3.9),
		reading(24*time.Hour+15*time.Minute, 3.7),
		reading(25*time.Hour, 3.6),
	}

	got := SelectHistorical(current, candidates)

	assert.Equal(t, 3.7, *got.Height)
}

func TestSelectHistorical_WindowBoundsInclusive(t *testing.T) {
	current := reading(0, 1)

	got := SelectHistorical(current, []GaugeReading{reading(25*time.Hour, 2), reading(26*time.Hour, 3)})
	assert.Equal(t, 2.0, *got.Height)

	got = SelectHistorical(current, []GaugeReading{reading(23*time.Hour, 4), reading(2*time.Hour, 5)})
	assert.Equal(t, 4.0, *got.Height)
}

func TestSelectHistorical_FallsBackToOldest(t *testing.T) {
	current := reading(0, 4.2)
	candidates := []GaugeReading{
		reading(1*time.Hour, 4.1),
		reading(8*time.Hour, 3.9),
		reading(3*time.Hour, 4.0),
	}

	got := SelectHistorical(current, candidates)

	assert.Equal(t, gaugeNow.Add(-8*time.Hour), got.Time)
}

func TestSelectHistorical_SkipsUnavailable(t *testing.T) {
	current := reading(0, 4.2)
	candidates := []GaugeReading{
		unavailable(24 * time.Hour),
		reading(10*time.Hour, 3.9),
		unavailable(30 * time.Hour),
	}

	got := SelectHistorical(current, candidates)

	assert.Equal(t, 3.9, *got.Height)
}

func TestSelectHistorical_NoCandidates(t *testing.T) {
	got := SelectHistorical(reading(0, 4.2), nil)
	assert.False(t, got.Available())

	got = SelectHistorical(reading(0, 4.2), []GaugeReading{unavailable(24 * time.Hour)})
	assert.False(t, got.Available())
}

func TestNewGaugeSample(t *testing.T) {
	t.Run("empty is sentinel", func(t *testing.T) {
		s := NewGaugeSample(nil)
		assert.Equal(t, SentinelGaugeSample(), s)
		assert.False(t, s.Current.Available())
		assert.False(t, s.Historical.Available())
	})

	t.Run("single reading has no history", func(t *testing.T) {
		s := NewGaugeSample([]GaugeReading{reading(0, 4.2)})
		assert.True(t, s.Current.Available())
		assert.False(t, s.Historical.Available())
		assert.Equal(t, TrendUnknown, ClassifyTrend(s))
	})

	t.Run("first reading is current", func(t *testing.T) {
		s := NewGaugeSample([]GaugeReading{
			reading(0, 4.2),
			reading(12*time.Hour, 4.4),
			reading(24*time.Hour, 4.6),
		})
		assert.Equal(t, 4.2, *s.Current.Height)
		assert.Equal(t, 4.6, *s.Historical.Height)
		assert.Equal(t, TrendDropping, ClassifyTrend(s))
	})
}

func TestClassifyTrend(t *testing.T) {
	h := func(v float64) GaugeReading { return GaugeReading{Height: &v} }

	tests := []struct {
		name   string
		sample GaugeSample
		want   TrendLabel
	}{
		{"rising", GaugeSample{Current: h(5.1), Historical: h(4.9)}, TrendRising},
		{"dropping", GaugeSample{Current: h(4.9), Historical: h(5.1)}, TrendDropping},
		{"stable", GaugeSample{Current: h(5), Historical: h(5)}, TrendStable},
		{"tiny difference is not stable", GaugeSample{Current: h(5.0000001), Historical: h(5)}, TrendRising},
		{"missing current", GaugeSample{Historical: h(5)}, TrendUnknown},
		{"missing historical", GaugeSample{Current: h(5)}, TrendUnknown},
		{"sentinel", SentinelGaugeSample(), TrendUnknown},
		{"NaN", GaugeSample{Current: h(math.NaN()), Historical: h(5)}, TrendUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTrend(tt.sample))
		})
	}
}

func TestClassifyTrend_MatchesComparison(t *testing.T) {
	values := []float64{-1.5, 0, 0.1, 2.25, 2.2500001, 10}
	for _, c := range values {
		for _, p := range values {
			s := GaugeSample{Current: GaugeReading{Height: &c}, Historical: GaugeReading{Height: &p}}
			got := ClassifyTrend(s)
			switch {
			case c > p:
				assert.Equal(t, TrendRising, got)
			case c < p:
				assert.Equal(t, TrendDropping, got)
			default:
				assert.Equal(t, TrendStable, got)
			}
		}
	}
}
