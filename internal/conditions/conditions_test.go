package conditions_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-conditions-service/internal/adapter/openweather"
	"github.com/couchcryptid/river-conditions-service/internal/adapter/usgs"
	"github.com/couchcryptid/river-conditions-service/internal/catalog"
	"github.com/couchcryptid/river-conditions-service/internal/conditions"
	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

const (
	portlandLat = 45.5155
	portlandLon = -122.6789
)

var (
	// 17:00 UTC on Wednesday 2024-04-24 is 10:00 in Portland.
	wednesday  = time.Date(2024, time.April, 24, 17, 0, 0, 0, time.UTC)
	pacific, _ = time.LoadLocation("America/Los_Angeles")
	portland   = domain.Coordinate{Lat: portlandLat, Lon: portlandLon}
)

// --- fakes ---

type fakeWeather struct {
	snapshot domain.WeatherSnapshot
	err      error
	calls    atomic.Int64
}

func (f *fakeWeather) FetchForecast(_ context.Context, _, _ float64) (domain.WeatherSnapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.WeatherSnapshot{}, f.err
	}
	return f.snapshot, nil
}

type fakeGauge struct {
	samples map[string]domain.GaugeSample
	delay   time.Duration

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeGauge) FetchGauge(_ context.Context, siteID string) domain.GaugeSample {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if s, ok := f.samples[siteID]; ok {
		return s
	}
	return domain.SentinelGaugeSample()
}

type countingGeocoder struct {
	calls atomic.Int64
	coord domain.Coordinate
}

func (g *countingGeocoder) GeocodeZip(_ context.Context, _ string) (domain.Coordinate, error) {
	g.calls.Add(1)
	return g.coord, nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(b bool) *bool { return &b }

func site(id int, lat float64, anticipatedReturn int) domain.RiverSite {
	return domain.RiverSite{
		ID:                id,
		Name:              fmt.Sprintf("River %d", id),
		Lat:               lat,
		Lon:               portlandLon,
		GaugeSiteID:       fmt.Sprintf("1400000%d", id),
		IsOpen:            boolPtr(true),
		AnticipatedReturn: anticipatedReturn,
		State:             "OR",
	}
}

func sample(current, historical float64) domain.GaugeSample {
	c, h := current, historical
	return domain.GaugeSample{
		Current:    domain.GaugeReading{Time: wednesday, Height: &c},
		Historical: domain.GaugeReading{Time: wednesday.Add(-24 * time.Hour), Height: &h},
	}
}

func newAggregator(w domain.WeatherProvider, g domain.GaugeProvider, clock clockwork.Clock, metrics *observability.Metrics) *conditions.Aggregator {
	return conditions.NewAggregator(w, g, clock, pacific, metrics, discardLogger())
}

func newService(t *testing.T, sites []domain.RiverSite, w domain.WeatherProvider, g domain.GaugeProvider, geocoder domain.Geocoder) *conditions.Service {
	t.Helper()
	cat, err := catalog.New(sites)
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	agg := newAggregator(w, g, clockwork.NewFakeClockAt(wednesday), metrics)
	return conditions.NewService(cat, agg, geocoder, 4, metrics, discardLogger())
}

func recordIDs(records []domain.ConditionRecord) []int {
	ids := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// --- aggregator ---

func TestBuildConditionRecord_Scenario(t *testing.T) {
	s := site(1, portlandLat, 8000)
	weather := &fakeWeather{snapshot: domain.WeatherSnapshot{TemperatureF: 51, Description: "broken clouds"}}
	gauge := &fakeGauge{samples: map[string]domain.GaugeSample{s.GaugeSiteID: sample(3.1, 3.4)}}
	metrics := observability.NewMetricsForTesting()

	rec := newAggregator(weather, gauge, clockwork.NewFakeClockAt(wednesday), metrics).BuildConditionRecord(context.Background(), s)

	assert.Equal(t, domain.TrendDropping, rec.GaugeTrend)
	assert.Equal(t, 36, rec.Score)
	assert.Nil(t, rec.Distance)
	assert.True(t, rec.UpdatedAt.Equal(wednesday))
	assert.Equal(t, pacific, rec.UpdatedAt.Location())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecordsBuilt), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.WeatherFallbacks), 0)
}

func TestBuildConditionRecord_ClosedSite(t *testing.T) {
	s := site(1, portlandLat, 8000)
	s.IsOpen = boolPtr(false)
	weather := &fakeWeather{snapshot: domain.WeatherSnapshot{Description: "broken clouds"}}
	gauge := &fakeGauge{samples: map[string]domain.GaugeSample{s.GaugeSiteID: sample(3.1, 3.4)}}

	rec := newAggregator(weather, gauge, clockwork.NewFakeClockAt(wednesday), observability.NewMetricsForTesting()).BuildConditionRecord(context.Background(), s)

	assert.Equal(t, domain.ClosedScore, rec.Score)
	assert.Equal(t, domain.TrendDropping, rec.GaugeTrend)
}

func TestBuildConditionRecord_WeatherFailureUsesPlaceholder(t *testing.T) {
	s := site(1, portlandLat, 8000)
	weather := &fakeWeather{err: fmt.Errorf("%w: %w", domain.ErrWeatherUnavailable, context.DeadlineExceeded)}
	gauge := &fakeGauge{samples: map[string]domain.GaugeSample{s.GaugeSiteID: sample(3.1, 3.4)}}
	metrics := observability.NewMetricsForTesting()

	rec := newAggregator(weather, gauge, clockwork.NewFakeClockAt(wednesday), metrics).BuildConditionRecord(context.Background(), s)

	assert.Equal(t, domain.PlaceholderWeather(), rec.Weather)
	assert.Equal(t, 28, rec.Score) // 8 + 10 + 10, no sky bonus
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WeatherFallbacks), 0)
}

func TestBuildConditionRecord_TimeZoneDecidesWeekday(t *testing.T) {
	// 03:00 UTC Saturday is still Friday evening in Portland.
	saturdayUTC := time.Date(2024, time.April, 27, 3, 0, 0, 0, time.UTC)
	s := site(1, portlandLat, 0)
	weather := &fakeWeather{snapshot: domain.WeatherSnapshot{Sky: "Clear"}}
	gauge := &fakeGauge{}
	metrics := observability.NewMetricsForTesting()

	pacificRec := conditions.NewAggregator(weather, gauge, clockwork.NewFakeClockAt(saturdayUTC), pacific, metrics, discardLogger()).
		BuildConditionRecord(context.Background(), s)
	utcRec := conditions.NewAggregator(weather, gauge, clockwork.NewFakeClockAt(saturdayUTC), nil, metrics, discardLogger()).
		BuildConditionRecord(context.Background(), s)

	assert.Equal(t, 5, pacificRec.Score)
	assert.Equal(t, 0, utcRec.Score)
}

// rendezvous makes the weather and gauge fakes wait for each other. If the
// fetches ran one after the other, neither would see its peer start.
type rendezvous struct {
	weatherStarted chan struct{}
	gaugeStarted   chan struct{}
	overlapped     atomic.Int64
}

func newRendezvous() *rendezvous {
	return &rendezvous{weatherStarted: make(chan struct{}), gaugeStarted: make(chan struct{})}
}

func (r *rendezvous) meet(ctx context.Context, mine, peer chan struct{}) {
	close(mine)
	select {
	case <-peer:
		r.overlapped.Add(1)
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

type rendezvousWeather struct{ r *rendezvous }

func (w rendezvousWeather) FetchForecast(ctx context.Context, _, _ float64) (domain.WeatherSnapshot, error) {
	w.r.meet(ctx, w.r.weatherStarted, w.r.gaugeStarted)
	return domain.WeatherSnapshot{Sky: "Rain"}, nil
}

type rendezvousGauge struct{ r *rendezvous }

func (g rendezvousGauge) FetchGauge(ctx context.Context, _ string) domain.GaugeSample {
	g.r.meet(ctx, g.r.gaugeStarted, g.r.weatherStarted)
	return sample(3.0, 3.0)
}

func TestBuildConditionRecord_FetchesConcurrently(t *testing.T) {
	r := newRendezvous()
	agg := newAggregator(rendezvousWeather{r}, rendezvousGauge{r}, clockwork.NewFakeClockAt(wednesday), observability.NewMetricsForTesting())

	rec := agg.BuildConditionRecord(context.Background(), site(1, portlandLat, 0))

	assert.Equal(t, int64(2), r.overlapped.Load(), "weather and gauge fetches should be in flight together")
	assert.Equal(t, "Rain", rec.Weather.Sky)
	assert.Equal(t, domain.TrendStable, rec.GaugeTrend)
}

// Both upstreams degrade: the forecast times out and the gauge payload is
// malformed. A record is still produced from return and weekday alone.
func TestBuildConditionRecord_UpstreamDegradation(t *testing.T) {
	slowForecast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slowForecast.Close()

	malformedGauge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":{"timeSeries":[{"values":`))
	}))
	defer malformedGauge.Close()

	metrics := observability.NewMetricsForTesting()
	weather := openweather.NewClient("key", slowForecast.URL, 50*time.Millisecond, metrics, discardLogger())
	gauge := usgs.NewClient(malformedGauge.URL, time.Second, metrics, discardLogger())

	rec := newAggregator(weather, gauge, clockwork.NewFakeClockAt(wednesday), metrics).
		BuildConditionRecord(context.Background(), site(1, portlandLat, 8000))

	assert.Equal(t, domain.PlaceholderWeather(), rec.Weather)
	assert.Equal(t, domain.SentinelGaugeSample(), rec.Gauge)
	assert.Equal(t, domain.TrendUnknown, rec.GaugeTrend)
	assert.Equal(t, 18, rec.Score) // 8 + 10 (Wednesday)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WeatherFallbacks), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GaugeSentinels), 0)
}

// --- service ---

func TestRank_FiltersAndSortsByScore(t *testing.T) {
	sites := []domain.RiverSite{
		site(1, portlandLat, 2000),     // 0 mi
		site(2, portlandLat+0.5, 9000), // ~35 mi
		site(3, portlandLat+2, 20000),  // ~138 mi, outside
		site(4, portlandLat+0.2, 2000), // ~14 mi
	}
	closed := site(5, portlandLat+0.1, 50000)
	closed.IsOpen = boolPtr(false)
	sites = append(sites, closed)

	gauge := &fakeGauge{samples: map[string]domain.GaugeSample{
		sites[0].GaugeSiteID: sample(2.0, 2.0), // stable
		sites[1].GaugeSiteID: sample(2.0, 2.5), // dropping
		sites[3].GaugeSiteID: sample(4.0, 4.0), // stable
	}}
	weather := &fakeWeather{snapshot: domain.WeatherSnapshot{Sky: "Clear", Description: "clear sky"}}
	svc := newService(t, sites, weather, gauge, nil)

	records, err := svc.Rank(context.Background(), portland, 100)
	require.NoError(t, err)

	// 1 and 4 tie at 17 and keep catalog order; closed sorts last.
	if diff := cmp.Diff([]int{2, 1, 4, 5}, recordIDs(records)); diff != "" {
		t.Errorf("rank order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int{29, 17, 17, -1}, []int{records[0].Score, records[1].Score, records[2].Score, records[3].Score})

	distances := make([]float64, len(records))
	for i, r := range records {
		require.NotNil(t, r.Distance)
		distances[i] = *r.Distance
	}
	assert.Equal(t, []float64{35, 0, 14, 7}, distances)
	assert.Equal(t, int64(4), weather.calls.Load(), "sites outside the radius are never fetched")
}

// advancingWeather moves the fake clock forward as if the forecast took step.
type advancingWeather struct {
	clock *clockwork.FakeClock
	step  time.Duration
}

func (w advancingWeather) FetchForecast(_ context.Context, _, _ float64) (domain.WeatherSnapshot, error) {
	w.clock.Advance(w.step)
	return domain.WeatherSnapshot{Sky: "Clouds"}, nil
}

func TestRank_DurationUsesInjectedClock(t *testing.T) {
	cat, err := catalog.New([]domain.RiverSite{site(1, portlandLat, 0)})
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(wednesday)
	metrics := observability.NewMetricsForTesting()
	agg := newAggregator(advancingWeather{clock: clock, step: 3 * time.Second}, &fakeGauge{}, clock, metrics)
	svc := conditions.NewService(cat, agg, nil, 4, metrics, discardLogger())

	_, err = svc.Rank(context.Background(), portland, 100)
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, metrics.RankDuration.Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.InDelta(t, 3.0, m.GetHistogram().GetSampleSum(), 1e-9)
}

func TestRank_RadiusBoundaryInclusive(t *testing.T) {
	edge := site(1, portlandLat, 0)
	edgeDistance := domain.DistanceMiles(portlandLat, portlandLon, edge.Lat+1, edge.Lon)
	edge.Lat++
	svc := newService(t, []domain.RiverSite{edge}, &fakeWeather{}, &fakeGauge{}, nil)

	records, err := svc.Rank(context.Background(), portland, edgeDistance)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRank_InvalidRadius(t *testing.T) {
	svc := newService(t, []domain.RiverSite{site(1, portlandLat, 0)}, &fakeWeather{}, &fakeGauge{}, nil)

	for _, radius := range []float64{0, 49.9, 1000.1} {
		_, err := svc.Rank(context.Background(), portland, radius)
		require.ErrorIs(t, err, domain.ErrInvalidRadius, "radius %v", radius)
	}
}

func TestRank_NoRiversInRange(t *testing.T) {
	far := site(1, portlandLat+10, 0)
	svc := newService(t, []domain.RiverSite{far}, &fakeWeather{}, &fakeGauge{}, nil)

	records, err := svc.Rank(context.Background(), portland, 50)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRank_BoundedConcurrency(t *testing.T) {
	var sites []domain.RiverSite
	for i := 1; i <= 12; i++ {
		sites = append(sites, site(i, portlandLat+float64(i)*0.01, 1000))
	}
	cat, err := catalog.New(sites)
	require.NoError(t, err)
	gauge := &fakeGauge{delay: 20 * time.Millisecond}
	metrics := observability.NewMetricsForTesting()
	agg := newAggregator(&fakeWeather{}, gauge, clockwork.NewFakeClockAt(wednesday), metrics)
	svc := conditions.NewService(cat, agg, nil, 3, metrics, discardLogger())

	records, err := svc.Rank(context.Background(), portland, 50)
	require.NoError(t, err)
	assert.Len(t, records, 12)
	assert.LessOrEqual(t, gauge.maxInFlight.Load(), int64(3))
}

func TestRank_DefaultCatalogAroundPortland(t *testing.T) {
	cat, err := catalog.Load("")
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	agg := newAggregator(&fakeWeather{}, &fakeGauge{}, clockwork.NewFakeClockAt(wednesday), metrics)
	svc := conditions.NewService(cat, agg, nil, 8, metrics, discardLogger())

	all, err := svc.Rank(context.Background(), portland, domain.DefaultRadiusMiles)
	require.NoError(t, err)
	assert.Len(t, all, cat.Len())

	near, err := svc.Rank(context.Background(), portland, domain.MinRadiusMiles)
	require.NoError(t, err)
	ids := recordIDs(near)
	assert.ElementsMatch(t, []int{3, 4, 5}, ids)
}

func TestRank_RecordsAreIndependent(t *testing.T) {
	sites := []domain.RiverSite{site(1, portlandLat, 1000), site(2, portlandLat+0.1, 2000)}
	var mu sync.Mutex
	seen := map[string]int{}
	gauge := &recordingGauge{mu: &mu, seen: seen}
	svc := newService(t, sites, &fakeWeather{}, gauge, nil)

	records, err := svc.Rank(context.Background(), portland, 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]int{sites[0].GaugeSiteID: 1, sites[1].GaugeSiteID: 1}, seen)
	assert.NotSame(t, records[0].Distance, records[1].Distance)
}

type recordingGauge struct {
	mu   *sync.Mutex
	seen map[string]int
}

func (g *recordingGauge) FetchGauge(_ context.Context, siteID string) domain.GaugeSample {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[siteID]++
	return domain.SentinelGaugeSample()
}

func TestDetail(t *testing.T) {
	s := site(7, portlandLat, 8000)
	gauge := &fakeGauge{samples: map[string]domain.GaugeSample{s.GaugeSiteID: sample(3.1, 3.4)}}
	svc := newService(t, []domain.RiverSite{s}, &fakeWeather{snapshot: domain.WeatherSnapshot{Sky: "Clouds"}}, gauge, nil)

	rec, err := svc.Detail(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, rec.ID)
	assert.Equal(t, 36, rec.Score)
	assert.Nil(t, rec.Distance)
}

func TestDetail_NotFound(t *testing.T) {
	svc := newService(t, []domain.RiverSite{site(1, portlandLat, 0)}, &fakeWeather{}, &fakeGauge{}, nil)

	_, err := svc.Detail(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrSiteNotFound)
}

func TestResolveZip(t *testing.T) {
	geocoder := &countingGeocoder{coord: domain.Coordinate{Lat: 45.5073, Lon: -122.6901}}
	svc := newService(t, []domain.RiverSite{site(1, portlandLat, 0)}, &fakeWeather{}, &fakeGauge{}, geocoder)

	_, err := svc.ResolveZip(context.Background(), "9999")
	require.ErrorIs(t, err, domain.ErrInvalidZip)
	assert.Equal(t, int64(0), geocoder.calls.Load())

	coord, err := svc.ResolveZip(context.Background(), "97201")
	require.NoError(t, err)
	assert.Equal(t, geocoder.coord, coord)
	assert.Equal(t, int64(1), geocoder.calls.Load())
}

func TestResolveZip_NoGeocoder(t *testing.T) {
	svc := newService(t, []domain.RiverSite{site(1, portlandLat, 0)}, &fakeWeather{}, &fakeGauge{}, nil)

	_, err := svc.ResolveZip(context.Background(), "97201")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidZip))
}
