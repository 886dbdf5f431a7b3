package conditions

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// SiteSource lists the rivers that can be ranked.
type SiteSource interface {
	All() []domain.RiverSite
	Find(id int) (domain.RiverSite, error)
}

// Service ranks catalog rivers around a reference location.
type Service struct {
	sites          SiteSource
	aggregator     *Aggregator
	clock          clockwork.Clock
	geocoder       domain.Geocoder
	maxConcurrency int
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewService creates a Service timed by the aggregator's clock. geocoder may be
// nil, in which case every zip lookup fails with domain.ErrInvalidZip.
func NewService(sites SiteSource, aggregator *Aggregator, geocoder domain.Geocoder, maxConcurrency int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Service{
		sites:          sites,
		aggregator:     aggregator,
		clock:          aggregator.clock,
		geocoder:       geocoder,
		maxConcurrency: maxConcurrency,
		metrics:        metrics,
		logger:         logger,
	}
}

// Rank builds a record for every river within radiusMiles of ref and returns
// them sorted by descending score. Ties keep catalog order.
func (s *Service) Rank(ctx context.Context, ref domain.Coordinate, radiusMiles float64) ([]domain.ConditionRecord, error) {
	if err := domain.ValidateRadius(radiusMiles); err != nil {
		return nil, err
	}
	start := s.clock.Now()

	type candidate struct {
		site     domain.RiverSite
		distance float64
	}
	var nearby []candidate
	for _, site := range s.sites.All() {
		d := domain.DistanceMiles(ref.Lat, ref.Lon, site.Lat, site.Lon)
		if d <= radiusMiles {
			nearby = append(nearby, candidate{site: site, distance: d})
		}
	}

	records := make([]domain.ConditionRecord, len(nearby))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i, c := range nearby {
		g.Go(func() error {
			records[i] = s.aggregator.build(ctx, c.site, &c.distance)
			return nil
		})
	}
	_ = g.Wait() // builders never fail

	slices.SortStableFunc(records, func(a, b domain.ConditionRecord) int {
		return cmp.Compare(b.Score, a.Score)
	})

	s.metrics.RankDuration.Observe(s.clock.Since(start).Seconds())
	s.logger.Info("rivers ranked",
		"lat", ref.Lat,
		"lon", ref.Lon,
		"radius_miles", radiusMiles,
		"rivers", len(records),
		"duration", s.clock.Since(start),
	)
	return records, nil
}

// Detail builds the record for a single river.
func (s *Service) Detail(ctx context.Context, id int) (domain.ConditionRecord, error) {
	site, err := s.sites.Find(id)
	if err != nil {
		return domain.ConditionRecord{}, err
	}
	return s.aggregator.BuildConditionRecord(ctx, site), nil
}

// ResolveZip converts a five-digit zip code to a reference coordinate.
func (s *Service) ResolveZip(ctx context.Context, zip string) (domain.Coordinate, error) {
	coord, err := domain.ResolveZip(ctx, s.geocoder, zip)
	if err != nil {
		s.logger.Info("zip resolution failed", "zip", zip, "error", err)
		return domain.Coordinate{}, err
	}
	return coord, nil
}
