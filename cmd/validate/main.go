// Command validate checks a river site catalog before it is deployed via
// SITES_FILE: structure, reach from the default reference location, angler
// links, and optionally that every USGS gauge currently reports a height.
//
// Usage:
//
//	go run ./cmd/validate -sites deploy/sites.json
//	go run ./cmd/validate -live
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/river-conditions-service/internal/adapter/usgs"
	"github.com/couchcryptid/river-conditions-service/internal/catalog"
	"github.com/couchcryptid/river-conditions-service/internal/domain"
	"github.com/couchcryptid/river-conditions-service/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	sitesFile := flag.String("sites", "", "site catalog JSON file; empty validates the built-in list")
	lat := flag.Float64("lat", 45.5155, "default reference latitude")
	lon := flag.Float64("lon", -122.6789, "default reference longitude")
	live := flag.Bool("live", false, "query every gauge on the USGS service")
	usgsURL := flag.String("usgs-url", usgs.DefaultBaseURL, "USGS instantaneous values endpoint")
	flag.Parse()

	if code := run(*sitesFile, domain.Coordinate{Lat: *lat, Lon: *lon}, *live, *usgsURL); code != 0 {
		os.Exit(code)
	}
}

func run(sitesFile string, ref domain.Coordinate, live bool, usgsURL string) int {
	fmt.Println("=== River Site Catalog Validation ===")
	fmt.Println()

	cat, err := catalog.Load(sitesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load catalog: %v\n", err)
		return 1
	}
	sites := cat.All()

	phases := []*phase{
		validateReach(sites, ref),
		validateLinks(sites),
	}
	if live {
		phases = append(phases, validateGauges(sites, usgsURL))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Sites: %d\n", len(sites))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validateReach flags sites no radius search from ref could ever return.
func validateReach(sites []domain.RiverSite, ref domain.Coordinate) *phase {
	p := &phase{name: "Reachable from default location"}
	for _, s := range sites {
		d := domain.DistanceMiles(ref.Lat, ref.Lon, s.Lat, s.Lon)
		if d > domain.MaxRadiusMiles {
			p.errorf("site %d (%s): %.0f miles away, beyond the %.0f mile maximum radius", s.ID, s.Name, d, float64(domain.MaxRadiusMiles))
		}
	}
	return p
}

// validateLinks checks the links shown on the detail view.
func validateLinks(sites []domain.RiverSite) *phase {
	p := &phase{name: "Angler links"}
	for _, s := range sites {
		if s.IsOpen == nil && s.FishingInfoURL == "" {
			p.errorf("site %d (%s): access status unknown and no fishingInfoUrl", s.ID, s.Name)
		}
		if s.FishingInfoURL != "" {
			if u, err := url.Parse(s.FishingInfoURL); err != nil || u.Scheme != "https" || u.Host == "" {
				p.errorf("site %d (%s): fishingInfoUrl %q is not an absolute https URL", s.ID, s.Name, s.FishingInfoURL)
			}
		}
		if s.IsOpen == nil && s.State == "" {
			p.errorf("site %d (%s): access status unknown and no state", s.ID, s.Name)
		}
	}
	return p
}

// validateGauges queries each gauge and flags ones with no current reading.
func validateGauges(sites []domain.RiverSite, usgsURL string) *phase {
	p := &phase{name: "Live gauge readings"}
	client := usgs.NewClient(usgsURL, 15*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	samples := make([]domain.GaugeSample, len(sites))
	var g errgroup.Group
	g.SetLimit(4)
	for i, s := range sites {
		g.Go(func() error {
			samples[i] = client.FetchGauge(context.Background(), s.GaugeSiteID)
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range sites {
		sample := samples[i]
		if !sample.Current.Available() {
			p.errorf("site %d (%s): gauge %s returned no current height", s.ID, s.Name, s.GaugeSiteID)
			continue
		}
		fmt.Printf("  %-32s %-10s %6.2f ft  %s\n", s.Name, s.GaugeSiteID, *sample.Current.Height, domain.ClassifyTrend(sample))
	}
	return p
}
