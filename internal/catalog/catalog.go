// Package catalog holds the static list of monitored rivers.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
)

//go:embed sites.json
var defaultSites []byte

// Catalog is an immutable, ordered set of river sites.
type Catalog struct {
	sites []domain.RiverSite
	byID  map[int]int
}

// Load reads the catalog from path, or the embedded default list when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultSites
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sites file: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a JSON array of river sites.
func Parse(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var sites []domain.RiverSite
	if err := dec.Decode(&sites); err != nil {
		return nil, fmt.Errorf("decode sites: %w", err)
	}
	return New(sites)
}

// New validates sites and builds a catalog preserving their order.
func New(sites []domain.RiverSite) (*Catalog, error) {
	c := &Catalog{
		sites: make([]domain.RiverSite, len(sites)),
		byID:  make(map[int]int, len(sites)),
	}
	copy(c.sites, sites)

	for i, s := range c.sites {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("site %d (%s): %w", s.ID, s.Name, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %d", s.ID)
		}
		c.byID[s.ID] = i
	}
	return c, nil
}

func validate(s domain.RiverSite) error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.GaugeSiteID == "":
		return errors.New("usgsId is required")
	case s.AnticipatedReturn < 0:
		return errors.New("anticipatedReturn must not be negative")
	case s.Lat < -90 || s.Lat > 90:
		return errors.New("lat out of range")
	case s.Lon < -180 || s.Lon > 180:
		return errors.New("lon out of range")
	}
	return nil
}

// All returns every site in catalog order. The slice is a copy.
func (c *Catalog) All() []domain.RiverSite {
	out := make([]domain.RiverSite, len(c.sites))
	copy(out, c.sites)
	return out
}

// Find returns the site with the given id or domain.ErrSiteNotFound.
func (c *Catalog) Find(id int) (domain.RiverSite, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.RiverSite{}, fmt.Errorf("%w: id %d", domain.ErrSiteNotFound, id)
	}
	return c.sites[i], nil
}

// Len reports the number of sites.
func (c *Catalog) Len() int {
	return len(c.sites)
}

// CheckReadiness reports an error while the catalog has no sites to rank.
func (c *Catalog) CheckReadiness(_ context.Context) error {
	if len(c.sites) == 0 {
		return errors.New("site catalog is empty")
	}
	return nil
}
