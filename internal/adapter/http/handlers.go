package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/river-conditions-service/internal/domain"
)

// handleListRivers ranks rivers around a reference location.
// GET /api/v1/rivers?lat=&lon=&radius= or ?zip=&radius=
func (s *Server) handleListRivers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	radius := s.defaults.RadiusMiles
	if raw := c.Query("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a number"})
			return
		}
		radius = v
	}

	ref, source, err := s.reference(ctx, c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	records, err := s.service.Rank(ctx, ref, radius)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": records,
		"meta": gin.H{
			"count":     len(records),
			"reference": ref,
			"source":    source,
			"radius":    radius,
		},
	})
}

// handleGetRiver returns the live record for one river.
// GET /api/v1/rivers/:id
func (s *Server) handleGetRiver(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "river id must be an integer"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	rec, err := s.service.Detail(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	links := gin.H{"gauge": rec.GaugeURL}
	// Without a known access status, point anglers at the state regulations.
	if rec.IsOpen == nil && rec.FishingInfoURL != "" {
		links["regulations"] = rec.FishingInfoURL
	}

	c.JSON(http.StatusOK, gin.H{
		"data": rec,
		"meta": gin.H{
			"access": accessStatus(rec.RiverSite),
			"links":  links,
		},
	})
}

// handleGeocode resolves a zip code to a coordinate.
// GET /api/v1/geocode/:zip
func (s *Server) handleGeocode(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	zip := c.Param("zip")
	coord, err := s.service.ResolveZip(ctx, zip)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": coord,
		"meta": gin.H{"zip": zip},
	})
}

// reference picks the search origin: zip, then lat/lon, then the default.
func (s *Server) reference(ctx context.Context, c *gin.Context) (domain.Coordinate, string, error) {
	if zip, ok := c.GetQuery("zip"); ok {
		coord, err := s.service.ResolveZip(ctx, zip)
		return coord, "zip", err
	}

	rawLat, hasLat := c.GetQuery("lat")
	rawLon, hasLon := c.GetQuery("lon")
	switch {
	case !hasLat && !hasLon:
		return s.defaults.Reference, "default", nil
	case hasLat != hasLon:
		return domain.Coordinate{}, "", errBadRequest("lat and lon must be supplied together")
	}

	lat, ok := parseDegrees(rawLat, 90)
	if !ok {
		return domain.Coordinate{}, "", errBadRequest("lat must be a number between -90 and 90")
	}
	lon, ok := parseDegrees(rawLon, 180)
	if !ok {
		return domain.Coordinate{}, "", errBadRequest("lon must be a number between -180 and 180")
	}
	return domain.Coordinate{Lat: lat, Lon: lon}, "coordinates", nil
}

// parseDegrees parses a finite angle within [-limit, limit]. NaN fails every
// range comparison, so it is rejected explicitly.
func parseDegrees(raw string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, v >= -limit && v <= limit
}

type errBadRequest string

func (e errBadRequest) Error() string { return string(e) }

// writeError maps domain errors to status codes. Anything unexpected is a 500
// with the detail kept in the log.
func (s *Server) writeError(c *gin.Context, err error) {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad):
		c.JSON(http.StatusBadRequest, gin.H{"error": bad.Error()})
	case errors.Is(err, domain.ErrInvalidZip):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid zip code"})
	case errors.Is(err, domain.ErrInvalidRadius):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSiteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "River not found"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func accessStatus(site domain.RiverSite) string {
	switch {
	case site.IsOpen == nil:
		return "unknown"
	case *site.IsOpen:
		return "open"
	default:
		return "closed"
	}
}
