package domain

import (
	"fmt"
	"math"
)

// earthRadiusMiles is the mean Earth radius used for haversine distances.
const earthRadiusMiles = 3963

// Search radius bounds for ranking rivers around a reference location.
const (
	MinRadiusMiles     = 50
	MaxRadiusMiles     = 1000
	DefaultRadiusMiles = 400
)

// DistanceMiles returns the great-circle distance between two coordinates
// given in decimal degrees.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// ValidateRadius rejects search radii outside the supported range.
func ValidateRadius(miles float64) error {
	if math.IsNaN(miles) || miles < MinRadiusMiles || miles > MaxRadiusMiles {
		return fmt.Errorf("%w: %g miles (must be %d-%d)", ErrInvalidRadius, miles, MinRadiusMiles, MaxRadiusMiles)
	}
	return nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
