package domain

import (
	"context"
	"fmt"
	"regexp"
)

// zipRe matches a five-digit US postal code.
var zipRe = regexp.MustCompile(`^\d{5}$`)

// ValidateZip rejects anything that is not exactly five ASCII digits.
func ValidateZip(zip string) error {
	if !zipRe.MatchString(zip) {
		return fmt.Errorf("%w: %q must be five digits", ErrInvalidZip, zip)
	}
	return nil
}

// ResolveZip validates zip before handing it to the geocoder. Geocoder failures
// are reported as ErrInvalidZip too, with the provider error still wrapped.
func ResolveZip(ctx context.Context, geocoder Geocoder, zip string) (Coordinate, error) {
	if err := ValidateZip(zip); err != nil {
		return Coordinate{}, err
	}
	if geocoder == nil {
		return Coordinate{}, fmt.Errorf("%w: %s: no geocoder configured", ErrInvalidZip, zip)
	}

	coord, err := geocoder.GeocodeZip(ctx, zip)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: %s: %w", ErrInvalidZip, zip, err)
	}
	return coord, nil
}
