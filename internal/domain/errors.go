package domain

import "errors"

var (
	// ErrWeatherUnavailable means the forecast provider could not be reached or
	// returned an unusable payload.
	ErrWeatherUnavailable = errors.New("weather unavailable")

	// ErrInvalidZip covers both malformed postal codes and geocoding failures.
	ErrInvalidZip = errors.New("invalid zip code")

	// ErrGaugeUnavailable is recorded by gauge adapters before they fall back to
	// SentinelGaugeSample. It is never returned past the adapter.
	ErrGaugeUnavailable = errors.New("gauge unavailable")

	// ErrSiteNotFound means the requested river id is not in the catalog.
	ErrSiteNotFound = errors.New("river not found")

	// ErrInvalidRadius means a search radius outside MinRadiusMiles..MaxRadiusMiles.
	ErrInvalidRadius = errors.New("invalid search radius")
)
