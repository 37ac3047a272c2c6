// Package geo validates and converts location coordinates and reads/writes
// GeoJSON feature collections.
package geo

import (
	"math"

	"github.com/marcus/pinmap/internal/models"
)

// Fallback point used when a new record arrives without usable coordinates
// (central Jakarta).
const (
	FallbackLng = 106.819561
	FallbackLat = -6.218561
)

// DuplicateOffset is added to both axes when a record is duplicated so the
// copy doesn't sit exactly on top of the original marker.
const DuplicateOffset = 0.001

// Fallback returns a fresh copy of the fallback point.
func Fallback() models.GeoPoint {
	return models.NewGeoPoint(FallbackLng, FallbackLat)
}

// Valid reports whether p holds exactly two finite numbers in [lng, lat]
// order within WGS84 bounds.
func Valid(p *models.GeoPoint) bool {
	if p == nil || len(p.Coordinates) != 2 {
		return false
	}
	return ValidPair(p.Coordinates[0], p.Coordinates[1])
}

// ValidPair reports whether lng/lat are finite and within bounds.
func ValidPair(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// Normalize returns a clean Point for p. ok is false when p is unusable, in
// which case the returned point is the fallback.
func Normalize(p *models.GeoPoint) (models.GeoPoint, bool) {
	if !Valid(p) {
		return Fallback(), false
	}
	return models.NewGeoPoint(p.Coordinates[0], p.Coordinates[1]), true
}

// Offset shifts a point by d degrees on both axes, clamping to bounds.
func Offset(p models.GeoPoint, d float64) models.GeoPoint {
	lng := clamp(p.Lng()+d, -180, 180)
	lat := clamp(p.Lat()+d, -90, 90)
	return models.NewGeoPoint(lng, lat)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
