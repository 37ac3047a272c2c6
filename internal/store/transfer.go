package store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/marcus/pinmap/internal/geo"
	"github.com/marcus/pinmap/internal/models"
)

// Filter narrows a location list. Zero values match everything.
type Filter struct {
	Category models.Category
	// Query is matched case-insensitively against name, description and address
	Query string
}

// Match reports whether loc passes the filter.
func (f Filter) Match(loc models.Location) bool {
	if f.Category != "" && loc.Category != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(loc.Name), q) ||
		strings.Contains(strings.ToLower(loc.Description), q) ||
		strings.Contains(strings.ToLower(loc.Address), q)
}

// Apply returns the locations that pass the filter, preserving order.
func (f Filter) Apply(locs []models.Location) []models.Location {
	out := make([]models.Location, 0, len(locs))
	for _, l := range locs {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

// Search filters the local record set without contacting the backend.
func (s *Store) Search(f Filter) ([]models.Location, error) {
	records, err := loadRecords(s.kv)
	if err != nil {
		return nil, err
	}
	return f.Apply(records), nil
}

// ImportReport counts the outcome of a GeoJSON import.
type ImportReport struct {
	Imported int `json:"imported"`
	Synced   int `json:"synced"`
	Failed   int `json:"failed"`
}

// ImportGeoJSON creates one location per feature of a feature collection.
// A document that isn't a feature collection is rejected as a whole.
func (s *Store) ImportGeoJSON(ctx context.Context, data []byte) (*ImportReport, error) {
	fc, err := geo.ParseFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{}
	for i, f := range fc.Features {
		res, err := s.Create(ctx, f.Input())
		if err != nil {
			s.log.Warn("import feature failed", "index", i, "err", err)
			report.Failed++
			continue
		}
		report.Imported++
		if res.Synced {
			report.Synced++
		}
	}
	return report, nil
}

// ExportGeoJSON renders the current location set, sorted by name, as a
// feature collection. It goes through List so a reachable backend's set is
// what gets exported.
func (s *Store) ExportGeoJSON(ctx context.Context) (*geo.FeatureCollection, error) {
	locs, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	slices.SortStableFunc(locs, func(a, b models.Location) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return geo.ToFeatureCollection(locs)
}
