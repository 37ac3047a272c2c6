package geo

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marcus/pinmap/internal/models"
)

func TestToFeatureCollection(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	locs := []models.Location{{
		ID:          "loc-1",
		Name:        "Monas",
		Category:    models.CategoryPOI,
		Coordinates: models.NewGeoPoint(106.8275, -6.1754),
		CreatedAt:   now,
		UpdatedAt:   now,
	}}

	fc, err := ToFeatureCollection(locs)
	if err != nil {
		t.Fatalf("ToFeatureCollection: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection: %+v", fc)
	}

	f := fc.Features[0]
	var geom models.GeoPoint
	if err := json.Unmarshal(f.Geometry, &geom); err != nil {
		t.Fatalf("unmarshal geometry: %v", err)
	}
	if geom.Lng() != 106.8275 || geom.Lat() != -6.1754 {
		t.Errorf("geometry order: got %v", geom.Coordinates)
	}
	if f.Properties["id"] != "loc-1" || f.Properties["name"] != "Monas" {
		t.Errorf("properties: got %v", f.Properties)
	}
	if f.Properties["created_at"] != "2024-05-01T10:00:00Z" {
		t.Errorf("created_at: got %v", f.Properties["created_at"])
	}
}

func TestParseFeatureCollection_Invalid(t *testing.T) {
	for _, doc := range []string{`not json`, `{"type":"FeatureCollection"}`, `[]`} {
		if _, err := ParseFeatureCollection([]byte(doc)); !errors.Is(err, ErrInvalidGeoJSON) {
			t.Errorf("ParseFeatureCollection(%q): got %v, want ErrInvalidGeoJSON", doc, err)
		}
	}
}

func TestFeatureInput_Defaults(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[106.8,-6.2]},"properties":{"name":"Kota Tua","category":"poi","rating":4}},
		{"type":"Feature","geometry":"garbage","properties":{}}
	]}`

	fc, err := ParseFeatureCollection([]byte(doc))
	if err != nil {
		t.Fatalf("ParseFeatureCollection: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(fc.Features))
	}

	in := fc.Features[0].Input()
	if in.Name != "Kota Tua" || in.Category != models.CategoryPOI {
		t.Errorf("first: got %+v", in)
	}
	if in.Coordinates == nil || in.Coordinates.Lng() != 106.8 {
		t.Errorf("first coords: got %+v", in.Coordinates)
	}
	if in.Properties["rating"] != "4" {
		t.Errorf("extra properties should be carried, got %v", in.Properties)
	}

	in = fc.Features[1].Input()
	if in.Name != DefaultImportName {
		t.Errorf("name default: got %q", in.Name)
	}
	if in.Category != models.CategoryPOI {
		t.Errorf("category default: got %q", in.Category)
	}
	if in.Coordinates != nil {
		t.Errorf("garbage geometry should decode to nil, got %+v", in.Coordinates)
	}
}
