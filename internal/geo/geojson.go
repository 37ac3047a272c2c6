package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/pinmap/internal/models"
)

// ErrInvalidGeoJSON is returned when a document is not a feature collection.
var ErrInvalidGeoJSON = errors.New("invalid GeoJSON format")

// Defaults applied to imported features that lack them
const (
	DefaultImportName = "Unnamed Location"
)

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature. Geometry is kept raw on input so a
// malformed geometry in one feature doesn't reject the whole file.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// ToFeatureCollection renders locations as GeoJSON.
func ToFeatureCollection(locs []models.Location) (*FeatureCollection, error) {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(locs))}
	for _, l := range locs {
		geom, err := json.Marshal(l.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("marshal geometry for %s: %w", l.ID, err)
		}
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: geom,
			Properties: map[string]any{
				"id":          l.ID,
				"name":        l.Name,
				"category":    string(l.Category),
				"description": l.Description,
				"address":     l.Address,
				"created_at":  l.CreatedAt.UTC().Format(time.RFC3339),
				"updated_at":  l.UpdatedAt.UTC().Format(time.RFC3339),
			},
		})
	}
	return fc, nil
}

// ParseFeatureCollection decodes a GeoJSON document.
func ParseFeatureCollection(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeoJSON, err)
	}
	if fc.Features == nil {
		return nil, fmt.Errorf("%w: missing features array", ErrInvalidGeoJSON)
	}
	return &fc, nil
}

// Input converts a feature into create input. Geometry that can't be
// decoded is passed on as nil so the caller's fallback rule applies.
func (f Feature) Input() models.LocationInput {
	in := models.LocationInput{
		Name:        propString(f.Properties, "name"),
		Category:    models.Category(propString(f.Properties, "category")),
		Description: propString(f.Properties, "description"),
		Address:     propString(f.Properties, "address"),
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = DefaultImportName
	}
	if in.Category == "" {
		in.Category = models.CategoryPOI
	}

	var p models.GeoPoint
	if len(f.Geometry) > 0 && json.Unmarshal(f.Geometry, &p) == nil {
		in.Coordinates = &p
	}

	// Anything that isn't one of the core fields rides along as a property
	for k, v := range f.Properties {
		switch k {
		case "id", "name", "category", "description", "address", "created_at", "updated_at":
			continue
		}
		if in.Properties == nil {
			in.Properties = make(map[string]string)
		}
		in.Properties[k] = fmt.Sprint(v)
	}
	return in
}

func propString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
