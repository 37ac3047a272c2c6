package models

import (
	"time"
)

// Category is a location category. Unknown values are kept as-is.
type Category string

const (
	CategoryPOI        Category = "poi"
	CategoryRestaurant Category = "restaurant"
	CategoryHotel      Category = "hotel"
	CategoryShopping   Category = "shopping"
	CategoryEducation  Category = "education"
	CategoryHealth     Category = "health"
	CategoryTransport  Category = "transport"
	CategoryOther      Category = "other"
)

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryPOI,
	CategoryRestaurant,
	CategoryHotel,
	CategoryShopping,
	CategoryEducation,
	CategoryHealth,
	CategoryTransport,
	CategoryOther,
}

// IsKnown reports whether c is one of the predefined categories.
func (c Category) IsKnown() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Source marks where a record has been confirmed to exist.
type Source string

const (
	SourceLocal   Source = "local"
	SourceBackend Source = "backend"
)

// OpType is the kind of a queued operation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// GeometryPoint is the GeoJSON geometry type used for locations.
const GeometryPoint = "Point"

// GeoPoint is a GeoJSON point. Coordinates are always [lng, lat].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewGeoPoint builds a point from longitude and latitude.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: GeometryPoint, Coordinates: []float64{lng, lat}}
}

// Lng returns the longitude, or 0 if the point is malformed.
func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Lat returns the latitude, or 0 if the point is malformed.
func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// MapPoint converts storage order [lng, lat] to display order [lat, lng]
func (p GeoPoint) MapPoint() MapPoint {
	return MapPoint{Lat: p.Lat(), Lng: p.Lng()}
}

// MapPoint is a point in map display order (lat first), as used by
// slippy-map widgets. It is never persisted.
type MapPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoPoint converts display order back to storage order.
func (m MapPoint) GeoPoint() GeoPoint {
	return NewGeoPoint(m.Lng, m.Lat)
}

// Pair returns the point as a [lat, lng] pair.
func (m MapPoint) Pair() [2]float64 {
	return [2]float64{m.Lat, m.Lng}
}

// Location is a point-of-interest record.
type Location struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Category    Category          `json:"category"`
	Description string            `json:"description"`
	Address     string            `json:"address"`
	Coordinates GeoPoint          `json:"coordinates"`
	Properties  map[string]string `json:"properties,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Source      Source            `json:"source"`
}

// Clone returns a deep copy so callers can't alias stored slices and maps.
func (l Location) Clone() Location {
	c := l
	if l.Coordinates.Coordinates != nil {
		c.Coordinates.Coordinates = append([]float64(nil), l.Coordinates.Coordinates...)
	}
	if l.Properties != nil {
		c.Properties = make(map[string]string, len(l.Properties))
		for k, v := range l.Properties {
			c.Properties[k] = v
		}
	}
	return c
}

// LocationInput holds caller-supplied fields for a new location.
// A nil Coordinates means none were supplied.
type LocationInput struct {
	Name        string
	Category    Category
	Description string
	Address     string
	Coordinates *GeoPoint
	Properties  map[string]string
}

// LocationPatch holds fields to merge into an existing location.
// Nil fields are left unchanged.
type LocationPatch struct {
	Name        *string
	Category    *Category
	Description *string
	Address     *string
	Coordinates *GeoPoint
	Properties  map[string]string
}

// IsEmpty reports whether the patch changes nothing.
func (p LocationPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Description == nil &&
		p.Address == nil && p.Coordinates == nil && p.Properties == nil
}

// PendingOperation is a create/update/delete waiting to be replayed
// against the backend. For deletes Data only carries the ID.
type PendingOperation struct {
	Seq       int64     `json:"seq"`
	Type      OpType    `json:"type"`
	Data      Location  `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// StorageStatus summarizes local state for status displays.
type StorageStatus struct {
	BackendAvailable bool       `json:"backend_available"`
	Offline          bool       `json:"offline"`
	LocalCount       int        `json:"local_count"`
	PendingSync      int        `json:"pending_sync"`
	LastProbeAt      *time.Time `json:"last_probe_at,omitempty"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
}
