package serverdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/marcus/pinmap/internal/models"
)

// timeLayout sorts lexically so created_at can be ordered as text on both
// dialects.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var locationColumns = []string{
	"id", "name", "category", "description", "address",
	"lng", "lat", "properties", "created_at", "updated_at",
}

// ListLocations returns every location, oldest first.
func (db *ServerDB) ListLocations(ctx context.Context) ([]models.Location, error) {
	rows, err := db.sb.Select(locationColumns...).
		From("locations").
		OrderBy("created_at", "id").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	locs := []models.Location{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locs = append(locs, *l)
	}
	return locs, rows.Err()
}

// GetLocation returns one location or ErrNotFound.
func (db *ServerDB) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	row := db.sb.Select(locationColumns...).
		From("locations").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)
	l, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// CreateLocation inserts a location under a fresh server id. ID, timestamps
// and Source on l are ignored.
func (db *ServerDB) CreateLocation(ctx context.Context, l models.Location) (*models.Location, error) {
	props, err := encodeProperties(l.Properties)
	if err != nil {
		return nil, err
	}

	now := db.now().UTC().Truncate(time.Microsecond)
	out := l.Clone()
	out.ID = uuid.NewString()
	out.CreatedAt = now
	out.UpdatedAt = now
	out.Source = models.SourceBackend
	if out.Category == "" {
		out.Category = models.CategoryPOI
	}

	_, err = db.sb.Insert("locations").
		Columns(locationColumns...).
		Values(out.ID, out.Name, string(out.Category), out.Description, out.Address,
			out.Coordinates.Lng(), out.Coordinates.Lat(), props,
			formatTime(now), formatTime(now)).
		ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return &out, nil
}

// UpdateLocation replaces the editable fields of location id.
func (db *ServerDB) UpdateLocation(ctx context.Context, id string, l models.Location) (*models.Location, error) {
	props, err := encodeProperties(l.Properties)
	if err != nil {
		return nil, err
	}
	if l.Category == "" {
		l.Category = models.CategoryPOI
	}

	now := db.now().UTC()
	res, err := db.sb.Update("locations").
		SetMap(map[string]interface{}{
			"name":        l.Name,
			"category":    string(l.Category),
			"description": l.Description,
			"address":     l.Address,
			"lng":         l.Coordinates.Lng(),
			"lat":         l.Coordinates.Lat(),
			"properties":  props,
			"updated_at":  formatTime(now),
		}).
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return db.GetLocation(ctx, id)
}

// DeleteLocation removes location id or returns ErrNotFound.
func (db *ServerDB) DeleteLocation(ctx context.Context, id string) error {
	res, err := db.sb.Delete("locations").
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountLocations returns the number of stored locations.
func (db *ServerDB) CountLocations(ctx context.Context) (int, error) {
	var n int
	err := db.sb.Select("COUNT(*)").From("locations").QueryRowContext(ctx).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return n, nil
}

func scanLocation(row sq.RowScanner) (*models.Location, error) {
	var (
		l                    models.Location
		category, props      string
		lng, lat             float64
		createdAt, updatedAt string
	)
	err := row.Scan(&l.ID, &l.Name, &category, &l.Description, &l.Address,
		&lng, &lat, &props, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan location: %w", err)
	}
	l.Category = models.Category(category)
	l.Coordinates = models.NewGeoPoint(lng, lat)
	l.Source = models.SourceBackend
	if props != "" && props != "{}" {
		if err := json.Unmarshal([]byte(props), &l.Properties); err != nil {
			return nil, fmt.Errorf("decode properties for %s: %w", l.ID, err)
		}
	}
	l.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	l.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &l, nil
}

func encodeProperties(p map[string]string) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
