package store

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/marcus/pinmap/internal/backend"
	"github.com/marcus/pinmap/internal/geo"
	"github.com/marcus/pinmap/internal/kv"
	"github.com/marcus/pinmap/internal/models"
)

// CopySuffix is appended to the name of a duplicated location.
const CopySuffix = " (Copy)"

// Create stores a new location locally and pushes it to the backend when it
// is believed available. Invalid coordinates are replaced by the fallback
// point. An error is returned only if the durable medium fails.
func (s *Store) Create(ctx context.Context, in models.LocationInput) (*Result, error) {
	coords, ok := geo.Normalize(in.Coordinates)
	if !ok {
		s.log.Warn("invalid coordinates, using fallback point", "name", in.Name, "coordinates", in.Coordinates)
	}
	category := in.Category
	if category == "" {
		category = models.CategoryPOI
	}

	now := s.now().UTC()
	loc := models.Location{
		ID:          s.newID(),
		Name:        in.Name,
		Category:    category,
		Description: in.Description,
		Address:     in.Address,
		Coordinates: coords,
		Properties:  maps.Clone(in.Properties),
		CreatedAt:   now,
		UpdatedAt:   now,
		Source:      models.SourceLocal,
	}

	err := s.updateRecords(func(records []models.Location) ([]models.Location, error) {
		return append(records, loc), nil
	})
	if err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}

	if !s.remoteEnabled() {
		if err := s.enqueue(models.OpCreate, loc); err != nil {
			return nil, err
		}
		return &Result{Record: &loc}, nil
	}

	created, err := s.backend.CreateLocation(ctx, backend.BodyFor(loc))
	if err != nil {
		s.markUnavailable("create", err)
		if err := s.enqueue(models.OpCreate, loc); err != nil {
			return nil, err
		}
		return &Result{Record: &loc}, nil
	}

	if err := s.adoptServerID(loc.ID, created.ID); err != nil {
		return nil, err
	}
	loc.ID = created.ID
	loc.Source = models.SourceBackend
	return &Result{Record: &loc, Synced: true}, nil
}

// Update merges patch into the local record and pushes the result. Invalid
// coordinates in the patch are ignored and the previous point is kept.
func (s *Store) Update(ctx context.Context, id string, patch models.LocationPatch) (*Result, error) {
	var loc models.Location
	err := s.updateRecords(func(records []models.Location) ([]models.Location, error) {
		idx := indexOf(records, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		loc = records[idx].Clone()
		s.applyPatch(&loc, patch)
		loc.UpdatedAt = s.now().UTC()
		records[idx] = loc
		return records, nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update location: %w", err)
	}

	if !s.shouldPush(id) {
		if err := s.enqueue(models.OpUpdate, loc); err != nil {
			return nil, err
		}
		return &Result{Record: &loc}, nil
	}

	if _, err := s.backend.UpdateLocation(ctx, id, backend.BodyFor(loc)); err != nil {
		s.markUnavailable("update", err)
		if err := s.enqueue(models.OpUpdate, loc); err != nil {
			return nil, err
		}
		return &Result{Record: &loc}, nil
	}

	if err := s.markSynced(id); err != nil {
		return nil, err
	}
	loc.Source = models.SourceBackend
	return &Result{Record: &loc, Synced: true}, nil
}

// Delete removes the local record unconditionally, then deletes it remotely
// or queues the delete.
func (s *Store) Delete(ctx context.Context, id string) (*Result, error) {
	err := s.updateRecords(func(records []models.Location) ([]models.Location, error) {
		idx := indexOf(records, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return append(records[:idx], records[idx+1:]...), nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("delete location: %w", err)
	}

	tombstone := models.Location{ID: id}
	if !s.shouldPush(id) {
		if err := s.enqueue(models.OpDelete, tombstone); err != nil {
			return nil, err
		}
		return &Result{}, nil
	}

	if err := s.backend.DeleteLocation(ctx, id); err != nil {
		s.markUnavailable("delete", err)
		if err := s.enqueue(models.OpDelete, tombstone); err != nil {
			return nil, err
		}
		return &Result{}, nil
	}
	return &Result{Synced: true}, nil
}

// Duplicate creates a copy of a local record, offset slightly so both
// markers stay visible.
func (s *Store) Duplicate(ctx context.Context, id string) (*Result, error) {
	src, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	coords := geo.Offset(src.Coordinates, geo.DuplicateOffset)
	return s.Create(ctx, models.LocationInput{
		Name:        src.Name + CopySuffix,
		Category:    src.Category,
		Description: src.Description,
		Address:     src.Address,
		Coordinates: &coords,
		Properties:  src.Properties,
	})
}

func (s *Store) applyPatch(loc *models.Location, p models.LocationPatch) {
	if p.Name != nil {
		loc.Name = *p.Name
	}
	if p.Category != nil {
		loc.Category = *p.Category
	}
	if p.Description != nil {
		loc.Description = *p.Description
	}
	if p.Address != nil {
		loc.Address = *p.Address
	}
	if p.Coordinates != nil {
		if geo.Valid(p.Coordinates) {
			loc.Coordinates = models.NewGeoPoint(p.Coordinates.Lng(), p.Coordinates.Lat())
		} else {
			s.log.Warn("invalid coordinates in update, keeping previous point", "id", loc.ID, "coordinates", p.Coordinates)
		}
	}
	if p.Properties != nil {
		loc.Properties = maps.Clone(p.Properties)
	}
}

// shouldPush reports whether a mutation of id may go straight to the
// backend. Records with queued entries go through the queue so replay
// order is preserved.
func (s *Store) shouldPush(id string) bool {
	if !s.remoteEnabled() {
		return false
	}
	queued, err := s.hasPending(id)
	if err != nil {
		s.log.Warn("read pending queue", "err", err)
		return false
	}
	return !queued
}

// adoptServerID rewrites a local id to the id the backend assigned, in the
// records and in any queued entries that still reference it. Both keys
// change in the same write.
func (s *Store) adoptServerID(localID, serverID string) error {
	return s.kv.Update(func(tx kv.Tx) error {
		records, err := loadRecords(tx)
		if err != nil {
			return err
		}
		if idx := indexOf(records, localID); idx >= 0 {
			records[idx].ID = serverID
			records[idx].Source = models.SourceBackend
			if err := saveRecords(tx, records); err != nil {
				return err
			}
		}

		if localID == serverID {
			return nil
		}
		ops, err := loadPending(tx)
		if err != nil {
			return err
		}
		changed := false
		for i := range ops {
			if ops[i].Data.ID == localID {
				ops[i].Data.ID = serverID
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return savePending(tx, ops)
	})
}

// markSynced flags the local record as confirmed by the backend.
func (s *Store) markSynced(id string) error {
	return s.updateRecords(func(records []models.Location) ([]models.Location, error) {
		idx := indexOf(records, id)
		if idx < 0 || records[idx].Source == models.SourceBackend {
			return nil, errUnchanged
		}
		records[idx].Source = models.SourceBackend
		return records, nil
	})
}
