package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/pinmap/internal/backend"
	"github.com/marcus/pinmap/internal/geo"
	"github.com/marcus/pinmap/internal/kv"
	"github.com/marcus/pinmap/internal/models"
)

// DropPolicy decides whether a queued entry the backend rejected should be
// discarded rather than retried on the next cycle.
type DropPolicy func(op models.PendingOperation, err error) bool

// DefaultDropPolicy discards create and update entries the server rejected
// for missing coordinates. Everything else is retried.
func DefaultDropPolicy(op models.PendingOperation, err error) bool {
	if op.Type == models.OpDelete {
		return false
	}
	return errors.Is(err, backend.ErrCoordinatesRequired)
}

// SyncReport summarizes one drain cycle.
type SyncReport struct {
	Replayed  int  `json:"replayed"`
	Dropped   int  `json:"dropped"`
	Failed    int  `json:"failed"`
	Deferred  int  `json:"deferred"`
	Remaining int  `json:"remaining"`
	Skipped   bool `json:"skipped,omitempty"`
}

// CheckBackendConnection probes backend liveness and records the result.
// It never returns an error; any failure means unavailable.
func (s *Store) CheckBackendConnection(ctx context.Context) (ok bool) {
	if s.offline || s.backend == nil {
		s.available.Store(false)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in health probe", "panic", r)
			s.available.Store(false)
			ok = false
		}
	}()

	err := s.backend.Health(ctx)
	now := s.now().UTC()
	s.lastProbe.Store(&now)

	ok = err == nil
	was := s.available.Swap(ok)
	switch {
	case ok && !was:
		s.log.Info("backend available")
	case !ok && was:
		s.log.Warn("backend unavailable", "err", err)
	case !ok:
		s.log.Debug("backend still unavailable", "err", err)
	}
	return ok
}

// SyncPending replays the queue against the backend in insertion order.
// Concurrent callers share a single drain, which runs to the end of the
// snapshot even if the caller's ctx is cancelled. Entries appended while a
// drain runs are left for the next cycle.
func (s *Store) SyncPending(ctx context.Context) (*SyncReport, error) {
	drainCtx := context.WithoutCancel(ctx)
	v, err, _ := s.drain.Do("drain", func() (any, error) {
		return s.syncPending(drainCtx)
	})
	if err != nil {
		return nil, err
	}
	r := *v.(*SyncReport)
	return &r, nil
}

func (s *Store) syncPending(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	if !s.remoteEnabled() {
		report.Skipped = true
		n, err := s.pendingCount()
		report.Remaining = n
		return report, err
	}

	ops, err := s.Pending()
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return report, nil
	}

	done := make(map[int64]bool, len(ops))
	blocked := make(map[string]bool)
	remap := make(map[string]string)

	for _, op := range ops {
		if id, ok := remap[op.Data.ID]; ok {
			op.Data.ID = id
		}
		if blocked[op.Data.ID] {
			report.Deferred++
			continue
		}

		if op.Type != models.OpDelete && !geo.Valid(&op.Data.Coordinates) {
			s.log.Warn("dropping queued entry with invalid coordinates",
				"seq", op.Seq, "type", op.Type, "id", op.Data.ID, "name", op.Data.Name)
			done[op.Seq] = true
			report.Dropped++
			continue
		}

		err := s.replay(ctx, op, remap)
		if err == nil {
			done[op.Seq] = true
			report.Replayed++
			continue
		}

		if errors.Is(err, backend.ErrUnreachable) {
			s.markUnavailable("sync", err)
			report.Failed++
			break
		}
		if s.drop(op, err) {
			s.log.Warn("dropping queued entry rejected by backend",
				"seq", op.Seq, "type", op.Type, "id", op.Data.ID, "name", op.Data.Name, "err", err)
			done[op.Seq] = true
			report.Dropped++
			continue
		}

		s.log.Info("sync failed, will retry", "seq", op.Seq, "type", op.Type, "id", op.Data.ID, "err", err)
		blocked[op.Data.ID] = true
		report.Failed++
	}

	remaining, err := s.removePending(done)
	if err != nil {
		return nil, err
	}
	report.Remaining = remaining
	if report.Replayed > 0 {
		now := s.now().UTC()
		s.lastSync.Store(&now)
	}
	if report.Replayed > 0 || report.Dropped > 0 {
		s.log.Info("sync complete", "replayed", report.Replayed, "dropped", report.Dropped,
			"failed", report.Failed, "remaining", report.Remaining)
	}
	return report, nil
}

// replay sends one queued entry to the backend.
func (s *Store) replay(ctx context.Context, op models.PendingOperation, remap map[string]string) error {
	switch op.Type {
	case models.OpCreate:
		created, err := s.backend.CreateLocation(ctx, backend.BodyFor(op.Data))
		if err != nil {
			return err
		}
		remap[op.Data.ID] = created.ID
		return s.adoptServerID(op.Data.ID, created.ID)

	case models.OpUpdate:
		if _, err := s.backend.UpdateLocation(ctx, op.Data.ID, backend.BodyFor(op.Data)); err != nil {
			return err
		}
		return s.markSynced(op.Data.ID)

	case models.OpDelete:
		err := s.backend.DeleteLocation(ctx, op.Data.ID)
		if errors.Is(err, backend.ErrNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown operation type %q", op.Type)
}

// removePending deletes the entries whose seq is in done and returns how
// many entries remain. Entries appended during the drain are kept.
func (s *Store) removePending(done map[int64]bool) (int, error) {
	var remaining int
	err := s.kv.Update(func(tx kv.Tx) error {
		ops, err := loadPending(tx)
		if err != nil {
			return err
		}
		if len(done) == 0 {
			remaining = len(ops)
			return nil
		}
		kept := ops[:0]
		for _, op := range ops {
			if !done[op.Seq] {
				kept = append(kept, op)
			}
		}
		remaining = len(kept)
		return savePending(tx, kept)
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *Store) pendingCount() (int, error) {
	ops, err := s.Pending()
	return len(ops), err
}
