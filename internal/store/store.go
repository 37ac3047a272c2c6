// Package store implements the local-first location store: every mutation
// lands in the durable medium first, then is pushed to the backend when it is
// believed reachable, or queued for replay when it is not.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marcus/pinmap/internal/backend"
	"github.com/marcus/pinmap/internal/kv"
	"github.com/marcus/pinmap/internal/models"
)

// Durable keys. The names match what the browser build used in local
// storage so exported dumps stay interchangeable.
const (
	RecordsKey = "gis_apps_locations"
	PendingKey = "gis_apps_pending_sync"
)

// seqKey holds the highest queue sequence number ever issued. It survives
// ClearLocalData so a drain that started before a clear can never remove
// an entry enqueued after it.
const seqKey = "gis_apps_pending_seq"

const localIDPrefix = "loc-"

// ErrNotFound is returned when no local record has the requested id.
var ErrNotFound = errors.New("location not found")

// Backend is the remote locations API as seen by the store.
type Backend interface {
	Health(ctx context.Context) error
	ListLocations(ctx context.Context) ([]models.Location, error)
	CreateLocation(ctx context.Context, body backend.LocationBody) (*models.Location, error)
	UpdateLocation(ctx context.Context, id string, body backend.LocationBody) (*models.Location, error)
	DeleteLocation(ctx context.Context, id string) error
}

// Result is returned by mutating operations. Record is nil for deletes.
type Result struct {
	Record *models.Location `json:"data,omitempty"`
	Synced bool             `json:"synced"`
}

// Store is the local-first location store. It is safe for concurrent use.
type Store struct {
	kv      kv.Store
	backend Backend
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
	drop    DropPolicy
	offline bool

	available atomic.Bool
	drain     singleflight.Group

	lastProbe atomic.Pointer[time.Time]
	lastSync  atomic.Pointer[time.Time]
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides local id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithDropPolicy replaces the policy deciding which rejected queue entries
// are discarded instead of retried.
func WithDropPolicy(p DropPolicy) Option {
	return func(s *Store) { s.drop = p }
}

// WithOffline disables all backend traffic; every mutation is queued.
func WithOffline(offline bool) Option {
	return func(s *Store) { s.offline = offline }
}

// WithBackendAvailable sets the initial availability belief (default true).
func WithBackendAvailable(v bool) Option {
	return func(s *Store) { s.available.Store(v) }
}

// New creates a store over the given medium. b may be nil, which behaves
// like permanent offline mode.
func New(medium kv.Store, b Backend, opts ...Option) *Store {
	s := &Store{
		kv:      medium,
		backend: b,
		log:     slog.Default(),
		now:     time.Now,
		newID:   generateID,
		drop:    DefaultDropPolicy,
	}
	s.available.Store(true)
	for _, o := range opts {
		o(s)
	}
	if s.offline || s.backend == nil {
		s.available.Store(false)
	}
	return s
}

// Available reports the current belief about backend reachability.
func (s *Store) Available() bool {
	return s.available.Load()
}

// List returns all locations. When the backend is believed available the
// server's set is fetched and replaces the local one; otherwise, or when the
// fetch fails, the local set is returned.
func (s *Store) List(ctx context.Context) ([]models.Location, error) {
	if s.remoteEnabled() {
		remote, err := s.backend.ListLocations(ctx)
		if err == nil {
			for i := range remote {
				remote[i].Source = models.SourceBackend
			}
			if err := saveRecords(s.kv, remote); err != nil {
				return nil, err
			}
			return remote, nil
		}
		s.markUnavailable("list", err)
	}

	return loadRecords(s.kv)
}

// Get returns a local record by id.
func (s *Store) Get(id string) (*models.Location, error) {
	records, err := loadRecords(s.kv)
	if err != nil {
		return nil, err
	}
	idx := indexOf(records, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	loc := records[idx].Clone()
	return &loc, nil
}

// Pending returns a snapshot of the replay queue in enqueue order.
func (s *Store) Pending() ([]models.PendingOperation, error) {
	return loadPending(s.kv)
}

// Status summarizes local state.
func (s *Store) Status() (*models.StorageStatus, error) {
	records, err := loadRecords(s.kv)
	if err != nil {
		return nil, err
	}
	pending, err := loadPending(s.kv)
	if err != nil {
		return nil, err
	}

	return &models.StorageStatus{
		BackendAvailable: s.Available(),
		Offline:          s.offline || s.backend == nil,
		LocalCount:       len(records),
		PendingSync:      len(pending),
		LastProbeAt:      s.lastProbe.Load(),
		LastSyncAt:       s.lastSync.Load(),
	}, nil
}

// ClearLocalData removes all local records and the replay queue.
func (s *Store) ClearLocalData() error {
	if err := s.kv.Delete(RecordsKey, PendingKey); err != nil {
		return fmt.Errorf("clear local data: %w", err)
	}
	return nil
}

func (s *Store) remoteEnabled() bool {
	return !s.offline && s.backend != nil && s.available.Load()
}

func (s *Store) markUnavailable(op string, err error) {
	if s.available.Swap(false) {
		s.log.Warn("backend unavailable, working locally", "op", op, "err", err)
		return
	}
	s.log.Debug("backend call failed", "op", op, "err", err)
}

// --- durable medium helpers ---

func loadRecords(tx kv.Tx) ([]models.Location, error) {
	var records []models.Location
	if err := loadJSON(tx, RecordsKey, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func saveRecords(tx kv.Tx, records []models.Location) error {
	if records == nil {
		records = []models.Location{}
	}
	return saveJSON(tx, RecordsKey, records)
}

func loadPending(tx kv.Tx) ([]models.PendingOperation, error) {
	var ops []models.PendingOperation
	if err := loadJSON(tx, PendingKey, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func savePending(tx kv.Tx, ops []models.PendingOperation) error {
	if ops == nil {
		ops = []models.PendingOperation{}
	}
	return saveJSON(tx, PendingKey, ops)
}

func loadJSON(tx kv.Tx, key string, v any) error {
	data, err := tx.Get(key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func saveJSON(tx kv.Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := tx.Set(key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// updateRecords applies fn to the record set and saves the result in one
// exclusive write. Returning errUnchanged from fn skips the save.
func (s *Store) updateRecords(fn func(records []models.Location) ([]models.Location, error)) error {
	err := s.kv.Update(func(tx kv.Tx) error {
		records, err := loadRecords(tx)
		if err != nil {
			return err
		}
		next, err := fn(records)
		if err != nil {
			return err
		}
		return saveRecords(tx, next)
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

var errUnchanged = errors.New("unchanged")

// enqueue appends an operation to the durable queue. Seq numbers come from
// a persisted high-water mark and are never reused.
func (s *Store) enqueue(typ models.OpType, data models.Location) error {
	var pending int
	err := s.kv.Update(func(tx kv.Tx) error {
		ops, err := loadPending(tx)
		if err != nil {
			return err
		}
		var seq int64
		if err := loadJSON(tx, seqKey, &seq); err != nil {
			return err
		}
		for _, op := range ops {
			seq = max(seq, op.Seq)
		}
		seq++

		ops = append(ops, models.PendingOperation{
			Seq:       seq,
			Type:      typ,
			Data:      data,
			Timestamp: s.now().UTC(),
		})
		if err := savePending(tx, ops); err != nil {
			return err
		}
		pending = len(ops)
		return saveJSON(tx, seqKey, seq)
	})
	if err != nil {
		return err
	}
	s.log.Debug("queued for sync", "type", typ, "id", data.ID, "pending", pending)
	return nil
}

// hasPending reports whether any queued operation targets id.
func (s *Store) hasPending(id string) (bool, error) {
	ops, err := loadPending(s.kv)
	if err != nil {
		return false, err
	}
	for _, op := range ops {
		if op.Data.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func indexOf(records []models.Location, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// generateID returns a locally unique id such as "loc-1a2b3c4d5e6f7a8b".
func generateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s%x", localIDPrefix, time.Now().UnixNano())
	}
	return localIDPrefix + hex.EncodeToString(b)
}
