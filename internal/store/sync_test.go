package store

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/marcus/pinmap/internal/backend"
	"github.com/marcus/pinmap/internal/models"
)

func TestMonasScenario(t *testing.T) {
	fb := newFakeBackend()
	fb.setDown(true)
	s := newTestStore(t, fb)
	ctx := context.Background()

	res, err := s.Create(ctx, models.LocationInput{
		Name:        "Monas",
		Coordinates: point(106.8275, -6.1754),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Synced {
		t.Fatal("got synced=true with backend down")
	}
	if n := pendingLen(t, s); n != 1 {
		t.Fatalf("pending: got %d, want 1", n)
	}

	fb.setDown(false)
	if !s.CheckBackendConnection(ctx) {
		t.Fatal("CheckBackendConnection: got false, want true")
	}
	report, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if report.Replayed != 1 || report.Remaining != 0 {
		t.Errorf("report: %+v", report)
	}
	if n := pendingLen(t, s); n != 0 {
		t.Fatalf("pending after sync: got %d, want 0", n)
	}

	locs, err := s.Search(Filter{Query: "monas"})
	if err != nil || len(locs) != 1 {
		t.Fatalf("Search: %v %+v", err, locs)
	}
	if locs[0].Source != models.SourceBackend {
		t.Errorf("source: got %q, want backend", locs[0].Source)
	}
	if locs[0].ID != "srv-1" {
		t.Errorf("id: got %q, want srv-1", locs[0].ID)
	}

	st, _ := s.Status()
	if st.LastSyncAt == nil || st.LastProbeAt == nil {
		t.Errorf("status timestamps not recorded: %+v", st)
	}
}

func TestSyncPending_ReplaysInOrder(t *testing.T) {
	fb := newFakeBackend()
	fb.setDown(true)
	s := newTestStore(t, fb)
	ctx := context.Background()

	a, _ := s.Create(ctx, models.LocationInput{Name: "a", Coordinates: point(1, 1)})
	b, _ := s.Create(ctx, models.LocationInput{Name: "b", Coordinates: point(2, 2)})
	name := "a2"
	s.Update(ctx, a.Record.ID, models.LocationPatch{Name: &name})
	s.Delete(ctx, b.Record.ID)
	s.Create(ctx, models.LocationInput{Name: "c", Coordinates: point(3, 3)})

	fb.setDown(false)
	s.CheckBackendConnection(ctx)
	start := len(fb.Calls())

	report, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if report.Replayed != 5 || report.Remaining != 0 {
		t.Fatalf("report: %+v", report)
	}

	want := []string{
		"create:a",
		"create:b",
		"update:srv-1",
		"delete:srv-2",
		"create:c",
	}
	if got := fb.Calls()[start:]; !reflect.DeepEqual(got, want) {
		t.Fatalf("call order:\n got %v\nwant %v", got, want)
	}

	locs, _ := s.Search(Filter{})
	if len(locs) != 2 {
		t.Fatalf("local records: %+v", locs)
	}
	for _, l := range locs {
		if l.Source != models.SourceBackend {
			t.Errorf("%s: source %q", l.Name, l.Source)
		}
	}
}

func TestSyncPending_DropsInvalidCoordinates(t *testing.T) {
	fb := newFakeBackend()
	s := newTestStore(t, fb, WithBackendAvailable(false))
	ctx := context.Background()

	// Queue entries written by an older build may carry bad geometry
	s.enqueue(models.OpCreate, models.Location{ID: "loc-x", Name: "bad",
		Coordinates: models.GeoPoint{Type: "Point", Coordinates: []float64{1}}})
	s.enqueue(models.OpUpdate, models.Location{ID: "loc-y", Name: "bad2",
		Coordinates: models.NewGeoPoint(500, 0)})
	s.enqueue(models.OpCreate, models.Location{ID: "loc-z", Name: "good",
		Coordinates: models.NewGeoPoint(1, 1)})

	s.CheckBackendConnection(ctx)
	report, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if report.Dropped != 2 || report.Replayed != 1 || report.Remaining != 0 {
		t.Fatalf("report: %+v", report)
	}
	for _, c := range fb.Calls() {
		if c == "create:bad" || c == "update:loc-y" {
			t.Errorf("invalid entry reached backend: %s", c)
		}
	}
}

func TestSyncPending_DropPolicy(t *testing.T) {
	rejected := &backend.APIError{Status: 400, Message: "Coordinates are required"}

	t.Run("default drops coordinates-required", func(t *testing.T) {
		fb := newFakeBackend()
		fb.createErr = func(body backend.LocationBody) error {
			if body.Name == "poison" {
				return rejected
			}
			return nil
		}
		s := newTestStore(t, fb, WithBackendAvailable(false))
		ctx := context.Background()
		s.Create(ctx, models.LocationInput{Name: "poison", Coordinates: point(1, 1)})
		s.Create(ctx, models.LocationInput{Name: "fine", Coordinates: point(1, 1)})

		s.CheckBackendConnection(ctx)
		report, err := s.SyncPending(ctx)
		if err != nil {
			t.Fatalf("SyncPending: %v", err)
		}
		if report.Dropped != 1 || report.Replayed != 1 || report.Remaining != 0 {
			t.Fatalf("report: %+v", report)
		}
	})

	t.Run("custom policy keeps everything", func(t *testing.T) {
		fb := newFakeBackend()
		fb.createErr = func(body backend.LocationBody) error { return rejected }
		keep := func(models.PendingOperation, error) bool { return false }
		s := newTestStore(t, fb, WithBackendAvailable(false), WithDropPolicy(keep))
		ctx := context.Background()
		s.Create(ctx, models.LocationInput{Name: "poison", Coordinates: point(1, 1)})

		s.CheckBackendConnection(ctx)
		report, _ := s.SyncPending(ctx)
		if report.Dropped != 0 || report.Failed != 1 || report.Remaining != 1 {
			t.Fatalf("report: %+v", report)
		}
	})

	t.Run("default never drops deletes", func(t *testing.T) {
		op := models.PendingOperation{Type: models.OpDelete}
		if DefaultDropPolicy(op, rejected) {
			t.Fatal("delete entries must stay queued")
		}
	})
}

func TestSyncPending_FailedEntryDefersSameRecord(t *testing.T) {
	fb := newFakeBackend()
	fb.createErr = func(body backend.LocationBody) error {
		if body.Name == "stuck" {
			return &backend.APIError{Status: 500, Message: "boom"}
		}
		return nil
	}
	s := newTestStore(t, fb, WithBackendAvailable(false))
	ctx := context.Background()

	stuck, _ := s.Create(ctx, models.LocationInput{Name: "stuck", Coordinates: point(1, 1)})
	desc := "later edit"
	s.Update(ctx, stuck.Record.ID, models.LocationPatch{Description: &desc})
	s.Create(ctx, models.LocationInput{Name: "other", Coordinates: point(2, 2)})

	s.CheckBackendConnection(ctx)
	report, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if report.Failed != 1 || report.Deferred != 1 || report.Replayed != 1 || report.Remaining != 2 {
		t.Fatalf("report: %+v", report)
	}
	for _, c := range fb.Calls() {
		if c == "update:"+stuck.Record.ID {
			t.Error("update replayed before its create succeeded")
		}
	}

	ops, _ := s.Pending()
	if ops[0].Type != models.OpCreate || ops[1].Type != models.OpUpdate {
		t.Errorf("remaining order: %+v", ops)
	}
	if !s.Available() {
		t.Error("a server error should not flip availability during drain")
	}
}

func TestSyncPending_UnreachableStopsCycle(t *testing.T) {
	fb := newFakeBackend()
	s := newTestStore(t, fb, WithBackendAvailable(false))
	ctx := context.Background()
	s.Create(ctx, models.LocationInput{Name: "a", Coordinates: point(1, 1)})
	s.Create(ctx, models.LocationInput{Name: "b", Coordinates: point(1, 1)})

	s.CheckBackendConnection(ctx)
	fb.setDown(true)
	report, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if report.Failed != 1 || report.Remaining != 2 {
		t.Fatalf("report: %+v", report)
	}
	if s.Available() {
		t.Error("unreachable backend should flip availability")
	}

	// Next cycle is a no-op until a probe succeeds
	report, _ = s.SyncPending(ctx)
	if !report.Skipped || report.Remaining != 2 {
		t.Errorf("second report: %+v", report)
	}
}

func TestSyncPending_DeleteFailureStaysQueued(t *testing.T) {
	fb := newFakeBackend()
	fb.saved["srv-7"] = models.Location{ID: "srv-7"}
	fb.deleteErr = func(id string) error {
		return &backend.APIError{Status: 500, Message: "db locked"}
	}
	s := newTestStore(t, fb)
	ctx := context.Background()
	s.List(ctx)

	if res, err := s.Delete(ctx, "srv-7"); err != nil || res.Synced {
		t.Fatalf("Delete: %+v %v", res, err)
	}
	s.CheckBackendConnection(ctx)
	for range 3 {
		report, _ := s.SyncPending(ctx)
		if report.Remaining != 1 {
			t.Fatalf("delete entry left the queue: %+v", report)
		}
	}
}

func TestSyncPending_DeleteOfMissingRecordSucceeds(t *testing.T) {
	fb := newFakeBackend()
	s := newTestStore(t, fb, WithBackendAvailable(false))
	ctx := context.Background()
	s.enqueue(models.OpDelete, models.Location{ID: "gone"})

	s.CheckBackendConnection(ctx)
	report, _ := s.SyncPending(ctx)
	if report.Replayed != 1 || report.Remaining != 0 {
		t.Fatalf("report: %+v", report)
	}
}

func TestSyncPending_KeepsEntriesAppendedDuringDrain(t *testing.T) {
	fb := newFakeBackend()
	s := newTestStore(t, fb, WithBackendAvailable(false))
	ctx := context.Background()
	s.Create(ctx, models.LocationInput{Name: "first", Coordinates: point(1, 1)})

	appended := false
	fb.createErr = func(body backend.LocationBody) error {
		if !appended {
			appended = true
			// runs while the drain holds a snapshot of the queue
			if err := s.enqueue(models.OpDelete, models.Location{ID: "late"}); err != nil {
				t.Errorf("enqueue: %v", err)
			}
		}
		return nil
	}

	s.CheckBackendConnection(ctx)
	report, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if report.Replayed != 1 || report.Remaining != 1 {
		t.Fatalf("report: %+v", report)
	}
	ops, _ := s.Pending()
	if len(ops) != 1 || ops[0].Data.ID != "late" {
		t.Fatalf("late entry lost: %+v", ops)
	}
}

func TestSyncPending_SingleFlight(t *testing.T) {
	fb := newFakeBackend()
	s := newTestStore(t, fb, WithBackendAvailable(false))
	ctx := context.Background()
	for range 5 {
		s.Create(ctx, models.LocationInput{Name: "x", Coordinates: point(1, 1)})
	}
	s.CheckBackendConnection(ctx)

	// The first replayed create parks until every caller is in flight
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fb.createErr = func(backend.LocationBody) error {
		once.Do(func() {
			close(started)
			<-release
		})
		return nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.SyncPending(ctx); err != nil {
				t.Errorf("SyncPending: %v", err)
			}
		}()
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("no drain reached the backend")
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	creates := 0
	for _, c := range fb.Calls() {
		if c == "create:x" {
			creates++
		}
	}
	if creates != 5 {
		t.Fatalf("each queued create must be replayed exactly once, got %d calls", creates)
	}
	if n := pendingLen(t, s); n != 0 {
		t.Errorf("pending: got %d, want 0", n)
	}
}

func TestSyncPending_IgnoresCallerCancellation(t *testing.T) {
	fb := newFakeBackend()
	s := newTestStore(t, fb, WithBackendAvailable(false))
	for range 3 {
		s.Create(context.Background(), models.LocationInput{Name: "x", Coordinates: point(1, 1)})
	}
	s.CheckBackendConnection(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := s.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	if report.Replayed != 3 || report.Remaining != 0 {
		t.Fatalf("a cancelled caller stopped the shared drain: %+v", report)
	}
}

func TestSyncPending_CancelledLeaderDoesNotStarveWaiters(t *testing.T) {
	fb := newFakeBackend()
	s := newTestStore(t, fb, WithBackendAvailable(false))
	for range 3 {
		s.Create(context.Background(), models.LocationInput{Name: "x", Coordinates: point(1, 1)})
	}
	s.CheckBackendConnection(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fb.createErr = func(backend.LocationBody) error {
		once.Do(func() {
			close(started)
			<-release
		})
		return nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		s.SyncPending(leaderCtx)
	}()
	<-started

	waiter := make(chan *SyncReport, 1)
	go func() {
		r, err := s.SyncPending(context.Background())
		if err != nil {
			t.Errorf("SyncPending: %v", err)
		}
		waiter <- r
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	close(release)
	<-leaderDone

	r := <-waiter
	if r == nil {
		return
	}
	if n := pendingLen(t, s); n != 0 {
		t.Fatalf("queue not drained after the leader cancelled: %d left (report %+v)", n, r)
	}
}

func TestCheckBackendConnection_NilBackend(t *testing.T) {
	s := newTestStore(t, nil)
	if s.CheckBackendConnection(context.Background()) {
		t.Fatal("nil backend reported available")
	}
}

type panickyBackend struct{ *fakeBackend }

func (panickyBackend) Health(context.Context) error { panic("boom") }

func TestCheckBackendConnection_RecoversPanic(t *testing.T) {
	s := newTestStore(t, panickyBackend{newFakeBackend()})
	if s.CheckBackendConnection(context.Background()) {
		t.Fatal("panicking probe reported available")
	}
	if s.Available() {
		t.Fatal("availability not cleared after panic")
	}
}

func TestCreate_RemoteFailureMarksUnavailable(t *testing.T) {
	fb := newFakeBackend()
	fb.createErr = func(backend.LocationBody) error {
		return &backend.APIError{Status: 503, Message: "maintenance"}
	}
	s := newTestStore(t, fb)

	res, err := s.Create(context.Background(), models.LocationInput{Name: "a", Coordinates: point(1, 1)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Synced || s.Available() {
		t.Fatalf("synced=%v available=%v", res.Synced, s.Available())
	}
	ops, _ := s.Pending()
	if len(ops) != 1 || ops[0].Type != models.OpCreate || ops[0].Data.ID != res.Record.ID {
		t.Fatalf("pending: %+v", ops)
	}
}
