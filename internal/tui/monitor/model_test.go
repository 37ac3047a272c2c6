package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/pinmap/internal/autosync"
	"github.com/marcus/pinmap/internal/models"
	"github.com/marcus/pinmap/internal/store"
)

type fakeSource struct {
	locs    []models.Location
	pending []models.PendingOperation
	status  models.StorageStatus
	err     error
}

func (f *fakeSource) Search(flt store.Filter) ([]models.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return flt.Apply(f.locs), nil
}

func (f *fakeSource) Pending() ([]models.PendingOperation, error) {
	return f.pending, nil
}

func (f *fakeSource) Status() (*models.StorageStatus, error) {
	st := f.status
	return &st, nil
}

type fakeCycler struct {
	calls int
	tick  autosync.Tick
}

func (f *fakeCycler) Once(ctx context.Context) autosync.Tick {
	f.calls++
	return f.tick
}

func newFixture() *fakeSource {
	return &fakeSource{
		locs: []models.Location{
			{ID: "srv-1", Name: "Monas", Category: models.CategoryPOI, Coordinates: models.NewGeoPoint(106.8275, -6.1754), Source: models.SourceBackend},
			{ID: "loc-1", Name: "Bakmi GM", Category: models.CategoryRestaurant, Coordinates: models.NewGeoPoint(106.82, -6.18), Source: models.SourceLocal},
			{ID: "srv-2", Name: "Hotel Indonesia", Category: models.CategoryHotel, Coordinates: models.NewGeoPoint(106.823, -6.195), Source: models.SourceBackend},
		},
		pending: []models.PendingOperation{
			{Seq: 1, Type: models.OpCreate, Data: models.Location{ID: "loc-1", Name: "Bakmi GM"}, Timestamp: time.Now()},
		},
		status: models.StorageStatus{BackendAvailable: false, LocalCount: 3, PendingSync: 1},
	}
}

func loadedModel(t *testing.T, src *fakeSource, sync Cycler) Model {
	t.Helper()
	m := NewModel(context.Background(), src, sync, time.Minute)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)
	next, _ = m.Update(FetchData(src, m.Filter))
	return next.(Model)
}

func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want store.Filter
	}{
		{"", store.Filter{}},
		{"bakmi", store.Filter{Query: "bakmi"}},
		{"cat:Restaurant", store.Filter{Category: models.CategoryRestaurant}},
		{"cat:hotel grand  indonesia", store.Filter{Category: models.CategoryHotel, Query: "grand indonesia"}},
		{"cat:", store.Filter{Query: "cat:"}},
	}
	for _, tt := range tests {
		if got := ParseFilter(tt.in); got != tt.want {
			t.Errorf("ParseFilter(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestFetchData(t *testing.T) {
	src := newFixture()
	msg := FetchData(src, store.Filter{Category: models.CategoryHotel})
	if msg.Err != nil {
		t.Fatalf("FetchData: %v", msg.Err)
	}
	if len(msg.Locations) != 1 || msg.Locations[0].ID != "srv-2" {
		t.Errorf("filtered locations: got %+v", msg.Locations)
	}
	if len(msg.Pending) != 1 || msg.Status == nil || msg.Status.PendingSync != 1 {
		t.Errorf("pending/status not loaded: %+v", msg)
	}

	src.err = errors.New("disk gone")
	if msg := FetchData(src, store.Filter{}); msg.Err == nil {
		t.Error("expected error to propagate")
	}
}

func TestRefreshPopulatesModel(t *testing.T) {
	m := loadedModel(t, newFixture(), nil)
	if len(m.Locations) != 3 || len(m.Pending) != 1 {
		t.Fatalf("got %d locations, %d pending", len(m.Locations), len(m.Pending))
	}
	if m.LastRefresh.IsZero() {
		t.Error("LastRefresh not set")
	}
}

func TestStaleRefreshIgnored(t *testing.T) {
	src := newFixture()
	m := loadedModel(t, src, nil)
	m.Filter = store.Filter{Query: "monas"}

	next, _ := m.Update(RefreshDataMsg{Filter: store.Filter{}, Locations: nil, Timestamp: time.Now()})
	m = next.(Model)
	if len(m.Locations) != 3 {
		t.Errorf("stale refresh should be dropped, got %d locations", len(m.Locations))
	}
}

func TestRefreshErrorKeepsData(t *testing.T) {
	m := loadedModel(t, newFixture(), nil)
	next, _ := m.Update(RefreshDataMsg{Err: errors.New("boom"), Timestamp: time.Now()})
	m = next.(Model)
	if m.Err == nil {
		t.Fatal("expected error recorded")
	}
	if len(m.Locations) != 3 {
		t.Errorf("previous data should be kept, got %d", len(m.Locations))
	}
	if !strings.Contains(m.View(), "error: boom") {
		t.Error("error should be shown in header")
	}
}

func TestCursorNavigation(t *testing.T) {
	m := loadedModel(t, newFixture(), nil)

	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "j") // clamped at last row
	if got := m.Cursor[PanelLocations]; got != 2 {
		t.Errorf("cursor: got %d, want 2", got)
	}
	if sel := m.SelectedLocation(); sel == nil || sel.ID != "srv-2" {
		t.Errorf("selected: got %+v", sel)
	}

	m, _ = press(t, m, "k")
	if got := m.Cursor[PanelLocations]; got != 1 {
		t.Errorf("cursor after k: got %d, want 1", got)
	}

	m, _ = press(t, m, "tab")
	if m.ActivePanel != PanelPending {
		t.Errorf("tab: got panel %d, want pending", m.ActivePanel)
	}
	m, _ = press(t, m, "j")
	if got := m.Cursor[PanelPending]; got != 0 {
		t.Errorf("pending cursor should stay at 0 with one row, got %d", got)
	}
	m, _ = press(t, m, "1")
	if m.ActivePanel != PanelLocations {
		t.Errorf("1: got panel %d, want locations", m.ActivePanel)
	}
}

func TestFilterTyping(t *testing.T) {
	src := newFixture()
	m := loadedModel(t, src, nil)

	m, _ = press(t, m, "/")
	if !m.filterInput.Focused() {
		t.Fatal("/ should focus the filter")
	}
	m, cmd := press(t, m, "b")
	if m.Filter.Query != "b" {
		t.Fatalf("filter query: got %q, want b", m.Filter.Query)
	}
	if cmd == nil {
		t.Fatal("typing should trigger a refetch")
	}

	// While focused, q is text, not quit
	m, _ = press(t, m, "q")
	if m.Filter.Query != "bq" {
		t.Errorf("filter query: got %q, want bq", m.Filter.Query)
	}

	m, _ = press(t, m, "esc")
	if m.filterInput.Focused() || m.Filter != (store.Filter{}) {
		t.Errorf("esc should blur and clear, got focused=%v filter=%+v", m.filterInput.Focused(), m.Filter)
	}
}

func TestSyncCycle(t *testing.T) {
	src := newFixture()
	cyc := &fakeCycler{tick: autosync.Tick{Available: true, Report: &store.SyncReport{Replayed: 1}}}
	m := loadedModel(t, src, cyc)

	m, cmd := press(t, m, "s")
	if !m.Syncing {
		t.Fatal("s should start a sync")
	}
	if cmd == nil {
		t.Fatal("expected sync command")
	}
	msg := cmd()
	done, ok := msg.(SyncDoneMsg)
	if !ok {
		t.Fatalf("got %T, want SyncDoneMsg", msg)
	}
	if cyc.calls != 1 {
		t.Errorf("cycler calls: got %d, want 1", cyc.calls)
	}

	// A second s while syncing is ignored
	m2, cmd2 := press(t, m, "s")
	if cmd2 != nil || !m2.Syncing {
		t.Error("sync should not be restarted while one is running")
	}

	next, cmd := m.Update(done)
	m = next.(Model)
	if m.Syncing {
		t.Error("Syncing should clear after SyncDoneMsg")
	}
	if m.LastTick == nil || m.LastTick.Report.Replayed != 1 {
		t.Errorf("LastTick: got %+v", m.LastTick)
	}
	if cmd == nil {
		t.Error("sync completion should trigger a refresh")
	}
	if !strings.Contains(m.View(), "synced 1") {
		t.Error("header should summarize the last sync")
	}
}

func TestTickWithoutSyncer(t *testing.T) {
	m := loadedModel(t, newFixture(), nil)
	next, cmd := m.Update(TickMsg(time.Now()))
	m = next.(Model)
	if m.Syncing {
		t.Error("no syncer: tick must not mark syncing")
	}
	if cmd == nil {
		t.Error("tick should reschedule")
	}
}

func TestView(t *testing.T) {
	m := loadedModel(t, newFixture(), nil)
	v := m.View()
	for _, want := range []string{"LOCATIONS (3)", "SYNC QUEUE (1)", "Monas", "Bakmi GM", "unreachable", "1 pending", "queued"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewSizes(t *testing.T) {
	m := NewModel(context.Background(), newFixture(), nil, time.Minute)
	if got := m.View(); got != "Loading..." {
		t.Errorf("zero size: got %q", got)
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	m = next.(Model)
	if !strings.Contains(m.View(), "resize for full view") {
		t.Error("small terminal should render compact view")
	}
}

func TestHelpToggle(t *testing.T) {
	m := loadedModel(t, newFixture(), nil)
	m, _ = press(t, m, "?")
	if !strings.Contains(m.View(), "Navigation:") {
		t.Error("help should be shown")
	}
	m, _ = press(t, m, "?")
	if strings.Contains(m.View(), "Navigation:") {
		t.Error("help should be hidden")
	}
}

func TestTickSummary(t *testing.T) {
	tests := []struct {
		r    *store.SyncReport
		err  error
		want string
	}{
		{nil, nil, "idle"},
		{&store.SyncReport{Skipped: true}, nil, "sync skipped"},
		{&store.SyncReport{Replayed: 2, Dropped: 1}, nil, "synced 2, dropped 1"},
		{nil, errors.New("x"), "sync failed: x"},
	}
	for _, tt := range tests {
		if got := tickSummary(tt.r, tt.err); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
