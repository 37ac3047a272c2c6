package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/pinmap/internal/autosync"
	"github.com/marcus/pinmap/internal/models"
	"github.com/marcus/pinmap/internal/store"
)

// Panel represents which panel is active.
type Panel int

const (
	PanelLocations Panel = iota
	PanelPending
)

const panelCount = 2

// Cycler runs one backend probe/drain cycle. *autosync.Runner implements it.
type Cycler interface {
	Once(ctx context.Context) autosync.Tick
}

// Model is the main Bubble Tea model for the monitor TUI.
type Model struct {
	Source Source
	Sync   Cycler
	APIURL string

	// Window dimensions
	Width  int
	Height int

	// Panel data
	Locations []models.Location
	Pending   []models.PendingOperation
	Status    *models.StorageStatus
	LastTick  *autosync.Tick

	// UI state
	ActivePanel  Panel
	Cursor       map[Panel]int
	ScrollOffset map[Panel]int
	ShowHelp     bool
	Syncing      bool
	LastRefresh  time.Time
	Err          error // Last error, if any

	Filter      store.Filter
	filterInput textinput.Model
	spinner     spinner.Model

	// Configuration
	RefreshInterval time.Duration
	ctx             context.Context
}

// MinWidth is the minimum terminal width for proper display.
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display.
const MinHeight = 12

// TickMsg triggers a sync cycle and data refresh.
type TickMsg time.Time

// SyncDoneMsg carries the result of a sync cycle.
type SyncDoneMsg struct {
	Tick autosync.Tick
}

// RefreshDataMsg carries refreshed data.
type RefreshDataMsg struct {
	Locations []models.Location
	Pending   []models.PendingOperation
	Status    *models.StorageStatus
	Filter    store.Filter
	Timestamp time.Time
	Err       error
}

// NewModel creates a new monitor model. sync may be nil, in which case the
// monitor only displays local state.
func NewModel(ctx context.Context, src Source, sync Cycler, interval time.Duration) Model {
	if interval <= 0 {
		interval = autosync.DefaultInterval
	}
	ti := textinput.New()
	ti.Placeholder = "search or cat:restaurant"
	ti.Prompt = "/ "
	ti.CharLimit = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = subtleStyle

	return Model{
		Source:          src,
		Sync:            sync,
		RefreshInterval: interval,
		Cursor:          make(map[Panel]int),
		ScrollOffset:    make(map[Panel]int),
		ActivePanel:     PanelLocations,
		filterInput:     ti,
		spinner:         sp,
		ctx:             ctx,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.runSync(),
		m.spinner.Tick,
		m.scheduleTick(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filterInput.Focused() {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.filterInput.Width = max(msg.Width-6, 10)
		return m, nil

	case TickMsg:
		cmds := []tea.Cmd{m.scheduleTick()}
		if !m.Syncing && m.Sync != nil {
			m.Syncing = true
			cmds = append(cmds, m.runSync())
		}
		return m, tea.Batch(cmds...)

	case SyncDoneMsg:
		m.Syncing = false
		tick := msg.Tick
		m.LastTick = &tick
		return m, m.fetchData()

	case RefreshDataMsg:
		// Drop results fetched for a filter that has since changed
		if msg.Filter != m.Filter {
			return m, nil
		}
		m.Err = msg.Err
		if msg.Err == nil {
			m.Locations = msg.Locations
			m.Pending = msg.Pending
			m.Status = msg.Status
			m.clampCursors()
		}
		m.LastRefresh = msg.Timestamp
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		m.ActivePanel = (m.ActivePanel + 1) % panelCount
		return m, nil

	case "shift+tab":
		m.ActivePanel = (m.ActivePanel + panelCount - 1) % panelCount
		return m, nil

	case "1":
		m.ActivePanel = PanelLocations
		return m, nil

	case "2":
		m.ActivePanel = PanelPending
		return m, nil

	case "j", "down":
		if m.Cursor[m.ActivePanel] < m.rowCount(m.ActivePanel)-1 {
			m.Cursor[m.ActivePanel]++
		}
		m.ensureVisible(m.ActivePanel)
		return m, nil

	case "k", "up":
		if m.Cursor[m.ActivePanel] > 0 {
			m.Cursor[m.ActivePanel]--
		}
		m.ensureVisible(m.ActivePanel)
		return m, nil

	case "/":
		m.ActivePanel = PanelLocations
		cmd := m.filterInput.Focus()
		return m, cmd

	case "esc":
		if m.filterInput.Value() != "" {
			m.filterInput.SetValue("")
			return m.applyFilter()
		}
		return m, nil

	case "s":
		if m.Syncing || m.Sync == nil {
			return m, nil
		}
		m.Syncing = true
		return m, m.runSync()

	case "r":
		return m, m.fetchData()

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// handleFilterKey edits the filter box; the list narrows as you type.
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		return m.applyFilter()
	case tea.KeyEnter:
		m.filterInput.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	next, fetch := m.applyFilter()
	return next, tea.Batch(cmd, fetch)
}

func (m Model) applyFilter() (Model, tea.Cmd) {
	f := ParseFilter(m.filterInput.Value())
	if f == m.Filter {
		return m, nil
	}
	m.Filter = f
	m.Cursor[PanelLocations] = 0
	m.ScrollOffset[PanelLocations] = 0
	return m, m.fetchData()
}

func (m Model) rowCount(p Panel) int {
	if p == PanelPending {
		return len(m.Pending)
	}
	return len(m.Locations)
}

func (m *Model) clampCursors() {
	for _, p := range []Panel{PanelLocations, PanelPending} {
		n := m.rowCount(p)
		if m.Cursor[p] >= n {
			m.Cursor[p] = max(n-1, 0)
		}
		m.ensureVisible(p)
	}
}

// ensureVisible scrolls so the cursor row of p is on screen.
func (m *Model) ensureVisible(p Panel) {
	h := m.panelRows(p)
	if h <= 0 {
		return
	}
	cur := m.Cursor[p]
	off := m.ScrollOffset[p]
	switch {
	case cur < off:
		off = cur
	case cur >= off+h:
		off = cur - h + 1
	}
	m.ScrollOffset[p] = max(off, 0)
}

// SelectedLocation returns the location under the cursor, if any.
func (m Model) SelectedLocation() *models.Location {
	i := m.Cursor[PanelLocations]
	if i < 0 || i >= len(m.Locations) {
		return nil
	}
	l := m.Locations[i]
	return &l
}

// View implements tea.Model.
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval.
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// runSync runs one probe/drain cycle off the UI goroutine.
func (m Model) runSync() tea.Cmd {
	if m.Sync == nil {
		return nil
	}
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	sync := m.Sync
	return func() tea.Msg {
		return SyncDoneMsg{Tick: sync.Once(ctx)}
	}
}

// fetchData returns a command that fetches all data and sends a RefreshDataMsg.
func (m Model) fetchData() tea.Cmd {
	src, f := m.Source, m.Filter
	return func() tea.Msg {
		return FetchData(src, f)
	}
}
