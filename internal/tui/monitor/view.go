package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/pinmap/internal/models"
)

// chrome is the number of lines outside the panels: header, filter, footer.
const chrome = 3

// renderView renders the complete TUI view.
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	locH, pendH := m.panelHeights()
	panels := lipgloss.JoinVertical(lipgloss.Left,
		m.renderLocationsPanel(locH),
		m.renderPendingPanel(pendH),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderFilter(),
		panels,
		m.renderFooter(),
	)
}

// panelHeights splits the space below the header between the two panels.
func (m Model) panelHeights() (locations, pending int) {
	available := m.Height - chrome
	pending = available / 3
	if pending < 4 {
		pending = 4
	}
	return available - pending, pending
}

// panelRows is how many content rows fit in panel p.
func (m Model) panelRows(p Panel) int {
	if m.Height == 0 {
		return 0
	}
	locH, pendH := m.panelHeights()
	if p == PanelPending {
		return pendH - 3
	}
	return locH - 3
}

// renderCompact renders a minimal view for small terminals.
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("pinmap monitor (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Locations: %d\n", len(m.Locations)))
	s.WriteString(fmt.Sprintf("Pending: %d\n", len(m.Pending)))
	if m.Status != nil {
		s.WriteString("Backend: " + backendLabel(m.Status) + "\n")
	}
	s.WriteString("\nq:quit s:sync ?:help")

	return s.String()
}

// renderHeader shows backend state, queue depth and the last sync outcome.
func (m Model) renderHeader() string {
	parts := []string{titleStyle.Render("pinmap")}

	if m.Status != nil {
		badge := offlineBadge
		if m.Status.BackendAvailable {
			badge = onlineBadge
		}
		parts = append(parts, badge.Render(backendLabel(m.Status)))
		if m.Status.PendingSync > 0 {
			parts = append(parts, pendingBadge.Render(fmt.Sprintf("%d pending", m.Status.PendingSync)))
		}
	}
	if m.APIURL != "" {
		parts = append(parts, subtleStyle.Render(m.APIURL))
	}
	if m.Syncing {
		parts = append(parts, m.spinner.View()+subtleStyle.Render("syncing"))
	} else if m.LastTick != nil {
		parts = append(parts, subtleStyle.Render(tickSummary(m.LastTick.Report, m.LastTick.Err)))
	}
	if m.Err != nil {
		parts = append(parts, errorStyle.Render("error: "+m.Err.Error()))
	}

	return ansi.Truncate(" "+strings.Join(parts, "  "), m.Width, "…")
}

func (m Model) renderFilter() string {
	if m.filterInput.Focused() {
		return " " + m.filterInput.View()
	}
	if v := m.filterInput.Value(); v != "" {
		return " " + subtleStyle.Render("filter: ") + v + subtleStyle.Render("  (esc to clear)")
	}
	return " " + helpStyle.Render("press / to filter")
}

// renderLocationsPanel lists the local record set.
func (m Model) renderLocationsPanel(height int) string {
	title := fmt.Sprintf("LOCATIONS (%d)", len(m.Locations))
	if len(m.Locations) == 0 {
		msg := "No locations"
		if m.Filter.Query != "" || m.Filter.Category != "" {
			msg = "No locations match the filter"
		}
		return m.wrapPanel(title, subtleStyle.Render(msg), height, PanelLocations)
	}

	queued := pendingIDs(m.Pending)
	rows := make([]string, len(m.Locations))
	for i, l := range m.Locations {
		rows[i] = m.formatLocationRow(l, queued[l.ID])
	}
	return m.wrapPanel(title, m.renderRows(PanelLocations, rows, height-3), height, PanelLocations)
}

// renderPendingPanel lists queued operations in replay order.
func (m Model) renderPendingPanel(height int) string {
	title := fmt.Sprintf("SYNC QUEUE (%d)", len(m.Pending))
	if len(m.Pending) == 0 {
		return m.wrapPanel(title, subtleStyle.Render("Queue empty"), height, PanelPending)
	}

	rows := make([]string, len(m.Pending))
	for i, op := range m.Pending {
		rows[i] = formatPendingRow(op)
	}
	return m.wrapPanel(title, m.renderRows(PanelPending, rows, height-3), height, PanelPending)
}

// renderRows windows rows by scroll offset and marks the cursor row.
func (m Model) renderRows(p Panel, rows []string, visible int) string {
	offset := m.ScrollOffset[p]
	end := offset + m.visibleItems(len(rows), offset, visible)
	isActive := m.ActivePanel == p

	var b strings.Builder
	for i := offset; i < end; i++ {
		line := "  " + rows[i]
		if isActive && i == m.Cursor[p] {
			line = selectedRowStyle.Render("> ") + rows[i]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) formatLocationRow(l models.Location, queued bool) string {
	mp := l.Coordinates.MapPoint()
	row := fmt.Sprintf("%-10s %s  %s",
		formatCategory(l.Category),
		l.Name,
		timestampStyle.Render(fmt.Sprintf("%.5f, %.5f", mp.Lat, mp.Lng)),
	)
	switch {
	case queued:
		row += "  " + pendingBadge.Render("queued")
	case l.Source != models.SourceBackend:
		row += "  " + subtleStyle.Render("local")
	}
	return row
}

func formatPendingRow(op models.PendingOperation) string {
	label := op.Data.ID
	if op.Data.Name != "" {
		label += " " + op.Data.Name
	}
	return fmt.Sprintf("#%-4d %s %s  %s",
		op.Seq,
		formatOp(op.Type),
		label,
		timestampStyle.Render(op.Timestamp.Local().Format("15:04:05")),
	)
}

// renderFooter renders the key hints and refresh time.
func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  tab:switch  ↑↓:select  /:filter  s:sync  r:refresh  ?:help")
	refresh := ""
	if !m.LastRefresh.IsZero() {
		refresh = timestampStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))
	}

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}

	return fmt.Sprintf(" %s%s%s", keys, strings.Repeat(" ", padding), refresh)
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	help := `
pinmap monitor

Navigation:
  tab / shift+tab   Switch panels
  1 / 2             Jump to locations / sync queue
  j / k, ↑ / ↓      Move selection

Actions:
  /                 Filter locations (cat:<category> narrows by category)
  esc               Clear filter
  s                 Probe backend and drain the queue now
  r                 Reload local data
  ?                 Toggle help
  q                 Quit

Press ? to close help
`
	return help
}

// wrapPanel wraps content in a bordered panel with a title.
func (m Model) wrapPanel(title, content string, height int, panel Panel) string {
	style := panelStyle
	if m.ActivePanel == panel {
		style = activePanelStyle
	}

	titleStr := panelTitleStyle.Render(title)

	// Account for border and padding
	contentWidth := m.Width - 4

	lines := strings.Split(content, "\n")
	contentHeight := height - 3 // Title + border

	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}

	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = ansi.Truncate(line, contentWidth, "…")
		}
	}

	body := strings.Join(lines, "\n")
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStr, body)

	return style.Width(m.Width - 2).Render(inner)
}

// visibleItems returns how many items fit from offset.
func (m Model) visibleItems(total, offset, height int) int {
	remaining := total - offset
	if remaining < 0 {
		return 0
	}
	if remaining > height {
		return height
	}
	return remaining
}

func backendLabel(st *models.StorageStatus) string {
	switch {
	case st.Offline:
		return "offline mode"
	case st.BackendAvailable:
		return "online"
	default:
		return "unreachable"
	}
}
