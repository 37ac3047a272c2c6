// Package output provides styled terminal output helpers (success, error,
// warning, location formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/pinmap/internal/models"
	"github.com/marcus/pinmap/internal/store"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	coordStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))

	categoryStyles = map[models.Category]lipgloss.Style{
		models.CategoryPOI:        lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.CategoryRestaurant: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.CategoryHotel:      lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		models.CategoryShopping:   lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		models.CategoryEducation:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		models.CategoryHealth:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		models.CategoryTransport:  lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		models.CategoryOther:      lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}

	opStyles = map[models.OpType]lipgloss.Style{
		models.OpCreate: successStyle,
		models.OpUpdate: warningStyle,
		models.OpDelete: errorStyle,
	}
)

// Success prints a success message.
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message.
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message.
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message.
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON.
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeStorageError  = "storage_error"
	ErrCodeBackendError  = "backend_error"
	ErrCodeInvalidImport = "invalid_import"
)

// JSONError outputs an error as JSON.
func JSONError(code, message string) {
	JSONErrorWithDetails(code, message, nil)
}

// JSONErrorWithDetails outputs an error as JSON with additional context.
func JSONErrorWithDetails(code, message string, details map[string]interface{}) {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		errObj["details"] = details
	}
	data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
	fmt.Println(string(data))
}

// FormatCategory formats a category with its color. Unknown categories
// are shown unstyled.
func FormatCategory(c models.Category) string {
	label := fmt.Sprintf("[%s]", c)
	style, ok := categoryStyles[c]
	if !ok {
		return label
	}
	return style.Render(label)
}

// FormatCoordinates renders a point as "lat, lng" with 6 decimals,
// the order people read and paste into map search boxes.
func FormatCoordinates(p models.GeoPoint) string {
	m := p.MapPoint()
	return fmt.Sprintf("%.6f, %.6f", m.Lat, m.Lng)
}

// SourceBadge marks whether a record is confirmed on the backend.
func SourceBadge(s models.Source) string {
	if s == models.SourceBackend {
		return successStyle.Render("● synced")
	}
	return warningStyle.Render("○ local")
}

// FormatLocationShort formats a location on one line.
func FormatLocationShort(l *models.Location) string {
	parts := []string{
		titleStyle.Render(l.ID),
		FormatCategory(l.Category),
		l.Name,
		coordStyle.Render(FormatCoordinates(l.Coordinates)),
	}
	if l.Source != models.SourceBackend {
		parts = append(parts, subtleStyle.Render("(local)"))
	}
	return strings.Join(parts, "  ")
}

// FormatLocationLong formats a location with all fields.
func FormatLocationLong(l *models.Location) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", l.ID, l.Name)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Category: %s | %s\n", FormatCategory(l.Category), SourceBadge(l.Source)))
	sb.WriteString(fmt.Sprintf("Coordinates: %s\n", coordStyle.Render(FormatCoordinates(l.Coordinates))))
	if l.Address != "" {
		sb.WriteString(fmt.Sprintf("Address: %s\n", l.Address))
	}
	if !l.CreatedAt.IsZero() {
		sb.WriteString(subtleStyle.Render(fmt.Sprintf("Created %s, updated %s",
			FormatTimeAgo(l.CreatedAt), FormatTimeAgo(l.UpdatedAt))))
		sb.WriteString("\n")
	}

	if len(l.Properties) > 0 {
		sb.WriteString(SectionHeader("Properties"))
		keys := make([]string, 0, len(l.Properties))
		for k := range l.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, l.Properties[k]))
		}
	}
	return sb.String()
}

// FormatPendingOp formats one queued operation.
func FormatPendingOp(op models.PendingOperation) string {
	style, ok := opStyles[op.Type]
	if !ok {
		style = subtleStyle
	}
	label := op.Data.ID
	if op.Data.Name != "" {
		label = fmt.Sprintf("%s %q", op.Data.ID, op.Data.Name)
	}
	return fmt.Sprintf("#%d  %s  %s  %s",
		op.Seq,
		style.Render(fmt.Sprintf("%-6s", op.Type)),
		label,
		subtleStyle.Render(FormatTimeAgo(op.Timestamp)))
}

// FormatStorageStatus renders a status block.
func FormatStorageStatus(st *models.StorageStatus, apiURL string) string {
	var sb strings.Builder

	backend := errorStyle.Render("unreachable")
	switch {
	case st.Offline:
		backend = subtleStyle.Render("offline mode")
	case st.BackendAvailable:
		backend = successStyle.Render("available")
	}
	sb.WriteString(fmt.Sprintf("Backend:   %s", backend))
	if apiURL != "" && !st.Offline {
		sb.WriteString(subtleStyle.Render(" (" + apiURL + ")"))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Locations: %d\n", st.LocalCount))

	pending := fmt.Sprintf("%d", st.PendingSync)
	if st.PendingSync > 0 {
		pending = warningStyle.Render(pending)
	}
	sb.WriteString(fmt.Sprintf("Pending:   %s\n", pending))

	if st.LastSyncAt != nil {
		sb.WriteString(fmt.Sprintf("Last sync: %s\n", FormatTimeAgo(*st.LastSyncAt)))
	}
	return sb.String()
}

// FormatSyncReport summarizes a drain cycle on one line.
func FormatSyncReport(r *store.SyncReport) string {
	if r.Skipped {
		return warningStyle.Render(fmt.Sprintf("Backend unavailable, %d pending", r.Remaining))
	}
	parts := []string{fmt.Sprintf("%d synced", r.Replayed)}
	if r.Dropped > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("%d dropped", r.Dropped)))
	}
	if r.Failed > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d failed", r.Failed)))
	}
	if r.Deferred > 0 {
		parts = append(parts, fmt.Sprintf("%d deferred", r.Deferred))
	}
	parts = append(parts, fmt.Sprintf("%d pending", r.Remaining))
	return strings.Join(parts, ", ")
}

// FormatTimeAgo formats a time as a human-readable "ago" string.
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPROPERTIES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentString indents each line in a string by the specified number of spaces.
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	indent := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
