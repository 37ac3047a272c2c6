package monitor

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/pinmap/internal/models"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle       = lipgloss.NewStyle().Bold(true)
	subtleStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle        = lipgloss.NewStyle().Foreground(mutedColor)
	timestampStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	selectedRowStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(errorColor)

	// Backend badges
	onlineBadge  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(successColor).Padding(0, 1)
	offlineBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(errorColor).Padding(0, 1)
	pendingBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(warningColor).Padding(0, 1)

	categoryStyles = map[models.Category]lipgloss.Style{
		models.CategoryPOI:        lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.CategoryRestaurant: lipgloss.NewStyle().Foreground(warningColor),
		models.CategoryHotel:      lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		models.CategoryShopping:   lipgloss.NewStyle().Foreground(primaryColor),
		models.CategoryEducation:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		models.CategoryHealth:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		models.CategoryTransport:  lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		models.CategoryOther:      lipgloss.NewStyle().Foreground(mutedColor),
	}

	// Queue op badges
	opStyles = map[models.OpType]lipgloss.Style{
		models.OpCreate: lipgloss.NewStyle().Foreground(successColor),
		models.OpUpdate: lipgloss.NewStyle().Foreground(warningColor),
		models.OpDelete: lipgloss.NewStyle().Foreground(errorColor),
	}
)

// formatCategory renders a category with color.
func formatCategory(c models.Category) string {
	style, ok := categoryStyles[c]
	if !ok {
		return string(c)
	}
	return style.Render(string(c))
}

// formatOp renders a queue op type badge.
func formatOp(t models.OpType) string {
	label := "[" + string(t) + "]"
	style, ok := opStyles[t]
	if !ok {
		return subtleStyle.Render(label)
	}
	return style.Render(label)
}
