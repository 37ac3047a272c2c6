package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/marcus/pinmap/internal/models"
)

const (
	defaultMarkdownWidth = 80
	minMarkdownWidth     = 20
)

// TerminalWidth returns the current terminal width or a fallback when unavailable.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultMarkdownWidth
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

// IsTerminal reports whether stdout is an interactive terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// RenderMarkdown renders markdown using Glamour with terminal-aware wrapping.
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(defaultMarkdownWidth))
}

// RenderMarkdownWithWidth renders markdown using Glamour with explicit wrapping.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}

	return strings.TrimRight(rendered, "\n"), nil
}

// DescriptionMarkdown builds the markdown shown under a location in
// `pinmap show`: the free-text description followed by a map link.
func DescriptionMarkdown(l *models.Location) string {
	var sb strings.Builder
	if d := strings.TrimSpace(l.Description); d != "" {
		sb.WriteString(d)
		sb.WriteString("\n\n")
	}
	m := l.Coordinates.MapPoint()
	fmt.Fprintf(&sb, "[Open in OpenStreetMap](https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=17/%.6f/%.6f)\n",
		m.Lat, m.Lng, m.Lat, m.Lng)
	return sb.String()
}
