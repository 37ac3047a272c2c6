package output

import (
	"strings"
	"testing"

	"github.com/marcus/pinmap/internal/models"
)

func TestDescriptionMarkdown(t *testing.T) {
	loc := &models.Location{
		Description: "National **monument**",
		Coordinates: models.NewGeoPoint(106.8275, -6.1754),
	}
	md := DescriptionMarkdown(loc)
	if !strings.HasPrefix(md, "National **monument**\n\n") {
		t.Errorf("description should lead: %q", md)
	}
	if !strings.Contains(md, "mlat=-6.175400&mlon=106.827500") {
		t.Errorf("map link should be lat/lng ordered: %q", md)
	}

	bare := DescriptionMarkdown(&models.Location{Coordinates: models.NewGeoPoint(1, 2)})
	if !strings.HasPrefix(bare, "[Open in OpenStreetMap]") {
		t.Errorf("empty description should only hold the link: %q", bare)
	}
}

func TestRenderMarkdownWithWidthEmpty(t *testing.T) {
	out, err := RenderMarkdownWithWidth("   ", 40)
	if err != nil {
		t.Fatalf("RenderMarkdownWithWidth: %v", err)
	}
	if out != "" {
		t.Errorf("blank input: got %q, want empty", out)
	}
}

func TestRenderMarkdownWithWidth(t *testing.T) {
	out, err := RenderMarkdownWithWidth("hello world", 5)
	if err != nil {
		t.Fatalf("RenderMarkdownWithWidth: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("rendered output lost text: %q", out)
	}
}

func TestTerminalWidthPositive(t *testing.T) {
	t.Setenv("COLUMNS", "not-a-number")
	if w := TerminalWidth(0); w <= 0 {
		t.Errorf("TerminalWidth(0) = %d, want a positive width", w)
	}
}
