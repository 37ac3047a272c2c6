package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/marcus/pinmap/internal/geo"
	"github.com/marcus/pinmap/internal/models"
)

var (
	errNameRequired = errors.New("name is required")
	errNotNumber    = errors.New("not a number")
)

// locationForm holds the values edited by the interactive add form.
type locationForm struct {
	Name        string
	Category    string
	Description string
	Address     string
	Lat         string
	Lng         string
	Props       string

	form *huh.Form
}

func newLocationForm(in models.LocationInput) *locationForm {
	lf := &locationForm{
		Name:        in.Name,
		Category:    string(in.Category),
		Description: in.Description,
		Address:     in.Address,
	}
	if lf.Category == "" {
		lf.Category = string(models.CategoryPOI)
	}
	if in.Coordinates != nil && len(in.Coordinates.Coordinates) == 2 {
		lf.Lat = strconv.FormatFloat(in.Coordinates.Lat(), 'f', -1, 64)
		lf.Lng = strconv.FormatFloat(in.Coordinates.Lng(), 'f', -1, 64)
	}
	lf.build()
	return lf
}

func (lf *locationForm) build() {
	categoryOptions := make([]huh.Option[string], len(models.Categories))
	for i, c := range models.Categories {
		categoryOptions[i] = huh.NewOption(string(c), string(c))
	}

	lf.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&lf.Name).
				Placeholder("Monas").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errNameRequired
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Category").
				Options(categoryOptions...).
				Value(&lf.Category),
			huh.NewInput().
				Title("Address").
				Value(&lf.Address),
			huh.NewText().
				Title("Description").
				Value(&lf.Description).
				Placeholder("Optional, markdown allowed").
				Lines(3),
		).Title("New Location"),
		huh.NewGroup(
			huh.NewInput().
				Title("Latitude").
				Value(&lf.Lat).
				Placeholder("-6.1754").
				Validate(validateFloat),
			huh.NewInput().
				Title("Longitude").
				Value(&lf.Lng).
				Placeholder("106.8275").
				Validate(validateFloat),
			huh.NewInput().
				Title("Properties").
				Value(&lf.Props).
				Placeholder("key=value, key=value"),
		).Title("Position"),
	).WithTheme(huh.ThemeDracula())
}

func validateFloat(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return errNotNumber
	}
	return nil
}

// Run shows the form on the terminal.
func (lf *locationForm) Run() error {
	return lf.form.Run()
}

// Input converts the form values to a create request. Blank coordinates
// leave the position unset; the store substitutes its fallback point.
func (lf *locationForm) Input() (models.LocationInput, error) {
	in := models.LocationInput{
		Name:        strings.TrimSpace(lf.Name),
		Description: lf.Description,
		Address:     strings.TrimSpace(lf.Address),
	}
	if in.Name == "" {
		return in, errNameRequired
	}

	c, err := parseCategory(lf.Category)
	if err != nil {
		return in, err
	}
	in.Category = c

	lat, lng := strings.TrimSpace(lf.Lat), strings.TrimSpace(lf.Lng)
	if lat != "" || lng != "" {
		la, errLat := strconv.ParseFloat(lat, 64)
		ln, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			return in, fmt.Errorf("latitude and longitude must both be numbers")
		}
		if !geo.ValidPair(ln, la) {
			return in, fmt.Errorf("coordinates out of range: lat %v lng %v", la, ln)
		}
		p := models.NewGeoPoint(ln, la)
		in.Coordinates = &p
	}

	var pairs []string
	for _, part := range strings.Split(lf.Props, ",") {
		if part = strings.TrimSpace(part); part != "" {
			pairs = append(pairs, part)
		}
	}
	if in.Properties, err = parseProps(pairs); err != nil {
		return in, err
	}
	return in, nil
}
