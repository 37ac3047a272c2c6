package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/marcus/pinmap/internal/models"
)

// addLocationFlags registers the editable location fields on a command.
func addLocationFlags(fs *pflag.FlagSet) {
	fs.StringP("name", "n", "", "location name")
	fs.StringP("category", "c", "", "category ("+categoryList()+")")
	fs.StringP("description", "d", "", "description (markdown)")
	fs.StringP("address", "a", "", "street address")
	fs.Float64("lat", 0, "latitude")
	fs.Float64("lng", 0, "longitude")
	fs.StringArrayP("prop", "p", nil, "extra property key=value (repeatable)")
}

func categoryList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// parseCategory accepts a known category name, case-insensitively.
func parseCategory(s string) (models.Category, error) {
	c := models.Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return models.CategoryPOI, nil
	}
	if !c.IsKnown() {
		return "", fmt.Errorf("unknown category %q (want one of: %s)", s, categoryList())
	}
	return c, nil
}

// parseProps turns repeated key=value flags into a property map.
func parseProps(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q (want key=value)", p)
		}
		props[k] = strings.TrimSpace(v)
	}
	return props, nil
}

// coordinatesFromFlags returns nil when neither --lat nor --lng was given.
// Giving only one of them is an error; the store handles out-of-range values.
func coordinatesFromFlags(fs *pflag.FlagSet) (*models.GeoPoint, error) {
	latSet, lngSet := fs.Changed("lat"), fs.Changed("lng")
	if !latSet && !lngSet {
		return nil, nil
	}
	if latSet != lngSet {
		return nil, fmt.Errorf("--lat and --lng must be given together")
	}
	lat, _ := fs.GetFloat64("lat")
	lng, _ := fs.GetFloat64("lng")
	p := models.NewGeoPoint(lng, lat)
	return &p, nil
}

// inputFromFlags builds a create request from the location flags.
func inputFromFlags(fs *pflag.FlagSet) (models.LocationInput, error) {
	var in models.LocationInput
	in.Name, _ = fs.GetString("name")
	in.Description, _ = fs.GetString("description")
	in.Address, _ = fs.GetString("address")

	cat, _ := fs.GetString("category")
	c, err := parseCategory(cat)
	if err != nil {
		return in, err
	}
	in.Category = c

	if in.Coordinates, err = coordinatesFromFlags(fs); err != nil {
		return in, err
	}

	pairs, _ := fs.GetStringArray("prop")
	if in.Properties, err = parseProps(pairs); err != nil {
		return in, err
	}
	return in, nil
}

// patchFromFlags builds an update from the flags that were explicitly set.
func patchFromFlags(fs *pflag.FlagSet) (models.LocationPatch, error) {
	var p models.LocationPatch
	if fs.Changed("name") {
		v, _ := fs.GetString("name")
		p.Name = &v
	}
	if fs.Changed("category") {
		v, _ := fs.GetString("category")
		c, err := parseCategory(v)
		if err != nil {
			return p, err
		}
		p.Category = &c
	}
	if fs.Changed("description") {
		v, _ := fs.GetString("description")
		p.Description = &v
	}
	if fs.Changed("address") {
		v, _ := fs.GetString("address")
		p.Address = &v
	}

	coords, err := coordinatesFromFlags(fs)
	if err != nil {
		return p, err
	}
	p.Coordinates = coords

	pairs, _ := fs.GetStringArray("prop")
	if p.Properties, err = parseProps(pairs); err != nil {
		return p, err
	}
	return p, nil
}
