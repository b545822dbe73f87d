// Package catalog describes the storefront's product categories and derives the figures
// shown next to testimonials.
package catalog

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"storefront-backend-go/internal/models"
)

//go:embed categories.yaml
var defaultCategories []byte

// Category is one product line.
type Category struct {
	Key  string `yaml:"key" json:"key"`
	Name string `yaml:"name" json:"name"`
}

// Catalog maps product type keys to display names.
type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`
	byKey      map[string]string
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	c, err := Parse(defaultCategories)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded categories are invalid: %v", err))
	}
	return c
}

// Load reads a catalogue file, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalogue.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c.byKey = make(map[string]string, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Key == "" {
			return nil, fmt.Errorf("parse catalog: category %q has no key", cat.Name)
		}
		if _, dup := c.byKey[cat.Key]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate key %q", cat.Key)
		}
		c.byKey[cat.Key] = cat.Name
	}
	return &c, nil
}

// Name returns the display name of a product type; unknown types are shown as "Produk".
func (c *Catalog) Name(productType string) string {
	if name, ok := c.byKey[productType]; ok {
		return name
	}
	return "Produk"
}

// Stats summarises a set of testimonials.
type Stats struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"averageRating"`
	ProductTypes  int     `json:"productTypes"`
}

// DefaultAverage is shown before anyone has rated anything.
const DefaultAverage = 5.0

// ComputeStats counts testimonials, averages their rating to one decimal and counts distinct
// product types.
func ComputeStats(ts []*models.Testimonial) Stats {
	if len(ts) == 0 {
		return Stats{AverageRating: DefaultAverage}
	}
	var sum float64
	types := make(map[string]struct{})
	for _, t := range ts {
		sum += t.Rating
		if t.ProductType != "" {
			types[t.ProductType] = struct{}{}
		}
	}
	return Stats{
		Count:         len(ts),
		AverageRating: math.Round(sum/float64(len(ts))*10) / 10,
		ProductTypes:  len(types),
	}
}

// StarBreakdown is how a rating is drawn out of five stars.
type StarBreakdown struct {
	Full  int `json:"full"`
	Half  int `json:"half"`
	Empty int `json:"empty"`
}

// Stars splits a rating into full, half and empty stars. Ratings are clamped to 0..5 and a
// remainder of .5 or more renders as a half star.
func Stars(rating float64) StarBreakdown {
	rating = math.Max(0, math.Min(5, rating))
	full := int(math.Floor(rating))
	half := 0
	if rating-float64(full) >= 0.5 {
		half = 1
	}
	return StarBreakdown{Full: full, Half: half, Empty: 5 - full - half}
}
