package core

import (
	"context"
	"fmt"

	"storefront-backend-go/internal/catalog"
	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/models"
)

// FeedItem is a public testimonial with its product name resolved and stars precomputed.
type FeedItem struct {
	*models.Testimonial
	Stars catalog.StarBreakdown `json:"stars"`
}

// PublicFeed is the testimonials section of the landing page.
type PublicFeed struct {
	Testimonials []FeedItem         `json:"testimonials"`
	Stats        catalog.Stats      `json:"stats"`
	Categories   []catalog.Category `json:"categories"`
}

type testimonialFeed struct {
	repo    db.TestimonialRepository
	catalog *catalog.Catalog
	limit   int
}

// NewTestimonialFeed serves the newest limit testimonials.
func NewTestimonialFeed(repo db.TestimonialRepository, c *catalog.Catalog, limit int) TestimonialFeed {
	if c == nil {
		c = catalog.Default()
	}
	return &testimonialFeed{repo: repo, catalog: c, limit: limit}
}

func (f *testimonialFeed) PublicFeed(ctx context.Context) (*PublicFeed, error) {
	ts, err := f.repo.ListRecent(ctx, f.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load public testimonials: %w", err)
	}
	items := make([]FeedItem, len(ts))
	for i, t := range ts {
		if t.ProductName == "" {
			t.ProductName = f.catalog.Name(t.ProductType)
		}
		items[i] = FeedItem{Testimonial: t, Stars: catalog.Stars(t.Rating)}
	}
	return &PublicFeed{
		Testimonials: items,
		Stats:        catalog.ComputeStats(ts),
		Categories:   f.catalog.Categories,
	}, nil
}
