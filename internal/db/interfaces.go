package db

import (
	"context"
	"errors"

	"storefront-backend-go/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when Create hits an existing document id.
	ErrAlreadyExists = errors.New("document already exists")
)

// UserRepository defines the operations on profile documents.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.UserProfile, error)
	// Create writes a new profile; createdAt and lastLogin are assigned by the server.
	Create(ctx context.Context, profile *models.UserProfile) error
	// Update merges the given top-level fields into an existing document.
	Update(ctx context.Context, userID string, fields map[string]interface{}) error
	TouchLastLogin(ctx context.Context, userID string) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// TestimonialRepository defines the operations on testimonial documents.
type TestimonialRepository interface {
	// ListByUser returns every testimonial owned by userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Testimonial, error)
	// ListRecent returns the newest testimonials across all users.
	ListRecent(ctx context.Context, limit int) ([]*models.Testimonial, error)
	GetByID(ctx context.Context, id string) (*models.Testimonial, error)
	Create(ctx context.Context, t *models.Testimonial) (string, error)
	// CreateBatch writes all testimonials in a single batched commit.
	CreateBatch(ctx context.Context, ts []*models.Testimonial) ([]string, error)
	Update(ctx context.Context, id string, upd models.TestimonialUpdate) error
	Delete(ctx context.Context, id string) error
	CountByUser(ctx context.Context, userID string) (int, error)
}

// OrderRepository is read-only; orders are written by the checkout flow elsewhere.
type OrderRepository interface {
	CountCompletedByUser(ctx context.Context, userID string) (int, error)
}
