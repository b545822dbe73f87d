package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storefront-backend-go/internal/models"
)

const testimonialsCollection = "testimonials"

// testimonialDocument is the stored shape of a testimonial.
type testimonialDocument struct {
	Name        string    `firestore:"name"`
	Rating      float64   `firestore:"rating"`
	Text        string    `firestore:"text"`
	ProductType string    `firestore:"productType,omitempty"`
	ProductName string    `firestore:"productName,omitempty"`
	Date        time.Time `firestore:"date,serverTimestamp"`
	UpdatedAt   time.Time `firestore:"updatedAt,omitempty"`
	UserID      string    `firestore:"userId,omitempty"`
}

func (d testimonialDocument) model(id string) *models.Testimonial {
	return &models.Testimonial{
		ID:          id,
		Name:        d.Name,
		Rating:      d.Rating,
		Text:        d.Text,
		ProductType: d.ProductType,
		ProductName: d.ProductName,
		CreatedAt:   d.Date,
		UpdatedAt:   d.UpdatedAt,
		UserID:      d.UserID,
	}
}

func testimonialToDocument(t *models.Testimonial) testimonialDocument {
	return testimonialDocument{
		Name:        t.Name,
		Rating:      t.Rating,
		Text:        t.Text,
		ProductType: t.ProductType,
		ProductName: t.ProductName,
		Date:        t.CreatedAt,
		UserID:      t.UserID,
	}
}

// firestoreTestimonialRepository implements TestimonialRepository using Firestore.
type firestoreTestimonialRepository struct {
	client *firestore.Client
}

// NewFirestoreTestimonialRepository creates a new instance of firestoreTestimonialRepository.
func NewFirestoreTestimonialRepository(client *firestore.Client) TestimonialRepository {
	return &firestoreTestimonialRepository{client: client}
}

func (r *firestoreTestimonialRepository) ListByUser(ctx context.Context, userID string) ([]*models.Testimonial, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListByUser operation")
	}
	query := r.client.Collection(testimonialsCollection).
		Where("userId", "==", userID).
		OrderBy("date", firestore.Desc)
	return r.collect(ctx, query)
}

func (r *firestoreTestimonialRepository) ListRecent(ctx context.Context, limit int) ([]*models.Testimonial, error) {
	query := r.client.Collection(testimonialsCollection).OrderBy("date", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.collect(ctx, query)
}

func (r *firestoreTestimonialRepository) collect(ctx context.Context, query firestore.Query) ([]*models.Testimonial, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []*models.Testimonial
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate testimonials: %w", err)
		}
		var d testimonialDocument
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode testimonial '%s': %w", doc.Ref.ID, err)
		}
		out = append(out, d.model(doc.Ref.ID))
	}
	return out, nil
}

func (r *firestoreTestimonialRepository) GetByID(ctx context.Context, id string) (*models.Testimonial, error) {
	snap, err := r.client.Collection(testimonialsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("testimonial '%s' not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get testimonial '%s': %w", id, err)
	}
	var d testimonialDocument
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode testimonial '%s': %w", id, err)
	}
	return d.model(snap.Ref.ID), nil
}

func (r *firestoreTestimonialRepository) Create(ctx context.Context, t *models.Testimonial) (string, error) {
	ref, _, err := r.client.Collection(testimonialsCollection).Add(ctx, testimonialToDocument(t))
	if err != nil {
		return "", fmt.Errorf("failed to create testimonial: %w", err)
	}
	return ref.ID, nil
}

func (r *firestoreTestimonialRepository) CreateBatch(ctx context.Context, ts []*models.Testimonial) ([]string, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	batch := r.client.Batch()
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		ref := r.client.Collection(testimonialsCollection).NewDoc()
		batch.Set(ref, testimonialToDocument(t))
		ids = append(ids, ref.ID)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit testimonial batch: %w", err)
	}
	return ids, nil
}

func (r *firestoreTestimonialRepository) Update(ctx context.Context, id string, upd models.TestimonialUpdate) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}}
	if upd.Text != nil {
		updates = append(updates, firestore.Update{Path: "text", Value: *upd.Text})
	}
	if upd.Rating != nil {
		updates = append(updates, firestore.Update{Path: "rating", Value: *upd.Rating})
	}
	_, err := r.client.Collection(testimonialsCollection).Doc(id).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("testimonial '%s' not found: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to update testimonial '%s': %w", id, err)
	}
	return nil
}

func (r *firestoreTestimonialRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Collection(testimonialsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete testimonial '%s': %w", id, err)
	}
	return nil
}

// CountByUser counts by iterating; the collection per user is small.
func (r *firestoreTestimonialRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	iter := r.client.Collection(testimonialsCollection).Where("userId", "==", userID).Documents(ctx)
	return countDocuments(iter)
}

func countDocuments(iter *firestore.DocumentIterator) (int, error) {
	defer iter.Stop()
	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to count documents: %w", err)
		}
		count++
	}
}
