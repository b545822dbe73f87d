package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/models"
)

var (
	ErrTestimonialNotFound = errors.New("testimonial not found")
	ErrEmptyTestimonial    = errors.New("testimonial text cannot be empty")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5 in steps of 0.5")
	ErrNothingToUpdate     = errors.New("no changes given")
)

// TestimonialList is the signed-in user's own testimonials as shown on the profile page.
// Only entries present in the loaded list can be edited or deleted.
type TestimonialList struct {
	repo db.TestimonialRepository
	now  func() time.Time

	mu     sync.RWMutex
	userID string
	items  []*models.Testimonial
}

// NewTestimonialList creates an empty list.
func NewTestimonialList(repo db.TestimonialRepository) *TestimonialList {
	return &TestimonialList{repo: repo, now: time.Now}
}

// List loads every testimonial of userID, newest first, replacing what was loaded before.
func (l *TestimonialList) List(ctx context.Context, userID string) ([]*models.Testimonial, error) {
	items, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load testimonials of user %s: %w", userID, err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	l.mu.Lock()
	l.userID = userID
	l.items = items
	l.mu.Unlock()
	return l.Items(), nil
}

// EnsureLoaded loads the list unless it already holds userID's testimonials.
func (l *TestimonialList) EnsureLoaded(ctx context.Context, userID string) error {
	l.mu.RLock()
	loaded := l.userID == userID && l.items != nil
	l.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err := l.List(ctx, userID)
	return err
}

// Items returns copies of the loaded testimonials.
func (l *TestimonialList) Items() []*models.Testimonial {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.Testimonial, len(l.items))
	for i, t := range l.items {
		c := *t
		out[i] = &c
	}
	return out
}

// Count is the number of loaded testimonials.
func (l *TestimonialList) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Reset forgets the loaded list.
func (l *TestimonialList) Reset() {
	l.mu.Lock()
	l.userID = ""
	l.items = nil
	l.mu.Unlock()
}

// ValidRating accepts 1 to 5 in half steps.
func ValidRating(r float64) bool {
	return r >= 1 && r <= 5 && math.Mod(r*2, 1) == 0
}

// Update edits the text and/or rating of a loaded testimonial.
func (l *TestimonialList) Update(ctx context.Context, id string, upd models.TestimonialUpdate) (*models.Testimonial, error) {
	if upd.Text == nil && upd.Rating == nil {
		return nil, ErrNothingToUpdate
	}
	if upd.Text != nil {
		text := strings.TrimSpace(*upd.Text)
		if text == "" {
			return nil, ErrEmptyTestimonial
		}
		upd.Text = &text
	}
	if upd.Rating != nil && !ValidRating(*upd.Rating) {
		return nil, ErrInvalidRating
	}
	if l.indexOf(id) < 0 {
		return nil, ErrTestimonialNotFound
	}

	if err := l.repo.Update(ctx, id, upd); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrTestimonialNotFound
		}
		return nil, fmt.Errorf("failed to update testimonial %s: %w", id, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOfLocked(id)
	if i < 0 {
		return nil, ErrTestimonialNotFound
	}
	t := l.items[i]
	if upd.Text != nil {
		t.Text = *upd.Text
	}
	if upd.Rating != nil {
		t.Rating = *upd.Rating
	}
	t.UpdatedAt = l.now()
	c := *t
	return &c, nil
}

// Delete removes a loaded testimonial from the store and from the list.
func (l *TestimonialList) Delete(ctx context.Context, id string) error {
	if l.indexOf(id) < 0 {
		return ErrTestimonialNotFound
	}
	if err := l.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete testimonial %s: %w", id, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.indexOfLocked(id); i >= 0 {
		l.items = append(l.items[:i], l.items[i+1:]...)
	}
	return nil
}

func (l *TestimonialList) indexOf(id string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexOfLocked(id)
}

func (l *TestimonialList) indexOfLocked(id string) int {
	for i, t := range l.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}
