package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend-go/internal/catalog"
	"storefront-backend-go/internal/db/dbtest"
	"storefront-backend-go/internal/models"
)

func loadedList(t *testing.T) (*TestimonialList, *dbtest.Testimonials, []string) {
	t.Helper()
	repo := dbtest.NewTestimonials()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{
		repo.Add("u1", 5, "great", base),
		repo.Add("u1", 4, "good", base.Add(time.Hour)),
		repo.Add("u1", 3.5, "fine", base.Add(2*time.Hour)),
		repo.Add("u2", 1, "someone else", base),
	}
	list := NewTestimonialList(repo)
	_, err := list.List(context.Background(), "u1")
	require.NoError(t, err)
	return list, repo, ids
}

func TestListIsNewestFirstAndOwned(t *testing.T) {
	list, _, _ := loadedList(t)

	items := list.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "fine", items[0].Text)
	assert.Equal(t, "great", items[2].Text)
	for _, it := range items {
		assert.Equal(t, "u1", it.UserID)
	}
}

func TestDeleteDecrementsCountWithoutReload(t *testing.T) {
	list, repo, ids := loadedList(t)
	before := list.Count()
	lists := repo.ListCalls()

	require.NoError(t, list.Delete(context.Background(), ids[1]))

	assert.Equal(t, before-1, list.Count())
	assert.Equal(t, lists, repo.ListCalls())
	for _, it := range list.Items() {
		assert.NotEqual(t, ids[1], it.ID)
	}
}

func TestCannotTouchOtherUsersTestimonials(t *testing.T) {
	list, repo, ids := loadedList(t)
	text := "mine now"

	_, err := list.Update(context.Background(), ids[3], models.TestimonialUpdate{Text: &text})
	assert.ErrorIs(t, err, ErrTestimonialNotFound)
	assert.ErrorIs(t, list.Delete(context.Background(), ids[3]), ErrTestimonialNotFound)
	assert.Equal(t, 0, repo.Deletes())
}

func TestUpdateValidation(t *testing.T) {
	list, _, ids := loadedList(t)
	ctx := context.Background()
	blank := "   "
	bad := 4.3
	tooHigh := 5.5

	_, err := list.Update(ctx, ids[0], models.TestimonialUpdate{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
	_, err = list.Update(ctx, ids[0], models.TestimonialUpdate{Text: &blank})
	assert.ErrorIs(t, err, ErrEmptyTestimonial)
	_, err = list.Update(ctx, ids[0], models.TestimonialUpdate{Rating: &bad})
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = list.Update(ctx, ids[0], models.TestimonialUpdate{Rating: &tooHigh})
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestUpdateRefreshesLocalEntry(t *testing.T) {
	list, repo, ids := loadedList(t)
	text := "  even better  "
	rating := 4.5

	updated, err := list.Update(context.Background(), ids[0], models.TestimonialUpdate{Text: &text, Rating: &rating})
	require.NoError(t, err)

	assert.Equal(t, "even better", updated.Text)
	assert.Equal(t, 4.5, updated.Rating)
	assert.False(t, updated.UpdatedAt.IsZero())
	stored, err := repo.GetByID(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "even better", stored.Text)
}

func TestEnsureLoadedSwitchesUser(t *testing.T) {
	list, repo, _ := loadedList(t)
	ctx := context.Background()
	calls := repo.ListCalls()

	require.NoError(t, list.EnsureLoaded(ctx, "u1"))
	assert.Equal(t, calls, repo.ListCalls())

	require.NoError(t, list.EnsureLoaded(ctx, "u2"))
	assert.Equal(t, 1, list.Count())

	list.Reset()
	assert.Equal(t, 0, list.Count())
}

func TestListErrorKeepsPreviousItems(t *testing.T) {
	list, repo, _ := loadedList(t)
	repo.Err = errors.New("offline")

	_, err := list.List(context.Background(), "u1")
	assert.Error(t, err)
	assert.Equal(t, 3, list.Count())
}

func TestValidRating(t *testing.T) {
	for _, r := range []float64{1, 1.5, 3, 4.5, 5} {
		assert.True(t, ValidRating(r), "%v", r)
	}
	for _, r := range []float64{0, 0.5, 2.25, 5.5, -1} {
		assert.False(t, ValidRating(r), "%v", r)
	}
}

func TestPublicFeed(t *testing.T) {
	repo := dbtest.NewTestimonials()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.Add("u1", 5, "a", base)
	repo.Add("u2", 4, "b", base.Add(time.Hour))
	repo.Add("u3", 3.5, "c", base.Add(2*time.Hour))

	feed, err := NewTestimonialFeed(repo, catalog.Default(), 2).PublicFeed(context.Background())
	require.NoError(t, err)

	require.Len(t, feed.Testimonials, 2)
	assert.Equal(t, "c", feed.Testimonials[0].Text)
	assert.Equal(t, catalog.StarBreakdown{Full: 3, Half: 1, Empty: 1}, feed.Testimonials[0].Stars)
	assert.Equal(t, catalog.Default().Name("script"), feed.Testimonials[0].ProductName)
	assert.Equal(t, 2, feed.Stats.Count)
	assert.Equal(t, 3.8, feed.Stats.AverageRating)
	assert.NotEmpty(t, feed.Categories)
}

func TestPublicFeedEmpty(t *testing.T) {
	feed, err := NewTestimonialFeed(dbtest.NewTestimonials(), nil, 20).PublicFeed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, feed.Testimonials)
	assert.Equal(t, catalog.DefaultAverage, feed.Stats.AverageRating)
}
