package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/middleware"
	"storefront-backend-go/internal/models"
)

// TestimonialHandler serves the profile page list and the public feed.
type TestimonialHandler struct {
	feed   core.TestimonialFeed
	logger *zap.Logger
}

// NewTestimonialHandler creates a new TestimonialHandler.
func NewTestimonialHandler(feed core.TestimonialFeed, logger *zap.Logger) *TestimonialHandler {
	return &TestimonialHandler{feed: feed, logger: logger}
}

// ListMine handles GET /api/v1/users/me/testimonials and reloads the list from the store.
func (h *TestimonialHandler) ListMine(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	user := sess.Store.CurrentUser()
	if user == nil {
		respondError(c, h.logger, identity.ErrNotSignedIn)
		return
	}
	items, err := sess.Testimonials.List(c.Request.Context(), user.UID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, TestimonialsResponse{Success: true, Testimonials: items, Count: len(items)})
}

// UpdateMine handles PUT /api/v1/users/me/testimonials/:id.
func (h *TestimonialHandler) UpdateMine(c *gin.Context) {
	var upd models.TestimonialUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "Invalid testimonial data.")
		return
	}
	sess, ok := h.loadedSession(c)
	if !ok {
		return
	}
	t, err := sess.Testimonials.Update(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, TestimonialResponse{Success: true, Testimonial: t})
}

// DeleteMine handles DELETE /api/v1/users/me/testimonials/:id.
func (h *TestimonialHandler) DeleteMine(c *gin.Context) {
	sess, ok := h.loadedSession(c)
	if !ok {
		return
	}
	if err := sess.Testimonials.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, TestimonialsResponse{
		Success:      true,
		Testimonials: sess.Testimonials.Items(),
		Count:        sess.Testimonials.Count(),
	})
}

// loadedSession makes sure the session's list holds the signed-in user's testimonials, so
// edits are limited to what that user owns.
func (h *TestimonialHandler) loadedSession(c *gin.Context) (*core.Session, bool) {
	sess := middleware.SessionFrom(c)
	user := sess.Store.CurrentUser()
	if user == nil {
		respondError(c, h.logger, identity.ErrNotSignedIn)
		return nil, false
	}
	if err := sess.Testimonials.EnsureLoaded(c.Request.Context(), user.UID); err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	return sess, true
}

// PublicFeed handles GET /api/v1/testimonials.
func (h *TestimonialHandler) PublicFeed(c *gin.Context) {
	feed, err := h.feed.PublicFeed(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, FeedResponse{Success: true, PublicFeed: feed})
}
