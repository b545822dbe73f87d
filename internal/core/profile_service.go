package core

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/models"
	"storefront-backend-go/internal/storage"
)

var (
	ErrEmptyDisplayName = errors.New("display name cannot be empty")
	ErrAvatarsDisabled  = errors.New("avatar uploads are not configured")
)

// profileService implements ProfileService.
type profileService struct {
	testimonials db.TestimonialRepository
	orders       db.OrderRepository
	avatars      AvatarUploader
	logger       *zap.Logger
}

// NewProfileService creates a new ProfileService instance. avatars may be nil when no storage
// bucket is configured.
func NewProfileService(testimonials db.TestimonialRepository, orders db.OrderRepository, avatars AvatarUploader, logger *zap.Logger) ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &profileService{testimonials: testimonials, orders: orders, avatars: avatars, logger: logger}
}

func (s *profileService) UpdateDisplayName(ctx context.Context, sess *Session, name string) (*models.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyDisplayName
	}
	if _, err := sess.Auth.UpdateProfile(ctx, models.IdentityUpdate{DisplayName: &name}); err != nil {
		return nil, identity.Classify("Profile update", err)
	}
	return sess.Store.UpdateUser(ctx, models.ProfileUpdate{DisplayName: &name})
}

func (s *profileService) UploadAvatar(ctx context.Context, sess *Session, contentType string, size int64, r io.Reader) (*models.UserProfile, error) {
	user := sess.Store.CurrentUser()
	if user == nil {
		return nil, identity.ErrNotSignedIn
	}
	if err := storage.ValidateAvatar(contentType, size); err != nil {
		return nil, err
	}
	if s.avatars == nil {
		return nil, ErrAvatarsDisabled
	}

	photoURL, err := s.avatars.Upload(ctx, user.UID, contentType, size, r)
	if err != nil {
		return nil, err
	}
	if _, err := sess.Auth.UpdateProfile(ctx, models.IdentityUpdate{PhotoURL: &photoURL}); err != nil {
		return nil, identity.Classify("Profile update", err)
	}
	return sess.Store.UpdateUser(ctx, models.ProfileUpdate{PhotoURL: &photoURL})
}

// Summary counts purchases from completed orders. When orders cannot be read the testimonial
// count stands in, since every testimonial belongs to a purchase.
func (s *profileService) Summary(ctx context.Context, sess *Session) (*models.ProfileSummary, error) {
	user := sess.Store.CurrentUser()
	if user == nil {
		return nil, identity.ErrNotSignedIn
	}

	testimonials, err := s.testimonials.CountByUser(ctx, user.UID)
	if err != nil {
		s.logger.Warn("failed to count testimonials", zap.String("uid", user.UID), zap.Error(err))
		testimonials = 0
	}
	purchases, err := s.orders.CountCompletedByUser(ctx, user.UID)
	if err != nil {
		s.logger.Warn("failed to count orders, using testimonial count", zap.String("uid", user.UID), zap.Error(err))
		purchases = testimonials
	}

	return &models.ProfileSummary{
		Profile:           user,
		JoinDate:          user.CreatedAt,
		Purchases:         purchases,
		TestimonialsCount: testimonials,
	}, nil
}
