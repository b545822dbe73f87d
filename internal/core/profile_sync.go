package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/metrics"
	"storefront-backend-go/internal/models"
)

// Sync outcomes, also used as metric labels.
const (
	syncCreated  = "created"
	syncMerged   = "merged"
	syncDegraded = "degraded"
)

var errNoIdentity = errors.New("identity with a uid is required")

// ProfileSynchronizer makes sure every signed-in identity has a profile document and returns
// the merged view of both.
type ProfileSynchronizer struct {
	users    db.UserRepository
	verifier VerificationSender
	logger   *zap.Logger
	now      func() time.Time

	group singleflight.Group
}

// NewProfileSynchronizer creates a synchronizer. verifier may be nil, in which case new
// accounts get no verification email.
func NewProfileSynchronizer(users db.UserRepository, verifier VerificationSender, logger *zap.Logger) *ProfileSynchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileSynchronizer{users: users, verifier: verifier, logger: logger, now: time.Now}
}

// Sync creates or refreshes the profile of user. Concurrent calls for the same uid share one
// store round trip and one result, so the round trip does not end with the ctx of the caller
// that started it.
func (s *ProfileSynchronizer) Sync(ctx context.Context, user *models.UserIdentity) (*models.UserProfile, error) {
	if user == nil || user.UID == "" {
		return nil, errNoIdentity
	}
	v, _, shared := s.group.Do(user.UID, func() (interface{}, error) {
		return s.sync(context.WithoutCancel(ctx), user), nil
	})
	if shared {
		metrics.ProfileSyncShared.Inc()
	}
	return v.(*models.UserProfile).Clone(), nil
}

func (s *ProfileSynchronizer) sync(ctx context.Context, user *models.UserIdentity) *models.UserProfile {
	stored, err := s.users.GetByID(ctx, user.UID)
	if errors.Is(err, db.ErrNotFound) {
		return s.create(ctx, user)
	}
	if err != nil {
		return s.degrade(user, "failed to fetch profile", err)
	}
	return s.refresh(ctx, stored, user)
}

func (s *ProfileSynchronizer) create(ctx context.Context, user *models.UserIdentity) *models.UserProfile {
	profile := NewProfile(user, s.now())
	err := s.users.Create(ctx, profile)
	if errors.Is(err, db.ErrAlreadyExists) {
		// Another process created it between our read and write.
		stored, getErr := s.users.GetByID(ctx, user.UID)
		if getErr != nil {
			return s.degrade(user, "failed to re-read profile after create conflict", getErr)
		}
		return s.refresh(ctx, stored, user)
	}
	if err != nil {
		return s.degrade(user, "failed to create profile", err)
	}

	if !user.EmailVerified && s.verifier != nil {
		if err := s.verifier.SendEmailVerification(ctx, user); err != nil {
			s.logger.Warn("failed to send verification email",
				zap.String("uid", user.UID), zap.Error(err))
		}
	}
	metrics.ProfileSyncs.WithLabelValues(syncCreated).Inc()
	s.logger.Info("profile created", zap.String("uid", user.UID), zap.String("provider", profile.Provider))
	return profile
}

func (s *ProfileSynchronizer) refresh(ctx context.Context, stored *models.UserProfile, user *models.UserIdentity) *models.UserProfile {
	if err := s.users.TouchLastLogin(ctx, user.UID); err != nil {
		return s.degrade(user, "failed to update last login", err)
	}
	metrics.ProfileSyncs.WithLabelValues(syncMerged).Inc()
	return MergeProfile(stored, user, s.now())
}

func (s *ProfileSynchronizer) degrade(user *models.UserIdentity, msg string, err error) *models.UserProfile {
	s.logger.Error(msg, zap.String("uid", user.UID), zap.Error(err))
	metrics.ProfileSyncs.WithLabelValues(syncDegraded).Inc()
	return MinimalProfile(user)
}

// NewProfile is the document written for an identity seen for the first time.
func NewProfile(user *models.UserIdentity, now time.Time) *models.UserProfile {
	provider := user.ProviderID
	if provider == "" {
		provider = models.ProviderPassword
	}
	return &models.UserProfile{
		UID:           user.UID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		PhotoURL:      user.PhotoURL,
		Role:          models.RoleUser,
		Status:        models.StatusActive,
		EmailVerified: user.EmailVerified,
		Provider:      provider,
		CreatedAt:     now,
		LastLogin:     now,
	}
}

// MinimalProfile is built from the identity alone when the store cannot be reached.
// It is never persisted.
func MinimalProfile(user *models.UserIdentity) *models.UserProfile {
	return &models.UserProfile{
		UID:           user.UID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		PhotoURL:      user.PhotoURL,
		Role:          models.RoleUser,
		EmailVerified: user.EmailVerified,
		Provider:      user.ProviderID,
		Degraded:      true,
	}
}

// MergeProfile combines a stored profile with the live identity. The identity decides who the
// user is and whether the address is verified; the store decides everything the storefront
// owns (role, balance, purchases, history). Names and photos prefer the identity unless it has
// none.
func MergeProfile(stored *models.UserProfile, user *models.UserIdentity, now time.Time) *models.UserProfile {
	merged := stored.Clone()
	merged.UID = user.UID
	if user.Email != "" {
		merged.Email = user.Email
	}
	merged.EmailVerified = user.EmailVerified
	if user.DisplayName != "" {
		merged.DisplayName = user.DisplayName
	}
	if user.PhotoURL != "" {
		merged.PhotoURL = user.PhotoURL
	}
	if merged.Provider == "" {
		merged.Provider = user.ProviderID
	}
	if merged.Role == "" {
		merged.Role = models.RoleUser
	}
	merged.LastLogin = now
	merged.Degraded = false
	return merged
}
