package core

import (
	"context"
	"io"

	"storefront-backend-go/internal/models"
)

// ProfileSyncer reconciles a signed-in identity with its profile document.
type ProfileSyncer interface {
	// Sync never fails for store outages; it returns a degraded profile instead.
	Sync(ctx context.Context, user *models.UserIdentity) (*models.UserProfile, error)
}

// VerificationSender requests a verification email. identity.Provider satisfies it.
type VerificationSender interface {
	SendEmailVerification(ctx context.Context, user *models.UserIdentity) error
}

// AvatarUploader stores a profile picture and returns its public URL.
type AvatarUploader interface {
	Upload(ctx context.Context, uid, contentType string, size int64, r io.Reader) (string, error)
}

// CredentialService defines the sign-in, registration and password operations.
type CredentialService interface {
	Login(ctx context.Context, sess *Session, req models.LoginRequest) (*models.UserProfile, error)
	Register(ctx context.Context, sess *Session, req models.RegisterRequest) (*models.UserProfile, error)
	LoginWithGoogle(ctx context.Context, sess *Session, cred models.FederatedCredential) (*models.UserProfile, error)
	Logout(ctx context.Context, sess *Session) error
	RememberedEmail(ctx context.Context, sess *Session) string

	SendPasswordReset(ctx context.Context, email string) error
	// VerifyPasswordResetCode returns the email address the code was issued for.
	VerifyPasswordResetCode(ctx context.Context, code string) (string, error)
	ConfirmPasswordReset(ctx context.Context, req models.ConfirmResetRequest) error
	ChangePassword(ctx context.Context, sess *Session, req models.ChangePasswordRequest) error
	ResendVerification(ctx context.Context, sess *Session) error
}

// ProfileService defines the profile page operations of the signed-in user.
type ProfileService interface {
	UpdateDisplayName(ctx context.Context, sess *Session, name string) (*models.UserProfile, error)
	UploadAvatar(ctx context.Context, sess *Session, contentType string, size int64, r io.Reader) (*models.UserProfile, error)
	Summary(ctx context.Context, sess *Session) (*models.ProfileSummary, error)
}

// TestimonialFeed serves the public testimonials section.
type TestimonialFeed interface {
	PublicFeed(ctx context.Context) (*PublicFeed, error)
}
