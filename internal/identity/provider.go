// Package identity talks to the auth provider.
//
// Provider is the stateless set of provider calls. Auth is the per-session view on top of it:
// it remembers who is signed in for one page session and emits change notifications.
package identity

import (
	"context"

	"storefront-backend-go/internal/models"
)

// Provider is the external auth service. Implementations return *Error for classified failures.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.UserIdentity, error)
	SignInWithIdP(ctx context.Context, cred models.FederatedCredential) (*models.UserIdentity, error)
	SignUp(ctx context.Context, email, password string) (*models.UserIdentity, error)
	// LookupSession resolves an ID token issued earlier into the identity it belongs to.
	LookupSession(ctx context.Context, idToken string) (*models.UserIdentity, error)

	SendEmailVerification(ctx context.Context, user *models.UserIdentity) error
	SendPasswordReset(ctx context.Context, email string) error
	// VerifyPasswordResetCode returns the email the code was issued for.
	VerifyPasswordResetCode(ctx context.Context, code string) (string, error)
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error

	UpdateProfile(ctx context.Context, user *models.UserIdentity, upd models.IdentityUpdate) (*models.UserIdentity, error)
	// UpdatePassword requires a recently issued ID token and returns refreshed credentials.
	UpdatePassword(ctx context.Context, user *models.UserIdentity, newPassword string) (*models.UserIdentity, error)
}

// LinkMailer delivers provider-generated action links through our own mail relay.
type LinkMailer interface {
	SendVerificationLink(ctx context.Context, email, link string) error
	SendPasswordResetLink(ctx context.Context, email, link string) error
}
