package models

import "time"

// UserIdentity is the account as the auth provider reports it.
// IDToken and RefreshToken are session credentials and never leave the process.
type UserIdentity struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	DisplayName   string    `json:"displayName,omitempty"`
	PhotoURL      string    `json:"photoURL,omitempty"`
	ProviderID    string    `json:"providerId,omitempty"` // "password", "google.com", ...
	CreatedAt     time.Time `json:"createdAt,omitempty"`

	IDToken      string `json:"-"`
	RefreshToken string `json:"-"`
}

// Clone returns a copy safe to hand to another goroutine.
func (u *UserIdentity) Clone() *UserIdentity {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// IdentityUpdate carries the provider-side profile fields that may change.
// Nil pointers leave the field untouched.
type IdentityUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// FederatedCredential is a token issued by an external identity provider
// (for now only Google id tokens).
type FederatedCredential struct {
	ProviderID string // e.g. "google.com"
	IDToken    string
	RequestURI string // continue URI registered with the provider
}

// Provider identifiers used in profile documents.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)
