// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"sync"

	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/models"
)

type account struct {
	user     *models.UserIdentity
	password string
	disabled bool
}

// Provider is a fake auth provider keyed by email. Exported counters let tests assert on
// side effects such as verification emails.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*account
	codes    map[string]string // reset code -> email
	nextUID  int

	VerificationsSent []string
	ResetsSent        []string

	// Err, when set, is returned by every call.
	Err error
	// LookupGate, when set, holds LookupSession until it is closed or the call's ctx ends.
	LookupGate chan struct{}
}

// NewProvider returns an empty fake provider.
func NewProvider() *Provider {
	return &Provider{accounts: make(map[string]*account), codes: make(map[string]string)}
}

// AddUser registers an account directly and returns its identity.
func (p *Provider) AddUser(email, password, displayName string) *models.UserIdentity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(email, password, displayName)
}

func (p *Provider) addLocked(email, password, displayName string) *models.UserIdentity {
	p.nextUID++
	u := &models.UserIdentity{
		UID:         fmt.Sprintf("uid-%d", p.nextUID),
		Email:       email,
		DisplayName: displayName,
		ProviderID:  models.ProviderPassword,
		IDToken:     fmt.Sprintf("token-%d", p.nextUID),
	}
	p.accounts[email] = &account{user: u, password: password}
	return u.Clone()
}

// Disable marks an account as disabled.
func (p *Provider) Disable(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.accounts[email]; ok {
		a.disabled = true
	}
}

// IssueResetCode creates a reset code for email.
func (p *Provider) IssueResetCode(email, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[code] = email
}

// Password returns the stored password of email.
func (p *Provider) Password(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.accounts[email]; ok {
		return a.password
	}
	return ""
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (*models.UserIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	a, ok := p.accounts[email]
	switch {
	case !ok:
		return nil, &identity.Error{Code: identity.CodeUserNotFound, Op: "Login"}
	case a.disabled:
		return nil, &identity.Error{Code: identity.CodeUserDisabled, Op: "Login"}
	case a.password != password:
		return nil, &identity.Error{Code: identity.CodeWrongPassword, Op: "Login"}
	}
	return a.user.Clone(), nil
}

func (p *Provider) SignInWithIdP(_ context.Context, cred models.FederatedCredential) (*models.UserIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	// The fake treats the id token as the email address.
	email := cred.IDToken
	a, ok := p.accounts[email]
	if !ok {
		p.addLocked(email, "", "")
		a = p.accounts[email]
		a.user.EmailVerified = true
	}
	a.user.ProviderID = models.ProviderGoogle
	return a.user.Clone(), nil
}

func (p *Provider) SignUp(_ context.Context, email, password string) (*models.UserIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if _, exists := p.accounts[email]; exists {
		return nil, &identity.Error{Code: identity.CodeEmailAlreadyInUse, Op: "Registration"}
	}
	if len(password) < identity.MinPasswordLength {
		return nil, &identity.Error{Code: identity.CodeWeakPassword, Op: "Registration"}
	}
	return p.addLocked(email, password, ""), nil
}

func (p *Provider) LookupSession(ctx context.Context, idToken string) (*models.UserIdentity, error) {
	if p.LookupGate != nil {
		select {
		case <-p.LookupGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	for _, a := range p.accounts {
		if a.user.IDToken == idToken {
			return a.user.Clone(), nil
		}
	}
	return nil, &identity.Error{Code: identity.CodeRequiresRecentLogin, Op: "Session restore"}
}

func (p *Provider) SendEmailVerification(_ context.Context, user *models.UserIdentity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.VerificationsSent = append(p.VerificationsSent, user.Email)
	return nil
}

func (p *Provider) SendPasswordReset(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	if _, ok := p.accounts[email]; !ok {
		return &identity.Error{Code: identity.CodeUserNotFound, Op: "Password reset"}
	}
	p.ResetsSent = append(p.ResetsSent, email)
	return nil
}

func (p *Provider) VerifyPasswordResetCode(_ context.Context, code string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	email, ok := p.codes[code]
	if !ok {
		return "", &identity.Error{Code: identity.CodeInvalidActionCode, Op: "Reset code verification"}
	}
	return email, nil
}

func (p *Provider) ConfirmPasswordReset(_ context.Context, code, newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	email, ok := p.codes[code]
	if !ok {
		return &identity.Error{Code: identity.CodeInvalidActionCode, Op: "Password reset"}
	}
	if len(newPassword) < identity.MinPasswordLength {
		return &identity.Error{Code: identity.CodeWeakPassword, Op: "Password reset"}
	}
	p.accounts[email].password = newPassword
	delete(p.codes, code)
	return nil
}

func (p *Provider) UpdateProfile(_ context.Context, user *models.UserIdentity, upd models.IdentityUpdate) (*models.UserIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	a, ok := p.accounts[user.Email]
	if !ok {
		return nil, &identity.Error{Code: identity.CodeUserNotFound, Op: "Profile update"}
	}
	if upd.DisplayName != nil {
		a.user.DisplayName = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		a.user.PhotoURL = *upd.PhotoURL
	}
	return a.user.Clone(), nil
}

func (p *Provider) UpdatePassword(_ context.Context, user *models.UserIdentity, newPassword string) (*models.UserIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if len(newPassword) < identity.MinPasswordLength {
		return nil, &identity.Error{Code: identity.CodeWeakPassword, Op: "Password change"}
	}
	p.accounts[user.Email].password = newPassword
	return user.Clone(), nil
}

var _ identity.Provider = (*Provider)(nil)
