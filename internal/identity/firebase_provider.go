package identity

import (
	"context"
	"errors"
	"net/url"
	"time"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"

	"storefront-backend-go/internal/models"
)

const (
	oobVerifyEmail   = "VERIFY_EMAIL"
	oobPasswordReset = "PASSWORD_RESET"
)

// FirebaseProvider implements Provider with the Identity Toolkit REST API for end-user
// credential calls and the Admin SDK for lookups, profile edits and action links.
type FirebaseProvider struct {
	toolkit *identitytoolkit.Service
	admin   *auth.Client
	mailer  LinkMailer // optional
	logger  *zap.Logger
}

// NewFirebaseProvider creates a provider. When mailer is nil, the provider's own email
// templates deliver verification and reset links.
func NewFirebaseProvider(toolkit *identitytoolkit.Service, admin *auth.Client, mailer LinkMailer, logger *zap.Logger) *FirebaseProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FirebaseProvider{toolkit: toolkit, admin: admin, mailer: mailer, logger: logger}
}

func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.UserIdentity, error) {
	resp, err := p.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, Classify("Login", err)
	}
	return p.identityFor(ctx, "Login", resp.LocalId, resp.IdToken, resp.RefreshToken)
}

func (p *FirebaseProvider) SignInWithIdP(ctx context.Context, cred models.FederatedCredential) (*models.UserIdentity, error) {
	if cred.IDToken == "" {
		return nil, Invalid("Google login", CodeInvalidArgument, "missing id token")
	}
	providerID := cred.ProviderID
	if providerID == "" {
		providerID = models.ProviderGoogle
	}
	requestURI := cred.RequestURI
	if requestURI == "" {
		requestURI = "http://localhost"
	}
	postBody := url.Values{"id_token": {cred.IDToken}, "providerId": {providerID}}.Encode()

	resp, err := p.toolkit.Relyingparty.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          postBody,
		RequestUri:        requestURI,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, Classify("Google login", err)
	}
	user, err := p.identityFor(ctx, "Google login", resp.LocalId, resp.IdToken, resp.RefreshToken)
	if err != nil {
		return nil, err
	}
	user.ProviderID = providerID
	return user, nil
}

func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) (*models.UserIdentity, error) {
	resp, err := p.toolkit.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, Classify("Registration", err)
	}
	return &models.UserIdentity{
		UID:          resp.LocalId,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		ProviderID:   models.ProviderPassword,
		CreatedAt:    time.Now().UTC(),
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

func (p *FirebaseProvider) LookupSession(ctx context.Context, idToken string) (*models.UserIdentity, error) {
	token, err := p.admin.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, Classify("Session restore", err)
	}
	user, err := p.identityFor(ctx, "Session restore", token.UID, idToken, "")
	if err != nil {
		return nil, err
	}
	if token.Firebase.SignInProvider != "" {
		user.ProviderID = token.Firebase.SignInProvider
	}
	return user, nil
}

// identityFor completes a sign-in response with the account record, which carries
// the verification flag and creation time the toolkit responses omit.
func (p *FirebaseProvider) identityFor(ctx context.Context, op, uid, idToken, refreshToken string) (*models.UserIdentity, error) {
	record, err := p.admin.GetUser(ctx, uid)
	if err != nil {
		return nil, Classify(op, err)
	}
	if record.Disabled {
		return nil, &Error{Code: CodeUserDisabled, Op: op}
	}
	user := userFromRecord(record)
	user.IDToken = idToken
	user.RefreshToken = refreshToken
	return user, nil
}

func userFromRecord(record *auth.UserRecord) *models.UserIdentity {
	user := &models.UserIdentity{
		EmailVerified: record.EmailVerified,
		ProviderID:    models.ProviderPassword,
	}
	if record.UserInfo != nil {
		user.UID = record.UID
		user.Email = record.Email
		user.DisplayName = record.DisplayName
		user.PhotoURL = record.PhotoURL
	}
	for _, info := range record.ProviderUserInfo {
		if info != nil && info.ProviderID == models.ProviderGoogle {
			user.ProviderID = models.ProviderGoogle
		}
	}
	if record.UserMetadata != nil && record.UserMetadata.CreationTimestamp > 0 {
		user.CreatedAt = time.UnixMilli(record.UserMetadata.CreationTimestamp).UTC()
	}
	return user
}

func (p *FirebaseProvider) SendEmailVerification(ctx context.Context, user *models.UserIdentity) error {
	if user == nil {
		return errors.New("SendEmailVerification: user cannot be nil")
	}
	if p.mailer != nil {
		link, err := p.admin.EmailVerificationLink(ctx, user.Email)
		if err != nil {
			return Classify("Email verification", err)
		}
		return p.mailer.SendVerificationLink(ctx, user.Email, link)
	}
	_, err := p.toolkit.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: oobVerifyEmail,
		IdToken:     user.IDToken,
	}).Context(ctx).Do()
	return Classify("Email verification", err)
}

func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	if p.mailer != nil {
		link, err := p.admin.PasswordResetLink(ctx, email)
		if err != nil {
			return Classify("Password reset", err)
		}
		return p.mailer.SendPasswordResetLink(ctx, email, link)
	}
	_, err := p.toolkit.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: oobPasswordReset,
		Email:       email,
	}).Context(ctx).Do()
	return Classify("Password reset", err)
}

func (p *FirebaseProvider) VerifyPasswordResetCode(ctx context.Context, code string) (string, error) {
	resp, err := p.toolkit.Relyingparty.ResetPassword(&identitytoolkit.IdentitytoolkitRelyingpartyResetPasswordRequest{
		OobCode: code,
	}).Context(ctx).Do()
	if err != nil {
		return "", Classify("Reset code verification", err)
	}
	return resp.Email, nil
}

func (p *FirebaseProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	_, err := p.toolkit.Relyingparty.ResetPassword(&identitytoolkit.IdentitytoolkitRelyingpartyResetPasswordRequest{
		OobCode:     code,
		NewPassword: newPassword,
	}).Context(ctx).Do()
	return Classify("Password reset", err)
}

func (p *FirebaseProvider) UpdateProfile(ctx context.Context, user *models.UserIdentity, upd models.IdentityUpdate) (*models.UserIdentity, error) {
	params := &auth.UserToUpdate{}
	if upd.DisplayName != nil {
		params = params.DisplayName(*upd.DisplayName)
	}
	if upd.PhotoURL != nil {
		params = params.PhotoURL(*upd.PhotoURL)
	}
	record, err := p.admin.UpdateUser(ctx, user.UID, params)
	if err != nil {
		return nil, Classify("Profile update", err)
	}
	updated := userFromRecord(record)
	updated.ProviderID = user.ProviderID
	updated.IDToken = user.IDToken
	updated.RefreshToken = user.RefreshToken
	return updated, nil
}

func (p *FirebaseProvider) UpdatePassword(ctx context.Context, user *models.UserIdentity, newPassword string) (*models.UserIdentity, error) {
	resp, err := p.toolkit.Relyingparty.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:           user.IDToken,
		Password:          newPassword,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, Classify("Password change", err)
	}
	updated := user.Clone()
	if resp.IdToken != "" {
		updated.IDToken = resp.IdToken
		updated.RefreshToken = resp.RefreshToken
	}
	p.logger.Info("password changed", zap.String("uid", user.UID))
	return updated, nil
}
