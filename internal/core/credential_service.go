package core

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/events"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/metrics"
	"storefront-backend-go/internal/models"
)

// Operation names as users see them in failure messages.
const (
	opLogin        = "Login"
	opRegistration = "Registration"
	opGoogleLogin  = "Google login"
	opLogout       = "Logout"
	opReset        = "Password reset"
	opVerifyCode   = "Reset code verification"
	opChange       = "Password change"
	opVerification = "Email verification"
)

// credentialService implements CredentialService.
type credentialService struct {
	provider  identity.Provider
	users     db.UserRepository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewCredentialService creates a new CredentialService instance.
func NewCredentialService(provider identity.Provider, users db.UserRepository, publisher events.Publisher, logger *zap.Logger) CredentialService {
	if publisher == nil {
		publisher = events.NewNoop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &credentialService{provider: provider, users: users, publisher: publisher, logger: logger, now: time.Now}
}

// record counts the outcome of op and passes err through.
func record(op string, err error) error {
	code := "ok"
	if err != nil {
		code = string(identity.CodeOf(err))
	}
	metrics.CredentialOps.WithLabelValues(op, code).Inc()
	return err
}

func (s *credentialService) publish(ctx context.Context, key string, event any) {
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("key", key), zap.Error(err))
	}
}

func validateCredentials(op, email, password string) error {
	if !identity.ValidEmail(email) {
		return identity.Invalid(op, identity.CodeInvalidEmail, "invalid email")
	}
	if !identity.ValidPassword(password) {
		return identity.Invalid(op, identity.CodeWeakPassword, "password too short")
	}
	return nil
}

func (s *credentialService) Login(ctx context.Context, sess *Session, req models.LoginRequest) (*models.UserProfile, error) {
	email := identity.NormalizeEmail(req.Email)
	if err := validateCredentials(opLogin, email, req.Password); err != nil {
		return nil, record(opLogin, err)
	}

	user, err := sess.Auth.SignInWithPassword(ctx, email, req.Password)
	if err != nil {
		return nil, record(opLogin, identity.Classify(opLogin, err))
	}

	if req.RememberMe {
		err = sess.Mirror.RememberEmail(ctx, email)
	} else {
		err = sess.Mirror.ForgetEmail(ctx)
	}
	if err != nil {
		s.logger.Warn("failed to update remembered email", zap.Error(err))
	}

	s.publish(ctx, events.KeyUserLoggedIn, events.UserLoggedIn{
		UserID: user.UID, Email: user.Email, Provider: models.ProviderPassword, At: s.now(),
	})
	record(opLogin, nil)
	return sess.Store.CurrentUser(), nil
}

func (s *credentialService) Register(ctx context.Context, sess *Session, req models.RegisterRequest) (*models.UserProfile, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	email := identity.NormalizeEmail(req.Email)

	if !identity.ValidName(req.FirstName) || !identity.ValidName(req.LastName) {
		return nil, record(opRegistration, identity.Invalid(opRegistration, identity.CodeInvalidArgument,
			"first and last name must have at least 2 letters"))
	}
	if err := validateCredentials(opRegistration, email, req.Password); err != nil {
		return nil, record(opRegistration, err)
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, record(opRegistration, &identity.Error{Code: identity.CodeUnknown, Op: opRegistration, Err: err})
	}
	if exists {
		return nil, record(opRegistration, &identity.Error{Code: identity.CodeEmailAlreadyInUse, Op: opRegistration})
	}

	user, err := s.provider.SignUp(ctx, email, req.Password)
	if err != nil {
		return nil, record(opRegistration, identity.Classify(opRegistration, err))
	}

	fullName := req.FullName()
	if updated, err := s.provider.UpdateProfile(ctx, user, models.IdentityUpdate{DisplayName: &fullName}); err != nil {
		s.logger.Warn("failed to set display name", zap.String("uid", user.UID), zap.Error(err))
		user.DisplayName = fullName
	} else {
		user = updated
	}

	profile := NewProfile(user, s.now())
	profile.Provider = models.ProviderPassword
	profile.Extra = map[string]interface{}{
		"firstName": req.FirstName,
		"lastName":  req.LastName,
		"fullName":  fullName,
	}
	// A failed write still signs the new account in; the sync triggered below then creates the
	// document from the identity and sends the verification email.
	created := true
	if err := s.users.Create(ctx, profile); err != nil {
		s.logger.Error("failed to create profile on registration", zap.String("uid", user.UID), zap.Error(err))
		created = false
	}

	if created {
		if err := s.provider.SendEmailVerification(ctx, user); err != nil {
			s.logger.Warn("failed to send verification email", zap.String("uid", user.UID), zap.Error(err))
		}
	}

	sess.Auth.SetCurrentUser(ctx, user)

	s.publish(ctx, events.KeyUserRegistered, events.UserRegistered{
		UserID: user.UID, Email: user.Email, Name: fullName, Provider: models.ProviderPassword, At: s.now(),
	})
	record(opRegistration, nil)
	return sess.Store.CurrentUser(), nil
}

func (s *credentialService) LoginWithGoogle(ctx context.Context, sess *Session, cred models.FederatedCredential) (*models.UserProfile, error) {
	if cred.IDToken == "" {
		return nil, record(opGoogleLogin, identity.Invalid(opGoogleLogin, identity.CodeInvalidArgument, "missing Google id token"))
	}
	if cred.ProviderID == "" {
		cred.ProviderID = models.ProviderGoogle
	}
	user, err := sess.Auth.SignInWithIdP(ctx, cred)
	if err != nil {
		return nil, record(opGoogleLogin, identity.Classify(opGoogleLogin, err))
	}

	s.publish(ctx, events.KeyUserLoggedIn, events.UserLoggedIn{
		UserID: user.UID, Email: user.Email, Provider: models.ProviderGoogle, At: s.now(),
	})
	record(opGoogleLogin, nil)
	return sess.Store.CurrentUser(), nil
}

func (s *credentialService) Logout(ctx context.Context, sess *Session) error {
	user := sess.Auth.CurrentUser()
	sess.Auth.SignOut(ctx)
	if user != nil {
		s.publish(ctx, events.KeyUserLoggedOut, events.UserLoggedOut{UserID: user.UID, At: s.now()})
	}
	record(opLogout, nil)
	return nil
}

func (s *credentialService) RememberedEmail(ctx context.Context, sess *Session) string {
	return sess.Mirror.RememberedEmail(ctx)
}

func (s *credentialService) SendPasswordReset(ctx context.Context, email string) error {
	email = identity.NormalizeEmail(email)
	if !identity.ValidEmail(email) {
		return record(opReset, identity.Invalid(opReset, identity.CodeInvalidEmail, "invalid email"))
	}
	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		return record(opReset, identity.Classify(opReset, err))
	}
	return record(opReset, nil)
}

func (s *credentialService) VerifyPasswordResetCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", record(opVerifyCode, &identity.Error{Code: identity.CodeInvalidActionCode, Op: opVerifyCode})
	}
	email, err := s.provider.VerifyPasswordResetCode(ctx, code)
	if err != nil {
		return "", record(opVerifyCode, identity.Classify(opVerifyCode, err))
	}
	record(opVerifyCode, nil)
	return email, nil
}

func (s *credentialService) ConfirmPasswordReset(ctx context.Context, req models.ConfirmResetRequest) error {
	if !identity.ValidPassword(req.NewPassword) {
		return record(opReset, identity.Invalid(opReset, identity.CodeWeakPassword, "password too short"))
	}
	if err := s.provider.ConfirmPasswordReset(ctx, req.Code, req.NewPassword); err != nil {
		return record(opReset, identity.Classify(opReset, err))
	}
	return record(opReset, nil)
}

func (s *credentialService) ChangePassword(ctx context.Context, sess *Session, req models.ChangePasswordRequest) error {
	if sess.Auth.CurrentUser() == nil {
		return record(opChange, identity.ErrNotSignedIn)
	}
	if !identity.ValidPassword(req.NewPassword) {
		return record(opChange, identity.Invalid(opChange, identity.CodeWeakPassword, "password too short"))
	}
	if req.NewPassword != req.ConfirmPassword {
		return record(opChange, identity.Invalid(opChange, identity.CodeInvalidArgument, "New passwords do not match."))
	}
	if err := sess.Auth.Reauthenticate(ctx, req.CurrentPassword); err != nil {
		return record(opChange, identity.Classify(opChange, err))
	}
	if err := sess.Auth.UpdatePassword(ctx, req.NewPassword); err != nil {
		return record(opChange, identity.Classify(opChange, err))
	}
	return record(opChange, nil)
}

func (s *credentialService) ResendVerification(ctx context.Context, sess *Session) error {
	if err := sess.Auth.SendEmailVerification(ctx); err != nil {
		return record(opVerification, identity.Classify(opVerification, err))
	}
	return record(opVerification, nil)
}
