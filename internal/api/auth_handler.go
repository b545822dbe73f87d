package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/middleware"
	"storefront-backend-go/internal/models"
)

// GoogleFlow is the server-side Google redirect flow. *identity.GoogleOAuth satisfies it.
type GoogleFlow interface {
	MakeState(raw string) string
	VerifyState(state string) (string, bool)
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (models.FederatedCredential, error)
}

// AuthHandler handles sign-in, registration and password endpoints.
type AuthHandler struct {
	credentials core.CredentialService
	google      GoogleFlow // nil when the redirect flow is not configured
	clientURL   string
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(credentials core.CredentialService, google GoogleFlow, clientURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{credentials: credentials, google: google, clientURL: clientURL, logger: logger}
}

func (h *AuthHandler) respondUser(c *gin.Context, sess *core.Session, user *models.UserProfile, msg string) {
	c.JSON(http.StatusOK, UserResponse{
		Success:     true,
		User:        user,
		DisplayName: sess.Store.DisplayName(),
		Initial:     sess.Store.Initial(),
		AvatarURL:   sess.Store.AvatarURL(),
		Message:     msg,
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please enter your email and password.")
		return
	}
	sess := middleware.SessionFrom(c)
	user, err := h.credentials.Login(c.Request.Context(), sess, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondUser(c, sess, user, "Login successful")
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please fill in every field.")
		return
	}
	sess := middleware.SessionFrom(c)
	user, err := h.credentials.Register(c.Request.Context(), sess, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondUser(c, sess, user, "Registration successful. Please check your email to verify your account.")
}

// LoginWithGoogle handles POST /api/v1/auth/google with an id token obtained by the page.
func (h *AuthHandler) LoginWithGoogle(c *gin.Context) {
	var req models.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing Google id token.")
		return
	}
	sess := middleware.SessionFrom(c)
	user, err := h.credentials.LoginWithGoogle(c.Request.Context(), sess, models.FederatedCredential{
		ProviderID: models.ProviderGoogle,
		IDToken:    req.IDToken,
		RequestURI: req.RequestURI,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondUser(c, sess, user, "Login successful")
}

// GoogleStart handles GET /api/v1/auth/google/start by redirecting to Google.
func (h *AuthHandler) GoogleStart(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Google sign-in is not configured"})
		return
	}
	sess := middleware.SessionFrom(c)
	c.Redirect(http.StatusFound, h.google.AuthURL(h.google.MakeState(sess.ID)))
}

// GoogleCallback handles GET /api/v1/auth/google/callback and sends the browser back to the
// storefront with the outcome in the query string.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Google sign-in is not configured"})
		return
	}
	sess := middleware.SessionFrom(c)
	raw, ok := h.google.VerifyState(c.Query("state"))
	if !ok || raw != sess.ID {
		h.redirectBack(c, "Google sign-in could not be verified. Please try again.")
		return
	}
	if errParam := c.Query("error"); errParam != "" {
		h.redirectBack(c, "Google sign-in was cancelled.")
		return
	}

	cred, err := h.google.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn("google code exchange failed", zap.Error(err))
		h.redirectBack(c, "Google sign-in failed. Please try again.")
		return
	}
	if _, err := h.credentials.LoginWithGoogle(c.Request.Context(), sess, cred); err != nil {
		_, msg, _ := statusFor(err)
		h.redirectBack(c, msg)
		return
	}
	h.redirectBack(c, "")
}

func (h *AuthHandler) redirectBack(c *gin.Context, failure string) {
	q := url.Values{}
	if failure == "" {
		q.Set("login", "success")
	} else {
		q.Set("login", "failed")
		q.Set("error", failure)
	}
	c.Redirect(http.StatusFound, h.clientURL+"/?"+q.Encode())
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.credentials.Logout(c.Request.Context(), middleware.SessionFrom(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "You have been signed out."})
}

// RememberedEmail handles GET /api/v1/auth/remembered-email.
func (h *AuthHandler) RememberedEmail(c *gin.Context) {
	email := h.credentials.RememberedEmail(c.Request.Context(), middleware.SessionFrom(c))
	c.JSON(http.StatusOK, EmailResponse{Success: true, Email: email})
}

// SendPasswordReset handles POST /api/v1/auth/password-reset.
func (h *AuthHandler) SendPasswordReset(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please enter your email address.")
		return
	}
	if err := h.credentials.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Password reset email sent. Please check your inbox."})
}

// VerifyResetCode handles POST /api/v1/auth/password-reset/verify.
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req models.ActionCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing reset code.")
		return
	}
	email, err := h.credentials.VerifyPasswordResetCode(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, EmailResponse{Success: true, Email: email})
}

// ConfirmReset handles POST /api/v1/auth/password-reset/confirm.
func (h *AuthHandler) ConfirmReset(c *gin.Context) {
	var req models.ConfirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing reset code or new password.")
		return
	}
	if err := h.credentials.ConfirmPasswordReset(c.Request.Context(), req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Your password has been reset. You can now sign in."})
}

// ResendVerification handles POST /api/v1/auth/verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	if err := h.credentials.ResendVerification(c.Request.Context(), middleware.SessionFrom(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Verification email sent."})
}
