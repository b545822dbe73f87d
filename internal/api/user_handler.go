package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/middleware"
	"storefront-backend-go/internal/models"
	"storefront-backend-go/internal/storage"
)

// avatarField is the multipart field carrying the picture.
const avatarField = "avatar"

// UserHandler handles the profile endpoints of the signed-in user.
type UserHandler struct {
	profiles    core.ProfileService
	credentials core.CredentialService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(profiles core.ProfileService, credentials core.CredentialService, logger *zap.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, credentials: credentials, logger: logger}
}

func userResponse(sess *core.Session, user *models.UserProfile, msg string) UserResponse {
	return UserResponse{
		Success:     true,
		User:        user,
		DisplayName: sess.Store.DisplayName(),
		Initial:     sess.Store.Initial(),
		AvatarURL:   sess.Store.AvatarURL(),
		Message:     msg,
	}
}

// GetCurrentUserProfile handles GET /api/v1/users/me.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	c.JSON(http.StatusOK, userResponse(sess, sess.Store.CurrentUser(), ""))
}

// UpdateCurrentUserProfile handles PATCH /api/v1/users/me.
func (h *UserHandler) UpdateCurrentUserProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DisplayName == nil {
		badRequest(c, "Nothing to update.")
		return
	}
	sess := middleware.SessionFrom(c)
	user, err := h.profiles.UpdateDisplayName(c.Request.Context(), sess, *req.DisplayName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(sess, user, "Profile updated."))
}

// GetSummary handles GET /api/v1/users/me/summary.
func (h *UserHandler) GetSummary(c *gin.Context) {
	summary, err := h.profiles.Summary(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SummaryResponse{Success: true, Summary: summary})
}

// UploadAvatar handles POST /api/v1/users/me/avatar (multipart field "avatar").
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxAvatarBytes+1<<20)
	fileHeader, err := c.FormFile(avatarField)
	if err != nil {
		badRequest(c, "Please choose an image to upload.")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer file.Close()

	sess := middleware.SessionFrom(c)
	user, err := h.profiles.UploadAvatar(c.Request.Context(), sess, fileHeader.Header.Get("Content-Type"), fileHeader.Size, file)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(sess, user, "Profile picture updated."))
}

// ChangePassword handles POST /api/v1/users/me/password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please fill in every password field.")
		return
	}
	if err := h.credentials.ChangePassword(c.Request.Context(), middleware.SessionFrom(c), req); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Password changed successfully."})
}
