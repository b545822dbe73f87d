package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/storage"
)

var codeStatus = map[identity.ErrorCode]int{
	identity.CodeInvalidEmail:        http.StatusBadRequest,
	identity.CodeWeakPassword:        http.StatusBadRequest,
	identity.CodeInvalidArgument:     http.StatusBadRequest,
	identity.CodeInvalidActionCode:   http.StatusBadRequest,
	identity.CodeUserNotFound:        http.StatusUnauthorized,
	identity.CodeWrongPassword:       http.StatusUnauthorized,
	identity.CodeRequiresRecentLogin: http.StatusUnauthorized,
	identity.CodeUserDisabled:        http.StatusForbidden,
	identity.CodeOperationNotAllowed: http.StatusForbidden,
	identity.CodeEmailAlreadyInUse:   http.StatusConflict,
	identity.CodeTooManyRequests:     http.StatusTooManyRequests,
}

var sentinelStatus = []struct {
	err    error
	status int
}{
	{identity.ErrNotSignedIn, http.StatusUnauthorized},
	{core.ErrTestimonialNotFound, http.StatusNotFound},
	{core.ErrEmptyTestimonial, http.StatusBadRequest},
	{core.ErrInvalidRating, http.StatusBadRequest},
	{core.ErrNothingToUpdate, http.StatusBadRequest},
	{core.ErrEmptyDisplayName, http.StatusBadRequest},
	{storage.ErrNotAnImage, http.StatusBadRequest},
	{storage.ErrEmptyUpload, http.StatusBadRequest},
	{storage.ErrAvatarTooBig, http.StatusRequestEntityTooLarge},
	{core.ErrAvatarsDisabled, http.StatusServiceUnavailable},
}

// statusFor maps a service error to an HTTP status and the text shown to the user.
func statusFor(err error) (int, string, string) {
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status, s.err.Error(), ""
		}
	}
	var idErr *identity.Error
	if errors.As(err, &idErr) {
		status, ok := codeStatus[idErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		return status, idErr.Message(), string(idErr.Code)
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again.", ""
}

// respondError writes the failure body for err and logs unexpected failures.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, msg, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
