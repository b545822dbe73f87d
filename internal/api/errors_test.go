package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/storage"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not signed in", identity.ErrNotSignedIn, http.StatusUnauthorized, ""},
		{"wrapped not signed in", &identity.Error{Code: identity.CodeUnknown, Op: "x", Err: identity.ErrNotSignedIn}, http.StatusUnauthorized, ""},
		{"duplicate email", &identity.Error{Code: identity.CodeEmailAlreadyInUse, Op: "Registration"}, http.StatusConflict, "email-already-in-use"},
		{"throttled", &identity.Error{Code: identity.CodeTooManyRequests, Op: "Login"}, http.StatusTooManyRequests, "too-many-requests"},
		{"unknown provider failure", &identity.Error{Code: identity.CodeUnknown, Op: "Login", Err: errors.New("boom")}, http.StatusInternalServerError, "unknown"},
		{"testimonial missing", fmt.Errorf("x: %w", core.ErrTestimonialNotFound), http.StatusNotFound, ""},
		{"avatar too big", storage.ErrAvatarTooBig, http.StatusRequestEntityTooLarge, ""},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg, code := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestUnknownProviderFailureShowsOperation(t *testing.T) {
	_, msg, _ := statusFor(&identity.Error{Code: identity.CodeUnknown, Op: "Login", Err: errors.New("network down")})
	assert.Equal(t, "Login failed: network down", msg)
	_, msg, _ = statusFor(errors.New("internal detail"))
	assert.NotContains(t, msg, "internal detail")
}
