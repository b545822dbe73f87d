package models

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// FullName joins first and last name the way the profile document stores it.
func (r RegisterRequest) FullName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

// GoogleLoginRequest carries a Google id token obtained by the page.
type GoogleLoginRequest struct {
	IDToken    string `json:"idToken" binding:"required"`
	RequestURI string `json:"requestUri"`
}

// EmailRequest is used by password reset and similar single-field calls.
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// ActionCodeRequest verifies an out-of-band action code.
type ActionCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// ConfirmResetRequest completes a password reset.
type ConfirmResetRequest struct {
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ChangePasswordRequest is the body of POST /users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// UpdateProfileRequest is the body of PATCH /users/me.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName"`
}
