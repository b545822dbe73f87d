package api

import (
	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/models"
)

// Every response carries "success"; failures add "error" and, for provider failures, "code".

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// MessageResponse is used by operations that only report completion.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SessionResponse is returned when a page session is opened.
type SessionResponse struct {
	Success  bool                `json:"success"`
	Session  string              `json:"session"`
	DeviceID string              `json:"deviceId"`
	State    models.SessionState `json:"state"`
}

type StateResponse struct {
	Success bool                `json:"success"`
	State   models.SessionState `json:"state"`
	// RestoreError explains why the ID token the session was opened with was not accepted.
	RestoreError string `json:"restoreError,omitempty"`
}

// UserResponse carries the signed-in profile plus the derived display fields.
type UserResponse struct {
	Success     bool                `json:"success"`
	User        *models.UserProfile `json:"user"`
	DisplayName string              `json:"displayName,omitempty"`
	Initial     string              `json:"initial,omitempty"`
	AvatarURL   string              `json:"avatarUrl,omitempty"`
	Message     string              `json:"message,omitempty"`
}

type EmailResponse struct {
	Success bool   `json:"success"`
	Email   string `json:"email"`
}

type SummaryResponse struct {
	Success bool                   `json:"success"`
	Summary *models.ProfileSummary `json:"summary"`
}

type TestimonialsResponse struct {
	Success      bool                  `json:"success"`
	Testimonials []*models.Testimonial `json:"testimonials"`
	Count        int                   `json:"count"`
}

type TestimonialResponse struct {
	Success     bool                `json:"success"`
	Testimonial *models.Testimonial `json:"testimonial"`
}

type FeedResponse struct {
	Success bool `json:"success"`
	*core.PublicFeed
}
