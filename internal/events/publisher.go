// Package events publishes account lifecycle events for downstream consumers
// (welcome mails, analytics).
package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	KeyUserRegistered = "user.registered"
	KeyUserLoggedIn   = "user.logged_in"
	KeyUserLoggedOut  = "user.logged_out"
)

// Publisher sends an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

// UserRegistered is emitted once the profile document of a new account exists.
type UserRegistered struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Provider string    `json:"provider"`
	At       time.Time `json:"at"`
}

// UserLoggedIn is emitted after a successful credential or federated sign-in.
type UserLoggedIn struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Provider string    `json:"provider"`
	At       time.Time `json:"at"`
}

// UserLoggedOut is emitted on explicit sign-out.
type UserLoggedOut struct {
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// NewNoop returns a Publisher that does nothing.
func NewNoop() Publisher { return NoopPublisher{} }

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
