package models

import "time"

// Roles and statuses stored in profile documents.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive = "active"
)

// UserProfile is the document kept in the "users" collection, keyed by UserIdentity.UID.
// Degraded marks a record built only from the identity because the store was unreachable;
// such a record is never persisted or mirrored.
type UserProfile struct {
	UID           string                 `json:"uid"`
	Email         string                 `json:"email"`
	DisplayName   string                 `json:"displayName,omitempty"`
	PhotoURL      string                 `json:"photoURL,omitempty"`
	Role          string                 `json:"role"`
	Status        string                 `json:"status,omitempty"`
	EmailVerified bool                   `json:"emailVerified"`
	Provider      string                 `json:"provider,omitempty"`
	Balance       float64                `json:"balance"`
	Purchases     int64                  `json:"purchases"`
	CreatedAt     time.Time              `json:"createdAt,omitempty"`
	LastLogin     time.Time              `json:"lastLogin,omitempty"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
	Degraded      bool                   `json:"degraded,omitempty"`
}

// Clone returns a deep enough copy for handing out of a locked store.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Extra != nil {
		c.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// ProfileUpdate is a partial edit of a profile. Nil pointers leave the field untouched.
type ProfileUpdate struct {
	DisplayName *string                `json:"displayName,omitempty"`
	PhotoURL    *string                `json:"photoURL,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.DisplayName == nil && u.PhotoURL == nil && len(u.Extra) == 0
}

// Apply merges the update into p in place.
func (u ProfileUpdate) Apply(p *UserProfile) {
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.PhotoURL != nil {
		p.PhotoURL = *u.PhotoURL
	}
	if len(u.Extra) > 0 && p.Extra == nil {
		p.Extra = make(map[string]interface{}, len(u.Extra))
	}
	for k, v := range u.Extra {
		p.Extra[k] = v
	}
}

// ProfileSummary backs the profile page header.
type ProfileSummary struct {
	Profile           *UserProfile `json:"profile"`
	JoinDate          time.Time    `json:"joinDate,omitempty"`
	Purchases         int          `json:"purchases"`
	TestimonialsCount int          `json:"testimonialsCount"`
}
