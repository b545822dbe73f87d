package models

import "time"

// SessionState is what session listeners receive on every change.
type SessionState struct {
	User            *UserProfile `json:"user"`
	IsLoading       bool         `json:"isLoading"`
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsEmailVerified bool         `json:"isEmailVerified"`
}

// MirrorRecord is the flattened profile persisted in the local mirror.
type MirrorRecord struct {
	UID           string                 `json:"uid"`
	Email         string                 `json:"email"`
	EmailVerified bool                   `json:"emailVerified"`
	DisplayName   string                 `json:"displayName,omitempty"`
	PhotoURL      string                 `json:"photoURL,omitempty"`
	Role          string                 `json:"role"`
	Status        string                 `json:"status,omitempty"`
	Provider      string                 `json:"provider,omitempty"`
	Balance       float64                `json:"balance"`
	Purchases     int64                  `json:"purchases"`
	CreatedAt     time.Time              `json:"createdAt,omitempty"`
	LastLogin     time.Time              `json:"lastLogin,omitempty"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// MirrorRecordFromProfile flattens a profile for the mirror.
func MirrorRecordFromProfile(p *UserProfile) *MirrorRecord {
	return &MirrorRecord{
		UID:           p.UID,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		DisplayName:   p.DisplayName,
		PhotoURL:      p.PhotoURL,
		Role:          p.Role,
		Status:        p.Status,
		Provider:      p.Provider,
		Balance:       p.Balance,
		Purchases:     p.Purchases,
		CreatedAt:     p.CreatedAt,
		LastLogin:     p.LastLogin,
		Extra:         p.Extra,
	}
}

// Profile expands a mirror record back into a profile.
func (r *MirrorRecord) Profile() *UserProfile {
	return &UserProfile{
		UID:           r.UID,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		DisplayName:   r.DisplayName,
		PhotoURL:      r.PhotoURL,
		Role:          r.Role,
		Status:        r.Status,
		Provider:      r.Provider,
		Balance:       r.Balance,
		Purchases:     r.Purchases,
		CreatedAt:     r.CreatedAt,
		LastLogin:     r.LastLogin,
		Extra:         r.Extra,
	}
}
