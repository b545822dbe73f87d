package core

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/mirror"
	"storefront-backend-go/internal/models"
)

const avatarFallbackURL = "https://ui-avatars.com/api/?name=%s&background=4361ee&color=fff&size=128"

// Listener receives the session state after every change. A returned error is logged.
type Listener func(state models.SessionState) error

// SessionStore holds the signed-in profile of one page session and tells listeners when it
// changes. It follows identity.Auth: sign-in runs the profile sync, sign-out clears the mirror.
type SessionStore struct {
	auth   *identity.Auth
	syncer ProfileSyncer
	users  db.UserRepository
	mirror *mirror.Mirror
	logger *zap.Logger

	mu      sync.RWMutex
	user    *models.UserProfile
	loading bool

	// notifyMu serialises deliveries so replays and notifications never interleave.
	notifyMu    sync.Mutex
	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int

	unsubscribe func()
}

// NewSessionStore reads the mirror eagerly, so a returning visitor is shown immediately, and
// subscribes to auth. The store stays loading until auth resolves.
func NewSessionStore(ctx context.Context, auth *identity.Auth, syncer ProfileSyncer, users db.UserRepository, m *mirror.Mirror, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SessionStore{
		auth:      auth,
		syncer:    syncer,
		users:     users,
		mirror:    m,
		logger:    logger,
		loading:   true,
		listeners: make(map[int]Listener),
	}
	if record, ok := m.Load(ctx); ok {
		s.user = record.Profile()
	}
	s.unsubscribe = auth.OnAuthStateChanged(ctx, s.handleAuthChange)
	return s
}

func (s *SessionStore) handleAuthChange(ctx context.Context, user *models.UserIdentity) {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	if user == nil {
		s.mu.Lock()
		s.user = nil
		s.mu.Unlock()
		if err := s.mirror.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear mirror", zap.Error(err))
		}
		s.notify()
		return
	}

	profile, err := s.syncer.Sync(ctx, user)
	if err != nil {
		s.logger.Error("profile sync failed", zap.String("uid", user.UID), zap.Error(err))
		profile = MinimalProfile(user)
	}
	s.mu.Lock()
	s.user = profile
	s.mu.Unlock()

	if !profile.Degraded {
		s.saveMirror(ctx, profile)
	}
	s.notify()
}

func (s *SessionStore) saveMirror(ctx context.Context, profile *models.UserProfile) {
	if err := s.mirror.Save(ctx, models.MirrorRecordFromProfile(profile)); err != nil {
		s.logger.Warn("failed to save mirror", zap.String("uid", profile.UID), zap.Error(err))
	}
}

// AddListener registers fn and immediately calls it with the current state. The returned
// function removes it. fn must not add listeners itself.
func (s *SessionStore) AddListener(fn Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	s.call(id, fn, s.State())

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *SessionStore) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	state := s.State()
	s.listenersMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, len(ids))
	for i, id := range ids {
		fns[i] = s.listeners[id]
	}
	s.listenersMu.Unlock()

	for i, fn := range fns {
		s.call(ids[i], fn, state)
	}
}

// call runs one listener; a failing listener never stops the others.
func (s *SessionStore) call(id int, fn Listener, state models.SessionState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session listener panicked", zap.Int("listener", id), zap.Any("panic", r))
		}
	}()
	if err := fn(state); err != nil {
		s.logger.Warn("session listener failed", zap.Int("listener", id), zap.Error(err))
	}
}

// State is a snapshot of the session.
func (s *SessionStore) State() models.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.SessionState{
		User:            s.user.Clone(),
		IsLoading:       s.loading,
		IsAuthenticated: s.user != nil,
		IsEmailVerified: s.user != nil && s.user.EmailVerified,
	}
}

// CurrentUser returns a copy of the profile, or nil when signed out.
func (s *SessionStore) CurrentUser() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

func (s *SessionStore) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *SessionStore) IsEmailVerified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.EmailVerified
}

// HasRole reports whether the signed-in user has role.
func (s *SessionStore) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Role == role
}

// DisplayName falls back to the local part of the email, then to "User".
func (s *SessionStore) DisplayName() string {
	return displayNameOf(s.CurrentUser())
}

// Initial is the upper-cased first letter of DisplayName.
func (s *SessionStore) Initial() string {
	r, _ := utf8.DecodeRuneInString(s.DisplayName())
	return string(unicode.ToUpper(r))
}

// AvatarURL is the profile photo, or a generated avatar built from the display name.
func (s *SessionStore) AvatarURL() string {
	user := s.CurrentUser()
	if user != nil && user.PhotoURL != "" {
		return user.PhotoURL
	}
	return fmt.Sprintf(avatarFallbackURL, url.QueryEscape(displayNameOf(user)))
}

func displayNameOf(user *models.UserProfile) string {
	if user == nil {
		return "User"
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if local, _, ok := strings.Cut(user.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

// UpdateUser writes upd to the profile document, merges it locally, refreshes the mirror and
// notifies listeners.
func (s *SessionStore) UpdateUser(ctx context.Context, upd models.ProfileUpdate) (*models.UserProfile, error) {
	user := s.CurrentUser()
	if user == nil {
		return nil, identity.ErrNotSignedIn
	}
	if upd.IsEmpty() {
		return user, nil
	}

	if err := s.users.Update(ctx, user.UID, profileUpdateFields(upd)); err != nil {
		return nil, fmt.Errorf("failed to update profile of user %s: %w", user.UID, err)
	}

	s.mu.Lock()
	if s.user == nil || s.user.UID != user.UID {
		s.mu.Unlock()
		return nil, identity.ErrNotSignedIn
	}
	upd.Apply(s.user)
	updated := s.user.Clone()
	s.mu.Unlock()

	if !updated.Degraded {
		s.saveMirror(ctx, updated)
	}
	s.notify()
	return updated, nil
}

func profileUpdateFields(upd models.ProfileUpdate) map[string]interface{} {
	fields := make(map[string]interface{}, len(upd.Extra)+2)
	for k, v := range upd.Extra {
		if db.IsProfileField(k) {
			continue
		}
		fields[k] = v
	}
	if upd.DisplayName != nil {
		fields["displayName"] = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		fields["photoURL"] = *upd.PhotoURL
	}
	return fields
}

// Close stops following auth and drops every listener.
func (s *SessionStore) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.listenersMu.Lock()
	s.listeners = make(map[int]Listener)
	s.listenersMu.Unlock()
}
