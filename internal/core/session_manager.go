package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront-backend-go/internal/db"
	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/metrics"
	"storefront-backend-go/internal/mirror"
	"storefront-backend-go/internal/models"
)

// maxHandleLifetime bounds a session handle even when the session keeps being used.
const maxHandleLifetime = 24 * time.Hour

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrInvalidHandle   = errors.New("invalid session handle")
)

// Session is everything one open storefront page owns.
type Session struct {
	ID       string
	DeviceID string

	Auth         *identity.Auth
	Store        *SessionStore
	Mirror       *mirror.Mirror
	Testimonials *TestimonialList

	createdAt  time.Time
	resolved   chan struct{}
	mu         sync.Mutex
	lastSeen   time.Time
	restoreErr error
}

// Resolved is closed once the sign-in state the session was opened with is settled.
func (s *Session) Resolved() <-chan struct{} { return s.resolved }

// RestoreErr explains why the ID token presented at Open was rejected. It is nil until
// Resolved is closed and when no token was presented.
func (s *Session) RestoreErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreErr
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.Store.Close()
}

// MirrorFactory returns the mirror of a device.
type MirrorFactory func(deviceID string) *mirror.Mirror

// SessionManager opens, finds and expires page sessions.
type SessionManager struct {
	provider     identity.Provider
	syncer       ProfileSyncer
	users        db.UserRepository
	testimonials db.TestimonialRepository
	mirrors      MirrorFactory
	secret       []byte
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager. Sessions idle for longer than ttl are closed by Sweep.
func NewSessionManager(
	provider identity.Provider,
	syncer ProfileSyncer,
	users db.UserRepository,
	testimonials db.TestimonialRepository,
	mirrors MirrorFactory,
	secret []byte,
	ttl time.Duration,
	logger *zap.Logger,
) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		provider:     provider,
		syncer:       syncer,
		users:        users,
		testimonials: testimonials,
		mirrors:      mirrors,
		secret:       secret,
		ttl:          ttl,
		logger:       logger,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

// Open starts a session for deviceID. A missing or malformed device id is replaced by a new
// one; callers must hand the returned session's DeviceID back to the client.
//
// The session is returned before its sign-in state is settled: its store is still loading and
// shows the device's mirrored profile, if any. idToken, when set, is checked in the background
// and restores the sign-in it belongs to; a rejected token leaves the session signed out and
// is reported by RestoreErr. Resolved is closed when that check is done.
func (m *SessionManager) Open(ctx context.Context, deviceID, idToken string) (*Session, string, error) {
	if _, err := uuid.Parse(deviceID); err != nil {
		deviceID = uuid.NewString()
	}
	now := m.now()

	auth := identity.NewAuth(m.provider)
	mir := m.mirrors(deviceID)
	store := NewSessionStore(ctx, auth, m.syncer, m.users, mir, m.logger.With(zap.String("device", deviceID)))
	list := NewTestimonialList(m.testimonials)

	sess := &Session{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		Auth:         auth,
		Store:        store,
		Mirror:       mir,
		Testimonials: list,
		createdAt:    now,
		resolved:     make(chan struct{}),
		lastSeen:     now,
	}
	// The testimonial list belongs to whoever is signed in.
	store.AddListener(func(state models.SessionState) error {
		if !state.IsAuthenticated {
			list.Reset()
		}
		return nil
	})

	handle, err := m.issueHandle(sess, now)
	if err != nil {
		sess.close()
		return nil, "", err
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	go m.resolve(context.WithoutCancel(ctx), sess, idToken)

	m.logger.Debug("session opened", zap.String("session", sess.ID), zap.String("device", deviceID))
	return sess, handle, nil
}

// resolve settles the session's initial sign-in state. ctx must outlive the request that
// opened the session.
func (m *SessionManager) resolve(ctx context.Context, sess *Session, idToken string) {
	defer close(sess.resolved)
	if _, err := sess.Auth.Resolve(ctx, idToken); err != nil {
		m.logger.Warn("session restore rejected", zap.String("session", sess.ID), zap.Error(err))
		sess.mu.Lock()
		sess.restoreErr = err
		sess.mu.Unlock()
	}
}

// Get returns the live session a handle refers to and marks it as used.
func (m *SessionManager) Get(handle string) (*Session, error) {
	id, deviceID, err := m.ParseHandle(handle)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || sess.DeviceID != deviceID {
		return nil, ErrSessionNotFound
	}
	sess.touch(m.now())
	return sess, nil
}

// Close tears a session down. Closing an unknown session is not an error.
func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.close()
	metrics.ActiveSessions.Dec()
	m.logger.Debug("session closed", zap.String("session", id))
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes every session idle for longer than the ttl and returns how many it closed.
func (m *SessionManager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	var expired []string
	m.mu.RLock()
	for id, sess := range m.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.Close(id)
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (m *SessionManager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (m *SessionManager) closeAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.Close(id)
	}
}

type handleClaims struct {
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

func (m *SessionManager) issueHandle(sess *Session, now time.Time) (string, error) {
	claims := handleClaims{
		DeviceID: sess.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(maxHandleLifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session handle: %w", err)
	}
	return signed, nil
}

// ParseHandle verifies a handle and returns the session and device ids it carries.
func (m *SessionManager) ParseHandle(handle string) (sessionID, deviceID string, err error) {
	var claims handleClaims
	token, err := jwt.ParseWithClaims(handle, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || claims.ID == "" {
		return "", "", ErrInvalidHandle
	}
	return claims.ID, claims.DeviceID, nil
}
