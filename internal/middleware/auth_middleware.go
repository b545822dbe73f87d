package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend-go/internal/core"
)

const (
	// SessionHeader carries the session handle issued by POST /sessions.
	SessionHeader = "X-Session-Token"
	// SessionCookie is accepted when the header is absent, e.g. for EventSource requests.
	SessionCookie = "sf_session"

	sessionKey = "session"
)

// ErrorResponse is the failure body; api.ErrorResponse carries the same fields.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// SessionFinder resolves a session handle. *core.SessionManager satisfies it.
type SessionFinder interface {
	Get(handle string) (*core.Session, error)
}

// SessionAuth attaches the caller's page session to the request.
type SessionAuth struct {
	sessions SessionFinder
	logger   *zap.Logger
}

// NewSessionAuth creates a new SessionAuth instance.
func NewSessionAuth(sessions SessionFinder, logger *zap.Logger) *SessionAuth {
	if sessions == nil {
		panic("SessionAuth requires a session finder")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionAuth{sessions: sessions, logger: logger}
}

// HandleFromRequest reads the session handle from the header, the Authorization header with
// the "Session" scheme, or the cookie, in that order.
func HandleFromRequest(c *gin.Context) string {
	if h := strings.TrimSpace(c.GetHeader(SessionHeader)); h != "" {
		return h
	}
	if scheme, value, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "Session") {
		return strings.TrimSpace(value)
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// RequireSession rejects requests without a live session.
func (m *SessionAuth) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		handle := HandleFromRequest(c)
		if handle == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Session token is required"})
			return
		}
		sess, err := m.sessions.Get(handle)
		if err != nil {
			if !errors.Is(err, core.ErrSessionNotFound) && !errors.Is(err, core.ErrInvalidHandle) {
				m.logger.Error("session lookup failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Session expired, please reload the page"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireUser additionally rejects sessions nobody is signed in to.
func (m *SessionAuth) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil || !sess.Store.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Please sign in first"})
			return
		}
		c.Next()
	}
}

// SessionFrom returns the session attached by RequireSession, or nil.
func SessionFrom(c *gin.Context) *core.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*core.Session)
	return sess
}
