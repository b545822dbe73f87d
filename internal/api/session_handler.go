package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/middleware"
	"storefront-backend-go/internal/models"
)

const (
	deviceCookie     = "sf_device"
	deviceCookieAge  = 365 * 24 * 60 * 60
	sessionCookieAge = 24 * 60 * 60
	eventsKeepAlive  = 25 * time.Second
	eventsBuffer     = 16
)

// SessionHandler opens and closes page sessions and streams their state.
type SessionHandler struct {
	sessions      *core.SessionManager
	secureCookies bool
	logger        *zap.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *core.SessionManager, secureCookies bool, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, secureCookies: secureCookies, logger: logger}
}

func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func deviceID(c *gin.Context) string {
	if id := c.GetHeader(middleware.DeviceHeader); id != "" {
		return id
	}
	id, _ := c.Cookie(deviceCookie)
	return id
}

// OpenSession handles POST /api/v1/sessions. An optional Bearer ID token restores a sign-in.
// The reply carries the state as loading, with the device's mirrored profile if there is one;
// the restored state follows on /session/events and /session/state.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	sess, handle, err := h.sessions.Open(c.Request.Context(), deviceID(c), bearerToken(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(deviceCookie, sess.DeviceID, deviceCookieAge, "/", "", h.secureCookies, true)
	c.SetCookie(middleware.SessionCookie, handle, sessionCookieAge, "/", "", h.secureCookies, true)
	c.Header(middleware.SessionHeader, handle)
	c.Header(middleware.DeviceHeader, sess.DeviceID)

	c.JSON(http.StatusCreated, SessionResponse{Success: true, Session: handle, DeviceID: sess.DeviceID, State: sess.Store.State()})
}

// CloseSession handles DELETE /api/v1/sessions.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	h.sessions.Close(sess.ID)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookies, true)
	c.JSON(http.StatusOK, MessageResponse{Success: true})
}

// GetState handles GET /api/v1/session/state.
func (h *SessionHandler) GetState(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	resp := StateResponse{Success: true, State: sess.Store.State()}
	if err := sess.RestoreErr(); err != nil {
		_, resp.RestoreError, _ = statusFor(err)
	}
	c.JSON(http.StatusOK, resp)
}

// Events handles GET /api/v1/session/events as a server-sent event stream. The current state
// is sent first, then every change.
func (h *SessionHandler) Events(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	states := make(chan models.SessionState, eventsBuffer)
	remove := sess.Store.AddListener(func(s models.SessionState) error {
		select {
		case states <- s:
		default:
			// A slow client only needs the newest state.
			select {
			case <-states:
			default:
			}
			states <- s
		}
		return nil
	})
	defer remove()

	keepAlive := time.NewTicker(eventsKeepAlive)
	defer keepAlive.Stop()
	ctx := c.Request.Context()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s := <-states:
			c.SSEvent("state", s)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
