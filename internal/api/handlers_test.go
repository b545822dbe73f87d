package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-backend-go/internal/catalog"
	"storefront-backend-go/internal/core"
	"storefront-backend-go/internal/db/dbtest"
	"storefront-backend-go/internal/events"
	"storefront-backend-go/internal/identity/identitytest"
	"storefront-backend-go/internal/middleware"
	"storefront-backend-go/internal/mirror"
	"storefront-backend-go/internal/models"
)

const testClientURL = "http://shop.example.com"

type fakeGoogle struct {
	email string
	err   error
}

func (f *fakeGoogle) MakeState(raw string) string { return "state:" + raw }

func (f *fakeGoogle) VerifyState(state string) (string, bool) {
	raw, ok := strings.CutPrefix(state, "state:")
	return raw, ok
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(context.Context, string) (models.FederatedCredential, error) {
	if f.err != nil {
		return models.FederatedCredential{}, f.err
	}
	// The fake provider treats the id token as the email address.
	return models.FederatedCredential{ProviderID: models.ProviderGoogle, IDToken: f.email}, nil
}

type testServer struct {
	router       *gin.Engine
	provider     *identitytest.Provider
	users        *dbtest.Users
	testimonials *dbtest.Testimonials
	sessions     *core.SessionManager
	google       *fakeGoogle
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	s := &testServer{
		provider:     identitytest.NewProvider(),
		users:        dbtest.NewUsers(),
		testimonials: dbtest.NewTestimonials(),
		google:       &fakeGoogle{email: "g@example.com"},
	}
	store := mirror.NewMemoryStore()
	syncer := core.NewProfileSynchronizer(s.users, s.provider, logger)
	s.sessions = core.NewSessionManager(s.provider, syncer, s.users, s.testimonials,
		func(deviceID string) *mirror.Mirror { return mirror.New(store, deviceID) },
		[]byte("0123456789abcdef0123456789abcdef"), time.Hour, logger)

	credentials := core.NewCredentialService(s.provider, s.users, &events.Recorder{}, logger)
	profiles := core.NewProfileService(s.testimonials, dbtest.NewOrders(), nil, logger)
	feed := core.NewTestimonialFeed(s.testimonials, catalog.Default(), 20)

	s.router = gin.New()
	s.router.Use(middleware.RecoveryMiddleware(logger))
	SetupRoutes(s.router, logger, s.sessions, credentials, profiles, feed, s.google, testClientURL, false)
	return s
}

func (s *testServer) do(t *testing.T, method, path, handle string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if handle != "" {
		req.Header.Set(middleware.SessionHeader, handle)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) openSession(t *testing.T, idToken string) SessionResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	if idToken != "" {
		req.Header.Set("Authorization", "Bearer "+idToken)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	s.waitResolved(t, resp.Session)
	return resp
}

// waitResolved blocks until the session behind handle has settled its sign-in state.
func (s *testServer) waitResolved(t *testing.T, handle string) {
	t.Helper()
	sess, err := s.sessions.Get(handle)
	require.NoError(t, err)
	select {
	case <-sess.Resolved():
	case <-time.After(2 * time.Second):
		t.Fatal("session sign-in state was not settled")
	}
}

func (s *testServer) state(t *testing.T, handle string) StateResponse {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/v1/session/state", handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decode[StateResponse](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestOpenSessionIsSignedOut(t *testing.T) {
	s := newTestServer(t)
	resp := s.openSession(t, "")

	assert.NotEmpty(t, resp.Session)
	assert.Len(t, resp.DeviceID, 36)
	assert.False(t, resp.State.IsAuthenticated)

	state := s.state(t, resp.Session)
	assert.False(t, state.State.IsAuthenticated)
	assert.False(t, state.State.IsLoading)
	assert.Empty(t, state.RestoreError)
}

func TestOpenSessionRestoresSignIn(t *testing.T) {
	s := newTestServer(t)
	u := s.provider.AddUser("a@example.com", "secret1", "Ann")

	resp := s.openSession(t, u.IDToken)
	state := s.state(t, resp.Session)
	assert.True(t, state.State.IsAuthenticated)
	assert.Equal(t, "Ann", state.State.User.DisplayName)

	rejected := s.openSession(t, "forged")
	state = s.state(t, rejected.Session)
	assert.False(t, state.State.IsAuthenticated)
	assert.NotEmpty(t, state.RestoreError)
}

func TestOpenSessionRepliesWithMirroredProfile(t *testing.T) {
	s := newTestServer(t)
	u := s.provider.AddUser("a@example.com", "secret1", "Ann")
	first := s.openSession(t, u.IDToken)

	s.provider.LookupGate = make(chan struct{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+u.IDToken)
	req.Header.Set(middleware.DeviceHeader, first.DeviceID)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decode[SessionResponse](t, w)
	assert.True(t, resp.State.IsLoading)
	require.NotNil(t, resp.State.User)
	assert.Equal(t, u.UID, resp.State.User.UID)

	close(s.provider.LookupGate)
	s.waitResolved(t, resp.Session)
	state := s.state(t, resp.Session)
	assert.False(t, state.State.IsLoading)
	assert.True(t, state.State.IsAuthenticated)
}

func TestSessionRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/session/state", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, decode[ErrorResponse](t, w).Success)

	w = s.do(t, http.MethodGet, "/api/v1/session/state", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginAndProfile(t *testing.T) {
	s := newTestServer(t)
	s.provider.AddUser("a@example.com", "secret1", "Ann")
	handle := s.openSession(t, "").Session

	w := s.do(t, http.MethodGet, "/api/v1/users/me", handle, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", handle, models.LoginRequest{Email: "a@example.com", Password: "secret1", RememberMe: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	login := decode[UserResponse](t, w)
	assert.True(t, login.Success)
	assert.Equal(t, "Ann", login.DisplayName)
	assert.Equal(t, "A", login.Initial)

	w = s.do(t, http.MethodGet, "/api/v1/users/me", handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@example.com", decode[UserResponse](t, w).User.Email)

	w = s.do(t, http.MethodGet, "/api/v1/auth/remembered-email", handle, nil)
	assert.Equal(t, "a@example.com", decode[EmailResponse](t, w).Email)

	w = s.do(t, http.MethodPatch, "/api/v1/users/me", handle, gin.H{"displayName": "Annie"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Annie", decode[UserResponse](t, w).User.DisplayName)

	w = s.do(t, http.MethodPost, "/api/v1/auth/logout", handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/users/me", handle, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginFailureBody(t *testing.T) {
	s := newTestServer(t)
	s.provider.AddUser("a@example.com", "secret1", "")
	handle := s.openSession(t, "").Session

	w := s.do(t, http.MethodPost, "/api/v1/auth/login", handle, models.LoginRequest{Email: "a@example.com", Password: "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.False(t, body.Success)
	assert.Equal(t, "wrong-password", body.Code)
	assert.Equal(t, "The password is incorrect.", body.Error)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", handle, gin.H{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.users.Put(&models.UserProfile{UID: "u1", Email: "taken@example.com", Role: models.RoleUser})
	handle := s.openSession(t, "").Session

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", handle, models.RegisterRequest{
		FirstName: "Taken", LastName: "User", Email: "taken@example.com", Password: "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email-already-in-use", decode[ErrorResponse](t, w).Code)
	assert.Equal(t, 1, s.users.Len())

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", handle, models.RegisterRequest{
		FirstName: "Fresh", LastName: "User", Email: "fresh@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Fresh User", decode[UserResponse](t, w).User.DisplayName)
	assert.Equal(t, 2, s.users.Len())
}

func TestTestimonialEndpoints(t *testing.T) {
	s := newTestServer(t)
	u := s.provider.AddUser("a@example.com", "secret1", "Ann")
	ctx := context.Background()
	mine, _ := s.testimonials.Create(ctx, &models.Testimonial{UserID: u.UID, Rating: 5, Text: "great", ProductType: "bot"})
	_, _ = s.testimonials.Create(ctx, &models.Testimonial{UserID: u.UID, Rating: 4, Text: "good", ProductType: "panel"})
	theirs, _ := s.testimonials.Create(ctx, &models.Testimonial{UserID: "someone-else", Rating: 3, Text: "ok"})
	handle := s.openSession(t, u.IDToken).Session

	w := s.do(t, http.MethodGet, "/api/v1/users/me/testimonials", handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[TestimonialsResponse](t, w).Count)

	rating := 4.5
	w = s.do(t, http.MethodPut, "/api/v1/users/me/testimonials/"+mine, handle, models.TestimonialUpdate{Rating: &rating})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 4.5, decode[TestimonialResponse](t, w).Testimonial.Rating)

	bad := 7.0
	w = s.do(t, http.MethodPut, "/api/v1/users/me/testimonials/"+mine, handle, models.TestimonialUpdate{Rating: &bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/users/me/testimonials/"+theirs, handle, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/users/me/testimonials/"+mine, handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[TestimonialsResponse](t, w).Count)

	w = s.do(t, http.MethodGet, "/api/v1/testimonials", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[FeedResponse](t, w)
	assert.True(t, feed.Success)
	assert.Equal(t, 2, feed.Stats.Count)
	assert.Equal(t, 3.5, feed.Stats.AverageRating)
}

func TestSummaryEndpoint(t *testing.T) {
	s := newTestServer(t)
	u := s.provider.AddUser("a@example.com", "secret1", "Ann")
	_, _ = s.testimonials.Create(context.Background(), &models.Testimonial{UserID: u.UID, Rating: 5, Text: "x"})
	handle := s.openSession(t, u.IDToken).Session

	w := s.do(t, http.MethodGet, "/api/v1/users/me/summary", handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[SummaryResponse](t, w).Summary
	assert.Equal(t, 1, summary.TestimonialsCount)
	assert.Equal(t, 0, summary.Purchases)
}

func TestGoogleRedirectFlow(t *testing.T) {
	s := newTestServer(t)
	opened := s.openSession(t, "")
	id, _, err := s.sessions.ParseHandle(opened.Session)
	require.NoError(t, err)

	w := s.do(t, http.MethodGet, "/api/v1/auth/google/start", opened.Session, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), url.QueryEscape("state:"+id))

	w = s.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=abc&state=state:"+id, opened.Session, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, testClientURL+"/?login=success", w.Header().Get("Location"))

	w = s.do(t, http.MethodGet, "/api/v1/session/state", opened.Session, nil)
	state := decode[StateResponse](t, w).State
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, models.ProviderGoogle, state.User.Provider)
}

func TestGoogleCallbackRejectsForeignState(t *testing.T) {
	s := newTestServer(t)
	handle := s.openSession(t, "").Session

	w := s.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=abc&state=state:other-session", handle, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "login=failed")

	s.google.err = errors.New("exchange failed")
	id, _, _ := s.sessions.ParseHandle(handle)
	w = s.do(t, http.MethodGet, "/api/v1/auth/google/callback?code=abc&state=state:"+id, handle, nil)
	assert.Contains(t, w.Header().Get("Location"), "login=failed")
}

func TestPasswordResetNeedsNoSession(t *testing.T) {
	s := newTestServer(t)
	s.provider.AddUser("a@example.com", "secret1", "")

	w := s.do(t, http.MethodPost, "/api/v1/auth/password-reset", "", models.EmailRequest{Email: "a@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a@example.com"}, s.provider.ResetsSent)

	w = s.do(t, http.MethodPost, "/api/v1/auth/password-reset/verify", "", models.ActionCodeRequest{Code: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid-action-code", decode[ErrorResponse](t, w).Code)
}

func TestCloseSession(t *testing.T) {
	s := newTestServer(t)
	handle := s.openSession(t, "").Session

	w := s.do(t, http.MethodDelete, "/api/v1/sessions", handle, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/session/state", handle, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}
