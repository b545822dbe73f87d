package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend-go/internal/identity"
	"storefront-backend-go/internal/models"
)

func TestOpenAndGetSession(t *testing.T) {
	h := newHarness(t)
	sess, handle, err := h.manager.Open(context.Background(), testDevice, "")
	require.NoError(t, err)

	got, err := h.manager.Get(handle)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, testDevice, got.DeviceID)
	assert.Equal(t, 1, h.manager.Len())

	waitResolved(t, got)
	assert.False(t, got.Store.IsLoading())
	assert.False(t, got.Store.IsAuthenticated())
	assert.NoError(t, got.RestoreErr())
}

func TestOpenReplacesMalformedDeviceID(t *testing.T) {
	h := newHarness(t)
	sess, _, err := h.manager.Open(context.Background(), "../../etc", "")
	require.NoError(t, err)
	assert.NotEqual(t, "../../etc", sess.DeviceID)
	assert.Len(t, sess.DeviceID, 36)
}

func TestOpenRestoresSignIn(t *testing.T) {
	h := newHarness(t)
	u := h.provider.AddUser("a@example.com", "secret1", "Ann")

	sess := h.open(t, u.IDToken)
	assert.True(t, sess.Store.IsAuthenticated())
	assert.Equal(t, u.UID, sess.Store.CurrentUser().UID)
	assert.NoError(t, sess.RestoreErr())
}

func TestOpenShowsMirroredProfileWhileRestoring(t *testing.T) {
	h := newHarness(t)
	u := h.provider.AddUser("a@example.com", "secret1", "Ann")
	require.NoError(t, h.deviceMirror().Save(context.Background(), &models.MirrorRecord{
		UID: u.UID, Email: u.Email, DisplayName: "Mirrored", Role: models.RoleUser,
	}))
	h.provider.LookupGate = make(chan struct{})

	sess, handle, err := h.manager.Open(context.Background(), testDevice, u.IDToken)
	require.NoError(t, err)
	require.NotEmpty(t, handle)

	first := sess.Store.State()
	assert.True(t, first.IsLoading)
	require.NotNil(t, first.User)
	assert.Equal(t, "Mirrored", first.User.DisplayName)
	assert.Equal(t, 0, h.users.Creates())

	got, err := h.manager.Get(handle)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	updates := make(chan models.SessionState, 4)
	sess.Store.AddListener(func(state models.SessionState) error {
		updates <- state
		return nil
	})
	replayed := <-updates
	assert.True(t, replayed.IsLoading)
	assert.Equal(t, "Mirrored", replayed.User.DisplayName)

	close(h.provider.LookupGate)
	waitResolved(t, sess)

	resolved := <-updates
	assert.False(t, resolved.IsLoading)
	require.NotNil(t, resolved.User)
	assert.Equal(t, u.UID, resolved.User.UID)
	assert.Equal(t, "Ann", resolved.User.DisplayName)
	assert.Equal(t, 1, h.users.Creates())
}

func TestRestoreOutlivesRequestContext(t *testing.T) {
	h := newHarness(t)
	u := h.provider.AddUser("a@example.com", "secret1", "Ann")
	h.provider.LookupGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	sess, _, err := h.manager.Open(ctx, testDevice, u.IDToken)
	require.NoError(t, err)
	cancel()
	close(h.provider.LookupGate)

	waitResolved(t, sess)
	assert.NoError(t, sess.RestoreErr())
	assert.True(t, sess.Store.IsAuthenticated())
}

func TestOpenWithRejectedTokenIsSignedOut(t *testing.T) {
	h := newHarness(t)
	sess, handle, err := h.manager.Open(context.Background(), testDevice, "expired")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, handle)

	waitResolved(t, sess)
	assert.Equal(t, identity.CodeRequiresRecentLogin, identity.CodeOf(sess.RestoreErr()))
	assert.False(t, sess.Store.IsAuthenticated())
	assert.False(t, sess.Store.IsLoading())
}

func TestHandlesAreVerified(t *testing.T) {
	h := newHarness(t)
	_, handle, err := h.manager.Open(context.Background(), testDevice, "")
	require.NoError(t, err)

	_, err = h.manager.Get(handle + "x")
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, err = h.manager.Get("")
	assert.ErrorIs(t, err, ErrInvalidHandle)

	other := NewSessionManager(h.provider, h.syncer, h.users, h.testimonials, nil,
		[]byte("another-secret-another-secret-xx"), time.Hour, nil)
	_, _, err = other.ParseHandle(handle)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	id, device, err := h.manager.ParseHandle(handle)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, testDevice, device)
}

func TestCloseSession(t *testing.T) {
	h := newHarness(t)
	sess, handle, err := h.manager.Open(context.Background(), testDevice, "")
	require.NoError(t, err)

	h.manager.Close(sess.ID)
	h.manager.Close(sess.ID)

	_, err = h.manager.Get(handle)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, h.manager.Len())
}

func TestSweepClosesIdleSessions(t *testing.T) {
	h := newHarness(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h.manager.now = func() time.Time { return now }

	idle, _, err := h.manager.Open(context.Background(), testDevice, "")
	require.NoError(t, err)
	now = now.Add(50 * time.Minute)
	_, active, err := h.manager.Open(context.Background(), testDevice, "")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, h.manager.Sweep())

	_, err = h.manager.Get(active)
	assert.NoError(t, err)
	assert.Equal(t, 1, h.manager.Len())
	assert.NotContains(t, h.manager.sessions, idle.ID)
}

func TestRunClosesSessionsOnShutdown(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.manager.Open(context.Background(), testDevice, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.manager.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done
	assert.Equal(t, 0, h.manager.Len())
}
