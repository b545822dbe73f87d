package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront-backend-go/internal/db/dbtest"
	"storefront-backend-go/internal/events"
	"storefront-backend-go/internal/identity/identitytest"
	"storefront-backend-go/internal/mirror"
)

// harness wires a session manager over in-memory repositories.
type harness struct {
	provider     *identitytest.Provider
	users        *dbtest.Users
	testimonials *dbtest.Testimonials
	orders       *dbtest.Orders
	mirrors      *mirror.MemoryStore
	published    *events.Recorder
	syncer       *ProfileSynchronizer
	manager      *SessionManager
}

const testDevice = "6f1c2b1e-8a55-4a8e-9a51-0b7f3c2d9e10"

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		provider:     identitytest.NewProvider(),
		users:        dbtest.NewUsers(),
		testimonials: dbtest.NewTestimonials(),
		orders:       dbtest.NewOrders(),
		mirrors:      mirror.NewMemoryStore(),
		published:    &events.Recorder{},
	}
	h.syncer = NewProfileSynchronizer(h.users, h.provider, nil)
	h.manager = NewSessionManager(h.provider, h.syncer, h.users, h.testimonials,
		func(deviceID string) *mirror.Mirror { return mirror.New(h.mirrors, deviceID) },
		[]byte("0123456789abcdef0123456789abcdef"), time.Hour, nil)
	return h
}

// open opens a session on testDevice and waits until its sign-in state is settled.
func (h *harness) open(t *testing.T, idToken string) *Session {
	t.Helper()
	sess, _, err := h.manager.Open(context.Background(), testDevice, idToken)
	require.NoError(t, err)
	waitResolved(t, sess)
	return sess
}

func waitResolved(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Resolved():
	case <-time.After(2 * time.Second):
		t.Fatal("session sign-in state was not settled")
	}
}

func (h *harness) credentials() CredentialService {
	return NewCredentialService(h.provider, h.users, h.published, nil)
}

func (h *harness) deviceMirror() *mirror.Mirror {
	return mirror.New(h.mirrors, testDevice)
}
