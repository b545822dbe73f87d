package mirror

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend-go/internal/crypto"
	"storefront-backend-go/internal/models"
)

func sampleRecord() *models.MirrorRecord {
	return &models.MirrorRecord{
		UID:         "u1",
		Email:       "user@example.com",
		DisplayName: "User",
		Role:        models.RoleUser,
		Balance:     2500,
	}
}

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	m := New(NewMemoryStore(), "dev1")

	_, ok := m.Load(ctx)
	assert.False(t, ok)

	require.NoError(t, m.Save(ctx, sampleRecord()))
	got, ok := m.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UID)
	assert.Equal(t, float64(2500), got.Balance)

	require.NoError(t, m.Clear(ctx))
	_, ok = m.Load(ctx)
	assert.False(t, ok)
}

func TestLoadDiscardsMalformedEntries(t *testing.T) {
	malformed := []string{
		"",
		"   ",
		"{",
		"not json",
		"null",
		"[]",
		`"just a string"`,
		`{"uid": 5}`,
		`{"uid": ""}`,
		`{"email":"x@example.com"}`,
		"\x00\xff",
	}
	for _, raw := range malformed {
		t.Run(raw, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			m := New(store, "dev1")
			require.NoError(t, store.Set(ctx, m.key(KeyUserData), raw, 0))

			got, ok := m.Load(ctx)

			assert.False(t, ok)
			assert.Nil(t, got)
			_, present, err := store.Get(ctx, m.key(KeyUserData))
			require.NoError(t, err)
			assert.False(t, present, "corrupt key must be removed")
		})
	}
}

func TestSealedMirror(t *testing.T) {
	ctx := context.Background()
	sealer, err := crypto.NewSealer(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	store := NewMemoryStore()
	m := New(store, "dev1", WithSealer(sealer))

	require.NoError(t, m.Save(ctx, sampleRecord()))
	raw, _, _ := store.Get(ctx, m.key(KeyUserData))
	assert.NotContains(t, raw, "user@example.com")

	got, ok := m.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "user@example.com", got.Email)

	// Plain JSON written by an unsealed writer is corrupt from the sealed reader's view.
	require.NoError(t, store.Set(ctx, m.key(KeyUserData), `{"uid":"u1"}`, 0))
	_, ok = m.Load(ctx)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

type failingStore struct {
	*MemoryStore
	deletes int
}

func (f *failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (f *failingStore) Delete(ctx context.Context, key string) error {
	f.deletes++
	return f.MemoryStore.Delete(ctx, key)
}

func TestLoadBackendFailureIsAbsentWithoutDelete(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	m := New(store, "dev1")

	_, ok := m.Load(context.Background())
	assert.False(t, ok)
	assert.Zero(t, store.deletes)
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := New(store, "dev-a")
	b := New(store, "dev-b")

	require.NoError(t, a.Save(ctx, sampleRecord()))
	_, ok := b.Load(ctx)
	assert.False(t, ok)
}

func TestRememberedEmail(t *testing.T) {
	ctx := context.Background()
	m := New(NewMemoryStore(), "dev1")

	assert.Empty(t, m.RememberedEmail(ctx))
	require.NoError(t, m.RememberEmail(ctx, "user@example.com"))
	assert.Equal(t, "user@example.com", m.RememberedEmail(ctx))

	// Clearing the user entry keeps the remembered email.
	require.NoError(t, m.Clear(ctx))
	assert.Equal(t, "user@example.com", m.RememberedEmail(ctx))

	require.NoError(t, m.ForgetEmail(ctx))
	assert.Empty(t, m.RememberedEmail(ctx))
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}
