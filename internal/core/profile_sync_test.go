package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend-go/internal/db/dbtest"
	"storefront-backend-go/internal/identity/identitytest"
	"storefront-backend-go/internal/models"
)

func TestSyncCreatesMissingProfile(t *testing.T) {
	users := dbtest.NewUsers()
	provider := identitytest.NewProvider()
	syncer := NewProfileSynchronizer(users, provider, nil)

	user := &models.UserIdentity{UID: "u1", Email: "new@example.com", DisplayName: "New", ProviderID: models.ProviderPassword}
	profile, err := syncer.Sync(context.Background(), user)

	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, profile.Role)
	assert.Equal(t, models.StatusActive, profile.Status)
	assert.Zero(t, profile.Balance)
	assert.Zero(t, profile.Purchases)
	assert.False(t, profile.Degraded)
	assert.Equal(t, 1, users.Creates())
	assert.Equal(t, []string{"new@example.com"}, provider.VerificationsSent)

	stored := users.Doc("u1")
	require.NotNil(t, stored)
	assert.Equal(t, models.ProviderPassword, stored.Provider)
}

func TestSyncSkipsVerificationForVerifiedIdentity(t *testing.T) {
	users := dbtest.NewUsers()
	provider := identitytest.NewProvider()
	syncer := NewProfileSynchronizer(users, provider, nil)

	user := &models.UserIdentity{UID: "g1", Email: "g@example.com", EmailVerified: true, ProviderID: models.ProviderGoogle}
	profile, err := syncer.Sync(context.Background(), user)

	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, profile.Provider)
	assert.Empty(t, provider.VerificationsSent)
}

func TestSyncMergesExistingProfile(t *testing.T) {
	users := dbtest.NewUsers()
	provider := identitytest.NewProvider()
	created := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	users.Put(&models.UserProfile{
		UID: "u1", Email: "alice@example.com", DisplayName: "Alice", Role: models.RoleAdmin,
		Balance: 150000, Purchases: 3, Provider: models.ProviderPassword, CreatedAt: created,
	})
	syncer := NewProfileSynchronizer(users, provider, nil)

	profile, err := syncer.Sync(context.Background(), &models.UserIdentity{UID: "u1", Email: "alice@example.com", EmailVerified: true})

	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, models.RoleAdmin, profile.Role)
	assert.Equal(t, 150000.0, profile.Balance)
	assert.Equal(t, int64(3), profile.Purchases)
	assert.Equal(t, created, profile.CreatedAt)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, 0, users.Creates())
	assert.Equal(t, 1, users.Touches())
	assert.Empty(t, provider.VerificationsSent)
}

func TestSyncDegradesWhenStoreFails(t *testing.T) {
	users := dbtest.NewUsers()
	users.GetErr = errors.New("unavailable")
	syncer := NewProfileSynchronizer(users, identitytest.NewProvider(), nil)

	profile, err := syncer.Sync(context.Background(), &models.UserIdentity{UID: "u1", Email: "a@example.com", DisplayName: "A"})

	require.NoError(t, err)
	assert.True(t, profile.Degraded)
	assert.Equal(t, models.RoleUser, profile.Role)
	assert.Equal(t, "A", profile.DisplayName)
	assert.Equal(t, 0, users.Creates())
}

func TestSyncDegradesWhenLastLoginWriteFails(t *testing.T) {
	users := dbtest.NewUsers()
	users.Put(&models.UserProfile{UID: "u1", Email: "a@example.com", Role: models.RoleAdmin})
	users.TouchErr = errors.New("deadline exceeded")
	syncer := NewProfileSynchronizer(users, nil, nil)

	profile, err := syncer.Sync(context.Background(), &models.UserIdentity{UID: "u1", Email: "a@example.com"})

	require.NoError(t, err)
	assert.True(t, profile.Degraded)
	assert.Equal(t, models.RoleUser, profile.Role)
}

func TestSyncRequiresUID(t *testing.T) {
	syncer := NewProfileSynchronizer(dbtest.NewUsers(), nil, nil)
	_, err := syncer.Sync(context.Background(), &models.UserIdentity{})
	assert.Error(t, err)
	_, err = syncer.Sync(context.Background(), nil)
	assert.Error(t, err)
}

func TestConcurrentSyncCreatesOnce(t *testing.T) {
	users := dbtest.NewUsers()
	users.Gate = make(chan struct{})
	provider := identitytest.NewProvider()
	syncer := NewProfileSynchronizer(users, provider, nil)
	user := &models.UserIdentity{UID: "u1", Email: "race@example.com"}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*models.UserProfile, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = syncer.Sync(context.Background(), user)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(users.Gate)
	wg.Wait()

	assert.Equal(t, 1, users.Creates())
	assert.Len(t, provider.VerificationsSent, 1)
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, "u1", p.UID)
		assert.False(t, p.Degraded)
	}
}

func TestJoinedSyncOutlivesFirstCaller(t *testing.T) {
	users := dbtest.NewUsers()
	users.Gate = make(chan struct{})
	syncer := NewProfileSynchronizer(users, identitytest.NewProvider(), nil)
	user := &models.UserIdentity{UID: "u1", Email: "join@example.com"}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan *models.UserProfile, 1)
	go func() {
		p, _ := syncer.Sync(ctx, user)
		first <- p
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan *models.UserProfile, 1)
	go func() {
		p, _ := syncer.Sync(context.Background(), user)
		second <- p
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(users.Gate)

	for _, p := range []*models.UserProfile{<-first, <-second} {
		require.NotNil(t, p)
		assert.False(t, p.Degraded)
		assert.Equal(t, "join@example.com", p.Email)
	}
	assert.Equal(t, 1, users.Creates())
}

func TestMergeProfile(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stored := &models.UserProfile{
		UID: "u1", Email: "old@example.com", DisplayName: "Alice", PhotoURL: "https://old/photo.png",
		Provider: models.ProviderPassword, Balance: 10, Purchases: 2, Status: models.StatusActive,
		Extra: map[string]interface{}{"firstName": "Alice"},
	}

	tests := []struct {
		name  string
		user  *models.UserIdentity
		check func(t *testing.T, merged *models.UserProfile)
	}{
		{
			name: "empty identity name keeps stored name",
			user: &models.UserIdentity{UID: "u1", Email: "old@example.com"},
			check: func(t *testing.T, merged *models.UserProfile) {
				assert.Equal(t, "Alice", merged.DisplayName)
				assert.Equal(t, "https://old/photo.png", merged.PhotoURL)
			},
		},
		{
			name: "identity name and photo win when present",
			user: &models.UserIdentity{UID: "u1", DisplayName: "Alicia", PhotoURL: "https://new/photo.png"},
			check: func(t *testing.T, merged *models.UserProfile) {
				assert.Equal(t, "Alicia", merged.DisplayName)
				assert.Equal(t, "https://new/photo.png", merged.PhotoURL)
			},
		},
		{
			name: "identity email and verification are authoritative",
			user: &models.UserIdentity{UID: "u1", Email: "new@example.com", EmailVerified: true},
			check: func(t *testing.T, merged *models.UserProfile) {
				assert.Equal(t, "new@example.com", merged.Email)
				assert.True(t, merged.EmailVerified)
			},
		},
		{
			name: "store owns provider, balance, extras and role default",
			user: &models.UserIdentity{UID: "u1", ProviderID: models.ProviderGoogle},
			check: func(t *testing.T, merged *models.UserProfile) {
				assert.Equal(t, models.ProviderPassword, merged.Provider)
				assert.Equal(t, 10.0, merged.Balance)
				assert.Equal(t, int64(2), merged.Purchases)
				assert.Equal(t, "Alice", merged.Extra["firstName"])
				assert.Equal(t, models.RoleUser, merged.Role)
				assert.Equal(t, now, merged.LastLogin)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, MergeProfile(stored, tt.user, now))
		})
	}
	assert.Equal(t, "Alice", stored.DisplayName, "stored profile must not be modified")
}
